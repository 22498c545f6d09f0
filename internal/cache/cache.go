// Package cache implements the normalized REST cache: one entry per
// (resource, method, id) address holding the loading/error/data state of the
// last call made against it.
package cache

import (
	"sort"
	"sync"

	"go-insights-pipeline/internal/model"
)

// DefaultID is the id used by callers that do not distinguish concurrent
// calls on the same resource and method.
const DefaultID = "0"

// Key addresses one cache entry
type Key struct {
	Resource string       `json:"resource"`
	Method   model.Method `json:"method"`
	ID       string       `json:"id"`
}

// NewKey builds a key, substituting DefaultID for an empty id
func NewKey(resource string, method model.Method, id string) Key {
	if id == "" {
		id = DefaultID
	}
	return Key{Resource: resource, Method: method, ID: id}
}

func (k Key) String() string {
	return k.Resource + "/" + string(k.Method) + "/" + k.ID
}

// Entry is the state stored at a key
type Entry struct {
	Loading   bool        `json:"loading"`
	Error     bool        `json:"error"`
	ErrorCode int         `json:"error_code"`
	Data      interface{} `json:"data"`
}

// List returns the entry data as a list result when it holds one
func (e Entry) List() (model.ListResult, bool) {
	switch d := e.Data.(type) {
	case model.ListResult:
		return d, true
	case *model.ListResult:
		if d == nil {
			return model.ListResult{}, false
		}
		return *d, true
	}
	return model.ListResult{}, false
}

// Record returns the entry data as a single record when it holds one
func (e Entry) Record() (model.Record, bool) {
	r, ok := e.Data.(model.Record)
	return r, ok
}

// Event is published to subscribers after every write
type Event struct {
	Key     Key   `json:"key"`
	Entry   Entry `json:"entry"`
	Cleared bool  `json:"cleared"`
}

const subscriberBuffer = 64

// Cache is the single source of truth for in-flight and completed calls.
// Writes are serialized; reads return copies of entries and their records.
type Cache struct {
	mu      sync.RWMutex
	entries map[Key]Entry
	subs    map[int]chan Event
	nextSub int
	dropped int64
}

// New creates an empty cache
func New() *Cache {
	return &Cache{
		entries: make(map[Key]Entry),
		subs:    make(map[int]chan Event),
	}
}

// Begin marks a fresh request at key: loading, no error, previous data kept
func (c *Cache) Begin(key Key) {
	c.update(key, func(e Entry) Entry {
		e.Loading = true
		e.Error = false
		e.ErrorCode = 0
		return e
	})
}

// Hold writes data at key while leaving it loading. Used when follow-up
// work on the data is still pending.
func (c *Cache) Hold(key Key, data interface{}) {
	c.update(key, func(e Entry) Entry {
		e.Loading = true
		e.Error = false
		e.ErrorCode = 0
		e.Data = data
		return e
	})
}

// Succeed writes data at key and ends loading
func (c *Cache) Succeed(key Key, data interface{}) {
	c.update(key, func(e Entry) Entry {
		return Entry{Data: data}
	})
}

// Fail records an error at key and ends loading
func (c *Cache) Fail(key Key, code int) {
	c.update(key, func(e Entry) Entry {
		e.Loading = false
		e.Error = true
		e.ErrorCode = code
		return e
	})
}

// Set replaces the entry at key
func (c *Cache) Set(key Key, entry Entry) {
	c.update(key, func(Entry) Entry { return entry })
}

func (c *Cache) update(key Key, fn func(Entry) Entry) {
	c.mu.Lock()
	e := fn(c.entries[key])
	c.entries[key] = e
	c.publish(Event{Key: key, Entry: e})
	c.mu.Unlock()
}

// Get returns a copy of the entry at key. The records slice and the record
// maps are copied; values nested inside a record are shared.
func (c *Cache) Get(key Key) (Entry, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	e, ok := c.entries[key]
	e.Data = cloneData(e.Data)
	return e, ok
}

func cloneData(v interface{}) interface{} {
	switch d := v.(type) {
	case model.ListResult:
		return cloneList(d)
	case *model.ListResult:
		if d == nil {
			return d
		}
		out := cloneList(*d)
		return &out
	case model.Record:
		if d == nil {
			return d
		}
		return d.Clone()
	}
	return v
}

func cloneList(l model.ListResult) model.ListResult {
	if l.Records == nil {
		return l
	}
	recs := make([]model.Record, len(l.Records))
	for i, r := range l.Records {
		recs[i] = r.Clone()
	}
	l.Records = recs
	return l
}

// Loading reports whether the entry at key is loading
func (c *Cache) Loading(key Key) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.entries[key].Loading
}

// Errored reports whether the entry at key recorded an error
func (c *Cache) Errored(key Key) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.entries[key].Error
}

// Clear removes the entry at key. Clearing a missing key is a no-op.
func (c *Cache) Clear(key Key) {
	c.mu.Lock()
	if _, ok := c.entries[key]; ok {
		delete(c.entries, key)
		c.publish(Event{Key: key, Cleared: true})
	}
	c.mu.Unlock()
}

// ClearResource removes every entry under resource and method. An empty
// method clears all methods of the resource.
func (c *Cache) ClearResource(resource string, method model.Method) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for k := range c.entries {
		if k.Resource != resource || (method != "" && k.Method != method) {
			continue
		}
		delete(c.entries, k)
		c.publish(Event{Key: k, Cleared: true})
		n++
	}
	return n
}

// Keys returns every key currently stored, sorted for stable output
func (c *Cache) Keys() []Key {
	c.mu.RLock()
	keys := make([]Key, 0, len(c.entries))
	for k := range c.entries {
		keys = append(keys, k)
	}
	c.mu.RUnlock()
	sort.Slice(keys, func(i, j int) bool {
		return keys[i].String() < keys[j].String()
	})
	return keys
}

// Len returns the number of entries
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// Subscribe streams every subsequent write. The returned function removes
// the subscription and closes the channel.
func (c *Cache) Subscribe() (<-chan Event, func()) {
	c.mu.Lock()
	id := c.nextSub
	c.nextSub++
	ch := make(chan Event, subscriberBuffer)
	c.subs[id] = ch
	c.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			c.mu.Lock()
			delete(c.subs, id)
			close(ch)
			c.mu.Unlock()
		})
	}
}

// Dropped returns how many events were discarded for slow subscribers
func (c *Cache) Dropped() int64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.dropped
}

// publish must be called with the write lock held
func (c *Cache) publish(ev Event) {
	for _, ch := range c.subs {
		select {
		case ch <- ev:
		default:
			c.dropped++
		}
	}
}
