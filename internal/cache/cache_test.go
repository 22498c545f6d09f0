package cache

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go-insights-pipeline/internal/model"
)

func TestNewKey_DefaultsID(t *testing.T) {
	k := NewKey("tags", model.MethodList, "")
	assert.Equal(t, DefaultID, k.ID)
	assert.Equal(t, "tags/list/0", k.String())
}

func TestCache_Lifecycle(t *testing.T) {
	c := New()
	k := NewKey("widgets", model.MethodList, "w1")

	c.Begin(k)
	e, ok := c.Get(k)
	require.True(t, ok)
	assert.True(t, e.Loading)
	assert.False(t, e.Error)

	data := model.ListResult{Records: []model.Record{{"id": "a"}}}
	c.Succeed(k, data)
	e, _ = c.Get(k)
	assert.False(t, e.Loading)
	got, ok := e.List()
	require.True(t, ok)
	assert.Equal(t, data, got)
}

func TestCache_FailKeepsAddressAndCode(t *testing.T) {
	c := New()
	k := NewKey("widgets", model.MethodList, "")

	c.Begin(k)
	c.Fail(k, 503)

	e, ok := c.Get(k)
	require.True(t, ok)
	assert.False(t, e.Loading)
	assert.True(t, e.Error)
	assert.Equal(t, 503, e.ErrorCode)
	assert.True(t, c.Errored(k))
}

func TestCache_BeginResetsErrorButKeepsData(t *testing.T) {
	c := New()
	k := NewKey("tags", model.MethodGet, "t1")
	c.Succeed(k, model.Record{"id": "t1"})
	c.Fail(k, 500)

	c.Begin(k)
	e, _ := c.Get(k)
	assert.True(t, e.Loading)
	assert.False(t, e.Error)
	assert.Zero(t, e.ErrorCode)
	rec, ok := e.Record()
	require.True(t, ok)
	assert.Equal(t, "t1", rec["id"])
}

func TestCache_HoldLeavesLoading(t *testing.T) {
	c := New()
	k := NewKey("tickets", model.MethodList, "")
	c.Hold(k, model.ListResult{})
	assert.True(t, c.Loading(k))
}

func TestCache_ClearAndClearResource(t *testing.T) {
	c := New()
	c.Succeed(NewKey("tags", model.MethodList, "a"), nil)
	c.Succeed(NewKey("tags", model.MethodList, "b"), nil)
	c.Succeed(NewKey("tags", model.MethodGet, "c"), nil)
	c.Succeed(NewKey("users", model.MethodList, "a"), nil)

	c.Clear(NewKey("tags", model.MethodList, "a"))
	c.Clear(NewKey("tags", model.MethodList, "missing"))
	assert.Equal(t, 3, c.Len())

	n := c.ClearResource("tags", "")
	assert.Equal(t, 2, n)
	assert.Equal(t, []Key{NewKey("users", model.MethodList, "a")}, c.Keys())
}

func TestCache_SubscribeReceivesWrites(t *testing.T) {
	c := New()
	events, cancel := c.Subscribe()
	defer cancel()

	k := NewKey("tags", model.MethodList, "")
	c.Begin(k)
	c.Succeed(k, nil)
	c.Clear(k)

	ev := <-events
	assert.True(t, ev.Entry.Loading)
	ev = <-events
	assert.False(t, ev.Entry.Loading)
	ev = <-events
	assert.True(t, ev.Cleared)
}

func TestCache_SlowSubscriberDoesNotBlock(t *testing.T) {
	c := New()
	_, cancel := c.Subscribe()
	defer cancel()

	k := NewKey("tags", model.MethodList, "")
	for i := 0; i < subscriberBuffer+10; i++ {
		c.Succeed(k, i)
	}
	assert.Equal(t, int64(10), c.Dropped())
}

func TestCache_CancelTwiceIsSafe(t *testing.T) {
	c := New()
	_, cancel := c.Subscribe()
	cancel()
	assert.NotPanics(t, cancel)
}

func TestCache_ConcurrentWriters(t *testing.T) {
	c := New()
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			k := NewKey("tags", model.MethodList, string(rune('a'+i)))
			c.Begin(k)
			c.Succeed(k, i)
		}(i)
	}
	wg.Wait()
	assert.Equal(t, 20, c.Len())
}

func TestCache_GetIsolatesRecords(t *testing.T) {
	c := New()
	k := NewKey("widgets", model.MethodList, "")
	c.Succeed(k, model.ListResult{Records: []model.Record{{"id": "a", "name": "alpha"}}})

	e, _ := c.Get(k)
	got, _ := e.List()
	got.Records[0]["name"] = "changed"
	got.Records[0] = model.Record{"id": "b"}

	e, _ = c.Get(k)
	again, _ := e.List()
	assert.Equal(t, model.Record{"id": "a", "name": "alpha"}, again.Records[0])

	r := NewKey("widgets", model.MethodGet, "a")
	c.Succeed(r, model.Record{"id": "a"})
	e, _ = c.Get(r)
	rec, _ := e.Record()
	rec["id"] = "z"
	e, _ = c.Get(r)
	rec, _ = e.Record()
	assert.Equal(t, "a", rec["id"])
}
