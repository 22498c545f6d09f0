// Package dispatch issues backend calls and records their loading, error and
// data state in the REST cache. Every call returns a future; callers that
// prefer named completion can block on the Signals bus instead.
package dispatch

import (
	"context"
	"fmt"
	"net/url"
	"sync"

	"go.uber.org/zap"

	"go-insights-pipeline/internal/backend"
	"go-insights-pipeline/internal/cache"
	"go-insights-pipeline/internal/model"
)

// Request describes one call: the resource, the method, its filters or
// payload, the cache id and an optional completion signal.
type Request struct {
	URI      string
	Method   model.Method
	Filters  model.Filters
	ID       string
	Complete string
	Query    url.Values
	Payload  interface{}
	// IsWidget drops stale data from the slot when the call fails
	IsWidget         bool
	ShowNotification bool
	// Hold leaves the slot loading after a successful call so a follow-up
	// step can publish the final data.
	Hold bool
}

// Key returns the cache address the request writes to
func (r Request) Key() cache.Key {
	m := r.Method
	if m == "" {
		m = model.MethodList
	}
	return cache.NewKey(r.URI, m, r.ID)
}

// Call is the future of one dispatched request
type Call struct {
	Key      cache.Key
	Complete string

	done  chan struct{}
	entry cache.Entry
	err   error
}

// Done is closed once the cache entry for the call has been written
func (c *Call) Done() <-chan struct{} { return c.done }

// Wait blocks until the call finishes or ctx is done. The returned entry is
// the cache state written by the call; err is the backend error, if any.
func (c *Call) Wait(ctx context.Context) (cache.Entry, error) {
	select {
	case <-c.done:
		return c.entry, c.err
	case <-ctx.Done():
		return cache.Entry{}, ctx.Err()
	}
}

// Err returns the call error. Only meaningful after Done is closed.
func (c *Call) Err() error {
	select {
	case <-c.done:
		return c.err
	default:
		return nil
	}
}

// Option configures a Dispatcher
type Option func(*Dispatcher)

// WithSignals sets the completion bus
func WithSignals(s *Signals) Option { return func(d *Dispatcher) { d.signals = s } }

// WithNotifier sets the notice sink
func WithNotifier(n Notifier) Option { return func(d *Dispatcher) { d.notifier = n } }

// WithLogger sets the logger
func WithLogger(l *zap.Logger) Option { return func(d *Dispatcher) { d.log = l } }

// Dispatcher runs requests against a backend and records them in a cache
type Dispatcher struct {
	cache    *cache.Cache
	backend  backend.Backend
	signals  *Signals
	notifier Notifier
	log      *zap.Logger
	inflight sync.WaitGroup
}

// New creates a dispatcher
func New(c *cache.Cache, b backend.Backend, opts ...Option) *Dispatcher {
	d := &Dispatcher{cache: c, backend: b}
	for _, opt := range opts {
		opt(d)
	}
	if d.signals == nil {
		d.signals = NewSignals()
	}
	if d.log == nil {
		d.log = zap.NewNop()
	}
	if d.notifier == nil {
		d.notifier = LogNotifier{Log: d.log}
	}
	return d
}

// Cache returns the cache calls are recorded in
func (d *Dispatcher) Cache() *cache.Cache { return d.cache }

// Signals returns the completion bus
func (d *Dispatcher) Signals() *Signals { return d.signals }

// Notify forwards a notice to the configured notifier
func (d *Dispatcher) Notify(n Notice) { d.notifier.Notify(stamp(n)) }

// Dispatch marks the request's slot loading before returning, then performs
// the call in the background.
func (d *Dispatcher) Dispatch(ctx context.Context, req Request) *Call {
	if req.Method == "" {
		req.Method = model.MethodList
	}
	call := &Call{Key: req.Key(), Complete: req.Complete, done: make(chan struct{})}
	d.cache.Begin(call.Key)

	d.inflight.Add(1)
	go func() {
		defer d.inflight.Done()
		d.run(ctx, req, call)
	}()
	return call
}

// List dispatches a list call and waits for it
func (d *Dispatcher) List(ctx context.Context, req Request) (model.ListResult, error) {
	req.Method = model.MethodList
	entry, err := d.Dispatch(ctx, req).Wait(ctx)
	if err != nil {
		return model.ListResult{}, err
	}
	res, _ := entry.List()
	return res, nil
}

// Get dispatches a get call and waits for it
func (d *Dispatcher) Get(ctx context.Context, req Request) (model.Record, error) {
	req.Method = model.MethodGet
	entry, err := d.Dispatch(ctx, req).Wait(ctx)
	if err != nil {
		return nil, err
	}
	rec, _ := entry.Record()
	return rec, nil
}

// Create dispatches a create call and waits for it
func (d *Dispatcher) Create(ctx context.Context, req Request) (model.Record, error) {
	req.Method = model.MethodCreate
	entry, err := d.Dispatch(ctx, req).Wait(ctx)
	if err != nil {
		return nil, err
	}
	rec, _ := entry.Record()
	return rec, nil
}

// Update dispatches an update call and waits for it
func (d *Dispatcher) Update(ctx context.Context, req Request) (model.Record, error) {
	req.Method = model.MethodUpdate
	entry, err := d.Dispatch(ctx, req).Wait(ctx)
	if err != nil {
		return nil, err
	}
	rec, _ := entry.Record()
	return rec, nil
}

// Delete dispatches a delete call and waits for it
func (d *Dispatcher) Delete(ctx context.Context, req Request) error {
	req.Method = model.MethodDelete
	_, err := d.Dispatch(ctx, req).Wait(ctx)
	return err
}

// Drain blocks until every dispatched call has finished
func (d *Dispatcher) Drain() { d.inflight.Wait() }

func (d *Dispatcher) run(ctx context.Context, req Request, call *Call) {
	defer func() {
		if r := recover(); r != nil {
			d.log.Error("dispatch panic",
				zap.String("area", "dispatch"),
				zap.String("key", call.Key.String()),
				zap.Any("payload", r))
			d.finish(req, call, nil, fmt.Errorf("dispatch %s: panic: %v", call.Key, r))
		}
	}()

	data, err := d.perform(ctx, req)
	d.finish(req, call, data, err)
}

func (d *Dispatcher) perform(ctx context.Context, req Request) (interface{}, error) {
	switch req.Method {
	case model.MethodList:
		return d.backend.List(ctx, req.URI, req.Filters, req.Query)
	case model.MethodGet:
		return d.backend.Get(ctx, req.URI, req.ID, req.Query)
	case model.MethodCreate:
		return d.backend.Create(ctx, req.URI, req.Payload)
	case model.MethodUpdate:
		return d.backend.Update(ctx, req.URI, req.ID, req.Payload)
	case model.MethodDelete:
		return nil, d.backend.Delete(ctx, req.URI, req.ID)
	default:
		return nil, fmt.Errorf("unsupported method %q", req.Method)
	}
}

// finish writes the outcome to the cache, resolves the future and emits
// the completion signal, in that order.
func (d *Dispatcher) finish(req Request, call *Call, data interface{}, err error) {
	var entry cache.Entry
	if err != nil {
		code := backend.StatusCode(err)
		entry = cache.Entry{Error: true, ErrorCode: code}
		if req.IsWidget {
			d.cache.Set(call.Key, cache.Entry{Error: true, ErrorCode: code})
		} else {
			d.cache.Fail(call.Key, code)
		}
		d.log.Warn("call failed",
			zap.String("key", call.Key.String()),
			zap.Int("code", code),
			zap.Error(err))
		if req.ShowNotification {
			d.Notify(Notice{
				Level:   LevelError,
				Message: fmt.Sprintf("%s %s failed", req.URI, req.Method),
				URI:     req.URI,
				Code:    code,
			})
		}
	} else if req.Hold {
		d.cache.Hold(call.Key, data)
		entry = cache.Entry{Loading: true, Data: data}
	} else {
		d.cache.Succeed(call.Key, data)
		entry = cache.Entry{Data: data}
	}

	call.entry = entry
	call.err = err
	close(call.done)
	d.signals.Emit(req.Complete)
}
