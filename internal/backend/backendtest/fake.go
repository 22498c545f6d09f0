// Package backendtest provides an in-memory Backend for tests.
package backendtest

import (
	"context"
	"fmt"
	"net/url"
	"sync"

	"go-insights-pipeline/internal/backend"
	"go-insights-pipeline/internal/model"
)

// Call is one recorded backend invocation
type Call struct {
	Method  model.Method
	URI     string
	ID      string
	Filters model.Filters
	Body    interface{}
}

// ListFunc answers a list call
type ListFunc func(ctx context.Context, filters model.Filters) (model.ListResult, error)

// Fake is a scriptable Backend. Unscripted list calls return an empty result.
type Fake struct {
	mu      sync.Mutex
	lists   map[string]ListFunc
	records map[string]map[string]model.Record
	calls   []Call
	gates   map[string]chan struct{}
	created map[string][]interface{}
}

// New returns an empty fake backend
func New() *Fake {
	return &Fake{
		lists:   make(map[string]ListFunc),
		records: make(map[string]map[string]model.Record),
		gates:   make(map[string]chan struct{}),
		created: make(map[string][]interface{}),
	}
}

var _ backend.Backend = (*Fake)(nil)

// OnList scripts list calls against uri
func (f *Fake) OnList(uri string, fn ListFunc) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lists[uri] = fn
}

// ListReturns scripts uri to always return the given records
func (f *Fake) ListReturns(uri string, records ...model.Record) {
	f.OnList(uri, func(context.Context, model.Filters) (model.ListResult, error) {
		return model.ListResult{Records: records, Metadata: model.Metadata{TotalCount: len(records)}}, nil
	})
}

// ListFails scripts uri to fail with the given HTTP status
func (f *Fake) ListFails(uri string, status int) {
	f.OnList(uri, func(context.Context, model.Filters) (model.ListResult, error) {
		return model.ListResult{}, &backend.APIError{StatusCode: status, URI: uri}
	})
}

// Paged scripts uri to serve total generated records, honoring page and
// page_size in the filters. gen builds record i.
func (f *Fake) Paged(uri string, total int, gen func(i int) model.Record) {
	f.OnList(uri, func(_ context.Context, filters model.Filters) (model.ListResult, error) {
		size := filters.PageSize()
		if size <= 0 {
			size = 100
		}
		start := filters.Page() * size
		end := start + size
		if end > total {
			end = total
		}
		var recs []model.Record
		for i := start; i < end; i++ {
			recs = append(recs, gen(i))
		}
		hasNext := end < total
		return model.ListResult{Records: recs, Metadata: model.Metadata{TotalCount: total, HasNext: &hasNext}}, nil
	})
}

// Gate makes list calls against uri block until Release(uri) is called
func (f *Fake) Gate(uri string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.gates[uri] = make(chan struct{})
}

// Release unblocks calls gated on uri
func (f *Fake) Release(uri string) {
	f.mu.Lock()
	ch, ok := f.gates[uri]
	delete(f.gates, uri)
	f.mu.Unlock()
	if ok {
		close(ch)
	}
}

// PutRecord stores a record served by Get
func (f *Fake) PutRecord(uri, id string, rec model.Record) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.records[uri] == nil {
		f.records[uri] = make(map[string]model.Record)
	}
	f.records[uri][id] = rec
}

// Calls returns a copy of every recorded call
func (f *Fake) Calls() []Call {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]Call(nil), f.calls...)
}

// CallsTo returns the recorded calls against uri
func (f *Fake) CallsTo(uri string) []Call {
	var out []Call
	for _, c := range f.Calls() {
		if c.URI == uri {
			out = append(out, c)
		}
	}
	return out
}

// Created returns the bodies posted to uri
func (f *Fake) Created(uri string) []interface{} {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]interface{}(nil), f.created[uri]...)
}

func (f *Fake) record(c Call) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, c)
}

// List implements backend.Backend
func (f *Fake) List(ctx context.Context, uri string, filters model.Filters, _ url.Values) (model.ListResult, error) {
	f.record(Call{Method: model.MethodList, URI: uri, Filters: filters.Clone()})

	f.mu.Lock()
	gate := f.gates[uri]
	fn := f.lists[uri]
	f.mu.Unlock()

	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return model.ListResult{}, ctx.Err()
		}
	}
	if fn == nil {
		return model.ListResult{Records: []model.Record{}}, nil
	}
	return fn(ctx, filters)
}

// Get implements backend.Backend
func (f *Fake) Get(_ context.Context, uri, id string, _ url.Values) (model.Record, error) {
	f.record(Call{Method: model.MethodGet, URI: uri, ID: id})
	f.mu.Lock()
	defer f.mu.Unlock()
	rec, ok := f.records[uri][id]
	if !ok {
		return nil, &backend.APIError{StatusCode: 404, URI: uri, Message: fmt.Sprintf("%s not found", id)}
	}
	return rec.Clone(), nil
}

// Create implements backend.Backend
func (f *Fake) Create(_ context.Context, uri string, body interface{}) (model.Record, error) {
	f.record(Call{Method: model.MethodCreate, URI: uri, Body: body})
	f.mu.Lock()
	defer f.mu.Unlock()
	f.created[uri] = append(f.created[uri], body)
	return model.Record{"id": fmt.Sprintf("%s-%d", uri, len(f.created[uri]))}, nil
}

// Update implements backend.Backend
func (f *Fake) Update(_ context.Context, uri, id string, body interface{}) (model.Record, error) {
	f.record(Call{Method: model.MethodUpdate, URI: uri, ID: id, Body: body})
	return model.Record{"id": id}, nil
}

// Delete implements backend.Backend
func (f *Fake) Delete(_ context.Context, uri, id string) error {
	f.record(Call{Method: model.MethodDelete, URI: uri, ID: id})
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.records[uri], id)
	return nil
}
