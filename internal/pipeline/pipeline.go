// Package pipeline drives one logical page fetch: fetch the page, plan which
// foreign keys to resolve, look them up in parallel, join the answers onto
// the records and publish the result to the REST cache.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"net/url"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"go-insights-pipeline/internal/cache"
	"go-insights-pipeline/internal/dispatch"
	"go-insights-pipeline/internal/model"
)

var (
	// ErrPageFailed means the primary fetch failed and nothing was derived
	ErrPageFailed = errors.New("page fetch failed")
	// ErrUnexpected wraps a recovered panic
	ErrUnexpected = errors.New("unexpected pipeline failure")
)

// Options is one run request
type Options struct {
	URI      string        `json:"uri"`
	Method   model.Method  `json:"method,omitempty"`
	Filters  model.Filters `json:"filters,omitempty"`
	ID       string        `json:"id,omitempty"`
	Complete string        `json:"complete,omitempty"`
	Derive   bool          `json:"derive"`
	// DeriveOnly restricts the rules that may fire by field name; nil
	// allows all of them, as does the entry "all".
	DeriveOnly       []string   `json:"derive_only,omitempty"`
	Query            url.Values `json:"-"`
	IsWidget         bool       `json:"is_widget,omitempty"`
	ShowNotification bool       `json:"show_notification,omitempty"`
}

// Result is the outcome of a run
type Result struct {
	Key  cache.Key        `json:"key"`
	Data model.ListResult `json:"data"`
	// Derived lists the rules that fired, in table order
	Derived []string `json:"derived,omitempty"`
	// Unresolved lists the fired rules whose lookups failed; their fields
	// were left as fetched.
	Unresolved []string `json:"unresolved,omitempty"`
	Stats      Stats    `json:"stats"`
}

// EngineOption configures an Engine
type EngineOption func(*Engine)

// WithRules replaces the derivation table
func WithRules(rules []Rule) EngineOption { return func(e *Engine) { e.rules = rules } }

// WithLogger sets the logger
func WithLogger(l *zap.Logger) EngineOption { return func(e *Engine) { e.log = l } }

// WithIDGenerator sets the run id source
func WithIDGenerator(fn func() string) EngineOption { return func(e *Engine) { e.newID = fn } }

// Engine runs pagination/derivation requests through a dispatcher
type Engine struct {
	dispatcher *dispatch.Dispatcher
	rules      []Rule
	log        *zap.Logger
	newID      func() string
}

// NewEngine creates an engine with the default derivation table
func NewEngine(d *dispatch.Dispatcher, opts ...EngineOption) *Engine {
	e := &Engine{dispatcher: d, newID: uuid.NewString}
	for _, opt := range opts {
		opt(e)
	}
	if e.log == nil {
		e.log = zap.NewNop()
	}
	e.log = e.log.Named("pipeline")
	if e.rules == nil {
		e.rules = DefaultRules(e.log)
	}
	return e
}

// Dispatcher returns the dispatcher runs go through
func (e *Engine) Dispatcher() *dispatch.Dispatcher { return e.dispatcher }

// Rules returns the derivation table
func (e *Engine) Rules() []Rule { return e.rules }

// scratchID returns a cache id private to one lookup of one run
func scratchID(runID, rule, lookup string) string {
	return "scratch:" + runID + ":" + rule + ":" + lookup
}

type planned struct {
	rule    Rule
	lookups []Lookup
	calls   []*dispatch.Call
}

type outcome struct {
	entry cache.Entry
	err   error
}

// Run executes one fetch/derive/publish cycle. The completion signal in
// opts is emitted exactly once, on success, on failure and on cancellation.
// A cancelled run leaves its primary slot failed with code 0 rather than
// loading.
func (e *Engine) Run(ctx context.Context, opts Options) (Result, error) {
	return e.run(ctx, opts, e.rules)
}

func (e *Engine) run(ctx context.Context, opts Options, table []Rule) (res Result, err error) {
	if err := validateOptions(opts); err != nil {
		return Result{}, err
	}

	cch := e.dispatcher.Cache()
	runID := e.newID()
	key := cache.NewKey(opts.URI, model.MethodList, opts.ID)
	res.Key = key
	t := newTracker(runID)

	signalled := false
	complete := func() {
		if !signalled && opts.Complete != "" {
			signalled = true
			e.dispatcher.Signals().Emit(opts.Complete)
		}
	}
	var scratch []*dispatch.Call

	defer func() {
		if r := recover(); r != nil {
			e.log.Error("pagination run panicked",
				zap.String("area", "pagination"),
				zap.String("run_id", runID),
				zap.Any("payload", opts),
				zap.Any("panic", r))
			cch.Fail(key, 0)
			e.cleanup(scratch)
			complete()
			res.Stats = t.finish(len(res.Data.Records))
			err = fmt.Errorf("%w: %v", ErrUnexpected, r)
		}
	}()

	// 1. fetch
	endFetch := t.begin(StageFetch)
	req := dispatch.Request{
		URI:              opts.URI,
		Method:           model.MethodList,
		Filters:          opts.Filters,
		ID:               opts.ID,
		Query:            opts.Query,
		IsWidget:         opts.IsWidget,
		ShowNotification: opts.ShowNotification,
		Hold:             opts.Derive,
	}
	if !opts.Derive {
		req.Complete = opts.Complete
		signalled = true
	}
	primary := e.dispatcher.Dispatch(ctx, req)
	entry, ferr := primary.Wait(ctx)
	if ferr != nil {
		endFetch(0, "failed")
		res.Stats = t.finish(0)
		if ctxErr := ctx.Err(); ctxErr != nil {
			if opts.Derive {
				e.settle(primary)
				complete()
			}
			return res, ctxErr
		}
		complete()
		e.log.Warn("primary fetch failed", zap.String("key", key.String()), zap.Error(ferr))
		return res, fmt.Errorf("%w: %s: %w", ErrPageFailed, key, ferr)
	}
	data, _ := entry.List()
	res.Data = data
	endFetch(len(data.Records), "completed")

	if !opts.Derive {
		res.Stats = t.finish(len(data.Records))
		return res, nil
	}

	// 2. inspect, 3. plan
	if len(data.Records) == 0 {
		t.skip(StagePlan)
		return e.publish(res, t, data, complete), nil
	}
	endPlan := t.begin(StagePlan)
	rules := Plan(table, data.Records[0], opts.DeriveOnly)
	endPlan(len(rules), "completed")
	if len(rules) == 0 {
		return e.publish(res, t, data, complete), nil
	}

	// 4. collect, 5. fan-out: every lookup is dispatched before any wait
	endFanout := t.begin(StageFanout)
	plans := make([]*planned, 0, len(rules))
	for _, r := range rules {
		p := &planned{rule: r, lookups: r.Lookups(data.Records)}
		for _, l := range p.lookups {
			call := e.dispatcher.Dispatch(ctx, dispatch.Request{
				URI:     l.URI,
				Method:  model.MethodList,
				Filters: l.Filters,
				ID:      scratchID(runID, r.Name, l.Name),
			})
			p.calls = append(p.calls, call)
			scratch = append(scratch, call)
		}
		plans = append(plans, p)
		res.Derived = append(res.Derived, r.Name)
	}
	t.dispatched(len(scratch))

	// 6. fan-in: the join starts only after every lookup completed
	outcomes := make([]outcome, len(scratch))
	var g errgroup.Group
	for i, call := range scratch {
		i, call := i, call
		g.Go(func() error {
			entry, err := call.Wait(ctx)
			if ctxErr := ctx.Err(); ctxErr != nil {
				return ctxErr
			}
			t.awaited()
			outcomes[i] = outcome{entry: entry, err: err}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		endFanout(len(scratch), "failed")
		e.cleanup(scratch)
		cch.Fail(key, 0)
		complete()
		res.Stats = t.finish(len(data.Records))
		return res, err
	}
	endFanout(len(scratch), "completed")

	// 7. join
	endJoin := t.begin(StageJoin)
	records := data.Records
	n := 0
	for _, p := range plans {
		found := make(Lookups, len(p.lookups))
		failed := false
		for j, l := range p.lookups {
			o := outcomes[n+j]
			if o.err != nil || o.entry.Error {
				failed = true
				e.log.Warn("derivation lookup failed",
					zap.String("rule", p.rule.Name),
					zap.String("uri", l.URI),
					zap.Int("code", o.entry.ErrorCode),
					zap.Error(o.err))
				continue
			}
			found[l.Name], _ = o.entry.List()
		}
		n += len(p.lookups)
		if failed {
			res.Unresolved = append(res.Unresolved, p.rule.Name)
			continue
		}
		records = p.rule.Join(records, found)
	}
	endJoin(len(records), "completed")

	// 8. cleanup
	endCleanup := t.begin(StageCleanup)
	e.cleanup(scratch)
	endCleanup(len(scratch), "completed")

	// 9. publish
	return e.publish(res, t, model.ListResult{Records: records, Metadata: data.Metadata}, complete), nil
}

func (e *Engine) publish(res Result, t *tracker, data model.ListResult, complete func()) Result {
	end := t.begin(StagePublish)
	e.dispatcher.Cache().Succeed(res.Key, data)
	end(len(data.Records), "completed")
	complete()
	res.Data = data
	res.Stats = t.finish(len(data.Records))
	return res
}

// settle fails a held primary slot once its abandoned call lands, so the
// slot does not stay loading.
func (e *Engine) settle(c *dispatch.Call) {
	cch := e.dispatcher.Cache()
	fail := func() {
		if cch.Loading(c.Key) {
			cch.Fail(c.Key, 0)
		}
	}
	select {
	case <-c.Done():
		fail()
	default:
		go func() {
			<-c.Done()
			fail()
		}()
	}
}

// cleanup clears every scratch slot; slots whose call is still in flight
// are cleared once it lands.
func (e *Engine) cleanup(calls []*dispatch.Call) {
	cch := e.dispatcher.Cache()
	for _, c := range calls {
		select {
		case <-c.Done():
			cch.Clear(c.Key)
		default:
			go func(c *dispatch.Call) {
				<-c.Done()
				cch.Clear(c.Key)
			}(c)
		}
	}
}
