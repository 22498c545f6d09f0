package pipeline

import (
	"sync"
	"time"

	"go-insights-pipeline/internal/model"
)

// Stage names recorded for each run
const (
	StageFetch   = "fetch"
	StagePlan    = "plan"
	StageFanout  = "fanout"
	StageJoin    = "join"
	StageCleanup = "cleanup"
	StagePublish = "publish"
)

// Stats tracks one pagination/derivation run
type Stats struct {
	RunID             string               `json:"run_id"`
	StartTime         time.Time            `json:"start_time"`
	Duration          time.Duration        `json:"duration"`
	Records           int                  `json:"records"`
	LookupsDispatched int                  `json:"lookups_dispatched"`
	LookupsAwaited    int                  `json:"lookups_awaited"`
	Stages            []model.StageMetrics `json:"stages"`
}

// Stage returns the metrics recorded for name, if any
func (s Stats) Stage(name string) (model.StageMetrics, bool) {
	for _, st := range s.Stages {
		if st.StageName == name {
			return st, true
		}
	}
	return model.StageMetrics{}, false
}

// tracker collects stage metrics; safe for concurrent use
type tracker struct {
	mu    sync.Mutex
	stats Stats
}

func newTracker(runID string) *tracker {
	return &tracker{stats: Stats{RunID: runID, StartTime: time.Now()}}
}

// begin starts a stage and returns the function that ends it
func (t *tracker) begin(name string) func(records int, status string) {
	start := time.Now()
	return func(records int, status string) {
		end := time.Now()
		t.mu.Lock()
		defer t.mu.Unlock()
		t.stats.Stages = append(t.stats.Stages, model.StageMetrics{
			StageName: name,
			StartTime: start,
			EndTime:   end,
			Duration:  end.Sub(start),
			Records:   records,
			Status:    status,
		})
	}
}

func (t *tracker) skip(name string) {
	t.begin(name)(0, "skipped")
}

func (t *tracker) dispatched(n int) {
	t.mu.Lock()
	t.stats.LookupsDispatched += n
	t.mu.Unlock()
}

func (t *tracker) awaited() {
	t.mu.Lock()
	t.stats.LookupsAwaited++
	t.mu.Unlock()
}

func (t *tracker) finish(records int) Stats {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.stats.Records = records
	t.stats.Duration = time.Since(t.stats.StartTime)
	out := t.stats
	out.Stages = append([]model.StageMetrics(nil), t.stats.Stages...)
	return out
}
