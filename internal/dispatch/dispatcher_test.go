package dispatch

import (
	"context"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"go-insights-pipeline/internal/backend/backendtest"
	"go-insights-pipeline/internal/cache"
	"go-insights-pipeline/internal/model"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func newDispatcher(t *testing.T, opts ...Option) (*Dispatcher, *backendtest.Fake) {
	t.Helper()
	fake := backendtest.New()
	d := New(cache.New(), fake, opts...)
	t.Cleanup(d.Drain)
	return d, fake
}

func TestDispatch_MarksLoadingBeforeReturning(t *testing.T) {
	d, fake := newDispatcher(t)
	fake.Gate("widgets")

	call := d.Dispatch(context.Background(), Request{URI: "widgets", Method: model.MethodList})
	assert.True(t, d.Cache().Loading(call.Key))

	fake.Release("widgets")
	entry, err := call.Wait(context.Background())
	require.NoError(t, err)
	assert.False(t, entry.Loading)
	assert.False(t, d.Cache().Loading(call.Key))
}

func TestDispatch_ListWritesDataAndEmitsOnce(t *testing.T) {
	d, fake := newDispatcher(t)
	fake.ListReturns("widgets", model.Record{"id": "w1"}, model.Record{"id": "w2"})

	call := d.Dispatch(context.Background(), Request{
		URI:      "widgets",
		Filters:  model.Filters{"page": 0, "page_size": 50},
		ID:       "dash-1",
		Complete: "WIDGETS_DONE",
	})
	require.NoError(t, d.Signals().Take(context.Background(), "WIDGETS_DONE"))

	assert.Equal(t, cache.NewKey("widgets", model.MethodList, "dash-1"), call.Key)
	entry, ok := d.Cache().Get(call.Key)
	require.True(t, ok)
	res, ok := entry.List()
	require.True(t, ok)
	assert.Len(t, res.Records, 2)
	assert.Equal(t, 1, d.Signals().Count("WIDGETS_DONE"))
	assert.Len(t, fake.Calls(), 1)
}

func TestDispatch_NoSignalWhenCompleteEmpty(t *testing.T) {
	d, _ := newDispatcher(t)
	call := d.Dispatch(context.Background(), Request{URI: "tags"})
	_, err := call.Wait(context.Background())
	require.NoError(t, err)
	assert.Zero(t, d.Signals().Count(""))
}

func TestDispatch_FailureRecordedAtSameAddress(t *testing.T) {
	var notices []Notice
	var mu sync.Mutex
	d, fake := newDispatcher(t, WithNotifier(NotifierFunc(func(n Notice) {
		mu.Lock()
		defer mu.Unlock()
		notices = append(notices, n)
	})))
	fake.ListFails("tags", 502)

	call := d.Dispatch(context.Background(), Request{URI: "tags", ShowNotification: true, Complete: "TAGS"})
	entry, err := call.Wait(context.Background())
	require.Error(t, err)
	assert.True(t, entry.Error)
	assert.Equal(t, 502, entry.ErrorCode)

	cached, _ := d.Cache().Get(call.Key)
	assert.True(t, cached.Error)
	assert.False(t, cached.Loading)
	require.NoError(t, d.Signals().Take(context.Background(), "TAGS"))

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, notices, 1)
	assert.Equal(t, LevelError, notices[0].Level)
	assert.Equal(t, 502, notices[0].Code)
}

func TestDispatch_WidgetFailureDropsStaleData(t *testing.T) {
	d, fake := newDispatcher(t)
	key := cache.NewKey("widgets", model.MethodList, "w")
	d.Cache().Succeed(key, model.ListResult{Records: []model.Record{{"id": "old"}}})
	fake.ListFails("widgets", 500)

	_, err := d.Dispatch(context.Background(), Request{URI: "widgets", ID: "w", IsWidget: true}).Wait(context.Background())
	require.Error(t, err)
	entry, _ := d.Cache().Get(key)
	assert.Nil(t, entry.Data)
}

func TestDispatch_HoldKeepsLoading(t *testing.T) {
	d, fake := newDispatcher(t)
	fake.ListReturns("tickets", model.Record{"id": "1"})

	call := d.Dispatch(context.Background(), Request{URI: "tickets", Hold: true})
	entry, err := call.Wait(context.Background())
	require.NoError(t, err)
	assert.True(t, entry.Loading)
	assert.True(t, d.Cache().Loading(call.Key))
}

func TestDispatcher_GetCreateUpdateDelete(t *testing.T) {
	d, fake := newDispatcher(t)
	ctx := context.Background()
	fake.PutRecord("dashboards", "7", model.Record{"id": "7", "name": "Ops"})

	rec, err := d.Get(ctx, Request{URI: "dashboards", ID: "7"})
	require.NoError(t, err)
	assert.Equal(t, "Ops", rec["name"])
	assert.False(t, d.Cache().Loading(cache.NewKey("dashboards", model.MethodGet, "7")))

	created, err := d.Create(ctx, Request{URI: "dashboard_reports", Payload: map[string]string{"name": "r"}})
	require.NoError(t, err)
	assert.NotEmpty(t, created["id"])
	assert.Len(t, fake.Created("dashboard_reports"), 1)

	_, err = d.Update(ctx, Request{URI: "dashboards", ID: "7", Payload: map[string]string{"name": "New"}})
	require.NoError(t, err)

	require.NoError(t, d.Delete(ctx, Request{URI: "dashboards", ID: "7"}))
	_, err = d.Get(ctx, Request{URI: "dashboards", ID: "7"})
	assert.Error(t, err)
}

func TestCall_WaitHonorsContext(t *testing.T) {
	d, fake := newDispatcher(t)
	fake.Gate("slow")
	defer fake.Release("slow")

	call := d.Dispatch(context.Background(), Request{URI: "slow"})
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	_, err := call.Wait(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.True(t, d.Cache().Loading(call.Key))
}

func TestDispatch_UntakenSignalsStayBounded(t *testing.T) {
	signals := NewSignalsWithRetention(16)
	d, fake := newDispatcher(t, WithSignals(signals))
	fake.ListReturns("widgets", model.Record{"id": "w1"})

	for i := 0; i < 500; i++ {
		d.Dispatch(context.Background(), Request{URI: "widgets", ID: strconv.Itoa(i), Complete: "DONE_" + strconv.Itoa(i)})
	}
	d.Drain()

	signals.mu.Lock()
	defer signals.mu.Unlock()
	assert.LessOrEqual(t, len(signals.pending), 16)
	assert.LessOrEqual(t, len(signals.emitted), 16)
}
