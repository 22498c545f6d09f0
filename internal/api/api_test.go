package api

import (
	"bytes"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/bytedance/sonic"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go-insights-pipeline/internal/api/handler"
	"go-insights-pipeline/internal/backend/backendtest"
	"go-insights-pipeline/internal/cache"
	"go-insights-pipeline/internal/dispatch"
	"go-insights-pipeline/internal/export"
	"go-insights-pipeline/internal/model"
	"go-insights-pipeline/internal/pipeline"
	"go-insights-pipeline/internal/store"
	"go-insights-pipeline/pkg/router"
	"go-insights-pipeline/pkg/utils"
)

type testServer struct {
	srv   *httptest.Server
	fake  *backendtest.Fake
	cache *cache.Cache
	disp  *dispatch.Dispatcher
	jobs  *export.Service
	hub   *Hub
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	st, err := store.Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	fake := backendtest.New()
	c := cache.New()
	hub := NewHub(nil)
	d := dispatch.New(c, fake, dispatch.WithNotifier(hub))
	t.Cleanup(d.Drain)

	engine := pipeline.NewEngine(d)
	jobs := export.NewService(export.NewExporter(engine, nil), st, utils.NewOutputManager(t.TempDir()))
	t.Cleanup(jobs.Wait)

	r := router.New()
	RegisterRoutes(r, handler.New(engine, jobs, st, nil), hub)
	srv := httptest.NewServer(r.Handler())
	t.Cleanup(srv.Close)
	// websocket handlers must return before the server can close
	t.Cleanup(hub.Close)

	return &testServer{srv: srv, fake: fake, cache: c, disp: d, jobs: jobs, hub: hub}
}

func (s *testServer) do(t *testing.T, method, path, body string) (int, []byte, http.Header) {
	t.Helper()
	var rd io.Reader
	if body != "" {
		rd = strings.NewReader(body)
	}
	req, err := http.NewRequest(method, s.srv.URL+path, rd)
	require.NoError(t, err)
	resp, err := s.srv.Client().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, data, resp.Header
}

func decode(t *testing.T, data []byte, v interface{}) {
	t.Helper()
	require.NoError(t, sonic.Unmarshal(data, v), string(data))
}

func TestLists_RunsEngineAndCaches(t *testing.T) {
	s := newTestServer(t)
	s.fake.ListReturns("tickets", model.Record{"id": "T-1"}, model.Record{"id": "T-2"})

	code, body, _ := s.do(t, http.MethodPost, "/api/v1/lists", `{"uri":"tickets","filters":{"page":0}}`)
	require.Equal(t, http.StatusOK, code, string(body))

	var res pipeline.Result
	decode(t, body, &res)
	assert.Equal(t, cache.NewKey("tickets", model.MethodList, ""), res.Key)
	assert.Len(t, res.Data.Records, 2)

	entry, ok := s.cache.Get(res.Key)
	require.True(t, ok)
	assert.False(t, entry.Loading)

	code, body, _ = s.do(t, http.MethodGet, "/api/v1/cache", "")
	require.Equal(t, http.StatusOK, code)
	var summary handler.CacheSummary
	decode(t, body, &summary)
	assert.Contains(t, summary.Keys, res.Key)
}

func TestLists_Errors(t *testing.T) {
	s := newTestServer(t)
	s.fake.ListFails("broken", http.StatusServiceUnavailable)

	tests := []struct {
		name  string
		body  string
		code  int
		field string
		errc  int
	}{
		{"missing uri", `{"filters":{}}`, http.StatusBadRequest, "uri", 0},
		{"invalid json", `{"uri":`, http.StatusBadRequest, "", 0},
		{"empty body", ``, http.StatusBadRequest, "", 0},
		{"backend failure", `{"uri":"broken"}`, http.StatusBadGateway, "", http.StatusServiceUnavailable},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code, body, _ := s.do(t, http.MethodPost, "/api/v1/lists", tt.body)
			assert.Equal(t, tt.code, code)
			var resp handler.ErrorResponse
			decode(t, body, &resp)
			assert.NotEmpty(t, resp.Error)
			assert.Equal(t, tt.field, resp.Field)
			assert.Equal(t, tt.errc, resp.Code)
		})
	}
}

func TestLists_GetFetchesRecord(t *testing.T) {
	s := newTestServer(t)
	s.fake.PutRecord("users", "u1", model.Record{"name": "Ann"})

	code, body, _ := s.do(t, http.MethodPost, "/api/v1/lists", `{"uri":"users","method":"get","id":"u1"}`)
	require.Equal(t, http.StatusOK, code, string(body))
	var rec handler.RecordResponse
	decode(t, body, &rec)
	assert.Equal(t, "Ann", rec.Data["name"])

	code, body, _ = s.do(t, http.MethodGet, "/api/v1/cache/entry?resource=users&method=get&id=u1", "")
	require.Equal(t, http.StatusOK, code)
	var entry cache.Entry
	decode(t, body, &entry)
	assert.False(t, entry.Error)

	code, body, _ = s.do(t, http.MethodPost, "/api/v1/lists", `{"uri":"users","method":"get","id":"missing"}`)
	assert.Equal(t, http.StatusBadGateway, code)
	var resp handler.ErrorResponse
	decode(t, body, &resp)
	assert.Equal(t, http.StatusNotFound, resp.Code)
}

func TestLists_MethodNotAllowed(t *testing.T) {
	s := newTestServer(t)
	code, _, _ := s.do(t, http.MethodGet, "/api/v1/lists", "")
	assert.Equal(t, http.StatusMethodNotAllowed, code)
}

func TestCache_EntryAndClear(t *testing.T) {
	s := newTestServer(t)
	s.cache.Succeed(cache.NewKey("tickets", model.MethodList, ""), model.ListResult{})
	s.cache.Succeed(cache.NewKey("tickets", model.MethodList, "w1"), model.ListResult{})

	code, _, _ := s.do(t, http.MethodGet, "/api/v1/cache/entry", "")
	assert.Equal(t, http.StatusBadRequest, code)
	code, _, _ = s.do(t, http.MethodGet, "/api/v1/cache/entry?resource=nope", "")
	assert.Equal(t, http.StatusNotFound, code)

	var cleared handler.ClearResponse
	code, body, _ := s.do(t, http.MethodPost, "/api/v1/cache/clear", `{"resource":"tickets","id":"w1"}`)
	require.Equal(t, http.StatusOK, code)
	decode(t, body, &cleared)
	assert.Equal(t, 1, cleared.Cleared)

	code, body, _ = s.do(t, http.MethodPost, "/api/v1/cache/clear", `{"resource":"tickets","id":"w1"}`)
	require.Equal(t, http.StatusOK, code)
	decode(t, body, &cleared)
	assert.Equal(t, 0, cleared.Cleared)

	code, body, _ = s.do(t, http.MethodPost, "/api/v1/cache/clear", `{"resource":"tickets","all":true}`)
	require.Equal(t, http.StatusOK, code)
	decode(t, body, &cleared)
	assert.Equal(t, 1, cleared.Cleared)
	assert.Zero(t, s.cache.Len())

	code, _, _ = s.do(t, http.MethodPost, "/api/v1/cache/clear", `{"resource":"tickets","method":"bogus"}`)
	assert.Equal(t, http.StatusBadRequest, code)
}

func TestExports_Lifecycle(t *testing.T) {
	s := newTestServer(t)
	s.fake.ListReturns("tickets", model.Record{"key": "K-1"})

	code, body, _ := s.do(t, http.MethodPost, "/api/v1/exports", `{"uri":"tickets","columns":[{"title":"Key","key":"key"}]}`)
	require.Equal(t, http.StatusAccepted, code, string(body))
	var sub handler.SubmitResponse
	decode(t, body, &sub)
	require.NotEmpty(t, sub.JobID)
	assert.Equal(t, store.StatusPending, sub.Status)
	s.jobs.Wait()

	code, body, _ = s.do(t, http.MethodGet, "/api/v1/exports/"+sub.JobID, "")
	require.Equal(t, http.StatusOK, code)
	var job store.Job
	decode(t, body, &job)
	assert.Equal(t, store.StatusCompleted, job.Status)
	require.NotNil(t, job.Result)
	assert.Equal(t, 1, job.Result.RecordCount)

	code, body, _ = s.do(t, http.MethodGet, "/api/v1/exports", "")
	require.Equal(t, http.StatusOK, code)
	var jobs []store.Job
	decode(t, body, &jobs)
	assert.Len(t, jobs, 1)

	code, body, _ = s.do(t, http.MethodGet, "/api/v1/exports/"+sub.JobID+"/files", "")
	require.Equal(t, http.StatusOK, code)
	var files []handler.FileInfo
	decode(t, body, &files)
	require.Len(t, files, 1)
	assert.Equal(t, "tickets-drilldown.csv", files[0].Name)

	code, body, hdr := s.do(t, http.MethodGet, files[0].DownloadURL, "")
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "Key\nK-1\n", string(body))
	assert.Equal(t, "text/csv", hdr.Get("Content-Type"))
	assert.Contains(t, hdr.Get("Content-Disposition"), "tickets-drilldown.csv")

	code, body, _ = s.do(t, http.MethodGet, "/api/v1/exports/"+sub.JobID+"/logs", "")
	require.Equal(t, http.StatusOK, code)
	var logs []model.LogEntry
	decode(t, body, &logs)
	assert.Len(t, logs, 2)

	code, body, _ = s.do(t, http.MethodGet, "/api/v1/exports/"+sub.JobID+"/errors", "")
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "[]", string(body))
}

func TestExports_FailedJobKeepsError(t *testing.T) {
	s := newTestServer(t)
	s.fake.ListFails("tickets", http.StatusInternalServerError)

	code, body, _ := s.do(t, http.MethodPost, "/api/v1/exports", `{"uri":"tickets"}`)
	require.Equal(t, http.StatusAccepted, code)
	var sub handler.SubmitResponse
	decode(t, body, &sub)
	s.jobs.Wait()

	code, body, _ = s.do(t, http.MethodGet, "/api/v1/exports/"+sub.JobID+"/errors", "")
	require.Equal(t, http.StatusOK, code)
	var errs []model.ErrorDetail
	decode(t, body, &errs)
	require.Len(t, errs, 1)
	assert.Contains(t, errs[0].Message, export.ErrExportAborted.Error())
}

func TestExports_NotFoundAndInvalid(t *testing.T) {
	s := newTestServer(t)

	for _, path := range []string{
		"/api/v1/exports/nope",
		"/api/v1/exports/nope/logs",
		"/api/v1/exports/nope/errors",
		"/api/v1/exports/nope/files",
		"/api/v1/exports/nope/files/a.csv",
	} {
		code, _, _ := s.do(t, http.MethodGet, path, "")
		assert.Equal(t, http.StatusNotFound, code, path)
	}

	code, body, _ := s.do(t, http.MethodPost, "/api/v1/exports", `{"kind":"pdf","uri":"tickets"}`)
	assert.Equal(t, http.StatusBadRequest, code)
	var resp handler.ErrorResponse
	decode(t, body, &resp)
	assert.Equal(t, "kind", resp.Field)
}

func TestSampleUsers(t *testing.T) {
	s := newTestServer(t)
	code, body, hdr := s.do(t, http.MethodGet, export.SampleUsersPath, "")
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "text/csv", hdr.Get("Content-Type"))
	assert.Contains(t, hdr.Get("Content-Disposition"), "sample_user.csv")
	assert.True(t, bytes.HasPrefix(body, []byte("Name,Email")))
}

func TestSwaggerDoc(t *testing.T) {
	s := newTestServer(t)
	code, body, _ := s.do(t, http.MethodGet, "/swagger/doc.json", "")
	require.Equal(t, http.StatusOK, code)
	assert.Contains(t, string(body), `"/exports/{id}/files/{filename}"`)
}

func dial(t *testing.T, s *testServer) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(s.srv.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	require.Eventually(t, func() bool { return s.hub.Clients() == 1 }, time.Second, 10*time.Millisecond)
	return conn
}

// next reads messages until one satisfies match
func next(t *testing.T, conn *websocket.Conn, match func(Message) bool) Message {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	for {
		_, data, err := conn.ReadMessage()
		require.NoError(t, err)
		var msg Message
		decode(t, data, &msg)
		if match(msg) {
			return msg
		}
	}
}

func TestHub_StreamsCacheWritesAndSignals(t *testing.T) {
	s := newTestServer(t)
	t.Cleanup(s.hub.Forward(s.cache, s.disp.Signals()))

	conn := dial(t, s)
	s.fake.ListReturns("tickets", model.Record{"id": "T-1"})
	code, _, _ := s.do(t, http.MethodPost, "/api/v1/lists", `{"uri":"tickets","complete":"tickets-ready"}`)
	require.Equal(t, http.StatusOK, code)

	msg := next(t, conn, func(m Message) bool {
		return m.Type == MessageCache && m.Event != nil && !m.Event.Entry.Loading
	})
	assert.Equal(t, "tickets", msg.Event.Key.Resource)

	msg = next(t, conn, func(m Message) bool { return m.Type == MessageSignal })
	assert.Equal(t, "tickets-ready", msg.Signal)
}

func TestHub_ForwardsNotices(t *testing.T) {
	s := newTestServer(t)
	conn := dial(t, s)

	s.hub.Notify(dispatch.Notice{Level: dispatch.LevelInfo, Message: "row cap reached"})
	msg := next(t, conn, func(m Message) bool { return m.Type == MessageNotice })
	require.NotNil(t, msg.Notice)
	assert.Equal(t, "row cap reached", msg.Notice.Message)

	conn.Close()
	assert.Eventually(t, func() bool { return s.hub.Clients() == 0 }, time.Second, 10*time.Millisecond)
}
