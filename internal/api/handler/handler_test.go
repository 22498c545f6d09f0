package handler

import (
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/bytedance/sonic"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go-insights-pipeline/internal/backend"
	"go-insights-pipeline/internal/export"
	"go-insights-pipeline/internal/pipeline"
	"go-insights-pipeline/internal/store"
)

func TestFail_MapsErrors(t *testing.T) {
	h := New(nil, nil, nil, nil)
	upstream := &backend.APIError{StatusCode: 503, URI: "tickets"}

	tests := []struct {
		name string
		err  error
		want int
		resp ErrorResponse
	}{
		{
			name: "validation",
			err:  &pipeline.ValidationError{Field: "uri", Reason: "required"},
			want: http.StatusBadRequest,
			resp: ErrorResponse{Error: "required", Field: "uri"},
		},
		{
			name: "missing job",
			err:  fmt.Errorf("lookup: %w", store.ErrJobNotFound),
			want: http.StatusNotFound,
		},
		{
			name: "page failure keeps upstream code",
			err:  fmt.Errorf("%w: tickets: %w", pipeline.ErrPageFailed, upstream),
			want: http.StatusBadGateway,
			resp: ErrorResponse{Code: 503},
		},
		{
			name: "aborted export",
			err:  fmt.Errorf("%w: tickets page 2: %w", export.ErrExportAborted, errors.New("reset")),
			want: http.StatusBadGateway,
		},
		{
			name: "anything else",
			err:  errors.New("disk full"),
			want: http.StatusInternalServerError,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			h.fail(rec, tt.err)
			assert.Equal(t, tt.want, rec.Code)
			assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

			var got ErrorResponse
			require.NoError(t, sonic.Unmarshal(rec.Body.Bytes(), &got))
			assert.NotEmpty(t, got.Error)
			assert.Equal(t, tt.resp.Field, got.Field)
			assert.Equal(t, tt.resp.Code, got.Code)
			if tt.resp.Error != "" {
				assert.Equal(t, tt.resp.Error, got.Error)
			}
		})
	}
}

func TestReadJSON(t *testing.T) {
	var v struct {
		URI string `json:"uri"`
	}
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"uri":"tickets"}`))
	require.NoError(t, readJSON(req, &v))
	assert.Equal(t, "tickets", v.URI)

	req = httptest.NewRequest(http.MethodPost, "/", strings.NewReader(""))
	assert.EqualError(t, readJSON(req, &v), "empty request body")

	req = httptest.NewRequest(http.MethodPost, "/", strings.NewReader("{"))
	assert.Error(t, readJSON(req, &v))
}
