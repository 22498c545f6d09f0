package router

import (
	"bufio"
	"context"
	"errors"
	"net"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
)

type HandlerFunc func(http.ResponseWriter, *http.Request)

type paramsKey struct{}

// Params returns the path segments matched by the wildcards of the route
// that served r, in order.
func Params(r *http.Request) []string {
	p, _ := r.Context().Value(paramsKey{}).([]string)
	return p
}

// Param returns the i-th wildcard segment, or "" when absent
func Param(r *http.Request, i int) string {
	p := Params(r)
	if i < 0 || i >= len(p) {
		return ""
	}
	return p[i]
}

type Router struct {
	mux       *http.ServeMux
	routes    map[string]HandlerFunc // key = METHOD:PATH
	paths     map[string]bool        // track registered paths
	wildcards []string               // wildcard paths in registration order
	log       *zap.Logger
}

// Option configures a Router
type Option func(*Router)

// WithLogger logs every request on l
func WithLogger(l *zap.Logger) Option { return func(r *Router) { r.log = l } }

func New(opts ...Option) *Router {
	r := &Router{
		mux:    http.NewServeMux(),
		routes: make(map[string]HandlerFunc),
		paths:  make(map[string]bool),
		log:    zap.NewNop(),
	}
	for _, opt := range opts {
		opt(r)
	}

	// Catch-all handler for every path
	r.mux.HandleFunc("/", func(w http.ResponseWriter, req *http.Request) {
		start := time.Now()
		lrw := &loggingResponseWriter{ResponseWriter: w, statusCode: http.StatusOK}

		r.serve(lrw, req)

		r.log.Info("request",
			zap.String("method", req.Method),
			zap.String("path", req.URL.Path),
			zap.Int("status", lrw.statusCode),
			zap.Duration("duration", time.Since(start)))
	})

	return r
}

func (r *Router) serve(w http.ResponseWriter, req *http.Request) {
	if h, ok := r.routes[req.Method+":"+req.URL.Path]; ok {
		h(w, req)
		return
	}

	// Wildcard routes match in registration order, so register the more
	// specific ones first
	methodMismatch := r.paths[req.URL.Path]
	for _, routePath := range r.wildcards {
		params, ok := matchWildcardRoute(req.URL.Path, routePath)
		if !ok {
			continue
		}
		h, ok := r.routes[req.Method+":"+routePath]
		if !ok {
			methodMismatch = true
			continue
		}
		h(w, req.WithContext(context.WithValue(req.Context(), paramsKey{}, params)))
		return
	}

	if methodMismatch {
		http.Error(w, "Method Not Allowed", http.StatusMethodNotAllowed)
		return
	}
	http.Error(w, "Not Found", http.StatusNotFound)
}

// matchWildcardRoute checks if a request path matches a wildcard route
// pattern and returns the segments matched by its wildcards. A trailing "*"
// matches the rest of the path as one value.
func matchWildcardRoute(requestPath, routePattern string) ([]string, bool) {
	requestSegments := strings.Split(strings.Trim(requestPath, "/"), "/")
	routeSegments := strings.Split(strings.Trim(routePattern, "/"), "/")

	var params []string
	last := len(routeSegments) - 1
	if routeSegments[last] == "*" {
		if len(requestSegments) < len(routeSegments) {
			return nil, false
		}
		for i := 0; i < last; i++ {
			if routeSegments[i] == "*" {
				params = append(params, requestSegments[i])
				continue
			}
			if requestSegments[i] != routeSegments[i] {
				return nil, false
			}
		}
		rest := strings.Join(requestSegments[last:], "/")
		if rest == "" {
			return nil, false
		}
		return append(params, rest), true
	}

	if len(requestSegments) != len(routeSegments) {
		return nil, false
	}
	for i, routeSegment := range routeSegments {
		if routeSegment == "*" {
			if requestSegments[i] == "" {
				return nil, false
			}
			params = append(params, requestSegments[i])
			continue
		}
		if requestSegments[i] != routeSegment {
			return nil, false
		}
	}
	return params, true
}

// --- Register paths ---
func (r *Router) register(method, path string, handler HandlerFunc) {
	key := method + ":" + path
	r.routes[key] = handler
	if !r.paths[path] && strings.Contains(path, "*") {
		r.wildcards = append(r.wildcards, path)
	}
	r.paths[path] = true
}

func (r *Router) GET(path string, handler HandlerFunc)   { r.register(http.MethodGet, path, handler) }
func (r *Router) POST(path string, handler HandlerFunc)  { r.register(http.MethodPost, path, handler) }
func (r *Router) PUT(path string, handler HandlerFunc)   { r.register(http.MethodPut, path, handler) }
func (r *Router) PATCH(path string, handler HandlerFunc) { r.register(http.MethodPatch, path, handler) }
func (r *Router) DELETE(path string, handler HandlerFunc) {
	r.register(http.MethodDelete, path, handler)
}

// Getter methods for testing
func (r *Router) Routes() map[string]HandlerFunc {
	return r.routes
}

func (r *Router) Paths() map[string]bool {
	return r.paths
}

// Handler returns the router as an http.Handler
func (r *Router) Handler() http.Handler { return r.mux }

// --- Start server ---

// Start serves on addr until ctx is done, then shuts down gracefully
func (r *Router) Start(ctx context.Context, addr string, readTimeout, writeTimeout time.Duration) error {
	srv := &http.Server{
		Addr:         addr,
		Handler:      r.mux,
		ReadTimeout:  readTimeout,
		WriteTimeout: writeTimeout,
	}
	errCh := make(chan error, 1)
	go func() {
		r.log.Info("server started", zap.String("addr", addr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return err
		}
		if err := <-errCh; !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	}
}

// --- Logging response writer to capture status codes ---
type loggingResponseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (lrw *loggingResponseWriter) WriteHeader(code int) {
	lrw.statusCode = code
	lrw.ResponseWriter.WriteHeader(code)
}

// Hijack lets websocket upgrades through the logging writer
func (lrw *loggingResponseWriter) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	h, ok := lrw.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, errors.New("response writer does not support hijacking")
	}
	lrw.statusCode = http.StatusSwitchingProtocols
	return h.Hijack()
}

func (lrw *loggingResponseWriter) Flush() {
	if f, ok := lrw.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}
