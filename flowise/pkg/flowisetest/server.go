// Package flowisetest provides an in-process mock of a FlowiseAI engine for
// tests and examples. Behaviors are registered per endpoint path and every
// received request is recorded for assertions.
package flowisetest

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"time"

	"github.com/gorilla/mux"
)

// RecordedRequest captures one request received by the engine.
type RecordedRequest struct {
	Path   string
	Header http.Header
	Body   []byte
}

// Engine is a mock flow engine backed by an httptest server.
type Engine struct {
	router *mux.Router
	server *httptest.Server

	mu       sync.Mutex
	requests []RecordedRequest
}

// NewEngine starts a mock engine. Close must be called when done.
func NewEngine() *Engine {
	e := &Engine{router: mux.NewRouter()}
	e.router.Use(e.recordRequests)
	e.server = httptest.NewServer(e.router)
	return e
}

// URL returns the engine's base URL.
func (e *Engine) URL() string {
	return e.server.URL
}

// Close shuts the engine down.
func (e *Engine) Close() {
	e.server.Close()
}

// PredictionPath returns the engine's prediction endpoint for a flow ID,
// matching the path layout of a real FlowiseAI deployment.
func PredictionPath(flowID string) string {
	return "/api/v1/prediction/" + flowID
}

// Handle registers an arbitrary handler for POST requests to path. Register
// all behaviors before issuing requests.
func (e *Engine) Handle(path string, handler http.HandlerFunc) {
	e.router.HandleFunc(path, handler).Methods(http.MethodPost)
}

// RespondJSON makes the engine answer path with a JSON-encoded body.
func (e *Engine) RespondJSON(path string, status int, body any) {
	e.Handle(path, func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_ = json.NewEncoder(w).Encode(body)
	})
}

// RespondRaw makes the engine answer path with a verbatim body.
func (e *Engine) RespondRaw(path string, status int, contentType string, body []byte) {
	e.Handle(path, func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", contentType)
		w.WriteHeader(status)
		_, _ = w.Write(body)
	})
}

// RespondAfter delays for the given duration before answering with JSON.
func (e *Engine) RespondAfter(path string, delay time.Duration, status int, body any) {
	e.Handle(path, func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-time.After(delay):
		case <-r.Context().Done():
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_ = json.NewEncoder(w).Encode(body)
	})
}

// StreamChunks answers path with the chunks written one at a time, flushing
// after each so they arrive incrementally.
func (e *Engine) StreamChunks(path string, chunks []string, interval time.Duration) {
	e.Handle(path, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		w.WriteHeader(http.StatusOK)
		flusher, _ := w.(http.Flusher)
		for _, chunk := range chunks {
			if interval > 0 {
				select {
				case <-time.After(interval):
				case <-r.Context().Done():
					return
				}
			}
			_, _ = io.WriteString(w, chunk)
			if flusher != nil {
				flusher.Flush()
			}
		}
	})
}

// Requests returns a copy of all recorded requests in arrival order.
func (e *Engine) Requests() []RecordedRequest {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]RecordedRequest, len(e.requests))
	copy(out, e.requests)
	return out
}

// LastRequest returns the most recent recorded request, or nil when none
// arrived yet.
func (e *Engine) LastRequest() *RecordedRequest {
	e.mu.Lock()
	defer e.mu.Unlock()
	if len(e.requests) == 0 {
		return nil
	}
	req := e.requests[len(e.requests)-1]
	return &req
}

func (e *Engine) recordRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		r.Body = io.NopCloser(bytes.NewReader(body))

		e.mu.Lock()
		e.requests = append(e.requests, RecordedRequest{
			Path:   r.URL.Path,
			Header: r.Header.Clone(),
			Body:   body,
		})
		e.mu.Unlock()

		next.ServeHTTP(w, r)
	})
}
