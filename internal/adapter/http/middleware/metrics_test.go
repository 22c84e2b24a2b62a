package middleware

import (
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordedRequest struct {
	method string
	route  string
	status int
}

type requestMetricsStub struct {
	mu       sync.Mutex
	inFlight int
	finished []recordedRequest
}

func (s *requestMetricsStub) RequestStarted() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.inFlight++
}

func (s *requestMetricsStub) RequestFinished(method, route string, status int, _ time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.inFlight--
	s.finished = append(s.finished, recordedRequest{method: method, route: route, status: status})
}

func TestMetricsMiddlewareRecordsRoutePattern(t *testing.T) {
	stub := &requestMetricsStub{}

	r := chi.NewRouter()
	r.Use(Metrics(stub))
	r.Get("/api/v1/balance", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	})
	r.Post("/api/v1/purchases", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusCreated)
	})

	for _, req := range []*http.Request{
		httptest.NewRequest(http.MethodGet, "/api/v1/balance?base=alpha&equipment_type=rifle", nil),
		httptest.NewRequest(http.MethodPost, "/api/v1/purchases", nil),
		httptest.NewRequest(http.MethodGet, "/nope", nil),
	} {
		r.ServeHTTP(httptest.NewRecorder(), req)
	}

	require.Len(t, stub.finished, 3)
	assert.Equal(t, 0, stub.inFlight)
	assert.Equal(t, recordedRequest{http.MethodGet, "/api/v1/balance", http.StatusTeapot}, stub.finished[0])
	assert.Equal(t, recordedRequest{http.MethodPost, "/api/v1/purchases", http.StatusCreated}, stub.finished[1])
	assert.Equal(t, "unmatched", stub.finished[2].route)
	assert.Equal(t, http.StatusNotFound, stub.finished[2].status)
}

func TestRoutePatternOutsideRouter(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	assert.Equal(t, "unmatched", routePattern(req))
}
