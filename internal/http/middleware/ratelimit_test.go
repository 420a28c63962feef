package middleware_test

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/example/ridedispatch/internal/http/middleware"
)

func newLimitedHandler(t *testing.T, read, write middleware.RateConfig) http.Handler {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	limiter := middleware.NewRateLimiter(client, read, write)
	return limiter.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
}

func doRequest(h http.Handler, method string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, "/v1/requests", nil)
	req.Header.Set("X-Client-ID", "passenger-1")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestWriteBurstExhaustion(t *testing.T) {
	h := newLimitedHandler(t,
		middleware.RateConfig{Rate: 100, Burst: 100},
		middleware.RateConfig{Rate: 1, Burst: 2},
	)

	require.Equal(t, http.StatusOK, doRequest(h, http.MethodPost).Code)
	require.Equal(t, http.StatusOK, doRequest(h, http.MethodPost).Code)

	rec := doRequest(h, http.MethodPost)
	require.Equal(t, http.StatusTooManyRequests, rec.Code)
	require.NotEmpty(t, rec.Header().Get("Retry-After"))
}

func TestReadBucketIndependentOfWrites(t *testing.T) {
	h := newLimitedHandler(t,
		middleware.RateConfig{Rate: 100, Burst: 100},
		middleware.RateConfig{Rate: 1, Burst: 1},
	)

	require.Equal(t, http.StatusOK, doRequest(h, http.MethodPost).Code)
	require.Equal(t, http.StatusTooManyRequests, doRequest(h, http.MethodPost).Code)

	// Reads draw from their own bucket and still pass.
	require.Equal(t, http.StatusOK, doRequest(h, http.MethodGet).Code)
}

func TestNilLimiterPassesThrough(t *testing.T) {
	limiter := middleware.NewRateLimiter(nil, middleware.RateConfig{}, middleware.RateConfig{})
	h := limiter.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	require.Equal(t, http.StatusOK, doRequest(h, http.MethodPost).Code)
}
