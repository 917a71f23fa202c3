package httptransport

import (
	"bytes"
	"log"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestChainOrderAndLogging(t *testing.T) {
	var buf bytes.Buffer
	var order []string
	mark := func(name string) Middleware {
		return func(next http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				order = append(order, name)
				next.ServeHTTP(w, r)
			})
		}
	}
	final := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	})

	handler := Chain(final, RequestLogger(log.New(&buf, "", 0)), mark("outer"), mark("inner"))
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/v1/workouts", nil))

	require.Equal(t, http.StatusTeapot, rr.Code)
	require.Equal(t, []string{"outer", "inner"}, order)
	require.Contains(t, buf.String(), "GET /v1/workouts 418")
}

func TestCORSPreflight(t *testing.T) {
	called := false
	handler := CORS("http://localhost:5173")(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}))

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest(http.MethodOptions, "/v1/workouts", nil))

	require.Equal(t, http.StatusNoContent, rr.Code)
	require.False(t, called)
	require.Equal(t, "http://localhost:5173", rr.Header().Get("Access-Control-Allow-Origin"))
}

func TestNewServerAppliesConfig(t *testing.T) {
	srv := NewServer(DefaultServerConfig(":0"), http.NotFoundHandler())
	require.Equal(t, ":0", srv.Addr)
	require.NotZero(t, srv.ReadTimeout)
	require.NotZero(t, srv.IdleTimeout)
}
