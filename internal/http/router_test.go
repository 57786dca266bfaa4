package httpapi_test

import (
	"net/http"
	"net/http/httptest"
	"testing"

	httpapi "veranda/internal/http"
	"veranda/pkg/testutil"
)

func TestRouterPlatformEndpoints(t *testing.T) {
	testutil.Given(t, "a router with no feature handlers", func(t *testing.T) {
		router := httpapi.NewRouter()

		testutil.When(t, "calling GET /healthz", func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
			rec := httptest.NewRecorder()

			router.ServeHTTP(rec, req)

			testutil.Then(t, "it should report healthy", func(t *testing.T) {
				if rec.Code != http.StatusOK {
					t.Fatalf("expected status %d, got %d", http.StatusOK, rec.Code)
				}
				if rec.Body.String() != "ok" {
					t.Fatalf("expected body %q, got %q", "ok", rec.Body.String())
				}
			})
		})

		testutil.When(t, "calling GET /metrics", func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
			rec := httptest.NewRecorder()

			router.ServeHTTP(rec, req)

			testutil.Then(t, "it should serve the metrics page", func(t *testing.T) {
				if rec.Code != http.StatusOK {
					t.Fatalf("expected status %d, got %d", http.StatusOK, rec.Code)
				}
			})
		})

		testutil.When(t, "calling an unknown route", func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/api/v1/nope", nil)
			rec := httptest.NewRecorder()

			router.ServeHTTP(rec, req)

			testutil.Then(t, "it should respond not found", func(t *testing.T) {
				if rec.Code != http.StatusNotFound {
					t.Fatalf("expected status %d, got %d", http.StatusNotFound, rec.Code)
				}
			})
		})

		testutil.When(t, "the caller omits X-Request-ID", func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
			rec := httptest.NewRecorder()

			router.ServeHTTP(rec, req)

			testutil.Then(t, "the response carries a generated one", func(t *testing.T) {
				if rec.Header().Get("X-Request-ID") == "" {
					t.Fatal("expected a generated X-Request-ID header")
				}
			})
		})

		testutil.When(t, "the caller supplies X-Request-ID", func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
			req.Header.Set("X-Request-ID", "req-abc123")
			rec := httptest.NewRecorder()

			router.ServeHTTP(rec, req)

			testutil.Then(t, "the response echoes it back", func(t *testing.T) {
				if got := rec.Header().Get("X-Request-ID"); got != "req-abc123" {
					t.Fatalf("expected echoed request ID, got %q", got)
				}
			})
		})
	})
}
