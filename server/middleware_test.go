package server

import (
	"bytes"
	"log"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestApplyMiddlewares_Order(t *testing.T) {
	var order []string
	tag := func(name string) Middleware {
		return func(next http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				order = append(order, name)
				next.ServeHTTP(w, r)
			})
		}
	}
	handler := applyMiddlewares(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		order = append(order, "handler")
	}), []Middleware{tag("outer"), nil, tag("inner")})

	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))

	expected := []string{"outer", "inner", "handler"}
	if len(order) != len(expected) {
		t.Fatalf("Expected order %v but have: %v", expected, order)
	}
	for i := range expected {
		if order[i] != expected[i] {
			t.Errorf("Expected order %v but have: %v", expected, order)
		}
	}
}

func TestRequestLogMiddleware(t *testing.T) {
	var buf bytes.Buffer
	logger := log.New(&buf, "", 0)
	handler := requestLogMiddleware(logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
		w.Write([]byte("short and stout"))
	}))

	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/teapot", nil))

	line := buf.String()
	for _, want := range []string{"method=GET", "path=/teapot", "status=418", "bytes=15"} {
		if !strings.Contains(line, want) {
			t.Errorf("Expected log line to contain %q but have: %q", want, line)
		}
	}
}

func TestRouteLabel(t *testing.T) {
	cases := map[string]string{
		"/":                 "/",
		"/health":           "/health",
		"/webhooks/hubspot": "/webhooks/hubspot",
		"/test/connection":  "/test/connection",
		"/metrics":          "/metrics",
		"/test/sync/42":     "/test/sync/{contactId}",
		"/test/sync/9000":   "/test/sync/{contactId}",
		"/nope":             "unmatched",
		"/test/syncthing":   "unmatched",
	}
	for path, expected := range cases {
		if label := routeLabel(path); label != expected {
			t.Errorf("Expected label %q for %q but have: %q", expected, path, label)
		}
	}
}

func TestMetricsMiddleware_BoundedPathLabels(t *testing.T) {
	handler := metricsMiddleware()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))

	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/test/sync/111", nil))
	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/test/sync/222", nil))

	pattern := httpRequestsTotal.WithLabelValues("/test/sync/{contactId}", http.MethodGet, "418")
	if n := testutil.ToFloat64(pattern); n != 2 {
		t.Errorf("Expected both requests counted under the route pattern but have: %v", n)
	}
	raw := httpRequestsTotal.WithLabelValues("/test/sync/111", http.MethodGet, "418")
	if n := testutil.ToFloat64(raw); n != 0 {
		t.Errorf("Expected no raw contact-id label but have: %v", n)
	}
}

func TestStatusRecorder_DefaultsToOK(t *testing.T) {
	rec := &statusRecorder{ResponseWriter: httptest.NewRecorder()}
	rec.Write([]byte("ok"))
	if rec.status != http.StatusOK {
		t.Errorf("Expected implicit 200 but have: %d", rec.status)
	}
	if rec.size != 2 {
		t.Errorf("Expected 2 bytes recorded but have: %d", rec.size)
	}
}
