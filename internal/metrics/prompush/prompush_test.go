package prompush

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"fashionetl/internal/metrics"
)

func TestNewBackend_EmptyURL(t *testing.T) {
	t.Parallel()

	if _, err := NewBackend("job", "  "); err == nil {
		t.Fatalf("expected error for empty gateway url")
	}
}

func TestBackend_CountsAndIgnoresUnknown(t *testing.T) {
	t.Parallel()

	b, err := NewBackend("", "http://127.0.0.1:9091")
	if err != nil {
		t.Fatalf("NewBackend() err=%v", err)
	}

	b.IncCounter(metrics.SinkTotal, 1, metrics.Labels{"sink": "csv", "status": "ok", "extra": "dropped"})
	b.IncCounter(metrics.SinkTotal, 2, metrics.Labels{"sink": "csv", "status": "ok"})
	b.IncCounter(metrics.SinkTotal, -1, metrics.Labels{"sink": "csv", "status": "ok"})
	b.IncCounter("not_a_metric", 1, nil)
	b.ObserveHistogram("not_a_histogram", 1, nil)

	families, err := b.reg.Gather()
	if err != nil {
		t.Fatalf("Gather() err=%v", err)
	}
	var got float64
	for _, mf := range families {
		if mf.GetName() != metrics.SinkTotal {
			continue
		}
		for _, m := range mf.GetMetric() {
			got += m.GetCounter().GetValue()
		}
	}
	if got != 3 {
		t.Fatalf("sink counter=%v, want 3", got)
	}
}

func TestFlush_PushesToGateway(t *testing.T) {
	t.Parallel()

	var (
		mu     sync.Mutex
		method string
		path   string
		body   string
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw, _ := io.ReadAll(r.Body)
		mu.Lock()
		method, path, body = r.Method, r.URL.Path, string(raw)
		mu.Unlock()
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	b, err := NewBackend("fashion_etl", srv.URL)
	if err != nil {
		t.Fatalf("NewBackend() err=%v", err)
	}
	b.IncCounter(metrics.PagesTotal, 1, metrics.Labels{"status": "ok"})

	if err := b.Flush(); err != nil {
		t.Fatalf("Flush() err=%v", err)
	}

	mu.Lock()
	defer mu.Unlock()
	if method != http.MethodPut {
		t.Fatalf("method=%q, want PUT", method)
	}
	if path != "/metrics/job/fashion_etl" {
		t.Fatalf("path=%q", path)
	}
	if !strings.Contains(body, metrics.PagesTotal) {
		t.Fatalf("pushed body does not mention %s", metrics.PagesTotal)
	}
}

func TestFlush_GatewayError(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusInternalServerError)
	}))
	defer srv.Close()

	b, err := NewBackend("fashion_etl", srv.URL)
	if err != nil {
		t.Fatalf("NewBackend() err=%v", err)
	}
	if err := b.Flush(); err == nil {
		t.Fatalf("expected push error")
	}
}
