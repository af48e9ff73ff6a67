package metrics

import (
	"errors"
	"sync"
	"testing"
	"time"
)

type call struct {
	kind   string
	name   string
	value  float64
	labels Labels
}

// recordingBackend captures every call for assertions.
type recordingBackend struct {
	mu    sync.Mutex
	calls []call
}

func (r *recordingBackend) IncCounter(name string, delta float64, labels Labels) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, call{"counter", name, delta, labels})
}

func (r *recordingBackend) ObserveHistogram(name string, value float64, labels Labels) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, call{"histogram", name, value, labels})
}

func (r *recordingBackend) Flush() error { return nil }

func (r *recordingBackend) find(name string) []call {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []call
	for _, c := range r.calls {
		if c.name == name {
			out = append(out, c)
		}
	}
	return out
}

// These tests swap the process-wide backend, so they do not run in parallel.

func TestRecordHTTP_ErrorAndSuccess(t *testing.T) {
	rb := &recordingBackend{}
	SetBackend(rb)
	t.Cleanup(func() { SetBackend(nil) })

	RecordHTTP("scrape", 200, nil, 150*time.Millisecond, 1024)
	RecordHTTP("scrape", 0, errors.New("dial"), 10*time.Millisecond, -1)
	RecordHTTP("scrape", 404, nil, 5*time.Millisecond, 12)

	if got := len(rb.find(HTTPRequestsTotal)); got != 3 {
		t.Fatalf("requests: want 3, got %d", got)
	}
	errs := rb.find(HTTPErrorsTotal)
	if len(errs) != 2 {
		t.Fatalf("errors: want 2, got %d", len(errs))
	}
	if errs[0].labels["status"] != "unknown" || errs[1].labels["status"] != "404" {
		t.Fatalf("unexpected error labels: %#v", errs)
	}
	if got := len(rb.find(HTTPDownloadBytes)); got != 2 {
		t.Fatalf("download samples: want 2 (size -1 skipped), got %d", got)
	}
}

func TestRecordStepAndRecords(t *testing.T) {
	rb := &recordingBackend{}
	SetBackend(rb)
	t.Cleanup(func() { SetBackend(nil) })

	RecordStep("scrape", "ok", 2*time.Second)
	RecordRecords("clean", 0)
	RecordRecords("clean", 5)
	RecordSink("csv", "error")

	steps := rb.find(StepTotal)
	if len(steps) != 1 || steps[0].labels["step"] != "scrape" || steps[0].labels["status"] != "ok" {
		t.Fatalf("unexpected step calls: %#v", steps)
	}
	dur := rb.find(StepDurationSeconds)
	if len(dur) != 1 || dur[0].value != 2 {
		t.Fatalf("unexpected duration calls: %#v", dur)
	}
	recs := rb.find(RecordsTotal)
	if len(recs) != 1 || recs[0].value != 5 {
		t.Fatalf("zero-count records should be dropped; got %#v", recs)
	}
	sinks := rb.find(SinkTotal)
	if len(sinks) != 1 || sinks[0].labels["sink"] != "csv" || sinks[0].labels["status"] != "error" {
		t.Fatalf("unexpected sink calls: %#v", sinks)
	}
}

func TestSetBackendNilRestoresNop(t *testing.T) {
	SetBackend(nil)
	if _, ok := current().(nopBackend); !ok {
		t.Fatalf("expected nop backend, got %T", current())
	}
	if err := Flush(); err != nil {
		t.Fatalf("nop flush: %v", err)
	}
}
