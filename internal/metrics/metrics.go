// Package metrics is the backend-agnostic metrics facade used by the scrape
// pipeline.
//
// Pipeline code only calls the package-level helpers (RecordHTTP, RecordStep,
// RecordRecords, RecordSink). A concrete backend (Datadog, Prometheus
// Pushgateway) is installed once at startup with SetBackend; until then every
// call goes to a no-op backend.
package metrics

import (
	"strconv"
	"sync"
	"time"
)

// Labels is a small set of metric dimensions.
type Labels map[string]string

// Backend receives counter increments and histogram observations.
//
// Implementations must be safe for concurrent use and must ignore metric names
// they do not know.
type Backend interface {
	IncCounter(name string, delta float64, labels Labels)
	ObserveHistogram(name string, value float64, labels Labels)
	Flush() error
}

// Metric names shared by every backend.
const (
	StepTotal           = "etl_step_total"
	StepDurationSeconds = "etl_step_duration_seconds"
	RecordsTotal        = "etl_records_total"
	PagesTotal          = "etl_pages_total"
	SinkTotal           = "etl_sink_total"

	HTTPRequestsTotal          = "etl_http_requests_total"
	HTTPErrorsTotal            = "etl_http_errors_total"
	HTTPRequestDurationSeconds = "etl_http_request_duration_seconds"
	HTTPDownloadBytes          = "etl_http_download_bytes"
)

type nopBackend struct{}

func (nopBackend) IncCounter(string, float64, Labels)       {}
func (nopBackend) ObserveHistogram(string, float64, Labels) {}
func (nopBackend) Flush() error                             { return nil }

var (
	mu      sync.RWMutex
	backend Backend = nopBackend{}
)

// SetBackend installs b as the process-wide backend. A nil b restores the
// no-op backend.
func SetBackend(b Backend) {
	mu.Lock()
	defer mu.Unlock()
	if b == nil {
		backend = nopBackend{}
		return
	}
	backend = b
}

func current() Backend {
	mu.RLock()
	defer mu.RUnlock()
	return backend
}

// Flush flushes the installed backend.
func Flush() error { return current().Flush() }

// IncCounter forwards to the installed backend.
func IncCounter(name string, delta float64, labels Labels) {
	current().IncCounter(name, delta, labels)
}

// ObserveHistogram forwards to the installed backend.
func ObserveHistogram(name string, value float64, labels Labels) {
	current().ObserveHistogram(name, value, labels)
}

// RecordStep records one pipeline step outcome and its duration.
// status is "ok" or "error".
func RecordStep(step, status string, d time.Duration) {
	l := Labels{"step": step, "status": status}
	IncCounter(StepTotal, 1, l)
	ObserveHistogram(StepDurationSeconds, d.Seconds(), l)
}

// RecordRecords counts records by kind ("scraped", "skipped", "clean", ...).
func RecordRecords(kind string, n int) {
	if n <= 0 {
		return
	}
	IncCounter(RecordsTotal, float64(n), Labels{"kind": kind})
}

// RecordPage counts one fetched listing page.
func RecordPage(status string) {
	IncCounter(PagesTotal, 1, Labels{"status": status})
}

// RecordSink counts one sink write outcome.
func RecordSink(sink, status string) {
	IncCounter(SinkTotal, 1, Labels{"sink": sink, "status": status})
}

// RecordHTTP records a single HTTP attempt.
//
// status is the response code, or 0 when no response was received. size < 0
// means the body was not read and is not observed.
func RecordHTTP(job string, status int, err error, requestDur time.Duration, size int64) {
	st := "unknown"
	if status > 0 {
		st = strconv.Itoa(status)
	}
	l := Labels{"status": st, "job": job}

	IncCounter(HTTPRequestsTotal, 1, l)
	if err != nil || status < 200 || status >= 300 {
		IncCounter(HTTPErrorsTotal, 1, l)
	}
	if requestDur >= 0 {
		ObserveHistogram(HTTPRequestDurationSeconds, requestDur.Seconds(), l)
	}
	if size >= 0 {
		ObserveHistogram(HTTPDownloadBytes, float64(size), l)
	}
}
