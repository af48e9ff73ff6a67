// Package prompush implements a metrics.Backend that pushes to a Prometheus
// Pushgateway. A scrape run is a batch job, so nothing is scraped from the
// process: metrics are collected in a private registry and pushed on Flush.
package prompush

import (
	"fmt"
	"strings"

	"fashionetl/internal/metrics"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/push"
)

type counterDef struct {
	help   string
	labels []string
}

type histogramDef struct {
	help    string
	labels  []string
	buckets []float64
}

var counterDefs = map[string]counterDef{
	metrics.StepTotal:         {"Pipeline steps by outcome.", []string{"step", "status"}},
	metrics.RecordsTotal:      {"Records seen by kind.", []string{"kind"}},
	metrics.PagesTotal:        {"Listing pages fetched.", []string{"status"}},
	metrics.SinkTotal:         {"Sink writes by outcome.", []string{"sink", "status"}},
	metrics.HTTPRequestsTotal: {"HTTP requests sent.", []string{"job", "status"}},
	metrics.HTTPErrorsTotal:   {"HTTP requests that failed or returned non-2xx.", []string{"job", "status"}},
}

var histogramDefs = map[string]histogramDef{
	metrics.StepDurationSeconds:        {"Pipeline step duration.", []string{"step", "status"}, prometheus.DefBuckets},
	metrics.HTTPRequestDurationSeconds: {"HTTP request duration.", []string{"job", "status"}, prometheus.DefBuckets},
	metrics.HTTPDownloadBytes:          {"HTTP response body size.", []string{"job", "status"}, prometheus.ExponentialBuckets(512, 4, 8)},
}

// Backend collects metrics into its own registry and pushes them on Flush.
type Backend struct {
	reg        *prometheus.Registry
	pusher     *push.Pusher
	counters   map[string]*prometheus.CounterVec
	histograms map[string]*prometheus.HistogramVec
}

// NewBackend registers every known metric and prepares a pusher for
// gatewayURL under the given job name.
func NewBackend(job, gatewayURL string) (*Backend, error) {
	if strings.TrimSpace(gatewayURL) == "" {
		return nil, fmt.Errorf("prompush: empty gateway url")
	}
	if job == "" {
		job = "fashion_etl"
	}

	b := &Backend{
		reg:        prometheus.NewRegistry(),
		counters:   make(map[string]*prometheus.CounterVec, len(counterDefs)),
		histograms: make(map[string]*prometheus.HistogramVec, len(histogramDefs)),
	}

	for name, def := range counterDefs {
		cv := prometheus.NewCounterVec(prometheus.CounterOpts{Name: name, Help: def.help}, def.labels)
		if err := b.reg.Register(cv); err != nil {
			return nil, fmt.Errorf("prompush: register %s: %w", name, err)
		}
		b.counters[name] = cv
	}
	for name, def := range histogramDefs {
		hv := prometheus.NewHistogramVec(prometheus.HistogramOpts{Name: name, Help: def.help, Buckets: def.buckets}, def.labels)
		if err := b.reg.Register(hv); err != nil {
			return nil, fmt.Errorf("prompush: register %s: %w", name, err)
		}
		b.histograms[name] = hv
	}

	b.pusher = push.New(gatewayURL, job).Gatherer(b.reg)
	return b, nil
}

// pick projects labels onto the fixed label names of a vector. Missing
// values become "" and extra keys are dropped.
func pick(names []string, labels metrics.Labels) prometheus.Labels {
	out := make(prometheus.Labels, len(names))
	for _, n := range names {
		out[n] = labels[n]
	}
	return out
}

// IncCounter implements metrics.Backend.
func (b *Backend) IncCounter(name string, delta float64, labels metrics.Labels) {
	cv, ok := b.counters[name]
	if !ok || delta <= 0 {
		return
	}
	cv.With(pick(counterDefs[name].labels, labels)).Add(delta)
}

// ObserveHistogram implements metrics.Backend.
func (b *Backend) ObserveHistogram(name string, value float64, labels metrics.Labels) {
	hv, ok := b.histograms[name]
	if !ok {
		return
	}
	hv.With(pick(histogramDefs[name].labels, labels)).Observe(value)
}

// Flush pushes the whole registry, replacing the job's previous group.
func (b *Backend) Flush() error {
	if err := b.pusher.Push(); err != nil {
		return fmt.Errorf("prompush: push: %w", err)
	}
	return nil
}

var _ metrics.Backend = (*Backend)(nil)
