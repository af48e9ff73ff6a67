package main

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"testing"

	"fashionetl/internal/config"
	"fashionetl/internal/metrics"
	"fashionetl/internal/metrics/datadog"
)

// fakeRunner records calls and the last config it received.
type fakeRunner struct {
	err   error
	calls atomic.Int64

	mu      sync.Mutex
	lastCfg config.Pipeline
}

func (r *fakeRunner) Run(ctx context.Context, p config.Pipeline) error {
	r.calls.Add(1)
	r.mu.Lock()
	r.lastCfg = p
	r.mu.Unlock()
	return r.err
}

type fakeMetricsBackend struct {
	closeErr error
	closed   atomic.Int64
}

func (b *fakeMetricsBackend) Close() error {
	b.closed.Add(1)
	return b.closeErr
}

func fakeDeps(t *testing.T, fr *fakeRunner, loadErr error, mutate func(*config.Pipeline)) (appDeps, *atomic.Int64) {
	var cleanups atomic.Int64
	return appDeps{
		loadConfig: func(path, envFile string) (config.Pipeline, error) {
			if loadErr != nil {
				return config.Pipeline{}, loadErr
			}
			p := config.Default()
			if mutate != nil {
				mutate(&p)
			}
			return p, nil
		},
		initMetrics: func(context.Context, config.Pipeline, string, string, string) (func(), error) {
			return func() { cleanups.Add(1) }, nil
		},
		newRunner: func() runner { return fr },
		newRunID:  func() string { return "run-1" },
	}, &cleanups
}

func TestRunMain_UsageErrors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name          string
		args          []string
		wantStderrSub string
	}{
		{"unknown flag", []string{"-nope"}, "flag provided but not defined"},
		{"positional args", []string{"extra"}, "usage: etl"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			var stdout, stderr bytes.Buffer
			code := runMain(context.Background(), tc.args, &stdout, &stderr, appDeps{
				loadConfig: func(string, string) (config.Pipeline, error) {
					t.Fatalf("loadConfig must not be called on usage errors")
					return config.Pipeline{}, nil
				},
				newRunner: func() runner {
					t.Fatalf("newRunner must not be called on usage errors")
					return nil
				},
			})
			if code != 2 {
				t.Fatalf("exit code=%d, want 2", code)
			}
			if !strings.Contains(stderr.String(), tc.wantStderrSub) {
				t.Fatalf("stderr=%q, want contains %q", stderr.String(), tc.wantStderrSub)
			}
			if stdout.Len() != 0 {
				t.Fatalf("stdout=%q, want empty", stdout.String())
			}
		})
	}
}

func TestRunMain_Flow(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name             string
		args             []string
		loadErr          error
		mutate           func(*config.Pipeline)
		runErr           error
		wantCode         int
		wantStderrSub    string
		wantStdoutSub    string
		wantRunnerCalls  int64
		wantCleanupCalls int64
	}{
		{
			name:          "load error",
			loadErr:       errors.New("no such file"),
			wantCode:      1,
			wantStderrSub: "load config:",
		},
		{
			name:          "invalid config",
			mutate:        func(p *config.Pipeline) { p.Source.BaseURL = "" },
			wantCode:      1,
			wantStderrSub: "error: source.base_url",
		},
		{
			name:          "validate only",
			args:          []string{"-validate"},
			wantCode:      0,
			wantStdoutSub: "configuration is valid",
		},
		{
			name:             "run error still exits zero",
			runErr:           errors.New("scrape failed"),
			wantCode:         0,
			wantRunnerCalls:  1,
			wantCleanupCalls: 1,
		},
		{
			name:             "success",
			args:             []string{"-v", "-metrics-tags", "team:data"},
			wantCode:         0,
			wantRunnerCalls:  1,
			wantCleanupCalls: 1,
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			var stdout, stderr bytes.Buffer
			fr := &fakeRunner{err: tc.runErr}
			deps, cleanups := fakeDeps(t, fr, tc.loadErr, tc.mutate)

			code := runMain(context.Background(), tc.args, &stdout, &stderr, deps)
			if code != tc.wantCode {
				t.Fatalf("exit code=%d, want %d; stderr=%q", code, tc.wantCode, stderr.String())
			}
			if tc.wantStderrSub != "" && !strings.Contains(stderr.String(), tc.wantStderrSub) {
				t.Fatalf("stderr=%q, want contains %q", stderr.String(), tc.wantStderrSub)
			}
			if tc.wantStdoutSub != "" && !strings.Contains(stdout.String(), tc.wantStdoutSub) {
				t.Fatalf("stdout=%q, want contains %q", stdout.String(), tc.wantStdoutSub)
			}
			if got := fr.calls.Load(); got != tc.wantRunnerCalls {
				t.Fatalf("runner calls=%d, want %d", got, tc.wantRunnerCalls)
			}
			if got := cleanups.Load(); got != tc.wantCleanupCalls {
				t.Fatalf("cleanup calls=%d, want %d", got, tc.wantCleanupCalls)
			}
		})
	}
}

func TestRunMain_MetricsTagsReachConfig(t *testing.T) {
	t.Parallel()

	fr := &fakeRunner{}
	deps, _ := fakeDeps(t, fr, nil, nil)

	var stdout, stderr bytes.Buffer
	if code := runMain(context.Background(), []string{"-metrics-tags", "team:data, region:id"}, &stdout, &stderr, deps); code != 0 {
		t.Fatalf("code=%d stderr=%q", code, stderr.String())
	}
	fr.mu.Lock()
	defer fr.mu.Unlock()
	if got := strings.Join(fr.lastCfg.Metrics.Tags, ","); got != "team:data,region:id" {
		t.Fatalf("tags=%q", got)
	}
}

// The tests below swap package-level seams and must not run in parallel.

func TestInitMetrics_None_DoesNotMutateGlobalState(t *testing.T) {
	oldSet := setMetricsBackend
	defer func() { setMetricsBackend = oldSet }()
	setMetricsBackend = func(any) {
		t.Fatalf("setMetricsBackend must not be called for none")
	}

	for _, name := range []string{"", "none", "noop"} {
		cleanup, err := initMetrics(context.Background(), config.Default(), name, "", "run-1")
		if err != nil {
			t.Fatalf("initMetrics(%q) err=%v", name, err)
		}
		if cleanup == nil {
			t.Fatalf("cleanup=nil")
		}
		cleanup()
	}
}

func TestInitMetrics_Datadog_WiresBackendAndCloses(t *testing.T) {
	b := &fakeMetricsBackend{}

	var (
		setCalls atomic.Int64
		gotOpts  datadog.Options
	)
	oldNew, oldSet, oldLog := newDatadogBackend, setMetricsBackend, logPrintf
	defer func() { newDatadogBackend, setMetricsBackend, logPrintf = oldNew, oldSet, oldLog }()

	newDatadogBackend = func(ctx context.Context, opts datadog.Options) (metricsBackend, error) {
		gotOpts = opts
		return b, nil
	}
	setMetricsBackend = func(any) { setCalls.Add(1) }
	var logged bytes.Buffer
	logPrintf = func(format string, v ...any) { fmt.Fprintf(&logged, format, v...) }

	p := config.Default()
	p.Job = "jobA"
	p.Metrics.Tags = []string{"team:data"}

	cleanup, err := initMetrics(context.Background(), p, "datadog", "", "run-7")
	if err != nil {
		t.Fatalf("initMetrics err=%v", err)
	}
	if gotOpts.JobName != "jobA" || gotOpts.RunID != "run-7" || len(gotOpts.Tags) != 1 {
		t.Fatalf("options=%+v", gotOpts)
	}
	if gotOpts.FlushEvery != config.DefaultFlushEvery {
		t.Fatalf("FlushEvery=%s", gotOpts.FlushEvery)
	}
	if setCalls.Load() != 1 {
		t.Fatalf("setMetricsBackend calls=%d, want 1", setCalls.Load())
	}

	cleanup()
	if b.closed.Load() != 1 {
		t.Fatalf("backend closed=%d, want 1", b.closed.Load())
	}
	if logged.Len() != 0 {
		t.Fatalf("unexpected log output: %q", logged.String())
	}
}

func TestInitMetrics_Datadog_CloseErrorIsLogged(t *testing.T) {
	b := &fakeMetricsBackend{closeErr: errors.New("flush failed")}

	oldNew, oldSet, oldLog := newDatadogBackend, setMetricsBackend, logPrintf
	defer func() { newDatadogBackend, setMetricsBackend, logPrintf = oldNew, oldSet, oldLog }()

	newDatadogBackend = func(context.Context, datadog.Options) (metricsBackend, error) { return b, nil }
	setMetricsBackend = func(any) {}
	var logged bytes.Buffer
	logPrintf = func(format string, v ...any) { fmt.Fprintf(&logged, format, v...) }

	cleanup, err := initMetrics(context.Background(), config.Default(), "dd", "", "run-1")
	if err != nil {
		t.Fatalf("initMetrics err=%v", err)
	}
	cleanup()

	if !strings.Contains(logged.String(), "metrics: datadog close error") || !strings.Contains(logged.String(), "flush failed") {
		t.Fatalf("log=%q", logged.String())
	}
}

type nopPush struct{ flushed atomic.Int64 }

func (n *nopPush) IncCounter(string, float64, metrics.Labels)       {}
func (n *nopPush) ObserveHistogram(string, float64, metrics.Labels) {}
func (n *nopPush) Flush() error                                     { n.flushed.Add(1); return nil }

func TestInitMetrics_Pushgateway_FlushesOnCleanup(t *testing.T) {
	pb := &nopPush{}
	var gotURL, gotJob string

	oldPush, oldSet, oldLog := newPushBackend, setMetricsBackend, logPrintf
	defer func() { newPushBackend, setMetricsBackend, logPrintf = oldPush, oldSet, oldLog }()

	newPushBackend = func(job, url string) (metrics.Backend, error) {
		gotJob, gotURL = job, url
		return pb, nil
	}
	setMetricsBackend = func(any) {}
	logPrintf = func(string, ...any) {}

	cleanup, err := initMetrics(context.Background(), config.Default(), "pushgateway", "http://gw:9091", "run-1")
	if err != nil {
		t.Fatalf("initMetrics err=%v", err)
	}
	if gotURL != "http://gw:9091" || gotJob != config.DefaultJob {
		t.Fatalf("url=%q job=%q", gotURL, gotJob)
	}
	cleanup()
	if pb.flushed.Load() != 1 {
		t.Fatalf("flushed=%d, want 1", pb.flushed.Load())
	}
}

func TestInitMetrics_UnknownBackendErrors(t *testing.T) {
	t.Parallel()

	cleanup, err := initMetrics(context.Background(), config.Default(), "nope", "", "run-1")
	if err == nil {
		t.Fatalf("initMetrics err=nil, want error")
	}
	if cleanup == nil {
		t.Fatalf("cleanup=nil, want non-nil")
	}
	cleanup()
	if !strings.Contains(err.Error(), "unknown metrics backend") || !strings.Contains(err.Error(), "none|datadog") {
		t.Fatalf("err=%q", err.Error())
	}
}

func BenchmarkInitMetrics_None(b *testing.B) {
	ctx := context.Background()
	p := config.Default()
	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		cleanup, err := initMetrics(ctx, p, "none", "", "run")
		if err != nil {
			b.Fatalf("err=%v", err)
		}
		cleanup()
	}
}
