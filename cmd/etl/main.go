package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"

	"fashionetl/internal/config"
	"fashionetl/internal/metrics"
	"fashionetl/internal/metrics/datadog"
	"fashionetl/internal/metrics/prompush"
	"fashionetl/internal/pipeline"

	// register every storage backend; the config picks one by kind.
	_ "fashionetl/internal/storage/all"
)

// runner is the seam between the CLI and the pipeline.
type runner interface {
	Run(ctx context.Context, p config.Pipeline) error
}

// metricsBackend is what the CLI needs to shut a backend down.
type metricsBackend interface {
	Close() error
}

// appDeps are the side-effecting calls runMain makes, replaceable in tests.
type appDeps struct {
	loadConfig  func(path, envFile string) (config.Pipeline, error)
	initMetrics func(ctx context.Context, p config.Pipeline, backend, gatewayURL, runID string) (func(), error)
	newRunner   func() runner
	newRunID    func() string
}

func defaultDeps() appDeps {
	return appDeps{
		loadConfig:  loadConfig,
		initMetrics: initMetrics,
		newRunner:   func() runner { return pipeline.NewDefaultRunner() },
		newRunID:    func() string { return uuid.NewString() },
	}
}

// Package-level seams for metrics wiring.
var (
	newDatadogBackend = func(ctx context.Context, opts datadog.Options) (metricsBackend, error) {
		b, err := datadog.NewBackend(ctx, opts)
		if err != nil {
			return nil, err
		}
		return b, nil
	}
	newPushBackend = func(job, url string) (metrics.Backend, error) {
		b, err := prompush.NewBackend(job, url)
		if err != nil {
			return nil, err
		}
		return b, nil
	}
	setMetricsBackend = func(b any) {
		if mb, ok := b.(metrics.Backend); ok {
			metrics.SetBackend(mb)
		}
	}
	logPrintf = log.Printf
)

func main() {
	os.Exit(runMain(context.Background(), os.Args[1:], os.Stdout, os.Stderr, defaultDeps()))
}

// runMain parses flags, loads and validates the config, sets up metrics and
// runs the pipeline once. It returns the process exit code: 2 for usage
// errors, 1 for an unusable config, and 0 after a run even when the run
// itself failed.
func runMain(ctx context.Context, args []string, stdout, stderr io.Writer, deps appDeps) int {
	fs := flag.NewFlagSet("etl", flag.ContinueOnError)
	fs.SetOutput(stderr)

	var (
		cfgPath           string
		envFile           string
		metricsBackendFlg string
		pushGatewayURLFlg string
		metricsTagsFlg    string
		validate          bool
		verbose           bool
	)
	fs.StringVar(&cfgPath, "config", "", "optional pipeline config JSON, applied over the defaults")
	fs.StringVar(&envFile, "env", ".env", "dotenv file with DATABASE_URL, SPREADSHEET_ID, ...")
	fs.StringVar(&metricsBackendFlg, "metrics-backend", "", "metrics backend: none, datadog or pushgateway (overrides config and METRICS_BACKEND)")
	fs.StringVar(&pushGatewayURLFlg, "pushgateway-url", "", "Pushgateway base URL (overrides env PUSHGATEWAY_URL)")
	fs.StringVar(&metricsTagsFlg, "metrics-tags", "", "extra comma-separated Datadog tags, e.g. team:data,region:id")
	fs.BoolVar(&validate, "validate", false, "validate the configuration and exit")
	fs.BoolVar(&verbose, "v", false, "enable verbose logs")

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 2
	}
	if fs.NArg() > 0 {
		fmt.Fprintf(stderr, "usage: etl [-config path.json] [-env .env] [-validate] [-v]\n")
		return 2
	}

	p, err := deps.loadConfig(strings.TrimSpace(cfgPath), envFile)
	if err != nil {
		fmt.Fprintf(stderr, "load config: %v\n", err)
		return 1
	}

	issues := config.ValidatePipeline(p)
	for _, iss := range issues {
		fmt.Fprintf(stderr, "%s: %s: %s\n", iss.Severity, iss.Path, iss.Message)
	}
	if config.HasErrors(issues) {
		fmt.Fprintf(stderr, "configuration is invalid\n")
		return 1
	}
	if validate {
		fmt.Fprintln(stdout, "configuration is valid")
		return 0
	}

	p.Metrics.Tags = append(p.Metrics.Tags, datadog.ParseTagsCSV(metricsTagsFlg)...)

	runID := deps.newRunID()
	log.Printf("run: id=%s job=%s source=%s", runID, p.Job, p.Source.BaseURL)

	backend := metricsBackendFlg
	if backend == "" {
		backend = os.Getenv("METRICS_BACKEND")
	}
	if backend == "" {
		backend = p.Metrics.Backend
	}
	cleanup, err := deps.initMetrics(ctx, p, backend, pushGatewayURLFlg, runID)
	if err != nil {
		log.Printf("metrics: %v; metrics disabled", err)
		cleanup = func() {}
	}
	defer cleanup()

	if verbose {
		log.Printf("pipeline: csv=%t db=%t(%s) sheets=%t",
			p.Sinks.CSV.Enabled, p.Sinks.Database.Enabled, p.Sinks.Database.Kind, p.Sinks.Sheets.Enabled)
	}

	start := time.Now()
	if err := deps.newRunner().Run(ctx, p); err != nil {
		log.Printf("run: %v", err)
	}
	if verbose {
		log.Printf("completed in %s", time.Since(start).Truncate(time.Millisecond))
	}
	return 0
}

func loadConfig(path, envFile string) (config.Pipeline, error) {
	p, err := config.Load(path)
	if err != nil {
		return p, err
	}
	if err := config.ApplyEnv(&p, envFile); err != nil {
		return p, err
	}
	return p, nil
}

// initMetrics installs the named backend and returns its shutdown func.
// The returned cleanup is never nil.
func initMetrics(ctx context.Context, p config.Pipeline, backend, gatewayURL, runID string) (func(), error) {
	noop := func() {}

	jobName := p.Job
	if jobName == "" {
		jobName = config.DefaultJob
	}

	switch strings.ToLower(strings.TrimSpace(backend)) {
	case "", "none", "noop":
		return noop, nil

	case "pushgateway":
		url := gatewayURL
		if url == "" {
			url = os.Getenv("PUSHGATEWAY_URL")
		}
		if url == "" {
			url = "http://localhost:9091"
		}
		b, err := newPushBackend(jobName, url)
		if err != nil {
			return noop, fmt.Errorf("init pushgateway backend: %w", err)
		}
		logPrintf("metrics: backend=pushgateway url=%s job_name=%s", url, jobName)
		setMetricsBackend(b)
		return func() {
			if err := b.Flush(); err != nil {
				logPrintf("metrics: pushgateway flush error: %v", err)
			}
		}, nil

	case "datadog", "dd":
		b, err := newDatadogBackend(ctx, datadog.Options{
			JobName:    jobName,
			RunID:      runID,
			Tags:       p.Metrics.Tags,
			FlushEvery: p.Metrics.FlushEvery.Std(),
		})
		if err != nil {
			return noop, fmt.Errorf("init datadog backend: %w", err)
		}
		setMetricsBackend(b)
		return func() {
			if err := b.Close(); err != nil {
				logPrintf("metrics: datadog close error: %v", err)
			}
		}, nil

	default:
		return noop, fmt.Errorf("unknown metrics backend %q (want none|datadog|pushgateway)", backend)
	}
}
