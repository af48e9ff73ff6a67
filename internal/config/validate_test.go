package config

import (
	"testing"
	"time"
)

func TestValidatePipeline(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		mutate   func(p *Pipeline)
		wantPath string
		wantSev  Severity
	}{
		{"empty_base_url", func(p *Pipeline) { p.Source.BaseURL = "" }, "source.base_url", SeverityError},
		{"relative_base_url", func(p *Pipeline) { p.Source.BaseURL = "fashion/" }, "source.base_url", SeverityError},
		{"base_url_without_slash", func(p *Pipeline) { p.Source.BaseURL = "https://x.test/shop" }, "source.base_url", SeverityWarning},
		{"start_page_zero", func(p *Pipeline) { p.Source.StartPage = 0 }, "source.start_page", SeverityError},
		{"negative_delay", func(p *Pipeline) { p.Source.Delay = -1 }, "source.delay", SeverityError},
		{"negative_fetch_timeout", func(p *Pipeline) { p.Source.FetchTimeout = Duration(-time.Second) }, "source.fetch_timeout", SeverityError},
		{"negative_max_pages", func(p *Pipeline) { p.Source.MaxPages = -2 }, "source.max_pages", SeverityError},
		{"zero_rate", func(p *Pipeline) { p.Transform.ExchangeRate = 0 }, "transform.exchange_rate", SeverityError},
		{"csv_without_path", func(p *Pipeline) { p.Sinks.CSV.Path = "" }, "sinks.csv.path", SeverityError},
		{"unknown_db_kind", func(p *Pipeline) { p.Sinks.Database.Kind = "oracle" }, "sinks.database.kind", SeverityError},
		{"missing_dsn", func(p *Pipeline) { p.Sinks.Database.DSN = "" }, "sinks.database.dsn", SeverityWarning},
		{"missing_sheet_name", func(p *Pipeline) { p.Sinks.Sheets.Sheet = "" }, "sinks.sheets.sheet", SeverityError},
		{"unknown_metrics_backend", func(p *Pipeline) { p.Metrics.Backend = "statsd" }, "metrics.backend", SeverityError},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			p := Default()
			p.Sinks.Database.DSN = "file:test.db"
			p.Sinks.Sheets.SpreadsheetID = "abc"
			tc.mutate(&p)

			for _, iss := range ValidatePipeline(p) {
				if iss.Path == tc.wantPath {
					if iss.Severity != tc.wantSev {
						t.Fatalf("%s severity=%s, want %s", iss.Path, iss.Severity, tc.wantSev)
					}
					return
				}
			}
			t.Fatalf("no issue for %s", tc.wantPath)
		})
	}
}

func TestValidatePipeline_DisabledSinksSkipped(t *testing.T) {
	t.Parallel()

	p := Default()
	p.Sinks.Database.Enabled = false
	p.Sinks.Sheets.Enabled = false
	p.Sinks.Database.Kind = "oracle"

	if issues := ValidatePipeline(p); len(issues) != 0 {
		t.Fatalf("expected no issues, got %v", issues)
	}
}
