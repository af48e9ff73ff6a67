package config

import (
	"fmt"
	"net/url"
	"strings"
)

// Severity grades a validation Issue.
type Severity string

const (
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
)

// Issue is a single validation finding. Path is a dotted JSON path.
type Issue struct {
	Severity Severity
	Path     string
	Message  string
}

func (i Issue) String() string {
	return fmt.Sprintf("%s: %s: %s", i.Severity, i.Path, i.Message)
}

var knownDBKinds = map[string]bool{"postgres": true, "sqlite": true, "mssql": true}

var knownMetricsBackends = map[string]bool{"": true, "none": true, "datadog": true, "pushgateway": true}

// ValidatePipeline reports every problem found in p. Errors make the
// configuration unusable; warnings describe sinks that will fail at run time.
func ValidatePipeline(p Pipeline) []Issue {
	var issues []Issue
	add := func(sev Severity, path, format string, a ...any) {
		issues = append(issues, Issue{Severity: sev, Path: path, Message: fmt.Sprintf(format, a...)})
	}

	u, err := url.Parse(p.Source.BaseURL)
	switch {
	case strings.TrimSpace(p.Source.BaseURL) == "":
		add(SeverityError, "source.base_url", "required")
	case err != nil || u.Scheme == "" || u.Host == "":
		add(SeverityError, "source.base_url", "not an absolute URL: %q", p.Source.BaseURL)
	case !strings.HasSuffix(u.Path, "/"):
		add(SeverityWarning, "source.base_url", "does not end with '/'; page URLs are built by appending page{N}")
	}
	if p.Source.StartPage < 1 {
		add(SeverityError, "source.start_page", "must be >= 1, got %d", p.Source.StartPage)
	}
	if p.Source.Delay < 0 {
		add(SeverityError, "source.delay", "must not be negative")
	}
	if p.Source.FetchTimeout < 0 {
		add(SeverityError, "source.fetch_timeout", "must be >= 0, got %s", p.Source.FetchTimeout.Std())
	}
	if p.Source.MaxPages < 0 {
		add(SeverityError, "source.max_pages", "must be >= 0, got %d", p.Source.MaxPages)
	}
	if p.Transform.ExchangeRate <= 0 {
		add(SeverityError, "transform.exchange_rate", "must be > 0")
	}

	if c := p.Sinks.CSV; c.Enabled && strings.TrimSpace(c.Path) == "" {
		add(SeverityError, "sinks.csv.path", "required when the csv sink is enabled")
	}

	if d := p.Sinks.Database; d.Enabled {
		if !knownDBKinds[d.Kind] {
			add(SeverityError, "sinks.database.kind", "unknown kind %q", d.Kind)
		}
		if strings.TrimSpace(d.Table) == "" {
			add(SeverityError, "sinks.database.table", "required when the database sink is enabled")
		}
		if strings.TrimSpace(d.DSN) == "" {
			add(SeverityWarning, "sinks.database.dsn", "empty; set DATABASE_URL or the database write will fail")
		}
	}

	if s := p.Sinks.Sheets; s.Enabled {
		if strings.TrimSpace(s.SpreadsheetID) == "" {
			add(SeverityWarning, "sinks.sheets.spreadsheet_id", "empty; set SPREADSHEET_ID or the sheets write will fail")
		}
		if strings.TrimSpace(s.CredentialsFile) == "" {
			add(SeverityError, "sinks.sheets.credentials_file", "required when the sheets sink is enabled")
		}
		if strings.TrimSpace(s.Sheet) == "" {
			add(SeverityError, "sinks.sheets.sheet", "required when the sheets sink is enabled")
		}
	}

	if !knownMetricsBackends[p.Metrics.Backend] {
		add(SeverityError, "metrics.backend", "unknown backend %q", p.Metrics.Backend)
	}
	if p.Metrics.FlushEvery < 0 {
		add(SeverityError, "metrics.flush_every", "must not be negative")
	}

	return issues
}

// HasErrors reports whether any issue has SeverityError.
func HasErrors(issues []Issue) bool {
	for _, iss := range issues {
		if iss.Severity == SeverityError {
			return true
		}
	}
	return false
}
