// Package config holds the pipeline configuration: compiled defaults, an
// optional JSON overlay and .env overrides.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"fashionetl/internal/scraper"
)

// Defaults of the scrape job.
const (
	DefaultJob          = "fashion_etl"
	DefaultBaseURL      = "https://fashion-studio.dicoding.dev/"
	DefaultStartPage    = 2
	DefaultDelay        = 2 * time.Second
	DefaultUserAgent    = scraper.DefaultUserAgent
	DefaultExchangeRate = 16000
	DefaultCSVPath      = "products.csv"
	DefaultDBKind       = "postgres"
	DefaultDBTable      = "product_records"
	DefaultCredentials  = "./client_secret.json"
	DefaultSheet        = "Sheet1"
	DefaultFlushEvery   = 60 * time.Second
)

// Duration is a time.Duration that decodes from a Go duration string ("2s")
// or a JSON number of seconds.
type Duration time.Duration

// UnmarshalJSON implements json.Unmarshaler.
func (d *Duration) UnmarshalJSON(b []byte) error {
	s := strings.TrimSpace(string(b))
	if s == "null" {
		return nil
	}
	if strings.HasPrefix(s, `"`) {
		var str string
		if err := json.Unmarshal(b, &str); err != nil {
			return err
		}
		v, err := time.ParseDuration(str)
		if err != nil {
			return fmt.Errorf("config: duration %q: %w", str, err)
		}
		*d = Duration(v)
		return nil
	}
	secs, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return fmt.Errorf("config: duration %s: %w", s, err)
	}
	*d = Duration(secs * float64(time.Second))
	return nil
}

// MarshalJSON renders the duration as a Go duration string.
func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(time.Duration(d).String())
}

// Std returns d as a time.Duration.
func (d Duration) Std() time.Duration { return time.Duration(d) }

// Pipeline is the whole job configuration.
type Pipeline struct {
	Job       string    `json:"job"`
	Source    Source    `json:"source"`
	Transform Transform `json:"transform"`
	Sinks     Sinks     `json:"sinks"`
	Metrics   Metrics   `json:"metrics"`
}

// Source describes the listing site.
type Source struct {
	BaseURL   string   `json:"base_url"`
	StartPage int      `json:"start_page"`
	Delay     Duration `json:"delay"`
	UserAgent string   `json:"user_agent"`
	// MaxPages caps the paginated loop. 0 means no cap.
	MaxPages int `json:"max_pages"`
	// FetchTimeout bounds one page request. 0 leaves requests unbounded.
	FetchTimeout Duration `json:"fetch_timeout"`
}

type Transform struct {
	ExchangeRate float64 `json:"exchange_rate"`
}

type Sinks struct {
	CSV      CSVSink      `json:"csv"`
	Database DatabaseSink `json:"database"`
	Sheets   SheetsSink   `json:"sheets"`
}

type CSVSink struct {
	Enabled bool   `json:"enabled"`
	Path    string `json:"path"`
}

type DatabaseSink struct {
	Enabled bool   `json:"enabled"`
	Kind    string `json:"kind"` // postgres | sqlite | mssql
	DSN     string `json:"dsn"`
	Table   string `json:"table"`
}

type SheetsSink struct {
	Enabled         bool   `json:"enabled"`
	CredentialsFile string `json:"credentials_file"`
	SpreadsheetID   string `json:"spreadsheet_id"`
	Sheet           string `json:"sheet"`
}

type Metrics struct {
	Backend    string   `json:"backend"` // none | datadog | pushgateway
	Tags       []string `json:"tags"`
	FlushEvery Duration `json:"flush_every"`
}

// Default returns the compiled configuration. All three sinks are enabled,
// matching a run with no config file at all.
func Default() Pipeline {
	return Pipeline{
		Job: DefaultJob,
		Source: Source{
			BaseURL:   DefaultBaseURL,
			StartPage: DefaultStartPage,
			Delay:     Duration(DefaultDelay),
			UserAgent: DefaultUserAgent,
		},
		Transform: Transform{ExchangeRate: DefaultExchangeRate},
		Sinks: Sinks{
			CSV:      CSVSink{Enabled: true, Path: DefaultCSVPath},
			Database: DatabaseSink{Enabled: true, Kind: DefaultDBKind, Table: DefaultDBTable},
			Sheets:   SheetsSink{Enabled: true, CredentialsFile: DefaultCredentials, Sheet: DefaultSheet},
		},
		Metrics: Metrics{Backend: "none", FlushEvery: Duration(DefaultFlushEvery)},
	}
}

// Load decodes the JSON file at path over Default(). An empty path returns
// the defaults unchanged.
func Load(path string) (Pipeline, error) {
	p := Default()
	if path == "" {
		return p, nil
	}

	f, err := os.Open(path)
	if err != nil {
		return p, fmt.Errorf("open config: %w", err)
	}
	defer f.Close()

	dec := json.NewDecoder(f)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&p); err != nil {
		return p, fmt.Errorf("decode config: %w", err)
	}
	return p, nil
}

// ApplyEnv loads envFile (if it exists) into the process environment and
// applies the supported overrides to p. Variables already set in the
// environment win over the file.
func ApplyEnv(p *Pipeline, envFile string) error {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("load env %s: %w", envFile, err)
		}
	}

	if v := os.Getenv("DATABASE_URL"); v != "" {
		p.Sinks.Database.DSN = v
	}
	if v := os.Getenv("DATABASE_KIND"); v != "" {
		p.Sinks.Database.Kind = v
	}
	if v := os.Getenv("SPREADSHEET_ID"); v != "" {
		p.Sinks.Sheets.SpreadsheetID = v
	}
	if v := os.Getenv("GOOGLE_CREDENTIALS_FILE"); v != "" {
		p.Sinks.Sheets.CredentialsFile = v
	}
	if v := os.Getenv("METRICS_TAGS"); v != "" {
		for _, t := range strings.Split(v, ",") {
			if t = strings.TrimSpace(t); t != "" {
				p.Metrics.Tags = append(p.Metrics.Tags, t)
			}
		}
	}
	return nil
}
