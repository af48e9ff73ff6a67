// Package pipeline wires the scrape, transform and load stages into one run.
package pipeline

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log"
	"time"

	"fashionetl/internal/config"
	"fashionetl/internal/frame"
	"fashionetl/internal/metrics"
	"fashionetl/internal/product"
	"fashionetl/internal/scraper"
	"fashionetl/internal/sink"
	"fashionetl/internal/sink/csvfile"
	"fashionetl/internal/sink/dbtable"
	"fashionetl/internal/sink/sheets"
	"fashionetl/internal/storage"
	"fashionetl/internal/transformer"
)

// PreviewRows is how many cleaned rows are logged before loading.
const PreviewRows = 10

// Scraper is the extract stage.
type Scraper interface {
	Scrape(ctx context.Context) ([]product.RawRecord, error)
}

// Runner executes one ETL run per Run call.
type Runner struct {
	NewScraper func(src config.Source) Scraper
	NewSinks   func(s config.Sinks) []sink.Sink
	// Preview receives the table preview. nil sends it to the log.
	Preview io.Writer
}

// NewDefaultRunner returns a Runner backed by the HTTP scraper and the sinks
// enabled in the config.
func NewDefaultRunner() *Runner {
	return &Runner{NewScraper: NewScraper, NewSinks: BuildSinks}
}

// NewScraper builds the HTTP scraper for src.
func NewScraper(src config.Source) Scraper {
	f := scraper.NewFetcher(nil, src.UserAgent, src.FetchTimeout.Std())
	return scraper.New(f, scraper.Options{
		BaseURL:   src.BaseURL,
		StartPage: src.StartPage,
		Delay:     src.Delay.Std(),
		MaxPages:  src.MaxPages,
	})
}

// BuildSinks returns the enabled sinks in load order: CSV, database, Sheets.
func BuildSinks(s config.Sinks) []sink.Sink {
	var out []sink.Sink
	if s.CSV.Enabled {
		out = append(out, csvfile.New(s.CSV.Path))
	}
	if s.Database.Enabled {
		out = append(out, dbtable.New(storage.Config{Kind: s.Database.Kind, DSN: s.Database.DSN}, s.Database.Table))
	}
	if s.Sheets.Enabled {
		out = append(out, sheets.New(s.Sheets.CredentialsFile, s.Sheets.SpreadsheetID, s.Sheets.Sheet))
	}
	return out
}

// Run scrapes, cleans and loads once.
//
// No scraped data ends the run without error. Failed scrape or transform
// stages are returned. Sink failures are only logged.
func (r *Runner) Run(ctx context.Context, p config.Pipeline) error {
	if r.NewScraper == nil || r.NewSinks == nil {
		return errors.New("pipeline: runner is not configured")
	}

	var raw []product.RawRecord
	err := step("scrape", func() error {
		var err error
		raw, err = r.NewScraper(p.Source).Scrape(ctx)
		return err
	})
	if err != nil {
		return err
	}
	if len(raw) == 0 {
		log.Printf("No data found.")
		return nil
	}
	log.Printf("scrape: collected %d products", len(raw))

	var clean *frame.Frame
	err = step("transform", func() error {
		tab, err := transformer.Tabulate(raw)
		if err != nil {
			return err
		}
		clean, err = transformer.Clean(tab, p.Transform.ExchangeRate)
		return err
	})
	if err != nil {
		return err
	}

	r.preview(clean)

	_ = step("load", func() error {
		sink.WriteAll(ctx, clean, r.NewSinks(p.Sinks)...)
		return nil
	})
	return nil
}

func (r *Runner) preview(f *frame.Frame) {
	if r.Preview != nil {
		f.Preview(r.Preview, PreviewRows)
		return
	}
	var buf bytes.Buffer
	f.Preview(&buf, PreviewRows)
	log.Printf("transform: cleaned table\n%s", buf.String())
}

func step(name string, fn func() error) error {
	start := time.Now()
	err := fn()
	status := "ok"
	if err != nil {
		status = "error"
	}
	metrics.RecordStep(name, status, time.Since(start))
	return err
}
