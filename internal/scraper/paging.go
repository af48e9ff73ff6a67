package scraper

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"fashionetl/internal/metrics"
	"fashionetl/internal/product"

	"github.com/PuerkitoBio/goquery"
)

// Options controls a Scraper.
type Options struct {
	// BaseURL is page 1. Page N is BaseURL + "page{N}", so it normally ends in '/'.
	BaseURL string
	// StartPage is the first N used after the base page. Defaults to 2.
	StartPage int
	// Delay is slept after the base page and before every following page.
	Delay time.Duration
	// MaxPages caps the total pages fetched, base page included. 0 means no cap.
	MaxPages int
	// Selectors default to DefaultSelectors for every empty field.
	Selectors Selectors
}

type pageFetcher interface {
	Fetch(ctx context.Context, url string) ([]byte, error)
}

// Scraper walks the listing pages in order and collects raw products.
type Scraper struct {
	fetcher pageFetcher
	opts    Options
	sel     Selectors

	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) error
}

// New creates a Scraper that fetches through f.
func New(f *Fetcher, opts Options) *Scraper {
	return newScraper(f, opts)
}

func newScraper(f pageFetcher, opts Options) *Scraper {
	if opts.StartPage <= 0 {
		opts.StartPage = 2
	}
	return &Scraper{
		fetcher: f,
		opts:    opts,
		sel:     opts.Selectors.withDefaults(),
		now:     time.Now,
		sleep:   sleepCtx,
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// PageURL returns the URL of listing page n (n >= 2).
func PageURL(baseURL string, n int) string {
	return fmt.Sprintf("%spage%d", baseURL, n)
}

// Scrape fetches the base page, then pages StartPage, StartPage+1, ... until a
// page cannot be fetched or carries no next marker.
//
// A page that cannot be fetched ends the walk normally and the products
// collected so far are returned. Products that fail extraction are skipped.
// A parse failure, a panic or ctx cancellation fails the whole run: the
// result is then nil with a non-nil error. A successful run always returns a
// non-nil slice, possibly empty.
func (s *Scraper) Scrape(ctx context.Context) (out []product.RawRecord, err error) {
	defer func() {
		if r := recover(); r != nil {
			out, err = nil, fmt.Errorf("scrape: panic: %v", r)
		}
		if err != nil {
			log.Printf("scrape: failed: %v", err)
		}
	}()

	data := make([]product.RawRecord, 0)
	pages := 0

	url := s.opts.BaseURL
	doc, err := s.page(ctx, url)
	if err != nil {
		return nil, err
	}
	pages++
	if doc != nil {
		data = append(data, s.extractAll(doc)...)
	}

	if err := s.sleep(ctx, s.opts.Delay); err != nil {
		return nil, fmt.Errorf("scrape: %w", err)
	}

	for n := s.opts.StartPage; ; n++ {
		if s.opts.MaxPages > 0 && pages >= s.opts.MaxPages {
			log.Printf("scrape: reached max_pages=%d", s.opts.MaxPages)
			break
		}

		url = PageURL(s.opts.BaseURL, n)
		doc, err := s.page(ctx, url)
		if err != nil {
			return nil, err
		}
		if doc == nil {
			log.Printf("scrape: content not found at %s", url)
			break
		}
		pages++
		data = append(data, s.extractAll(doc)...)

		if doc.Find(s.sel.Next).Length() == 0 {
			log.Printf("scrape: no next page after %s", url)
			break
		}
		if err := s.sleep(ctx, s.opts.Delay); err != nil {
			return nil, fmt.Errorf("scrape: %w", err)
		}
	}

	metrics.RecordRecords("scraped", len(data))
	return data, nil
}

// page fetches and parses url. A fetch failure yields (nil, nil) so the
// caller can treat it as "no content"; only cancellation and parse errors are
// returned.
func (s *Scraper) page(ctx context.Context, url string) (*goquery.Document, error) {
	log.Printf("scrape: fetching %s", url)

	body, err := s.fetcher.Fetch(ctx, url)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, fmt.Errorf("scrape: %w", ctxErr)
		}
		if !errors.Is(err, ErrNoContent) {
			return nil, fmt.Errorf("scrape: fetch %s: %w", url, err)
		}
		metrics.RecordPage("error")
		return nil, nil
	}
	if len(body) == 0 {
		metrics.RecordPage("empty")
		return nil, nil
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("scrape: parse html %s: %w", url, err)
	}
	metrics.RecordPage("ok")
	return doc, nil
}

func (s *Scraper) extractAll(doc *goquery.Document) []product.RawRecord {
	out, skipped := ExtractAll(doc.Selection, s.sel, s.now)
	metrics.RecordRecords("skipped", skipped)
	return out
}
