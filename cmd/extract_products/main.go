// Command extract-products runs the product extractor over one listing page
// and prints the raw records as JSON. It is the tool for checking selectors
// against the live site or a saved page without running the whole pipeline.
//
// Usage (stdin):
//
//	cat page.html | extract-products
//
// Usage (fetch URL):
//
//	extract-products -url "https://fashion-studio.dicoding.dev/page2"
//
// Custom selectors:
//
//	extract-products -url ... -selectors selectors.json
//
// Debug (print text for selector matches):
//
//	cat page.html | extract-products -selector "div.product-details" -text
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"fashionetl/internal/product"
	"fashionetl/internal/scraper"
)

func main() {
	os.Exit(run(
		context.Background(),
		os.Args[1:],
		os.Stdin,
		os.Stdout,
		os.Stderr,
		http.DefaultClient,
	))
}

type output struct {
	Records []product.RawRecord `json:"records"`
	Skipped int                 `json:"skipped"`
	HasNext bool                `json:"has_next"`
}

// run returns 0 on success, 2 for usage errors and 1 for runtime errors.
func run(ctx context.Context, args []string, stdin io.Reader, stdout, stderr io.Writer, httpClient *http.Client) int {
	fs := flag.NewFlagSet("extract-products", flag.ContinueOnError)
	fs.SetOutput(stderr)

	urlFlag := fs.String("url", "", "fetch the page from URL instead of stdin")
	timeout := fs.Duration("timeout", 20*time.Second, "timeout for -url fetch")
	userAgent := fs.String("user-agent", scraper.DefaultUserAgent, "User-Agent for -url fetch")
	selectorsPath := fs.String("selectors", "", "JSON file overriding the default selectors")
	debugSelector := fs.String("selector", "", "debug: print matches for a CSS selector instead of records")
	onlyText := fs.Bool("text", false, "debug: print text of -selector matches instead of HTML")

	if err := fs.Parse(args); err != nil {
		return 2
	}

	var sel scraper.Selectors
	if *selectorsPath != "" {
		raw, err := os.ReadFile(*selectorsPath)
		if err != nil {
			fmt.Fprintf(stderr, "read selectors: %v\n", err)
			return 2
		}
		if err := json.Unmarshal(raw, &sel); err != nil {
			fmt.Fprintf(stderr, "parse selectors: %v\n", err)
			return 2
		}
	}

	var (
		html []byte
		err  error
	)
	if *urlFlag != "" {
		html, err = scraper.NewFetcher(httpClient, *userAgent, *timeout).Fetch(ctx, *urlFlag)
	} else {
		html, err = io.ReadAll(stdin)
	}
	if err != nil {
		fmt.Fprintf(stderr, "load html: %v\n", err)
		return 1
	}

	if *debugSelector != "" {
		if _, err := scraper.DebugPrintSelector(stdout, bytes.NewReader(html), *debugSelector, *onlyText); err != nil {
			fmt.Fprintf(stderr, "debug selector: %v\n", err)
			return 1
		}
		return 0
	}

	records, skipped, err := scraper.ExtractHTML(bytes.NewReader(html), sel, time.Now)
	if err != nil {
		fmt.Fprintf(stderr, "extract: %v\n", err)
		return 1
	}
	next, err := scraper.HasNext(bytes.NewReader(html), sel)
	if err != nil {
		fmt.Fprintf(stderr, "extract: %v\n", err)
		return 1
	}
	if records == nil {
		records = []product.RawRecord{}
	}

	enc := json.NewEncoder(stdout)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(output{Records: records, Skipped: skipped, HasNext: next}); err != nil {
		fmt.Fprintf(stderr, "encode json: %v\n", err)
		return 1
	}
	return 0
}
