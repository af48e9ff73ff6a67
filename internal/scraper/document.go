package scraper

import (
	"fmt"
	"io"
	"log"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"fashionetl/internal/product"
)

// ExtractAll extracts every record under root. Blocks that fail extraction
// are logged and counted in skipped.
func ExtractAll(root *goquery.Selection, sel Selectors, now func() time.Time) (out []product.RawRecord, skipped int) {
	sel = sel.withDefaults()
	root.Find(sel.Record).Each(func(_ int, rec *goquery.Selection) {
		r, err := sel.Extract(rec, now)
		if err != nil {
			log.Printf("scrape: %v", err)
			skipped++
			return
		}
		out = append(out, r)
	})
	return out, skipped
}

// ExtractHTML parses a listing page and extracts its products.
func ExtractHTML(r io.Reader, sel Selectors, now func() time.Time) ([]product.RawRecord, int, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return nil, 0, fmt.Errorf("parse html: %w", err)
	}
	out, skipped := ExtractAll(doc.Selection, sel, now)
	return out, skipped, nil
}

// HasNext reports whether the page carries the next-page marker.
func HasNext(r io.Reader, sel Selectors) (bool, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return false, fmt.Errorf("parse html: %w", err)
	}
	return doc.Find(sel.withDefaults().Next).Length() > 0, nil
}

// DebugPrintSelector prints the outer HTML, or only the trimmed text, of
// every match of selector. Each match is followed by a blank line.
func DebugPrintSelector(w io.Writer, r io.Reader, selector string, textOnly bool) (int, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return 0, fmt.Errorf("parse html: %w", err)
	}

	matches := doc.Find(selector)
	matches.Each(func(_ int, s *goquery.Selection) {
		if textOnly {
			fmt.Fprintln(w, strings.TrimSpace(s.Text()))
			fmt.Fprintln(w)
			return
		}
		out, err := goquery.OuterHtml(s)
		if err != nil {
			out, _ = s.Html()
		}
		fmt.Fprintln(w, out)
		fmt.Fprintln(w)
	})
	return matches.Length(), nil
}
