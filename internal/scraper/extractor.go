package scraper

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"fashionetl/internal/product"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/text/unicode/norm"
)

// ErrExtractFailed is returned when a product block does not have the
// expected structure.
var ErrExtractFailed = errors.New("scraper: extract failed")

// ExtractProduct extracts one product from sel using DefaultSelectors.
func ExtractProduct(sel *goquery.Selection, now func() time.Time) (product.RawRecord, error) {
	return DefaultSelectors().Extract(sel, now)
}

// Extract reads one RawRecord from a product block.
//
// Two layouts are accepted:
//   - a PriceContainer holding the Price element, followed by four Field
//     elements: rating, colors, size, gender;
//   - no PriceContainer, five Field elements: price, rating, colors, size, gender.
//
// Values are the trimmed, NFC-normalized text of each element. The
// Timestamp is taken from now (time.Now when nil) at call time.
func (s Selectors) Extract(sel *goquery.Selection, now func() time.Time) (product.RawRecord, error) {
	if sel == nil || sel.Length() == 0 {
		return product.RawRecord{}, fmt.Errorf("%w: empty selection", ErrExtractFailed)
	}
	if now == nil {
		now = time.Now
	}
	s = s.withDefaults()

	heading := sel.Find(s.Title).First()
	if heading.Length() == 0 {
		return product.RawRecord{}, fmt.Errorf("%w: no %s heading", ErrExtractFailed, s.Title)
	}

	fields := sel.Find(s.Field)
	var (
		price  string
		values []string
	)

	if pc := sel.Find(s.PriceContainer).First(); pc.Length() > 0 {
		ps := pc.Find(s.Price).First()
		if ps.Length() == 0 {
			return product.RawRecord{}, fmt.Errorf("%w: %s without %s", ErrExtractFailed, s.PriceContainer, s.Price)
		}
		if fields.Length() < 4 {
			return product.RawRecord{}, fmt.Errorf("%w: want 4 %s fields, got %d", ErrExtractFailed, s.Field, fields.Length())
		}
		price = text(ps)
		values = texts(fields, 4)
	} else {
		if fields.Length() < 5 {
			return product.RawRecord{}, fmt.Errorf("%w: want 5 %s fields, got %d", ErrExtractFailed, s.Field, fields.Length())
		}
		all := texts(fields, 5)
		price, values = all[0], all[1:]
	}

	return product.RawRecord{
		Title:     text(heading),
		Price:     price,
		Rating:    values[0],
		Colors:    values[1],
		Size:      values[2],
		Gender:    values[3],
		Timestamp: now(),
	}, nil
}

func text(sel *goquery.Selection) string {
	return norm.NFC.String(strings.TrimSpace(sel.Text()))
}

func texts(sel *goquery.Selection, n int) []string {
	out := make([]string, 0, n)
	sel.EachWithBreak(func(i int, s *goquery.Selection) bool {
		out = append(out, text(s))
		return len(out) < n
	})
	return out
}
