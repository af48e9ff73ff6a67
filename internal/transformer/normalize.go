// Package transformer turns raw scraped products into a clean, typed table.
package transformer

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"fashionetl/internal/frame"
	"fashionetl/internal/metrics"
	"fashionetl/internal/product"
)

// ErrNoInput is returned when a stage receives no dataset at all, as opposed
// to an empty one.
var ErrNoInput = errors.New("transformer: no input")

// TimestampLayout is the text form of the cleaned Timestamp column. The
// fraction is always six digits so every row has the same width.
const TimestampLayout = "2006-01-02 15:04:05.000000"

var ratingRe = regexp.MustCompile(`⭐\s*([\d.]+)`)

// Tabulate lays records out as a frame with product.Columns(). A nil slice
// fails with ErrNoInput; an empty slice gives an empty frame.
func Tabulate(records []product.RawRecord) (*frame.Frame, error) {
	if records == nil {
		return nil, ErrNoInput
	}
	f := frame.New(product.Columns())
	for _, r := range records {
		if err := f.Append(r.Values()); err != nil {
			return nil, err
		}
	}
	return f, nil
}

type colIndex struct {
	title, price, rating, colors, size, gender, ts int
}

func indexColumns(f *frame.Frame) (colIndex, error) {
	var (
		ci   colIndex
		errs []error
	)
	for _, c := range []struct {
		name string
		dst  *int
	}{
		{product.ColTitle, &ci.title},
		{product.ColPrice, &ci.price},
		{product.ColRating, &ci.rating},
		{product.ColColors, &ci.colors},
		{product.ColSize, &ci.size},
		{product.ColGender, &ci.gender},
		{product.ColTimestamp, &ci.ts},
	} {
		i, err := f.Index(c.name)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		*c.dst = i
	}
	return ci, errors.Join(errs...)
}

// Clean normalizes a raw product frame.
//
// Steps, in order: drop exact duplicate rows; drop rows whose Title is
// product.UnknownTitle or whose Price is product.PriceUnavailable; convert
// Price ("$10") to a float multiplied by exchangeRate; parse Rating
// ("⭐ 4.5 / 5") to a float, or nil when there is no match; take the first
// token of Colors as an integer; take the second token of Size and Gender;
// render Timestamp with TimestampLayout.
//
// Any failure returns (nil, err); a partially cleaned frame is never returned.
func Clean(f *frame.Frame, exchangeRate float64) (*frame.Frame, error) {
	if f == nil {
		return nil, fmt.Errorf("clean: %w", ErrNoInput)
	}
	ci, err := indexColumns(f)
	if err != nil {
		return nil, fmt.Errorf("clean: %w", err)
	}

	deduped := Dedupe(f)
	kept := deduped.Filter(func(row []any) bool {
		if s, ok := row[ci.title].(string); ok && s == product.UnknownTitle {
			return false
		}
		if s, ok := row[ci.price].(string); ok && s == product.PriceUnavailable {
			return false
		}
		return true
	})

	out := frame.New(product.Columns())
	for i, row := range kept.Rows {
		rec, err := cleanRow(row, ci, exchangeRate)
		if err != nil {
			return nil, fmt.Errorf("clean: row %d: %w", i, err)
		}
		if err := out.Append(rec.Values()); err != nil {
			return nil, fmt.Errorf("clean: row %d: %w", i, err)
		}
	}

	metrics.RecordRecords("duplicate", f.Len()-deduped.Len())
	metrics.RecordRecords("filtered", deduped.Len()-kept.Len())
	metrics.RecordRecords("clean", out.Len())
	return out, nil
}

func cleanRow(row []any, ci colIndex, rate float64) (product.Record, error) {
	var (
		rec product.Record
		err error
	)

	rec.Title = frame.FormatCell(row[ci.title])

	priceText, err := cellText(row[ci.price], product.ColPrice)
	if err != nil {
		return rec, err
	}
	price, err := strconv.ParseFloat(strings.TrimSpace(strings.ReplaceAll(priceText, "$", "")), 64)
	if err != nil {
		return rec, fmt.Errorf("%s: %w", product.ColPrice, err)
	}
	rec.Price = price * rate

	if ratingText, ok := row[ci.rating].(string); ok {
		if m := ratingRe.FindStringSubmatch(ratingText); m != nil {
			v, err := strconv.ParseFloat(m[1], 64)
			if err != nil {
				return rec, fmt.Errorf("%s: %w", product.ColRating, err)
			}
			rec.Rating = &v
		}
	}

	colorsTok, err := token(row[ci.colors], product.ColColors, 0)
	if err != nil {
		return rec, err
	}
	if rec.Colors, err = strconv.ParseInt(colorsTok, 10, 64); err != nil {
		return rec, fmt.Errorf("%s: %w", product.ColColors, err)
	}

	if rec.Size, err = token(row[ci.size], product.ColSize, 1); err != nil {
		return rec, err
	}
	if rec.Gender, err = token(row[ci.gender], product.ColGender, 1); err != nil {
		return rec, err
	}

	ts, err := cellTime(row[ci.ts])
	if err != nil {
		return rec, err
	}
	rec.Timestamp = ts.Format(TimestampLayout)
	return rec, nil
}

func cellText(v any, col string) (string, error) {
	s, ok := v.(string)
	if !ok {
		return "", fmt.Errorf("%s: want text, got %T", col, v)
	}
	return s, nil
}

// token returns the n-th whitespace-separated token of a text cell.
func token(v any, col string, n int) (string, error) {
	s, err := cellText(v, col)
	if err != nil {
		return "", err
	}
	fields := strings.Fields(s)
	if len(fields) <= n {
		return "", fmt.Errorf("%s: missing token %d in %q", col, n, s)
	}
	return fields[n], nil
}

var timestampLayouts = []string{time.RFC3339Nano, TimestampLayout, "2006-01-02 15:04:05", "2006-01-02"}

func cellTime(v any) (time.Time, error) {
	switch t := v.(type) {
	case time.Time:
		return t, nil
	case string:
		for _, layout := range timestampLayouts {
			if ts, err := time.Parse(layout, strings.TrimSpace(t)); err == nil {
				return ts, nil
			}
		}
		return time.Time{}, fmt.Errorf("%s: unparseable %q", product.ColTimestamp, t)
	default:
		return time.Time{}, fmt.Errorf("%s: want time, got %T", product.ColTimestamp, v)
	}
}

// Records returns the typed rows of a frame produced by Clean.
func Records(f *frame.Frame) ([]product.Record, error) {
	if f == nil {
		return nil, ErrNoInput
	}
	ci, err := indexColumns(f)
	if err != nil {
		return nil, err
	}

	out := make([]product.Record, 0, f.Len())
	for i, row := range f.Rows {
		var (
			rec product.Record
			ok  bool
		)
		rec.Title, ok = row[ci.title].(string)
		if ok {
			rec.Price, ok = row[ci.price].(float64)
		}
		if ok && row[ci.rating] != nil {
			var r float64
			r, ok = row[ci.rating].(float64)
			rec.Rating = &r
		}
		if ok {
			rec.Colors, ok = row[ci.colors].(int64)
		}
		if ok {
			rec.Size, ok = row[ci.size].(string)
		}
		if ok {
			rec.Gender, ok = row[ci.gender].(string)
		}
		if ok {
			rec.Timestamp, ok = row[ci.ts].(string)
		}
		if !ok {
			return nil, fmt.Errorf("records: row %d is not a clean product row", i)
		}
		out = append(out, rec)
	}
	return out, nil
}
