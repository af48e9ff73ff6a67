// Package product defines the record shapes that flow through the scrape
// pipeline: the raw text fields pulled off a listing page and the typed,
// cleaned record that every sink receives.
package product

import "time"

// Column names, in the order every table produced by the pipeline uses.
const (
	ColTitle     = "Title"
	ColPrice     = "Price"
	ColRating    = "Rating"
	ColColors    = "Colors"
	ColSize      = "Size"
	ColGender    = "Gender"
	ColTimestamp = "Timestamp"
)

// Sentinel values the site renders in place of missing data.
const (
	UnknownTitle     = "Unknown Product"
	PriceUnavailable = "Price Unavailable"
)

// Columns returns the canonical column order. A fresh slice is returned so
// callers may keep it without aliasing.
func Columns() []string {
	return []string{ColTitle, ColPrice, ColRating, ColColors, ColSize, ColGender, ColTimestamp}
}

// RawRecord is one product block as extracted from HTML. All fields except
// Timestamp are the trimmed element text, e.g. Price "$10", Rating
// "⭐ 4.5 / 5", Colors "3 Colors", Size "Size: M", Gender "Gender: Men".
type RawRecord struct {
	Title     string
	Price     string
	Rating    string
	Colors    string
	Size      string
	Gender    string
	Timestamp time.Time
}

// Values returns the record's cells in Columns() order.
func (r RawRecord) Values() []any {
	return []any{r.Title, r.Price, r.Rating, r.Colors, r.Size, r.Gender, r.Timestamp}
}

// Record is a cleaned product row.
//
// Rating is nil when the raw rating text carried no star-prefixed number.
// Price is already converted to the local currency.
type Record struct {
	Title     string
	Price     float64
	Rating    *float64
	Colors    int64
	Size      string
	Gender    string
	Timestamp string
}

// Values returns the record's cells in Columns() order. A missing rating is
// returned as nil.
func (r Record) Values() []any {
	var rating any
	if r.Rating != nil {
		rating = *r.Rating
	}
	return []any{r.Title, r.Price, rating, r.Colors, r.Size, r.Gender, r.Timestamp}
}
