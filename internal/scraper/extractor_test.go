package scraper

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/PuerkitoBio/goquery"
)

func firstRecord(t *testing.T, html string) *goquery.Selection {
	t.Helper()
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		t.Fatalf("parse html: %v", err)
	}
	return doc.Find("div.product-details").First()
}

func fixedNow() time.Time { return time.Date(2025, 3, 1, 10, 30, 0, 123456000, time.UTC) }

func TestExtractProduct_Layouts(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		html string
		want [6]string
	}{
		{
			name: "with_price_container",
			html: `<div class="product-details">
				<h3>Sample Product</h3>
				<div class="price-container"><span class="price">$100</span></div>
				<p>4.5 Stars</p><p>Red, Blue</p><p>L</p><p>Men</p>
			</div>`,
			want: [6]string{"Sample Product", "$100", "4.5 Stars", "Red, Blue", "L", "Men"},
		},
		{
			name: "without_price_container",
			html: `<div class="product-details">
				<h3> Another Product </h3>
				<p>$200</p><p>3.5 Stars</p><p>Black</p><p>M</p><p>Women</p>
			</div>`,
			want: [6]string{"Another Product", "$200", "3.5 Stars", "Black", "M", "Women"},
		},
		{
			name: "site_markup",
			html: `<div class="product-details">
				<h3 class="product-title">T-shirt 2</h3>
				<div class="price-container"><span class="price">$102.15</span></div>
				<p style="font-size: 14px;">Rating: ⭐ 3.9 / 5</p>
				<p style="font-size: 14px;">3 Colors</p>
				<p style="font-size: 14px;">Size: M</p>
				<p style="font-size: 14px;">Gender: Women</p>
			</div>`,
			want: [6]string{"T-shirt 2", "$102.15", "Rating: ⭐ 3.9 / 5", "3 Colors", "Size: M", "Gender: Women"},
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			r, err := ExtractProduct(firstRecord(t, tc.html), fixedNow)
			if err != nil {
				t.Fatalf("ExtractProduct() err=%v", err)
			}
			got := [6]string{r.Title, r.Price, r.Rating, r.Colors, r.Size, r.Gender}
			if got != tc.want {
				t.Fatalf("got %q, want %q", got, tc.want)
			}
			if !r.Timestamp.Equal(fixedNow()) {
				t.Fatalf("timestamp=%v, want %v", r.Timestamp, fixedNow())
			}
		})
	}
}

func TestExtractProduct_Malformed(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		html string
	}{
		{"no_heading", `<div class="product-details"><p>$1</p><p>a</p><p>b</p><p>c</p><p>d</p></div>`},
		{"too_few_fields", `<div class="product-details"><h3>X</h3><p>$1</p><p>a</p></div>`},
		{"container_without_price", `<div class="product-details"><h3>X</h3><div class="price-container"></div><p>a</p><p>b</p><p>c</p><p>d</p></div>`},
		{"container_too_few_fields", `<div class="product-details"><h3>X</h3><div class="price-container"><span class="price">$1</span></div><p>a</p></div>`},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			_, err := ExtractProduct(firstRecord(t, tc.html), fixedNow)
			if !errors.Is(err, ErrExtractFailed) {
				t.Fatalf("err=%v, want ErrExtractFailed", err)
			}
		})
	}
}

func TestExtractProduct_NilAndEmptySelection(t *testing.T) {
	t.Parallel()

	if _, err := ExtractProduct(nil, nil); !errors.Is(err, ErrExtractFailed) {
		t.Fatalf("nil selection: err=%v", err)
	}
	if _, err := ExtractProduct(firstRecord(t, `<p>nothing</p>`), nil); !errors.Is(err, ErrExtractFailed) {
		t.Fatalf("empty selection: err=%v", err)
	}
}

func TestExtractProduct_IdempotentApartFromTimestamp(t *testing.T) {
	t.Parallel()

	sel := firstRecord(t, `<div class="product-details"><h3>A</h3><p>$1</p><p>r</p><p>c</p><p>s</p><p>g</p></div>`)

	start := time.Now()
	a, errA := ExtractProduct(sel, nil)
	b, errB := ExtractProduct(sel, nil)
	if errA != nil || errB != nil {
		t.Fatalf("errs: %v %v", errA, errB)
	}
	if a.Timestamp.Before(start) || b.Timestamp.Before(start) {
		t.Fatalf("timestamps precede call start")
	}
	a.Timestamp, b.Timestamp = time.Time{}, time.Time{}
	if a != b {
		t.Fatalf("records differ: %+v vs %+v", a, b)
	}
}

func TestExtract_NFCNormalizes(t *testing.T) {
	t.Parallel()

	// "e" + combining acute accent
	sel := firstRecord(t, "<div class=\"product-details\"><h3>Cafe\u0301 Shirt</h3><p>$1</p><p>r</p><p>c</p><p>s</p><p>g</p></div>")
	r, err := ExtractProduct(sel, fixedNow)
	if err != nil {
		t.Fatalf("err=%v", err)
	}
	if r.Title != "Caf\u00e9 Shirt" {
		t.Fatalf("title=%q, want composed form", r.Title)
	}
}
