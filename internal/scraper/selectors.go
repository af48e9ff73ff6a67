package scraper

// Selectors are the CSS selectors that describe the listing site's markup.
// Empty fields fall back to DefaultSelectors.
type Selectors struct {
	// Record matches one product block.
	Record string `json:"record"`
	// Title is the product heading inside a record.
	Title string `json:"title"`
	// PriceContainer switches the record to the four-field layout.
	PriceContainer string `json:"price_container"`
	// Price is the price element inside PriceContainer.
	Price string `json:"price"`
	// Field matches the positional text fields (price?, rating, colors, size, gender).
	Field string `json:"field"`
	// Next marks that another listing page follows.
	Next string `json:"next"`
}

// DefaultSelectors matches https://fashion-studio.dicoding.dev/.
func DefaultSelectors() Selectors {
	return Selectors{
		Record:         "div.product-details",
		Title:          "h3",
		PriceContainer: "div.price-container",
		Price:          "span.price",
		Field:          "p",
		Next:           "li.page-item.next",
	}
}

func (s Selectors) withDefaults() Selectors {
	d := DefaultSelectors()
	if s.Record == "" {
		s.Record = d.Record
	}
	if s.Title == "" {
		s.Title = d.Title
	}
	if s.PriceContainer == "" {
		s.PriceContainer = d.PriceContainer
	}
	if s.Price == "" {
		s.Price = d.Price
	}
	if s.Field == "" {
		s.Field = d.Field
	}
	if s.Next == "" {
		s.Next = d.Next
	}
	return s
}
