package product

import (
	"testing"
	"time"
)

func TestValuesFollowColumns(t *testing.T) {
	t.Parallel()

	now := time.Now()
	raw := RawRecord{Title: "T", Price: "$1", Rating: "r", Colors: "c", Size: "s", Gender: "g", Timestamp: now}
	if got := len(raw.Values()); got != len(Columns()) {
		t.Fatalf("RawRecord.Values() len=%d, want %d", got, len(Columns()))
	}

	rating := 4.5
	rec := Record{Title: "T", Price: 16000, Rating: &rating, Colors: 3, Size: "M", Gender: "Men", Timestamp: "x"}
	v := rec.Values()
	if v[2] != 4.5 || v[3] != int64(3) {
		t.Fatalf("unexpected values: %v", v)
	}

	rec.Rating = nil
	if v := rec.Values(); v[2] != nil {
		t.Fatalf("missing rating should be nil, got %v", v[2])
	}
}

func TestColumnsReturnsFreshSlice(t *testing.T) {
	t.Parallel()

	a := Columns()
	a[0] = "changed"
	if Columns()[0] != ColTitle {
		t.Fatalf("Columns() aliases shared storage")
	}
}
