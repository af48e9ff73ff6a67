// Package dbtable appends a frame to a relational table through a
// storage.Repository. The table is created on first use from the product
// schema; later runs only append.
package dbtable

import (
	"context"
	"fmt"

	"fashionetl/internal/frame"
	"fashionetl/internal/product"
	"fashionetl/internal/storage"
)

// DefaultTable is used when Sink.Table is empty.
const DefaultTable = "product_records"

type Sink struct {
	Config storage.Config
	Table  string

	open func(context.Context, storage.Config) (storage.Repository, error)
}

// New returns a sink for the backend registered under cfg.Kind. The backend
// package must be linked in (see storage/all).
func New(cfg storage.Config, table string) *Sink {
	if table == "" {
		table = DefaultTable
	}
	return &Sink{Config: cfg, Table: table, open: storage.New}
}

func (s *Sink) Name() string { return "db" }

// Write opens the repository, ensures the table, appends every row and
// closes the connection before returning.
func (s *Sink) Write(ctx context.Context, f *frame.Frame) error {
	spec := TableSpecFor(s.Table, f)
	if err := spec.Validate(); err != nil {
		return err
	}

	open := s.open
	if open == nil {
		open = storage.New
	}
	repo, err := open(ctx, s.Config)
	if err != nil {
		return fmt.Errorf("open %s: %w", s.Config.Kind, err)
	}
	defer repo.Close()

	if err := repo.EnsureTable(ctx, spec); err != nil {
		return err
	}
	n, err := repo.AppendRows(ctx, s.Table, f.Columns, f.Rows)
	if err != nil {
		return err
	}
	if n != int64(f.Len()) {
		return fmt.Errorf("append %s: inserted %d of %d rows", s.Table, n, f.Len())
	}
	return nil
}

// productTypes is the column schema of a cleaned product frame.
var productTypes = map[string]storage.ColumnType{
	product.ColTitle:     storage.TypeText,
	product.ColPrice:     storage.TypeFloat,
	product.ColRating:    storage.TypeFloat,
	product.ColColors:    storage.TypeBigInt,
	product.ColSize:      storage.TypeText,
	product.ColGender:    storage.TypeText,
	product.ColTimestamp: storage.TypeText,
}

// TableSpecFor returns a nullable column list for f. Product columns get
// their fixed type whatever the cells hold; other columns are typed from
// their values.
func TableSpecFor(table string, f *frame.Frame) storage.TableSpec {
	cols := make([]storage.ColumnSpec, len(f.Columns))
	for i, name := range f.Columns {
		typ, ok := productTypes[name]
		if !ok {
			typ = columnType(f.ColumnKind(i))
		}
		cols[i] = storage.ColumnSpec{Name: name, Type: typ}
	}
	return storage.TableSpec{Name: table, Columns: cols}
}

func columnType(k frame.Kind) storage.ColumnType {
	switch k {
	case frame.KindFloat:
		return storage.TypeFloat
	case frame.KindInt:
		return storage.TypeBigInt
	case frame.KindTime:
		return storage.TypeTimestamp
	default:
		return storage.TypeText
	}
}
