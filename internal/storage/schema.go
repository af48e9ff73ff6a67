package storage

import (
	"fmt"
	"strings"
)

// ColumnType is a portable column type. Each backend maps it to its own DDL.
type ColumnType string

const (
	TypeText      ColumnType = "text"
	TypeFloat     ColumnType = "float"
	TypeBigInt    ColumnType = "bigint"
	TypeTimestamp ColumnType = "timestamp"
)

type ColumnSpec struct {
	Name string
	Type ColumnType
	// Nullable defaults to true when nil.
	Nullable *bool
}

// IsNullable reports the effective nullability of c.
func (c ColumnSpec) IsNullable() bool {
	return c.Nullable == nil || *c.Nullable
}

// TableSpec describes a table to create. Name may be schema-qualified
// ("public.product_records").
type TableSpec struct {
	Name    string
	Columns []ColumnSpec
}

// Validate checks that t can be turned into DDL.
func (t TableSpec) Validate() error {
	if strings.TrimSpace(t.Name) == "" {
		return fmt.Errorf("storage: table name is empty")
	}
	if len(t.Columns) == 0 {
		return fmt.Errorf("storage: table %s has no columns", t.Name)
	}
	seen := make(map[string]bool, len(t.Columns))
	for _, c := range t.Columns {
		n := strings.ToLower(strings.TrimSpace(c.Name))
		if n == "" {
			return fmt.Errorf("storage: table %s has a column with an empty name", t.Name)
		}
		if seen[n] {
			return fmt.Errorf("storage: table %s declares column %q twice", t.Name, c.Name)
		}
		seen[n] = true
		switch c.Type {
		case TypeText, TypeFloat, TypeBigInt, TypeTimestamp:
		default:
			return fmt.Errorf("storage: column %s has unsupported type %q", c.Name, c.Type)
		}
	}
	return nil
}

// SplitQualifiedName splits "schema.table" into its parts. Names without
// exactly one dot return an empty schema.
func SplitQualifiedName(name string) (schema, table string) {
	name = strings.TrimSpace(name)
	parts := strings.Split(name, ".")
	if len(parts) != 2 {
		return "", name
	}
	return strings.TrimSpace(parts[0]), strings.TrimSpace(parts[1])
}

// ChunkRows splits rows so that no chunk binds more than maxParams
// placeholders. Each chunk holds at least one row.
func ChunkRows(rows [][]any, width, maxParams int) [][][]any {
	if len(rows) == 0 {
		return nil
	}
	per := len(rows)
	if width > 0 && maxParams > 0 {
		per = maxParams / width
		if per < 1 {
			per = 1
		}
	}

	out := make([][][]any, 0, (len(rows)+per-1)/per)
	for start := 0; start < len(rows); start += per {
		end := start + per
		if end > len(rows) {
			end = len(rows)
		}
		out = append(out, rows[start:end])
	}
	return out
}
