// Package postgres implements storage.Repository on a single pgx connection.
package postgres

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"

	"fashionetl/internal/storage"
)

// maxParams stays under the protocol limit of 65535 bind parameters.
const maxParams = 65000

func init() {
	storage.Register("postgres", New)
}

// Repo is a Postgres-backed storage.Repository.
//
// It holds one connection for the lifetime of a sink write; there is no pool.
type Repo struct {
	conn *pgx.Conn
}

// New connects to cfg.DSN.
func New(ctx context.Context, cfg storage.Config) (storage.Repository, error) {
	conn, err := pgx.Connect(ctx, cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("postgres: connect: %w", err)
	}
	return &Repo{conn: conn}, nil
}

// Close closes the connection.
func (r *Repo) Close() {
	_ = r.conn.Close(context.Background())
}

// EnsureTable creates the schema (for qualified names) and the table if missing.
func (r *Repo) EnsureTable(ctx context.Context, spec storage.TableSpec) error {
	schemaSQL, tableSQL, err := buildCreateSQL(spec)
	if err != nil {
		return err
	}
	if schemaSQL != "" {
		if _, err := r.conn.Exec(ctx, schemaSQL); err != nil {
			return fmt.Errorf("create schema for %s: %w", spec.Name, err)
		}
	}
	if _, err := r.conn.Exec(ctx, tableSQL); err != nil {
		return fmt.Errorf("create table %s: %w", spec.Name, err)
	}
	return nil
}

// AppendRows inserts rows with multi-row INSERT statements inside one
// transaction.
func (r *Repo) AppendRows(ctx context.Context, table string, columns []string, rows [][]any) (int64, error) {
	if len(rows) == 0 {
		return 0, nil
	}
	var total int64
	err := pgx.BeginFunc(ctx, r.conn, func(tx pgx.Tx) error {
		for _, chunk := range storage.ChunkRows(rows, len(columns), maxParams) {
			sql, args := buildInsertSQL(table, columns, chunk)
			tag, err := tx.Exec(ctx, sql, args...)
			if err != nil {
				return err
			}
			total += tag.RowsAffected()
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("insert into %s: %w", table, err)
	}
	return total, nil
}

// buildCreateSQL returns the optional CREATE SCHEMA statement and the
// CREATE TABLE IF NOT EXISTS statement for spec.
func buildCreateSQL(spec storage.TableSpec) (schemaSQL, tableSQL string, err error) {
	if err := spec.Validate(); err != nil {
		return "", "", err
	}

	if schema, _ := storage.SplitQualifiedName(spec.Name); schema != "" {
		schemaSQL = fmt.Sprintf(`CREATE SCHEMA IF NOT EXISTS %s;`, pgIdent(schema))
	}

	defs := make([]string, 0, len(spec.Columns))
	for _, c := range spec.Columns {
		def := pgIdent(c.Name) + " " + pgType(c.Type)
		if !c.IsNullable() {
			def += " NOT NULL"
		}
		defs = append(defs, def)
	}

	tableSQL = fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (%s);`,
		pgTableIdent(spec.Name), strings.Join(defs, ", "))
	return schemaSQL, tableSQL, nil
}

func pgType(t storage.ColumnType) string {
	switch t {
	case storage.TypeFloat:
		return "DOUBLE PRECISION"
	case storage.TypeBigInt:
		return "BIGINT"
	case storage.TypeTimestamp:
		return "TIMESTAMPTZ"
	default:
		return "TEXT"
	}
}

// buildInsertSQL constructs one multi-row INSERT with $n placeholders.
// Every row must have len(columns) cells.
func buildInsertSQL(table string, columns []string, rows [][]any) (string, []any) {
	var b strings.Builder
	b.WriteString("INSERT INTO ")
	b.WriteString(pgTableIdent(table))
	b.WriteString(" (")
	for i, c := range columns {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(pgIdent(c))
	}
	b.WriteString(") VALUES ")

	args := make([]any, 0, len(rows)*len(columns))
	p := 1
	for i, row := range rows {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString("(")
		for j := range columns {
			if j > 0 {
				b.WriteString(", ")
			}
			fmt.Fprintf(&b, "$%d", p)
			args = append(args, row[j])
			p++
		}
		b.WriteString(")")
	}
	b.WriteString(";")
	return b.String(), args
}

// pgIdent double-quotes an identifier, doubling embedded quotes.
func pgIdent(id string) string {
	return `"` + strings.ReplaceAll(id, `"`, `""`) + `"`
}

// pgTableIdent quotes each part of a possibly schema-qualified name.
func pgTableIdent(name string) string {
	if schema, table := storage.SplitQualifiedName(name); schema != "" {
		return pgIdent(schema) + "." + pgIdent(table)
	}
	return pgIdent(strings.TrimSpace(name))
}
