// Package storage is the backend-agnostic relational layer used by the
// database sink. Backends register a factory under a kind ("postgres",
// "sqlite", "mssql") from an init function; import internal/storage/all to
// link every backend in.
package storage

import (
	"context"
	"fmt"
	"sort"
	"sync"
)

// Config selects and configures a backend.
//
// Kind must match a registered backend. DSN is passed through to the backend
// and validated there.
type Config struct {
	Kind string
	DSN  string
}

// Repository is the append-only table API the pipeline needs.
type Repository interface {
	// Close releases the connection. Call it once.
	Close()

	// EnsureTable creates the table when it does not exist. An existing table
	// is left untouched, whatever its columns.
	EnsureTable(ctx context.Context, spec TableSpec) error

	// AppendRows inserts rows in one transaction and returns the number of
	// rows written. Existing rows are never replaced.
	AppendRows(ctx context.Context, table string, columns []string, rows [][]any) (int64, error)
}

// Factory opens a Repository for cfg.
type Factory func(ctx context.Context, cfg Config) (Repository, error)

var (
	mu        sync.RWMutex
	factories = map[string]Factory{}
)

// Register makes a backend available to New under kind.
//
// It panics if kind is empty, f is nil, or kind is already registered.
func Register(kind string, f Factory) {
	mu.Lock()
	defer mu.Unlock()

	if kind == "" {
		panic("storage: Register called with empty kind")
	}
	if f == nil {
		panic("storage: Register called with nil factory")
	}
	if _, exists := factories[kind]; exists {
		panic(fmt.Sprintf("storage: factory already registered for kind=%q", kind))
	}
	factories[kind] = f
}

// New opens a Repository using the factory registered for cfg.Kind.
func New(ctx context.Context, cfg Config) (Repository, error) {
	if cfg.Kind == "" {
		return nil, fmt.Errorf("storage: missing kind")
	}

	mu.RLock()
	f := factories[cfg.Kind]
	mu.RUnlock()

	if f == nil {
		return nil, fmt.Errorf("storage: unsupported kind=%s (registered: %v)", cfg.Kind, Kinds())
	}
	return f(ctx, cfg)
}

// Kinds lists the registered backend kinds in sorted order.
func Kinds() []string {
	mu.RLock()
	defer mu.RUnlock()

	out := make([]string, 0, len(factories))
	for k := range factories {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
