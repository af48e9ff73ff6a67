// Package csvfile writes a frame to a CSV file with a header row.
package csvfile

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"fashionetl/internal/frame"
)

// DefaultPath is used when Sink.Path is empty.
const DefaultPath = "products.csv"

// Sink overwrites Path on every Write.
type Sink struct {
	Path string
}

func New(path string) *Sink {
	if path == "" {
		path = DefaultPath
	}
	return &Sink{Path: path}
}

func (s *Sink) Name() string { return "csv" }

func (s *Sink) Write(ctx context.Context, f *frame.Frame) (err error) {
	if err := ctx.Err(); err != nil {
		return err
	}
	if dir := filepath.Dir(s.Path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("mkdir %s: %w", dir, err)
		}
	}

	file, err := os.Create(s.Path)
	if err != nil {
		return fmt.Errorf("create %s: %w", s.Path, err)
	}
	defer func() {
		err = errors.Join(err, file.Close())
	}()

	w := csv.NewWriter(file)
	if err := w.WriteAll(f.Strings()); err != nil {
		return fmt.Errorf("write %s: %w", s.Path, err)
	}
	return nil
}
