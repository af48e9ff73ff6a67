// Package sheets writes a frame to a Google Sheets spreadsheet with a
// service account, replacing the cells from A1 onwards.
package sheets

import (
	"context"
	"errors"
	"fmt"
	"os"

	"google.golang.org/api/option"
	gsheets "google.golang.org/api/sheets/v4"

	"fashionetl/internal/frame"
)

const (
	DefaultCredentialsFile = "./client_secret.json"
	DefaultSheet           = "Sheet1"
)

// ErrInvalidColumn is returned by ColumnLabel for column numbers below 1.
var ErrInvalidColumn = errors.New("sheets: column number must be >= 1")

// ColumnLabel converts a 1-based column number to its A1 letters
// (1 -> A, 26 -> Z, 27 -> AA, 703 -> AAA).
func ColumnLabel(n int) (string, error) {
	if n <= 0 {
		return "", fmt.Errorf("%w: got %d", ErrInvalidColumn, n)
	}
	var buf []byte
	for n > 0 {
		n--
		buf = append(buf, byte('A'+n%26))
		n /= 26
	}
	for i, j := 0, len(buf)-1; i < j; i, j = i+1, j-1 {
		buf[i], buf[j] = buf[j], buf[i]
	}
	return string(buf), nil
}

// Range returns the A1 range covering a header row plus rows data rows.
func Range(sheet string, cols, rows int) (string, error) {
	last, err := ColumnLabel(cols)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%s!A1:%s%d", sheet, last, rows+1), nil
}

type valuesUpdater interface {
	Update(ctx context.Context, spreadsheetID, rng string, vr *gsheets.ValueRange) error
}

type apiUpdater struct {
	svc *gsheets.Service
}

func (u apiUpdater) Update(ctx context.Context, spreadsheetID, rng string, vr *gsheets.ValueRange) error {
	_, err := u.svc.Spreadsheets.Values.Update(spreadsheetID, rng, vr).
		ValueInputOption("RAW").
		Context(ctx).
		Do()
	return err
}

type Sink struct {
	CredentialsFile string
	SpreadsheetID   string
	Sheet           string

	newUpdater func(ctx context.Context, credentialsFile string) (valuesUpdater, error)
}

func New(credentialsFile, spreadsheetID, sheet string) *Sink {
	if credentialsFile == "" {
		credentialsFile = DefaultCredentialsFile
	}
	if sheet == "" {
		sheet = DefaultSheet
	}
	return &Sink{
		CredentialsFile: credentialsFile,
		SpreadsheetID:   spreadsheetID,
		Sheet:           sheet,
		newUpdater:      newAPIUpdater,
	}
}

func newAPIUpdater(ctx context.Context, credentialsFile string) (valuesUpdater, error) {
	creds, err := os.ReadFile(credentialsFile)
	if err != nil {
		return nil, fmt.Errorf("read credentials: %w", err)
	}
	svc, err := gsheets.NewService(ctx,
		option.WithCredentialsJSON(creds),
		option.WithScopes(gsheets.SpreadsheetsScope),
	)
	if err != nil {
		return nil, fmt.Errorf("sheets service: %w", err)
	}
	return apiUpdater{svc: svc}, nil
}

func (s *Sink) Name() string { return "sheets" }

// Write sends the header and every row in one values.update call.
func (s *Sink) Write(ctx context.Context, f *frame.Frame) error {
	if s.SpreadsheetID == "" {
		return errors.New("sheets: spreadsheet id is empty")
	}
	rng, err := Range(s.Sheet, f.Width(), f.Len())
	if err != nil {
		return err
	}

	newUpdater := s.newUpdater
	if newUpdater == nil {
		newUpdater = newAPIUpdater
	}
	u, err := newUpdater(ctx, s.CredentialsFile)
	if err != nil {
		return err
	}

	if err := u.Update(ctx, s.SpreadsheetID, rng, &gsheets.ValueRange{Values: values(f)}); err != nil {
		return fmt.Errorf("update %s: %w", rng, err)
	}
	return nil
}

// values converts the frame to the API's row-major cell grid. Missing cells
// are sent as empty strings; numbers stay numeric.
func values(f *frame.Frame) [][]any {
	out := make([][]any, 0, f.Len()+1)
	header := make([]any, len(f.Columns))
	for i, c := range f.Columns {
		header[i] = c
	}
	out = append(out, header)

	for _, r := range f.Rows {
		row := make([]any, len(r))
		for i, v := range r {
			switch v.(type) {
			case nil:
				row[i] = ""
			case string, float64, float32, int64, int:
				row[i] = v
			default:
				row[i] = frame.FormatCell(v)
			}
		}
		out = append(out, row)
	}
	return out
}
