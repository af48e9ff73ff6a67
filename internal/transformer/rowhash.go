package transformer

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"
	"time"

	"fashionetl/internal/frame"
)

const cellSep = "\x1f"

// RowHash returns the hex SHA-256 of a row's canonical form. Two rows hash
// equal exactly when every cell has the same type and value, so nil differs
// from "" and int64(1) differs from "1".
func RowHash(row []any) string {
	var (
		b       strings.Builder
		scratch [64]byte
	)
	b.Grow(len(row) * 24)
	for i, v := range row {
		if i > 0 {
			b.WriteString(cellSep)
		}
		appendCanonicalValue(&b, v, &scratch)
	}
	sum := sha256.Sum256([]byte(b.String()))
	return hex.EncodeToString(sum[:])
}

// Dedupe returns a frame without exact duplicate rows. The first occurrence
// of each row is kept and row order is preserved.
func Dedupe(f *frame.Frame) *frame.Frame {
	seen := make(map[string]struct{}, f.Len())
	return f.Filter(func(row []any) bool {
		h := RowHash(row)
		if _, dup := seen[h]; dup {
			return false
		}
		seen[h] = struct{}{}
		return true
	})
}

// appendCanonicalValue writes a one-byte type tag followed by a stable text
// form of v.
func appendCanonicalValue(b *strings.Builder, v any, scratch *[64]byte) {
	switch t := v.(type) {
	case nil:
		b.WriteByte('\x00')

	case string:
		b.WriteByte('s')
		b.WriteString(t)

	case bool:
		b.WriteByte('b')
		b.Write(strconv.AppendBool(scratch[:0], t))

	case int:
		b.WriteByte('i')
		b.Write(strconv.AppendInt(scratch[:0], int64(t), 10))
	case int32:
		b.WriteByte('i')
		b.Write(strconv.AppendInt(scratch[:0], int64(t), 10))
	case int64:
		b.WriteByte('i')
		b.Write(strconv.AppendInt(scratch[:0], t, 10))

	case float32:
		b.WriteByte('f')
		b.Write(strconv.AppendFloat(scratch[:0], float64(t), 'g', -1, 32))
	case float64:
		b.WriteByte('f')
		b.Write(strconv.AppendFloat(scratch[:0], t, 'g', -1, 64))

	case time.Time:
		tt := t
		if !tt.IsZero() {
			tt = tt.UTC()
		}
		b.WriteByte('t')
		b.WriteString(tt.Format(time.RFC3339Nano))

	default:
		b.WriteByte('?')
		fmt.Fprintf(b, "%v", t)
	}
}
