// Package sink defines the output side of the pipeline. A Sink persists a
// cleaned frame somewhere; WriteAll fans a frame out to several sinks so
// that one failing destination never blocks the others.
package sink

import (
	"context"
	"fmt"
	"log"
	"time"

	"fashionetl/internal/frame"
	"fashionetl/internal/metrics"
)

// Sink writes a whole frame to one destination.
type Sink interface {
	Name() string
	Write(ctx context.Context, f *frame.Frame) error
}

// Result is the outcome of one sink call.
type Result struct {
	Sink     string
	Err      error
	Duration time.Duration
}

// WriteAll calls every sink in order. Failures and panics are logged and
// counted but never returned; the results are for callers that want to
// report on them.
func WriteAll(ctx context.Context, f *frame.Frame, sinks ...Sink) []Result {
	out := make([]Result, 0, len(sinks))
	for _, s := range sinks {
		if s == nil {
			continue
		}
		start := time.Now()
		err := safeWrite(ctx, s, f)
		res := Result{Sink: s.Name(), Err: err, Duration: time.Since(start)}
		out = append(out, res)

		if err != nil {
			log.Printf("sink %s: %v", res.Sink, err)
			metrics.RecordSink(res.Sink, "error")
			continue
		}
		log.Printf("sink %s: wrote %d rows in %s", res.Sink, f.Len(), res.Duration.Round(time.Millisecond))
		metrics.RecordSink(res.Sink, "ok")
	}
	return out
}

func safeWrite(ctx context.Context, s Sink, f *frame.Frame) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	if f == nil {
		return fmt.Errorf("nil frame")
	}
	return s.Write(ctx, f)
}
