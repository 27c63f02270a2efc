// Package emit serializes result envelopes. Consumers always receive
// parseable structured output, even on total failure.
package emit

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"gleaner/internal/schema"
)

// Stdout markers let wrapping executors find the final envelope in noisy
// output streams.
const (
	StartMarker = "=== EXECUTION_RESULTS_START ==="
	EndMarker   = "=== EXECUTION_RESULTS_END ==="
)

// Envelope is the process-boundary output contract. Partial and final
// envelopes share this shape; consumers distinguish by IsPartial.
type Envelope struct {
	Success       bool                     `json:"success"`
	Data          []schema.ValidatedRecord `json:"data"`
	TotalFound    int                      `json:"totalFound"`
	ExecutionTime int64                    `json:"executionTime"`
	IsPartial     bool                     `json:"isPartial,omitempty"`
	Errors        []string                 `json:"errors,omitempty"`
	Metadata      *Metadata                `json:"metadata,omitempty"`
}

// Metadata carries run diagnostics alongside the records.
type Metadata struct {
	RunID             string `json:"runId,omitempty"`
	Pages             int    `json:"pages,omitempty"`
	Duplicates        int    `json:"duplicates,omitempty"`
	Invalid           int    `json:"invalid,omitempty"`
	TerminationReason string `json:"terminationReason,omitempty"`
}

// Emitter writes envelopes to a stream. A partial envelope goes out every
// Interval accepted records; exactly one final envelope ends the run.
type Emitter struct {
	w           io.Writer
	interval    int
	markers     bool
	lastEmitted int
	finalized   bool
}

// NewEmitter creates an emitter. interval <= 0 disables partial emission.
func NewEmitter(w io.Writer, interval int, markers bool) *Emitter {
	return &Emitter{w: w, interval: interval, markers: markers}
}

// MaybePartial emits a partial envelope when at least interval records have
// been accepted since the last emission. Data in successive partials is a
// monotonic superset of earlier partials: records are only ever appended.
func (e *Emitter) MaybePartial(records []schema.ValidatedRecord, elapsed time.Duration, meta *Metadata) error {
	if e.interval <= 0 || e.finalized {
		return nil
	}
	if len(records)-e.lastEmitted < e.interval {
		return nil
	}
	e.lastEmitted = len(records)
	return e.write(Envelope{
		Success:       true,
		Data:          records,
		TotalFound:    len(records),
		ExecutionTime: elapsed.Milliseconds(),
		IsPartial:     true,
		Metadata:      meta,
	}, false)
}

// Final emits the single closing envelope. Later calls are rejected.
func (e *Emitter) Final(records []schema.ValidatedRecord, elapsed time.Duration, meta *Metadata) error {
	if e.finalized {
		return fmt.Errorf("final envelope already emitted")
	}
	e.finalized = true
	if records == nil {
		records = []schema.ValidatedRecord{}
	}
	return e.write(Envelope{
		Success:       true,
		Data:          records,
		TotalFound:    len(records),
		ExecutionTime: elapsed.Milliseconds(),
		Metadata:      meta,
	}, true)
}

// Failure emits a well-formed envelope for a task that produced no data.
func (e *Emitter) Failure(errs []string, elapsed time.Duration, meta *Metadata) error {
	if e.finalized {
		return fmt.Errorf("final envelope already emitted")
	}
	e.finalized = true
	return e.write(Envelope{
		Success:       false,
		Data:          []schema.ValidatedRecord{},
		TotalFound:    0,
		ExecutionTime: elapsed.Milliseconds(),
		Errors:        errs,
		Metadata:      meta,
	}, true)
}

func (e *Emitter) write(env Envelope, isFinal bool) error {
	payload, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("failed to marshal envelope: %w", err)
	}
	if e.markers && isFinal {
		fmt.Fprintln(e.w, StartMarker)
		fmt.Fprintln(e.w, string(payload))
		fmt.Fprintln(e.w, EndMarker)
		return nil
	}
	_, err = fmt.Fprintln(e.w, string(payload))
	return err
}
