package pipeline

import (
	"context"
	"errors"

	"gleaner/internal/driver"
)

// Kind classifies a failure into the pipeline's error taxonomy. Every catch
// site names one of these rather than logging and moving on unconditionally.
type Kind int

const (
	// KindNavigation covers timeouts, DNS failures, and blocked loads.
	// Recovered by trying a fallback URL, else the page attempt ends.
	KindNavigation Kind = iota
	// KindExtraction covers selector misses and semantic service errors.
	// Recovered by skipping the batch; never fatal to the task.
	KindExtraction
	// KindBudget marks the deadline being reached. A normal termination
	// path, not an error.
	KindBudget
	// KindFatal covers initialization failures: the task produces a
	// success:false envelope with no data.
	KindFatal
)

func (k Kind) String() string {
	switch k {
	case KindNavigation:
		return "navigation"
	case KindExtraction:
		return "extraction"
	case KindBudget:
		return "budget"
	default:
		return "fatal"
	}
}

// Classify maps an error from a pipeline collaborator onto the taxonomy.
func Classify(err error) Kind {
	switch {
	case errors.Is(err, driver.ErrNavigation):
		return KindNavigation
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return KindBudget
	default:
		return KindExtraction
	}
}
