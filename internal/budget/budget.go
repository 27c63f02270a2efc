package budget

import (
	"context"
	"time"
)

// Governor enforces a wall-clock budget on a task. The start instant is
// captured once from the monotonic clock; Exceeded is checked at every loop
// boundary so the control loop stops issuing new work cooperatively rather
// than being interrupted mid-operation.
type Governor struct {
	start  time.Time
	budget time.Duration
	now    func() time.Time
}

// New creates a governor whose deadline is budget from now. A zero or
// negative budget means no limit.
func New(budget time.Duration) *Governor {
	g := &Governor{budget: budget, now: time.Now}
	g.start = g.now()
	return g
}

// Exceeded reports whether the configured budget has been spent.
func (g *Governor) Exceeded() bool {
	if g.budget <= 0 {
		return false
	}
	return g.Elapsed() >= g.budget
}

// Elapsed returns the wall-clock time spent since task start.
func (g *Governor) Elapsed() time.Duration {
	return g.now().Sub(g.start)
}

// Remaining returns the unspent budget, never negative. Unlimited budgets
// report a zero remaining; callers gate on Exceeded, not Remaining.
func (g *Governor) Remaining() time.Duration {
	if g.budget <= 0 {
		return 0
	}
	if left := g.budget - g.Elapsed(); left > 0 {
		return left
	}
	return 0
}

// Context derives a context that expires at the budget deadline, so in-flight
// driver calls are bounded by the same clock the loop checks.
func (g *Governor) Context(parent context.Context) (context.Context, context.CancelFunc) {
	if g.budget <= 0 {
		return context.WithCancel(parent)
	}
	return context.WithDeadline(parent, g.start.Add(g.budget))
}
