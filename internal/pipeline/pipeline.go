// Package pipeline runs the sequential extract-validate-dedup-advance loop
// for one task. Single-threaded by design: each page must settle before the
// controller can decide how to advance, so there is no fan-out within a task.
package pipeline

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"gleaner/internal/budget"
	"gleaner/internal/dedup"
	"gleaner/internal/driver"
	"gleaner/internal/emit"
	"gleaner/internal/extract"
	"gleaner/internal/paginate"
	"gleaner/internal/schema"
	"gleaner/internal/sink"
	"gleaner/internal/task"
)

// Reason names why a run ended. All of these are normal terminations.
type Reason string

const (
	ReasonBudgetExceeded Reason = "budget_exceeded"
	ReasonExhausted      Reason = "exhausted"
	ReasonTargetReached  Reason = "target_reached"
	ReasonSampleComplete Reason = "sample_complete"
)

// Summary reports what a finished run produced.
type Summary struct {
	RunID      string
	Records    []schema.ValidatedRecord
	Reason     Reason
	Pages      int
	Invalid    int
	Duplicates int
}

// Runner executes one task against one page.
type Runner struct {
	task    *task.Task
	emitter *emit.Emitter
	sinks   []sink.Sink
	sample  bool
	runID   string
}

// NewRunner creates a runner. Sample mode stops after the first batch.
func NewRunner(t *task.Task, emitter *emit.Emitter, sinks []sink.Sink, sample bool) *Runner {
	return &Runner{
		task:    t,
		emitter: emitter,
		sinks:   sinks,
		sample:  sample,
		runID:   uuid.NewString(),
	}
}

// RunID identifies this run in envelopes and sinks.
func (r *Runner) RunID() string { return r.runID }

// AttachSink registers an output destination. Sinks that key rows by run ID
// are opened after the runner so they can use RunID.
func (r *Runner) AttachSink(s sink.Sink) { r.sinks = append(r.sinks, s) }

// Run drives the control loop to completion and emits the final envelope.
// Only wiring failures return an error; per-page and per-record problems are
// classified, logged, and absorbed.
func (r *Runner) Run(ctx context.Context, page driver.Page) (*Summary, error) {
	gov := budget.New(r.task.Budget.Std())
	target := r.task.Target()
	validator := schema.NewValidator(target)
	results := dedup.NewResultSet(target.Identity)
	ctrl := paginate.NewController(r.task.PaginateConfig())

	opts := r.task.ExtractOptions()
	opts.Gate = func() bool { return !gov.Exceeded() }
	strategy, err := extract.New(r.task.Strategy, opts)
	if err != nil {
		return nil, err
	}

	state := &runState{}

	if !r.navigate(ctx, gov, page) {
		// Every configured URL failed; per the taxonomy this ends the page
		// attempt, it does not fail the task.
		ctrl.Exhaust("no configured URL could be loaded")
		return r.finalize(results, ReasonExhausted, gov, state, ctrl)
	}

	reason := r.loop(ctx, gov, page, strategy, target, validator, results, ctrl, state)
	return r.finalize(results, reason, gov, state, ctrl)
}

type runState struct {
	invalid       int
	extractErrors int
}

func (r *Runner) loop(
	ctx context.Context,
	gov *budget.Governor,
	page driver.Page,
	strategy extract.Strategy,
	target schema.Target,
	validator *schema.Validator,
	results *dedup.ResultSet,
	ctrl *paginate.Controller,
	state *runState,
) Reason {
	for !ctrl.Terminal() {
		// Budget is checked before, not only after, each expensive step.
		if gov.Exceeded() {
			ctrl.Abort()
			break
		}

		batch := r.extractBatch(ctx, gov, page, strategy, target, state)

		accepted := 0
		for _, candidate := range batch {
			record, violations := validator.Validate(candidate)
			if violations != nil {
				state.invalid++
				zap.L().Debug("record rejected", zap.Any("violations", violations))
				continue
			}
			if !results.Add(record) {
				continue
			}
			accepted++
			if err := r.emitter.MaybePartial(results.Records(), gov.Elapsed(), r.metadata(results, "", ctrl, state)); err != nil {
				zap.L().Warn("partial emission failed", zap.Error(err))
			}
			if r.task.MaxRecords > 0 && results.Len() >= r.task.MaxRecords {
				return ReasonTargetReached
			}
		}
		zap.L().Info("batch processed",
			zap.Int("accepted", accepted),
			zap.Int("total", results.Len()),
			zap.Int("page", ctrl.Pages()))

		if r.sample {
			return ReasonSampleComplete
		}

		ctrl.ObserveBatch(accepted)
		if ctrl.Terminal() {
			break
		}
		if gov.Exceeded() {
			ctrl.Abort()
			break
		}

		actx, cancel := gov.Context(ctx)
		if err := ctrl.Advance(actx, page); err != nil {
			zap.L().Warn("advance interrupted", zap.String("kind", Classify(err).String()), zap.Error(err))
		}
		cancel()
	}

	if ctrl.State() == paginate.Aborted {
		return ReasonBudgetExceeded
	}
	return ReasonExhausted
}

func (r *Runner) extractBatch(
	ctx context.Context,
	gov *budget.Governor,
	page driver.Page,
	strategy extract.Strategy,
	target schema.Target,
	state *runState,
) []schema.CandidateRecord {
	bctx, cancel := gov.Context(ctx)
	defer cancel()

	batch, err := strategy.Extract(bctx, page, target)
	if err != nil {
		state.extractErrors++
		zap.L().Warn("extraction failed",
			zap.String("kind", Classify(err).String()),
			zap.String("strategy", strategy.Name()),
			zap.Error(err))
		return nil
	}
	return batch
}

// navigate loads the primary URL, falling back through the configured
// alternates. Reports whether any page loaded.
func (r *Runner) navigate(ctx context.Context, gov *budget.Governor, page driver.Page) bool {
	urls := append([]string{r.task.URL}, r.task.FallbackURLs...)
	for _, u := range urls {
		nctx, cancel := gov.Context(ctx)
		err := page.Navigate(nctx, u)
		cancel()
		if err == nil {
			zap.L().Info("page loaded", zap.String("url", u))
			return true
		}
		zap.L().Warn("navigation failed",
			zap.String("kind", Classify(err).String()),
			zap.String("url", u),
			zap.Error(err))
	}
	return false
}

func (r *Runner) finalize(results *dedup.ResultSet, reason Reason, gov *budget.Governor, state *runState, ctrl *paginate.Controller) (*Summary, error) {
	summary := &Summary{
		RunID:      r.runID,
		Records:    results.Records(),
		Reason:     reason,
		Pages:      ctrl.Pages(),
		Invalid:    state.invalid,
		Duplicates: results.Dropped(),
	}

	if err := r.emitter.Final(results.Records(), gov.Elapsed(), r.metadata(results, reason, ctrl, state)); err != nil {
		return summary, fmt.Errorf("failed to emit final envelope: %w", err)
	}

	for _, s := range r.sinks {
		if err := s.Write(results.Records()); err != nil {
			zap.L().Error("sink write failed", zap.Error(err))
		}
	}

	zap.L().Info("run finished",
		zap.String("runId", r.runID),
		zap.String("reason", string(reason)),
		zap.Int("records", results.Len()),
		zap.Int("invalid", state.invalid),
		zap.Int("duplicates", results.Dropped()),
		zap.Duration("elapsed", gov.Elapsed()))
	return summary, nil
}

func (r *Runner) metadata(results *dedup.ResultSet, reason Reason, ctrl *paginate.Controller, state *runState) *emit.Metadata {
	return &emit.Metadata{
		RunID:             r.runID,
		Pages:             ctrl.Pages(),
		Duplicates:        results.Dropped(),
		Invalid:           state.invalid,
		TerminationReason: string(reason),
	}
}
