// Package backfill computes embeddings for publications that do not have one yet.
//
// A run takes a single snapshot of pending rows and walks it in order on one
// connection. Each row is committed on its own so an abort or crash loses at
// most the row in flight. Generation failures skip the row; storage failures
// end the run, since the connection or transaction is likely broken.
package backfill

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/MereWhiplash/pubembed/internal/embedder"
	"github.com/MereWhiplash/pubembed/internal/storage"
	"github.com/MereWhiplash/pubembed/internal/types"
)

// State is the phase a run is in, or ended in
type State string

const (
	StateConnecting State = "connecting"
	StateFetching   State = "fetching"
	StateProcessing State = "processing"
	StateDone       State = "done"
	StateAborted    State = "aborted"
)

// Outcome tags the result of processing one row
type Outcome int

const (
	OutcomeProcessed Outcome = iota
	OutcomeSkipped
	OutcomeFailed
	OutcomeAborted
)

func (o Outcome) String() string {
	switch o {
	case OutcomeProcessed:
		return "processed"
	case OutcomeSkipped:
		return "skipped"
	case OutcomeFailed:
		return "failed"
	case OutcomeAborted:
		return "aborted"
	}
	return fmt.Sprintf("outcome(%d)", int(o))
}

// Report summarizes one run
type Report struct {
	RunID     string
	State     State
	Total     int
	Processed int
	Skipped   int
	Failed    int
	// Err is set when State is StateAborted
	Err      error
	Duration time.Duration
}

// Option configures a Worker
type Option func(*Worker)

// WithDimensions rejects vectors whose length differs from n. Zero disables the check.
func WithDimensions(n int) Option {
	return func(w *Worker) {
		w.dimensions = n
	}
}

// WithClock overrides time.Now, for tests
func WithClock(now func() time.Time) Option {
	return func(w *Worker) {
		w.now = now
	}
}

// Worker runs backfill scans
type Worker struct {
	storage    storage.Storage
	embedder   embedder.Embedder
	logger     *zap.Logger
	dimensions int
	now        func() time.Time
}

// New creates a Worker
func New(store storage.Storage, emb embedder.Embedder, logger *zap.Logger, opts ...Option) *Worker {
	if logger == nil {
		logger = zap.NewNop()
	}
	w := &Worker{
		storage:  store,
		embedder: emb,
		logger:   logger,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// rowResult is what processRow hands back to the loop
type rowResult struct {
	outcome Outcome
	err     error
	elapsed time.Duration
}

// Run performs one full scan. Errors are reported in the Report and logged,
// never returned: a failed run leaves rows pending for the next invocation.
func (w *Worker) Run(ctx context.Context) (report Report) {
	start := w.now()
	report = Report{RunID: uuid.NewString(), State: StateConnecting}
	log := w.logger.With(zap.String("run_id", report.RunID))

	defer func() {
		report.Duration = w.now().Sub(start)
		fields := []zap.Field{
			zap.String("state", string(report.State)),
			zap.Int("total", report.Total),
			zap.Int("processed", report.Processed),
			zap.Int("skipped", report.Skipped),
			zap.Int("failed", report.Failed),
			zap.Duration("duration", report.Duration),
		}
		if report.Err != nil {
			log.Error("Backfill run aborted", append(fields, zap.Error(report.Err))...)
			return
		}
		log.Info("Backfill run finished", fields...)
	}()

	scope, err := w.storage.Open(ctx)
	if err != nil {
		log.Error("DB connection error", zap.Error(err))
		return report.abort(err)
	}
	defer func() {
		// release even when ctx is already cancelled
		if err := scope.Close(context.WithoutCancel(ctx)); err != nil {
			log.Warn("Failed to release database scope", zap.Error(err))
		}
	}()

	report.State = StateFetching
	pubs, err := scope.FetchPending(ctx)
	if err != nil {
		log.Error("Failed to fetch pending publications", zap.Error(err))
		return report.abort(err)
	}

	report.Total = len(pubs)
	if report.Total == 0 {
		log.Info("No publications needing embeddings were found")
		report.State = StateDone
		return report
	}

	report.State = StateProcessing
	for i := range pubs {
		if err := ctx.Err(); err != nil {
			log.Warn("Backfill interrupted", zap.Int("remaining", report.Total-i))
			return report.abort(err)
		}

		pub := pubs[i]
		res := w.processRow(ctx, scope, pub)
		rowLog := log.With(zap.Int64("publication_id", pub.ID))

		switch res.outcome {
		case OutcomeSkipped:
			report.Skipped++
			rowLog.Warn("Skipping publication with empty text")

		case OutcomeFailed:
			report.Failed++
			rowLog.Error("Failed to process publication",
				zap.Error(res.err),
				zap.Duration("elapsed", res.elapsed),
			)

		case OutcomeAborted:
			rowLog.Error("Aborting! Database error occurred while processing publication",
				zap.Error(res.err),
				zap.Duration("elapsed", res.elapsed),
			)
			return report.abort(res.err)

		case OutcomeProcessed:
			report.Processed++
			rowLog.Info("Successfully processed publication",
				zap.String("progress", fmt.Sprintf("%d/%d", report.Processed, report.Total)),
				zap.Duration("elapsed", res.elapsed),
			)
		}
	}

	report.State = StateDone
	return report
}

// processRow embeds and persists one publication. Outcomes are logged by the
// caller, which decides what each one means for the run.
func (w *Worker) processRow(ctx context.Context, scope storage.Scope, pub types.Publication) rowResult {
	if pub.Blank() {
		return rowResult{outcome: OutcomeSkipped}
	}

	start := w.now()
	w.logger.Debug("Generating embedding", zap.Int64("publication_id", pub.ID))

	vec, err := w.embedder.Embed(ctx, pub.Text)
	if err == nil {
		err = w.checkVector(vec)
	}
	if err != nil {
		return rowResult{outcome: OutcomeFailed, err: err, elapsed: w.now().Sub(start)}
	}

	if err := scope.PersistEmbedding(ctx, pub.ID, vec); err != nil {
		return rowResult{outcome: OutcomeAborted, err: err, elapsed: w.now().Sub(start)}
	}
	if err := scope.Commit(ctx); err != nil {
		return rowResult{outcome: OutcomeAborted, err: err, elapsed: w.now().Sub(start)}
	}

	return rowResult{outcome: OutcomeProcessed, elapsed: w.now().Sub(start)}
}

func (w *Worker) checkVector(vec []float32) error {
	if len(vec) == 0 {
		return fmt.Errorf("%w: empty embedding", types.ErrGeneration)
	}
	if w.dimensions > 0 && len(vec) != w.dimensions {
		return fmt.Errorf("%w: expected %d dimensions, got %d", types.ErrGeneration, w.dimensions, len(vec))
	}
	return nil
}

func (r Report) abort(err error) Report {
	r.State = StateAborted
	r.Err = err
	return r
}

// Aborted reports whether the run ended before exhausting its snapshot
func (r Report) Aborted() bool {
	return r.State == StateAborted
}

// ConnectionFailed reports whether the run never got a database scope
func (r Report) ConnectionFailed() bool {
	return r.Aborted() && errors.Is(r.Err, types.ErrConnection)
}
