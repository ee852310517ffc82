package worker

import (
	"context"
	"log/slog"
	"time"

	"github.com/hyperengineering/verdict/internal/types"
)

// SummaryStore defines the store operations needed by the summary retry worker.
type SummaryStore interface {
	GetPendingSummaries(ctx context.Context, limit int) ([]types.Decision, error)
	ClaimSummary(ctx context.Context, id string, until time.Time) (bool, error)
	ReleaseSummary(ctx context.Context, id string) error
	MarkSummaryFailed(ctx context.Context, id string) error
}

// Summarizer regenerates, stores and archives a decision's summary.
type Summarizer interface {
	GenerateSummary(ctx context.Context, d *types.Decision) (string, error)
}

// SummaryRetryWorker regenerates summaries of completed decisions whose
// first attempt failed.
type SummaryRetryWorker struct {
	store       SummaryStore
	summarizer  Summarizer
	interval    time.Duration
	maxAttempts int
	batchSize   int
	lease       time.Duration
	retryCount  map[string]int // attempts per decision ID
}

// NewSummaryRetryWorker creates a new summary retry worker.
func NewSummaryRetryWorker(
	s SummaryStore,
	sum Summarizer,
	interval time.Duration,
	maxAttempts int,
	batchSize int,
	lease time.Duration,
) *SummaryRetryWorker {
	if batchSize <= 0 {
		batchSize = 20
	}
	if lease <= 0 {
		lease = 5 * time.Minute
	}
	return &SummaryRetryWorker{
		store:       s,
		summarizer:  sum,
		interval:    interval,
		maxAttempts: maxAttempts,
		batchSize:   batchSize,
		lease:       lease,
		retryCount:  make(map[string]int),
	}
}

// Run starts the worker loop. Blocks until ctx is cancelled.
func (w *SummaryRetryWorker) Run(ctx context.Context) {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	// Process immediately on start, then on each tick
	w.processPending(ctx)

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.processPending(ctx)
		}
	}
}

func (w *SummaryRetryWorker) processPending(ctx context.Context) {
	decisions, err := w.store.GetPendingSummaries(ctx, w.batchSize)
	if err != nil {
		slog.Error("failed to get pending summaries",
			"error", err,
			"component", "worker",
		)
		return
	}

	var done int
	for i := range decisions {
		d := &decisions[i]
		if ctx.Err() != nil {
			return
		}
		if w.retryCount[d.ID] >= w.maxAttempts {
			w.markAsFailed(ctx, d.ID)
			continue
		}

		claimed, err := w.store.ClaimSummary(ctx, d.ID, time.Now().Add(w.lease))
		if err != nil {
			slog.Error("failed to claim summary",
				"decision_id", d.ID,
				"error", err,
				"component", "worker",
			)
			continue
		}
		if !claimed {
			// Completed or taken by another holder since the query.
			continue
		}

		if _, err := w.summarizer.GenerateSummary(ctx, d); err != nil {
			w.retryCount[d.ID]++
			if err := w.store.ReleaseSummary(context.WithoutCancel(ctx), d.ID); err != nil {
				slog.Error("failed to release summary",
					"decision_id", d.ID,
					"error", err,
					"component", "worker",
				)
			}
			slog.Warn("summary retry failed",
				"decision_id", d.ID,
				"attempt", w.retryCount[d.ID],
				"error", err,
				"component", "worker",
			)
			continue
		}
		delete(w.retryCount, d.ID)
		done++
	}

	if done > 0 {
		slog.Info("regenerated pending summaries",
			"action", "summary_retry",
			"count", done,
			"component", "worker",
		)
	}
}

func (w *SummaryRetryWorker) markAsFailed(ctx context.Context, id string) {
	attempts := w.retryCount[id]

	if err := w.store.MarkSummaryFailed(ctx, id); err != nil {
		slog.Error("failed to mark summary as failed",
			"decision_id", id,
			"error", err,
			"component", "worker",
		)
		return
	}

	slog.Error("summary permanently failed",
		"action", "summary_retry",
		"decision_id", id,
		"attempts", attempts,
		"component", "worker",
	)
	delete(w.retryCount, id)
}
