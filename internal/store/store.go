package store

import (
	"context"
	"time"

	"github.com/hyperengineering/verdict/internal/types"
)

// Store defines the interface contract for decision and feedback storage.
type Store interface {
	CreateDecision(ctx context.Context, d types.NewDecision) (*types.Decision, error)
	GetDecision(ctx context.Context, id string) (*types.Decision, error)
	ListDecisions(ctx context.Context, ownerID string) ([]types.Decision, error)
	DeleteDecision(ctx context.Context, id string) error
	UpdateProgress(ctx context.Context, u types.ProgressUpdate) (*types.Decision, error)
	SetSummary(ctx context.Context, id, summary string) error
	GetPendingSummaries(ctx context.Context, limit int) ([]types.Decision, error)
	ClaimSummary(ctx context.Context, id string, until time.Time) (bool, error)
	ReleaseSummary(ctx context.Context, id string) error
	MarkSummaryFailed(ctx context.Context, id string) error
	CreateFeedback(ctx context.Context, f types.NewFeedback) (*types.Feedback, error)
	ListFeedback(ctx context.Context, decisionID string) ([]types.Feedback, error)
	GetStats(ctx context.Context) (*types.StoreStats, error)
	Close() error
}
