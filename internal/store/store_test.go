package store

import (
	"context"
	"time"

	"github.com/hyperengineering/verdict/internal/types"
)

// mockStore is a compile-time check that the Store interface can be implemented.
type mockStore struct{}

var _ Store = (*mockStore)(nil)

func (m *mockStore) CreateDecision(ctx context.Context, d types.NewDecision) (*types.Decision, error) {
	return nil, nil
}
func (m *mockStore) GetDecision(ctx context.Context, id string) (*types.Decision, error) {
	return nil, nil
}
func (m *mockStore) ListDecisions(ctx context.Context, ownerID string) ([]types.Decision, error) {
	return nil, nil
}
func (m *mockStore) DeleteDecision(ctx context.Context, id string) error {
	return nil
}
func (m *mockStore) UpdateProgress(ctx context.Context, u types.ProgressUpdate) (*types.Decision, error) {
	return nil, nil
}
func (m *mockStore) SetSummary(ctx context.Context, id, summary string) error {
	return nil
}
func (m *mockStore) GetPendingSummaries(ctx context.Context, limit int) ([]types.Decision, error) {
	return nil, nil
}
func (m *mockStore) ClaimSummary(ctx context.Context, id string, until time.Time) (bool, error) {
	return false, nil
}
func (m *mockStore) ReleaseSummary(ctx context.Context, id string) error {
	return nil
}
func (m *mockStore) MarkSummaryFailed(ctx context.Context, id string) error {
	return nil
}
func (m *mockStore) CreateFeedback(ctx context.Context, f types.NewFeedback) (*types.Feedback, error) {
	return nil, nil
}
func (m *mockStore) ListFeedback(ctx context.Context, decisionID string) ([]types.Feedback, error) {
	return nil, nil
}
func (m *mockStore) GetStats(ctx context.Context) (*types.StoreStats, error) {
	return nil, nil
}
func (m *mockStore) Close() error {
	return nil
}
