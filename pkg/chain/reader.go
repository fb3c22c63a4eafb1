package chain

import (
	"context"
	"fmt"

	"reportchain/pkg/models"
	"reportchain/pkg/store"
)

// Reader answers display questions about conversations held in a store.
type Reader struct {
	store  store.ConversationActionStore
	policy VisibilityPolicy
}

func NewReader(s store.ConversationActionStore, policy VisibilityPolicy) *Reader {
	return &Reader{store: s, policy: policy}
}

// Policy returns the visibility policy the reader filters with.
func (r *Reader) Policy() VisibilityPolicy {
	return r.policy
}

// GetLastVisibleAction returns the most recent action the conversation list
// would render. ok is false when nothing is visible.
func (r *Reader) GetLastVisibleAction(ctx context.Context, reportID string) (models.ReportAction, bool, error) {
	actions, err := r.store.GetActions(ctx, reportID)
	if err != nil {
		return models.ReportAction{}, false, fmt.Errorf("read actions of %s: %w", reportID, err)
	}
	last, ok := lastVisible(store.Values(actions), r.policy)
	return last, ok, nil
}

// Sorted returns all loaded actions of the conversation, optionally display
// filtered, in the requested order.
func (r *Reader) Sorted(ctx context.Context, reportID string, visibleOnly, descending bool) ([]models.ReportAction, error) {
	actions, err := r.store.GetActions(ctx, reportID)
	if err != nil {
		return nil, fmt.Errorf("read actions of %s: %w", reportID, err)
	}
	list := store.Values(actions)
	if visibleOnly {
		list = FilterForDisplay(list, r.policy)
	}
	return SortActions(list, descending), nil
}

// Chain returns the contiguous run around anchorID in the loaded window.
// gapID is the predecessor the run stops at, empty when the run reaches the
// start of the conversation or the anchor is not loaded.
func (r *Reader) Chain(ctx context.Context, reportID, anchorID string) (run []models.ReportAction, gapID string, err error) {
	sorted, err := r.Sorted(ctx, reportID, false, true)
	if err != nil {
		return nil, "", err
	}
	run = BuildContinuousChain(sorted, anchorID)
	if len(run) > 0 {
		gapID = run[len(run)-1].PreviousReportActionID
	}
	return run, gapID, nil
}

func lastVisible(actions []models.ReportAction, policy VisibilityPolicy) (models.ReportAction, bool) {
	sorted := SortActions(FilterForDisplay(actions, policy), false)
	if len(sorted) == 0 {
		return models.ReportAction{}, false
	}
	return sorted[len(sorted)-1], true
}
