package chain

import (
	"slices"
	"strings"

	"reportchain/pkg/models"
)

// SortActions returns a copy of actions ordered by created timestamp, then
// with the CREATED action first among equal timestamps, then by
// reportActionID. Descending order is the exact reverse of ascending order.
func SortActions(actions []models.ReportAction, descending bool) []models.ReportAction {
	out := slices.Clone(actions)
	if len(out) == 0 {
		return out
	}

	slices.SortStableFunc(out, compareActions)
	if descending {
		slices.Reverse(out)
	}
	return out
}

// SortedForDisplay filters actions with policy and orders them newest first,
// the order the conversation list renders in.
func SortedForDisplay(actions []models.ReportAction, policy VisibilityPolicy) []models.ReportAction {
	return SortActions(FilterForDisplay(actions, policy), true)
}

func compareActions(a, b models.ReportAction) int {
	if c := strings.Compare(a.Created, b.Created); c != 0 {
		return c
	}
	aCreated, bCreated := IsCreatedAction(a), IsCreatedAction(b)
	if aCreated != bCreated {
		if aCreated {
			return -1
		}
		return 1
	}
	return strings.Compare(a.ReportActionID, b.ReportActionID)
}

// NewestCreated returns the largest created timestamp in actions, or "" when
// actions is empty.
func NewestCreated(actions []models.ReportAction) string {
	newest := ""
	for _, a := range actions {
		if a.Created > newest {
			newest = a.Created
		}
	}
	return newest
}

// LastClosedAction returns the most recent CLOSED action. Closed markers are
// hidden from the display list but still drive archived-state rendering.
func LastClosedAction(actions []models.ReportAction) (models.ReportAction, bool) {
	var (
		last  models.ReportAction
		found bool
	)
	for _, a := range actions {
		if a.ActionName != models.ActionClosed {
			continue
		}
		if !found || compareActions(a, last) > 0 {
			last = a
			found = true
		}
	}
	return last, found
}
