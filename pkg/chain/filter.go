package chain

import (
	"reportchain/pkg/models"
)

// VisibilityPolicy is the allow-list of action kinds that have a rendering.
// The integrating application supplies it; DefaultVisibilityPolicy covers the
// kinds this service knows about.
type VisibilityPolicy struct {
	visible map[string]struct{}
}

// NewVisibilityPolicy builds a policy from an allow-list of action names.
func NewVisibilityPolicy(actionNames ...string) VisibilityPolicy {
	p := VisibilityPolicy{visible: make(map[string]struct{}, len(actionNames))}
	for _, name := range actionNames {
		if name == "" {
			continue
		}
		p.visible[name] = struct{}{}
	}
	return p
}

// DefaultVisibilityPolicy returns the built-in allow-list. TASKEDITED is
// bookkeeping only and is left out.
func DefaultVisibilityPolicy() VisibilityPolicy {
	return NewVisibilityPolicy(
		models.ActionAddComment,
		models.ActionCreated,
		models.ActionClosed,
		models.ActionRenamed,
		models.ActionIOU,
		models.ActionReportPreview,
		models.ActionModifiedExpense,
		models.ActionSubmitted,
		models.ActionApproved,
		models.ActionReimbursementQueue,
		models.ActionTaskCompleted,
		models.ActionTaskReopened,
		models.ActionTaskCancelled,
		models.ActionChronosOOOList,
	)
}

// Without returns a copy of p with the given names removed.
func (p VisibilityPolicy) Without(actionNames ...string) VisibilityPolicy {
	out := NewVisibilityPolicy(p.Names()...)
	for _, name := range actionNames {
		delete(out.visible, name)
	}
	return out
}

// Allows reports whether actionName is on the allow-list.
func (p VisibilityPolicy) Allows(actionName string) bool {
	_, ok := p.visible[actionName]
	return ok
}

// Names returns the allow-listed action names in no particular order.
func (p VisibilityPolicy) Names() []string {
	out := make([]string, 0, len(p.visible))
	for name := range p.visible {
		out = append(out, name)
	}
	return out
}

// FilterForDisplay drops actions the conversation list must not render,
// keeping the input order. Removed are kinds outside the allow-list, CLOSED
// markers, and soft-deleted comments that are not awaiting a pending add or
// delete.
func FilterForDisplay(actions []models.ReportAction, policy VisibilityPolicy) []models.ReportAction {
	out := make([]models.ReportAction, 0, len(actions))
	for _, a := range actions {
		if ShouldDisplay(a, policy) {
			out = append(out, a)
		}
	}
	return out
}

// ShouldDisplay applies the FilterForDisplay rules to a single action.
func ShouldDisplay(a models.ReportAction, policy VisibilityPolicy) bool {
	if !policy.Allows(a.ActionName) {
		return false
	}
	if a.ActionName == models.ActionClosed {
		return false
	}
	if a.ActionName == models.ActionAddComment && IsDeletedAction(a) {
		return a.PendingAction == models.PendingDelete || a.PendingAction == models.PendingAdd
	}
	return true
}

// IsDeletedAction reports whether the action has no message content left.
func IsDeletedAction(a models.ReportAction) bool {
	for _, f := range a.Message {
		if !f.Empty() {
			return false
		}
	}
	return true
}

// IsPendingDelete reports whether a delete of the action awaits confirmation.
func IsPendingDelete(a models.ReportAction) bool {
	return a.PendingAction == models.PendingDelete
}

// IsCreatedAction reports whether the action anchors the conversation.
func IsCreatedAction(a models.ReportAction) bool {
	return a.ActionName == models.ActionCreated
}
