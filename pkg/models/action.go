package models

import (
	"strings"
	"time"
)

// CreatedLayout is the fixed format of ReportAction.Created. Millisecond
// precision and zero padding keep lexicographic order equal to time order.
const CreatedLayout = "2006-01-02 15:04:05.000"

// Action kinds. Only a subset is rendered; see chain.VisibilityPolicy.
const (
	ActionAddComment         = "ADDCOMMENT"
	ActionCreated            = "CREATED"
	ActionClosed             = "CLOSED"
	ActionRenamed            = "RENAMED"
	ActionIOU                = "IOU"
	ActionReportPreview      = "REPORTPREVIEW"
	ActionModifiedExpense    = "MODIFIEDEXPENSE"
	ActionSubmitted          = "SUBMITTED"
	ActionApproved           = "APPROVED"
	ActionReimbursementQueue = "REIMBURSEMENTQUEUED"
	ActionTaskCompleted      = "TASKCOMPLETED"
	ActionTaskReopened       = "TASKREOPENED"
	ActionTaskCancelled      = "TASKCANCELLED"
	ActionTaskEdited         = "TASKEDITED"
	ActionChronosOOOList     = "CHRONOSOOOLIST"
)

// Pending action tags for unconfirmed local mutations.
const (
	PendingAdd    = "add"
	PendingUpdate = "update"
	PendingDelete = "delete"
)

// Fragment is one content element of an action message.
type Fragment struct {
	Type                  string `json:"type,omitempty"`
	Text                  string `json:"text,omitempty"`
	HTML                  string `json:"html,omitempty"`
	IsEdited              bool   `json:"isEdited,omitempty"`
	IsDeletedParentAction bool   `json:"isDeletedParentAction,omitempty"`
}

// Empty reports whether the fragment carries no content.
func (f Fragment) Empty() bool {
	return f.HTML == "" && f.Text == ""
}

// ReportAction is one immutable event record of a conversation. ReportID is
// the owning conversation and is set by the store on write.
type ReportAction struct {
	ReportActionID         string     `json:"reportActionID"`
	PreviousReportActionID string     `json:"previousReportActionID,omitempty"`
	ReportID               string     `json:"reportID,omitempty"`
	Created                string     `json:"created"`
	ActionName             string     `json:"actionName"`
	PendingAction          string     `json:"pendingAction,omitempty"`
	Message                []Fragment `json:"message,omitempty"`
}

// Text joins the plain text of all non-empty fragments.
func (a ReportAction) Text() string {
	parts := make([]string, 0, len(a.Message))
	for _, f := range a.Message {
		if f.Text != "" {
			parts = append(parts, f.Text)
		}
	}
	return strings.Join(parts, " ")
}

// CreatedTime parses Created. Callers that only order actions should compare
// the raw strings instead.
func (a ReportAction) CreatedTime() (time.Time, error) {
	return time.Parse(CreatedLayout, a.Created)
}

// FormatCreated renders t in the Created layout (UTC).
func FormatCreated(t time.Time) string {
	return t.UTC().Format(CreatedLayout)
}
