package chain

import (
	"iter"
	"slices"

	"reportchain/pkg/models"
)

// links reports whether older directly precedes newer in the conversation.
func links(newer, older models.ReportAction) bool {
	return newer.PreviousReportActionID != "" && newer.PreviousReportActionID == older.ReportActionID
}

func indexOf(actions []models.ReportAction, id string) int {
	if id == "" {
		return -1
	}
	return slices.IndexFunc(actions, func(a models.ReportAction) bool {
		return a.ReportActionID == id
	})
}

// ChainFrom yields the anchor and then every older action that continues the
// previousReportActionID chain, stopping at the first gap. sortedDescending
// must be newest first. Nothing is yielded when the anchor is not loaded. The
// sequence can be ranged over repeatedly; each range walks the input again.
func ChainFrom(sortedDescending []models.ReportAction, anchorID string) iter.Seq[models.ReportAction] {
	return func(yield func(models.ReportAction) bool) {
		idx := indexOf(sortedDescending, anchorID)
		if idx < 0 {
			return
		}
		seen := make(map[string]struct{})
		for i := idx; i < len(sortedDescending); i++ {
			cur := sortedDescending[i]
			if i > idx && !links(sortedDescending[i-1], cur) {
				return
			}
			// a revisited id means a duplicate or a cycle; treat it as a gap
			if _, dup := seen[cur.ReportActionID]; dup {
				return
			}
			seen[cur.ReportActionID] = struct{}{}
			if !yield(cur) {
				return
			}
		}
	}
}

// BuildContinuousChain returns the maximal contiguous run of actions that
// contains anchorID, newest first. The run ends at the first gap in either
// direction. An anchor that is not loaded yields an empty result, which
// callers read as "fetch more history before continuity is known".
func BuildContinuousChain(sortedDescending []models.ReportAction, anchorID string) []models.ReportAction {
	idx := indexOf(sortedDescending, anchorID)
	if idx < 0 {
		return []models.ReportAction{}
	}

	older := slices.Collect(ChainFrom(sortedDescending, anchorID))
	seen := make(map[string]struct{}, len(older))
	for _, a := range older {
		seen[a.ReportActionID] = struct{}{}
	}

	start := idx
	for start > 0 {
		newer := sortedDescending[start-1]
		if !links(newer, sortedDescending[start]) {
			break
		}
		if _, dup := seen[newer.ReportActionID]; dup {
			break
		}
		seen[newer.ReportActionID] = struct{}{}
		start--
	}

	out := make([]models.ReportAction, 0, idx-start+len(older))
	out = append(out, sortedDescending[start:idx]...)
	return append(out, older...)
}

// Segments splits a newest-first window into its contiguous runs.
func Segments(sortedDescending []models.ReportAction) [][]models.ReportAction {
	var (
		out  [][]models.ReportAction
		cur  []models.ReportAction
		seen = make(map[string]struct{}, len(sortedDescending))
	)
	for i, a := range sortedDescending {
		_, dup := seen[a.ReportActionID]
		if i > 0 && (dup || !links(sortedDescending[i-1], a)) {
			out = append(out, cur)
			cur = nil
		}
		seen[a.ReportActionID] = struct{}{}
		cur = append(cur, a)
	}
	if len(cur) > 0 {
		out = append(out, cur)
	}
	return out
}

// MissingPredecessors returns, newest first, the previousReportActionID of
// each run's oldest action when that action is not loaded. These are the
// ids the pager has to fetch to close the gaps.
func MissingPredecessors(sortedDescending []models.ReportAction) []string {
	loaded := make(map[string]struct{}, len(sortedDescending))
	for _, a := range sortedDescending {
		loaded[a.ReportActionID] = struct{}{}
	}

	var missing []string
	for _, seg := range Segments(sortedDescending) {
		oldest := seg[len(seg)-1]
		if oldest.PreviousReportActionID == "" {
			continue
		}
		if _, ok := loaded[oldest.PreviousReportActionID]; ok {
			continue
		}
		missing = append(missing, oldest.PreviousReportActionID)
	}
	return missing
}
