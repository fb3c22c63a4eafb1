package chain

import (
	"fmt"
	"strconv"
	"time"

	"reportchain/pkg/models"
)

var baseTime = time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)

func comment(id, prev string, minute int, text string) models.ReportAction {
	return models.ReportAction{
		ReportActionID:         id,
		PreviousReportActionID: prev,
		ReportID:               "r1",
		Created:                models.FormatCreated(baseTime.Add(time.Duration(minute) * time.Minute)),
		ActionName:             models.ActionAddComment,
		Message:                []models.Fragment{{Type: "COMMENT", Text: text, HTML: text}},
	}
}

// linkedRun builds actions from..to where each names the previous id as its
// predecessor. The first action of the run points at from-1, which is only
// loaded when another run contains it.
func linkedRun(from, to int) []models.ReportAction {
	var out []models.ReportAction
	for i := from; i <= to; i++ {
		prev := ""
		if i > 1 {
			prev = strconv.Itoa(i - 1)
		}
		out = append(out, comment(strconv.Itoa(i), prev, i, fmt.Sprintf("message %d", i)))
	}
	return out
}

// gappedWindow is 1..7, 9..12 and 14..17: two gaps, at 8 and 13.
func gappedWindow() []models.ReportAction {
	var out []models.ReportAction
	out = append(out, linkedRun(1, 7)...)
	out = append(out, linkedRun(9, 12)...)
	out = append(out, linkedRun(14, 17)...)
	return out
}

func ids(actions []models.ReportAction) []string {
	out := make([]string, 0, len(actions))
	for _, a := range actions {
		out = append(out, a.ReportActionID)
	}
	return out
}
