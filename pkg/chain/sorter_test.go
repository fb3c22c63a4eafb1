package chain

import (
	"math/rand"
	"slices"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"reportchain/pkg/models"
)

func TestSortActions_TieBreak(t *testing.T) {
	created := "2024-03-01 09:00:00.000"
	in := []models.ReportAction{
		{ReportActionID: "3", Created: created, ActionName: models.ActionAddComment},
		{ReportActionID: "2", Created: created, ActionName: models.ActionCreated},
		{ReportActionID: "1", Created: created, ActionName: models.ActionAddComment},
	}

	assert.Equal(t, []string{"2", "1", "3"}, ids(SortActions(in, false)))
	assert.Equal(t, []string{"3", "1", "2"}, ids(SortActions(in, true)))
}

func TestSortActions_DescendingIsReverse(t *testing.T) {
	in := gappedWindow()
	// equal timestamps exercise the tie-break path too
	in = append(in,
		models.ReportAction{ReportActionID: "a", Created: in[3].Created, ActionName: models.ActionIOU},
		models.ReportAction{ReportActionID: "b", Created: in[3].Created, ActionName: models.ActionCreated},
	)

	asc := SortActions(in, false)
	desc := SortActions(in, true)
	slices.Reverse(asc)
	if diff := cmp.Diff(asc, desc); diff != "" {
		t.Fatalf("descending is not the reverse of ascending (-want +got):\n%s", diff)
	}
}

func TestSortActions_ChronologicalRegardlessOfInputOrder(t *testing.T) {
	want := linkedRun(1, 20)
	r := rand.New(rand.NewSource(7))
	for i := 0; i < 25; i++ {
		shuffled := slices.Clone(want)
		r.Shuffle(len(shuffled), func(a, b int) { shuffled[a], shuffled[b] = shuffled[b], shuffled[a] })
		require.Equal(t, ids(want), ids(SortActions(shuffled, false)))
	}
}

func TestSortActions_DoesNotMutateInput(t *testing.T) {
	in := []models.ReportAction{comment("2", "1", 2, "b"), comment("1", "", 1, "a")}
	_ = SortActions(in, false)
	assert.Equal(t, []string{"2", "1"}, ids(in))
}

func TestSortActions_Empty(t *testing.T) {
	assert.Empty(t, SortActions(nil, true))
}

func TestNewestCreated(t *testing.T) {
	in := gappedWindow()
	assert.Equal(t, in[len(in)-1].Created, NewestCreated(in))
	assert.Equal(t, "", NewestCreated(nil))
}

func TestLastClosedAction(t *testing.T) {
	in := linkedRun(1, 3)
	_, ok := LastClosedAction(in)
	assert.False(t, ok)

	first := comment("c1", "3", 4, "")
	first.ActionName = models.ActionClosed
	second := comment("c2", "c1", 5, "")
	second.ActionName = models.ActionClosed
	in = append(in, second, first)

	last, ok := LastClosedAction(in)
	require.True(t, ok)
	assert.Equal(t, "c2", last.ReportActionID)
}

func TestSortedForDisplay(t *testing.T) {
	hidden := comment("4", "3", 4, "")
	hidden.ActionName = models.ActionTaskEdited
	in := append(linkedRun(1, 3), hidden)

	got := SortedForDisplay(in, DefaultVisibilityPolicy())
	assert.Equal(t, []string{"3", "2", "1"}, ids(got))
}
