package annotator

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var fixedNow = time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

func readyWorkspace(t *testing.T, preds []Prediction) *Workspace {
	t.Helper()
	w := NewWorkspace(func() time.Time { return fixedNow })
	w.Reset("IMG_0001.JPG")
	w.LoadAnnotations(nil, false)
	w.LoadPredictions(preds)
	require.True(t, w.Ready())
	return w
}

func draw(t *testing.T, w *Workspace, box BBox) {
	t.Helper()
	require.True(t, w.Draft().SetPending(box))
}

func TestWorkspaceNotReady(t *testing.T) {
	w := NewWorkspace(nil)
	assert.ErrorIs(t, w.MarkEmpty(), ErrNoImage)

	w.Reset("a.jpg")
	w.LoadAnnotations(nil, false)
	assert.ErrorIs(t, w.MarkEmpty(), ErrNotReady)
	_, err := w.AcceptAll("")
	assert.ErrorIs(t, err, ErrNotReady)
}

func TestCommitValidation(t *testing.T) {
	w := readyWorkspace(t, nil)
	assert.ErrorIs(t, w.Commit(Kettu), ErrNoDraft)

	draw(t, w, BBox{X1: 0, Y1: 0, X2: 40, Y2: 40})
	assert.ErrorIs(t, w.Commit(""), ErrNoSpecies)
	assert.Empty(t, w.Annotations())
	assert.Equal(t, 0, w.History().Len())

	require.NoError(t, w.Commit(Kettu))
	anns := w.Annotations()
	require.Len(t, anns, 1)
	assert.Equal(t, HumanDrawn, anns[0].Provenance)
	assert.Equal(t, fixedNow, anns[0].Timestamp)
	_, pending := w.Draft().Pending()
	assert.False(t, pending)
}

func TestCommitClearsEmptyFlag(t *testing.T) {
	w := readyWorkspace(t, nil)
	require.NoError(t, w.MarkEmpty())
	assert.True(t, w.IsEmpty())

	draw(t, w, BBox{X1: 0, Y1: 0, X2: 40, Y2: 40})
	require.NoError(t, w.Commit(Peura))
	assert.False(t, w.IsEmpty())
}

func TestUndoAllCommits(t *testing.T) {
	w := readyWorkspace(t, nil)
	for i := 0; i < MaxHistory; i++ {
		draw(t, w, BBox{X1: float64(i), Y1: 0, X2: float64(i) + 20, Y2: 20})
		require.NoError(t, w.Commit(Janis))
	}
	require.Len(t, w.Annotations(), MaxHistory)

	for i := 0; i < MaxHistory; i++ {
		require.True(t, w.Undo(), "undo %d", i)
	}
	assert.Equal(t, []Annotation(nil), w.Annotations())
	assert.False(t, w.Undo())
}

func TestRedoRestoresAndBranchIsDiscarded(t *testing.T) {
	w := readyWorkspace(t, nil)
	draw(t, w, BBox{X1: 0, Y1: 0, X2: 20, Y2: 20})
	require.NoError(t, w.Commit(Kettu))
	draw(t, w, BBox{X1: 50, Y1: 50, X2: 80, Y2: 80})
	require.NoError(t, w.Commit(Koira))
	before := w.Annotations()

	require.True(t, w.Undo())
	require.Len(t, w.Annotations(), 1)
	require.True(t, w.Redo())
	assert.Equal(t, before, w.Annotations())
	assert.False(t, w.Redo())

	require.True(t, w.Undo())
	require.NoError(t, w.Delete(0))
	assert.False(t, w.Redo())
	assert.Empty(t, w.Annotations())
}

func TestDeleteOutOfRange(t *testing.T) {
	w := readyWorkspace(t, nil)
	assert.ErrorIs(t, w.Delete(0), ErrIndexOutOfRange)
	assert.ErrorIs(t, w.Delete(-1), ErrIndexOutOfRange)
	assert.Equal(t, 0, w.History().Len())
}

func TestMarkEmptyClearsEverything(t *testing.T) {
	w := readyWorkspace(t, nil)
	draw(t, w, BBox{X1: 0, Y1: 0, X2: 20, Y2: 20})
	require.NoError(t, w.Commit(Kettu))
	draw(t, w, BBox{X1: 30, Y1: 30, X2: 60, Y2: 60})

	require.NoError(t, w.MarkEmpty())
	assert.Empty(t, w.Annotations())
	assert.True(t, w.IsEmpty())
	_, pending := w.Draft().Pending()
	assert.False(t, pending)
}

func TestAcceptAllSinglePrediction(t *testing.T) {
	preds := []Prediction{{BBox: BBox{X1: 10, Y1: 10, X2: 50, Y2: 50}, Species: Kettu, SpeciesConfidence: ptr(0.92)}}
	w := readyWorkspace(t, preds)

	n, err := w.AcceptAll("")
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, []Annotation{{
		BBox:              BBox{X1: 10, Y1: 10, X2: 50, Y2: 50},
		Species:           Kettu,
		Timestamp:         fixedNow,
		Provenance:        FromPrediction,
		OriginalSpecies:   Kettu,
		SpeciesConfidence: ptr(0.92),
	}}, w.Annotations())
	assert.Equal(t, 0, w.Queue().Len())
	assert.Equal(t, -1, w.Queue().Focus())

	require.True(t, w.Undo())
	assert.Empty(t, w.Annotations())
	assert.Equal(t, preds, w.Queue().Items())
}

func TestAcceptAllIsOneUndoStep(t *testing.T) {
	w := readyWorkspace(t, threePredictions())
	n, err := w.AcceptAll(Muu)
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	for _, a := range w.Annotations() {
		assert.Equal(t, Muu, a.Species)
	}
	assert.Equal(t, Kauris, w.Annotations()[0].OriginalSpecies)

	require.True(t, w.Undo())
	assert.Empty(t, w.Annotations())
	assert.Equal(t, 3, w.Queue().Len())
	assert.False(t, w.Undo())
}

func TestAcceptWithOverride(t *testing.T) {
	w := readyWorkspace(t, threePredictions())
	w.Queue().FocusNext()
	w.Queue().FocusNext()
	w.Queue().FocusNext()

	require.NoError(t, w.Accept(2, Supikoira))
	anns := w.Annotations()
	require.Len(t, anns, 1)
	assert.Equal(t, Supikoira, anns[0].Species)
	assert.Equal(t, Species(""), anns[0].OriginalSpecies)
	assert.Equal(t, 1, w.Queue().Focus())
	assert.Equal(t, 1, w.History().Len())

	assert.ErrorIs(t, w.Accept(5, ""), ErrIndexOutOfRange)
}

func TestRejectNotInHistory(t *testing.T) {
	w := readyWorkspace(t, threePredictions())
	w.Queue().FocusNext()
	require.NoError(t, w.Reject(0))
	assert.Equal(t, 2, w.Queue().Len())
	assert.Equal(t, 0, w.History().Len())
	assert.Empty(t, w.Annotations())
	assert.ErrorIs(t, w.Reject(4), ErrIndexOutOfRange)
}

func TestRejectLastFocused(t *testing.T) {
	w := readyWorkspace(t, threePredictions()[:1])
	w.Queue().FocusNext()
	require.NoError(t, w.Reject(w.Queue().Focus()))
	assert.Equal(t, -1, w.Queue().Focus())
}

func TestResetDropsHistoryAndDraft(t *testing.T) {
	w := readyWorkspace(t, nil)
	draw(t, w, BBox{X1: 0, Y1: 0, X2: 20, Y2: 20})
	require.NoError(t, w.Commit(Kettu))
	draw(t, w, BBox{X1: 0, Y1: 0, X2: 20, Y2: 20})

	w.Reset("IMG_0002.JPG")
	assert.Equal(t, 0, w.History().Len())
	_, pending := w.Draft().Pending()
	assert.False(t, pending)
	assert.False(t, w.Ready())
}

func TestLoadAnnotationsEmptyFlagExclusive(t *testing.T) {
	w := NewWorkspace(nil)
	w.Reset("x.jpg")
	w.LoadAnnotations([]Annotation{{BBox: BBox{X2: 20, Y2: 20}, Species: Kettu}}, true)
	assert.False(t, w.IsEmpty())
}

func TestAcceptRefusesSmallPrediction(t *testing.T) {
	tiny := Prediction{BBox: BBox{X1: 10, Y1: 10, X2: 13, Y2: 13}, Species: Kettu}
	w := readyWorkspace(t, []Prediction{tiny})

	err := w.Accept(0, "")
	assert.ErrorIs(t, err, ErrBoxTooSmall)
	assert.Empty(t, w.Annotations())
	assert.Equal(t, []Prediction{tiny}, w.Queue().Items())
	assert.False(t, w.Undo())
}

func TestAcceptAllSkipsSmallPredictions(t *testing.T) {
	preds := []Prediction{
		{BBox: BBox{X1: 10, Y1: 10, X2: 13, Y2: 13}, Species: Kauris},
		{BBox: BBox{X1: 40, Y1: 40, X2: 80, Y2: 70}, Species: Kettu},
		{BBox: BBox{X1: 100, Y1: 100, X2: 130, Y2: 105}},
	}
	w := readyWorkspace(t, preds)

	n, err := w.AcceptAll("")
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	require.Len(t, w.Annotations(), 1)
	assert.Equal(t, Kettu, w.Annotations()[0].Species)
	assert.Equal(t, 0, w.Queue().Len())
	assert.False(t, w.IsEmpty())

	require.True(t, w.Undo())
	assert.Equal(t, preds, w.Queue().Items())
}

func TestAcceptAllOnlySmallPredictions(t *testing.T) {
	w := readyWorkspace(t, []Prediction{{BBox: BBox{X1: 10, Y1: 10, X2: 13, Y2: 13}}})
	n, err := w.AcceptAll("")
	require.NoError(t, err)
	assert.Equal(t, 0, n)
	assert.Empty(t, w.Annotations())
	assert.Equal(t, 0, w.Queue().Len())
}
