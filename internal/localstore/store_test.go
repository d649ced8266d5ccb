package localstore

import (
	"context"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"riistakamera/internal/annotator"
	"riistakamera/internal/remote"
)

func conf(v float64) *float64 { return &v }

// newTestStore creates a.jpg .. d.jpg plus a stray text file.
//
//	a.jpg  annotated (kettu)
//	b.jpg  marked empty
//	c.jpg  predictions 0.7 / 0.2, unreviewed
//	d.jpg  prediction with only a detection confidence 0.5, unreviewed
func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(t.TempDir())
	require.NoError(t, err)

	for _, name := range []string{"d.jpg", "a.jpg", "c.JPG", "b.png", "notes.txt"} {
		require.NoError(t, os.WriteFile(filepath.Join(s.images, name), []byte("x"), 0o644))
	}
	ctx := context.Background()
	require.NoError(t, s.SaveAnnotations(ctx, "a.jpg", []annotator.Annotation{
		{BBox: annotator.BBox{X1: 0, Y1: 0, X2: 20, Y2: 20}, Species: annotator.Kettu},
	}, false))
	require.NoError(t, s.SaveAnnotations(ctx, "b.png", nil, true))
	require.NoError(t, s.WritePredictions("c.JPG", []annotator.Prediction{
		{BBox: annotator.BBox{X2: 30, Y2: 30}, Species: annotator.Kauris, SpeciesConfidence: conf(0.7)},
		{BBox: annotator.BBox{X2: 30, Y2: 30}, Species: annotator.Janis, SpeciesConfidence: conf(0.2)},
	}))
	require.NoError(t, s.WritePredictions("d.jpg", []annotator.Prediction{
		{BBox: annotator.BBox{X2: 30, Y2: 30}, DetectionConfidence: conf(0.5)},
	}))
	return s
}

func TestListImagesFilters(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	cases := map[annotator.Filter][]string{
		annotator.FilterAll:         {"a.jpg", "b.png", "c.JPG", "d.jpg"},
		annotator.FilterAnnotated:   {"a.jpg"},
		annotator.FilterEmpty:       {"b.png"},
		annotator.FilterUnannotated: {"c.JPG", "d.jpg"},
		annotator.FilterPredicted:   {"c.JPG", "d.jpg"},
	}
	for filter, want := range cases {
		got, err := s.ListImages(ctx, filter)
		require.NoError(t, err)
		assert.Equal(t, want, got, filter)
	}
}

func TestSaveAndLoadAnnotations(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	anns, empty, err := s.GetAnnotations(ctx, "a.jpg")
	require.NoError(t, err)
	assert.False(t, empty)
	require.Len(t, anns, 1)
	assert.Equal(t, annotator.Kettu, anns[0].Species)

	_, empty, err = s.GetAnnotations(ctx, "b.png")
	require.NoError(t, err)
	assert.True(t, empty)

	anns, empty, err = s.GetAnnotations(ctx, "c.JPG")
	require.NoError(t, err)
	assert.Empty(t, anns)
	assert.False(t, empty)

	_, err = os.Stat(filepath.Join(s.annotations, "a.json"))
	assert.NoError(t, err)
}

func TestRejectsPathTraversal(t *testing.T) {
	s := newTestStore(t)
	_, _, err := s.GetAnnotations(context.Background(), "../secret.jpg")
	assert.ErrorIs(t, err, ErrInvalidName)
	_, err = s.GetImageBytes(context.Background(), "..")
	assert.ErrorIs(t, err, ErrInvalidName)
}

func TestStats(t *testing.T) {
	s := newTestStore(t)
	st, err := s.GetStats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 4, st.Total)
	assert.Equal(t, 1, st.Annotated)
	assert.Equal(t, 1, st.Empty)
	assert.Equal(t, 2, st.Predicted)
	assert.Equal(t, 2, st.PendingPredicted)
	assert.Equal(t, 1, st.Species[annotator.Kettu])
}

func TestUncertaintyRanking(t *testing.T) {
	s := newTestStore(t)
	ranking, err := s.GetUncertaintyRanking(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, ranking, 2)
	assert.Equal(t, "d.jpg", ranking[0].ImageID)
	assert.Equal(t, 0.5, ranking[0].MaxConfidence)
	assert.Equal(t, "uncertain", ranking[0].Reason)
	assert.Equal(t, "c.JPG", ranking[1].ImageID)
	assert.Equal(t, 0.7, ranking[1].MaxConfidence)
	assert.Equal(t, 2, ranking[1].PredictionsCount)

	ranking, err = s.GetUncertaintyRanking(context.Background(), 1)
	require.NoError(t, err)
	assert.Len(t, ranking, 1)
}

func TestCorruptAnnotationFileIsSkipped(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, os.WriteFile(filepath.Join(s.annotations, "d.json"), []byte("{"), 0o644))
	got, err := s.ListImages(context.Background(), annotator.FilterUnannotated)
	require.NoError(t, err)
	assert.Equal(t, []string{"c.JPG", "d.jpg"}, got)
}

// The HTTP client and the store's handler speak the same API.
func TestRemoteClientAgainstHandler(t *testing.T) {
	s := newTestStore(t)
	server := httptest.NewServer(Handler(s, nil))
	defer server.Close()

	ctx := context.Background()
	c := remote.NewClient(server.URL, remote.WithSessionID("test"))

	images, err := c.ListImages(ctx, annotator.FilterPredicted)
	require.NoError(t, err)
	assert.Equal(t, []string{"c.JPG", "d.jpg"}, images)

	preds, err := c.GetPredictions(ctx, "c.JPG")
	require.NoError(t, err)
	require.Len(t, preds, 2)
	assert.Equal(t, 0.2, preds[1].Confidence())

	anns := []annotator.Annotation{{
		BBox: annotator.BBox{X1: 1, Y1: 1, X2: 30, Y2: 30}, Species: annotator.Peura,
		Provenance: annotator.FromPrediction, OriginalSpecies: annotator.Kauris, SpeciesConfidence: conf(0.7),
	}}
	require.NoError(t, c.SaveAnnotations(ctx, "c.JPG", anns, false))

	got, empty, err := c.GetAnnotations(ctx, "c.JPG")
	require.NoError(t, err)
	assert.False(t, empty)
	require.Len(t, got, 1)
	assert.Equal(t, annotator.Peura, got[0].Species)
	assert.Equal(t, annotator.Kauris, got[0].OriginalSpecies)

	ranking, err := c.GetUncertaintyRanking(ctx, 5)
	require.NoError(t, err)
	require.Len(t, ranking, 1)
	assert.Equal(t, "d.jpg", ranking[0].ImageID)

	stats, err := c.GetStats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, stats.Annotated)

	data, err := c.GetImageBytes(ctx, "a.jpg")
	require.NoError(t, err)
	assert.Equal(t, []byte("x"), data)

	_, err = c.GetImageBytes(ctx, "missing.jpg")
	assert.Error(t, err)
}
