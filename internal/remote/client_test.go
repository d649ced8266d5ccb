package remote

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"riistakamera/internal/annotator"
	"riistakamera/internal/wire"
)

func TestClientOptions(t *testing.T) {
	c := NewClient("http://localhost:5000/", WithTimeout(3*time.Second), WithSessionID("abc"))
	assert.Equal(t, "http://localhost:5000", c.baseURL)
	assert.Equal(t, 3*time.Second, c.httpClient.Timeout)
	assert.Equal(t, "abc", c.sessionID)
}

func TestListImages(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "GET", r.Method)
		assert.Equal(t, "/api/images", r.URL.Path)
		assert.Equal(t, "unannotated", r.URL.Query().Get("filter"))
		assert.Equal(t, "session-1", r.Header.Get(SessionHeader))
		json.NewEncoder(w).Encode(wire.ImageList{Images: []string{"a.jpg", "b.jpg"}})
	}))
	defer server.Close()

	c := NewClient(server.URL, WithSessionID("session-1"))
	images, err := c.ListImages(context.Background(), annotator.FilterUnannotated)
	require.NoError(t, err)
	assert.Equal(t, []string{"a.jpg", "b.jpg"}, images)
}

func TestListImagesAllOmitsFilter(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Empty(t, r.URL.RawQuery)
		w.Write([]byte(`{"images": []}`))
	}))
	defer server.Close()

	images, err := NewClient(server.URL).ListImages(context.Background(), annotator.FilterAll)
	require.NoError(t, err)
	assert.Empty(t, images)
}

func TestGetAnnotationsAndPredictions(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/annotation/IMG 1.JPG":
			w.Write([]byte(`{"image_name": "IMG 1.JPG", "annotations": [], "is_empty": true}`))
		case "/api/predictions/IMG 1.JPG":
			w.Write([]byte(`{"predictions": [{"bbox": [10, 10, 50, 50], "species": "kettu", "species_confidence": 0.92}]}`))
		default:
			http.NotFound(w, r)
		}
	}))
	defer server.Close()

	c := NewClient(server.URL)
	anns, empty, err := c.GetAnnotations(context.Background(), "IMG 1.JPG")
	require.NoError(t, err)
	assert.Empty(t, anns)
	assert.True(t, empty)

	preds, err := c.GetPredictions(context.Background(), "IMG 1.JPG")
	require.NoError(t, err)
	require.Len(t, preds, 1)
	assert.Equal(t, annotator.Kettu, preds[0].Species)
}

func TestSaveAnnotations(t *testing.T) {
	var got wire.AnnotationFile
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "POST", r.Method)
		assert.Equal(t, "/api/annotation/a.jpg", r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Write([]byte(`{"success": true, "saved_to": "/data/annotations/a.json"}`))
	}))
	defer server.Close()

	anns := []annotator.Annotation{{BBox: annotator.BBox{X1: 1, Y1: 1, X2: 20, Y2: 20}, Species: annotator.Peura}}
	require.NoError(t, NewClient(server.URL).SaveAnnotations(context.Background(), "a.jpg", anns, false))
	assert.Equal(t, "a.jpg", got.ImageName)
	require.Len(t, got.Annotations, 1)
	assert.Equal(t, "peura", got.Annotations[0].Species)
}

func TestAPIError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"error": "Invalid data format"}`))
	}))
	defer server.Close()

	err := NewClient(server.URL).SaveAnnotations(context.Background(), "a.jpg", nil, true)
	require.Error(t, err)
	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusBadRequest, apiErr.StatusCode)
	assert.Equal(t, "Invalid data format", apiErr.Message)
}

func TestAPIErrorPlainBody(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "upstream gone", http.StatusBadGateway)
	}))
	defer server.Close()

	_, err := NewClient(server.URL).GetStats(context.Background())
	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, "upstream gone", apiErr.Message)
}

func TestRankingAndStats(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/active-learning":
			assert.Equal(t, "5", r.URL.Query().Get("limit"))
			w.Write([]byte(`{"images": [{"image": "b.jpg", "max_confidence": 0.21, "predictions_count": 2, "reason": "very_uncertain"}]}`))
		case "/api/stats":
			w.Write([]byte(`{"total_images": 12, "annotated_images": 3, "empty_images": 4}`))
		}
	}))
	defer server.Close()

	c := NewClient(server.URL)
	ranking, err := c.GetUncertaintyRanking(context.Background(), 5)
	require.NoError(t, err)
	assert.Equal(t, []annotator.RankEntry{{ImageID: "b.jpg", MaxConfidence: 0.21, PredictionsCount: 2, Reason: "very_uncertain"}}, ranking)

	stats, err := c.GetStats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 12, stats.Total)
	assert.Equal(t, 4, stats.Empty)
}

func TestGetImageBytes(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/image/a.jpg", r.URL.Path)
		w.Write([]byte{0xff, 0xd8, 0xff})
	}))
	defer server.Close()

	data, err := NewClient(server.URL).GetImageBytes(context.Background(), "a.jpg")
	require.NoError(t, err)
	assert.Equal(t, []byte{0xff, 0xd8, 0xff}, data)
}
