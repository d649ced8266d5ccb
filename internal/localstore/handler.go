package localstore

import (
	"encoding/json"
	"errors"
	"io/fs"
	"log/slog"
	"net/http"
	"strconv"

	"riistakamera/internal/annotator"
	"riistakamera/internal/wire"
)

// Handler serves the store over the review JSON API, so a reviewer on
// another machine can use the remote backend against it.
func Handler(s *Store, log *slog.Logger) http.Handler {
	if log == nil {
		log = slog.Default()
	}
	h := &handler{store: s, log: log}
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/images", h.listImages)
	mux.HandleFunc("GET /api/image/{name}", h.image)
	mux.HandleFunc("GET /api/annotation/{name}", h.getAnnotation)
	mux.HandleFunc("POST /api/annotation/{name}", h.saveAnnotation)
	mux.HandleFunc("GET /api/predictions/{name}", h.predictions)
	mux.HandleFunc("GET /api/stats", h.stats)
	mux.HandleFunc("GET /api/active-learning", h.ranking)
	return mux
}

type handler struct {
	store *Store
	log   *slog.Logger
}

func (h *handler) writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.log.Warn("write response", "err", err)
	}
}

func (h *handler) fail(w http.ResponseWriter, r *http.Request, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, ErrInvalidName):
		status = http.StatusBadRequest
	case errors.Is(err, fs.ErrNotExist):
		status = http.StatusNotFound
	}
	h.log.Warn("request failed", "path", r.URL.Path, "status", status, "err", err,
		"session", r.Header.Get("X-Review-Session"))
	h.writeJSON(w, status, wire.ErrorBody{Error: err.Error()})
}

func (h *handler) listImages(w http.ResponseWriter, r *http.Request) {
	filter, err := annotator.ParseFilter(r.URL.Query().Get("filter"))
	if err != nil {
		h.writeJSON(w, http.StatusBadRequest, wire.ErrorBody{Error: err.Error()})
		return
	}
	images, err := h.store.ListImages(r.Context(), filter)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, wire.ImageList{Images: images})
}

func (h *handler) image(w http.ResponseWriter, r *http.Request) {
	path, err := h.store.ImagePath(r.PathValue("name"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	http.ServeFile(w, r, path)
}

func (h *handler) getAnnotation(w http.ResponseWriter, r *http.Request) {
	f, err := h.store.AnnotationFile(r.PathValue("name"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, f)
}

func (h *handler) saveAnnotation(w http.ResponseWriter, r *http.Request) {
	var body struct {
		ImageName   *string            `json:"image_name"`
		Annotations *[]wire.Annotation `json:"annotations"`
		IsEmpty     bool               `json:"is_empty"`
	}
	err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20)).Decode(&body)
	if err != nil || body.ImageName == nil || body.Annotations == nil {
		h.writeJSON(w, http.StatusBadRequest, wire.ErrorBody{Error: "Invalid data format"})
		return
	}
	path, err := h.store.WriteAnnotationFile(wire.AnnotationFile{
		ImageName:   r.PathValue("name"),
		Annotations: *body.Annotations,
		IsEmpty:     body.IsEmpty,
	})
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, wire.SaveResult{Success: true, SavedTo: path})
}

func (h *handler) predictions(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	preds, err := h.store.GetPredictions(r.Context(), name)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	out := wire.PredictionFile{Image: name, Predictions: []wire.Prediction{}}
	for _, p := range preds {
		out.Predictions = append(out.Predictions, wire.FromPrediction(p))
	}
	h.writeJSON(w, http.StatusOK, out)
}

func (h *handler) stats(w http.ResponseWriter, r *http.Request) {
	st, err := h.store.GetStats(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, wire.FromStats(st))
}

func (h *handler) ranking(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			h.writeJSON(w, http.StatusBadRequest, wire.ErrorBody{Error: "limit must be a positive integer"})
			return
		}
		limit = n
	}
	entries, err := h.store.Ranking(r.Context(), limit)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, wire.Ranking{Images: entries})
}
