// Package localstore keeps images, detector predictions and reviewed
// annotations in a directory tree:
//
//	<root>/images/incoming/<name>.jpg
//	<root>/annotations/<stem>.json
//	<root>/predictions/<stem>.json
package localstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"golang.org/x/sync/errgroup"

	"riistakamera/internal/annotator"
	"riistakamera/internal/wire"
)

// ImageExtensions are the file types listed as images.
var ImageExtensions = map[string]bool{
	".jpg":  true,
	".jpeg": true,
	".png":  true,
	".bmp":  true,
	".gif":  true,
	".webp": true,
}

var ErrInvalidName = errors.New("invalid image name")

// Store implements annotator.Collaborator on a directory.
type Store struct {
	root        string
	images      string
	annotations string
	predictions string

	workers int
	log     *slog.Logger
}

var _ annotator.Collaborator = (*Store)(nil)

type Option func(*Store)

func WithLogger(l *slog.Logger) Option {
	return func(s *Store) { s.log = l }
}

// WithWorkers bounds how many files are read in parallel.
func WithWorkers(n int) Option {
	return func(s *Store) {
		if n > 0 {
			s.workers = n
		}
	}
}

// Open prepares the directory layout under root.
func Open(root string, opts ...Option) (*Store, error) {
	s := &Store{
		root:        root,
		images:      filepath.Join(root, "images", "incoming"),
		annotations: filepath.Join(root, "annotations"),
		predictions: filepath.Join(root, "predictions"),
		workers:     8,
		log:         slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	for _, dir := range []string{s.images, s.annotations, s.predictions} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create %s: %w", dir, err)
		}
	}
	return s, nil
}

func (s *Store) Root() string { return s.root }

func stem(name string) string {
	return strings.TrimSuffix(name, filepath.Ext(name))
}

func checkName(name string) error {
	if name == "" || name != filepath.Base(name) || name == "." || name == ".." {
		return fmt.Errorf("%w: %q", ErrInvalidName, name)
	}
	return nil
}

// imageNames lists image files sorted by name.
func (s *Store) imageNames() ([]string, error) {
	entries, err := os.ReadDir(s.images)
	if err != nil {
		return nil, fmt.Errorf("read image dir: %w", err)
	}
	var out []string
	for _, e := range entries {
		if e.IsDir() || !ImageExtensions[strings.ToLower(filepath.Ext(e.Name()))] {
			continue
		}
		out = append(out, e.Name())
	}
	sort.Strings(out)
	return out, nil
}

func readJSON(path string, v interface{}) (bool, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if err := json.Unmarshal(data, v); err != nil {
		return false, fmt.Errorf("parse %s: %w", filepath.Base(path), err)
	}
	return true, nil
}

func (s *Store) annotationFile(name string) (wire.AnnotationFile, bool, error) {
	var f wire.AnnotationFile
	ok, err := readJSON(filepath.Join(s.annotations, stem(name)+".json"), &f)
	return f, ok, err
}

func (s *Store) predictionFile(name string) (wire.PredictionFile, bool, error) {
	var f wire.PredictionFile
	ok, err := readJSON(filepath.Join(s.predictions, stem(name)+".json"), &f)
	return f, ok, err
}

// record is what the filters and counters need to know about one image.
type record struct {
	name          string
	annotation    wire.AnnotationFile
	hasAnnotation bool
	predictions   wire.PredictionFile
}

// scan reads the annotation and prediction files of every image in
// parallel. Unreadable files are logged and treated as absent.
func (s *Store) scan(ctx context.Context) ([]record, error) {
	names, err := s.imageNames()
	if err != nil {
		return nil, err
	}
	records := make([]record, len(names))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(s.workers)
	for i, name := range names {
		i, name := i, name
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			r := record{name: name}
			ann, ok, err := s.annotationFile(name)
			if err != nil {
				s.log.Warn("skipping annotation file", "image", name, "err", err)
			}
			r.annotation, r.hasAnnotation = ann, ok && err == nil
			preds, _, err := s.predictionFile(name)
			if err != nil {
				s.log.Warn("skipping prediction file", "image", name, "err", err)
			}
			r.predictions = preds
			records[i] = r
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return records, nil
}

func (r record) matches(f annotator.Filter) bool {
	switch f {
	case annotator.FilterAnnotated:
		return len(r.annotation.Annotations) > 0
	case annotator.FilterUnannotated:
		return !r.hasAnnotation || !r.annotation.Reviewed()
	case annotator.FilterPredicted:
		return len(r.predictions.Predictions) > 0
	case annotator.FilterEmpty:
		return r.annotation.IsEmpty
	default:
		return true
	}
}

func (s *Store) ListImages(ctx context.Context, filter annotator.Filter) ([]string, error) {
	if filter == "" || filter == annotator.FilterAll {
		return s.imageNames()
	}
	records, err := s.scan(ctx)
	if err != nil {
		return nil, err
	}
	out := []string{}
	for _, r := range records {
		if r.matches(filter) {
			out = append(out, r.name)
		}
	}
	return out, nil
}

func (s *Store) GetAnnotations(_ context.Context, imageID string) ([]annotator.Annotation, bool, error) {
	if err := checkName(imageID); err != nil {
		return nil, false, err
	}
	f, _, err := s.annotationFile(imageID)
	if err != nil {
		return nil, false, err
	}
	anns, empty := f.Decode()
	return anns, empty, nil
}

// AnnotationFile returns the stored file for imageID, or an empty one.
func (s *Store) AnnotationFile(imageID string) (wire.AnnotationFile, error) {
	if err := checkName(imageID); err != nil {
		return wire.AnnotationFile{}, err
	}
	f, ok, err := s.annotationFile(imageID)
	if err != nil {
		return wire.AnnotationFile{}, err
	}
	if !ok {
		f = wire.AnnotationFile{ImageName: imageID, Annotations: []wire.Annotation{}}
	}
	return f, nil
}

func (s *Store) GetPredictions(_ context.Context, imageID string) ([]annotator.Prediction, error) {
	if err := checkName(imageID); err != nil {
		return nil, err
	}
	f, _, err := s.predictionFile(imageID)
	if err != nil {
		return nil, err
	}
	return f.Decode(), nil
}

func (s *Store) SaveAnnotations(_ context.Context, imageID string, anns []annotator.Annotation, isEmpty bool) error {
	_, err := s.WriteAnnotationFile(wire.NewAnnotationFile(imageID, anns, isEmpty))
	return err
}

// WriteAnnotationFile stores f atomically and returns the path written.
func (s *Store) WriteAnnotationFile(f wire.AnnotationFile) (string, error) {
	if err := checkName(f.ImageName); err != nil {
		return "", err
	}
	if f.Annotations == nil {
		f.Annotations = []wire.Annotation{}
	}
	data, err := json.MarshalIndent(f, "", "  ")
	if err != nil {
		return "", fmt.Errorf("encode annotations: %w", err)
	}
	path := filepath.Join(s.annotations, stem(f.ImageName)+".json")
	tmp, err := os.CreateTemp(s.annotations, ".save-*")
	if err != nil {
		return "", fmt.Errorf("save annotations: %w", err)
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return "", fmt.Errorf("save annotations: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return "", fmt.Errorf("save annotations: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return "", fmt.Errorf("save annotations: %w", err)
	}
	s.log.Debug("annotations saved", "image", f.ImageName, "count", len(f.Annotations), "empty", f.IsEmpty)
	return path, nil
}

// WritePredictions stores detector output for imageID.
func (s *Store) WritePredictions(imageID string, preds []annotator.Prediction) error {
	if err := checkName(imageID); err != nil {
		return err
	}
	f := wire.PredictionFile{Image: imageID, Predictions: []wire.Prediction{}}
	for _, p := range preds {
		f.Predictions = append(f.Predictions, wire.FromPrediction(p))
	}
	data, err := json.MarshalIndent(f, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(s.predictions, stem(imageID)+".json"), data, 0o644)
}

func (s *Store) GetStats(ctx context.Context) (annotator.Stats, error) {
	records, err := s.scan(ctx)
	if err != nil {
		return annotator.Stats{}, err
	}
	st := annotator.Stats{Total: len(records), Species: map[annotator.Species]int{}}
	for _, r := range records {
		switch {
		case r.annotation.IsEmpty:
			st.Empty++
		case len(r.annotation.Annotations) > 0:
			st.Annotated++
			for _, a := range r.annotation.Annotations {
				sp := annotator.ParseSpecies(a.Species)
				if sp == "" {
					sp = annotator.Muu
				}
				st.Species[sp]++
			}
		}
		if len(r.predictions.Predictions) > 0 {
			st.Predicted++
			if !r.hasAnnotation {
				st.PendingPredicted++
			}
		}
	}
	return st, nil
}

// GetUncertaintyRanking lists unreviewed images that have predictions,
// lowest maximum confidence first.
func (s *Store) GetUncertaintyRanking(ctx context.Context, limit int) ([]annotator.RankEntry, error) {
	entries, err := s.Ranking(ctx, limit)
	if err != nil {
		return nil, err
	}
	out := make([]annotator.RankEntry, 0, len(entries))
	for _, e := range entries {
		out = append(out, e.Decode())
	}
	return out, nil
}

// Ranking is GetUncertaintyRanking in wire form.
func (s *Store) Ranking(ctx context.Context, limit int) ([]wire.RankEntry, error) {
	records, err := s.scan(ctx)
	if err != nil {
		return nil, err
	}
	out := []wire.RankEntry{}
	for _, r := range records {
		if r.annotation.Reviewed() || len(r.predictions.Predictions) == 0 {
			continue
		}
		var confs []float64
		for _, p := range r.predictions.Predictions {
			switch {
			case p.SpeciesConfidence != nil:
				confs = append(confs, *p.SpeciesConfidence)
			case p.MDConfidence != nil:
				confs = append(confs, *p.MDConfidence)
			}
		}
		e := wire.RankEntry{Image: r.name, PredictionsCount: len(r.predictions.Predictions)}
		if len(confs) > 0 {
			e.MinConfidence = math.Inf(1)
			sum := 0.0
			for _, c := range confs {
				e.MaxConfidence = math.Max(e.MaxConfidence, c)
				e.MinConfidence = math.Min(e.MinConfidence, c)
				sum += c
			}
			e.AvgConfidence = round4(sum / float64(len(confs)))
			e.MaxConfidence = round4(e.MaxConfidence)
			e.MinConfidence = round4(e.MinConfidence)
		}
		e.Reason = wire.Reason(e.MaxConfidence)
		out = append(out, e)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].MaxConfidence < out[j].MaxConfidence })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func round4(v float64) float64 { return math.Round(v*1e4) / 1e4 }

// ImagePath returns the file path of imageID.
func (s *Store) ImagePath(imageID string) (string, error) {
	if err := checkName(imageID); err != nil {
		return "", err
	}
	return filepath.Join(s.images, imageID), nil
}

func (s *Store) GetImageBytes(_ context.Context, imageID string) ([]byte, error) {
	path, err := s.ImagePath(imageID)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read image %s: %w", imageID, err)
	}
	return data, nil
}
