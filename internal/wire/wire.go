// Package wire holds the JSON records exchanged with the review backend and
// stored in annotation and prediction files.
package wire

import (
	"fmt"
	"time"

	"riistakamera/internal/annotator"
)

// TimeLayout is the timestamp format written into annotation files.
const TimeLayout = "2006-01-02T15:04:05.000Z07:00"

// BBox is [x1, y1, x2, y2] in image pixels.
type BBox [4]float64

func FromBBox(b annotator.BBox) BBox { return BBox{b.X1, b.Y1, b.X2, b.Y2} }

func (b BBox) ToBBox() annotator.BBox {
	return annotator.BBox{X1: b[0], Y1: b[1], X2: b[2], Y2: b[3]}
}

type Annotation struct {
	BBox              BBox     `json:"bbox"`
	Species           string   `json:"species"`
	MDConfidence      *float64 `json:"md_confidence,omitempty"`
	SpeciesConfidence *float64 `json:"species_confidence,omitempty"`
	FromPrediction    bool     `json:"from_prediction,omitempty"`
	OriginalSpecies   string   `json:"original_species,omitempty"`
	Timestamp         string   `json:"timestamp,omitempty"`
}

// AnnotationFile is the stored state of one image.
type AnnotationFile struct {
	ImageName   string       `json:"image_name"`
	Annotations []Annotation `json:"annotations"`
	IsEmpty     bool         `json:"is_empty"`
}

type Prediction struct {
	BBox              BBox     `json:"bbox"`
	Species           string   `json:"species,omitempty"`
	MDConfidence      *float64 `json:"md_confidence,omitempty"`
	SpeciesConfidence *float64 `json:"species_confidence,omitempty"`
}

// PredictionFile is the detector output for one image.
type PredictionFile struct {
	Image       string       `json:"image,omitempty"`
	Predictions []Prediction `json:"predictions"`
}

type ImageList struct {
	Images []string `json:"images"`
}

type Stats struct {
	TotalImages                int            `json:"total_images"`
	AnnotatedImages            int            `json:"annotated_images"`
	EmptyImages                int            `json:"empty_images"`
	PredictedImages            int            `json:"predicted_images"`
	UnannotatedWithPredictions int            `json:"unannotated_with_predictions"`
	SpeciesDistribution        map[string]int `json:"species_distribution"`
}

type RankEntry struct {
	Image            string  `json:"image"`
	MaxConfidence    float64 `json:"max_confidence"`
	MinConfidence    float64 `json:"min_confidence"`
	AvgConfidence    float64 `json:"avg_confidence"`
	PredictionsCount int     `json:"predictions_count"`
	Reason           string  `json:"reason"`
}

type Ranking struct {
	Images []RankEntry `json:"images"`
}

// ErrorBody is the body of a non-2xx response.
type ErrorBody struct {
	Error string `json:"error"`
}

// SaveResult is returned by a successful save.
type SaveResult struct {
	Success bool   `json:"success"`
	SavedTo string `json:"saved_to,omitempty"`
}

// FromAnnotation converts an engine annotation for storage.
func FromAnnotation(a annotator.Annotation) Annotation {
	out := Annotation{
		BBox:    FromBBox(a.BBox),
		Species: a.Species.String(),
	}
	if !a.Timestamp.IsZero() {
		out.Timestamp = a.Timestamp.Format(TimeLayout)
	}
	if a.Provenance == annotator.FromPrediction {
		out.FromPrediction = true
		out.OriginalSpecies = a.OriginalSpecies.String()
		out.MDConfidence = a.DetectionConfidence
		out.SpeciesConfidence = a.SpeciesConfidence
	}
	return out
}

// ToAnnotation converts a stored annotation. Unparseable timestamps are
// dropped rather than failing the whole file.
func (a Annotation) ToAnnotation() annotator.Annotation {
	out := annotator.Annotation{
		BBox:    a.BBox.ToBBox().Normalize(),
		Species: annotator.ParseSpecies(a.Species),
	}
	if a.Timestamp != "" {
		if ts, err := parseTime(a.Timestamp); err == nil {
			out.Timestamp = ts
		}
	}
	if a.FromPrediction {
		out.Provenance = annotator.FromPrediction
		out.OriginalSpecies = annotator.ParseSpecies(a.OriginalSpecies)
		out.DetectionConfidence = a.MDConfidence
		out.SpeciesConfidence = a.SpeciesConfidence
	}
	return out
}

func parseTime(s string) (time.Time, error) {
	for _, layout := range []string{TimeLayout, time.RFC3339Nano, "2006-01-02T15:04:05.999999"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized timestamp %q", s)
}

func NewAnnotationFile(imageName string, anns []annotator.Annotation, isEmpty bool) AnnotationFile {
	f := AnnotationFile{ImageName: imageName, Annotations: make([]Annotation, 0, len(anns)), IsEmpty: isEmpty}
	for _, a := range anns {
		f.Annotations = append(f.Annotations, FromAnnotation(a))
	}
	return f
}

// Decode returns the engine view of f.
func (f AnnotationFile) Decode() ([]annotator.Annotation, bool) {
	var out []annotator.Annotation
	for _, a := range f.Annotations {
		out = append(out, a.ToAnnotation())
	}
	return out, f.IsEmpty && len(out) == 0
}

// Reviewed reports whether a reviewer has made a decision on the image.
func (f AnnotationFile) Reviewed() bool {
	return len(f.Annotations) > 0 || f.IsEmpty
}

func (p Prediction) ToPrediction() annotator.Prediction {
	return annotator.Prediction{
		BBox:                p.BBox.ToBBox(),
		Species:             annotator.ParseSpecies(p.Species),
		DetectionConfidence: p.MDConfidence,
		SpeciesConfidence:   p.SpeciesConfidence,
	}
}

func FromPrediction(p annotator.Prediction) Prediction {
	return Prediction{
		BBox:              FromBBox(p.BBox),
		Species:           p.Species.String(),
		MDConfidence:      p.DetectionConfidence,
		SpeciesConfidence: p.SpeciesConfidence,
	}
}

func (f PredictionFile) Decode() []annotator.Prediction {
	var out []annotator.Prediction
	for _, p := range f.Predictions {
		out = append(out, p.ToPrediction())
	}
	return out
}

func (s Stats) Decode() annotator.Stats {
	out := annotator.Stats{
		Total:            s.TotalImages,
		Annotated:        s.AnnotatedImages,
		Empty:            s.EmptyImages,
		Predicted:        s.PredictedImages,
		PendingPredicted: s.UnannotatedWithPredictions,
	}
	if len(s.SpeciesDistribution) > 0 {
		out.Species = make(map[annotator.Species]int, len(s.SpeciesDistribution))
		for k, v := range s.SpeciesDistribution {
			out.Species[annotator.ParseSpecies(k)] += v
		}
	}
	return out
}

func FromStats(s annotator.Stats) Stats {
	out := Stats{
		TotalImages:                s.Total,
		AnnotatedImages:            s.Annotated,
		EmptyImages:                s.Empty,
		PredictedImages:            s.Predicted,
		UnannotatedWithPredictions: s.PendingPredicted,
		SpeciesDistribution:        map[string]int{},
	}
	for k, v := range s.Species {
		out.SpeciesDistribution[k.String()] = v
	}
	return out
}

func (r RankEntry) Decode() annotator.RankEntry {
	return annotator.RankEntry{
		ImageID:          r.Image,
		MaxConfidence:    r.MaxConfidence,
		PredictionsCount: r.PredictionsCount,
		Reason:           r.Reason,
	}
}

// Reason buckets a max confidence the way the ranking endpoint labels it.
func Reason(maxConf float64) string {
	switch {
	case maxConf < 0.3:
		return "very_uncertain"
	case maxConf < 0.6:
		return "uncertain"
	case maxConf < 0.8:
		return "moderate"
	default:
		return "confident"
	}
}
