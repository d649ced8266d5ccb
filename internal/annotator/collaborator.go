package annotator

import "context"

// Stats are the progress counters shown next to the image.
type Stats struct {
	Total     int
	Annotated int
	Empty     int
	Predicted int
	// PendingPredicted counts images with predictions but no annotation file.
	PendingPredicted int
	Species          map[Species]int
}

// RankEntry is one image of the uncertainty ranking, most uncertain first.
type RankEntry struct {
	ImageID          string
	MaxConfidence    float64
	PredictionsCount int
	Reason           string
}

// Collaborator is the backend that owns images, predictions and stored
// annotations.
type Collaborator interface {
	ListImages(ctx context.Context, filter Filter) ([]string, error)
	GetAnnotations(ctx context.Context, imageID string) ([]Annotation, bool, error)
	GetPredictions(ctx context.Context, imageID string) ([]Prediction, error)
	SaveAnnotations(ctx context.Context, imageID string, annotations []Annotation, isEmpty bool) error
	GetStats(ctx context.Context) (Stats, error)
	GetUncertaintyRanking(ctx context.Context, limit int) ([]RankEntry, error)
	GetImageBytes(ctx context.Context, imageID string) ([]byte, error)
}

// ImageSource makes the pixels of an image available to the renderer and
// reports the natural size. Loading the same image twice should be cheap.
type ImageSource interface {
	Load(ctx context.Context, imageID string) (Size, error)
}
