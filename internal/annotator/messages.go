package annotator

import "time"

// listReason says why the image list was fetched, which decides what happens
// once it arrives.
type listReason int

const (
	listInit listReason = iota
	listFilter
	listAdvance
	listJump
)

// ImagesLoadedMsg carries a fetched image list.
type ImagesLoadedMsg struct {
	Filter Filter
	Images []string
	Err    error

	reason listReason
	target string
	gen    uint64

	// imageGen is the image load generation when the list was requested.
	imageGen uint64
}

// AnnotationsLoadedMsg carries the stored state of one image.
type AnnotationsLoadedMsg struct {
	ImageID     string
	Annotations []Annotation
	IsEmpty     bool
	Err         error

	gen uint64
}

// PredictionsLoadedMsg carries the prediction queue of one image.
type PredictionsLoadedMsg struct {
	ImageID     string
	Predictions []Prediction
	Err         error

	gen uint64
}

// ImageReadyMsg reports that the pixels of an image are decoded and cached.
type ImageReadyMsg struct {
	ImageID  string
	Size     Size
	Err      error
	Prefetch bool

	gen uint64
}

// PersistedMsg is the outcome of a fire-and-forget save.
type PersistedMsg struct {
	ImageID string
	Err     error
}

type StatsLoadedMsg struct {
	Stats Stats
	Err   error
}

type RankingLoadedMsg struct {
	Entries []RankEntry
	Err     error

	retried bool
}

// TickMsg drives the session telemetry once per second.
type TickMsg time.Time

type autoAdvanceMsg struct {
	imageID string
	gen     uint64
}

type noticeExpiredMsg struct {
	id int
}
