package annotator

import (
	"fmt"
	"time"
)

// Provenance records where an annotation came from.
type Provenance int

const (
	HumanDrawn Provenance = iota
	FromPrediction
)

func (p Provenance) String() string {
	if p == FromPrediction {
		return "from-prediction"
	}
	return "human-drawn"
}

// Annotation is a reviewed box. For FromPrediction annotations the original
// species and both confidences of the source prediction are kept.
type Annotation struct {
	BBox       BBox
	Species    Species
	Timestamp  time.Time
	Provenance Provenance

	OriginalSpecies     Species
	DetectionConfidence *float64
	SpeciesConfidence   *float64
}

func (a Annotation) clone() Annotation {
	a.DetectionConfidence = cloneFloat(a.DetectionConfidence)
	a.SpeciesConfidence = cloneFloat(a.SpeciesConfidence)
	return a
}

// Workspace is the editable state of the image currently under review: its
// annotations, empty flag, prediction queue, undo log and pointer draft.
// Mutations are refused with ErrNotReady until both the annotations and the
// predictions of the image have been loaded.
type Workspace struct {
	imageID string

	annotations []Annotation
	isEmpty     bool
	queue       PredictionQueue

	history *History
	draft   Draft

	annotationsLoaded bool
	predictionsLoaded bool

	now func() time.Time
}

func NewWorkspace(now func() time.Time) *Workspace {
	if now == nil {
		now = time.Now
	}
	return &Workspace{
		queue:   NewPredictionQueue(nil),
		history: NewHistory(),
		now:     now,
	}
}

// Reset starts a fresh, not yet loaded, workspace for imageID. History and
// draft from the previous image are discarded.
func (w *Workspace) Reset(imageID string) {
	w.imageID = imageID
	w.annotations = nil
	w.isEmpty = false
	w.queue = NewPredictionQueue(nil)
	w.history.Reset()
	w.draft.Clear()
	w.annotationsLoaded = false
	w.predictionsLoaded = false
}

func (w *Workspace) ImageID() string { return w.imageID }

// LoadAnnotations installs the stored state of the image.
func (w *Workspace) LoadAnnotations(anns []Annotation, isEmpty bool) {
	w.annotations = cloneAnnotations(anns)
	w.isEmpty = isEmpty && len(w.annotations) == 0
	w.annotationsLoaded = true
}

// LoadPredictions installs the prediction queue of the image.
func (w *Workspace) LoadPredictions(preds []Prediction) {
	w.queue.Set(preds)
	w.predictionsLoaded = true
}

func (w *Workspace) Ready() bool {
	return w.imageID != "" && w.annotationsLoaded && w.predictionsLoaded
}

func (w *Workspace) Annotations() []Annotation { return cloneAnnotations(w.annotations) }
func (w *Workspace) IsEmpty() bool { return w.isEmpty }
func (w *Workspace) Queue() *PredictionQueue { return &w.queue }
func (w *Workspace) Draft() *Draft { return &w.draft }
func (w *Workspace) History() *History { return w.history }

// State returns a deep copy of the reviewable state.
func (w *Workspace) State() ReviewState {
	return ReviewState{
		Annotations: cloneAnnotations(w.annotations),
		Predictions: w.queue.Items(),
		IsEmpty:     w.isEmpty,
	}
}

func (w *Workspace) restore(s ReviewState) {
	w.annotations = s.Annotations
	w.isEmpty = s.IsEmpty
	focus := w.queue.focus
	w.queue.Set(s.Predictions)
	if focus < w.queue.Len() {
		w.queue.focus = focus
	}
}

func (w *Workspace) checkReady() error {
	if w.imageID == "" {
		return ErrNoImage
	}
	if !w.Ready() {
		return ErrNotReady
	}
	return nil
}

// Commit turns the pending draft into a human-drawn annotation.
func (w *Workspace) Commit(species Species) error {
	if err := w.checkReady(); err != nil {
		return err
	}
	box, ok := w.draft.Pending()
	if !ok {
		return ErrNoDraft
	}
	if species == "" {
		return ErrNoSpecies
	}
	w.history.Push(w.State())
	w.annotations = append(w.annotations, Annotation{
		BBox:       box,
		Species:    species,
		Timestamp:  w.now(),
		Provenance: HumanDrawn,
	})
	w.isEmpty = false
	w.draft.Clear()
	return nil
}

// Delete removes annotation i.
func (w *Workspace) Delete(i int) error {
	if err := w.checkReady(); err != nil {
		return err
	}
	if i < 0 || i >= len(w.annotations) {
		return fmt.Errorf("delete annotation %d: %w", i, ErrIndexOutOfRange)
	}
	w.history.Push(w.State())
	w.annotations = append(w.annotations[:i:i], w.annotations[i+1:]...)
	return nil
}

// MarkEmpty clears every annotation and the draft and flags the image as
// containing no animals.
func (w *Workspace) MarkEmpty() error {
	if err := w.checkReady(); err != nil {
		return err
	}
	w.history.Push(w.State())
	w.annotations = nil
	w.isEmpty = true
	w.draft.Clear()
	return nil
}

// Undo restores the state before the last mutation.
func (w *Workspace) Undo() bool {
	if !w.Ready() {
		return false
	}
	s, ok := w.history.Undo(w.State())
	if !ok {
		return false
	}
	w.restore(s)
	return true
}

func (w *Workspace) Redo() bool {
	if !w.Ready() {
		return false
	}
	s, ok := w.history.Redo()
	if !ok {
		return false
	}
	w.restore(s)
	return true
}

func (w *Workspace) fromPrediction(p Prediction, override Species) Annotation {
	species := p.Species
	if override != "" {
		species = override
	}
	return Annotation{
		BBox:                p.BBox.Normalize(),
		Species:             species,
		Timestamp:           w.now(),
		Provenance:          FromPrediction,
		OriginalSpecies:     p.Species,
		DetectionConfidence: cloneFloat(p.DetectionConfidence),
		SpeciesConfidence:   cloneFloat(p.SpeciesConfidence),
	}
}

// Accept converts prediction i to an annotation, using override as the
// species when it is set.
func (w *Workspace) Accept(i int, override Species) error {
	if err := w.checkReady(); err != nil {
		return err
	}
	p, ok := w.queue.At(i)
	if !ok {
		return fmt.Errorf("accept prediction %d: %w", i, ErrIndexOutOfRange)
	}
	if !p.BBox.Normalize().Valid() {
		return fmt.Errorf("accept prediction %d: %w", i, ErrBoxTooSmall)
	}
	w.history.Push(w.State())
	p, _ = w.queue.Remove(i)
	w.annotations = append(w.annotations, w.fromPrediction(p, override))
	w.isEmpty = false
	return nil
}

// Reject drops prediction i. It is not recorded in the history.
func (w *Workspace) Reject(i int) error {
	if err := w.checkReady(); err != nil {
		return err
	}
	if _, ok := w.queue.Remove(i); !ok {
		return fmt.Errorf("reject prediction %d: %w", i, ErrIndexOutOfRange)
	}
	return nil
}

// AcceptAll converts the whole queue in order as a single undoable step and
// returns how many annotations were added. Predictions smaller than
// MinBoxSize are dropped from the queue without becoming annotations.
func (w *Workspace) AcceptAll(override Species) (int, error) {
	if err := w.checkReady(); err != nil {
		return 0, err
	}
	if w.queue.Len() == 0 {
		return 0, nil
	}
	w.history.Push(w.State())
	added := 0
	for _, p := range w.queue.Drain() {
		if !p.BBox.Normalize().Valid() {
			continue
		}
		w.annotations = append(w.annotations, w.fromPrediction(p, override))
		added++
	}
	if added > 0 {
		w.isEmpty = false
	}
	return added, nil
}

func cloneAnnotations(in []Annotation) []Annotation {
	if len(in) == 0 {
		return nil
	}
	out := make([]Annotation, len(in))
	for i, a := range in {
		out[i] = a.clone()
	}
	return out
}
