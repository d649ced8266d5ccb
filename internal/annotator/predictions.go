package annotator

// Prediction is a machine candidate box. It is never mutated; accepting or
// rejecting removes it from the queue.
type Prediction struct {
	BBox                BBox
	Species             Species
	DetectionConfidence *float64
	SpeciesConfidence   *float64
}

func (p Prediction) clone() Prediction {
	p.DetectionConfidence = cloneFloat(p.DetectionConfidence)
	p.SpeciesConfidence = cloneFloat(p.SpeciesConfidence)
	return p
}

// Confidence is the species confidence when known, else the detection
// confidence, else 0.
func (p Prediction) Confidence() float64 {
	if p.SpeciesConfidence != nil {
		return *p.SpeciesConfidence
	}
	if p.DetectionConfidence != nil {
		return *p.DetectionConfidence
	}
	return 0
}

func cloneFloat(f *float64) *float64 {
	if f == nil {
		return nil
	}
	v := *f
	return &v
}

// PredictionQueue holds the unreviewed predictions of one image and which
// one is focused (-1 for none).
type PredictionQueue struct {
	items []Prediction
	focus int
}

func NewPredictionQueue(items []Prediction) PredictionQueue {
	q := PredictionQueue{focus: -1}
	q.Set(items)
	return q
}

func (q *PredictionQueue) Set(items []Prediction) {
	q.items = make([]Prediction, len(items))
	for i, p := range items {
		q.items[i] = p.clone()
	}
	q.focus = -1
}

func (q *PredictionQueue) Len() int { return len(q.items) }

// Focus returns the focused index or -1.
func (q *PredictionQueue) Focus() int { return q.focus }

func (q *PredictionQueue) At(i int) (Prediction, bool) {
	if i < 0 || i >= len(q.items) {
		return Prediction{}, false
	}
	return q.items[i], true
}

// Items returns a copy of the queue.
func (q *PredictionQueue) Items() []Prediction {
	out := make([]Prediction, len(q.items))
	for i, p := range q.items {
		out[i] = p.clone()
	}
	return out
}

// FocusNext cycles the focus through the queue.
func (q *PredictionQueue) FocusNext() {
	if len(q.items) == 0 {
		return
	}
	q.focus = (q.focus + 1) % len(q.items)
}

// Remove takes out item i and keeps the focus inside the queue.
func (q *PredictionQueue) Remove(i int) (Prediction, bool) {
	if i < 0 || i >= len(q.items) {
		return Prediction{}, false
	}
	p := q.items[i]
	q.items = append(q.items[:i], q.items[i+1:]...)
	if len(q.items) == 0 {
		q.focus = -1
	} else if q.focus > len(q.items)-1 {
		q.focus = len(q.items) - 1
	}
	return p, true
}

// Drain empties the queue and returns what was in it.
func (q *PredictionQueue) Drain() []Prediction {
	out := q.items
	q.items = nil
	q.focus = -1
	return out
}
