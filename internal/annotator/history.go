package annotator

// MaxHistory is the number of snapshots kept per image.
const MaxHistory = 50

// ReviewState is everything about one image a reviewer can change.
type ReviewState struct {
	Annotations []Annotation
	Predictions []Prediction
	IsEmpty     bool
}

// Clone returns a deep copy of s.
func (s ReviewState) Clone() ReviewState {
	out := ReviewState{IsEmpty: s.IsEmpty}
	if s.Annotations != nil {
		out.Annotations = make([]Annotation, len(s.Annotations))
		for i, a := range s.Annotations {
			out.Annotations[i] = a.clone()
		}
	}
	if s.Predictions != nil {
		out.Predictions = make([]Prediction, len(s.Predictions))
		for i, p := range s.Predictions {
			out.Predictions[i] = p.clone()
		}
	}
	return out
}

// History is a linear undo log: snapshots taken before each mutation plus a
// cursor. Pushing after an undo truncates the redo branch.
type History struct {
	entries []ReviewState
	cursor  int
	// head is the state after the newest entry, saved by the first undo so
	// that redo can return to it.
	head *ReviewState
}

func NewHistory() *History { return &History{} }

// Push records s as the state before a mutation.
func (h *History) Push(s ReviewState) {
	h.entries = append(h.entries[:h.cursor], s.Clone())
	h.head = nil
	if len(h.entries) > MaxHistory {
		drop := len(h.entries) - MaxHistory
		h.entries = append([]ReviewState(nil), h.entries[drop:]...)
	}
	h.cursor = len(h.entries)
}

// Undo returns the state to restore given the current state, or false when
// there is nothing to undo.
func (h *History) Undo(current ReviewState) (ReviewState, bool) {
	if h.cursor == 0 {
		return ReviewState{}, false
	}
	if h.cursor == len(h.entries) {
		c := current.Clone()
		h.head = &c
	}
	h.cursor--
	return h.entries[h.cursor].Clone(), true
}

// Redo moves forward one step, or returns false at the newest state.
func (h *History) Redo() (ReviewState, bool) {
	if h.cursor >= len(h.entries) || h.head == nil {
		return ReviewState{}, false
	}
	h.cursor++
	if h.cursor == len(h.entries) {
		return h.head.Clone(), true
	}
	return h.entries[h.cursor].Clone(), true
}

func (h *History) CanUndo() bool { return h.cursor > 0 }
func (h *History) CanRedo() bool { return h.cursor < len(h.entries) && h.head != nil }

// Len is the number of stored snapshots.
func (h *History) Len() int { return len(h.entries) }

func (h *History) Cursor() int { return h.cursor }

func (h *History) Reset() {
	h.entries = nil
	h.cursor = 0
	h.head = nil
}
