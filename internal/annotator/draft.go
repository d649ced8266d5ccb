package annotator

// DraftState is the state of the pointer gesture on the canvas.
type DraftState int

const (
	DraftIdle DraftState = iota
	DraftPanning
	DraftDrawing
)

func (s DraftState) String() string {
	switch s {
	case DraftIdle:
		return "idle"
	case DraftPanning:
		return "panning"
	case DraftDrawing:
		return "drawing"
	default:
		return "unknown"
	}
}

// Draft turns a drag gesture into a candidate box. While Drawing the live box
// is unnormalized; on release it is normalized and either kept as the pending
// draft or discarded when smaller than MinBoxSize.
type Draft struct {
	state DraftState

	start   Point
	current Point
	// last screen position seen while panning
	last Point

	pending *BBox
}

func (d *Draft) State() DraftState { return d.state }

// PointerDown starts panning when modifier is held and drawing otherwise.
func (d *Draft) PointerDown(screen Point, modifier bool, t Transform) {
	if modifier {
		d.state = DraftPanning
		d.last = screen
		return
	}
	d.state = DraftDrawing
	d.pending = nil
	d.start = t.ToImageSpace(screen)
	d.current = d.start
}

// PointerMove extends the live box, or pans v while panning. It reports
// whether anything changed.
func (d *Draft) PointerMove(screen Point, t Transform, v *Viewport) bool {
	switch d.state {
	case DraftPanning:
		sx, sy := t.Scale()
		v.PanBy(screen.Sub(d.last), sx, sy)
		d.last = screen
		return true
	case DraftDrawing:
		d.current = t.ToImageSpace(screen)
		return true
	}
	return false
}

// PointerUp ends the gesture. It returns true when a pending draft was
// produced.
func (d *Draft) PointerUp(screen Point, t Transform) bool {
	prev := d.state
	d.state = DraftIdle
	if prev != DraftDrawing {
		return false
	}
	d.current = t.ToImageSpace(screen)
	box := BBox{X1: d.start.X, Y1: d.start.Y, X2: d.current.X, Y2: d.current.Y}.Normalize()
	if !box.Valid() {
		d.pending = nil
		return false
	}
	d.pending = &box
	return true
}

// Live returns the box being dragged, unnormalized.
func (d *Draft) Live() (BBox, bool) {
	if d.state != DraftDrawing {
		return BBox{}, false
	}
	return BBox{X1: d.start.X, Y1: d.start.Y, X2: d.current.X, Y2: d.current.Y}, true
}

// Pending returns the committed-to-be draft awaiting a species.
func (d *Draft) Pending() (BBox, bool) {
	if d.pending == nil {
		return BBox{}, false
	}
	return *d.pending, true
}

// SetPending installs box as the pending draft if it is large enough.
func (d *Draft) SetPending(box BBox) bool {
	box = box.Normalize()
	if !box.Valid() {
		return false
	}
	d.pending = &box
	return true
}

// Clear drops the pending draft and any gesture in progress.
func (d *Draft) Clear() {
	*d = Draft{}
}
