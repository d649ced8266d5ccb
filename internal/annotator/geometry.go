package annotator

import "math"

const (
	// MinBoxSize is the smallest width or height, in image pixels, a box may have.
	MinBoxSize = 10.0

	MinZoom = 0.5
	MaxZoom = 5.0
)

// Point is a position in either screen or image space; the caller knows which.
type Point struct {
	X, Y float64
}

func (p Point) Add(o Point) Point { return Point{X: p.X + o.X, Y: p.Y + o.Y} }
func (p Point) Sub(o Point) Point { return Point{X: p.X - o.X, Y: p.Y - o.Y} }
func (p Point) Scale(f float64) Point { return Point{X: p.X * f, Y: p.Y * f} }

// Size is a width/height pair.
type Size struct {
	W, H float64
}

func (s Size) Empty() bool { return s.W <= 0 || s.H <= 0 }

// Rect is an axis-aligned rectangle given by its origin and size.
type Rect struct {
	X, Y, W, H float64
}

func (r Rect) Min() Point { return Point{X: r.X, Y: r.Y} }
func (r Rect) Max() Point { return Point{X: r.X + r.W, Y: r.Y + r.H} }

func (r Rect) Contains(p Point) bool {
	return p.X >= r.X && p.X <= r.X+r.W && p.Y >= r.Y && p.Y <= r.Y+r.H
}

// BBox is a rectangle in image pixel space given by two corners. A BBox that
// came out of a drag may have its second corner left of or above the first.
type BBox struct {
	X1, Y1, X2, Y2 float64
}

// Normalize orders the corners so that X1 <= X2 and Y1 <= Y2.
func (b BBox) Normalize() BBox {
	return BBox{
		X1: math.Min(b.X1, b.X2),
		Y1: math.Min(b.Y1, b.Y2),
		X2: math.Max(b.X1, b.X2),
		Y2: math.Max(b.Y1, b.Y2),
	}
}

func (b BBox) Width() float64  { return b.X2 - b.X1 }
func (b BBox) Height() float64 { return b.Y2 - b.Y1 }

// Valid reports whether b is normalized and at least MinBoxSize on both axes.
func (b BBox) Valid() bool {
	return b.X1 <= b.X2 && b.Y1 <= b.Y2 && b.Width() >= MinBoxSize && b.Height() >= MinBoxSize
}

// Clip restricts b to the rectangle (0,0)-(w,h).
func (b BBox) Clip(w, h float64) BBox {
	clamp := func(v, hi float64) float64 { return math.Max(0, math.Min(hi, v)) }
	return BBox{X1: clamp(b.X1, w), Y1: clamp(b.Y1, h), X2: clamp(b.X2, w), Y2: clamp(b.Y2, h)}
}

// Viewport is the zoom and pan applied to the canvas. Pan is in canvas
// backing pixels and unbounded; zoom is clamped to [MinZoom, MaxZoom].
type Viewport struct {
	Zoom float64
	PanX float64
	PanY float64
}

func NewViewport() Viewport { return Viewport{Zoom: 1} }

func (v *Viewport) Reset() { *v = NewViewport() }

// SetZoom stores z clamped to the allowed range.
func (v *Viewport) SetZoom(z float64) {
	if math.IsNaN(z) {
		return
	}
	v.Zoom = math.Max(MinZoom, math.Min(MaxZoom, z))
}

// PanBy moves the view by a screen-space delta. The delta is converted
// through the device scale only, so a drag moves the same screen distance at
// every zoom level.
func (v *Viewport) PanBy(delta Point, scaleX, scaleY float64) {
	v.PanX += delta.X * scaleX
	v.PanY += delta.Y * scaleY
}

// Transform maps between screen space and image space for one canvas.
type Transform struct {
	// Canvas is where the canvas is rendered on screen.
	Canvas Rect
	// Backing is the canvas's own pixel size, which may differ from Canvas.W/H.
	Backing Size
	View    Viewport
}

// Scale returns the backing-to-rendered ratio on each axis.
func (t Transform) Scale() (float64, float64) {
	sx, sy := 1.0, 1.0
	if t.Canvas.W > 0 && t.Backing.W > 0 {
		sx = t.Backing.W / t.Canvas.W
	}
	if t.Canvas.H > 0 && t.Backing.H > 0 {
		sy = t.Backing.H / t.Canvas.H
	}
	return sx, sy
}

func (t Transform) zoom() float64 {
	if t.View.Zoom <= 0 {
		return 1
	}
	return t.View.Zoom
}

// ToImageSpace converts a screen position to image pixel coordinates.
func (t Transform) ToImageSpace(p Point) Point {
	sx, sy := t.Scale()
	z := t.zoom()
	return Point{
		X: (p.X-t.Canvas.X)*sx/z - t.View.PanX/z,
		Y: (p.Y-t.Canvas.Y)*sy/z - t.View.PanY/z,
	}
}

// ToScreenSpace is the inverse of ToImageSpace.
func (t Transform) ToScreenSpace(p Point) Point {
	sx, sy := t.Scale()
	z := t.zoom()
	return Point{
		X: (p.X*z+t.View.PanX)/sx + t.Canvas.X,
		Y: (p.Y*z+t.View.PanY)/sy + t.Canvas.Y,
	}
}

// ZoomAt multiplies the zoom by factor while keeping the image point under
// the screen position p where it is.
func (t Transform) ZoomAt(v *Viewport, p Point, factor float64) {
	anchor := t.ToImageSpace(p)
	v.SetZoom(t.zoom() * factor)
	sx, sy := t.Scale()
	v.PanX = (p.X-t.Canvas.X)*sx - anchor.X*v.Zoom
	v.PanY = (p.Y-t.Canvas.Y)*sy - anchor.Y*v.Zoom
}

// VisibleRegion returns the part of image space currently shown on the
// canvas, not clipped to the image.
func (t Transform) VisibleRegion() BBox {
	a := t.ToImageSpace(t.Canvas.Min())
	b := t.ToImageSpace(t.Canvas.Max())
	return BBox{X1: a.X, Y1: a.Y, X2: b.X, Y2: b.Y}.Normalize()
}
