package annotator

// MinimapZoomThreshold is the zoom above which the viewport outline is shown.
const MinimapZoomThreshold = 1.05

// MinimapLayout is where the thumbnail sits inside the minimap canvas and,
// when zoomed in, the outline of the visible region in the same coordinates.
type MinimapLayout struct {
	Thumb        Rect
	Viewport     Rect
	ShowViewport bool
}

// Minimap letterboxes an image of size natural into a thumb-sized canvas and
// projects the part of the image visible on a canvas of size canvas.
// The canvas is assumed to render the image at natural size (backing == image).
func Minimap(natural Size, view Viewport, canvas Size, thumb Size) MinimapLayout {
	var out MinimapLayout
	if natural.Empty() || thumb.Empty() {
		return out
	}
	scale := thumb.W / natural.W
	if s := thumb.H / natural.H; s < scale {
		scale = s
	}
	w, h := natural.W*scale, natural.H*scale
	out.Thumb = Rect{X: (thumb.W - w) / 2, Y: (thumb.H - h) / 2, W: w, H: h}

	if view.Zoom <= MinimapZoomThreshold || canvas.Empty() {
		return out
	}
	t := Transform{
		Canvas:  Rect{W: canvas.W, H: canvas.H},
		Backing: natural,
		View:    view,
	}
	r := t.VisibleRegion().Clip(natural.W, natural.H)
	out.Viewport = Rect{
		X: out.Thumb.X + r.X1*scale,
		Y: out.Thumb.Y + r.Y1*scale,
		W: r.Width() * scale,
		H: r.Height() * scale,
	}
	out.ShowViewport = true
	return out
}
