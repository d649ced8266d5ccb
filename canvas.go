package main

import (
	"fmt"
	"image"
	"image/color"
	"math"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/lucasb-eyer/go-colorful"

	"riistakamera/internal/annotator"
	"riistakamera/internal/imagery"
)

// cell is one terminal cell. It shows two stacked pixels with a half block,
// or an overlay glyph drawn over the top pixel.
type cell struct {
	top, bottom color.Color
	glyph       rune
	fg          colorful.Color
	bold        bool
}

// frame is a grid of cells addressed in screen pixels for painting and in
// cells for overlays.
type frame struct {
	w, h  int
	cells []cell
}

var canvasBackground = color.NRGBA{R: 0x12, G: 0x12, B: 0x12, A: 0xff}

func newFrame(w, h int) *frame {
	f := &frame{w: w, h: h, cells: make([]cell, w*h)}
	for i := range f.cells {
		f.cells[i].top = canvasBackground
		f.cells[i].bottom = canvasBackground
	}
	return f
}

func (f *frame) at(x, y int) *cell {
	if x < 0 || y < 0 || x >= f.w || y >= f.h {
		return nil
	}
	return &f.cells[y*f.w+x]
}

func (f *frame) setPixel(px, py int, c color.Color) {
	cl := f.at(px, py/2)
	if cl == nil {
		return
	}
	if py%2 == 0 {
		cl.top = c
	} else {
		cl.bottom = c
	}
}

func (f *frame) put(x, y int, r rune, fg colorful.Color, bold bool) {
	if cl := f.at(x, y); cl != nil {
		cl.glyph = r
		cl.fg = fg
		cl.bold = bold
	}
}

func (f *frame) text(x, y int, s string, fg colorful.Color) {
	for _, r := range s {
		f.put(x, y, r, fg, true)
		x++
	}
}

// boxGlyphs are the edge runes of a box: horizontal, vertical, then the
// corners clockwise from top left.
type boxGlyphs [6]rune

var (
	solidGlyphs  = boxGlyphs{'─', '│', '┌', '┐', '┘', '└'}
	dashedGlyphs = boxGlyphs{'┄', '┆', '┌', '┐', '┘', '└'}
	heavyGlyphs  = boxGlyphs{'━', '┃', '┏', '┓', '┛', '┗'}
	doubleGlyphs = boxGlyphs{'═', '║', '╔', '╗', '╝', '╚'}
)

// box outlines the cell rectangle r. label goes on the top edge when it fits.
func (f *frame) box(r image.Rectangle, g boxGlyphs, fg colorful.Color, bold bool, label string) {
	r = r.Canon()
	x0, y0, x1, y1 := r.Min.X, r.Min.Y, r.Max.X, r.Max.Y
	for x := x0 + 1; x < x1; x++ {
		f.put(x, y0, g[0], fg, bold)
		f.put(x, y1, g[0], fg, bold)
	}
	for y := y0 + 1; y < y1; y++ {
		f.put(x0, y, g[1], fg, bold)
		f.put(x1, y, g[1], fg, bold)
	}
	f.put(x0, y0, g[2], fg, bold)
	f.put(x1, y0, g[3], fg, bold)
	f.put(x1, y1, g[4], fg, bold)
	f.put(x0, y1, g[5], fg, bold)
	if label != "" && x1-x0-1 >= len([]rune(label)) {
		f.text(x0+1, y0, label, fg)
	}
}

// lines renders the frame with lipgloss styles.
func (f *frame) lines() []string {
	out := make([]string, f.h)
	var sb strings.Builder
	for y := 0; y < f.h; y++ {
		sb.Reset()
		for x := 0; x < f.w; x++ {
			c := f.cells[y*f.w+x]
			top := hexColor(c.top)
			if c.glyph != 0 {
				style := lipgloss.NewStyle().
					Foreground(lipgloss.Color(c.fg.Hex())).
					Background(lipgloss.Color(top)).
					Bold(c.bold)
				sb.WriteString(style.Render(string(c.glyph)))
				continue
			}
			style := lipgloss.NewStyle().
				Foreground(lipgloss.Color(top)).
				Background(lipgloss.Color(hexColor(c.bottom)))
			sb.WriteString(style.Render("▀"))
		}
		out[y] = sb.String()
	}
	return out
}

func hexColor(c color.Color) string {
	cf, ok := colorful.MakeColor(c)
	if !ok {
		return "#000000"
	}
	return cf.Hex()
}

// screenCell maps a screen pixel to the cell containing it.
func screenCell(p annotator.Point) image.Point {
	return image.Point{X: int(math.Floor(p.X)), Y: int(math.Floor(p.Y / 2))}
}

// boxCells is the cell rectangle covering an image-space box.
func boxCells(t annotator.Transform, b annotator.BBox) image.Rectangle {
	b = b.Normalize()
	return image.Rectangle{
		Min: screenCell(t.ToScreenSpace(annotator.Point{X: b.X1, Y: b.Y1})),
		Max: screenCell(t.ToScreenSpace(annotator.Point{X: b.X2, Y: b.Y2})),
	}
}

// renderCanvas draws the current image and every box over it.
func (m model) renderCanvas() []string {
	w, h := m.canvasCells()
	f := newFrame(w, h)
	t := m.engine.Transform()

	if img, ok := m.images.Get(m.engine.ImageID()); ok {
		m.paintImage(f, t, img)
	} else {
		msg := "loading " + m.engine.ImageID()
		if err := m.engine.ImageErr(); err != nil {
			msg = fmt.Sprintf("cannot show %s", m.engine.ImageID())
		}
		f.text((w-len([]rune(msg)))/2, h/2, msg, colorful.Color{R: 0.7, G: 0.7, B: 0.7})
	}
	m.drawOverlays(f, t)
	return f.lines()
}

// paintImage fills the frame with the visible part of img, resampled to the
// screen rectangle it covers.
func (m model) paintImage(f *frame, t annotator.Transform, img image.Image) {
	size := imagery.SizeOf(img)
	visible := t.VisibleRegion().Clip(size.W, size.H)
	if visible.Width() < 1 || visible.Height() < 1 {
		return
	}
	a := t.ToScreenSpace(annotator.Point{X: visible.X1, Y: visible.Y1})
	b := t.ToScreenSpace(annotator.Point{X: visible.X2, Y: visible.Y2})
	rect := image.Rect(int(math.Round(a.X)), int(math.Round(a.Y)), int(math.Round(b.X)), int(math.Round(b.Y)))
	if rect.Empty() {
		return
	}

	key := layerKey{imageID: m.engine.ImageID(), night: m.night, visible: visible, rect: rect}
	if m.cache.layer == nil || m.cache.layerKey != key {
		part := imagery.Crop(img, visible)
		if m.night {
			part = imagery.Enhance(part, m.config.NightGamma)
		}
		m.cache.layer = imagery.Resample(part, rect.Dx(), rect.Dy())
		m.cache.layerKey = key
	}
	layer := m.cache.layer
	lb := layer.Bounds()
	for py := rect.Min.Y; py < rect.Max.Y; py++ {
		for px := rect.Min.X; px < rect.Max.X; px++ {
			f.setPixel(px, py, layer.At(lb.Min.X+px-rect.Min.X, lb.Min.Y+py-rect.Min.Y))
		}
	}
}

var (
	predictionColor = colorful.Color{R: 1, G: 0.84, B: 0}
	draftColor      = colorful.Color{R: 1, G: 1, B: 1}
)

func (m model) drawOverlays(f *frame, t annotator.Transform) {
	focus := m.engine.Focus()
	for i, p := range m.engine.Predictions() {
		label := fmt.Sprintf("%s %.2f", speciesLabel(p.Species), p.Confidence())
		if i == focus {
			f.box(boxCells(t, p.BBox), heavyGlyphs, predictionColor, true, "▶"+label)
			continue
		}
		f.box(boxCells(t, p.BBox), dashedGlyphs, predictionColor, false, label)
	}
	for _, a := range m.engine.Annotations() {
		f.box(boxCells(t, a.BBox), solidGlyphs, m.speciesColor(a.Species), true, a.Species.String())
	}

	d := m.engine.Draft()
	if live, ok := d.Live(); ok {
		f.box(boxCells(t, live), doubleGlyphs, draftColor, true, "")
	} else if pending, ok := d.Pending(); ok {
		label := "?"
		if s := m.engine.Selected(); s != "" {
			label = s.String() + "?"
		}
		f.box(boxCells(t, pending), doubleGlyphs, draftColor, true, label)
	}
}

func speciesLabel(s annotator.Species) string {
	if s == "" {
		return "eläin"
	}
	return s.String()
}
