package main

import (
	"fmt"
	"image"
	"math"
	"os"
	"path/filepath"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/fogleman/gg"
	"github.com/golang/freetype/truetype"
	"github.com/lucasb-eyer/go-colorful"
	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/goregular"

	"riistakamera/internal/annotator"
	"riistakamera/internal/imagery"
)

// exportCurrent writes <stem>.png with the boxes drawn in and <stem>.txt
// with YOLO labels for the current image.
func (m model) exportCurrent() tea.Cmd {
	id := m.engine.ImageID()
	img, ok := m.images.Get(id)
	if id == "" || !ok {
		m.log.Debug("export skipped, image not loaded", "image", id)
		return nil
	}
	anns := m.engine.Annotations()
	preds := m.engine.Predictions()
	set := m.engine.SpeciesSet()
	palette := m.palette
	stem := strings.TrimSuffix(id, filepath.Ext(id))
	config := m.config

	return func() tea.Msg {
		pngPath, err := config.exportPath(stem + ".png")
		if err != nil {
			return exportedMsg{err: err}
		}
		txtPath, err := config.exportPath(stem + ".txt")
		if err != nil {
			return exportedMsg{err: err}
		}
		dc, err := renderOverlay(img, anns, preds, palette)
		if err != nil {
			return exportedMsg{err: err}
		}
		if err := dc.SavePNG(pngPath); err != nil {
			return exportedMsg{err: fmt.Errorf("save png: %w", err)}
		}
		if err := exportYOLO(txtPath, imagery.SizeOf(img), anns, set); err != nil {
			return exportedMsg{err: err}
		}
		return exportedMsg{paths: []string{pngPath, txtPath}}
	}
}

// renderOverlay draws predictions dashed and annotations solid over img.
func renderOverlay(img image.Image, anns []annotator.Annotation, preds []annotator.Prediction, palette map[annotator.Species]colorful.Color) (*gg.Context, error) {
	dc := gg.NewContextForImage(img)
	w, h := float64(dc.Width()), float64(dc.Height())

	fontSize := math.Max(12, h/40)
	ttfFont, err := truetype.Parse(goregular.TTF)
	if err != nil {
		return nil, fmt.Errorf("failed to parse font: %v", err)
	}
	dc.SetFontFace(truetype.NewFace(ttfFont, &truetype.Options{
		Size:    fontSize,
		DPI:     72,
		Hinting: font.HintingFull,
	}))
	lineWidth := math.Max(2, math.Min(w, h)/300)
	dc.SetLineWidth(lineWidth)

	dc.SetDash(3*lineWidth, 2*lineWidth)
	for _, p := range preds {
		b := p.BBox.Normalize().Clip(w, h)
		dc.SetRGB(predictionColor.R, predictionColor.G, predictionColor.B)
		dc.DrawRectangle(b.X1, b.Y1, b.Width(), b.Height())
		dc.Stroke()
		drawLabel(dc, fmt.Sprintf("%s %.2f", speciesLabel(p.Species), p.Confidence()), b.X1, b.Y2, predictionColor, fontSize)
	}
	dc.SetDash()

	for _, a := range anns {
		b := a.BBox.Normalize().Clip(w, h)
		c, ok := palette[a.Species]
		if !ok {
			c = colorful.Color{R: 1, G: 1, B: 1}
		}
		dc.SetRGB(c.R, c.G, c.B)
		dc.DrawRectangle(b.X1, b.Y1, b.Width(), b.Height())
		dc.Stroke()
		drawLabel(dc, a.Species.String(), b.X1, b.Y1-fontSize*1.4, c, fontSize)
	}
	return dc, nil
}

// drawLabel writes s on a dark plate with its top left corner at (x, y).
func drawLabel(dc *gg.Context, s string, x, y float64, c colorful.Color, fontSize float64) {
	if y < 0 {
		y = 0
	}
	tw, _ := dc.MeasureString(s)
	pad := fontSize * 0.2
	dc.SetRGBA(0, 0, 0, 0.6)
	dc.DrawRectangle(x, y, tw+2*pad, fontSize*1.4)
	dc.Fill()
	dc.SetRGB(c.R, c.G, c.B)
	dc.DrawStringAnchored(s, x+pad, y+fontSize*0.7, 0, 0.5)
}

// yoloLines converts annotations to "class cx cy w h" rows normalized to the
// image size. Species outside set are skipped.
func yoloLines(size annotator.Size, anns []annotator.Annotation, set []annotator.Species) []string {
	if size.Empty() {
		return nil
	}
	clamp := func(v float64) float64 { return math.Max(0, math.Min(1, v)) }
	var lines []string
	for _, a := range anns {
		class := annotator.ClassID(set, a.Species)
		if class < 0 {
			continue
		}
		b := a.BBox.Normalize()
		xc := clamp((b.X1 + b.X2) / 2 / size.W)
		yc := clamp((b.Y1 + b.Y2) / 2 / size.H)
		w := clamp(b.Width() / size.W)
		h := clamp(b.Height() / size.H)
		lines = append(lines, fmt.Sprintf("%d %.6f %.6f %.6f %.6f", class, xc, yc, w, h))
	}
	return lines
}

// exportYOLO writes the label file. An image without boxes gets an empty
// file, which marks it as background.
func exportYOLO(filename string, size annotator.Size, anns []annotator.Annotation, set []annotator.Species) error {
	file, err := os.Create(filename)
	if err != nil {
		return err
	}
	defer file.Close()

	lines := yoloLines(size, anns, set)
	if len(lines) == 0 {
		return nil
	}
	if _, err := file.WriteString(strings.Join(lines, "\n") + "\n"); err != nil {
		return fmt.Errorf("write labels: %w", err)
	}
	return nil
}
