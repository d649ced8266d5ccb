package main

import (
	"encoding/json"
	"fmt"

	"github.com/atotto/clipboard"
	"github.com/lucasb-eyer/go-colorful"

	"riistakamera/internal/annotator"
	"riistakamera/internal/wire"
)

// speciesPalette spreads the species evenly around the hue circle.
func speciesPalette(set []annotator.Species) map[annotator.Species]colorful.Color {
	palette := make(map[annotator.Species]colorful.Color, len(set))
	for i, s := range set {
		hue := 360 * float64(i) / float64(len(set))
		palette[s] = colorful.Hcl(hue, 0.7, 0.75).Clamped()
	}
	return palette
}

func (m model) speciesColor(s annotator.Species) colorful.Color {
	if c, ok := m.palette[s]; ok {
		return c
	}
	return colorful.Color{R: 0.8, G: 0.8, B: 0.8}
}

func (m *model) copyImageName() {
	id := m.engine.ImageID()
	if id == "" {
		m.errorMessage = "no image"
		return
	}
	if err := clipboard.WriteAll(id); err != nil {
		m.errorMessage = fmt.Sprintf("clipboard: %v", err)
		return
	}
	m.successMessage = "copied " + id
}

func (m *model) copyAnnotationJSON() {
	id := m.engine.ImageID()
	if id == "" {
		m.errorMessage = "no image"
		return
	}
	data, err := annotationJSON(id, m.engine.Annotations(), m.engine.IsEmpty())
	if err != nil {
		m.errorMessage = err.Error()
		return
	}
	if err := clipboard.WriteAll(string(data)); err != nil {
		m.errorMessage = fmt.Sprintf("clipboard: %v", err)
		return
	}
	m.successMessage = fmt.Sprintf("copied %d annotations", len(m.engine.Annotations()))
}

// annotationJSON is the annotation file for the image as the backend stores it.
func annotationJSON(imageID string, anns []annotator.Annotation, isEmpty bool) ([]byte, error) {
	data, err := json.MarshalIndent(wire.NewAnnotationFile(imageID, anns, isEmpty), "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encode annotations: %w", err)
	}
	return data, nil
}
