package main

import (
	"image"
	"log/slog"

	"github.com/lucasb-eyer/go-colorful"

	"riistakamera/internal/annotator"
	"riistakamera/internal/imagery"
)

type model struct {
	engine  *annotator.Engine
	images  *imagery.Cache
	config  *Config
	log     *slog.Logger
	palette map[annotator.Species]colorful.Color
	cache   *renderCache

	width         int
	height        int
	mode          Mode
	help          bool
	helpScroll    int
	night         bool
	confirmAction ConfirmAction

	errorMessage   string
	successMessage string
}

// renderCache keeps the last resampled image layer and minimap thumbnail so
// that redraws without a view change skip the resize.
type renderCache struct {
	layerKey layerKey
	layer    image.Image

	thumbKey thumbKey
	thumb    image.Image
}

type layerKey struct {
	imageID string
	night   bool
	visible annotator.BBox
	rect    image.Rectangle
}

type thumbKey struct {
	imageID string
	night   bool
	w, h    int
}

// exportedMsg reports a finished export.
type exportedMsg struct {
	paths []string
	err   error
}
