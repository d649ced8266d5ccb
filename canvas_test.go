package main

import (
	"image"
	"image/color"
	"testing"

	"github.com/lucasb-eyer/go-colorful"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"riistakamera/internal/annotator"
)

func TestFrameBox(t *testing.T) {
	f := newFrame(12, 6)
	red := colorful.Color{R: 1}
	f.box(image.Rect(1, 1, 8, 4), solidGlyphs, red, false, "kettu")

	assert.Equal(t, '┌', f.at(1, 1).glyph)
	assert.Equal(t, '┐', f.at(8, 1).glyph)
	assert.Equal(t, '┘', f.at(8, 4).glyph)
	assert.Equal(t, '└', f.at(1, 4).glyph)
	assert.Equal(t, '│', f.at(1, 2).glyph)
	assert.Equal(t, '─', f.at(4, 4).glyph)
	assert.Equal(t, 'k', f.at(2, 1).glyph)
	assert.Equal(t, 'u', f.at(6, 1).glyph)
	assert.Equal(t, rune(0), f.at(4, 2).glyph)
}

func TestFrameBoxClipsAndSkipsLongLabel(t *testing.T) {
	f := newFrame(5, 3)
	f.box(image.Rect(-3, -1, 2, 9), dashedGlyphs, colorful.Color{}, false, "much too long")
	assert.Equal(t, '┆', f.at(2, 1).glyph)
	assert.Nil(t, f.at(5, 0))
	assert.Equal(t, rune(0), f.at(0, 0).glyph)
}

func TestSetPixelHalves(t *testing.T) {
	f := newFrame(2, 2)
	c := color.NRGBA{R: 255, A: 255}
	f.setPixel(1, 3, c)
	assert.Equal(t, color.Color(c), f.at(1, 1).bottom)
	assert.Equal(t, color.Color(canvasBackground), f.at(1, 1).top)
	f.setPixel(5, 0, c)

	lines := f.lines()
	require.Len(t, lines, 2)
	assert.Contains(t, lines[0], "▀")
}

func TestBoxCells(t *testing.T) {
	tr := annotator.Transform{
		Canvas:  annotator.Rect{W: 64, H: 48},
		Backing: annotator.Size{W: 64, H: 48},
		View:    annotator.NewViewport(),
	}
	r := boxCells(tr, annotator.BBox{X1: 30, Y1: 20, X2: 10, Y2: 4})
	assert.Equal(t, image.Rect(10, 2, 30, 10), r)
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "abc", truncate("abc", 5))
	assert.Equal(t, "ab…", truncate("abcdef", 3))
	assert.Equal(t, "…", truncate("abcdef", 1))
}
