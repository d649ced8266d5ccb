package main

import (
	"context"
	"image"
	"image/color"
	"image/png"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"riistakamera/internal/annotator"
	"riistakamera/internal/imagery"
	"riistakamera/internal/localstore"
)

var discardLogger = slog.New(slog.NewTextHandler(io.Discard, nil))

func writePNG(t *testing.T, path string, w, h int, c color.Color) {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, c)
		}
	}
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()
	require.NoError(t, png.Encode(f, img))
}

// newReviewModel opens a data dir with two 64x48 images and a model sized
// 100x30 cells, so the canvas is 64 cells by 29 rows.
func newReviewModel(t *testing.T) (model, *localstore.Store) {
	t.Helper()
	dir := t.TempDir()
	store, err := localstore.Open(dir, localstore.WithLogger(discardLogger))
	require.NoError(t, err)
	incoming := filepath.Join(dir, "images", "incoming")
	writePNG(t, filepath.Join(incoming, "a.png"), 64, 48, color.NRGBA{R: 200, G: 120, B: 40, A: 255})
	writePNG(t, filepath.Join(incoming, "b.png"), 64, 48, color.NRGBA{G: 90, B: 200, A: 255})
	conf := 0.4
	require.NoError(t, store.WritePredictions("b.png", []annotator.Prediction{
		{BBox: annotator.BBox{X1: 5, Y1: 5, X2: 40, Y2: 40}, Species: annotator.Janis, SpeciesConfidence: &conf},
	}))

	images, err := imagery.NewCache(store, 4, discardLogger)
	require.NoError(t, err)
	cfg := annotator.DefaultConfig()
	cfg.AutoAdvance = false
	cfg.NoticeTTL = 0
	engine := annotator.New(cfg, store, images, annotator.WithLogger(discardLogger))

	config := defaultConfig()
	config.ExportDir = filepath.Join(dir, "exports")
	m := initialModel(engine, images, config, discardLogger)
	next, _ := m.Update(tea.WindowSizeMsg{Width: 100, Height: 30})
	m = drive(next.(model), engine.Dispatch(annotator.Command{Action: annotator.ActionSetFilter, Filter: annotator.FilterAll}))
	return m, store
}

// drive runs cmd and every command that follows from it through Update.
func drive(m model, cmd tea.Cmd) model {
	queue := []tea.Cmd{cmd}
	for len(queue) > 0 {
		c := queue[0]
		queue = queue[1:]
		if c == nil {
			continue
		}
		msg := c()
		if batch, ok := msg.(tea.BatchMsg); ok {
			queue = append(queue, batch...)
			continue
		}
		next, more := m.Update(msg)
		m = next.(model)
		queue = append(queue, more)
	}
	return m
}

func key(s string) tea.KeyMsg {
	switch s {
	case "enter":
		return tea.KeyMsg{Type: tea.KeyEnter}
	case "esc":
		return tea.KeyMsg{Type: tea.KeyEsc}
	case "tab":
		return tea.KeyMsg{Type: tea.KeyTab}
	case "ctrl+z":
		return tea.KeyMsg{Type: tea.KeyCtrlZ}
	}
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func press(m model, keys ...string) model {
	for _, k := range keys {
		next, cmd := m.Update(key(k))
		m = drive(next.(model), cmd)
	}
	return m
}

func mouse(m model, msg tea.MouseMsg) model {
	next, cmd := m.Update(msg)
	return drive(next.(model), cmd)
}

// The events below are shaped the way bubbletea decodes SGR mouse input: a
// drag is a motion event that still reports the held left button.

func leftPress(x, y int, alt bool) tea.MouseMsg {
	return tea.MouseMsg{X: x, Y: y, Alt: alt, Type: tea.MouseLeft, Action: tea.MouseActionPress, Button: tea.MouseButtonLeft}
}

func leftDrag(x, y int) tea.MouseMsg {
	return tea.MouseMsg{X: x, Y: y, Type: tea.MouseLeft, Action: tea.MouseActionMotion, Button: tea.MouseButtonLeft}
}

func leftRelease(x, y int) tea.MouseMsg {
	return tea.MouseMsg{X: x, Y: y, Type: tea.MouseRelease, Action: tea.MouseActionRelease, Button: tea.MouseButtonNone}
}

func wheel(x, y int, button tea.MouseButton) tea.MouseMsg {
	typ := tea.MouseWheelUp
	if button == tea.MouseButtonWheelDown {
		typ = tea.MouseWheelDown
	}
	return tea.MouseMsg{X: x, Y: y, Type: typ, Action: tea.MouseActionPress, Button: button}
}

func TestCanvasGeometry(t *testing.T) {
	m, _ := newReviewModel(t)
	assert.Equal(t, annotator.Rect{W: 64, H: 58}, m.canvasArea())
	assert.Equal(t, annotator.Rect{X: 0, Y: 5, W: 64, H: 48}, m.engine.Transform().Canvas)
	assert.True(t, m.inCanvas(63, 28))
	assert.False(t, m.inCanvas(64, 0))
	assert.Equal(t, annotator.Point{X: 3.5, Y: 8.5}, cellToScreen(3, 4))
}

func TestDrawAndLabelWithMouse(t *testing.T) {
	m, store := newReviewModel(t)
	require.Equal(t, "a.png", m.engine.ImageID())
	require.True(t, m.engine.Ready())

	m = mouse(m, leftPress(10, 5, false))
	m = mouse(m, leftDrag(25, 12))
	m = mouse(m, leftDrag(40, 20))
	live, drawing := m.engine.Draft().Live()
	require.True(t, drawing)
	assert.InDelta(t, 10.5, live.X1, 1e-9)
	assert.InDelta(t, 40.5, live.X2, 1e-9)
	m = mouse(m, leftRelease(40, 20))

	box, ok := m.engine.Draft().Pending()
	require.True(t, ok)
	assert.InDelta(t, 10.5, box.X1, 1e-9)
	assert.InDelta(t, 5.5, box.Y1, 1e-9)
	assert.InDelta(t, 40.5, box.X2, 1e-9)
	assert.InDelta(t, 35.5, box.Y2, 1e-9)

	m = press(m, "6")
	require.Len(t, m.engine.Annotations(), 1)
	assert.Equal(t, annotator.Kettu, m.engine.Annotations()[0].Species)

	anns, empty, err := store.GetAnnotations(context.Background(), "a.png")
	require.NoError(t, err)
	assert.False(t, empty)
	require.Len(t, anns, 1)
	assert.Equal(t, annotator.Kettu, anns[0].Species)

	m = press(m, "ctrl+z")
	assert.Empty(t, m.engine.Annotations())
}

func TestAltDragPans(t *testing.T) {
	m, _ := newReviewModel(t)
	m = mouse(m, leftPress(10, 10, true))
	m = mouse(m, leftDrag(12, 10))
	m = mouse(m, leftDrag(15, 10))
	m = mouse(m, leftRelease(15, 10))
	assert.InDelta(t, 5, m.engine.Viewport().PanX, 1e-9)
	assert.InDelta(t, 0, m.engine.Viewport().PanY, 1e-9)
	_, pending := m.engine.Draft().Pending()
	assert.False(t, pending)
	assert.Equal(t, annotator.DraftIdle, m.engine.Draft().State())
}

func TestPressOutsideCanvasIgnored(t *testing.T) {
	m, _ := newReviewModel(t)
	m = mouse(m, leftPress(80, 5, false))
	m = mouse(m, leftDrag(90, 20))
	m = mouse(m, leftRelease(90, 20))
	assert.Equal(t, annotator.DraftIdle, m.engine.Draft().State())
	_, pending := m.engine.Draft().Pending()
	assert.False(t, pending)
}

func TestWheelZooms(t *testing.T) {
	m, _ := newReviewModel(t)
	m = mouse(m, wheel(32, 14, tea.MouseButtonWheelUp))
	assert.InDelta(t, zoomStep, m.engine.Viewport().Zoom, 1e-9)
	m = mouse(m, wheel(32, 14, tea.MouseButtonWheelDown))
	assert.InDelta(t, 1, m.engine.Viewport().Zoom, 1e-9)

	// the sidebar does not zoom
	m = mouse(m, wheel(80, 14, tea.MouseButtonWheelUp))
	assert.InDelta(t, 1, m.engine.Viewport().Zoom, 1e-9)
}

func TestZoomAndPanKeys(t *testing.T) {
	m, _ := newReviewModel(t)
	m = press(m, "+")
	assert.InDelta(t, zoomStep, m.engine.Viewport().Zoom, 1e-9)

	m = press(m, "z")
	assert.Equal(t, ModePan, m.mode)
	before := m.engine.Viewport().PanX
	m = press(m, "l")
	assert.Less(t, m.engine.Viewport().PanX, before)
	m = press(m, "esc", "0")
	assert.Equal(t, ModeNormal, m.mode)
	assert.Equal(t, annotator.NewViewport(), m.engine.Viewport())
}

func TestAcceptPredictionByKey(t *testing.T) {
	m, store := newReviewModel(t)
	m = press(m, "n")
	require.Equal(t, "b.png", m.engine.ImageID())
	require.Len(t, m.engine.Predictions(), 1)

	m = press(m, "a")
	require.NotNil(t, m.engine.Notice())
	assert.Equal(t, "nothing selected", m.engine.Notice().Text)
	assert.Len(t, m.engine.Predictions(), 1)

	m = press(m, "tab", "a")
	assert.Empty(t, m.engine.Predictions())
	require.Len(t, m.engine.Annotations(), 1)
	assert.Equal(t, annotator.FromPrediction, m.engine.Annotations()[0].Provenance)

	anns, _, err := store.GetAnnotations(context.Background(), "b.png")
	require.NoError(t, err)
	assert.Len(t, anns, 1)
}

func TestMarkEmptyAsksFirstWhenBoxesExist(t *testing.T) {
	m, _ := newReviewModel(t)
	m = press(m, "n", "A")
	require.Len(t, m.engine.Annotations(), 1)

	m = press(m, "E")
	assert.Equal(t, ModeConfirm, m.mode)
	assert.Contains(t, m.statusLine(), "drop 1 boxes")
	m = press(m, "n")
	assert.Equal(t, ModeNormal, m.mode)
	assert.False(t, m.engine.IsEmpty())

	m = press(m, "E", "y")
	assert.True(t, m.engine.IsEmpty())
	assert.Empty(t, m.engine.Annotations())
}

func TestQuitWithPendingBoxConfirms(t *testing.T) {
	m, _ := newReviewModel(t)
	m = mouse(m, leftPress(10, 5, false))
	m = mouse(m, leftDrag(40, 20))
	m = mouse(m, leftRelease(40, 20))

	next, cmd := m.Update(key("q"))
	assert.Nil(t, cmd)
	assert.Equal(t, ModeConfirm, next.(model).mode)

	_, cmd = next.Update(key("y"))
	require.NotNil(t, cmd)
	assert.Equal(t, tea.Quit(), cmd())
}

func TestViewShowsImageAndSidebar(t *testing.T) {
	m, _ := newReviewModel(t)
	out := m.View()
	assert.Contains(t, out, "a.png")
	assert.Contains(t, out, "kettu")
	assert.Contains(t, out, "Mode: REVIEW")

	m = press(m, "?")
	assert.Contains(t, m.View(), "Riistakamera Help")
	m = press(m, "?")
	assert.False(t, m.help)
}

func TestDoneScreenOnEmptyFilter(t *testing.T) {
	m, _ := newReviewModel(t)
	m = drive(m, m.engine.Dispatch(annotator.Command{Action: annotator.ActionSetFilter, Filter: annotator.FilterEmpty}))
	assert.True(t, m.engine.Done())
	assert.Contains(t, m.View(), "All done")
}

func TestExportWritesFiles(t *testing.T) {
	m, _ := newReviewModel(t)
	m = mouse(m, leftPress(10, 5, false))
	m = mouse(m, leftDrag(40, 20))
	m = mouse(m, leftRelease(40, 20))
	m = press(m, "2", "e")
	assert.Equal(t, "exported 2 files", m.successMessage)

	data, err := os.ReadFile(filepath.Join(m.config.ExportDir, "a.txt"))
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(data), "1 "))
	_, err = os.Stat(filepath.Join(m.config.ExportDir, "a.png"))
	assert.NoError(t, err)
}

func TestKeyCommand(t *testing.T) {
	m, _ := newReviewModel(t)
	c, ok := m.keyCommand("3")
	require.True(t, ok)
	assert.Equal(t, annotator.ActionSelectSpecies, c.Action)
	assert.Equal(t, annotator.Janis, c.Species)

	c, ok = m.keyCommand("r")
	require.True(t, ok)
	assert.Equal(t, annotator.Command{Action: annotator.ActionReject, Index: -1}, c)

	_, ok = m.keyCommand("Q")
	assert.False(t, ok)
}

func TestExportReportsUnusableDir(t *testing.T) {
	m, _ := newReviewModel(t)
	blocker := filepath.Join(t.TempDir(), "file")
	require.NoError(t, os.WriteFile(blocker, []byte("x"), 0644))
	m.config.ExportDir = filepath.Join(blocker, "exports")

	m = press(m, "e")
	assert.Empty(t, m.successMessage)
	assert.Contains(t, m.errorMessage, "create export dir")
}
