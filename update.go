package main

import (
	"fmt"
	"strconv"

	tea "github.com/charmbracelet/bubbletea"

	"riistakamera/internal/annotator"
)

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.engine.SetCanvasArea(m.canvasArea())
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)

	case tea.MouseMsg:
		return m, m.handleMouse(msg)

	case exportedMsg:
		if msg.err != nil {
			m.log.Error("export failed", "image", m.engine.ImageID(), "err", msg.err)
			m.errorMessage = fmt.Sprintf("export failed: %v", msg.err)
			return m, nil
		}
		m.log.Info("exported", "paths", msg.paths)
		m.successMessage = fmt.Sprintf("exported %d files", len(msg.paths))
		return m, nil
	}

	return m, m.engine.Update(msg)
}

func (m model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	key := msg.String()
	if key == "ctrl+c" {
		return m, tea.Quit
	}

	if m.help {
		switch key {
		case "esc", "q", "?":
			m.help = false
			m.helpScroll = 0
		case "j", "down":
			m.helpScroll++
		case "k", "up":
			if m.helpScroll > 0 {
				m.helpScroll--
			}
		}
		return m, nil
	}

	if m.mode == ModeConfirm {
		return m.handleConfirm(key)
	}

	m.errorMessage = ""
	m.successMessage = ""

	if m.mode == ModePan {
		switch key {
		case "h", "j", "k", "l", "left", "right", "up", "down",
			"H", "J", "K", "L", "shift+left", "shift+right", "shift+up", "shift+down":
			return m.handleNavigation(key, m.getMoveSpeed(key))
		case "z", "esc":
			m.mode = ModeNormal
			return m, nil
		}
	}

	switch key {
	case "q":
		if m.config.Confirmations {
			if _, pending := m.engine.Draft().Pending(); pending {
				m.mode = ModeConfirm
				m.confirmAction = ConfirmQuit
				return m, nil
			}
		}
		return m, tea.Quit
	case "?":
		m.help = true
		return m, nil
	case "z":
		m.mode = ModePan
		return m, nil
	case "g":
		m.night = !m.night
		return m, nil
	case "e":
		return m, m.exportCurrent()
	case "y":
		m.copyImageName()
		return m, nil
	case "Y":
		m.copyAnnotationJSON()
		return m, nil
	case "E":
		if m.config.Confirmations && len(m.engine.Annotations()) > 0 {
			m.mode = ModeConfirm
			m.confirmAction = ConfirmMarkEmpty
			return m, nil
		}
	case "+", "=", "-", "0":
		return m.handleNavigation(key, 1)
	}

	if c, ok := m.keyCommand(key); ok {
		return m, m.engine.Dispatch(c)
	}
	return m, nil
}

func (m model) handleConfirm(key string) (tea.Model, tea.Cmd) {
	switch key {
	case "y", "Y":
		m.mode = ModeNormal
		switch m.confirmAction {
		case ConfirmQuit:
			return m, tea.Quit
		case ConfirmMarkEmpty:
			return m, m.engine.Dispatch(annotator.Command{Action: annotator.ActionMarkEmpty})
		}
	case "n", "N", "esc":
		m.mode = ModeNormal
	}
	return m, nil
}

// keyCommand maps a key in normal mode to an engine command.
func (m model) keyCommand(key string) (annotator.Command, bool) {
	switch key {
	case "1", "2", "3", "4", "5", "6", "7", "8", "9":
		n, _ := strconv.Atoi(key)
		set := m.engine.SpeciesSet()
		if n > len(set) {
			return annotator.Command{}, false
		}
		return annotator.Command{Action: annotator.ActionSelectSpecies, Species: set[n-1]}, true
	case "enter":
		return annotator.Command{Action: annotator.ActionCommit}, true
	case "backspace", "x":
		return annotator.Command{Action: annotator.ActionDelete, Index: len(m.engine.Annotations()) - 1}, true
	case "E":
		return annotator.Command{Action: annotator.ActionMarkEmpty}, true
	case "ctrl+z":
		return annotator.Command{Action: annotator.ActionUndo}, true
	case "ctrl+y", "ctrl+r":
		return annotator.Command{Action: annotator.ActionRedo}, true
	case "esc":
		return annotator.Command{Action: annotator.ActionClearDraft}, true
	case "tab":
		return annotator.Command{Action: annotator.ActionFocusNext}, true
	case "a":
		return annotator.Command{Action: annotator.ActionAccept, Index: -1}, true
	case "r":
		return annotator.Command{Action: annotator.ActionReject, Index: -1}, true
	case "A":
		return annotator.Command{Action: annotator.ActionAcceptAll}, true
	case "n", "right", "pgdown", " ":
		return annotator.Command{Action: annotator.ActionNext}, true
	case "p", "left", "pgup":
		return annotator.Command{Action: annotator.ActionPrev}, true
	case "f":
		return annotator.Command{Action: annotator.ActionSetFilter}, true
	case "t":
		return annotator.Command{Action: annotator.ActionToggleAutoAdvance}, true
	case "u":
		return annotator.Command{Action: annotator.ActionJumpUncertain}, true
	}
	return annotator.Command{}, false
}

// handleMouse turns terminal mouse events into pointer commands. Alt or Ctrl
// held on press starts a pan instead of a box. Drags arrive as motion events
// that still carry the held button.
func (m model) handleMouse(msg tea.MouseMsg) tea.Cmd {
	p := cellToScreen(msg.X, msg.Y)
	switch msg.Action {
	case tea.MouseActionPress:
		if !m.inCanvas(msg.X, msg.Y) {
			return nil
		}
		switch msg.Button {
		case tea.MouseButtonLeft:
			return m.engine.Dispatch(annotator.Command{Action: annotator.ActionPointerDown, Point: p, Modifier: msg.Alt || msg.Ctrl})
		case tea.MouseButtonWheelUp:
			return m.engine.Dispatch(annotator.Command{Action: annotator.ActionZoom, Point: p, Factor: zoomStep})
		case tea.MouseButtonWheelDown:
			return m.engine.Dispatch(annotator.Command{Action: annotator.ActionZoom, Point: p, Factor: 1 / zoomStep})
		}
	case tea.MouseActionMotion:
		return m.engine.Dispatch(annotator.Command{Action: annotator.ActionPointerMove, Point: p})
	case tea.MouseActionRelease:
		return m.engine.Dispatch(annotator.Command{Action: annotator.ActionPointerUp, Point: p})
	}
	return nil
}

// cellToScreen returns the screen pixel at the centre of the upper half of a
// terminal cell. Each cell shows two stacked pixels.
func cellToScreen(x, y int) annotator.Point {
	return annotator.Point{X: float64(x) + 0.5, Y: float64(y)*2 + 0.5}
}

// canvasCells is the canvas size in terminal cells.
func (m model) canvasCells() (int, int) {
	w := m.width - sidebarWidth
	h := m.height - statusRows
	if w < minCanvasCols {
		w = minCanvasCols
	}
	if h < minCanvasRows {
		h = minCanvasRows
	}
	return w, h
}

// canvasArea is the canvas in screen pixels.
func (m model) canvasArea() annotator.Rect {
	w, h := m.canvasCells()
	return annotator.Rect{W: float64(w), H: float64(h * 2)}
}

func (m model) inCanvas(x, y int) bool {
	w, h := m.canvasCells()
	return x >= 0 && y >= 0 && x < w && y < h
}
