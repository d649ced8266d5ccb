package main

import (
	tea "github.com/charmbracelet/bubbletea"

	"riistakamera/internal/annotator"
)

func (m model) handleNavigation(key string, speed int) (tea.Model, tea.Cmd) {
	switch key {
	case "+", "=":
		return m, m.engine.Dispatch(m.zoomCommand(zoomStep))
	case "-":
		return m, m.engine.Dispatch(m.zoomCommand(1 / zoomStep))
	case "0":
		return m, m.engine.Dispatch(annotator.Command{Action: annotator.ActionResetView})
	}
	return m, m.handlePan(key, speed)
}

// zoomCommand zooms around the middle of the canvas.
func (m model) zoomCommand(factor float64) annotator.Command {
	a := m.canvasArea()
	return annotator.Command{
		Action: annotator.ActionZoom,
		Point:  annotator.Point{X: a.X + a.W/2, Y: a.Y + a.H/2},
		Factor: factor,
	}
}

// handlePan moves the view the way the keys point, so the image slides the
// other way.
func (m model) handlePan(key string, speed int) tea.Cmd {
	step := float64(panStep * speed)
	var d annotator.Point
	switch key {
	case "h", "left", "H", "shift+left":
		d.X = step
	case "l", "right", "L", "shift+right":
		d.X = -step
	case "k", "up", "K", "shift+up":
		d.Y = step
	case "j", "down", "J", "shift+down":
		d.Y = -step
	default:
		return nil
	}
	return m.engine.Dispatch(annotator.Command{Action: annotator.ActionPan, Delta: d})
}

func (m model) getMoveSpeed(key string) int {
	switch key {
	case "H", "L", "K", "J", "shift+left", "shift+right", "shift+up", "shift+down":
		return 4
	default:
		return 1
	}
}
