package main

type Mode int

const (
	ModeNormal Mode = iota
	ModePan
	ModeConfirm
)

type ConfirmAction int

const (
	ConfirmQuit ConfirmAction = iota
	ConfirmMarkEmpty
)

const (
	sidebarWidth  = 36
	minimapRows   = 8
	statusRows    = 1
	minCanvasCols = 10
	minCanvasRows = 4

	// Keyboard pan step in screen pixels; a cell is one pixel wide and two tall.
	panStep = 4

	zoomStep = 1.25
)
