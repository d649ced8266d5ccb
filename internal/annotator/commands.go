package annotator

import (
	"errors"
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
)

// Action is a named engine operation. Every input the host receives is
// translated into one of these.
type Action int

const (
	ActionCommit Action = iota
	ActionDelete
	ActionMarkEmpty
	ActionUndo
	ActionRedo
	ActionClearDraft
	ActionSelectSpecies
	ActionFocusNext
	ActionAccept
	ActionReject
	ActionAcceptAll
	ActionNext
	ActionPrev
	ActionSetFilter
	ActionToggleAutoAdvance
	ActionJumpUncertain
	ActionZoom
	ActionResetView
	ActionPan
	ActionPointerDown
	ActionPointerMove
	ActionPointerUp
)

var actionNames = map[Action]string{
	ActionCommit:            "commit",
	ActionDelete:            "delete",
	ActionMarkEmpty:         "mark-empty",
	ActionUndo:              "undo",
	ActionRedo:              "redo",
	ActionClearDraft:        "clear-draft",
	ActionSelectSpecies:     "select-species",
	ActionFocusNext:         "focus-next",
	ActionAccept:            "accept",
	ActionReject:            "reject",
	ActionAcceptAll:         "accept-all",
	ActionNext:              "next",
	ActionPrev:              "prev",
	ActionSetFilter:         "set-filter",
	ActionToggleAutoAdvance: "toggle-auto-advance",
	ActionJumpUncertain:     "jump-uncertain",
	ActionZoom:              "zoom",
	ActionResetView:         "reset-view",
	ActionPan:               "pan",
	ActionPointerDown:       "pointer-down",
	ActionPointerMove:       "pointer-move",
	ActionPointerUp:         "pointer-up",
}

func (a Action) String() string {
	if s, ok := actionNames[a]; ok {
		return s
	}
	return fmt.Sprintf("action(%d)", int(a))
}

// Command is an Action with its arguments. Fields an action does not use are
// ignored.
type Command struct {
	Action Action

	// Index of an annotation or prediction. For predictions a negative
	// index means the focused one.
	Index   int
	Species Species
	Filter  Filter

	// Point is a screen position for pointer and zoom actions; Delta is a
	// screen offset for Pan.
	Point    Point
	Delta    Point
	Modifier bool
	Factor   float64
}

type handler func(e *Engine, c Command) tea.Cmd

var handlers = map[Action]handler{
	ActionCommit:            (*Engine).handleCommit,
	ActionDelete:            (*Engine).handleDelete,
	ActionMarkEmpty:         (*Engine).handleMarkEmpty,
	ActionUndo:              (*Engine).handleUndo,
	ActionRedo:              (*Engine).handleRedo,
	ActionClearDraft:        (*Engine).handleClearDraft,
	ActionSelectSpecies:     (*Engine).handleSelectSpecies,
	ActionFocusNext:         (*Engine).handleFocusNext,
	ActionAccept:            (*Engine).handleAccept,
	ActionReject:            (*Engine).handleReject,
	ActionAcceptAll:         (*Engine).handleAcceptAll,
	ActionNext:              (*Engine).handleNext,
	ActionPrev:              (*Engine).handlePrev,
	ActionSetFilter:         (*Engine).handleSetFilter,
	ActionToggleAutoAdvance: (*Engine).handleToggleAutoAdvance,
	ActionJumpUncertain:     (*Engine).handleJumpUncertain,
	ActionZoom:              (*Engine).handleZoom,
	ActionResetView:         (*Engine).handleResetView,
	ActionPan:               (*Engine).handlePan,
	ActionPointerDown:       (*Engine).handlePointerDown,
	ActionPointerMove:       (*Engine).handlePointerMove,
	ActionPointerUp:         (*Engine).handlePointerUp,
}

// Dispatch runs c and returns the effects it started.
func (e *Engine) Dispatch(c Command) tea.Cmd {
	h, ok := handlers[c.Action]
	if !ok {
		e.log.Warn("unknown action", "action", c.Action)
		return nil
	}
	return h(e, c)
}

func (e *Engine) handleCommit(c Command) tea.Cmd {
	species := c.Species
	if species == "" {
		species = e.selected
	}
	if err := e.ws.Commit(species); err != nil {
		return e.reject(ActionCommit, err)
	}
	e.session.Add(1)
	e.log.Info("annotation committed", "image", e.ws.ImageID(), "species", species)
	return tea.Batch(e.persist(), e.scheduleAdvance(), e.notify(NoticeSuccess, fmt.Sprintf("saved %s", species)))
}

func (e *Engine) handleDelete(c Command) tea.Cmd {
	if err := e.ws.Delete(c.Index); err != nil {
		if errors.Is(err, ErrIndexOutOfRange) {
			return nil
		}
		return e.reject(ActionDelete, err)
	}
	return e.persist()
}

func (e *Engine) handleMarkEmpty(Command) tea.Cmd {
	if err := e.ws.MarkEmpty(); err != nil {
		return e.reject(ActionMarkEmpty, err)
	}
	e.session.Add(1)
	e.log.Info("image marked empty", "image", e.ws.ImageID())
	return tea.Batch(e.persist(), e.scheduleAdvance(), e.notify(NoticeSuccess, "marked empty"))
}

func (e *Engine) handleUndo(Command) tea.Cmd {
	if !e.ws.Undo() {
		return nil
	}
	return e.persist()
}

func (e *Engine) handleRedo(Command) tea.Cmd {
	if !e.ws.Redo() {
		return nil
	}
	return e.persist()
}

func (e *Engine) handleClearDraft(Command) tea.Cmd {
	e.ws.Draft().Clear()
	return nil
}

// handleSelectSpecies makes c.Species current. A pending draft is committed
// with it; otherwise pending predictions are all accepted as that species.
func (e *Engine) handleSelectSpecies(c Command) tea.Cmd {
	if !c.Species.Valid(e.cfg.Species) {
		return e.reject(ActionSelectSpecies, fmt.Errorf("%w: unknown species %q", ErrNoSpecies, c.Species))
	}
	e.selected = c.Species
	if _, ok := e.ws.Draft().Pending(); ok {
		return e.handleCommit(Command{Action: ActionCommit, Species: c.Species})
	}
	if e.ws.Queue().Len() > 0 {
		return e.handleAcceptAll(Command{Action: ActionAcceptAll, Species: c.Species})
	}
	return nil
}

func (e *Engine) handleFocusNext(Command) tea.Cmd {
	e.ws.Queue().FocusNext()
	return nil
}

func (e *Engine) predictionIndex(i int) int {
	if i < 0 {
		return e.ws.Queue().Focus()
	}
	return i
}

func (e *Engine) handleAccept(c Command) tea.Cmd {
	if err := e.ws.Accept(e.predictionIndex(c.Index), c.Species); err != nil {
		return e.reject(ActionAccept, err)
	}
	e.session.Add(1)
	return e.persist()
}

func (e *Engine) handleReject(c Command) tea.Cmd {
	if err := e.ws.Reject(e.predictionIndex(c.Index)); err != nil {
		return e.reject(ActionReject, err)
	}
	return nil
}

func (e *Engine) handleAcceptAll(c Command) tea.Cmd {
	queued := e.ws.Queue().Len()
	n, err := e.ws.AcceptAll(c.Species)
	if err != nil {
		return e.reject(ActionAcceptAll, err)
	}
	skipped := queued - n
	if skipped > 0 {
		e.log.Info("small predictions skipped", "image", e.ws.ImageID(), "count", skipped)
	}
	if n == 0 {
		if skipped > 0 {
			return e.notify(NoticeWarning, fmt.Sprintf("skipped %d predictions smaller than %.0fpx", skipped, MinBoxSize))
		}
		return nil
	}
	e.session.Add(n)
	e.log.Info("predictions accepted", "image", e.ws.ImageID(), "count", n, "override", c.Species)
	level, text := NoticeSuccess, fmt.Sprintf("accepted %d predictions", n)
	if skipped > 0 {
		level = NoticeWarning
		text += fmt.Sprintf(", skipped %d smaller than %.0fpx", skipped, MinBoxSize)
	}
	return tea.Batch(e.persist(), e.scheduleAdvance(), e.notify(level, text))
}

func (e *Engine) handleNext(Command) tea.Cmd {
	if !e.nav.Next() {
		return nil
	}
	return e.loadCurrent()
}

func (e *Engine) handlePrev(Command) tea.Cmd {
	if !e.nav.Prev() {
		return nil
	}
	return e.loadCurrent()
}

func (e *Engine) handleSetFilter(c Command) tea.Cmd {
	f := c.Filter
	if f == "" {
		f = NextFilter(e.nav.Filter())
	}
	e.nav.SetFilter(f)
	e.nav.SetIndex(0)
	return tea.Batch(e.fetchList(listFilter, ""), e.notify(NoticeInfo, fmt.Sprintf("filter: %s", f)))
}

func (e *Engine) handleToggleAutoAdvance(Command) tea.Cmd {
	e.autoAdvance = !e.autoAdvance
	state := "off"
	if e.autoAdvance {
		state = "on"
	}
	return e.notify(NoticeInfo, "auto-advance "+state)
}

func (e *Engine) handleJumpUncertain(Command) tea.Cmd {
	return e.fetchRanking(false)
}

func (e *Engine) handleZoom(c Command) tea.Cmd {
	if c.Factor <= 0 {
		return nil
	}
	e.transform().ZoomAt(&e.view, c.Point, c.Factor)
	return nil
}

func (e *Engine) handleResetView(Command) tea.Cmd {
	e.view.Reset()
	return nil
}

func (e *Engine) handlePan(c Command) tea.Cmd {
	sx, sy := e.transform().Scale()
	e.view.PanBy(c.Delta, sx, sy)
	return nil
}

func (e *Engine) handlePointerDown(c Command) tea.Cmd {
	if e.ws.ImageID() == "" {
		return nil
	}
	// Without pixel dimensions there is no transform to map the pointer.
	if e.imageSize.Empty() {
		e.log.Debug("pointer ignored, image not loaded", "image", e.ws.ImageID())
		return nil
	}
	d := e.ws.Draft()
	before := d.State()
	d.PointerDown(c.Point, c.Modifier, e.transform())
	e.logTransition(before, d.State())
	return nil
}

func (e *Engine) handlePointerMove(c Command) tea.Cmd {
	e.ws.Draft().PointerMove(c.Point, e.transform(), &e.view)
	return nil
}

func (e *Engine) handlePointerUp(c Command) tea.Cmd {
	d := e.ws.Draft()
	before := d.State()
	if d.PointerUp(c.Point, e.transform()) {
		box, _ := d.Pending()
		e.log.Debug("draft pending", "image", e.ws.ImageID(), "box", box)
	}
	e.logTransition(before, d.State())
	return nil
}

func (e *Engine) logTransition(from, to DraftState) {
	if from != to {
		e.log.Debug("draft state transition", "from", from, "to", to)
	}
}
