package annotator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	tea "github.com/charmbracelet/bubbletea"
)

// Config holds the engine's tunables.
type Config struct {
	Filter           Filter
	AutoAdvance      bool
	AutoAdvanceDelay time.Duration
	NoticeTTL        time.Duration
	RequestTimeout   time.Duration
	RankingLimit     int
	Prefetch         bool
	Species          []Species
}

func DefaultConfig() Config {
	return Config{
		Filter:           FilterAll,
		AutoAdvance:      true,
		AutoAdvanceDelay: 350 * time.Millisecond,
		NoticeTTL:        3 * time.Second,
		RequestTimeout:   10 * time.Second,
		RankingLimit:     50,
		Prefetch:         true,
		Species:          DefaultSpecies,
	}
}

type NoticeLevel int

const (
	NoticeInfo NoticeLevel = iota
	NoticeSuccess
	NoticeWarning
	NoticeError
)

// Notice is a transient message for the reviewer.
type Notice struct {
	Level NoticeLevel
	Text  string
	id    int
}

// Engine is the annotation controller. It owns all review state and is only
// touched from the host's update loop; I/O runs in tea.Cmds whose results
// come back through Update.
type Engine struct {
	cfg    Config
	log    *slog.Logger
	collab Collaborator
	images ImageSource
	now    func() time.Time

	ws        *Workspace
	nav       *Navigator
	view      Viewport
	session   *Session
	sessionID string

	area      Rect
	imageSize Size
	imageErr  error
	// gen changes whenever the current image is (re)loaded; async results
	// for an older gen are dropped.
	gen     uint64
	listGen uint64

	selected    Species
	autoAdvance bool
	notice      *Notice
	noticeSeq   int
	stats       Stats
	statsOK     bool
}

type Option func(*Engine)

func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) { e.log = l }
}

// WithSessionID fixes the review session id instead of generating one.
func WithSessionID(id string) Option {
	return func(e *Engine) { e.sessionID = id }
}

// WithClock replaces time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

func New(cfg Config, collab Collaborator, images ImageSource, opts ...Option) *Engine {
	if len(cfg.Species) == 0 {
		cfg.Species = DefaultSpecies
	}
	if cfg.Filter == "" {
		cfg.Filter = FilterAll
	}
	e := &Engine{
		cfg:         cfg,
		log:         slog.Default(),
		collab:      collab,
		images:      images,
		now:         time.Now,
		view:        NewViewport(),
		autoAdvance: cfg.AutoAdvance,
	}
	for _, opt := range opts {
		opt(e)
	}
	e.ws = NewWorkspace(e.now)
	e.nav = NewNavigator(cfg.Filter)
	e.session = NewSession(e.now())
	if e.sessionID != "" {
		e.session.ID = e.sessionID
	}
	return e
}

// Init fetches the first image list and stats and starts the telemetry tick.
func (e *Engine) Init() tea.Cmd {
	e.log.Info("review session started", "session", e.session.ID, "filter", e.nav.Filter())
	return tea.Batch(e.fetchList(listInit, ""), e.fetchStats(), tick())
}

func tick() tea.Cmd {
	return tea.Tick(time.Second, func(t time.Time) tea.Msg { return TickMsg(t) })
}

// Update applies an async result or timer to the engine state.
func (e *Engine) Update(msg tea.Msg) tea.Cmd {
	switch msg := msg.(type) {
	case ImagesLoadedMsg:
		return e.onImages(msg)
	case AnnotationsLoadedMsg:
		if !e.current(msg.ImageID, msg.gen) {
			e.log.Debug("dropping stale annotations", "image", msg.ImageID)
			return nil
		}
		if msg.Err != nil {
			e.log.Warn("annotations fetch failed", "image", msg.ImageID, "err", msg.Err)
			e.ws.LoadAnnotations(nil, false)
			return nil
		}
		e.ws.LoadAnnotations(msg.Annotations, msg.IsEmpty)
		return nil
	case PredictionsLoadedMsg:
		if !e.current(msg.ImageID, msg.gen) {
			e.log.Debug("dropping stale predictions", "image", msg.ImageID)
			return nil
		}
		if msg.Err != nil {
			e.log.Warn("predictions fetch failed", "image", msg.ImageID, "err", msg.Err)
			e.ws.LoadPredictions(nil)
			return nil
		}
		e.ws.LoadPredictions(msg.Predictions)
		return nil
	case ImageReadyMsg:
		if msg.Prefetch {
			if msg.Err != nil {
				e.log.Debug("prefetch failed", "image", msg.ImageID, "err", msg.Err)
			}
			return nil
		}
		if !e.current(msg.ImageID, msg.gen) {
			return nil
		}
		if msg.Err != nil {
			e.log.Warn("image load failed", "image", msg.ImageID, "err", msg.Err)
			e.imageErr = msg.Err
			return e.notify(NoticeError, fmt.Sprintf("could not load %s", msg.ImageID))
		}
		e.imageSize = msg.Size
		e.log.Debug("image loaded", "image", msg.ImageID, "width", msg.Size.W, "height", msg.Size.H)
		return nil
	case PersistedMsg:
		if msg.Err != nil {
			e.log.Error("saving annotations failed", "image", msg.ImageID, "err", msg.Err)
			return e.notify(NoticeError, fmt.Sprintf("save failed: %v", msg.Err))
		}
		return e.fetchStats()
	case StatsLoadedMsg:
		if msg.Err != nil {
			e.log.Warn("stats fetch failed", "err", msg.Err)
			return nil
		}
		e.stats = msg.Stats
		e.statsOK = true
		return nil
	case RankingLoadedMsg:
		return e.onRanking(msg)
	case autoAdvanceMsg:
		if !e.current(msg.imageID, msg.gen) {
			return nil
		}
		return e.advance()
	case TickMsg:
		e.session.OnTick(time.Time(msg))
		return tick()
	case noticeExpiredMsg:
		if e.notice != nil && e.notice.id == msg.id {
			e.notice = nil
		}
		return nil
	}
	return nil
}

func (e *Engine) current(imageID string, gen uint64) bool {
	return imageID == e.ws.ImageID() && gen == e.gen
}

func (e *Engine) onImages(msg ImagesLoadedMsg) tea.Cmd {
	if msg.gen != e.listGen {
		return nil
	}
	// The reviewer moved on while an advance list was in flight; the list
	// no longer says where to go.
	if msg.reason == listAdvance && msg.imageGen != e.gen {
		e.log.Debug("dropping stale advance list", "filter", msg.Filter, "image", e.ws.ImageID())
		return nil
	}
	if msg.Err != nil {
		e.log.Warn("image list fetch failed", "filter", msg.Filter, "err", msg.Err)
		msg.Images = nil
	}
	e.nav.SetList(msg.Images)
	e.log.Debug("image list loaded", "filter", msg.Filter, "count", len(msg.Images))
	if e.nav.Done() {
		e.ws.Reset("")
		e.gen++
		if msg.Err != nil {
			return e.notify(NoticeError, "could not load image list")
		}
		return e.notify(NoticeSuccess, "all done")
	}
	if msg.reason == listJump && msg.target != "" {
		if !e.nav.JumpTo(msg.target) {
			return tea.Batch(e.loadCurrent(), e.notify(NoticeWarning, fmt.Sprintf("%s is not in the list", msg.target)))
		}
	}
	return e.loadCurrent()
}

// loadCurrent resets the per-image state for the navigator's current image
// and starts fetching it.
func (e *Engine) loadCurrent() tea.Cmd {
	e.gen++
	id := e.nav.Current()
	e.view.Reset()
	e.ws.Reset(id)
	e.imageSize = Size{}
	e.imageErr = nil
	if id == "" {
		return nil
	}
	e.log.Debug("loading image", "image", id, "index", e.nav.Index(), "gen", e.gen)
	cmds := []tea.Cmd{
		e.fetchAnnotations(id, e.gen),
		e.fetchPredictions(id, e.gen),
		e.loadImage(id, e.gen, false),
	}
	if next, ok := e.nav.PeekNext(); ok && e.cfg.Prefetch {
		cmds = append(cmds, e.loadImage(next, e.gen, true))
	}
	return tea.Batch(cmds...)
}

func (e *Engine) scheduleAdvance() tea.Cmd {
	if !e.autoAdvance {
		return nil
	}
	id, gen := e.ws.ImageID(), e.gen
	return tea.Tick(e.cfg.AutoAdvanceDelay, func(time.Time) tea.Msg {
		return autoAdvanceMsg{imageID: id, gen: gen}
	})
}

// advance moves on after a commit-class action. Filtered lists are fetched
// again because the image just reviewed may have left the filter.
func (e *Engine) advance() tea.Cmd {
	if e.nav.Filter() != FilterAll {
		return e.fetchList(listAdvance, "")
	}
	if !e.nav.Next() {
		return e.notify(NoticeInfo, "last image")
	}
	return e.loadCurrent()
}

func (e *Engine) onRanking(msg RankingLoadedMsg) tea.Cmd {
	if msg.Err != nil {
		e.log.Warn("ranking fetch failed", "err", msg.Err)
		return e.notify(NoticeError, "could not load uncertainty ranking")
	}
	if len(msg.Entries) == 0 {
		return e.notify(NoticeInfo, "no uncertain images left")
	}
	for _, r := range msg.Entries {
		if r.ImageID == e.ws.ImageID() {
			continue
		}
		if e.nav.JumpTo(r.ImageID) {
			return tea.Batch(e.loadCurrent(), e.notify(NoticeInfo, fmt.Sprintf("uncertain: %s (%.2f)", r.ImageID, r.MaxConfidence)))
		}
	}
	if msg.retried || e.nav.Filter() == FilterAll {
		return e.notify(NoticeInfo, "no uncertain images in this list")
	}
	e.nav.SetFilter(FilterAll)
	return e.fetchList(listJump, msg.Entries[0].ImageID)
}

func (e *Engine) ctx() (context.Context, context.CancelFunc) {
	if e.cfg.RequestTimeout <= 0 {
		return context.WithCancel(context.Background())
	}
	return context.WithTimeout(context.Background(), e.cfg.RequestTimeout)
}

func (e *Engine) fetchList(reason listReason, target string) tea.Cmd {
	e.listGen++
	gen, imageGen, filter, collab := e.listGen, e.gen, e.nav.Filter(), e.collab
	return func() tea.Msg {
		ctx, cancel := e.ctx()
		defer cancel()
		images, err := collab.ListImages(ctx, filter)
		return ImagesLoadedMsg{Filter: filter, Images: images, Err: err, reason: reason, target: target, gen: gen, imageGen: imageGen}
	}
}

func (e *Engine) fetchAnnotations(id string, gen uint64) tea.Cmd {
	collab := e.collab
	return func() tea.Msg {
		ctx, cancel := e.ctx()
		defer cancel()
		anns, empty, err := collab.GetAnnotations(ctx, id)
		return AnnotationsLoadedMsg{ImageID: id, Annotations: anns, IsEmpty: empty, Err: err, gen: gen}
	}
}

func (e *Engine) fetchPredictions(id string, gen uint64) tea.Cmd {
	collab := e.collab
	return func() tea.Msg {
		ctx, cancel := e.ctx()
		defer cancel()
		preds, err := collab.GetPredictions(ctx, id)
		return PredictionsLoadedMsg{ImageID: id, Predictions: preds, Err: err, gen: gen}
	}
}

func (e *Engine) loadImage(id string, gen uint64, prefetch bool) tea.Cmd {
	if e.images == nil {
		return nil
	}
	images := e.images
	return func() tea.Msg {
		ctx, cancel := e.ctx()
		defer cancel()
		size, err := images.Load(ctx, id)
		return ImageReadyMsg{ImageID: id, Size: size, Err: err, Prefetch: prefetch, gen: gen}
	}
}

func (e *Engine) fetchStats() tea.Cmd {
	collab := e.collab
	return func() tea.Msg {
		ctx, cancel := e.ctx()
		defer cancel()
		s, err := collab.GetStats(ctx)
		return StatsLoadedMsg{Stats: s, Err: err}
	}
}

func (e *Engine) fetchRanking(retried bool) tea.Cmd {
	collab, limit := e.collab, e.cfg.RankingLimit
	return func() tea.Msg {
		ctx, cancel := e.ctx()
		defer cancel()
		entries, err := collab.GetUncertaintyRanking(ctx, limit)
		return RankingLoadedMsg{Entries: entries, Err: err, retried: retried}
	}
}

// persist saves the current image's state as it is now. Nothing waits for
// the result.
func (e *Engine) persist() tea.Cmd {
	id := e.ws.ImageID()
	if id == "" {
		return nil
	}
	anns, empty, collab := e.ws.Annotations(), e.ws.IsEmpty(), e.collab
	return func() tea.Msg {
		ctx, cancel := e.ctx()
		defer cancel()
		return PersistedMsg{ImageID: id, Err: collab.SaveAnnotations(ctx, id, anns, empty)}
	}
}

func (e *Engine) notify(level NoticeLevel, text string) tea.Cmd {
	e.noticeSeq++
	id := e.noticeSeq
	e.notice = &Notice{Level: level, Text: text, id: id}
	if e.cfg.NoticeTTL <= 0 {
		return nil
	}
	return tea.Tick(e.cfg.NoticeTTL, func(time.Time) tea.Msg { return noticeExpiredMsg{id: id} })
}

// reject reports a refused action to the reviewer.
func (e *Engine) reject(a Action, err error) tea.Cmd {
	e.log.Debug("action refused", "action", a, "err", err)
	text := err.Error()
	switch {
	case errors.Is(err, ErrNoDraft):
		text = "draw a box first"
	case errors.Is(err, ErrNoSpecies) && e.selected == "":
		text = "select a species first"
	case errors.Is(err, ErrIndexOutOfRange):
		text = "nothing selected"
	case errors.Is(err, ErrBoxTooSmall):
		text = fmt.Sprintf("prediction is smaller than %.0fpx", MinBoxSize)
	}
	return e.notify(NoticeWarning, text)
}

// SetCanvasArea tells the engine where the canvas is on screen, in screen
// pixels. The image is letterboxed into it.
func (e *Engine) SetCanvasArea(r Rect) { e.area = r }

// Transform is the current screen/image mapping.
func (e *Engine) Transform() Transform { return e.transform() }

func (e *Engine) transform() Transform {
	if e.imageSize.Empty() || e.area.W <= 0 || e.area.H <= 0 {
		return Transform{Canvas: e.area, Backing: Size{W: e.area.W, H: e.area.H}, View: e.view}
	}
	return Transform{Canvas: FitRect(e.area, e.imageSize), Backing: e.imageSize, View: e.view}
}

// FitRect is the largest rectangle with the aspect ratio of s centered in r.
func FitRect(r Rect, s Size) Rect {
	if s.Empty() || r.W <= 0 || r.H <= 0 {
		return r
	}
	scale := r.W / s.W
	if k := r.H / s.H; k < scale {
		scale = k
	}
	w, h := s.W*scale, s.H*scale
	return Rect{X: r.X + (r.W-w)/2, Y: r.Y + (r.H-h)/2, W: w, H: h}
}

func (e *Engine) ImageID() string { return e.ws.ImageID() }
func (e *Engine) ImageSize() Size { return e.imageSize }
func (e *Engine) ImageErr() error { return e.imageErr }
func (e *Engine) Ready() bool { return e.ws.Ready() }
func (e *Engine) Annotations() []Annotation { return e.ws.Annotations() }
func (e *Engine) IsEmpty() bool { return e.ws.IsEmpty() }
func (e *Engine) Predictions() []Prediction { return e.ws.Queue().Items() }
func (e *Engine) Focus() int { return e.ws.Queue().Focus() }
func (e *Engine) Draft() *Draft { return e.ws.Draft() }
func (e *Engine) History() *History { return e.ws.History() }
func (e *Engine) Viewport() Viewport { return e.view }
func (e *Engine) Navigator() *Navigator { return e.nav }
func (e *Engine) Session() *Session { return e.session }
func (e *Engine) Selected() Species { return e.selected }
func (e *Engine) SpeciesSet() []Species { return e.cfg.Species }
func (e *Engine) AutoAdvance() bool { return e.autoAdvance }
func (e *Engine) Done() bool { return e.nav.Done() }
func (e *Engine) Notice() *Notice { return e.notice }
func (e *Engine) Stats() (Stats, bool) { return e.stats, e.statsOK }

// Minimap lays out the minimap for a thumbnail of size thumb.
func (e *Engine) Minimap(thumb Size) MinimapLayout {
	t := e.transform()
	return Minimap(e.imageSize, e.view, Size{W: t.Canvas.W, H: t.Canvas.H}, thumb)
}
