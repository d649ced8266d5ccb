package main

import (
	"fmt"
	"image"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/lucasb-eyer/go-colorful"

	"riistakamera/internal/annotator"
	"riistakamera/internal/imagery"
)

var (
	headingStyle = lipgloss.NewStyle().Bold(true)
	dimStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("#808080"))
	sidebarStyle = lipgloss.NewStyle().Padding(0, 1).Width(sidebarWidth)
	noticeStyles = map[annotator.NoticeLevel]lipgloss.Style{
		annotator.NoticeInfo:    lipgloss.NewStyle().Foreground(lipgloss.Color("#87afff")),
		annotator.NoticeSuccess: lipgloss.NewStyle().Foreground(lipgloss.Color("#5fd75f")).Bold(true),
		annotator.NoticeWarning: lipgloss.NewStyle().Foreground(lipgloss.Color("#ffaf00")).Bold(true),
		annotator.NoticeError:   lipgloss.NewStyle().Foreground(lipgloss.Color("#ff5f5f")).Bold(true),
	}
)

func (m model) View() string {
	if m.width == 0 || m.height == 0 {
		return ""
	}
	if m.help {
		return m.helpView()
	}

	_, rows := m.canvasCells()
	var body string
	if m.engine.Done() {
		body = m.doneView()
	} else {
		canvas := strings.Join(m.renderCanvas(), "\n")
		side := sidebarStyle.Height(rows).MaxHeight(rows).Render(m.sidebar())
		body = lipgloss.JoinHorizontal(lipgloss.Top, canvas, side)
	}
	return body + "\n" + m.statusLine()
}

func (m model) doneView() string {
	w := m.width
	_, h := m.canvasCells()
	msg := lipgloss.JoinVertical(lipgloss.Center,
		headingStyle.Render("All done"),
		"",
		fmt.Sprintf("No images left for filter %q.", m.engine.Navigator().Filter()),
		dimStyle.Render("f: change filter   q: quit"),
	)
	return lipgloss.Place(w, h, lipgloss.Center, lipgloss.Center, msg)
}

func (m model) sidebar() string {
	e := m.engine
	nav := e.Navigator()
	var b strings.Builder

	b.WriteString(headingStyle.Render(truncate(e.ImageID(), sidebarWidth-2)) + "\n")
	fmt.Fprintf(&b, "%d/%d  filter: %s\n", nav.Index()+1, nav.Len(), nav.Filter())
	auto := "off"
	if e.AutoAdvance() {
		auto = "on"
	}
	fmt.Fprintf(&b, "auto-advance: %s  zoom: %.0f%%\n", auto, e.Viewport().Zoom*100)
	if st, ok := e.Stats(); ok {
		fmt.Fprintf(&b, "done %d+%d empty / %d\n", st.Annotated, st.Empty, st.Total)
	}
	s := e.Session()
	fmt.Fprintf(&b, "session %s  %d  %.0f/h\n", s.Elapsed().Truncate(time.Second), s.Committed, s.Throughput())

	b.WriteString("\n" + m.minimap() + "\n")

	b.WriteString(headingStyle.Render("Species") + "\n")
	for i, sp := range e.SpeciesSet() {
		marker := " "
		if sp == e.Selected() {
			marker = "•"
		}
		sw := lipgloss.NewStyle().Foreground(lipgloss.Color(m.speciesColor(sp).Hex())).Render("■")
		fmt.Fprintf(&b, "%s%d %s %s\n", marker, i+1, sw, sp)
	}

	if !e.Ready() && e.ImageID() != "" {
		b.WriteString("\n" + dimStyle.Render("loading boxes…") + "\n")
		return b.String()
	}

	anns := e.Annotations()
	switch {
	case e.IsEmpty():
		b.WriteString("\n" + headingStyle.Render("Empty image") + "\n")
	case len(anns) > 0:
		b.WriteString("\n" + headingStyle.Render(fmt.Sprintf("Annotations (%d)", len(anns))) + "\n")
		for _, a := range anns {
			src := ""
			if a.Provenance == annotator.FromPrediction {
				src = " ←" + speciesLabel(a.OriginalSpecies)
			}
			fmt.Fprintf(&b, " %s%s\n", a.Species, src)
		}
	}

	preds := e.Predictions()
	if len(preds) > 0 {
		b.WriteString("\n" + headingStyle.Render(fmt.Sprintf("Predictions (%d)", len(preds))) + "\n")
		for i, p := range preds {
			marker := " "
			if i == e.Focus() {
				marker = "▶"
			}
			fmt.Fprintf(&b, "%s%s %.2f\n", marker, speciesLabel(p.Species), p.Confidence())
		}
	}

	if _, ok := e.Draft().Pending(); ok {
		b.WriteString("\n" + dimStyle.Render("box drawn: pick a species 1-9") + "\n")
	}
	return b.String()
}

// minimap renders a thumbnail with the visible region outlined once the
// view is zoomed in.
func (m model) minimap() string {
	img, ok := m.images.Get(m.engine.ImageID())
	cols := sidebarWidth - 2
	if !ok {
		return strings.Repeat("\n", minimapRows-1)
	}
	thumb := annotator.Size{W: float64(cols), H: float64(minimapRows * 2)}
	layout := m.engine.Minimap(thumb)

	key := thumbKey{imageID: m.engine.ImageID(), night: m.night, w: int(layout.Thumb.W), h: int(layout.Thumb.H)}
	if m.cache.thumb == nil || m.cache.thumbKey != key {
		src := img
		if m.night {
			src = imagery.Enhance(img, m.config.NightGamma)
		}
		m.cache.thumb = imagery.Thumbnail(src, key.w, key.h)
		m.cache.thumbKey = key
	}

	f := newFrame(cols, minimapRows)
	tb := m.cache.thumb.Bounds()
	ox, oy := int(layout.Thumb.X), int(layout.Thumb.Y)
	for y := 0; y < tb.Dy(); y++ {
		for x := 0; x < tb.Dx(); x++ {
			f.setPixel(ox+x, oy+y, m.cache.thumb.At(tb.Min.X+x, tb.Min.Y+y))
		}
	}
	if layout.ShowViewport {
		v := layout.Viewport
		r := image.Rectangle{
			Min: screenCell(annotator.Point{X: v.X, Y: v.Y}),
			Max: screenCell(annotator.Point{X: v.X + v.W, Y: v.Y + v.H}),
		}
		f.box(r, solidGlyphs, colorful.Color{R: 1, G: 0.3, B: 0.3}, true, "")
	}
	return strings.Join(f.lines(), "\n")
}

func (m model) statusLine() string {
	if m.mode == ModeConfirm {
		var message string
		switch m.confirmAction {
		case ConfirmQuit:
			message = "Discard the unsaved box and quit? (y/n)"
		case ConfirmMarkEmpty:
			message = fmt.Sprintf("Mark empty and drop %d boxes? (y/n)", len(m.engine.Annotations()))
		}
		return fmt.Sprintf("Mode: CONFIRM | %s", message)
	}

	status := fmt.Sprintf("Mode: %s | Draft: %s", m.modeString(), m.engine.Draft().State())
	if m.night {
		status += " | night"
	}
	if n := m.engine.Notice(); n != nil {
		status += " | " + noticeStyles[n.Level].Render(n.Text)
	}
	if m.successMessage != "" {
		status += " | " + noticeStyles[annotator.NoticeSuccess].Render(m.successMessage)
	}
	if m.errorMessage != "" {
		status += " | " + noticeStyles[annotator.NoticeError].Render("ERROR: "+m.errorMessage)
	} else if m.successMessage == "" && m.engine.Notice() == nil {
		status += " | ? for help | q to quit"
	}
	return status
}

func (m model) modeString() string {
	switch m.mode {
	case ModeNormal:
		return "REVIEW"
	case ModePan:
		return "PAN"
	case ModeConfirm:
		return "CONFIRM"
	default:
		return "UNKNOWN"
	}
}

var helpLines = []string{
	"Riistakamera Help",
	"=================",
	"",
	"Drawing:",
	"--------",
	"  drag             Draw a box on the image",
	"  Alt/Ctrl+drag    Pan the image",
	"  wheel            Zoom around the pointer",
	"  1-9              Pick species; commits a drawn box, or accepts all",
	"                   predictions as that species when no box is drawn",
	"  Enter            Commit the drawn box with the selected species",
	"  Esc              Drop the drawn box",
	"  x/Backspace      Delete the last annotation",
	"  E                Mark the image empty",
	"  Ctrl+z           Undo",
	"  Ctrl+y/Ctrl+r    Redo",
	"",
	"Predictions:",
	"------------",
	"  Tab              Focus the next prediction",
	"  a                Accept the focused prediction",
	"  r                Reject the focused prediction",
	"  A                Accept all predictions",
	"",
	"Navigation:",
	"-----------",
	"  n/→/Space        Next image",
	"  p/←              Previous image",
	"  f                Cycle filter: all, unannotated, predicted, annotated, empty",
	"  u                Jump to the most uncertain image",
	"  t                Toggle auto-advance after saving",
	"",
	"View:",
	"-----",
	"  +/-              Zoom in/out",
	"  0                Reset zoom and pan",
	"  z                Pan mode: h/j/k/l or arrows, Shift for 4x, z/Esc to leave",
	"  g                Toggle night-shot enhancement",
	"",
	"Other:",
	"------",
	"  e                Export PNG with boxes and YOLO labels",
	"  y                Copy image name",
	"  Y                Copy annotations as JSON",
	"  ?                Toggle this help",
	"  q                Quit",
}

func (m model) helpView() string {
	height := m.height - 1
	if height < 1 {
		height = 1
	}
	maxScroll := len(helpLines) - height
	if maxScroll < 0 {
		maxScroll = 0
	}
	scroll := m.helpScroll
	if scroll > maxScroll {
		scroll = maxScroll
	}
	end := scroll + height
	if end > len(helpLines) {
		end = len(helpLines)
	}
	return strings.Join(helpLines[scroll:end], "\n") + "\n" + dimStyle.Render("j/k scroll | Esc/q/? close")
}

func truncate(s string, n int) string {
	r := []rune(s)
	if n <= 0 || len(r) <= n {
		return s
	}
	if n == 1 {
		return "…"
	}
	return string(r[:n-1]) + "…"
}
