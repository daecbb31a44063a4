package viz

import (
	"fmt"
	"math"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/guptarohit/asciigraph"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/san-kum/demcontact/internal/metrics"
	"github.com/san-kum/demcontact/internal/sim"
)

const (
	width           = 60
	height          = 20
	historyCapacity = 300
)

var (
	canvasStyle = lipgloss.NewStyle().Padding(1, 2)
	statsStyle  = lipgloss.NewStyle().Border(lipgloss.NormalBorder(), false, false, false, true).BorderForeground(lipgloss.Color("240")).Padding(1, 2).Width(45)
	labelStyle  = MetricLabel.Width(14)
	graphStyle  = lipgloss.NewStyle().Padding(1, 0)
	helpStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("240")).MarginTop(2)
)

type TickMsg time.Time

// Builder creates the simulator of the monitored run. It is called again on
// reset.
type Builder func() (*sim.Simulator, error)

// Model steps a simulator each frame and renders the x-z projection of the
// bodies next to its energy history.
type Model struct {
	build         Builder
	sim           *sim.Simulator
	title         string
	totalSteps    int
	stepsPerFrame int

	canvas         *Canvas
	energyHistory  []float64
	indentHistory  []float64
	contactHistory []float64
	last           metrics.Snapshot

	frame    int
	running  bool
	showHelp bool
	err      error
}

// NewModel builds the first simulator. A totalSteps of zero runs until quit.
func NewModel(title string, build Builder, totalSteps, stepsPerFrame int) (Model, error) {
	m := Model{
		build:         build,
		title:         title,
		totalSteps:    totalSteps,
		stepsPerFrame: max(1, stepsPerFrame),
		canvas:        NewCanvas(width, height),
	}
	if err := m.reset(); err != nil {
		return Model{}, err
	}
	return m, nil
}

func tick() tea.Cmd {
	return tea.Tick(time.Second/60, func(t time.Time) tea.Msg { return TickMsg(t) })
}

func (m Model) Init() tea.Cmd {
	return tick()
}

// Update handles input events and steps the simulation.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			return m, tea.Quit
		case " ":
			m.running = !m.running
		case "r":
			if err := m.reset(); err != nil {
				m.err = err
			}
		case "+", "=":
			m.stepsPerFrame *= 2
		case "-", "_":
			m.stepsPerFrame = max(1, m.stepsPerFrame/2)
		case "?":
			m.showHelp = !m.showHelp
		case "t":
			NextTheme()
		}
	case TickMsg:
		if m.running {
			m.step()
		}
		m.frame++
		return m, tick()
	}
	return m, nil
}

func (m *Model) reset() error {
	s, err := m.build()
	if err != nil {
		return err
	}
	if err := s.Initialize(); err != nil {
		return err
	}
	m.sim = s
	m.err = nil
	m.running = true
	m.energyHistory = m.energyHistory[:0]
	m.indentHistory = m.indentHistory[:0]
	m.contactHistory = m.contactHistory[:0]
	m.observe()
	return nil
}

func (m *Model) done() bool {
	return m.totalSteps > 0 && m.sim.Context().Step >= m.totalSteps
}

func (m *Model) step() {
	for i := 0; i < m.stepsPerFrame && !m.done(); i++ {
		if err := m.sim.Step(); err != nil {
			m.err = err
			m.running = false
			break
		}
	}
	m.observe()
	if m.done() {
		m.running = false
	}
}

func (m *Model) observe() {
	m.last = m.sim.Snapshot()
	m.energyHistory = push(m.energyHistory, m.last.Kinetic+m.last.Rotational)
	m.indentHistory = push(m.indentHistory, m.last.MaxIndentation)
	m.contactHistory = push(m.contactHistory, float64(m.last.Contacts+m.last.WallContacts))
}

func push(h []float64, v float64) []float64 {
	if len(h) >= historyCapacity {
		h = append(h[:0], h[1:]...)
	}
	return append(h, v)
}

func (m Model) status() string {
	switch {
	case m.err != nil:
		return statusFailed.style().Render("FAILED")
	case m.done():
		return statusDone.style().Render("DONE")
	case !m.running:
		return statusPaused.style().Render("PAUSED")
	}
	return statusRunning.style().Render(AnimatedSpinner(m.frame) + " RUNNING")
}

func (m Model) View() string {
	m.draw()
	canvasView := canvasStyle.Foreground(CurrentTheme.Bodies).Render(m.canvas.String())

	ctx := m.sim.Context()
	var s strings.Builder
	s.WriteString(GradientText(strings.ToUpper(m.title), CurrentTheme.Title[0], CurrentTheme.Title[1]) + "\n")
	s.WriteString(m.status() + "\n")
	if m.err != nil {
		s.WriteString(statusFailed.style().Render(m.err.Error()) + "\n")
	}
	if m.totalSteps > 0 {
		s.WriteString(ProgressBar(float64(ctx.Step)/float64(m.totalSteps), 30) + "\n")
	}
	s.WriteString("\n")

	if len(m.energyHistory) > 1 {
		chart := asciigraph.Plot(m.energyHistory, asciigraph.Height(4), asciigraph.Width(30), asciigraph.Caption("Kinetic energy"))
		s.WriteString(graphStyle.Foreground(CurrentTheme.Plot).Render(chart) + "\n")
	}
	if len(m.indentHistory) > 1 {
		chart := asciigraph.Plot(m.indentHistory, asciigraph.Height(3), asciigraph.Width(30), asciigraph.Caption("Max overlap"))
		s.WriteString(graphStyle.Foreground(CurrentTheme.Plot).Render(chart) + "\n")
	}
	s.WriteString(labelStyle.Render("Contacts") + SparklineChart(m.contactHistory, 30) + "\n\n")

	row := func(label, value string) {
		s.WriteString(labelStyle.Render(label) + MetricValue.Render(value) + "\n")
	}
	row("Time", fmt.Sprintf("%.4gs", ctx.Time))
	row("Step", fmt.Sprintf("%d", ctx.Step))
	row("Steps/frame", fmt.Sprintf("%d", m.stepsPerFrame))
	row("Particles", fmt.Sprintf("%d", len(m.sim.Engine().Model().Particles)))
	row("Pairs", fmt.Sprintf("%d", m.sim.Stats().Pairs))
	row("Contacts", fmt.Sprintf("%d + %d wall", m.last.Contacts, m.last.WallContacts))
	row("Wall load", fmt.Sprintf("%.4g N", m.last.WallLoad))
	row("Max overlap", fmt.Sprintf("%.3g m", m.last.MaxIndentation))

	s.WriteString(helpStyle.Render("\n" + Separator(24) + "\n" + KeyHint.Render("SP:Pause R:Reset Q:Quit\nT:Theme  +/-:Speed ?:Help")))
	mainView := lipgloss.JoinHorizontal(lipgloss.Top, canvasView, statsStyle.Render(s.String()))
	if m.showHelp {
		return `
╔══════════════════════════════════════╗
║           KEYBOARD SHORTCUTS         ║
╠══════════════════════════════════════╣
║  Space    - Pause/Resume simulation  ║
║  R        - Rebuild the run          ║
║  Q        - Quit                     ║
║  +/-      - Double/halve steps/frame ║
║  T        - Cycle themes             ║
║  ?        - Toggle this help         ║
╚══════════════════════════════════════╝
` + "\n\n" + mainView
	}
	return mainView
}

// view maps the x-z plane onto the canvas with a uniform scale.
type view struct {
	lo    r3.Vec
	scale float64
	h     int
}

func (v view) project(p r3.Vec) (int, int) {
	x := int(math.Round((p.X - v.lo.X) * v.scale))
	y := v.h - 1 - int(math.Round((p.Z-v.lo.Z)*v.scale))
	return x, y
}

func bounds(s *sim.Simulator) (lo, hi r3.Vec) {
	ctx := s.Context()
	if ctx.Periodic {
		return ctx.DomainMin, ctx.DomainMax
	}
	lo = r3.Vec{X: math.Inf(1), Z: math.Inf(1)}
	hi = r3.Vec{X: math.Inf(-1), Z: math.Inf(-1)}
	grow := func(p r3.Vec, r float64) {
		lo.X, lo.Z = math.Min(lo.X, p.X-r), math.Min(lo.Z, p.Z-r)
		hi.X, hi.Z = math.Max(hi.X, p.X+r), math.Max(hi.Z, p.Z+r)
	}
	model := s.Engine().Model()
	for _, p := range model.Particles {
		grow(p.Node.Position, p.Radius)
	}
	for _, w := range model.Walls {
		for _, x := range w.Positions() {
			grow(x, 0)
		}
	}
	if math.IsInf(lo.X, 1) {
		return r3.Vec{}, r3.Vec{X: 1, Z: 1}
	}
	return lo, hi
}

func (m *Model) draw() {
	Draw(m.canvas, m.sim)
}

// Draw renders the x-z projection of the particles and the non-phantom walls
// of s, scaled to fit the canvas.
func Draw(c *Canvas, s *sim.Simulator) {
	c.Clear()
	w, h := c.Pixels()
	lo, hi := bounds(s)
	spanX, spanZ := hi.X-lo.X, hi.Z-lo.Z
	scale := math.Inf(1)
	if spanX > 0 {
		scale = float64(w-1) / spanX
	}
	if spanZ > 0 {
		scale = math.Min(scale, float64(h-1)/spanZ)
	}
	if math.IsInf(scale, 1) {
		scale = 1
	}
	v := view{lo: lo, scale: scale, h: h}

	model := s.Engine().Model()
	for _, wall := range model.Walls {
		if wall.Phantom {
			continue
		}
		pts := wall.Positions()
		for i := range pts {
			if i == len(pts)-1 && len(pts) == 2 {
				break
			}
			x0, y0 := v.project(pts[i])
			x1, y1 := v.project(pts[(i+1)%len(pts)])
			c.DrawLine(x0, y0, x1, y1)
		}
	}
	for _, p := range model.Particles {
		x, y := v.project(p.Node.Position)
		c.DrawCircle(x, y, int(math.Round(p.Radius*scale)))
	}
}
