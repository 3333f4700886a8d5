package viz

import (
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/guptarohit/asciigraph"

	"github.com/san-kum/cohortsim/internal/cohort"
	"github.com/san-kum/cohortsim/internal/dynamo"
)

const (
	chartWidth      = 60
	chartHeight     = 8
	historyCapacity = 2000
	frameRate       = time.Second / 30
)

type TickMsg time.Time

func tick() tea.Cmd {
	return tea.Tick(frameRate, func(t time.Time) tea.Msg { return TickMsg(t) })
}

// Live steps one cohort model in real time and redraws its trajectory.
type Live struct {
	name    string
	base    cohort.Parameters
	params  cohort.Parameters
	opts    []cohort.Option
	model   *cohort.Model
	integ   dynamo.Integrator
	x0      dynamo.State
	state   dynamo.State
	t, dt   float64
	horizon float64

	stepsPerFrame int
	biomass       []float64
	deadWood      []float64
	peak          float64
	peakTime      float64

	keys     []string
	selected int
	running  bool
	showHelp bool
	theme    int
	style    styles
	err      error
}

// NewLive validates p and prepares a live view that runs to horizon years.
func NewLive(name string, p cohort.Parameters, integ dynamo.Integrator, x0 dynamo.State, dt, horizon float64, opts ...cohort.Option) (Live, error) {
	model, err := cohort.NewModel(p, opts...)
	if err != nil {
		return Live{}, err
	}
	if dt <= 0 || horizon <= 0 {
		return Live{}, fmt.Errorf("%w: dt and horizon must be positive", dynamo.ErrInvalidConfig)
	}
	if len(x0) != model.StateDim() {
		return Live{}, fmt.Errorf("%w: initial state has %d values", dynamo.ErrDimensionMismatch, len(x0))
	}

	m := Live{
		name:          name,
		base:          p,
		params:        p,
		opts:          opts,
		model:         model,
		integ:         integ,
		x0:            x0.Clone(),
		dt:            dt,
		horizon:       horizon,
		stepsPerFrame: max(1, int(0.5/dt)),
		keys:          cohort.ParamNames(),
		style:         newStyles(Themes[0]),
	}
	m.restart()
	return m, nil
}

func (m Live) Init() tea.Cmd { return tick() }

func (m Live) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			return m, tea.Quit
		case " ":
			m.running = !m.running && m.t < m.horizon
		case "r":
			m.params = m.base
			m.rebuild()
		case "tab", "right", "l":
			m.selected = (m.selected + 1) % len(m.keys)
		case "shift+tab", "left", "h":
			m.selected = (m.selected + len(m.keys) - 1) % len(m.keys)
		case "up", "k":
			m.adjust(1.05)
		case "down", "j":
			m.adjust(0.95)
		case "+", "=":
			m.stepsPerFrame *= 2
		case "-", "_":
			m.stepsPerFrame = max(1, m.stepsPerFrame/2)
		case "t":
			m.theme = (m.theme + 1) % len(Themes)
			m.style = newStyles(Themes[m.theme])
		case "?":
			m.showHelp = !m.showHelp
		}
	case TickMsg:
		if m.running {
			m.advance(m.stepsPerFrame)
		}
		return m, tick()
	}
	return m, nil
}

// advance takes up to n steps, stopping at the horizon.
func (m *Live) advance(n int) {
	for range n {
		if m.t >= m.horizon {
			m.running = false
			return
		}
		next := m.integ.Step(m.model, m.state, m.t, m.dt)
		m.model.Constrain(next)
		m.state = next
		m.t += m.dt
		m.record()
	}
}

func (m *Live) record() {
	b, d := m.state[cohort.Biomass], m.state[cohort.DeadWood]
	if b > m.peak {
		m.peak, m.peakTime = b, m.t
	}
	m.biomass = append(m.biomass, b)
	m.deadWood = append(m.deadWood, d)
	if len(m.biomass) > historyCapacity {
		m.biomass = m.biomass[1:]
		m.deadWood = m.deadWood[1:]
	}
}

// adjust scales the selected parameter. A zero value steps to 1 so that
// b_other can be raised from its default.
func (m *Live) adjust(factor float64) {
	key := m.keys[m.selected]
	candidate := m.params
	v := candidate.GetParams()[key]
	next := v * factor
	if v == 0 && factor > 1 {
		next = 1
	}
	if err := candidate.SetParam(key, next); err != nil {
		m.err = err
		return
	}
	prev := m.params
	m.params = candidate
	if !m.rebuild() {
		m.params = prev
	}
}

// rebuild validates the current parameters and restarts the run with them.
// Invalid parameters leave the running model in place.
func (m *Live) rebuild() bool {
	model, err := cohort.NewModel(m.params, m.opts...)
	if err != nil {
		m.err = err
		return false
	}
	m.model = model
	m.err = nil
	m.restart()
	return true
}

func (m *Live) restart() {
	m.state = m.x0.Clone()
	m.t = 0
	m.peak, m.peakTime = m.state[cohort.Biomass], 0
	m.biomass = append(m.biomass[:0], m.state[cohort.Biomass])
	m.deadWood = append(m.deadWood[:0], m.state[cohort.DeadWood])
	m.running = true
}

// Params returns the parameters of the current run.
func (m Live) Params() cohort.Parameters { return m.params }

// Time returns the simulated age of the cohort.
func (m Live) Time() float64 { return m.t }

// State returns a copy of the current pools.
func (m Live) State() dynamo.State { return m.state.Clone() }

func (m Live) Running() bool { return m.running }

func (m Live) Err() error { return m.err }

func (m Live) View() string {
	st := m.style

	var status string
	switch {
	case m.t >= m.horizon:
		status = st.done.Render("DONE")
	case m.running:
		status = st.running.Render("RUNNING")
	default:
		status = st.paused.Render("PAUSED")
	}

	var charts strings.Builder
	if len(m.biomass) > 1 {
		charts.WriteString(st.graph.Render(asciigraph.Plot(m.biomass,
			asciigraph.Height(chartHeight), asciigraph.Width(chartWidth),
			asciigraph.Caption("living biomass B"))))
		charts.WriteString("\n")
		charts.WriteString(st.graph.Render(asciigraph.Plot(m.deadWood,
			asciigraph.Height(chartHeight), asciigraph.Width(chartWidth),
			asciigraph.Caption("dead wood D"))))
	}

	var s strings.Builder
	s.WriteString(st.header.Render(strings.ToUpper(m.name)) + "\n")
	s.WriteString(status + "\n\n")

	row := func(label, value string) {
		s.WriteString(st.label.Render(label) + st.value.Render(value) + "\n")
	}
	row("Age", fmt.Sprintf("%.1f / %.0f yr", m.t, m.horizon))
	row("", ProgressBar(m.t/m.horizon, 20))
	row("B", fmt.Sprintf("%.3f", m.state[cohort.Biomass]))
	row("D", fmt.Sprintf("%.3f", m.state[cohort.DeadWood]))
	row("Peak B", fmt.Sprintf("%.3f @ %.1f", m.peak, m.peakTime))
	row("B_other", fmt.Sprintf("%.2f", m.model.Competitors(m.t)))
	row("Speed", fmt.Sprintf("%d steps/frame", m.stepsPerFrame))
	row("Trend", Sparkline(m.biomass, 20))

	s.WriteString("\nPARAMETERS\n")
	values := m.params.GetParams()
	for i, k := range m.keys {
		line := fmt.Sprintf("%-11s %10.4g", k, values[k])
		if i == m.selected {
			s.WriteString(st.active.Render("> "+line) + "\n")
		} else {
			s.WriteString("  " + st.label.UnsetWidth().Render(line) + "\n")
		}
	}
	if m.err != nil {
		s.WriteString("\n" + st.err.Render(m.err.Error()) + "\n")
	}
	s.WriteString(st.help.Render("SP:Pause R:Reset Q:Quit\nTab:Select ↑↓:Tune +-:Speed\nT:Theme ?:Help"))

	view := lipgloss.JoinHorizontal(lipgloss.Top, charts.String(), st.panel.Render(s.String()))
	if m.showHelp {
		return helpText + "\n" + view
	}
	return view
}

const helpText = `
  Space      Pause/Resume
  R          Restore parameters and restart
  Tab / ←→   Select parameter
  ↑↓ / K J   Tune selected parameter by 5%
  + / -      Double/halve simulated steps per frame
  T          Cycle themes (forest, minimal, ocean)
  ?          Toggle this help
  Q          Quit
`
