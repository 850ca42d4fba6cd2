// Package ui renders build progress in the terminal.
package ui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-runewidth"

	"lgen/internal/buildpipeline"
)

const statusWidth = 12

var (
	titleStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("7"))
	doneStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("2"))
	errorStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("1"))
	workingStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("6"))
	idleStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("7"))
	faintStyle   = lipgloss.NewStyle().Faint(true)
)

type unit struct {
	path    string
	stage   buildpipeline.Stage
	status  buildpipeline.Status
	elapsed time.Duration
	err     error
}

// label is the word shown in the status column.
func (u *unit) label() string {
	switch u.status {
	case buildpipeline.StatusWorking:
		return stageVerb(u.stage)
	case "":
		return "queued"
	default:
		return string(u.status)
	}
}

func (u *unit) progress() float64 {
	if u.status.Finished() {
		return 1
	}
	return u.stage.Progress()
}

type progressModel struct {
	title   string
	events  <-chan buildpipeline.Event
	spinner spinner.Model
	bar     progress.Model
	units   []*unit
	byPath  map[string]*unit
	phase   string
	width   int
	done    bool
}

type eventMsg buildpipeline.Event
type doneMsg struct{}

// NewProgressModel returns a Bubble Tea model that follows the events of a
// build over files until events is closed.
func NewProgressModel(title string, files []string, events <-chan buildpipeline.Event) tea.Model {
	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = workingStyle

	bar := progress.New(progress.WithDefaultGradient())
	bar.Width = 76

	m := &progressModel{
		title:   title,
		events:  events,
		spinner: sp,
		bar:     bar,
		byPath:  make(map[string]*unit, len(files)),
		width:   80,
	}
	for _, file := range files {
		u := &unit{path: file, status: buildpipeline.StatusQueued}
		m.units = append(m.units, u)
		m.byPath[file] = u
	}
	return m
}

func (m *progressModel) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, m.next())
}

func (m *progressModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case eventMsg:
		return m, tea.Batch(m.apply(buildpipeline.Event(msg)), m.next())
	case doneMsg:
		m.done = true
		return m, tea.Quit
	case spinner.TickMsg:
		if m.done {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	case tea.WindowSizeMsg:
		if msg.Width > 0 {
			m.width = msg.Width
			m.bar.Width = msg.Width - 4
		}
		return m, nil
	case progress.FrameMsg:
		bar, cmd := m.bar.Update(msg)
		m.bar = bar.(progress.Model)
		return m, cmd
	}
	return m, nil
}

func (m *progressModel) View() string {
	if len(m.units) == 0 {
		return ""
	}
	finished := 0
	for _, u := range m.units {
		if u.status.Finished() {
			finished++
		}
	}
	header := fmt.Sprintf("%s [%d/%d]", m.title, finished, len(m.units))
	if m.phase != "" {
		header += " (" + m.phase + ")"
	}
	if m.done {
		header = "done: " + header
	} else {
		header = m.spinner.View() + " " + header
	}

	var b strings.Builder
	b.WriteString(titleStyle.Render(header))
	b.WriteString("\n\n")

	nameWidth := max(m.width-statusWidth-14, 20)
	for _, u := range m.units {
		label := u.label()
		fmt.Fprintf(&b, "  %s %s", statusStyle(u.status).Render(fmt.Sprintf("%*s", statusWidth, label)), truncate(u.path, nameWidth))
		if u.status == buildpipeline.StatusDone && u.elapsed > 0 {
			b.WriteString(faintStyle.Render(fmt.Sprintf(" %s", u.elapsed.Round(time.Millisecond))))
		}
		b.WriteString("\n")
		if u.err != nil {
			b.WriteString(errorStyle.Render(fmt.Sprintf("%*s %s", statusWidth+2, "", truncate(u.err.Error(), nameWidth))))
			b.WriteString("\n")
		}
	}

	b.WriteString("\n")
	if m.done {
		b.WriteString(m.bar.ViewAs(1.0))
	} else {
		b.WriteString(m.bar.View())
	}
	b.WriteString("\n")
	return b.String()
}

func (m *progressModel) next() tea.Cmd {
	return func() tea.Msg {
		ev, ok := <-m.events
		if !ok {
			return doneMsg{}
		}
		return eventMsg(ev)
	}
}

func (m *progressModel) apply(ev buildpipeline.Event) tea.Cmd {
	if ev.File == "" {
		if ev.Status == buildpipeline.StatusWorking {
			m.phase = stageVerb(ev.Stage)
		}
		return nil
	}
	u, ok := m.byPath[ev.File]
	if !ok || u.status.Finished() {
		return nil
	}
	u.stage, u.status = ev.Stage, ev.Status
	if ev.Status == buildpipeline.StatusError {
		u.err = ev.Err
	}
	u.elapsed += ev.Elapsed
	return m.bar.SetPercent(m.percent())
}

// percent weighs every unit equally.
func (m *progressModel) percent() float64 {
	if len(m.units) == 0 {
		return 0
	}
	total := 0.0
	for _, u := range m.units {
		total += u.progress()
	}
	return total / float64(len(m.units))
}

func stageVerb(stage buildpipeline.Stage) string {
	switch stage {
	case buildpipeline.StageLoad:
		return "loading"
	case buildpipeline.StageCodegen:
		return "generating"
	case buildpipeline.StageEmit:
		return "emitting"
	case buildpipeline.StageObject:
		return "compiling"
	case buildpipeline.StageRun:
		return "running"
	default:
		return string(stage)
	}
}

func statusStyle(status buildpipeline.Status) lipgloss.Style {
	switch status {
	case buildpipeline.StatusDone:
		return doneStyle
	case buildpipeline.StatusError:
		return errorStyle
	case buildpipeline.StatusWorking:
		return workingStyle
	default:
		return idleStyle
	}
}

func truncate(value string, width int) string {
	if width <= 0 || runewidth.StringWidth(value) <= width {
		return value
	}
	if width <= 3 {
		return runewidth.Truncate(value, width, "")
	}
	return runewidth.Truncate(value, width, "...")
}
