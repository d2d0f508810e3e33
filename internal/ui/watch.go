package ui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/bnema/wayidle/internal/watch"
)

const maxEventLines = 8

type tickMsg time.Time

// WatchModel shows the live idle state, polling a watcher on every tick
type WatchModel struct {
	watcher *watch.Watcher
	timeout time.Duration
	spinner spinner.Model

	idle    bool
	seconds uint64
	paused  bool
	events  []watch.Event
	err     error
	width   int
}

// NewWatchModel creates a model polling w. timeout is only displayed.
func NewWatchModel(w *watch.Watcher, timeout time.Duration) *WatchModel {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = SpinnerStyle

	return &WatchModel{
		watcher: w,
		timeout: timeout,
		spinner: s,
	}
}

// Err returns the error that stopped the model, if any
func (m *WatchModel) Err() error {
	return m.err
}

func (m *WatchModel) tick() tea.Cmd {
	return tea.Tick(m.watcher.Interval(), func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func (m *WatchModel) Init() tea.Cmd {
	m.poll()
	if m.err != nil {
		return tea.Quit
	}
	return tea.Batch(m.spinner.Tick, m.tick())
}

func (m *WatchModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "esc", "ctrl+c":
			return m, tea.Quit
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width

	case tickMsg:
		m.poll()
		if m.err != nil {
			return m, tea.Quit
		}
		return m, m.tick()

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}
	return m, nil
}

func (m *WatchModel) poll() {
	events, err := m.watcher.Poll()
	if err != nil {
		m.err = err
		return
	}

	m.idle = m.watcher.Idle()
	m.seconds = m.watcher.IdleSeconds()
	m.paused = m.watcher.Paused()

	m.events = append(m.events, events...)
	if len(m.events) > maxEventLines {
		m.events = m.events[len(m.events)-maxEventLines:]
	}
}

func (m *WatchModel) View() string {
	var b strings.Builder

	b.WriteString(TitleStyle.Render("wayidle"))
	b.WriteString("\n\n")

	if m.err != nil {
		b.WriteString(ErrorStyle.Render(IconError + " " + m.err.Error()))
		b.WriteString("\n")
		return b.String()
	}

	b.WriteString(m.spinner.View() + " " + FormatIdleStatus(m.idle, m.seconds))
	if m.paused {
		b.WriteString("  " + SubtleStyle.Render(IconPause+" paused"))
	}
	b.WriteString("\n")
	b.WriteString(SubtleStyle.Render(fmt.Sprintf("Compositor timeout: %s", m.timeout)))
	b.WriteString("\n")

	if len(m.events) > 0 {
		width := m.width
		if width <= 0 || width > 40 {
			width = 40
		}
		b.WriteString("\n" + CreateSeparator(width, "─") + "\n")
		for _, ev := range m.events {
			line := fmt.Sprintf("%s  %-8s %s", ev.At.Format("15:04:05"), ev.Kind, FormatSeconds(ev.IdleSeconds))
			b.WriteString(TextStyle.Render(line) + "\n")
		}
	}

	b.WriteString("\n" + FormatControl("q", "Quit") + "\n")
	return b.String()
}
