package main

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/pieceengine/piece-host/config"
	"github.com/pieceengine/piece-host/host"
	"github.com/pieceengine/piece-host/logbridge"
)

const (
	maxLogLines   = 1000
	logBuffer     = 256
	statsInterval = 100 * time.Millisecond
	headerLines   = 4
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FAFAFA")).
			Background(lipgloss.Color("#7D56F4")).
			Padding(0, 1)

	statStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#87CEEB"))

	infoStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#90EE90"))

	warnStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FFD700"))

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FF6B6B"))

	helpStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#666666"))
)

type interactiveModel struct {
	err      error
	ctx      context.Context
	cancel   context.CancelFunc
	h        *host.Host
	logs     chan logbridge.Message
	dropped  int
	driver   string
	lines    []string
	viewport viewport.Model
	stats    host.Stats
	ready    bool
	stopping bool
}

type logMsg logbridge.Message

type statsMsg time.Time

type loopDoneMsg struct{ err error }

func newInteractiveModel(ctx context.Context, cancel context.CancelFunc, h *host.Host, cfg *config.Config) *interactiveModel {
	m := &interactiveModel{
		ctx:    ctx,
		cancel: cancel,
		h:      h,
		logs:   make(chan logbridge.Message, logBuffer),
		driver: string(cfg.Core.Driver),
	}
	// Native threads must never block on the UI.
	h.Engine().Bridge().Subscribe(func(msg logbridge.Message) {
		select {
		case m.logs <- msg:
		default:
		}
	})
	return m
}

func (m *interactiveModel) Init() tea.Cmd {
	return tea.Batch(m.runLoop, m.waitForLog, tickStats())
}

func (m *interactiveModel) runLoop() tea.Msg {
	return loopDoneMsg{err: m.h.Run(m.ctx)}
}

func (m *interactiveModel) waitForLog() tea.Msg {
	return logMsg(<-m.logs)
}

func tickStats() tea.Cmd {
	return tea.Tick(statsInterval, func(t time.Time) tea.Msg { return statsMsg(t) })
}

func (m *interactiveModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "q":
			m.stopping = true
			m.cancel()
			return m, nil
		case "c":
			m.lines = nil
			m.viewport.SetContent("")
			return m, nil
		}

	case tea.WindowSizeMsg:
		height := msg.Height - headerLines
		if height < 1 {
			height = 1
		}
		if !m.ready {
			m.viewport = viewport.New(msg.Width, height)
			m.ready = true
		} else {
			m.viewport.Width = msg.Width
			m.viewport.Height = height
		}
		m.viewport.SetContent(strings.Join(m.lines, "\n"))
		return m, nil

	case logMsg:
		m.appendLog(logbridge.Message(msg))
		return m, m.waitForLog

	case statsMsg:
		m.stats = m.h.Stats()
		return m, tickStats()

	case loopDoneMsg:
		m.err = msg.err
		m.stats = m.h.Stats()
		return m, tea.Quit
	}

	var cmd tea.Cmd
	m.viewport, cmd = m.viewport.Update(msg)
	return m, cmd
}

func (m *interactiveModel) appendLog(msg logbridge.Message) {
	line := fmt.Sprintf("%s %s %s",
		helpStyle.Render(msg.Time.Format("15:04:05.000")),
		levelStyle(msg.Level).Render(fmt.Sprintf("%-7s", msg.Level)),
		msg.Text)
	m.lines = append(m.lines, line)
	if n := len(m.lines); n > maxLogLines {
		m.dropped += n - maxLogLines
		m.lines = m.lines[n-maxLogLines:]
	}
	if m.ready {
		atBottom := m.viewport.AtBottom()
		m.viewport.SetContent(strings.Join(m.lines, "\n"))
		if atBottom {
			m.viewport.GotoBottom()
		}
	}
}

func levelStyle(l logbridge.Level) lipgloss.Style {
	switch l {
	case logbridge.LevelTrace, logbridge.LevelDebug:
		return helpStyle
	case logbridge.LevelWarning:
		return warnStyle
	case logbridge.LevelError, logbridge.LevelFatal:
		return errorStyle
	default:
		return infoStyle
	}
}

func (m *interactiveModel) View() string {
	if !m.ready {
		return "Starting engine..."
	}

	var b strings.Builder
	b.WriteString(titleStyle.Render("Piece Host"))
	b.WriteString(" ")
	b.WriteString(m.driver)
	b.WriteString("\n")

	s := m.stats
	b.WriteString(statStyle.Render(fmt.Sprintf("%s • engine %s • frames %d • last frame %s • native logs %d",
		s.State, m.h.Engine().Handle(), s.Frames, s.LastFrame.Round(time.Microsecond), s.Logs.Delivered)))
	if s.Logs.Failed > 0 {
		b.WriteString(errorStyle.Render(fmt.Sprintf(" • callback failures %d", s.Logs.Failed)))
	}
	b.WriteString("\n")

	b.WriteString(m.viewport.View())
	b.WriteString("\n")
	if m.stopping {
		b.WriteString(helpStyle.Render("stopping..."))
	} else {
		b.WriteString(helpStyle.Render("↑/↓ scroll • c clear • q quit"))
	}
	return b.String()
}

func runInteractive(cfg *config.Config) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	h, err := host.New(ctx, cfg)
	if err != nil {
		return err
	}
	m := newInteractiveModel(ctx, cancel, h, cfg)

	if err := h.Start(ctx); err != nil {
		return errors.Join(err, h.Stop(context.Background()))
	}

	_, err = tea.NewProgram(m, tea.WithAltScreen()).Run()
	cancel()

	stopCtx, stopCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer stopCancel()
	return errors.Join(err, m.err, h.Stop(stopCtx))
}
