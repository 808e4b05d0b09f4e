// Package tui is the interactive terminal front-end. It owns no conversation
// state: every frame is rendered from the orchestrator's timeline and flags.
package tui

import (
	"context"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"

	"research-chat/internal/domain"
	"research-chat/internal/usecase"
	"research-chat/internal/view"
)

const sidebarWidth = 30

// Orchestrator is the session core driven by the UI.
type Orchestrator interface {
	SubmitChatTurn(ctx context.Context, rawInput string) (bool, error)
	SubmitDocument(ctx context.Context, doc usecase.Document) (bool, error)
	Flags() domain.Flags
	Snapshot() []domain.TimelineEvent
	Subscribe() (<-chan struct{}, func())
}

// DocumentOpener turns a path typed by the user into an upload.
type DocumentOpener func(path string) (usecase.Document, error)

// changedMsg is delivered whenever the orchestrator reports a change.
type changedMsg struct{}

type Model struct {
	ctx     context.Context
	orch    Orchestrator
	open    DocumentOpener
	changes <-chan struct{}
	stop    func()

	input    textinput.Model
	viewport viewport.Model
	spinner  spinner.Model
	renderer view.Renderer
	markdown bool

	sessionHint string
	notice      string
	events      []domain.TimelineEvent
	flags       domain.Flags
	spinning    bool
	width       int
	height      int
}

type Option func(*Model)

// WithMarkdown renders agent replies through glamour.
func WithMarkdown() Option {
	return func(m *Model) { m.markdown = true }
}

func WithSessionHint(hint string) Option {
	return func(m *Model) { m.sessionHint = hint }
}

func New(ctx context.Context, orch Orchestrator, open DocumentOpener, opts ...Option) Model {
	ti := textinput.New()
	ti.Placeholder = view.Placeholder
	ti.Prompt = "› "
	ti.Focus()

	sp := spinner.New(spinner.WithSpinner(spinner.Dot))

	// Letter bindings would steal keystrokes from the input line.
	vp := viewport.New(80, 20)
	vp.KeyMap = viewport.KeyMap{
		PageUp:       key.NewBinding(key.WithKeys("pgup")),
		PageDown:     key.NewBinding(key.WithKeys("pgdown")),
		HalfPageUp:   key.NewBinding(key.WithKeys("ctrl+u")),
		HalfPageDown: key.NewBinding(key.WithKeys("ctrl+d")),
	}

	changes, stop := orch.Subscribe()
	m := Model{
		ctx:      ctx,
		orch:     orch,
		open:     open,
		changes:  changes,
		stop:     stop,
		input:    ti,
		viewport: vp,
		spinner:  sp,
		width:    80 + sidebarWidth,
		height:   24,
	}
	for _, opt := range opts {
		opt(&m)
	}
	m.sync()
	return m
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(textinput.Blink, m.waitForChange())
}

func (m Model) waitForChange() tea.Cmd {
	ch := m.changes
	return func() tea.Msg {
		if _, ok := <-ch; !ok {
			return nil
		}
		return changedMsg{}
	}
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.Type {
		case tea.KeyCtrlC, tea.KeyEsc:
			return m.quit()
		case tea.KeyEnter:
			return m.handleEnter()
		}
		var cmd tea.Cmd
		km := m.viewport.KeyMap
		if key.Matches(msg, km.PageUp, km.PageDown, km.HalfPageUp, km.HalfPageDown) {
			m.viewport, cmd = m.viewport.Update(msg)
			return m, cmd
		}
		m.input, cmd = m.input.Update(msg)
		return m, cmd

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.layout()
		m.sync()
		return m, nil

	case changedMsg:
		cmd := m.sync()
		return m, tea.Batch(m.waitForChange(), cmd)

	case spinner.TickMsg:
		if !m.busy() {
			m.spinning = false
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}

	var cmd tea.Cmd
	m.viewport, cmd = m.viewport.Update(msg)
	return m, cmd
}

func (m Model) quit() (tea.Model, tea.Cmd) {
	if m.stop != nil {
		m.stop()
	}
	return m, tea.Quit
}

func (m Model) handleEnter() (tea.Model, tea.Cmd) {
	raw := m.input.Value()

	if name, arg, ok := view.Command(raw); ok {
		if name == view.QuitCommand {
			return m.quit()
		}
		m.input.SetValue("")
		cmd := m.upload(arg)
		return m, cmd
	}

	if !view.CanSubmitChat(m.flags, raw) {
		return m, nil
	}
	m.input.SetValue("")
	m.notice = ""
	if _, err := m.orch.SubmitChatTurn(m.ctx, raw); err != nil {
		m.notice = err.Error()
	}
	cmd := m.sync()
	return m, cmd
}

func (m *Model) upload(path string) tea.Cmd {
	if !view.CanUpload(m.flags) {
		m.notice = "an upload is already in progress"
		return nil
	}
	if path == "" {
		m.notice = "usage: /upload <path/to/paper.pdf>"
		return nil
	}
	doc, err := m.open(path)
	if err != nil {
		m.notice = err.Error()
		return nil
	}
	m.notice = ""
	if _, err := m.orch.SubmitDocument(m.ctx, doc); err != nil {
		m.notice = err.Error()
	}
	return m.sync()
}

// sync pulls the latest snapshot and flags, refreshes the viewport and
// returns a spinner command when a call just became pending.
func (m *Model) sync() tea.Cmd {
	events := m.orch.Snapshot()
	prev := len(m.events)
	m.events = events
	m.flags = m.orch.Flags()

	m.viewport.SetContent(m.renderer.Timeline(m.state()))
	if view.ShouldScroll(prev, len(events)) {
		m.viewport.GotoBottom()
	}

	if m.busy() && !m.spinning {
		m.spinning = true
		return m.spinner.Tick
	}
	return nil
}

func (m Model) busy() bool {
	return m.flags.ChatPending || m.flags.UploadPending
}

func (m Model) state() view.State {
	return view.State{
		Events:      m.events,
		Flags:       m.flags,
		Input:       m.input.Value(),
		SessionHint: m.sessionHint,
	}
}

func (m *Model) layout() {
	mainWidth := m.width - sidebarWidth - 2
	if mainWidth < 20 {
		mainWidth = 20
	}
	height := m.height - 4
	if height < 3 {
		height = 3
	}
	m.viewport.Width = mainWidth
	m.viewport.Height = height
	m.input.Width = mainWidth - 4

	if m.markdown {
		r, err := glamour.NewTermRenderer(glamour.WithAutoStyle(), glamour.WithWordWrap(mainWidth-4))
		if err == nil {
			m.renderer.Markdown = func(s string) string {
				out, err := r.Render(s)
				if err != nil {
					return s
				}
				return out
			}
		}
	}
}

func (m Model) View() string {
	st := m.state()

	hint := m.renderer.Prompt(st)
	if m.flags.ChatPending {
		hint = m.spinner.View() + " " + hint
	}
	if m.notice != "" {
		hint = m.notice
	}

	main := lipgloss.JoinVertical(lipgloss.Left,
		m.viewport.View(),
		m.input.View(),
		hint,
	)
	sidebar := lipgloss.NewStyle().
		Width(sidebarWidth).
		PaddingRight(2).
		Render(m.renderer.Sidebar(st))
	return lipgloss.JoinHorizontal(lipgloss.Top, sidebar, main)
}
