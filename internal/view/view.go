// Package view turns the timeline and ephemeral flags into terminal text and
// decides which input affordances are enabled. Everything here is a pure
// function of its arguments.
package view

import (
	"strings"

	"github.com/charmbracelet/lipgloss"

	"research-chat/internal/domain"
)

const (
	Title          = "🔬 Research AI"
	WelcomeHeading = "How can I help with your research?"
	WelcomeBody    = "Upload a PDF to ask specific questions or search ArXiv for new topics."
	Placeholder    = "Ask a question or search ArXiv..."

	UploadCommand = "/upload"
	QuitCommand   = "/quit"

	userAvatar  = "👤"
	agentAvatar = "🤖"
	thinking    = "● ● ●"
)

// State is everything a render pass needs.
type State struct {
	Events      []domain.TimelineEvent
	Flags       domain.Flags
	Input       string
	SessionHint string
}

var (
	userStyle   = lipgloss.NewStyle().Bold(true)
	agentStyle  = lipgloss.NewStyle()
	mutedStyle  = lipgloss.NewStyle().Faint(true)
	badgeStyle  = lipgloss.NewStyle().Padding(0, 1).Border(lipgloss.RoundedBorder())
	headerStyle = lipgloss.NewStyle().Bold(true)
)

// CanSubmitChat reports whether the send affordance is enabled.
func CanSubmitChat(f domain.Flags, input string) bool {
	return !f.ChatPending && strings.TrimSpace(input) != ""
}

// CanUpload reports whether the document affordance is enabled.
func CanUpload(f domain.Flags) bool {
	return !f.UploadPending
}

// ShouldScroll reports whether the view must jump to the newest event.
func ShouldScroll(prevLen, curLen int) bool {
	return curLen != prevLen
}

// Command recognizes the slash commands typed into the input line. ok is
// false for ordinary chat input.
func Command(line string) (name, arg string, ok bool) {
	line = strings.TrimSpace(line)
	for _, c := range []string{UploadCommand, QuitCommand} {
		if line == c || strings.HasPrefix(line, c+" ") {
			return c, strings.TrimSpace(strings.TrimPrefix(line, c)), true
		}
	}
	return "", "", false
}

// Renderer formats agent text; Markdown may be nil for plain output.
type Renderer struct {
	Markdown func(string) string
}

// Timeline renders the conversation pane.
func (r Renderer) Timeline(st State) string {
	if len(st.Events) == 0 && !st.Flags.ChatPending {
		return headerStyle.Render(WelcomeHeading) + "\n" + mutedStyle.Render(WelcomeBody)
	}

	var b strings.Builder
	for i, ev := range st.Events {
		if i > 0 {
			b.WriteString("\n")
		}
		b.WriteString(r.event(ev))
	}
	if st.Flags.ChatPending {
		if len(st.Events) > 0 {
			b.WriteString("\n")
		}
		b.WriteString(agentAvatar + " " + mutedStyle.Render(thinking))
	}
	return b.String()
}

func (r Renderer) event(ev domain.TimelineEvent) string {
	if ev.Sender == domain.SenderUser {
		return userAvatar + " " + userStyle.Render(ev.Text)
	}
	text := ev.Text
	if r.Markdown != nil {
		text = strings.TrimSpace(r.Markdown(text))
	}
	return agentAvatar + " " + agentStyle.Render(text)
}

// Sidebar renders the document affordance, the ingest status badge and the
// session hint.
func (r Renderer) Sidebar(st State) string {
	lines := []string{headerStyle.Render(Title), "", "Analyze New Paper"}
	if CanUpload(st.Flags) {
		lines = append(lines, "➕ Upload PDF  (/upload <path>)")
	} else {
		lines = append(lines, mutedStyle.Render("⏳ Processing..."))
	}
	if st.Flags.StatusMessage != "" {
		lines = append(lines, badgeStyle.Render(st.Flags.StatusMessage))
	}
	if st.SessionHint != "" {
		lines = append(lines, "", mutedStyle.Render("Session ID: "+st.SessionHint))
	}
	return strings.Join(lines, "\n")
}

// Prompt renders the hint under the input line.
func (r Renderer) Prompt(st State) string {
	switch {
	case st.Flags.ChatPending:
		return mutedStyle.Render("waiting for the agent...")
	case !CanSubmitChat(st.Flags, st.Input):
		return mutedStyle.Render("type a question, Enter to send")
	default:
		return mutedStyle.Render("Enter to send")
	}
}

// Plain renders a single committed event for line-oriented output.
func Plain(ev domain.TimelineEvent) string {
	prefix := "you"
	if ev.Sender == domain.SenderAgent {
		prefix = "agent"
	}
	return prefix + "> " + ev.Text
}
