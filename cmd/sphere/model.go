package main

import (
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/jinzhu/copier"
	orchestration "github.com/koscakluka/ema-sphere/core"
	"github.com/koscakluka/ema-sphere/core/conversations"
	"github.com/koscakluka/ema-sphere/core/credentials"
	"github.com/muesli/reflow/wordwrap"
)

const defaultWidth = 80

var (
	titleStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("212"))
	statusStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
	interimStyle = lipgloss.NewStyle().Italic(true).Foreground(lipgloss.Color("241"))
	userStyle    = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("39"))
	agentStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("212"))
	helpStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	errorStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))

	sphereStyles = map[conversations.SphereState]lipgloss.Style{
		conversations.SphereIdle:      lipgloss.NewStyle().Foreground(lipgloss.Color("245")),
		conversations.SphereListening: lipgloss.NewStyle().Foreground(lipgloss.Color("196")),
		conversations.SphereThinking:  lipgloss.NewStyle().Foreground(lipgloss.Color("220")),
		conversations.SphereSpeaking:  lipgloss.NewStyle().Foreground(lipgloss.Color("42")),
	}
)

type refreshMsg struct{}

type credentialRejectedMsg struct{}

type conversationController interface {
	Activate()
	Connect()
	ClearTranscript()
	Snapshot() orchestration.Snapshot
}

type model struct {
	conversation conversationController
	store        credentials.Store
	snapshot     orchestration.Snapshot

	spinner       spinner.Model
	tokenInput    textinput.Model
	enteringToken bool
	err           error
	width         int
}

func newModel(conversation conversationController, store credentials.Store) model {
	s := spinner.New()
	s.Spinner = spinner.Dot

	input := textinput.New()
	input.Placeholder = "paste access token"
	input.EchoMode = textinput.EchoPassword
	input.EchoCharacter = '•'
	input.CharLimit = 4096

	return model{
		conversation: conversation,
		store:        store,
		snapshot:     conversation.Snapshot(),
		spinner:      s,
		tokenInput:   input,
	}
}

func (m model) Init() tea.Cmd {
	return m.spinner.Tick
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		return m, nil

	case refreshMsg:
		m.snapshot = m.conversation.Snapshot()
		if needsToken(m.snapshot.Status) && !m.enteringToken {
			m.enteringToken = true
			return m, m.tokenInput.Focus()
		}
		return m, nil

	case credentialRejectedMsg:
		m.enteringToken = true
		return m, m.tokenInput.Focus()

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case tea.KeyMsg:
		if m.enteringToken {
			return m.updateTokenEntry(msg)
		}

		switch msg.String() {
		case "ctrl+c", "q":
			return m, tea.Quit
		case " ", "enter":
			m.conversation.Activate()
		case "t":
			m.enteringToken = true
			return m, m.tokenInput.Focus()
		case "c":
			m.conversation.ClearTranscript()
		}
	}

	return m, nil
}

func (m model) updateTokenEntry(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.Type {
	case tea.KeyCtrlC:
		return m, tea.Quit

	case tea.KeyEsc:
		m.enteringToken = false
		m.tokenInput.Reset()
		m.tokenInput.Blur()
		return m, nil

	case tea.KeyEnter:
		token := strings.TrimSpace(m.tokenInput.Value())
		if token == "" {
			return m, nil
		}
		if err := m.store.Set(token); err != nil {
			m.err = err
			return m, nil
		}

		m.err = nil
		m.enteringToken = false
		m.tokenInput.Reset()
		m.tokenInput.Blur()
		m.conversation.Connect()
		return m, nil
	}

	var cmd tea.Cmd
	m.tokenInput, cmd = m.tokenInput.Update(msg)
	return m, cmd
}

func (m model) View() string {
	width := m.width
	if width <= 0 {
		width = defaultWidth
	}

	var b strings.Builder
	b.WriteString(titleStyle.Render("ema sphere"))
	b.WriteString("\n\n")
	b.WriteString(m.renderSphere())
	b.WriteString("  ")
	b.WriteString(statusStyle.Render(m.snapshot.Status))
	b.WriteString("\n")

	if live := strings.TrimSpace(m.snapshot.Committed + " " + m.snapshot.Interim); live != "" {
		b.WriteString(interimStyle.Render(wordwrap.String(live, width-2)))
		b.WriteString("\n")
	}
	b.WriteString("\n")

	for _, line := range transcriptLines(m.snapshot.Transcript) {
		b.WriteString(renderLine(line, width))
		b.WriteString("\n")
	}

	if m.enteringToken {
		b.WriteString("\n")
		b.WriteString(m.tokenInput.View())
		b.WriteString("\n")
		b.WriteString(helpStyle.Render("enter: save token • esc: cancel"))
	} else {
		b.WriteString("\n")
		b.WriteString(helpStyle.Render("space: talk/send • t: change token • c: clear • q: quit"))
	}
	if m.err != nil {
		b.WriteString("\n")
		b.WriteString(errorStyle.Render(m.err.Error()))
	}

	return b.String()
}

func (m model) renderSphere() string {
	glyph := "○"
	switch m.snapshot.Sphere {
	case conversations.SphereListening:
		glyph = "●"
	case conversations.SphereThinking:
		glyph = m.spinner.View()
	case conversations.SphereSpeaking:
		glyph = "◉"
	}
	return sphereStyles[m.snapshot.Sphere].Render(glyph)
}

func needsToken(status string) bool {
	return status == orchestration.StatusNoToken || status == orchestration.StatusTokenRejected
}

type transcriptLine struct {
	Sender    conversations.Sender
	Text      string
	CreatedAt time.Time
}

func transcriptLines(entries []conversations.TranscriptEntry) []transcriptLine {
	lines := make([]transcriptLine, 0, len(entries))
	if err := copier.Copy(&lines, entries); err != nil {
		return nil
	}
	return lines
}

func renderLine(line transcriptLine, width int) string {
	label := agentStyle.Render("ema")
	if line.Sender == conversations.SenderUser {
		label = userStyle.Render("you")
	}

	stamp := helpStyle.Render(line.CreatedAt.Format("15:04"))
	text := wordwrap.String(line.Text, max(width-12, 20))
	text = strings.ReplaceAll(text, "\n", "\n            ")
	return stamp + " " + label + "  " + text
}
