package ui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

type LineKind int

const (
	LineChat LineKind = iota
	LineSelf
	LineSystem
	LineError
)

// ChatLine is one entry in the chat history.
type ChatLine struct {
	Kind LineKind
	At   time.Time
	From string
	Text string
}

// Messages the session feeds into the chat program.
type (
	LineMsg    ChatLine
	MembersMsg int
)

const (
	headerHeight = 1
	footerHeight = 2
)

// ChatModel is the bubbletea model of the room chat.
type ChatModel struct {
	room    string
	self    string
	send    func(text string) error
	members int

	input    textinput.Model
	viewport viewport.Model
	lines    []ChatLine
	quitting bool
}

// NewChatModel creates the chat model. send is called for every line the
// user submits and its error is shown inline.
func NewChatModel(room, self string, send func(text string) error) *ChatModel {
	ti := textinput.New()
	ti.Placeholder = "Say something nice (/quit to leave)"
	ti.CharLimit = 1000
	ti.Prompt = "› "
	ti.PromptStyle = SelfStyle
	ti.Focus()

	return &ChatModel{
		room:     room,
		self:     self,
		send:     send,
		input:    ti,
		viewport: viewport.New(80, 20),
	}
}

func (m *ChatModel) Init() tea.Cmd {
	return textinput.Blink
}

func (m *ChatModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.Type {
		case tea.KeyCtrlC, tea.KeyEsc:
			m.quitting = true
			return m, tea.Quit
		case tea.KeyEnter:
			if cmd := m.submit(); cmd != nil {
				return m, cmd
			}
		}

	case tea.WindowSizeMsg:
		m.viewport.Width = msg.Width
		m.viewport.Height = max(1, msg.Height-headerHeight-footerHeight)
		m.input.Width = max(10, msg.Width-4)
		m.refresh()

	case LineMsg:
		m.appendLine(ChatLine(msg))

	case MembersMsg:
		m.members = int(msg)
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	cmds = append(cmds, cmd)

	m.viewport, cmd = m.viewport.Update(msg)
	cmds = append(cmds, cmd)

	return m, tea.Batch(cmds...)
}

func (m *ChatModel) submit() tea.Cmd {
	text := strings.TrimSpace(m.input.Value())
	m.input.Reset()
	if text == "" {
		return nil
	}

	if text == "/quit" {
		m.quitting = true
		return tea.Quit
	}

	if err := m.send(text); err != nil {
		m.appendLine(ChatLine{Kind: LineError, At: time.Now(), Text: err.Error()})
		return nil
	}
	m.appendLine(ChatLine{Kind: LineSelf, At: time.Now(), From: m.self, Text: text})
	return nil
}

func (m *ChatModel) appendLine(l ChatLine) {
	if l.At.IsZero() {
		l.At = time.Now()
	}
	m.lines = append(m.lines, l)
	m.refresh()
}

func (m *ChatModel) refresh() {
	rendered := make([]string, len(m.lines))
	for i, l := range m.lines {
		rendered[i] = FormatLine(l)
	}
	m.viewport.SetContent(lipgloss.NewStyle().Width(m.viewport.Width).Render(strings.Join(rendered, "\n")))
	m.viewport.GotoBottom()
}

// Lines returns the chat history.
func (m *ChatModel) Lines() []ChatLine {
	return m.lines
}

func (m *ChatModel) View() string {
	if m.quitting {
		return ""
	}

	header := StatusStyle.Render(fmt.Sprintf("%s %s", IconRoom, m.room)) +
		MutedStyle.Render(fmt.Sprintf("  %d connected", m.members))

	return fmt.Sprintf("%s\n%s\n\n%s", header, m.viewport.View(), m.input.View())
}

// FormatLine renders one chat line.
func FormatLine(l ChatLine) string {
	ts := MutedStyle.Render(l.At.Format("15:04"))
	switch l.Kind {
	case LineSelf:
		return fmt.Sprintf("%s %s %s", ts, SelfStyle.Render(l.From+":"), l.Text)
	case LineSystem:
		return fmt.Sprintf("%s %s", ts, MutedStyle.Render("· "+l.Text))
	case LineError:
		return fmt.Sprintf("%s %s", ts, ErrorStyle.Render(IconError+" "+l.Text))
	default:
		return fmt.Sprintf("%s %s %s", ts, PeerStyle.Render(l.From+":"), l.Text)
	}
}

// Chat runs the chat model as a bubbletea program.
type Chat struct {
	program *tea.Program
	model   *ChatModel
}

func NewChat(room, self string, send func(text string) error) *Chat {
	model := NewChatModel(room, self, send)
	return &Chat{
		model:   model,
		program: tea.NewProgram(model, tea.WithAltScreen()),
	}
}

// Run blocks until the user leaves or Quit is called.
func (c *Chat) Run() error {
	_, err := c.program.Run()
	return err
}

// Post adds a line to the history. Safe from any goroutine.
func (c *Chat) Post(l ChatLine) {
	c.program.Send(LineMsg(l))
}

// SetMembers updates the connected member count.
func (c *Chat) SetMembers(n int) {
	c.program.Send(MembersMsg(n))
}

func (c *Chat) Quit() {
	c.program.Quit()
}
