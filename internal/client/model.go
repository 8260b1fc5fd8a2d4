// Package client is a terminal chat client for the websocket gateway.
//
// Lines typed into the input are posted to the current channel. Lines
// starting with ":" are client commands:
//
//	:join <channel>        switch the channel messages are posted to
//	:react <id> <emoji>    react to a message
//	:up :down :yes :no     react to the latest prompt that invites reactions
//	:help                  list commands
//	:quit                  disconnect
//
// Direct messages from the bot arrive on "dm:<your id>" and are shown
// regardless of the current channel.
package client

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/x/ansi"

	"github.com/lkmninja/aaflbot/internal/gateway"
	"github.com/lkmninja/aaflbot/internal/gateway/wsgate"
)

const maxLines = 500

// reactionAliases map short names to the emoji the bot asks for.
var reactionAliases = map[string]string{
	"up":   gateway.ThumbsUp,
	"down": gateway.ThumbsDown,
	"yes":  gateway.Accept,
	"no":   gateway.Decline,
}

type frameMsg wsgate.Frame

type errMsg struct{ err error }

// Model is the Bubbletea model for the chat client.
type Model struct {
	t       Transport
	input   textinput.Model
	channel string
	me      *gateway.Member

	lines      []string
	lastPrompt string
	status     string
	statusErr  bool

	width    int
	height   int
	quitting bool
	err      error
}

// New creates a client model posting to channel.
func New(t Transport, channel string) Model {
	ti := textinput.New()
	ti.Placeholder = "message, or :help"
	ti.Focus()
	ti.CharLimit = 2000
	ti.Width = 60

	return Model{
		t:       t,
		input:   ti,
		channel: channel,
		status:  "Connecting...",
	}
}

// Run starts the client program and blocks until the user quits, the
// connection drops or ctx is done. The transport is closed on return.
func Run(ctx context.Context, t Transport, channel string, opts ...tea.ProgramOption) error {
	opts = append([]tea.ProgramOption{tea.WithAltScreen(), tea.WithContext(ctx)}, opts...)
	final, err := tea.NewProgram(New(t, channel), opts...).Run()
	_ = t.Close()
	if err != nil {
		return err
	}
	if m, ok := final.(Model); ok && m.err != nil {
		return m.err
	}
	return nil
}

func receive(t Transport) tea.Cmd {
	return func() tea.Msg {
		f, err := t.Receive()
		if err != nil {
			return errMsg{err}
		}
		return frameMsg(f)
	}
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(textinput.Blink, receive(m.t))
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.input.Width = max(msg.Width-4, 10)
		return m, nil

	case tea.KeyMsg:
		switch msg.Type {
		case tea.KeyCtrlC, tea.KeyEsc:
			m.quitting = true
			return m, tea.Quit
		case tea.KeyEnter:
			line := strings.TrimSpace(m.input.Value())
			m.input.Reset()
			return m.submit(line)
		}

	case frameMsg:
		m.handleFrame(wsgate.Frame(msg))
		return m, receive(m.t)

	case errMsg:
		m.err = msg.err
		m.quitting = true
		return m, tea.Quit
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

// submit handles one line of input.
func (m Model) submit(line string) (tea.Model, tea.Cmd) {
	if line == "" {
		return m, nil
	}
	if !strings.HasPrefix(line, ":") {
		m.send(wsgate.Frame{Type: wsgate.FrameMessage, Channel: m.channel, Text: line})
		return m, nil
	}

	fields := strings.Fields(strings.TrimPrefix(line, ":"))
	if len(fields) == 0 {
		return m, nil
	}
	switch name := fields[0]; name {
	case "quit", "q":
		m.quitting = true
		return m, tea.Quit
	case "help":
		m.appendLines(helpLines()...)
	case "join":
		if len(fields) != 2 {
			m.setStatus("usage: :join <channel>", true)
			break
		}
		m.channel = fields[1]
		m.setStatus("Posting to #"+m.channel, false)
	case "react":
		if len(fields) != 3 {
			m.setStatus("usage: :react <id> <emoji>", true)
			break
		}
		m.react(fields[1], fields[2])
	default:
		if _, ok := reactionAliases[name]; ok {
			if m.lastPrompt == "" {
				m.setStatus("nothing to react to", true)
				break
			}
			m.react(m.lastPrompt, name)
			break
		}
		m.setStatus("unknown command :"+name, true)
	}
	return m, nil
}

func (m *Model) react(id, emoji string) {
	if alias, ok := reactionAliases[emoji]; ok {
		emoji = alias
	}
	if m.send(wsgate.Frame{Type: wsgate.FrameReact, MessageID: id, Emoji: emoji}) {
		m.setStatus("Reacted "+emoji, false)
	}
}

func (m *Model) send(f wsgate.Frame) bool {
	if err := m.t.Send(f); err != nil {
		m.setStatus("send failed: "+err.Error(), true)
		return false
	}
	return true
}

func (m *Model) handleFrame(f wsgate.Frame) {
	switch f.Type {
	case wsgate.FrameHello:
		m.me = f.Member
		if m.me != nil {
			m.setStatus("Connected as "+m.me.DisplayName(), false)
		}
	case wsgate.FrameDelivery:
		m.appendLines(formatDelivery(f, m.me))
		if len(f.Allowed) > 0 {
			m.lastPrompt = f.ID
		}
	case wsgate.FrameError:
		m.appendLines(errorStyle.Render("! " + f.Error))
	}
}

func (m *Model) appendLines(lines ...string) {
	m.lines = append(m.lines, lines...)
	if over := len(m.lines) - maxLines; over > 0 {
		m.lines = m.lines[over:]
	}
}

func (m *Model) setStatus(s string, isErr bool) {
	m.status = s
	m.statusErr = isErr
}

func (m Model) View() string {
	if m.quitting {
		return ""
	}

	who := "connecting"
	if m.me != nil {
		who = m.me.DisplayName()
	}
	header := headerStyle.Render(fmt.Sprintf("aaflbot · #%s · %s", m.channel, who))

	visible := m.lines
	if m.height > 0 {
		if room := m.height - 4; room < len(visible) {
			visible = visible[max(len(visible)-room, 0):]
		}
	}

	if m.width > 0 {
		fitted := make([]string, len(visible))
		for i, line := range visible {
			fitted[i] = fitWidth(line, m.width)
		}
		visible = fitted
	}

	status := mutedStyle.Render(m.status)
	if m.statusErr {
		status = errorStyle.Render(m.status)
	}

	return lipgloss.JoinVertical(lipgloss.Left,
		header,
		strings.Join(visible, "\n"),
		status,
		m.input.View(),
	)
}

// fitWidth truncates every row of a styled line to width columns so long
// deliveries don't wrap and push the input off screen.
func fitWidth(line string, width int) string {
	rows := strings.Split(line, "\n")
	for i, row := range rows {
		if lipgloss.Width(row) > width {
			rows[i] = ansi.Truncate(row, width, "…")
		}
	}
	return strings.Join(rows, "\n")
}

// formatDelivery renders one delivered message as a log line.
func formatDelivery(f wsgate.Frame, me *gateway.Member) string {
	author := f.Author
	if me != nil && f.Author == me.ID {
		author = "you"
	}
	var b strings.Builder
	if gateway.IsDirect(f.Channel) {
		b.WriteString(directStyle.Render("[dm]"))
	} else {
		b.WriteString(mutedStyle.Render("[#" + f.Channel + "]"))
	}
	b.WriteString(" ")
	if len(f.Allowed) > 0 {
		b.WriteString(botStyle.Render(author + ":"))
	} else {
		b.WriteString(authorStyle.Render(author + ":"))
	}
	b.WriteString(" ")
	b.WriteString(f.Text)
	if len(f.Allowed) > 0 {
		b.WriteString(mutedStyle.Render(fmt.Sprintf("  (%s · react with %s)", f.ID, strings.Join(f.Allowed, " "))))
	}
	return b.String()
}

func helpLines() []string {
	return []string{
		mutedStyle.Render(":join <channel>      switch channel"),
		mutedStyle.Render(":react <id> <emoji>  react to a message"),
		mutedStyle.Render(":up :down :yes :no   react to the latest prompt"),
		mutedStyle.Render(":quit                disconnect"),
	}
}
