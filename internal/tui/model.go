package tui

import (
	"context"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"docchat/internal/domain"
	"docchat/internal/textutil"
)

// Title is shown in the header line.
const Title = "RAG Chatbot"

// ChatPort answers one message given the prior conversation.
type ChatPort interface {
	Respond(ctx context.Context, msg domain.Turn, history []domain.Turn) string
}

// replyMsg carries the dispatcher's answer back into the update loop.
type replyMsg struct {
	question string
	answer   string
}

// Model is the Bubble Tea model for the chat surface. It owns the
// conversation history and hands a copy to the port on every send.
type Model struct {
	ctx      context.Context
	port     ChatPort
	input    textinput.Model
	viewport viewport.Model
	spinner  spinner.Model
	history  []domain.Turn
	summary  string
	status   string
	width    int
	pending  bool
	ready    bool
}

// New creates a chat model. summary and status fill the header and footer.
func New(ctx context.Context, port ChatPort, summary, status string) Model {
	ti := textinput.New()
	ti.Prompt = "> "
	ti.Placeholder = "Ask about the documents and press Enter"
	ti.Focus()
	ti.CharLimit = 0
	sp := spinner.New()
	sp.Spinner = spinner.Dot
	return Model{
		ctx:      ctx,
		port:     port,
		input:    ti,
		viewport: viewport.New(0, 0),
		spinner:  sp,
		summary:  summary,
		status:   status,
	}
}

// Init starts the cursor blink.
func (m Model) Init() tea.Cmd { return textinput.Blink }

// History returns the conversation so far.
func (m Model) History() []domain.Turn { return m.history }

// Update handles key, window and reply events.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.ready = true
		m.width = msg.Width
		_, th := transcriptBoxStyle.GetFrameSize()
		_, ih := inputBoxStyle.GetFrameSize()
		reserved := 2 + 1 + (ih + 1) + th // header + summary, status, input box
		m.viewport.Width = max(20, msg.Width-4)
		m.viewport.Height = max(3, msg.Height-reserved)
		m.refresh()
		return m, nil
	case replyMsg:
		m.pending = false
		m.history = append(m.history,
			domain.Turn{Role: domain.RoleUser, Content: msg.question},
			domain.Turn{Role: domain.RoleAssistant, Content: msg.answer},
		)
		m.status = "Ready."
		m.refresh()
		return m, nil
	case spinner.TickMsg:
		if !m.pending {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		m.refresh()
		return m, cmd
	case tea.KeyMsg:
		if msg.Type == tea.KeyCtrlC || msg.Type == tea.KeyCtrlD || msg.Type == tea.KeyEsc {
			return m, tea.Quit
		}
		switch msg.String() {
		case "enter":
			q := strings.TrimSpace(m.input.Value())
			if q == "" || m.pending {
				return m, nil
			}
			m.input.Reset()
			m.pending = true
			m.status = "Thinking..."
			m.refresh()
			return m, tea.Batch(m.send(q), m.spinner.Tick)
		case "pgup", "pgdown":
			var cmd tea.Cmd
			m.viewport, cmd = m.viewport.Update(msg)
			return m, cmd
		}
	}
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

// send runs the dispatcher off the update loop with a snapshot of history.
func (m Model) send(question string) tea.Cmd {
	history := append([]domain.Turn(nil), m.history...)
	port, ctx := m.port, m.ctx
	return func() tea.Msg {
		answer := port.Respond(ctx, domain.Turn{Role: domain.RoleUser, Content: question}, history)
		return replyMsg{question: question, answer: answer}
	}
}

// View renders the header, transcript, input and status line.
func (m Model) View() string {
	if !m.ready {
		return "Loading..."
	}
	header := titleStyle.Render(Title)
	summary := oneLine(summaryStyle, m.summary, m.width)
	transcript := transcriptBoxStyle.Render(m.viewport.View())
	input := inputBoxStyle.Render(m.input.View())
	status := oneLine(statusStyle, m.status, m.width)
	return header + "\n" + summary + "\n" + transcript + "\n" + input + "\n" + status
}

// oneLine collapses whitespace in s and clips it to width cells.
func oneLine(style lipgloss.Style, s string, width int) string {
	return style.MaxWidth(max(1, width)).MaxHeight(1).Render(strings.Join(strings.Fields(s), " "))
}

func (m *Model) refresh() {
	m.viewport.SetContent(m.renderTranscript())
	m.viewport.GotoBottom()
}

func (m Model) renderTranscript() string {
	if len(m.history) == 0 && !m.pending {
		return "No messages yet."
	}
	wrap := lipgloss.NewStyle().Width(max(10, m.viewport.Width))
	var b strings.Builder
	lastQuestion := ""
	for _, t := range m.history {
		switch t.Role {
		case domain.RoleUser:
			lastQuestion = t.Content
			b.WriteString(userStyle.Render("You"))
			b.WriteString("\n")
			b.WriteString(wrap.Render(t.Content))
		default:
			b.WriteString(botStyle.Render("Assistant"))
			b.WriteString("\n")
			b.WriteString(wrap.Render(highlightBestSentence(t.Content, lastQuestion)))
		}
		b.WriteString("\n\n")
	}
	if m.pending {
		b.WriteString(m.spinner.View() + " thinking")
	}
	return strings.TrimRight(b.String(), "\n")
}

var (
	titleStyle         = lipgloss.NewStyle().Bold(true)
	summaryStyle       = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	statusStyle        = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	userStyle          = lipgloss.NewStyle().Foreground(lipgloss.Color("12")).Bold(true)
	botStyle           = lipgloss.NewStyle().Foreground(lipgloss.Color("13")).Bold(true)
	transcriptBoxStyle = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
	inputBoxStyle      = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
	highlightStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("11")).Bold(true)
)

// highlightBestSentence emphasises the sentence of text sharing the most
// words with query.
func highlightBestSentence(text, query string) string {
	qTokens := textutil.TermSet(query)
	sentences := textutil.Sentences(text)
	if len(qTokens) == 0 || len(sentences) < 2 {
		return text
	}
	bestIdx, bestScore := 0, 0
	for i, s := range sentences {
		score := 0
		for t := range textutil.TermSet(s) {
			if _, ok := qTokens[t]; ok && !textutil.IsStopword(t) {
				score++
			}
		}
		if score > bestScore {
			bestIdx, bestScore = i, score
		}
	}
	if bestScore == 0 {
		return text
	}
	for i := range sentences {
		sent := strings.TrimSpace(sentences[i])
		if i == bestIdx {
			sent = highlightStyle.Render(sent)
		}
		sentences[i] = sent
	}
	return strings.Join(sentences, " ")
}
