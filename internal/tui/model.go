// Package tui is an interactive terminal chat over the Q&A pipeline.
package tui

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/hyperjump/newsqa/internal/models"
)

const generateCommand = "/generate"

// Port is the subset of the pipeline the chat uses.
type Port interface {
	Search(ctx context.Context, req models.SearchRequest) (*models.SearchResponse, error)
	Generate(ctx context.Context, req models.GenerateRequest) (*models.GenerateResponse, error)
}

// answerMsg carries the result of a background request.
type answerMsg struct {
	prompt  string
	pairs   []models.QAPair
	source  string
	outcome models.Outcome
	err     error
	elapsed time.Duration
}

// Model is the Bubble Tea model for the chat.
type Model struct {
	service  Port
	timeout  time.Duration
	input    textinput.Model
	viewport viewport.Model
	history  []string
	status   string
	busy     bool
	ready    bool
}

// New creates a chat model. Each request is bounded by timeout.
func New(service Port, timeout time.Duration) Model {
	ti := textinput.New()
	ti.Prompt = "? "
	ti.Placeholder = "Ask about the news, or " + generateCommand + " <topic>"
	ti.Focus()
	ti.CharLimit = models.MaxQueryLength
	if timeout <= 0 {
		timeout = 90 * time.Second
	}
	return Model{
		service:  service,
		timeout:  timeout,
		input:    ti,
		viewport: viewport.New(0, 0),
		status:   "Ready. Enter sends, Ctrl+C quits.",
	}
}

// Init starts the cursor blink.
func (m Model) Init() tea.Cmd { return textinput.Blink }

// Update handles key, resize and answer messages.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.ready = true
		_, rh := transcriptStyle.GetFrameSize()
		_, qh := inputStyle.GetFrameSize()
		reserved := 1 + 1 + qh + 1 // header, status, input box, spacer
		m.viewport.Width = max(20, msg.Width)
		m.viewport.Height = max(3, msg.Height-reserved-rh)
		m.refresh()
		return m, nil
	case answerMsg:
		m.busy = false
		m.history = append(m.history, renderAnswer(msg))
		switch {
		case msg.err != nil:
			m.status = "Error: " + msg.err.Error()
		default:
			m.status = fmt.Sprintf("%s in %s", msg.outcome.Status, msg.elapsed.Round(time.Millisecond))
		}
		m.refresh()
		return m, nil
	case tea.KeyMsg:
		if msg.Type == tea.KeyCtrlC || msg.Type == tea.KeyCtrlD || msg.Type == tea.KeyEsc {
			return m, tea.Quit
		}
		if msg.Type == tea.KeyEnter {
			text := strings.TrimSpace(m.input.Value())
			if text == "" || m.busy {
				return m, nil
			}
			m.input.SetValue("")
			m.busy = true
			m.history = append(m.history, promptStyle.Render("? "+text))
			m.status = "Working..."
			m.refresh()
			return m, m.ask(text)
		}
		if msg.Type == tea.KeyPgUp || msg.Type == tea.KeyPgDown {
			var cmd tea.Cmd
			m.viewport, cmd = m.viewport.Update(msg)
			return m, cmd
		}
	}
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

// ask runs the request off the update loop.
func (m Model) ask(text string) tea.Cmd {
	service, timeout := m.service, m.timeout
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		start := time.Now()
		out := answerMsg{prompt: text}
		if topic, ok := strings.CutPrefix(text, generateCommand); ok {
			resp, err := service.Generate(ctx, models.GenerateRequest{Topic: strings.TrimSpace(topic)})
			if err != nil {
				out.err = err
			} else {
				out.pairs, out.source, out.outcome = resp.Results, models.ResultSourceLLM, resp.Outcome
			}
		} else {
			resp, err := service.Search(ctx, models.SearchRequest{Query: text})
			if err != nil {
				out.err = err
			} else {
				out.pairs, out.source, out.outcome = resp.Results, resp.Source, resp.Outcome
			}
		}
		out.elapsed = time.Since(start)
		return out
	}
}

func (m *Model) refresh() {
	m.viewport.SetContent(strings.Join(m.history, "\n\n"))
	m.viewport.GotoBottom()
}

// View renders the transcript, input and status line.
func (m Model) View() string {
	if !m.ready {
		return "Loading..."
	}
	header := lipgloss.NewStyle().Bold(true).Render("newsqa chat")
	status := statusStyle.Render(m.status)
	return header + "\n" + transcriptStyle.Render(m.viewport.View()) + "\n" + inputStyle.Render(m.input.View()) + "\n" + status
}

func renderAnswer(msg answerMsg) string {
	if msg.err != nil {
		return errorStyle.Render("Error: " + msg.err.Error())
	}
	if len(msg.pairs) == 0 {
		text := msg.outcome.Message
		if text == "" {
			text = "No answers found."
		}
		if !msg.outcome.Success {
			return errorStyle.Render(text)
		}
		return dimStyle.Render(text)
	}
	var b strings.Builder
	for i, p := range msg.pairs {
		if i > 0 {
			b.WriteString("\n")
		}
		b.WriteString(questionStyle.Render(fmt.Sprintf("%d. %s", i+1, p.Question)))
		b.WriteString("\n   ")
		b.WriteString(p.Answer)
		meta := []string{msg.source}
		if p.Score != nil {
			meta = append(meta, fmt.Sprintf("score %.2f", *p.Score))
		}
		if p.Topic != "" {
			meta = append(meta, p.Topic)
		}
		b.WriteString("\n   ")
		b.WriteString(dimStyle.Render(strings.Join(meta, " · ")))
	}
	if msg.outcome.Status == models.StatusPartial {
		b.WriteString("\n")
		b.WriteString(errorStyle.Render(msg.outcome.Message))
	}
	return b.String()
}

var (
	transcriptStyle = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
	inputStyle      = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
	promptStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("12")).Bold(true)
	questionStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("11")).Bold(true)
	statusStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	dimStyle        = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	errorStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
)

// Run starts the chat full-screen and blocks until the user quits.
func Run(service Port, timeout time.Duration) error {
	_, err := tea.NewProgram(New(service, timeout), tea.WithAltScreen()).Run()
	return err
}
