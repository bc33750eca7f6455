package tui

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/fbuddy/rag/internal/rag"
)

const answerTimeout = 5 * time.Minute

// Message represents a chat message
type Message struct {
	Role    string
	Content string
	Sources []string
	Failed  bool
}

// ChatView handles the chat interface
type ChatView struct {
	answerer Answerer
	userID   string
	realtime map[string]any

	messages []Message
	input    textinput.Model
	loading  bool
	width    int
	height   int
}

type answerMsg struct {
	answer *rag.Answer
	err    error
}

// NewChatView creates a new chat view. Every question is asked as userID
// with the given realtime figures.
func NewChatView(answerer Answerer, userID string, realtime map[string]any) *ChatView {
	ti := textinput.New()
	ti.Prompt = "> "
	ti.PromptStyle = userStyle
	ti.Placeholder = "Ask about your finances..."
	ti.CharLimit = 1000
	ti.Focus()

	return &ChatView{
		answerer: answerer,
		userID:   userID,
		realtime: realtime,
		input:    ti,
		width:    80,
		height:   22,
	}
}

// Init starts the cursor blinking.
func (cv *ChatView) Init() tea.Cmd {
	return textinput.Blink
}

// Update sends on enter, collects answers and passes other input to
// the text field.
func (cv *ChatView) Update(msg tea.Msg) tea.Cmd {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		cv.width = msg.Width
		cv.height = msg.Height
		cv.input.Width = max(msg.Width-4, 10)
	case answerMsg:
		if len(cv.messages) == 0 {
			return nil
		}
		last := &cv.messages[len(cv.messages)-1]
		if msg.err != nil {
			last.Content = fmt.Sprintf("Error: %v", msg.err)
			last.Failed = true
		} else {
			last.Content = msg.answer.Answer
			last.Sources = msg.answer.Sources
		}
		cv.loading = false
		return nil
	case tea.KeyMsg:
		if msg.Type == tea.KeyEnter {
			return cv.send()
		}
	}

	var cmd tea.Cmd
	cv.input, cmd = cv.input.Update(msg)
	return cmd
}

func (cv *ChatView) send() tea.Cmd {
	query := strings.TrimSpace(cv.input.Value())
	if query == "" || cv.loading {
		return nil
	}

	cv.input.Reset()
	cv.loading = true
	cv.messages = append(cv.messages,
		Message{Role: "user", Content: query},
		Message{Role: "assistant", Content: "Thinking..."},
	)

	req := rag.Request{Query: query, UserID: cv.userID, Realtime: cv.realtime}
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), answerTimeout)
		defer cancel()
		answer, err := cv.answerer.Answer(ctx, req)
		return answerMsg{answer: answer, err: err}
	}
}

var (
	userStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("39")).Bold(true)
	botStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("205")).Bold(true)
	errStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	sourcesStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("240"))
	pendingStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("226"))
)

// View renders the newest messages that fit above the input line.
func (cv *ChatView) View() string {
	body := lipgloss.NewStyle().Width(max(cv.width-2, 20))

	var lines []string
	for i, msg := range cv.messages {
		if msg.Role == "user" {
			lines = append(lines, strings.Split(body.Render(userStyle.Render("You: ")+msg.Content), "\n")...)
			continue
		}

		content := msg.Content
		switch {
		case msg.Failed:
			content = errStyle.Render(content)
		case cv.loading && i == len(cv.messages)-1:
			content = pendingStyle.Render(content)
		}
		lines = append(lines, strings.Split(body.Render(botStyle.Render("F-Buddy: ")+content), "\n")...)
		if len(msg.Sources) > 0 {
			lines = append(lines, sourcesStyle.Render("Sources: "+strings.Join(msg.Sources, ", ")))
		}
		lines = append(lines, "")
	}

	if avail := cv.height - 2; avail > 0 && len(lines) > avail {
		lines = lines[len(lines)-avail:]
	}

	return strings.Join(append(lines, cv.input.View()), "\n")
}
