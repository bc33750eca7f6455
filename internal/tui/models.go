package tui

import (
	"context"
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/fbuddy/rag/internal/ollama"
)

// ModelsView lets the user switch the generation model.
type ModelsView struct {
	switcher ModelSwitcher
	models   []ollama.ModelInfo
	cursor   int
	loading  bool
	status   string
	failure  error
}

type modelsLoadedMsg struct {
	models []ollama.ModelInfo
	err    error
}

// NewModelsView creates a picker over the switcher's models.
func NewModelsView(switcher ModelSwitcher) *ModelsView {
	return &ModelsView{switcher: switcher}
}

// Init fetches the model list.
func (mv *ModelsView) Init() tea.Cmd {
	return mv.reload()
}

func (mv *ModelsView) reload() tea.Cmd {
	mv.loading = true
	return func() tea.Msg {
		models, err := mv.switcher.ListModels(context.Background())
		return modelsLoadedMsg{models: models, err: err}
	}
}

// Update moves the cursor, switches models and reloads on r.
func (mv *ModelsView) Update(msg tea.Msg) tea.Cmd {
	switch msg := msg.(type) {
	case modelsLoadedMsg:
		mv.loading = false
		mv.failure = msg.err
		if msg.err != nil {
			return nil
		}
		mv.models = msg.models
		mv.cursor = mv.indexOf(mv.switcher.Model())
	case tea.KeyMsg:
		switch msg.String() {
		case "down", "j":
			mv.cursor = min(mv.cursor+1, max(len(mv.models)-1, 0))
		case "up", "k":
			mv.cursor = max(mv.cursor-1, 0)
		case "enter", " ":
			if mv.cursor < len(mv.models) {
				name := mv.models[mv.cursor].Name
				mv.switcher.SetModel(name)
				mv.status = "Answers now use " + name
			}
		case "r":
			return mv.reload()
		}
	}
	return nil
}

func (mv *ModelsView) indexOf(name string) int {
	for i, m := range mv.models {
		if m.Name == name {
			return i
		}
	}
	return 0
}

var (
	pickerTitle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("205"))
	pickerCursor  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("205"))
	pickerActive  = lipgloss.NewStyle().Foreground(lipgloss.Color("39"))
	pickerDimmed  = lipgloss.NewStyle().Foreground(lipgloss.Color("240"))
	pickerFailure = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
)

// View lists the models with the active one marked.
func (mv *ModelsView) View() string {
	var b strings.Builder
	b.WriteString(pickerTitle.Render("Generation model"))
	b.WriteString("\n\n")

	switch {
	case mv.loading:
		b.WriteString("Loading models...\n")
		return b.String()
	case mv.failure != nil:
		b.WriteString(pickerFailure.Render("Error: "+mv.failure.Error()) + "\n\n")
	}

	active := mv.switcher.Model()
	if active == "" {
		active = "(none)"
	}
	b.WriteString(pickerActive.Render("Active: "+active) + "\n\n")

	if len(mv.models) == 0 && mv.failure == nil {
		b.WriteString("No models found. Pull one with `ollama pull llama3.2`.\n")
	}
	for i, m := range mv.models {
		line := fmt.Sprintf("%-32s %8s", m.Name, humanSize(m.Size))
		switch {
		case i == mv.cursor:
			line = pickerCursor.Render("> " + line)
		case m.Name == active:
			line = pickerActive.Render("* " + line)
		default:
			line = "  " + line
		}
		b.WriteString(line + "\n")
	}

	if mv.status != "" {
		b.WriteString("\n" + mv.status + "\n")
	}
	b.WriteString("\n" + pickerDimmed.Render("j/k: move | enter: use model | r: reload"))
	return b.String()
}

func humanSize(n int64) string {
	const gb = 1 << 30
	if n >= gb {
		return fmt.Sprintf("%.1f GB", float64(n)/gb)
	}
	return fmt.Sprintf("%.0f MB", float64(n)/(1<<20))
}
