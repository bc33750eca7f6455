// Package tui is an interactive terminal front end for the question
// pipeline.
package tui

import (
	"context"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/fbuddy/rag/internal/ollama"
	"github.com/fbuddy/rag/internal/rag"
	"github.com/fbuddy/rag/internal/vectorindex"
)

// Answerer answers one chat question.
type Answerer interface {
	Answer(ctx context.Context, req rag.Request) (*rag.Answer, error)
}

// ModelSwitcher lists and switches the generation model.
type ModelSwitcher interface {
	ListModels(ctx context.Context) ([]ollama.ModelInfo, error)
	Model() string
	SetModel(model string)
}

// Deps are the components the views read from. Models may be nil when the
// generator has no switchable model.
type Deps struct {
	Answerer  Answerer
	Index     vectorindex.Index
	IndexName string
	Models    ModelSwitcher
	UserID    string
	Realtime  map[string]any
}

type page int

const (
	pageChat page = iota
	pageDashboard
	pageModels
)

var pageTitles = map[page]string{
	pageChat:      "Chat",
	pageDashboard: "Dashboard",
	pageModels:    "Models",
}

// App is the root bubbletea model.
type App struct {
	page      page
	pages     []page
	chat      *ChatView
	dashboard *DashboardView
	models    *ModelsView
	width     int
	height    int
}

// NewApp creates the terminal application
func NewApp(deps Deps) *App {
	a := &App{
		page:      pageChat,
		pages:     []page{pageChat, pageDashboard},
		chat:      NewChatView(deps.Answerer, deps.UserID, deps.Realtime),
		dashboard: NewDashboardView(deps.Index, deps.IndexName, deps.Models),
		width:     80,
		height:    24,
	}
	if deps.Models != nil {
		a.models = NewModelsView(deps.Models)
		a.pages = append(a.pages, pageModels)
	}
	return a
}

// Init starts the background loads of every view.
func (a *App) Init() tea.Cmd {
	cmds := []tea.Cmd{a.chat.Init(), a.dashboard.Init()}
	if a.models != nil {
		cmds = append(cmds, a.models.Init())
	}
	return tea.Batch(cmds...)
}

// Update routes keys to the active view and everything else to all views.
func (a *App) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		a.width = msg.Width
		a.height = msg.Height
		return a, a.broadcast(tea.WindowSizeMsg{Width: msg.Width, Height: msg.Height - 2})
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c":
			return a, tea.Quit
		case "tab":
			a.page = a.nextPage()
			return a, nil
		case "esc":
			if a.page == pageChat {
				return a, tea.Quit
			}
			a.page = pageChat
			return a, nil
		}
		return a, a.active().Update(msg)
	}
	return a, a.broadcast(msg)
}

func (a *App) nextPage() page {
	for i, p := range a.pages {
		if p == a.page {
			return a.pages[(i+1)%len(a.pages)]
		}
	}
	return pageChat
}

type view interface {
	Update(msg tea.Msg) tea.Cmd
	View() string
}

func (a *App) active() view {
	switch a.page {
	case pageDashboard:
		return a.dashboard
	case pageModels:
		return a.models
	default:
		return a.chat
	}
}

func (a *App) broadcast(msg tea.Msg) tea.Cmd {
	cmds := []tea.Cmd{a.chat.Update(msg), a.dashboard.Update(msg)}
	if a.models != nil {
		cmds = append(cmds, a.models.Update(msg))
	}
	return tea.Batch(cmds...)
}

// View renders the tab bar, the active view and the key help line.
func (a *App) View() string {
	var tabs []string
	for _, p := range a.pages {
		style := lipgloss.NewStyle().Padding(0, 1).Foreground(lipgloss.Color("240"))
		if p == a.page {
			style = style.Bold(true).Foreground(lipgloss.Color("205"))
		}
		tabs = append(tabs, style.Render(pageTitles[p]))
	}

	help := lipgloss.NewStyle().Foreground(lipgloss.Color("240")).
		Render("tab: switch view | esc: back/quit | ctrl+c: quit")

	return strings.Join([]string{
		lipgloss.JoinHorizontal(lipgloss.Top, tabs...),
		a.active().View(),
		help,
	}, "\n")
}

// Run starts the TUI application
func (a *App) Run() error {
	_, err := tea.NewProgram(a, tea.WithAltScreen()).Run()
	return err
}
