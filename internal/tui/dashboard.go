package tui

import (
	"context"
	"fmt"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/fbuddy/rag/internal/vectorindex"
)

const statsInterval = 5 * time.Second

// DashboardView shows index statistics, refreshed periodically
type DashboardView struct {
	index     vectorindex.Index
	indexName string
	models    ModelSwitcher

	stats   vectorindex.Stats
	err     error
	updated time.Time
}

type statsMsg struct {
	stats vectorindex.Stats
	err   error
	at    time.Time
}

type statsTickMsg time.Time

// NewDashboardView creates a new dashboard view
func NewDashboardView(index vectorindex.Index, indexName string, models ModelSwitcher) *DashboardView {
	return &DashboardView{index: index, indexName: indexName, models: models}
}

// Init loads the first stats and starts the refresh ticker.
func (dv *DashboardView) Init() tea.Cmd {
	return tea.Batch(dv.fetch, tick())
}

func tick() tea.Cmd {
	return tea.Tick(statsInterval, func(t time.Time) tea.Msg {
		return statsTickMsg(t)
	})
}

func (dv *DashboardView) fetch() tea.Msg {
	ctx, cancel := context.WithTimeout(context.Background(), statsInterval)
	defer cancel()
	stats, err := dv.index.Stats(ctx)
	return statsMsg{stats: stats, err: err, at: time.Now()}
}

// Update handles stats results and refresh ticks. Pressing r refreshes now.
func (dv *DashboardView) Update(msg tea.Msg) tea.Cmd {
	switch msg := msg.(type) {
	case statsTickMsg:
		return tea.Batch(dv.fetch, tick())
	case statsMsg:
		dv.err = msg.err
		if msg.err == nil {
			dv.stats = msg.stats
		}
		dv.updated = msg.at
	case tea.KeyMsg:
		if msg.String() == "r" {
			return dv.fetch
		}
	}
	return nil
}

// View renders the dashboard
func (dv *DashboardView) View() string {
	label := lipgloss.NewStyle().Foreground(lipgloss.Color("240"))
	value := lipgloss.NewStyle().Foreground(lipgloss.Color("226"))
	row := func(name, v string) string {
		return label.Render(fmt.Sprintf("%-10s ", name)) + value.Render(v)
	}

	lines := []string{
		lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("205")).Render("F-Buddy RAG"),
		"",
		row("Index", dv.indexName),
		row("Vectors", formatNumber(dv.stats.TotalVectorCount)),
		row("Dimension", fmt.Sprintf("%d", dv.stats.Dimension)),
	}
	if dv.models != nil {
		model := dv.models.Model()
		if model == "" {
			model = "(none)"
		}
		lines = append(lines, row("Model", model))
	}

	status := lipgloss.NewStyle().Foreground(lipgloss.Color("42")).Render("● Ready")
	if dv.err != nil {
		status = lipgloss.NewStyle().Foreground(lipgloss.Color("196")).Render("● " + dv.err.Error())
	}
	lines = append(lines, "", status)
	if !dv.updated.IsZero() {
		lines = append(lines, label.Render("Updated "+dv.updated.Format("15:04:05")+" | r: refresh"))
	}

	return lipgloss.JoinVertical(lipgloss.Left, lines...)
}

// formatNumber formats large numbers with K/M suffixes
func formatNumber(n int64) string {
	if n < 1000 {
		return fmt.Sprintf("%d", n)
	}
	if n < 1000000 {
		return fmt.Sprintf("%.1fK", float64(n)/1000)
	}
	return fmt.Sprintf("%.1fM", float64(n)/1000000)
}
