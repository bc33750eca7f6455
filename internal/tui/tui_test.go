package tui

import (
	"context"
	"errors"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fbuddy/rag/internal/ollama"
	"github.com/fbuddy/rag/internal/rag"
	"github.com/fbuddy/rag/internal/vectorindex"
)

type fakeAnswerer struct {
	last rag.Request
	err  error
}

func (f *fakeAnswerer) Answer(_ context.Context, req rag.Request) (*rag.Answer, error) {
	f.last = req
	if f.err != nil {
		return nil, f.err
	}
	return &rag.Answer{Answer: "Build an emergency fund first.", Sources: []string{"guide.pdf"}}, nil
}

type fakeIndex struct {
	vectorindex.Index
	stats vectorindex.Stats
	err   error
}

func (f fakeIndex) Stats(context.Context) (vectorindex.Stats, error) {
	return f.stats, f.err
}

type fakeSwitcher struct {
	models  []ollama.ModelInfo
	current string
	err     error
}

func (f *fakeSwitcher) ListModels(context.Context) ([]ollama.ModelInfo, error) { return f.models, f.err }
func (f *fakeSwitcher) Model() string { return f.current }
func (f *fakeSwitcher) SetModel(m string) { f.current = m }

func runes(s string) tea.KeyMsg { return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)} }

func TestChatViewAsk(t *testing.T) {
	ans := &fakeAnswerer{}
	cv := NewChatView(ans, "u-7", map[string]any{"current_balance": 500})

	cv.Update(runes("how much?x"))
	cv.Update(tea.KeyMsg{Type: tea.KeyBackspace})
	assert.Equal(t, "how much?", cv.input.Value())

	cmd := cv.Update(tea.KeyMsg{Type: tea.KeyEnter})
	require.NotNil(t, cmd)
	assert.True(t, cv.loading)
	assert.Empty(t, cv.input.Value())
	require.Len(t, cv.messages, 2)
	assert.Equal(t, "Thinking...", cv.messages[1].Content)

	assert.Nil(t, cv.Update(tea.KeyMsg{Type: tea.KeyEnter}), "no second request while loading")

	cv.Update(cmd())
	assert.False(t, cv.loading)
	assert.Equal(t, "Build an emergency fund first.", cv.messages[1].Content)
	assert.Equal(t, []string{"guide.pdf"}, cv.messages[1].Sources)
	assert.Equal(t, rag.Request{
		Query:    "how much?",
		UserID:   "u-7",
		Realtime: map[string]any{"current_balance": 500},
	}, ans.last)

	view := cv.View()
	assert.Contains(t, view, "how much?")
	assert.Contains(t, view, "Sources: guide.pdf")
}

func TestChatViewError(t *testing.T) {
	cv := NewChatView(&fakeAnswerer{err: errors.New("ollama down")}, "", nil)
	cv.Update(runes("hi"))
	cmd := cv.Update(tea.KeyMsg{Type: tea.KeyEnter})
	cv.Update(cmd())

	assert.True(t, cv.messages[1].Failed)
	assert.Contains(t, cv.View(), "Error: ollama down")
}

func TestChatViewIgnoresBlankInput(t *testing.T) {
	cv := NewChatView(&fakeAnswerer{}, "", nil)
	cv.Update(runes("   "))
	assert.Nil(t, cv.Update(tea.KeyMsg{Type: tea.KeyEnter}))
	assert.Empty(t, cv.messages)
	assert.Nil(t, cv.Update(answerMsg{}))
}

func TestDashboardView(t *testing.T) {
	dv := NewDashboardView(fakeIndex{stats: vectorindex.Stats{TotalVectorCount: 1234, Dimension: 768}}, "rag1", &fakeSwitcher{current: "llama3.2"})

	dv.Update(dv.fetch())
	view := dv.View()
	assert.Contains(t, view, "rag1")
	assert.Contains(t, view, "1.2K")
	assert.Contains(t, view, "768")
	assert.Contains(t, view, "llama3.2")
	assert.Contains(t, view, "Ready")

	dv.index = fakeIndex{err: errors.New("connection refused")}
	dv.Update(dv.fetch())
	assert.Contains(t, dv.View(), "connection refused")
	assert.EqualValues(t, 1234, dv.stats.TotalVectorCount, "last good stats are kept")

	assert.NotNil(t, dv.Update(statsTickMsg(time.Now())))
}

func TestFormatNumber(t *testing.T) {
	assert.Equal(t, "999", formatNumber(999))
	assert.Equal(t, "1.5K", formatNumber(1500))
	assert.Equal(t, "2.0M", formatNumber(2000000))
}

func TestModelsView(t *testing.T) {
	sw := &fakeSwitcher{
		current: "mistral:7b",
		models:  []ollama.ModelInfo{{Name: "llama3.2:latest"}, {Name: "mistral:7b"}, {Name: "phi3"}},
	}
	mv := NewModelsView(sw)
	cmd := mv.Init()
	assert.True(t, mv.loading)

	mv.Update(cmd())
	assert.False(t, mv.loading)
	assert.Equal(t, 1, mv.cursor)

	mv.Update(runes("j"))
	mv.Update(runes("j"))
	assert.Equal(t, 2, mv.cursor)
	mv.Update(tea.KeyMsg{Type: tea.KeyEnter})
	assert.Equal(t, "phi3", sw.current)

	mv.Update(runes("k"))
	assert.Equal(t, 1, mv.cursor)
	assert.Contains(t, mv.View(), "Active: phi3")
	assert.Contains(t, mv.View(), "Answers now use phi3")
}

func TestHumanSize(t *testing.T) {
	assert.Equal(t, "512 MB", humanSize(512<<20))
	assert.Equal(t, "2.0 GB", humanSize(2<<30))
}

func TestModelsViewError(t *testing.T) {
	mv := NewModelsView(&fakeSwitcher{err: errors.New("connection refused")})
	mv.Update(mv.Init()())
	assert.Contains(t, mv.View(), "Error: connection refused")
}

func TestAppNavigation(t *testing.T) {
	app := NewApp(Deps{
		Answerer:  &fakeAnswerer{},
		Index:     fakeIndex{},
		IndexName: "rag1",
		Models:    &fakeSwitcher{},
	})
	assert.Equal(t, pageChat, app.page)

	app.Update(tea.KeyMsg{Type: tea.KeyTab})
	assert.Equal(t, pageDashboard, app.page)
	app.Update(tea.KeyMsg{Type: tea.KeyTab})
	assert.Equal(t, pageModels, app.page)
	app.Update(tea.KeyMsg{Type: tea.KeyTab})
	assert.Equal(t, pageChat, app.page)

	app.Update(runes("j"))
	assert.Equal(t, "j", app.chat.input.Value(), "letters go to the chat input")

	app.Update(tea.KeyMsg{Type: tea.KeyTab})
	_, cmd := app.Update(tea.KeyMsg{Type: tea.KeyEsc})
	assert.Nil(t, cmd)
	assert.Equal(t, pageChat, app.page)

	app.Update(tea.WindowSizeMsg{Width: 120, Height: 40})
	assert.Equal(t, 120, app.chat.width)
	assert.Equal(t, 38, app.chat.height)
	assert.Contains(t, app.View(), "Chat")
}

func TestAppWithoutModels(t *testing.T) {
	app := NewApp(Deps{Answerer: &fakeAnswerer{}, Index: fakeIndex{}})
	assert.Nil(t, app.models)

	app.Update(tea.KeyMsg{Type: tea.KeyTab})
	app.Update(tea.KeyMsg{Type: tea.KeyTab})
	assert.Equal(t, pageChat, app.page)
}
