package tui

import (
	"context"
	"errors"
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"menurag/internal/domain"
)

type fakePort struct {
	results   []domain.SearchResult
	err       error
	gotQuery  string
	gotTopK   int
	gotThresh float64
}

func (f *fakePort) Search(_ context.Context, q string, topK int, threshold float64) ([]domain.SearchResult, error) {
	f.gotQuery, f.gotTopK, f.gotThresh = q, topK, threshold
	return f.results, f.err
}

func (f *fakePort) RenderContext(results []domain.SearchResult) string {
	return "context:" + results[0].Record.Name
}

func update(t *testing.T, m Model, msg tea.Msg) Model {
	t.Helper()
	next, _ := m.Update(msg)
	out, ok := next.(Model)
	require.True(t, ok)
	return out
}

func TestSearchFlow(t *testing.T) {
	port := &fakePort{results: []domain.SearchResult{
		{Position: 0, Score: 0.9, Record: domain.Record{Name: "Pho", Description: "Beef noodle soup. Served hot.", Price: "50000"}},
		{Position: 1, Score: 0.4, Record: domain.Record{Name: "Bun Cha", Description: "Grilled pork with noodles."}},
	}}
	m := New(port, Options{TopK: 3, Threshold: 0.2, Summary: "Noodles and more."})
	assert.Equal(t, "Loading...", m.View())

	m = update(t, m, tea.WindowSizeMsg{Width: 80, Height: 30})
	assert.Contains(t, m.View(), "Noodles and more.")

	m.input.SetValue("noodle soup")
	m = update(t, m, tea.KeyMsg{Type: tea.KeyEnter})
	assert.Equal(t, "noodle soup", port.gotQuery)
	assert.Equal(t, 3, port.gotTopK)
	assert.Equal(t, 0.2, port.gotThresh)
	assert.Len(t, m.results, 2)
	assert.Contains(t, m.status, "2 results")
	assert.Contains(t, m.renderCurrent(), "Pho")
	assert.Contains(t, m.renderCurrent(), "Price: 50000")

	m = update(t, m, tea.KeyMsg{Type: tea.KeyDown})
	assert.Equal(t, 1, m.cursor)
	assert.Contains(t, m.renderCurrent(), "Bun Cha")
	m = update(t, m, tea.KeyMsg{Type: tea.KeyDown})
	assert.Equal(t, 0, m.cursor)
	m = update(t, m, tea.KeyMsg{Type: tea.KeyUp})
	assert.Equal(t, 1, m.cursor)

	m = update(t, m, tea.KeyMsg{Type: tea.KeyTab})
	assert.Equal(t, "context:Pho", m.renderCurrent())
}

func TestSearchError(t *testing.T) {
	port := &fakePort{err: errors.New("boom")}
	m := New(port, Options{})
	m = update(t, m, tea.WindowSizeMsg{Width: 80, Height: 30})
	m.input.SetValue("tea")
	m = update(t, m, tea.KeyMsg{Type: tea.KeyEnter})
	assert.Equal(t, 5, port.gotTopK)
	assert.Equal(t, "Error: boom", m.status)
	assert.Equal(t, "No results yet.", m.renderCurrent())
}

func TestQuit(t *testing.T) {
	m := New(&fakePort{}, Options{})
	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyCtrlC})
	require.NotNil(t, cmd)
	assert.IsType(t, tea.QuitMsg{}, cmd())
}

func TestHighlightBestSentence(t *testing.T) {
	out := highlightBestSentence("Served hot. Beef noodle soup.", "noodle")
	assert.True(t, strings.HasPrefix(out, "Served hot. "))
	assert.Contains(t, out, "Beef noodle soup.")
	assert.Equal(t, "", highlightBestSentence("", "x"))
	assert.Equal(t, "Served hot.", highlightBestSentence("Served hot.", ""))
}
