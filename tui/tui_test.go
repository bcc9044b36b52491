package tui

import (
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func samplePlan() []Group {
	return []Group{
		{
			Title: "original_hash_0123456789ab",
			Files: []Entry{
				{Path: "/r/recup_dir.1/f0001.jpg", Size: 2048, Keep: true, Reason: "original_hash_0123456789ab"},
				{Path: "/r/recup_dir.2/f0099.jpg", Size: 2048, Reason: "duplicate_of_0123456789ab"},
			},
		},
		{
			Title:  "kept_largest_of_group",
			Detail: "near-duplicates",
			Files: []Entry{
				{Path: "/r/recup_dir.1/x.jpg", Size: 500_000, Keep: true, Reason: "kept_largest_of_group"},
				{Path: "/r/recup_dir.1/y.jpg", Size: 480_000, Reason: "similar_to_kept_3"},
			},
		},
	}
}

func press(m tea.Model, keys ...string) tea.Model {
	for _, k := range keys {
		var msg tea.KeyMsg
		switch k {
		case "enter":
			msg = tea.KeyMsg{Type: tea.KeyEnter}
		case "esc":
			msg = tea.KeyMsg{Type: tea.KeyEsc}
		case "left":
			msg = tea.KeyMsg{Type: tea.KeyLeft}
		case "down":
			msg = tea.KeyMsg{Type: tea.KeyDown}
		default:
			msg = tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(k)}
		}
		m, _ = m.Update(msg)
	}
	return m
}

func TestPlan(t *testing.T) {
	files, bytes := Plan(samplePlan())
	assert.Equal(t, 2, files)
	assert.Equal(t, int64(482_048), bytes)
}

func TestModelBrowseAndConfirm(t *testing.T) {
	m := tea.Model(New("deduplicate", samplePlan()))

	view := m.View()
	assert.Contains(t, view, "Group 1/2")
	assert.Contains(t, view, "KEEP")
	assert.Contains(t, view, "f0099.jpg")
	assert.Contains(t, view, "2.0 KiB")

	m = press(m, "down")
	assert.Contains(t, m.View(), "/r/recup_dir.2/f0099.jpg")

	m = press(m, "enter")
	assert.Contains(t, m.View(), "Group 2/2")
	assert.Contains(t, m.View(), "similar_to_kept_3")

	m = press(m, "enter")
	view = m.View()
	assert.Contains(t, view, "About to delete 2 files")
	assert.Contains(t, view, "/r/recup_dir.1/y.jpg")
	assert.NotContains(t, view, "/r/recup_dir.1/x.jpg")

	m = press(m, "left")
	assert.Contains(t, m.View(), "Group 2/2")

	m = press(m, "y")
	model, ok := m.(Model)
	require.True(t, ok)
	assert.True(t, model.Confirmed())
}

func TestModelAbort(t *testing.T) {
	m := press(New("purge-similar-images", samplePlan()), "enter", "esc")
	model := m.(Model)
	assert.False(t, model.Confirmed())
	assert.Contains(t, model.View(), "nothing was deleted")
}

func TestModelEmptyPlan(t *testing.T) {
	m := New("deduplicate", nil)
	assert.Equal(t, "Nothing to delete.\n", m.View())
}
