package ui

import (
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func press(m tea.Model, keys ...tea.KeyMsg) tea.Model {
	for _, k := range keys {
		m, _ = m.Update(k)
	}
	return m
}

var (
	keyDown  = tea.KeyMsg{Type: tea.KeyDown}
	keyUp    = tea.KeyMsg{Type: tea.KeyUp}
	keyEnter = tea.KeyMsg{Type: tea.KeyEnter}
	keyEsc   = tea.KeyMsg{Type: tea.KeyEsc}
	keyEnd   = tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'G'}}
	keyHome  = tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'g'}}
)

func names() []PickerItem {
	return []PickerItem{
		{Label: "ninja.chrundle", SubLabel: "https://ninja.example", Value: "ninja"},
		{Label: "ronin.chrundle", Value: "ronin"},
		{Label: "shogun.chrundle", Value: "shogun"},
	}
}

func TestPickerSelectsUnderCursor(t *testing.T) {
	m := press(newPicker("Your names", names()), keyDown, keyDown, keyDown, keyUp, keyEnter).(pickerModel)
	require.NotNil(t, m.selected)
	assert.Equal(t, "ronin", m.selected.Value)
}

func TestPickerHomeEnd(t *testing.T) {
	m := press(newPicker("Your names", names()), keyEnd).(pickerModel)
	assert.Equal(t, 2, m.cursor)
	m = press(m, keyHome).(pickerModel)
	assert.Equal(t, 0, m.cursor)
}

func TestPickerCancel(t *testing.T) {
	m := press(newPicker("Your names", names()), keyEsc).(pickerModel)
	assert.True(t, m.quitting)
	assert.Nil(t, m.selected)
	assert.Empty(t, m.View())
}

func TestPickerView(t *testing.T) {
	view := newPicker("Your names", names()).View()
	assert.Contains(t, view, "Your names")
	assert.Contains(t, view, "(1/3)")
	assert.Contains(t, view, "ninja.chrundle")
	assert.Contains(t, view, "https://ninja.example")
}

func TestPickItemEmpty(t *testing.T) {
	_, err := PickItem("Nothing", nil)
	assert.Error(t, err)
}
