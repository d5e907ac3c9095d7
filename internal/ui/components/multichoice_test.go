package components

import (
	"testing"

	tea "charm.land/bubbletea/v2"
	"github.com/stretchr/testify/assert"
)

func keyPress(r rune) tea.KeyPressMsg {
	return tea.KeyPressMsg{Code: r, Text: string(r)}
}

func specialKey(code rune) tea.KeyPressMsg {
	return tea.KeyPressMsg{Code: code}
}

func TestMultiChoice_NavigateAndChoose(t *testing.T) {
	m := NewMultiChoice("Pick one", []string{"a", "b", "c"}, 2)

	m, _ = m.Update(specialKey(tea.KeyUp))
	assert.Equal(t, 0, m.Selected, "stays on the first option")

	m, _ = m.Update(specialKey(tea.KeyDown))
	m, _ = m.Update(keyPress('j'))
	m, _ = m.Update(specialKey(tea.KeyDown))
	assert.Equal(t, 2, m.Selected, "stops on the last option")

	m, _ = m.Update(specialKey(tea.KeyEnter))
	assert.True(t, m.Submitted)
	assert.Equal(t, 2, m.ChosenIndex)
	assert.True(t, m.IsCorrect())

	m, _ = m.Update(specialKey(tea.KeyUp))
	assert.Equal(t, 2, m.Selected, "ignores keys once answered")
}

func TestMultiChoice_LetterAnswers(t *testing.T) {
	m := NewMultiChoice("Pick one", []string{"a", "b", "c"}, 0)

	m, _ = m.Update(keyPress('z'))
	assert.False(t, m.Submitted, "letter outside the options")

	m, _ = m.Update(keyPress('B'))
	assert.True(t, m.Submitted)
	assert.Equal(t, 1, m.ChosenIndex)
	assert.False(t, m.IsCorrect())
}

func TestMultiChoice_View(t *testing.T) {
	m := NewMultiChoice("Which one?", []string{"first", "second"}, 1)
	out := m.View()
	assert.Contains(t, out, "Which one?")
	assert.Contains(t, out, "▸ A)  first")
	assert.Contains(t, out, "B)  second")
	assert.Equal(t, "E", Label(4))
}
