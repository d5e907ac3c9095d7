package study

import (
	"context"
	"errors"
	"testing"
	"time"

	tea "charm.land/bubbletea/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/abhisek/learnloop/internal/compiler"
	"github.com/abhisek/learnloop/internal/content"
	"github.com/abhisek/learnloop/internal/learning"
)

// fakeLearner serves the same card and records submissions.
type fakeLearner struct {
	nextErr   error
	submitted []learning.SubmitRequest
}

func (f *fakeLearner) NextCard(context.Context, string, []string, compiler.Context) (*learning.NextCard, error) {
	if f.nextErr != nil {
		return nil, f.nextErr
	}
	return &learning.NextCard{
		Card: &content.Card{
			ID:      "card-1",
			Title:   "Money Basics",
			Content: "Money is a medium of exchange.",
			Quiz: content.Quiz{
				Question:           "What is money?",
				Options:            []string{"A medium of exchange", "A kind of rock"},
				CorrectAnswerIndex: 0,
				Explanation:        "Money is used to trade.",
			},
		},
		Explanation: learning.Explanation{WhySelected: "Introduce Money Basics"},
	}, nil
}

func (f *fakeLearner) SubmitAnswer(_ context.Context, _ string, req learning.SubmitRequest) (*learning.SubmitResult, error) {
	f.submitted = append(f.submitted, req)
	correct := req.AnswerIndex == 0
	return &learning.SubmitResult{
		IsCorrect:   correct,
		Explanation: "Money is used to trade.",
		BeliefUpdate: learning.BeliefUpdate{
			ConceptID: "money_basics", PreviousMastery: 0.05, NewMastery: 0.34, Change: "+0.29",
		},
	}, nil
}

func keyPress(r rune) tea.KeyPressMsg {
	return tea.KeyPressMsg{Code: r, Text: string(r)}
}

func specialKey(code rune) tea.KeyPressMsg {
	return tea.KeyPressMsg{Code: code}
}

// step applies msg to the model.
func step(t *testing.T, m Model, msg tea.Msg) (Model, tea.Cmd) {
	t.Helper()
	next, cmd := m.Update(msg)
	return next.(Model), cmd
}

// runCmd executes cmd and returns the first cardMsg or answerMsg it yields.
func runCmd(t *testing.T, cmd tea.Cmd) tea.Msg {
	t.Helper()
	require.NotNil(t, cmd)
	msg := cmd()
	if batch, ok := msg.(tea.BatchMsg); ok {
		for _, c := range batch {
			if c == nil {
				continue
			}
			switch got := c().(type) {
			case cardMsg, answerMsg:
				return got
			}
		}
		t.Fatal("batch produced no card or answer")
	}
	return msg
}

func isQuit(cmd tea.Cmd) bool {
	if cmd == nil {
		return false
	}
	_, ok := cmd().(tea.QuitMsg)
	return ok
}

func newTestModel(learner Learner, limit int) Model {
	m := New(context.Background(), learner, "u1", limit, compiler.Context{})
	clock := time.Date(2026, 1, 1, 9, 0, 0, 0, time.UTC)
	m.now = func() time.Time {
		clock = clock.Add(5 * time.Second)
		return clock
	}
	return m
}

func TestStudy_AnswerThenNextCard(t *testing.T) {
	learner := &fakeLearner{}
	m := newTestModel(learner, 0)

	m, _ = step(t, m, runCmd(t, m.Init()))
	require.Equal(t, phaseQuestion, m.phase)
	assert.Contains(t, m.render(), "What is money?")

	m, cmd := step(t, m, specialKey(tea.KeyEnter))
	assert.Equal(t, phaseSubmitting, m.phase)
	m, _ = step(t, m, runCmd(t, cmd))

	require.Len(t, learner.submitted, 1)
	req := learner.submitted[0]
	assert.Equal(t, "card-1", req.CardID)
	assert.Equal(t, 0, req.AnswerIndex)
	assert.Equal(t, 5.0, req.TimeSpentSeconds)
	assert.NotEmpty(t, req.ClientEventID)

	assert.Equal(t, phaseFeedback, m.phase)
	answered, correct := m.Answered()
	assert.Equal(t, 1, answered)
	assert.Equal(t, 1, correct)
	assert.Contains(t, m.render(), "0.05 -> 0.34")

	m, cmd = step(t, m, specialKey(tea.KeyEnter))
	assert.Equal(t, phaseLoading, m.phase)
	m, _ = step(t, m, runCmd(t, cmd))
	assert.Equal(t, phaseQuestion, m.phase)
}

func TestStudy_LetterAnswerIncorrect(t *testing.T) {
	learner := &fakeLearner{}
	m := newTestModel(learner, 0)
	m, _ = step(t, m, runCmd(t, m.Init()))

	m, cmd := step(t, m, keyPress('b'))
	m, _ = step(t, m, runCmd(t, cmd))

	require.Len(t, learner.submitted, 1)
	assert.Equal(t, 1, learner.submitted[0].AnswerIndex)
	_, correct := m.Answered()
	assert.Zero(t, correct)
	assert.Contains(t, m.render(), "Incorrect")
}

func TestStudy_LimitEndsSession(t *testing.T) {
	m := newTestModel(&fakeLearner{}, 1)
	m, _ = step(t, m, runCmd(t, m.Init()))
	m, cmd := step(t, m, specialKey(tea.KeyEnter))
	m, _ = step(t, m, runCmd(t, cmd))

	m, cmd = step(t, m, specialKey(tea.KeyEnter))
	assert.Equal(t, phaseDone, m.phase)
	assert.True(t, isQuit(cmd))
	assert.Contains(t, m.render(), "Session complete")
}

func TestStudy_Quit(t *testing.T) {
	m := newTestModel(&fakeLearner{}, 0)
	m, _ = step(t, m, runCmd(t, m.Init()))

	_, cmd := step(t, m, keyPress('q'))
	assert.True(t, isQuit(cmd))
	_, cmd = step(t, m, tea.KeyPressMsg{Code: 'c', Mod: tea.ModCtrl})
	assert.True(t, isQuit(cmd))
}

func TestStudy_CardErrorEndsSession(t *testing.T) {
	m := newTestModel(&fakeLearner{nextErr: errors.New("no concepts")}, 0)
	m, _ = step(t, m, runCmd(t, m.Init()))

	assert.Equal(t, phaseDone, m.phase)
	assert.EqualError(t, m.Err(), "no concepts")
	assert.Contains(t, m.render(), "Session ended: no concepts")
}
