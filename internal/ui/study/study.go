// Package study is the interactive terminal study loop: it serves the next
// card, takes an answer and shows the resulting belief change.
package study

import (
	"context"
	"fmt"
	"strings"
	"time"

	"charm.land/bubbles/v2/key"
	"charm.land/bubbles/v2/spinner"
	tea "charm.land/bubbletea/v2"
	"charm.land/lipgloss/v2"
	"github.com/google/uuid"

	"github.com/abhisek/learnloop/internal/compiler"
	"github.com/abhisek/learnloop/internal/learning"
	"github.com/abhisek/learnloop/internal/ui/components"
	"github.com/abhisek/learnloop/internal/ui/theme"
)

// Learner is the part of the learning service the study loop drives.
type Learner interface {
	NextCard(ctx context.Context, userID string, exclude []string, lctx compiler.Context) (*learning.NextCard, error)
	SubmitAnswer(ctx context.Context, userID string, req learning.SubmitRequest) (*learning.SubmitResult, error)
}

type phase int

const (
	phaseLoading phase = iota
	phaseQuestion
	phaseSubmitting
	phaseFeedback
	phaseDone
)

type cardMsg struct {
	next *learning.NextCard
	err  error
}

type answerMsg struct {
	result *learning.SubmitResult
	err    error
}

var (
	nextKey = key.NewBinding(key.WithKeys("enter", "n", "space"), key.WithHelp("enter", "next card"))
	quitKey = key.NewBinding(key.WithKeys("q", "esc", "ctrl+c"), key.WithHelp("q", "quit"))
)

// Model is the Bubble Tea model of one study session.
type Model struct {
	ctx     context.Context
	learner Learner
	userID  string
	limit   int
	lctx    compiler.Context

	phase    phase
	spinner  spinner.Model
	card     *learning.NextCard
	choice   components.MultiChoice
	shownAt  time.Time
	result   *learning.SubmitResult
	err      error
	answered int
	correct  int
	now      func() time.Time
}

// New creates a session for userID that ends after limit answers, or runs
// until the learner quits when limit is zero.
func New(ctx context.Context, learner Learner, userID string, limit int, lctx compiler.Context) Model {
	return Model{
		ctx:     ctx,
		learner: learner,
		userID:  userID,
		limit:   limit,
		lctx:    lctx,
		spinner: spinner.New(spinner.WithSpinner(spinner.Dot), spinner.WithStyle(lipgloss.NewStyle().Foreground(theme.Primary))),
		now:     time.Now,
	}
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, m.fetchCard())
}

// Answered returns how many answers were recorded and how many were correct.
func (m Model) Answered() (answered, correct int) {
	return m.answered, m.correct
}

// Err returns the error that ended the session, if any.
func (m Model) Err() error {
	return m.err
}

func (m Model) fetchCard() tea.Cmd {
	return func() tea.Msg {
		next, err := m.learner.NextCard(m.ctx, m.userID, nil, m.lctx)
		return cardMsg{next: next, err: err}
	}
}

func (m Model) submit(index int, spent time.Duration) tea.Cmd {
	req := learning.SubmitRequest{
		CardID:           m.card.Card.ID,
		AnswerIndex:      index,
		TimeSpentSeconds: spent.Seconds(),
		ClientEventID:    uuid.NewString(),
	}
	return func() tea.Msg {
		res, err := m.learner.SubmitAnswer(m.ctx, m.userID, req)
		return answerMsg{result: res, err: err}
	}
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case cardMsg:
		if msg.err != nil {
			m.err = msg.err
			m.phase = phaseDone
			return m, nil
		}
		q := msg.next.Card.Quiz
		m.card = msg.next
		m.choice = components.NewMultiChoice(q.Question, q.Options, q.CorrectAnswerIndex)
		m.shownAt = m.now()
		m.result = nil
		m.phase = phaseQuestion
		return m, nil

	case answerMsg:
		if msg.err != nil {
			m.err = msg.err
			m.phase = phaseDone
			return m, nil
		}
		m.result = msg.result
		m.answered++
		if msg.result.IsCorrect {
			m.correct++
		}
		m.phase = phaseFeedback
		return m, nil

	case spinner.TickMsg:
		if m.phase != phaseLoading && m.phase != phaseSubmitting {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case tea.KeyMsg:
		return m.handleKey(msg)
	}
	return m, nil
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if msg.String() == "ctrl+c" {
		return m, tea.Quit
	}

	switch m.phase {
	case phaseQuestion:
		if key.Matches(msg, quitKey) {
			return m, tea.Quit
		}
		var cmd tea.Cmd
		m.choice, cmd = m.choice.Update(msg)
		if m.choice.Submitted {
			m.phase = phaseSubmitting
			return m, tea.Batch(cmd, m.spinner.Tick, m.submit(m.choice.ChosenIndex, m.now().Sub(m.shownAt)))
		}
		return m, cmd

	case phaseFeedback:
		switch {
		case key.Matches(msg, quitKey):
			return m, tea.Quit
		case key.Matches(msg, nextKey):
			if m.limit > 0 && m.answered >= m.limit {
				m.phase = phaseDone
				return m, tea.Quit
			}
			m.phase = phaseLoading
			return m, tea.Batch(m.spinner.Tick, m.fetchCard())
		}

	case phaseDone:
		return m, tea.Quit

	default:
		if key.Matches(msg, quitKey) {
			return m, tea.Quit
		}
	}
	return m, nil
}

func (m Model) View() tea.View {
	v := tea.NewView("")
	v.SetContent(m.render())
	return v
}

func (m Model) render() string {
	var b strings.Builder
	b.WriteString(theme.Title.Render("Study session") + "  " +
		theme.Subtitle.Render(fmt.Sprintf("%d answered, %d correct", m.answered, m.correct)) + "\n\n")

	switch m.phase {
	case phaseLoading:
		b.WriteString(m.spinner.View() + " preparing your next card\n")

	case phaseQuestion, phaseSubmitting:
		b.WriteString(m.renderCard())
		if m.phase == phaseSubmitting {
			b.WriteString("\n" + m.spinner.View() + " checking\n")
		} else {
			b.WriteString("\n" + theme.Hint.Render("↑/↓ choose  enter or letter answers  q quits") + "\n")
		}

	case phaseFeedback:
		b.WriteString(m.renderCard())
		b.WriteString("\n" + m.renderFeedback())
		b.WriteString("\n" + theme.Hint.Render("enter next card  q quits") + "\n")

	case phaseDone:
		if m.err != nil {
			b.WriteString(theme.Failure.Render("Session ended: "+m.err.Error()) + "\n")
		} else {
			b.WriteString(theme.Mastered.Render("Session complete") + "\n")
		}
	}
	return b.String()
}

func (m Model) renderCard() string {
	card := m.card.Card
	ex := m.card.Explanation
	var b strings.Builder
	b.WriteString(theme.Title.Render(card.Title) + "  " +
		theme.Level(string(ex.MasteryLevel)).Render(string(ex.MasteryLevel)) + "\n")
	b.WriteString(theme.Hint.Render(ex.WhySelected) + "\n\n")
	b.WriteString(theme.Panel.Render(theme.Body.Render(card.Content)) + "\n\n")
	b.WriteString(m.choice.View())
	return b.String()
}

func (m Model) renderFeedback() string {
	r := m.result
	verdict := theme.Mastered.Render("Correct")
	if !r.IsCorrect {
		verdict = theme.Failure.Render("Incorrect")
	}
	u := r.BeliefUpdate
	return fmt.Sprintf("%s  %s\n%s  mastered %.2f -> %.2f (%s)  %s\n%s\n",
		verdict,
		theme.Body.Render(r.Explanation),
		theme.Body.Bold(true).Render(u.ConceptID),
		u.PreviousMastery, u.NewMastery, u.Change,
		theme.Level(string(u.MasteryLevel)).Render(string(u.MasteryLevel)),
		components.NewProgressBar("", u.NewMastery, true, 30).View(),
	)
}

// Run drives a session on the terminal and returns the final model.
func Run(m Model, opts ...tea.ProgramOption) (Model, error) {
	final, err := tea.NewProgram(m, opts...).Run()
	if err != nil {
		return m, fmt.Errorf("study session: %w", err)
	}
	return final.(Model), nil
}
