// Package report renders engine state for the terminal.
package report

import (
	"fmt"
	"strings"

	"github.com/abhisek/learnloop/internal/belief"
	"github.com/abhisek/learnloop/internal/conceptgraph"
	"github.com/abhisek/learnloop/internal/learning"
	"github.com/abhisek/learnloop/internal/store"
	"github.com/abhisek/learnloop/internal/ui/components"
	"github.com/abhisek/learnloop/internal/ui/theme"
)

const barWidth = 24

func bar(mastered float64) string {
	return components.NewProgressBar("", mastered, true, barWidth).View()
}

// Plan renders a compiled plan, top pick highlighted.
func Plan(userID string, v *learning.PlanView) string {
	var b strings.Builder
	b.WriteString(theme.Title.Render("Plan for "+userID) + "\n")
	if v.Fallback {
		b.WriteString(theme.Hint.Render("nothing ready, showing foundations") + "\n")
	}
	if len(v.Plan) == 0 {
		b.WriteString(theme.Hint.Render("no concepts to study") + "\n")
		return b.String()
	}

	for i, e := range v.Plan {
		line := fmt.Sprintf("%d. %s  %s\n   %s  %s",
			i+1,
			theme.Body.Bold(true).Render(e.ConceptName),
			theme.Subtitle.Render(fmt.Sprintf("[%s · priority %.2f]", e.Action, e.Priority)),
			bar(e.Mastered),
			theme.Hint.Render(e.Reason),
		)
		if e.Card != nil {
			line += "\n   " + theme.Subtitle.Render("card: "+e.Card.Title)
		}
		if i == 0 {
			b.WriteString(theme.Highlight.Render(line) + "\n")
		} else {
			b.WriteString(line + "\n")
		}
	}

	if v.TraceID != "" {
		b.WriteString(theme.Hint.Render("trace "+v.TraceID) + "\n")
	}
	return b.String()
}

// CompilerLog renders the compiler's decision log.
func CompilerLog(lines []string) string {
	if len(lines) == 0 {
		return ""
	}
	return theme.Panel.Render(theme.Subtitle.Render(strings.Join(lines, "\n"))) + "\n"
}

// Progress renders per-concept mastery in curriculum order.
func Progress(p *learning.Progress) string {
	var b strings.Builder
	b.WriteString(theme.Title.Render("Progress for "+p.UserID) + "\n")
	b.WriteString(theme.Subtitle.Render(fmt.Sprintf("%d of %d mastered", p.MasteredCount, p.TotalConcepts)) + "\n")
	b.WriteString(components.NewProgressBar("Overall", p.OverallProgress, true, barWidth+9).View() + "\n\n")

	for _, c := range p.Concepts {
		fmt.Fprintf(&b, "%s %-24s %s  %s\n",
			lessonMarker(c.State),
			c.ConceptName,
			bar(c.MasteryScore),
			theme.Level(string(c.MasteryLevel)).Render(string(c.MasteryLevel)),
		)
	}

	legend := make([]string, len(learning.LessonStates))
	for i, st := range learning.LessonStates {
		legend[i] = st.Marker() + " " + string(st)
	}
	b.WriteString("\n" + theme.Hint.Render(strings.Join(legend, "  ")) + "\n")
	return b.String()
}

func lessonMarker(st learning.LessonState) string {
	switch st {
	case learning.LessonCompleted:
		return theme.Mastered.Render(st.Marker())
	case learning.LessonCurrent:
		return theme.Title.Render(st.Marker())
	case learning.LessonLocked:
		return theme.Failure.Render(st.Marker())
	case learning.LessonFuture:
		return theme.Unknown.Render(st.Marker())
	}
	panic(fmt.Sprintf("report: unhandled lesson state %q", string(st)))
}

// Observation renders the belief change caused by one answer.
func Observation(conceptID string, prev, updated belief.State, threshold float64) string {
	before := prev.Level(threshold)
	after := updated.Level(threshold)
	line := fmt.Sprintf("%s  mastered %.2f -> %.2f  %s",
		theme.Body.Bold(true).Render(conceptID),
		prev.Mastered, updated.Mastered,
		theme.Level(string(after)).Render(string(after)),
	)
	if before != after {
		line += theme.Hint.Render(fmt.Sprintf("  (was %s)", before))
	}
	return line + "\n" + bar(updated.Mastered) + "\n"
}

// Graph renders concepts in topological order with their prerequisites.
func Graph(g *conceptgraph.Graph) string {
	var b strings.Builder
	b.WriteString(theme.Title.Render(fmt.Sprintf("%d concepts", g.Len())) + "\n")
	for i, c := range g.TopologicalOrder() {
		line := fmt.Sprintf("%2d. %s %s", i+1, theme.Body.Render(c.ID), theme.Subtitle.Render(fmt.Sprintf("(difficulty %d)", c.Difficulty)))
		if c.HasPrerequisites() {
			line += theme.Hint.Render("  needs " + strings.Join(c.Prerequisites, ", "))
		}
		b.WriteString(line + "\n")
	}
	return b.String()
}

// Traces renders compilation traces, newest first.
func Traces(userID string, traces []store.TraceRecord) string {
	var b strings.Builder
	b.WriteString(theme.Title.Render("Traces for "+userID) + "\n")
	if len(traces) == 0 {
		b.WriteString(theme.Hint.Render("no traces recorded") + "\n")
		return b.String()
	}
	for _, tr := range traces {
		fmt.Fprintf(&b, "%s  %s  %s\n   %s\n",
			theme.Subtitle.Render(tr.Timestamp.Local().Format("2006-01-02 15:04:05")),
			theme.Body.Bold(true).Render(tr.SelectedConcept),
			theme.Hint.Render(tr.ID),
			tr.Reason,
		)
	}
	return b.String()
}

// Card renders a learning card with its quiz options numbered from 0.
func Card(next *learning.NextCard) string {
	c := next.Card
	var b strings.Builder
	b.WriteString(theme.Title.Render(c.Title) + "\n")
	b.WriteString(theme.Subtitle.Render(fmt.Sprintf("%s · %s · card %s", next.Explanation.ConceptName, next.Explanation.Action, c.ID)) + "\n\n")
	b.WriteString(theme.Body.Render(c.Content) + "\n\n")
	b.WriteString(theme.Body.Bold(true).Render(c.Quiz.Question) + "\n")
	for i, opt := range c.Quiz.Options {
		fmt.Fprintf(&b, "  [%d] %s\n", i, opt)
	}
	b.WriteString("\n" + theme.Hint.Render(next.Explanation.WhySelected) + "\n")
	return theme.Panel.Render(strings.TrimRight(b.String(), "\n")) + "\n"
}

// Explain renders one concept's belief and prerequisite standing.
func Explain(e *learning.ConceptExplanation) string {
	var b strings.Builder
	b.WriteString(theme.Title.Render(e.ConceptName) + "  " + theme.Level(string(e.MasteryLevel)).Render(string(e.MasteryLevel)) + "\n")
	b.WriteString(theme.Subtitle.Render(e.Description) + "\n")
	fmt.Fprintf(&b, "belief  unknown %.2f  partial %.2f  mastered %.2f  (%d answers)\n",
		e.BeliefState.Unknown, e.BeliefState.Partial, e.BeliefState.Mastered, e.InteractionCount)
	b.WriteString(bar(e.BeliefState.Mastered) + "\n")

	if !e.HasPrerequisites {
		b.WriteString(theme.Hint.Render("no prerequisites") + "\n")
		return b.String()
	}
	for _, p := range e.PrerequisitesStatus {
		mark := theme.Failure.Render("✗")
		if p.Mastered {
			mark = theme.Mastered.Render("✓")
		}
		fmt.Fprintf(&b, "  %s %s %.2f\n", mark, p.Concept, p.Mastery)
	}
	if e.Ready {
		b.WriteString(theme.Mastered.Render("ready") + "\n")
	} else {
		b.WriteString(theme.Hint.Render("blocked by prerequisites") + "\n")
	}
	if len(e.StudyPath) > 0 {
		b.WriteString(theme.Subtitle.Render("study first: "+strings.Join(e.StudyPath, " -> ")) + "\n")
	}
	return b.String()
}
