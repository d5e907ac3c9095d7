package compiler

import (
	"math"
	"slices"
	"strings"
)

// Context carries learner signals that make some concepts more relevant
// right now. The zero value is neutral.
type Context struct {
	RiskLevel     string   `json:"risk_level,omitempty"`     // "high" boosts budgeting and emergency topics
	SpendingTrend string   `json:"spending_trend,omitempty"` // "increasing" boosts expense topics
	SavingsRate   *float64 `json:"savings_rate,omitempty"`   // below 0.2 boosts saving topics
	HasDebt       bool     `json:"has_debt,omitempty"`
	FocusTags     []string `json:"focus_tags,omitempty"` // explicit learner interests
}

type relevanceRule struct {
	applies func(Context) bool
	tags    []string
	factor  float64
}

var relevanceRules = []relevanceRule{
	{
		applies: func(c Context) bool { return strings.EqualFold(c.RiskLevel, "high") },
		tags:    []string{"budget", "emergency", "expense"},
		factor:  1.5,
	},
	{
		applies: func(c Context) bool { return strings.EqualFold(c.SpendingTrend, "increasing") },
		tags:    []string{"expense", "tracking", "budget"},
		factor:  1.3,
	},
	{
		applies: func(c Context) bool { return c.SavingsRate != nil && *c.SavingsRate < 0.2 },
		tags:    []string{"saving", "emergency"},
		factor:  1.4,
	},
	{
		applies: func(c Context) bool { return c.HasDebt },
		tags:    []string{"debt"},
		factor:  1.6,
	},
}

// focusFactor is applied once per focus tag the concept carries.
const focusFactor = 1.5

// relevance returns the multiplier for a concept with the given tags,
// in [1, maxRelevance].
func relevance(ctx Context, tags []string, maxRelevance float64) float64 {
	r := 1.0
	hasAny := func(want []string) bool {
		for _, t := range tags {
			if slices.Contains(want, strings.ToLower(t)) {
				return true
			}
		}
		return false
	}
	for _, rule := range relevanceRules {
		if rule.applies(ctx) && hasAny(rule.tags) {
			r *= rule.factor
		}
	}
	for _, focus := range ctx.FocusTags {
		if hasAny([]string{strings.ToLower(focus)}) {
			r *= focusFactor
		}
	}
	return math.Min(r, maxRelevance)
}

// IsNeutral reports whether the context leaves every relevance at 1.
func (c Context) IsNeutral() bool {
	for _, rule := range relevanceRules {
		if rule.applies(c) {
			return false
		}
	}
	return len(c.FocusTags) == 0
}
