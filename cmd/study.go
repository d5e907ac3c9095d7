package cmd

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/abhisek/learnloop/internal/belief"
	"github.com/abhisek/learnloop/internal/compiler"
	"github.com/abhisek/learnloop/internal/learning"
	"github.com/abhisek/learnloop/internal/observe"
	"github.com/abhisek/learnloop/internal/ui/report"
)

var planCmd = &cobra.Command{
	Use:   "plan",
	Short: "Compile and show a learner's study plan",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp(cmd)
		if err != nil {
			return err
		}
		defer closeApp(a)

		user, _ := cmd.Flags().GetString("user")
		topK, _ := cmd.Flags().GetInt("top-k")
		exclude, _ := cmd.Flags().GetStringSlice("exclude")
		verbose, _ := cmd.Flags().GetBool("verbose")

		view, err := a.Service.Plan(cmd.Context(), user, learning.PlanRequest{
			Exclude: exclude,
			TopK:    topK,
			Context: learnerContext(cmd),
		})
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		fmt.Fprint(out, report.Plan(user, view))
		if verbose {
			fmt.Fprint(out, report.CompilerLog(view.CompilerLog))
		}
		return nil
	},
}

var nextCmd = &cobra.Command{
	Use:   "next",
	Short: "Show the next learning card for a learner",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp(cmd)
		if err != nil {
			return err
		}
		defer closeApp(a)

		user, _ := cmd.Flags().GetString("user")
		exclude, _ := cmd.Flags().GetStringSlice("exclude")
		next, err := a.Service.NextCard(cmd.Context(), user, exclude, learnerContext(cmd))
		if err != nil {
			return err
		}
		fmt.Fprint(cmd.OutOrStdout(), report.Card(next))
		return nil
	},
}

var observeCmd = &cobra.Command{
	Use:   "observe",
	Short: "Record a correct or incorrect answer for a concept",
	RunE: func(cmd *cobra.Command, args []string) error {
		user, _ := cmd.Flags().GetString("user")
		conceptID, _ := cmd.Flags().GetString("concept")
		outcome, _ := cmd.Flags().GetString("outcome")

		obs, err := belief.ParseObservation(outcome)
		if err != nil {
			return err
		}

		a, err := openApp(cmd)
		if err != nil {
			return err
		}
		defer closeApp(a)

		prev, updated, err := a.Engine.ApplyObservation(cmd.Context(), user, conceptID, obs, observe.Meta{
			EventID: uuid.NewString(),
		})
		if err != nil {
			return err
		}
		fmt.Fprint(cmd.OutOrStdout(), report.Observation(conceptID, prev, updated, a.Config.MasteryThreshold))
		return nil
	},
}

var progressCmd = &cobra.Command{
	Use:   "progress",
	Short: "Show a learner's mastery across the curriculum",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp(cmd)
		if err != nil {
			return err
		}
		defer closeApp(a)

		user, _ := cmd.Flags().GetString("user")
		p, err := a.Service.Progress(cmd.Context(), user)
		if err != nil {
			return err
		}
		fmt.Fprint(cmd.OutOrStdout(), report.Progress(p))
		return nil
	},
}

var explainCmd = &cobra.Command{
	Use:   "explain <concept-id>",
	Short: "Explain a learner's standing on one concept",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp(cmd)
		if err != nil {
			return err
		}
		defer closeApp(a)

		user, _ := cmd.Flags().GetString("user")
		e, err := a.Service.Explain(cmd.Context(), user, args[0])
		if err != nil {
			return err
		}
		fmt.Fprint(cmd.OutOrStdout(), report.Explain(e))
		return nil
	},
}

var tracesCmd = &cobra.Command{
	Use:   "traces",
	Short: "List recent plan compilation traces",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp(cmd)
		if err != nil {
			return err
		}
		defer closeApp(a)

		user, _ := cmd.Flags().GetString("user")
		limit, _ := cmd.Flags().GetInt("limit")
		traces, err := a.Service.Traces(cmd.Context(), user, limit)
		if err != nil {
			return err
		}
		fmt.Fprint(cmd.OutOrStdout(), report.Traces(user, traces))
		return nil
	},
}

// learnerContext builds the relevance context from plan flags.
func learnerContext(cmd *cobra.Command) compiler.Context {
	var lctx compiler.Context
	lctx.FocusTags, _ = cmd.Flags().GetStringSlice("focus")
	lctx.RiskLevel, _ = cmd.Flags().GetString("risk-level")
	lctx.SpendingTrend, _ = cmd.Flags().GetString("spending-trend")
	lctx.HasDebt, _ = cmd.Flags().GetBool("has-debt")
	if cmd.Flags().Changed("savings-rate") {
		rate, _ := cmd.Flags().GetFloat64("savings-rate")
		lctx.SavingsRate = &rate
	}
	for i, tag := range lctx.FocusTags {
		lctx.FocusTags[i] = strings.TrimSpace(tag)
	}
	return lctx
}

func addContextFlags(cmd *cobra.Command) {
	cmd.Flags().StringSlice("exclude", nil, "Concept IDs to skip")
	cmd.Flags().StringSlice("focus", nil, "Focus tags to boost (e.g. saving,debt)")
	cmd.Flags().String("risk-level", "", "Learner risk level (high boosts budgeting topics)")
	cmd.Flags().String("spending-trend", "", "Spending trend (increasing boosts expense topics)")
	cmd.Flags().Float64("savings-rate", 0, "Savings rate as a fraction of income")
	cmd.Flags().Bool("has-debt", false, "Learner carries debt")
}

func init() {
	for _, c := range []*cobra.Command{planCmd, nextCmd, observeCmd, progressCmd, explainCmd, tracesCmd} {
		c.Flags().StringP("user", "u", learning.DefaultUserID, "Learner ID")
	}

	addContextFlags(planCmd)
	addContextFlags(nextCmd)
	planCmd.Flags().IntP("top-k", "k", 0, "Plan length (default from LEARNLOOP_TOP_K)")
	planCmd.Flags().BoolP("verbose", "v", false, "Print the compiler decision log")

	observeCmd.Flags().StringP("concept", "c", "", "Concept ID")
	observeCmd.Flags().StringP("outcome", "o", "", "correct or incorrect")
	_ = observeCmd.MarkFlagRequired("concept")
	_ = observeCmd.MarkFlagRequired("outcome")

	tracesCmd.Flags().IntP("limit", "n", 20, "Number of traces to show")
}
