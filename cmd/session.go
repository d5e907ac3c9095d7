package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/abhisek/learnloop/internal/learning"
	"github.com/abhisek/learnloop/internal/ui/study"
)

var studyCmd = &cobra.Command{
	Use:   "study",
	Short: "Study interactively: answer cards and watch mastery change",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp(cmd)
		if err != nil {
			return err
		}
		defer closeApp(a)

		user, _ := cmd.Flags().GetString("user")
		limit, _ := cmd.Flags().GetInt("cards")

		m := study.New(cmd.Context(), a.Service, user, limit, learnerContext(cmd))
		final, err := study.Run(m)
		if err != nil {
			return err
		}
		if err := final.Err(); err != nil {
			return err
		}
		answered, correct := final.Answered()
		fmt.Fprintf(cmd.OutOrStdout(), "%d answered, %d correct\n", answered, correct)
		return nil
	},
}

func init() {
	studyCmd.Flags().StringP("user", "u", learning.DefaultUserID, "Learner ID")
	studyCmd.Flags().IntP("cards", "n", 0, "Stop after this many answers (0 runs until you quit)")
	addContextFlags(studyCmd)
}
