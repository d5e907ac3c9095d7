package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/abhisek/learnloop/internal/app"
	"github.com/abhisek/learnloop/internal/conceptgraph"
	"github.com/abhisek/learnloop/internal/ui/report"
)

var graphCmd = &cobra.Command{
	Use:   "graph",
	Short: "Validate and print the active concept graph",
	RunE: func(cmd *cobra.Command, args []string) error {
		g, source, err := activeGraph(cmd)
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		fmt.Fprint(out, report.Graph(g))
		fmt.Fprintf(out, "source: %s\n", source)
		return nil
	},
}

var curriculumCmd = &cobra.Command{
	Use:   "curriculum",
	Short: "Manage the stored curriculum",
}

var curriculumImportCmd = &cobra.Command{
	Use:   "import <file.yaml>",
	Short: "Validate a YAML curriculum and store it in the database",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		g, err := conceptgraph.LoadFile(args[0])
		if err != nil {
			return err
		}

		s, err := openStore(cmd)
		if err != nil {
			return err
		}
		defer s.Close()

		if err := s.ConceptRepo().ReplaceConcepts(cmd.Context(), g.Concepts()); err != nil {
			return fmt.Errorf("store curriculum: %w", err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Imported %d concepts (%d roots).\n", g.Len(), len(g.Roots()))
		return nil
	},
}

var curriculumExportCmd = &cobra.Command{
	Use:   "export [file.yaml]",
	Short: "Write the active curriculum as YAML",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		g, _, err := activeGraph(cmd)
		if err != nil {
			return err
		}
		data, err := conceptgraph.MarshalYAML(g.Concepts())
		if err != nil {
			return err
		}
		if len(args) == 0 {
			_, err = cmd.OutOrStdout().Write(data)
			return err
		}
		return os.WriteFile(args[0], data, 0o644)
	},
}

// activeGraph resolves the graph the engine would serve, without building it.
func activeGraph(cmd *cobra.Command) (*conceptgraph.Graph, string, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, "", err
	}
	s, err := openStore(cmd)
	if err != nil {
		return nil, "", err
	}
	defer s.Close()
	return app.LoadGraph(cmd.Context(), cfg.Curriculum, s.ConceptRepo())
}

func init() {
	curriculumCmd.AddCommand(curriculumImportCmd)
	curriculumCmd.AddCommand(curriculumExportCmd)
}
