package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/abhisek/learnloop/internal/app"
	"github.com/abhisek/learnloop/internal/config"
	"github.com/abhisek/learnloop/internal/logger"
	"github.com/abhisek/learnloop/internal/store"
)

var rootCmd = &cobra.Command{
	Use:   "learnloop",
	Short: "Adaptive learning curriculum engine",
	Long: "learnloop tracks what each learner knows about a graph of concepts and " +
		"compiles a ranked study plan from those beliefs.",
	SilenceUsage: true,
}

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().String("db", "", "Path to SQLite database file (overrides LEARNLOOP_DB env var)")
	rootCmd.PersistentFlags().String("store", "", "Storage backend: sqlite or memory (overrides LEARNLOOP_STORE env var)")
	rootCmd.PersistentFlags().String("curriculum", "", "Curriculum YAML file (overrides LEARNLOOP_CURRICULUM env var)")
	rootCmd.PersistentFlags().String("log-mode", "", "Log encoding: prod or dev (overrides LEARNLOOP_LOG_MODE env var)")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(planCmd)
	rootCmd.AddCommand(nextCmd)
	rootCmd.AddCommand(studyCmd)
	rootCmd.AddCommand(observeCmd)
	rootCmd.AddCommand(progressCmd)
	rootCmd.AddCommand(explainCmd)
	rootCmd.AddCommand(graphCmd)
	rootCmd.AddCommand(tracesCmd)
	rootCmd.AddCommand(curriculumCmd)
	rootCmd.AddCommand(llmCmd)
	rootCmd.AddCommand(versionCmd)
}

// loadConfig reads LEARNLOOP_* settings and applies persistent flag overrides.
func loadConfig(cmd *cobra.Command) (config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return cfg, err
	}
	if p, _ := cmd.Flags().GetString("curriculum"); p != "" {
		cfg.Curriculum = p
	}
	if m, _ := cmd.Flags().GetString("log-mode"); m != "" {
		cfg.LogMode = m
	}
	if b, _ := cmd.Flags().GetString("store"); b != "" {
		cfg.Store = b
	}
	return cfg, cfg.Validate()
}

// resolveDBPath returns the database path using --db flag (highest priority),
// then LEARNLOOP_DB env var, then the default XDG path.
func resolveDBPath(cmd *cobra.Command) (string, error) {
	if p, _ := cmd.Flags().GetString("db"); p != "" {
		return p, store.EnsureDir(p)
	}
	return store.DefaultDBPath()
}

// openStore opens the database without building the engine.
func openStore(cmd *cobra.Command) (*store.Store, error) {
	dbPath, err := resolveDBPath(cmd)
	if err != nil {
		return nil, fmt.Errorf("resolve database path: %w", err)
	}
	s, err := store.Open(dbPath)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	return s, nil
}

// openApp builds the full engine. Callers must Close the app and Sync the logger.
func openApp(cmd *cobra.Command) (*app.App, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, err
	}
	var dbPath string
	if cfg.Store == config.StoreSQLite {
		if dbPath, err = resolveDBPath(cmd); err != nil {
			return nil, fmt.Errorf("resolve database path: %w", err)
		}
	}
	log, err := logger.New(cfg.LogMode)
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}
	a, err := app.New(cmd.Context(), app.Options{
		DBPath:         dbPath,
		CurriculumPath: cfg.Curriculum,
		Config:         cfg,
		Log:            log,
	})
	if err != nil {
		log.Sync()
		return nil, err
	}
	return a, nil
}

// closeApp releases the engine and flushes logs.
func closeApp(a *app.App) {
	if err := a.Close(); err != nil {
		a.Log.Warn("close failed", "error", err)
	}
	a.Log.Sync()
}
