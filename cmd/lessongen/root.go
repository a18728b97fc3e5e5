package main

import (
	"context"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/p-n-ai/pai-lessons/internal/app"
	"github.com/p-n-ai/pai-lessons/internal/platform/config"
	"github.com/p-n-ai/pai-lessons/internal/platform/logging"
)

// buildApp wires the lesson engine; tests replace it.
var buildApp = func(ctx context.Context, cfg *config.Config) (*app.App, error) {
	return app.Build(ctx, cfg)
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:          "lessongen",
		Short:        "Generate adaptive medical lessons",
		Long:         "lessongen resolves topics against the academic program and generates lessons with retrieved context.",
		SilenceUsage: true,
	}
	root.PersistentFlags().String("taxonomy", "", "Path to the program file (overrides LESSON_TAXONOMY_PATH)")

	root.AddCommand(newBatchCmd())
	root.AddCommand(newGenerateCmd())
	root.AddCommand(newResolveCmd())
	root.AddCommand(newTaxonomyCmd())
	return root
}

// Execute runs the root command.
func Execute() error {
	return newRootCmd().Execute()
}

// loadConfig reads the environment, applies persistent flags and installs
// a logger on stderr. Commands that call a gateway pass validate.
func loadConfig(cmd *cobra.Command, validate bool) (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	if p, _ := cmd.Flags().GetString("taxonomy"); p != "" {
		cfg.Taxonomy.Path = p
	}
	slog.SetDefault(logging.NewWithWriter(cfg.Log, cmd.ErrOrStderr()))

	if validate {
		if err := cfg.Validate(); err != nil {
			return nil, err
		}
	}
	return cfg, nil
}
