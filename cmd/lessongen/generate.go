package main

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/spf13/cobra"

	"github.com/p-n-ai/pai-lessons/internal/lesson"
)

const defaultCLIUser = "cli_user"

func newGenerateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "generate <topic>",
		Short: "Generate one lesson and print it as JSON",
		Args:  cobra.MinimumNArgs(1),
		RunE:  runGenerate,
	}
	cmd.Flags().String("user", defaultCLIUser, "Learner user id")
	cmd.Flags().String("level", lesson.DefaultLevel, "Learner level")
	cmd.Flags().StringSlice("weak", nil, "Weak concepts to emphasise (comma-separated)")
	cmd.Flags().String("category", "", "Place the lesson under this category (requires --subcategory)")
	cmd.Flags().String("subcategory", "", "Place the lesson under this subcategory (requires --category)")
	return cmd
}

func runGenerate(cmd *cobra.Command, args []string) error {
	flags := cmd.Flags()
	category, _ := flags.GetString("category")
	subcategory, _ := flags.GetString("subcategory")
	if (category == "") != (subcategory == "") {
		return fmt.Errorf("--category and --subcategory must be given together")
	}

	cfg, err := loadConfig(cmd, true)
	if err != nil {
		return err
	}
	a, err := buildApp(cmd.Context(), cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	user, _ := flags.GetString("user")
	profile := lesson.NewUserProfile(user)
	profile.CurrentLevel, _ = flags.GetString("level")
	if weak, _ := flags.GetStringSlice("weak"); len(weak) > 0 {
		profile.WeakConcepts = weak
	}

	res, err := a.Engine.Run(cmd.Context(), lesson.Request{
		Topic:       strings.Join(args, " "),
		Profile:     profile,
		Category:    category,
		Subcategory: subcategory,
	})
	if err != nil {
		return err
	}
	if err := a.Store.Save(res.Bundle); err != nil {
		slog.Warn("failed to save lesson", "lesson_id", res.Bundle.Lesson.LessonID, "error", err)
	}

	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	return enc.Encode(res.Bundle)
}
