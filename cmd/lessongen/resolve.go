package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/p-n-ai/pai-lessons/internal/taxonomy"
)

func newResolveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "resolve <query>",
		Short: "Show where a free-text topic lands in the program",
		Args:  cobra.MinimumNArgs(1),
		RunE:  runResolve,
	}
	cmd.Flags().Float64("threshold", 0, "Minimum similarity (overrides LESSON_MATCH_THRESHOLD)")
	return cmd
}

func runResolve(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd, false)
	if err != nil {
		return err
	}
	threshold := cfg.Taxonomy.MatchThreshold
	if cmd.Flags().Changed("threshold") {
		threshold, _ = cmd.Flags().GetFloat64("threshold")
	}

	query := strings.Join(args, " ")
	resolver := taxonomy.NewResolver(taxonomy.Load(cfg.Taxonomy.Path), threshold)

	out := cmd.OutOrStdout()
	m, ok := resolver.ResolveWithThreshold(query, threshold)
	if !ok {
		m = taxonomy.Fallback(query)
		fmt.Fprintf(out, "No match above %.2f, fallback placement:\n", threshold)
	}
	fmt.Fprintf(out, "Topic:       %s\n", m.Topic)
	fmt.Fprintf(out, "Category:    %s\n", m.Category)
	fmt.Fprintf(out, "Subcategory: %s\n", m.Subcategory)
	fmt.Fprintf(out, "Semester:    %d\n", m.Semester)
	fmt.Fprintf(out, "Similarity:  %.3f\n", m.SimilarityScore)
	return nil
}
