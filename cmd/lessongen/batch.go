package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/p-n-ai/pai-lessons/internal/batch"
)

func newBatchCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "batch",
		Short: "Generate a lesson file for every program topic",
		Args:  cobra.NoArgs,
		RunE:  runBatch,
	}
	cmd.Flags().String("category", "", "Only topics whose category contains this text (case-insensitive)")
	cmd.Flags().Int("semester", 0, "Only topics of this semester")
	cmd.Flags().Int("max", 0, "Stop after this many topics")
	cmd.Flags().String("out", "", "Output directory (overrides LESSON_OUTPUT_DIR)")
	cmd.Flags().Int("pause-every", 0, "Pause after this many topics (overrides LESSON_BATCH_PAUSE_EVERY)")
	cmd.Flags().Duration("pause", 0, "Pause length (overrides LESSON_BATCH_PAUSE)")
	cmd.Flags().Bool("no-report", false, "Skip the XLSX run report")
	return cmd
}

func runBatch(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd, true)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := buildApp(ctx, cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	opts := batch.Options{
		OutputDir:   cfg.Batch.OutputDir,
		PauseEvery:  cfg.Batch.PauseEvery,
		Pause:       cfg.Batch.Pause,
		WriteReport: cfg.Batch.WriteReport,
	}
	flags := cmd.Flags()
	if flags.Changed("out") {
		opts.OutputDir, _ = flags.GetString("out")
	}
	if flags.Changed("pause-every") {
		opts.PauseEvery, _ = flags.GetInt("pause-every")
	}
	if flags.Changed("pause") {
		opts.Pause, _ = flags.GetDuration("pause")
	}
	if noReport, _ := flags.GetBool("no-report"); noReport {
		opts.WriteReport = false
	}

	var f batch.Filter
	f.Category, _ = flags.GetString("category")
	f.Semester, _ = flags.GetInt("semester")
	f.Max, _ = flags.GetInt("max")

	summary, err := batch.NewRunner(a.Engine, a.Index, opts).Run(ctx, f)
	if summary != nil {
		printSummary(cmd, summary)
	}
	if err != nil {
		return err
	}
	if summary.Counts.Failed > 0 {
		return fmt.Errorf("%d of %d topics failed", summary.Counts.Failed, summary.Counts.TotalProcessed)
	}
	return nil
}

func printSummary(cmd *cobra.Command, s *batch.Summary) {
	out := cmd.OutOrStdout()
	c := s.Counts
	fmt.Fprintf(out, "Processed %d topics: %d generated (%d degraded), %d failed, success rate %s\n",
		c.TotalProcessed, c.Successful, c.Degraded, c.Failed, c.SuccessRate)
	for _, cc := range s.Categories() {
		fmt.Fprintf(out, "  %-50s %d\n", cc.Category, cc.Topics)
	}
	for _, t := range s.FailedTopics {
		fmt.Fprintf(out, "  failed: %s\n", t)
	}
	fmt.Fprintf(out, "Output: %s\n", c.OutputDirectory)
}
