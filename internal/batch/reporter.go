package batch

import (
	"context"
	"log/slog"
	"time"

	"github.com/p-n-ai/pai-lessons/internal/lesson"
	"github.com/p-n-ai/pai-lessons/internal/taxonomy"
)

// Reporter receives batch progress.
type Reporter interface {
	Started(ctx context.Context, total int, outputDir string)
	TopicStarted(ctx context.Context, index, total int, node taxonomy.Node)
	TopicSaved(ctx context.Context, node taxonomy.Node, path string, b *lesson.Bundle)
	TopicFailed(ctx context.Context, node taxonomy.Node, err error)
	Paused(ctx context.Context, d time.Duration)
	Finished(ctx context.Context, s *Summary)
}

// LogReporter reports progress through slog.
type LogReporter struct {
	Logger *slog.Logger
}

func (r LogReporter) log() *slog.Logger {
	if r.Logger != nil {
		return r.Logger
	}
	return slog.Default()
}

func (r LogReporter) Started(ctx context.Context, total int, outputDir string) {
	r.log().InfoContext(ctx, "batch generation started", "topics", total, "output_dir", outputDir)
}

func (r LogReporter) TopicStarted(ctx context.Context, index, total int, n taxonomy.Node) {
	r.log().InfoContext(ctx, "generating lesson",
		"index", index,
		"total", total,
		"topic", n.Topic,
		"category", n.Category,
		"subcategory", n.Subcategory,
	)
}

func (r LogReporter) TopicSaved(ctx context.Context, n taxonomy.Node, path string, b *lesson.Bundle) {
	level := slog.LevelInfo
	if b.Degraded() {
		level = slog.LevelWarn
	}
	r.log().Log(ctx, level, "lesson saved",
		"topic", n.Topic,
		"path", path,
		"outcome", b.Metadata.Outcome,
		"questions", len(b.Questions),
	)
}

func (r LogReporter) TopicFailed(ctx context.Context, n taxonomy.Node, err error) {
	r.log().ErrorContext(ctx, "lesson generation failed", "topic", n.Topic, "category", n.Category, "error", err)
}

func (r LogReporter) Paused(ctx context.Context, d time.Duration) {
	r.log().DebugContext(ctx, "pausing to respect upstream rate limits", "pause", d)
}

func (r LogReporter) Finished(ctx context.Context, s *Summary) {
	r.log().InfoContext(ctx, "batch generation finished",
		"total", s.Counts.TotalProcessed,
		"successful", s.Counts.Successful,
		"failed", s.Counts.Failed,
		"degraded", s.Counts.Degraded,
		"success_rate", s.Counts.SuccessRate,
	)
}
