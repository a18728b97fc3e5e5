// Package batch walks the taxonomy, generates a lesson for every selected
// topic and writes one JSON file per topic plus a run summary.
package batch

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/p-n-ai/pai-lessons/internal/lesson"
	"github.com/p-n-ai/pai-lessons/internal/platform/logging"
	"github.com/p-n-ai/pai-lessons/internal/taxonomy"
)

const (
	DefaultPauseEvery = 5
	DefaultPause      = 2 * time.Second
	DefaultUserID     = "batch_generator"
)

// Generator runs one lesson request; *lesson.Engine satisfies it.
type Generator interface {
	Run(ctx context.Context, req lesson.Request) (*lesson.Result, error)
}

// Filter selects the topics of a run. Filters apply in field order.
type Filter struct {
	// Category keeps topics whose category contains it, ignoring case.
	Category string
	// Semester keeps topics of one semester when positive.
	Semester int
	// Max keeps the first Max topics when positive.
	Max int
}

// Options configures a Runner.
type Options struct {
	OutputDir   string
	PauseEvery  int
	Pause       time.Duration
	Profile     *lesson.UserProfile
	WriteReport bool
	Reporter    Reporter
	Now         func() time.Time
	// Sleep waits between throttled topics; defaults to a context-aware timer.
	Sleep func(ctx context.Context, d time.Duration) error
}

// DefaultProfile is the learner profile batch lessons are generated for.
func DefaultProfile() lesson.UserProfile {
	p := lesson.NewUserProfile(DefaultUserID)
	p.WeakConcepts = []string{"general concepts"}
	return p
}

// Runner generates lessons for taxonomy topics one at a time.
type Runner struct {
	gen         Generator
	index       *taxonomy.Index
	outputDir   string
	pauseEvery  int
	pause       time.Duration
	profile     lesson.UserProfile
	writeReport bool
	reporter    Reporter
	now         func() time.Time
	sleep       func(ctx context.Context, d time.Duration) error
}

// NewRunner creates a runner over index.
func NewRunner(gen Generator, index *taxonomy.Index, opts Options) *Runner {
	r := &Runner{
		gen:         gen,
		index:       index,
		outputDir:   opts.OutputDir,
		pauseEvery:  opts.PauseEvery,
		pause:       opts.Pause,
		profile:     DefaultProfile(),
		writeReport: opts.WriteReport,
		reporter:    opts.Reporter,
		now:         opts.Now,
		sleep:       opts.Sleep,
	}
	if r.outputDir == "" {
		r.outputDir = "."
	}
	if r.pauseEvery == 0 {
		r.pauseEvery = DefaultPauseEvery
	}
	if r.pause == 0 {
		r.pause = DefaultPause
	}
	if opts.Profile != nil {
		r.profile = opts.Profile.WithDefaults()
	}
	if r.reporter == nil {
		r.reporter = LogReporter{}
	}
	if r.now == nil {
		r.now = time.Now
	}
	if r.sleep == nil {
		r.sleep = sleepContext
	}
	return r
}

// Select applies f to the index in order.
func Select(index *taxonomy.Index, f Filter) []taxonomy.Node {
	nodes := index.AllNodes()
	if f.Category != "" {
		want := strings.ToLower(f.Category)
		kept := nodes[:0:0]
		for _, n := range nodes {
			if strings.Contains(strings.ToLower(n.Category), want) {
				kept = append(kept, n)
			}
		}
		nodes = kept
	}
	if f.Semester > 0 {
		kept := nodes[:0:0]
		for _, n := range nodes {
			if n.Semester == f.Semester {
				kept = append(kept, n)
			}
		}
		nodes = kept
	}
	if f.Max > 0 && len(nodes) > f.Max {
		nodes = nodes[:f.Max]
	}
	return nodes
}

// Run generates every selected topic. A failed topic is recorded and the
// run continues; the returned error covers only setup, summary writing and
// cancellation. The summary is written even when the run is cancelled.
func (r *Runner) Run(ctx context.Context, f Filter) (*Summary, error) {
	if err := os.MkdirAll(r.outputDir, 0o755); err != nil {
		return nil, fmt.Errorf("create output directory: %w", err)
	}

	runID := uuid.NewString()
	ctx = logging.WithFields(ctx, logging.Fields{RunID: runID})

	nodes := Select(r.index, f)
	summary := newSummary(runID, r.outputDir)
	r.reporter.Started(ctx, len(nodes), r.outputDir)

	var runErr error
	for i, n := range nodes {
		if err := ctx.Err(); err != nil {
			runErr = err
			break
		}

		r.reporter.TopicStarted(ctx, i+1, len(nodes), n)
		summary.countCategory(n.Category)

		path, b, err := r.generate(ctx, n)
		if err != nil {
			summary.Counts.Failed++
			summary.FailedTopics = append(summary.FailedTopics,
				fmt.Sprintf("%s > %s > %s (Error: %v)", n.Category, n.Subcategory, n.Topic, err))
			r.reporter.TopicFailed(ctx, n, err)
		} else {
			summary.Counts.Successful++
			if b.Degraded() {
				summary.Counts.Degraded++
			}
			summary.Files = append(summary.Files, path)
			r.reporter.TopicSaved(ctx, n, path, b)
		}

		if (i+1)%r.pauseEvery == 0 && i+1 < len(nodes) {
			r.reporter.Paused(ctx, r.pause)
			if err := r.sleep(ctx, r.pause); err != nil {
				runErr = err
				break
			}
		}
	}

	summary.finish(r.now())
	if _, err := summary.WriteJSON(r.outputDir); err != nil {
		return summary, fmt.Errorf("write summary: %w", err)
	}
	if r.writeReport {
		if _, err := summary.WriteReport(r.outputDir); err != nil {
			return summary, fmt.Errorf("write report: %w", err)
		}
	}
	r.reporter.Finished(ctx, summary)

	if runErr != nil {
		return summary, fmt.Errorf("batch interrupted: %w", runErr)
	}
	return summary, nil
}

func (r *Runner) generate(ctx context.Context, n taxonomy.Node) (string, *lesson.Bundle, error) {
	res, err := r.gen.Run(ctx, lesson.Request{
		Topic:       n.Topic,
		Profile:     r.profile,
		Category:    n.Category,
		Subcategory: n.Subcategory,
		Generator:   lesson.GeneratorBatch,
	})
	if err != nil {
		return "", nil, err
	}

	path, err := r.save(res.Bundle, n)
	if err != nil {
		return "", nil, err
	}
	return path, res.Bundle, nil
}

func (r *Runner) save(b *lesson.Bundle, n taxonomy.Node) (string, error) {
	semester := n.Semester
	if semester <= 0 {
		semester = 1
	}

	path, err := writeJSONExclusive(r.outputDir, FileName(n.Topic, n.Category, semester, r.now()), b)
	if err != nil {
		return "", fmt.Errorf("write lesson: %w", err)
	}
	return path, nil
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
