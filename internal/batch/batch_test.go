package batch_test

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/p-n-ai/pai-lessons/internal/batch"
	"github.com/p-n-ai/pai-lessons/internal/lesson"
	"github.com/p-n-ai/pai-lessons/internal/taxonomy"
)

var runAt = time.Date(2025, 3, 14, 9, 30, 5, 0, time.UTC)

func testIndex() *taxonomy.Index {
	return taxonomy.New([]taxonomy.Node{
		{Topic: "The Atom", Category: "UE 1 - Biochemistry", Subcategory: "Atomic Structure", Semester: 1},
		{Topic: "Chemical Bonds", Category: "UE 1 - Biochemistry", Subcategory: "Atomic Structure", Semester: 1},
		{Topic: "Cardiovascular System", Category: "UE 5 - Anatomy", Subcategory: "Systems and Apparatus", Semester: 1},
		{Topic: "Random Variables", Category: "UE 4 - Mathematics and Statistics", Subcategory: "Probability", Semester: 2},
		{Topic: "Ethics", Category: "UE 7 - Human and Social Sciences", Subcategory: "Medicine", Semester: 2},
		{Topic: "Pharmacology Basics", Category: "UE 6 - Introduction to Drug Knowledge", Subcategory: "Drugs", Semester: 2},
	})
}

// fakeGenerator returns a bundle per topic, failing the topics in fail.
type fakeGenerator struct {
	mu       sync.Mutex
	fail     map[string]bool
	degraded map[string]bool
	requests []lesson.Request
}

func (g *fakeGenerator) Run(_ context.Context, req lesson.Request) (*lesson.Result, error) {
	g.mu.Lock()
	g.requests = append(g.requests, req)
	g.mu.Unlock()

	if g.fail[req.Topic] {
		return nil, errors.New("assembly defect")
	}
	state := lesson.StateDone
	if g.degraded[req.Topic] {
		state = lesson.StateDegradedDone
	}
	b := &lesson.Bundle{
		Metadata: lesson.Metadata{Topic: req.Topic, State: state, Generator: req.Generator},
		Lesson: lesson.Lesson{
			LessonID:    lesson.LessonID(req.Topic, req.Profile.UserID, req.Category),
			Topic:       req.Topic,
			Category:    req.Category,
			Subcategory: req.Subcategory,
		},
		Questions: []lesson.Question{},
	}
	return &lesson.Result{Bundle: b}, nil
}

type sleepRecorder struct {
	calls []time.Duration
}

func (s *sleepRecorder) sleep(_ context.Context, d time.Duration) error {
	s.calls = append(s.calls, d)
	return nil
}

func newRunner(t *testing.T, gen batch.Generator, opts batch.Options) (*batch.Runner, string, *sleepRecorder) {
	t.Helper()
	dir := filepath.Join(t.TempDir(), "data")
	rec := &sleepRecorder{}
	opts.OutputDir = dir
	opts.Now = func() time.Time { return runAt }
	opts.Sleep = rec.sleep
	return batch.NewRunner(gen, testIndex(), opts), dir, rec
}

func TestCategoryAbbrev(t *testing.T) {
	tests := map[string]string{
		"UE 1 - Biochemistry":                   "UE1_BCH",
		"UE 2 - Cell Biology":                   "UE2_CELL",
		"UE 3 - Biophysics":                     "UE3_PHYS",
		"UE 4 - Mathematics and Statistics":     "UE4_MATH",
		"UE 5 - Anatomy":                        "UE5_ANAT",
		"UE 6 - Introduction to Drug Knowledge": "UE6_DRUG",
		"UE 7 - Human and Social Sciences":      "UE7_HSS",
		"UE 8 - Specific Subject":               "UE8_SPEC",
		"UE 9 - Physiology":                     "UE9_PHYS",
		"General":                               "GENERAL",
		"Clinical Skills Lab":                   "CLINICAL",
		"UE without dash":                       "UE_WITHO",
	}
	for in, want := range tests {
		assert.Equal(t, want, batch.CategoryAbbrev(in), in)
	}
}

func TestTopicSlug(t *testing.T) {
	tests := map[string]string{
		"Cardiovascular System":                                           "Cardiovascular_System",
		"Acids and Bases":                                                 "Acids_Bases",
		"Proteins & Enzymes":                                              "Proteins_Enzymes",
		"Heart's Structure, Function":                                     "Hearts_Structure__Function",
		"Acid-Base Balance":                                               "Acid_Base_Balance",
		"Physiological Mechanisms Underlying Homeostasis":                 "Physiological_Mechanisms_Underlying_Homeostasis",
		"Structure and Function of Cardiac Muscle Cells":                  "Structure_Function_Cardiac_Muscle_Cells",
		"Introduction to the study of the cell membrane":                  "Introduction_to_plus4_cell_membrane",
		"Regulation of the cardiac cycle and of blood pressure in adults": "Regulation_of_plus5_in_adults",
		"Input/Output":                                                    "Input_Output",
	}
	for in, want := range tests {
		assert.Equal(t, want, batch.TopicSlug(in), in)
	}
}

func TestFileName(t *testing.T) {
	got := batch.FileName("Cardiovascular System", "UE 5 - Anatomy", 1, runAt)
	assert.Equal(t, "Cardiovascular_System_UE5_ANAT_S1_lesson_20250314_093005.json", got)
}

func TestSelect(t *testing.T) {
	idx := testIndex()

	all := batch.Select(idx, batch.Filter{})
	assert.Len(t, all, 6)

	bio := batch.Select(idx, batch.Filter{Category: "biochem"})
	require.Len(t, bio, 2)
	assert.Equal(t, "The Atom", bio[0].Topic)

	sem2 := batch.Select(idx, batch.Filter{Semester: 2})
	assert.Len(t, sem2, 3)

	combined := batch.Select(idx, batch.Filter{Category: "ue", Semester: 2, Max: 2})
	require.Len(t, combined, 2)
	assert.Equal(t, "Random Variables", combined[0].Topic)
	assert.Equal(t, "Ethics", combined[1].Topic)

	assert.Empty(t, batch.Select(idx, batch.Filter{Category: "nope"}))
}

func TestRun_WritesLessonsAndSummary(t *testing.T) {
	gen := &fakeGenerator{
		fail:     map[string]bool{"Chemical Bonds": true},
		degraded: map[string]bool{"Random Variables": true},
	}
	runner, dir, rec := newRunner(t, gen, batch.Options{WriteReport: true})

	summary, err := runner.Run(context.Background(), batch.Filter{})
	require.NoError(t, err)

	assert.Equal(t, 6, summary.Counts.TotalProcessed)
	assert.Equal(t, 5, summary.Counts.Successful)
	assert.Equal(t, 1, summary.Counts.Failed)
	assert.Equal(t, 1, summary.Counts.Degraded)
	assert.Equal(t, "83.3%", summary.Counts.SuccessRate)
	assert.NotEmpty(t, summary.Counts.RunID)
	require.Len(t, summary.FailedTopics, 1)
	assert.Equal(t, "UE 1 - Biochemistry > Atomic Structure > Chemical Bonds (Error: assembly defect)", summary.FailedTopics[0])
	assert.Equal(t, 2, summary.CategoriesProcessed["UE 1 - Biochemistry"])
	assert.Equal(t, "UE 1 - Biochemistry", summary.Categories()[0].Category)

	// One pause after the fifth of six topics.
	assert.Equal(t, []time.Duration{batch.DefaultPause}, rec.calls)

	lessonPath := filepath.Join(dir, "Cardiovascular_System_UE5_ANAT_S1_lesson_20250314_093005.json")
	data, err := os.ReadFile(lessonPath)
	require.NoError(t, err)
	var b lesson.Bundle
	require.NoError(t, json.Unmarshal(data, &b))
	assert.Equal(t, "UE 5 - Anatomy", b.Lesson.Category)
	assert.Equal(t, lesson.GeneratorBatch, b.Metadata.Generator)

	for _, req := range gen.requests {
		assert.Equal(t, "batch_generator", req.Profile.UserID)
		assert.Equal(t, []string{"general concepts"}, req.Profile.WeakConcepts)
		assert.True(t, req.Precise(), "batch requests carry their placement")
	}

	summaryPath := filepath.Join(dir, "generation_summary_20250314_093005.json")
	data, err = os.ReadFile(summaryPath)
	require.NoError(t, err)
	var raw map[string]any
	require.NoError(t, json.Unmarshal(data, &raw))
	assert.Contains(t, raw, "generation_summary")
	assert.Contains(t, raw, "failed_topics")
	assert.Contains(t, raw, "categories_processed")

	x, err := excelize.OpenFile(filepath.Join(dir, "generation_summary_20250314_093005.xlsx"))
	require.NoError(t, err)
	defer x.Close()
	assert.Equal(t, []string{"Summary", "Categories", "Failed"}, x.GetSheetList())
	rows, err := x.GetRows("Failed")
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.True(t, strings.Contains(rows[1][0], "Chemical Bonds"))
	cats, err := x.GetRows("Categories")
	require.NoError(t, err)
	assert.Equal(t, []string{"UE 1 - Biochemistry", "2"}, cats[1])
}

func TestRun_NeverOverwrites(t *testing.T) {
	gen := &fakeGenerator{}
	runner, dir, _ := newRunner(t, gen, batch.Options{})

	_, err := runner.Run(context.Background(), batch.Filter{Category: "anatomy"})
	require.NoError(t, err)
	_, err = runner.Run(context.Background(), batch.Filter{Category: "anatomy"})
	require.NoError(t, err)

	base := filepath.Join(dir, "Cardiovascular_System_UE5_ANAT_S1_lesson_20250314_093005")
	assert.FileExists(t, base+".json")
	assert.FileExists(t, base+"_2.json")
	assert.FileExists(t, filepath.Join(dir, "generation_summary_20250314_093005_2.json"))
	assert.NoFileExists(t, filepath.Join(dir, "generation_summary_20250314_093005.xlsx"))
}

func TestRun_CustomProfileAndThrottle(t *testing.T) {
	gen := &fakeGenerator{}
	profile := lesson.NewUserProfile("qa_run")
	runner, _, rec := newRunner(t, gen, batch.Options{
		Profile:    &profile,
		PauseEvery: 2,
		Pause:      time.Second,
	})

	summary, err := runner.Run(context.Background(), batch.Filter{})
	require.NoError(t, err)
	assert.Equal(t, 6, summary.Counts.Successful)
	assert.Len(t, rec.calls, 2)
	assert.Equal(t, "qa_run", gen.requests[0].Profile.UserID)
}

func TestRun_Cancelled(t *testing.T) {
	gen := &fakeGenerator{}
	ctx, cancel := context.WithCancel(context.Background())
	runner, dir, _ := newRunner(t, gen, batch.Options{
		Reporter: cancelAfter{n: 2, cancel: cancel},
	})

	summary, err := runner.Run(ctx, batch.Filter{})
	require.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 2, summary.Counts.Successful)
	assert.FileExists(t, filepath.Join(dir, "generation_summary_20250314_093005.json"))
}

func TestRun_EmptySelection(t *testing.T) {
	runner, _, _ := newRunner(t, &fakeGenerator{}, batch.Options{})

	summary, err := runner.Run(context.Background(), batch.Filter{Semester: 9})
	require.NoError(t, err)
	assert.Equal(t, 0, summary.Counts.TotalProcessed)
	assert.Equal(t, "0%", summary.Counts.SuccessRate)
}

// cancelAfter cancels the run once n topics were saved.
type cancelAfter struct {
	batch.LogReporter
	n      int
	cancel context.CancelFunc
}

func (c cancelAfter) TopicSaved(ctx context.Context, n taxonomy.Node, path string, b *lesson.Bundle) {
	if n.Topic == testIndex().AllNodes()[c.n-1].Topic {
		c.cancel()
	}
}
