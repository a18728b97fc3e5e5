package lesson

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/p-n-ai/pai-lessons/internal/generation"
	"github.com/p-n-ai/pai-lessons/internal/taxonomy"
)

const (
	// MaxQuestions caps the questions kept from a generated lesson.
	MaxQuestions = 5

	generatedByParsed       = "rag_pipeline"
	generatedByUnstructured = "rag_pipeline_unstructured"
	generatedByMinimal      = "rag_pipeline_fallback"
)

var defaultParsedObjectives = []string{"understand", "apply"}

// DroppedQuestion records a generated question that was not emitted.
type DroppedQuestion struct {
	Index  int
	Reason string
}

// Assembly is the result of assembling a draft.
type Assembly struct {
	Bundle  *Bundle
	Dropped []DroppedQuestion
}

// Assembler turns a generation draft into a Bundle.
type Assembler struct {
	now func() time.Time
}

// NewAssembler creates an assembler. A nil clock uses time.Now.
func NewAssembler(now func() time.Time) *Assembler {
	if now == nil {
		now = time.Now
	}
	return &Assembler{now: now}
}

// Assemble builds the bundle for draft. Missing fields get templated
// defaults, questions beyond MaxQuestions are ignored and invalid
// questions are dropped. An error is returned only when the finished
// bundle breaks its own invariants.
func (a *Assembler) Assemble(draft generation.Draft, topic string, profile UserProfile, m taxonomy.Mapping) (Assembly, error) {
	var (
		content     string
		concepts    []string
		objectives  []string
		questions   []Question
		dropped     []DroppedQuestion
		academic    map[string]any
		generatedBy string
	)

	switch d := draft.(type) {
	case *generation.ParsedDraft:
		content = fmt.Sprintf("Academic lesson on %s in %s", topic, m.Subcategory)
		if d.LessonContent != nil {
			content = *d.LessonContent
		}
		concepts = d.TargetConcepts
		if concepts == nil {
			concepts = []string{topic}
		}
		objectives = d.LearningObjectives
		if objectives == nil {
			objectives = append([]string(nil), defaultParsedObjectives...)
		}
		questions, dropped = a.questions(d.Questions, topic, profile, m)
		academic = d.AcademicContext
		generatedBy = generatedByParsed
	case *generation.UnstructuredDraft:
		content = d.Text
		concepts = d.TargetConcepts
		objectives = d.LearningObjectives
		generatedBy = generatedByUnstructured
	case *generation.MinimalDraft:
		content = d.LessonContent
		concepts = d.TargetConcepts
		objectives = d.LearningObjectives
		generatedBy = generatedByMinimal
	default:
		return Assembly{}, fmt.Errorf("%w: unknown draft type %T", ErrAssembly, draft)
	}

	if questions == nil {
		questions = []Question{}
	}
	ids := make([]string, len(questions))
	for i, q := range questions {
		ids[i] = q.QuestionID
	}

	lessonID := LessonID(topic, profile.UserID, m.Category)
	exerciseID := ExerciseID(topic, profile.UserID, m.Subcategory)
	now := a.now()

	b := &Bundle{
		Lesson: Lesson{
			LessonID:           lessonID,
			Topic:              topic,
			Category:           m.Category,
			Subcategory:        m.Subcategory,
			LessonContent:      content,
			LearningObjectives: objectives,
			ExerciseID:         exerciseID,
			DifficultyLevel:    profile.CurrentLevel,
			Semester:           m.Semester,
			GeneratedBy:        generatedBy,
			CreatedAt:          now,
			AcademicContext:    academic,
		},
		Exercise: Exercise{
			ExerciseID:      exerciseID,
			LessonID:        lessonID,
			Topic:           topic,
			QuestionIDs:     ids,
			DifficultyLevel: profile.CurrentLevel,
			TargetConcepts:  concepts,
			CreatedAt:       now,
		},
		Questions: questions,
	}

	if err := CheckBundle(b); err != nil {
		return Assembly{}, err
	}
	return Assembly{Bundle: b, Dropped: dropped}, nil
}

// rawQuestion mirrors a generated question; nil fields were absent.
type rawQuestion struct {
	QuestionID    *string   `json:"question_id"`
	Text          *string   `json:"text"`
	Category      *string   `json:"category"`
	Subcategory   *string   `json:"subcategory"`
	Topic         *string   `json:"topic"`
	Difficulty    *string   `json:"difficulty"`
	Options       *[]Option `json:"options"`
	CorrectAnswer *string   `json:"correct_answer"`
	Explanation   *string   `json:"explanation"`
}

func (a *Assembler) questions(raws []json.RawMessage, topic string, profile UserProfile, m taxonomy.Mapping) ([]Question, []DroppedQuestion) {
	if len(raws) > MaxQuestions {
		raws = raws[:MaxQuestions]
	}

	var (
		out     []Question
		dropped []DroppedQuestion
		seen    = map[string]int{}
	)
	for i, raw := range raws {
		var rq rawQuestion
		if err := json.Unmarshal(raw, &rq); err != nil {
			slog.Warn("skipping malformed question", "topic", topic, "index", i, "error", err)
			dropped = append(dropped, DroppedQuestion{Index: i, Reason: "malformed: " + err.Error()})
			continue
		}

		q := Question{
			QuestionID:    or(rq.QuestionID, fmt.Sprintf("q%d_%s", i+1, underscored(topic))),
			Text:          or(rq.Text, fmt.Sprintf("Question about %s in %s?", topic, m.Subcategory)),
			Category:      or(rq.Category, m.Category),
			Subcategory:   or(rq.Subcategory, m.Subcategory),
			Topic:         or(rq.Topic, topic),
			Difficulty:    or(rq.Difficulty, profile.CurrentLevel),
			CorrectAnswer: or(rq.CorrectAnswer, "a"),
			Explanation:   or(rq.Explanation, "Explanation needed for "+topic),
		}
		if rq.Options != nil {
			q.Options = *rq.Options
		}

		if reason := invalidReason(q); reason != "" {
			slog.Warn("dropping invalid question",
				"topic", topic,
				"question_id", q.QuestionID,
				"reason", reason,
			)
			dropped = append(dropped, DroppedQuestion{Index: i, Reason: reason})
			continue
		}

		if n := seen[q.QuestionID]; n > 0 {
			base := q.QuestionID
			for seen[q.QuestionID] > 0 {
				n++
				q.QuestionID = fmt.Sprintf("%s_%d", base, n)
			}
			seen[base] = n
		}
		seen[q.QuestionID] = 1
		out = append(out, q)
	}
	return out, dropped
}

func invalidReason(q Question) string {
	if len(q.Options) < 2 {
		return fmt.Sprintf("needs at least 2 options, has %d", len(q.Options))
	}
	if !q.HasAnswer() {
		return fmt.Sprintf("correct_answer %q is not an option id", q.CorrectAnswer)
	}
	return ""
}

// CheckBundle verifies the invariants every emitted bundle must hold.
func CheckBundle(b *Bundle) error {
	if b.Lesson.LessonID == "" || b.Exercise.ExerciseID == "" {
		return fmt.Errorf("%w: missing ids", ErrAssembly)
	}
	if b.Exercise.LessonID != b.Lesson.LessonID || b.Lesson.ExerciseID != b.Exercise.ExerciseID {
		return fmt.Errorf("%w: lesson and exercise ids disagree", ErrAssembly)
	}
	if len(b.Questions) > MaxQuestions {
		return fmt.Errorf("%w: %d questions exceeds %d", ErrAssembly, len(b.Questions), MaxQuestions)
	}
	if len(b.Exercise.QuestionIDs) != len(b.Questions) {
		return fmt.Errorf("%w: exercise lists %d questions, bundle has %d", ErrAssembly, len(b.Exercise.QuestionIDs), len(b.Questions))
	}
	seen := map[string]bool{}
	for i, q := range b.Questions {
		if !q.HasAnswer() {
			return fmt.Errorf("%w: question %s has no matching answer", ErrAssembly, q.QuestionID)
		}
		if b.Exercise.QuestionIDs[i] != q.QuestionID {
			return fmt.Errorf("%w: question order mismatch at %d", ErrAssembly, i)
		}
		if seen[q.QuestionID] {
			return fmt.Errorf("%w: duplicate question id %s", ErrAssembly, q.QuestionID)
		}
		seen[q.QuestionID] = true
	}
	return nil
}

func or(p *string, fallback string) string {
	if p == nil {
		return fallback
	}
	return *p
}

func underscored(s string) string {
	out := []rune(s)
	for i, r := range out {
		if r == ' ' {
			out[i] = '_'
		}
	}
	return string(out)
}
