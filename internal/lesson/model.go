// Package lesson turns a topic and learner profile into a lesson bundle:
// resolution, retrieval, generation and assembly, plus persistence of
// the results.
package lesson

import (
	"encoding/json"
	"errors"
	"time"
)

const (
	DefaultLevel            = "intermediate"
	DefaultLearningVelocity = 0.8
	DefaultLearningStyle    = "mixed"
)

var (
	// ErrEmptyTopic is returned when a request names no topic.
	ErrEmptyTopic = errors.New("topic is required")
	// ErrMissingUserID is returned when a profile has no user_id.
	ErrMissingUserID = errors.New("user_id is required")
	// ErrAssembly marks a bundle that violates its own invariants.
	ErrAssembly = errors.New("lesson assembly failed")
)

// UserProfile describes the learner a lesson is generated for.
type UserProfile struct {
	UserID           string             `json:"user_id"`
	CurrentLevel     string             `json:"current_level"`
	ConceptMastery   map[string]float64 `json:"concept_mastery"`
	WeakConcepts     []string           `json:"weak_concepts"`
	LearningVelocity float64            `json:"learning_velocity"`
	ErrorPatterns    []string           `json:"error_patterns"`
	LearningStyle    string             `json:"learning_style"`
}

// NewUserProfile returns a profile for userID with every default set.
func NewUserProfile(userID string) UserProfile {
	return UserProfile{
		UserID:           userID,
		CurrentLevel:     DefaultLevel,
		ConceptMastery:   map[string]float64{},
		WeakConcepts:     []string{},
		LearningVelocity: DefaultLearningVelocity,
		ErrorPatterns:    []string{},
		LearningStyle:    DefaultLearningStyle,
	}
}

// UnmarshalJSON applies defaults for fields absent from the document.
func (p *UserProfile) UnmarshalJSON(data []byte) error {
	type plain UserProfile
	v := plain(NewUserProfile(""))
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	*p = UserProfile(v).WithDefaults()
	return nil
}

// WithDefaults fills empty strings and nil collections.
func (p UserProfile) WithDefaults() UserProfile {
	if p.CurrentLevel == "" {
		p.CurrentLevel = DefaultLevel
	}
	if p.LearningStyle == "" {
		p.LearningStyle = DefaultLearningStyle
	}
	if p.ConceptMastery == nil {
		p.ConceptMastery = map[string]float64{}
	}
	if p.WeakConcepts == nil {
		p.WeakConcepts = []string{}
	}
	if p.ErrorPatterns == nil {
		p.ErrorPatterns = []string{}
	}
	return p
}

// Validate reports pre-pipeline argument errors.
func (p UserProfile) Validate() error {
	if p.UserID == "" {
		return ErrMissingUserID
	}
	return nil
}

// Option is one answer choice of a question.
type Option struct {
	ID   string `json:"id"`
	Text string `json:"text"`
}

// Question is a multiple-choice question. CorrectAnswer always names one
// of its Options.
type Question struct {
	QuestionID    string   `json:"question_id"`
	Text          string   `json:"text"`
	Category      string   `json:"category"`
	Subcategory   string   `json:"subcategory"`
	Topic         string   `json:"topic"`
	Difficulty    string   `json:"difficulty"`
	Options       []Option `json:"options"`
	CorrectAnswer string   `json:"correct_answer"`
	Explanation   string   `json:"explanation"`
}

// HasAnswer reports whether CorrectAnswer is one of the option ids.
func (q Question) HasAnswer() bool {
	for _, o := range q.Options {
		if o.ID == q.CorrectAnswer {
			return true
		}
	}
	return false
}

// Lesson is the prose part of a bundle.
type Lesson struct {
	LessonID           string         `json:"lesson_id"`
	Topic              string         `json:"topic"`
	Category           string         `json:"category"`
	Subcategory        string         `json:"subcategory"`
	LessonContent      string         `json:"lesson_content"`
	LearningObjectives []string       `json:"learning_objectives"`
	ExerciseID         string         `json:"exercise_id"`
	DifficultyLevel    string         `json:"difficulty_level"`
	Semester           int            `json:"semester"`
	GeneratedBy        string         `json:"generated_by"`
	CreatedAt          time.Time      `json:"created_at"`
	AcademicContext    map[string]any `json:"academic_context,omitempty"`
}

// Exercise groups the bundle's questions.
type Exercise struct {
	ExerciseID      string    `json:"exercise_id"`
	LessonID        string    `json:"lesson_id"`
	Topic           string    `json:"topic"`
	QuestionIDs     []string  `json:"question_ids"`
	DifficultyLevel string    `json:"difficulty_level"`
	TargetConcepts  []string  `json:"target_concepts"`
	CreatedAt       time.Time `json:"created_at"`
}

// State is the terminal state of a generation run.
type State string

const (
	StateDone         State = "done"
	StateDegradedDone State = "degraded_done"
)

// Metadata describes how a bundle was produced.
type Metadata struct {
	GeneratedAt      time.Time `json:"generated_at"`
	Topic            string    `json:"topic"`
	Category         string    `json:"category"`
	Subcategory      string    `json:"subcategory"`
	UserID           string    `json:"user_id"`
	Generator        string    `json:"generator"`
	AcademicProgram  string    `json:"academic_program"`
	PrecisionMode    bool      `json:"precision_mode"`
	SimilarityScore  float64   `json:"similarity_score"`
	State            State     `json:"state"`
	Outcome          string    `json:"outcome"`
	DocumentsUsed    int       `json:"documents_used"`
	QuestionsDropped int       `json:"questions_dropped"`
	SchemaIssues     []string  `json:"schema_issues,omitempty"`
}

// Bundle is the complete result of one lesson request.
type Bundle struct {
	Metadata  Metadata   `json:"generation_metadata"`
	Lesson    Lesson     `json:"lesson"`
	Exercise  Exercise   `json:"exercise"`
	Questions []Question `json:"questions"`
}

// Degraded reports whether a fallback tier produced the bundle.
func (b *Bundle) Degraded() bool {
	return b.Metadata.State == StateDegradedDone
}
