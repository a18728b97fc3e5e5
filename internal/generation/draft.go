// Package generation prompts a language model for lesson content and
// classifies whatever comes back into one of three draft shapes.
package generation

import "encoding/json"

// Outcome names which tier of the degrade chain produced a draft.
type Outcome int

const (
	// OutcomeParsed means the model returned a JSON object.
	OutcomeParsed Outcome = iota
	// OutcomeUnstructured means the model returned text that is not a
	// JSON object; the text becomes the lesson body.
	OutcomeUnstructured
	// OutcomeMinimal means the model call failed before returning text.
	OutcomeMinimal
)

func (o Outcome) String() string {
	switch o {
	case OutcomeParsed:
		return "parsed"
	case OutcomeUnstructured:
		return "unstructured"
	case OutcomeMinimal:
		return "minimal"
	default:
		return "unknown"
	}
}

// Degraded reports whether the outcome came from a fallback tier.
func (o Outcome) Degraded() bool {
	return o != OutcomeParsed
}

// DefaultObjectives are used by the fallback tiers.
var DefaultObjectives = []string{"understand", "apply", "remember"}

// Draft is the closed set of generation results: *ParsedDraft,
// *UnstructuredDraft or *MinimalDraft.
type Draft interface {
	Outcome() Outcome
	draft()
}

// ParsedDraft holds the fields of a JSON object returned by the model.
// Nil pointers and nil slices mean the field was absent or unusable.
type ParsedDraft struct {
	LessonContent      *string
	TargetConcepts     []string
	LearningObjectives []string
	// Questions are kept raw so one malformed entry cannot fail the rest.
	Questions       []json.RawMessage
	AcademicContext map[string]any
	// SchemaIssues lists schema violations found in the raw object.
	SchemaIssues []string
	Provider     string
}

// UnstructuredDraft wraps model text that could not be parsed.
type UnstructuredDraft struct {
	Text               string
	TargetConcepts     []string
	LearningObjectives []string
	ParseErr           error
}

// MinimalDraft is produced when no model text is available at all.
type MinimalDraft struct {
	LessonContent      string
	TargetConcepts     []string
	LearningObjectives []string
	Cause              error
}

func (*ParsedDraft) Outcome() Outcome       { return OutcomeParsed }
func (*UnstructuredDraft) Outcome() Outcome { return OutcomeUnstructured }
func (*MinimalDraft) Outcome() Outcome      { return OutcomeMinimal }

func (*ParsedDraft) draft()       {}
func (*UnstructuredDraft) draft() {}
func (*MinimalDraft) draft()      {}
