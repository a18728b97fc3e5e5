package generation

import (
	"encoding/json"
	"fmt"
	"sync"

	"github.com/invopop/jsonschema"
	"github.com/xeipuuv/gojsonschema"
)

// lessonDocument is the JSON shape the model is asked to produce.
type lessonDocument struct {
	LessonContent      string           `json:"lesson_content" jsonschema:"description=Lesson body in Markdown"`
	TargetConcepts     []string         `json:"target_concepts"`
	Questions          []questionSchema `json:"questions" jsonschema:"minItems=2,maxItems=5"`
	LearningObjectives []string         `json:"learning_objectives"`
	AcademicContext    academicContext  `json:"academic_context"`
}

type questionSchema struct {
	QuestionID    string         `json:"question_id"`
	Text          string         `json:"text"`
	Category      string         `json:"category"`
	Subcategory   string         `json:"subcategory"`
	Topic         string         `json:"topic"`
	Difficulty    string         `json:"difficulty"`
	Options       []optionSchema `json:"options" jsonschema:"minItems=2,maxItems=4"`
	CorrectAnswer string         `json:"correct_answer"`
	Explanation   string         `json:"explanation"`
}

type optionSchema struct {
	ID   string `json:"id"`
	Text string `json:"text"`
}

type academicContext struct {
	Category      string   `json:"category"`
	Subcategory   string   `json:"subcategory"`
	Semester      int      `json:"semester"`
	RelatedTopics []string `json:"related_topics,omitempty"`
	ContentType   string   `json:"content_type,omitempty"`
}

const draft7 = "http://json-schema.org/draft-07/schema#"

var (
	schemaOnce sync.Once
	schemaJSON []byte
	schemaErr  error
	validator  *gojsonschema.Schema
)

// Schema returns the JSON schema of the lesson document.
func Schema() ([]byte, error) {
	schemaOnce.Do(func() {
		r := &jsonschema.Reflector{
			DoNotReference:            true,
			ExpandedStruct:            true,
			AllowAdditionalProperties: true,
		}
		s := r.Reflect(&lessonDocument{})
		s.Version = draft7

		schemaJSON, schemaErr = json.Marshal(s)
		if schemaErr != nil {
			schemaErr = fmt.Errorf("marshal lesson schema: %w", schemaErr)
			return
		}
		validator, schemaErr = gojsonschema.NewSchema(gojsonschema.NewBytesLoader(schemaJSON))
		if schemaErr != nil {
			schemaErr = fmt.Errorf("compile lesson schema: %w", schemaErr)
		}
	})
	return schemaJSON, schemaErr
}

// Validate checks raw against the lesson schema and returns the
// violations. An empty result means the document conforms.
func Validate(raw []byte) ([]string, error) {
	if _, err := Schema(); err != nil {
		return nil, err
	}
	result, err := validator.Validate(gojsonschema.NewBytesLoader(raw))
	if err != nil {
		return nil, fmt.Errorf("validate lesson document: %w", err)
	}
	if result.Valid() {
		return nil, nil
	}
	issues := make([]string, 0, len(result.Errors()))
	for _, e := range result.Errors() {
		issues = append(issues, e.String())
	}
	return issues, nil
}
