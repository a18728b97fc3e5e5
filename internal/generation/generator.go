package generation

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/p-n-ai/pai-lessons/internal/retrieval"
	"github.com/p-n-ai/pai-lessons/internal/taxonomy"
)

// DefaultTimeout bounds one model call.
const DefaultTimeout = 60 * time.Second

// Request is one lesson to generate.
type Request struct {
	Topic            string
	Mapping          taxonomy.Mapping
	Level            string
	WeakConcepts     []string
	LearningVelocity float64
	Documents        []retrieval.Document
	RelatedTopics    []string
}

// Generator runs the degrade chain: parse the model's JSON object, else
// wrap its text, else fall back to a minimal lesson. It never returns an
// error.
type Generator struct {
	gateway Gateway
	timeout time.Duration
}

// NewGenerator creates a generator. A non-positive timeout selects
// DefaultTimeout.
func NewGenerator(gw Gateway, timeout time.Duration) *Generator {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Generator{gateway: gw, timeout: timeout}
}

// Prompt renders the prompt for req.
func (g *Generator) Prompt(req Request) string {
	return BuildPrompt(PromptInput{
		Topic:            req.Topic,
		Category:         req.Mapping.Category,
		Subcategory:      req.Mapping.Subcategory,
		Semester:         req.Mapping.Semester,
		Level:            req.Level,
		WeakConcepts:     req.WeakConcepts,
		LearningVelocity: req.LearningVelocity,
		Summary:          retrieval.Summarize(req.Documents, retrieval.SummaryDocs, retrieval.SummaryChars),
		RelatedTopics:    req.RelatedTopics,
	})
}

// Generate calls the gateway and classifies the result.
func (g *Generator) Generate(ctx context.Context, req Request) Draft {
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	raw, err := g.gateway.Generate(ctx, g.Prompt(req))
	if err == nil && strings.TrimSpace(raw) == "" {
		err = &GenerationError{Err: errors.New("empty response")}
	}
	if err != nil {
		slog.Warn("lesson generation failed, using minimal fallback",
			"topic", req.Topic,
			"error", err,
		)
		return Minimal(req, err)
	}

	draft, perr := Parse(raw, req)
	if perr != nil {
		slog.Warn("lesson response is not a JSON object, wrapping text",
			"topic", req.Topic,
			"error", perr,
		)
		return Unstructured(raw, req, perr)
	}
	return draft
}

// Parse strictly decodes raw as a JSON object. Fields of the wrong type
// are treated as absent. The academic context is re-stamped with the
// resolved placement.
func Parse(raw string, req Request) (*ParsedDraft, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal([]byte(raw), &fields); err != nil {
		return nil, fmt.Errorf("decode lesson object: %w", err)
	}
	if fields == nil {
		return nil, errors.New("decode lesson object: null document")
	}

	d := &ParsedDraft{}
	if v, ok := fields["lesson_content"]; ok {
		var s string
		if json.Unmarshal(v, &s) == nil {
			d.LessonContent = &s
		}
	}
	d.TargetConcepts = stringList(fields["target_concepts"])
	d.LearningObjectives = stringList(fields["learning_objectives"])

	if v, ok := fields["questions"]; ok {
		var qs []json.RawMessage
		if err := json.Unmarshal(v, &qs); err != nil {
			slog.Warn("ignoring malformed questions list", "topic", req.Topic, "error", err)
		} else {
			d.Questions = qs
		}
	}

	ctxFields := map[string]any{}
	if v, ok := fields["academic_context"]; ok {
		_ = json.Unmarshal(v, &ctxFields)
		if ctxFields == nil {
			ctxFields = map[string]any{}
		}
	}
	ctxFields["category"] = req.Mapping.Category
	ctxFields["subcategory"] = req.Mapping.Subcategory
	ctxFields["semester"] = req.Mapping.Semester
	ctxFields["topic"] = req.Mapping.Topic
	ctxFields["similarity_score"] = req.Mapping.SimilarityScore
	d.AcademicContext = ctxFields

	issues, err := Validate([]byte(raw))
	if err != nil {
		slog.Error("lesson schema unavailable", "error", err)
	} else if len(issues) > 0 {
		slog.Warn("lesson response deviates from schema",
			"topic", req.Topic,
			"issues", len(issues),
			"first", issues[0],
		)
		d.SchemaIssues = issues
	}
	return d, nil
}

// Unstructured wraps raw text verbatim as the lesson body.
func Unstructured(raw string, req Request, cause error) *UnstructuredDraft {
	return &UnstructuredDraft{
		Text:               raw,
		TargetConcepts:     seedConcepts(req.Topic, req.WeakConcepts),
		LearningObjectives: append([]string(nil), DefaultObjectives...),
		ParseErr:           cause,
	}
}

// Minimal is the lesson used when the model produced nothing.
func Minimal(req Request, cause error) *MinimalDraft {
	return &MinimalDraft{
		LessonContent:      fmt.Sprintf("Basic overview of %s in %s.", req.Topic, req.Mapping.Subcategory),
		TargetConcepts:     []string{req.Topic},
		LearningObjectives: append([]string(nil), DefaultObjectives...),
		Cause:              cause,
	}
}

func seedConcepts(topic string, weak []string) []string {
	out := []string{topic}
	for i, w := range weak {
		if i == 2 {
			break
		}
		out = append(out, w)
	}
	return out
}

func stringList(raw json.RawMessage) []string {
	if raw == nil {
		return nil
	}
	var out []string
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil
	}
	return out
}
