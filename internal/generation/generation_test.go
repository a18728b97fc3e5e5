package generation_test

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/p-n-ai/pai-lessons/internal/ai"
	"github.com/p-n-ai/pai-lessons/internal/generation"
	"github.com/p-n-ai/pai-lessons/internal/retrieval"
	"github.com/p-n-ai/pai-lessons/internal/taxonomy"
)

func testRequest() generation.Request {
	return generation.Request{
		Topic: "cardiology",
		Mapping: taxonomy.Mapping{
			Node: taxonomy.Node{
				Topic:       "Cardiovascular System",
				Category:    "UE 5 - Anatomy",
				Subcategory: "Systems and Apparatus",
				Semester:    1,
			},
			SimilarityScore: 0.7,
		},
		Level:            "intermediate",
		WeakConcepts:     []string{"heart_anatomy", "cardiac_physiology", "ecg"},
		LearningVelocity: 0.7,
		Documents:        []retrieval.Document{{Title: "Heart", Content: "The heart pumps blood."}},
		RelatedTopics:    []string{"Cardiovascular System", "Respiratory System"},
	}
}

const validLesson = `{
  "lesson_content": "**Cardiology**",
  "target_concepts": ["cardiology", "heart_anatomy"],
  "questions": [
    {"question_id": "q1_cardiology", "text": "Q1?", "category": "c", "subcategory": "s", "topic": "t", "difficulty": "intermediate",
     "options": [{"id": "a", "text": "A"}, {"id": "b", "text": "B"}], "correct_answer": "a", "explanation": "E"},
    {"question_id": "q2_cardiology", "text": "Q2?", "category": "c", "subcategory": "s", "topic": "t", "difficulty": "intermediate",
     "options": [{"id": "a", "text": "A"}, {"id": "b", "text": "B"}], "correct_answer": "b", "explanation": "E"}
  ],
  "learning_objectives": ["Define cardiology"],
  "academic_context": {"category": "wrong", "subcategory": "wrong", "semester": 9, "content_type": "technical_overview"}
}`

func TestGenerate_Parsed(t *testing.T) {
	g := generation.NewGenerator(generation.GatewayFunc(func(context.Context, string) (string, error) {
		return validLesson, nil
	}), 0)

	draft := g.Generate(context.Background(), testRequest())
	parsed, ok := draft.(*generation.ParsedDraft)
	if !ok {
		t.Fatalf("draft = %T, want *ParsedDraft", draft)
	}
	if draft.Outcome() != generation.OutcomeParsed || draft.Outcome().Degraded() {
		t.Errorf("outcome = %v", draft.Outcome())
	}
	if parsed.LessonContent == nil || *parsed.LessonContent != "**Cardiology**" {
		t.Errorf("lesson content = %v", parsed.LessonContent)
	}
	if len(parsed.Questions) != 2 {
		t.Errorf("questions = %d, want 2", len(parsed.Questions))
	}
	if len(parsed.SchemaIssues) != 0 {
		t.Errorf("schema issues = %v", parsed.SchemaIssues)
	}
	if parsed.AcademicContext["category"] != "UE 5 - Anatomy" || parsed.AcademicContext["semester"] != 1 {
		t.Errorf("academic context not re-stamped: %v", parsed.AcademicContext)
	}
	if parsed.AcademicContext["content_type"] != "technical_overview" {
		t.Errorf("model context keys should survive: %v", parsed.AcademicContext)
	}
}

func TestGenerate_ParsedWithMissingFields(t *testing.T) {
	g := generation.NewGenerator(generation.GatewayFunc(func(context.Context, string) (string, error) {
		return `{"lesson_content": 42, "questions": "nope"}`, nil
	}), 0)

	parsed, ok := g.Generate(context.Background(), testRequest()).(*generation.ParsedDraft)
	if !ok {
		t.Fatal("a JSON object should parse even when fields are wrong")
	}
	if parsed.LessonContent != nil {
		t.Error("non-string lesson_content should be treated as missing")
	}
	if parsed.TargetConcepts != nil || parsed.LearningObjectives != nil {
		t.Error("absent lists should stay nil")
	}
	if parsed.Questions != nil {
		t.Error("non-array questions should be dropped")
	}
	if len(parsed.SchemaIssues) == 0 {
		t.Error("schema violations should be recorded")
	}
}

func TestGenerate_UnstructuredWrap(t *testing.T) {
	tests := []struct {
		name string
		raw  string
	}{
		{"prose", "The heart is a muscular organ."},
		{"json array", `[{"lesson_content": "x"}]`},
		{"fenced json", "```json\n{\"lesson_content\": \"x\"}\n```"},
		{"null", "null"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := generation.NewGenerator(generation.GatewayFunc(func(context.Context, string) (string, error) {
				return tt.raw, nil
			}), 0)

			draft := g.Generate(context.Background(), testRequest())
			u, ok := draft.(*generation.UnstructuredDraft)
			if !ok {
				t.Fatalf("draft = %T, want *UnstructuredDraft", draft)
			}
			if u.Text != tt.raw {
				t.Errorf("text = %q, want raw output verbatim", u.Text)
			}
			want := []string{"cardiology", "heart_anatomy", "cardiac_physiology"}
			if strings.Join(u.TargetConcepts, ",") != strings.Join(want, ",") {
				t.Errorf("target concepts = %v, want %v", u.TargetConcepts, want)
			}
			if strings.Join(u.LearningObjectives, ",") != "understand,apply,remember" {
				t.Errorf("objectives = %v", u.LearningObjectives)
			}
		})
	}
}

func TestGenerate_MinimalOnGatewayError(t *testing.T) {
	cause := errors.New("connection refused")
	g := generation.NewGenerator(generation.GatewayFunc(func(context.Context, string) (string, error) {
		return "", &generation.GenerationError{Err: cause}
	}), 0)

	draft := g.Generate(context.Background(), testRequest())
	m, ok := draft.(*generation.MinimalDraft)
	if !ok {
		t.Fatalf("draft = %T, want *MinimalDraft", draft)
	}
	if !errors.Is(m.Cause, cause) {
		t.Errorf("cause = %v", m.Cause)
	}
	if len(m.TargetConcepts) != 1 || m.TargetConcepts[0] != "cardiology" {
		t.Errorf("target concepts = %v", m.TargetConcepts)
	}
	if strings.Contains(m.LessonContent, "\n") || !strings.Contains(m.LessonContent, "Systems and Apparatus") {
		t.Errorf("lesson content = %q", m.LessonContent)
	}
}

func TestGenerate_MinimalOnEmptyOutput(t *testing.T) {
	g := generation.NewGenerator(generation.GatewayFunc(func(context.Context, string) (string, error) {
		return "  \n", nil
	}), 0)

	if _, ok := g.Generate(context.Background(), testRequest()).(*generation.MinimalDraft); !ok {
		t.Error("blank output should use the minimal fallback")
	}
}

func TestGenerate_Timeout(t *testing.T) {
	g := generation.NewGenerator(generation.GatewayFunc(func(ctx context.Context, _ string) (string, error) {
		<-ctx.Done()
		return "", ctx.Err()
	}), 20*time.Millisecond)

	draft := g.Generate(context.Background(), testRequest())
	m, ok := draft.(*generation.MinimalDraft)
	if !ok {
		t.Fatalf("draft = %T, want *MinimalDraft", draft)
	}
	if !errors.Is(m.Cause, context.DeadlineExceeded) {
		t.Errorf("cause = %v, want deadline exceeded", m.Cause)
	}
}

func TestRouterGateway(t *testing.T) {
	mock := ai.NewMockProvider(validLesson)
	router := ai.NewRouter()
	router.Register("mock", mock)

	gw := generation.NewRouterGateway(router, generation.GatewayConfig{})
	out, err := gw.Generate(context.Background(), "prompt")
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	if out != validLesson {
		t.Error("gateway should return provider text unchanged")
	}

	req := mock.LastRequest
	if !req.JSONMode || req.MaxTokens != 2500 || req.Temperature != 0.3 {
		t.Errorf("request = %+v", req)
	}

	mock.Err = errors.New("down")
	_, err = gw.Generate(context.Background(), "prompt")
	var genErr *generation.GenerationError
	if !errors.As(err, &genErr) {
		t.Fatalf("error = %v, want GenerationError", err)
	}
}

func TestBuildPrompt(t *testing.T) {
	g := generation.NewGenerator(generation.GatewayFunc(func(context.Context, string) (string, error) { return "", nil }), 0)
	prompt := g.Prompt(testRequest())

	for _, want := range []string{
		"TOPIC: cardiology",
		"CATEGORY: UE 5 - Anatomy",
		"SUBCATEGORY: Systems and Apparatus",
		"SEMESTER: 1",
		"STUDENT LEVEL: intermediate",
		"heart_anatomy, cardiac_physiology",
		"LEARNING VELOCITY: 0.70",
		"- Heart: The heart pumps blood....",
		`"question_id": "q1_cardiology"`,
		`"lesson_content"`,
	} {
		if !strings.Contains(prompt, want) {
			t.Errorf("prompt missing %q", want)
		}
	}
}

func TestSchema(t *testing.T) {
	raw, err := generation.Schema()
	if err != nil {
		t.Fatalf("Schema() error = %v", err)
	}
	var doc map[string]any
	if err := json.Unmarshal(raw, &doc); err != nil {
		t.Fatalf("schema is not JSON: %v", err)
	}
	props, _ := doc["properties"].(map[string]any)
	for _, key := range []string{"lesson_content", "target_concepts", "questions", "learning_objectives", "academic_context"} {
		if _, ok := props[key]; !ok {
			t.Errorf("schema missing property %q", key)
		}
	}

	issues, err := generation.Validate([]byte(`{"lesson_content": "x"}`))
	if err != nil {
		t.Fatalf("Validate() error = %v", err)
	}
	if len(issues) == 0 {
		t.Error("incomplete document should report issues")
	}
}

func TestOutcome_String(t *testing.T) {
	tests := []struct {
		o    generation.Outcome
		want string
	}{
		{generation.OutcomeParsed, "parsed"},
		{generation.OutcomeUnstructured, "unstructured"},
		{generation.OutcomeMinimal, "minimal"},
		{generation.Outcome(99), "unknown"},
	}
	for _, tt := range tests {
		if got := tt.o.String(); got != tt.want {
			t.Errorf("Outcome(%d).String() = %q, want %q", tt.o, got, tt.want)
		}
	}
}
