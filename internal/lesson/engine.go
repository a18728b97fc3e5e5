package lesson

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/p-n-ai/pai-lessons/internal/generation"
	"github.com/p-n-ai/pai-lessons/internal/retrieval"
	"github.com/p-n-ai/pai-lessons/internal/taxonomy"
)

const (
	defaultRelatedLimit    = 5
	defaultAcademicProgram = "French Medical Education"

	GeneratorRAG     = "rag_pipeline"
	GeneratorPrecise = "precise_rag_pipeline"
	GeneratorBatch   = "batch_lesson_collection"
)

// EngineConfig holds dependencies for the lesson engine.
type EngineConfig struct {
	Resolver        *taxonomy.Resolver
	Retriever       retrieval.Gateway
	Generator       *generation.Generator
	Events          EventLogger
	RetrievalLimit  int    // documents requested per lesson (default 15)
	RelatedLimit    int    // related topics added to the query (default 5)
	AcademicProgram string // metadata label (default "French Medical Education")
	Now             func() time.Time
}

// Engine runs the lesson pipeline. It holds no per-request state and is
// safe for concurrent use.
type Engine struct {
	resolver        *taxonomy.Resolver
	retriever       retrieval.Gateway
	generator       *generation.Generator
	assembler       *Assembler
	events          EventLogger
	retrievalLimit  int
	relatedLimit    int
	academicProgram string
	now             func() time.Time
}

// NewEngine creates a new lesson engine.
func NewEngine(cfg EngineConfig) *Engine {
	resolver := cfg.Resolver
	if resolver == nil {
		resolver = taxonomy.NewResolver(taxonomy.New(nil), taxonomy.DefaultThreshold)
	}
	var retriever retrieval.Gateway = retrieval.NopGateway{}
	if cfg.Retriever != nil {
		retriever = cfg.Retriever
	}
	events := cfg.Events
	if events == nil {
		events = NopEventLogger{}
	}
	retrievalLimit := cfg.RetrievalLimit
	if retrievalLimit == 0 {
		retrievalLimit = retrieval.DefaultLimit
	}
	relatedLimit := cfg.RelatedLimit
	if relatedLimit == 0 {
		relatedLimit = defaultRelatedLimit
	}
	program := cfg.AcademicProgram
	if program == "" {
		program = defaultAcademicProgram
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	return &Engine{
		resolver:        resolver,
		retriever:       retriever,
		generator:       cfg.Generator,
		assembler:       NewAssembler(now),
		events:          events,
		retrievalLimit:  retrievalLimit,
		relatedLimit:    relatedLimit,
		academicProgram: program,
		now:             now,
	}
}

// Resolver returns the topic resolver the engine uses.
func (e *Engine) Resolver() *taxonomy.Resolver {
	return e.resolver
}

// Request is one lesson to produce.
type Request struct {
	Topic   string
	Profile UserProfile
	// Category and Subcategory, when both set, replace the resolved
	// placement and are stamped on every output record.
	Category    string
	Subcategory string
	// Generator labels the metadata; empty selects GeneratorRAG or
	// GeneratorPrecise.
	Generator string
}

// Precise reports whether the caller supplied the placement.
func (r Request) Precise() bool {
	return r.Category != "" && r.Subcategory != ""
}

// Result is the outcome of one pipeline run.
type Result struct {
	Bundle   *Bundle
	Mapping  taxonomy.Mapping
	Resolved bool
	Outcome  generation.Outcome
	Stages   []Stage
	Dropped  []DroppedQuestion
}

// Generate resolves topic against the taxonomy and produces a bundle.
func (e *Engine) Generate(ctx context.Context, topic string, profile UserProfile) (*Bundle, error) {
	res, err := e.Run(ctx, Request{Topic: topic, Profile: profile})
	if err != nil {
		return nil, err
	}
	return res.Bundle, nil
}

// GeneratePrecise produces a bundle placed under category and subcategory
// regardless of what resolution finds.
func (e *Engine) GeneratePrecise(ctx context.Context, topic, category, subcategory string, profile UserProfile) (*Bundle, error) {
	res, err := e.Run(ctx, Request{
		Topic:       topic,
		Profile:     profile,
		Category:    category,
		Subcategory: subcategory,
	})
	if err != nil {
		return nil, err
	}
	return res.Bundle, nil
}

// Run executes RESOLVING, RETRIEVING, GENERATING and ASSEMBLING. Gateway
// failures degrade the result; only argument errors and assembly defects
// are returned.
func (e *Engine) Run(ctx context.Context, req Request) (*Result, error) {
	topic := strings.TrimSpace(req.Topic)
	if topic == "" {
		return nil, ErrEmptyTopic
	}
	profile := req.Profile.WithDefaults()
	if err := profile.Validate(); err != nil {
		return nil, err
	}
	if e.generator == nil {
		return nil, errors.New("lesson engine has no generator")
	}

	tr := newTracker()
	log := slog.With("topic", topic, "user_id", profile.UserID)

	// RESOLVING
	mapping, resolved := e.resolver.Resolve(topic)
	if !resolved {
		log.InfoContext(ctx, "topic not found in taxonomy, using fallback placement")
		mapping = taxonomy.Fallback(topic)
	}
	if req.Precise() {
		mapping = e.place(mapping, req.Category, req.Subcategory)
	}
	log.DebugContext(ctx, "topic resolved",
		"category", mapping.Category,
		"subcategory", mapping.Subcategory,
		"similarity", mapping.SimilarityScore,
		"stage", tr.current.String(),
	)

	// RETRIEVING
	if err := tr.advance(StageRetrieving); err != nil {
		return nil, err
	}
	related := e.resolver.Index().RelatedTopics(mapping.Category, mapping.Subcategory, e.relatedLimit)
	terms := retrieval.QueryTerms(topic, mapping.Node, profile.WeakConcepts, related)
	docs := e.retriever.Search(ctx, terms, e.retrievalLimit)
	if len(docs) == 0 {
		log.WarnContext(ctx, "no supporting documents found", "stage", tr.current.String())
	}

	// GENERATING
	if err := tr.advance(StageGenerating); err != nil {
		return nil, err
	}
	draft := e.generator.Generate(ctx, generation.Request{
		Topic:            topic,
		Mapping:          mapping,
		Level:            profile.CurrentLevel,
		WeakConcepts:     profile.WeakConcepts,
		LearningVelocity: profile.LearningVelocity,
		Documents:        docs,
		RelatedTopics:    related,
	})
	outcome := draft.Outcome()

	// ASSEMBLING
	final := StageDone
	if outcome.Degraded() {
		final = StageDegradedDone
	}
	if outcome != generation.OutcomeMinimal {
		if err := tr.advance(StageAssembling); err != nil {
			return nil, err
		}
	}
	asm, err := e.assembler.Assemble(draft, topic, profile, mapping)
	if err != nil {
		if tr.current == StageAssembling {
			_ = tr.advance(StageFailed)
		}
		log.ErrorContext(ctx, "lesson assembly failed", "error", err, "outcome", outcome.String())
		return nil, fmt.Errorf("assemble lesson: %w", err)
	}
	if err := tr.advance(final); err != nil {
		return nil, err
	}

	b := asm.Bundle
	if req.Precise() {
		stampPlacement(b, topic, req.Category, req.Subcategory)
	}

	generator := req.Generator
	if generator == "" {
		generator = GeneratorRAG
		if req.Precise() {
			generator = GeneratorPrecise
		}
	}
	state := StateDone
	if final == StageDegradedDone {
		state = StateDegradedDone
	}
	var issues []string
	if p, ok := draft.(*generation.ParsedDraft); ok {
		issues = p.SchemaIssues
	}
	b.Metadata = Metadata{
		GeneratedAt:      b.Lesson.CreatedAt,
		Topic:            topic,
		Category:         b.Lesson.Category,
		Subcategory:      b.Lesson.Subcategory,
		UserID:           profile.UserID,
		Generator:        generator,
		AcademicProgram:  e.academicProgram,
		PrecisionMode:    req.Precise(),
		SimilarityScore:  mapping.SimilarityScore,
		State:            state,
		Outcome:          outcome.String(),
		DocumentsUsed:    len(docs),
		QuestionsDropped: len(asm.Dropped),
		SchemaIssues:     issues,
	}

	e.logEvents(b, outcome, asm.Dropped)

	log.InfoContext(ctx, "lesson generated",
		"lesson_id", b.Lesson.LessonID,
		"category", b.Lesson.Category,
		"outcome", outcome.String(),
		"questions", len(b.Questions),
		"documents", len(docs),
	)

	return &Result{
		Bundle:   b,
		Mapping:  mapping,
		Resolved: resolved,
		Outcome:  outcome,
		Stages:   append([]Stage(nil), tr.path...),
		Dropped:  asm.Dropped,
	}, nil
}

// place overrides the placement of m. The semester comes from the
// taxonomy when the pair is known there.
func (e *Engine) place(m taxonomy.Mapping, category, subcategory string) taxonomy.Mapping {
	m.Category = category
	m.Subcategory = subcategory
	if sem, ok := e.resolver.Index().Semester(category, subcategory); ok {
		m.Semester = sem
	} else if m.Semester == 0 {
		m.Semester = 1
	}
	return m
}

func stampPlacement(b *Bundle, topic, category, subcategory string) {
	b.Lesson.Topic = topic
	b.Lesson.Category = category
	b.Lesson.Subcategory = subcategory
	b.Exercise.Topic = topic
	for i := range b.Questions {
		b.Questions[i].Topic = topic
		b.Questions[i].Category = category
		b.Questions[i].Subcategory = subcategory
	}
}

func (e *Engine) logEvents(b *Bundle, outcome generation.Outcome, dropped []DroppedQuestion) {
	base := Event{
		LessonID:  b.Lesson.LessonID,
		UserID:    b.Metadata.UserID,
		CreatedAt: b.Lesson.CreatedAt,
	}

	ev := base
	ev.EventType = EventLessonGenerated
	if outcome.Degraded() {
		ev.EventType = EventGenerationDegraded
	}
	ev.Data = map[string]any{
		"topic":       b.Lesson.Topic,
		"category":    b.Lesson.Category,
		"subcategory": b.Lesson.Subcategory,
		"outcome":     outcome.String(),
		"questions":   len(b.Questions),
	}
	if len(b.Metadata.SchemaIssues) > 0 {
		ev.Data["schema_issues"] = b.Metadata.SchemaIssues
	}
	if err := e.events.LogEvent(ev); err != nil {
		slog.Warn("failed to log lesson event", "type", ev.EventType, "error", err)
	}

	for _, d := range dropped {
		ev := base
		ev.EventType = EventQuestionDropped
		ev.Data = map[string]any{"index": d.Index, "reason": d.Reason}
		if err := e.events.LogEvent(ev); err != nil {
			slog.Warn("failed to log lesson event", "type", ev.EventType, "error", err)
		}
	}
}
