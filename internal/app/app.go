// Package app wires configuration into a ready lesson engine and its
// supporting dependencies. Both binaries build on it.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/p-n-ai/pai-lessons/internal/ai"
	"github.com/p-n-ai/pai-lessons/internal/generation"
	"github.com/p-n-ai/pai-lessons/internal/lesson"
	"github.com/p-n-ai/pai-lessons/internal/platform/cache"
	"github.com/p-n-ai/pai-lessons/internal/platform/config"
	"github.com/p-n-ai/pai-lessons/internal/platform/database"
	"github.com/p-n-ai/pai-lessons/internal/retrieval"
	"github.com/p-n-ai/pai-lessons/internal/taxonomy"
)

// Checker is a dependency that can report its readiness.
type Checker interface {
	Name() string
	HealthCheck(ctx context.Context) error
}

type namedCheck struct {
	name  string
	check func(ctx context.Context) error
}

func (c namedCheck) Name() string                          { return c.name }
func (c namedCheck) HealthCheck(ctx context.Context) error { return c.check(ctx) }

// App holds the wired components.
type App struct {
	Config   *config.Config
	Index    *taxonomy.Index
	Resolver *taxonomy.Resolver
	Router   *ai.Router
	Engine   *lesson.Engine
	Store    lesson.BundleStore
	Events   lesson.EventLogger
	Cache    *cache.BundleCache // nil when caching is disabled

	checks  []Checker
	closers []func()
}

type options struct {
	retriever retrieval.Gateway
	providers []namedProvider
	index     *taxonomy.Index
}

type namedProvider struct {
	name     string
	provider ai.Provider
}

// Option overrides a component Build would otherwise create from config.
type Option func(*options)

// WithRetriever replaces the Typesense gateway.
func WithRetriever(g retrieval.Gateway) Option {
	return func(o *options) { o.retriever = g }
}

// WithProvider registers p instead of the providers named in config.
// Repeat it to build a fallback chain.
func WithProvider(name string, p ai.Provider) Option {
	return func(o *options) { o.providers = append(o.providers, namedProvider{name, p}) }
}

// WithIndex replaces the taxonomy file named in config.
func WithIndex(x *taxonomy.Index) Option {
	return func(o *options) { o.index = x }
}

// Build creates every component cfg enables. Persistence and caching are
// optional: an empty URL selects the in-memory store and disables the
// cache. On error everything opened so far is closed again.
func Build(ctx context.Context, cfg *config.Config, opts ...Option) (*App, error) {
	var o options
	for _, fn := range opts {
		fn(&o)
	}

	a := &App{Config: cfg}

	a.Index = o.index
	if a.Index == nil {
		a.Index = taxonomy.Load(cfg.Taxonomy.Path)
	}
	a.Resolver = taxonomy.NewResolver(a.Index, cfg.Taxonomy.MatchThreshold)

	retriever := o.retriever
	if retriever == nil {
		retriever = a.searchGateway()
	}

	router, err := newRouter(ctx, cfg.AI, o.providers)
	if err != nil {
		return nil, err
	}
	a.Router = router
	if router.HasProvider() {
		a.checks = append(a.checks, namedCheck{name: "ai", check: router.HealthCheck})
	}

	gw := generation.NewRouterGateway(router, generation.GatewayConfig{
		MaxTokens:   cfg.AI.MaxTokens,
		Temperature: cfg.AI.Temperature,
	})

	a.Store = lesson.NewMemoryStore()
	a.Events = lesson.NopEventLogger{}
	if cfg.Database.URL != "" {
		db, err := database.Open(ctx, cfg.Database, lesson.EnsureSchema)
		if err != nil {
			return nil, fmt.Errorf("open database: %w", err)
		}
		a.closers = append(a.closers, db.Close)
		a.checks = append(a.checks, db)

		store, err := lesson.NewPostgresStore(db.Pool)
		if err != nil {
			a.Close()
			return nil, err
		}
		a.Store = store
		a.Events = lesson.NewPostgresEventLogger(db.Pool)
	}

	if cfg.Cache.URL != "" {
		conn, err := cache.Open(ctx, cfg.Cache)
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("open cache: %w", err)
		}
		a.closers = append(a.closers, func() { _ = conn.Close() })
		a.checks = append(a.checks, conn)
		a.Cache = conn.Bundles
	}

	a.Engine = lesson.NewEngine(lesson.EngineConfig{
		Resolver:        a.Resolver,
		Retriever:       retriever,
		Generator:       generation.NewGenerator(gw, cfg.AI.Timeout),
		Events:          a.Events,
		RetrievalLimit:  cfg.Search.Limit,
		AcademicProgram: cfg.AcademicProgram,
	})

	slog.Info("lesson engine ready",
		"topics", a.Index.Len(),
		"providers", router.Names(),
		"persistence", cfg.Database.URL != "",
		"cache", a.Cache != nil,
	)
	return a, nil
}

func (a *App) searchGateway() retrieval.Gateway {
	s := a.Config.Search
	if s.URL == "" {
		slog.Warn("search backend not configured, lessons will be generated without context")
		return retrieval.NopGateway{}
	}
	ts := retrieval.NewTypesenseGateway(retrieval.TypesenseConfig{
		URL:        s.URL,
		APIKey:     s.APIKey,
		Collection: s.Collection,
		QueryBy:    s.QueryBy,
		Timeout:    s.Timeout,
	})
	a.checks = append(a.checks, namedCheck{name: "search", check: ts.HealthCheck})
	return ts
}

// newRouter registers the configured providers in fallback order, each
// behind its own retry decorator.
func newRouter(ctx context.Context, cfg config.AIConfig, override []namedProvider) (*ai.Router, error) {
	router := ai.NewRouter()
	retry := ai.DefaultRetryConfig()
	if cfg.RetryAttempts > 0 {
		retry.MaxAttempts = cfg.RetryAttempts
	}

	if len(override) > 0 {
		for _, np := range override {
			router.Register(np.name, np.provider)
		}
		return router, nil
	}

	if p := cfg.Mistral; p.APIKey != "" {
		router.Register("mistral", ai.WithRetry(ai.NewMistralProvider(p.APIKey, openAIOptions(p)...), retry))
	}
	if p := cfg.OpenAI; p.APIKey != "" {
		router.Register("openai", ai.WithRetry(ai.NewOpenAIProvider(p.APIKey, openAIOptions(p)...), retry))
	}
	if p := cfg.Anthropic; p.APIKey != "" {
		var opts []ai.AnthropicOption
		if p.Model != "" {
			opts = append(opts, ai.WithAnthropicModel(p.Model))
		}
		if p.BaseURL != "" {
			opts = append(opts, ai.WithAnthropicBaseURL(p.BaseURL))
		}
		provider, err := ai.NewAnthropicProvider(p.APIKey, opts...)
		if err != nil {
			return nil, fmt.Errorf("initializing anthropic provider: %w", err)
		}
		router.Register("anthropic", ai.WithRetry(provider, retry))
	}
	if p := cfg.Google; p.APIKey != "" {
		var opts []ai.GoogleOption
		if p.Model != "" {
			opts = append(opts, ai.WithGoogleModel(p.Model))
		}
		if p.BaseURL != "" {
			opts = append(opts, ai.WithGoogleBaseURL(p.BaseURL))
		}
		provider, err := ai.NewGoogleProvider(ctx, p.APIKey, opts...)
		if err != nil {
			return nil, fmt.Errorf("initializing google provider: %w", err)
		}
		router.Register("google", ai.WithRetry(provider, retry))
	}

	if !router.HasProvider() {
		slog.Warn("no AI provider configured, every lesson will use the fallback tier")
	}
	return router, nil
}

func openAIOptions(p config.ProviderConfig) []ai.OpenAIOption {
	var opts []ai.OpenAIOption
	if p.Model != "" {
		opts = append(opts, ai.WithModel(p.Model))
	}
	if p.BaseURL != "" {
		opts = append(opts, ai.WithBaseURL(p.BaseURL))
	}
	return opts
}

// Checks returns the readiness checks of the enabled dependencies.
func (a *App) Checks() []Checker {
	return append([]Checker(nil), a.checks...)
}

// Ready runs every check and returns the first failure, naming the
// component.
func (a *App) Ready(ctx context.Context) error {
	for _, c := range a.checks {
		if err := c.HealthCheck(ctx); err != nil {
			return &NotReadyError{Component: c.Name(), Err: err}
		}
	}
	return nil
}

// NotReadyError names the dependency that failed its check.
type NotReadyError struct {
	Component string
	Err       error
}

func (e *NotReadyError) Error() string {
	return fmt.Sprintf("%s not ready: %v", e.Component, e.Err)
}

func (e *NotReadyError) Unwrap() error { return e.Err }

// ComponentOf returns the failing component named by err, if any.
func ComponentOf(err error) string {
	var nr *NotReadyError
	if errors.As(err, &nr) {
		return nr.Component
	}
	return ""
}

// Close releases opened connections in reverse order.
func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}
