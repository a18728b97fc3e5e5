package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/p-n-ai/pai-lessons/internal/app"
	"github.com/p-n-ai/pai-lessons/internal/lesson"
	"github.com/p-n-ai/pai-lessons/internal/platform/cache"
	"github.com/p-n-ai/pai-lessons/internal/platform/logging"
	"github.com/p-n-ai/pai-lessons/internal/taxonomy"
)

const (
	serviceName    = "medical-ai-education"
	serviceVersion = "1.0.0"

	topicRequestUser   = "topic_request"
	preciseRequestUser = "precise_request"

	readyTimeout = 3 * time.Second

	defaultHistoryLimit = 20
	maxHistoryLimit     = 100
)

var endpoints = []string{
	"GET /health",
	"GET /readyz",
	"GET /taxonomy",
	"POST /lessons",
	"GET /lessons/{topic}",
	"GET /lessons?topic=...&category=...&subcategory=...",
	"GET /lessons/id/{lessonID}",
	"GET /lessons/history/{topic}?limit=...",
}

// server serves the lesson API.
type server struct {
	engine *lesson.Engine
	store  lesson.BundleStore
	cache  *cache.BundleCache
	index  *taxonomy.Index
	ready  func(ctx context.Context) error
}

func newServer(a *app.App) *server {
	return &server{
		engine: a.Engine,
		store:  a.Store,
		cache:  a.Cache,
		index:  a.Index,
		ready:  a.Ready,
	}
}

// handler creates the HTTP router.
func (s *server) handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /{$}", s.handleRoot)
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("GET /readyz", s.handleReadyz)
	mux.HandleFunc("GET /taxonomy", s.handleTaxonomy)
	mux.HandleFunc("POST /lessons", s.handleCreateLesson)
	mux.HandleFunc("GET /lessons", s.handlePreciseLesson)
	mux.HandleFunc("GET /lessons/{topic}", s.handleTopicLesson)
	mux.HandleFunc("GET /lessons/id/{lessonID}", s.handleGetLesson)
	mux.HandleFunc("GET /lessons/history/{topic}", s.handleTopicHistory)
	return withRequestID(mux)
}

func (s *server) handleRoot(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"message":   "Medical AI Education API",
		"version":   serviceVersion,
		"endpoints": endpoints,
	})
}

func (s *server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "healthy", "service": serviceName})
}

func (s *server) handleReadyz(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), readyTimeout)
	defer cancel()

	if err := s.ready(ctx); err != nil {
		slog.WarnContext(ctx, "readiness check failed", "error", err)
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"status":    "not ready",
			"component": app.ComponentOf(err),
			"error":     err.Error(),
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

type subcategoryView struct {
	Name     string `json:"name"`
	Semester int    `json:"semester"`
}

type categoryView struct {
	Category      string            `json:"category"`
	Subcategories []subcategoryView `json:"subcategories"`
}

func (s *server) handleTaxonomy(w http.ResponseWriter, r *http.Request) {
	cats := []categoryView{}
	for _, c := range s.index.Categories() {
		view := categoryView{Category: c, Subcategories: []subcategoryView{}}
		for _, sub := range s.index.Subcategories(c) {
			sem, _ := s.index.Semester(c, sub)
			view.Subcategories = append(view.Subcategories, subcategoryView{Name: sub, Semester: sem})
		}
		cats = append(cats, view)
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"topics":     s.index.Len(),
		"categories": cats,
	})
}

// createRequest is the POST /lessons body. user_context is accepted as an
// alias of user_profile.
type createRequest struct {
	Topic       string              `json:"topic"`
	UserProfile *lesson.UserProfile `json:"user_profile"`
	UserContext *lesson.UserProfile `json:"user_context"`
}

func (s *server) handleCreateLesson(w http.ResponseWriter, r *http.Request) {
	var req createRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid request body: %v", err))
		return
	}

	var profile lesson.UserProfile
	switch {
	case req.UserProfile != nil:
		profile = *req.UserProfile
	case req.UserContext != nil:
		profile = *req.UserContext
	}

	res, err := s.engine.Run(r.Context(), lesson.Request{Topic: req.Topic, Profile: profile})
	if err != nil {
		s.generationFailed(w, r, req.Topic, err)
		return
	}
	s.save(r.Context(), res.Bundle)
	writeJSON(w, http.StatusOK, res.Bundle)
}

func (s *server) handleTopicLesson(w http.ResponseWriter, r *http.Request) {
	topic := strings.ReplaceAll(r.PathValue("topic"), "_", " ")
	key := cache.Key("topic", topic)

	s.cached(w, r, key, topic, lesson.Request{
		Topic:   topic,
		Profile: lesson.NewUserProfile(topicRequestUser),
	})
}

func (s *server) handlePreciseLesson(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	topic, category, subcategory := q.Get("topic"), q.Get("category"), q.Get("subcategory")
	if strings.TrimSpace(category) == "" || strings.TrimSpace(subcategory) == "" {
		writeError(w, http.StatusBadRequest, "topic, category and subcategory are required")
		return
	}
	key := cache.Key("precise", topic, category, subcategory)

	s.cached(w, r, key, topic, lesson.Request{
		Topic:       topic,
		Profile:     lesson.NewUserProfile(preciseRequestUser),
		Category:    category,
		Subcategory: subcategory,
	})
}

// cached serves req from the bundle cache when possible, otherwise runs
// the pipeline and caches the result.
func (s *server) cached(w http.ResponseWriter, r *http.Request, key, topic string, req lesson.Request) {
	ctx := r.Context()
	if s.cache != nil {
		if b, ok := s.cache.Get(ctx, key); ok {
			slog.DebugContext(ctx, "lesson served from cache", "topic", topic, "lesson_id", b.Lesson.LessonID)
			writeJSON(w, http.StatusOK, b)
			return
		}
	}

	res, err := s.engine.Run(ctx, req)
	if err != nil {
		s.generationFailed(w, r, topic, err)
		return
	}
	if s.cache != nil {
		s.cache.Put(ctx, key, res.Bundle)
	}
	s.save(ctx, res.Bundle)
	writeJSON(w, http.StatusOK, res.Bundle)
}

func (s *server) handleGetLesson(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("lessonID")
	b, err := s.store.Get(id)
	if errors.Is(err, lesson.ErrNotFound) {
		writeError(w, http.StatusNotFound, fmt.Sprintf("lesson %s not found", id))
		return
	}
	if err != nil {
		slog.ErrorContext(r.Context(), "failed to load lesson", "lesson_id", id, "error", err)
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, b)
}

// handleTopicHistory lists the stored lessons of a topic, newest first.
func (s *server) handleTopicHistory(w http.ResponseWriter, r *http.Request) {
	topic := strings.ReplaceAll(r.PathValue("topic"), "_", " ")

	limit := defaultHistoryLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid limit %q", v))
			return
		}
		limit = min(n, maxHistoryLimit)
	}

	bundles, err := s.store.ListByTopic(topic, limit)
	if err != nil {
		slog.ErrorContext(r.Context(), "failed to list lessons", "topic", topic, "error", err)
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if bundles == nil {
		bundles = []*lesson.Bundle{}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"topic":   topic,
		"count":   len(bundles),
		"lessons": bundles,
	})
}

// save stores b. Failures are logged and never fail the request.
func (s *server) save(ctx context.Context, b *lesson.Bundle) {
	if err := s.store.Save(b); err != nil {
		slog.WarnContext(ctx, "failed to save lesson", "lesson_id", b.Lesson.LessonID, "error", err)
	}
}

func (s *server) generationFailed(w http.ResponseWriter, r *http.Request, topic string, err error) {
	if errors.Is(err, lesson.ErrEmptyTopic) || errors.Is(err, lesson.ErrMissingUserID) {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	slog.ErrorContext(r.Context(), "lesson generation failed", "topic", topic, "error", err)
	writeError(w, http.StatusInternalServerError, fmt.Sprintf("lesson generation failed for topic %q: %v", topic, err))
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("failed to write response", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

// withRequestID tags the request context with an id taken from
// X-Request-ID or freshly generated, and logs each request.
func withRequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get("X-Request-ID")
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set("X-Request-ID", id)

		ctx := logging.WithFields(r.Context(), logging.Fields{RequestID: id})
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		start := time.Now()

		next.ServeHTTP(rec, r.WithContext(ctx))

		slog.InfoContext(ctx, "request handled",
			"method", r.Method,
			"path", r.URL.Path,
			"status", rec.status,
			"duration", time.Since(start),
		)
	})
}
