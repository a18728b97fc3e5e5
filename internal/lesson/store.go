package lesson

import (
	"errors"
	"fmt"
	"sort"
	"sync"
)

var (
	// ErrNotFound is returned when no bundle is stored under a lesson id.
	ErrNotFound = errors.New("lesson not found")
	// ErrIDConflict is returned when a lesson id is already stored for a
	// different topic or user.
	ErrIDConflict = errors.New("lesson id already used by another topic or user")
)

// BundleStore persists generated bundles keyed by lesson id. Saving a
// bundle whose lesson id already exists replaces it only when topic and
// user match; otherwise Save fails with ErrIDConflict.
type BundleStore interface {
	Save(b *Bundle) error
	Get(lessonID string) (*Bundle, error)
	ListByTopic(topic string, limit int) ([]*Bundle, error)
}

// MemoryStore is an in-memory implementation of BundleStore.
type MemoryStore struct {
	mu      sync.RWMutex
	bundles map[string]*Bundle
}

// NewMemoryStore creates a new in-memory bundle store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		bundles: make(map[string]*Bundle),
	}
}

func (s *MemoryStore) Save(b *Bundle) error {
	if b == nil || b.Lesson.LessonID == "" {
		return errors.New("lesson_id is required")
	}
	cp := *b
	s.mu.Lock()
	defer s.mu.Unlock()

	if prev, ok := s.bundles[b.Lesson.LessonID]; ok && !sameOwner(prev, b) {
		return fmt.Errorf("save %s: %w", b.Lesson.LessonID, ErrIDConflict)
	}
	s.bundles[b.Lesson.LessonID] = &cp
	return nil
}

func sameOwner(a, b *Bundle) bool {
	return a.Lesson.Topic == b.Lesson.Topic && a.Metadata.UserID == b.Metadata.UserID
}

func (s *MemoryStore) Get(lessonID string) (*Bundle, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	b, ok := s.bundles[lessonID]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *b
	return &cp, nil
}

// ListByTopic returns the newest bundles for topic first.
func (s *MemoryStore) ListByTopic(topic string, limit int) ([]*Bundle, error) {
	s.mu.RLock()
	var out []*Bundle
	for _, b := range s.bundles {
		if b.Lesson.Topic == topic {
			cp := *b
			out = append(out, &cp)
		}
	}
	s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if !out[i].Lesson.CreatedAt.Equal(out[j].Lesson.CreatedAt) {
			return out[i].Lesson.CreatedAt.After(out[j].Lesson.CreatedAt)
		}
		return out[i].Lesson.LessonID < out[j].Lesson.LessonID
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}
