package cache

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/p-n-ai/pai-lessons/internal/lesson"
	"github.com/p-n-ai/pai-lessons/internal/platform/config"
)

func TestRedisOptions(t *testing.T) {
	tests := []struct {
		name     string
		url      string
		wantAddr string
		wantDB   int
		wantErr  bool
	}{
		{"host and port", "redis://localhost:6379", "localhost:6379", 0, false},
		{"with db", "redis://cache.internal:6380/2", "cache.internal:6380", 2, false},
		{"empty", "", "", 0, true},
		{"wrong scheme", "http://localhost:6379", "", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			opts, err := redisOptions(tt.url)
			if (err != nil) != tt.wantErr {
				t.Fatalf("redisOptions() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr {
				return
			}
			if opts.Addr != tt.wantAddr || opts.DB != tt.wantDB {
				t.Errorf("addr/db = %s/%d, want %s/%d", opts.Addr, opts.DB, tt.wantAddr, tt.wantDB)
			}
			if opts.ReadTimeout != ioTimeout || opts.DialTimeout != dialTimeout {
				t.Errorf("timeouts = %v/%v", opts.DialTimeout, opts.ReadTimeout)
			}
		})
	}
}

func TestOpen_UnreachableHost(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping unreachable host test in short mode")
	}

	_, err := Open(t.Context(), config.CacheConfig{URL: "redis://localhost:59999"})
	if err == nil {
		t.Fatal("Open() should return error for unreachable host")
	}
	if !strings.Contains(err.Error(), "localhost:59999") {
		t.Errorf("error %q does not name the address", err)
	}
}

// memoryKV is an in-process KV that records TTLs.
type memoryKV struct {
	mu      sync.Mutex
	data    map[string][]byte
	ttls    map[string]time.Duration
	failGet error
	failSet error
}

func newMemoryKV() *memoryKV {
	return &memoryKV{data: map[string][]byte{}, ttls: map[string]time.Duration{}}
}

func (m *memoryKV) Get(_ context.Context, key string) *redis.StringCmd {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failGet != nil {
		return redis.NewStringResult("", m.failGet)
	}
	v, ok := m.data[key]
	if !ok {
		return redis.NewStringResult("", redis.Nil)
	}
	return redis.NewStringResult(string(v), nil)
}

func (m *memoryKV) Set(_ context.Context, key string, value any, ttl time.Duration) *redis.StatusCmd {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failSet != nil {
		return redis.NewStatusResult("", m.failSet)
	}
	m.data[key] = value.([]byte)
	m.ttls[key] = ttl
	return redis.NewStatusResult("OK", nil)
}

func bundle(state lesson.State) *lesson.Bundle {
	return &lesson.Bundle{
		Metadata:  lesson.Metadata{State: state, Topic: "cardiology"},
		Lesson:    lesson.Lesson{LessonID: "lesson_25641", Topic: "cardiology"},
		Exercise:  lesson.Exercise{ExerciseID: "ex_35247", LessonID: "lesson_25641"},
		Questions: []lesson.Question{},
	}
}

func TestBundleCache_RoundTrip(t *testing.T) {
	kv := newMemoryKV()
	c := NewBundleCache(kv, time.Hour)
	key := Key("topic", "cardiology")

	if _, ok := c.Get(t.Context(), key); ok {
		t.Fatal("Get() hit on empty cache")
	}
	if !c.Put(t.Context(), key, bundle(lesson.StateDone)) {
		t.Fatal("Put() = false for a finished bundle")
	}
	got, ok := c.Get(t.Context(), key)
	if !ok || got.Lesson.LessonID != "lesson_25641" {
		t.Fatalf("Get() = %+v, %v", got, ok)
	}
	if kv.ttls[key] != time.Hour {
		t.Errorf("ttl = %v, want 1h", kv.ttls[key])
	}
}

func TestBundleCache_SkipsDegraded(t *testing.T) {
	kv := newMemoryKV()
	c := NewBundleCache(kv, 0)

	if c.Put(t.Context(), "k", bundle(lesson.StateDegradedDone)) {
		t.Error("Put() stored a degraded bundle")
	}
	if len(kv.data) != 0 {
		t.Errorf("cache has %d entries, want 0", len(kv.data))
	}
}

func TestBundleCache_ErrorsAreMisses(t *testing.T) {
	kv := newMemoryKV()
	kv.failGet = errors.New("connection refused")
	kv.failSet = errors.New("connection refused")
	c := NewBundleCache(kv, 0)

	if c.Put(t.Context(), "k", bundle(lesson.StateDone)) {
		t.Error("Put() = true on write failure")
	}
	if _, ok := c.Get(t.Context(), "k"); ok {
		t.Error("Get() hit on read failure")
	}
}

func TestBundleCache_CorruptEntry(t *testing.T) {
	kv := newMemoryKV()
	kv.data["k"] = []byte("{not json")
	c := NewBundleCache(kv, 0)

	if _, ok := c.Get(t.Context(), "k"); ok {
		t.Error("Get() hit on corrupt entry")
	}
}

func TestKey(t *testing.T) {
	a := Key("topic", "cardiology")
	if a != Key("topic", "cardiology") {
		t.Error("Key() is not stable")
	}
	if a == Key("topic", "cardio", "logy") || a == Key("precise", "cardiology") {
		t.Error("Key() collides for different parts")
	}
	if !strings.HasPrefix(a, "lesson:v1:") {
		t.Errorf("Key() = %q, want lesson:v1: prefix", a)
	}
}
