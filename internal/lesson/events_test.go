package lesson_test

import (
	"testing"

	"github.com/p-n-ai/pai-lessons/internal/lesson"
)

func TestMemoryEventLogger_LogEvent(t *testing.T) {
	logger := lesson.NewMemoryEventLogger()

	err := logger.LogEvent(lesson.Event{
		LessonID:  "lesson_1",
		UserID:    "user-1",
		EventType: lesson.EventLessonGenerated,
		Data: map[string]any{
			"questions": 3,
		},
	})
	if err != nil {
		t.Fatalf("LogEvent() error = %v", err)
	}

	events := logger.Events()
	if len(events) != 1 {
		t.Fatalf("len(events) = %d, want 1", len(events))
	}
	if events[0].EventType != lesson.EventLessonGenerated {
		t.Errorf("EventType = %q, want %q", events[0].EventType, lesson.EventLessonGenerated)
	}
	if events[0].CreatedAt.IsZero() {
		t.Error("CreatedAt should be set")
	}
}

func TestMemoryEventLogger_RequiresType(t *testing.T) {
	logger := lesson.NewMemoryEventLogger()
	if err := logger.LogEvent(lesson.Event{LessonID: "lesson_1"}); err == nil {
		t.Fatal("expected error for missing event type")
	}
}

func TestPostgresEventLogger_LogEvent_NilPool(t *testing.T) {
	logger := lesson.NewPostgresEventLogger(nil)

	err := logger.LogEvent(lesson.Event{
		LessonID:  "lesson_1",
		EventType: lesson.EventGenerationDegraded,
	})
	if err == nil {
		t.Fatal("expected error for nil pool")
	}
}

func TestNopEventLogger(t *testing.T) {
	var logger lesson.EventLogger = lesson.NopEventLogger{}
	if err := logger.LogEvent(lesson.Event{}); err != nil {
		t.Errorf("LogEvent() error = %v", err)
	}
}
