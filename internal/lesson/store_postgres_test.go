package lesson_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"

	"github.com/p-n-ai/pai-lessons/internal/lesson"
)

func startPostgres(t *testing.T) *pgxpool.Pool {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping postgres integration test in short mode")
	}

	ctx := context.Background()
	ctr, err := postgres.Run(ctx, "postgres:16-alpine",
		postgres.WithDatabase("lessons"),
		postgres.WithUsername("lessons"),
		postgres.WithPassword("lessons"),
		postgres.BasicWaitStrategies(),
	)
	if err != nil {
		t.Skipf("postgres container unavailable: %v", err)
	}
	t.Cleanup(func() {
		if err := testcontainers.TerminateContainer(ctr); err != nil {
			t.Logf("terminate container: %v", err)
		}
	})

	dsn, err := ctr.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		t.Fatalf("ConnectionString() error = %v", err)
	}
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		t.Fatalf("pgxpool.New() error = %v", err)
	}
	t.Cleanup(pool.Close)

	if err := lesson.EnsureSchema(ctx, pool); err != nil {
		t.Fatalf("EnsureSchema() error = %v", err)
	}
	return pool
}

func TestPostgresStore_Integration(t *testing.T) {
	pool := startPostgres(t)

	store, err := lesson.NewPostgresStore(pool)
	if err != nil {
		t.Fatalf("NewPostgresStore() error = %v", err)
	}

	b := sampleBundle("lesson_25641", "cardiology", fixedNow)
	b.Questions = []lesson.Question{{
		QuestionID:    "q1",
		Options:       []lesson.Option{{ID: "a", Text: "A"}, {ID: "b", Text: "B"}},
		CorrectAnswer: "a",
	}}
	b.Exercise.QuestionIDs = []string{"q1"}
	if err := store.Save(b); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	got, err := store.Get("lesson_25641")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if len(got.Questions) != 1 || !got.Questions[0].HasAnswer() {
		t.Errorf("Questions = %+v", got.Questions)
	}
	if !got.Lesson.CreatedAt.Equal(fixedNow) {
		t.Errorf("CreatedAt = %v, want %v", got.Lesson.CreatedAt, fixedNow)
	}

	b.Lesson.LessonContent = "updated"
	if err := store.Save(b); err != nil {
		t.Fatalf("Save(update) error = %v", err)
	}
	_ = store.Save(sampleBundle("lesson_2", "cardiology", fixedNow.Add(time.Hour)))

	if err := store.Save(sampleBundle("lesson_25641", "membranes", fixedNow)); !errors.Is(err, lesson.ErrIDConflict) {
		t.Errorf("Save(other topic) error = %v, want ErrIDConflict", err)
	}
	otherUser := sampleBundle("lesson_25641", "cardiology", fixedNow)
	otherUser.Metadata.UserID = "user-2"
	if err := store.Save(otherUser); !errors.Is(err, lesson.ErrIDConflict) {
		t.Errorf("Save(other user) error = %v, want ErrIDConflict", err)
	}

	list, err := store.ListByTopic("cardiology", 10)
	if err != nil {
		t.Fatalf("ListByTopic() error = %v", err)
	}
	if len(list) != 2 || list[0].Lesson.LessonID != "lesson_2" || list[1].Lesson.LessonContent != "updated" {
		t.Errorf("ListByTopic() = %+v", list)
	}

	if _, err := store.Get("missing"); !errors.Is(err, lesson.ErrNotFound) {
		t.Errorf("Get(missing) error = %v, want ErrNotFound", err)
	}
}

func TestPostgresEventLogger_Integration(t *testing.T) {
	pool := startPostgres(t)
	logger := lesson.NewPostgresEventLogger(pool)

	err := logger.LogEvent(lesson.Event{
		LessonID:  "lesson_25641",
		UserID:    "test_user_123",
		EventType: lesson.EventQuestionDropped,
		Data:      map[string]any{"index": 0, "reason": "needs at least 2 options, has 1"},
	})
	if err != nil {
		t.Fatalf("LogEvent() error = %v", err)
	}

	var n int
	if err := pool.QueryRow(context.Background(),
		`SELECT COUNT(*) FROM lesson_events WHERE lesson_id = $1 AND event_type = $2`,
		"lesson_25641", lesson.EventQuestionDropped,
	).Scan(&n); err != nil {
		t.Fatalf("count events: %v", err)
	}
	if n != 1 {
		t.Errorf("events = %d, want 1", n)
	}
}
