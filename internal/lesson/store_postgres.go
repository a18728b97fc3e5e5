package lesson

import (
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const dbTimeout = 5 * time.Second

//go:embed schema.sql
var schemaSQL string

// EnsureSchema creates the lesson tables when they do not exist.
func EnsureSchema(ctx context.Context, pool *pgxpool.Pool) error {
	if pool == nil {
		return fmt.Errorf("pool is nil")
	}
	if _, err := pool.Exec(ctx, schemaSQL); err != nil {
		return fmt.Errorf("ensure lesson schema: %w", err)
	}
	return nil
}

// PostgresStore is a PostgreSQL-backed BundleStore. Bundles are kept as
// JSONB with the lookup columns denormalized beside them.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates a PostgreSQL-backed bundle store.
func NewPostgresStore(pool *pgxpool.Pool) (*PostgresStore, error) {
	if pool == nil {
		return nil, fmt.Errorf("pool is nil")
	}
	return &PostgresStore{pool: pool}, nil
}

func (s *PostgresStore) Save(b *Bundle) error {
	if b == nil || b.Lesson.LessonID == "" {
		return fmt.Errorf("lesson_id is required")
	}

	payload, err := json.Marshal(b)
	if err != nil {
		return fmt.Errorf("marshal bundle: %w", err)
	}

	createdAt := b.Lesson.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}

	ctx, cancel := context.WithTimeout(context.Background(), dbTimeout)
	defer cancel()

	tag, err := s.pool.Exec(ctx,
		`INSERT INTO lesson_bundles
		   (lesson_id, exercise_id, user_id, topic, category, subcategory, state, payload, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8::jsonb, $9)
		 ON CONFLICT (lesson_id) DO UPDATE SET
		   exercise_id = EXCLUDED.exercise_id,
		   user_id     = EXCLUDED.user_id,
		   topic       = EXCLUDED.topic,
		   category    = EXCLUDED.category,
		   subcategory = EXCLUDED.subcategory,
		   state       = EXCLUDED.state,
		   payload     = EXCLUDED.payload,
		   created_at  = EXCLUDED.created_at,
		   updated_at  = NOW()
		 WHERE lesson_bundles.topic = EXCLUDED.topic
		   AND lesson_bundles.user_id = EXCLUDED.user_id`,
		b.Lesson.LessonID,
		b.Exercise.ExerciseID,
		b.Metadata.UserID,
		b.Lesson.Topic,
		b.Lesson.Category,
		b.Lesson.Subcategory,
		string(b.Metadata.State),
		string(payload),
		createdAt,
	)
	if err != nil {
		return fmt.Errorf("save bundle: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("save %s: %w", b.Lesson.LessonID, ErrIDConflict)
	}
	return nil
}

func (s *PostgresStore) Get(lessonID string) (*Bundle, error) {
	ctx, cancel := context.WithTimeout(context.Background(), dbTimeout)
	defer cancel()

	var payload []byte
	err := s.pool.QueryRow(ctx,
		`SELECT payload FROM lesson_bundles WHERE lesson_id = $1`,
		lessonID,
	).Scan(&payload)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get bundle: %w", err)
	}
	return decodeBundle(payload)
}

func (s *PostgresStore) ListByTopic(topic string, limit int) ([]*Bundle, error) {
	if limit <= 0 {
		limit = 50
	}

	ctx, cancel := context.WithTimeout(context.Background(), dbTimeout)
	defer cancel()

	rows, err := s.pool.Query(ctx,
		`SELECT payload FROM lesson_bundles
		 WHERE topic = $1
		 ORDER BY created_at DESC, lesson_id ASC
		 LIMIT $2`,
		topic,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("query bundles: %w", err)
	}
	defer rows.Close()

	var out []*Bundle
	for rows.Next() {
		var payload []byte
		if err := rows.Scan(&payload); err != nil {
			return nil, fmt.Errorf("scan bundle: %w", err)
		}
		b, err := decodeBundle(payload)
		if err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate bundles: %w", err)
	}
	return out, nil
}

func decodeBundle(payload []byte) (*Bundle, error) {
	var b Bundle
	if err := json.Unmarshal(payload, &b); err != nil {
		return nil, fmt.Errorf("decode bundle: %w", err)
	}
	return &b, nil
}
