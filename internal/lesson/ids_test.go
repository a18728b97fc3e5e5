package lesson_test

import (
	"testing"

	"github.com/p-n-ai/pai-lessons/internal/lesson"
)

func TestStableID_Pinned(t *testing.T) {
	tests := []struct {
		parts []string
		want  uint64
	}{
		{[]string{"cardiology", "test_user_123", "UE 5 - Anatomy"}, 25641},
		{[]string{"cardiology", "test_user_123", "Systems and Apparatus"}, 35247},
		{[]string{"", "", ""}, 48146},
	}
	for _, tt := range tests {
		if got := lesson.StableID(tt.parts...); got != tt.want {
			t.Errorf("StableID(%q) = %d, want %d", tt.parts, got, tt.want)
		}
	}
}

func TestLessonAndExerciseIDs(t *testing.T) {
	if got := lesson.LessonID("cardiology", "test_user_123", "UE 5 - Anatomy"); got != "lesson_25641" {
		t.Errorf("LessonID() = %q, want lesson_25641", got)
	}
	if got := lesson.ExerciseID("cardiology", "test_user_123", "Systems and Apparatus"); got != "ex_35247" {
		t.Errorf("ExerciseID() = %q, want ex_35247", got)
	}
}

func TestStableID_DependsOnEveryPart(t *testing.T) {
	base := lesson.StableID("cardiology", "test_user_123", "UE 5 - Anatomy")
	if lesson.StableID("cardiology", "other", "UE 5 - Anatomy") == base {
		t.Error("changing user_id should change the id")
	}
	if lesson.StableID("cardiology", "test_user_123", "General") == base {
		t.Error("changing category should change the id")
	}
	if got := lesson.StableID("cardiology", "test_user_123", "UE 5 - Anatomy"); got != base {
		t.Errorf("StableID() not stable: %d then %d", base, got)
	}
}
