package lesson

import (
	"encoding/binary"
	"fmt"

	"golang.org/x/crypto/blake2b"
)

// IDModulus bounds the numeric part of lesson and exercise ids.
const IDModulus = 100000

// StableID hashes the concatenation of parts with BLAKE2b-256 and reduces
// the first eight bytes, read big-endian, modulo IDModulus. The result is
// identical across processes and platforms.
func StableID(parts ...string) uint64 {
	h, _ := blake2b.New256(nil)
	for _, p := range parts {
		h.Write([]byte(p))
	}
	sum := h.Sum(nil)
	return binary.BigEndian.Uint64(sum[:8]) % IDModulus
}

// LessonID derives the lesson id from topic, user and category.
func LessonID(topic, userID, category string) string {
	return fmt.Sprintf("lesson_%d", StableID(topic, userID, category))
}

// ExerciseID derives the exercise id from topic, user and subcategory.
func ExerciseID(topic, userID, subcategory string) string {
	return fmt.Sprintf("ex_%d", StableID(topic, userID, subcategory))
}
