package batch

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"
	"unicode/utf8"
)

// TimestampLayout is the timestamp embedded in output file names.
const TimestampLayout = "20060102_150405"

const maxSlugChars = 30

var subjectAbbrevs = map[string]string{
	"Biochemistry":                   "BCH",
	"Cell Biology":                   "CELL",
	"Biophysics":                     "PHYS",
	"Mathematics and Statistics":     "MATH",
	"Anatomy":                        "ANAT",
	"Introduction to Drug Knowledge": "DRUG",
	"Human and Social Sciences":      "HSS",
	"Specific Subject":               "SPEC",
}

var slugReplacer = strings.NewReplacer(
	",", "_",
	"'", "",
	"-", "_",
	"/", "_",
	"\\", "_",
)

// CategoryAbbrev shortens "UE 1 - Biochemistry" to "UE1_BCH". Categories
// outside the UE scheme become their first 8 characters, underscored and
// upper-cased.
func CategoryAbbrev(category string) string {
	if strings.Contains(category, "UE") {
		if ue, subject, ok := strings.Cut(category, " - "); ok {
			abbrev, known := subjectAbbrevs[subject]
			if !known {
				abbrev = strings.ToUpper(firstRunes(subject, 4))
			}
			return strings.ReplaceAll(ue, " ", "") + "_" + abbrev
		}
	}
	return strings.ToUpper(firstRunes(strings.ReplaceAll(category, " ", "_"), 8))
}

// TopicSlug turns a topic into a short file-name fragment. Topics up to 30
// characters are kept whole. Longer topics of 5 or 6 words keep their first
// four words longer than three characters; 7 or more words become
// "first_two_plusN_last_two".
func TopicSlug(topic string) string {
	s := slugReplacer.Replace(topic)
	s = strings.ReplaceAll(s, " and ", "_")
	s = strings.ReplaceAll(s, " & ", "_")
	words := strings.Fields(s)

	if utf8.RuneCountInString(strings.Join(words, " ")) <= maxSlugChars || len(words) <= 4 {
		return strings.Join(words, "_")
	}
	if len(words) <= 6 {
		var keep []string
		for _, w := range words {
			if utf8.RuneCountInString(w) > 3 {
				keep = append(keep, w)
			}
			if len(keep) == 4 {
				break
			}
		}
		return strings.Join(keep, "_")
	}
	n := len(words)
	return fmt.Sprintf("%s_plus%d_%s", strings.Join(words[:2], "_"), n-4, strings.Join(words[n-2:], "_"))
}

// FileName builds "{slug}_{abbrev}_S{semester}_lesson_{timestamp}.json".
func FileName(topic, category string, semester int, at time.Time) string {
	return fmt.Sprintf("%s_%s_S%d_lesson_%s.json", TopicSlug(topic), CategoryAbbrev(category), semester, at.Format(TimestampLayout))
}

// createExclusive creates dir/name, adding _2, _3 ... before the extension
// until a name is free. Existing files are never overwritten.
func createExclusive(dir, name string) (*os.File, string, error) {
	ext := filepath.Ext(name)
	base := strings.TrimSuffix(name, ext)
	for i := 1; i < 1000; i++ {
		candidate := name
		if i > 1 {
			candidate = fmt.Sprintf("%s_%d%s", base, i, ext)
		}
		path := filepath.Join(dir, candidate)
		f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
		if err == nil {
			return f, path, nil
		}
		if !errors.Is(err, fs.ErrExist) {
			return nil, "", fmt.Errorf("create %s: %w", path, err)
		}
	}
	return nil, "", fmt.Errorf("create %s: too many files with this name", filepath.Join(dir, name))
}

// writeJSONExclusive writes v as indented JSON to a file created by
// createExclusive. A file that could not be written completely is removed.
func writeJSONExclusive(dir, name string, v any) (written string, err error) {
	f, path, err := createExclusive(dir, name)
	if err != nil {
		return "", err
	}
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("close %s: %w", path, cerr)
		}
		if err != nil {
			_ = os.Remove(path)
			written = ""
		}
	}()

	enc := json.NewEncoder(f)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return "", fmt.Errorf("encode %s: %w", path, err)
	}
	return path, nil
}

func firstRunes(s string, n int) string {
	i := 0
	for pos := range s {
		if i == n {
			return s[:pos]
		}
		i++
	}
	return s
}
