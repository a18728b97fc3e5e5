package batch

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/xuri/excelize/v2"
)

// Counts is the headline section of a run summary.
type Counts struct {
	RunID           string    `json:"run_id"`
	TotalProcessed  int       `json:"total_topics_processed"`
	Successful      int       `json:"successful_generations"`
	Failed          int       `json:"failed_generations"`
	Degraded        int       `json:"degraded_generations"`
	SuccessRate     string    `json:"success_rate"`
	GeneratedAt     time.Time `json:"generated_at"`
	OutputDirectory string    `json:"output_directory"`
}

// CategoryCount is the number of topics processed for one category.
type CategoryCount struct {
	Category string
	Topics   int
}

// Summary is the record of one batch run.
type Summary struct {
	Counts              Counts         `json:"generation_summary"`
	FailedTopics        []string       `json:"failed_topics"`
	CategoriesProcessed map[string]int `json:"categories_processed"`
	Files               []string       `json:"files"`

	categoryOrder []string
}

func newSummary(runID, outputDir string) *Summary {
	return &Summary{
		Counts:              Counts{RunID: runID, OutputDirectory: outputDir},
		FailedTopics:        []string{},
		CategoriesProcessed: map[string]int{},
		Files:               []string{},
	}
}

func (s *Summary) countCategory(category string) {
	if _, ok := s.CategoriesProcessed[category]; !ok {
		s.categoryOrder = append(s.categoryOrder, category)
	}
	s.CategoriesProcessed[category]++
}

// Categories returns the per-category totals in the order first processed.
func (s *Summary) Categories() []CategoryCount {
	out := make([]CategoryCount, 0, len(s.categoryOrder))
	for _, c := range s.categoryOrder {
		out = append(out, CategoryCount{Category: c, Topics: s.CategoriesProcessed[c]})
	}
	return out
}

func (s *Summary) finish(at time.Time) {
	s.Counts.GeneratedAt = at
	s.Counts.TotalProcessed = s.Counts.Successful + s.Counts.Failed
	if s.Counts.TotalProcessed == 0 {
		s.Counts.SuccessRate = "0%"
		return
	}
	s.Counts.SuccessRate = fmt.Sprintf("%.1f%%", float64(s.Counts.Successful)/float64(s.Counts.TotalProcessed)*100)
}

// WriteJSON writes the summary as generation_summary_{ts}.json in dir.
func (s *Summary) WriteJSON(dir string) (string, error) {
	path, err := writeJSONExclusive(dir, fmt.Sprintf("generation_summary_%s.json", s.Counts.GeneratedAt.Format(TimestampLayout)), s)
	if err != nil {
		return "", fmt.Errorf("write summary: %w", err)
	}
	return path, nil
}

// WriteReport writes the summary as a spreadsheet with Summary, Categories
// and Failed sheets.
func (s *Summary) WriteReport(dir string) (string, error) {
	x := excelize.NewFile()
	defer x.Close()

	bold, err := x.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return "", fmt.Errorf("create header style: %w", err)
	}

	if err := x.SetSheetName("Sheet1", "Summary"); err != nil {
		return "", fmt.Errorf("rename sheet: %w", err)
	}
	rows := [][]any{
		{"Field", "Value"},
		{"Run ID", s.Counts.RunID},
		{"Total Topics", s.Counts.TotalProcessed},
		{"Successful", s.Counts.Successful},
		{"Failed", s.Counts.Failed},
		{"Degraded", s.Counts.Degraded},
		{"Success Rate", s.Counts.SuccessRate},
		{"Generated At", s.Counts.GeneratedAt.Format(time.RFC3339)},
		{"Output Directory", s.Counts.OutputDirectory},
	}
	if err := writeSheet(x, "Summary", rows, bold); err != nil {
		return "", err
	}

	rows = [][]any{{"Category", "Topics"}}
	for _, c := range s.Categories() {
		rows = append(rows, []any{c.Category, c.Topics})
	}
	if _, err := x.NewSheet("Categories"); err != nil {
		return "", fmt.Errorf("add sheet: %w", err)
	}
	if err := writeSheet(x, "Categories", rows, bold); err != nil {
		return "", err
	}

	rows = [][]any{{"Failed Topic"}}
	for _, t := range s.FailedTopics {
		rows = append(rows, []any{t})
	}
	if _, err := x.NewSheet("Failed"); err != nil {
		return "", fmt.Errorf("add sheet: %w", err)
	}
	if err := writeSheet(x, "Failed", rows, bold); err != nil {
		return "", err
	}

	name := fmt.Sprintf("generation_summary_%s.xlsx", s.Counts.GeneratedAt.Format(TimestampLayout))
	path := filepath.Join(dir, name)
	if _, err := os.Stat(path); err == nil {
		path = filepath.Join(dir, fmt.Sprintf("generation_summary_%s_%s.xlsx", s.Counts.GeneratedAt.Format(TimestampLayout), s.Counts.RunID))
	}
	if err := x.SaveAs(path); err != nil {
		return "", fmt.Errorf("save report: %w", err)
	}
	return path, nil
}

func writeSheet(x *excelize.File, sheet string, rows [][]any, headerStyle int) error {
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return err
		}
		if err := x.SetSheetRow(sheet, cell, &row); err != nil {
			return fmt.Errorf("write %s row %d: %w", sheet, i+1, err)
		}
	}
	last, err := excelize.CoordinatesToCellName(len(rows[0]), 1)
	if err != nil {
		return err
	}
	if err := x.SetCellStyle(sheet, "A1", last, headerStyle); err != nil {
		return fmt.Errorf("style %s header: %w", sheet, err)
	}
	return x.SetColWidth(sheet, "A", "A", 48)
}
