package chaos

import (
	"encoding/json"
	"fmt"
	"os"
	"time"
)

// Report is the JSON artifact a suite run leaves behind
type Report struct {
	Suite       string    `json:"suite"`
	GeneratedAt time.Time `json:"generated_at"`
	Score       Score     `json:"score"`
	Records     []Record  `json:"records"`
}

// NewReport assembles a report from a finished run
func NewReport(suite string, records []Record) Report {
	return Report{
		Suite:       suite,
		GeneratedAt: time.Now(),
		Score:       ScoreRecords(records),
		Records:     records,
	}
}

// Write writes the report as indented JSON to path
func (r Report) Write(path string) error {
	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling report: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("writing report: %w", err)
	}
	return nil
}
