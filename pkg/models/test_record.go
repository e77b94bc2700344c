package models

import "time"

// TestKind identifies the test preset
type TestKind string

const (
	DailyTest  TestKind = "daily"
	WeeklyTest TestKind = "weekly"
)

// TestRecord is a completed test kept in history
type TestRecord struct {
	ID         int64     `json:"id" db:"id"`
	Date       string    `json:"date" db:"day"`
	Type       TestKind  `json:"type" db:"test_type"`
	Subject    string    `json:"subject,omitempty" db:"subject"`
	Total      int       `json:"total" db:"total"`
	Correct    int       `json:"correct" db:"correct"`
	Accuracy   int       `json:"accuracy" db:"accuracy"`
	StartedAt  time.Time `json:"startedAt" db:"started_at"`
	FinishedAt time.Time `json:"finishedAt" db:"finished_at"`
}
