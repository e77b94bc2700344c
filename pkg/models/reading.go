package models

import "time"

// DayLayout is the format of study-day keys
const DayLayout = "2006-01-02"

// ReadingSession is an active reading timer for one user
type ReadingSession struct {
	UserID    int64     `json:"userId" db:"user_id"`
	StartedAt time.Time `json:"startTimestamp" db:"started_at"`
	Date      string    `json:"date" db:"day"`
}

// ReadingLog maps a study day to accumulated minutes
type ReadingLog map[string]int
