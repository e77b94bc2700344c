package models

import "time"

// QuestionUsage tracks when a question was last asked and when it may be asked again
type QuestionUsage struct {
	QuestionID int64     `json:"questionId" db:"question_id"`
	LastAsked  time.Time `json:"lastAsked" db:"last_asked"`
	NextDue    time.Time `json:"nextDue" db:"next_due"`
	Correct    int       `json:"correct" db:"correct_count"`
	Wrong      int       `json:"wrong" db:"wrong_count"`
}
