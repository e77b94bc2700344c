package models

import "time"

// DefaultSubject is assigned to questions submitted without a SUBJECT header
const DefaultSubject = "General"

// Choice is one of the four answer labels
type Choice string

const (
	ChoiceA Choice = "A"
	ChoiceB Choice = "B"
	ChoiceC Choice = "C"
	ChoiceD Choice = "D"
)

// Choices lists the labels in display order
var Choices = []Choice{ChoiceA, ChoiceB, ChoiceC, ChoiceD}

// ParseChoice converts a single letter (any case) into a Choice
func ParseChoice(s string) (Choice, bool) {
	if len(s) != 1 {
		return "", false
	}
	c := s[0]
	if c >= 'a' && c <= 'd' {
		c -= 'a' - 'A'
	}
	switch Choice(c) {
	case ChoiceA, ChoiceB, ChoiceC, ChoiceD:
		return Choice(c), true
	}
	return "", false
}

// Question is a stored multiple choice item
type Question struct {
	ID            int64     `json:"id" db:"id"`
	Text          string    `json:"text" db:"text"`
	ChoiceA       string    `json:"choiceA" db:"choice_a"`
	ChoiceB       string    `json:"choiceB" db:"choice_b"`
	ChoiceC       string    `json:"choiceC" db:"choice_c"`
	ChoiceD       string    `json:"choiceD" db:"choice_d"`
	CorrectChoice Choice    `json:"correctChoice" db:"correct_choice"`
	Explanation   string    `json:"explanation" db:"explanation"`
	Subject       string    `json:"subject" db:"subject"`
	CreatedAt     time.Time `json:"createdAt" db:"created_at"`
}

// Option returns the text of the given choice
func (q Question) Option(c Choice) string {
	switch c {
	case ChoiceA:
		return q.ChoiceA
	case ChoiceB:
		return q.ChoiceB
	case ChoiceC:
		return q.ChoiceC
	case ChoiceD:
		return q.ChoiceD
	}
	return ""
}
