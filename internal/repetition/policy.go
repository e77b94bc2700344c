package repetition

import (
	"sort"
	"strings"
	"time"

	"github.com/example/studybot/pkg/models"
)

// Policy decides when an asked question may be asked again
type Policy struct {
	// Cooldown after a correct answer
	Cooldown time.Duration

	// RetryDays after a wrong or unanswered question, counted in calendar days
	RetryDays int

	Location *time.Location
}

// NewPolicy creates a policy with the given cooldown in days and a next-day retry
func NewPolicy(cooldownDays int, loc *time.Location) *Policy {
	if loc == nil {
		loc = time.Local
	}
	return &Policy{
		Cooldown:  time.Duration(cooldownDays) * 24 * time.Hour,
		RetryDays: 1,
		Location:  loc,
	}
}

// Record updates the usage of a question that was just asked
func (p *Policy) Record(u models.QuestionUsage, questionID int64, correct bool, now time.Time) models.QuestionUsage {
	u.QuestionID = questionID
	u.LastAsked = now

	local := now.In(p.Location)
	midnight := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, p.Location)

	if correct {
		u.Correct++
		u.NextDue = now.Add(p.Cooldown)
	} else {
		u.Wrong++
		u.NextDue = midnight.AddDate(0, 0, p.RetryDays)
	}

	// never due again on the day it was asked
	if tomorrow := midnight.AddDate(0, 0, 1); u.NextDue.Before(tomorrow) {
		u.NextDue = tomorrow
	}
	return u
}

// Due reports whether the question is eligible at now
func (p *Policy) Due(u models.QuestionUsage, ok bool, now time.Time) bool {
	if !ok || u.NextDue.IsZero() {
		return true
	}
	return !now.Before(u.NextDue)
}

// Eligible filters questions down to those due at now, optionally limited to
// one subject (case-insensitive). The result is ordered with never-asked
// questions first, then by the most wrong answers, then by id.
func (p *Policy) Eligible(questions []models.Question, history map[int64]models.QuestionUsage, subject string, now time.Time) []models.Question {
	var out []models.Question
	for _, q := range questions {
		if subject != "" && !strings.EqualFold(q.Subject, subject) {
			continue
		}
		u, ok := history[q.ID]
		if p.Due(u, ok, now) {
			out = append(out, q)
		}
	}

	sort.SliceStable(out, func(i, j int) bool {
		ui, iok := history[out[i].ID]
		uj, jok := history[out[j].ID]
		if iok != jok {
			return !iok
		}
		if ui.Wrong != uj.Wrong {
			return ui.Wrong > uj.Wrong
		}
		return out[i].ID < out[j].ID
	})
	return out
}
