package quiz

import (
	"math"
	"sort"
	"time"

	"github.com/example/studybot/pkg/models"
)

// Band is the qualitative grade of a finished test
type Band string

const (
	BandExcellent Band = "Excellent"
	BandGood      Band = "Good"
	BandPass      Band = "Pass"
	BandFail      Band = "Fail"
)

// band cut-offs in percent of the total; at 20 questions these are 16, 14 and 12
var bandThresholds = []struct {
	percent int
	band    Band
}{
	{80, BandExcellent},
	{70, BandGood},
	{60, BandPass},
}

const maxWeakSubjects = 3

// SubjectScore is the tally of one subject within a test
type SubjectScore struct {
	Subject string
	Correct int
	Total   int
}

// Accuracy is the rounded percentage of correct answers
func (s SubjectScore) Accuracy() int {
	return Accuracy(s.Correct, s.Total)
}

// Report is the final summary of a test
type Report struct {
	Record       models.TestRecord
	Title        string
	Wrong        int
	Band         Band
	WeakSubjects []SubjectScore
	Duration     time.Duration
}

// Accuracy returns round(100 * correct / total), 0 for an empty test
func Accuracy(correct, total int) int {
	if total <= 0 {
		return 0
	}
	return int(math.Round(100 * float64(correct) / float64(total)))
}

// BandFor grades a score against fixed percentage cut-offs of total
func BandFor(correct, total int) Band {
	if total <= 0 {
		return BandFail
	}
	for _, t := range bandThresholds {
		if correct*100 >= t.percent*total {
			return t.band
		}
	}
	return BandFail
}

// WeakSubjects returns up to three subjects with the lowest accuracy,
// leaving out subjects answered perfectly
func WeakSubjects(scores map[string]*SubjectScore) []SubjectScore {
	var weak []SubjectScore
	for _, s := range scores {
		if s.Total > 0 && s.Correct < s.Total {
			weak = append(weak, *s)
		}
	}
	sort.Slice(weak, func(i, j int) bool {
		a, b := weak[i], weak[j]
		// compare a.Correct/a.Total with b.Correct/b.Total without rounding
		if l, r := a.Correct*b.Total, b.Correct*a.Total; l != r {
			return l < r
		}
		if wa, wb := a.Total-a.Correct, b.Total-b.Correct; wa != wb {
			return wa > wb
		}
		return a.Subject < b.Subject
	})
	if len(weak) > maxWeakSubjects {
		weak = weak[:maxWeakSubjects]
	}
	return weak
}
