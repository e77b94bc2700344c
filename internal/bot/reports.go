package bot

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/example/studybot/pkg/models"
)

const recentTests = 5

// dailyReport summarises today's reading and the latest tests
func (b *Bot) dailyReport() string {
	st := b.tracker.Status("")

	var sb strings.Builder
	fmt.Fprintf(&sb, "📊 Report – %s (%s)\n\n", b.config.StudentName, st.Day)
	fmt.Fprintf(&sb, "📚 Studied: %s hrs\n🎯 Target: %s hrs\n⏳ Remaining: %s hrs", formatHours(st.Minutes), formatHours(st.TargetMinutes), formatHours(st.Remaining))
	if st.Active {
		sb.WriteString("\n⏱ Reading in progress")
	}

	var tests []models.TestRecord
	b.repo.View(func(s *models.State) {
		n := len(s.Tests)
		start := n - recentTests
		if start < 0 {
			start = 0
		}
		tests = append(tests, s.Tests[start:n]...)
	})
	if len(tests) == 0 {
		sb.WriteString("\n\n📝 No tests taken yet.")
		return sb.String()
	}
	sb.WriteString("\n\n📝 Recent tests:")
	for i := len(tests) - 1; i >= 0; i-- {
		t := tests[i]
		fmt.Fprintf(&sb, "\n• %s %s: %d/%d (%d%%)", t.Date, t.Type, t.Correct, t.Total, t.Accuracy)
		if t.Subject != "" {
			fmt.Fprintf(&sb, " [%s]", t.Subject)
		}
	}
	return sb.String()
}

// MonthlySummary aggregates one calendar month
type MonthlySummary struct {
	Month         string
	Minutes       int
	DaysStudied   int
	DaysOnTarget  int
	Tests         int
	AvgAccuracy   int
	MissedTargets int
}

// monthlySummary aggregates the month containing the current study day
func (b *Bot) monthlySummary() MonthlySummary {
	month := b.tracker.Today()[:len("2006-01")]
	sum := MonthlySummary{Month: month}

	b.repo.View(func(s *models.State) {
		target := s.TargetHours * 60
		for day, minutes := range s.ReadingLog {
			if !strings.HasPrefix(day, month) || minutes <= 0 {
				continue
			}
			sum.Minutes += minutes
			sum.DaysStudied++
			if minutes >= target {
				sum.DaysOnTarget++
			}
		}

		var accuracy int
		for _, t := range s.Tests {
			if strings.HasPrefix(t.Date, month) {
				sum.Tests++
				accuracy += t.Accuracy
			}
		}
		if sum.Tests > 0 {
			sum.AvgAccuracy = int(math.Round(float64(accuracy) / float64(sum.Tests)))
		}
		sum.MissedTargets = s.MissedTargets
	})
	return sum
}

func (b *Bot) monthlyReport() string {
	sum := b.monthlySummary()

	var sb strings.Builder
	fmt.Fprintf(&sb, "📅 Monthly Report – %s (%s)\n\n", b.config.StudentName, sum.Month)
	fmt.Fprintf(&sb, "📚 Total reading: %s hrs\n", formatHours(sum.Minutes))
	fmt.Fprintf(&sb, "📖 Days studied: %d\n", sum.DaysStudied)
	fmt.Fprintf(&sb, "🎯 Days on target: %d\n", sum.DaysOnTarget)
	fmt.Fprintf(&sb, "📝 Tests taken: %d\n", sum.Tests)
	if sum.Tests > 0 {
		fmt.Fprintf(&sb, "✅ Average accuracy: %d%%\n", sum.AvgAccuracy)
	}
	fmt.Fprintf(&sb, "📉 Missed targets (all time): %d", sum.MissedTargets)
	return sb.String()
}

// questionCount describes the question bank for /mcqcount
func (b *Bot) questionCount() string {
	now := b.now()
	var total, eligible int
	perSubject := make(map[string]int)
	b.repo.View(func(s *models.State) {
		total = len(s.MCQs)
		for _, q := range s.MCQs {
			perSubject[q.Subject]++
		}
		eligible = len(b.policy.Eligible(s.MCQs, s.AskedHistory, "", now))
	})

	subjects := make([]string, 0, len(perSubject))
	for name := range perSubject {
		subjects = append(subjects, name)
	}
	sort.Strings(subjects)

	var sb strings.Builder
	fmt.Fprintf(&sb, "📚 Total MCQs: %d\n✅ Eligible now: %d", total, eligible)
	if len(subjects) > 0 {
		sb.WriteString("\n\nBy subject:")
		for _, name := range subjects {
			fmt.Fprintf(&sb, "\n• %s: %d", name, perSubject[name])
		}
	}
	return sb.String()
}
