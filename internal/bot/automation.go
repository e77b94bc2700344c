package bot

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"go.uber.org/zap"

	"github.com/example/studybot/internal/quiz"
	"github.com/example/studybot/pkg/models"
)

// errNoGroup is returned by announcements when no group chat is known yet
var errNoGroup = errors.New("no group chat configured or detected")

// MorningGreeting implements scheduler.Notifier
func (b *Bot) MorningGreeting(ctx context.Context) error {
	group := b.groupChatID()
	if group == 0 {
		return errNoGroup
	}

	var target int
	b.repo.View(func(s *models.State) { target = s.TargetHours })

	text := fmt.Sprintf("🌅 Good Morning %s 🌸\n\n🎯 Today's Reading Target: %d hours\n(Set by Admin)\n\n💡 Motivation:\n%s",
		b.config.StudentName, target, b.motivator.Line(ctx, b.config.StudentName))
	if countdown := b.examCountdown(); countdown != "" {
		text += "\n\n" + countdown
	}
	text += "\n\nStart reading with focus 💪📚"
	b.send(group, text)
	return nil
}

// ReadingReminder implements scheduler.Notifier. It only nudges when reading
// has started today and the target is not reached yet.
func (b *Bot) ReadingReminder(context.Context) error {
	group := b.groupChatID()
	if group == 0 {
		return errNoGroup
	}

	st := b.tracker.Status("")
	if st.Minutes <= 0 || st.Minutes >= st.TargetMinutes {
		return nil
	}
	b.send(group, fmt.Sprintf("⏰ Reminder %s\n\n📖 Studied: %s hrs\n🎯 Target: %s hrs\n⏳ Remaining: %s hrs\n\nStop scrolling, start reading 📚🔥",
		b.config.StudentName, formatHours(st.Minutes), formatHours(st.TargetMinutes), formatHours(st.Remaining)))
	return nil
}

// NightlySummary implements scheduler.Notifier. A day below target increments
// the missed target counter.
func (b *Bot) NightlySummary(ctx context.Context) error {
	st := b.tracker.Status("")
	met := st.Minutes >= st.TargetMinutes

	var missed int
	var tests []models.TestRecord
	err := b.repo.Update(ctx, func(s *models.State) error {
		if !met {
			s.MissedTargets++
		}
		missed = s.MissedTargets
		for _, t := range s.Tests {
			if t.Date == st.Day {
				tests = append(tests, t)
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to record nightly summary: %w", err)
	}

	group := b.groupChatID()
	if group == 0 {
		return errNoGroup
	}

	text := fmt.Sprintf("🌙 Nightly Summary – %s\n\n📚 Studied today: %s hrs\n🎯 Target: %s hrs\n",
		b.config.StudentName, formatHours(st.Minutes), formatHours(st.TargetMinutes))
	if met {
		text += "✅ Target achieved. Well done!"
	} else {
		text += fmt.Sprintf("❌ Target missed by %s hrs\n📉 Days missed so far: %d", formatHours(st.Remaining), missed)
	}
	if len(tests) > 0 {
		text += "\n\n📝 Tests today:"
		for _, t := range tests {
			text += fmt.Sprintf("\n• %s: %d/%d (%d%%)", t.Type, t.Correct, t.Total, t.Accuracy)
		}
	}
	if st.Active {
		text += "\n\n⏱ A reading session is still open. Use /stop when done."
	}
	b.send(group, text)
	return nil
}

// DailyReset implements scheduler.Notifier
func (b *Bot) DailyReset(ctx context.Context) error {
	dropped, err := b.tracker.Reset(ctx)
	if err != nil {
		return fmt.Errorf("failed to reset reading sessions: %w", err)
	}
	b.log.Info("Daily reset", zap.Int("dropped_sessions", dropped))
	return nil
}

// StartAutoTest implements scheduler.Notifier
func (b *Bot) StartAutoTest(ctx context.Context, kind models.TestKind) error {
	group := b.groupChatID()
	if group == 0 {
		return errNoGroup
	}

	preset := quiz.Daily
	if kind == models.WeeklyTest {
		preset = quiz.Weekly
	}
	if _, active := b.engine.Active(); active {
		b.log.Info("Skipping scheduled test, another test is running", zap.String("kind", string(kind)))
		return nil
	}
	b.startTest(ctx, group, preset, "")
	return nil
}

// examCountdown is "" when no exam date is set or the exam has passed
func (b *Bot) examCountdown() string {
	if b.config.ExamDate.IsZero() {
		return ""
	}
	loc := b.config.Location
	now := b.now().In(loc)
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, loc)
	exam := b.config.ExamDate.In(loc)
	examDay := time.Date(exam.Year(), exam.Month(), exam.Day(), 0, 0, 0, 0, loc)

	days := int(math.Round(examDay.Sub(today).Hours() / 24))
	switch {
	case days < 0:
		return ""
	case days == 0:
		return fmt.Sprintf("📅 %s is today. All the best!", b.config.ExamName)
	case days == 1:
		return fmt.Sprintf("📅 %s is tomorrow!", b.config.ExamName)
	default:
		return fmt.Sprintf("📅 %s: %d days left", b.config.ExamName, days)
	}
}
