package bot

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/studybot/internal/database"
	"github.com/example/studybot/internal/quiz"
	"github.com/example/studybot/internal/reading"
	"github.com/example/studybot/internal/repetition"
	"github.com/example/studybot/pkg/models"
)

const (
	adminID   = int64(1)
	studentID = int64(2)
	privateID = int64(2)
	groupID   = int64(-1001)
)

type fakeSender struct {
	mu       sync.Mutex
	messages []tgbotapi.MessageConfig
	requests []tgbotapi.Chattable
	fileURL  string
}

func (f *fakeSender) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if m, ok := c.(tgbotapi.MessageConfig); ok {
		f.messages = append(f.messages, m)
	}
	return tgbotapi.Message{}, nil
}

func (f *fakeSender) Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests = append(f.requests, c)
	return &tgbotapi.APIResponse{Ok: true}, nil
}

func (f *fakeSender) GetFileDirectURL(fileID string) (string, error) {
	return f.fileURL + "/" + fileID, nil
}

func (f *fakeSender) last(t *testing.T) tgbotapi.MessageConfig {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	require.NotEmpty(t, f.messages, "no message sent")
	return f.messages[len(f.messages)-1]
}

func (f *fakeSender) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.messages)
}

func (f *fakeSender) lastCallback(t *testing.T) tgbotapi.CallbackConfig {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := len(f.requests) - 1; i >= 0; i-- {
		if cb, ok := f.requests[i].(tgbotapi.CallbackConfig); ok {
			return cb
		}
	}
	t.Fatal("no callback answered")
	return tgbotapi.CallbackConfig{}
}

// stubClock never fires timers on its own
type stubClock struct{ now *time.Time }

type stubTimer struct{}

func (stubTimer) Stop() bool { return true }

func (c stubClock) Now() time.Time { return *c.now }

func (c stubClock) AfterFunc(time.Duration, func()) quiz.Timer { return stubTimer{} }

type fixture struct {
	bot  *Bot
	api  *fakeSender
	repo *database.Repository
	now  time.Time
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()

	f := &fixture{
		api: &fakeSender{},
		now: time.Date(2026, 10, 14, 10, 0, 0, 0, time.UTC),
	}
	repo, err := database.NewRepository(ctx, database.NewJSONStore(filepath.Join(t.TempDir(), "study.json")), 8)
	require.NoError(t, err)
	f.repo = repo

	cfg := DefaultConfig()
	cfg.AdminID = adminID
	cfg.StudentName = "Asha"
	cfg.ExamName = "NEET MDS"
	cfg.ExamDate = time.Date(2026, 10, 24, 0, 0, 0, 0, time.UTC)

	clock := func() time.Time { return f.now }
	tracker := reading.NewTracker(repo, time.UTC, 0, reading.WithClock(clock), reading.WithExemption(cfg.isAdmin))
	f.bot = New(f.api, cfg, repo, tracker, repetition.NewPolicy(30, time.UTC),
		WithClock(clock),
		WithEngineOptions(quiz.WithClock(stubClock{now: &f.now})))
	return f
}

func (f *fixture) message(chatID, userID int64, text string) {
	chatType := "private"
	if chatID < 0 {
		chatType = "supergroup"
	}
	f.bot.HandleUpdate(context.Background(), tgbotapi.Update{
		Message: &tgbotapi.Message{
			From: &tgbotapi.User{ID: userID},
			Chat: &tgbotapi.Chat{ID: chatID, Type: chatType},
			Text: text,
		},
	})
}

func (f *fixture) press(chatID int64, data string) {
	f.bot.HandleUpdate(context.Background(), tgbotapi.Update{
		CallbackQuery: &tgbotapi.CallbackQuery{
			ID:      "cb",
			From:    &tgbotapi.User{ID: studentID},
			Message: &tgbotapi.Message{Chat: &tgbotapi.Chat{ID: chatID, Type: "supergroup"}},
			Data:    data,
		},
	})
}

func (f *fixture) seedQuestions(t *testing.T, n int) {
	t.Helper()
	qs := make([]models.Question, 0, n)
	for i := 0; i < n; i++ {
		qs = append(qs, models.Question{
			Text: fmt.Sprintf("Question %d", i), ChoiceA: "a", ChoiceB: "b", ChoiceC: "c", ChoiceD: "d",
			CorrectChoice: models.ChoiceB, Explanation: "because", Subject: "Anatomy",
		})
	}
	_, err := f.repo.AddQuestions(context.Background(), qs)
	require.NoError(t, err)
}

func TestParseCommand(t *testing.T) {
	cases := []struct {
		text string
		name string
		args string
		ok   bool
	}{
		{"/read", "read", "", true},
		{"#READ", "read", "", true},
		{"  /stop  ", "stop", "", true},
		{"/dt@StudyBot Anatomy", "dt", "Anatomy", true},
		{"/DT physiology  ", "dt", "physiology", true},
		{"/addmcq\nSUBJECT: X\nQ. y", "addmcq", "SUBJECT: X\nQ. y", true},
		{"hello", "", "", false},
		{"/", "", "", false},
		{"#", "", "", false},
		{"/@bot", "", "", false},
	}
	for _, tc := range cases {
		cmd, ok := parseCommand(tc.text)
		assert.Equal(t, tc.ok, ok, tc.text)
		assert.Equal(t, tc.name, cmd.name, tc.text)
		assert.Equal(t, tc.args, cmd.args, tc.text)
	}
}

func TestParseAnswerData(t *testing.T) {
	index, choice, ok := parseAnswerData("ans:3:B")
	require.True(t, ok)
	assert.Equal(t, 3, index)
	assert.Equal(t, models.ChoiceB, choice)
	assert.Equal(t, "ans:3:B", answerData(3, models.ChoiceB))

	for _, bad := range []string{"ans:x:B", "ans:1:E", "ans:-1:A", "ans:1", "menu", ""} {
		_, _, ok := parseAnswerData(bad)
		assert.False(t, ok, bad)
	}
}

func TestReadAndStop(t *testing.T) {
	f := newFixture(t)

	f.message(groupID, studentID, "#read")
	assert.Contains(t, f.api.last(t).Text, "Reading started")
	assert.Equal(t, groupID, f.api.last(t).ChatID)

	f.message(groupID, studentID, "/read")
	assert.Contains(t, f.api.last(t).Text, "already running since 10:00")

	f.now = f.now.Add(90*time.Minute + 59*time.Second)
	f.message(groupID, studentID, "/stop")
	text := f.api.last(t).Text
	assert.Contains(t, text, "This session: 1h 30m")
	assert.Contains(t, text, "Studied today: 1.50 hrs")
	assert.Contains(t, text, "Target: 8.00 hrs")
	assert.Contains(t, text, "Remaining: 6.50 hrs")

	f.message(groupID, studentID, "#stop")
	assert.Equal(t, "❗ Reading was not started.", f.api.last(t).Text)
}

func TestAdminReadingIsNotRecorded(t *testing.T) {
	f := newFixture(t)
	f.message(privateID, adminID, "/read")
	assert.Contains(t, f.api.last(t).Text, "not recorded")

	snap := f.repo.Snapshot()
	assert.Empty(t, snap.ReadingSessions)
}

func TestAdminCommandsRequireAdmin(t *testing.T) {
	f := newFixture(t)
	for _, text := range []string{"/addmcq", "/dtc", "/wtc", "/mcqcount", "/delmcq 1", "/target 5", "/import"} {
		f.message(privateID, studentID, text)
		assert.Equal(t, "❌ Only admin can use this command.", f.api.last(t).Text, text)
	}
}

func TestAddMCQFromNextMessage(t *testing.T) {
	f := newFixture(t)

	f.message(privateID, adminID, "/addmcq")
	assert.Contains(t, f.api.last(t).Text, "next message")

	f.message(privateID, adminID, "SUBJECT: Anatomy\nQ. What is X?\nA) a\nB) b\nC) c\nD) d\nAns: B\nExp: because")
	text := f.api.last(t).Text
	assert.Contains(t, text, "MCQs added: 1")
	assert.Contains(t, text, "Skipped: 0")

	snap := f.repo.Snapshot()
	require.Len(t, snap.MCQs, 1)
	assert.Equal(t, "Anatomy", snap.MCQs[0].Subject)
	assert.Equal(t, models.ChoiceB, snap.MCQs[0].CorrectChoice)

	// the pending state is consumed
	f.message(privateID, adminID, "Q. another?\nA) a\nB) b\nC) c\nD) d\nAns: A")
	assert.Len(t, f.repo.Snapshot().MCQs, 1)
}

func TestAddMCQInlineReportsSkipped(t *testing.T) {
	f := newFixture(t)
	f.message(privateID, adminID, "/addmcq\nQ. three choices\nA) a\nB) b\nC) c\nAns: A\n\nQ. fine\nA) a\nB) b\nC) c\nD) d\nAns: D")

	text := f.api.last(t).Text
	assert.Contains(t, text, "MCQs added: 1")
	assert.Contains(t, text, "Skipped: 1")
	assert.Contains(t, text, "missing choice D")
}

func TestDailyTestInsufficientPool(t *testing.T) {
	f := newFixture(t)
	f.seedQuestions(t, 5)

	f.message(groupID, studentID, "/dt")
	assert.Contains(t, f.api.last(t).Text, "insufficient MCQs")
	_, active := f.bot.Engine().Active()
	assert.False(t, active)
}

func TestDailyTestAnswering(t *testing.T) {
	f := newFixture(t)
	f.seedQuestions(t, 20)

	f.message(groupID, studentID, "/dt")
	question := f.api.last(t)
	assert.True(t, strings.HasPrefix(question.Text, "Q1/20 [Anatomy]"))
	keyboard, ok := question.ReplyMarkup.(tgbotapi.InlineKeyboardMarkup)
	require.True(t, ok)
	require.Len(t, keyboard.InlineKeyboard, 1)
	require.Len(t, keyboard.InlineKeyboard[0], 4)
	assert.Equal(t, "ans:0:A", *keyboard.InlineKeyboard[0][0].CallbackData)

	f.message(groupID, studentID, "/wt")
	assert.Contains(t, f.api.last(t).Text, "Daily Test already running (question 1/20)")

	// answers from another chat are ignored
	before := f.api.count()
	f.message(privateID, studentID, "B")
	assert.Equal(t, before, f.api.count())

	f.press(groupID, "ans:0:B")
	assert.Equal(t, "✅ Correct", f.api.last(t).Text)
	assert.Equal(t, "", f.api.lastCallback(t).Text)

	f.press(groupID, "ans:0:A")
	assert.Equal(t, "This question is closed.", f.api.lastCallback(t).Text)

	info, active := f.bot.Engine().Active()
	require.True(t, active)
	assert.Equal(t, 1, info.Correct)
}

func TestCancelTest(t *testing.T) {
	f := newFixture(t)
	f.seedQuestions(t, 20)

	f.message(privateID, adminID, "/dtc")
	assert.Equal(t, "❗ No daily test is running.", f.api.last(t).Text)

	f.message(groupID, studentID, "/dt")
	f.message(privateID, adminID, "/wtc")
	assert.Equal(t, "❗ No weekly test is running.", f.api.last(t).Text)

	f.message(privateID, adminID, "/dtc")
	assert.Equal(t, "🛑 The daily test was cancelled.", f.api.last(t).Text)
	_, active := f.bot.Engine().Active()
	assert.False(t, active)
	assert.Empty(t, f.repo.Snapshot().Tests)
}

func TestTargetCommand(t *testing.T) {
	f := newFixture(t)

	f.message(privateID, adminID, "/target 6")
	assert.Equal(t, "🎯 Daily reading target set to 6 hours", f.api.last(t).Text)
	assert.Equal(t, 6, f.repo.Snapshot().TargetHours)

	f.message(privateID, adminID, "/target 30")
	assert.Contains(t, f.api.last(t).Text, "Usage")
	assert.Equal(t, 6, f.repo.Snapshot().TargetHours)
}

func TestDeleteAndCountQuestions(t *testing.T) {
	f := newFixture(t)
	f.seedQuestions(t, 3)

	f.message(privateID, adminID, "/mcqcount")
	assert.Contains(t, f.api.last(t).Text, "Total MCQs: 3")
	assert.Contains(t, f.api.last(t).Text, "Anatomy: 3")

	f.message(privateID, adminID, "/delmcq 2")
	assert.Equal(t, "🗑 MCQ 2 deleted.", f.api.last(t).Text)
	f.message(privateID, adminID, "/delmcq 2")
	assert.Equal(t, "❗ MCQ 2 not found.", f.api.last(t).Text)
	f.message(privateID, adminID, "/delmcq abc")
	assert.Equal(t, "Usage: /delmcq <id>", f.api.last(t).Text)

	assert.Len(t, f.repo.Snapshot().MCQs, 2)
}

func TestGroupDetectionAndMorningGreeting(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	assert.ErrorIs(t, f.bot.MorningGreeting(ctx), errNoGroup)

	f.message(groupID, studentID, "good morning")
	assert.Equal(t, groupID, f.repo.Snapshot().GroupChatID)

	require.NoError(t, f.bot.MorningGreeting(ctx))
	msg := f.api.last(t)
	assert.Equal(t, groupID, msg.ChatID)
	assert.Contains(t, msg.Text, "Good Morning Asha")
	assert.Contains(t, msg.Text, "Reading Target: 8 hours")
	assert.Contains(t, msg.Text, "NEET MDS: 10 days left")
}

func TestReadingReminderOnlyWhileBehind(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.message(groupID, studentID, "hi")

	before := f.api.count()
	require.NoError(t, f.bot.ReadingReminder(ctx))
	assert.Equal(t, before, f.api.count(), "nothing read yet")

	f.message(groupID, studentID, "/read")
	f.now = f.now.Add(2 * time.Hour)
	f.message(groupID, studentID, "/stop")

	require.NoError(t, f.bot.ReadingReminder(ctx))
	assert.Contains(t, f.api.last(t).Text, "Remaining: 6.00 hrs")
}

func TestNightlySummaryCountsMissedDays(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.message(groupID, studentID, "hi")

	require.NoError(t, f.bot.NightlySummary(ctx))
	assert.Contains(t, f.api.last(t).Text, "Target missed")
	assert.Equal(t, 1, f.repo.Snapshot().MissedTargets)

	require.NoError(t, f.repo.Update(ctx, func(s *models.State) error {
		s.ReadingLog["2026-10-14"] = 8 * 60
		return nil
	}))
	require.NoError(t, f.bot.NightlySummary(ctx))
	assert.Contains(t, f.api.last(t).Text, "Target achieved")
	assert.Equal(t, 1, f.repo.Snapshot().MissedTargets)
}

func TestDailyResetDropsSessions(t *testing.T) {
	f := newFixture(t)
	f.message(groupID, studentID, "/read")

	require.NoError(t, f.bot.DailyReset(context.Background()))
	assert.Empty(t, f.repo.Snapshot().ReadingSessions)
}

func TestMonthlyReport(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	require.NoError(t, f.repo.Update(ctx, func(s *models.State) error {
		s.ReadingLog["2026-10-01"] = 8 * 60
		s.ReadingLog["2026-10-02"] = 4 * 60
		s.ReadingLog["2026-09-30"] = 10 * 60
		s.Tests = append(s.Tests,
			models.TestRecord{ID: 1, Date: "2026-10-01", Type: models.DailyTest, Total: 20, Correct: 16, Accuracy: 80},
			models.TestRecord{ID: 2, Date: "2026-10-02", Type: models.DailyTest, Total: 20, Correct: 13, Accuracy: 65},
			models.TestRecord{ID: 3, Date: "2026-09-29", Type: models.DailyTest, Total: 20, Correct: 20, Accuracy: 100},
		)
		return nil
	}))

	sum := f.bot.monthlySummary()
	assert.Equal(t, MonthlySummary{
		Month:        "2026-10",
		Minutes:      12 * 60,
		DaysStudied:  2,
		DaysOnTarget: 1,
		Tests:        2,
		AvgAccuracy:  73,
	}, sum)

	f.message(groupID, studentID, "/mr")
	assert.Contains(t, f.api.last(t).Text, "Total reading: 12.00 hrs")
}

func TestImportDocument(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/file-1", r.URL.Path)
		_, _ = w.Write([]byte("Subject,Question,A,B,C,D,Answer,Explanation\nPeriodontics,Probe?,a,b,c,d,C,\n,Bad,a,b,c,,A,\n"))
	}))
	defer srv.Close()

	f := newFixture(t)
	f.api.fileURL = srv.URL

	doc := func(name string) {
		f.bot.HandleUpdate(context.Background(), tgbotapi.Update{Message: &tgbotapi.Message{
			From:     &tgbotapi.User{ID: adminID},
			Chat:     &tgbotapi.Chat{ID: privateID, Type: "private"},
			Document: &tgbotapi.Document{FileID: "file-1", FileName: name},
		}})
	}

	// ignored without /import
	doc("bank.csv")
	assert.Equal(t, 0, f.api.count())

	f.message(privateID, adminID, "/import")
	doc("bank.csv")
	text := f.api.last(t).Text
	assert.Contains(t, text, "Added: 1")
	assert.Contains(t, text, "Skipped: 1")
	assert.Contains(t, text, "Row 3: missing choice D")
	assert.Equal(t, "Periodontics", f.repo.Snapshot().MCQs[0].Subject)

	f.message(privateID, adminID, "/import")
	doc("notes.pdf")
	assert.Contains(t, f.api.last(t).Text, "Unsupported file")
}

func TestExamCountdown(t *testing.T) {
	f := newFixture(t)
	assert.Equal(t, "📅 NEET MDS: 10 days left", f.bot.examCountdown())

	f.now = time.Date(2026, 10, 23, 21, 0, 0, 0, time.UTC)
	assert.Equal(t, "📅 NEET MDS is tomorrow!", f.bot.examCountdown())

	f.now = time.Date(2026, 10, 24, 8, 0, 0, 0, time.UTC)
	assert.Contains(t, f.bot.examCountdown(), "is today")

	f.now = time.Date(2026, 10, 25, 8, 0, 0, 0, time.UTC)
	assert.Equal(t, "", f.bot.examCountdown())

	f.now = time.Date(2026, 11, 30, 8, 0, 0, 0, time.UTC)
	assert.Equal(t, "", f.bot.examCountdown())
}

func TestFormatting(t *testing.T) {
	assert.Equal(t, "1.50", formatHours(90))
	assert.Equal(t, "45m", formatDuration(45))
	assert.Equal(t, "2h 05m", formatDuration(125))
	assert.Equal(t, "5 min", formatTimeout(5*time.Minute))
	assert.Equal(t, "90 sec", formatTimeout(90*time.Second))
}

func TestPollStopsWhenChannelCloses(t *testing.T) {
	f := newFixture(t)
	updates := make(chan tgbotapi.Update, 1)
	updates <- tgbotapi.Update{Message: &tgbotapi.Message{
		From: &tgbotapi.User{ID: studentID},
		Chat: &tgbotapi.Chat{ID: privateID, Type: "private"},
		Text: "/start",
	}}
	close(updates)

	f.bot.Poll(context.Background(), updates)
	assert.Contains(t, f.api.last(t).Text, "Study Bot is running")
}
