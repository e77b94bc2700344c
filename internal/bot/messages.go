package bot

import (
	"context"
	"fmt"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/example/studybot/internal/quiz"
	"github.com/example/studybot/pkg/models"
)

var bandLabels = map[quiz.Band]string{
	quiz.BandExcellent: "🔥 EXCELLENT",
	quiz.BandGood:      "🌟 GOOD",
	quiz.BandPass:      "⚠️ PASS (Needs extra reading)",
	quiz.BandFail:      "❌ FAIL",
}

// answerKeyboard returns the A-D buttons for question index
func answerKeyboard(index int) tgbotapi.InlineKeyboardMarkup {
	row := make([]MenuButton, 0, len(models.Choices))
	for _, c := range models.Choices {
		row = append(row, MenuButton{Text: string(c), CallbackData: answerData(index, c)})
	}
	return createKeyboard([][]MenuButton{row})
}

// TestStarted implements quiz.Presenter
func (b *Bot) TestStarted(_ context.Context, chatID int64, info quiz.Info) {
	text := fmt.Sprintf("📝 %s Started (%d MCQ)", info.Title, info.Total)
	if info.Subject != "" {
		text += "\n📚 Subject: " + info.Subject
	}
	text += fmt.Sprintf("\n⏱ %s per question. Answer with A, B, C or D.", formatTimeout(b.config.QuestionTimeout))
	b.send(chatID, text)
}

// QuestionAsked implements quiz.Presenter
func (b *Bot) QuestionAsked(_ context.Context, chatID int64, info quiz.Info, q models.Question) {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Q%d/%d [%s]\n\n%s\n", info.Index+1, info.Total, q.Subject, q.Text)
	for _, c := range models.Choices {
		fmt.Fprintf(&sb, "\n%s) %s", c, q.Option(c))
	}

	msg := tgbotapi.NewMessage(chatID, sb.String())
	msg.ReplyMarkup = answerKeyboard(info.Index)
	b.sendMessage(msg)
}

// AnswerJudged implements quiz.Presenter
func (b *Bot) AnswerJudged(_ context.Context, chatID int64, _ quiz.Info, j quiz.Judgement) {
	if j.Correct {
		b.send(chatID, "✅ Correct")
		return
	}

	head := "❌ Wrong"
	if j.TimedOut {
		head = "⌛ Time's up"
	}
	text := fmt.Sprintf("%s\n✅ Correct: %s) %s", head, j.Question.CorrectChoice, j.Question.Option(j.Question.CorrectChoice))
	if j.Question.Explanation != "" {
		text += "\n📘 " + j.Question.Explanation
	}
	b.send(chatID, text)
}

// TestFinished implements quiz.Presenter
func (b *Bot) TestFinished(_ context.Context, chatID int64, r quiz.Report) {
	b.send(chatID, formatReport(b.config.StudentName, r))
}

// TestCancelled implements quiz.Presenter
func (b *Bot) TestCancelled(_ context.Context, chatID int64, info quiz.Info) {
	b.send(chatID, fmt.Sprintf("🛑 %s cancelled at question %d/%d. No result recorded.", info.Title, info.Index+1, info.Total))
}

func formatReport(student string, r quiz.Report) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "📝 %s Completed – %s\n\n", r.Title, student)
	fmt.Fprintf(&sb, "Score: %d / %d\n", r.Record.Correct, r.Record.Total)
	fmt.Fprintf(&sb, "✅ Correct: %d  ❌ Wrong: %d\n", r.Record.Correct, r.Wrong)
	fmt.Fprintf(&sb, "🎯 Accuracy: %d%%\n\n", r.Record.Accuracy)
	sb.WriteString(bandLabels[r.Band])

	if len(r.WeakSubjects) > 0 {
		sb.WriteString("\n\n📉 Weak subjects:")
		for _, s := range r.WeakSubjects {
			fmt.Fprintf(&sb, "\n• %s: %d/%d (%d%%)", s.Subject, s.Correct, s.Total, s.Accuracy())
		}
	}
	return sb.String()
}

// formatHours renders minutes as fractional hours, "1.50"
func formatHours(minutes int) string {
	return fmt.Sprintf("%.2f", float64(minutes)/60)
}

// formatDuration renders minutes as "2h 05m"
func formatDuration(minutes int) string {
	if minutes < 60 {
		return fmt.Sprintf("%dm", minutes)
	}
	return fmt.Sprintf("%dh %02dm", minutes/60, minutes%60)
}

func formatTimeout(d time.Duration) string {
	if d >= time.Minute && d%time.Minute == 0 {
		return fmt.Sprintf("%d min", int(d/time.Minute))
	}
	return fmt.Sprintf("%d sec", int(d/time.Second))
}
