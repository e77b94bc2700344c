package bot

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"github.com/example/studybot/internal/excel"
	"github.com/example/studybot/internal/mcq"
	"github.com/example/studybot/internal/quiz"
	"github.com/example/studybot/internal/reading"
	"github.com/example/studybot/pkg/models"
)

// callbackAnswerPrefix starts the data of answer buttons: "ans:<index>:<letter>"
const callbackAnswerPrefix = "ans:"

const maxListedErrors = 5

// command is a parsed "/name args" or "#name args" message
type command struct {
	name string
	args string
}

// parseCommand recognises commands prefixed with / or #, case-insensitively,
// with an optional @botname suffix
func parseCommand(text string) (command, bool) {
	text = strings.TrimSpace(text)
	if len(text) < 2 || (text[0] != '/' && text[0] != '#') {
		return command{}, false
	}
	head, rest := text[1:], ""
	if i := strings.IndexAny(head, " \t\n"); i >= 0 {
		head, rest = head[:i], head[i+1:]
	}
	if i := strings.IndexByte(head, '@'); i >= 0 {
		head = head[:i]
	}
	if head == "" {
		return command{}, false
	}
	return command{name: strings.ToLower(head), args: strings.TrimSpace(rest)}, true
}

func (b *Bot) handleMessage(ctx context.Context, message *tgbotapi.Message) {
	if message.Chat == nil {
		return
	}
	b.detectGroup(ctx, message.Chat)

	var userID int64
	if message.From != nil {
		userID = message.From.ID
	}
	key := pendingKey{chatID: message.Chat.ID, userID: userID}

	if message.Document != nil {
		cmd, _ := parseCommand(message.Caption)
		if b.takePending(b.awaitingFileUpload, key) || (cmd.name == "import" && b.config.isAdmin(userID)) {
			b.importDocument(ctx, message)
		}
		return
	}

	if cmd, ok := parseCommand(message.Text); ok {
		b.handleCommand(ctx, message, cmd)
		return
	}

	if b.takePending(b.awaitingMCQ, key) {
		b.addQuestions(ctx, message.Chat.ID, message.Text)
		return
	}

	if choice, ok := models.ParseChoice(strings.TrimSpace(message.Text)); ok {
		b.engine.Answer(ctx, message.Chat.ID, choice, -1)
	}
}

// handleCommand handles bot commands
func (b *Bot) handleCommand(ctx context.Context, message *tgbotapi.Message, cmd command) {
	chatID := message.Chat.ID
	var userID int64
	if message.From != nil {
		userID = message.From.ID
	}

	switch cmd.name {
	case "start":
		b.handleStart(chatID)
	case "help":
		b.handleHelp(chatID)
	case "read":
		b.handleRead(ctx, chatID, userID)
	case "stop":
		b.handleStop(ctx, chatID, userID)
	case "dt":
		b.startTest(ctx, chatID, quiz.Daily, cmd.args)
	case "wt", "dts":
		b.startTest(ctx, chatID, quiz.Weekly, cmd.args)
	case "report":
		b.send(chatID, b.dailyReport())
	case "mr":
		b.send(chatID, b.monthlyReport())
	case "addmcq", "import", "dtc", "wtc", "mcqcount", "delmcq", "target":
		if !b.config.isAdmin(userID) {
			b.send(chatID, "❌ Only admin can use this command.")
			return
		}
		b.handleAdminCommand(ctx, message, cmd)
	default:
		if message.Chat.IsPrivate() {
			b.send(chatID, "Unknown command. Use /help to see what I can do.")
		}
	}
}

func (b *Bot) handleAdminCommand(ctx context.Context, message *tgbotapi.Message, cmd command) {
	chatID := message.Chat.ID
	key := pendingKey{chatID: chatID, userID: message.From.ID}

	switch cmd.name {
	case "addmcq":
		if cmd.args != "" {
			b.addQuestions(ctx, chatID, cmd.args)
			return
		}
		b.setPending(b.awaitingMCQ, key, true)
		b.send(chatID, "✍️ Send the MCQs in your next message:\n\n"+formatExample)
	case "import":
		b.setPending(b.awaitingFileUpload, key, true)
		b.send(chatID, "📎 Send an .xlsx or .csv file with the columns:\nSubject | Question | A | B | C | D | Answer | Explanation\nThe first row is treated as a header.")
	case "dtc":
		b.cancelTest(ctx, chatID, models.DailyTest)
	case "wtc":
		b.cancelTest(ctx, chatID, models.WeeklyTest)
	case "mcqcount":
		b.send(chatID, b.questionCount())
	case "delmcq":
		b.deleteQuestion(ctx, chatID, cmd.args)
	case "target":
		b.setTarget(ctx, chatID, cmd.args)
	}
}

const formatExample = `SUBJECT: Anatomy
Q. Which nerve supplies the lower teeth?
A) Facial
B) Inferior alveolar
C) Lingual
D) Buccal
Ans: B
Exp: Branch of the mandibular nerve`

func (b *Bot) handleStart(chatID int64) {
	b.send(chatID, fmt.Sprintf("Study Bot is running ✅\n\nHello %s! Use /read and /stop to track reading, /dt to take a daily test and /help for everything else.", b.config.StudentName))
}

func (b *Bot) handleHelp(chatID int64) {
	text := "📖 Commands\n\n" +
		"📚 Reading:\n" +
		"/read or #read - start reading\n" +
		"/stop or #stop - stop reading and log the time\n" +
		"/report - today's progress and recent tests\n" +
		"/mr - this month's report\n\n" +
		"📝 Tests:\n" +
		"/dt [subject] - 20 question daily test\n" +
		"/wt or /dts - 50 question weekly test\n" +
		"Answer with A, B, C or D or tap a button.\n\n" +
		"🔧 Admin:\n" +
		"/addmcq - add questions\n" +
		"/import - upload an .xlsx or .csv question bank\n" +
		"/mcqcount - question bank statistics\n" +
		"/delmcq <id> - delete a question\n" +
		"/target <hours> - set the daily reading target\n" +
		"/dtc, /wtc - cancel the running test"
	b.send(chatID, text)
}

func (b *Bot) handleRead(ctx context.Context, chatID, userID int64) {
	session, err := b.tracker.Start(ctx, userID)
	switch {
	case errors.Is(err, reading.ErrExempt):
		b.send(chatID, "📖 Noted. Admin reading is not recorded.")
	case errors.Is(err, reading.ErrAlreadyRunning):
		b.send(chatID, fmt.Sprintf("❗ Reading already running since %s.", session.StartedAt.In(b.config.Location).Format("15:04")))
	case err != nil:
		b.log.Error("Failed to start reading", zap.Int64("user_id", userID), zap.Error(err))
		b.send(chatID, "❌ Could not start reading, please try again.")
	default:
		b.send(chatID, "📖 Reading started. Stay focused 💪")
	}
}

func (b *Bot) handleStop(ctx context.Context, chatID, userID int64) {
	res, err := b.tracker.Stop(ctx, userID)
	switch {
	case errors.Is(err, reading.ErrExempt):
		b.send(chatID, "⏱ Noted. Admin reading is not recorded.")
	case errors.Is(err, reading.ErrNotStarted):
		b.send(chatID, "❗ Reading was not started.")
	case err != nil:
		b.log.Error("Failed to stop reading", zap.Int64("user_id", userID), zap.Error(err))
		b.send(chatID, "❌ Could not stop reading, please try again.")
	default:
		b.send(chatID, fmt.Sprintf("⏱ Reading stopped\n🕐 This session: %s\n📚 Studied today: %s hrs\n🎯 Target: %s hrs\n⏳ Remaining: %s hrs",
			formatDuration(res.Elapsed), formatHours(res.TodayMinutes), formatHours(res.TargetMinutes), formatHours(res.Remaining)))
	}
}

func (b *Bot) startTest(ctx context.Context, chatID int64, preset quiz.Preset, subject string) {
	err := b.engine.Start(ctx, chatID, preset, subject)
	var pool *quiz.InsufficientPoolError
	switch {
	case err == nil:
	case errors.Is(err, quiz.ErrSessionActive):
		info, _ := b.engine.Active()
		b.send(chatID, fmt.Sprintf("❗ %s already running (question %d/%d). Finish it first.", info.Title, info.Index+1, info.Total))
	case errors.As(err, &pool):
		b.send(chatID, fmt.Sprintf("❗ Cannot start %s: %s.", preset.Title, pool.Error()))
	default:
		b.log.Error("Failed to start test", zap.Error(err))
		b.send(chatID, "❌ Could not start the test.")
	}
}

func (b *Bot) cancelTest(ctx context.Context, chatID int64, kind models.TestKind) {
	testChat, _ := b.engine.ChatID()
	if err := b.engine.Cancel(ctx, kind); errors.Is(err, quiz.ErrNoSession) {
		b.send(chatID, fmt.Sprintf("❗ No %s test is running.", kind))
		return
	}
	if testChat != chatID {
		b.send(chatID, fmt.Sprintf("🛑 The %s test was cancelled.", kind))
	}
}

// addQuestions ingests an admin submission and reports per-block outcomes
func (b *Bot) addQuestions(ctx context.Context, chatID int64, text string) {
	result := mcq.Parse(text)
	added, err := b.repo.AddQuestions(ctx, result.Questions)
	if err != nil {
		b.log.Error("Failed to save questions", zap.Error(err))
		b.send(chatID, "❌ Could not save the questions, please try again.")
		return
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "✅ MCQs added: %d\n⚠️ Skipped: %d", len(added), result.Skipped)
	if len(added) > 0 {
		fmt.Fprintf(&sb, "\n🆔 %s", idRange(added))
	}
	for i, r := range result.Rejected {
		if i == maxListedErrors {
			fmt.Fprintf(&sb, "\n… and %d more", len(result.Rejected)-maxListedErrors)
			break
		}
		fmt.Fprintf(&sb, "\n• line %d: %s", r.Line, r.Reason)
	}
	if len(added) == 0 && result.Skipped == 0 {
		sb.WriteString("\n\nNo questions found. Expected format:\n\n" + formatExample)
	}
	b.log.Info("Questions added", zap.Int("added", len(added)), zap.Int("skipped", result.Skipped))
	b.send(chatID, sb.String())
}

func idRange(qs []models.Question) string {
	if len(qs) == 1 {
		return fmt.Sprintf("ID %d", qs[0].ID)
	}
	return fmt.Sprintf("IDs %d-%d", qs[0].ID, qs[len(qs)-1].ID)
}

func (b *Bot) importDocument(ctx context.Context, message *tgbotapi.Message) {
	chatID := message.Chat.ID
	doc := message.Document
	if doc.FileSize > 0 && int64(doc.FileSize) > b.config.MaxImportSize {
		b.send(chatID, "❌ File is too large.")
		return
	}

	result, err := b.downloadAndImport(ctx, doc)
	if errors.Is(err, excel.ErrUnsupportedFormat) {
		b.send(chatID, "❌ Unsupported file. Send an .xlsx or .csv file.")
		return
	}
	if err != nil {
		b.log.Error("Import failed", zap.String("file", doc.FileName), zap.Error(err))
		b.send(chatID, "❌ Could not read the file: "+err.Error())
		return
	}

	added, err := b.repo.AddQuestions(ctx, result.Questions)
	if err != nil {
		b.log.Error("Failed to save imported questions", zap.Error(err))
		b.send(chatID, "❌ Could not save the questions, please try again.")
		return
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "📥 Import finished: %s\n✅ Added: %d\n⚠️ Skipped: %d", doc.FileName, len(added), result.Skipped)
	for i, e := range result.Errors {
		if i == maxListedErrors {
			fmt.Fprintf(&sb, "\n… and %d more", len(result.Errors)-maxListedErrors)
			break
		}
		sb.WriteString("\n• " + e)
	}
	b.log.Info("Questions imported", zap.String("file", doc.FileName), zap.Int("added", len(added)), zap.Int("skipped", result.Skipped))
	b.send(chatID, sb.String())
}

func (b *Bot) downloadAndImport(ctx context.Context, doc *tgbotapi.Document) (*excel.ImportResult, error) {
	if !excel.Supported(doc.FileName) {
		return nil, excel.ErrUnsupportedFormat
	}

	url, err := b.api.GetFileDirectURL(doc.FileID)
	if err != nil {
		return nil, fmt.Errorf("failed to get file url: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	resp, err := b.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to download file: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("failed to download file: status %d", resp.StatusCode)
	}
	return excel.ImportQuestions(io.LimitReader(resp.Body, b.config.MaxImportSize), doc.FileName, excel.DefaultImportConfig())
}

func (b *Bot) deleteQuestion(ctx context.Context, chatID int64, args string) {
	id, err := strconv.ParseInt(strings.TrimPrefix(args, "#"), 10, 64)
	if err != nil || id <= 0 {
		b.send(chatID, "Usage: /delmcq <id>")
		return
	}
	if info, active := b.engine.Active(); active {
		b.send(chatID, fmt.Sprintf("❗ %s is running. Delete questions after it ends.", info.Title))
		return
	}
	found, err := b.repo.DeleteQuestion(ctx, id)
	switch {
	case err != nil:
		b.log.Error("Failed to delete question", zap.Int64("id", id), zap.Error(err))
		b.send(chatID, "❌ Could not delete the question.")
	case !found:
		b.send(chatID, fmt.Sprintf("❗ MCQ %d not found.", id))
	default:
		b.send(chatID, fmt.Sprintf("🗑 MCQ %d deleted.", id))
	}
}

func (b *Bot) setTarget(ctx context.Context, chatID int64, args string) {
	hours, err := strconv.Atoi(args)
	if err != nil || hours < 1 || hours > 24 {
		b.send(chatID, "Usage: /target <hours> (1-24)")
		return
	}
	if err := b.repo.SetTargetHours(ctx, hours); err != nil {
		b.log.Error("Failed to set target", zap.Error(err))
		b.send(chatID, "❌ Could not change the target.")
		return
	}
	text := fmt.Sprintf("🎯 Daily reading target set to %d hours", hours)
	b.send(chatID, text)
	if group := b.groupChatID(); group != 0 && group != chatID {
		b.send(group, text)
	}
}

// handleCallback handles answer button presses
func (b *Bot) handleCallback(ctx context.Context, callback *tgbotapi.CallbackQuery) {
	ack := ""
	defer func() {
		if _, err := b.api.Request(tgbotapi.NewCallback(callback.ID, ack)); err != nil {
			b.log.Warn("Failed to answer callback", zap.Error(err))
		}
	}()

	if callback.Message == nil || callback.Message.Chat == nil {
		return
	}
	index, choice, ok := parseAnswerData(callback.Data)
	if !ok {
		return
	}
	if !b.engine.Answer(ctx, callback.Message.Chat.ID, choice, index) {
		ack = "This question is closed."
	}
}

func parseAnswerData(data string) (int, models.Choice, bool) {
	if !strings.HasPrefix(data, callbackAnswerPrefix) {
		return 0, "", false
	}
	parts := strings.Split(strings.TrimPrefix(data, callbackAnswerPrefix), ":")
	if len(parts) != 2 {
		return 0, "", false
	}
	index, err := strconv.Atoi(parts[0])
	if err != nil || index < 0 {
		return 0, "", false
	}
	choice, ok := models.ParseChoice(parts[1])
	if !ok {
		return 0, "", false
	}
	return index, choice, true
}

func answerData(index int, c models.Choice) string {
	return fmt.Sprintf("%s%d:%s", callbackAnswerPrefix, index, c)
}
