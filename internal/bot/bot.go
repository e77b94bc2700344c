package bot

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"github.com/example/studybot/internal/ai"
	"github.com/example/studybot/internal/database"
	"github.com/example/studybot/internal/quiz"
	"github.com/example/studybot/internal/reading"
	"github.com/example/studybot/internal/repetition"
	"github.com/example/studybot/pkg/models"
)

// Sender is the part of the Telegram API the bot uses; *tgbotapi.BotAPI satisfies it
type Sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
	GetFileDirectURL(fileID string) (string, error)
}

// MenuButton represents a button in the menu
type MenuButton struct {
	Text         string
	CallbackData string
}

// createKeyboard creates a keyboard from menu buttons
func createKeyboard(buttons [][]MenuButton) tgbotapi.InlineKeyboardMarkup {
	var keyboard [][]tgbotapi.InlineKeyboardButton
	for _, row := range buttons {
		var keyboardRow []tgbotapi.InlineKeyboardButton
		for _, button := range row {
			keyboardRow = append(keyboardRow, tgbotapi.NewInlineKeyboardButtonData(button.Text, button.CallbackData))
		}
		keyboard = append(keyboard, keyboardRow)
	}
	return tgbotapi.NewInlineKeyboardMarkup(keyboard...)
}

// pendingKey identifies a conversation waiting for follow-up input
type pendingKey struct {
	chatID int64
	userID int64
}

// Bot represents the Telegram bot application
type Bot struct {
	api       Sender
	config    *BotConfig
	repo      *database.Repository
	tracker   *reading.Tracker
	engine    *quiz.Engine
	policy    *repetition.Policy
	motivator *ai.Motivator
	client    *http.Client
	log       *zap.Logger
	now       func() time.Time

	mu                 sync.Mutex
	awaitingMCQ        map[pendingKey]bool
	awaitingFileUpload map[pendingKey]bool
}

// Option configures a Bot
type Option func(*botOptions)

type botOptions struct {
	engine    []quiz.Option
	motivator *ai.Motivator
	client    *http.Client
	log       *zap.Logger
	now       func() time.Time
}

// WithEngineOptions passes options to the quiz engine the bot creates
func WithEngineOptions(opts ...quiz.Option) Option {
	return func(o *botOptions) { o.engine = append(o.engine, opts...) }
}

// WithMotivator sets the source of the morning motivational line
func WithMotivator(m *ai.Motivator) Option {
	return func(o *botOptions) { o.motivator = m }
}

// WithHTTPClient sets the client used to download uploaded files
func WithHTTPClient(c *http.Client) Option {
	return func(o *botOptions) { o.client = c }
}

// WithLogger sets the logger
func WithLogger(l *zap.Logger) Option {
	return func(o *botOptions) { o.log = l }
}

// WithClock replaces time.Now in reports and greetings
func WithClock(now func() time.Time) Option {
	return func(o *botOptions) { o.now = now }
}

// New creates a bot and the quiz engine it presents
func New(api Sender, cfg *BotConfig, repo *database.Repository, tracker *reading.Tracker, policy *repetition.Policy, opts ...Option) *Bot {
	o := botOptions{
		motivator: ai.NewMotivator(nil),
		client:    &http.Client{Timeout: 30 * time.Second},
		log:       zap.NewNop(),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(&o)
	}

	b := &Bot{
		api:                api,
		config:             cfg,
		repo:               repo,
		tracker:            tracker,
		policy:             policy,
		motivator:          o.motivator,
		client:             o.client,
		log:                o.log,
		now:                o.now,
		awaitingMCQ:        make(map[pendingKey]bool),
		awaitingFileUpload: make(map[pendingKey]bool),
	}

	engineOpts := []quiz.Option{
		quiz.WithLogger(o.log.Named("quiz")),
		quiz.WithTimeout(cfg.QuestionTimeout),
		quiz.WithDay(tracker.Day),
	}
	b.engine = quiz.NewEngine(repo, b, policy, append(engineOpts, o.engine...)...)
	return b
}

// Engine returns the quiz engine driven by this bot
func (b *Bot) Engine() *quiz.Engine {
	return b.engine
}

// RegisterWebhook points Telegram at url
func (b *Bot) RegisterWebhook(url string) error {
	wh, err := tgbotapi.NewWebhook(url)
	if err != nil {
		return fmt.Errorf("invalid webhook url: %w", err)
	}
	if _, err := b.api.Request(wh); err != nil {
		return fmt.Errorf("failed to set webhook: %w", err)
	}
	b.log.Info("Webhook registered", zap.String("url", url))
	return nil
}

// ClearWebhook removes a previously registered webhook so that long polling works
func (b *Bot) ClearWebhook() error {
	if _, err := b.api.Request(tgbotapi.DeleteWebhookConfig{}); err != nil {
		return fmt.Errorf("failed to delete webhook: %w", err)
	}
	return nil
}

// Poll handles updates one at a time until ctx is done or updates is closed
func (b *Bot) Poll(ctx context.Context, updates tgbotapi.UpdatesChannel) {
	for {
		select {
		case <-ctx.Done():
			return
		case update, ok := <-updates:
			if !ok {
				return
			}
			b.HandleUpdate(ctx, update)
		}
	}
}

// HandleUpdate dispatches one Telegram update
func (b *Bot) HandleUpdate(ctx context.Context, update tgbotapi.Update) {
	defer func() {
		if r := recover(); r != nil {
			b.log.Error("Panic while handling update", zap.Int("update_id", update.UpdateID), zap.Any("panic", r))
		}
	}()

	switch {
	case update.Message != nil:
		b.handleMessage(ctx, update.Message)
	case update.CallbackQuery != nil:
		b.handleCallback(ctx, update.CallbackQuery)
	}
}

// groupChatID is the configured announcement chat or the detected one
func (b *Bot) groupChatID() int64 {
	if b.config.GroupChatID != 0 {
		return b.config.GroupChatID
	}
	var id int64
	b.repo.View(func(s *models.State) { id = s.GroupChatID })
	return id
}

// detectGroup remembers the first group the bot hears from when none is configured
func (b *Bot) detectGroup(ctx context.Context, chat *tgbotapi.Chat) {
	if b.config.GroupChatID != 0 || chat == nil || !(chat.IsGroup() || chat.IsSuperGroup()) {
		return
	}
	if err := b.repo.SetGroupChatID(ctx, chat.ID); err != nil {
		b.log.Error("Failed to save group chat", zap.Int64("chat_id", chat.ID), zap.Error(err))
	}
}

func (b *Bot) sendMessage(msg tgbotapi.MessageConfig) {
	if msg.ChatID == 0 {
		b.log.Warn("No chat to send to", zap.String("text", msg.Text))
		return
	}
	if _, err := b.api.Send(msg); err != nil {
		b.log.Warn("Failed to send message", zap.Int64("chat_id", msg.ChatID), zap.Error(err))
	}
}

func (b *Bot) send(chatID int64, text string) {
	b.sendMessage(tgbotapi.NewMessage(chatID, text))
}

func (b *Bot) setPending(m map[pendingKey]bool, key pendingKey, on bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if on {
		m[key] = true
	} else {
		delete(m, key)
	}
}

// takePending clears key and reports whether it was set
func (b *Bot) takePending(m map[pendingKey]bool, key pendingKey) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !m[key] {
		return false
	}
	delete(m, key)
	return true
}
