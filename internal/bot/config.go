package bot

import (
	"time"

	"github.com/example/studybot/internal/config"
)

// BotConfig represents the configuration for the bot
type BotConfig struct {
	// AdminID may manage questions, targets and cancel tests; 0 disables admin commands
	AdminID int64
	// GroupChatID receives announcements; 0 means detect it from group traffic
	GroupChatID int64

	StudentName     string
	Location        *time.Location
	ExamName        string
	ExamDate        time.Time
	QuestionTimeout time.Duration

	// MaxImportSize limits spreadsheet uploads
	MaxImportSize int64
}

// DefaultConfig returns the default bot configuration
func DefaultConfig() *BotConfig {
	return &BotConfig{
		StudentName:     "Student",
		Location:        time.UTC,
		ExamName:        "Exam",
		QuestionTimeout: 5 * time.Minute,
		MaxImportSize:   10 << 20,
	}
}

// FromConfig extracts the bot settings from the application configuration
func FromConfig(cfg *config.Config) *BotConfig {
	c := DefaultConfig()
	c.AdminID = cfg.AdminID
	c.GroupChatID = cfg.GroupChatID
	c.StudentName = cfg.StudentName
	c.Location = cfg.Location
	c.ExamName = cfg.ExamName
	c.ExamDate = cfg.ExamDate
	c.QuestionTimeout = cfg.QuestionTimeout
	return c
}

func (c *BotConfig) isAdmin(userID int64) bool {
	return c.AdminID != 0 && userID == c.AdminID
}
