package config

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cast"
	"github.com/spf13/viper"
)

// Config is the runtime configuration read from the environment
type Config struct {
	BotToken    string
	WebhookURL  string
	WebhookPath string
	Port        int

	GroupChatID int64
	AdminID     int64
	StudentID   int64
	StudentName string

	Location *time.Location
	DataFile string

	// DatabaseURL selects the SQL store when set
	DatabaseURL string

	TargetHours        int
	DayResetHour       int
	AdminReadingExempt bool

	QuestionTimeout time.Duration
	PacingDelay     time.Duration
	CooldownDays    int

	ExamName string
	ExamDate time.Time

	Schedule Schedule

	LogLevel string
	LogFile  string

	OpenAIKey string
}

// Schedule holds the wall-clock trigger times, all "HH:MM" in Location
type Schedule struct {
	MorningAt   string
	RemindersAt []string
	NightAt     string
	DailyTestAt string

	// WeeklyTestDay and WeeklyTestAt are only meaningful when WeeklyTestEnabled is set
	WeeklyTestEnabled bool
	WeeklyTestDay     time.Weekday
	WeeklyTestAt      string
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("port", 3000)
	v.SetDefault("student_name", "Student")
	v.SetDefault("tz_name", "Asia/Kolkata")
	v.SetDefault("data_file", "data/study.json")
	v.SetDefault("target_hours", 8)
	v.SetDefault("day_reset_hour", 0)
	v.SetDefault("admin_reading_exempt", true)
	v.SetDefault("question_timeout", "5m")
	v.SetDefault("pacing_delay", "2s")
	v.SetDefault("cooldown_days", 30)
	v.SetDefault("exam_name", "Dental licensing exam")
	v.SetDefault("morning_at", "07:00")
	v.SetDefault("reminders_at", "11:00,15:00,19:00")
	v.SetDefault("night_at", "22:00")
	v.SetDefault("auto_weekly_test_at", "10:00")
	v.SetDefault("log_level", "info")
}

// Load reads an optional .env file and then the process environment
func Load() (*Config, error) {
	// .env is optional, the environment always wins
	_ = godotenv.Load()

	v := viper.New()
	v.AutomaticEnv()
	setDefaults(v)
	return FromViper(v)
}

// FromViper builds and validates a Config from an already prepared viper instance
func FromViper(v *viper.Viper) (*Config, error) {
	token := v.GetString("bot_token")
	if token == "" {
		token = v.GetString("telegram_bot_token")
	}
	if token == "" {
		return nil, errors.New("BOT_TOKEN environment variable is not set")
	}

	loc, err := time.LoadLocation(v.GetString("tz_name"))
	if err != nil {
		return nil, fmt.Errorf("invalid TZ_NAME: %w", err)
	}

	r := &reader{v: v}
	cfg := &Config{
		BotToken:           token,
		WebhookURL:         strings.TrimRight(v.GetString("webhook_url"), "/"),
		WebhookPath:        v.GetString("webhook_path"),
		Port:               r.int("port"),
		GroupChatID:        r.int64("group_chat_id"),
		AdminID:            r.int64("admin_id"),
		StudentID:          r.int64("student_id"),
		StudentName:        v.GetString("student_name"),
		Location:           loc,
		DataFile:           v.GetString("data_file"),
		DatabaseURL:        v.GetString("database_url"),
		TargetHours:        r.int("target_hours"),
		DayResetHour:       r.int("day_reset_hour"),
		AdminReadingExempt: r.bool("admin_reading_exempt"),
		QuestionTimeout:    r.duration("question_timeout"),
		PacingDelay:        r.duration("pacing_delay"),
		CooldownDays:       r.int("cooldown_days"),
		ExamName:           v.GetString("exam_name"),
		LogLevel:           v.GetString("log_level"),
		LogFile:            v.GetString("log_file"),
		OpenAIKey:          v.GetString("openai_api_key"),
	}
	if r.err != nil {
		return nil, r.err
	}

	if cfg.WebhookPath == "" {
		cfg.WebhookPath = defaultWebhookPath(token)
	}
	if !strings.HasPrefix(cfg.WebhookPath, "/") {
		cfg.WebhookPath = "/" + cfg.WebhookPath
	}
	if cfg.Port <= 0 || cfg.Port > 65535 {
		return nil, fmt.Errorf("invalid PORT: %d", cfg.Port)
	}
	if cfg.TargetHours <= 0 || cfg.TargetHours > 24 {
		return nil, fmt.Errorf("invalid TARGET_HOURS: %d", cfg.TargetHours)
	}
	if cfg.DayResetHour < 0 || cfg.DayResetHour > 23 {
		return nil, fmt.Errorf("invalid DAY_RESET_HOUR: %d", cfg.DayResetHour)
	}
	if cfg.QuestionTimeout <= 0 {
		return nil, errors.New("QUESTION_TIMEOUT must be positive")
	}
	if cfg.PacingDelay < 0 {
		return nil, errors.New("PACING_DELAY must not be negative")
	}
	if cfg.CooldownDays < 0 {
		return nil, fmt.Errorf("invalid COOLDOWN_DAYS: %d", cfg.CooldownDays)
	}

	if s := v.GetString("exam_date"); s != "" {
		d, err := time.ParseInLocation("2006-01-02", s, loc)
		if err != nil {
			return nil, fmt.Errorf("invalid EXAM_DATE: %w", err)
		}
		cfg.ExamDate = d
	}

	sched, err := loadSchedule(v)
	if err != nil {
		return nil, err
	}
	cfg.Schedule = sched

	return cfg, nil
}

// reader converts typed settings and keeps the first conversion error
type reader struct {
	v   *viper.Viper
	err error
}

func (r *reader) fail(key string, err error) {
	if r.err == nil {
		r.err = fmt.Errorf("invalid %s: %w", strings.ToUpper(key), err)
	}
}

func (r *reader) int64(key string) int64 {
	n, err := cast.ToInt64E(r.v.Get(key))
	if err != nil {
		r.fail(key, err)
	}
	return n
}

func (r *reader) int(key string) int {
	n, err := cast.ToIntE(r.v.Get(key))
	if err != nil {
		r.fail(key, err)
	}
	return n
}

func (r *reader) bool(key string) bool {
	b, err := cast.ToBoolE(r.v.Get(key))
	if err != nil {
		r.fail(key, err)
	}
	return b
}

func (r *reader) duration(key string) time.Duration {
	d, err := cast.ToDurationE(r.v.Get(key))
	if err != nil {
		r.fail(key, err)
	}
	return d
}

// defaultWebhookPath keeps the ingress unguessable without knowing the token
func defaultWebhookPath(token string) string {
	sum := sha256.Sum256([]byte(token))
	return "/webhook/" + hex.EncodeToString(sum[:8])
}

func loadSchedule(v *viper.Viper) (Schedule, error) {
	var s Schedule
	var err error

	if s.MorningAt, err = clockTime("MORNING_AT", v.GetString("morning_at")); err != nil {
		return s, err
	}
	if s.NightAt, err = clockTime("NIGHT_AT", v.GetString("night_at")); err != nil {
		return s, err
	}
	for _, part := range strings.Split(v.GetString("reminders_at"), ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		at, err := clockTime("REMINDERS_AT", part)
		if err != nil {
			return s, err
		}
		s.RemindersAt = append(s.RemindersAt, at)
	}
	if s.DailyTestAt, err = clockTime("AUTO_DAILY_TEST_AT", v.GetString("auto_daily_test_at")); err != nil {
		return s, err
	}
	if day := v.GetString("auto_weekly_test_day"); day != "" {
		wd, err := parseWeekday(day)
		if err != nil {
			return s, err
		}
		s.WeeklyTestDay = wd
		s.WeeklyTestEnabled = true
		if s.WeeklyTestAt, err = clockTime("AUTO_WEEKLY_TEST_AT", v.GetString("auto_weekly_test_at")); err != nil {
			return s, err
		}
		if s.WeeklyTestAt == "" {
			s.WeeklyTestAt = "10:00"
		}
	}
	return s, nil
}

// clockTime validates an "HH:MM" value; empty stays empty
func clockTime(name, value string) (string, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return "", nil
	}
	t, err := time.Parse("15:04", value)
	if err != nil {
		return "", fmt.Errorf("invalid %s %q: expected HH:MM", name, value)
	}
	return t.Format("15:04"), nil
}

func parseWeekday(s string) (time.Weekday, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	for d := time.Sunday; d <= time.Saturday; d++ {
		name := strings.ToLower(d.String())
		if s == name || s == name[:3] {
			return d, nil
		}
	}
	return 0, fmt.Errorf("invalid AUTO_WEEKLY_TEST_DAY %q", s)
}

// IsAdmin reports whether userID is the configured admin
func (c *Config) IsAdmin(userID int64) bool {
	return c.AdminID != 0 && userID == c.AdminID
}

// ListenAddr is the HTTP listen address
func (c *Config) ListenAddr() string {
	return fmt.Sprintf(":%d", c.Port)
}

// WebhookEndpoint is the full URL registered with Telegram
func (c *Config) WebhookEndpoint() string {
	if c.WebhookURL == "" {
		return ""
	}
	return c.WebhookURL + c.WebhookPath
}
