package config

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newViper(values map[string]any) *viper.Viper {
	v := viper.New()
	setDefaults(v)
	for k, val := range values {
		v.Set(k, val)
	}
	return v
}

func TestFromViperDefaults(t *testing.T) {
	cfg, err := FromViper(newViper(map[string]any{"bot_token": "123:abc", "tz_name": "UTC"}))
	require.NoError(t, err)

	assert.Equal(t, "123:abc", cfg.BotToken)
	assert.Equal(t, 3000, cfg.Port)
	assert.Equal(t, "/webhook/"+tokenDigest("123:abc"), cfg.WebhookPath)
	assert.Equal(t, 8, cfg.TargetHours)
	assert.Equal(t, 5*time.Minute, cfg.QuestionTimeout)
	assert.Equal(t, 2*time.Second, cfg.PacingDelay)
	assert.Equal(t, 30, cfg.CooldownDays)
	assert.True(t, cfg.AdminReadingExempt)
	assert.Equal(t, "07:00", cfg.Schedule.MorningAt)
	assert.Equal(t, []string{"11:00", "15:00", "19:00"}, cfg.Schedule.RemindersAt)
	assert.Equal(t, "22:00", cfg.Schedule.NightAt)
	assert.Empty(t, cfg.Schedule.DailyTestAt)
	assert.False(t, cfg.Schedule.WeeklyTestEnabled)
	assert.Empty(t, cfg.WebhookEndpoint())
	assert.Equal(t, ":3000", cfg.ListenAddr())
}

func TestFromViperLegacyTokenName(t *testing.T) {
	cfg, err := FromViper(newViper(map[string]any{"telegram_bot_token": "t", "tz_name": "UTC"}))
	require.NoError(t, err)
	assert.Equal(t, "t", cfg.BotToken)
}

func TestFromViperMissingToken(t *testing.T) {
	_, err := FromViper(newViper(nil))
	require.Error(t, err)
}

func TestFromViperOverrides(t *testing.T) {
	cfg, err := FromViper(newViper(map[string]any{
		"bot_token":            "t",
		"tz_name":              "UTC",
		"webhook_url":          "https://bot.example.com/",
		"webhook_path":         "hook",
		"admin_id":             "42",
		"group_chat_id":        "-100500",
		"exam_date":            "2027-03-01",
		"auto_daily_test_at":   "21:30",
		"auto_weekly_test_day": "sun",
		"day_reset_hour":       6,
	}))
	require.NoError(t, err)

	assert.Equal(t, "https://bot.example.com/hook", cfg.WebhookEndpoint())
	assert.True(t, cfg.IsAdmin(42))
	assert.False(t, cfg.IsAdmin(7))
	assert.Equal(t, int64(-100500), cfg.GroupChatID)
	assert.Equal(t, 2027, cfg.ExamDate.Year())
	assert.Equal(t, "21:30", cfg.Schedule.DailyTestAt)
	assert.True(t, cfg.Schedule.WeeklyTestEnabled)
	assert.Equal(t, time.Sunday, cfg.Schedule.WeeklyTestDay)
	assert.Equal(t, "10:00", cfg.Schedule.WeeklyTestAt)
	assert.Equal(t, 6, cfg.DayResetHour)
}

func TestFromViperRejectsMalformedValues(t *testing.T) {
	cases := map[string]map[string]any{
		"timezone":  {"tz_name": "Mars/Olympus"},
		"clock":     {"tz_name": "UTC", "morning_at": "7am"},
		"weekday":   {"tz_name": "UTC", "auto_weekly_test_day": "someday"},
		"examDate":  {"tz_name": "UTC", "exam_date": "01/03/2027"},
		"resetHour": {"tz_name": "UTC", "day_reset_hour": 25},
		"target":    {"tz_name": "UTC", "target_hours": 0},
		"adminID":   {"tz_name": "UTC", "admin_id": "12345x"},
		"groupID":   {"tz_name": "UTC", "group_chat_id": "-100abc"},
		"resetWord": {"tz_name": "UTC", "day_reset_hour": "six"},
		"cooldown":  {"tz_name": "UTC", "cooldown_days": "thirty"},
		"port":      {"tz_name": "UTC", "port": "80a"},
		"pacing":    {"tz_name": "UTC", "pacing_delay": "soon"},
		"exempt":    {"tz_name": "UTC", "admin_reading_exempt": "maybe"},
	}
	for name, values := range cases {
		t.Run(name, func(t *testing.T) {
			values["bot_token"] = "t"
			_, err := FromViper(newViper(values))
			require.Error(t, err)
		})
	}
}

func TestMalformedAdminIDNamesTheSetting(t *testing.T) {
	_, err := FromViper(newViper(map[string]any{"bot_token": "t", "tz_name": "UTC", "admin_id": "12345x"}))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid ADMIN_ID")
}

func TestWebhookPathDependsOnToken(t *testing.T) {
	a, err := FromViper(newViper(map[string]any{"bot_token": "111:aaa", "tz_name": "UTC"}))
	require.NoError(t, err)
	b, err := FromViper(newViper(map[string]any{"bot_token": "222:bbb", "tz_name": "UTC"}))
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(a.WebhookPath, "/webhook/"))
	assert.NotEqual(t, a.WebhookPath, b.WebhookPath)
	assert.NotContains(t, a.WebhookPath, "111:aaa")
}

func tokenDigest(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:8])
}

func TestAdminUnsetMeansNobody(t *testing.T) {
	cfg := &Config{}
	assert.False(t, cfg.IsAdmin(0))
}
