package scheduler

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/studybot/internal/config"
	"github.com/example/studybot/pkg/models"
)

type countingNotifier struct {
	mu     sync.Mutex
	calls  map[string]int
	tests  []models.TestKind
	failOn string
}

func (n *countingNotifier) hit(name string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.calls == nil {
		n.calls = make(map[string]int)
	}
	n.calls[name]++
	if name == n.failOn {
		return errors.New("boom")
	}
	return nil
}

func (n *countingNotifier) MorningGreeting(context.Context) error { return n.hit("morning") }
func (n *countingNotifier) ReadingReminder(context.Context) error { return n.hit("reminder") }
func (n *countingNotifier) NightlySummary(context.Context) error  { return n.hit("night") }
func (n *countingNotifier) DailyReset(context.Context) error      { return n.hit("reset") }

func (n *countingNotifier) StartAutoTest(_ context.Context, kind models.TestKind) error {
	n.mu.Lock()
	n.tests = append(n.tests, kind)
	n.mu.Unlock()
	return n.hit("test")
}

var testSchedule = config.Schedule{
	MorningAt:   "07:00",
	RemindersAt: []string{"11:00", "15:00", "19:00"},
	NightAt:     "22:00",
}

func findJob(t *testing.T, s *Scheduler, name string) job {
	t.Helper()
	for _, j := range s.jobs {
		if j.name == name {
			return j
		}
	}
	t.Fatalf("job %q not found", name)
	return job{}
}

func TestJobsFromSchedule(t *testing.T) {
	s := New(&countingNotifier{}, testSchedule, time.UTC, 6)

	assert.Equal(t, []string{
		"daily reset",
		"morning greeting",
		"reading reminder 11:00",
		"reading reminder 15:00",
		"reading reminder 19:00",
		"nightly summary",
	}, s.Jobs())
	assert.Equal(t, "06:00", findJob(t, s, "daily reset").at)
}

func TestAutoTestJobs(t *testing.T) {
	sched := testSchedule
	sched.DailyTestAt = "09:00"
	sched.WeeklyTestEnabled = true
	sched.WeeklyTestDay = time.Sunday
	sched.WeeklyTestAt = "10:00"
	n := &countingNotifier{}
	s := New(n, sched, time.UTC, 0)

	weekly := findJob(t, s, "auto weekly test")
	assert.True(t, weekly.weekly)
	assert.Equal(t, time.Sunday, weekly.day)

	s.fire(findJob(t, s, "auto daily test"))
	s.fire(weekly)
	assert.Equal(t, []models.TestKind{models.DailyTest, models.WeeklyTest}, n.tests)
}

func TestFireDeduplicatesPerDay(t *testing.T) {
	now := time.Date(2026, 10, 14, 7, 0, 0, 0, time.UTC)
	n := &countingNotifier{}
	s := New(n, testSchedule, time.UTC, 0, WithClock(func() time.Time { return now }))
	morning := findJob(t, s, "morning greeting")

	s.fire(morning)
	now = now.Add(59 * time.Second)
	s.fire(morning)
	assert.Equal(t, 1, n.calls["morning"])

	now = now.Add(24 * time.Hour)
	s.fire(morning)
	assert.Equal(t, 2, n.calls["morning"])
}

func TestRemindersAreIndependent(t *testing.T) {
	now := time.Date(2026, 10, 14, 11, 0, 0, 0, time.UTC)
	n := &countingNotifier{}
	s := New(n, testSchedule, time.UTC, 0, WithClock(func() time.Time { return now }))

	s.fire(findJob(t, s, "reading reminder 11:00"))
	s.fire(findJob(t, s, "reading reminder 15:00"))
	s.fire(findJob(t, s, "reading reminder 11:00"))
	assert.Equal(t, 2, n.calls["reminder"])
}

func TestFailedJobStillCountsAsFired(t *testing.T) {
	n := &countingNotifier{failOn: "night"}
	s := New(n, testSchedule, time.UTC, 0)
	night := findJob(t, s, "nightly summary")

	s.fire(night)
	s.fire(night)
	assert.Equal(t, 1, n.calls["night"])
}

func TestStartRegistersJobs(t *testing.T) {
	s := New(&countingNotifier{}, testSchedule, time.UTC, 0)
	require.NoError(t, s.Start(context.Background()))
	defer s.Stop()

	assert.Equal(t, 6, s.scheduler.Len())
}

func TestStartRejectsBadTime(t *testing.T) {
	sched := testSchedule
	sched.NightAt = "25:99"
	s := New(&countingNotifier{}, sched, time.UTC, 0)
	err := s.Start(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "nightly summary")
}
