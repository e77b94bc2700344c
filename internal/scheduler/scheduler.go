package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/go-co-op/gocron"
	"go.uber.org/zap"

	"github.com/example/studybot/internal/config"
	"github.com/example/studybot/pkg/models"
)

// Notifier performs the scheduled announcements
type Notifier interface {
	MorningGreeting(ctx context.Context) error
	ReadingReminder(ctx context.Context) error
	NightlySummary(ctx context.Context) error
	DailyReset(ctx context.Context) error
	StartAutoTest(ctx context.Context, kind models.TestKind) error
}

type job struct {
	name string
	at   string

	// weekly jobs only run on day
	weekly bool
	day    time.Weekday
	run    func(ctx context.Context) error
}

// Scheduler manages scheduled tasks for the application
type Scheduler struct {
	scheduler *gocron.Scheduler
	notifier  Notifier
	loc       *time.Location
	jobs      []job
	log       *zap.Logger
	now       func() time.Time

	mu        sync.Mutex
	lastFired map[string]string
	ctx       context.Context
}

// Option configures a Scheduler
type Option func(*Scheduler)

// WithClock replaces time.Now for de-duplication
func WithClock(now func() time.Time) Option {
	return func(s *Scheduler) { s.now = now }
}

// WithLogger sets the logger
func WithLogger(l *zap.Logger) Option {
	return func(s *Scheduler) { s.log = l }
}

// New creates a scheduler for the configured trigger times. resetHour is the
// hour at which the study day rolls over.
func New(notifier Notifier, sched config.Schedule, loc *time.Location, resetHour int, opts ...Option) *Scheduler {
	s := &Scheduler{
		scheduler: gocron.NewScheduler(loc),
		notifier:  notifier,
		loc:       loc,
		log:       zap.NewNop(),
		now:       time.Now,
		lastFired: make(map[string]string),
		ctx:       context.Background(),
	}
	for _, opt := range opts {
		opt(s)
	}

	s.add(job{name: "daily reset", at: fmt.Sprintf("%02d:00", resetHour), run: notifier.DailyReset})
	s.add(job{name: "morning greeting", at: sched.MorningAt, run: notifier.MorningGreeting})
	for _, at := range sched.RemindersAt {
		s.add(job{name: "reading reminder " + at, at: at, run: notifier.ReadingReminder})
	}
	s.add(job{name: "nightly summary", at: sched.NightAt, run: notifier.NightlySummary})
	s.add(job{name: "auto daily test", at: sched.DailyTestAt, run: func(ctx context.Context) error {
		return notifier.StartAutoTest(ctx, models.DailyTest)
	}})
	if sched.WeeklyTestEnabled {
		s.add(job{name: "auto weekly test", at: sched.WeeklyTestAt, weekly: true, day: sched.WeeklyTestDay,
			run: func(ctx context.Context) error {
				return notifier.StartAutoTest(ctx, models.WeeklyTest)
			}})
	}
	return s
}

// add skips jobs without a trigger time
func (s *Scheduler) add(j job) {
	if j.at == "" {
		return
	}
	s.jobs = append(s.jobs, j)
}

// Start registers every job and begins running them in the background
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	s.ctx = ctx
	s.mu.Unlock()

	for _, j := range s.jobs {
		j := j
		var err error
		if j.weekly {
			_, err = s.scheduler.Every(1).Week().Weekday(j.day).At(j.at).Tag(j.name).Do(s.fire, j)
		} else {
			_, err = s.scheduler.Every(1).Day().At(j.at).Tag(j.name).Do(s.fire, j)
		}
		if err != nil {
			return fmt.Errorf("failed to schedule %s at %s: %w", j.name, j.at, err)
		}
		s.log.Info("Scheduled job", zap.String("job", j.name), zap.String("at", j.at))
	}

	s.scheduler.StartAsync()
	return nil
}

// Stop terminates all scheduled tasks
func (s *Scheduler) Stop() {
	s.scheduler.Stop()
}

// Jobs returns the names of the configured jobs
func (s *Scheduler) Jobs() []string {
	names := make([]string, 0, len(s.jobs))
	for _, j := range s.jobs {
		names = append(names, j.name)
	}
	return names
}

// fire runs j at most once per local calendar day
func (s *Scheduler) fire(j job) {
	today := s.now().In(s.loc).Format(models.DayLayout)

	s.mu.Lock()
	if s.lastFired[j.name] == today {
		s.mu.Unlock()
		s.log.Debug("Skipping duplicate trigger", zap.String("job", j.name), zap.String("day", today))
		return
	}
	s.lastFired[j.name] = today
	ctx := s.ctx
	s.mu.Unlock()

	if err := j.run(ctx); err != nil {
		s.log.Error("Scheduled job failed", zap.String("job", j.name), zap.Error(err))
	}
}
