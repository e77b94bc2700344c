package reading

import (
	"context"
	"errors"
	"time"

	"github.com/example/studybot/pkg/models"
)

var (
	// ErrAlreadyRunning is returned by Start when the user already has a session today
	ErrAlreadyRunning = errors.New("reading already running")
	// ErrNotStarted is returned by Stop when there is nothing to stop
	ErrNotStarted = errors.New("reading not started")
	// ErrExempt is returned for users whose reading is not recorded
	ErrExempt = errors.New("reading not recorded for this user")
)

// Repository is the part of the state store the tracker needs
type Repository interface {
	Update(ctx context.Context, fn func(s *models.State) error) error
	View(fn func(s *models.State))
}

// StopResult summarises a finished reading cycle
type StopResult struct {
	Day           string
	Elapsed       int
	TodayMinutes  int
	TargetMinutes int
	Remaining     int
}

// Status is the reading progress of one study day
type Status struct {
	Day           string
	Minutes       int
	TargetMinutes int
	Remaining     int
	Active        bool
}

// Tracker accumulates reading minutes per study day
type Tracker struct {
	repo      Repository
	loc       *time.Location
	resetHour int
	exempt    func(userID int64) bool
	now       func() time.Time
}

// Option configures a Tracker
type Option func(*Tracker)

// WithExemption marks users whose commands are acknowledged but not recorded
func WithExemption(fn func(userID int64) bool) Option {
	return func(t *Tracker) { t.exempt = fn }
}

// WithClock replaces time.Now
func WithClock(now func() time.Time) Option {
	return func(t *Tracker) { t.now = now }
}

// NewTracker creates a tracker whose days start at resetHour in loc
func NewTracker(repo Repository, loc *time.Location, resetHour int, opts ...Option) *Tracker {
	t := &Tracker{
		repo:      repo,
		loc:       loc,
		resetHour: resetHour,
		exempt:    func(int64) bool { return false },
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Day returns the study day containing at
func (t *Tracker) Day(at time.Time) string {
	return at.In(t.loc).Add(-time.Duration(t.resetHour) * time.Hour).Format(models.DayLayout)
}

// Today is the current study day
func (t *Tracker) Today() string {
	return t.Day(t.now())
}

// Start records the start of a reading session. A session left over from an
// earlier study day is discarded.
func (t *Tracker) Start(ctx context.Context, userID int64) (models.ReadingSession, error) {
	if t.exempt(userID) {
		return models.ReadingSession{}, ErrExempt
	}

	now := t.now()
	today := t.Day(now)
	var session models.ReadingSession
	err := t.repo.Update(ctx, func(s *models.State) error {
		if existing, ok := s.ReadingSessions[userID]; ok && existing.Date == today {
			session = existing
			return ErrAlreadyRunning
		}
		session = models.ReadingSession{UserID: userID, StartedAt: now, Date: today}
		s.ReadingSessions[userID] = session
		return nil
	})
	return session, err
}

// Stop ends the user's session and credits the elapsed whole minutes to its day
func (t *Tracker) Stop(ctx context.Context, userID int64) (StopResult, error) {
	if t.exempt(userID) {
		return StopResult{}, ErrExempt
	}

	now := t.now()
	today := t.Day(now)
	var res StopResult
	var stale bool
	err := t.repo.Update(ctx, func(s *models.State) error {
		session, ok := s.ReadingSessions[userID]
		if !ok {
			return ErrNotStarted
		}
		delete(s.ReadingSessions, userID)
		if session.Date != today {
			// left over from an earlier day, dropped without credit
			stale = true
			return nil
		}

		elapsed := int(now.Sub(session.StartedAt) / time.Minute)
		if elapsed < 0 {
			elapsed = 0
		}
		s.ReadingLog[session.Date] += elapsed

		res = StopResult{
			Day:           session.Date,
			Elapsed:       elapsed,
			TodayMinutes:  s.ReadingLog[session.Date],
			TargetMinutes: s.TargetHours * 60,
		}
		res.Remaining = remaining(res.TargetMinutes, res.TodayMinutes)
		return nil
	})
	if err == nil && stale {
		return StopResult{}, ErrNotStarted
	}
	return res, err
}

// Status reports progress for day. Pass "" for today.
func (t *Tracker) Status(day string) Status {
	if day == "" {
		day = t.Today()
	}
	var st Status
	t.repo.View(func(s *models.State) {
		st = Status{
			Day:           day,
			Minutes:       s.ReadingLog[day],
			TargetMinutes: s.TargetHours * 60,
		}
		for _, session := range s.ReadingSessions {
			if session.Date == day {
				st.Active = true
				break
			}
		}
	})
	st.Remaining = remaining(st.TargetMinutes, st.Minutes)
	return st
}

// Reset abandons every open session without crediting it and returns how many were dropped
func (t *Tracker) Reset(ctx context.Context) (int, error) {
	var dropped int
	err := t.repo.Update(ctx, func(s *models.State) error {
		dropped = len(s.ReadingSessions)
		s.ReadingSessions = make(map[int64]models.ReadingSession)
		return nil
	})
	return dropped, err
}

func remaining(target, done int) int {
	if done >= target {
		return 0
	}
	return target - done
}
