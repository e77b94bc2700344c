package quiz

import (
	"errors"
	"fmt"
	"time"

	"github.com/example/studybot/pkg/models"
)

// Preset describes a kind of test
type Preset struct {
	Kind      models.TestKind
	Title     string
	Questions int
}

var (
	// Daily is the 20 question test started with /dt
	Daily = Preset{Kind: models.DailyTest, Title: "Daily Test", Questions: 20}
	// Weekly is the 50 question test started with /wt or /dts
	Weekly = Preset{Kind: models.WeeklyTest, Title: "Weekly Test", Questions: 50}
)

var (
	// ErrSessionActive is returned when a test is already running
	ErrSessionActive = errors.New("a test is already running")
	// ErrNoSession is returned when there is no matching test to act on
	ErrNoSession = errors.New("no test is running")
)

// InsufficientPoolError means fewer eligible questions exist than the test needs
type InsufficientPoolError struct {
	Subject string
	Have    int
	Need    int
}

func (e *InsufficientPoolError) Error() string {
	if e.Subject != "" {
		return fmt.Sprintf("insufficient MCQs for %s: have %d eligible, need %d", e.Subject, e.Have, e.Need)
	}
	return fmt.Sprintf("insufficient MCQs: have %d eligible, need %d", e.Have, e.Need)
}

// Info is a read-only view of the running session
type Info struct {
	Kind    models.TestKind
	Title   string
	Subject string
	// Index of the current question, zero based
	Index   int
	Total   int
	Correct int
	Wrong   int
	Started time.Time
}

// Judgement is the outcome of one question
type Judgement struct {
	Question models.Question
	// Chosen is empty when the question timed out
	Chosen   models.Choice
	Correct  bool
	TimedOut bool
}

// Clock abstracts time so that timeouts can be driven by tests
type Clock interface {
	Now() time.Time
	AfterFunc(d time.Duration, f func()) Timer
}

// Timer is a pending callback
type Timer interface {
	Stop() bool
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

func (realClock) AfterFunc(d time.Duration, f func()) Timer { return time.AfterFunc(d, f) }
