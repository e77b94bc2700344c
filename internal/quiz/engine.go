// Package quiz runs timed multiple choice tests one question at a time.
//
// An Engine is Idle or has exactly one active session. Start moves it to
// Active, each answer or per-question timeout judges the current question and,
// after a short pacing delay, asks the next one. Judging the last question
// emits the report, persists a TestRecord and returns the engine to Idle.
// Cancel discards the session without recording anything.
package quiz

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/example/studybot/internal/repetition"
	"github.com/example/studybot/pkg/models"
)

const (
	DefaultQuestionTimeout = 5 * time.Minute
	DefaultPacingDelay     = 2 * time.Second
)

// Repository is the part of the state store the engine needs
type Repository interface {
	Update(ctx context.Context, fn func(s *models.State) error) error
	View(fn func(s *models.State))
}

// Presenter renders engine events. It is called with the engine locked and
// must not call back into the engine.
type Presenter interface {
	TestStarted(ctx context.Context, chatID int64, info Info)
	QuestionAsked(ctx context.Context, chatID int64, info Info, q models.Question)
	AnswerJudged(ctx context.Context, chatID int64, info Info, j Judgement)
	TestFinished(ctx context.Context, chatID int64, r Report)
	TestCancelled(ctx context.Context, chatID int64, info Info)
}

type outcome struct {
	questionID int64
	correct    bool
}

type session struct {
	id        uint64
	chatID    int64
	preset    Preset
	subject   string
	questions []models.Question
	index     int
	correct   int
	wrong     int
	subjects  map[string]*SubjectScore
	outcomes  []outcome
	awaiting  bool
	timer     Timer
	startedAt time.Time
}

func (s *session) info() Info {
	return Info{
		Kind:    s.preset.Kind,
		Title:   s.preset.Title,
		Subject: s.subject,
		Index:   s.index,
		Total:   len(s.questions),
		Correct: s.correct,
		Wrong:   s.wrong,
		Started: s.startedAt,
	}
}

// Engine owns the single active test session
type Engine struct {
	mu        sync.Mutex
	repo      Repository
	presenter Presenter
	policy    *repetition.Policy
	clock     Clock
	timeout   time.Duration
	pacing    time.Duration
	rnd       *rand.Rand
	day       func(time.Time) string
	log       *zap.Logger

	session *session
	seq     uint64
}

// Option configures an Engine
type Option func(*Engine)

// WithClock replaces the wall clock and timers
func WithClock(c Clock) Option { return func(e *Engine) { e.clock = c } }

// WithTimeout sets the per-question deadline
func WithTimeout(d time.Duration) Option { return func(e *Engine) { e.timeout = d } }

// WithPacing sets the delay between a result and the next question
func WithPacing(d time.Duration) Option { return func(e *Engine) { e.pacing = d } }

// WithRand sets the random source used to draw questions
func WithRand(r *rand.Rand) Option { return func(e *Engine) { e.rnd = r } }

// WithDay sets how a finish time maps to the study day stored in records
func WithDay(fn func(time.Time) string) Option { return func(e *Engine) { e.day = fn } }

// WithLogger sets the logger
func WithLogger(l *zap.Logger) Option { return func(e *Engine) { e.log = l } }

// NewEngine creates an idle engine
func NewEngine(repo Repository, presenter Presenter, policy *repetition.Policy, opts ...Option) *Engine {
	e := &Engine{
		repo:      repo,
		presenter: presenter,
		policy:    policy,
		clock:     realClock{},
		timeout:   DefaultQuestionTimeout,
		pacing:    DefaultPacingDelay,
		rnd:       rand.New(rand.NewSource(time.Now().UnixNano())),
		log:       zap.NewNop(),
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.day == nil {
		e.day = func(t time.Time) string { return t.In(policy.Location).Format(models.DayLayout) }
	}
	return e
}

// Active returns the running session, if any
func (e *Engine) Active() (Info, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.session == nil {
		return Info{}, false
	}
	return e.session.info(), true
}

// ChatID returns the chat of the running session
func (e *Engine) ChatID() (int64, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.session == nil {
		return 0, false
	}
	return e.session.chatID, true
}

// Start begins a test in chatID, optionally limited to one subject. It
// refuses while another test runs and when the eligible pool is smaller
// than the preset's question count.
func (e *Engine) Start(ctx context.Context, chatID int64, preset Preset, subject string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.session != nil {
		return ErrSessionActive
	}

	now := e.clock.Now()
	var pool []models.Question
	e.repo.View(func(s *models.State) {
		pool = e.policy.Eligible(s.MCQs, s.AskedHistory, subject, now)
	})
	if len(pool) < preset.Questions {
		return &InsufficientPoolError{Subject: subject, Have: len(pool), Need: preset.Questions}
	}

	e.rnd.Shuffle(len(pool), func(i, j int) { pool[i], pool[j] = pool[j], pool[i] })

	e.seq++
	e.session = &session{
		id:        e.seq,
		chatID:    chatID,
		preset:    preset,
		subject:   subject,
		questions: pool[:preset.Questions],
		subjects:  make(map[string]*SubjectScore),
		startedAt: now,
	}
	e.log.Info("Test started",
		zap.String("kind", string(preset.Kind)),
		zap.Int("questions", preset.Questions),
		zap.String("subject", subject),
		zap.Int("pool", len(pool)))

	e.presenter.TestStarted(ctx, chatID, e.session.info())
	e.ask(ctx)
	return nil
}

// Answer judges choice for the current question of the session in chatID.
// index is the question the answer was given for, or -1 for free text.
// It reports false when the answer was ignored: no session, another chat,
// an earlier question, or the engine is between questions.
func (e *Engine) Answer(ctx context.Context, chatID int64, choice models.Choice, index int) bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	s := e.session
	if s == nil || s.chatID != chatID || !s.awaiting {
		return false
	}
	if index >= 0 && index != s.index {
		return false
	}
	e.judge(ctx, choice, false)
	return true
}

// Cancel discards the running session of the given kind; an empty kind
// matches any session
func (e *Engine) Cancel(ctx context.Context, kind models.TestKind) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	s := e.session
	if s == nil || (kind != "" && s.preset.Kind != kind) {
		return ErrNoSession
	}
	if s.timer != nil {
		s.timer.Stop()
	}
	e.session = nil
	e.log.Info("Test cancelled", zap.String("kind", string(s.preset.Kind)), zap.Int("index", s.index))
	e.presenter.TestCancelled(ctx, s.chatID, s.info())
	return nil
}

// ask presents the current question and arms its deadline
func (e *Engine) ask(ctx context.Context) {
	s := e.session
	s.awaiting = true
	e.presenter.QuestionAsked(ctx, s.chatID, s.info(), s.questions[s.index])

	id, index := s.id, s.index
	s.timer = e.clock.AfterFunc(e.timeout, func() { e.expire(id, index) })
}

func (e *Engine) expire(id uint64, index int) {
	e.mu.Lock()
	defer e.mu.Unlock()

	s := e.session
	if s == nil || s.id != id || s.index != index || !s.awaiting {
		return
	}
	e.log.Debug("Question timed out", zap.Int("index", index))
	e.judge(context.Background(), "", true)
}

func (e *Engine) advance(id uint64) {
	e.mu.Lock()
	defer e.mu.Unlock()

	s := e.session
	if s == nil || s.id != id {
		return
	}
	s.index++
	e.ask(context.Background())
}

// judge scores the current question. An empty choice means timed out.
func (e *Engine) judge(ctx context.Context, choice models.Choice, timedOut bool) {
	s := e.session
	s.awaiting = false
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}

	q := s.questions[s.index]
	correct := !timedOut && choice == q.CorrectChoice
	if correct {
		s.correct++
	} else {
		s.wrong++
	}

	score, ok := s.subjects[q.Subject]
	if !ok {
		score = &SubjectScore{Subject: q.Subject}
		s.subjects[q.Subject] = score
	}
	score.Total++
	if correct {
		score.Correct++
	}
	s.outcomes = append(s.outcomes, outcome{questionID: q.ID, correct: correct})

	e.presenter.AnswerJudged(ctx, s.chatID, s.info(), Judgement{
		Question: q,
		Chosen:   choice,
		Correct:  correct,
		TimedOut: timedOut,
	})

	if s.index == len(s.questions)-1 {
		e.finish(ctx)
		return
	}

	id := s.id
	s.timer = e.clock.AfterFunc(e.pacing, func() { e.advance(id) })
}

func (e *Engine) finish(ctx context.Context) {
	s := e.session
	e.session = nil

	now := e.clock.Now()
	total := len(s.questions)
	record := models.TestRecord{
		Date:       e.day(now),
		Type:       s.preset.Kind,
		Subject:    s.subject,
		Total:      total,
		Correct:    s.correct,
		Accuracy:   Accuracy(s.correct, total),
		StartedAt:  s.startedAt,
		FinishedAt: now,
	}

	err := e.repo.Update(ctx, func(st *models.State) error {
		record.ID = st.NextTestID()
		st.Tests = append(st.Tests, record)
		for _, o := range s.outcomes {
			st.AskedHistory[o.questionID] = e.policy.Record(st.AskedHistory[o.questionID], o.questionID, o.correct, now)
		}
		return nil
	})
	if err != nil {
		e.log.Error("Failed to save test record", zap.Error(err))
	}

	report := Report{
		Record:       record,
		Title:        s.preset.Title,
		Wrong:        s.wrong,
		Band:         BandFor(s.correct, total),
		WeakSubjects: WeakSubjects(s.subjects),
		Duration:     now.Sub(s.startedAt),
	}
	e.log.Info("Test finished",
		zap.String("kind", string(record.Type)),
		zap.Int("correct", record.Correct),
		zap.Int("total", record.Total),
		zap.String("band", string(report.Band)))
	e.presenter.TestFinished(ctx, s.chatID, report)
}
