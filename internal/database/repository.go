package database

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/example/studybot/pkg/models"
)

// Repository owns the in-memory state. Every mutation runs under one mutex
// against a copy which replaces the live state only after it was saved.
type Repository struct {
	mu    sync.Mutex
	store Store
	state *models.State
}

// NewRepository loads the state from store, starting empty when nothing was saved
func NewRepository(ctx context.Context, store Store, defaultTargetHours int) (*Repository, error) {
	state, err := store.Load(ctx)
	if errors.Is(err, ErrNoState) {
		state = models.NewState(defaultTargetHours)
		if err := store.Save(ctx, state); err != nil {
			return nil, fmt.Errorf("failed to initialize store: %w", err)
		}
	} else if err != nil {
		return nil, err
	}
	if state.TargetHours <= 0 {
		state.TargetHours = defaultTargetHours
	}
	return &Repository{store: store, state: state}, nil
}

// Update applies fn to a copy of the state and persists it. If fn returns an
// error nothing is saved and the error is returned unchanged.
func (r *Repository) Update(ctx context.Context, fn func(s *models.State) error) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	draft := r.state.Clone()
	if err := fn(draft); err != nil {
		return err
	}
	if err := r.store.Save(ctx, draft); err != nil {
		return fmt.Errorf("failed to persist state: %w", err)
	}
	r.state = draft
	return nil
}

// View runs fn with read access to the live state. fn must not retain or modify it.
func (r *Repository) View(fn func(s *models.State)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	fn(r.state)
}

// Snapshot returns a deep copy of the current state
func (r *Repository) Snapshot() *models.State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state.Clone()
}

// AddQuestions assigns ids to qs, appends them and returns the stored copies
func (r *Repository) AddQuestions(ctx context.Context, qs []models.Question) ([]models.Question, error) {
	if len(qs) == 0 {
		return nil, nil
	}
	var added []models.Question
	err := r.Update(ctx, func(s *models.State) error {
		next := s.NextQuestionID()
		added = make([]models.Question, 0, len(qs))
		for _, q := range qs {
			q.ID = next
			next++
			if q.Subject == "" {
				q.Subject = models.DefaultSubject
			}
			s.MCQs = append(s.MCQs, q)
			added = append(added, q)
		}
		s.LastQuestionID = next - 1
		return nil
	})
	if err != nil {
		return nil, err
	}
	return added, nil
}

// DeleteQuestion removes a question and its usage history. It reports false if
// no question has that id.
func (r *Repository) DeleteQuestion(ctx context.Context, id int64) (bool, error) {
	errMissing := errors.New("missing")
	err := r.Update(ctx, func(s *models.State) error {
		for i, q := range s.MCQs {
			if q.ID == id {
				s.MCQs = append(s.MCQs[:i], s.MCQs[i+1:]...)
				delete(s.AskedHistory, id)
				return nil
			}
		}
		return errMissing
	})
	if errors.Is(err, errMissing) {
		return false, nil
	}
	return err == nil, err
}

// SetTargetHours changes the daily reading target
func (r *Repository) SetTargetHours(ctx context.Context, hours int) error {
	return r.Update(ctx, func(s *models.State) error {
		s.TargetHours = hours
		return nil
	})
}

// SetGroupChatID remembers the announcement chat if it changed
func (r *Repository) SetGroupChatID(ctx context.Context, chatID int64) error {
	var current int64
	r.View(func(s *models.State) { current = s.GroupChatID })
	if current == chatID {
		return nil
	}
	return r.Update(ctx, func(s *models.State) error {
		s.GroupChatID = chatID
		return nil
	})
}

// Close closes the underlying store
func (r *Repository) Close() error {
	return r.store.Close()
}
