package database

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/example/studybot/pkg/models"
)

const (
	settingTargetHours   = "target_hours"
	settingMissedTargets = "missed_targets"
	settingGroupChatID   = "group_chat_id"
	settingLastQuestion  = "last_question_id"
)

// wiped in this order on every Save
var stateTables = []string{"questions", "reading_log", "reading_sessions", "test_records", "question_usage", "settings"}

// SQLStore keeps the state in SQLite or PostgreSQL tables
type SQLStore struct {
	db *sqlx.DB
}

type readingLogRow struct {
	Day     string `db:"day"`
	Minutes int    `db:"minutes"`
}

type settingRow struct {
	Name  string `db:"name"`
	Value int64  `db:"value"`
}

// NewSQLStore wraps db and makes sure the schema exists
func NewSQLStore(db *sqlx.DB) (*SQLStore, error) {
	if err := initializeSchema(db); err != nil {
		return nil, err
	}
	return &SQLStore{db: db}, nil
}

// Load reads all tables; an empty settings table yields ErrNoState
func (s *SQLStore) Load(ctx context.Context) (*models.State, error) {
	var settings []settingRow
	if err := s.db.SelectContext(ctx, &settings, "SELECT name, value FROM settings"); err != nil {
		return nil, fmt.Errorf("failed to load settings: %w", err)
	}
	if len(settings) == 0 {
		return nil, ErrNoState
	}

	state := &models.State{}
	for _, row := range settings {
		switch row.Name {
		case settingTargetHours:
			state.TargetHours = int(row.Value)
		case settingMissedTargets:
			state.MissedTargets = int(row.Value)
		case settingGroupChatID:
			state.GroupChatID = row.Value
		case settingLastQuestion:
			state.LastQuestionID = row.Value
		}
	}
	state.Normalize()

	if err := s.db.SelectContext(ctx, &state.MCQs,
		`SELECT id, text, choice_a, choice_b, choice_c, choice_d, correct_choice, explanation, subject, created_at
		 FROM questions ORDER BY id`); err != nil {
		return nil, fmt.Errorf("failed to load questions: %w", err)
	}

	if err := s.db.SelectContext(ctx, &state.Tests,
		`SELECT id, day, test_type, subject, total, correct, accuracy, started_at, finished_at
		 FROM test_records ORDER BY id`); err != nil {
		return nil, fmt.Errorf("failed to load test records: %w", err)
	}

	var logRows []readingLogRow
	if err := s.db.SelectContext(ctx, &logRows, "SELECT day, minutes FROM reading_log"); err != nil {
		return nil, fmt.Errorf("failed to load reading log: %w", err)
	}
	for _, row := range logRows {
		state.ReadingLog[row.Day] = row.Minutes
	}

	var sessions []models.ReadingSession
	if err := s.db.SelectContext(ctx, &sessions, "SELECT user_id, started_at, day FROM reading_sessions"); err != nil {
		return nil, fmt.Errorf("failed to load reading sessions: %w", err)
	}
	for _, rs := range sessions {
		state.ReadingSessions[rs.UserID] = rs
	}

	var usage []models.QuestionUsage
	if err := s.db.SelectContext(ctx, &usage,
		"SELECT question_id, last_asked, next_due, correct_count, wrong_count FROM question_usage"); err != nil {
		return nil, fmt.Errorf("failed to load question usage: %w", err)
	}
	for _, u := range usage {
		state.AskedHistory[u.QuestionID] = u
	}

	return state, nil
}

// Save replaces the content of every table inside one transaction
func (s *SQLStore) Save(ctx context.Context, state *models.State) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	for _, table := range stateTables {
		if _, err := tx.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			return fmt.Errorf("failed to clear %s: %w", table, err)
		}
	}

	questions := make([]any, 0, len(state.MCQs))
	for _, q := range state.MCQs {
		q.CreatedAt = q.CreatedAt.UTC()
		questions = append(questions, q)
	}
	if err := insertRows(ctx, tx, `INSERT INTO questions
		(id, text, choice_a, choice_b, choice_c, choice_d, correct_choice, explanation, subject, created_at)
		VALUES (:id, :text, :choice_a, :choice_b, :choice_c, :choice_d, :correct_choice, :explanation, :subject, :created_at)`,
		questions); err != nil {
		return fmt.Errorf("failed to save questions: %w", err)
	}

	tests := make([]any, 0, len(state.Tests))
	for _, t := range state.Tests {
		t.StartedAt, t.FinishedAt = t.StartedAt.UTC(), t.FinishedAt.UTC()
		tests = append(tests, t)
	}
	if err := insertRows(ctx, tx, `INSERT INTO test_records
		(id, day, test_type, subject, total, correct, accuracy, started_at, finished_at)
		VALUES (:id, :day, :test_type, :subject, :total, :correct, :accuracy, :started_at, :finished_at)`,
		tests); err != nil {
		return fmt.Errorf("failed to save test records: %w", err)
	}

	logRows := make([]any, 0, len(state.ReadingLog))
	for day, minutes := range state.ReadingLog {
		logRows = append(logRows, readingLogRow{Day: day, Minutes: minutes})
	}
	if err := insertRows(ctx, tx, "INSERT INTO reading_log (day, minutes) VALUES (:day, :minutes)", logRows); err != nil {
		return fmt.Errorf("failed to save reading log: %w", err)
	}

	sessions := make([]any, 0, len(state.ReadingSessions))
	for _, rs := range state.ReadingSessions {
		rs.StartedAt = rs.StartedAt.UTC()
		sessions = append(sessions, rs)
	}
	if err := insertRows(ctx, tx, `INSERT INTO reading_sessions (user_id, started_at, day)
		VALUES (:user_id, :started_at, :day)`, sessions); err != nil {
		return fmt.Errorf("failed to save reading sessions: %w", err)
	}

	usage := make([]any, 0, len(state.AskedHistory))
	for _, u := range state.AskedHistory {
		u.LastAsked, u.NextDue = u.LastAsked.UTC(), u.NextDue.UTC()
		usage = append(usage, u)
	}
	if err := insertRows(ctx, tx, `INSERT INTO question_usage
		(question_id, last_asked, next_due, correct_count, wrong_count)
		VALUES (:question_id, :last_asked, :next_due, :correct_count, :wrong_count)`, usage); err != nil {
		return fmt.Errorf("failed to save question usage: %w", err)
	}

	settings := []any{
		settingRow{Name: settingTargetHours, Value: int64(state.TargetHours)},
		settingRow{Name: settingMissedTargets, Value: int64(state.MissedTargets)},
		settingRow{Name: settingGroupChatID, Value: state.GroupChatID},
		settingRow{Name: settingLastQuestion, Value: state.LastQuestionID},
	}
	if err := insertRows(ctx, tx, "INSERT INTO settings (name, value) VALUES (:name, :value)", settings); err != nil {
		return fmt.Errorf("failed to save settings: %w", err)
	}

	return tx.Commit()
}

// Close closes the underlying connection pool
func (s *SQLStore) Close() error {
	return s.db.Close()
}

func insertRows(ctx context.Context, tx *sqlx.Tx, query string, rows []any) error {
	if len(rows) == 0 {
		return nil
	}
	stmt, err := tx.PrepareNamedContext(ctx, query)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, row := range rows {
		if _, err := stmt.ExecContext(ctx, row); err != nil {
			return err
		}
	}
	return nil
}
