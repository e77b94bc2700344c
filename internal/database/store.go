package database

import (
	"context"
	"errors"

	"github.com/example/studybot/pkg/models"
)

// ErrNoState is returned by Load when nothing has been persisted yet
var ErrNoState = errors.New("no persisted state")

// Store persists the whole state document. Save always rewrites everything.
type Store interface {
	Load(ctx context.Context) (*models.State, error)
	Save(ctx context.Context, state *models.State) error
	Close() error
}

// OpenStore returns the SQL store when databaseURL is set and the JSON file
// store otherwise
func OpenStore(dataFile, databaseURL string) (Store, error) {
	if databaseURL == "" {
		return NewJSONStore(dataFile), nil
	}
	db, err := Connect(databaseURL)
	if err != nil {
		return nil, err
	}
	return NewSQLStore(db)
}
