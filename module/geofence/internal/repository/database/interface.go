package database

import (
	"context"
	"errors"

	"github.com/nandanugg/marah/module/geofence/domain"
)

var ErrNotFound = errors.New("not found")

// KeyValueStore persists opaque JSON blobs under string keys.
type KeyValueStore interface {
	Load(ctx context.Context, key string) ([]byte, error)
	Save(ctx context.Context, key string, value []byte) error
}

type PositionRepository interface {
	Insert(ctx context.Context, pos *domain.TrackedPosition) error
	GetLatest(ctx context.Context, entityID string) (*domain.TrackedPosition, error)
	GetHistory(ctx context.Context, query *domain.HistoryQuery) ([]domain.TrackedPosition, error)
	GetAllEntities(ctx context.Context) ([]domain.Entity, error)
}
