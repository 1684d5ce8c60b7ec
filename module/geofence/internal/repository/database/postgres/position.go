package postgres

import (
	"context"
	"database/sql"
	"errors"

	"github.com/nandanugg/marah/module/geofence/domain"
	"github.com/nandanugg/marah/module/geofence/internal/repository/database"
)

var _ database.PositionRepository = (*PositionRepo)(nil)

type PositionRepo struct {
	db *sql.DB
}

func NewPositionRepo(db *sql.DB) *PositionRepo {
	return &PositionRepo{db: db}
}

func (r *PositionRepo) Insert(ctx context.Context, pos *domain.TrackedPosition) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO tracked_positions (entity_id, latitude, longitude, speed, timestamp) VALUES ($1, $2, $3, $4, $5)`,
		pos.EntityID, pos.Point.Latitude, pos.Point.Longitude, pos.Speed, pos.Timestamp,
	)
	return err
}

func (r *PositionRepo) GetLatest(ctx context.Context, entityID string) (*domain.TrackedPosition, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT entity_id, latitude, longitude, speed, timestamp FROM tracked_positions WHERE entity_id = $1 ORDER BY timestamp DESC LIMIT 1`,
		entityID,
	)

	var p domain.TrackedPosition
	if err := row.Scan(&p.EntityID, &p.Point.Latitude, &p.Point.Longitude, &p.Speed, &p.Timestamp); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, database.ErrNotFound
		}
		return nil, err
	}
	return &p, nil
}

func (r *PositionRepo) GetHistory(ctx context.Context, query *domain.HistoryQuery) ([]domain.TrackedPosition, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT entity_id, latitude, longitude, speed, timestamp FROM tracked_positions WHERE entity_id = $1 AND timestamp >= $2 AND timestamp <= $3 ORDER BY timestamp ASC`,
		query.EntityID, query.Start, query.End,
	)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var results []domain.TrackedPosition
	for rows.Next() {
		var p domain.TrackedPosition
		if err := rows.Scan(&p.EntityID, &p.Point.Latitude, &p.Point.Longitude, &p.Speed, &p.Timestamp); err != nil {
			return nil, err
		}
		results = append(results, p)
	}
	return results, rows.Err()
}

func (r *PositionRepo) GetAllEntities(ctx context.Context) ([]domain.Entity, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT DISTINCT entity_id FROM tracked_positions ORDER BY entity_id`,
	)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var results []domain.Entity
	for rows.Next() {
		var e domain.Entity
		if err := rows.Scan(&e.EntityID); err != nil {
			return nil, err
		}
		results = append(results, e)
	}
	return results, rows.Err()
}
