package advisor

import (
	"context"

	"github.com/nandanugg/marah/module/geofence/domain"
)

type AlertSource interface {
	GenerateAlerts(ctx context.Context, snap domain.Snapshot) ([]domain.AlertCandidate, error)
}
