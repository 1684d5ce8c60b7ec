package publisher

import (
	"context"
	"errors"

	"github.com/nandanugg/marah/module/geofence/domain"
)

type NotificationPublisher interface {
	PublishNotification(ctx context.Context, n *domain.Notification) error
}

// Fanout delivers each notification to every publisher. A failing publisher
// does not stop the rest.
type Fanout []NotificationPublisher

func (f Fanout) PublishNotification(ctx context.Context, n *domain.Notification) error {
	var errs []error
	for _, p := range f {
		if err := p.PublishNotification(ctx, n); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
