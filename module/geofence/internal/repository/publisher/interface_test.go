package publisher

import (
	"context"
	"errors"
	"testing"

	"github.com/nandanugg/marah/module/geofence/domain"
)

type countingPublisher struct {
	calls int
	err   error
}

func (p *countingPublisher) PublishNotification(_ context.Context, _ *domain.Notification) error {
	p.calls++
	return p.err
}

func TestFanout(t *testing.T) {
	failing := &countingPublisher{err: errors.New("broker down")}
	ok := &countingPublisher{}

	err := Fanout{failing, ok}.PublishNotification(context.Background(), &domain.Notification{EntityID: "collar-7"})
	if err == nil {
		t.Fatal("expected error")
	}
	if failing.calls != 1 || ok.calls != 1 {
		t.Errorf("expected both publishers called, got %d and %d", failing.calls, ok.calls)
	}

	if err := (Fanout{ok}).PublishNotification(context.Background(), &domain.Notification{}); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
}
