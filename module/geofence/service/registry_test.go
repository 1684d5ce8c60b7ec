package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nandanugg/marah/module/geofence/domain"
	"github.com/nandanugg/marah/module/geofence/internal/repository/database"
)

type fakeStore struct {
	mu      sync.Mutex
	data    map[string][]byte
	loadErr error
	saveErr error
	saves   int
}

func newFakeStore() *fakeStore {
	return &fakeStore{data: make(map[string][]byte)}
}

func (s *fakeStore) Load(_ context.Context, key string) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.loadErr != nil {
		return nil, s.loadErr
	}
	v, ok := s.data[key]
	if !ok {
		return nil, database.ErrNotFound
	}
	return v, nil
}

func (s *fakeStore) Save(_ context.Context, key string, value []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.saves++
	if s.saveErr != nil {
		return s.saveErr
	}
	s.data[key] = value
	return nil
}

func (s *fakeStore) get(key string) []byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.data[key]
}

func newTestRegistry(store database.KeyValueStore) *FenceRegistry {
	r := NewFenceRegistry(store, ranch)
	n := 0
	r.newID = func() string {
		n++
		return fmt.Sprintf("fence-%d", n)
	}
	return r
}

func TestSnap(t *testing.T) {
	cases := map[float64]float64{
		47:  45,
		103: 100,
		5:   10,
		127: 150,
		100: 100,
		124: 100,
		125: 150,
		12:  10,
		13:  15,
	}
	for in, want := range cases {
		assert.Equal(t, want, Snap(in), "Snap(%v)", in)
	}
}

func TestCreate_Defaults(t *testing.T) {
	r := newTestRegistry(newFakeStore())

	c, err := r.Create(domain.ShapeCircle, nil)
	require.NoError(t, err)
	assert.Equal(t, ranch, c.Center)
	assert.Equal(t, domain.Circle{RadiusMeters: 100}, c.Shape)

	spot := domain.GeoPoint{Latitude: 35, Longitude: 3}
	sq, err := r.Create(domain.ShapeRectangle, &spot)
	require.NoError(t, err)
	assert.Equal(t, spot, sq.Center)
	assert.Equal(t, domain.Rectangle{WidthMeters: 150, HeightMeters: 150}, sq.Shape)

	sel, ok := r.Selected()
	require.True(t, ok)
	assert.Equal(t, sq.ID, sel.ID)
	assert.Len(t, r.List(), 2)

	_, err = r.Create("triangle", nil)
	assert.ErrorIs(t, err, domain.ErrInvalidFence)
}

func TestCreate_DuplicateID(t *testing.T) {
	r := NewFenceRegistry(newFakeStore(), ranch)
	r.newID = func() string { return "same" }

	_, err := r.Create(domain.ShapeCircle, nil)
	require.NoError(t, err)
	_, err = r.Create(domain.ShapeCircle, nil)
	assert.ErrorIs(t, err, domain.ErrInvalidFence)
	assert.Len(t, r.List(), 1)
}

func TestUpdate(t *testing.T) {
	r := newTestRegistry(newFakeStore())
	sq, err := r.Create(domain.ShapeRectangle, nil)
	require.NoError(t, err)

	w, rot := 300.0, -90.0
	updated, found, err := r.Update(sq.ID, domain.FenceChanges{Width: &w, Rotation: &rot})
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, domain.Rectangle{WidthMeters: 300, HeightMeters: 150, RotationDegrees: 270}, updated.Shape)

	// radius does not apply to a rectangle
	radius := 10.0
	updated, _, err = r.Update(sq.ID, domain.FenceChanges{Radius: &radius})
	require.NoError(t, err)
	assert.Equal(t, 300.0, updated.Shape.(domain.Rectangle).WidthMeters)

	zero := 0.0
	_, found, err = r.Update(sq.ID, domain.FenceChanges{Height: &zero})
	assert.True(t, found)
	assert.ErrorIs(t, err, domain.ErrInvalidFence)
	got, _ := r.Get(sq.ID)
	assert.Equal(t, 150.0, got.Shape.(domain.Rectangle).HeightMeters, "a rejected edit leaves the fence untouched")

	_, found, err = r.Update("missing", domain.FenceChanges{Width: &w})
	assert.NoError(t, err)
	assert.False(t, found)
}

func TestDelete_ClearsSelection(t *testing.T) {
	r := newTestRegistry(newFakeStore())
	a, _ := r.Create(domain.ShapeCircle, nil)
	b, _ := r.Create(domain.ShapeCircle, nil)

	require.True(t, r.Select(a.ID))
	assert.True(t, r.Delete(b.ID))
	sel, ok := r.Selected()
	require.True(t, ok)
	assert.Equal(t, a.ID, sel.ID)

	assert.True(t, r.Delete(a.ID))
	_, ok = r.Selected()
	assert.False(t, ok)
	assert.Empty(t, r.List())

	assert.False(t, r.Delete(a.ID))
	assert.False(t, r.Select(a.ID))
}

func TestPersistence_LatestSnapshotWins(t *testing.T) {
	store := newFakeStore()
	r := newTestRegistry(store)

	c, _ := r.Create(domain.ShapeCircle, nil)
	radius := 250.0
	_, _, err := r.Update(c.ID, domain.FenceChanges{Radius: &radius})
	require.NoError(t, err)

	r.flush(context.Background())
	assert.Equal(t, 1, store.saves, "pending edits coalesce into one write")
	require.NoError(t, r.PersistError())

	reloaded := newTestRegistry(store)
	require.NoError(t, reloaded.Load(context.Background()))
	fences := reloaded.List()
	require.Len(t, fences, 1)
	assert.Equal(t, domain.Circle{RadiusMeters: 250}, fences[0].Shape)
	_, selected := reloaded.Selected()
	assert.False(t, selected, "selection is not persisted")
}

func TestPersistence_FailureKeepsEdit(t *testing.T) {
	store := newFakeStore()
	store.saveErr = errors.New("disk full")
	r := newTestRegistry(store)

	_, err := r.Create(domain.ShapeCircle, nil)
	require.NoError(t, err)
	r.flush(context.Background())

	assert.Error(t, r.PersistError())
	assert.Len(t, r.List(), 1)
}

func TestRun_FlushesOnShutdown(t *testing.T) {
	store := newFakeStore()
	r := newTestRegistry(store)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		r.Run(ctx)
		close(done)
	}()

	_, err := r.Create(domain.ShapeRectangle, nil)
	require.NoError(t, err)
	cancel()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("persister did not stop")
	}
	assert.NotNil(t, store.get(FencesKey))
}

func TestLoad_StoredLayout(t *testing.T) {
	store := newFakeStore()
	store.data[FencesKey] = []byte(`[
		{"id":"a","center":[34.7593,3.5881],"type":"circle","radius":120,"width":0,"height":0,"rotation":0},
		{"id":"b","center":[34.76,3.59],"type":"square","radius":0,"width":150,"height":200,"rotation":-30},
		{"id":"a","center":[0,0],"type":"circle","radius":5},
		{"id":"c","center":[0,0],"type":"circle","radius":0},
		{"id":"d","center":[0,0],"type":"hexagon","radius":10}
	]`)
	r := newTestRegistry(store)
	require.NoError(t, r.Load(context.Background()))

	fences := r.List()
	require.Len(t, fences, 2)
	assert.Equal(t, domain.Fence{ID: "a", Center: ranch, Shape: domain.Circle{RadiusMeters: 120}}, fences[0])
	assert.Equal(t, domain.Rectangle{WidthMeters: 150, HeightMeters: 200, RotationDegrees: 330}, fences[1].Shape)
}

func TestLoad_MalformedOrMissing(t *testing.T) {
	store := newFakeStore()
	r := newTestRegistry(store)
	require.NoError(t, r.Load(context.Background()))
	assert.Empty(t, r.List())

	store.data[FencesKey] = []byte(`{"not":"a list"}`)
	assert.Error(t, r.Load(context.Background()))
	assert.Empty(t, r.List())

	store.loadErr = errors.New("connection refused")
	assert.Error(t, r.Load(context.Background()))
	assert.Empty(t, r.List())
}

func TestEncodeFences_Layout(t *testing.T) {
	data, err := EncodeFences([]domain.Fence{
		{ID: "a", Center: ranch, Shape: domain.Circle{RadiusMeters: 100}},
		{ID: "b", Center: ranch, Shape: domain.Rectangle{WidthMeters: 150, HeightMeters: 150, RotationDegrees: 45}},
	})
	require.NoError(t, err)
	assert.JSONEq(t, `[
		{"id":"a","center":[34.7593,3.5881],"type":"circle","radius":100,"width":0,"height":0,"rotation":0},
		{"id":"b","center":[34.7593,3.5881],"type":"square","radius":0,"width":150,"height":150,"rotation":45}
	]`, string(data))
}
