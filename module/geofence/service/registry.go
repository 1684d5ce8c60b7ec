package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/nandanugg/marah/module/geofence/domain"
	"github.com/nandanugg/marah/module/geofence/internal/repository/database"
)

const (
	FencesKey = "marah_fences"

	DefaultCircleRadius  = 100
	DefaultRectangleSide = 150

	persistTimeout = 5 * time.Second
)

// Snap rounds a size control value: steps of 5 (never below 10) up to 100,
// steps of 50 above it.
func Snap(v float64) float64 {
	if v <= 100 {
		return math.Max(10, math.Round(v/5)*5)
	}
	return math.Round(v/50) * 50
}

// FenceRegistry holds the user's fences. Mutations apply in memory right away
// and are written to the store in the background by Run; the newest snapshot
// always wins and a failed write never undoes the edit.
type FenceRegistry struct {
	mu       sync.RWMutex
	fences   []domain.Fence
	selected string

	store         database.KeyValueStore
	defaultCenter domain.GeoPoint
	newID         func() string

	pendingMu  sync.Mutex
	pending    []byte
	persistErr error
	signal     chan struct{}
}

func NewFenceRegistry(store database.KeyValueStore, defaultCenter domain.GeoPoint) *FenceRegistry {
	return &FenceRegistry{
		store:         store,
		defaultCenter: defaultCenter,
		newID:         uuid.NewString,
		signal:        make(chan struct{}, 1),
	}
}

// Load replaces the registry with what the store holds. Missing or unreadable
// data leaves the registry empty.
func (r *FenceRegistry) Load(ctx context.Context) error {
	raw, err := r.store.Load(ctx, FencesKey)
	if errors.Is(err, database.ErrNotFound) {
		r.replace(nil)
		return nil
	}
	if err != nil {
		r.replace(nil)
		return fmt.Errorf("load fences: %w", err)
	}

	fences, err := DecodeFences(raw)
	if err != nil {
		r.replace(nil)
		return err
	}
	r.replace(fences)
	return nil
}

func (r *FenceRegistry) replace(fences []domain.Fence) {
	r.mu.Lock()
	r.fences = fences
	r.selected = ""
	r.mu.Unlock()
}

func (r *FenceRegistry) List() []domain.Fence {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]domain.Fence, len(r.fences))
	copy(out, r.fences)
	return out
}

func (r *FenceRegistry) Get(id string) (domain.Fence, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	i := r.indexOf(id)
	if i < 0 {
		return domain.Fence{}, false
	}
	return r.fences[i], true
}

// Create adds a fence of the given kind with default dimensions. A nil center
// places it at the registry's default map center. The new fence is selected.
func (r *FenceRegistry) Create(kind domain.ShapeKind, center *domain.GeoPoint) (domain.Fence, error) {
	f := domain.Fence{ID: r.newID(), Center: r.defaultCenter}
	if center != nil {
		f.Center = *center
	}
	switch kind {
	case domain.ShapeCircle:
		f.Shape = domain.Circle{RadiusMeters: DefaultCircleRadius}
	case domain.ShapeRectangle:
		f.Shape = domain.Rectangle{WidthMeters: DefaultRectangleSide, HeightMeters: DefaultRectangleSide}
	default:
		return domain.Fence{}, fmt.Errorf("%w: unknown shape %q", domain.ErrInvalidFence, kind)
	}

	r.mu.Lock()
	if r.indexOf(f.ID) >= 0 {
		r.mu.Unlock()
		return domain.Fence{}, fmt.Errorf("%w: duplicate id %s", domain.ErrInvalidFence, f.ID)
	}
	r.fences = append(r.fences, f)
	r.selected = f.ID
	snapshot := r.snapshotLocked()
	r.mu.Unlock()

	r.schedule(snapshot)
	return f, nil
}

// Update merges changes into the fence with id. An unknown id is a no-op and
// reports false.
func (r *FenceRegistry) Update(id string, changes domain.FenceChanges) (domain.Fence, bool, error) {
	r.mu.Lock()
	i := r.indexOf(id)
	if i < 0 {
		r.mu.Unlock()
		return domain.Fence{}, false, nil
	}
	updated, err := changes.Apply(r.fences[i])
	if err != nil {
		r.mu.Unlock()
		return domain.Fence{}, true, err
	}
	r.fences[i] = updated
	snapshot := r.snapshotLocked()
	r.mu.Unlock()

	r.schedule(snapshot)
	return updated, true, nil
}

func (r *FenceRegistry) Delete(id string) bool {
	r.mu.Lock()
	i := r.indexOf(id)
	if i < 0 {
		r.mu.Unlock()
		return false
	}
	r.fences = append(r.fences[:i:i], r.fences[i+1:]...)
	if r.selected == id {
		r.selected = ""
	}
	snapshot := r.snapshotLocked()
	r.mu.Unlock()

	r.schedule(snapshot)
	return true
}

// Select marks the fence being edited. It is never persisted.
func (r *FenceRegistry) Select(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.indexOf(id) < 0 {
		return false
	}
	r.selected = id
	return true
}

func (r *FenceRegistry) Deselect() {
	r.mu.Lock()
	r.selected = ""
	r.mu.Unlock()
}

func (r *FenceRegistry) Selected() (domain.Fence, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.selected == "" {
		return domain.Fence{}, false
	}
	i := r.indexOf(r.selected)
	if i < 0 {
		return domain.Fence{}, false
	}
	return r.fences[i], true
}

func (r *FenceRegistry) indexOf(id string) int {
	for i, f := range r.fences {
		if f.ID == id {
			return i
		}
	}
	return -1
}

func (r *FenceRegistry) snapshotLocked() []byte {
	data, err := EncodeFences(r.fences)
	if err != nil {
		// only reachable with NaN or Inf coordinates
		log.Error().Err(err).Msg("Encode fences")
		return nil
	}
	return data
}

func (r *FenceRegistry) schedule(snapshot []byte) {
	if snapshot == nil {
		return
	}
	r.pendingMu.Lock()
	r.pending = snapshot
	r.pendingMu.Unlock()

	select {
	case r.signal <- struct{}{}:
	default:
	}
}

// Run writes scheduled snapshots until ctx is done, then makes one last
// attempt to flush whatever is still pending.
func (r *FenceRegistry) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			flushCtx, cancel := context.WithTimeout(context.Background(), persistTimeout)
			r.flush(flushCtx)
			cancel()
			return
		case <-r.signal:
			r.flush(ctx)
		}
	}
}

func (r *FenceRegistry) flush(ctx context.Context) {
	r.pendingMu.Lock()
	data := r.pending
	r.pending = nil
	r.pendingMu.Unlock()
	if data == nil {
		return
	}

	saveCtx, cancel := context.WithTimeout(ctx, persistTimeout)
	defer cancel()
	err := r.store.Save(saveCtx, FencesKey, data)

	r.pendingMu.Lock()
	r.persistErr = err
	r.pendingMu.Unlock()

	if err != nil {
		log.Error().Err(err).Str("key", FencesKey).Msg("Persist fences failed")
		return
	}
	log.Debug().Int("bytes", len(data)).Msg("Fences persisted")
}

// PersistError returns the outcome of the most recent write.
func (r *FenceRegistry) PersistError() error {
	r.pendingMu.Lock()
	defer r.pendingMu.Unlock()
	return r.persistErr
}

// fenceRecord is the storage layout shared with the mobile app.
type fenceRecord struct {
	ID       string           `json:"id"`
	Center   [2]float64       `json:"center"`
	Type     domain.ShapeKind `json:"type"`
	Radius   float64          `json:"radius"`
	Width    float64          `json:"width"`
	Height   float64          `json:"height"`
	Rotation float64          `json:"rotation"`
}

func EncodeFences(fences []domain.Fence) ([]byte, error) {
	records := make([]fenceRecord, 0, len(fences))
	for _, f := range fences {
		rec := fenceRecord{
			ID:     f.ID,
			Center: [2]float64{f.Center.Latitude, f.Center.Longitude},
		}
		switch s := f.Shape.(type) {
		case domain.Circle:
			rec.Type = domain.ShapeCircle
			rec.Radius = s.RadiusMeters
		case domain.Rectangle:
			rec.Type = domain.ShapeRectangle
			rec.Width = s.WidthMeters
			rec.Height = s.HeightMeters
			rec.Rotation = s.RotationDegrees
		default:
			continue
		}
		records = append(records, rec)
	}
	return json.Marshal(records)
}

// DecodeFences parses the stored layout. Records that are invalid or repeat an
// earlier id are dropped; a blob that is not a fence array is an error.
func DecodeFences(data []byte) ([]domain.Fence, error) {
	var records []fenceRecord
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, fmt.Errorf("decode fences: %w", err)
	}

	fences := make([]domain.Fence, 0, len(records))
	seen := make(map[string]bool, len(records))
	for _, rec := range records {
		f := domain.Fence{
			ID:     rec.ID,
			Center: domain.GeoPoint{Latitude: rec.Center[0], Longitude: rec.Center[1]},
		}
		switch rec.Type {
		case domain.ShapeCircle:
			f.Shape = domain.Circle{RadiusMeters: rec.Radius}
		case domain.ShapeRectangle:
			f.Shape = domain.Rectangle{
				WidthMeters:     rec.Width,
				HeightMeters:    rec.Height,
				RotationDegrees: domain.NormalizeRotation(rec.Rotation),
			}
		}
		if err := f.Validate(); err != nil || seen[f.ID] {
			log.Warn().Err(err).Str("id", rec.ID).Msg("Skipping stored fence")
			continue
		}
		seen[f.ID] = true
		fences = append(fences, f)
	}
	return fences, nil
}
