package markers

import (
	"errors"
	"sort"
	"sync"
	"time"

	"donut-map/internal/maphost"
)

// Repository defines the concurrency-safe contract for accessing and mutating
// map and marker state.
type Repository interface {
	// CreateMap registers a new map backed by vp.
	// It returns ErrMapExists if id is already taken.
	CreateMap(id MapID, vp *maphost.Viewport) error

	// Viewport returns the map host for id.
	Viewport(id MapID) (*maphost.Viewport, bool)

	// DeleteMap removes a map and returns its markers so the caller can
	// release their renderers.
	DeleteMap(id MapID) ([]*Marker, error)

	// AddMarker stores m on the map. It returns ErrMapNotFound or ErrMarkerExists.
	AddMarker(mapID MapID, m *Marker) error

	// RemoveMarker deletes a marker and returns it so the caller can release
	// its renderer.
	RemoveMarker(mapID MapID, markerID MarkerID) (*Marker, error)

	// MarkerSnapshot returns the map's markers in placement order. The ok
	// return is false if the map does not exist.
	MarkerSnapshot(mapID MapID) (markers []Marker, ok bool)

	// MapIDs returns all map ids sorted.
	MapIDs() []MapID

	// ActiveMarkerCount returns the number of markers across all maps.
	// Used for metrics.
	ActiveMarkerCount() int
}

var (
	// ErrMapNotFound is returned when the map does not exist.
	ErrMapNotFound = errors.New("map not found")

	// ErrMapExists is returned when creating a map whose id is taken.
	ErrMapExists = errors.New("map already exists")

	// ErrMarkerNotFound is returned when the marker does not exist on the map.
	ErrMarkerNotFound = errors.New("marker not found")

	// ErrMarkerExists is returned when placing a marker whose id is taken.
	ErrMarkerExists = errors.New("marker already exists")
)

// InMemoryRepository is a concurrency-safe in-memory implementation of Repository.
// It uses a Store for storage; by default that is an InMemoryStore.
type InMemoryRepository struct {
	mu    sync.RWMutex
	store Store
}

// NewInMemoryRepository constructs a new repository with a default in-memory store.
func NewInMemoryRepository() *InMemoryRepository {
	return NewInMemoryRepositoryWithStore(NewInMemoryStore())
}

// NewInMemoryRepositoryWithStore constructs a repository that uses the given Store.
func NewInMemoryRepositoryWithStore(store Store) *InMemoryRepository {
	return &InMemoryRepository{store: store}
}

// CreateMap implements Repository.CreateMap.
func (r *InMemoryRepository) CreateMap(id MapID, vp *maphost.Viewport) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.store.GetMap(id); exists {
		return ErrMapExists
	}
	r.store.SetMap(&MapState{
		ID:       id,
		Viewport: vp,
		Markers:  make(map[MarkerID]*Marker),
	})
	return nil
}

// Viewport implements Repository.Viewport.
func (r *InMemoryRepository) Viewport(id MapID) (*maphost.Viewport, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	m, ok := r.store.GetMap(id)
	if !ok {
		return nil, false
	}
	return m.Viewport, true
}

// DeleteMap implements Repository.DeleteMap.
func (r *InMemoryRepository) DeleteMap(id MapID) ([]*Marker, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	m, ok := r.store.GetMap(id)
	if !ok {
		return nil, ErrMapNotFound
	}
	r.store.DeleteMap(id)

	out := make([]*Marker, 0, len(m.Markers))
	for _, mk := range m.Markers {
		out = append(out, mk)
	}
	return out, nil
}

// AddMarker implements Repository.AddMarker.
func (r *InMemoryRepository) AddMarker(mapID MapID, mk *Marker) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	m, ok := r.store.GetMap(mapID)
	if !ok {
		return ErrMapNotFound
	}
	if _, exists := m.Markers[mk.ID]; exists {
		return ErrMarkerExists
	}

	m.nextSeq++
	mk.seq = m.nextSeq
	mk.CreatedAt = time.Now().UTC()
	m.Markers[mk.ID] = mk
	return nil
}

// RemoveMarker implements Repository.RemoveMarker.
func (r *InMemoryRepository) RemoveMarker(mapID MapID, markerID MarkerID) (*Marker, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	m, ok := r.store.GetMap(mapID)
	if !ok {
		return nil, ErrMapNotFound
	}
	mk, ok := m.Markers[markerID]
	if !ok {
		return nil, ErrMarkerNotFound
	}
	delete(m.Markers, markerID)
	return mk, nil
}

// MarkerSnapshot implements Repository.MarkerSnapshot.
func (r *InMemoryRepository) MarkerSnapshot(mapID MapID) ([]Marker, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	m, ok := r.store.GetMap(mapID)
	if !ok {
		return nil, false
	}

	// Copy out so callers never see the internal map.
	out := make([]Marker, 0, len(m.Markers))
	for _, mk := range m.Markers {
		out = append(out, *mk)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].seq < out[j].seq })
	return out, true
}

// MapIDs implements Repository.MapIDs.
func (r *InMemoryRepository) MapIDs() []MapID {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ids := r.store.ListMapIDs()
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// ActiveMarkerCount implements Repository.ActiveMarkerCount.
func (r *InMemoryRepository) ActiveMarkerCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	n := 0
	for _, id := range r.store.ListMapIDs() {
		if m, ok := r.store.GetMap(id); ok {
			n += len(m.Markers)
		}
	}
	return n
}
