package markers

// Store is the storage abstraction for map state.
// The Repository uses Store for all reads and writes and guards it with its
// own lock, so implementations need not be concurrency-safe.
type Store interface {
	GetMap(id MapID) (*MapState, bool)
	SetMap(m *MapState)
	DeleteMap(id MapID)
	ListMapIDs() []MapID
}

// InMemoryStore is an in-memory implementation of Store.
type InMemoryStore struct {
	maps map[MapID]*MapState
}

// NewInMemoryStore returns a new empty in-memory store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		maps: make(map[MapID]*MapState),
	}
}

// GetMap implements Store.GetMap.
func (s *InMemoryStore) GetMap(id MapID) (*MapState, bool) {
	m, ok := s.maps[id]
	return m, ok
}

// SetMap implements Store.SetMap.
func (s *InMemoryStore) SetMap(m *MapState) {
	s.maps[m.ID] = m
}

// DeleteMap implements Store.DeleteMap.
func (s *InMemoryStore) DeleteMap(id MapID) {
	delete(s.maps, id)
}

// ListMapIDs implements Store.ListMapIDs.
func (s *InMemoryStore) ListMapIDs() []MapID {
	ids := make([]MapID, 0, len(s.maps))
	for id := range s.maps {
		ids = append(ids, id)
	}
	return ids
}
