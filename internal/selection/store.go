package selection

import "sync"

// PreferenceStore is the persisted key-value storage the widget keeps its
// choices in (selected station, data source, units). It is treated as
// synchronous and non-transactional; the platform binding decides where the
// values actually live.
type PreferenceStore interface {
	Get(key string) (string, bool)
	Set(key, value string)
}

// Preference keys.
const (
	KeySelection = "selection"
	KeySource    = "source"
	KeyUnits     = "units"
)

// NearestSentinel is the selection value meaning "resolve via geolocation
// at render time"; it is not a station name.
const NearestSentinel = "nearest"

// MemoryStore is the in-process PreferenceStore used by default and in
// tests.
type MemoryStore struct {
	mu   sync.RWMutex
	data map[string]string
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{data: make(map[string]string)}
}

func (s *MemoryStore) Get(key string) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.data[key]
	return v, ok
}

func (s *MemoryStore) Set(key, value string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[key] = value
}
