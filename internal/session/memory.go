package session

import (
	"context"
	"encoding/json"
	"sync"
	"time"
)

// MemoryStore keeps sessions in process. Values are stored encoded so
// callers never share mutable state with the store.
type MemoryStore struct {
	mu   sync.Mutex
	data map[string]memoryEntry
	now  func() time.Time
}

type memoryEntry struct {
	payload   []byte
	expiresAt time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{data: make(map[string]memoryEntry), now: time.Now}
}

func (m *MemoryStore) Load(_ context.Context, id string) (*Session, error) {
	m.mu.Lock()
	entry, ok := m.data[id]
	if ok && !entry.expiresAt.After(m.now()) {
		delete(m.data, id)
		ok = false
	}
	m.mu.Unlock()

	if !ok {
		return nil, ErrNotFound
	}

	s := &Session{}
	if err := json.Unmarshal(entry.payload, s); err != nil {
		return nil, err
	}
	s.ID = id
	s.ExpiresAt = entry.expiresAt
	s.Normalize()
	return s, nil
}

func (m *MemoryStore) Save(_ context.Context, s *Session) error {
	payload, err := json.Marshal(s)
	if err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[s.ID] = memoryEntry{payload: payload, expiresAt: s.ExpiresAt}
	return nil
}

func (m *MemoryStore) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.data, id)
	return nil
}
