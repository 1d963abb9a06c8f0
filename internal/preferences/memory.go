package preferences

import (
	"context"
	"sync"
)

// MemoryPersistence is an in-process Persistence. Values do not survive the
// process; it backs tests and the --ephemeral serve mode.
type MemoryPersistence struct {
	mu   sync.Mutex
	data map[string][]byte

	// FailWrites makes Set and Delete fail with the given error.
	FailWrites error
}

// NewMemoryPersistence returns an empty MemoryPersistence.
func NewMemoryPersistence() *MemoryPersistence {
	return &MemoryPersistence{data: map[string][]byte{}}
}

func (m *MemoryPersistence) Get(_ context.Context, key string) ([]byte, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.data[key]
	if !ok {
		return nil, false, nil
	}
	return append([]byte(nil), v...), true, nil
}

func (m *MemoryPersistence) Set(_ context.Context, key string, value []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailWrites != nil {
		return m.FailWrites
	}
	m.data[key] = append([]byte(nil), value...)
	return nil
}

func (m *MemoryPersistence) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailWrites != nil {
		return m.FailWrites
	}
	delete(m.data, key)
	return nil
}

// SetFailWrites toggles write failures.
func (m *MemoryPersistence) SetFailWrites(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.FailWrites = err
}
