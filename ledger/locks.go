package ledger

import (
	"sync"

	"github.com/ethereum/go-ethereum/common"
)

type positionKey struct {
	user  common.Address
	vault common.Address
}

type lockEntry struct {
	mu   sync.Mutex
	refs int
}

// keyedMutex serializes ledger writers per (user, vault). Entries are
// dropped once nobody holds or waits for them.
type keyedMutex struct {
	mu    sync.Mutex
	locks map[positionKey]*lockEntry
}

func newKeyedMutex() *keyedMutex {
	return &keyedMutex{locks: make(map[positionKey]*lockEntry)}
}

func (m *keyedMutex) Lock(key positionKey) func() {
	m.mu.Lock()
	e, ok := m.locks[key]
	if !ok {
		e = new(lockEntry)
		m.locks[key] = e
	}
	e.refs++
	m.mu.Unlock()

	e.mu.Lock()
	return func() {
		e.mu.Unlock()
		m.mu.Lock()
		e.refs--
		if e.refs == 0 {
			delete(m.locks, key)
		}
		m.mu.Unlock()
	}
}

func (m *keyedMutex) size() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.locks)
}
