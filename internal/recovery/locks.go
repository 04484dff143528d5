package recovery

import (
	"sort"
	"sync"
)

// lockTable is the remediation-lock set: one ephemeral, non-reentrant
// exclusion token per error key, held for the duration of one remediation
// sequence. The holder must release on every exit path; a leaked token would
// permanently stall remediation for that key.
type lockTable struct {
	mu   sync.Mutex
	held map[ErrorKey]struct{}
}

func newLockTable() *lockTable {
	return &lockTable{held: make(map[ErrorKey]struct{})}
}

// TryAcquire takes the lock for key if free. It never blocks: contention means
// a sequence is already in flight and the caller should defer.
func (t *lockTable) TryAcquire(key ErrorKey) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	if _, taken := t.held[key]; taken {
		return false
	}
	t.held[key] = struct{}{}
	return true
}

// Release frees the lock for key. Releasing an unheld key is a no-op.
func (t *lockTable) Release(key ErrorKey) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.held, key)
}

// active returns the held keys, sorted for stable status output.
func (t *lockTable) active() []string {
	t.mu.Lock()
	defer t.mu.Unlock()

	keys := make([]string, 0, len(t.held))
	for k := range t.held {
		keys = append(keys, string(k))
	}
	sort.Strings(keys)
	return keys
}

// count returns the number of sequences currently in flight.
func (t *lockTable) count() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.held)
}
