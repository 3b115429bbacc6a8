package executor

import "sync"

// symbolLocks serializes execution per symbol. TryAcquire never blocks:
// a caller that loses the race gets false and fails fast with ErrBusy,
// because queueing a second sequence behind an in-flight one would
// execute it against prices that are no longer the ones it was scored on.
type symbolLocks struct {
	mu   sync.Mutex
	held map[string]bool
}

func newSymbolLocks() *symbolLocks {
	return &symbolLocks{held: make(map[string]bool)}
}

// TryAcquire takes the lock for symbol if free.
func (l *symbolLocks) TryAcquire(symbol string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.held[symbol] {
		return false
	}
	l.held[symbol] = true
	return true
}

// Release frees the lock for symbol.
func (l *symbolLocks) Release(symbol string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.held, symbol)
}
