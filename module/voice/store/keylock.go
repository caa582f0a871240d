package store

import "sync"

// keyLock 按实体 key 串行化读改写。
// 存储层没有 CAS，两个 handler 在 I/O 挂起点之间交错时会互相覆盖，
// 所以同一实体 key 上的整个“读-改-写”必须持有该 key 的锁。
type keyLock struct {
	mu      sync.Mutex
	entries map[string]*keyEntry
}

type keyEntry struct {
	mu   sync.Mutex
	refs int
}

func newKeyLock() *keyLock {
	return &keyLock{entries: make(map[string]*keyEntry)}
}

func (l *keyLock) lock(key string) {
	l.mu.Lock()
	e := l.entries[key]
	if e == nil {
		e = &keyEntry{}
		l.entries[key] = e
	}
	e.refs++
	l.mu.Unlock()

	e.mu.Lock()
}

func (l *keyLock) unlock(key string) {
	l.mu.Lock()
	e := l.entries[key]
	if e == nil {
		l.mu.Unlock()
		panic("keyLock: unlock of unheld key " + key)
	}
	e.refs--
	if e.refs == 0 {
		delete(l.entries, key)
	}
	l.mu.Unlock()

	e.mu.Unlock()
}
