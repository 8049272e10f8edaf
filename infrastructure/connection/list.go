// Package connection provides the reader-writer-locked ConnectionParam
// store that backs the packet pipeline's per-mux lookups (spec §4.5).
package connection

import (
	"sync"

	"anytun/application"
)

// List is a concurrency-safe application.ConnectionList. The hot path
// (pipeline lookups on every packet) takes the read lock; sync fan-in,
// auto-registration, and roaming updates take the write lock.
type List struct {
	mu    sync.RWMutex
	byMux map[uint16]application.ConnectionParam
}

// NewList builds an empty connection list.
func NewList() *List {
	return &List{byMux: make(map[uint16]application.ConnectionParam)}
}

func (l *List) Get(mux uint16) (application.ConnectionParam, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	param, ok := l.byMux[mux]
	if !ok {
		return application.ConnectionParam{}, application.ErrNotFound
	}
	return param, nil
}

func (l *List) Add(mux uint16, param application.ConnectionParam) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.byMux[mux] = param
}

func (l *List) GetOrNewUnlocked(mux uint16) application.ConnectionParam {
	l.mu.Lock()
	defer l.mu.Unlock()
	param, ok := l.byMux[mux]
	if !ok {
		param = application.ConnectionParam{}
		l.byMux[mux] = param
	}
	return param
}

func (l *List) Update(mux uint16, param application.ConnectionParam) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.byMux[mux] = param
}

func (l *List) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.byMux)
}

func (l *List) First() (uint16, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	for mux := range l.byMux {
		return mux, true
	}
	return 0, false
}

func (l *List) Each(fn func(mux uint16, param application.ConnectionParam)) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	for mux, param := range l.byMux {
		fn(mux, param)
	}
}
