// Package pipeline wires the six packet-plane tasks described in spec §4.7
// (TUN-reader, encrypt-worker, UDP-writer, UDP-reader, decrypt-worker,
// TUN-writer) around the bounded channels and memory pools that pass
// packet objects between them.
package pipeline

// Pool is a bounded, pre-filled object pool backed by a buffered channel.
// Get blocks when the pool is exhausted; Put returns an object for reuse.
// Every packet object is owned by exactly one channel, pool, or task at a
// time, so a worker must route every object it acquires to either the next
// stage or back to its pool on every exit path.
type Pool[T any] struct {
	items chan *T
}

// NewPool pre-fills a pool of the given capacity using newItem.
func NewPool[T any](capacity int, newItem func() *T) *Pool[T] {
	p := &Pool[T]{items: make(chan *T, capacity)}
	for i := 0; i < capacity; i++ {
		p.items <- newItem()
	}
	return p
}

func (p *Pool[T]) Get() *T {
	return <-p.items
}

func (p *Pool[T]) Put(item *T) {
	p.items <- item
}
