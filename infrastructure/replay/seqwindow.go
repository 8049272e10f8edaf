// Package replay implements the per-sender anti-replay sequence window
// described in spec §4.4.
package replay

import "sync"

const wraparoundGuardBand = 1 << 31

type senderState struct {
	max  uint32
	pos  int
	bits []byte
}

// Window is a concurrency-safe application.SeqWindow. Size 0 disables
// replay protection entirely.
type Window struct {
	size uint32
	mu   sync.Mutex
	by   map[uint16]*senderState
}

// NewWindow builds a replay window holding the `size` most recent sequence
// numbers per sender.
func NewWindow(size uint32) *Window {
	return &Window{size: size, by: make(map[uint16]*senderState)}
}

// CheckAndAdd implements application.SeqWindow.CheckAndAdd (spec §4.4
// algorithm).
func (w *Window) CheckAndAdd(senderID uint16, seqNr uint32) bool {
	if w.size == 0 {
		return false
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	s, ok := w.by[senderID]
	if !ok {
		s = &senderState{max: seqNr, pos: 0, bits: make([]byte, w.size)}
		s.bits[0] = 1
		w.by[senderID] = s
		return false
	}

	max, seq := s.max, seqNr
	shifted := max < w.size || max > ^uint32(0)-w.size
	if shifted {
		max += wraparoundGuardBand
		seq += wraparoundGuardBand
	}

	min := max - w.size + 1
	if seq < min || seq == max {
		return true
	}

	if seq > max {
		delta := seq - max
		if delta > w.size {
			delta = w.size
		}
		for i := uint32(1); i < delta; i++ {
			s.pos = (s.pos + 1) % int(w.size)
			s.bits[s.pos] = 0
		}
		s.pos = (s.pos + 1) % int(w.size)
		s.bits[s.pos] = 1
		s.max = seqNr
		return false
	}

	delta := max - seq
	slot := (s.pos + int(w.size) - int(delta)) % int(w.size)
	prev := s.bits[slot]
	s.bits[slot] = 1
	return prev == 1
}
