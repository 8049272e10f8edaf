package application

// SeqWindow is the per-sender anti-replay sliding window (spec §4.4).
type SeqWindow interface {
	// CheckAndAdd reports whether seqNr is a replay for senderID. If it is
	// not, the window records seqNr as seen. A window size of 0 disables
	// replay protection: CheckAndAdd always returns false and stores nothing.
	CheckAndAdd(senderID uint16, seqNr uint32) (replay bool)
}
