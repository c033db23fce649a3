package journal

// Store is the interface for journal backends. The journal is the single
// source of truth: an append-only, totally ordered sequence of Events.
type Store interface {
	// Append assigns the next sequence number to the event and records it.
	// The event must be durable before Append returns nil; concurrent
	// callers are serialized so sequence numbers are gapless and strictly
	// increasing.
	Append(event *Event) (int, error)
	// Snapshot returns the whole journal, in order, consistent at a single
	// point in time. Callers must treat the returned events as immutable.
	Snapshot() []*Event
	// Get returns the event with the given sequence number.
	Get(seq int) (*Event, error)
	// LastSeq returns the sequence number of the last appended event, or 0
	// when the journal is empty.
	LastSeq() int
	// Close closes the underlying database.
	Close() error
	// StorePath returns the filepath of the underlying database.
	StorePath() string
}
