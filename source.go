package devwatch

// Event is one decoded filesystem notification record: the entry name
// and whether the record reports entry creation. The Searcher discards
// records of any other kind.
type Event struct {
	Name    string
	Created bool
}

// Source is the capability a Searcher consumes: an event feed for one
// watched directory, kernel-backed or fake.
//
// Ready is signalled whenever unread event data may be available; the
// channel is closed when the source shuts down. ReadEvents drains
// whatever is available without blocking and may return both records
// and an error: a *DecodeError applies only to the undecoded remainder
// of that read and is non-fatal, any other error is terminal for the
// source. Close releases the underlying watch resource synchronously
// and must be safe to call while a consumer is blocked on Ready.
type Source interface {
	Ready() <-chan struct{}
	ReadEvents() ([]Event, error)
	Close() error
}
