package devwatch

import (
	"errors"
	"fmt"
)

// ErrClosed is returned by Next once the Searcher has been closed.
var ErrClosed = errors.New("devwatch: searcher closed")

// SourceUnavailableError reports that the watch resource could not be
// acquired at construction. It is fatal to that construction attempt
// and is not retried.
type SourceUnavailableError struct {
	Dir string
	Err error
}

func (e *SourceUnavailableError) Error() string {
	return fmt.Sprintf("devwatch: cannot watch %s: %v", e.Dir, e.Err)
}

func (e *SourceUnavailableError) Unwrap() error { return e.Err }

// SourceError reports that the watch resource failed after it was
// established. It is terminal for the Searcher that returns it.
type SourceError struct {
	Err error
}

func (e *SourceError) Error() string {
	return fmt.Sprintf("devwatch: event source failed: %v", e.Err)
}

func (e *SourceError) Unwrap() error { return e.Err }

// DecodeError reports a malformed event buffer. Records decoded before
// the fault are still delivered; the error itself is non-fatal and is
// only surfaced through the diagnostics callback.
type DecodeError struct {
	Offset int
	Reason string
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("devwatch: malformed event buffer at offset %d: %s", e.Offset, e.Reason)
}

// ConnectError reports a failed attempt to open a discovered entry.
type ConnectError struct {
	Path       string
	Capability Capability
	Err        error
}

func (e *ConnectError) Error() string {
	return fmt.Sprintf("devwatch: connect %s as %s: %v", e.Path, e.Capability, e.Err)
}

func (e *ConnectError) Unwrap() error { return e.Err }
