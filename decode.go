//go:build linux

package devwatch

import (
	"bytes"
	"unsafe"

	"golang.org/x/sys/unix"
)

// DecodeEvents parses a buffer of raw inotify records into Events. The
// buffer may hold any number of records; each is a fixed-size header
// followed by a NUL-padded name whose length the header declares.
// Records for the watched directory itself carry no name. A truncated
// or inconsistent record stops the pass: the records decoded before it
// are returned together with a *DecodeError.
func DecodeEvents(buf []byte) ([]Event, error) {
	var events []Event
	offset := 0
	for offset < len(buf) {
		if len(buf)-offset < unix.SizeofInotifyEvent {
			return events, &DecodeError{Offset: offset, Reason: "truncated event header"}
		}
		raw := (*unix.InotifyEvent)(unsafe.Pointer(&buf[offset]))
		nameLen := int(raw.Len)
		if len(buf)-offset-unix.SizeofInotifyEvent < nameLen {
			return events, &DecodeError{Offset: offset, Reason: "event name exceeds buffer"}
		}
		var name string
		if nameLen > 0 {
			field := buf[offset+unix.SizeofInotifyEvent : offset+unix.SizeofInotifyEvent+nameLen]
			if i := bytes.IndexByte(field, 0); i >= 0 {
				field = field[:i]
			}
			name = string(field)
		}
		events = append(events, Event{
			Name:    name,
			Created: raw.Mask&(unix.IN_CREATE|unix.IN_MOVED_TO) != 0,
		})
		offset += unix.SizeofInotifyEvent + nameLen
	}
	return events, nil
}
