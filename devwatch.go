// Package devwatch discovers hot-pluggable devices as they appear in
// the platform device directory, without polling. A Searcher yields a
// Found descriptor for every matching entry, first from an initial
// directory scan and then from kernel creation events; a Found can be
// connected as a generic, input-only or output-only Device.
package devwatch

import (
	"fmt"
	"path/filepath"
)

// Class selects which family of device nodes a Searcher looks for.
type Class int

const (
	ClassUnknown Class = iota
	ClassInput
	ClassAudio
	ClassMidi
	ClassCamera
)

func (c Class) String() string {
	switch c {
	case ClassInput:
		return "input"
	case ClassAudio:
		return "audio"
	case ClassMidi:
		return "midi"
	case ClassCamera:
		return "camera"
	}
	return "unknown"
}

// ParseClass maps a class name from configuration to a Class.
func ParseClass(s string) (Class, error) {
	switch s {
	case "input":
		return ClassInput, nil
	case "audio":
		return ClassAudio, nil
	case "midi":
		return ClassMidi, nil
	case "camera":
		return ClassCamera, nil
	}
	return ClassUnknown, fmt.Errorf("unknown device class %q", s)
}

const defaultDeviceRoot = "/dev"

type watchRule struct {
	dir    string
	prefix string
}

// rules returns candidate watch directories in priority order. Midi
// carries a fallback for systems that expose midi nodes directly under
// the device root instead of under snd/.
func (c Class) rules(root string) []watchRule {
	switch c {
	case ClassInput:
		return []watchRule{{filepath.Join(root, "input"), "event"}}
	case ClassAudio:
		return []watchRule{{filepath.Join(root, "snd"), "pcm"}}
	case ClassMidi:
		return []watchRule{
			{filepath.Join(root, "snd"), "midi"},
			{root, "midi"},
		}
	case ClassCamera:
		return []watchRule{{root, "video"}}
	}
	return nil
}
