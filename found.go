package devwatch

import (
	"os"
	"path/filepath"

	"golang.org/x/sys/unix"
)

// Capability tags a Device with the access mode it was opened with.
// The tag reflects the requested mode, not a verified device class; a
// mismatched open fails at the OS level instead of being pre-validated.
type Capability int

const (
	Generic Capability = iota
	Input
	Output
)

func (c Capability) String() string {
	switch c {
	case Input:
		return "input"
	case Output:
		return "output"
	}
	return "generic"
}

func (c Capability) openFlags() int {
	switch c {
	case Input:
		return os.O_RDONLY | unix.O_NONBLOCK
	case Output:
		return os.O_WRONLY | unix.O_NONBLOCK
	}
	return os.O_RDWR | unix.O_NONBLOCK
}

// Found describes one discovered device entry. It holds no OS
// resources and does not guarantee the entry still exists by the time
// it is connected.
type Found struct {
	Path  string
	Class Class
}

// Name returns the entry name within the watched directory.
func (f Found) Name() string { return filepath.Base(f.Path) }

// Connect opens the entry read-write.
func (f Found) Connect() (*Device, error) { return f.connect(Generic) }

// ConnectInput opens the entry read-only, for receiving data the
// device generates.
func (f Found) ConnectInput() (*Device, error) { return f.connect(Input) }

// ConnectOutput opens the entry write-only, for sending data to the
// device.
func (f Found) ConnectOutput() (*Device, error) { return f.connect(Output) }

func (f Found) connect(capability Capability) (*Device, error) {
	file, err := os.OpenFile(f.Path, capability.openFlags(), 0)
	if err != nil {
		return nil, &ConnectError{Path: f.Path, Capability: capability, Err: err}
	}
	return &Device{file: file, capability: capability}, nil
}

// Device is an open, capability-tagged handle to a connected device.
// Each Device owns a distinct kernel handle; independently connected
// Devices may be used concurrently without synchronization.
type Device struct {
	file       *os.File
	capability Capability
}

func (d *Device) Capability() Capability { return d.capability }

func (d *Device) Read(p []byte) (int, error) { return d.file.Read(p) }

func (d *Device) Write(p []byte) (int, error) { return d.file.Write(p) }

// File exposes the underlying handle for downstream I/O layers.
func (d *Device) File() *os.File { return d.file }

func (d *Device) Fd() uintptr { return d.file.Fd() }

func (d *Device) Close() error { return d.file.Close() }
