// Package udevmeta resolves udev metadata for device nodes, so that
// discovery log lines can carry model and serial information next to
// the raw path.
package udevmeta

import (
	"strings"

	libudev "github.com/jochenvg/go-udev"

	"k8s.io/klog/v2"
)

type Resolver struct {
	udev libudev.Udev
}

func NewResolver() *Resolver {
	return &Resolver{}
}

// Describe returns a short description of the device behind devnode,
// or "" when udev does not (yet) know about it. Lookups enumerate the
// whole device set; callers on a hot path should cache.
func (r *Resolver) Describe(devnode string) string {
	enum := r.udev.NewEnumerate()
	devices, err := enum.Devices()
	if err != nil {
		klog.V(5).Infof("udev enumerate failed: %v", err)
		return ""
	}

	for _, dev := range devices {
		if dev == nil || dev.Devnode() != devnode {
			continue
		}
		parts := make([]string, 0, 3)
		if subsystem := dev.Subsystem(); subsystem != "" {
			parts = append(parts, subsystem)
		}
		if model := strings.TrimSpace(dev.PropertyValue("ID_MODEL")); model != "" {
			parts = append(parts, model)
		}
		if serial := strings.TrimSpace(dev.PropertyValue("ID_SERIAL_SHORT")); serial != "" {
			parts = append(parts, "serial="+serial)
		}
		return strings.Join(parts, " ")
	}

	return ""
}
