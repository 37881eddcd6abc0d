//go:build linux

package devwatch_test

import (
	"encoding/binary"
	"errors"
	"strings"

	"golang.org/x/sys/unix"

	"github.com/ydb-platform/devwatch"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

// record builds one raw inotify_event as the kernel would emit it: a
// 16 byte header followed by the NUL-terminated name, padded to a
// 4 byte boundary.
func record(mask uint32, name string) []byte {
	var nameField []byte
	if name != "" {
		nameField = append([]byte(name), 0)
		for len(nameField)%4 != 0 {
			nameField = append(nameField, 0)
		}
	}
	buf := make([]byte, unix.SizeofInotifyEvent+len(nameField))
	binary.NativeEndian.PutUint32(buf[0:], 1) // wd
	binary.NativeEndian.PutUint32(buf[4:], mask)
	binary.NativeEndian.PutUint32(buf[8:], 0) // cookie
	binary.NativeEndian.PutUint32(buf[12:], uint32(len(nameField)))
	copy(buf[unix.SizeofInotifyEvent:], nameField)
	return buf
}

var _ = Describe("DecodeEvents", func() {
	It("decodes a single creation record", func() {
		events, err := devwatch.DecodeEvents(record(unix.IN_CREATE, "event7"))
		Expect(err).NotTo(HaveOccurred())
		Expect(events).To(Equal([]devwatch.Event{{Name: "event7", Created: true}}))
	})

	It("treats a rename-in as a creation", func() {
		events, err := devwatch.DecodeEvents(record(unix.IN_MOVED_TO, "video0"))
		Expect(err).NotTo(HaveOccurred())
		Expect(events).To(Equal([]devwatch.Event{{Name: "video0", Created: true}}))
	})

	It("decodes several concatenated records with padding", func() {
		buf := append(record(unix.IN_CREATE, "pcmC0D0p"), record(unix.IN_DELETE, "pcmC0D0c")...)
		buf = append(buf, record(unix.IN_CREATE, "midiC0D0")...)

		events, err := devwatch.DecodeEvents(buf)
		Expect(err).NotTo(HaveOccurred())
		Expect(events).To(Equal([]devwatch.Event{
			{Name: "pcmC0D0p", Created: true},
			{Name: "pcmC0D0c", Created: false},
			{Name: "midiC0D0", Created: true},
		}))
	})

	It("decodes a record without a name", func() {
		events, err := devwatch.DecodeEvents(record(unix.IN_IGNORED, ""))
		Expect(err).NotTo(HaveOccurred())
		Expect(events).To(Equal([]devwatch.Event{{Name: "", Created: false}}))
	})

	It("handles long names", func() {
		name := strings.Repeat("n", 200)
		events, err := devwatch.DecodeEvents(record(unix.IN_CREATE, name))
		Expect(err).NotTo(HaveOccurred())
		Expect(events).To(HaveLen(1))
		Expect(events[0].Name).To(Equal(name))
	})

	It("returns nothing for an empty buffer", func() {
		events, err := devwatch.DecodeEvents(nil)
		Expect(err).NotTo(HaveOccurred())
		Expect(events).To(BeEmpty())
	})

	It("keeps valid records preceding a truncated header", func() {
		buf := append(record(unix.IN_CREATE, "event3"), 0xde, 0xad, 0xbe)

		events, err := devwatch.DecodeEvents(buf)
		var decodeErr *devwatch.DecodeError
		Expect(errors.As(err, &decodeErr)).To(BeTrue())
		Expect(events).To(Equal([]devwatch.Event{{Name: "event3", Created: true}}))
	})

	It("rejects a header whose name length exceeds the buffer", func() {
		valid := record(unix.IN_CREATE, "event3")
		bogus := record(unix.IN_CREATE, "event4")
		// Claim a name far longer than what follows.
		binary.NativeEndian.PutUint32(bogus[12:], 4096)

		events, err := devwatch.DecodeEvents(append(valid, bogus...))
		var decodeErr *devwatch.DecodeError
		Expect(errors.As(err, &decodeErr)).To(BeTrue())
		Expect(events).To(Equal([]devwatch.Event{{Name: "event3", Created: true}}))
	})
})
