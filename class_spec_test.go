package devwatch_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"time"

	"github.com/ydb-platform/devwatch"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("Class", func() {
	DescribeTable("ParseClass",
		func(name string, expected devwatch.Class) {
			class, err := devwatch.ParseClass(name)
			Expect(err).NotTo(HaveOccurred())
			Expect(class).To(Equal(expected))
			Expect(class.String()).To(Equal(name))
		},
		Entry("input", "input", devwatch.ClassInput),
		Entry("audio", "audio", devwatch.ClassAudio),
		Entry("midi", "midi", devwatch.ClassMidi),
		Entry("camera", "camera", devwatch.ClassCamera),
	)

	It("rejects unknown class names", func() {
		_, err := devwatch.ParseClass("serial")
		Expect(err).To(HaveOccurred())
	})
})

var _ = Describe("NewSearcher", func() {
	var root string

	BeforeEach(func() {
		root = GinkgoT().TempDir()
	})

	mkdir := func(elems ...string) string {
		GinkgoHelper()
		dir := filepath.Join(append([]string{root}, elems...)...)
		Expect(os.MkdirAll(dir, 0o755)).To(Succeed())
		return dir
	}

	It("watches the class directory and stamps the class on results", func() {
		input := mkdir("input")
		touch(input, "event0")
		touch(input, "mouse0")

		s, err := devwatch.NewSearcher(devwatch.ClassInput, devwatch.WithDeviceRoot(root))
		Expect(err).NotTo(HaveOccurred())
		defer s.Close()

		found, err := s.Next(context.Background())
		Expect(err).NotTo(HaveOccurred())
		Expect(found.Name()).To(Equal("event0"))
		Expect(found.Class).To(Equal(devwatch.ClassInput))

		// mouse0 does not match the "event" prefix.
		_, err = nextWithin(s, 100*time.Millisecond)
		Expect(err).To(MatchError(context.DeadlineExceeded))
	})

	It("prefers the snd directory for midi devices", func() {
		snd := mkdir("snd")
		touch(snd, "midiC0D0")
		touch(root, "midi9")

		s, err := devwatch.NewSearcher(devwatch.ClassMidi, devwatch.WithDeviceRoot(root))
		Expect(err).NotTo(HaveOccurred())
		defer s.Close()

		found, err := s.Next(context.Background())
		Expect(err).NotTo(HaveOccurred())
		Expect(found.Path).To(Equal(filepath.Join(snd, "midiC0D0")))

		_, err = nextWithin(s, 100*time.Millisecond)
		Expect(err).To(MatchError(context.DeadlineExceeded))
	})

	It("falls back to the device root for midi devices without snd", func() {
		touch(root, "midi1")

		s, err := devwatch.NewSearcher(devwatch.ClassMidi, devwatch.WithDeviceRoot(root))
		Expect(err).NotTo(HaveOccurred())
		defer s.Close()

		found, err := s.Next(context.Background())
		Expect(err).NotTo(HaveOccurred())
		Expect(found.Path).To(Equal(filepath.Join(root, "midi1")))
		Expect(found.Class).To(Equal(devwatch.ClassMidi))
	})

	It("fails when no candidate directory is watchable", func() {
		_, err := devwatch.NewSearcher(devwatch.ClassAudio, devwatch.WithDeviceRoot(filepath.Join(root, "missing")))

		var unavailable *devwatch.SourceUnavailableError
		Expect(errors.As(err, &unavailable)).To(BeTrue())
	})

	It("fails for an unknown class", func() {
		_, err := devwatch.NewSearcher(devwatch.ClassUnknown, devwatch.WithDeviceRoot(root))
		Expect(err).To(HaveOccurred())
	})
})
