//go:build !linux

package devwatch

func defaultSource(dir string) (Source, error) {
	return NewPortableSource(dir)
}
