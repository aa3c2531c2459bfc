//go:build !linux

package vision

import "errors"

// ErrShmUnsupported is returned on platforms without a tmpfs-backed
// shared-memory implementation. Tests use NewMemorySegment instead.
var ErrShmUnsupported = errors.New("shared-memory segments are only supported on linux")

// CreateSegment is unavailable on this platform.
func CreateSegment(name string) (Segment, error) {
	return nil, ErrShmUnsupported
}

// OpenSegment is unavailable on this platform.
func OpenSegment(name string) (Segment, error) {
	return nil, ErrShmUnsupported
}

// Unlink is unavailable on this platform.
func Unlink(name string) error {
	return ErrShmUnsupported
}
