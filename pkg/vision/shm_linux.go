//go:build linux

package vision

import (
	"fmt"
	"os"
	"path/filepath"

	"golang.org/x/sys/unix"
)

// Named segments live in tmpfs, same place the producer creates them.
const shmDir = "/dev/shm"

type shmSegment struct {
	name string
	file *os.File
	data []byte
}

// CreateSegment creates (or recreates) a named shared-memory segment.
// Used by the producer side and by the simulated vision feed.
func CreateSegment(name string) (Segment, error) {
	path := filepath.Join(shmDir, name)
	// A stale segment from a crashed producer is replaced wholesale.
	os.Remove(path)

	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR|os.O_EXCL, 0o644)
	if err != nil {
		return nil, fmt.Errorf("create shm segment %q: %w", name, err)
	}
	if err := f.Truncate(SegmentSize); err != nil {
		f.Close()
		os.Remove(path)
		return nil, fmt.Errorf("size shm segment %q: %w", name, err)
	}
	return mapSegment(name, f, unix.PROT_READ|unix.PROT_WRITE)
}

// OpenSegment attaches to an existing named segment read-only.
func OpenSegment(name string) (Segment, error) {
	f, err := os.Open(filepath.Join(shmDir, name))
	if err != nil {
		return nil, fmt.Errorf("open shm segment %q: %w", name, err)
	}
	fi, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("stat shm segment %q: %w", name, err)
	}
	if fi.Size() < SegmentSize {
		f.Close()
		return nil, fmt.Errorf("shm segment %q: %w", name, ErrSegmentSize)
	}
	return mapSegment(name, f, unix.PROT_READ)
}

func mapSegment(name string, f *os.File, prot int) (Segment, error) {
	data, err := unix.Mmap(int(f.Fd()), 0, SegmentSize, prot, unix.MAP_SHARED)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("mmap shm segment %q: %w", name, err)
	}
	return &shmSegment{name: name, file: f, data: data}, nil
}

func (s *shmSegment) Bytes() []byte {
	return s.data
}

func (s *shmSegment) Close() error {
	if s.data != nil {
		unix.Munmap(s.data)
		s.data = nil
	}
	if s.file != nil {
		err := s.file.Close()
		s.file = nil
		return err
	}
	return nil
}

// Unlink removes a named segment. Called by the producer on teardown so
// the segment does not outlive the process tree.
func Unlink(name string) error {
	err := os.Remove(filepath.Join(shmDir, name))
	if err != nil && os.IsNotExist(err) {
		return nil
	}
	return err
}
