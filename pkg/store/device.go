// Package store persists the actuator's calibration and position in a
// small fixed-layout record, the way the firmware kept it in EEPROM.
// The record lives on a byte device: a fixed-size file image on real
// installs, or an in-memory buffer for tests.
package store

import (
	"fmt"
	"io"
	"os"

	"golang.org/x/sys/unix"
)

// Device is a fixed-size random-access byte store.
type Device interface {
	io.ReaderAt
	io.WriterAt
	Size() int64
	Close() error
}

// FileDevice is a Device over a fixed-size file image. The file is
// created zero-filled if missing and held under an exclusive advisory
// lock so two daemons cannot share one image.
type FileDevice struct {
	f    *os.File
	size int64
}

// OpenFile opens (or creates) the image at path with the given size.
func OpenFile(path string, size int64) (*FileDevice, error) {
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0644)
	if err != nil {
		return nil, fmt.Errorf("store: open %s: %w", path, err)
	}

	if err := unix.Flock(int(f.Fd()), unix.LOCK_EX|unix.LOCK_NB); err != nil {
		f.Close()
		return nil, fmt.Errorf("store: lock %s (already in use?): %w", path, err)
	}

	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("store: stat %s: %w", path, err)
	}
	if info.Size() < size {
		if err := f.Truncate(size); err != nil {
			f.Close()
			return nil, fmt.Errorf("store: grow %s: %w", path, err)
		}
	}

	return &FileDevice{f: f, size: size}, nil
}

func (d *FileDevice) ReadAt(p []byte, off int64) (int, error) {
	if err := d.checkRange(off, len(p)); err != nil {
		return 0, err
	}
	return d.f.ReadAt(p, off)
}

// WriteAt writes and syncs, so a power cut after a save cannot lose it.
func (d *FileDevice) WriteAt(p []byte, off int64) (int, error) {
	if err := d.checkRange(off, len(p)); err != nil {
		return 0, err
	}
	n, err := d.f.WriteAt(p, off)
	if err != nil {
		return n, err
	}
	return n, d.f.Sync()
}

func (d *FileDevice) Size() int64 {
	return d.size
}

// Close releases the lock and closes the file.
func (d *FileDevice) Close() error {
	unix.Flock(int(d.f.Fd()), unix.LOCK_UN)
	return d.f.Close()
}

func (d *FileDevice) checkRange(off int64, n int) error {
	if off < 0 || off+int64(n) > d.size {
		return fmt.Errorf("store: access [%d,%d) outside device of %d bytes", off, off+int64(n), d.size)
	}
	return nil
}

// MemDevice is an in-memory Device for tests.
type MemDevice struct {
	buf     []byte
	failAll bool
}

// NewMemDevice creates a zeroed in-memory device of the given size.
func NewMemDevice(size int) *MemDevice {
	return &MemDevice{buf: make([]byte, size)}
}

// FailAll makes every subsequent read and write return an error.
func (d *MemDevice) FailAll() {
	d.failAll = true
}

func (d *MemDevice) ReadAt(p []byte, off int64) (int, error) {
	if d.failAll {
		return 0, fmt.Errorf("store: device failure")
	}
	if off < 0 || off+int64(len(p)) > int64(len(d.buf)) {
		return 0, fmt.Errorf("store: access outside device of %d bytes", len(d.buf))
	}
	return copy(p, d.buf[off:]), nil
}

func (d *MemDevice) WriteAt(p []byte, off int64) (int, error) {
	if d.failAll {
		return 0, fmt.Errorf("store: device failure")
	}
	if off < 0 || off+int64(len(p)) > int64(len(d.buf)) {
		return 0, fmt.Errorf("store: access outside device of %d bytes", len(d.buf))
	}
	return copy(d.buf[off:], p), nil
}

func (d *MemDevice) Size() int64 {
	return int64(len(d.buf))
}

func (d *MemDevice) Close() error {
	return nil
}
