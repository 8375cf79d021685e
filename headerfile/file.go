// Copyright (c) 2024 The Flokicoin developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package headerfile implements fixed-record file I/O for one chain's
// backing header file: append, overwrite-at-offset, truncate, size, and
// sparse preallocation of the checkpointed prefix. Offsets are pure
// multiplication by the record size; a record of all-zero bytes is the
// sentinel for "not yet written" inside a sparse region.
package headerfile

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	"github.com/decred/dcrd/lru"
)

// cacheSize bounds the number of recently-read records kept in memory so
// repeated tip reads (get_hash/get_chainwork on the last few headers)
// skip the disk.
const cacheSize = 256

// File is a fixed-record file: every record is exactly RecordSize bytes,
// and the record at delta d occupies byte offset d*RecordSize.
type File struct {
	mu         sync.Mutex
	path       string
	recordSize int64
	f          *os.File
	size       int64 // in records

	cache *lru.Map[int64, []byte]
}

// Open opens (creating if necessary) the fixed-record file at path.
func Open(path string, recordSize int64) (*File, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		if !os.IsExist(err) {
			return nil, fmt.Errorf("headerfile: creating directory for %s: %w", path, err)
		}
	}
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0644)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("headerfile: %s: directory missing: %w", path, err)
		}
		return nil, fmt.Errorf("headerfile: opening %s: %w", path, err)
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, err
	}
	hf := &File{
		path:       path,
		recordSize: recordSize,
		f:          f,
		size:       info.Size() / recordSize,
		cache:      lru.NewMap[int64, []byte](cacheSize),
	}
	return hf, nil
}

// Path returns the file's current on-disk path. Never cached by callers:
// a swap renames the underlying file out from under a live Chain object.
func (hf *File) Path() string {
	hf.mu.Lock()
	defer hf.mu.Unlock()
	return hf.path
}

// Size returns the number of complete records currently in the file.
func (hf *File) Size() int64 {
	hf.mu.Lock()
	defer hf.mu.Unlock()
	return hf.size
}

// RecordSize returns the fixed record length this file was opened with.
func (hf *File) RecordSize() int64 {
	return hf.recordSize
}

// Write writes data at the given byte offset. If truncate is true and
// offset does not equal the file's current byte size, the file is first
// truncated at offset (discarding anything beyond it) before writing.
// The write is flushed and fsynced before returning, and size is
// recomputed from the resulting file length.
func (hf *File) Write(data []byte, offset int64, truncate bool) error {
	hf.mu.Lock()
	defer hf.mu.Unlock()

	info, err := hf.f.Stat()
	if err != nil {
		return fmt.Errorf("headerfile: stat %s: %w", hf.path, err)
	}
	if truncate && offset != info.Size() {
		if err := hf.f.Truncate(offset); err != nil {
			return fmt.Errorf("headerfile: truncate %s at %d: %w", hf.path, offset, err)
		}
		hf.invalidateFrom(offset / hf.recordSize)
	}

	if _, err := hf.f.WriteAt(data, offset); err != nil {
		return fmt.Errorf("headerfile: write %s at %d: %w", hf.path, offset, err)
	}
	if err := hf.f.Sync(); err != nil {
		return fmt.Errorf("headerfile: fsync %s: %w", hf.path, err)
	}

	info, err = hf.f.Stat()
	if err != nil {
		return fmt.Errorf("headerfile: stat %s: %w", hf.path, err)
	}
	hf.size = info.Size() / hf.recordSize
	hf.invalidateFrom(offset / hf.recordSize)
	return nil
}

// ReadRecord reads the record at the given record index (delta). A
// record of all-zero bytes — the sparse-preallocated sentinel — is
// reported as absent (nil, nil).
func (hf *File) ReadRecord(delta int64) ([]byte, error) {
	hf.mu.Lock()
	defer hf.mu.Unlock()

	if cached, ok := hf.cache.Get(delta); ok {
		if isZero(cached) {
			return nil, nil
		}
		out := make([]byte, len(cached))
		copy(out, cached)
		return out, nil
	}

	buf := make([]byte, hf.recordSize)
	n, err := hf.f.ReadAt(buf, delta*hf.recordSize)
	if err != nil {
		if err == io.EOF {
			return nil, nil
		}
		if n != int(hf.recordSize) {
			return nil, fmt.Errorf("headerfile: read %s record %d: %w", hf.path, delta, err)
		}
	}

	hf.cache.Put(delta, buf)
	if isZero(buf) {
		return nil, nil
	}
	out := make([]byte, len(buf))
	copy(out, buf)
	return out, nil
}

// ReadRange reads count consecutive records starting at record index
// start, concatenated. Absent (sparse) records read back as all-zero
// bytes rather than being skipped, so the result is always exactly
// count*RecordSize bytes — callers that splice this straight into
// another file's Write rely on that.
func (hf *File) ReadRange(start, count int64) ([]byte, error) {
	if count <= 0 {
		return nil, nil
	}
	out := make([]byte, 0, count*hf.recordSize)
	for i := int64(0); i < count; i++ {
		rec, err := hf.ReadRecord(start + i)
		if err != nil {
			return nil, err
		}
		if rec == nil {
			rec = make([]byte, hf.recordSize)
		}
		out = append(out, rec...)
	}
	return out, nil
}

// ReadAll reads every record currently in the file.
func (hf *File) ReadAll() ([]byte, error) {
	hf.mu.Lock()
	size := hf.size
	hf.mu.Unlock()
	return hf.ReadRange(0, size)
}

// EnsurePreallocated grows the file to at least length bytes using the
// platform's sparse-file truncate facility; it never shrinks the file.
// Positions beyond what has actually been written read back as
// all-zero records (absent), exactly as a record that was never
// written at all.
func (hf *File) EnsurePreallocated(length int64) error {
	hf.mu.Lock()
	defer hf.mu.Unlock()

	info, err := hf.f.Stat()
	if err != nil {
		return err
	}
	if info.Size() >= length {
		return nil
	}
	if err := hf.f.Truncate(length); err != nil {
		return fmt.Errorf("headerfile: preallocate %s to %d: %w", hf.path, length, err)
	}
	hf.size = length / hf.recordSize
	return nil
}

// Rename moves the file to newPath. The open file descriptor remains
// valid; callers must not cache Path()'s result across a Rename.
func (hf *File) Rename(newPath string) error {
	hf.mu.Lock()
	defer hf.mu.Unlock()
	if err := os.MkdirAll(filepath.Dir(newPath), 0755); err != nil && !os.IsExist(err) {
		return err
	}
	if err := os.Rename(hf.path, newPath); err != nil {
		return fmt.Errorf("headerfile: rename %s -> %s: %w", hf.path, newPath, err)
	}
	hf.path = newPath
	return nil
}

// Remove closes and deletes the backing file.
func (hf *File) Remove() error {
	hf.mu.Lock()
	defer hf.mu.Unlock()
	hf.f.Close()
	if err := os.Remove(hf.path); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

// Reset truncates the file to zero length, discarding every record. Used
// when a consistency check finds the best chain's file inconsistent with
// its checkpoints and the safest recovery is to start over.
func (hf *File) Reset() error {
	hf.mu.Lock()
	defer hf.mu.Unlock()
	if err := hf.f.Truncate(0); err != nil {
		return fmt.Errorf("headerfile: reset %s: %w", hf.path, err)
	}
	hf.size = 0
	hf.cache = lru.NewMap[int64, []byte](cacheSize)
	return nil
}

// Close releases the underlying file descriptor without deleting data.
func (hf *File) Close() error {
	hf.mu.Lock()
	defer hf.mu.Unlock()
	return hf.f.Close()
}

func (hf *File) invalidateFrom(delta int64) {
	// lru.Map has no range-delete; the cache is small and self-heals
	// (stale entries are simply overwritten on next read/write of the
	// same delta), so a cheap full reset is clearer than tracking a
	// dirty floor.
	hf.cache = lru.NewMap[int64, []byte](cacheSize)
}

func isZero(b []byte) bool {
	return bytes.Count(b, []byte{0}) == len(b)
}
