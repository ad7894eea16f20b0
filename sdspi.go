// Copyright 2021-2024 Sebastian Lederer. See the file LICENSE.md for details
package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
)

const SectorSize = 512

// DiskImage is the in-memory backing store of the virtual hard disk.
type DiskImage struct {
	data     []byte
	location string
	dirty    bool
}

func (d *DiskImage) Loaded() bool {
	return d.data != nil
}

func (d *DiskImage) Size() int {
	return len(d.data)
}

func (d *DiskImage) Sectors() int {
	return len(d.data) / SectorSize
}

// Replace installs a freshly loaded image.
func (d *DiskImage) Replace(location string, data []byte) {
	d.data = data
	d.location = location
	d.dirty = false
}

func (d *DiskImage) inRange(off int64, n int) bool {
	return off >= 0 && n >= 0 && off+int64(n) <= int64(len(d.data))
}

func (d *DiskImage) ReadAt(p []byte, off int64) (int, error) {
	if !d.inRange(off, len(p)) {
		return 0, fmt.Errorf("read of %d bytes at %d outside disk image of %d bytes", len(p), off, len(d.data))
	}
	return copy(p, d.data[off:]), nil
}

func (d *DiskImage) WriteAt(p []byte, off int64) (int, error) {
	if !d.inRange(off, len(p)) {
		return 0, fmt.Errorf("write of %d bytes at %d outside disk image of %d bytes", len(p), off, len(d.data))
	}
	d.dirty = true
	return copy(d.data[off:], p), nil
}

type diskLoadResult struct {
	location string
	data     []byte
	err      error
}

// loadDiskImage fetches the image in the background. The result is
// delivered exactly once on the returned channel.
func loadDiskImage(ctx context.Context, location string) <-chan diskLoadResult {
	ch := make(chan diskLoadResult, 1)
	go func() {
		data, err := fetch(ctx, location)
		if err == nil && len(data) == 0 {
			err = fmt.Errorf("disk image %v is empty", location)
		}
		ch <- diskLoadResult{location: location, data: data, err: err}
	}()
	return ch
}

// Save writes a modified image back to the local file it came from.
// Returns false if there was nothing to write.
func (d *DiskImage) Save() (bool, error) {
	if !d.dirty || d.location == "" || isRemote(d.location) {
		return false, nil
	}

	tmp, err := os.CreateTemp(filepath.Dir(d.location), filepath.Base(d.location)+".*")
	if err != nil {
		return false, err
	}
	if _, err = tmp.Write(d.data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return false, err
	}
	if err = tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return false, err
	}
	if err = os.Rename(tmp.Name(), d.location); err != nil {
		os.Remove(tmp.Name())
		return false, err
	}
	d.dirty = false
	return true, nil
}
