// Copyright 2021-2024 Sebastian Lederer. See the file LICENSE.md for details
package main

import (
	"fmt"

	"github.com/retroenv/retrogolib/log"
)

// DiskBridge services the core's disk requests by copying between a window
// of linear memory and the disk image.
type DiskBridge struct {
	mem    Memory
	disk   *DiskImage
	logger *log.Logger

	violations int
}

func NewDiskBridge(logger *log.Logger, mem Memory, disk *DiskImage) *DiskBridge {
	return &DiskBridge{mem: mem, disk: disk, logger: logger}
}

// Read copies size bytes at head in the image to ptr in memory.
func (b *DiskBridge) Read(ptr, size, head uint32) {
	view, ok := b.window("read", ptr, size, head)
	if !ok {
		return
	}
	b.disk.ReadAt(view, int64(head))
}

// Write copies size bytes at ptr in memory to head in the image.
func (b *DiskBridge) Write(ptr, size, head uint32) {
	view, ok := b.window("write", ptr, size, head)
	if !ok {
		return
	}
	b.disk.WriteAt(view, int64(head))
}

func (b *DiskBridge) Size() uint32 {
	return uint32(b.disk.Size())
}

func (b *DiskBridge) Violations() int {
	return b.violations
}

// window returns the memory range of a request after checking both ends of
// the copy. Out of range requests are dropped whole.
func (b *DiskBridge) window(op string, ptr, size, head uint32) ([]byte, bool) {
	view, ok := b.mem.Read(ptr, size)
	if ok && b.disk.inRange(int64(head), int(size)) {
		return view, true
	}

	b.violations++
	b.logger.Warn("disk request out of range",
		log.String("op", op),
		log.String("ptr", fmt.Sprintf("0x%08X", ptr)),
		log.Int("size", int(size)),
		log.String("head", fmt.Sprintf("0x%08X", head)),
		log.Int("image_size", b.disk.Size()))
	return nil, false
}
