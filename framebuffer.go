// Copyright 2021-2024 Sebastian Lederer. See the file LICENSE.md for details
package main

import (
	"fmt"
	"math"

	"github.com/retroenv/retrogolib/log"
)

const DefaultTargetWidth = 640

const BytesPerPixel = 4 // RGBA

// VideoSource is the part of the core that describes its framebuffer.
type VideoSource interface {
	VideoWidth() int
	VideoHeight() int
	VideoBufferPointer() uint32
}

// Surface shows RGBA frames on the host. The scale factors stretch the
// native framebuffer to its displayed size.
type Surface interface {
	Resize(width, height int, scaleX, scaleY float64)
	SetBorder(rgb uint32)
	Present(pix []byte)
}

// Framebuffer copies the core's framebuffer to a surface once per display
// refresh.
type Framebuffer struct {
	logger      *log.Logger
	mem         Memory
	video       VideoSource
	surface     Surface
	targetWidth int

	width, height int
	pix           []byte
	border        uint32
	frames        uint64
}

func NewFramebuffer(logger *log.Logger, mem Memory, video VideoSource, surface Surface, targetWidth int) *Framebuffer {
	return &Framebuffer{
		logger:      logger,
		mem:         mem,
		video:       video,
		surface:     surface,
		targetWidth: targetWidth,
	}
}

// displayScale returns the horizontal and vertical factors that bring a
// native resolution to a 4:3 picture targetWidth pixels wide.
func displayScale(width, height, targetWidth int) (float64, float64) {
	aspect := (float64(width) / (4.0 / 3.0)) / float64(height)
	tscale := float64(targetWidth) / float64(width)
	return tscale, tscale * aspect
}

func (f *Framebuffer) SetBorder(rgb uint32) {
	f.border = rgb & 0xFFFFFF
	f.surface.SetBorder(f.border)
}

func (f *Framebuffer) Size() (int, int) {
	return f.width, f.height
}

func (f *Framebuffer) Frames() uint64 {
	return f.frames
}

// Refresh synchronizes the surface with the current framebuffer.
func (f *Framebuffer) Refresh() {
	width := f.video.VideoWidth()
	height := f.video.VideoHeight()
	if width <= 0 || height <= 0 {
		return
	}

	if width != f.width || height != f.height {
		f.resize(width, height)
	}

	src, ok := f.mem.Read(f.video.VideoBufferPointer(), uint32(len(f.pix)))
	if !ok {
		f.logger.Warn("framebuffer outside memory",
			log.String("ptr", fmt.Sprintf("0x%08X", f.video.VideoBufferPointer())),
			log.Int("size", len(f.pix)))
		return
	}
	copy(f.pix, src)
	f.surface.Present(f.pix)
	f.frames++
}

func (f *Framebuffer) resize(width, height int) {
	sx, sy := displayScale(width, height, f.targetWidth)
	f.surface.Resize(width, height, sx, sy)

	f.width, f.height = width, height
	f.pix = make([]byte, width*height*BytesPerPixel)

	f.logger.Info("resolution changed",
		log.String("native", fmt.Sprintf("%dx%d", width, height)),
		log.String("display", fmt.Sprintf("%dx%d", int(math.Round(float64(width)*sx)), int(math.Round(float64(height)*sy)))))
}
