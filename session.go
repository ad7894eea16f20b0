// Copyright 2021-2024 Sebastian Lederer. See the file LICENSE.md for details
package main

import (
	"context"
	"errors"
	"cmp"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/retroenv/retrogolib/log"
)

// ErrTerminated ends a session on user request.
var ErrTerminated = errors.New("terminated")

// HousekeepingInterval is the period of the frequency report and the audio
// resume attempt.
const HousekeepingInterval = time.Second

// typeInterval spaces out typed key strokes so the keyboard buffer of the
// guest does not overflow.
const typeInterval = 20 * time.Millisecond

// modifierKeys are lifted in the guest before typed strokes are sent.
var modifierKeys = map[string]bool{
	"Shift":   true,
	"Control": true,
	"Alt":     true,
}

type heldKey struct {
	key      string
	location Location
}

// Status is a snapshot for status displays.
type Status struct {
	Running bool
	MHz     float64
	Width   int
	Height  int
	Frames  uint64
}

// Session owns every resource of one emulator run and serves the core's
// host callbacks.
type Session struct {
	cfg     *Config
	logger  *log.Logger
	loader  CoreLoader
	surface Surface
	audio   *AudioBridge
	now     func() time.Time

	disk    *DiskImage
	pacer   *Pacer
	bringup *Bringup

	core   Core
	mem    Memory
	bridge *DiskBridge
	fb     *Framebuffer
	keys   *KeyTranslator

	start    time.Time
	running  bool
	mhz      float64
	typing   []KeyStroke
	nextType time.Time

	// held are modifiers down in the guest, lifted those released in the
	// guest while still held on the host.
	held   map[heldKey]bool
	lifted map[heldKey]bool
}

func NewSession(cfg *Config, logger *log.Logger, loader CoreLoader, surface Surface, audio *AudioBridge) *Session {
	return &Session{
		cfg:     cfg,
		logger:  logger,
		loader:  loader,
		surface: surface,
		audio:   audio,
		now:     time.Now,
		disk:    &DiskImage{},
		pacer:   NewPacer(cfg.FreqMHz),
		held:    make(map[heldKey]bool),
		lifted:  make(map[heldKey]bool),
	}
}

// Start begins loading the core and the disk image.
func (s *Session) Start(ctx context.Context) {
	s.start = s.now()
	s.logger.Info("loading",
		log.String("core", s.cfg.CoreBinary),
		log.String("disk", s.cfg.DiskImage))
	s.bringup = StartBringup(ctx, s.loader, s, s.cfg.DiskImage)
}

// Poll advances bring-up. It returns true once the core is running.
func (s *Session) Poll(now time.Time) (bool, error) {
	if s.running {
		return true, nil
	}
	if s.bringup == nil {
		return false, nil
	}

	core, disk, err := s.bringup.Poll()
	if err != nil || core == nil {
		return false, err
	}

	s.core, s.mem = core.core, core.mem
	s.bridge = NewDiskBridge(s.logger, s.mem, s.disk)
	s.fb = NewFramebuffer(s.logger, s.mem, s.core, s.surface, s.cfg.TargetWidth)
	s.keys = NewKeyTranslator(s.logger, s.core)

	s.disk.Replace(disk.location, disk.data)
	s.logger.Info("disk image loaded",
		log.String("location", disk.location),
		log.Int("size", s.disk.Size()),
		log.Int("sectors", s.disk.Sectors()))
	if s.disk.Size()%SectorSize != 0 {
		s.logger.Warn("disk image size is not a multiple of the sector size", log.Int("size", s.disk.Size()))
	}

	if err := s.core.Initialize(); err != nil {
		return false, fmt.Errorf("initializing core: %w", err)
	}
	s.pacer.Start(now)
	s.running = true
	s.logger.Info("emulation started",
		log.String("freq", fmt.Sprintf("%.2f MHz", s.cfg.FreqMHz)),
		log.Int("cap", s.pacer.Cap()))
	return true, nil
}

// Tick runs the core for the time elapsed since the previous tick.
func (s *Session) Tick(now time.Time) error {
	if !s.running {
		return nil
	}

	if len(s.typing) > 0 && !now.Before(s.nextType) {
		stroke := s.typing[0]
		s.typing = s.typing[1:]
		s.nextType = now.Add(typeInterval)
		if err := s.keys.Type(stroke); err != nil {
			return fmt.Errorf("sending key: %w", err)
		}
	}

	if err := s.pacer.Tick(now, s.core.Step); err != nil {
		return fmt.Errorf("stepping core: %w", err)
	}
	return nil
}

// Present refreshes the surface from the core's framebuffer.
func (s *Session) Present() {
	if !s.running {
		return
	}
	s.fb.Refresh()
}

// Housekeeping reports the achieved frequency and retries audio.
func (s *Session) Housekeeping(now time.Time) {
	if !s.running {
		return
	}
	s.mhz = s.pacer.Report(now)
	s.logger.Debug("frequency", log.String("mhz", fmt.Sprintf("%.2f", s.mhz)))
	s.audio.Wake()
}

// KeyDown and KeyUp forward host key events while the core is running.
func (s *Session) KeyDown(ev *KeyEvent) error {
	if !s.running {
		return nil
	}
	s.audio.Wake()

	forwarded := !ev.Handled
	if err := s.keys.KeyDown(ev); err != nil {
		return err
	}
	if forwarded && ev.Handled && modifierKeys[ev.Key] {
		k := heldKey{ev.Key, ev.Location}
		s.held[k] = true
		delete(s.lifted, k)
	}
	return nil
}

func (s *Session) KeyUp(ev *KeyEvent) error {
	if !s.running {
		return nil
	}
	k := heldKey{ev.Key, ev.Location}
	delete(s.held, k)
	if s.lifted[k] {
		delete(s.lifted, k)
		return nil
	}
	return s.keys.KeyUp(ev)
}

// TypeStrokes queues strokes to be sent one per typeInterval. Modifiers
// held in the guest are released first so they do not alter the text.
func (s *Session) TypeStrokes(strokes []KeyStroke) {
	if !s.running || len(strokes) == 0 {
		return
	}
	s.audio.Wake()

	held := make([]heldKey, 0, len(s.held))
	for k := range s.held {
		held = append(held, k)
	}
	slices.SortFunc(held, func(a, b heldKey) int {
		return cmp.Or(cmp.Compare(a.key, b.key), cmp.Compare(a.location, b.location))
	})
	for _, k := range held {
		s.typing = append(s.typing, KeyStroke{Event: KeyEvent{Key: k.key, Location: k.location}, Up: true})
		s.lifted[k] = true
	}
	clear(s.held)

	s.typing = append(s.typing, strokes...)
}

func (s *Session) Pending() int {
	return len(s.typing)
}

func (s *Session) Status() Status {
	st := Status{Running: s.running, MHz: s.mhz}
	if s.fb != nil {
		st.Width, st.Height = s.fb.Size()
		st.Frames = s.fb.Frames()
	}
	return st
}

// Close releases the core and the audio device. A modified local disk image
// is written back when enabled.
func (s *Session) Close() error {
	var errs []error

	if s.bringup != nil {
		s.bringup.Close()
	}
	if s.bridge != nil && s.bridge.Violations() > 0 {
		s.logger.Warn("disk requests dropped", log.Int("count", s.bridge.Violations()))
	}
	if s.cfg.WriteBack && s.disk.Loaded() {
		saved, err := s.disk.Save()
		switch {
		case err != nil:
			errs = append(errs, fmt.Errorf("writing disk image: %w", err))
		case saved:
			s.logger.Info("disk image written", log.String("location", s.cfg.DiskImage))
		}
	}
	if err := s.audio.Close(); err != nil {
		errs = append(errs, fmt.Errorf("closing audio: %w", err))
	}
	if s.core != nil {
		if err := s.core.Close(); err != nil {
			errs = append(errs, fmt.Errorf("closing core: %w", err))
		}
		s.core = nil
	}
	s.running = false
	return errors.Join(errs...)
}

func (s *Session) DiskRead(ptr, size, head uint32) {
	if s.bridge != nil {
		s.bridge.Read(ptr, size, head)
	}
}

func (s *Session) DiskWrite(ptr, size, head uint32) {
	if s.bridge != nil {
		s.bridge.Write(ptr, size, head)
	}
}

func (s *Session) DiskSize() uint32 {
	if s.bridge == nil {
		return 0
	}
	return s.bridge.Size()
}

// Microseconds is the time since the session started.
func (s *Session) Microseconds() float64 {
	return float64(s.now().Sub(s.start)) / float64(time.Microsecond)
}

func (s *Session) SetSpeakerFrequency(hz float64) {
	s.audio.SetFrequency(hz)
}

func (s *Session) SetBorderColor(rgb uint32) {
	if s.fb != nil {
		s.fb.SetBorder(rgb)
	}
}

func (s *Session) LogString(ptr, n uint32) {
	if s.mem == nil {
		return
	}
	msg, ok := memoryString(s.mem, ptr, n)
	if !ok {
		s.logger.Warn("core log string outside memory",
			log.String("ptr", fmt.Sprintf("0x%08X", ptr)),
			log.Int("size", int(n)))
		return
	}
	if msg = strings.TrimRight(msg, "\r\n"); msg != "" {
		s.logger.Info(msg)
	}
}
