//go:build !headless

// Copyright 2021-2024 Sebastian Lederer. See the file LICENSE.md for details

package main

import (
	"context"
	"fmt"
	"image/color"
	"math"
	"sync"
	"time"

	"github.com/hajimehoshi/ebiten/v2"
	"github.com/hajimehoshi/ebiten/v2/ebitenutil"
	"github.com/hajimehoshi/ebiten/v2/inpututil"
	"github.com/hajimehoshi/ebiten/v2/text"
	"github.com/retroenv/retrogolib/log"
	"golang.design/x/clipboard"
	"golang.org/x/image/font/basicfont"
)

const guiAvailable = true

const (
	borderSize    = 16
	maxPasteBytes = 4096
	statusHeight  = 18
)

// ebitenKeys maps physical keys to the key identity and location a
// browser would report for them.
var ebitenKeys = map[ebiten.Key]KeyEvent{
	ebiten.KeyEscape:       {Key: "Escape"},
	ebiten.KeyDigit1:       {Key: "1"},
	ebiten.KeyDigit2:       {Key: "2"},
	ebiten.KeyDigit3:       {Key: "3"},
	ebiten.KeyDigit4:       {Key: "4"},
	ebiten.KeyDigit5:       {Key: "5"},
	ebiten.KeyDigit6:       {Key: "6"},
	ebiten.KeyDigit7:       {Key: "7"},
	ebiten.KeyDigit8:       {Key: "8"},
	ebiten.KeyDigit9:       {Key: "9"},
	ebiten.KeyDigit0:       {Key: "0"},
	ebiten.KeyMinus:        {Key: "-"},
	ebiten.KeyEqual:        {Key: "="},
	ebiten.KeyBackspace:    {Key: "Backspace"},
	ebiten.KeyTab:          {Key: "Tab"},
	ebiten.KeyQ:            {Key: "q"},
	ebiten.KeyW:            {Key: "w"},
	ebiten.KeyE:            {Key: "e"},
	ebiten.KeyR:            {Key: "r"},
	ebiten.KeyT:            {Key: "t"},
	ebiten.KeyY:            {Key: "y"},
	ebiten.KeyU:            {Key: "u"},
	ebiten.KeyI:            {Key: "i"},
	ebiten.KeyO:            {Key: "o"},
	ebiten.KeyP:            {Key: "p"},
	ebiten.KeyBracketLeft:  {Key: "["},
	ebiten.KeyBracketRight: {Key: "]"},
	ebiten.KeyEnter:        {Key: "Enter"},
	ebiten.KeyControlLeft:  {Key: "Control", Location: LocationLeft},
	ebiten.KeyControlRight: {Key: "Control", Location: LocationRight},
	ebiten.KeyA:            {Key: "a"},
	ebiten.KeyS:            {Key: "s"},
	ebiten.KeyD:            {Key: "d"},
	ebiten.KeyF:            {Key: "f"},
	ebiten.KeyG:            {Key: "g"},
	ebiten.KeyH:            {Key: "h"},
	ebiten.KeyJ:            {Key: "j"},
	ebiten.KeyK:            {Key: "k"},
	ebiten.KeyL:            {Key: "l"},
	ebiten.KeySemicolon:    {Key: ";"},
	ebiten.KeyQuote:        {Key: "'"},
	ebiten.KeyBackquote:    {Key: "`"},
	ebiten.KeyShiftLeft:    {Key: "Shift", Location: LocationLeft},
	ebiten.KeyShiftRight:   {Key: "Shift", Location: LocationRight},
	ebiten.KeyBackslash:    {Key: "\\"},
	ebiten.KeyZ:            {Key: "z"},
	ebiten.KeyX:            {Key: "x"},
	ebiten.KeyC:            {Key: "c"},
	ebiten.KeyV:            {Key: "v"},
	ebiten.KeyB:            {Key: "b"},
	ebiten.KeyN:            {Key: "n"},
	ebiten.KeyM:            {Key: "m"},
	ebiten.KeyComma:        {Key: ","},
	ebiten.KeyPeriod:       {Key: "."},
	ebiten.KeySlash:        {Key: "/"},
	ebiten.KeyPrintScreen:  {Key: "PrintScreen"},
	ebiten.KeyAltLeft:      {Key: "Alt", Location: LocationLeft},
	ebiten.KeyAltRight:     {Key: "Alt", Location: LocationRight},
	ebiten.KeySpace:        {Key: " "},
	ebiten.KeyCapsLock:     {Key: "CapsLock"},
	ebiten.KeyF1:           {Key: "F1"},
	ebiten.KeyF2:           {Key: "F2"},
	ebiten.KeyF3:           {Key: "F3"},
	ebiten.KeyF4:           {Key: "F4"},
	ebiten.KeyF5:           {Key: "F5"},
	ebiten.KeyF6:           {Key: "F6"},
	ebiten.KeyF7:           {Key: "F7"},
	ebiten.KeyF8:           {Key: "F8"},
	ebiten.KeyF9:           {Key: "F9"},
	ebiten.KeyF10:          {Key: "F10"},
	ebiten.KeyNumLock:      {Key: "NumLock"},
	ebiten.KeyScrollLock:   {Key: "ScrollLock"},
	ebiten.KeyHome:         {Key: "Home"},
	ebiten.KeyArrowUp:      {Key: "ArrowUp"},
	ebiten.KeyPageUp:       {Key: "PageUp"},
	ebiten.KeyArrowLeft:    {Key: "ArrowLeft"},
	ebiten.KeyArrowRight:   {Key: "ArrowRight"},
	ebiten.KeyEnd:          {Key: "End"},
	ebiten.KeyArrowDown:    {Key: "ArrowDown"},
	ebiten.KeyPageDown:     {Key: "PageDown"},
	ebiten.KeyInsert:       {Key: "Insert"},
	ebiten.KeyDelete:       {Key: "Delete"},

	// keypad with num lock off
	ebiten.KeyNumpad7:        {Key: "Home", Location: LocationNumpad},
	ebiten.KeyNumpad8:        {Key: "ArrowUp", Location: LocationNumpad},
	ebiten.KeyNumpad9:        {Key: "PageUp", Location: LocationNumpad},
	ebiten.KeyNumpadSubtract: {Key: "Subtract", Location: LocationNumpad},
	ebiten.KeyNumpad4:        {Key: "ArrowLeft", Location: LocationNumpad},
	ebiten.KeyNumpad5:        {Key: "5", Location: LocationNumpad},
	ebiten.KeyNumpad6:        {Key: "ArrowRight", Location: LocationNumpad},
	ebiten.KeyNumpadAdd:      {Key: "Add", Location: LocationNumpad},
	ebiten.KeyNumpad1:        {Key: "End", Location: LocationNumpad},
	ebiten.KeyNumpad2:        {Key: "ArrowDown", Location: LocationNumpad},
	ebiten.KeyNumpad3:        {Key: "PageDown", Location: LocationNumpad},
	ebiten.KeyNumpad0:        {Key: "Insert", Location: LocationNumpad},
	ebiten.KeyNumpadDecimal:  {Key: "Delete", Location: LocationNumpad},
	ebiten.KeyNumpadMultiply: {Key: "PrintScreen", Location: LocationNumpad},
	ebiten.KeyNumpadDivide:   {Key: "/", Location: LocationNumpad},
	ebiten.KeyNumpadEnter:    {Key: "Enter", Location: LocationNumpad},
}

// hostKeys are handled by the window and never reach the emulator.
var hostKeys = map[ebiten.Key]bool{
	ebiten.KeyF11: true,
	ebiten.KeyF12: true,
}

// ebitenKeyEvent returns the key event for a physical key. Keys without a
// mapping keep ebiten's name so they are reported as unknown.
func ebitenKeyEvent(k ebiten.Key) (KeyEvent, bool) {
	if hostKeys[k] {
		return KeyEvent{}, false
	}
	if ev, ok := ebitenKeys[k]; ok {
		return ev, true
	}
	return KeyEvent{Key: k.String()}, true
}

func normalizePasteText(raw []byte) []byte {
	norm := make([]byte, 0, len(raw))
	for i := 0; i < len(raw); i++ {
		if raw[i] == '\r' {
			if i+1 < len(raw) && raw[i+1] == '\n' {
				i++
			}
			norm = append(norm, '\n')
			continue
		}
		norm = append(norm, raw[i])
	}
	return norm
}

func capPasteText(raw []byte, max int) []byte {
	if len(raw) <= max {
		return raw
	}
	return raw[:max]
}

// ebitenSurface keeps the latest frame in an image drawn scaled inside a
// border of the core's border colour.
type ebitenSurface struct {
	image          *ebiten.Image
	width, height  int
	scaleX, scaleY float64
	border         color.RGBA
}

func newGUISurface() Surface {
	return &ebitenSurface{border: color.RGBA{A: 0xFF}}
}

func (s *ebitenSurface) Resize(width, height int, scaleX, scaleY float64) {
	if s.image != nil {
		s.image.Deallocate()
	}
	s.image = ebiten.NewImage(width, height)
	s.width, s.height = width, height
	s.scaleX, s.scaleY = scaleX, scaleY

	w, h := s.screenSize()
	if !ebiten.IsFullscreen() {
		ebiten.SetWindowSize(w, h)
	}
}

func (s *ebitenSurface) SetBorder(rgb uint32) {
	s.border = color.RGBA{R: byte(rgb >> 16), G: byte(rgb >> 8), B: byte(rgb), A: 0xFF}
}

func (s *ebitenSurface) Present(pix []byte) {
	if s.image != nil {
		s.image.WritePixels(pix)
	}
}

// screenSize is the logical screen: the scaled picture plus the border.
func (s *ebitenSurface) screenSize() (int, int) {
	if s.image == nil {
		return DefaultTargetWidth + 2*borderSize, DefaultTargetWidth*3/4 + 2*borderSize
	}
	w := int(math.Round(float64(s.width) * s.scaleX))
	h := int(math.Round(float64(s.height) * s.scaleY))
	return w + 2*borderSize, h + 2*borderSize
}

func (s *ebitenSurface) draw(screen *ebiten.Image) {
	screen.Fill(s.border)
	if s.image == nil {
		return
	}
	op := &ebiten.DrawImageOptions{}
	op.GeoM.Scale(s.scaleX, s.scaleY)
	op.GeoM.Translate(borderSize, borderSize)
	op.Filter = ebiten.FilterLinear
	screen.DrawImage(s.image, op)
}

type ebitenGame struct {
	ctx     context.Context
	logger  *log.Logger
	session *Session
	surface *ebitenSurface

	keys             []ebiten.Key
	swallowed        map[ebiten.Key]bool
	showStatus       bool
	lastHousekeeping time.Time

	clipboardOnce sync.Once
	clipboardOK   bool
}

// Update runs at the tick rate: bring-up, input, then the owed cycles.
func (g *ebitenGame) Update() error {
	if ebiten.IsWindowBeingClosed() {
		return ErrTerminated
	}
	if err := g.ctx.Err(); err != nil {
		return err
	}

	now := time.Now()
	if _, err := g.session.Poll(now); err != nil {
		return err
	}

	g.handleHostKeys()
	if err := g.handleKeys(); err != nil {
		return err
	}

	if err := g.session.Tick(now); err != nil {
		return err
	}

	if now.Sub(g.lastHousekeeping) >= HousekeepingInterval {
		g.session.Housekeeping(now)
		g.lastHousekeeping = now
	}
	return nil
}

func (g *ebitenGame) handleHostKeys() {
	if inpututil.IsKeyJustPressed(ebiten.KeyF11) {
		ebiten.SetFullscreen(!ebiten.IsFullscreen())
	}
	if inpututil.IsKeyJustPressed(ebiten.KeyF12) {
		g.showStatus = !g.showStatus
	}

	ctrl := ebiten.IsKeyPressed(ebiten.KeyControlLeft) || ebiten.IsKeyPressed(ebiten.KeyControlRight)
	shift := ebiten.IsKeyPressed(ebiten.KeyShiftLeft) || ebiten.IsKeyPressed(ebiten.KeyShiftRight)
	if ctrl && shift && inpututil.IsKeyJustPressed(ebiten.KeyV) {
		// the chord's V never reaches the guest
		g.swallowed[ebiten.KeyV] = true
		g.paste()
	}
}

func (g *ebitenGame) handleKeys() error {
	g.keys = inpututil.AppendJustPressedKeys(g.keys[:0])
	for _, k := range g.keys {
		ev, ok := ebitenKeyEvent(k)
		if !ok || g.swallowed[k] {
			continue
		}
		if err := g.session.KeyDown(&ev); err != nil {
			return fmt.Errorf("sending key: %w", err)
		}
	}

	g.keys = inpututil.AppendJustReleasedKeys(g.keys[:0])
	for _, k := range g.keys {
		if g.swallowed[k] {
			delete(g.swallowed, k)
			continue
		}
		ev, ok := ebitenKeyEvent(k)
		if !ok {
			continue
		}
		if err := g.session.KeyUp(&ev); err != nil {
			return fmt.Errorf("sending key: %w", err)
		}
	}
	return nil
}

func (g *ebitenGame) paste() {
	g.clipboardOnce.Do(func() {
		if err := clipboard.Init(); err != nil {
			g.logger.Warn("clipboard not available", log.Err(err))
			return
		}
		g.clipboardOK = true
	})
	if !g.clipboardOK {
		return
	}

	data := clipboard.Read(clipboard.FmtText)
	if len(data) == 0 {
		return
	}
	data = capPasteText(normalizePasteText(data), maxPasteBytes)
	g.session.TypeStrokes(typeText(string(data)))
	g.logger.Debug("pasted clipboard text", log.Int("bytes", len(data)))
}

func (g *ebitenGame) Draw(screen *ebiten.Image) {
	g.session.Present()
	g.surface.draw(screen)
	if g.showStatus {
		g.drawStatus(screen)
	}
}

func (g *ebitenGame) drawStatus(screen *ebiten.Image) {
	st := g.session.Status()
	w, h := screen.Bounds().Dx(), screen.Bounds().Dy()
	y := h - statusHeight
	ebitenutil.DrawRect(screen, 0, float64(y), float64(w), statusHeight, color.RGBA{0, 0, 0, 180})

	status := "loading"
	if st.Running {
		status = fmt.Sprintf("%.2f MHz  %dx%d", st.MHz, st.Width, st.Height)
	}
	if n := g.session.Pending(); n > 0 {
		status += fmt.Sprintf("  typing %d", n)
	}
	text.Draw(screen, status, basicfont.Face7x13, 6, y+13, color.RGBA{0, 220, 90, 255})

	legend := "F11 Fullscreen  F12 Status"
	legendW := text.BoundString(basicfont.Face7x13, legend).Dx()
	text.Draw(screen, legend, basicfont.Face7x13, max(w-legendW-6, 6), y+13, color.RGBA{160, 160, 160, 255})
}

func (g *ebitenGame) Layout(_, _ int) (int, int) {
	return g.surface.screenSize()
}

// runGUI runs the session in a window until it is closed.
func runGUI(ctx context.Context, logger *log.Logger, cfg *Config, s *Session, surface Surface) error {
	es, ok := surface.(*ebitenSurface)
	if !ok {
		return fmt.Errorf("unexpected surface type %T", surface)
	}

	g := &ebitenGame{
		ctx:        ctx,
		logger:     logger,
		session:    s,
		surface:    es,
		swallowed:  make(map[ebiten.Key]bool),
		showStatus: true,
	}

	w, h := es.screenSize()
	ebiten.SetWindowSize(w, h)
	ebiten.SetWindowTitle("xthost")
	ebiten.SetWindowResizable(true)
	ebiten.SetWindowClosingHandled(true)
	ebiten.SetRunnableOnUnfocused(true)
	ebiten.SetTPS(cfg.TPS)

	return ebiten.RunGame(g)
}
