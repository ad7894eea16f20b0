// Copyright 2021-2024 Sebastian Lederer. See the file LICENSE.md for details
package main

import (
	"context"
	"encoding/binary"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/retroenv/retrogolib/assert"
	"github.com/retroenv/retrogolib/log"
	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"
)

type recordingHost struct {
	diskSize uint32
	freqs    []float64
	borders  []uint32
	reads    [][3]uint32
	writes   [][3]uint32
	lines    [][2]uint32
}

func (h *recordingHost) DiskRead(ptr, size, head uint32) {
	h.reads = append(h.reads, [3]uint32{ptr, size, head})
}

func (h *recordingHost) DiskWrite(ptr, size, head uint32) {
	h.writes = append(h.writes, [3]uint32{ptr, size, head})
}

func (h *recordingHost) DiskSize() uint32              { return h.diskSize }
func (h *recordingHost) Microseconds() float64         { return 1234.5 }
func (h *recordingHost) SetSpeakerFrequency(f float64) { h.freqs = append(h.freqs, f) }
func (h *recordingHost) SetBorderColor(rgb uint32)     { h.borders = append(h.borders, rgb) }
func (h *recordingHost) LogString(ptr, n uint32)       { h.lines = append(h.lines, [2]uint32{ptr, n}) }

// testGuest assembles a module that imports its memory and two host
// functions. It exports "size" returning js_disk_size() and "beep" calling
// js_speaker_callback(440).
func testGuest(minPages, maxPages uint32, extraImport string) []byte {
	types := appendU32(nil, 3)
	types = append(types, functionTypeTag, 0x00, 0x01, 0x7F) // () -> i32
	types = append(types, functionTypeTag, 0x01, 0x7C, 0x00) // (f64) -> ()
	types = append(types, functionTypeTag, 0x00, 0x00)       // () -> ()

	count := uint32(3)
	if extraImport != "" {
		count++
	}
	imps := appendU32(nil, count)
	imps = appendName(appendName(imps, envModuleName), "js_disk_size")
	imps = append(imps, 0x00, 0x00)
	imps = appendName(appendName(imps, envModuleName), "js_speaker_callback")
	imps = append(imps, 0x00, 0x01)
	if extraImport != "" {
		imps = appendName(appendName(imps, envModuleName), extraImport)
		imps = append(imps, 0x00, 0x02)
	}
	imps = appendName(appendName(imps, envModuleName), memoryName)
	imps = append(imps, 0x02, 0x01)
	imps = appendU32(imps, minPages)
	imps = appendU32(imps, maxPages)

	funcs := []byte{0x02, 0x00, 0x02}

	first := count - 1 // index of the first defined function
	exps := appendU32(nil, 2)
	exps = appendName(exps, "size")
	exps = append(exps, 0x00)
	exps = appendU32(exps, first)
	exps = appendName(exps, "beep")
	exps = append(exps, 0x00)
	exps = appendU32(exps, first+1)

	size := []byte{0x00, 0x10, 0x00, 0x0B}
	beep := []byte{0x00, 0x44}
	beep = binary.LittleEndian.AppendUint64(beep, math.Float64bits(440))
	beep = append(beep, 0x10, 0x01, 0x0B)

	code := appendU32(nil, 2)
	code = appendU32(code, uint32(len(size)))
	code = append(code, size...)
	code = appendU32(code, uint32(len(beep)))
	code = append(code, beep...)

	bin := []byte{0x00, 'a', 's', 'm', 0x01, 0x00, 0x00, 0x00}
	bin = appendSection(bin, 1, types)
	bin = appendSection(bin, 2, imps)
	bin = appendSection(bin, 3, funcs)
	bin = appendSection(bin, 7, exps)
	return appendSection(bin, 10, code)
}

// coreGuest assembles a module with the exports of an emulation core.
// Initialize calls js_disk_read(1, 2, 3), step and send_key pass their
// argument as size to js_disk_read with head 0 and 1. The video queries
// return 320x200 at 0x1000.
func coreGuest(minPages, maxPages uint32) []byte {
	types := appendU32(nil, 4)
	types = append(types, functionTypeTag, 0x03, 0x7F, 0x7F, 0x7F, 0x00) // (i32, i32, i32) -> ()
	types = append(types, functionTypeTag, 0x00, 0x00)                   // () -> ()
	types = append(types, functionTypeTag, 0x01, 0x7F, 0x00)             // (i32) -> ()
	types = append(types, functionTypeTag, 0x00, 0x01, 0x7F)             // () -> i32

	imps := appendU32(nil, 2)
	imps = appendName(appendName(imps, envModuleName), "js_disk_read")
	imps = append(imps, 0x00, 0x00)
	imps = appendName(appendName(imps, envModuleName), memoryName)
	imps = append(imps, 0x02, 0x01)
	imps = appendU32(imps, minPages)
	imps = appendU32(imps, maxPages)

	exports := []struct {
		name string
		typ  byte
		body []byte
	}{
		{"wasm_initialize_emulator", 1, []byte{0x41, 0x01, 0x41, 0x02, 0x41, 0x03, 0x10, 0x00}},
		{"wasm_step_emulation", 2, []byte{0x41, 0x00, 0x20, 0x00, 0x41, 0x00, 0x10, 0x00}},
		{"wasm_video_width", 3, []byte{0x41, 0xC0, 0x02}},
		{"wasm_video_height", 3, []byte{0x41, 0xC8, 0x01}},
		{"wasm_video_rgba_memory_pointer", 3, []byte{0x41, 0x80, 0x20}},
		{"wasm_send_key", 2, []byte{0x41, 0x00, 0x20, 0x00, 0x41, 0x01, 0x10, 0x00}},
	}

	funcs := appendU32(nil, uint32(len(exports)))
	exps := appendU32(nil, uint32(len(exports)))
	code := appendU32(nil, uint32(len(exports)))
	for i, e := range exports {
		funcs = append(funcs, e.typ)

		exps = appendName(exps, e.name)
		exps = append(exps, 0x00)
		exps = appendU32(exps, uint32(i+1))

		body := append([]byte{0x00}, e.body...)
		body = append(body, 0x0B)
		code = appendU32(code, uint32(len(body)))
		code = append(code, body...)
	}

	bin := []byte{0x00, 'a', 's', 'm', 0x01, 0x00, 0x00, 0x00}
	bin = appendSection(bin, 1, types)
	bin = appendSection(bin, 2, imps)
	bin = appendSection(bin, 3, funcs)
	bin = appendSection(bin, 7, exps)
	return appendSection(bin, 10, code)
}

func newTestRuntime(t *testing.T) (context.Context, wazero.Runtime) {
	t.Helper()

	ctx := context.Background()
	r := wazero.NewRuntimeWithConfig(ctx, wazero.NewRuntimeConfigInterpreter())
	t.Cleanup(func() { _ = r.Close(ctx) })
	return ctx, r
}

func TestAppendU32(t *testing.T) {
	assert.Equal(t, []byte{0x00}, appendU32(nil, 0))
	assert.Equal(t, []byte{0x7F}, appendU32(nil, 127))
	assert.Equal(t, []byte{0x80, 0x01}, appendU32(nil, 128))
	assert.Equal(t, []byte{0xDE, 0x02}, appendU32(nil, 350))
	assert.Equal(t, []byte{0xFF, 0xFF, 0xFF, 0xFF, 0x0F}, appendU32(nil, math.MaxUint32))
}

func TestEnvModuleMemory(t *testing.T) {
	ctx, r := newTestRuntime(t)

	mod, err := r.InstantiateWithConfig(ctx, envModule(nil, 3), wazero.NewModuleConfig().WithName(envModuleName))
	assert.NoError(t, err)

	mem := mod.ExportedMemory(memoryName)
	assert.NotNil(t, mem)
	assert.Equal(t, uint32(3*WasmPageSize), mem.Size())
}

func TestLinkCore(t *testing.T) {
	ctx, r := newTestRuntime(t)
	host := &recordingHost{diskSize: 0x1234}

	mod, mem, err := linkCore(ctx, r, testGuest(2, 4, ""), host, 3)
	assert.NoError(t, err)
	assert.Equal(t, uint32(3*WasmPageSize), mem.Size())

	ret, err := mod.ExportedFunction("size").Call(ctx)
	assert.NoError(t, err)
	assert.Equal(t, 1, len(ret))
	assert.Equal(t, uint64(0x1234), ret[0])

	_, err = mod.ExportedFunction("beep").Call(ctx)
	assert.NoError(t, err)
	assert.Equal(t, []float64{440}, host.freqs)

	_, err = newWasmCore(ctx, r, mod)
	assert.ErrorContains(t, err, "does not export")
}

func TestWasmLoaderLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), DefaultCoreBinary)
	assert.NoError(t, os.WriteFile(path, coreGuest(1, 4), 0o644))

	host := &recordingHost{}
	loader := NewWasmLoader(log.NewTestLogger(t), path, 2)
	core, mem, err := loader.Load(context.Background(), host)
	assert.NoError(t, err)
	assert.Equal(t, uint32(2*WasmPageSize), mem.Size())

	assert.NoError(t, core.Initialize())
	assert.NoError(t, core.Step(71550))
	assert.NoError(t, core.SendKey(30|KeyUpMask))
	assert.Equal(t, [][3]uint32{{1, 2, 3}, {0, 71550, 0}, {0, 158, 1}}, host.reads)

	assert.Equal(t, 320, core.VideoWidth())
	assert.Equal(t, 200, core.VideoHeight())
	assert.Equal(t, uint32(0x1000), core.VideoBufferPointer())

	assert.NoError(t, core.Close())
}

func TestWasmLoaderLoadFailures(t *testing.T) {
	dir := t.TempDir()
	small := filepath.Join(dir, "small.wasm")
	assert.NoError(t, os.WriteFile(small, coreGuest(4, 4), 0o644))

	loader := NewWasmLoader(log.NewTestLogger(t), filepath.Join(dir, "missing.wasm"), 2)
	_, _, err := loader.Load(context.Background(), &recordingHost{})
	assert.ErrorContains(t, err, "loading core")

	loader = NewWasmLoader(log.NewTestLogger(t), small, 2)
	_, _, err = loader.Load(context.Background(), &recordingHost{})
	assert.ErrorContains(t, err, "needs 4 memory pages")
}

func TestLinkCoreRejects(t *testing.T) {
	tests := []struct {
		name     string
		guest    []byte
		pages    uint32
		errorMsg string
	}{
		{"too few pages", testGuest(4, 4, ""), 2, "needs 4 memory pages"},
		{"too many pages", testGuest(1, 2, ""), 3, "at most 2 memory pages"},
		{"unknown import", testGuest(1, 1, "js_bogus"), 1, "unknown function env.js_bogus"},
		{"bad signature", testGuest(1, 1, "js_set_border_color"), 1, "env.js_set_border_color with 0 params"},
		{"not wasm", []byte("MZ"), 1, "compiling core"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx, r := newTestRuntime(t)
			_, _, err := linkCore(ctx, r, tt.guest, &recordingHost{}, tt.pages)
			assert.ErrorContains(t, err, tt.errorMsg)
		})
	}
}

func TestValueEncoding(t *testing.T) {
	assert.Equal(t, uint64(0xFFFFFFFF), encodeValue(api.ValueTypeI32, -1))
	assert.Equal(t, 4294967295.0, decodeValue(api.ValueTypeI32, 0xFFFFFFFF))
	assert.Equal(t, 1193.18, decodeValue(api.ValueTypeF64, encodeValue(api.ValueTypeF64, 1193.18)))
}
