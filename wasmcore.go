// Copyright 2021-2024 Sebastian Lederer. See the file LICENSE.md for details
package main

import (
	"context"
	"fmt"

	"github.com/retroenv/retrogolib/log"
	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"
)

const DefaultCoreBinary = "virtualxt.wasm"

const (
	hostModuleName  = "xthost"
	envModuleName   = "env"
	coreModuleName  = "virtualxt"
	memoryName      = "memory"
	functionTypeTag = 0x60
)

// WasmLoader loads the emulation core from a WebAssembly binary.
type WasmLoader struct {
	Location string
	Pages    uint32

	logger *log.Logger
}

func NewWasmLoader(logger *log.Logger, location string, pages uint32) *WasmLoader {
	return &WasmLoader{Location: location, Pages: pages, logger: logger}
}

func (l *WasmLoader) Load(ctx context.Context, host Host) (Core, Memory, error) {
	bin, err := fetch(ctx, l.Location)
	if err != nil {
		return nil, nil, fmt.Errorf("loading core %v: %w", l.Location, err)
	}
	l.logger.Debug("core binary loaded", log.String("location", l.Location), log.Int("size", len(bin)))

	r := wazero.NewRuntime(ctx)
	mod, mem, err := linkCore(ctx, r, bin, host, l.Pages)
	if err != nil {
		r.Close(ctx)
		return nil, nil, err
	}

	core, err := newWasmCore(ctx, r, mod)
	if err != nil {
		r.Close(ctx)
		return nil, nil, err
	}
	return core, mem, nil
}

// linkCore instantiates the guest with its env imports served by host.
// A guest that imports its memory gets a fixed memory of pages pages.
func linkCore(ctx context.Context, r wazero.Runtime, bin []byte, host Host, pages uint32) (api.Module, api.Memory, error) {
	compiled, err := r.CompileModule(ctx, bin)
	if err != nil {
		return nil, nil, fmt.Errorf("compiling core: %w", err)
	}

	imports := compiled.ImportedFunctions()
	hb := r.NewHostModuleBuilder(hostModuleName)
	for _, def := range imports {
		module, name, _ := def.Import()
		if module != envModuleName {
			return nil, nil, fmt.Errorf("core imports %v.%v: unknown module", module, name)
		}
		fn, err := hostImport(host, name, def)
		if err != nil {
			return nil, nil, err
		}
		hb.NewFunctionBuilder().
			WithGoModuleFunction(fn, def.ParamTypes(), def.ResultTypes()).
			Export(name)
	}
	if _, err := hb.Instantiate(ctx); err != nil {
		return nil, nil, fmt.Errorf("instantiating host functions: %w", err)
	}

	var envPages uint32
	for _, def := range compiled.ImportedMemories() {
		module, name, _ := def.Import()
		if module != envModuleName || name != memoryName {
			return nil, nil, fmt.Errorf("core imports memory %v.%v: unknown module", module, name)
		}
		if def.Min() > pages {
			return nil, nil, fmt.Errorf("core needs %d memory pages, %d configured", def.Min(), pages)
		}
		if limit, ok := def.Max(); ok && limit < pages {
			return nil, nil, fmt.Errorf("core allows at most %d memory pages, %d configured", limit, pages)
		}
		envPages = pages
	}

	env, err := r.InstantiateWithConfig(ctx, envModule(imports, envPages), wazero.NewModuleConfig().WithName(envModuleName))
	if err != nil {
		return nil, nil, fmt.Errorf("instantiating env module: %w", err)
	}

	mod, err := r.InstantiateModule(ctx, compiled, wazero.NewModuleConfig().WithName(coreModuleName).WithStartFunctions())
	if err != nil {
		return nil, nil, fmt.Errorf("instantiating core: %w", err)
	}

	mem := env.ExportedMemory(memoryName)
	if envPages == 0 {
		mem = mod.ExportedMemory(memoryName)
	}
	if mem == nil {
		return nil, nil, fmt.Errorf("core has no linear memory")
	}
	return mod, mem, nil
}

type hostHandler struct {
	params  int
	results int
	fn      func(args []float64) float64
}

func hostHandlers(host Host) map[string]hostHandler {
	u32 := func(f float64) uint32 { return uint32(int64(f)) }

	return map[string]hostHandler{
		"js_puts": {2, 0, func(a []float64) float64 {
			host.LogString(u32(a[0]), u32(a[1]))
			return 0
		}},
		"js_disk_read": {3, 0, func(a []float64) float64 {
			host.DiskRead(u32(a[0]), u32(a[1]), u32(a[2]))
			return 0
		}},
		"js_disk_write": {3, 0, func(a []float64) float64 {
			host.DiskWrite(u32(a[0]), u32(a[1]), u32(a[2]))
			return 0
		}},
		"js_disk_size": {0, 1, func([]float64) float64 {
			return float64(host.DiskSize())
		}},
		"js_ustimer": {0, 1, func([]float64) float64 {
			return host.Microseconds()
		}},
		"js_speaker_callback": {1, 0, func(a []float64) float64 {
			host.SetSpeakerFrequency(a[0])
			return 0
		}},
		"js_set_border_color": {1, 0, func(a []float64) float64 {
			host.SetBorderColor(u32(a[0]))
			return 0
		}},
	}
}

// hostImport adapts a Host callback to the signature the guest declared
// for it.
func hostImport(host Host, name string, def api.FunctionDefinition) (api.GoModuleFunction, error) {
	h, ok := hostHandlers(host)[name]
	if !ok {
		return nil, fmt.Errorf("core imports unknown function env.%v", name)
	}
	params, results := def.ParamTypes(), def.ResultTypes()
	if len(params) != h.params || len(results) != h.results {
		return nil, fmt.Errorf("core imports env.%v with %d params and %d results, expected %d and %d",
			name, len(params), len(results), h.params, h.results)
	}

	return api.GoModuleFunc(func(_ context.Context, _ api.Module, stack []uint64) {
		args := make([]float64, len(params))
		for i, t := range params {
			args[i] = decodeValue(t, stack[i])
		}
		ret := h.fn(args)
		if len(results) > 0 {
			stack[0] = encodeValue(results[0], ret)
		}
	}), nil
}

func decodeValue(t api.ValueType, v uint64) float64 {
	switch t {
	case api.ValueTypeI32:
		return float64(uint32(v))
	case api.ValueTypeI64:
		return float64(int64(v))
	case api.ValueTypeF32:
		return float64(api.DecodeF32(v))
	case api.ValueTypeF64:
		return api.DecodeF64(v)
	}
	return 0
}

func encodeValue(t api.ValueType, f float64) uint64 {
	switch t {
	case api.ValueTypeI32:
		return uint64(uint32(int64(f)))
	case api.ValueTypeI64:
		return uint64(int64(f))
	case api.ValueTypeF32:
		return api.EncodeF32(float32(f))
	case api.ValueTypeF64:
		return api.EncodeF64(f)
	}
	return 0
}

// envModule builds the binary of a module that imports every host function
// and exports it again under the same name, plus a fixed size memory when
// pages is not zero.
func envModule(imports []api.FunctionDefinition, pages uint32) []byte {
	exports := uint32(len(imports))
	if pages > 0 {
		exports++
	}

	types := appendU32(nil, uint32(len(imports)))
	imps := appendU32(nil, uint32(len(imports)))
	exps := appendU32(nil, exports)
	for i, def := range imports {
		_, name, _ := def.Import()

		types = append(types, functionTypeTag)
		types = appendValueTypes(types, def.ParamTypes())
		types = appendValueTypes(types, def.ResultTypes())

		imps = appendName(imps, hostModuleName)
		imps = appendName(imps, name)
		imps = append(imps, 0x00) // func
		imps = appendU32(imps, uint32(i))

		exps = appendName(exps, name)
		exps = append(exps, 0x00) // func
		exps = appendU32(exps, uint32(i))
	}

	bin := []byte{0x00, 'a', 's', 'm', 0x01, 0x00, 0x00, 0x00}
	bin = appendSection(bin, 1, types)
	bin = appendSection(bin, 2, imps)
	if pages > 0 {
		mems := []byte{0x01, 0x01} // one memory, limits with max
		mems = appendU32(mems, pages)
		mems = appendU32(mems, pages)
		bin = appendSection(bin, 5, mems)

		exps = appendName(exps, memoryName)
		exps = append(exps, 0x02, 0x00) // memory 0
	}
	return appendSection(bin, 7, exps)
}

func appendU32(b []byte, v uint32) []byte {
	for {
		c := byte(v & 0x7F)
		v >>= 7
		if v == 0 {
			return append(b, c)
		}
		b = append(b, c|0x80)
	}
}

func appendName(b []byte, s string) []byte {
	b = appendU32(b, uint32(len(s)))
	return append(b, s...)
}

func appendValueTypes(b []byte, types []api.ValueType) []byte {
	b = appendU32(b, uint32(len(types)))
	for _, t := range types {
		b = append(b, byte(t))
	}
	return b
}

func appendSection(b []byte, id byte, content []byte) []byte {
	b = append(b, id)
	b = appendU32(b, uint32(len(content)))
	return append(b, content...)
}

type wasmCore struct {
	ctx     context.Context
	runtime wazero.Runtime

	initialize api.Function
	step       api.Function
	width      api.Function
	height     api.Function
	framePtr   api.Function
	sendKey    api.Function
}

func newWasmCore(ctx context.Context, r wazero.Runtime, mod api.Module) (*wasmCore, error) {
	c := &wasmCore{ctx: ctx, runtime: r}
	for name, fn := range map[string]*api.Function{
		"wasm_initialize_emulator":       &c.initialize,
		"wasm_step_emulation":            &c.step,
		"wasm_video_width":               &c.width,
		"wasm_video_height":              &c.height,
		"wasm_video_rgba_memory_pointer": &c.framePtr,
		"wasm_send_key":                  &c.sendKey,
	} {
		*fn = mod.ExportedFunction(name)
		if *fn == nil {
			return nil, fmt.Errorf("core does not export %v", name)
		}
	}
	return c, nil
}

// call invokes fn with args encoded as its declared parameter types and
// returns the first result, if any.
func (c *wasmCore) call(fn api.Function, args ...float64) (float64, error) {
	def := fn.Definition()
	params := def.ParamTypes()
	if len(params) != len(args) {
		return 0, fmt.Errorf("calling %v: expected %d params, got %d", def.Name(), len(params), len(args))
	}

	stack := make([]uint64, len(args))
	for i, t := range params {
		stack[i] = encodeValue(t, args[i])
	}
	ret, err := fn.Call(c.ctx, stack...)
	if err != nil {
		return 0, fmt.Errorf("calling %v: %w", def.Name(), err)
	}
	if len(ret) == 0 {
		return 0, nil
	}
	return decodeValue(def.ResultTypes()[0], ret[0]), nil
}

func (c *wasmCore) Initialize() error {
	_, err := c.call(c.initialize)
	return err
}

func (c *wasmCore) Step(cycles int) error {
	_, err := c.call(c.step, float64(cycles))
	return err
}

func (c *wasmCore) query(fn api.Function) float64 {
	v, err := c.call(fn)
	if err != nil {
		return 0
	}
	return v
}

func (c *wasmCore) VideoWidth() int {
	return int(c.query(c.width))
}

func (c *wasmCore) VideoHeight() int {
	return int(c.query(c.height))
}

func (c *wasmCore) VideoBufferPointer() uint32 {
	return uint32(c.query(c.framePtr))
}

func (c *wasmCore) SendKey(scan byte) error {
	_, err := c.call(c.sendKey, float64(scan))
	return err
}

func (c *wasmCore) Close() error {
	return c.runtime.Close(c.ctx)
}
