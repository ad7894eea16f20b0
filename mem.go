// Copyright 2021-2024 Sebastian Lederer. See the file LICENSE.md for details
package main

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
)

const WasmPageSize = 65536

const DefaultMemoryPages = 350

// Memory is a view of the linear memory shared with the emulation core.
// Read returns a slice aliasing the memory, not a copy.
type Memory interface {
	Read(offset, byteCount uint32) ([]byte, bool)
	Size() uint32
}

// memoryString returns the n bytes at ptr as a string, one character per
// byte.
func memoryString(m Memory, ptr, n uint32) (string, bool) {
	buf, ok := m.Read(ptr, n)
	if !ok {
		return "", false
	}
	var sb strings.Builder
	sb.Grow(len(buf))
	for _, b := range buf {
		sb.WriteRune(rune(b))
	}
	return sb.String(), true
}

func isRemote(location string) bool {
	return strings.HasPrefix(location, "http://") || strings.HasPrefix(location, "https://")
}

// fetch loads a whole resource from a local path or an http(s) URL.
func fetch(ctx context.Context, location string) ([]byte, error) {
	if !isRemote(location) {
		return os.ReadFile(location)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, location, nil)
	if err != nil {
		return nil, err
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %q", resp.Status)
	}
	return io.ReadAll(resp.Body)
}
