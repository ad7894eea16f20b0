// Copyright 2021-2024 Sebastian Lederer. See the file LICENSE.md for details
package main

import (
	"context"
	"fmt"
)

type coreLoadResult struct {
	core Core
	mem  Memory
	err  error
}

// Bringup fetches the disk image and instantiates the core concurrently.
// Poll is called from the host loop and never blocks.
type Bringup struct {
	cancel context.CancelFunc

	diskCh <-chan diskLoadResult
	coreCh chan coreLoadResult

	disk     *diskLoadResult
	core     *coreLoadResult
	coreRecv bool
	done     bool
}

func StartBringup(ctx context.Context, loader CoreLoader, host Host, diskLocation string) *Bringup {
	ctx, cancel := context.WithCancel(ctx)
	b := &Bringup{
		cancel: cancel,
		diskCh: loadDiskImage(ctx, diskLocation),
		coreCh: make(chan coreLoadResult, 1),
	}

	go func() {
		core, mem, err := loader.Load(ctx, host)
		b.coreCh <- coreLoadResult{core: core, mem: mem, err: err}
	}()
	return b
}

// Poll returns both results once they have arrived, and nil while either
// is still pending. The results are handed out once.
func (b *Bringup) Poll() (*coreLoadResult, *diskLoadResult, error) {
	if b.done {
		return nil, nil, nil
	}

	if b.core == nil {
		select {
		case res := <-b.coreCh:
			b.coreRecv = true
			if res.err != nil {
				b.fail()
				return nil, nil, fmt.Errorf("loading core: %w", res.err)
			}
			b.core = &res
		default:
		}
	}
	if b.disk == nil {
		select {
		case res := <-b.diskCh:
			if res.err != nil {
				b.fail()
				return nil, nil, fmt.Errorf("loading disk image %v: %w", res.location, res.err)
			}
			b.disk = &res
		default:
		}
	}

	if b.core == nil || b.disk == nil {
		return nil, nil, nil
	}
	b.done = true
	return b.core, b.disk, nil
}

func (b *Bringup) fail() {
	b.done = true
	b.cancel()
	if b.core != nil {
		b.core.core.Close()
		b.core = nil
	}
	if !b.coreRecv {
		b.coreRecv = true
		go closeLateCore(b.coreCh)
	}
}

// closeLateCore releases a core that is still loading when bring-up is
// abandoned.
func closeLateCore(ch <-chan coreLoadResult) {
	res := <-ch
	if res.err == nil {
		res.core.Close()
	}
}

// Close abandons a bring-up that has not completed.
func (b *Bringup) Close() {
	if b.done {
		b.cancel()
		return
	}
	b.fail()
}
