// Copyright 2021-2024 Sebastian Lederer. See the file LICENSE.md for details
package main

import (
	"errors"
	"flag"
	"fmt"
	"io"

	"github.com/retroenv/retrogolib/log"
)

const (
	DefaultDiskImage = "freedos_web_hd.img"
	DefaultTPS       = 1000
)

// Config holds the command line settings of a run.
type Config struct {
	FreqMHz     float64
	TargetWidth int
	CoreBinary  string
	DiskImage   string
	MemoryPages uint
	TPS         int

	CLI       bool
	WriteBack bool
	Debug     bool
	Quiet     bool
}

func DefaultConfig() Config {
	return Config{
		FreqMHz:     DefaultTargetFreq,
		TargetWidth: DefaultTargetWidth,
		CoreBinary:  DefaultCoreBinary,
		DiskImage:   DefaultDiskImage,
		MemoryPages: DefaultMemoryPages,
		TPS:         DefaultTPS,
	}
}

// parseFlags reads the configuration from the command line. A positional
// argument overrides the disk image.
func parseFlags(name string, args []string, output io.Writer) (*Config, error) {
	cfg := DefaultConfig()

	flags := flag.NewFlagSet(name, flag.ContinueOnError)
	flags.SetOutput(output)
	flags.Float64Var(&cfg.FreqMHz, "freq", cfg.FreqMHz, "emulated CPU frequency in MHz")
	flags.IntVar(&cfg.TargetWidth, "width", cfg.TargetWidth, "width of the displayed picture in pixels")
	flags.StringVar(&cfg.CoreBinary, "bin", cfg.CoreBinary, "emulator core WebAssembly module, path or http(s) URL")
	flags.StringVar(&cfg.DiskImage, "img", cfg.DiskImage, "hard disk image, path or http(s) URL")
	flags.UintVar(&cfg.MemoryPages, "pages", cfg.MemoryPages, "linear memory of the core in 64 KiB pages")
	flags.IntVar(&cfg.TPS, "tps", cfg.TPS, "emulation ticks per second")
	flags.BoolVar(&cfg.CLI, "cli", false, "run in the terminal without a window")
	flags.BoolVar(&cfg.WriteBack, "writeback", false, "write a modified local disk image back on exit")
	flags.BoolVar(&cfg.Debug, "debug", false, "enable debug logging")
	flags.BoolVar(&cfg.Quiet, "q", false, "only log errors")

	if err := flags.Parse(args); err != nil {
		return nil, err
	}
	switch flags.NArg() {
	case 0:
	case 1:
		cfg.DiskImage = flags.Arg(0)
	default:
		return nil, fmt.Errorf("unexpected arguments %v", flags.Args()[1:])
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	var errs []error
	if c.FreqMHz <= 0 {
		errs = append(errs, fmt.Errorf("frequency must be positive, got %v", c.FreqMHz))
	}
	if c.TargetWidth <= 0 {
		errs = append(errs, fmt.Errorf("width must be positive, got %d", c.TargetWidth))
	}
	if c.MemoryPages == 0 || c.MemoryPages > 65536 {
		errs = append(errs, fmt.Errorf("memory pages must be between 1 and 65536, got %d", c.MemoryPages))
	}
	if c.TPS <= 0 {
		errs = append(errs, fmt.Errorf("ticks per second must be positive, got %d", c.TPS))
	}
	if c.CoreBinary == "" {
		errs = append(errs, errors.New("no core binary given"))
	}
	if c.DiskImage == "" {
		errs = append(errs, errors.New("no disk image given"))
	}
	return errors.Join(errs...)
}

func createLogger(debug, quiet bool) *log.Logger {
	cfg := log.DefaultConfig()
	if debug {
		cfg.Level = log.DebugLevel
	} else if quiet {
		cfg.Level = log.ErrorLevel
	}
	return log.NewWithConfig(cfg)
}
