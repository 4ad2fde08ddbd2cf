// Copyright 2025 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// config is the file format of --config. Flags, when set, take precedence.
type config struct {
	Listen        string `yaml:"listen"`
	LogLevel      string `yaml:"logLevel"`
	Title         string `yaml:"title"`
	InboundRate   int    `yaml:"inboundPerSecond"`
	Wait          bool   `yaml:"wait"`
	KeepAlive     bool   `yaml:"keepAlive"`
	InstrumentAll bool   `yaml:"instrumentAll"`
}

func defaultConfig() config {
	return config{
		Listen:   "127.0.0.1:9229",
		LogLevel: "info",
	}
}

// loadConfig reads path over the defaults. Unknown keys are an error.
func loadConfig(path string) (config, error) {
	cfg := defaultConfig()
	if path == "" {
		return cfg, nil
	}
	f, err := os.Open(path)
	if err != nil {
		return cfg, fmt.Errorf("config: %w", err)
	}
	defer f.Close()
	dec := yaml.NewDecoder(f)
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return cfg, fmt.Errorf("config: %s: %w", path, err)
	}
	return cfg, nil
}

// inboundRates converts the per-second limit into rates for the cdp server,
// or nil if unlimited.
func (c config) inboundRates() map[time.Duration]int {
	if c.InboundRate <= 0 {
		return nil
	}
	return map[time.Duration]int{time.Second: c.InboundRate}
}
