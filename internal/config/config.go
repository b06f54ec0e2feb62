// Copyright (c) 2026 The Echoloop Authors. All rights reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package config loads the settings of the echoloop command from a YAML file
// on top of built-in defaults.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/echoloop/echoloop"
	errorx "github.com/echoloop/echoloop/pkg/errors"
	"github.com/echoloop/echoloop/pkg/logging"
)

// DefaultPort is the port served when none is configured.
const DefaultPort = 6050

// Logging configures the logger of the server.
type Logging struct {
	// Level is one of debug, info, warn, error.
	Level string `yaml:"level"`
	// File enables rotating file output at the given path instead of the console.
	File string `yaml:"file"`
}

// Config is the full configuration of one server.
type Config struct {
	Port            int           `yaml:"port"`
	Host            string        `yaml:"host"`
	Backlog         int           `yaml:"backlog"`
	KeepAlive       bool          `yaml:"keepalive"`
	KeepAlivePeriod time.Duration `yaml:"keepalive_period"`
	Mode            echoloop.Mode `yaml:"mode"`
	Multicore       bool          `yaml:"multicore"`
	EventLoops      int           `yaml:"event_loops"`
	LoadBalancing   string        `yaml:"load_balancing"`
	ReadBufferCap   int           `yaml:"read_buffer_cap"`
	TCPNoDelay      bool          `yaml:"tcp_no_delay"`
	Logging         Logging       `yaml:"logging"`
}

// Default returns the configuration used when nothing is set.
func Default() Config {
	cfg := Config{
		Port:            DefaultPort,
		Host:            echoloop.DefaultBindHost,
		Backlog:         echoloop.DefaultBacklog,
		KeepAlive:       true,
		KeepAlivePeriod: echoloop.DefaultTCPKeepAlive,
		Mode:            echoloop.ModeEcho,
		LoadBalancing:   echoloop.RoundRobin.String(),
		ReadBufferCap:   echoloop.DefaultReadBufferCap,
		TCPNoDelay:      true,
		Logging:         Logging{Level: logging.InfoLevel.String()},
	}
	return cfg
}

// ApplyEnv replaces the logging settings with ECHOLOOP_LOGGING_LEVEL and
// ECHOLOOP_LOGGING_FILE when they are set.
func (c *Config) ApplyEnv() error {
	if os.Getenv(logging.EnvLoggingLevel) != "" {
		lvl, err := logging.LevelFromEnv(logging.InfoLevel)
		if err != nil {
			return fmt.Errorf("config: %s: %w", logging.EnvLoggingLevel, err)
		}
		c.Logging.Level = lvl.String()
	}
	if file := logging.FileFromEnv(); file != "" {
		c.Logging.File = file
	}
	return nil
}

// Load reads the YAML file at path over Default and validates the result.
func Load(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("config: %w", err)
	}
	return Parse(data)
}

// Parse decodes YAML over Default with the environment applied, then
// validates the result. Unknown keys are rejected.
func Parse(data []byte) (Config, error) {
	cfg := Default()
	if err := cfg.ApplyEnv(); err != nil {
		return Config{}, err
	}
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return Config{}, fmt.Errorf("config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks every field and returns the first problem found.
func (c *Config) Validate() error {
	if c.Port < 1 || c.Port > 65535 {
		return fmt.Errorf("config: %w: %d", errorx.ErrInvalidPort, c.Port)
	}
	if c.Backlog <= 0 {
		return fmt.Errorf("config: %w: %d", errorx.ErrInvalidBacklog, c.Backlog)
	}
	if c.Mode != echoloop.ModeEcho && c.Mode != echoloop.ModeDiscard {
		return fmt.Errorf("config: %w", errorx.ErrInvalidMode)
	}
	if c.KeepAlive && c.KeepAlivePeriod < time.Second {
		return fmt.Errorf("config: keepalive_period must be at least 1s, got %s", c.KeepAlivePeriod)
	}
	if c.EventLoops < 0 {
		return fmt.Errorf("config: event_loops must not be negative, got %d", c.EventLoops)
	}
	if c.ReadBufferCap <= 0 {
		return fmt.Errorf("config: read_buffer_cap must be positive, got %d", c.ReadBufferCap)
	}
	if _, err := echoloop.ParseLoadBalancing(c.LoadBalancing); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	if _, err := logging.ParseLevel(c.Logging.Level); err != nil {
		return fmt.Errorf("config: logging.level: %w", err)
	}
	return nil
}

// NewLogger builds the logger described by the logging section.
func (c *Config) NewLogger() (logging.Logger, logging.Flusher, error) {
	lvl, err := logging.ParseLevel(c.Logging.Level)
	if err != nil {
		return nil, nil, fmt.Errorf("config: logging.level: %w", err)
	}
	if c.Logging.File != "" {
		return logging.CreateLoggerAsLocalFile(c.Logging.File, lvl)
	}
	logger, flush := logging.NewConsoleLogger(lvl)
	return logger, flush, nil
}

// Options maps the configuration to listener options.
func (c *Config) Options(logger logging.Logger) ([]echoloop.Option, error) {
	lb, err := echoloop.ParseLoadBalancing(c.LoadBalancing)
	if err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	keepAlive := time.Duration(0)
	if c.KeepAlive {
		keepAlive = c.KeepAlivePeriod
	}
	return []echoloop.Option{
		echoloop.WithBindHost(c.Host),
		echoloop.WithBacklog(c.Backlog),
		echoloop.WithTCPKeepAlive(keepAlive),
		echoloop.WithTCPNoDelay(c.TCPNoDelay),
		echoloop.WithMulticore(c.Multicore),
		echoloop.WithNumEventLoop(c.EventLoops),
		echoloop.WithLoadBalancing(lb),
		echoloop.WithReadBufferCap(c.ReadBufferCap),
		echoloop.WithLogger(logger),
	}, nil
}
