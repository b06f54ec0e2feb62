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

package echoloop

import (
	"time"

	"github.com/echoloop/echoloop/pkg/logging"
)

const (
	// DefaultBacklog is the listen backlog used when none is configured.
	DefaultBacklog = 128

	// DefaultTCPKeepAlive is the keep-alive period applied to accepted connections.
	DefaultTCPKeepAlive = 15 * time.Second

	// DefaultReadBufferCap is the size of each event-loop's read buffer.
	DefaultReadBufferCap = 64 * 1024

	// DefaultBindHost is the address the listener binds to when none is configured.
	DefaultBindHost = "0.0.0.0"
)

// Option is a function that will set up option.
type Option func(opts *Options)

func loadOptions(options ...Option) *Options {
	opts := &Options{
		Backlog:       DefaultBacklog,
		TCPKeepAlive:  DefaultTCPKeepAlive,
		TCPNoDelay:    true,
		ReadBufferCap: DefaultReadBufferCap,
		BindHost:      DefaultBindHost,
	}
	for _, option := range options {
		option(opts)
	}
	return opts
}

// Options are configurations for the listener.
type Options struct {
	// Multicore runs one event-loop per logical CPU instead of a single one.
	// Callbacks of one connection still never run concurrently, handlers
	// shared between connections must synchronize themselves.
	Multicore bool

	// NumEventLoop is the exact number of event-loops, it overrides Multicore.
	NumEventLoop int

	// LB represents the load-balancing algorithm used when assigning new connections.
	LB LoadBalancing

	// Backlog is the length of the queue of pending connections passed to listen(2),
	// capped by the operating system's maximum.
	Backlog int

	// ReadBufferCap bounds a single read, and so the size of one inbound.Buffer.
	// Smaller values keep one busy connection from starving its neighbors.
	ReadBufferCap int

	// LockOSThread is used to determine whether each I/O event-loop is associated to an OS thread.
	LockOSThread bool

	// ReusePort indicates whether to set up the SO_REUSEPORT socket option.
	ReusePort bool

	// TCPKeepAlive sets up a duration for (SO_KEEPALIVE) socket option,
	// zero disables keep-alive on accepted connections.
	TCPKeepAlive time.Duration

	// TCPNoDelay disables Nagle's algorithm on accepted connections, on by
	// default so that echoed bytes leave without delay.
	TCPNoDelay bool

	// BindHost is the local address to listen on.
	BindHost string

	// Logger is the customized logger for logging info, if it is not set,
	// a console logger at info level is used.
	Logger logging.Logger
}

// WithOptions sets up all options.
func WithOptions(options Options) Option {
	return func(opts *Options) {
		*opts = options
	}
}

// WithMulticore sets up multi-cores in the listener.
func WithMulticore(multicore bool) Option {
	return func(opts *Options) {
		opts.Multicore = multicore
	}
}

// WithNumEventLoop sets up NumEventLoop.
func WithNumEventLoop(numEventLoop int) Option {
	return func(opts *Options) {
		opts.NumEventLoop = numEventLoop
	}
}

// WithLoadBalancing sets up the load-balancing algorithm.
func WithLoadBalancing(lb LoadBalancing) Option {
	return func(opts *Options) {
		opts.LB = lb
	}
}

// WithBacklog sets up the listen backlog.
func WithBacklog(backlog int) Option {
	return func(opts *Options) {
		opts.Backlog = backlog
	}
}

// WithReadBufferCap sets up ReadBufferCap for reading bytes.
func WithReadBufferCap(readBufferCap int) Option {
	return func(opts *Options) {
		opts.ReadBufferCap = readBufferCap
	}
}

// WithLockOSThread sets up LockOSThread mode for I/O event-loops.
func WithLockOSThread(lockOSThread bool) Option {
	return func(opts *Options) {
		opts.LockOSThread = lockOSThread
	}
}

// WithReusePort sets up SO_REUSEPORT socket option.
func WithReusePort(reusePort bool) Option {
	return func(opts *Options) {
		opts.ReusePort = reusePort
	}
}

// WithTCPKeepAlive sets up the SO_KEEPALIVE socket option with duration.
func WithTCPKeepAlive(tcpKeepAlive time.Duration) Option {
	return func(opts *Options) {
		opts.TCPKeepAlive = tcpKeepAlive
	}
}

// WithTCPNoDelay enable/disable the TCP_NODELAY socket option.
func WithTCPNoDelay(tcpNoDelay bool) Option {
	return func(opts *Options) {
		opts.TCPNoDelay = tcpNoDelay
	}
}

// WithBindHost sets up the local address to listen on.
func WithBindHost(host string) Option {
	return func(opts *Options) {
		opts.BindHost = host
	}
}

// WithLogger sets up a customized logger.
func WithLogger(logger logging.Logger) Option {
	return func(opts *Options) {
		opts.Logger = logger
	}
}
