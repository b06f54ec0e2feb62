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

//go:build darwin || dragonfly || freebsd || linux

package echoloop

import (
	"context"
	"net"
	"sync"
	"sync/atomic"

	errorx "github.com/echoloop/echoloop/pkg/errors"
	"github.com/echoloop/echoloop/pkg/logging"
)

// Listener is a running server: the bound listening socket together with the
// event-loops serving the connections accepted on it.
type Listener struct {
	eng      *engine
	stopOnce sync.Once
	stopped  int32
}

// Start binds port on the configured host, starts accepting connections and
// returns immediately. Each accepted connection gets its own Handler from
// factory.
//
// A failure to bind or listen is returned as *errors.BindError and leaves
// nothing running.
func Start(port int, factory HandlerFactory, opts ...Option) (*Listener, error) {
	if port < 1 || port > 65535 {
		return nil, errorx.ErrInvalidPort
	}
	if factory == nil {
		return nil, errorx.ErrNilHandlerFactory
	}
	options := loadOptions(opts...)
	if options.Backlog <= 0 {
		return nil, errorx.ErrInvalidBacklog
	}
	if options.ReadBufferCap <= 0 {
		options.ReadBufferCap = DefaultReadBufferCap
	}
	if options.BindHost == "" {
		options.BindHost = DefaultBindHost
	}
	// A logger created here is synced when the engine stops, an injected one
	// belongs to the caller.
	flush := func() error { return nil }
	if options.Logger == nil {
		options.Logger, flush = logging.NewConsoleLogger(logging.InfoLevel)
	}

	ln, err := initListener(options.BindHost, port, options)
	if err != nil {
		options.Logger.Errorf("failed to listen on port %d: %v", port, err)
		_ = flush()
		return nil, err
	}
	options.Logger.Infof("listening on %s with backlog %d", ln.addr, options.Backlog)

	eng, err := run(factory, ln, options, flush)
	if err != nil {
		options.Logger.Errorf("echoloop engine is stopping with error: %v", err)
		_ = flush()
		return nil, err
	}
	return &Listener{eng: eng}, nil
}

// Addr returns the address the listener is bound to.
func (l *Listener) Addr() net.Addr {
	return l.eng.ln.addr
}

// CountConnections counts the number of currently open connections.
func (l *Listener) CountConnections() (count int) {
	l.eng.eventLoops.iterate(func(_ int, el *eventloop) bool {
		count += int(el.countConn())
		return true
	})
	return
}

// Done returns a channel that is closed once the listener has fully stopped,
// either through Stop or because a handler returned Shutdown.
func (l *Listener) Done() <-chan struct{} {
	return l.eng.done
}

// Stop stops accepting connections, closes every open connection and releases
// the listening socket. It does not return before the socket is released; it
// then waits for the event-loops to finish until ctx is done and returns
// ctx.Err() if they did not. Calls after the first one return nil.
func (l *Listener) Stop(ctx context.Context) error {
	first := atomic.CompareAndSwapInt32(&l.stopped, 0, 1)

	l.stopOnce.Do(func() {
		l.eng.shutdown(nil)
		// The acceptor must be out of accept(2) before its fd is closed.
		<-l.eng.acceptorDone
		l.eng.ln.close()
	})
	if !first {
		return nil
	}

	select {
	case <-l.eng.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
