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
	"runtime"
	"sync"
	"sync/atomic"

	"golang.org/x/sync/errgroup"

	"github.com/echoloop/echoloop/internal/netpoll"
	"github.com/echoloop/echoloop/internal/queue"
	errorx "github.com/echoloop/echoloop/pkg/errors"
	"github.com/echoloop/echoloop/pkg/logging"
)

type engine struct {
	ln           *listener       // the listener for accepting new connections
	opts         *Options        // options with engine
	acceptor     *eventloop      // main event-loop for accepting connections
	eventLoops   loadBalancer    // event-loops for handling events
	factory      HandlerFactory  // creates one handler per accepted connection
	flushLogger  logging.Flusher // syncs the logger once everything has stopped
	inShutdown   int32           // whether the engine is in shutdown
	acceptorDone chan struct{}   // closed when the main reactor has exited
	done         chan struct{}   // closed when every goroutine has exited and every poller is closed
	workerPool   struct {
		*errgroup.Group

		shutdownCtx context.Context
		shutdown    context.CancelFunc
		once        sync.Once
	}
}

func (eng *engine) isInShutdown() bool {
	return atomic.LoadInt32(&eng.inShutdown) == 1
}

// shutdown signals the engine to shut down, err is logged unless it is nil
// or the regular shutdown request.
func (eng *engine) shutdown(err error) {
	if err != nil && err != errorx.ErrEngineShutdown {
		eng.opts.Logger.Errorf("engine is being shutdown with error: %v", err)
	}
	eng.workerPool.once.Do(func() {
		atomic.StoreInt32(&eng.inShutdown, 1)
		eng.workerPool.shutdown()
	})
}

func (eng *engine) newEventLoop(idx int) (*eventloop, error) {
	p, err := netpoll.OpenPoller()
	if err != nil {
		return nil, err
	}
	return &eventloop{ln: eng.ln, idx: idx, engine: eng, poller: p}, nil
}

// closePollers closes every poller that was opened, the listening socket is
// left to the caller.
func (eng *engine) closePollers() {
	eng.eventLoops.iterate(func(i int, el *eventloop) bool {
		if err := el.poller.Close(); err != nil {
			eng.opts.Logger.Warnf("failed to close poller of event-loop(%d): %v", i, err)
		}
		return true
	})
	if eng.acceptor != nil {
		if err := eng.acceptor.poller.Close(); err != nil {
			eng.opts.Logger.Warnf("failed to close poller of main reactor: %v", err)
		}
	}
}

func (eng *engine) activateReactors(numEventLoop int) error {
	for i := 0; i < numEventLoop; i++ {
		el, err := eng.newEventLoop(i)
		if err != nil {
			return err
		}
		el.buffer = make([]byte, eng.opts.ReadBufferCap)
		el.connections.init()
		eng.eventLoops.register(el)
	}

	acceptor, err := eng.newEventLoop(-1)
	if err != nil {
		return err
	}
	if err = acceptor.poller.AddRead(eng.ln.packPollAttachment(eng.accept)); err != nil {
		_ = acceptor.poller.Close()
		return err
	}
	eng.acceptor = acceptor

	eng.eventLoops.iterate(func(_ int, el *eventloop) bool {
		eng.workerPool.Go(el.activateSubReactor)
		return true
	})
	eng.workerPool.Go(acceptor.activateMainReactor)
	return nil
}

// stop waits for the shutdown signal, then stops every reactor, waits for
// them to return and frees the pollers and the listening socket.
func (eng *engine) stop() {
	<-eng.workerPool.shutdownCtx.Done()

	exit := func(interface{}) error { return errorx.ErrEngineShutdown }
	eng.eventLoops.iterate(func(i int, el *eventloop) bool {
		if err := el.poller.Trigger(queue.HighPriority, exit, nil); err != nil {
			eng.opts.Logger.Errorf("failed to enqueue shutdown on event-loop(%d): %v", i, err)
		}
		return true
	})
	if err := eng.acceptor.poller.Trigger(queue.HighPriority, exit, nil); err != nil {
		eng.opts.Logger.Errorf("failed to enqueue shutdown on main reactor: %v", err)
	}

	if err := eng.workerPool.Wait(); err != nil {
		eng.opts.Logger.Errorf("engine shutdown error: %v", err)
	}

	// No reactor is polling anymore, finish what was queued behind the exit
	// task on this goroutine.
	eng.eventLoops.iterate(func(_ int, el *eventloop) bool {
		el.finishPending()
		return true
	})

	eng.ln.close()
	eng.closePollers()
	if eng.flushLogger != nil {
		_ = eng.flushLogger()
	}
	close(eng.done)
}

func numEventLoops(opts *Options) int {
	switch {
	case opts.NumEventLoop > 0:
		return opts.NumEventLoop
	case opts.Multicore:
		return runtime.NumCPU()
	}
	return 1
}

func run(factory HandlerFactory, ln *listener, options *Options, flush logging.Flusher) (*engine, error) {
	lb, err := newLoadBalancer(options.LB)
	if err != nil {
		ln.close()
		return nil, err
	}

	eng := &engine{
		ln:           ln,
		opts:         options,
		eventLoops:   lb,
		factory:      factory,
		flushLogger:  flush,
		acceptorDone: make(chan struct{}),
		done:         make(chan struct{}),
	}
	eng.workerPool.Group = &errgroup.Group{}
	eng.workerPool.shutdownCtx, eng.workerPool.shutdown = context.WithCancel(context.Background())

	if err = eng.activateReactors(numEventLoops(options)); err != nil {
		eng.workerPool.shutdown()
		eng.closePollers()
		ln.close()
		return nil, err
	}
	go eng.stop()

	return eng, nil
}
