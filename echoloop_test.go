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
	"bytes"
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"io"
	"net"
	"strconv"
	"sync"
	"sync/atomic"
	"syscall"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	"github.com/echoloop/echoloop/pkg/buffer/inbound"
	errorx "github.com/echoloop/echoloop/pkg/errors"
	"github.com/echoloop/echoloop/pkg/logging"
)

const testHost = "127.0.0.1"

func testAddr(port int) string {
	return net.JoinHostPort(testHost, strconv.Itoa(port))
}

// trackingHandler wraps a Handler and records what the event-loop reports.
type trackingHandler struct {
	Handler
	mu     sync.Mutex
	conns  []Conn
	errs   []error
	closed int32
}

func (h *trackingHandler) OnData(c Conn, buf *inbound.Buffer) Action {
	h.mu.Lock()
	seen := false
	for _, cc := range h.conns {
		if cc == c {
			seen = true
		}
	}
	if !seen {
		h.conns = append(h.conns, c)
	}
	h.mu.Unlock()
	return h.Handler.OnData(c, buf)
}

func (h *trackingHandler) OnError(c Conn, err error) {
	h.mu.Lock()
	h.errs = append(h.errs, err)
	h.mu.Unlock()
	h.Handler.OnError(c, err)
}

func (h *trackingHandler) OnClose(c Conn) {
	atomic.AddInt32(&h.closed, 1)
	h.Handler.OnClose(c)
}

func (h *trackingHandler) errors() []error {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]error(nil), h.errs...)
}

func (h *trackingHandler) firstConn() Conn {
	h.mu.Lock()
	defer h.mu.Unlock()
	if len(h.conns) == 0 {
		return nil
	}
	return h.conns[0]
}

func startTestListener(t *testing.T, port int, factory HandlerFactory, opts ...Option) *Listener {
	t.Helper()
	opts = append([]Option{WithBindHost(testHost), WithLogger(logging.Nop())}, opts...)
	ln, err := Start(port, factory, opts...)
	require.NoError(t, err)
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		assert.NoError(t, ln.Stop(ctx))
	})
	return ln
}

func dial(t *testing.T, port int) net.Conn {
	t.Helper()
	c, err := net.DialTimeout("tcp", testAddr(port), time.Second)
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func echoRoundTrip(t *testing.T, c net.Conn, payload []byte) {
	t.Helper()
	require.NoError(t, c.SetDeadline(time.Now().Add(5*time.Second)))
	_, err := c.Write(payload)
	require.NoError(t, err)
	got := make([]byte, len(payload))
	_, err = io.ReadFull(c, got)
	require.NoError(t, err)
	require.Equal(t, payload, got)
}

func TestEcho(t *testing.T) {
	t.Run("ping", func(t *testing.T) {
		startTestListener(t, 9601, func() Handler { return NewEchoHandler(nil) })
		c := dial(t, 9601)
		echoRoundTrip(t, c, []byte("ping"))
		echoRoundTrip(t, c, []byte("pong"))
	})

	t.Run("large-payload", func(t *testing.T) {
		startTestListener(t, 9602, func() Handler { return NewEchoHandler(nil) }, WithReadBufferCap(4096))
		c := dial(t, 9602)
		payload := make([]byte, 4<<20)
		_, err := rand.Read(payload)
		require.NoError(t, err)

		// Write while reading so that neither side's socket buffer fills up for good.
		var eg errgroup.Group
		eg.Go(func() error {
			_, err := c.Write(payload)
			return err
		})
		require.NoError(t, c.SetReadDeadline(time.Now().Add(10*time.Second)))
		got := make([]byte, len(payload))
		_, err = io.ReadFull(c, got)
		require.NoError(t, err)
		require.NoError(t, eg.Wait())
		assert.True(t, bytes.Equal(payload, got), "echoed bytes differ from the payload")
	})

	t.Run("multi-loops", func(t *testing.T) {
		for _, lb := range []LoadBalancing{RoundRobin, LeastConnections, SourceAddrHash} {
			lb := lb
			t.Run(lb.String(), func(t *testing.T) {
				port := 9610 + int(lb)
				startTestListener(t, port, func() Handler { return NewEchoHandler(nil) },
					WithNumEventLoop(4), WithLoadBalancing(lb))
				var eg errgroup.Group
				for i := 0; i < 16; i++ {
					i := i
					eg.Go(func() error {
						c, err := net.DialTimeout("tcp", testAddr(port), time.Second)
						if err != nil {
							return err
						}
						defer c.Close() //nolint:errcheck
						_ = c.SetDeadline(time.Now().Add(5 * time.Second))
						payload := []byte(fmt.Sprintf("client-%02d", i))
						if _, err = c.Write(payload); err != nil {
							return err
						}
						got := make([]byte, len(payload))
						if _, err = io.ReadFull(c, got); err != nil {
							return err
						}
						if !bytes.Equal(payload, got) {
							return fmt.Errorf("client %d got %q", i, got)
						}
						return nil
					})
				}
				require.NoError(t, eg.Wait())
			})
		}
	})
}

func TestDiscard(t *testing.T) {
	logger := new(recordingLogger)
	ln := startTestListener(t, 9603, func() Handler { return NewDiscardHandler(logger) })
	c := dial(t, 9603)

	_, err := c.Write([]byte("0123456789"))
	require.NoError(t, err)

	require.NoError(t, c.SetReadDeadline(time.Now().Add(300*time.Millisecond)))
	n, err := c.Read(make([]byte, 16))
	assert.Zero(t, n)
	var netErr net.Error
	require.True(t, errors.As(err, &netErr), "expected a timeout, got %v", err)
	assert.True(t, netErr.Timeout())

	require.Eventually(t, func() bool { return logger.contains("INFO", "0123456789") }, time.Second, 10*time.Millisecond)
	assert.Equal(t, 1, ln.CountConnections())
}

func TestConcurrentClientsNoCrossTalk(t *testing.T) {
	startTestListener(t, 9604, func() Handler { return NewEchoHandler(nil) }, WithNumEventLoop(1))
	a, b := dial(t, 9604), dial(t, 9604)

	var eg errgroup.Group
	for _, tc := range []struct {
		c    net.Conn
		fill byte
	}{{a, 'A'}, {b, 'B'}} {
		tc := tc
		eg.Go(func() error {
			_ = tc.c.SetDeadline(time.Now().Add(5 * time.Second))
			payload := bytes.Repeat([]byte{tc.fill}, 1024)
			for i := 0; i < 50; i++ {
				if _, err := tc.c.Write(payload); err != nil {
					return err
				}
				got := make([]byte, len(payload))
				if _, err := io.ReadFull(tc.c, got); err != nil {
					return err
				}
				if !bytes.Equal(payload, got) {
					return fmt.Errorf("client %c received foreign bytes", tc.fill)
				}
			}
			return nil
		})
	}
	require.NoError(t, eg.Wait())
}

func TestPeerResetIsolated(t *testing.T) {
	var handlers []*trackingHandler
	var mu sync.Mutex
	ln := startTestListener(t, 9605, func() Handler {
		h := &trackingHandler{Handler: NewEchoHandler(nil)}
		mu.Lock()
		handlers = append(handlers, h)
		mu.Unlock()
		return h
	})

	bystander := dial(t, 9605)
	echoRoundTrip(t, bystander, []byte("still here"))

	victim := dial(t, 9605)
	echoRoundTrip(t, victim, []byte("x"))
	require.NoError(t, victim.(*net.TCPConn).SetLinger(0))
	require.NoError(t, victim.Close())

	mu.Lock()
	require.Len(t, handlers, 2)
	first, h := handlers[0], handlers[1]
	mu.Unlock()

	require.Eventually(t, func() bool { return atomic.LoadInt32(&h.closed) == 1 }, 3*time.Second, 10*time.Millisecond)
	errs := h.errors()
	require.Len(t, errs, 1)
	var connErr *errorx.ConnectionError
	require.True(t, errors.As(errs[0], &connErr), "OnError got %T", errs[0])
	assert.Equal(t, "read", connErr.Op)
	assert.ErrorIs(t, errs[0], syscall.ECONNRESET)
	assert.Equal(t, StateClosed, h.firstConn().State())

	echoRoundTrip(t, bystander, []byte("unaffected"))
	echoRoundTrip(t, dial(t, 9605), []byte("new"))
	assert.Empty(t, first.errors())
	assert.Equal(t, 2, ln.CountConnections())
}

func TestPeerCloseIsNotAnError(t *testing.T) {
	h := &trackingHandler{Handler: NewEchoHandler(nil)}
	ln := startTestListener(t, 9606, func() Handler { return h })

	c := dial(t, 9606)
	echoRoundTrip(t, c, []byte("bye"))
	require.NoError(t, c.Close())

	require.Eventually(t, func() bool { return atomic.LoadInt32(&h.closed) == 1 }, 3*time.Second, 10*time.Millisecond)
	assert.Empty(t, h.errors())
	assert.Equal(t, StateClosed, h.firstConn().State())
	require.Eventually(t, func() bool { return ln.CountConnections() == 0 }, time.Second, 10*time.Millisecond)
}

func TestEchoAfterHalfClose(t *testing.T) {
	h := &trackingHandler{Handler: NewEchoHandler(nil)}
	ln := startTestListener(t, 9627, func() Handler { return h })

	c := dial(t, 9627)
	payload := make([]byte, 16<<20)
	_, err := rand.Read(payload)
	require.NoError(t, err)

	// Nothing is read until the whole payload is sent, so most of the echo is
	// still pending on the server when the FIN arrives.
	require.NoError(t, c.SetDeadline(time.Now().Add(20*time.Second)))
	_, err = c.Write(payload)
	require.NoError(t, err)
	require.NoError(t, c.(*net.TCPConn).CloseWrite())

	got, err := io.ReadAll(c)
	require.NoError(t, err)
	assert.Equal(t, len(payload), len(got))
	assert.True(t, bytes.Equal(payload, got), "echoed bytes differ from the payload")

	require.Eventually(t, func() bool { return atomic.LoadInt32(&h.closed) == 1 }, 3*time.Second, 10*time.Millisecond)
	assert.Empty(t, h.errors())
	require.Eventually(t, func() bool { return ln.CountConnections() == 0 }, time.Second, 10*time.Millisecond)
}

func TestStart(t *testing.T) {
	factory := func() Handler { return NewEchoHandler(nil) }

	t.Run("invalid-port", func(t *testing.T) {
		for _, port := range []int{0, -1, 65536} {
			_, err := Start(port, factory, WithLogger(logging.Nop()))
			assert.ErrorIs(t, err, errorx.ErrInvalidPort)
		}
	})

	t.Run("nil-factory", func(t *testing.T) {
		_, err := Start(9607, nil, WithLogger(logging.Nop()))
		assert.ErrorIs(t, err, errorx.ErrNilHandlerFactory)
	})

	t.Run("invalid-backlog", func(t *testing.T) {
		_, err := Start(9607, factory, WithLogger(logging.Nop()), WithBacklog(0))
		assert.ErrorIs(t, err, errorx.ErrInvalidBacklog)
	})

	t.Run("invalid-load-balancing", func(t *testing.T) {
		_, err := Start(9607, factory, WithLogger(logging.Nop()), WithBindHost(testHost), WithLoadBalancing(LoadBalancing(9)))
		assert.ErrorIs(t, err, errorx.ErrInvalidLoadBalancing)
		// The port must have been released again.
		ln := startTestListener(t, 9607, factory)
		assert.Equal(t, testAddr(9607), ln.Addr().String())
	})

	t.Run("port-in-use", func(t *testing.T) {
		occupier, err := net.Listen("tcp4", testAddr(9608))
		require.NoError(t, err)
		defer occupier.Close() //nolint:errcheck

		_, err = Start(9608, factory, WithLogger(logging.Nop()), WithBindHost(testHost))
		var bindErr *errorx.BindError
		require.True(t, errors.As(err, &bindErr), "got %v", err)
		assert.Equal(t, testAddr(9608), bindErr.Addr)
		assert.ErrorIs(t, err, syscall.EADDRINUSE)
	})
}

func TestStop(t *testing.T) {
	h := &trackingHandler{Handler: NewEchoHandler(nil)}
	ln, err := Start(9609, func() Handler { return h }, WithBindHost(testHost), WithLogger(logging.Nop()))
	require.NoError(t, err)

	c := dial(t, 9609)
	echoRoundTrip(t, c, []byte("hello"))
	require.Equal(t, 1, ln.CountConnections())

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, ln.Stop(ctx))
	assert.NoError(t, ln.Stop(ctx), "a second Stop is a no-op")

	select {
	case <-ln.Done():
	default:
		t.Fatal("Done is not closed after Stop returned")
	}
	assert.EqualValues(t, 1, atomic.LoadInt32(&h.closed))
	assert.Equal(t, StateClosed, h.firstConn().State())
	assert.Zero(t, ln.CountConnections())

	// The client sees the close and the port is free again.
	require.NoError(t, c.SetReadDeadline(time.Now().Add(time.Second)))
	_, err = c.Read(make([]byte, 1))
	assert.Error(t, err)
	_, err = net.DialTimeout("tcp", testAddr(9609), time.Second)
	assert.Error(t, err)
	again := startTestListener(t, 9609, func() Handler { return NewEchoHandler(nil) })
	echoRoundTrip(t, dial(t, 9609), []byte("again"))
	assert.Equal(t, testAddr(9609), again.Addr().String())
}

// actionHandler returns the action named by the payload.
type actionHandler struct{}

func (actionHandler) OnData(c Conn, buf *inbound.Buffer) Action {
	switch string(buf.ReadAll()) {
	case "close":
		return Close
	case "shutdown":
		return Shutdown
	}
	_, _ = c.Write([]byte("ok"))
	return None
}

func (actionHandler) OnError(Conn, error) {}
func (actionHandler) OnClose(Conn)        {}

func TestHandlerActions(t *testing.T) {
	ln, err := Start(9620, func() Handler { return actionHandler{} }, WithBindHost(testHost), WithLogger(logging.Nop()))
	require.NoError(t, err)
	defer ln.Stop(context.Background()) //nolint:errcheck

	c := dial(t, 9620)
	echoRoundTrip(t, c, []byte("ok"))
	_, err = c.Write([]byte("close"))
	require.NoError(t, err)
	require.NoError(t, c.SetReadDeadline(time.Now().Add(3*time.Second)))
	_, err = c.Read(make([]byte, 1))
	assert.ErrorIs(t, err, io.EOF)

	c = dial(t, 9620)
	_, err = c.Write([]byte("shutdown"))
	require.NoError(t, err)
	select {
	case <-ln.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("listener did not shut down")
	}
	_, err = net.DialTimeout("tcp", testAddr(9620), time.Second)
	assert.Error(t, err)
}

// releasingHandler optionally releases the buffer itself and checks, on the
// event-loop, that every earlier buffer has been released exactly once.
type releasingHandler struct {
	release    bool
	bufs       []*inbound.Buffer
	reads      int32
	violations int32
}

func (h *releasingHandler) OnData(c Conn, buf *inbound.Buffer) Action {
	for _, b := range h.bufs {
		if !b.Released() || !errors.Is(b.Release(), errorx.ErrBufferReleased) {
			atomic.AddInt32(&h.violations, 1)
		}
	}
	h.bufs = append(h.bufs, buf)
	atomic.AddInt32(&h.reads, 1)

	p := append([]byte(nil), buf.ReadAll()...)
	if h.release {
		if err := buf.Release(); err != nil {
			atomic.AddInt32(&h.violations, 1)
		}
	}
	_, _ = c.Write(p)
	return None
}

func (h *releasingHandler) OnError(Conn, error) {}
func (h *releasingHandler) OnClose(Conn)        {}

func TestInboundBufferReleasedOnce(t *testing.T) {
	for i, release := range []bool{false, true} {
		h := &releasingHandler{release: release}
		port := 9621 + i
		startTestListener(t, port, func() Handler { return h })
		c := dial(t, port)
		for j := 0; j < 5; j++ {
			echoRoundTrip(t, c, []byte("chunk"))
		}
		assert.EqualValues(t, 5, atomic.LoadInt32(&h.reads))
		assert.Zero(t, atomic.LoadInt32(&h.violations))
	}
}

// lazyHandler leaves half of every read unconsumed.
type lazyHandler struct{}

func (lazyHandler) OnData(c Conn, buf *inbound.Buffer) Action {
	p, _ := buf.Next(buf.Len() / 2)
	_, _ = c.Write(p)
	return None
}

func (lazyHandler) OnError(Conn, error) {}
func (lazyHandler) OnClose(Conn)        {}

func TestUnreadBytesAreDropped(t *testing.T) {
	logger := new(recordingLogger)
	startTestListener(t, 9623, func() Handler { return lazyHandler{} }, WithLogger(logger))
	c := dial(t, 9623)

	_, err := c.Write([]byte("abcdef"))
	require.NoError(t, err)
	require.NoError(t, c.SetReadDeadline(time.Now().Add(3*time.Second)))
	got := make([]byte, 3)
	_, err = io.ReadFull(c, got)
	require.NoError(t, err)
	assert.Equal(t, "abc", string(got))
	require.Eventually(t, func() bool { return logger.contains("DEBUG", "dropped 3 unread bytes") }, time.Second, 10*time.Millisecond)
}

// asyncHandler answers from another goroutine and closes the connection afterwards.
type asyncHandler struct {
	wg *sync.WaitGroup
}

func (h asyncHandler) OnData(c Conn, buf *inbound.Buffer) Action {
	p := buf.ReadAll()
	reply := append([]byte("async:"), p...)
	h.wg.Add(1)
	go func() {
		defer h.wg.Done()
		_ = c.AsyncWrite(reply, func(c Conn, err error) error {
			if err == nil {
				return c.Close()
			}
			return nil
		})
	}()
	return None
}

func (asyncHandler) OnError(Conn, error) {}
func (asyncHandler) OnClose(Conn)        {}

func TestAsyncWriteAndClose(t *testing.T) {
	var wg sync.WaitGroup
	startTestListener(t, 9624, func() Handler { return asyncHandler{wg: &wg} })
	c := dial(t, 9624)

	_, err := c.Write([]byte("hi"))
	require.NoError(t, err)
	require.NoError(t, c.SetReadDeadline(time.Now().Add(3*time.Second)))
	got, err := io.ReadAll(c)
	require.NoError(t, err)
	assert.Equal(t, "async:hi", string(got))
	wg.Wait()
}

func TestRoundRobinSpreadsConnections(t *testing.T) {
	ln := startTestListener(t, 9625, func() Handler { return NewEchoHandler(nil) }, WithNumEventLoop(2))
	for i := 0; i < 4; i++ {
		echoRoundTrip(t, dial(t, 9625), []byte("x"))
	}
	require.Equal(t, 4, ln.CountConnections())
	ln.eng.eventLoops.iterate(func(i int, el *eventloop) bool {
		assert.EqualValues(t, 2, el.countConn(), "event-loop(%d)", i)
		return true
	})
}

func TestStopTimesOut(t *testing.T) {
	block := make(chan struct{})
	entered := make(chan struct{})
	var once sync.Once
	ln, err := Start(9626, func() Handler { return &blockingHandler{block: block, entered: entered, once: &once} },
		WithBindHost(testHost), WithLogger(logging.Nop()))
	require.NoError(t, err)

	c := dial(t, 9626)
	_, err = c.Write([]byte("x"))
	require.NoError(t, err)
	<-entered

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, ln.Stop(ctx), context.DeadlineExceeded)

	// The listening socket is already gone even though a handler is still running.
	_, err = net.DialTimeout("tcp", testAddr(9626), time.Second)
	assert.Error(t, err)

	close(block)
	select {
	case <-ln.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("listener did not finish stopping")
	}
}

type blockingHandler struct {
	block   chan struct{}
	entered chan struct{}
	once    *sync.Once
}

func (h *blockingHandler) OnData(_ Conn, buf *inbound.Buffer) Action {
	buf.Discard()
	h.once.Do(func() { close(h.entered) })
	<-h.block
	return None
}

func (*blockingHandler) OnError(Conn, error) {}
func (*blockingHandler) OnClose(Conn)        {}
