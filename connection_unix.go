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
	"net"
	"os"
	"sync/atomic"

	"golang.org/x/sys/unix"

	"github.com/echoloop/echoloop/internal/netpoll"
	"github.com/echoloop/echoloop/internal/queue"
	"github.com/echoloop/echoloop/pkg/buffer/outbound"
	errorx "github.com/echoloop/echoloop/pkg/errors"
)

type conn struct {
	fd             int                    // file descriptor
	ctx            interface{}            // user-defined context
	state          int32                  // ConnState
	loop           *eventloop             // connected event-loop
	handler        Handler                // handler created by the factory for this connection
	pollAttachment netpoll.PollAttachment // connection attachment for poller
	localAddr      net.Addr               // local addr
	remoteAddr     net.Addr               // remote addr
	outbound       outbound.Buffer        // bytes waiting for the socket to become writable
	writeErr       error                  // first write failure, handled after the running callback
	readClosed     bool                   // the peer half-closed, the connection closes once outbound drains
}

func newTCPConn(fd int, el *eventloop, localAddr, remoteAddr net.Addr, handler Handler) (c *conn) {
	c = &conn{
		fd:         fd,
		loop:       el,
		handler:    handler,
		localAddr:  localAddr,
		remoteAddr: remoteAddr,
	}
	c.pollAttachment = netpoll.PollAttachment{FD: fd}
	return
}

func (c *conn) setState(s ConnState) {
	atomic.StoreInt32(&c.state, int32(s))
}

// write hands p to the kernel, queueing the rest behind any pending output.
func (c *conn) write(p []byte) (int, error) {
	if c.writeErr != nil {
		return 0, c.writeErr
	}
	if len(p) == 0 {
		return 0, nil
	}

	// Earlier bytes are still queued, keep the order.
	if !c.outbound.IsEmpty() {
		_, _ = c.outbound.Write(p)
		return len(p), nil
	}

	sent, err := unix.Write(c.fd, p)
	if err != nil && err != unix.EAGAIN {
		c.writeErr = &errorx.ConnectionError{Op: "write", Remote: c.remoteAddr, Err: os.NewSyscallError("write", err)}
		return 0, c.writeErr
	}
	if sent < 0 {
		sent = 0
	}
	if sent < len(p) {
		_, _ = c.outbound.Write(p[sent:])
		if err = c.watchWritable(); err != nil {
			c.writeErr = &errorx.ConnectionError{Op: "write", Remote: c.remoteAddr, Err: err}
			return sent, c.writeErr
		}
	}
	return len(p), nil
}

func (c *conn) watchWritable() error {
	if c.readClosed {
		return c.loop.poller.ModWrite(&c.pollAttachment)
	}
	return c.loop.poller.ModReadWrite(&c.pollAttachment)
}

// flush writes as much pending output as the socket accepts.
func (c *conn) flush() error {
	for !c.outbound.IsEmpty() {
		n, err := unix.Write(c.fd, c.outbound.Peek())
		if n > 0 {
			c.outbound.Discard(n)
		}
		switch err {
		case nil:
		case unix.EAGAIN:
			return nil
		default:
			return os.NewSyscallError("write", err)
		}
	}
	return nil
}

type asyncWriteTask struct {
	c        *conn
	buf      []byte
	callback AsyncCallback
}

func (c *conn) asyncWrite(a interface{}) (err error) {
	task := a.(*asyncWriteTask)
	if c.State() != StateOpen {
		if task.callback != nil {
			_ = task.callback(c, errorx.ErrConnClosed)
		}
		return nil
	}

	_, err = c.write(task.buf)
	if task.callback != nil {
		_ = task.callback(c, err)
	}
	if c.writeErr != nil {
		return c.loop.close(c, c.writeErr)
	}
	return nil
}

func (c *conn) asyncClose(_ interface{}) error {
	return c.loop.close(c, nil)
}

// ================================== Concurrency-safe API's ==================================

func (c *conn) LocalAddr() net.Addr  { return c.localAddr }
func (c *conn) RemoteAddr() net.Addr { return c.remoteAddr }

func (c *conn) State() ConnState {
	return ConnState(atomic.LoadInt32(&c.state))
}

func (c *conn) AsyncWrite(p []byte, callback AsyncCallback) error {
	if c.State() != StateOpen {
		return errorx.ErrConnClosed
	}
	if c.loop.engine.isInShutdown() {
		return errorx.ErrEngineInShutdown
	}
	buf := make([]byte, len(p))
	copy(buf, p)
	return c.loop.poller.Trigger(queue.LowPriority, c.asyncWrite, &asyncWriteTask{c: c, buf: buf, callback: callback})
}

func (c *conn) Close() error {
	if c.State() != StateOpen {
		return nil
	}
	if c.loop.engine.isInShutdown() {
		return errorx.ErrEngineInShutdown
	}
	return c.loop.poller.Trigger(queue.LowPriority, c.asyncClose, nil)
}

// =================================== Event-loop only API's ===================================

func (c *conn) Context() interface{}       { return c.ctx }
func (c *conn) SetContext(ctx interface{}) { c.ctx = ctx }

func (c *conn) Write(p []byte) (int, error) {
	if c.State() != StateOpen {
		return 0, errorx.ErrConnClosed
	}
	return c.write(p)
}

func (c *conn) OutboundBuffered() int {
	return c.outbound.Len()
}
