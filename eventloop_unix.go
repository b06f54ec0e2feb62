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
	"os"

	"golang.org/x/sys/unix"

	"github.com/echoloop/echoloop/internal/netpoll"
	"github.com/echoloop/echoloop/pkg/buffer/inbound"
	errorx "github.com/echoloop/echoloop/pkg/errors"
	"github.com/echoloop/echoloop/pkg/logging"
)

type eventloop struct {
	ln          *listener       // listener
	idx         int             // loop index in the engine loops list
	engine      *engine         // engine in loop
	poller      *netpoll.Poller // epoll or kqueue
	buffer      []byte          // read packet buffer whose capacity is set by user, default value is 64KB
	connections connMatrix      // loop connections storage
}

func (el *eventloop) getLogger() logging.Logger {
	return el.engine.opts.Logger
}

func (el *eventloop) countConn() int32 {
	return el.connections.loadCount()
}

func (el *eventloop) closeConns() {
	// Close loops and all outstanding connections
	el.connections.iterate(func(c *conn) bool {
		_ = el.close(c, nil)
		return true
	})
}

// finishPending runs the tasks left in the poller after the loop stopped
// polling, connections handed over by the acceptor among them, and closes
// whatever they opened. It runs on the engine's stop goroutine.
func (el *eventloop) finishPending() {
	el.poller.RunPending()
	el.closeConns()
}

func (el *eventloop) register(a interface{}) error {
	c := a.(*conn)
	if err := el.poller.AddRead(&c.pollAttachment); err != nil {
		el.getLogger().Errorf("event-loop(%d) failed to register connection from %s: %v", el.idx, c.remoteAddr, err)
		_ = unix.Close(c.fd)
		c.setState(StateClosed)
		return nil
	}
	el.connections.addConn(c)
	c.setState(StateOpen)
	el.getLogger().Debugf("event-loop(%d) opened connection from %s", el.idx, c.remoteAddr)
	return nil
}

func (el *eventloop) read(c *conn) error {
	n, err := unix.Read(c.fd, el.buffer)
	if err != nil || n == 0 {
		if err == unix.EAGAIN {
			return nil
		}
		if err == nil {
			// The peer closed its side, which is not a failure.
			return el.closeRead(c)
		}
		return el.close(c, &errorx.ConnectionError{Op: "read", Remote: c.remoteAddr, Err: os.NewSyscallError("read", err)})
	}

	buf := inbound.Lease(el.buffer[:n], nil)
	action := c.handler.OnData(c, buf)
	if !buf.Released() {
		if left := buf.Discard(); left > 0 {
			el.getLogger().Debugf("event-loop(%d) dropped %d unread bytes from %s", el.idx, left, c.remoteAddr)
		}
		_ = buf.Release()
	}

	if c.writeErr != nil {
		return el.close(c, c.writeErr)
	}
	return el.handleAction(c, action)
}

func (el *eventloop) write(c *conn) error {
	if err := c.flush(); err != nil {
		c.writeErr = &errorx.ConnectionError{Op: "write", Remote: c.remoteAddr, Err: err}
		return el.close(c, c.writeErr)
	}

	// All data have been sent, it's no need to monitor the writable events,
	// remove the writable event from poller to help the future event-loops.
	if c.outbound.IsEmpty() {
		if c.readClosed {
			return el.close(c, nil)
		}
		if err := el.poller.ModRead(&c.pollAttachment); err != nil {
			el.getLogger().Warnf("event-loop(%d) failed to stop watching writability of %s: %v", el.idx, c.remoteAddr, err)
		}
	}
	return nil
}

// closeRead handles EOF from the peer. Pending output is still delivered:
// the loop stops watching reads and closes c once the outbound buffer drains.
func (el *eventloop) closeRead(c *conn) error {
	if c.outbound.IsEmpty() || c.readClosed {
		return el.close(c, nil)
	}
	c.readClosed = true
	if err := el.poller.ModWrite(&c.pollAttachment); err != nil {
		return el.close(c, &errorx.ConnectionError{Op: "read", Remote: c.remoteAddr, Err: err})
	}
	el.getLogger().Debugf("event-loop(%d) peer %s half-closed, draining %d pending bytes", el.idx, c.remoteAddr, c.outbound.Len())
	return nil
}

// close moves c through closing to closed. It fires OnError when err is not
// nil, then OnClose, and ignores connections that are no longer registered.
func (el *eventloop) close(c *conn, err error) error {
	if c.State() != StateOpen || el.connections.getConn(c.fd) != c {
		return nil
	}
	c.setState(StateClosing)

	if err != nil {
		c.handler.OnError(c, err)
	}

	if c.writeErr == nil {
		reason := "socket not writable"
		if ferr := c.flush(); ferr != nil {
			reason = ferr.Error()
		}
		if left := c.outbound.Len(); left > 0 {
			el.getLogger().Warnf("event-loop(%d) dropped %d pending bytes to %s: %s", el.idx, left, c.remoteAddr, reason)
		}
	}

	c.handler.OnClose(c)

	if derr := el.poller.Delete(c.fd); derr != nil {
		el.getLogger().Warnf("event-loop(%d) failed to delete fd=%d from poller: %v", el.idx, c.fd, derr)
	}
	if cerr := unix.Close(c.fd); cerr != nil {
		el.getLogger().Warnf("event-loop(%d) failed to close fd=%d: %v", el.idx, c.fd, os.NewSyscallError("close", cerr))
	}
	el.connections.delConn(c)
	c.outbound.Release()
	c.setState(StateClosed)

	return nil
}

func (el *eventloop) handleAction(c *conn, action Action) error {
	switch action {
	case None:
		return nil
	case Close:
		return el.close(c, nil)
	case Shutdown:
		return errorx.ErrEngineShutdown
	default:
		return nil
	}
}
