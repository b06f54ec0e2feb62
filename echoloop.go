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
	"net"

	"github.com/echoloop/echoloop/pkg/buffer/inbound"
)

// Action is an action that occurs after the completion of an event.
type Action int

const (
	// None indicates that no action should occur following an event.
	None Action = iota

	// Close closes the connection.
	Close

	// Shutdown shutdowns the listener and every connection it owns.
	Shutdown
)

// ConnState is the lifecycle state of a connection.
type ConnState int32

const (
	// StateOpen is the state of a connection that is registered on its event-loop
	// and delivers read events to its handler.
	StateOpen ConnState = iota
	// StateClosing is the state of a connection whose close has started:
	// pending output is being flushed and OnClose is about to fire.
	StateClosing
	// StateClosed is the final state, the socket has been released.
	StateClosed
)

func (s ConnState) String() string {
	switch s {
	case StateOpen:
		return "open"
	case StateClosing:
		return "closing"
	case StateClosed:
		return "closed"
	}
	return "unknown"
}

// AsyncCallback is called on the event-loop once an asynchronous write has
// completed, err is nil when the bytes were handed to the kernel or queued
// behind earlier output.
type AsyncCallback func(c Conn, err error) error

// Conn is an accepted TCP connection.
type Conn interface {
	// LocalAddr is the connection's local socket address.
	LocalAddr() net.Addr

	// RemoteAddr is the connection's remote peer address.
	RemoteAddr() net.Addr

	// State returns the current lifecycle state.
	State() ConnState

	// Context returns a user-defined context.
	Context() (ctx interface{})

	// SetContext sets a user-defined context.
	SetContext(ctx interface{})

	// Write writes p to the peer. Whatever the kernel does not accept at once is
	// copied into the connection's outbound buffer and sent when the socket
	// becomes writable, so p may be reused as soon as Write returns.
	//
	// Write must only be called from the connection's event-loop, that is from
	// inside a Handler callback. Use AsyncWrite from other goroutines.
	Write(p []byte) (n int, err error)

	// AsyncWrite copies p and writes it on the connection's event-loop.
	// It is safe to call from any goroutine, callback may be nil.
	AsyncWrite(p []byte, callback AsyncCallback) error

	// OutboundBuffered returns the number of bytes still waiting to be sent.
	// Like Write it must be called on the event-loop.
	OutboundBuffered() int

	// Close closes the connection once the callback that is currently running
	// on its event-loop has returned. It is safe to call from any goroutine and
	// more than once.
	Close() error
}

// Handler reacts to the events of a single connection. The event-loop calls
// its methods sequentially, never concurrently, for the connection it was
// created for.
type Handler interface {
	// OnData fires when bytes arrived on c. The buffer is only valid until OnData
	// returns. It is released by the event-loop after OnData returns unless the
	// handler released it already, and any bytes left unread are discarded.
	OnData(c Conn, buf *inbound.Buffer) (action Action)

	// OnError fires when reading from or writing to c failed. err is always a
	// *errors.ConnectionError. The connection is closing when OnError returns.
	OnError(c Conn, err error)

	// OnClose fires exactly once when c is being closed, after pending output
	// was flushed as far as the socket allowed.
	OnClose(c Conn)
}

// HandlerFactory creates the handler of a newly accepted connection.
type HandlerFactory func() Handler
