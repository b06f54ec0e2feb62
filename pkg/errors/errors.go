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

// Package errors defines common errors for echoloop.
package errors

import (
	"errors"
	"net"
)

var (
	// ErrEngineShutdown occurs when server is closing.
	ErrEngineShutdown = errors.New("echoloop: server is going to be shutdown")
	// ErrEngineInShutdown occurs when attempting to use a server that is shutting down or already stopped.
	ErrEngineInShutdown = errors.New("echoloop: server is already in shutdown")
	// ErrAcceptSocket occurs when acceptor does not accept the new connection properly.
	ErrAcceptSocket = errors.New("echoloop: accept a new connection error")
	// ErrUnsupportedPlatform occurs when running on a platform without epoll or kqueue.
	ErrUnsupportedPlatform = errors.New("echoloop: unsupported platform")
	// ErrUnsupportedTCPProtocol occurs when trying to use an unsupported TCP protocol.
	ErrUnsupportedTCPProtocol = errors.New("echoloop: only tcp/tcp4/tcp6 are supported")
	// ErrInvalidPort occurs when the port is outside of 1-65535.
	ErrInvalidPort = errors.New("echoloop: port must be within 1-65535")
	// ErrInvalidBacklog occurs when the listen backlog is not positive.
	ErrInvalidBacklog = errors.New("echoloop: backlog must be positive")
	// ErrInvalidMode occurs when the handler mode is neither discard nor echo.
	ErrInvalidMode = errors.New("echoloop: mode must be one of discard, echo")
	// ErrInvalidLoadBalancing occurs when the load-balancing algorithm is unknown.
	ErrInvalidLoadBalancing = errors.New("echoloop: unknown load-balancing algorithm")
	// ErrNilHandlerFactory occurs when starting a listener without a handler factory.
	ErrNilHandlerFactory = errors.New("echoloop: handler factory is nil")
	// ErrBufferReleased occurs when an inbound buffer is used or released after it was released.
	ErrBufferReleased = errors.New("echoloop: buffer has already been released")
	// ErrConnClosed occurs when writing to or closing a connection that is no longer open.
	ErrConnClosed = errors.New("echoloop: connection is closed")
	// ErrEchoMismatch occurs when an echo server returns bytes different from what was sent.
	ErrEchoMismatch = errors.New("echoloop: echoed bytes differ from the bytes sent")
	// ErrUnexpectedReply occurs when a discard server sends bytes back.
	ErrUnexpectedReply = errors.New("echoloop: discard server replied")
)

// BindError is returned by Start when the listening socket cannot be set up,
// e.g. the port is taken or binding is not permitted. It is fatal.
type BindError struct {
	Addr string
	Err  error
}

func (e *BindError) Error() string {
	return "echoloop: failed to bind " + e.Addr + ": " + e.Err.Error()
}

func (e *BindError) Unwrap() error { return e.Err }

// ConnectionError reports a read or write failure on an established connection.
// It only ever affects the connection it was raised on.
type ConnectionError struct {
	Op     string
	Remote net.Addr
	Err    error
}

func (e *ConnectionError) Error() string {
	s := "echoloop: " + e.Op
	if e.Remote != nil {
		s += " " + e.Remote.String()
	}
	return s + ": " + e.Err.Error()
}

func (e *ConnectionError) Unwrap() error { return e.Err }

// ProtocolError is reserved for handlers that validate framing.
// Neither built-in handler produces it.
type ProtocolError struct {
	Reason string
	Err    error
}

func (e *ProtocolError) Error() string {
	if e.Err == nil {
		return "echoloop: protocol error: " + e.Reason
	}
	return "echoloop: protocol error: " + e.Reason + ": " + e.Err.Error()
}

func (e *ProtocolError) Unwrap() error { return e.Err }
