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

// Package socket creates non-blocking listening TCP sockets and applies
// socket options to them and to the connections they accept.
package socket

import "net"

// The kernel keeps the listen backlog in a 16-bit field.
const maxUint16 = 1<<16 - 1

// Option is used for setting an option on socket.
type Option struct {
	SetSockopt func(int, int) error
	Opt        int
}

// TCPSocket creates a non-blocking TCP socket bound to addr and listening with
// the given backlog, which is clamped to what the kernel allows.
func TCPSocket(proto, addr string, backlog int, sockopts ...Option) (int, net.Addr, error) {
	return tcpSocket(proto, addr, backlog, sockopts...)
}

// ListenBacklog returns the backlog that listen(2) is called with when the
// caller asks for n pending connections.
func ListenBacklog(n int) int {
	if n <= 0 || n > listenerBacklogMaxSize {
		return listenerBacklogMaxSize
	}
	return n
}
