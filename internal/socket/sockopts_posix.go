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

package socket

import (
	"os"

	"golang.org/x/sys/unix"
)

func setsockoptInt(fd, level, opt, value int) error {
	return os.NewSyscallError("setsockopt", unix.SetsockoptInt(fd, level, opt, value))
}

// SetNoDelay turns Nagle's algorithm off when noDelay is 1.
func SetNoDelay(fd, noDelay int) error {
	return setsockoptInt(fd, unix.IPPROTO_TCP, unix.TCP_NODELAY, noDelay)
}

// SetReuseport enables SO_REUSEPORT option on socket.
func SetReuseport(fd, reusePort int) error {
	return setsockoptInt(fd, unix.SOL_SOCKET, unix.SO_REUSEPORT, reusePort)
}

// SetReuseAddr enables SO_REUSEADDR option on socket.
func SetReuseAddr(fd, reuseAddr int) error {
	return setsockoptInt(fd, unix.SOL_SOCKET, unix.SO_REUSEADDR, reuseAddr)
}

// SetIPv6Only restricts an IPv6 socket to IPv6 peers when ipv6only is 1.
func SetIPv6Only(fd, ipv6only int) error {
	return setsockoptInt(fd, unix.IPPROTO_IPV6, unix.IPV6_V6ONLY, ipv6only)
}

// SetLinger sets SO_LINGER. A negative sec leaves unsent data to the kernel
// after close, zero makes close discard it and reset the connection.
func SetLinger(fd, sec int) error {
	var l unix.Linger
	if sec >= 0 {
		l.Onoff, l.Linger = 1, int32(sec)
	}
	return os.NewSyscallError("setsockopt", unix.SetsockoptLinger(fd, unix.SOL_SOCKET, unix.SO_LINGER, &l))
}

// SetKeepAlive turns SO_KEEPALIVE on or off.
func SetKeepAlive(fd, keepAlive int) error {
	return setsockoptInt(fd, unix.SOL_SOCKET, unix.SO_KEEPALIVE, keepAlive)
}

// SetKeepAlivePeriod enables keep-alive probes on fd, sending the first one
// after secs seconds of idleness and repeating every secs seconds.
func SetKeepAlivePeriod(fd, secs int) error {
	if secs <= 0 {
		return os.NewSyscallError("setsockopt", unix.EINVAL)
	}
	if err := SetKeepAlive(fd, 1); err != nil {
		return err
	}
	if err := setsockoptInt(fd, unix.IPPROTO_TCP, unix.TCP_KEEPINTVL, secs); err != nil {
		return err
	}
	return setsockoptInt(fd, unix.IPPROTO_TCP, tcpKeepIdle, secs)
}
