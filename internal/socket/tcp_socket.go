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
	"net"
	"os"

	"golang.org/x/sys/unix"

	errorx "github.com/echoloop/echoloop/pkg/errors"
)

var listenerBacklogMaxSize = maxListenerBacklog()

// listenSockaddr resolves addr into the sockaddr to bind and its family.
// v6only is set when the caller asked for tcp6 explicitly or the host is an
// IPv6 literal, so that such a socket never accepts IPv4 peers.
func listenSockaddr(proto, addr string) (sa unix.Sockaddr, family int, v6only bool, err error) {
	tcpAddr, err := net.ResolveTCPAddr(proto, addr)
	if err != nil {
		return nil, 0, false, err
	}
	network, err := tcpNetwork(proto, tcpAddr)
	if err != nil {
		return nil, 0, false, err
	}

	if network == "tcp4" {
		sa4 := &unix.SockaddrInet4{Port: tcpAddr.Port}
		if ip4 := tcpAddr.IP.To4(); ip4 != nil {
			copy(sa4.Addr[:], ip4)
		}
		return sa4, unix.AF_INET, false, nil
	}

	sa6 := &unix.SockaddrInet6{Port: tcpAddr.Port}
	if tcpAddr.IP != nil {
		copy(sa6.Addr[:], tcpAddr.IP.To16())
	}
	if tcpAddr.Zone != "" {
		iface, err := net.InterfaceByName(tcpAddr.Zone)
		if err != nil {
			return nil, 0, false, err
		}
		sa6.ZoneId = uint32(iface.Index)
	}
	return sa6, unix.AF_INET6, network == "tcp6", nil
}

// tcpNetwork picks the address family from the resolved IP when there is
// one, otherwise it trusts the network the caller asked for.
func tcpNetwork(proto string, addr *net.TCPAddr) (string, error) {
	switch {
	case addr.IP.To4() != nil:
		return "tcp4", nil
	case addr.IP.To16() != nil:
		return "tcp6", nil
	}
	switch proto {
	case "tcp", "tcp4", "tcp6":
		return proto, nil
	}
	return "", errorx.ErrUnsupportedTCPProtocol
}

func tcpSocket(proto, addr string, backlog int, sockopts ...Option) (fd int, bound net.Addr, err error) {
	sa, family, v6only, err := listenSockaddr(proto, addr)
	if err != nil {
		return -1, nil, err
	}

	if fd, err = sysSocket(family, unix.SOCK_STREAM, unix.IPPROTO_TCP); err != nil {
		return -1, nil, os.NewSyscallError("socket", err)
	}
	defer func() {
		if err != nil {
			_ = unix.Close(fd)
			fd = -1
		}
	}()

	if v6only {
		if err = SetIPv6Only(fd, 1); err != nil {
			return
		}
	}
	for _, opt := range sockopts {
		if err = opt.SetSockopt(fd, opt.Opt); err != nil {
			return
		}
	}

	if err = os.NewSyscallError("bind", unix.Bind(fd, sa)); err != nil {
		return
	}
	if err = os.NewSyscallError("listen", unix.Listen(fd, ListenBacklog(backlog))); err != nil {
		return
	}

	// The bound address carries the kernel-chosen port when addr asked for port 0.
	local, err := unix.Getsockname(fd)
	if err != nil {
		err = os.NewSyscallError("getsockname", err)
		return
	}
	return fd, SockaddrToTCPAddr(local), nil
}
