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
	"time"

	"golang.org/x/sys/unix"

	"github.com/echoloop/echoloop/internal/netpoll"
	"github.com/echoloop/echoloop/internal/queue"
	"github.com/echoloop/echoloop/internal/socket"
	errorx "github.com/echoloop/echoloop/pkg/errors"
)

func (eng *engine) accept(fd int, _ netpoll.IOEvent, _ netpoll.IOFlags) error {
	nfd, sa, err := unix.Accept(fd)
	if err != nil {
		switch err {
		case unix.EINTR, unix.EAGAIN, unix.ECONNABORTED:
			// ECONNABORTED means socket has been closed
			// before we accept it, it's not an error.
			return nil
		}
		eng.opts.Logger.Errorf("Accept() failed due to error: %v", err)
		return errorx.ErrAcceptSocket
	}

	if err = os.NewSyscallError("fcntl nonblock", unix.SetNonblock(nfd, true)); err != nil {
		eng.opts.Logger.Warnf("failed to set up connection from %s: %v", socket.SockaddrToTCPAddr(sa), err)
		_ = unix.Close(nfd)
		return nil
	}
	remoteAddr := socket.SockaddrToTCPAddr(sa)
	localAddr := eng.ln.addr
	if lsa, err := unix.Getsockname(nfd); err == nil {
		localAddr = socket.SockaddrToTCPAddr(lsa)
	}
	if eng.opts.TCPKeepAlive > 0 {
		secs := int(eng.opts.TCPKeepAlive / time.Second)
		if secs < 1 {
			secs = 1
		}
		if err = socket.SetKeepAlivePeriod(nfd, secs); err != nil {
			eng.opts.Logger.Warnf("failed to set up TCP keep-alive on connection from %s: %v", remoteAddr, err)
		}
	}
	if eng.opts.TCPNoDelay {
		if err = socket.SetNoDelay(nfd, 1); err != nil {
			eng.opts.Logger.Warnf("failed to set up TCP_NODELAY on connection from %s: %v", remoteAddr, err)
		}
	}

	el := eng.eventLoops.next(remoteAddr)
	c := newTCPConn(nfd, el, localAddr, remoteAddr, eng.factory())
	if err = el.poller.Trigger(queue.HighPriority, el.register, c); err != nil {
		eng.opts.Logger.Errorf("failed to hand connection from %s to event-loop(%d): %v", remoteAddr, el.idx, err)
		_ = unix.Close(nfd)
	}
	return nil
}
