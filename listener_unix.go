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
	"strconv"
	"sync"

	"golang.org/x/sys/unix"

	"github.com/echoloop/echoloop/internal/netpoll"
	"github.com/echoloop/echoloop/internal/socket"
	errorx "github.com/echoloop/echoloop/pkg/errors"
	"github.com/echoloop/echoloop/pkg/logging"
)

// listener is the bound listening socket, watched by the main reactor.
type listener struct {
	once           sync.Once
	fd             int
	addr           net.Addr
	address        string
	pollAttachment *netpoll.PollAttachment
	logger         logging.Logger
}

func (ln *listener) packPollAttachment(handler netpoll.PollEventHandler) *netpoll.PollAttachment {
	ln.pollAttachment = &netpoll.PollAttachment{FD: ln.fd, Callback: handler}
	return ln.pollAttachment
}

// close releases the listening socket, only the first call has an effect.
func (ln *listener) close() {
	ln.once.Do(func() {
		if ln.fd < 0 {
			return
		}
		if err := os.NewSyscallError("close", unix.Close(ln.fd)); err != nil {
			ln.logger.Errorf("failed to close listener %s: %v", ln.address, err)
		}
	})
}

// initListener binds host:port with SO_REUSEADDR, plus SO_REUSEPORT when
// asked for, and starts listening. Failures come back as *errors.BindError.
func initListener(host string, port int, options *Options) (*listener, error) {
	sockOpts := []socket.Option{{SetSockopt: socket.SetReuseAddr, Opt: 1}}
	if options.ReusePort {
		sockOpts = append(sockOpts, socket.Option{SetSockopt: socket.SetReuseport, Opt: 1})
	}

	ln := &listener{address: net.JoinHostPort(host, strconv.Itoa(port)), logger: options.Logger}
	fd, addr, err := socket.TCPSocket("tcp", ln.address, options.Backlog, sockOpts...)
	if err != nil {
		return nil, &errorx.BindError{Addr: ln.address, Err: err}
	}
	ln.fd, ln.addr = fd, addr
	return ln, nil
}
