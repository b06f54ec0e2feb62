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
	"errors"
	"fmt"
	"runtime"

	"github.com/echoloop/echoloop/internal/netpoll"
	errorx "github.com/echoloop/echoloop/pkg/errors"
)

// poll runs the loop's poller on the calling goroutine until it stops, then
// reports why it stopped. A stop requested through ErrEngineShutdown is not
// an error.
func (el *eventloop) poll(name string, handler netpoll.PollEventHandler) error {
	if el.engine.opts.LockOSThread {
		runtime.LockOSThread()
		defer runtime.UnlockOSThread()
	}

	err := el.poller.Polling(handler)
	if errors.Is(err, errorx.ErrEngineShutdown) {
		el.getLogger().Debugf("%s is exiting on request", name)
		return nil
	}
	if err != nil {
		el.getLogger().Errorf("%s is exiting due to error: %v", name, err)
	}
	return err
}

func (el *eventloop) activateMainReactor() error {
	defer close(el.engine.acceptorDone)

	err := el.poll("main reactor", el.engine.accept)
	el.engine.shutdown(err)
	return err
}

func (el *eventloop) activateSubReactor() error {
	err := el.poll(fmt.Sprintf("event-loop(%d)", el.idx), el.dispatch)
	el.closeConns()
	el.engine.shutdown(err)
	return err
}

// dispatch routes an I/O event to the connection owning fd.
func (el *eventloop) dispatch(fd int, ev netpoll.IOEvent, flags netpoll.IOFlags) error {
	c := el.connections.getConn(fd)
	if c == nil {
		// kqueue forgets a closed fd on its own, epoll has to be told.
		el.getLogger().Debugf("event-loop(%d) received event[fd=%d|ev=%d|flags=%d] of a stale connection", el.idx, fd, ev, flags)
		_ = el.poller.Delete(fd)
		return nil
	}
	return c.processIO(fd, ev, flags)
}
