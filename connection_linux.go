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

//go:build linux

package echoloop

import "github.com/echoloop/echoloop/internal/netpoll"

func (c *conn) processIO(_ int, ev netpoll.IOEvent, _ netpoll.IOFlags) error {
	el := c.loop
	if c.readClosed {
		// Only writability is watched, an error surfaces through the write.
		if netpoll.IsWriteEvent(ev) || netpoll.IsErrorEvent(ev, 0) {
			return el.write(c)
		}
		return nil
	}
	// Drain the outbound buffer before reading so that echoed bytes keep
	// leaving in the order they arrived.
	if netpoll.IsWriteEvent(ev) && !c.outbound.IsEmpty() {
		if err := el.write(c); err != nil {
			return err
		}
		if c.State() != StateOpen {
			return nil
		}
	}

	// EPOLLERR and EPOLLHUP are reported by the read that follows them.
	if netpoll.IsReadEvent(ev) || netpoll.IsErrorEvent(ev, 0) {
		return el.read(c)
	}
	return nil
}
