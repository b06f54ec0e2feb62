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

//go:build darwin || dragonfly || freebsd

package echoloop

import (
	"github.com/echoloop/echoloop/internal/netpoll"
)

func (c *conn) processIO(_ int, filter netpoll.IOEvent, flags netpoll.IOFlags) error {
	el := c.loop
	if c.readClosed {
		// Only writability is watched, an error surfaces through the write.
		if netpoll.IsWriteEvent(filter) {
			return el.write(c)
		}
		return nil
	}
	switch {
	case netpoll.IsWriteEvent(filter):
		if !c.outbound.IsEmpty() {
			return el.write(c)
		}
		if netpoll.IsErrorEvent(filter, flags) {
			// Nothing left to send and the peer is gone, the read side reports how.
			return el.read(c)
		}
	case netpoll.IsReadEvent(filter):
		return el.read(c)
	}
	return nil
}
