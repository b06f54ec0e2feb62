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

import "sync/atomic"

// connMatrix is the set of connections owned by one event-loop. The map is
// only touched on the loop goroutine, the count is read by load balancers and
// Listener.CountConnections from other goroutines.
type connMatrix struct {
	connCount int32
	connMap   map[int]*conn
}

func (cm *connMatrix) init() {
	cm.connMap = make(map[int]*conn)
}

func (cm *connMatrix) iterate(f func(*conn) bool) {
	for _, c := range cm.connMap {
		if !f(c) {
			return
		}
	}
}

func (cm *connMatrix) loadCount() int32 {
	return atomic.LoadInt32(&cm.connCount)
}

func (cm *connMatrix) addConn(c *conn) {
	cm.connMap[c.fd] = c
	atomic.AddInt32(&cm.connCount, 1)
}

func (cm *connMatrix) delConn(c *conn) {
	if cm.connMap[c.fd] != c {
		return
	}
	delete(cm.connMap, c.fd)
	atomic.AddInt32(&cm.connCount, -1)
}

func (cm *connMatrix) getConn(fd int) *conn {
	return cm.connMap[fd]
}
