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

package netpoll

import "golang.org/x/sys/unix"

// IOFlags is unused by epoll and always zero.
type IOFlags = uint16

// IOEvent is the epoll event mask.
type IOEvent = uint32

const (
	initPollEvents   = 128
	maxPollEvents    = 1024
	minPollEvents    = 32
	maxTasksPerRound = 256

	readEvents      = unix.EPOLLIN | unix.EPOLLPRI
	writeEvents     = unix.EPOLLOUT
	readWriteEvents = readEvents | writeEvents
	errEvents       = unix.EPOLLERR | unix.EPOLLHUP | unix.EPOLLRDHUP
)

// IsReadEvent checks if the event is a read event.
func IsReadEvent(event IOEvent) bool {
	return event&readEvents != 0
}

// IsWriteEvent checks if the event is a write event.
func IsWriteEvent(event IOEvent) bool {
	return event&writeEvents != 0
}

// IsErrorEvent reports a hang-up or a pending socket error.
func IsErrorEvent(event IOEvent, _ IOFlags) bool {
	return event&errEvents != 0
}

type eventList struct {
	events []unix.EpollEvent
}

func newEventList() *eventList {
	return &eventList{make([]unix.EpollEvent, initPollEvents)}
}

// fit doubles the list after a wait that filled it and halves it after a
// wait that used less than half of it, within the poll event bounds.
func (el *eventList) fit(n int) {
	if size := nextEventListSize(len(el.events), n); size != len(el.events) {
		el.events = make([]unix.EpollEvent, size)
	}
}
