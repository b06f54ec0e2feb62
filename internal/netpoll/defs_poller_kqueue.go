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

package netpoll

import "golang.org/x/sys/unix"

// IOFlags carries the kevent flags, EV_EOF and EV_ERROR among them.
type IOFlags = uint16

// IOEvent is the kevent filter.
type IOEvent = int16

const (
	initPollEvents   = 64
	maxPollEvents    = 512
	minPollEvents    = 16
	maxTasksPerRound = 128

	errFlags = unix.EV_EOF | unix.EV_ERROR
)

// IsReadEvent checks if the event is a read event.
func IsReadEvent(filter IOEvent) bool {
	return filter == unix.EVFILT_READ
}

// IsWriteEvent checks if the event is a write event.
func IsWriteEvent(filter IOEvent) bool {
	return filter == unix.EVFILT_WRITE
}

// IsErrorEvent reports a hang-up or a pending socket error.
func IsErrorEvent(_ IOEvent, flags IOFlags) bool {
	return flags&errFlags != 0
}

type eventList struct {
	events []unix.Kevent_t
}

func newEventList() *eventList {
	return &eventList{make([]unix.Kevent_t, initPollEvents)}
}

// fit doubles the list after a wait that filled it and halves it after a
// wait that used less than half of it, within the poll event bounds.
func (el *eventList) fit(n int) {
	if size := nextEventListSize(len(el.events), n); size != len(el.events) {
		el.events = make([]unix.Kevent_t, size)
	}
}
