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

/*
Package netpoll is the event notification facility behind every echoloop event-loop.

The backend is OS-specific:
  - epoll on Linux, woken up through an eventfd
  - kqueue on Darwin/FreeBSD/DragonFly, woken up through an EVFILT_USER event

A Poller watches file descriptors registered with a PollAttachment and runs
the tasks other goroutines hand to it through Trigger. Both happen on the one
goroutine that runs Polling, which is how echoloop serialises every callback
of a connection without locks.

	poller, err := netpoll.OpenPoller()
	if err != nil {
		// handle error
	}
	defer poller.Close()

	_ = poller.AddRead(&netpoll.PollAttachment{FD: fd})
	_ = poller.Polling(func(fd int, ev netpoll.IOEvent, flags netpoll.IOFlags) error {
		// read from or write to fd
		return nil
	})
*/
package netpoll

// PollEventHandler is the callback for I/O events notified by the poller.
type PollEventHandler func(int, IOEvent, IOFlags) error

// PollAttachment is the user data which is about to be stored in "void *ptr" of epoll_data or "void *udata" of kevent.
type PollAttachment struct {
	FD       int
	Callback PollEventHandler
}
