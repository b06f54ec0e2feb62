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

import (
	"os"
	"runtime"

	"golang.org/x/sys/unix"

	"github.com/echoloop/echoloop/internal/queue"
)

// Poller watches file descriptors with kqueue and is woken up through an
// EVFILT_USER event.
type Poller struct {
	fd    int
	tasks taskQueues
}

// OpenPoller instantiates a poller.
func OpenPoller() (*Poller, error) {
	kfd, err := unix.Kqueue()
	if err != nil {
		return nil, os.NewSyscallError("kqueue", err)
	}
	p := &Poller{fd: kfd, tasks: newTaskQueues()}
	if _, err = unix.Kevent(kfd, []unix.Kevent_t{{
		Ident:  0,
		Filter: unix.EVFILT_USER,
		Flags:  unix.EV_ADD | unix.EV_CLEAR,
	}}, nil, nil); err != nil {
		_ = p.Close()
		return nil, os.NewSyscallError("kevent add|clear", err)
	}
	return p, nil
}

// Close closes the poller.
func (p *Poller) Close() error {
	return os.NewSyscallError("close", unix.Close(p.fd))
}

var wakeupNote = []unix.Kevent_t{{
	Ident:  0,
	Filter: unix.EVFILT_USER,
	Fflags: unix.NOTE_TRIGGER,
}}

func (p *Poller) wakeup() error {
	_, err := unix.Kevent(p.fd, wakeupNote, nil, nil)
	if err == unix.EAGAIN {
		return nil
	}
	return os.NewSyscallError("kevent trigger", err)
}

// Trigger enqueues fn and wakes up the poller to run it on the polling
// goroutine. High-priority tasks all run on the next wake-up, low-priority
// ones in bounded batches.
func (p *Poller) Trigger(priority queue.EventPriority, fn queue.Func, param interface{}) error {
	if p.tasks.push(priority, fn, param) {
		return p.wakeup()
	}
	return nil
}

// Polling blocks the current goroutine, dispatching I/O events to callback
// and running triggered tasks. It returns when a callback fails with
// ErrAcceptSocket or ErrEngineShutdown, a task fails with ErrEngineShutdown,
// or kevent itself fails.
func (p *Poller) Polling(callback PollEventHandler) error {
	el := newEventList()
	var (
		ts  unix.Timespec
		tsp *unix.Timespec
	)
	for {
		n, err := unix.Kevent(p.fd, nil, el.events, tsp)
		if n == 0 || (n < 0 && err == unix.EINTR) {
			tsp = nil
			runtime.Gosched()
			continue
		} else if err != nil {
			return os.NewSyscallError("kevent wait", err)
		}
		tsp = &ts

		woken := false
		for i := 0; i < n; i++ {
			ev := &el.events[i]
			if ev.Filter == unix.EVFILT_USER {
				woken = true
			} else if err = callback(int(ev.Ident), ev.Filter, ev.Flags); stopsPolling(err) {
				return err
			}
		}

		if woken {
			more, err := p.tasks.drain()
			if err != nil {
				return err
			}
			if more {
				if err = p.wakeup(); err != nil {
					return err
				}
			}
		}

		el.fit(n)
	}
}

// AddReadWrite registers the given file-descriptor with readable and writable events to the poller.
func (p *Poller) AddReadWrite(pa *PollAttachment) error {
	return p.kevent("kevent add",
		unix.Kevent_t{Ident: uint64(pa.FD), Flags: unix.EV_ADD, Filter: unix.EVFILT_READ},
		unix.Kevent_t{Ident: uint64(pa.FD), Flags: unix.EV_ADD, Filter: unix.EVFILT_WRITE})
}

// AddRead registers the given file-descriptor with readable event to the poller.
func (p *Poller) AddRead(pa *PollAttachment) error {
	return p.kevent("kevent add",
		unix.Kevent_t{Ident: uint64(pa.FD), Flags: unix.EV_ADD, Filter: unix.EVFILT_READ})
}

// ModRead stops watching writability of the given file-descriptor.
func (p *Poller) ModRead(pa *PollAttachment) error {
	return p.kevent("kevent delete",
		unix.Kevent_t{Ident: uint64(pa.FD), Flags: unix.EV_DELETE, Filter: unix.EVFILT_WRITE})
}

// ModReadWrite starts watching writability of the given file-descriptor.
func (p *Poller) ModReadWrite(pa *PollAttachment) error {
	return p.kevent("kevent add",
		unix.Kevent_t{Ident: uint64(pa.FD), Flags: unix.EV_ADD, Filter: unix.EVFILT_WRITE})
}

// ModWrite stops watching readability and keeps watching writability of the
// given file-descriptor.
func (p *Poller) ModWrite(pa *PollAttachment) error {
	return p.kevent("kevent add|delete",
		unix.Kevent_t{Ident: uint64(pa.FD), Flags: unix.EV_ADD, Filter: unix.EVFILT_WRITE},
		unix.Kevent_t{Ident: uint64(pa.FD), Flags: unix.EV_DELETE, Filter: unix.EVFILT_READ})
}

// Delete is a no-op for kqueue: closing the fd removes its events.
func (*Poller) Delete(_ int) error {
	return nil
}

func (p *Poller) kevent(name string, changes ...unix.Kevent_t) error {
	_, err := unix.Kevent(p.fd, changes, nil, nil)
	return os.NewSyscallError(name, err)
}
