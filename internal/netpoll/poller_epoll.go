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

import (
	"os"
	"runtime"
	"unsafe"

	"golang.org/x/sys/unix"

	"github.com/echoloop/echoloop/internal/queue"
)

// Poller watches file descriptors with epoll and is woken up through an eventfd.
type Poller struct {
	fd     int
	efd    int
	efdBuf []byte
	tasks  taskQueues
}

// OpenPoller instantiates a poller.
func OpenPoller() (*Poller, error) {
	epfd, err := unix.EpollCreate1(unix.EPOLL_CLOEXEC)
	if err != nil {
		return nil, os.NewSyscallError("epoll_create1", err)
	}
	efd, err := unix.Eventfd(0, unix.EFD_NONBLOCK|unix.EFD_CLOEXEC)
	if err != nil {
		_ = unix.Close(epfd)
		return nil, os.NewSyscallError("eventfd", err)
	}
	p := &Poller{fd: epfd, efd: efd, efdBuf: make([]byte, 8), tasks: newTaskQueues()}
	if err = p.AddRead(&PollAttachment{FD: efd}); err != nil {
		_ = p.Close()
		return nil, err
	}
	return p, nil
}

// Close closes the poller.
func (p *Poller) Close() error {
	_ = unix.Close(p.efd)
	return os.NewSyscallError("close", unix.Close(p.fd))
}

// eventfd expects a host-endian 8-byte counter, see eventfd(2).
var (
	one      uint64 = 1
	oneBytes        = (*(*[8]byte)(unsafe.Pointer(&one)))[:]
)

func (p *Poller) wakeup() error {
	for {
		_, err := unix.Write(p.efd, oneBytes)
		if err != unix.EAGAIN {
			return os.NewSyscallError("write", err)
		}
		// The counter is saturated, reset it and retry.
		_, _ = unix.Read(p.efd, p.efdBuf)
	}
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
// or epoll_wait itself fails.
func (p *Poller) Polling(callback PollEventHandler) error {
	el := newEventList()
	msec := -1
	for {
		n, err := unix.EpollWait(p.fd, el.events, msec)
		if n == 0 || (n < 0 && err == unix.EINTR) {
			msec = -1
			runtime.Gosched()
			continue
		} else if err != nil {
			return os.NewSyscallError("epoll_wait", err)
		}
		msec = 0

		woken := false
		for i := 0; i < n; i++ {
			ev := &el.events[i]
			if fd := int(ev.Fd); fd == p.efd {
				woken = true
				_, _ = unix.Read(p.efd, p.efdBuf)
			} else if err = callback(fd, ev.Events, 0); stopsPolling(err) {
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
	return p.ctl(unix.EPOLL_CTL_ADD, "epoll_ctl add", pa.FD, readWriteEvents)
}

// AddRead registers the given file-descriptor with readable event to the poller.
func (p *Poller) AddRead(pa *PollAttachment) error {
	return p.ctl(unix.EPOLL_CTL_ADD, "epoll_ctl add", pa.FD, readEvents)
}

// ModRead stops watching writability of the given file-descriptor.
func (p *Poller) ModRead(pa *PollAttachment) error {
	return p.ctl(unix.EPOLL_CTL_MOD, "epoll_ctl mod", pa.FD, readEvents)
}

// ModReadWrite starts watching writability of the given file-descriptor.
func (p *Poller) ModReadWrite(pa *PollAttachment) error {
	return p.ctl(unix.EPOLL_CTL_MOD, "epoll_ctl mod", pa.FD, readWriteEvents)
}

// ModWrite stops watching readability and keeps watching writability of the
// given file-descriptor.
func (p *Poller) ModWrite(pa *PollAttachment) error {
	return p.ctl(unix.EPOLL_CTL_MOD, "epoll_ctl mod", pa.FD, writeEvents)
}

// Delete removes the given file-descriptor from the poller.
func (p *Poller) Delete(fd int) error {
	return os.NewSyscallError("epoll_ctl del", unix.EpollCtl(p.fd, unix.EPOLL_CTL_DEL, fd, nil))
}

func (p *Poller) ctl(op int, name string, fd int, events uint32) error {
	return os.NewSyscallError(name, unix.EpollCtl(p.fd, op, fd, &unix.EpollEvent{Fd: int32(fd), Events: events}))
}
