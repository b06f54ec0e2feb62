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

package netpoll

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sys/unix"

	"github.com/echoloop/echoloop/internal/queue"
	errorx "github.com/echoloop/echoloop/pkg/errors"
)

func TestPollerTasksRunInOrder(t *testing.T) {
	p, err := OpenPoller()
	require.NoError(t, err)
	defer p.Close() //nolint:errcheck

	var seen []int
	record := func(v interface{}) error {
		seen = append(seen, v.(int))
		return nil
	}
	for i := 0; i < 10; i++ {
		require.NoError(t, p.Trigger(queue.LowPriority, record, i))
	}
	require.NoError(t, p.Trigger(queue.LowPriority, func(interface{}) error {
		return errorx.ErrEngineShutdown
	}, nil))

	done := make(chan error, 1)
	go func() {
		done <- p.Polling(func(int, IOEvent, IOFlags) error { return nil })
	}()

	select {
	case err = <-done:
		assert.ErrorIs(t, err, errorx.ErrEngineShutdown)
	case <-time.After(5 * time.Second):
		t.Fatal("poller did not stop")
	}
	assert.Equal(t, []int{0, 1, 2, 3, 4, 5, 6, 7, 8, 9}, seen)
}

func TestPollerUrgentTasksFirst(t *testing.T) {
	p, err := OpenPoller()
	require.NoError(t, err)
	defer p.Close() //nolint:errcheck

	var seen []string
	record := func(v interface{}) error {
		seen = append(seen, v.(string))
		return nil
	}
	require.NoError(t, p.Trigger(queue.LowPriority, record, "low"))
	require.NoError(t, p.Trigger(queue.HighPriority, record, "high"))
	require.NoError(t, p.Trigger(queue.LowPriority, func(interface{}) error {
		return errorx.ErrEngineShutdown
	}, nil))

	err = p.Polling(func(int, IOEvent, IOFlags) error { return nil })
	assert.ErrorIs(t, err, errorx.ErrEngineShutdown)
	assert.Equal(t, []string{"high", "low"}, seen)
}

func TestPollerReadEvent(t *testing.T) {
	p, err := OpenPoller()
	require.NoError(t, err)
	defer p.Close() //nolint:errcheck

	fds, err := unix.Socketpair(unix.AF_UNIX, unix.SOCK_STREAM, 0)
	require.NoError(t, err)
	defer unix.Close(fds[0]) //nolint:errcheck
	defer unix.Close(fds[1]) //nolint:errcheck
	require.NoError(t, unix.SetNonblock(fds[0], true))

	require.NoError(t, p.AddRead(&PollAttachment{FD: fds[0]}))
	_, err = unix.Write(fds[1], []byte("ping"))
	require.NoError(t, err)

	var got []byte
	err = p.Polling(func(fd int, ev IOEvent, _ IOFlags) error {
		assert.Equal(t, fds[0], fd)
		assert.True(t, IsReadEvent(ev))
		buf := make([]byte, 16)
		n, err := unix.Read(fd, buf)
		require.NoError(t, err)
		got = append(got, buf[:n]...)
		return errorx.ErrEngineShutdown
	})
	assert.ErrorIs(t, err, errorx.ErrEngineShutdown)
	assert.Equal(t, "ping", string(got))
	require.NoError(t, p.Delete(fds[0]))
}

func TestPollerRunsTasksBeyondOneRound(t *testing.T) {
	p, err := OpenPoller()
	require.NoError(t, err)
	defer p.Close() //nolint:errcheck

	total := 3*maxTasksPerRound + 7
	count := 0
	for i := 0; i < total; i++ {
		require.NoError(t, p.Trigger(queue.LowPriority, func(interface{}) error {
			count++
			return nil
		}, nil))
	}
	require.NoError(t, p.Trigger(queue.LowPriority, func(interface{}) error {
		return errorx.ErrEngineShutdown
	}, nil))

	err = p.Polling(func(int, IOEvent, IOFlags) error { return nil })
	assert.ErrorIs(t, err, errorx.ErrEngineShutdown)
	assert.Equal(t, total, count)
}

func TestNextEventListSize(t *testing.T) {
	assert.Equal(t, initPollEvents*2, nextEventListSize(initPollEvents, initPollEvents))
	assert.Equal(t, maxPollEvents, nextEventListSize(maxPollEvents, maxPollEvents))
	assert.Equal(t, initPollEvents/2, nextEventListSize(initPollEvents, 1))
	assert.Equal(t, minPollEvents, nextEventListSize(minPollEvents, 1))
	assert.Equal(t, initPollEvents, nextEventListSize(initPollEvents, initPollEvents/2))
}

func TestPollerRunPendingAfterShutdown(t *testing.T) {
	p, err := OpenPoller()
	require.NoError(t, err)
	defer p.Close() //nolint:errcheck

	var seen []string
	record := func(v interface{}) error {
		seen = append(seen, v.(string))
		return nil
	}
	require.NoError(t, p.Trigger(queue.HighPriority, func(interface{}) error {
		return errorx.ErrEngineShutdown
	}, nil))
	require.NoError(t, p.Trigger(queue.HighPriority, record, "queued-behind-exit"))
	require.NoError(t, p.Trigger(queue.LowPriority, record, "low"))

	err = p.Polling(func(int, IOEvent, IOFlags) error { return nil })
	assert.ErrorIs(t, err, errorx.ErrEngineShutdown)
	assert.Empty(t, seen)

	p.RunPending()
	assert.Equal(t, []string{"queued-behind-exit", "low"}, seen)
}
