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
	"errors"
	"sync/atomic"

	"github.com/echoloop/echoloop/internal/queue"
	errorx "github.com/echoloop/echoloop/pkg/errors"
)

// taskQueues holds the work other goroutines hand to a poller.
type taskQueues struct {
	wakeupCall int32 // 1 while a wake-up is pending
	urgent     queue.AsyncTaskQueue
	normal     queue.AsyncTaskQueue
}

func newTaskQueues() taskQueues {
	return taskQueues{urgent: queue.NewRingQueue(), normal: queue.NewRingQueue()}
}

// push queues fn and reports whether the caller has to wake the poller up.
func (tq *taskQueues) push(priority queue.EventPriority, fn queue.Func, param interface{}) bool {
	task := queue.GetTask()
	task.Exec, task.Param = fn, param
	if priority == queue.HighPriority {
		tq.urgent.Enqueue(task)
	} else {
		tq.normal.Enqueue(task)
	}
	return atomic.CompareAndSwapInt32(&tq.wakeupCall, 0, 1)
}

// drain runs every urgent task and at most maxTasksPerRound normal ones.
// It reports whether tasks are left that need another wake-up, and stops at
// the first task failing with ErrEngineShutdown.
func (tq *taskQueues) drain() (more bool, err error) {
	for task := tq.urgent.Dequeue(); task != nil; task = tq.urgent.Dequeue() {
		if err = runTask(task); err != nil {
			return false, err
		}
	}
	for i := 0; i < maxTasksPerRound; i++ {
		task := tq.normal.Dequeue()
		if task == nil {
			break
		}
		if err = runTask(task); err != nil {
			return false, err
		}
	}
	atomic.StoreInt32(&tq.wakeupCall, 0)
	if tq.normal.IsEmpty() && tq.urgent.IsEmpty() {
		return false, nil
	}
	return atomic.CompareAndSwapInt32(&tq.wakeupCall, 0, 1), nil
}

// runAll runs every queued task, whatever they return.
func (tq *taskQueues) runAll() {
	for !tq.urgent.IsEmpty() || !tq.normal.IsEmpty() {
		for task := tq.urgent.Dequeue(); task != nil; task = tq.urgent.Dequeue() {
			_ = runTask(task)
		}
		if task := tq.normal.Dequeue(); task != nil {
			_ = runTask(task)
		}
	}
	atomic.StoreInt32(&tq.wakeupCall, 0)
}

// RunPending runs the tasks still queued after Polling returned. It must only
// be called once no goroutine is polling p.
func (p *Poller) RunPending() {
	p.tasks.runAll()
}

func runTask(task *queue.Task) error {
	err := task.Exec(task.Param)
	queue.PutTask(task)
	if errors.Is(err, errorx.ErrEngineShutdown) {
		return err
	}
	return nil
}

// stopsPolling reports whether an event callback error ends Polling.
func stopsPolling(err error) bool {
	return errors.Is(err, errorx.ErrAcceptSocket) || errors.Is(err, errorx.ErrEngineShutdown)
}

func nextEventListSize(size, used int) int {
	switch {
	case used == size && size<<1 <= maxPollEvents:
		return size << 1
	case used < size>>1 && size>>1 >= minPollEvents:
		return size >> 1
	}
	return size
}
