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

// Package queue provides the task queues an event-loop poller drains between
// two rounds of network events.
package queue

import (
	"sync"

	"github.com/eapache/queue"
)

// Func is the callback function executed by poller.
type Func func(interface{}) error

// Task is a wrapper that contains function and its argument.
type Task struct {
	Exec  Func
	Param interface{}
}

var taskPool = sync.Pool{New: func() interface{} { return new(Task) }}

// GetTask gets a cached Task from pool.
func GetTask() *Task {
	return taskPool.Get().(*Task)
}

// PutTask puts the trashy Task back in pool.
func PutTask(task *Task) {
	task.Exec, task.Param = nil, nil
	taskPool.Put(task)
}

// EventPriority is the priority of a task submitted to a poller.
type EventPriority int

const (
	// HighPriority is for tasks that must run before anything else queued,
	// such as registering a new connection or shutting the loop down.
	HighPriority EventPriority = iota
	// LowPriority is for tasks that may wait, such as asynchronous writes.
	LowPriority
)

// AsyncTaskQueue is a queue storing asynchronous tasks.
type AsyncTaskQueue interface {
	Enqueue(*Task)
	Dequeue() *Task
	IsEmpty() bool
	Length() int32
}

// ringQueue is a mutex-guarded FIFO on top of a growable ring buffer.
type ringQueue struct {
	mu sync.Mutex
	q  *queue.Queue
}

// NewRingQueue instantiates a FIFO task queue that is safe for concurrent use.
func NewRingQueue() AsyncTaskQueue {
	return &ringQueue{q: queue.New()}
}

// Enqueue puts the given task at the tail of the queue.
func (rq *ringQueue) Enqueue(task *Task) {
	rq.mu.Lock()
	rq.q.Add(task)
	rq.mu.Unlock()
}

// Dequeue removes and returns the task at the head of the queue, nil if the queue is empty.
func (rq *ringQueue) Dequeue() *Task {
	rq.mu.Lock()
	defer rq.mu.Unlock()
	if rq.q.Length() == 0 {
		return nil
	}
	return rq.q.Remove().(*Task)
}

// IsEmpty indicates whether this queue is empty or not.
func (rq *ringQueue) IsEmpty() bool {
	return rq.Length() == 0
}

// Length returns the number of queued tasks.
func (rq *ringQueue) Length() int32 {
	rq.mu.Lock()
	n := rq.q.Length()
	rq.mu.Unlock()
	return int32(n)
}
