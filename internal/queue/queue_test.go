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

package queue_test

import (
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/echoloop/echoloop/internal/queue"
)

func TestRingQueueOrder(t *testing.T) {
	q := queue.NewRingQueue()
	assert.True(t, q.IsEmpty())
	assert.Nil(t, q.Dequeue())

	for i := 0; i < 100; i++ {
		task := queue.GetTask()
		task.Param = i
		q.Enqueue(task)
	}
	assert.EqualValues(t, 100, q.Length())

	for i := 0; i < 100; i++ {
		task := q.Dequeue()
		require.NotNil(t, task)
		assert.Equal(t, i, task.Param)
		queue.PutTask(task)
	}
	assert.True(t, q.IsEmpty())
}

func TestRingQueueConcurrent(t *testing.T) {
	const taskNum = 10000
	q := queue.NewRingQueue()
	var wg sync.WaitGroup
	wg.Add(4)
	for p := 0; p < 2; p++ {
		go func() {
			for i := 0; i < taskNum; i++ {
				q.Enqueue(&queue.Task{})
			}
			wg.Done()
		}()
	}

	var counter int32
	for c := 0; c < 2; c++ {
		go func() {
			for {
				task := q.Dequeue()
				if task != nil {
					atomic.AddInt32(&counter, 1)
				}
				if task == nil && atomic.LoadInt32(&counter) == 2*taskNum {
					break
				}
			}
			wg.Done()
		}()
	}
	wg.Wait()

	assert.EqualValues(t, 2*taskNum, atomic.LoadInt32(&counter))
	t.Logf("sent and received all %d tasks", 2*taskNum)
}

func TestPutTaskResets(t *testing.T) {
	task := queue.GetTask()
	task.Exec = func(interface{}) error { return nil }
	task.Param = "x"
	queue.PutTask(task)
	assert.Nil(t, task.Exec)
	assert.Nil(t, task.Param)
}
