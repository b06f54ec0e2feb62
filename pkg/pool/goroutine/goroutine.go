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

// Package goroutine provides the ants goroutine pool used to fan client work
// out without spawning one goroutine per task.
package goroutine

import (
	"time"

	"github.com/panjf2000/ants/v2"
)

// ExpiryDuration is the interval time to clean up those expired workers.
const ExpiryDuration = 10 * time.Second

// Pool is the alias of ants.Pool.
type Pool = ants.Pool

// NewBlocking instantiates a pool running at most size tasks at once,
// Submit waits for a free worker instead of failing when the pool is full.
func NewBlocking(size int) (*Pool, error) {
	return ants.NewPool(size, ants.WithOptions(ants.Options{ExpiryDuration: ExpiryDuration}))
}
