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

// Package outbound holds bytes a connection has accepted for writing but the
// kernel has not taken yet.
//
// The backing storage comes from bytebufferpool and is owned by the Buffer:
// it is taken on the first Write and given back to the pool exactly once,
// either when Discard drains the buffer or when Release is called.
package outbound

import "github.com/valyala/bytebufferpool"

// Buffer is a FIFO byte queue, it is not safe for concurrent use.
type Buffer struct {
	bb *bytebufferpool.ByteBuffer
	r  int
}

// Write appends a copy of p, it never fails.
func (b *Buffer) Write(p []byte) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}
	if b.bb == nil {
		b.bb = bytebufferpool.Get()
	}
	return b.bb.Write(p)
}

// Len returns the number of pending bytes.
func (b *Buffer) Len() int {
	if b.bb == nil {
		return 0
	}
	return b.bb.Len() - b.r
}

// IsEmpty reports whether there is nothing pending.
func (b *Buffer) IsEmpty() bool {
	return b.Len() == 0
}

// Peek returns the pending bytes without consuming them.
func (b *Buffer) Peek() []byte {
	if b.bb == nil {
		return nil
	}
	return b.bb.B[b.r:]
}

// Discard consumes n pending bytes and returns how many were consumed.
func (b *Buffer) Discard(n int) int {
	if n <= 0 || b.bb == nil {
		return 0
	}
	if pending := b.Len(); n >= pending {
		b.Release()
		return pending
	}
	b.r += n
	return n
}

// Release gives the storage back to the pool and drops anything pending.
// It is safe to call on an empty or already released Buffer.
func (b *Buffer) Release() {
	if b.bb == nil {
		return
	}
	bytebufferpool.Put(b.bb)
	b.bb, b.r = nil, 0
}
