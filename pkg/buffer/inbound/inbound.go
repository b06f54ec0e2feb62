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

// Package inbound implements the buffer handed to a handler for one read event.
//
// A Buffer is a view over an arena owned by the event-loop. It is valid from
// the moment the loop hands it out until Release, which succeeds exactly once.
// The loop releases every buffer it hands out after the handler returns unless
// the handler already did, so each read event ends with exactly one release.
// Bytes returned by Next, ReadAll or Bytes alias the arena and must be copied
// if they are needed after the buffer is released.
package inbound

import "github.com/echoloop/echoloop/pkg/errors"

// Buffer is a read-event scoped byte buffer with a reader index.
type Buffer struct {
	b        []byte
	r        int
	released bool
	recycle  func(*Buffer)
}

// Lease returns a Buffer over b. recycle, if not nil, runs once when the
// buffer is released, giving the arena back to its owner.
func Lease(b []byte, recycle func(*Buffer)) *Buffer {
	return &Buffer{b: b, recycle: recycle}
}

// Len returns the number of unread bytes.
func (buf *Buffer) Len() int {
	if buf.released {
		return 0
	}
	return len(buf.b) - buf.r
}

// Readable reports whether there are unread bytes left.
func (buf *Buffer) Readable() bool {
	return buf.Len() > 0
}

// Bytes returns the unread bytes without advancing the reader.
func (buf *Buffer) Bytes() []byte {
	if buf.released {
		return nil
	}
	return buf.b[buf.r:]
}

// Next returns the next n unread bytes and advances the reader, n is capped at Len.
func (buf *Buffer) Next(n int) ([]byte, error) {
	if buf.released {
		return nil, errors.ErrBufferReleased
	}
	if n < 0 || n > buf.Len() {
		n = buf.Len()
	}
	p := buf.b[buf.r : buf.r+n]
	buf.r += n
	return p, nil
}

// ReadAll reads the buffer to exhaustion and returns what was unread.
func (buf *Buffer) ReadAll() []byte {
	p, _ := buf.Next(-1)
	return p
}

// Discard consumes all unread bytes without looking at them and returns how many were dropped.
func (buf *Buffer) Discard() int {
	n := buf.Len()
	if n > 0 {
		buf.r += n
	}
	return n
}

// Released reports whether the buffer has been released.
func (buf *Buffer) Released() bool {
	return buf.released
}

// Release hands the buffer back to its owner. Any call after the first
// returns ErrBufferReleased and has no effect.
func (buf *Buffer) Release() error {
	if buf.released {
		return errors.ErrBufferReleased
	}
	buf.released = true
	if buf.recycle != nil {
		buf.recycle(buf)
	}
	buf.b, buf.r, buf.recycle = nil, 0, nil
	return nil
}
