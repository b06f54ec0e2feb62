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

package inbound

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/echoloop/echoloop/pkg/errors"
)

func TestBufferRead(t *testing.T) {
	buf := Lease([]byte("hello world"), nil)
	assert.Equal(t, 11, buf.Len())
	assert.True(t, buf.Readable())

	p, err := buf.Next(5)
	require.NoError(t, err)
	assert.Equal(t, "hello", string(p))
	assert.Equal(t, 6, buf.Len())
	assert.Equal(t, " world", string(buf.Bytes()))

	p, err = buf.Next(100)
	require.NoError(t, err)
	assert.Equal(t, " world", string(p))
	assert.False(t, buf.Readable())

	p, err = buf.Next(1)
	require.NoError(t, err)
	assert.Empty(t, p)
}

func TestBufferReadAllAndDiscard(t *testing.T) {
	buf := Lease([]byte{0x00, 0xff, 0x10, 0x00}, nil)
	assert.Equal(t, []byte{0x00, 0xff, 0x10, 0x00}, buf.ReadAll())
	assert.Equal(t, 0, buf.Len())
	assert.Empty(t, buf.ReadAll())

	buf = Lease([]byte("0123456789"), nil)
	_, _ = buf.Next(3)
	assert.Equal(t, 7, buf.Discard())
	assert.False(t, buf.Readable())
	assert.Equal(t, 0, buf.Discard())

	empty := Lease(nil, nil)
	assert.Equal(t, 0, empty.Discard())
	assert.Empty(t, empty.ReadAll())
}

func TestBufferReleaseExactlyOnce(t *testing.T) {
	var recycled int
	buf := Lease([]byte("ping"), func(b *Buffer) {
		recycled++
		assert.True(t, b.Released())
	})

	require.NoError(t, buf.Release())
	assert.True(t, buf.Released())
	assert.Equal(t, 1, recycled)

	assert.ErrorIs(t, buf.Release(), errors.ErrBufferReleased)
	assert.Equal(t, 1, recycled)

	assert.Equal(t, 0, buf.Len())
	assert.Nil(t, buf.Bytes())
	_, err := buf.Next(1)
	assert.ErrorIs(t, err, errors.ErrBufferReleased)
}
