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

//go:build !darwin && !dragonfly && !freebsd && !linux

package echoloop

import (
	"context"
	"net"

	errorx "github.com/echoloop/echoloop/pkg/errors"
)

// Listener is a running server. It cannot be created on this platform.
type Listener struct{}

// Start always fails with errors.ErrUnsupportedPlatform on this platform.
func Start(int, HandlerFactory, ...Option) (*Listener, error) {
	return nil, errorx.ErrUnsupportedPlatform
}

func (*Listener) Addr() net.Addr { return nil }

func (*Listener) CountConnections() int { return 0 }

func (*Listener) Done() <-chan struct{} {
	ch := make(chan struct{})
	close(ch)
	return ch
}

func (*Listener) Stop(context.Context) error { return nil }
