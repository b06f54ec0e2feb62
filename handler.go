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

package echoloop

import (
	"fmt"
	"strings"

	"github.com/echoloop/echoloop/pkg/buffer/inbound"
	errorx "github.com/echoloop/echoloop/pkg/errors"
	"github.com/echoloop/echoloop/pkg/logging"
)

// Mode selects one of the built-in handlers.
type Mode int

const (
	// ModeEcho writes every read back to the peer.
	ModeEcho Mode = iota
	// ModeDiscard consumes and logs every read without replying.
	ModeDiscard
)

func (m Mode) String() string {
	switch m {
	case ModeEcho:
		return "echo"
	case ModeDiscard:
		return "discard"
	}
	return fmt.Sprintf("Mode(%d)", int(m))
}

// ParseMode parses "echo" or "discard", case-insensitively.
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "echo":
		return ModeEcho, nil
	case "discard":
		return ModeDiscard, nil
	}
	return 0, fmt.Errorf("%w: %q", errorx.ErrInvalidMode, s)
}

// MarshalText implements encoding.TextMarshaler.
func (m Mode) MarshalText() ([]byte, error) {
	switch m {
	case ModeEcho, ModeDiscard:
		return []byte(m.String()), nil
	}
	return nil, fmt.Errorf("%w: %d", errorx.ErrInvalidMode, int(m))
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (m *Mode) UnmarshalText(text []byte) error {
	mode, err := ParseMode(string(text))
	if err != nil {
		return err
	}
	*m = mode
	return nil
}

// NewHandlerFactory returns the factory of the handler selected by mode.
// A nil logger is replaced by logging.Nop().
func NewHandlerFactory(mode Mode, logger logging.Logger) (HandlerFactory, error) {
	if logger == nil {
		logger = logging.Nop()
	}
	switch mode {
	case ModeEcho:
		return func() Handler { return NewEchoHandler(logger) }, nil
	case ModeDiscard:
		return func() Handler { return NewDiscardHandler(logger) }, nil
	}
	return nil, fmt.Errorf("%w: %d", errorx.ErrInvalidMode, int(mode))
}

// DiscardHandler consumes everything it reads and never replies.
type DiscardHandler struct {
	logger logging.Logger
}

// NewDiscardHandler creates a DiscardHandler.
func NewDiscardHandler(logger logging.Logger) *DiscardHandler {
	if logger == nil {
		logger = logging.Nop()
	}
	return &DiscardHandler{logger: logger}
}

// OnData logs the payload and drops it.
func (h *DiscardHandler) OnData(c Conn, buf *inbound.Buffer) Action {
	h.logger.Infof("discard: received %d bytes from %s: %q", buf.Len(), c.RemoteAddr(), buf.Bytes())
	buf.Discard()
	return None
}

// OnError logs err, the connection is closed afterwards.
func (h *DiscardHandler) OnError(c Conn, err error) {
	h.logger.Errorf("discard: connection %s failed: %v", c.RemoteAddr(), err)
}

// OnClose logs the close.
func (h *DiscardHandler) OnClose(c Conn) {
	h.logger.Debugf("discard: connection %s closed", c.RemoteAddr())
}

// EchoHandler writes back exactly the bytes it reads.
type EchoHandler struct {
	logger logging.Logger
}

// NewEchoHandler creates an EchoHandler.
func NewEchoHandler(logger logging.Logger) *EchoHandler {
	if logger == nil {
		logger = logging.Nop()
	}
	return &EchoHandler{logger: logger}
}

// OnData writes the received bytes back. Conn.Write copies whatever the
// kernel does not take right away, so the read buffer is not retained.
func (h *EchoHandler) OnData(c Conn, buf *inbound.Buffer) Action {
	p := buf.ReadAll()
	if len(p) == 0 {
		return None
	}
	h.logger.Debugf("echo: %d bytes from %s", len(p), c.RemoteAddr())
	// A failed write is reported once, through OnError when the event-loop
	// closes the connection.
	_, _ = c.Write(p)
	return None
}

// OnError logs err, the connection is closed afterwards.
func (h *EchoHandler) OnError(c Conn, err error) {
	h.logger.Errorf("echo: connection %s failed: %v", c.RemoteAddr(), err)
}

// OnClose logs the close.
func (h *EchoHandler) OnClose(c Conn) {
	h.logger.Debugf("echo: connection %s closed", c.RemoteAddr())
}
