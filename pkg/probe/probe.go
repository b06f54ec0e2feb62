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

// Package probe checks a running echo or discard server from the outside:
// it opens a number of concurrent TCP clients, sends each a distinct payload
// and verifies the reply, or the lack of one.
package probe

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"strconv"
	"sync"
	"time"

	"go.uber.org/multierr"

	"github.com/echoloop/echoloop"
	errorx "github.com/echoloop/echoloop/pkg/errors"
	"github.com/echoloop/echoloop/pkg/logging"
	"github.com/echoloop/echoloop/pkg/pool/goroutine"
)

const (
	// DefaultClients is the number of concurrent clients.
	DefaultClients = 8
	// DefaultSize is the payload size of every client.
	DefaultSize = 1024
	// DefaultTimeout bounds each client from dial to verdict.
	DefaultTimeout = 5 * time.Second
	// DefaultQuietPeriod is how long a discard server must stay silent.
	DefaultQuietPeriod = 300 * time.Millisecond

	maxConcurrency = 512
)

// Config describes one probe run.
type Config struct {
	// Addr is the host:port of the server.
	Addr string
	// Mode is the behavior the server is expected to have.
	Mode echoloop.Mode
	// Clients is the number of concurrent connections.
	Clients int
	// Size is the number of bytes each client sends.
	Size int
	// Timeout bounds each client.
	Timeout time.Duration
	// QuietPeriod is how long a discard server is watched for stray replies.
	QuietPeriod time.Duration
	// Logger receives per-client failures, nil means no logging.
	Logger logging.Logger
}

func (cfg *Config) normalize() error {
	if cfg.Addr == "" {
		return errors.New("probe: empty server address")
	}
	if _, _, err := net.SplitHostPort(cfg.Addr); err != nil {
		return fmt.Errorf("probe: invalid server address: %w", err)
	}
	if cfg.Mode != echoloop.ModeEcho && cfg.Mode != echoloop.ModeDiscard {
		return errorx.ErrInvalidMode
	}
	if cfg.Clients <= 0 {
		cfg.Clients = DefaultClients
	}
	if cfg.Size <= 0 {
		cfg.Size = DefaultSize
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.QuietPeriod <= 0 {
		cfg.QuietPeriod = DefaultQuietPeriod
	}
	if cfg.QuietPeriod > cfg.Timeout {
		cfg.QuietPeriod = cfg.Timeout
	}
	if cfg.Logger == nil {
		cfg.Logger = logging.Nop()
	}
	return nil
}

// Report summarizes a probe run.
type Report struct {
	Clients int
	Passed  int
	Failed  int
	// BytesSent is the total payload written by all clients.
	BytesSent int64
	// BytesVerified is the total of echoed bytes that matched.
	BytesVerified int64
	Elapsed       time.Duration
}

func (r *Report) String() string {
	return fmt.Sprintf("%d/%d clients passed, %d bytes sent, %d bytes verified in %s",
		r.Passed, r.Clients, r.BytesSent, r.BytesVerified, r.Elapsed)
}

// Run probes the server described by cfg. The returned error combines the
// failures of all clients, the report is returned in either case unless the
// configuration itself is invalid.
func Run(ctx context.Context, cfg Config) (*Report, error) {
	if err := cfg.normalize(); err != nil {
		return nil, err
	}

	size := cfg.Clients
	if size > maxConcurrency {
		size = maxConcurrency
	}
	pool, err := goroutine.NewBlocking(size)
	if err != nil {
		return nil, err
	}
	defer pool.Release()

	var (
		mu     sync.Mutex
		wg     sync.WaitGroup
		errs   error
		report = &Report{Clients: cfg.Clients}
		start  = time.Now()
	)
	record := func(id, verified int, err error) {
		mu.Lock()
		defer mu.Unlock()
		report.BytesSent += int64(cfg.Size)
		report.BytesVerified += int64(verified)
		if err != nil {
			report.Failed++
			errs = multierr.Append(errs, err)
			cfg.Logger.Warnf("probe client %d failed: %v", id, err)
			return
		}
		report.Passed++
	}

	for i := 0; i < cfg.Clients; i++ {
		id := i
		wg.Add(1)
		if err = pool.Submit(func() {
			defer wg.Done()
			verified, err := runClient(ctx, &cfg, id)
			record(id, verified, err)
		}); err != nil {
			wg.Done()
			record(id, 0, fmt.Errorf("probe client %d: %w", id, err))
		}
	}
	wg.Wait()
	report.Elapsed = time.Since(start)

	return report, errs
}

// Payload returns the bytes client id sends: a header naming the client
// followed by a repeating pattern, size bytes in total.
func Payload(id, size int) []byte {
	p := make([]byte, size)
	header := []byte("probe-" + strconv.Itoa(id) + ":")
	n := copy(p, header)
	for i := n; i < size; i++ {
		p[i] = byte('a' + (id+i)%26)
	}
	return p
}

func runClient(ctx context.Context, cfg *Config, id int) (verified int, err error) {
	ctx, cancel := context.WithTimeout(ctx, cfg.Timeout)
	defer cancel()

	var d net.Dialer
	c, err := d.DialContext(ctx, "tcp", cfg.Addr)
	if err != nil {
		return 0, fmt.Errorf("probe client %d: %w", id, err)
	}
	defer c.Close() //nolint:errcheck

	deadline, _ := ctx.Deadline()
	if err = c.SetDeadline(deadline); err != nil {
		return 0, fmt.Errorf("probe client %d: %w", id, err)
	}

	payload := Payload(id, cfg.Size)
	if _, err = c.Write(payload); err != nil {
		return 0, fmt.Errorf("probe client %d: write: %w", id, err)
	}

	switch cfg.Mode {
	case echoloop.ModeEcho:
		got := make([]byte, len(payload))
		n, err := io.ReadFull(c, got)
		if err != nil {
			return 0, fmt.Errorf("probe client %d: read after %d bytes: %w", id, n, err)
		}
		if !bytes.Equal(payload, got) {
			return 0, fmt.Errorf("probe client %d: %w", id, errorx.ErrEchoMismatch)
		}
		return n, nil
	default:
		if err = c.SetReadDeadline(time.Now().Add(cfg.QuietPeriod)); err != nil {
			return 0, fmt.Errorf("probe client %d: %w", id, err)
		}
		n, err := c.Read(make([]byte, 1))
		if n > 0 {
			return 0, fmt.Errorf("probe client %d: %w", id, errorx.ErrUnexpectedReply)
		}
		var netErr net.Error
		if errors.As(err, &netErr) && netErr.Timeout() {
			return 0, nil
		}
		return 0, fmt.Errorf("probe client %d: server closed the connection: %w", id, err)
	}
}
