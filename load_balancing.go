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

	errorx "github.com/echoloop/echoloop/pkg/errors"
)

// LoadBalancing represents the type of load-balancing algorithm.
type LoadBalancing int

const (
	// RoundRobin assigns the next accepted connection to the event-loop by polling event-loop list.
	RoundRobin LoadBalancing = iota

	// LeastConnections assigns the next accepted connection to the event-loop that is
	// serving the least number of active connections at the current time.
	LeastConnections

	// SourceAddrHash assigns the next accepted connection to the event-loop by hashing the remote address.
	SourceAddrHash
)

func (lb LoadBalancing) String() string {
	switch lb {
	case RoundRobin:
		return "round-robin"
	case LeastConnections:
		return "least-connections"
	case SourceAddrHash:
		return "source-addr-hash"
	}
	return fmt.Sprintf("LoadBalancing(%d)", int(lb))
}

// ParseLoadBalancing parses the names returned by LoadBalancing.String.
func ParseLoadBalancing(s string) (LoadBalancing, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "round-robin":
		return RoundRobin, nil
	case "least-connections":
		return LeastConnections, nil
	case "source-addr-hash":
		return SourceAddrHash, nil
	}
	return 0, fmt.Errorf("%w: %q", errorx.ErrInvalidLoadBalancing, s)
}
