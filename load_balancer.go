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

//go:build darwin || dragonfly || freebsd || linux

package echoloop

import (
	"fmt"
	"hash/crc32"
	"net"

	errorx "github.com/echoloop/echoloop/pkg/errors"
)

type (
	// loadBalancer is an interface which manipulates the event-loop set.
	loadBalancer interface {
		register(*eventloop)
		next(net.Addr) *eventloop
		iterate(func(int, *eventloop) bool)
		len() int
	}

	// baseLoadBalancer keeps the registered event-loops in order.
	baseLoadBalancer struct {
		eventLoops []*eventloop
	}

	// roundRobinLoadBalancer hands connections to the loops in turn.
	roundRobinLoadBalancer struct {
		baseLoadBalancer
		nextIndex int
	}

	// leastConnectionsLoadBalancer picks the loop with the fewest open connections.
	leastConnectionsLoadBalancer struct {
		baseLoadBalancer
	}

	// sourceAddrHashLoadBalancer keeps every connection of one client IP on one loop.
	sourceAddrHashLoadBalancer struct {
		baseLoadBalancer
	}
)

func newLoadBalancer(lb LoadBalancing) (loadBalancer, error) {
	switch lb {
	case RoundRobin:
		return new(roundRobinLoadBalancer), nil
	case LeastConnections:
		return new(leastConnectionsLoadBalancer), nil
	case SourceAddrHash:
		return new(sourceAddrHashLoadBalancer), nil
	}
	return nil, fmt.Errorf("%w: %d", errorx.ErrInvalidLoadBalancing, int(lb))
}

func (lb *baseLoadBalancer) register(el *eventloop) {
	el.idx = len(lb.eventLoops)
	lb.eventLoops = append(lb.eventLoops, el)
}

func (lb *baseLoadBalancer) iterate(f func(int, *eventloop) bool) {
	for i, el := range lb.eventLoops {
		if !f(i, el) {
			break
		}
	}
}

func (lb *baseLoadBalancer) len() int {
	return len(lb.eventLoops)
}

// All next methods run on the main reactor only.

func (lb *roundRobinLoadBalancer) next(net.Addr) *eventloop {
	el := lb.eventLoops[lb.nextIndex]
	lb.nextIndex = (lb.nextIndex + 1) % len(lb.eventLoops)
	return el
}

func (lb *leastConnectionsLoadBalancer) next(net.Addr) *eventloop {
	best := lb.eventLoops[0]
	fewest := best.countConn()
	for _, el := range lb.eventLoops[1:] {
		if n := el.countConn(); n < fewest {
			best, fewest = el, n
		}
	}
	return best
}

func (lb *sourceAddrHashLoadBalancer) next(remote net.Addr) *eventloop {
	var key []byte
	switch addr := remote.(type) {
	case *net.TCPAddr:
		key = addr.IP
	case nil:
		return lb.eventLoops[0]
	default:
		key = []byte(addr.String())
	}
	return lb.eventLoops[crc32.ChecksumIEEE(key)%uint32(len(lb.eventLoops))]
}
