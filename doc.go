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

/*
Package echoloop is a small connection-handling core for TCP byte services. It
makes direct epoll and kqueue syscalls rather than going through the standard
net package: one main reactor accepts connections and hands each of them to one
of a fixed set of event-loops, which runs every callback of that connection on
its own goroutine.

A service plugs in a Handler. Two are provided: the discard handler consumes and
logs what it reads, the echo handler writes every read back to the sender.

Echo server built upon echoloop is shown below:

	package main

	import (
		"context"
		"os"
		"os/signal"

		"github.com/echoloop/echoloop"
		"github.com/echoloop/echoloop/pkg/logging"
	)

	func main() {
		logger, flush := logging.NewConsoleLogger(logging.InfoLevel)
		defer flush() //nolint:errcheck

		ln, err := echoloop.Start(6050, func() echoloop.Handler {
			return echoloop.NewEchoHandler(logger)
		}, echoloop.WithLogger(logger), echoloop.WithMulticore(true))
		if err != nil {
			logger.Fatalf("%v", err)
		}

		sig := make(chan os.Signal, 1)
		signal.Notify(sig, os.Interrupt)
		<-sig
		_ = ln.Stop(context.Background())
	}
*/
package echoloop
