// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 The Blechbahn Authors
//
// Stellwerk - Märklin CAN track controller
//
// A CLI for driving and observing Märklin model railways through the
// CAN track protocol, over an SLCAN serial adapter or a WebSocket
// bridge.

package main

import (
	"os"

	"github.com/blechbahn/stellwerk/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
