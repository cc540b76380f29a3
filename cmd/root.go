// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 The Blechbahn Authors

package cmd

import (
	"github.com/spf13/cobra"
)

var (
	// Serial connection flags
	portName string
	baudRate int

	// WebSocket bridge flags
	wsURL         string
	wsUsername    string
	wsNoSSLVerify bool

	// Session flags
	sessionHash uint16
	traceWire   bool
)

var rootCmd = &cobra.Command{
	Use:   "stellwerk",
	Short: "Märklin CAN track controller",
	Long: `Stellwerk - A CLI for driving and monitoring a Märklin CAN layout.

Speaks the track format of the Gleisbox and Central Station family: run
locomotives, throw turnouts and signals, program decoders, and watch the
bus traffic live.

Connection modes:
  Serial:    --port /dev/ttyUSB0 [--baud 115200]   (SLCAN adapter)
  WebSocket: --url ws://host/path [--username user] (CAN bridge)

For WebSocket authentication, the password is read from the
STELLWERK_PASSWORD environment variable, or prompted interactively if not
set. The --password flag is intentionally not provided to avoid leaking
credentials in shell history.`,
	Version: "0.9.0",
}

func init() {
	// Serial connection flags
	rootCmd.PersistentFlags().StringVarP(&portName, "port", "p", "", "Serial port device")
	rootCmd.PersistentFlags().IntVarP(&baudRate, "baud", "b", 115200, "Baud rate (serial only)")

	// WebSocket bridge flags
	rootCmd.PersistentFlags().StringVarP(&wsURL, "url", "u", "", "WebSocket URL (ws:// or wss://)")
	rootCmd.PersistentFlags().StringVar(&wsUsername, "username", "", "Username for HTTP Basic auth")
	rootCmd.PersistentFlags().BoolVar(&wsNoSSLVerify, "no-ssl-verify", false, "Skip TLS certificate verification (wss:// only)")

	// Session flags
	rootCmd.PersistentFlags().Uint16Var(&sessionHash, "hash", 0, "Session tag for outgoing frames (0 derives one)")
	rootCmd.PersistentFlags().BoolVar(&traceWire, "trace", false, "Trace wire traffic on stderr")
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}
