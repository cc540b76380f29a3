// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 The Blechbahn Authors

package cmd

import (
	"errors"
	"fmt"
	"os"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/blechbahn/stellwerk/pkg/gleis"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Read and write decoder configuration variables",
	Long: `Read and write decoder configuration variables (CVs) on the programming
track. CV 1 holds the address on most decoders; the full range runs to
1024. Programming is slow, so each operation may take up to ten seconds
before it gives up.`,
}

var configReadCmd = &cobra.Command{
	Use:   "read ADDR NUMBER",
	Short: "Read one configuration variable",
	Long: `Read one configuration variable from a decoder on the programming track.

Examples:
  # Read the address CV of MM2 locomotive 3
  stellwerk config read 3 1 --port /dev/ttyUSB0

Exit codes:
  0 - Value read
  1 - Bad argument or no reply from the decoder
  2 - Connection error`,
	Args: cobra.ExactArgs(2),
	RunE: runConfigRead,
}

var configWriteCmd = &cobra.Command{
	Use:   "write ADDR NUMBER VALUE",
	Short: "Write one configuration variable",
	Long: `Write one configuration variable to a decoder on the programming track.

Examples:
  # Give the locomotive on the programming track address 42
  stellwerk config write 3 1 42 --port /dev/ttyUSB0

Exit codes:
  0 - Confirmed
  1 - Bad argument or no confirmation
  2 - Connection error`,
	Args: cobra.ExactArgs(3),
	RunE: runConfigWrite,
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configReadCmd)
	configCmd.AddCommand(configWriteCmd)
}

func parseConfigNumber(s string) (uint16, error) {
	n, err := strconv.ParseUint(s, 10, 16)
	if err != nil || n < 1 || n > gleis.ConfigMax {
		return 0, fmt.Errorf("configuration variables are numbered 1..%d, not %q", gleis.ConfigMax, s)
	}
	return uint16(n), nil
}

func runConfigRead(cmd *cobra.Command, args []string) error {
	addr, err := parseLocoAddress(args[0])
	if err != nil {
		return err
	}
	number, err := parseConfigNumber(args[1])
	if err != nil {
		return err
	}

	c, _, err := newController()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Connection error: %v\n", err)
		os.Exit(2)
	}
	defer c.Close()

	value, err := c.ReadConfig(addr, number)
	if err != nil {
		return configFailure(err)
	}
	fmt.Printf("CV %d = %d\n", number, value)
	return nil
}

func runConfigWrite(cmd *cobra.Command, args []string) error {
	addr, err := parseLocoAddress(args[0])
	if err != nil {
		return err
	}
	number, err := parseConfigNumber(args[1])
	if err != nil {
		return err
	}
	v, err := strconv.ParseUint(args[2], 10, 8)
	if err != nil {
		return fmt.Errorf("configuration values are bytes 0..255, not %q", args[2])
	}

	c, _, err := newController()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Connection error: %v\n", err)
		os.Exit(2)
	}
	defer c.Close()

	if err := c.WriteConfig(addr, number, uint8(v)); err != nil {
		return configFailure(err)
	}
	fmt.Printf("CV %d = %d\n", number, v)
	return nil
}

func configFailure(err error) error {
	if errors.Is(err, gleis.ErrTimeout) {
		fmt.Println("No reply from the decoder")
		os.Exit(1)
	}
	fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	os.Exit(2)
	return nil
}
