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

var speedCmd = &cobra.Command{
	Use:   "speed ADDR [VALUE|+|-]",
	Short: "Set, nudge or read a locomotive's speed",
	Long: `Drive a locomotive at a speed on the 0..1023 scale, nudge it one notch
up or down, or read the speed it runs now.

Examples:
  # Half speed for MM2 locomotive 3
  stellwerk speed 3 512 --port /dev/ttyUSB0

  # One notch faster for an mfx locomotive
  stellwerk speed mfx:3 + --port /dev/ttyUSB0

  # Read the current speed
  stellwerk speed 3 --port /dev/ttyUSB0

Exit codes:
  0 - Confirmed
  1 - Bad argument or no confirmation
  2 - Connection error`,
	Args: cobra.RangeArgs(1, 2),
	RunE: runSpeed,
}

func init() {
	rootCmd.AddCommand(speedCmd)
}

func runSpeed(cmd *cobra.Command, args []string) error {
	addr, err := parseLocoAddress(args[0])
	if err != nil {
		return err
	}

	var value uint16
	if len(args) == 2 && args[1] != "+" && args[1] != "-" {
		v, err := strconv.ParseUint(args[1], 10, 16)
		if err != nil || v > gleis.SpeedMax {
			return fmt.Errorf("speed must be 0..%d, not %q", gleis.SpeedMax, args[1])
		}
		value = uint16(v)
	}

	c, _, err := newController()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Connection error: %v\n", err)
		os.Exit(2)
	}
	defer c.Close()

	if len(args) == 1 {
		speed, err := c.LocoSpeed(addr)
		if err != nil {
			return speedFailure(err)
		}
		fmt.Printf("Speed %d\n", speed)
		return nil
	}

	switch args[1] {
	case "+":
		err = c.AccelerateLoco(addr)
	case "-":
		err = c.DecelerateLoco(addr)
	default:
		err = c.SetLocoSpeed(addr, value)
	}
	if err != nil {
		return speedFailure(err)
	}
	fmt.Println("OK")
	return nil
}

func speedFailure(err error) error {
	if errors.Is(err, gleis.ErrTimeout) {
		fmt.Println("No confirmation from the track box")
		os.Exit(1)
	}
	fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	os.Exit(2)
	return nil
}
