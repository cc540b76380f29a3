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

var functionCmd = &cobra.Command{
	Use:   "function ADDR N [on|off|toggle]",
	Short: "Switch or read a locomotive function",
	Long: `Switch a locomotive function such as lights (F0), sound or a coupler,
or read whether it is on. Decoders carry up to 32 functions, numbered
F0 through F31.

Examples:
  # Lights on for MM2 locomotive 3
  stellwerk function 3 0 on --port /dev/ttyUSB0

  # Flip the horn, whatever state it is in
  stellwerk function mfx:3 2 toggle --port /dev/ttyUSB0

  # Read the state of F4
  stellwerk function 3 4 --port /dev/ttyUSB0

Exit codes:
  0 - Confirmed
  1 - Bad argument or no confirmation
  2 - Connection error`,
	Args: cobra.RangeArgs(2, 3),
	RunE: runFunction,
}

func init() {
	rootCmd.AddCommand(functionCmd)
}

func runFunction(cmd *cobra.Command, args []string) error {
	addr, err := parseLocoAddress(args[0])
	if err != nil {
		return err
	}

	n, err := strconv.ParseUint(args[1], 10, 8)
	if err != nil || n > gleis.FunctionMax {
		return fmt.Errorf("function number must be 0..%d, not %q", gleis.FunctionMax, args[1])
	}
	fn := uint8(n)

	c, _, err := newController()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Connection error: %v\n", err)
		os.Exit(2)
	}
	defer c.Close()

	if len(args) == 2 {
		on, err := c.LocoFunction(addr, fn)
		if err != nil {
			return functionFailure(err)
		}
		if on {
			fmt.Printf("F%d on\n", fn)
		} else {
			fmt.Printf("F%d off\n", fn)
		}
		return nil
	}

	switch args[2] {
	case "on":
		err = c.SetLocoFunction(addr, fn, 1)
	case "off":
		err = c.SetLocoFunction(addr, fn, 0)
	case "toggle":
		err = c.ToggleLocoFunction(addr, fn)
	default:
		return fmt.Errorf("state must be on, off or toggle, not %q", args[2])
	}
	if err != nil {
		return functionFailure(err)
	}
	fmt.Println("OK")
	return nil
}

func functionFailure(err error) error {
	if errors.Is(err, gleis.ErrTimeout) {
		fmt.Println("No confirmation from the track box")
		os.Exit(1)
	}
	fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	os.Exit(2)
	return nil
}
