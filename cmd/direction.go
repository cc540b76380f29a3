// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 The Blechbahn Authors

package cmd

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/blechbahn/stellwerk/pkg/gleis"
)

var directionCmd = &cobra.Command{
	Use:   "direction ADDR [forward|reverse|toggle]",
	Short: "Set or read a locomotive's direction",
	Long: `Turn a locomotive forward or reverse, flip it around, or read which way
it points. Setting a direction stops the locomotive first, as a real
throttle does.

Examples:
  # Point MM2 locomotive 3 forward
  stellwerk direction 3 forward --port /dev/ttyUSB0

  # Turn it around, whichever way it points now
  stellwerk direction 3 toggle --port /dev/ttyUSB0

  # Read the current direction
  stellwerk direction 3 --port /dev/ttyUSB0

Exit codes:
  0 - Confirmed
  1 - Bad argument or no confirmation
  2 - Connection error`,
	Args:      cobra.RangeArgs(1, 2),
	ValidArgs: []string{"forward", "reverse", "toggle"},
	RunE:      runDirection,
}

func init() {
	rootCmd.AddCommand(directionCmd)
}

func runDirection(cmd *cobra.Command, args []string) error {
	addr, err := parseLocoAddress(args[0])
	if err != nil {
		return err
	}

	var dir uint8
	if len(args) == 2 {
		switch args[1] {
		case "forward":
			dir = gleis.DirForward
		case "reverse":
			dir = gleis.DirReverse
		case "toggle":
			dir = gleis.DirChange
		default:
			return fmt.Errorf("direction must be forward, reverse or toggle, not %q", args[1])
		}
	}

	c, _, err := newController()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Connection error: %v\n", err)
		os.Exit(2)
	}
	defer c.Close()

	if len(args) == 1 {
		got, err := c.LocoDirection(addr)
		if err != nil {
			return directionFailure(err)
		}
		fmt.Printf("Direction %s\n", gleis.DirectionName(got))
		return nil
	}

	if dir == gleis.DirChange {
		err = c.ToggleLocoDirection(addr)
	} else {
		err = c.SetLocoDirection(addr, dir)
	}
	if err != nil {
		return directionFailure(err)
	}
	fmt.Println("OK")
	return nil
}

func directionFailure(err error) error {
	if errors.Is(err, gleis.ErrTimeout) {
		fmt.Println("No confirmation from the track box")
		os.Exit(1)
	}
	fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	os.Exit(2)
	return nil
}
