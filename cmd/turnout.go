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

var turnoutCmd = &cobra.Command{
	Use:   "turnout ADDR [straight|round]",
	Short: "Throw or read a turnout",
	Long: `Throw a turnout to the straight or the curved leg, or read which leg it
points at. This is the accessory command with turnout vocabulary.

Examples:
  # Turnout 5 to straight
  stellwerk turnout 5 straight --port /dev/ttyUSB0

  # Turnout 5 to the curved leg
  stellwerk turnout 5 round --port /dev/ttyUSB0

  # Which way does it point?
  stellwerk turnout 5 --port /dev/ttyUSB0

Exit codes:
  0 - Confirmed
  1 - Bad argument or no confirmation
  2 - Connection error`,
	Args:      cobra.RangeArgs(1, 2),
	ValidArgs: []string{"straight", "round"},
	RunE:      runTurnout,
}

func init() {
	rootCmd.AddCommand(turnoutCmd)
}

func runTurnout(cmd *cobra.Command, args []string) error {
	addr, err := parseAccessoryAddress(args[0])
	if err != nil {
		return err
	}

	var straight bool
	if len(args) == 2 {
		switch args[1] {
		case "straight":
			straight = true
		case "round":
			straight = false
		default:
			return fmt.Errorf("turnout position must be straight or round, not %q", args[1])
		}
	}

	c, _, err := newController()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Connection error: %v\n", err)
		os.Exit(2)
	}
	defer c.Close()

	if len(args) == 1 {
		got, err := c.Turnout(addr)
		if err != nil {
			return turnoutFailure(err)
		}
		if got {
			fmt.Println("Straight")
		} else {
			fmt.Println("Round")
		}
		return nil
	}

	if err := c.SetTurnout(addr, straight); err != nil {
		return turnoutFailure(err)
	}
	fmt.Println("OK")
	return nil
}

func turnoutFailure(err error) error {
	if errors.Is(err, gleis.ErrTimeout) {
		fmt.Println("No confirmation from the track box")
		os.Exit(1)
	}
	fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	os.Exit(2)
	return nil
}
