// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 The Blechbahn Authors

package cmd

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/blechbahn/stellwerk/pkg/gleis"
)

var (
	accessoryHold   time.Duration
	accessoryNoWait bool
)

var accessoryCmd = &cobra.Command{
	Use:   "accessory ADDR [POSITION]",
	Short: "Switch or read a magnetic accessory",
	Long: `Switch a turnout, signal or other magnetic accessory to a position, or
read the position it last reported. Positions go by number (0..3) or by
name; which names make sense depends on what hangs off the decoder:

  0 - off, round, red, right, hp0
  1 - on, green, straight, hp1
  2 - yellow, left, hp2
  3 - white, sh0

With --hold the drive current is released after the given time, which
keeps unbuffered solenoids from burning out.

Examples:
  # Turnout 5 to straight, pulse the coil for 100ms
  stellwerk accessory 5 straight --hold 100ms --port /dev/ttyUSB0

  # Signal 12 (DCC) to hp2
  stellwerk accessory dcc:12 hp2 --port /dev/ttyUSB0

  # Read the last reported position
  stellwerk accessory 5 --port /dev/ttyUSB0

Exit codes:
  0 - Confirmed
  1 - Bad argument or no confirmation
  2 - Connection error`,
	Args: cobra.RangeArgs(1, 2),
	RunE: runAccessory,
}

func init() {
	rootCmd.AddCommand(accessoryCmd)
	accessoryCmd.Flags().DurationVar(&accessoryHold, "hold", 0, "release the drive current after this long (0 keeps it on)")
	accessoryCmd.Flags().BoolVar(&accessoryNoWait, "no-wait", false, "fire and forget, do not wait for a confirmation")
}

// parsePosition accepts both the numeric wire value and the household
// names for the four accessory positions.
func parsePosition(s string) (uint8, error) {
	switch s {
	case "off", "round", "red", "right", "hp0":
		return gleis.AccOff, nil
	case "on", "green", "straight", "hp1":
		return gleis.AccOn, nil
	case "yellow", "left", "hp2":
		return gleis.AccYellow, nil
	case "white", "sh0":
		return gleis.AccWhite, nil
	}
	n, err := strconv.ParseUint(s, 10, 8)
	if err != nil || n > gleis.AccWhite {
		return 0, fmt.Errorf("bad position %q (use 0..3 or a name such as straight)", s)
	}
	return uint8(n), nil
}

func runAccessory(cmd *cobra.Command, args []string) error {
	addr, err := parseAccessoryAddress(args[0])
	if err != nil {
		return err
	}

	var position uint8
	if len(args) == 2 {
		position, err = parsePosition(args[1])
		if err != nil {
			return err
		}
	}

	c, _, err := newController()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Connection error: %v\n", err)
		os.Exit(2)
	}
	defer c.Close()

	if len(args) == 1 {
		got, power, err := c.Accessory(addr)
		if err != nil {
			return accessoryFailure(err)
		}
		state := "released"
		if power {
			state = "driven"
		}
		fmt.Printf("Position %d (%s), %s\n", got, gleis.PositionName(got), state)
		return nil
	}

	if accessoryNoWait {
		if err := c.SendAccessory(addr, position, 1); err != nil {
			return accessoryFailure(err)
		}
		fmt.Println("Sent")
		return nil
	}

	if err := c.SetAccessory(addr, position, 1, accessoryHold); err != nil {
		return accessoryFailure(err)
	}
	fmt.Println("OK")
	return nil
}

func accessoryFailure(err error) error {
	if errors.Is(err, gleis.ErrTimeout) {
		fmt.Println("No confirmation from the track box")
		os.Exit(1)
	}
	fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	os.Exit(2)
	return nil
}
