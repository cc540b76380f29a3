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

var statusChannel uint8

var statusCmd = &cobra.Command{
	Use:   "status UID",
	Short: "Read a measurement channel of a device",
	Long: `Read one measurement channel of a device addressed by the 32-bit UID it
reports in discovery. A Gleisbox reports track current on channel 1.
The value is printed raw; its unit and scale are the device's business.

Examples:
  # Track current of the box found by discover
  stellwerk status 0x47431021 --port /dev/ttyUSB0

  # Another channel of the same box
  stellwerk status 0x47431021 --channel 3 --port /dev/ttyUSB0

Exit codes:
  0 - Value read
  1 - Bad argument or no reply
  2 - Connection error`,
	Args: cobra.ExactArgs(1),
	RunE: runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)
	statusCmd.Flags().Uint8Var(&statusChannel, "channel", 1, "measurement channel to read")
}

func runStatus(cmd *cobra.Command, args []string) error {
	uid, err := strconv.ParseUint(args[0], 0, 32)
	if err != nil {
		return fmt.Errorf("bad device UID %q (use the value discover prints)", args[0])
	}

	c, _, err := newController()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Connection error: %v\n", err)
		os.Exit(2)
	}
	defer c.Close()

	value, err := c.SystemStatus(uint32(uid), statusChannel)
	if err != nil {
		if errors.Is(err, gleis.ErrTimeout) {
			fmt.Println("No reply from the device")
			os.Exit(1)
		}
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(2)
	}

	fmt.Printf("Channel %d = %d\n", statusChannel, value)
	return nil
}
