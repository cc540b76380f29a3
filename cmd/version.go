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

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Read the track box firmware version",
	Long: `Ask the track box for its firmware version. Everything on the bus
answers a ping, so the command waits out the replies and reports the
track box among them. For the version of this tool itself, use
--version on the root command.

Examples:
  stellwerk version --port /dev/ttyUSB0

Exit codes:
  0 - Version read
  1 - No track box answered
  2 - Connection error`,
	Args: cobra.NoArgs,
	RunE: runVersion,
}

func init() {
	rootCmd.AddCommand(versionCmd)
}

func runVersion(cmd *cobra.Command, args []string) error {
	c, _, err := newController()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Connection error: %v\n", err)
		os.Exit(2)
	}
	defer c.Close()

	version, err := c.Version()
	if err != nil {
		if errors.Is(err, gleis.ErrTimeout) {
			fmt.Println("No track box answered")
			os.Exit(1)
		}
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(2)
	}

	fmt.Printf("Track box firmware %d.%d\n", version>>8, version&0xFF)
	if version < gleis.TrackBoxVersion {
		fmt.Printf("Warning: firmware older than %d.%d, some commands may misbehave\n",
			gleis.TrackBoxVersion>>8, gleis.TrackBoxVersion&0xFF)
	}
	return nil
}
