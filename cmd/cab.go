// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 The Blechbahn Authors

package cmd

import (
	"fmt"
	"os"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"
)

var cabCmd = &cobra.Command{
	Use:   "cab ADDR",
	Short: "Full-screen throttle for one locomotive",
	Long: `Drive one locomotive from a full-screen throttle. The cab shows the
current speed, direction and function states, and logs every frame that
crosses the bus while you drive.

Keys:
  up/down      one notch faster or slower
  left/right   fine speed adjustment
  d            change direction (stops the locomotive first)
  0-7          toggle functions F0 through F7
  space        speed to zero
  g / x        track power on / off
  pgup/pgdn    scroll the frame log
  q            quit

Examples:
  # Drive MM2 locomotive 3 over a serial adapter
  stellwerk cab 3 --port /dev/ttyUSB0

  # Drive an mfx locomotive through a bridge
  stellwerk cab mfx:3 --url wss://bridge.example/can

Exit codes:
  0 - Clean exit
  1 - Bad address
  2 - Connection error`,
	Args: cobra.ExactArgs(1),
	RunE: runCab,
}

func init() {
	rootCmd.AddCommand(cabCmd)
}

func runCab(cmd *cobra.Command, args []string) error {
	addr, err := parseLocoAddress(args[0])
	if err != nil {
		return err
	}

	c, connInfo, err := newController()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Connection error: %v\n", err)
		os.Exit(2)
	}
	defer c.Close()

	m := initialCabModel(c, addr, args[0], connInfo)
	p := tea.NewProgram(m, tea.WithAltScreen())
	if _, err := p.Run(); err != nil {
		return fmt.Errorf("TUI error: %v", err)
	}
	return nil
}
