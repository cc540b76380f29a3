// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 The Blechbahn Authors

package cmd

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/blechbahn/stellwerk/pkg/gleis"
)

var replayText bool

var replayCmd = &cobra.Command{
	Use:   "replay FILE",
	Short: "Print a recorded capture",
	Long: `Read a capture recorded by the monitor and print its frames with their
relative timestamps.

Examples:
  # Decode a recorded session
  stellwerk replay session.cap

  # Bare text form, one frame per line
  stellwerk replay session.cap --text

Exit codes:
  0 - Capture read completely
  1 - Capture unreadable or truncated`,
	Args: cobra.ExactArgs(1),
	RunE: runReplay,
}

func init() {
	rootCmd.AddCommand(replayCmd)
	replayCmd.Flags().BoolVar(&replayText, "text", false, "Print the bare text form only")
}

func runReplay(cmd *cobra.Command, args []string) error {
	file, err := os.Open(args[0])
	if err != nil {
		return fmt.Errorf("cannot open capture: %v", err)
	}
	defer file.Close()

	records, readErr := gleis.ReadCapture(file)
	if len(records) == 0 {
		if readErr != nil {
			return readErr
		}
		fmt.Println("Empty capture")
		return nil
	}

	base := records[0].At
	for _, rec := range records {
		offset := time.Duration(rec.At-base) * time.Millisecond
		m, err := gleis.MessageFromFrame(rec.Frame())
		if err != nil {
			fmt.Printf("%9.3f  [ERROR] %v\n", offset.Seconds(), err)
			continue
		}
		if replayText {
			fmt.Printf("%9.3f  %s\n", offset.Seconds(), m.String())
		} else {
			fmt.Printf("%9.3f  %s\n", offset.Seconds(), gleis.FormatMessage(m))
		}
	}

	if readErr != nil {
		return fmt.Errorf("capture ends early: %v", readErr)
	}
	return nil
}
