// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 The Blechbahn Authors

package cmd

import (
	"errors"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/blechbahn/stellwerk/pkg/gleis"
)

var (
	monitorRaw     bool
	monitorCheck   bool
	monitorCapture string
	monitorStats   int
)

var monitorCmd = &cobra.Command{
	Use:   "monitor",
	Short: "Watch track traffic live",
	Long: `Continuously decode and display track frames as they arrive.

The monitor never transmits: it decodes every frame into the text form
plus the command's fields, flags implausible frames with --check, and can
record the session to a capture file for later replay.

Examples:
  # Watch a layout through an SLCAN adapter
  stellwerk monitor --port /dev/ttyUSB0

  # Record a session and print statistics every 10 seconds
  stellwerk monitor --port /dev/ttyUSB0 --capture session.cap --stats 10

Exit codes:
  0 - Interrupted by the user
  1 - The bus failed mid-session
  2 - Connection error`,
	RunE: runMonitor,
}

func init() {
	rootCmd.AddCommand(monitorCmd)
	monitorCmd.Flags().BoolVar(&monitorRaw, "raw", false, "Print raw frames instead of decoding")
	monitorCmd.Flags().BoolVar(&monitorCheck, "check", false, "Flag implausible frames")
	monitorCmd.Flags().StringVar(&monitorCapture, "capture", "", "Record frames to a capture file")
	monitorCmd.Flags().IntVar(&monitorStats, "stats", 0, "Print statistics every N seconds")
}

func runMonitor(cmd *cobra.Command, args []string) error {
	bus, connInfo, err := openBus()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Connection error: %v\n", err)
		os.Exit(2)
	}
	defer bus.Close()

	var capture *gleis.CaptureWriter
	if monitorCapture != "" {
		file, err := os.Create(monitorCapture)
		if err != nil {
			return fmt.Errorf("cannot create capture file: %v", err)
		}
		defer file.Close()
		capture = gleis.NewCaptureWriter(file)
	}

	fmt.Printf("Stellwerk - Track Monitor\n")
	fmt.Printf("Connection: %s\n", connInfo)
	fmt.Printf("Press Ctrl+C to exit\n\n")

	stats := gleis.NewStatistics()

	interrupt := make(chan os.Signal, 1)
	signal.Notify(interrupt, os.Interrupt, syscall.SIGTERM)

	var tick <-chan time.Time
	if monitorStats > 0 {
		ticker := time.NewTicker(time.Duration(monitorStats) * time.Second)
		defer ticker.Stop()
		tick = ticker.C
	}

	for {
		select {
		case <-interrupt:
			fmt.Printf("\n%s", stats.String())
			if capture != nil {
				fmt.Printf("Captured %d frames to %s\n", capture.Count(), monitorCapture)
			}
			return nil
		case <-tick:
			fmt.Print(stats.String())
		default:
		}

		f, ok, err := bus.Receive()
		if err != nil {
			if errors.Is(err, gleis.ErrClosed) {
				return nil
			}
			log.Printf("Receive error: %v", err)
			fmt.Printf("\n%s", stats.String())
			os.Exit(1)
		}
		if !ok {
			time.Sleep(time.Millisecond)
			continue
		}

		if capture != nil {
			if err := capture.Add(f, time.Now()); err != nil {
				log.Printf("Capture error: %v", err)
			}
		}

		m, decodeErr := gleis.MessageFromFrame(f)
		var anomalies []gleis.ValidationError
		if decodeErr == nil {
			anomalies = gleis.ValidateMessage(m)
		}
		stats.Update(&m, decodeErr, anomalies)

		switch {
		case decodeErr != nil:
			fmt.Printf("[ERROR] %v\n", decodeErr)
		case monitorRaw:
			fmt.Printf("%08X [%d] % 02X\n", f.ID, f.Length, f.Data[:f.Length])
		default:
			fmt.Println(gleis.FormatMessage(m))
		}
		if monitorCheck {
			for _, anomaly := range anomalies {
				fmt.Printf("  !! %s\n", anomaly.Error())
			}
		}
	}
}
