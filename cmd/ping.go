// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 The Blechbahn Authors

package cmd

import (
	"encoding/binary"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/blechbahn/stellwerk/pkg/gleis"
)

var (
	pingCount    int
	pingInterval int
)

var pingCmd = &cobra.Command{
	Use:   "ping",
	Short: "Measure the bus round trip",
	Long: `Send ping frames and time the first answer to each.

This is useful for verifying:
  - The adapter or bridge connection is up
  - A powered device is listening on the track bus
  - How quickly the bus turns a command around

Exit codes:
  0 - Every ping was answered
  1 - One or more pings timed out
  2 - Connection error`,
	RunE: runPing,
}

func init() {
	rootCmd.AddCommand(pingCmd)
	pingCmd.Flags().IntVar(&pingCount, "count", 3, "Number of pings to send")
	pingCmd.Flags().IntVar(&pingInterval, "interval", 500, "Milliseconds between pings")
}

func runPing(cmd *cobra.Command, args []string) error {
	c, connInfo, err := newController()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Connection error: %v\n", err)
		os.Exit(2)
	}
	defer c.Close()

	fmt.Printf("Stellwerk - Bus Ping\n")
	fmt.Printf("Connection: %s\n", connInfo)
	fmt.Printf("Count: %d pings\n\n", pingCount)

	successCount := 0
	failCount := 0
	var minRTT, maxRTT, totalRTT time.Duration

	for i := 1; i <= pingCount; i++ {
		fmt.Printf("Ping %d/%d: ", i, pingCount)

		ping := gleis.Message{Command: gleis.CmdPing}
		start := time.Now()
		in, err := c.Exchange(&ping, time.Second)
		rtt := time.Since(start)

		switch {
		case err == nil:
			uid := binary.BigEndian.Uint32(in.Data[0:4])
			fmt.Printf("reply from 0x%08X, version %d.%d, rtt=%v\n",
				uid, in.Data[4], in.Data[5], rtt.Round(time.Millisecond))
			successCount++
			totalRTT += rtt
			if minRTT == 0 || rtt < minRTT {
				minRTT = rtt
			}
			if rtt > maxRTT {
				maxRTT = rtt
			}
		case errors.Is(err, gleis.ErrTimeout):
			fmt.Printf("TIMEOUT\n")
			failCount++
		default:
			fmt.Printf("FAILED: %v\n", err)
			failCount++
		}

		if i < pingCount {
			time.Sleep(time.Duration(pingInterval) * time.Millisecond)
		}
	}

	fmt.Printf("\n--- Ping statistics ---\n")
	fmt.Printf("%d pings sent, %d answered, %.0f%% loss\n",
		pingCount, successCount, float64(failCount)/float64(pingCount)*100)
	if successCount > 0 {
		fmt.Printf("rtt min/avg/max = %v/%v/%v\n",
			minRTT.Round(time.Millisecond),
			(totalRTT / time.Duration(successCount)).Round(time.Millisecond),
			maxRTT.Round(time.Millisecond))
	}

	if failCount > 0 {
		os.Exit(1)
	}
	return nil
}
