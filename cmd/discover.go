// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 The Blechbahn Authors

package cmd

import (
	"encoding/binary"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/blechbahn/stellwerk/pkg/gleis"
)

var discoverTimeout int

var discoverCmd = &cobra.Command{
	Use:   "discover",
	Short: "List the devices on the bus",
	Long: `Broadcast a ping and list every device that announces itself.

Every member of the CAN bus answers a ping with its UID, firmware version
and device type, so one broadcast maps the whole layout: Gleisboxen,
Mobile Stations, Central Stations and bridges.

Exit codes:
  0 - At least one device answered
  1 - Nothing answered
  2 - Connection error`,
	RunE: runDiscover,
}

func init() {
	rootCmd.AddCommand(discoverCmd)
	discoverCmd.Flags().IntVar(&discoverTimeout, "timeout", 2, "Seconds to wait for announcements")
}

func runDiscover(cmd *cobra.Command, args []string) error {
	c, connInfo, err := newController()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Connection error: %v\n", err)
		os.Exit(2)
	}
	defer c.Close()

	fmt.Printf("Stellwerk - Device Discovery\n")
	fmt.Printf("Connection: %s\n", connInfo)
	fmt.Printf("Timeout: %d seconds\n\n", discoverTimeout)

	ping := gleis.Message{Command: gleis.CmdPing}
	if err := c.Send(&ping); err != nil {
		fmt.Fprintf(os.Stderr, "Send error: %v\n", err)
		os.Exit(2)
	}

	seen := make(map[uint32]bool)
	deadline := time.Now().Add(time.Duration(discoverTimeout) * time.Second)
	for time.Now().Before(deadline) {
		in, ok, err := c.ReceiveOne()
		if !ok {
			if err != nil {
				break
			}
			time.Sleep(10 * time.Millisecond)
			continue
		}
		if err != nil {
			continue
		}
		if in.Command != gleis.CmdPing || !in.Response || in.Length != 8 {
			continue
		}

		uid := binary.BigEndian.Uint32(in.Data[0:4])
		if seen[uid] {
			continue
		}
		seen[uid] = true

		deviceType := uint16(in.Data[6])<<8 | uint16(in.Data[7])
		fmt.Printf("  0x%08X  version %d.%d  %s\n",
			uid, in.Data[4], in.Data[5], gleis.DeviceName(deviceType))
	}

	if len(seen) == 0 {
		fmt.Println("No devices answered")
		os.Exit(1)
	}
	fmt.Printf("\n%d device(s) answered\n", len(seen))
	return nil
}
