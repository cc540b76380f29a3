// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 The Blechbahn Authors

package cmd

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/blechbahn/stellwerk/pkg/gleis"
)

var powerNoWait bool

var powerCmd = &cobra.Command{
	Use:   "power on|off|query",
	Short: "Switch or read track power",
	Long: `Switch track power on or off, or read the current state.

Powering on primes the track box first (mfx counter and protocol unlock)
and then sends go; only the go frame needs a confirm. With --no-wait the
go or stop frame is fired without waiting for one.

Exit codes:
  0 - Confirmed (or sent with --no-wait)
  1 - No confirmation inside the window
  2 - Connection error`,
	Args:      cobra.ExactArgs(1),
	ValidArgs: []string{"on", "off", "query"},
	RunE:      runPower,
}

func init() {
	rootCmd.AddCommand(powerCmd)
	powerCmd.Flags().BoolVar(&powerNoWait, "no-wait", false, "Fire the frame without waiting for a confirm")
}

func runPower(cmd *cobra.Command, args []string) error {
	var on bool
	switch args[0] {
	case "on":
		on = true
	case "off":
	case "query":
		return runPowerQuery()
	default:
		return fmt.Errorf("power takes on, off or query, not %q", args[0])
	}

	c, _, err := newController()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Connection error: %v\n", err)
		os.Exit(2)
	}
	defer c.Close()

	if powerNoWait {
		if err := c.SendPower(on); err != nil {
			fmt.Fprintf(os.Stderr, "Send error: %v\n", err)
			os.Exit(2)
		}
		fmt.Printf("Sent power %s\n", args[0])
		return nil
	}

	if err := c.SetPower(on); err != nil {
		if errors.Is(err, gleis.ErrTimeout) {
			fmt.Println("No confirmation from the track box")
			os.Exit(1)
		}
		fmt.Fprintf(os.Stderr, "Power error: %v\n", err)
		os.Exit(2)
	}
	fmt.Printf("Track power %s\n", args[0])
	return nil
}

func runPowerQuery() error {
	c, _, err := newController()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Connection error: %v\n", err)
		os.Exit(2)
	}
	defer c.Close()

	if err := c.RequestPower(); err != nil {
		fmt.Fprintf(os.Stderr, "Send error: %v\n", err)
		os.Exit(2)
	}

	deadline := time.Now().Add(time.Second)
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
		if in.Command != gleis.CmdSystem || !in.Response || in.Length < 5 {
			continue
		}
		switch in.Data[4] {
		case gleis.SysGo:
			fmt.Println("Track power on")
			return nil
		case gleis.SysStop:
			fmt.Println("Track power off")
			return nil
		case gleis.SysHalt:
			fmt.Println("Track halted")
			return nil
		}
	}

	fmt.Println("No answer from the track box")
	os.Exit(1)
	return nil
}
