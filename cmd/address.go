// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 The Blechbahn Authors

package cmd

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/blechbahn/stellwerk/pkg/gleis"
)

// parseLocoAddress resolves a locomotive address argument. A bare number
// is an MM2 address; a protocol prefix (mm2:, mfx:, dcc:, sx1:, sx2:)
// shifts it onto that protocol's base, and delta1..delta4 name the fixed
// Delta slots.
func parseLocoAddress(s string) (uint16, error) {
	switch s {
	case "delta1":
		return gleis.AddrDelta1, nil
	case "delta2":
		return gleis.AddrDelta2, nil
	case "delta3":
		return gleis.AddrDelta3, nil
	case "delta4":
		return gleis.AddrDelta4, nil
	}

	base := uint16(gleis.AddrMM2)
	num := s
	if i := strings.IndexByte(s, ':'); i >= 0 {
		prefix := s[:i]
		num = s[i+1:]
		switch prefix {
		case "mm2":
			base = gleis.AddrMM2
		case "mfx":
			base = gleis.AddrMFX
		case "dcc":
			base = gleis.AddrDCC
		case "sx1":
			base = gleis.AddrSX1
		case "sx2":
			base = gleis.AddrSX2
		default:
			return 0, fmt.Errorf("unknown protocol prefix %q (use mm2, mfx, dcc, sx1 or sx2)", prefix)
		}
	}

	n, err := strconv.ParseUint(num, 10, 16)
	if err != nil {
		return 0, fmt.Errorf("bad locomotive address %q", s)
	}
	if n > uint64(0xFFFF-base) {
		return 0, fmt.Errorf("locomotive address %q out of range", s)
	}
	return base + uint16(n), nil
}

// parseAccessoryAddress resolves an accessory address argument. A bare
// number is an MM2 accessory (numbered from 1); dcc: and sx1: prefixes
// shift onto those bases.
func parseAccessoryAddress(s string) (uint16, error) {
	base := uint16(gleis.AddrAccMM2)
	num := s
	if i := strings.IndexByte(s, ':'); i >= 0 {
		prefix := s[:i]
		num = s[i+1:]
		switch prefix {
		case "mm2":
			base = gleis.AddrAccMM2
		case "dcc":
			base = gleis.AddrAccDCC
		case "sx1":
			base = gleis.AddrAccSX1
		default:
			return 0, fmt.Errorf("unknown protocol prefix %q (use mm2, dcc or sx1)", prefix)
		}
	}

	n, err := strconv.ParseUint(num, 10, 16)
	if err != nil {
		return 0, fmt.Errorf("bad accessory address %q", s)
	}
	if n == 0 {
		return 0, fmt.Errorf("accessory addresses are numbered from 1")
	}
	if n > uint64(0xFFFF-base) {
		return 0, fmt.Errorf("accessory address %q out of range", s)
	}
	return base + uint16(n), nil
}
