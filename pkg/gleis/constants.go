// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 The Blechbahn Authors

// Package gleis provides a Go implementation of the Märklin CAN track format.
//
// The track format is the protocol spoken on the CAN bus between Central
// Station and Mobile Station controllers and the Gleisbox to drive
// locomotives, switch accessories, and access decoder configuration. This
// package provides the identifier and text codecs, a synchronous controller
// with the standard operation catalog, and diagnostics for live traffic.
//
// The wire layout follows the openly published CS2 CAN protocol notes.
package gleis

// Frame geometry
const (
	MaxDataLen    = 8          // CAN payload limit; Message.Length never exceeds it
	maxExtendedID = 0x1FFFFFFF // 29-bit identifier space
)

// Command codes (bits 24..17 of the extended identifier)
const (
	CmdSystem        = 0x00
	CmdDiscovery     = 0x01
	CmdMFXBind       = 0x02
	CmdMFXVerify     = 0x03
	CmdLocoSpeed     = 0x04
	CmdLocoDirection = 0x05
	CmdLocoFunction  = 0x06
	CmdReadConfig    = 0x07
	CmdWriteConfig   = 0x08
	CmdAccessory     = 0x0B
	CmdPing          = 0x18
	CmdBootloader    = 0x1B
)

// System subcommands (data[4] of a SYSTEM frame)
const (
	SysStop              = 0x00
	SysGo                = 0x01
	SysHalt              = 0x02
	SysLocoEmergencyStop = 0x03
	SysUnlockProtocols   = 0x08
	SysMFXCounter        = 0x09
	SysStatus            = 0x0B
)

// Locomotive address bases. A full address is base + decoder number.
const (
	AddrMM2 = 0x0000
	AddrSX1 = 0x0800
	AddrMFX = 0x4000
	AddrSX2 = 0x8000
	AddrDCC = 0xC000
)

// Accessory address bases. MM2 numbering starts at 1, hence the odd base.
const (
	AddrAccSX1 = 0x2000
	AddrAccMM2 = 0x2FFF
	AddrAccDCC = 0x3800
)

// Delta slots: the four fixed addresses of Delta-era locomotives
const (
	AddrDelta1 = 78
	AddrDelta2 = 72
	AddrDelta3 = 60
	AddrDelta4 = 24
)

// Driving directions
const (
	DirCurrent = 0
	DirForward = 1
	DirReverse = 2
	DirChange  = 3
)

// Accessory positions. The same wire values serve turnouts, color lamps
// and signal aspects, so every reading has a name.
const (
	AccOff      = 0
	AccRound    = 0
	AccRed      = 0
	AccRight    = 0
	AccHP0      = 0
	AccOn       = 1
	AccGreen    = 1
	AccStraight = 1
	AccHP1      = 1
	AccYellow   = 2
	AccLeft     = 2
	AccHP2      = 2
	AccWhite    = 3
	AccSH0      = 3
)

// Device types reported in ping replies (data[6..7])
const (
	DeviceGFP         = 0x0000
	DeviceGleisbox    = 0x0010
	DeviceConnect6021 = 0x0020
	DeviceMS2         = 0x0030
	DeviceCS2GUI      = 0xFFFF
)

// Value ranges
const (
	SpeedMax    = 1023
	SpeedNotch  = 77 // one throttle nudge, about 7.5% of full scale
	FunctionMax = 31
	PowerMax    = 31 // function and accessory drive level; most targets honor only 0 and 1
	ConfigMax   = 1024
)

// TrackBoxVersion is the oldest Gleisbox firmware this package was
// exercised against, major in the high byte, minor in the low (1.39).
const TrackBoxVersion = 0x0127
