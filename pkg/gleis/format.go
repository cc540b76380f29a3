// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 The Blechbahn Authors

package gleis

import (
	"fmt"
	"strings"
)

// CommandName returns the protocol mnemonic for a command code.
func CommandName(command uint8) string {
	switch command {
	case CmdSystem:
		return "SYSTEM"
	case CmdDiscovery:
		return "DISCOVERY"
	case CmdMFXBind:
		return "MFX_BIND"
	case CmdMFXVerify:
		return "MFX_VERIFY"
	case CmdLocoSpeed:
		return "SPEED"
	case CmdLocoDirection:
		return "DIRECTION"
	case CmdLocoFunction:
		return "FUNCTION"
	case CmdReadConfig:
		return "READ_CONFIG"
	case CmdWriteConfig:
		return "WRITE_CONFIG"
	case CmdAccessory:
		return "ACCESSORY"
	case CmdPing:
		return "PING"
	case CmdBootloader:
		return "BOOTLOADER"
	default:
		return "UNKNOWN"
	}
}

// SystemName returns the mnemonic for a SYSTEM subcommand.
func SystemName(sub uint8) string {
	switch sub {
	case SysStop:
		return "STOP"
	case SysGo:
		return "GO"
	case SysHalt:
		return "HALT"
	case SysLocoEmergencyStop:
		return "LOCO_ESTOP"
	case SysUnlockProtocols:
		return "PROTOCOLS"
	case SysMFXCounter:
		return "MFX_COUNTER"
	case SysStatus:
		return "STATUS"
	default:
		return "UNKNOWN"
	}
}

// DirectionName returns the human name of a Dir value.
func DirectionName(dir uint8) string {
	switch dir {
	case DirCurrent:
		return "current"
	case DirForward:
		return "forward"
	case DirReverse:
		return "reverse"
	case DirChange:
		return "change"
	default:
		return "unknown"
	}
}

// PositionName returns the turnout-centric name of an accessory position.
func PositionName(position uint8) string {
	switch position {
	case AccRound:
		return "round"
	case AccStraight:
		return "straight"
	case AccYellow:
		return "yellow"
	case AccWhite:
		return "white"
	default:
		return "unknown"
	}
}

// DeviceName returns the product behind a ping reply's device type.
func DeviceName(deviceType uint16) string {
	switch deviceType {
	case DeviceGFP:
		return "Central Station 2 (GFP)"
	case DeviceGleisbox:
		return "Gleisbox"
	case DeviceConnect6021:
		return "Connect 6021"
	case DeviceMS2:
		return "Mobile Station 2"
	case DeviceCS2GUI:
		return "Central Station 2 (GUI)"
	default:
		return fmt.Sprintf("device 0x%04X", deviceType)
	}
}

// FormatMessage renders one decoded line: the text form, the command
// mnemonic, and the fields the command defines.
func FormatMessage(m Message) string {
	var b strings.Builder
	b.WriteString(m.String())
	b.WriteString("  ")
	b.WriteString(CommandName(m.Command))
	switch m.Command {
	case CmdSystem:
		formatSystem(&b, m)
	case CmdLocoSpeed:
		formatAddr(&b, m)
		if m.Length >= 6 {
			fmt.Fprintf(&b, " speed %d", word(m.Data[4], m.Data[5]))
		}
	case CmdLocoDirection:
		formatAddr(&b, m)
		if m.Length >= 5 {
			fmt.Fprintf(&b, " %s", DirectionName(m.Data[4]))
		}
	case CmdLocoFunction:
		formatAddr(&b, m)
		if m.Length >= 5 {
			fmt.Fprintf(&b, " F%d", m.Data[4])
		}
		if m.Length >= 6 {
			fmt.Fprintf(&b, " %s", onOff(m.Data[5] != 0))
		}
	case CmdAccessory:
		formatAddr(&b, m)
		if m.Length >= 5 {
			fmt.Fprintf(&b, " %s", PositionName(m.Data[4]))
		}
		if m.Length >= 6 {
			fmt.Fprintf(&b, " %s", onOff(m.Data[5] != 0))
		}
	case CmdReadConfig, CmdWriteConfig:
		formatAddr(&b, m)
		if m.Length >= 6 {
			fmt.Fprintf(&b, " CV %d", word(m.Data[4], m.Data[5]))
		}
		// data[6] of a read request is the byte count, not a value
		if m.Length >= 7 && (m.Command == CmdWriteConfig || m.Response) {
			fmt.Fprintf(&b, " value %d", m.Data[6])
		}
	case CmdPing:
		if m.Response && m.Length == 8 {
			uid := uint32(m.Data[0])<<24 | uint32(m.Data[1])<<16 | uint32(m.Data[2])<<8 | uint32(m.Data[3])
			fmt.Fprintf(&b, " uid 0x%08X version %d.%d %s",
				uid, m.Data[4], m.Data[5], DeviceName(word(m.Data[6], m.Data[7])))
		}
	case CmdBootloader:
		if m.Length >= 5 && m.Data[4] == 0x11 {
			b.WriteString(" wake")
		}
	}
	return b.String()
}

func formatSystem(b *strings.Builder, m Message) {
	if m.Length < 5 {
		b.WriteString(" query")
		return
	}
	sub := m.Data[4]
	fmt.Fprintf(b, " %s", SystemName(sub))
	switch sub {
	case SysLocoEmergencyStop:
		fmt.Fprintf(b, " addr %d", word(m.Data[2], m.Data[3]))
	case SysUnlockProtocols:
		if m.Length >= 6 {
			fmt.Fprintf(b, " mask 0x%02X", m.Data[5])
		}
	case SysStatus:
		if m.Length >= 6 {
			fmt.Fprintf(b, " channel %d", m.Data[5])
		}
		if m.Length == 8 {
			fmt.Fprintf(b, " value %d", word(m.Data[6], m.Data[7]))
		}
	}
}

func formatAddr(b *strings.Builder, m Message) {
	if m.Length >= 4 {
		fmt.Fprintf(b, " addr %d", word(m.Data[2], m.Data[3]))
	}
}

func onOff(on bool) string {
	if on {
		return "on"
	}
	return "off"
}
