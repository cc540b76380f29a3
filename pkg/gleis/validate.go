// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 The Blechbahn Authors

package gleis

import "fmt"

// AnomalyType classifies why a frame looks wrong on a live bus.
type AnomalyType int

// Anomaly classes
const (
	AnomalyUnknownCommand AnomalyType = iota
	AnomalyBadLength
	AnomalyBadValue
)

// ValidationError describes one implausibility found in a frame.
type ValidationError struct {
	Type    AnomalyType
	Message string
	Details map[string]interface{}
}

func (e ValidationError) Error() string {
	return e.Message
}

// ValidateMessage checks a decoded frame against the shapes the catalog
// defines. An empty result means the frame looks sane. The checks flag
// implausible traffic on a monitored bus; they are not a protocol gate.
func ValidateMessage(m Message) []ValidationError {
	var errs []ValidationError
	switch m.Command {
	case CmdSystem:
		errs = append(errs, validateSystem(m)...)
	case CmdLocoSpeed:
		errs = append(errs, validateSpeed(m)...)
	case CmdLocoDirection:
		errs = append(errs, validateDirection(m)...)
	case CmdLocoFunction:
		errs = append(errs, validateFunction(m)...)
	case CmdReadConfig, CmdWriteConfig:
		errs = append(errs, validateConfig(m)...)
	case CmdAccessory:
		errs = append(errs, validateAccessory(m)...)
	case CmdPing:
		errs = append(errs, validatePing(m)...)
	case CmdDiscovery, CmdMFXBind, CmdMFXVerify, CmdBootloader:
		// shapes vary per device generation, nothing worth flagging
	default:
		errs = append(errs, ValidationError{
			Type:    AnomalyUnknownCommand,
			Message: fmt.Sprintf("unknown command 0x%02X", m.Command),
			Details: map[string]interface{}{"command": m.Command},
		})
	}
	return errs
}

func validateSystem(m Message) []ValidationError {
	if m.Length < 4 {
		return []ValidationError{{
			Type:    AnomalyBadLength,
			Message: fmt.Sprintf("system frame shorter than its UID: %d bytes", m.Length),
			Details: map[string]interface{}{"length": m.Length},
		}}
	}
	if m.Length == 4 {
		return nil // bare status ask
	}
	sub := m.Data[4]
	switch sub {
	case SysStop, SysGo, SysHalt, SysLocoEmergencyStop, SysUnlockProtocols, SysMFXCounter:
		return nil
	case SysStatus:
		if !m.Response && m.Length != 6 {
			return []ValidationError{{
				Type:    AnomalyBadLength,
				Message: fmt.Sprintf("status query carries %d bytes, want 6", m.Length),
				Details: map[string]interface{}{"length": m.Length},
			}}
		}
		if m.Response && m.Length != 8 {
			return []ValidationError{{
				Type:    AnomalyBadLength,
				Message: fmt.Sprintf("status reply carries %d bytes, want 8", m.Length),
				Details: map[string]interface{}{"length": m.Length},
			}}
		}
		return nil
	}
	return []ValidationError{{
		Type:    AnomalyBadValue,
		Message: fmt.Sprintf("unknown system subcommand 0x%02X", sub),
		Details: map[string]interface{}{"subcommand": sub},
	}}
}

func validateSpeed(m Message) []ValidationError {
	if m.Length != 4 && m.Length != 6 {
		return []ValidationError{{
			Type:    AnomalyBadLength,
			Message: fmt.Sprintf("speed frame carries %d bytes, want 4 or 6", m.Length),
			Details: map[string]interface{}{"length": m.Length},
		}}
	}
	if m.Length == 6 {
		if speed := word(m.Data[4], m.Data[5]); speed > SpeedMax {
			return []ValidationError{{
				Type:    AnomalyBadValue,
				Message: fmt.Sprintf("speed %d exceeds scale end %d", speed, SpeedMax),
				Details: map[string]interface{}{"speed": speed},
			}}
		}
	}
	return nil
}

func validateDirection(m Message) []ValidationError {
	if m.Length != 4 && m.Length != 5 {
		return []ValidationError{{
			Type:    AnomalyBadLength,
			Message: fmt.Sprintf("direction frame carries %d bytes, want 4 or 5", m.Length),
			Details: map[string]interface{}{"length": m.Length},
		}}
	}
	if m.Length == 5 && m.Data[4] > DirChange {
		return []ValidationError{{
			Type:    AnomalyBadValue,
			Message: fmt.Sprintf("direction %d out of range", m.Data[4]),
			Details: map[string]interface{}{"direction": m.Data[4]},
		}}
	}
	return nil
}

func validateFunction(m Message) []ValidationError {
	if m.Length != 5 && m.Length != 6 {
		return []ValidationError{{
			Type:    AnomalyBadLength,
			Message: fmt.Sprintf("function frame carries %d bytes, want 5 or 6", m.Length),
			Details: map[string]interface{}{"length": m.Length},
		}}
	}
	// mfx tops out at F31
	if m.Data[4] > FunctionMax {
		return []ValidationError{{
			Type:    AnomalyBadValue,
			Message: fmt.Sprintf("function index %d implausible", m.Data[4]),
			Details: map[string]interface{}{"function": m.Data[4]},
		}}
	}
	return nil
}

func validateConfig(m Message) []ValidationError {
	want := uint8(7)
	if m.Command == CmdWriteConfig {
		want = 8
	}
	if m.Length != want {
		return []ValidationError{{
			Type:    AnomalyBadLength,
			Message: fmt.Sprintf("config frame carries %d bytes, want %d", m.Length, want),
			Details: map[string]interface{}{"length": m.Length},
		}}
	}
	// DCC defines CV 1..1024
	if number := word(m.Data[4], m.Data[5]); number > ConfigMax {
		return []ValidationError{{
			Type:    AnomalyBadValue,
			Message: fmt.Sprintf("config number %d implausible", number),
			Details: map[string]interface{}{"number": number},
		}}
	}
	return nil
}

func validateAccessory(m Message) []ValidationError {
	if m.Length != 4 && m.Length != 6 {
		return []ValidationError{{
			Type:    AnomalyBadLength,
			Message: fmt.Sprintf("accessory frame carries %d bytes, want 4 or 6", m.Length),
			Details: map[string]interface{}{"length": m.Length},
		}}
	}
	if m.Length == 6 && m.Data[4] > AccSH0 {
		return []ValidationError{{
			Type:    AnomalyBadValue,
			Message: fmt.Sprintf("accessory position %d implausible", m.Data[4]),
			Details: map[string]interface{}{"position": m.Data[4]},
		}}
	}
	return nil
}

func validatePing(m Message) []ValidationError {
	if !m.Response && m.Length != 0 {
		return []ValidationError{{
			Type:    AnomalyBadLength,
			Message: fmt.Sprintf("ping carries %d bytes, want 0", m.Length),
			Details: map[string]interface{}{"length": m.Length},
		}}
	}
	if m.Response && m.Length != 8 {
		return []ValidationError{{
			Type:    AnomalyBadLength,
			Message: fmt.Sprintf("ping reply carries %d bytes, want 8", m.Length),
			Details: map[string]interface{}{"length": m.Length},
		}}
	}
	return nil
}
