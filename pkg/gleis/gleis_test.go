// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 The Blechbahn Authors

package gleis

import (
	"bytes"
	"errors"
	"strings"
	"testing"
	"time"
)

// ============================================================
// Text Rendering Tests
// ============================================================

func TestMessageString_ResponseFrame(t *testing.T) {
	m := Message{Hash: 0x1234, Response: true, Command: 0x05, Length: 2}
	m.Data[0] = 0x00
	m.Data[1] = 0x01

	got := m.String()
	if got != "1234 R 05 2 00 01" {
		t.Errorf("expected '1234 R 05 2 00 01', got '%s'", got)
	}
}

func TestMessageString_CommandFrame(t *testing.T) {
	m := Message{Hash: 0x1234, Command: 0x05, Length: 2}
	m.Data[0] = 0x00
	m.Data[1] = 0x01

	got := m.String()
	if got != "1234   05 2 00 01" {
		t.Errorf("expected '1234   05 2 00 01', got '%s'", got)
	}
}

func TestMessageString_EmptyPayload(t *testing.T) {
	m := Message{Hash: 0xABCD, Command: 0x18}

	got := m.String()
	if got != "abcd   18 0" {
		t.Errorf("expected 'abcd   18 0', got '%s'", got)
	}
}

func TestMessageString_LowercaseHex(t *testing.T) {
	m := Message{Hash: 0xBEEF, Response: true, Command: 0x0B, Length: 1}
	m.Data[0] = 0xFA

	got := m.String()
	if got != "beef R 0b 1 fa" {
		t.Errorf("expected 'beef R 0b 1 fa', got '%s'", got)
	}
}

func TestMessageClear(t *testing.T) {
	m := Message{Hash: 0x1234, Response: true, Command: 0x05, Length: 8}
	for i := range m.Data {
		m.Data[i] = 0xFF
	}

	m.Clear()

	if m != (Message{}) {
		t.Errorf("Clear should zero every field, got %+v", m)
	}
}

// ============================================================
// Text Parsing Tests
// ============================================================

func TestParseMessage_RoundTrip(t *testing.T) {
	tests := []struct {
		name string
		m    Message
	}{
		{"empty ping", Message{Hash: 0x0000, Command: CmdPing}},
		{"response", Message{Hash: 0x1234, Response: true, Command: 0x05, Length: 2, Data: [8]byte{0x00, 0x01}}},
		{"full payload", Message{Hash: 0xFFFF, Command: 0x08, Length: 8, Data: [8]byte{1, 2, 3, 4, 5, 6, 7, 8}}},
		{"wake frame", Message{Hash: 0x4711, Command: CmdBootloader, Length: 5, Data: [8]byte{0, 0, 0, 0, 0x11}}},
		{"speed", Message{Hash: 0xBEEF, Command: CmdLocoSpeed, Length: 6, Data: [8]byte{0, 0, 0, 10, 0x01, 0xF4}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			parsed, err := ParseMessage(tt.m.String())
			if err != nil {
				t.Fatalf("parse error: %v", err)
			}
			if parsed != tt.m {
				t.Errorf("round trip mismatch: expected %+v, got %+v", tt.m, parsed)
			}
		})
	}
}

func TestParseMessage_UppercaseHex(t *testing.T) {
	m, err := ParseMessage("ABCD R 0B 2 FF 0a")
	if err != nil {
		t.Fatalf("parse error: %v", err)
	}
	if m.Hash != 0xABCD {
		t.Errorf("expected hash 0xABCD, got 0x%04X", m.Hash)
	}
	if !m.Response {
		t.Error("expected response flag")
	}
	if m.Command != 0x0B {
		t.Errorf("expected command 0x0B, got 0x%02X", m.Command)
	}
	if m.Data[0] != 0xFF || m.Data[1] != 0x0A {
		t.Errorf("expected data ff 0a, got %02x %02x", m.Data[0], m.Data[1])
	}
}

func TestParseMessage_ResponseColumn(t *testing.T) {
	// Any non-space in the response column reads as a response.
	m, err := ParseMessage("1234 x 05 0")
	if err != nil {
		t.Fatalf("parse error: %v", err)
	}
	if !m.Response {
		t.Error("non-space response column should read as response")
	}

	m, err = ParseMessage("1234   05 0")
	if err != nil {
		t.Fatalf("parse error: %v", err)
	}
	if m.Response {
		t.Error("blank response column should read as command")
	}
}

func TestParseMessage_TrailingIgnored(t *testing.T) {
	m, err := ParseMessage("1234   05 1 ff trailing junk")
	if err != nil {
		t.Fatalf("parse error: %v", err)
	}
	if m.Length != 1 || m.Data[0] != 0xFF {
		t.Errorf("expected length 1 data ff, got length %d data %02x", m.Length, m.Data[0])
	}
}

func TestParseMessage_Malformed(t *testing.T) {
	tests := []struct {
		name string
		line string
	}{
		{"empty", ""},
		{"too short", "1234   05"},
		{"bad hash", "xyzw   05 0"},
		{"bad command", "1234   zz 0"},
		{"bad length digit", "1234   05 x"},
		{"length exceeds eight", "1234   05 9 00 01 02 03 04 05 06 07 08"},
		{"truncated data", "1234   05 2 00"},
		{"bad data byte", "1234   05 2 00 zz"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := ParseMessage(tt.line); err == nil {
				t.Errorf("expected parse error for %q", tt.line)
			}
		})
	}
}

// ============================================================
// Identifier Codec Tests
// ============================================================

func TestPackID_KnownValues(t *testing.T) {
	tests := []struct {
		name     string
		command  uint8
		hash     uint16
		expected uint32
	}{
		{"ping", CmdPing, 0x4711, 0x00304711},
		{"system zero hash", CmdSystem, 0x0000, 0x00000000},
		{"speed", CmdLocoSpeed, 0xBEEF, 0x0008BEEF},
		{"top command", 0xFF, 0xFFFF, 0x01FEFFFF},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := PackID(tt.command, tt.hash)
			if got != tt.expected {
				t.Errorf("expected 0x%08X, got 0x%08X", tt.expected, got)
			}
		})
	}
}

func TestPackID_ResponseBitClear(t *testing.T) {
	for _, command := range []uint8{CmdSystem, CmdLocoSpeed, CmdPing, 0xFF} {
		id := PackID(command, 0xFFFF)
		if id&(1<<16) != 0 {
			t.Errorf("command 0x%02X: response bit must stay clear, got id 0x%08X", command, id)
		}
	}
}

func TestUnpackID(t *testing.T) {
	command, response, hash := UnpackID(0x00304711)
	if command != CmdPing || response || hash != 0x4711 {
		t.Errorf("expected (0x18, false, 0x4711), got (0x%02X, %v, 0x%04X)", command, response, hash)
	}

	command, response, hash = UnpackID(0x00304711 | 1<<16)
	if command != CmdPing || !response || hash != 0x4711 {
		t.Errorf("expected (0x18, true, 0x4711), got (0x%02X, %v, 0x%04X)", command, response, hash)
	}
}

func TestUnpackID_DropsPriorityBits(t *testing.T) {
	// Bits 28..25 carry the CS2 priority nibble.
	command, _, _ := UnpackID(0x1E304711)
	if command != CmdPing {
		t.Errorf("expected command 0x18 with priority bits dropped, got 0x%02X", command)
	}
}

func TestIDCodec_Identity(t *testing.T) {
	for _, command := range []uint8{0x00, 0x04, 0x0B, 0x18, 0xFF} {
		for _, hash := range []uint16{0x0000, 0x0001, 0x4711, 0xFFFF} {
			c, r, h := UnpackID(PackID(command, hash))
			if c != command || r || h != hash {
				t.Errorf("identity failed for (0x%02X, 0x%04X): got (0x%02X, %v, 0x%04X)",
					command, hash, c, r, h)
			}
		}
	}
}

// ============================================================
// Frame Codec Tests
// ============================================================

func TestFrameValidate(t *testing.T) {
	tests := []struct {
		name    string
		frame   Frame
		wantErr bool
	}{
		{"valid extended", Frame{ID: 0x1FFFFFFF, Extended: true, Length: 8}, false},
		{"extended overflow", Frame{ID: 0x20000000, Extended: true}, true},
		{"valid standard", Frame{ID: 0x7FF}, false},
		{"standard overflow", Frame{ID: 0x800}, true},
		{"length overflow", Frame{ID: 0x100, Extended: true, Length: 9}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.frame.Validate()
			if tt.wantErr && err == nil {
				t.Error("expected validation error")
			}
			if !tt.wantErr && err != nil {
				t.Errorf("unexpected validation error: %v", err)
			}
		})
	}
}

func TestMessageFrame(t *testing.T) {
	m := Message{Hash: 0x4711, Command: CmdLocoSpeed, Length: 6}
	m.Data[3] = 10
	m.Data[4] = 0x01
	m.Data[5] = 0xF4

	f := m.Frame()
	if f.ID != 0x00084711 {
		t.Errorf("expected id 0x00084711, got 0x%08X", f.ID)
	}
	if !f.Extended {
		t.Error("track frames must be extended")
	}
	if f.Length != 6 {
		t.Errorf("expected length 6, got %d", f.Length)
	}
	if f.Data != m.Data {
		t.Error("payload should carry over")
	}
}

func TestMessageFromFrame(t *testing.T) {
	f := Frame{ID: PackID(CmdLocoSpeed, 0x4711) | 1<<16, Extended: true, Length: 6}
	f.Data[3] = 10

	m, err := MessageFromFrame(f)
	if err != nil {
		t.Fatalf("decode error: %v", err)
	}
	if m.Command != CmdLocoSpeed || !m.Response || m.Hash != 0x4711 {
		t.Errorf("decode mismatch: %+v", m)
	}
	if m.Length != 6 || m.Data[3] != 10 {
		t.Errorf("payload mismatch: %+v", m)
	}
}

func TestMessageFromFrame_RejectsLongFrame(t *testing.T) {
	// A length above eight is rejected outright, never clamped.
	f := Frame{ID: 0x100, Extended: true, Length: 9}

	if _, err := MessageFromFrame(f); err == nil {
		t.Error("expected error for 9-byte frame")
	}
}

func TestFrameCodec_Identity(t *testing.T) {
	m := Message{Hash: 0xBEEF, Command: CmdAccessory, Length: 6, Data: [8]byte{0, 0, 0x30, 0x01, 1, 1}}

	back, err := MessageFromFrame(m.Frame())
	if err != nil {
		t.Fatalf("decode error: %v", err)
	}
	if back != m {
		t.Errorf("identity failed: expected %+v, got %+v", m, back)
	}
}

// ============================================================
// Network Form Tests
// ============================================================

func TestFrameMarshalBinary(t *testing.T) {
	m := Message{Hash: 0x4711, Command: CmdLocoSpeed, Length: 6}
	m.Data[3] = 0x0A
	m.Data[4] = 0x01
	m.Data[5] = 0xF4

	buf, err := m.Frame().MarshalBinary()
	if err != nil {
		t.Fatalf("marshal error: %v", err)
	}
	expected := []byte{0x00, 0x08, 0x47, 0x11, 0x06, 0x00, 0x00, 0x00, 0x0A, 0x01, 0xF4, 0x00, 0x00}
	if !bytes.Equal(buf, expected) {
		t.Errorf("expected % X, got % X", expected, buf)
	}
}

func TestFrameMarshalBinary_Invalid(t *testing.T) {
	f := Frame{ID: 0x100, Extended: true, Length: 9}
	if _, err := f.MarshalBinary(); err == nil {
		t.Error("expected marshal error for 9-byte frame")
	}
}

func TestUnmarshalFrame(t *testing.T) {
	buf := []byte{0x00, 0x08, 0x47, 0x11, 0x06, 0x00, 0x00, 0x00, 0x0A, 0x01, 0xF4, 0x00, 0x00}

	f, err := UnmarshalFrame(buf)
	if err != nil {
		t.Fatalf("unmarshal error: %v", err)
	}
	if f.ID != 0x00084711 {
		t.Errorf("expected id 0x00084711, got 0x%08X", f.ID)
	}
	if !f.Extended {
		t.Error("bridge frames decode as extended")
	}
	if f.Length != 6 || f.Data[3] != 0x0A {
		t.Errorf("payload mismatch: %+v", f)
	}
}

func TestUnmarshalFrame_WrongSize(t *testing.T) {
	if _, err := UnmarshalFrame(make([]byte, 12)); err == nil {
		t.Error("expected error for 12-byte buffer")
	}
	if _, err := UnmarshalFrame(make([]byte, 14)); err == nil {
		t.Error("expected error for 14-byte buffer")
	}
}

func TestUnmarshalFrame_BadLength(t *testing.T) {
	buf := make([]byte, 13)
	buf[4] = 9
	if _, err := UnmarshalFrame(buf); err == nil {
		t.Error("expected error for DLC 9")
	}
}

func TestNetworkForm_Identity(t *testing.T) {
	f := Frame{ID: PackID(CmdPing, 0xBEEF) | 1<<16, Extended: true, Length: 8,
		Data: [8]byte{0x47, 0x43, 0x10, 0x21, 0x01, 0x27, 0x00, 0x10}}

	buf, err := f.MarshalBinary()
	if err != nil {
		t.Fatalf("marshal error: %v", err)
	}
	back, err := UnmarshalFrame(buf)
	if err != nil {
		t.Fatalf("unmarshal error: %v", err)
	}
	if back != f {
		t.Errorf("identity failed: expected %+v, got %+v", f, back)
	}
}

// ============================================================
// Formatter Tests
// ============================================================

func TestCommandName(t *testing.T) {
	tests := []struct {
		command  uint8
		expected string
	}{
		{CmdSystem, "SYSTEM"},
		{CmdDiscovery, "DISCOVERY"},
		{CmdMFXBind, "MFX_BIND"},
		{CmdMFXVerify, "MFX_VERIFY"},
		{CmdLocoSpeed, "SPEED"},
		{CmdLocoDirection, "DIRECTION"},
		{CmdLocoFunction, "FUNCTION"},
		{CmdReadConfig, "READ_CONFIG"},
		{CmdWriteConfig, "WRITE_CONFIG"},
		{CmdAccessory, "ACCESSORY"},
		{CmdPing, "PING"},
		{CmdBootloader, "BOOTLOADER"},
		{0x7F, "UNKNOWN"},
	}

	for _, tt := range tests {
		t.Run(tt.expected, func(t *testing.T) {
			if got := CommandName(tt.command); got != tt.expected {
				t.Errorf("CommandName(0x%02X) = %s, expected %s", tt.command, got, tt.expected)
			}
		})
	}
}

func TestDeviceName(t *testing.T) {
	tests := []struct {
		deviceType uint16
		expected   string
	}{
		{DeviceGFP, "Central Station 2 (GFP)"},
		{DeviceGleisbox, "Gleisbox"},
		{DeviceConnect6021, "Connect 6021"},
		{DeviceMS2, "Mobile Station 2"},
		{DeviceCS2GUI, "Central Station 2 (GUI)"},
		{0x0099, "device 0x0099"},
	}

	for _, tt := range tests {
		if got := DeviceName(tt.deviceType); got != tt.expected {
			t.Errorf("DeviceName(0x%04X) = %s, expected %s", tt.deviceType, got, tt.expected)
		}
	}
}

func TestDirectionName(t *testing.T) {
	if got := DirectionName(DirForward); got != "forward" {
		t.Errorf("expected 'forward', got '%s'", got)
	}
	if got := DirectionName(7); got != "unknown" {
		t.Errorf("expected 'unknown', got '%s'", got)
	}
}

func TestFormatMessage_Speed(t *testing.T) {
	m := Message{Hash: 0x4711, Command: CmdLocoSpeed, Length: 6}
	m.Data[3] = 10
	m.Data[4] = 0x01
	m.Data[5] = 0xF4

	got := FormatMessage(m)
	if !strings.Contains(got, "SPEED") {
		t.Errorf("should contain mnemonic, got '%s'", got)
	}
	if !strings.Contains(got, "addr 10") {
		t.Errorf("should contain address, got '%s'", got)
	}
	if !strings.Contains(got, "speed 500") {
		t.Errorf("should contain speed value, got '%s'", got)
	}
}

func TestFormatMessage_SystemGo(t *testing.T) {
	m := Message{Command: CmdSystem, Length: 5}
	m.Data[4] = SysGo

	got := FormatMessage(m)
	if !strings.Contains(got, "SYSTEM") || !strings.Contains(got, "GO") {
		t.Errorf("should contain SYSTEM GO, got '%s'", got)
	}
}

func TestFormatMessage_PingReply(t *testing.T) {
	m := Message{Hash: 0x4711, Response: true, Command: CmdPing, Length: 8,
		Data: [8]byte{0x47, 0x43, 0x10, 0x21, 0x01, 0x27, 0x00, 0x10}}

	got := FormatMessage(m)
	if !strings.Contains(got, "uid 0x47431021") {
		t.Errorf("should contain uid, got '%s'", got)
	}
	if !strings.Contains(got, "version 1.39") {
		t.Errorf("should contain version, got '%s'", got)
	}
	if !strings.Contains(got, "Gleisbox") {
		t.Errorf("should contain device name, got '%s'", got)
	}
}

func TestFormatMessage_Wake(t *testing.T) {
	m := Message{Command: CmdBootloader, Length: 5}
	m.Data[4] = 0x11

	got := FormatMessage(m)
	if !strings.Contains(got, "wake") {
		t.Errorf("should mark the wake frame, got '%s'", got)
	}
}

func TestFormatMessage_Direction(t *testing.T) {
	m := Message{Command: CmdLocoDirection, Length: 5}
	m.Data[3] = 3
	m.Data[4] = DirReverse

	got := FormatMessage(m)
	if !strings.Contains(got, "reverse") {
		t.Errorf("should contain direction name, got '%s'", got)
	}
}

// ============================================================
// Validation Tests
// ============================================================

func TestValidateMessage_CatalogShapes(t *testing.T) {
	tests := []struct {
		name string
		m    Message
	}{
		{"go", Message{Command: CmdSystem, Length: 5, Data: [8]byte{0, 0, 0, 0, SysGo}}},
		{"stop", Message{Command: CmdSystem, Length: 5}},
		{"power query", Message{Command: CmdSystem, Length: 4}},
		{"unlock", Message{Command: CmdSystem, Length: 6, Data: [8]byte{0, 0, 0, 0, SysUnlockProtocols, 0x07}}},
		{"mfx counter", Message{Command: CmdSystem, Length: 7, Data: [8]byte{0, 0, 0, 0, SysMFXCounter, 0, 0x0D}}},
		{"status query", Message{Command: CmdSystem, Length: 6, Data: [8]byte{0, 0, 0, 0, SysStatus, 1}}},
		{"status reply", Message{Response: true, Command: CmdSystem, Length: 8, Data: [8]byte{0, 0, 0, 0, SysStatus, 1, 0x01, 0x90}}},
		{"speed set", Message{Command: CmdLocoSpeed, Length: 6, Data: [8]byte{0, 0, 0, 10, 0x03, 0xFF}}},
		{"speed query", Message{Command: CmdLocoSpeed, Length: 4, Data: [8]byte{0, 0, 0, 10}}},
		{"direction set", Message{Command: CmdLocoDirection, Length: 5, Data: [8]byte{0, 0, 0, 10, DirForward}}},
		{"function set", Message{Command: CmdLocoFunction, Length: 6, Data: [8]byte{0, 0, 0, 10, 0, 1}}},
		{"accessory set", Message{Command: CmdAccessory, Length: 6, Data: [8]byte{0, 0, 0x30, 1, AccStraight, 1}}},
		{"config read", Message{Command: CmdReadConfig, Length: 7, Data: [8]byte{0, 0, 0, 10, 0, 1, 1}}},
		{"config write", Message{Command: CmdWriteConfig, Length: 8, Data: [8]byte{0, 0, 0, 10, 0, 1, 3, 0}}},
		{"ping", Message{Command: CmdPing}},
		{"ping reply", Message{Response: true, Command: CmdPing, Length: 8, Data: [8]byte{0x47, 0x43, 0x10, 0x21, 0x01, 0x27, 0x00, 0x10}}},
		{"wake", Message{Command: CmdBootloader, Length: 5, Data: [8]byte{0, 0, 0, 0, 0x11}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if errs := ValidateMessage(tt.m); len(errs) != 0 {
				t.Errorf("expected no validation errors, got %d: %v", len(errs), errs)
			}
		})
	}
}

func TestValidateMessage_UnknownCommand(t *testing.T) {
	m := Message{Command: 0x7F, Length: 4}

	errs := ValidateMessage(m)
	if len(errs) != 1 {
		t.Fatalf("expected 1 validation error, got %d", len(errs))
	}
	if errs[0].Type != AnomalyUnknownCommand {
		t.Errorf("expected AnomalyUnknownCommand, got %d", errs[0].Type)
	}
}

func TestValidateMessage_SpeedOverScale(t *testing.T) {
	m := Message{Command: CmdLocoSpeed, Length: 6}
	m.Data[4] = 0x04 // 1024

	errs := ValidateMessage(m)
	if len(errs) != 1 {
		t.Fatalf("expected 1 validation error, got %d", len(errs))
	}
	if errs[0].Type != AnomalyBadValue {
		t.Errorf("expected AnomalyBadValue, got %d", errs[0].Type)
	}
}

func TestValidateMessage_DirectionOutOfRange(t *testing.T) {
	m := Message{Command: CmdLocoDirection, Length: 5}
	m.Data[4] = 4

	errs := ValidateMessage(m)
	if len(errs) != 1 || errs[0].Type != AnomalyBadValue {
		t.Fatalf("expected one AnomalyBadValue, got %v", errs)
	}
}

func TestValidateMessage_BadLengths(t *testing.T) {
	tests := []struct {
		name string
		m    Message
	}{
		{"speed odd length", Message{Command: CmdLocoSpeed, Length: 5}},
		{"direction long", Message{Command: CmdLocoDirection, Length: 7}},
		{"ping with payload", Message{Command: CmdPing, Length: 3}},
		{"ping reply short", Message{Response: true, Command: CmdPing, Length: 7}},
		{"status reply short", Message{Response: true, Command: CmdSystem, Length: 7, Data: [8]byte{0, 0, 0, 0, SysStatus}}},
		{"config write short", Message{Command: CmdWriteConfig, Length: 7}},
		{"system stub", Message{Command: CmdSystem, Length: 2}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			errs := ValidateMessage(tt.m)
			if len(errs) != 1 {
				t.Fatalf("expected 1 validation error, got %d: %v", len(errs), errs)
			}
			if errs[0].Type != AnomalyBadLength {
				t.Errorf("expected AnomalyBadLength, got %d", errs[0].Type)
			}
		})
	}
}

func TestValidateMessage_UnknownSystemSubcommand(t *testing.T) {
	m := Message{Command: CmdSystem, Length: 5}
	m.Data[4] = 0x42

	errs := ValidateMessage(m)
	if len(errs) != 1 || errs[0].Type != AnomalyBadValue {
		t.Fatalf("expected one AnomalyBadValue, got %v", errs)
	}
}

func TestValidationError_Error(t *testing.T) {
	err := ValidationError{
		Type:    AnomalyBadValue,
		Message: "speed 2000 exceeds scale end 1023",
		Details: map[string]interface{}{"speed": 2000},
	}
	if err.Error() != "speed 2000 exceeds scale end 1023" {
		t.Errorf("Error() should return the message, got '%s'", err.Error())
	}
}

// ============================================================
// Statistics Tests
// ============================================================

func TestStatistics_NewStatistics(t *testing.T) {
	s := NewStatistics()
	if s.TotalFrames != 0 {
		t.Error("new statistics should have 0 total frames")
	}
	if s.StartTime.IsZero() {
		t.Error("StartTime should be set")
	}
	if s.Commands == nil {
		t.Error("Commands map should be allocated")
	}
}

func TestStatistics_Update_ValidFrame(t *testing.T) {
	s := NewStatistics()
	m := Message{Response: true, Command: CmdLocoSpeed, Length: 6}

	s.Update(&m, nil, nil)

	if s.TotalFrames != 1 {
		t.Errorf("TotalFrames should be 1, got %d", s.TotalFrames)
	}
	if s.ValidFrames != 1 {
		t.Errorf("ValidFrames should be 1, got %d", s.ValidFrames)
	}
	if s.Responses != 1 {
		t.Errorf("Responses should be 1, got %d", s.Responses)
	}
	if s.Commands[CmdLocoSpeed] != 1 {
		t.Errorf("Commands[0x04] should be 1, got %d", s.Commands[CmdLocoSpeed])
	}
}

func TestStatistics_Update_DecodeError(t *testing.T) {
	s := NewStatistics()

	s.Update(nil, errors.New("frame length 9 exceeds 8 data bytes"), nil)

	if s.TotalFrames != 1 {
		t.Errorf("TotalFrames should be 1, got %d", s.TotalFrames)
	}
	if s.DecodeErrors != 1 {
		t.Errorf("DecodeErrors should be 1, got %d", s.DecodeErrors)
	}
	if s.ValidFrames != 0 {
		t.Errorf("ValidFrames should stay 0, got %d", s.ValidFrames)
	}
}

func TestStatistics_Update_Anomalies(t *testing.T) {
	s := NewStatistics()
	m := Message{Command: CmdLocoSpeed, Length: 6}
	m.Data[4] = 0x04
	anomalies := ValidateMessage(m)
	if len(anomalies) == 0 {
		t.Fatal("fixture should produce an anomaly")
	}

	s.Update(&m, nil, anomalies)

	if s.Anomalies != 1 {
		t.Errorf("Anomalies should be 1, got %d", s.Anomalies)
	}
	if s.BadValues != 1 {
		t.Errorf("BadValues should be 1, got %d", s.BadValues)
	}
	if s.ValidFrames != 0 {
		t.Errorf("ValidFrames should stay 0, got %d", s.ValidFrames)
	}
}

func TestStatistics_CalculateRates(t *testing.T) {
	s := NewStatistics()
	s.StartTime = time.Now().Add(-10 * time.Second)
	s.TotalFrames = 100
	s.DecodeErrors = 5
	s.Anomalies = 3

	s.CalculateRates()

	if s.FrameRate <= 0 {
		t.Error("FrameRate should be positive")
	}
	if s.ErrorRate <= 0 {
		t.Error("ErrorRate should be positive")
	}
}

func TestStatistics_String(t *testing.T) {
	s := NewStatistics()
	m := Message{Command: CmdLocoSpeed, Length: 6}
	s.Update(&m, nil, nil)
	s.Update(nil, errors.New("bad frame"), nil)

	result := s.String()

	if !strings.Contains(result, "Track Statistics") {
		t.Error("String should contain the heading")
	}
	if !strings.Contains(result, "Total Frames") {
		t.Error("String should contain totals")
	}
	if !strings.Contains(result, "SPEED") {
		t.Error("String should name observed commands")
	}
	if !strings.Contains(result, "Decode Errors") {
		t.Error("String should report decode errors")
	}
}

func TestStatistics_Reset(t *testing.T) {
	s := NewStatistics()
	m := Message{Command: CmdLocoSpeed, Length: 6}
	s.Update(&m, nil, nil)

	s.Reset()

	if s.TotalFrames != 0 || s.ValidFrames != 0 {
		t.Error("counters should be 0 after reset")
	}
	if len(s.Commands) != 0 {
		t.Error("Commands map should be empty after reset")
	}
}

// ============================================================
// Capture Tests
// ============================================================

func TestCapture_RoundTrip(t *testing.T) {
	var buf bytes.Buffer
	w := NewCaptureWriter(&buf)

	f1 := Message{Hash: 0x4711, Command: CmdLocoSpeed, Length: 6, Data: [8]byte{0, 0, 0, 10, 1, 0xF4}}.Frame()
	f2 := Message{Hash: 0x4711, Response: true, Command: CmdPing, Length: 8,
		Data: [8]byte{0x47, 0x43, 0x10, 0x21, 0x01, 0x27, 0x00, 0x10}}.Frame()
	f2.ID |= 1 << 16
	t1 := time.UnixMilli(1700000000000)
	t2 := time.UnixMilli(1700000000123)

	if err := w.Add(f1, t1); err != nil {
		t.Fatalf("add error: %v", err)
	}
	if err := w.Add(f2, t2); err != nil {
		t.Fatalf("add error: %v", err)
	}
	if w.Count() != 2 {
		t.Errorf("expected 2 records written, got %d", w.Count())
	}

	records, err := ReadCapture(&buf)
	if err != nil {
		t.Fatalf("read error: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("expected 2 records, got %d", len(records))
	}

	if records[0].Frame() != f1 {
		t.Errorf("record 0 mismatch: expected %+v, got %+v", f1, records[0].Frame())
	}
	if records[1].Frame() != f2 {
		t.Errorf("record 1 mismatch: expected %+v, got %+v", f2, records[1].Frame())
	}
	if !records[0].Time().Equal(t1) {
		t.Errorf("expected time %v, got %v", t1, records[0].Time())
	}
	if records[1].At-records[0].At != 123 {
		t.Errorf("expected 123ms spacing, got %d", records[1].At-records[0].At)
	}
}

func TestCaptureWriter_RejectsLongFrame(t *testing.T) {
	w := NewCaptureWriter(&bytes.Buffer{})
	if err := w.Add(Frame{ID: 0x100, Extended: true, Length: 9}, time.Now()); err == nil {
		t.Error("expected error for 9-byte frame")
	}
	if w.Count() != 0 {
		t.Errorf("count should stay 0, got %d", w.Count())
	}
}

func TestReadCapture_Empty(t *testing.T) {
	records, err := ReadCapture(&bytes.Buffer{})
	if err != nil {
		t.Fatalf("read error: %v", err)
	}
	if len(records) != 0 {
		t.Errorf("expected no records, got %d", len(records))
	}
}

func TestReadCapture_Truncated(t *testing.T) {
	var buf bytes.Buffer
	w := NewCaptureWriter(&buf)
	f := Message{Hash: 0x4711, Command: CmdPing}.Frame()
	if err := w.Add(f, time.Now()); err != nil {
		t.Fatalf("add error: %v", err)
	}
	whole := buf.Bytes()

	if _, err := ReadCapture(bytes.NewReader(whole[:len(whole)-1])); err == nil {
		t.Error("expected error for truncated stream")
	}
}

func TestCaptureRecord_OverlongDataStaysRejectable(t *testing.T) {
	rec := CaptureRecord{ID: 0x100, Length: 12, Data: make([]byte, 12)}

	f := rec.Frame()
	if f.Length != 12 {
		t.Errorf("length should carry through, got %d", f.Length)
	}
	if _, err := MessageFromFrame(f); err == nil {
		t.Error("decoding the rebuilt frame should fail")
	}
}
