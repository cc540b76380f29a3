// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 The Blechbahn Authors

package gleis

import (
	"encoding/binary"
	"fmt"
)

// Frame is a raw CAN frame, the unit the transports move. Track format
// always runs 29-bit extended identifiers.
type Frame struct {
	ID       uint32
	Extended bool
	RTR      bool // ignored on receive, never set on send
	Length   uint8
	Data     [8]byte
}

const (
	maxStandardID = 0x7FF
	wireFrameLen  = 13
)

// Validate reports whether the identifier fits its address space and the
// length fits the payload.
func (f *Frame) Validate() error {
	if f.Extended && f.ID > maxExtendedID {
		return fmt.Errorf("identifier 0x%08X exceeds 29 bits", f.ID)
	}
	if !f.Extended && f.ID > maxStandardID {
		return fmt.Errorf("identifier 0x%08X exceeds 11 bits", f.ID)
	}
	if f.Length > MaxDataLen {
		return fmt.Errorf("length %d exceeds %d data bytes", f.Length, MaxDataLen)
	}
	return nil
}

// PackID builds the extended identifier for an outgoing frame: the command
// in bits 24..17 and the session tag in the low 16. The response bit (16)
// stays clear; a controller originates commands, never replies.
func PackID(command uint8, hash uint16) uint32 {
	return uint32(command)<<17 | uint32(hash)
}

// UnpackID splits an identifier into command, response flag and session
// tag. Bits above the command carry the CS2 priority nibble and are
// dropped.
func UnpackID(id uint32) (command uint8, response bool, hash uint16) {
	return uint8(id >> 17), id&(1<<16) != 0, uint16(id)
}

// Frame converts m to its bus form.
func (m Message) Frame() Frame {
	f := Frame{
		ID:       PackID(m.Command, m.Hash),
		Extended: true,
		Length:   m.Length,
	}
	f.Data = m.Data
	return f
}

// MessageFromFrame decodes a received frame. A length above MaxDataLen is
// rejected, never clamped. The Extended and RTR flags carry no protocol
// meaning and are ignored.
func MessageFromFrame(f Frame) (Message, error) {
	if f.Length > MaxDataLen {
		return Message{}, fmt.Errorf("frame length %d exceeds %d data bytes", f.Length, MaxDataLen)
	}
	var m Message
	m.Command, m.Response, m.Hash = UnpackID(f.ID)
	m.Length = f.Length
	m.Data = f.Data
	return m, nil
}

// MarshalBinary renders the 13-byte network form used by CS2 bridges:
// big-endian identifier, one length byte, eight data bytes zero padded.
func (f Frame) MarshalBinary() ([]byte, error) {
	if err := f.Validate(); err != nil {
		return nil, err
	}
	buf := make([]byte, wireFrameLen)
	binary.BigEndian.PutUint32(buf[0:4], f.ID)
	buf[4] = f.Length
	copy(buf[5:], f.Data[:])
	return buf, nil
}

// UnmarshalFrame reads the 13-byte network form. The form carries no flag
// bits; every frame on a bridge is extended.
func UnmarshalFrame(b []byte) (Frame, error) {
	if len(b) != wireFrameLen {
		return Frame{}, fmt.Errorf("network frame is %d bytes, got %d", wireFrameLen, len(b))
	}
	f := Frame{
		ID:       binary.BigEndian.Uint32(b[0:4]),
		Extended: true,
		Length:   b[4],
	}
	copy(f.Data[:], b[5:13])
	if err := f.Validate(); err != nil {
		return Frame{}, err
	}
	return f, nil
}
