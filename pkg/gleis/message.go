// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 The Blechbahn Authors

package gleis

// Message is one track-format frame in controller form: the three fields
// packed into the CAN identifier plus the payload bytes.
type Message struct {
	Hash     uint16 // session tag stamped by the sending controller
	Response bool   // set on frames that confirm a command
	Command  uint8
	Length   uint8 // number of valid Data bytes, 0 through MaxDataLen
	Data     [8]byte
}

// Clear zeroes every field. The zero Message is already clear; Clear lets
// one value be reused across a polling loop.
func (m *Message) Clear() {
	*m = Message{}
}

// word pairs two payload bytes big endian.
func word(hi, lo byte) uint16 {
	return uint16(hi)<<8 | uint16(lo)
}
