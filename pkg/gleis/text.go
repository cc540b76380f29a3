// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 The Blechbahn Authors

package gleis

import (
	"fmt"
	"strings"
)

// The text form is a fixed-column line, one message per line:
//
//	1234 R 05 2 00 01
//	^^^^ hash          offsets 0..3
//	     ^ response    offset 5, 'R' or blank
//	       ^^ command  offsets 7..8
//	          ^ length offset 10, one hex digit
//	            ^^ ... data bytes from offset 12, three columns each
//
// Rendering uses lowercase hex; parsing takes either case.

// String renders the text form of m.
func (m Message) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%04x", m.Hash)
	if m.Response {
		b.WriteString(" R ")
	} else {
		b.WriteString("   ")
	}
	fmt.Fprintf(&b, "%02x %x", m.Command, m.Length)
	n := m.Length
	if n > MaxDataLen {
		n = MaxDataLen
	}
	for i := uint8(0); i < n; i++ {
		fmt.Fprintf(&b, " %02x", m.Data[i])
	}
	return b.String()
}

// ParseMessage reads one text-form line back into a Message. The grammar
// is the fixed columns above, not a tokenizer: fields are read at their
// offsets, anything past the last data byte is ignored, and any column
// that fails to scan rejects the whole line. A length digit above
// MaxDataLen is rejected, never clamped.
func ParseMessage(s string) (Message, error) {
	var m Message
	if len(s) < 11 {
		return m, fmt.Errorf("track message too short: %d chars", len(s))
	}
	hi, ok1 := hexByteAt(s, 0)
	lo, ok2 := hexByteAt(s, 2)
	if !ok1 || !ok2 {
		return m, fmt.Errorf("bad hash field %q", s[0:4])
	}
	m.Hash = word(hi, lo)
	m.Response = s[5] != ' '
	command, ok := hexByteAt(s, 7)
	if !ok {
		return m, fmt.Errorf("bad command field %q", s[7:9])
	}
	m.Command = command
	length, ok := hexDigit(s[10])
	if !ok {
		return m, fmt.Errorf("bad length digit %q", s[10])
	}
	if length > MaxDataLen {
		return m, fmt.Errorf("length %d exceeds %d data bytes", length, MaxDataLen)
	}
	m.Length = length
	if need := 11 + 3*int(length); len(s) < need {
		return m, fmt.Errorf("truncated data: need %d chars, have %d", need, len(s))
	}
	for i := 0; i < int(length); i++ {
		b, ok := hexByteAt(s, 12+3*i)
		if !ok {
			return m, fmt.Errorf("bad data byte %d %q", i, s[12+3*i:14+3*i])
		}
		m.Data[i] = b
	}
	return m, nil
}

func hexDigit(c byte) (uint8, bool) {
	switch {
	case c >= '0' && c <= '9':
		return c - '0', true
	case c >= 'a' && c <= 'f':
		return c - 'a' + 10, true
	case c >= 'A' && c <= 'F':
		return c - 'A' + 10, true
	}
	return 0, false
}

func hexByteAt(s string, i int) (uint8, bool) {
	hi, ok1 := hexDigit(s[i])
	lo, ok2 := hexDigit(s[i+1])
	return hi<<4 | lo, ok1 && ok2
}
