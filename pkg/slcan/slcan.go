// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 The Blechbahn Authors

// Package slcan drives a Lawicel SLCAN serial CAN adapter as a gleis.Bus.
//
// SLCAN adapters (CANable, USBtin, Arduino sketches) frame CAN traffic as
// ASCII lines over a serial port: 'T' carries an extended frame, 't' a
// standard one, and single-letter commands configure the channel. The
// track bus runs at 250 kbit/s, which is channel speed code S5.
package slcan

import (
	"fmt"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"

	"go.bug.st/serial"

	"github.com/blechbahn/stellwerk/pkg/gleis"
)

const (
	// bitrateTrack is the SLCAN speed code for the 250 kbit/s track bus.
	bitrateTrack = "S5"

	// inboxDepth bounds the receive buffer; a burst beyond it drops the
	// oldest frames first.
	inboxDepth = 256

	// maxLineLen caps line assembly. The longest legal line is an
	// extended frame with a full payload, 26 characters.
	maxLineLen = 64

	bell = 0x07
)

// Bus is a gleis.Bus over one SLCAN adapter. A reader goroutine owns the
// port's receive side from Open until the port dies or Close is called.
type Bus struct {
	port   serial.Port
	frames chan gleis.Frame
	done   chan struct{}

	closing   atomic.Bool
	closeOnce sync.Once
	closeErr  error

	mu    sync.Mutex
	cause error

	framesSeen  atomic.Uint64
	parseErrors atomic.Uint64
	overflows   atomic.Uint64
	acks        atomic.Uint64
	faults      atomic.Uint64
}

// Stats counts what the reader saw besides usable frames.
type Stats struct {
	Frames      uint64
	ParseErrors uint64
	Overflows   uint64
	Acks        uint64
	Faults      uint64 // bell responses from the adapter
}

// Open opens the serial port at baud (8N1) and brings the CAN channel up:
// close any stale channel, set the track bitrate, open.
func Open(portName string, baud int) (*Bus, error) {
	mode := &serial.Mode{
		BaudRate: baud,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	}

	port, err := serial.Open(portName, mode)
	if err != nil {
		return nil, fmt.Errorf("failed to open serial port %s: %v", portName, err)
	}

	for _, cmd := range []string{"C\r", bitrateTrack + "\r", "O\r"} {
		if _, err := port.Write([]byte(cmd)); err != nil {
			port.Close()
			return nil, fmt.Errorf("adapter setup failed: %v", err)
		}
	}

	b := &Bus{
		port:   port,
		frames: make(chan gleis.Frame, inboxDepth),
		done:   make(chan struct{}),
	}
	go b.reader()
	return b, nil
}

// Send puts one frame on the wire.
func (b *Bus) Send(f gleis.Frame) error {
	if err := f.Validate(); err != nil {
		return err
	}
	select {
	case <-b.done:
		return b.err()
	default:
	}
	if _, err := b.port.Write([]byte(EncodeFrame(f))); err != nil {
		return fmt.Errorf("serial write failed: %v", err)
	}
	return nil
}

// Receive polls for one frame. Frames buffered before a failure still
// drain out; only then is the stored cause reported.
func (b *Bus) Receive() (gleis.Frame, bool, error) {
	select {
	case f := <-b.frames:
		return f, true, nil
	default:
	}
	select {
	case <-b.done:
		return gleis.Frame{}, false, b.err()
	default:
		return gleis.Frame{}, false, nil
	}
}

// Close shuts the CAN channel and releases the port. Safe to call twice.
func (b *Bus) Close() error {
	b.closeOnce.Do(func() {
		b.closing.Store(true)
		b.port.Write([]byte("C\r"))
		b.closeErr = b.port.Close()
	})
	return b.closeErr
}

// Stats returns a snapshot of the reader's counters.
func (b *Bus) Stats() Stats {
	return Stats{
		Frames:      b.framesSeen.Load(),
		ParseErrors: b.parseErrors.Load(),
		Overflows:   b.overflows.Load(),
		Acks:        b.acks.Load(),
		Faults:      b.faults.Load(),
	}
}

func (b *Bus) err() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.cause != nil {
		return b.cause
	}
	return gleis.ErrClosed
}

// reader assembles lines from the port and dispatches them until the
// port dies. It owns the done channel.
func (b *Bus) reader() {
	buf := make([]byte, 512)
	var line []byte
	for {
		n, err := b.port.Read(buf)
		for _, c := range buf[:n] {
			switch c {
			case '\r', '\n':
				if len(line) > 0 {
					b.dispatch(string(line))
					line = line[:0]
				}
			case bell:
				b.faults.Add(1)
			default:
				line = append(line, c)
				if len(line) > maxLineLen {
					b.parseErrors.Add(1)
					line = line[:0]
				}
			}
		}
		if err != nil {
			b.fail(err)
			return
		}
	}
}

func (b *Bus) dispatch(line string) {
	switch line[0] {
	case 'z', 'Z':
		b.acks.Add(1)
		return
	}
	f, err := ParseLine(line)
	if err != nil {
		b.parseErrors.Add(1)
		return
	}
	b.framesSeen.Add(1)
	select {
	case b.frames <- f:
	default:
		b.overflows.Add(1)
		select {
		case <-b.frames:
		default:
		}
		select {
		case b.frames <- f:
		default:
		}
	}
}

func (b *Bus) fail(err error) {
	b.mu.Lock()
	if b.cause == nil {
		if b.closing.Load() {
			b.cause = gleis.ErrClosed
		} else {
			b.cause = fmt.Errorf("serial read failed: %v", err)
		}
	}
	b.mu.Unlock()
	close(b.done)
}

// EncodeFrame renders one frame as an SLCAN line, trailing CR included.
func EncodeFrame(f gleis.Frame) string {
	var sb strings.Builder
	if f.Extended {
		fmt.Fprintf(&sb, "T%08X%d", f.ID, f.Length)
	} else {
		fmt.Fprintf(&sb, "t%03X%d", f.ID, f.Length)
	}
	for _, d := range f.Data[:f.Length] {
		fmt.Fprintf(&sb, "%02X", d)
	}
	sb.WriteByte('\r')
	return sb.String()
}

// ParseLine parses one SLCAN line, without its CR.
func ParseLine(line string) (gleis.Frame, error) {
	if line == "" {
		return gleis.Frame{}, fmt.Errorf("empty line")
	}

	var f gleis.Frame
	var idLen int
	switch line[0] {
	case 'T':
		f.Extended = true
		idLen = 8
	case 't':
		idLen = 3
	default:
		return gleis.Frame{}, fmt.Errorf("unknown line type %q", line[0])
	}

	if len(line) < 1+idLen+1 {
		return gleis.Frame{}, fmt.Errorf("line too short: %q", line)
	}

	id, err := strconv.ParseUint(line[1:1+idLen], 16, 32)
	if err != nil {
		return gleis.Frame{}, fmt.Errorf("bad identifier in %q", line)
	}
	f.ID = uint32(id)

	dlc := line[1+idLen]
	if dlc < '0' || dlc > '8' {
		return gleis.Frame{}, fmt.Errorf("bad DLC %q in %q", dlc, line)
	}
	f.Length = dlc - '0'

	data := line[1+idLen+1:]
	if len(data) < 2*int(f.Length) {
		return gleis.Frame{}, fmt.Errorf("truncated payload in %q", line)
	}
	for i := 0; i < int(f.Length); i++ {
		v, err := strconv.ParseUint(data[2*i:2*i+2], 16, 8)
		if err != nil {
			return gleis.Frame{}, fmt.Errorf("bad payload byte %d in %q", i, line)
		}
		f.Data[i] = byte(v)
	}

	if err := f.Validate(); err != nil {
		return gleis.Frame{}, err
	}
	return f, nil
}
