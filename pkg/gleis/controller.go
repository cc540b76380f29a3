// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 The Blechbahn Authors

package gleis

import (
	"errors"
	"fmt"
	"time"
)

// Controller drives one track session over one bus. It is deliberately
// single threaded: every operation is a synchronous request/confirm
// conversation, and callers serialize access themselves.
type Controller struct {
	bus    Bus
	hash   uint16
	trace  Tracer
	clock  Clock
	poll   time.Duration
	ready  bool
	halted bool
}

// Controller errors. ErrHalted is latched: after a rejected transmit the
// controller refuses every further call.
var (
	ErrNotReady = errors.New("controller not started")
	ErrHalted   = errors.New("controller halted after transmit failure")
	ErrTimeout  = errors.New("receive timeout")
)

const (
	settleDelay         = 500 * time.Millisecond
	defaultPollInterval = time.Millisecond
)

// Config carries the optional knobs of a Controller. The zero value is
// usable: a session tag is derived from the clock, tracing is off, and
// the system clock drives the waits.
type Config struct {
	Hash         uint16        // session tag; zero derives one
	Tracer       Tracer        // wire diagnostics; nil means none
	Clock        Clock         // nil means the system clock
	PollInterval time.Duration // exchange poll spacing; zero means 1ms
}

// NewController wires a controller to a bus. The bus is adopted: Close
// closes it.
func NewController(bus Bus, cfg Config) *Controller {
	c := &Controller{
		bus:   bus,
		hash:  cfg.Hash,
		trace: cfg.Tracer,
		clock: cfg.Clock,
		poll:  cfg.PollInterval,
	}
	if c.trace == nil {
		c.trace = NopTracer{}
	}
	if c.clock == nil {
		c.clock = systemClock{}
	}
	if c.poll <= 0 {
		c.poll = defaultPollInterval
	}
	if c.hash == 0 {
		c.hash = deriveHash(c.clock.Now())
	}
	return c
}

// deriveHash folds a clock reading into a nonzero 16-bit session tag.
// The tag only has to tell concurrent cabs apart within one session.
func deriveHash(t time.Time) uint16 {
	n := t.UnixNano()
	h := uint16(n) ^ uint16(n>>16) ^ uint16(n>>32)
	if h == 0 {
		h = 1
	}
	return h
}

// Hash returns the session tag stamped on outgoing frames.
func (c *Controller) Hash() uint16 {
	return c.hash
}

// Halted reports whether a transmit failure has latched the controller.
func (c *Controller) Halted() bool {
	return c.halted
}

// Start waits out the hardware settle time, then announces the session
// with the bootloader wake frame. The box sends no confirm for it, so
// the frame is fire-and-forget; only a transmit rejection fails Start.
func (c *Controller) Start() error {
	if c.halted {
		return ErrHalted
	}
	c.clock.Sleep(settleDelay)
	c.ready = true
	var m Message
	m.Command = CmdBootloader
	m.Length = 5
	m.Data[4] = 0x11
	return c.Send(&m)
}

// Send stamps the session tag into m and puts it on the wire. A transport
// rejection leaves the layout running with nobody in command; Send latches
// the controller and every later call fails fast with ErrHalted.
func (c *Controller) Send(m *Message) error {
	if c.halted {
		return ErrHalted
	}
	if !c.ready {
		return ErrNotReady
	}
	m.Hash = c.hash
	c.trace.Send(*m)
	if err := c.bus.Send(m.Frame()); err != nil {
		c.trace.Fault("Send error")
		c.trace.Fault("Emergency stop")
		c.halted = true
		return fmt.Errorf("%w: %v", ErrHalted, err)
	}
	return nil
}

// ReceiveOne polls for one frame. ok reports whether the bus had one
// pending. A pending frame that fails to decode comes back as ok with a
// non-nil error: the frame is consumed and dropped, and the session keeps
// running.
func (c *Controller) ReceiveOne() (Message, bool, error) {
	if c.halted {
		return Message{}, false, ErrHalted
	}
	if !c.ready {
		return Message{}, false, ErrNotReady
	}
	f, ok, err := c.bus.Receive()
	if err != nil || !ok {
		return Message{}, false, err
	}
	m, err := MessageFromFrame(f)
	if err != nil {
		return Message{}, true, err
	}
	c.trace.Recv(m)
	return m, true, nil
}

// Exchange sends out and waits for its confirm: the first response frame
// carrying the same command. Anything else arriving inside the window is
// silently dropped; the track format keeps no reply queue. The wait runs
// on the injected clock, polling each PollInterval, until timeout.
func (c *Controller) Exchange(out *Message, timeout time.Duration) (Message, error) {
	command := out.Command
	if err := c.Send(out); err != nil {
		return Message{}, err
	}
	deadline := c.clock.Now().Add(timeout)
	for c.clock.Now().Before(deadline) {
		in, ok, err := c.ReceiveOne()
		if !ok {
			c.clock.Sleep(c.poll)
			continue
		}
		if err != nil {
			continue
		}
		if in.Command == command && in.Response {
			return in, nil
		}
	}
	c.trace.Fault("Receive timeout")
	return Message{}, ErrTimeout
}

// Close releases the bus. The controller is unusable afterwards.
func (c *Controller) Close() error {
	return c.bus.Close()
}
