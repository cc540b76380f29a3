// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 The Blechbahn Authors

package gleis

import (
	"encoding/binary"
	"errors"
	"fmt"
	"time"
)

// Exchange windows. Decoder configuration access runs on the programming
// track timing and takes far longer than a ride command.
const (
	exchangeTimeout = time.Second
	configTimeout   = 10 * time.Second
	versionDrain    = 500 * time.Millisecond
)

// locoMessage builds the common shell of an addressed frame: command,
// length, and the address in data[2..3].
func locoMessage(command, length uint8, addr uint16) Message {
	var m Message
	m.Command = command
	m.Length = length
	m.Data[2] = byte(addr >> 8)
	m.Data[3] = byte(addr)
	return m
}

// ignoredExchange runs an exchange whose outcome does not gate the
// caller: a missing confirm is dropped, a dead controller still counts.
func (c *Controller) ignoredExchange(m *Message, timeout time.Duration) error {
	if _, err := c.Exchange(m, timeout); err != nil {
		if errors.Is(err, ErrHalted) || errors.Is(err, ErrNotReady) {
			return err
		}
	}
	return nil
}

// SetPower switches track power. Powering on primes the box first: pin
// the mfx re-registration counter, unlock the MM2, mfx and DCC rails,
// then go. Only the final go/stop exchange gates the result.
func (c *Controller) SetPower(on bool) error {
	if on {
		m := Message{Command: CmdSystem, Length: 7}
		m.Data[4] = SysMFXCounter
		m.Data[6] = 0x0D
		if err := c.ignoredExchange(&m, exchangeTimeout); err != nil {
			return err
		}
		m = Message{Command: CmdSystem, Length: 6}
		m.Data[4] = SysUnlockProtocols
		m.Data[5] = 0x07 // MM2, mfx and DCC
		if err := c.ignoredExchange(&m, exchangeTimeout); err != nil {
			return err
		}
	}
	m := Message{Command: CmdSystem, Length: 5}
	if on {
		m.Data[4] = SysGo
	} else {
		m.Data[4] = SysStop
	}
	_, err := c.Exchange(&m, exchangeTimeout)
	return err
}

// SendPower transmits the go or stop frame alone, without waiting for a
// confirm.
func (c *Controller) SendPower(on bool) error {
	m := Message{Command: CmdSystem, Length: 5}
	if on {
		m.Data[4] = SysGo
	} else {
		m.Data[4] = SysStop
	}
	return c.Send(&m)
}

// RequestPower transmits a power status query without waiting; collect
// the reply with ReceiveOne.
func (c *Controller) RequestPower() error {
	m := Message{Command: CmdSystem, Length: 4}
	return c.Send(&m)
}

// SetLocoDirection turns a locomotive. The decoder falls to speed zero on
// a turn, so a loco emergency stop goes out first; its confirm does not
// gate the result, the direction exchange does. dir is one of the Dir
// constants.
func (c *Controller) SetLocoDirection(addr uint16, dir uint8) error {
	m := locoMessage(CmdSystem, 5, addr)
	m.Data[4] = SysLocoEmergencyStop
	if err := c.ignoredExchange(&m, exchangeTimeout); err != nil {
		return err
	}
	m = locoMessage(CmdLocoDirection, 5, addr)
	m.Data[4] = dir
	_, err := c.Exchange(&m, exchangeTimeout)
	return err
}

// ToggleLocoDirection reverses a locomotive from whatever it runs now.
func (c *Controller) ToggleLocoDirection(addr uint16) error {
	return c.SetLocoDirection(addr, DirChange)
}

// LocoDirection reads a locomotive's current direction.
func (c *Controller) LocoDirection(addr uint16) (uint8, error) {
	m := locoMessage(CmdLocoDirection, 4, addr)
	in, err := c.Exchange(&m, exchangeTimeout)
	if err != nil {
		return 0, err
	}
	return in.Data[4], nil
}

// SetLocoSpeed runs a locomotive at speed, 0 through SpeedMax.
func (c *Controller) SetLocoSpeed(addr, speed uint16) error {
	m := locoMessage(CmdLocoSpeed, 6, addr)
	m.Data[4] = byte(speed >> 8)
	m.Data[5] = byte(speed)
	_, err := c.Exchange(&m, exchangeTimeout)
	return err
}

// LocoSpeed reads a locomotive's current speed.
func (c *Controller) LocoSpeed(addr uint16) (uint16, error) {
	m := locoMessage(CmdLocoSpeed, 4, addr)
	in, err := c.Exchange(&m, exchangeTimeout)
	if err != nil {
		return 0, err
	}
	return word(in.Data[4], in.Data[5]), nil
}

// AccelerateLoco nudges a locomotive one notch faster, clamped at
// SpeedMax. A failed speed read aborts the nudge.
func (c *Controller) AccelerateLoco(addr uint16) error {
	speed, err := c.LocoSpeed(addr)
	if err != nil {
		return err
	}
	speed += SpeedNotch
	if speed > SpeedMax {
		speed = SpeedMax
	}
	return c.SetLocoSpeed(addr, speed)
}

// DecelerateLoco nudges one notch slower. The subtraction runs in uint16;
// a wrapped result floors to zero, so a slow locomotive stops rather than
// jumping to full speed.
func (c *Controller) DecelerateLoco(addr uint16) error {
	speed, err := c.LocoSpeed(addr)
	if err != nil {
		return err
	}
	speed -= SpeedNotch
	if speed > 32767 {
		speed = 0
	}
	return c.SetLocoSpeed(addr, speed)
}

// SetLocoFunction drives function fn at power, 0 through PowerMax;
// function 0 is the headlights on most decoders. Most protocols only
// honor power 0 (off) and 1 (on), but dimmable outputs take the full
// range.
func (c *Controller) SetLocoFunction(addr uint16, fn uint8, power uint8) error {
	if power > PowerMax {
		return fmt.Errorf("function power %d exceeds %d", power, PowerMax)
	}
	m := locoMessage(CmdLocoFunction, 6, addr)
	m.Data[4] = fn
	m.Data[5] = power
	_, err := c.Exchange(&m, exchangeTimeout)
	return err
}

// ToggleLocoFunction flips function fn. A failed read aborts the toggle.
// The decoder reports state only as off or on, so the toggle writes
// power 0 or 1 whatever level a set may have carried.
func (c *Controller) ToggleLocoFunction(addr uint16, fn uint8) error {
	on, err := c.LocoFunction(addr, fn)
	if err != nil {
		return err
	}
	if on {
		return c.SetLocoFunction(addr, fn, 0)
	}
	return c.SetLocoFunction(addr, fn, 1)
}

// LocoFunction reads the state of function fn.
func (c *Controller) LocoFunction(addr uint16, fn uint8) (bool, error) {
	m := locoMessage(CmdLocoFunction, 5, addr)
	m.Data[4] = fn
	in, err := c.Exchange(&m, exchangeTimeout)
	if err != nil {
		return false, err
	}
	return in.Data[5] != 0, nil
}

// SetAccessory drives an accessory output to position, one of the Acc
// constants. power energizes the output, 0 through PowerMax, though most
// decoders only honor 0 (off) and 1 (on); a nonzero hold keeps the
// output on that long and then releases it with a second frame at power
// zero. Accessory decoders routinely stay silent, so a missing confirm
// does not fail the call.
func (c *Controller) SetAccessory(addr uint16, position uint8, power uint8, hold time.Duration) error {
	if power > PowerMax {
		return fmt.Errorf("accessory power %d exceeds %d", power, PowerMax)
	}
	m := locoMessage(CmdAccessory, 6, addr)
	m.Data[4] = position
	m.Data[5] = power
	if err := c.ignoredExchange(&m, exchangeTimeout); err != nil {
		return err
	}
	if hold > 0 {
		c.clock.Sleep(hold)
		m = locoMessage(CmdAccessory, 6, addr)
		m.Data[4] = position
		if err := c.ignoredExchange(&m, exchangeTimeout); err != nil {
			return err
		}
	}
	return nil
}

// SendAccessory transmits one accessory frame without waiting.
func (c *Controller) SendAccessory(addr uint16, position uint8, power uint8) error {
	if power > PowerMax {
		return fmt.Errorf("accessory power %d exceeds %d", power, PowerMax)
	}
	m := locoMessage(CmdAccessory, 6, addr)
	m.Data[4] = position
	m.Data[5] = power
	return c.Send(&m)
}

// SetTurnout throws a turnout straight or round.
func (c *Controller) SetTurnout(addr uint16, straight bool) error {
	position := uint8(AccRound)
	if straight {
		position = AccStraight
	}
	return c.SetAccessory(addr, position, 1, 0)
}

// Accessory reads an accessory's position and output state.
func (c *Controller) Accessory(addr uint16) (position uint8, power bool, err error) {
	m := locoMessage(CmdAccessory, 4, addr)
	in, err := c.Exchange(&m, exchangeTimeout)
	if err != nil {
		return 0, false, err
	}
	return in.Data[4], in.Data[5] != 0, nil
}

// RequestAccessory transmits an accessory query without waiting.
func (c *Controller) RequestAccessory(addr uint16) error {
	m := locoMessage(CmdAccessory, 4, addr)
	return c.Send(&m)
}

// Turnout reads whether a turnout stands straight.
func (c *Controller) Turnout(addr uint16) (bool, error) {
	position, _, err := c.Accessory(addr)
	if err != nil {
		return false, err
	}
	return position == AccStraight, nil
}

// WriteConfig writes one decoder configuration variable.
func (c *Controller) WriteConfig(addr, number uint16, value uint8) error {
	m := locoMessage(CmdWriteConfig, 8, addr)
	m.Data[4] = byte(number >> 8)
	m.Data[5] = byte(number)
	m.Data[6] = value
	_, err := c.Exchange(&m, configTimeout)
	return err
}

// ReadConfig reads one decoder configuration variable.
func (c *Controller) ReadConfig(addr, number uint16) (uint8, error) {
	m := locoMessage(CmdReadConfig, 7, addr)
	m.Data[4] = byte(number >> 8)
	m.Data[5] = byte(number)
	m.Data[6] = 0x01 // read one byte
	in, err := c.Exchange(&m, configTimeout)
	if err != nil {
		return 0, err
	}
	return in.Data[6], nil
}

// Version asks the bus for firmware versions and returns the track box's,
// major in the high byte, minor in the low. The ping reaches every device,
// so after the drain window all queued replies are read and only frames
// identifying as a track box (device type in data[6..7]) count; the last
// one wins. No such reply means ErrTimeout.
func (c *Controller) Version() (uint16, error) {
	m := Message{Command: CmdPing}
	if err := c.Send(&m); err != nil {
		return 0, err
	}
	c.clock.Sleep(versionDrain)
	var version uint16
	found := false
	for {
		in, ok, err := c.ReceiveOne()
		if !ok {
			break
		}
		if err != nil {
			continue
		}
		if in.Command == CmdPing && in.Response && word(in.Data[6], in.Data[7]) == DeviceGleisbox {
			version = word(in.Data[4], in.Data[5])
			found = true
		}
	}
	if !found {
		return 0, ErrTimeout
	}
	return version, nil
}

// SystemStatus reads one measurement channel of a device addressed by its
// 32-bit UID; a Gleisbox reports track current on channel 1. A confirm
// that is not the full eight bytes is malformed.
func (c *Controller) SystemStatus(uid uint32, channel uint8) (uint16, error) {
	m := Message{Command: CmdSystem, Length: 6}
	binary.BigEndian.PutUint32(m.Data[0:4], uid)
	m.Data[4] = SysStatus
	m.Data[5] = channel
	in, err := c.Exchange(&m, exchangeTimeout)
	if err != nil {
		return 0, err
	}
	if in.Length != 8 {
		return 0, fmt.Errorf("status reply carries %d bytes, want 8", in.Length)
	}
	return word(in.Data[6], in.Data[7]), nil
}
