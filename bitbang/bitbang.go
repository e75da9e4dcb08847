// Copyright 2025 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// Package bitbang implements an I²C controller on two plain GPIO lines.
//
// No bus controller hardware is needed. SCL and SDA are treated as open-drain
// lines: a logical one releases the line so the external pull-up raises it, a
// logical zero drives it low. Every transition is followed by a busy-wait so
// the setup and hold times of the attached device are respected.
//
// Clock stretching and multi-master arbitration are not supported. A device
// that holds a line low forever blocks the caller; there is no timeout at this
// level.
//
// Besides the byte level primitives used by sensor drivers that need to see
// individual acknowledge bits, I2C implements i2c.Bus so any periph driver can
// run on top of it.
package bitbang

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/i2c"
	"periph.io/x/conn/v3/physic"
	"periph.io/x/host/v3/cpu"
)

// ErrNoAck is returned when the receiver did not pull SDA low during the
// acknowledge clock.
var ErrNoAck = errors.New("bitbang: no acknowledge")

// Timing holds the delays inserted between line transitions.
type Timing struct {
	// Setup is the time SDA must be stable before SCL is released.
	Setup time.Duration
	// Hold is the time SDA must be kept after SCL went low.
	Hold time.Duration
	// ClockHigh is how long SCL stays released when the controller drives a
	// bit, and the start/stop condition hold time.
	ClockHigh time.Duration
	// Sample is how long SCL stays released before SDA is read while
	// receiving.
	Sample time.Duration
	// Gap is the idle time appended after each byte.
	Gap time.Duration
}

// DefaultTiming matches a sensor running at well under 100kHz, with enough
// margin for a delay primitive that can't go below ~15µs per call.
var DefaultTiming = Timing{
	Setup:     2 * time.Microsecond,
	Hold:      2 * time.Microsecond,
	ClockHigh: 10 * time.Microsecond,
	Sample:    6 * time.Microsecond,
	Gap:       20 * time.Microsecond,
}

// Opts holds the configuration options for the bus.
type Opts struct {
	// Timing of the line transitions. The zero value selects DefaultTiming.
	Timing Timing
	// Pull is applied to a line when it is released. Use gpio.Float when the
	// board has external pull-up resistors.
	Pull gpio.Pull
	// Delay blocks for at least the given duration. It is never interrupted.
	// Defaults to cpu.Nanospin.
	Delay func(time.Duration)
}

// DefaultOpts holds the default configuration options for the bus.
var DefaultOpts = Opts{
	Timing: DefaultTiming,
	Pull:   gpio.PullUp,
	Delay:  cpu.Nanospin,
}

// I2C is a bit-banged I²C controller.
//
// The byte level methods (Start, Stop, WriteByte, ReadByteAck,
// GeneralCallReset) are not synchronized; callers that share the bus must
// hold their own lock from the start condition to the stop condition. Tx and
// Reset are synchronized. SetSpeed can be called at any time; a transfer in
// progress keeps the timing it started with.
type I2C struct {
	mu    sync.Mutex
	scl   gpio.PinIO
	sda   gpio.PinIO
	t     atomic.Pointer[Timing]
	pull  gpio.Pull
	delay func(time.Duration)
	// err is the first pin driver failure. Once set the bus is unusable
	// until Reset.
	err error
}

// New returns a bus on the scl and sda lines. Both lines are released so the
// bus is idle. opts can be nil.
func New(scl, sda gpio.PinIO, opts *Opts) (*I2C, error) {
	if scl == nil || sda == nil {
		return nil, errors.New("bitbang: scl and sda pins are required")
	}
	if opts == nil {
		opts = &DefaultOpts
	}
	b := &I2C{scl: scl, sda: sda, pull: opts.Pull, delay: opts.Delay}
	t := opts.Timing
	if t == (Timing{}) {
		t = DefaultTiming
	}
	b.t.Store(&t)
	if b.delay == nil {
		b.delay = cpu.Nanospin
	}
	b.sdaHigh()
	b.sclHigh()
	if b.err != nil {
		return nil, b.err
	}
	return b, nil
}

// Err returns the first error reported by a pin driver since New or the last
// Reset, if any.
func (b *I2C) Err() error {
	return b.err
}

// Reset forgets a pin driver failure and releases both lines. It returns an
// error if a pin still fails, in which case the bus stays unusable.
func (b *I2C) Reset() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.err = nil
	b.sdaHigh()
	b.sclHigh()
	return b.err
}

func (b *I2C) String() string {
	return fmt.Sprintf("bitbang-i2c(%s,%s)", b.scl, b.sda)
}

// SCL implements i2c.Pins.
func (b *I2C) SCL() gpio.PinIO {
	return b.scl
}

// SDA implements i2c.Pins.
func (b *I2C) SDA() gpio.PinIO {
	return b.sda
}

// Close releases both lines. Implements i2c.BusCloser.
func (b *I2C) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.sdaHigh()
	b.sclHigh()
	return b.err
}

// SetSpeed sets the clock so that one SCL period lasts 1/f. Implements
// i2c.Bus.
func (b *I2C) SetSpeed(f physic.Frequency) error {
	if f <= 0 {
		return fmt.Errorf("bitbang: invalid speed %s", f)
	}
	half := f.Period() / 2
	if half <= 0 {
		return fmt.Errorf("bitbang: speed %s too high", f)
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	t := *b.t.Load()
	t.ClockHigh = half
	t.Sample = half
	b.t.Store(&t)
	return nil
}

// Tx runs a complete transaction with the device at addr: w is written, then
// r is filled using a repeated start. Either can be empty. Implements
// i2c.Bus.
func (b *I2C) Tx(addr uint16, w, r []byte) error {
	if addr > 0x7f {
		return fmt.Errorf("bitbang: invalid address 0x%x", addr)
	}
	if len(w) == 0 && len(r) == 0 {
		return nil
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.err != nil {
		return b.err
	}
	err := b.tx(byte(addr), w, r)
	b.Stop()
	if err != nil {
		return fmt.Errorf("bitbang: addr 0x%02x: %w", addr, err)
	}
	return b.err
}

func (b *I2C) tx(addr byte, w, r []byte) error {
	if len(w) != 0 {
		b.Start()
		if err := b.WriteByte(addr << 1); err != nil {
			return err
		}
		for _, c := range w {
			if err := b.WriteByte(c); err != nil {
				return err
			}
		}
	}
	if len(r) != 0 {
		b.Start()
		if err := b.WriteByte(addr<<1 | 1); err != nil {
			return err
		}
		for i := range r {
			r[i] = b.ReadByteAck(i != len(r)-1)
		}
	}
	return nil
}

var _ i2c.Bus = &I2C{}
var _ i2c.BusCloser = &I2C{}
var _ i2c.Pins = &I2C{}
