// Copyright 2025 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package bitbang

import (
	"fmt"

	"periph.io/x/conn/v3/gpio"
)

// General call reset sequence: address 0x00, then the reset byte.
const (
	generalCallAddr  byte = 0x00
	generalCallReset byte = 0x06
)

// Start generates a start condition: SDA falls while SCL is released. It is
// also used as a repeated start.
func (b *I2C) Start() {
	t := b.t.Load()
	b.sdaHigh()
	b.delay(t.Setup)
	b.sclHigh()
	b.delay(t.Setup)
	b.sdaLow()
	b.delay(t.ClockHigh)
	b.sclLow()
	b.delay(t.ClockHigh)
}

// Stop generates a stop condition: SDA rises while SCL is released.
func (b *I2C) Stop() {
	t := b.t.Load()
	b.sclLow()
	b.delay(t.Setup)
	b.sdaLow()
	b.delay(t.Setup)
	b.sclHigh()
	b.delay(t.ClockHigh)
	b.sdaHigh()
	b.delay(t.ClockHigh)
}

// WriteByte shifts out v, most significant bit first, then clocks the
// acknowledge bit. It returns ErrNoAck if the receiver left SDA released.
//
// Exactly nine SCL pulses are generated whatever the value.
func (b *I2C) WriteByte(v byte) error {
	t := b.t.Load()
	for mask := byte(0x80); mask != 0; mask >>= 1 {
		if v&mask == 0 {
			b.sdaLow()
		} else {
			b.sdaHigh()
		}
		b.delay(t.Setup)
		b.sclHigh()
		b.delay(t.ClockHigh)
		b.sclLow()
		b.delay(t.Hold)
	}

	b.sdaHigh()
	b.sclHigh()
	b.delay(t.Setup)
	nack := b.sdaRead()
	b.sclLow()
	b.delay(t.Gap)

	if b.err != nil {
		return b.err
	}
	if nack {
		return ErrNoAck
	}
	return nil
}

// ReadByteAck shifts in one byte, most significant bit first. When ack is
// true SDA is pulled low on the ninth clock to ask the sender for more;
// otherwise it is left released to end the transfer.
//
// Receiving never fails at this level. Corruption is caught by the caller's
// checksum.
func (b *I2C) ReadByteAck(ack bool) byte {
	t := b.t.Load()
	var v byte
	b.sdaHigh()
	for mask := byte(0x80); mask != 0; mask >>= 1 {
		b.sclHigh()
		b.delay(t.Sample)
		if b.sdaRead() {
			v |= mask
		}
		b.sclLow()
		b.delay(t.Hold)
	}

	if ack {
		b.sdaLow()
	} else {
		b.sdaHigh()
	}
	b.delay(t.Setup)
	b.sclHigh()
	b.delay(t.ClockHigh)
	b.sclLow()
	b.sdaHigh()
	b.delay(t.Gap)
	return v
}

// GeneralCallReset asks every device on the bus that supports it to reset.
// It is the recovery of last resort when a device doesn't answer to its own
// reset command. No stop condition is sent.
func (b *I2C) GeneralCallReset() error {
	b.Start()
	err := b.WriteByte(generalCallAddr)
	if err == nil {
		err = b.WriteByte(generalCallReset)
	}
	return err
}

func (b *I2C) sclHigh() {
	b.release(b.scl)
}

func (b *I2C) sclLow() {
	b.drive(b.scl)
}

func (b *I2C) sdaHigh() {
	b.release(b.sda)
}

func (b *I2C) sdaLow() {
	b.drive(b.sda)
}

// sdaRead returns true if SDA is high.
func (b *I2C) sdaRead() bool {
	return b.sda.Read() == gpio.High
}

// release stops driving p so the pull-up brings it high.
func (b *I2C) release(p gpio.PinIO) {
	if err := p.In(b.pull, gpio.NoEdge); err != nil && b.err == nil {
		b.err = fmt.Errorf("bitbang: releasing %s: %w", p, err)
	}
}

// drive pulls p low.
func (b *I2C) drive(p gpio.PinIO) {
	if err := p.Out(gpio.Low); err != nil && b.err == nil {
		b.err = fmt.Errorf("bitbang: driving %s low: %w", p, err)
	}
}
