// Copyright 2025 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// Package bitbangtest simulates a two-wire open-drain bus so bit-banged
// controllers can be tested without hardware.
//
// A Wire owns the SCL and SDA lines. The controller drives them through the
// two Pins returned by the Wire; a simulated Target listens for start and
// stop conditions and clock edges, and pulls SDA low when it acknowledges or
// sends a zero bit. Everything happens synchronously inside the Pin calls.
package bitbangtest

import (
	"fmt"
	"sync"

	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpiotest"
)

// Target is a simulated device on the bus.
type Target interface {
	// Start is called on every start or repeated start condition.
	Start()
	// Stop is called on a stop condition.
	Stop()
	// Address is called once the address byte was received. Returning true
	// acknowledges it.
	Address(addr uint16, read bool) bool
	// Write is called for each byte written by the controller after an
	// acknowledged write address. Returning true acknowledges it.
	Write(b byte) bool
	// Read returns the next byte to send to the controller.
	Read() byte
	// ReadAck reports the acknowledge bit the controller sent after a byte
	// returned by Read.
	ReadAck(ack bool)
}

type phase int

const (
	idle phase = iota
	address
	addressAck
	receive
	receiveAck
	transmit
	transmitAck
)

// Wire is a simulated SCL/SDA pair with a single Target attached. The Target
// can be nil to simulate an empty bus.
type Wire struct {
	mu sync.Mutex

	target Target
	scl    *Pin
	sda    *Pin

	// Lines driven by the controller; true means released.
	sclRel bool
	sdaRel bool
	// SDA as driven by the target.
	targetSDA bool

	phase phase
	bits  int
	shift byte
	read  bool
	acked bool

	pulses int
	starts int
	stops  int
}

// NewWire returns an idle bus with t attached.
func NewWire(t Target) *Wire {
	w := &Wire{target: t, sclRel: true, sdaRel: true, targetSDA: true}
	w.scl = &Pin{Pin: gpiotest.Pin{N: "SCL", Num: 0, L: gpio.High}, w: w, scl: true}
	w.sda = &Pin{Pin: gpiotest.Pin{N: "SDA", Num: 1, L: gpio.High}, w: w}
	return w
}

// SCL returns the clock line.
func (w *Wire) SCL() *Pin {
	return w.scl
}

// SDA returns the data line.
func (w *Wire) SDA() *Pin {
	return w.sda
}

// Pulses returns the number of SCL rising edges seen so far.
func (w *Wire) Pulses() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.pulses
}

// Starts returns the number of start conditions seen so far.
func (w *Wire) Starts() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.starts
}

// Stops returns the number of stop conditions seen so far.
func (w *Wire) Stops() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.stops
}

// Idle reports whether both lines are high.
func (w *Wire) Idle() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.sclRel && w.sdaLevel()
}

func (w *Wire) sdaLevel() bool {
	return w.sdaRel && w.targetSDA
}

// set is called by a Pin when the controller changes a line.
func (w *Wire) set(scl, released bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if scl {
		if w.sclRel == released {
			return
		}
		w.sclRel = released
		if released {
			w.pulses++
			w.rising()
		} else {
			w.falling()
		}
		return
	}
	before := w.sdaLevel()
	w.sdaRel = released
	after := w.sdaLevel()
	if !w.sclRel || before == after {
		return
	}
	if after {
		w.stop()
	} else {
		w.start()
	}
}

func (w *Wire) start() {
	w.starts++
	w.phase = address
	w.bits = 0
	w.shift = 0
	w.targetSDA = true
	if w.target != nil {
		w.target.Start()
	}
}

func (w *Wire) stop() {
	w.stops++
	w.phase = idle
	w.targetSDA = true
	if w.target != nil {
		w.target.Stop()
	}
}

// rising samples SDA for the phases where the target listens.
func (w *Wire) rising() {
	switch w.phase {
	case address, receive:
		w.shift <<= 1
		if w.sdaLevel() {
			w.shift |= 1
		}
		w.bits++
	case transmitAck:
		w.acked = !w.sdaLevel()
	}
}

// falling moves the target to the next bit.
func (w *Wire) falling() {
	switch w.phase {
	case address:
		if w.bits != 8 {
			return
		}
		w.read = w.shift&1 == 1
		w.acked = w.target != nil && w.target.Address(uint16(w.shift>>1), w.read)
		w.phase = addressAck
		w.targetSDA = !w.acked
	case receive:
		if w.bits != 8 {
			return
		}
		w.acked = w.target.Write(w.shift)
		w.phase = receiveAck
		w.targetSDA = !w.acked
	case addressAck:
		w.targetSDA = true
		switch {
		case !w.acked:
			w.phase = idle
		case w.read:
			w.load()
		default:
			w.phase = receive
			w.bits = 0
			w.shift = 0
		}
	case receiveAck:
		w.targetSDA = true
		if w.acked {
			w.phase = receive
			w.bits = 0
			w.shift = 0
		} else {
			w.phase = idle
		}
	case transmit:
		w.bits++
		if w.bits == 8 {
			w.targetSDA = true
			w.phase = transmitAck
			return
		}
		w.targetSDA = w.shift&(0x80>>w.bits) != 0
	case transmitAck:
		w.target.ReadAck(w.acked)
		if w.acked {
			w.load()
		} else {
			w.targetSDA = true
			w.phase = idle
		}
	}
}

// load fetches the next byte from the target and puts its first bit on SDA.
func (w *Wire) load() {
	w.phase = transmit
	w.bits = 0
	w.shift = w.target.Read()
	w.targetSDA = w.shift&0x80 != 0
}

// Pin is one line of a Wire. The controller releases it with In and pulls it
// low with Out(gpio.Low). Out(gpio.High) also releases it, as an open-drain
// output would.
type Pin struct {
	gpiotest.Pin
	w   *Wire
	scl bool
}

// In releases the line. Edge detection is not supported.
func (p *Pin) In(pull gpio.Pull, edge gpio.Edge) error {
	if edge != gpio.NoEdge {
		return fmt.Errorf("bitbangtest: %s: edge detection not supported", p.N)
	}
	p.Pin.P = pull
	p.w.set(p.scl, true)
	return nil
}

// Out drives the line low or releases it.
func (p *Pin) Out(l gpio.Level) error {
	p.w.set(p.scl, bool(l))
	return nil
}

// Read returns the level of the line as seen by every device on the bus.
func (p *Pin) Read() gpio.Level {
	p.w.mu.Lock()
	defer p.w.mu.Unlock()
	if p.scl {
		return gpio.Level(p.w.sclRel)
	}
	return gpio.Level(p.w.sdaLevel())
}

var _ gpio.PinIO = &Pin{}
