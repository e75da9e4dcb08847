// Copyright 2025 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// Package sht85test simulates a SHT85 sensor on a bitbangtest.Wire.
//
// The simulation follows the sensor's bus behavior: it refuses its read
// address while a single shot measurement runs or when periodic mode has no
// new sample, and it appends a CRC to every word it sends.
package sht85test

import (
	"sync"

	"github.com/GermanBionicSystems/sht85-bitbang/bitbang/bitbangtest"
	"github.com/GermanBionicSystems/sht85-bitbang/common"
)

const (
	cmdReadSerialNumber = 0x3780
	cmdReadStatus       = 0xf32d
	cmdClearStatus      = 0x3041
	cmdHeaterEnable     = 0x306d
	cmdHeaterDisable    = 0x3066
	cmdSoftReset        = 0x30a2
	cmdFetchData        = 0xe000
	cmdBreak            = 0x3093

	generalCallReset = 0x06

	statusAlertPending  = 1 << 15
	statusHeaterOn      = 1 << 13
	statusRHAlert       = 1 << 11
	statusTempAlert     = 1 << 10
	statusResetDetected = 1 << 4
	statusCommandFailed = 1 << 1

	// PowerUpStatus is the status register after power up.
	PowerUpStatus = statusAlertPending | statusResetDetected
)

var singleShot = map[uint16]bool{0x2400: true, 0x240b: true, 0x2416: true}

var periodic = map[uint16]bool{
	0x2032: true, 0x2024: true, 0x202f: true,
	0x2130: true, 0x2126: true, 0x212d: true,
	0x2236: true, 0x2220: true, 0x222b: true,
	0x2334: true, 0x2322: true, 0x2329: true,
	0x2737: true, 0x2721: true, 0x272a: true,
}

// Sensor is a simulated SHT85. It is safe to change its measurement from
// another goroutine while a driver talks to it.
type Sensor struct {
	mu sync.Mutex

	addr   uint16
	serial uint32
	status uint16
	temp   uint16
	hum    uint16

	responsive bool
	busy       int
	corrupt    int

	cmd      []byte
	out      []byte
	pending  int
	general  bool
	periodic bool
	fresh    bool

	commands     []uint16
	resets       int
	generalCalls int
}

// New returns a sensor at addr that reports serial. It measures 25°C and 50%RH
// until SetMeasurement is called.
func New(addr uint16, serial uint32) *Sensor {
	return &Sensor{
		addr:       addr,
		serial:     serial,
		status:     PowerUpStatus,
		temp:       0x6666,
		hum:        0x8000,
		responsive: true,
		corrupt:    -1,
	}
}

// SetMeasurement sets the raw codes of the next measurement. In periodic mode
// it also makes a new sample available to the next fetch.
func (s *Sensor) SetMeasurement(temp, hum uint16) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.temp = temp
	s.hum = hum
	if s.periodic {
		s.fresh = true
	}
}

// SetBusy sets how many read address attempts are refused after a single
// shot measurement is started.
func (s *Sensor) SetBusy(n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.busy = n
}

// CorruptNext flips the CRC of the word at index in the next response.
func (s *Sensor) CorruptNext(index int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.corrupt = index
}

// SetResponsive makes the sensor ignore the bus completely when false.
func (s *Sensor) SetResponsive(r bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.responsive = r
}

// Commands returns every command received so far.
func (s *Sensor) Commands() []uint16 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]uint16(nil), s.commands...)
}

// Periodic reports whether the sensor is in periodic mode.
func (s *Sensor) Periodic() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.periodic
}

// Heater reports whether the heater is on.
func (s *Sensor) Heater() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status&statusHeaterOn != 0
}

// Status returns the status register.
func (s *Sensor) Status() uint16 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}

// Resets returns the number of soft and general call resets.
func (s *Sensor) Resets() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.resets
}

// GeneralCalls returns the number of general call resets.
func (s *Sensor) GeneralCalls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.generalCalls
}

// Start implements bitbangtest.Target.
func (s *Sensor) Start() {}

// Stop implements bitbangtest.Target.
func (s *Sensor) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.general = false
}

// Address implements bitbangtest.Target.
func (s *Sensor) Address(addr uint16, read bool) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.responsive {
		return false
	}
	s.general = false
	if addr == 0 && !read {
		s.general = true
		return true
	}
	if addr != s.addr {
		return false
	}
	if !read {
		s.cmd = s.cmd[:0]
		return true
	}
	if s.pending > 0 {
		s.pending--
		return false
	}
	return len(s.out) != 0
}

// Write implements bitbangtest.Target.
func (s *Sensor) Write(b byte) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.general {
		if b == generalCallReset {
			s.generalCalls++
			s.reset()
		}
		return true
	}
	if len(s.cmd) == 2 {
		return false
	}
	s.cmd = append(s.cmd, b)
	if len(s.cmd) == 2 {
		s.execute(uint16(s.cmd[0])<<8 | uint16(s.cmd[1]))
	}
	return true
}

// Read implements bitbangtest.Target.
func (s *Sensor) Read() byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.out) == 0 {
		return 0xff
	}
	b := s.out[0]
	s.out = s.out[1:]
	return b
}

// ReadAck implements bitbangtest.Target.
func (s *Sensor) ReadAck(ack bool) {
	if ack {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.out = nil
}

func (s *Sensor) execute(cmd uint16) {
	s.commands = append(s.commands, cmd)
	s.out = nil
	switch {
	case cmd == cmdReadSerialNumber:
		s.respond(uint16(s.serial>>16), uint16(s.serial))
	case cmd == cmdReadStatus:
		s.respond(s.status)
	case cmd == cmdClearStatus:
		s.status &^= statusAlertPending | statusRHAlert | statusTempAlert | statusResetDetected
	case cmd == cmdHeaterEnable:
		s.status |= statusHeaterOn
	case cmd == cmdHeaterDisable:
		s.status &^= statusHeaterOn
	case cmd == cmdSoftReset:
		s.reset()
	case cmd == cmdBreak:
		s.periodic = false
		s.fresh = false
	case cmd == cmdFetchData:
		if s.periodic && s.fresh {
			s.respond(s.temp, s.hum)
			s.fresh = false
		}
	case singleShot[cmd]:
		s.respond(s.temp, s.hum)
		s.pending = s.busy
	case periodic[cmd]:
		s.periodic = true
		s.fresh = false
	default:
		s.status |= statusCommandFailed
		return
	}
	s.status &^= statusCommandFailed
}

// respond queues words with their CRC.
func (s *Sensor) respond(words ...uint16) {
	for i, w := range words {
		b := []byte{byte(w >> 8), byte(w)}
		crc := common.CRC8(b)
		if i == s.corrupt {
			crc ^= 0x01
		}
		s.out = append(s.out, b[0], b[1], crc)
	}
	s.corrupt = -1
}

func (s *Sensor) reset() {
	s.resets++
	s.status = statusResetDetected
	s.periodic = false
	s.fresh = false
	s.out = nil
	s.pending = 0
}

var _ bitbangtest.Target = &Sensor{}
