// Copyright 2025 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// Package sht85 drives the Sensirion SHT85 temperature and humidity sensor
// over a byte level I²C bus such as bitbang.I2C.
//
// The driver needs to see individual acknowledge bits: the sensor signals that
// a measurement is not ready yet by refusing its read address. That is why it
// works on a Bus and not on an i2c.Bus.
//
// # Datasheet
//
// https://sensirion.com/media/documents/4B40CEF3/640B2346/Sensirion_Humidity_Sensors_SHT85_Datasheet.pdf
//
// # Errors
//
// Every operation returns nil or an Error, a set of flags. Once a step of an
// operation fails the following ones are skipped, except for the two halves of
// a command and the two words of a single shot measurement which are always
// both attempted; their failures are merged.
//
// A failure of the bus controller itself is returned as a *ControllerError
// instead. It carries no flag and persists until ResetBus.
//
// # Periodic mode
//
// While the sensor runs periodic measurements, Fetch returns ErrNoAck when no
// new sample was produced since the previous Fetch. That is not a fault; see
// IsNoData and Monitor.
package sht85

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/GermanBionicSystems/sht85-bitbang/common"
)

// Bus is a byte level I²C controller. bitbang.I2C implements it.
type Bus interface {
	// Start sends a start or repeated start condition.
	Start()
	// Stop sends a stop condition.
	Stop()
	// WriteByte sends one byte and returns an error if it wasn't
	// acknowledged.
	WriteByte(b byte) error
	// ReadByteAck receives one byte and acknowledges it if ack is true.
	ReadByteAck(ack bool) byte
	// GeneralCallReset resets every device on the bus.
	GeneralCallReset() error
	// Err returns a failure of the controller itself, such as a GPIO driver
	// error, that makes the bytes exchanged since unreliable.
	Err() error
	// Reset clears the failure returned by Err and idles the bus.
	Reset() error
}

const (
	// DefaultAddress is the SHT85 address. It can't be changed.
	DefaultAddress uint16 = 0x44

	// SoftResetDelay is how long the sensor ignores commands after a reset.
	SoftResetDelay = 50 * time.Millisecond

	// DefaultTimeout bounds the single shot measurement of Sense.
	DefaultTimeout = 50 * time.Millisecond

	countDivisor = float64(65535)
)

// Opts holds the configuration options for the device.
type Opts struct {
	// Addr is the 7 bit bus address. Default is DefaultAddress.
	Addr uint16
	// PollInterval is the time between two attempts to read a single shot
	// measurement. Default is 1ms.
	PollInterval time.Duration
	// Sleep waits between polls and after a reset. Default is time.Sleep.
	Sleep func(time.Duration)
}

// DefaultOpts holds the default configuration options for the device.
var DefaultOpts = Opts{
	Addr:         DefaultAddress,
	PollInterval: time.Millisecond,
	Sleep:        time.Sleep,
}

// Dev is a handle to a SHT85 sensor.
//
// Each method holds the device lock from the start condition to the stop
// condition so two goroutines can share a Dev. The Bus itself must not be
// used by anything else.
type Dev struct {
	mu       sync.Mutex
	bus      Bus
	addr     byte
	poll     time.Duration
	sleep    func(time.Duration)
	lastCmd  Command
	shutdown chan struct{}
	wg       sync.WaitGroup
}

// New returns a handle to the sensor on bus. No command is sent. opts can be
// nil.
func New(bus Bus, opts *Opts) (*Dev, error) {
	if bus == nil {
		return nil, errors.New("sht85: bus is required")
	}
	if opts == nil {
		opts = &DefaultOpts
	}
	d := &Dev{bus: bus, addr: byte(opts.Addr), poll: opts.PollInterval, sleep: opts.Sleep}
	if opts.Addr == 0 {
		d.addr = byte(DefaultAddress)
	} else if opts.Addr > 0x7f {
		return nil, fmt.Errorf("sht85: invalid address 0x%x", opts.Addr)
	}
	if d.poll <= 0 {
		d.poll = time.Millisecond
	}
	if d.sleep == nil {
		d.sleep = time.Sleep
	}
	return d, nil
}

func (d *Dev) String() string {
	return fmt.Sprintf("sht85(0x%02x)", d.addr)
}

// LastCommand returns the last command sent. The sensor keeps its mode, the
// driver only remembers this.
func (d *Dev) LastCommand() Command {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.lastCmd
}

// SerialNumber reads the factory programmed serial number.
func (d *Dev) SerialNumber() (uint32, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	var hi, lo uint16
	e := d.beginWrite()
	if e == 0 {
		e = d.sendCommand(CmdReadSerialNumber)
	}
	if e == 0 {
		e = d.beginRead()
	}
	if e == 0 {
		hi, e = d.readWord(true)
	}
	if e == 0 {
		lo, e = d.readWord(false)
	}
	d.end()
	if err := d.result(e); err != nil {
		return 0, err
	}
	return uint32(hi)<<16 | uint32(lo), nil
}

// ReadStatus reads the status register.
func (d *Dev) ReadStatus() (Status, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	var s uint16
	e := d.beginWrite()
	if e == 0 {
		e = d.sendCommand(CmdReadStatus)
	}
	if e == 0 {
		e = d.beginRead()
	}
	if e == 0 {
		s, e = d.readWord(false)
	}
	d.end()
	if err := d.result(e); err != nil {
		return 0, err
	}
	return Status(s), nil
}

// ClearStatus clears the alert flags of the status register.
func (d *Dev) ClearStatus() error {
	return d.command(CmdClearStatus)
}

// EnableHeater switches the internal heater on.
func (d *Dev) EnableHeater() error {
	return d.command(CmdHeaterEnable)
}

// DisableHeater switches the internal heater off.
func (d *Dev) DisableHeater() error {
	return d.command(CmdHeaterDisable)
}

// StartPeriodic makes the sensor measure on its own at the rate of mode. Use
// Fetch to read the samples and StopPeriodic to go back to single shot mode.
func (d *Dev) StartPeriodic(mode PeriodicMode) error {
	cmd, err := mode.Command()
	if err != nil {
		return err
	}
	return d.command(cmd)
}

// StopPeriodic ends periodic mode.
func (d *Dev) StopPeriodic() error {
	return d.command(CmdBreak)
}

// Reset sends a soft reset. On success it waits SoftResetDelay before
// returning.
func (d *Dev) Reset() error {
	err := d.command(CmdSoftReset)
	if err == nil {
		d.sleep(SoftResetDelay)
	}
	return err
}

// GeneralCallReset resets every device on the bus that supports it. Use it
// when Reset doesn't get an acknowledge. On success it waits SoftResetDelay
// before returning.
func (d *Dev) GeneralCallReset() error {
	d.mu.Lock()
	var e Error
	if d.bus.GeneralCallReset() != nil {
		e = ErrNoAck
	}
	d.end()
	err := d.result(e)
	d.mu.Unlock()
	if err != nil {
		return err
	}
	d.sleep(SoftResetDelay)
	return nil
}

// ResetBus clears a failure of the bus controller and idles the bus. It
// returns a *ControllerError if the controller still fails.
func (d *Dev) ResetBus() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.bus.Reset(); err != nil {
		return &ControllerError{Err: err}
	}
	return nil
}

// SingleShot starts one measurement and polls the sensor every PollInterval
// until it is ready. The sensor is given timeout/PollInterval attempts; when
// none succeeds ErrTimeout is returned and no data is read.
func (d *Dev) SingleShot(r Repeatability, timeout time.Duration) (Reading, error) {
	cmd, err := r.singleShot()
	if err != nil {
		return Reading{}, err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	var raw RawReading
	e := d.beginWrite()
	if e == 0 {
		e = d.sendCommand(cmd)
	}
	if e == 0 {
		e = d.waitReady(int(timeout / d.poll))
	}
	if e == 0 {
		var et, eh Error
		raw.Temperature, et = d.readWord(true)
		raw.Humidity, eh = d.readWord(false)
		e = et | eh
	}
	d.end()
	if err := d.result(e); err != nil {
		return Reading{}, err
	}
	return raw.Reading(), nil
}

// Fetch reads the latest sample in periodic mode. It returns ErrNoAck alone
// when there's no new sample since the previous call.
func (d *Dev) Fetch() (Reading, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	var raw RawReading
	e := d.beginWrite()
	if e == 0 {
		e = d.sendCommand(CmdFetchData)
	}
	if e == 0 {
		e = d.beginRead()
	}
	if e == 0 {
		raw.Temperature, e = d.readWord(true)
	}
	if e == 0 {
		raw.Humidity, e = d.readWord(false)
	}
	d.end()
	if err := d.result(e); err != nil {
		return Reading{}, err
	}
	return raw.Reading(), nil
}

// command runs a write only transaction.
func (d *Dev) command(cmd Command) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	e := d.beginWrite()
	if e == 0 {
		e = d.sendCommand(cmd)
	}
	d.end()
	return d.result(e)
}

// waitReady retries the read address until the sensor acknowledges it. The
// address is refused while the measurement runs.
func (d *Dev) waitReady(attempts int) Error {
	for i := range attempts {
		if i != 0 {
			d.sleep(d.poll)
		}
		if d.beginRead() == 0 {
			return 0
		}
		if d.bus.Err() != nil {
			return ErrNoAck
		}
	}
	return ErrTimeout
}

func (d *Dev) beginWrite() Error {
	d.bus.Start()
	return d.write(d.addr << 1)
}

func (d *Dev) beginRead() Error {
	d.bus.Start()
	return d.write(d.addr<<1 | 1)
}

func (d *Dev) end() {
	d.bus.Stop()
}

// result turns the flags of an operation into its error. A controller
// failure takes precedence: the flags collected with it are meaningless.
func (d *Dev) result(e Error) error {
	if err := d.bus.Err(); err != nil {
		return &ControllerError{Flags: e, Err: err}
	}
	return e.err()
}

// sendCommand writes both bytes of cmd even when the first one isn't
// acknowledged.
func (d *Dev) sendCommand(cmd Command) Error {
	d.lastCmd = cmd
	e := d.write(byte(cmd >> 8))
	e |= d.write(byte(cmd))
	return e
}

func (d *Dev) write(b byte) Error {
	if d.bus.WriteByte(b) != nil {
		return ErrNoAck
	}
	return 0
}

// readWord reads two data bytes and their CRC. The CRC byte is acknowledged
// if finalAck is true, to ask for the next word.
func (d *Dev) readWord(finalAck bool) (uint16, Error) {
	var b [3]byte
	b[0] = d.bus.ReadByteAck(true)
	b[1] = d.bus.ReadByteAck(true)
	b[2] = d.bus.ReadByteAck(finalAck)
	v := uint16(b[0])<<8 | uint16(b[1])
	if !common.CheckCRC8(b[:2], b[2]) {
		return v, ErrChecksum
	}
	return v, 0
}
