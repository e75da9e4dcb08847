// Copyright 2025 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package bitbang

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/GermanBionicSystems/sht85-bitbang/bitbang/bitbangtest"
	"github.com/google/go-cmp/cmp"
	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpiotest"
	"periph.io/x/conn/v3/physic"
)

const memAddr = 0x50

// memory is a device that stores what is written to it and plays it back on
// read. It also answers the general call.
type memory struct {
	data      []byte
	pos       int
	acks      []bool
	general   bool
	resets    int
	lastStart int
}

func (m *memory) Start() { m.lastStart++ }
func (m *memory) Stop()  {}

func (m *memory) Address(addr uint16, read bool) bool {
	if addr == 0 && !read {
		m.general = true
		return true
	}
	m.general = false
	if addr != memAddr {
		return false
	}
	if !read {
		m.data = m.data[:0]
	}
	m.pos = 0
	return true
}

func (m *memory) Write(b byte) bool {
	if m.general {
		if b == generalCallReset {
			m.resets++
		}
		return true
	}
	m.data = append(m.data, b)
	return true
}

func (m *memory) Read() byte {
	if m.pos >= len(m.data) {
		return 0xff
	}
	b := m.data[m.pos]
	m.pos++
	return b
}

func (m *memory) ReadAck(ack bool) { m.acks = append(m.acks, ack) }

func noDelay(time.Duration) {}

func newBus(t *testing.T, target bitbangtest.Target) (*I2C, *bitbangtest.Wire) {
	w := bitbangtest.NewWire(target)
	opts := DefaultOpts
	opts.Delay = noDelay
	b, err := New(w.SCL(), w.SDA(), &opts)
	if err != nil {
		t.Fatal(err)
	}
	return b, w
}

func TestNew(t *testing.T) {
	if _, err := New(nil, nil, nil); err == nil {
		t.Error("New() accepted nil pins")
	}
	w := bitbangtest.NewWire(nil)
	// Leave the bus in a non idle state before handing it over.
	_ = w.SDA().Out(gpio.Low)
	b, err := New(w.SCL(), w.SDA(), &Opts{Delay: noDelay})
	if err != nil {
		t.Fatal(err)
	}
	if !w.Idle() {
		t.Error("New() did not release the lines")
	}
	if got := *b.t.Load(); got != DefaultTiming {
		t.Errorf("zero Timing not replaced by defaults: %+v", got)
	}
	if b.SCL() != w.SCL() || b.SDA() != w.SDA() {
		t.Error("SCL()/SDA() don't return the bus pins")
	}
	if s := b.String(); s == "" {
		t.Error("empty String()")
	}
}

func TestWriteBytePulses(t *testing.T) {
	for _, v := range []byte{0x00, 0xff, 0xa5, memAddr << 1, 0x01} {
		t.Run(fmt.Sprintf("0x%02x", v), func(t *testing.T) {
			b, w := newBus(t, &memory{})
			b.Start()
			before := w.Pulses()
			err := b.WriteByte(v)
			if got := w.Pulses() - before; got != 9 {
				t.Errorf("WriteByte(0x%02x) generated %d clock pulses, expected 9", v, got)
			}
			if v == memAddr<<1 || v == 0x00 {
				if err != nil {
					t.Errorf("WriteByte(0x%02x)=%v expected ack", v, err)
				}
			} else if !errors.Is(err, ErrNoAck) {
				t.Errorf("WriteByte(0x%02x)=%v expected %v", v, err, ErrNoAck)
			}
		})
	}
}

func TestWriteByteEmptyBus(t *testing.T) {
	b, _ := newBus(t, nil)
	b.Start()
	if err := b.WriteByte(memAddr << 1); !errors.Is(err, ErrNoAck) {
		t.Errorf("expected %v got %v", ErrNoAck, err)
	}
	b.Stop()
}

func TestReadByteAck(t *testing.T) {
	m := &memory{data: []byte{0xde, 0xad, 0x00, 0xff}}
	b, w := newBus(t, m)
	b.Start()
	if err := b.WriteByte(memAddr<<1 | 1); err != nil {
		t.Fatal(err)
	}
	var got []byte
	for i := range 4 {
		before := w.Pulses()
		got = append(got, b.ReadByteAck(i != 3))
		if n := w.Pulses() - before; n != 9 {
			t.Errorf("ReadByteAck() generated %d clock pulses, expected 9", n)
		}
	}
	b.Stop()
	if diff := cmp.Diff([]byte{0xde, 0xad, 0x00, 0xff}, got); diff != "" {
		t.Errorf("ReadByteAck() (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]bool{true, true, true, false}, m.acks); diff != "" {
		t.Errorf("acknowledge bits (-want +got):\n%s", diff)
	}
	if !w.Idle() {
		t.Error("bus not idle after stop")
	}
}

func TestTx(t *testing.T) {
	m := &memory{}
	b, w := newBus(t, m)
	if err := b.Tx(memAddr, []byte{1, 2, 3}, nil); err != nil {
		t.Fatal(err)
	}
	r := make([]byte, 3)
	if err := b.Tx(memAddr, nil, r); err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff([]byte{1, 2, 3}, r); diff != "" {
		t.Errorf("Tx() read (-want +got):\n%s", diff)
	}
	if w.Stops() != 2 {
		t.Errorf("expected 2 stop conditions, got %d", w.Stops())
	}
	// Write then read back with a repeated start.
	r = r[:2]
	if err := b.Tx(memAddr, []byte{7, 8}, r); err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff([]byte{7, 8}, r); diff != "" {
		t.Errorf("Tx() write+read (-want +got):\n%s", diff)
	}
	if w.Starts() != 4 || w.Stops() != 3 {
		t.Errorf("write+read: %d starts, %d stops", w.Starts(), w.Stops())
	}
	if err := b.Tx(0x51, []byte{1}, r); !errors.Is(err, ErrNoAck) {
		t.Errorf("Tx() to absent device returned %v", err)
	}
	if err := b.Tx(0x80, []byte{1}, nil); err == nil {
		t.Error("Tx() accepted a 10 bit address")
	}
	if !w.Idle() {
		t.Error("bus not idle after failed Tx()")
	}
	if w.Starts() != 5 {
		t.Errorf("expected 5 start conditions, got %d", w.Starts())
	}
}

func TestGeneralCallReset(t *testing.T) {
	m := &memory{}
	b, w := newBus(t, m)
	if err := b.GeneralCallReset(); err != nil {
		t.Fatal(err)
	}
	if m.resets != 1 {
		t.Errorf("device saw %d general call resets", m.resets)
	}
	if w.Starts() != 1 || w.Stops() != 0 || w.Pulses() != 18 {
		t.Errorf("general call: %d starts, %d stops, %d pulses", w.Starts(), w.Stops(), w.Pulses())
	}

	b, _ = newBus(t, nil)
	if err := b.GeneralCallReset(); !errors.Is(err, ErrNoAck) {
		t.Errorf("GeneralCallReset() on empty bus returned %v", err)
	}
}

func TestSetSpeed(t *testing.T) {
	b, _ := newBus(t, nil)
	if err := b.SetSpeed(0); err == nil {
		t.Error("SetSpeed(0) accepted")
	}
	if err := b.SetSpeed(100 * physic.KiloHertz); err != nil {
		t.Fatal(err)
	}
	got := *b.t.Load()
	if got.ClockHigh != 5*time.Microsecond || got.Sample != 5*time.Microsecond {
		t.Errorf("unexpected timing after SetSpeed: %+v", got)
	}
	if got.Setup != DefaultTiming.Setup || got.Gap != DefaultTiming.Gap {
		t.Errorf("SetSpeed changed unrelated timings: %+v", got)
	}
}

func TestSetSpeedDuringTransfer(t *testing.T) {
	m := &memory{}
	b, _ := newBus(t, m)
	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := range 100 {
			_ = b.SetSpeed(physic.Frequency(100+i) * physic.KiloHertz)
		}
	}()
	for range 20 {
		b.Start()
		if err := b.WriteByte(memAddr << 1); err != nil {
			t.Fatal(err)
		}
		b.Stop()
	}
	<-done
}

// tracePin records every line transition and sample into a shared log.
type tracePin struct {
	gpiotest.Pin
	log  *[]string
	fail error
}

func (p *tracePin) In(pull gpio.Pull, edge gpio.Edge) error {
	*p.log = append(*p.log, p.N+"=1")
	return p.fail
}

func (p *tracePin) Out(l gpio.Level) error {
	if l == gpio.High {
		*p.log = append(*p.log, p.N+"=1")
	} else {
		*p.log = append(*p.log, p.N+"=0")
	}
	return p.fail
}

func (p *tracePin) Read() gpio.Level {
	*p.log = append(*p.log, p.N+"?")
	return p.L
}

func newTraceBus(t *testing.T) (*I2C, *[]string, *tracePin) {
	log := &[]string{}
	scl := &tracePin{Pin: gpiotest.Pin{N: "SCL"}, log: log}
	sda := &tracePin{Pin: gpiotest.Pin{N: "SDA"}, log: log}
	opts := DefaultOpts
	opts.Delay = func(d time.Duration) { *log = append(*log, fmt.Sprintf("%dus", d.Microseconds())) }
	b, err := New(scl, sda, &opts)
	if err != nil {
		t.Fatal(err)
	}
	*log = (*log)[:0]
	return b, log, sda
}

func TestStartStopSequence(t *testing.T) {
	b, log, _ := newTraceBus(t)
	b.Start()
	want := []string{"SDA=1", "2us", "SCL=1", "2us", "SDA=0", "10us", "SCL=0", "10us"}
	if diff := cmp.Diff(want, *log); diff != "" {
		t.Errorf("Start() sequence (-want +got):\n%s", diff)
	}
	*log = (*log)[:0]
	b.Stop()
	want = []string{"SCL=0", "2us", "SDA=0", "2us", "SCL=1", "10us", "SDA=1", "10us"}
	if diff := cmp.Diff(want, *log); diff != "" {
		t.Errorf("Stop() sequence (-want +got):\n%s", diff)
	}
}

func TestWriteByteSequence(t *testing.T) {
	b, log, sda := newTraceBus(t)
	sda.L = gpio.Low
	if err := b.WriteByte(0x80); err != nil {
		t.Fatal(err)
	}
	var want []string
	for i := range 8 {
		level := "SDA=0"
		if i == 0 {
			level = "SDA=1"
		}
		want = append(want, level, "2us", "SCL=1", "10us", "SCL=0", "2us")
	}
	// The acknowledge is sampled only after SDA is released and a setup time
	// has elapsed with SCL high.
	want = append(want, "SDA=1", "SCL=1", "2us", "SDA?", "SCL=0", "20us")
	if diff := cmp.Diff(want, *log); diff != "" {
		t.Errorf("WriteByte() sequence (-want +got):\n%s", diff)
	}

	sda.L = gpio.High
	if err := b.WriteByte(0x80); !errors.Is(err, ErrNoAck) {
		t.Errorf("released SDA during acknowledge returned %v", err)
	}
}

func TestReadByteSequence(t *testing.T) {
	b, log, sda := newTraceBus(t)
	sda.L = gpio.High
	if v := b.ReadByteAck(false); v != 0xff {
		t.Errorf("ReadByteAck()=0x%02x expected 0xff", v)
	}
	want := []string{"SDA=1"}
	for range 8 {
		want = append(want, "SCL=1", "6us", "SDA?", "SCL=0", "2us")
	}
	want = append(want, "SDA=1", "2us", "SCL=1", "10us", "SCL=0", "SDA=1", "20us")
	if diff := cmp.Diff(want, *log); diff != "" {
		t.Errorf("ReadByteAck(false) sequence (-want +got):\n%s", diff)
	}

	*log = (*log)[:0]
	sda.L = gpio.Low
	if v := b.ReadByteAck(true); v != 0 {
		t.Errorf("ReadByteAck()=0x%02x expected 0", v)
	}
	if got := (*log)[41]; got != "SDA=0" {
		t.Errorf("acknowledge not driven low, got %q", got)
	}
}

func TestPinErrorIsSticky(t *testing.T) {
	b, _, sda := newTraceBus(t)
	sda.fail = errors.New("gpio broke")
	b.Start()
	sda.fail = nil
	err := b.WriteByte(0)
	if err == nil || errors.Is(err, ErrNoAck) {
		t.Fatalf("WriteByte() after a pin failure returned %v", err)
	}
	if b.Err() == nil {
		t.Error("Err() lost the pin failure")
	}
	if err := b.Tx(memAddr, []byte{0}, nil); err == nil {
		t.Error("Tx() ignored the pin failure")
	}
}

func TestReset(t *testing.T) {
	b, log, sda := newTraceBus(t)
	sda.fail = errors.New("gpio broke")
	b.Start()
	if err := b.Reset(); err == nil {
		t.Error("Reset() succeeded while SDA still fails")
	}
	if b.Err() == nil {
		t.Error("Reset() cleared an error that is still there")
	}

	sda.fail = nil
	sda.L = gpio.Low
	*log = (*log)[:0]
	if err := b.Reset(); err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff([]string{"SDA=1", "SCL=1"}, *log); diff != "" {
		t.Errorf("Reset() sequence (-want +got):\n%s", diff)
	}
	if b.Err() != nil {
		t.Errorf("Err()=%v after Reset()", b.Err())
	}
	b.Start()
	if err := b.WriteByte(0); err != nil {
		t.Errorf("WriteByte() after Reset() returned %v", err)
	}
}
