// Copyright 2025 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package sht85

import (
	"fmt"
	"time"
)

// Command is a 16 bit sensor command, sent high byte first.
type Command uint16

// Sensor commands. The values are fixed by the device.
const (
	CmdReadSerialNumber Command = 0x3780
	CmdReadStatus       Command = 0xf32d
	CmdClearStatus      Command = 0x3041
	CmdHeaterEnable     Command = 0x306d
	CmdHeaterDisable    Command = 0x3066
	CmdSoftReset        Command = 0x30a2
	CmdMeasureSingleH   Command = 0x2400
	CmdMeasureSingleM   Command = 0x240b
	CmdMeasureSingleL   Command = 0x2416
	CmdMeasurePeri05H   Command = 0x2032
	CmdMeasurePeri05M   Command = 0x2024
	CmdMeasurePeri05L   Command = 0x202f
	CmdMeasurePeri1H    Command = 0x2130
	CmdMeasurePeri1M    Command = 0x2126
	CmdMeasurePeri1L    Command = 0x212d
	CmdMeasurePeri2H    Command = 0x2236
	CmdMeasurePeri2M    Command = 0x2220
	CmdMeasurePeri2L    Command = 0x222b
	CmdMeasurePeri4H    Command = 0x2334
	CmdMeasurePeri4M    Command = 0x2322
	CmdMeasurePeri4L    Command = 0x2329
	CmdMeasurePeri10H   Command = 0x2737
	CmdMeasurePeri10M   Command = 0x2721
	CmdMeasurePeri10L   Command = 0x272a
	CmdFetchData        Command = 0xe000
	CmdBreak            Command = 0x3093
)

func (c Command) String() string {
	return fmt.Sprintf("0x%04x", uint16(c))
}

// periodic reports whether c starts or reads periodic measurements.
func (c Command) periodic() bool {
	if c == CmdFetchData {
		return true
	}
	for _, row := range periodicCommands {
		for _, p := range row {
			if p == c {
				return true
			}
		}
	}
	return false
}

// Repeatability trades measurement duration for noise.
type Repeatability uint8

const (
	RepeatabilityLow Repeatability = iota
	RepeatabilityMedium
	RepeatabilityHigh
)

func (r Repeatability) String() string {
	switch r {
	case RepeatabilityLow:
		return "low"
	case RepeatabilityMedium:
		return "medium"
	case RepeatabilityHigh:
		return "high"
	default:
		return fmt.Sprintf("Repeatability(%d)", uint8(r))
	}
}

// MeasureDuration is the maximum time a single shot measurement takes, from
// the datasheet.
func (r Repeatability) MeasureDuration() time.Duration {
	switch r {
	case RepeatabilityLow:
		return 4500 * time.Microsecond
	case RepeatabilityMedium:
		return 6500 * time.Microsecond
	default:
		return 15500 * time.Microsecond
	}
}

var singleShotCommands = [...]Command{CmdMeasureSingleL, CmdMeasureSingleM, CmdMeasureSingleH}

func (r Repeatability) singleShot() (Command, error) {
	if int(r) >= len(singleShotCommands) {
		return 0, fmt.Errorf("sht85: invalid repeatability %d", r)
	}
	return singleShotCommands[r], nil
}

// Rate is the number of measurements per second in periodic mode.
type Rate uint8

const (
	// Every other second
	RateHalfHertz Rate = iota
	RateHertz
	RateTwoHertz
	RateFourHertz
	Rate10Hertz
)

var rateIntervals = [...]time.Duration{2 * time.Second, time.Second, 500 * time.Millisecond, 250 * time.Millisecond, 100 * time.Millisecond}

// Interval returns the time between two measurements.
func (r Rate) Interval() time.Duration {
	if int(r) >= len(rateIntervals) {
		return 0
	}
	return rateIntervals[r]
}

func (r Rate) String() string {
	switch r {
	case RateHalfHertz:
		return "0.5Hz"
	case RateHertz:
		return "1Hz"
	case RateTwoHertz:
		return "2Hz"
	case RateFourHertz:
		return "4Hz"
	case Rate10Hertz:
		return "10Hz"
	default:
		return fmt.Sprintf("Rate(%d)", uint8(r))
	}
}

// PeriodicMode selects one of the 15 periodic acquisition settings.
type PeriodicMode struct {
	Rate          Rate
	Repeatability Repeatability
}

func (m PeriodicMode) String() string {
	return m.Rate.String() + "/" + m.Repeatability.String()
}

// periodicCommands is indexed by Rate then Repeatability.
var periodicCommands = [...][3]Command{
	{CmdMeasurePeri05L, CmdMeasurePeri05M, CmdMeasurePeri05H},
	{CmdMeasurePeri1L, CmdMeasurePeri1M, CmdMeasurePeri1H},
	{CmdMeasurePeri2L, CmdMeasurePeri2M, CmdMeasurePeri2H},
	{CmdMeasurePeri4L, CmdMeasurePeri4M, CmdMeasurePeri4H},
	{CmdMeasurePeri10L, CmdMeasurePeri10M, CmdMeasurePeri10H},
}

// Command returns the command that starts m.
func (m PeriodicMode) Command() (Command, error) {
	if int(m.Rate) >= len(periodicCommands) || int(m.Repeatability) >= len(singleShotCommands) {
		return 0, fmt.Errorf("sht85: invalid periodic mode %s", m)
	}
	return periodicCommands[m.Rate][m.Repeatability], nil
}

// ModeForInterval returns the slowest periodic mode, at high repeatability,
// that produces at least one sample per interval.
func ModeForInterval(interval time.Duration) (PeriodicMode, error) {
	for r := RateHalfHertz; r <= Rate10Hertz; r++ {
		if r.Interval() <= interval {
			return PeriodicMode{Rate: r, Repeatability: RepeatabilityHigh}, nil
		}
	}
	return PeriodicMode{}, fmt.Errorf("sht85: interval %s is shorter than the fastest sample rate", interval)
}
