// Copyright 2025 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package sht85

import (
	"errors"
	"fmt"
)

// State is the periodic measurement state tracked by a Monitor.
type State int

const (
	// StateIdle: periodic mode not started, or the sensor was reset.
	StateIdle State = iota
	// StatePeriodic: the sensor measures on its own.
	StatePeriodic
	// StateFaulted: an operation failed. Only Recover leaves this state.
	StateFaulted
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StatePeriodic:
		return "periodic"
	case StateFaulted:
		return "faulted"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

var errNotPeriodic = errors.New("sht85: periodic mode not running")

// Monitor runs the sensor in periodic mode and tells "no new sample" apart
// from real faults.
//
//	Idle     --Start ok-->        Periodic
//	Idle     --Start failed-->    Faulted
//	Periodic --Poll no data-->    Periodic
//	Periodic --Poll failed-->     Faulted
//	any      --Recover ok-->      Idle
//
// A Monitor is not safe for concurrent use.
type Monitor struct {
	dev   *Dev
	mode  PeriodicMode
	state State
}

// NewMonitor returns an idle Monitor for dev.
func NewMonitor(dev *Dev, mode PeriodicMode) *Monitor {
	return &Monitor{dev: dev, mode: mode}
}

// State returns the current state.
func (m *Monitor) State() State {
	return m.state
}

// Mode returns the periodic mode started by Start.
func (m *Monitor) Mode() PeriodicMode {
	return m.mode
}

// Start starts periodic mode. It must be called in StateIdle.
func (m *Monitor) Start() error {
	if m.state != StateIdle {
		return fmt.Errorf("sht85: can't start periodic mode while %s", m.state)
	}
	if err := m.dev.StartPeriodic(m.mode); err != nil {
		m.state = StateFaulted
		return err
	}
	m.state = StatePeriodic
	return nil
}

// Poll fetches the latest sample. ok is false when there is no new sample,
// which is not an error. Any other failure moves the Monitor to StateFaulted.
func (m *Monitor) Poll() (r Reading, ok bool, err error) {
	if m.state != StatePeriodic {
		return Reading{}, false, errNotPeriodic
	}
	r, err = m.dev.Fetch()
	switch {
	case err == nil:
		return r, true, nil
	case IsNoData(err):
		return Reading{}, false, nil
	default:
		m.state = StateFaulted
		return Reading{}, false, err
	}
}

// Recover clears a bus controller failure, then soft resets the sensor,
// falling back to a general call reset on the whole bus when the sensor
// doesn't answer. On success the Monitor is idle and Start can be called
// again.
func (m *Monitor) Recover() error {
	if err := m.dev.ResetBus(); err != nil {
		m.state = StateFaulted
		return err
	}
	err := m.dev.Reset()
	if err != nil {
		if gerr := m.dev.GeneralCallReset(); gerr != nil {
			m.state = StateFaulted
			return fmt.Errorf("sht85: recovery failed: soft reset: %w, general call reset: %w", err, gerr)
		}
	}
	m.state = StateIdle
	return nil
}
