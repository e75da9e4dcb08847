// Copyright 2025 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package sht85

import (
	"errors"
	"math"
	"time"

	"periph.io/x/conn/v3"
	"periph.io/x/conn/v3/physic"
)

// Sense runs a high repeatability single shot measurement. Implements
// physic.SenseEnv.
func (d *Dev) Sense(e *physic.Env) error {
	e.Pressure = 0
	r, err := d.SingleShot(RepeatabilityHigh, DefaultTimeout)
	if err != nil {
		e.Temperature = 0
		e.Humidity = 0
		return err
	}
	env := r.Env()
	e.Temperature = env.Temperature
	e.Humidity = env.Humidity
	return nil
}

// SenseContinuous puts the sensor in periodic mode and sends every new sample
// to the returned channel. The sensor rate is the slowest one that is at
// least as fast as interval. On a fault the sensor is reset and periodic mode
// restarted. To terminate, call Halt().
func (d *Dev) SenseContinuous(interval time.Duration) (<-chan physic.Env, error) {
	mode, err := ModeForInterval(interval)
	if err != nil {
		return nil, err
	}
	d.mu.Lock()
	if d.shutdown != nil {
		d.mu.Unlock()
		return nil, errors.New("sht85: SenseContinuous already running")
	}
	done := make(chan struct{})
	d.shutdown = done
	d.mu.Unlock()

	m := NewMonitor(d, mode)
	if err := m.Start(); err != nil {
		d.mu.Lock()
		d.shutdown = nil
		d.mu.Unlock()
		return nil, err
	}
	ch := make(chan physic.Env, 16)
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		defer close(ch)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ticker.C:
			}
			if m.State() != StatePeriodic {
				if m.Recover() == nil {
					_ = m.Start()
				}
				continue
			}
			r, ok, err := m.Poll()
			if err != nil || !ok {
				continue
			}
			select {
			case ch <- r.Env():
			case <-done:
				return
			}
		}
	}()
	return ch, nil
}

// Precision returns the resolution of a 16 bit code. Implements
// physic.SenseEnv.
func (d *Dev) Precision(e *physic.Env) {
	e.Temperature = physic.Temperature(math.Round(175 / countDivisor * float64(physic.Celsius)))
	e.Humidity = physic.RelativeHumidity(math.Round(100 / countDivisor * float64(physic.PercentRH)))
	e.Pressure = 0
}

// Halt terminates SenseContinuous if it is running and ends periodic mode if
// it was the last mode requested. Implements conn.Resource.
func (d *Dev) Halt() error {
	d.mu.Lock()
	done := d.shutdown
	d.shutdown = nil
	d.mu.Unlock()
	if done != nil {
		close(done)
		d.wg.Wait()
	}
	if d.LastCommand().periodic() {
		return d.StopPeriodic()
	}
	return nil
}

var _ conn.Resource = &Dev{}
var _ physic.SenseEnv = &Dev{}
