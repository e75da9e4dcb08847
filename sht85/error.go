// Copyright 2025 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package sht85

import (
	"errors"
	"strings"
)

// Error is a set of failure flags. One operation runs several bus steps and
// some of them are always attempted together, so more than one flag can be
// set in the error returned.
//
// Operations never return a zero Error; success is a nil error. Use
// errors.Is to test for a flag:
//
//	if errors.Is(err, sht85.ErrChecksum) { ... }
type Error uint8

const (
	// ErrNoAck is set when the sensor didn't acknowledge a byte. It means
	// the sensor is absent or busy; Fetch reports it when no new sample is
	// available.
	ErrNoAck Error = 1 << iota
	// ErrChecksum is set when a received word didn't match its CRC.
	ErrChecksum
	// ErrTimeout is set when a single shot measurement wasn't ready in time.
	ErrTimeout
)

func (e Error) Error() string {
	if e == 0 {
		return "sht85: no error"
	}
	var names []string
	if e&ErrNoAck != 0 {
		names = append(names, "no acknowledge")
	}
	if e&ErrChecksum != 0 {
		names = append(names, "checksum mismatch")
	}
	if e&ErrTimeout != 0 {
		names = append(names, "timeout")
	}
	if rest := e &^ (ErrNoAck | ErrChecksum | ErrTimeout); rest != 0 {
		names = append(names, "unknown")
	}
	return "sht85: " + strings.Join(names, " | ")
}

// Is reports whether every flag of target is set in e.
func (e Error) Is(target error) bool {
	t, ok := target.(Error)
	return ok && t != 0 && e&t == t
}

// Has is the flag test without errors.Is.
func (e Error) Has(flags Error) bool {
	return e&flags == flags
}

// err converts the set into the value operations return.
func (e Error) err() error {
	if e == 0 {
		return nil
	}
	return e
}

// ControllerError is returned when the bus controller failed, for example
// when a GPIO line couldn't be driven. The sensor may be fine; the bus must be
// reset with Dev.ResetBus before it can be used again.
type ControllerError struct {
	// Flags is what the operation saw before the failure was noticed. It
	// can't be trusted.
	Flags Error
	Err   error
}

func (e *ControllerError) Error() string {
	return "sht85: bus controller failure: " + e.Err.Error()
}

func (e *ControllerError) Unwrap() error {
	return e.Err
}

// Flags returns the flags carried by err. It returns 0 for nil, for a
// *ControllerError and for errors that didn't come from this package.
func Flags(err error) Error {
	var e Error
	if errors.As(err, &e) {
		return e
	}
	return 0
}

// IsNoData reports whether err is exactly what Fetch returns when the sensor
// has no new sample since the previous fetch: a lone ErrNoAck that the sensor
// really signaled. It is false for a *ControllerError.
func IsNoData(err error) bool {
	return Flags(err) == ErrNoAck
}
