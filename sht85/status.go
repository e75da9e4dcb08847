// Copyright 2025 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package sht85

import "strings"

// Status is the sensor status register.
type Status uint16

const (
	// Status flags returned by ReadStatus()
	StatusAlertPending Status = 1 << 15
	StatusHeaterOn     Status = 1 << 13
	StatusRHAlert      Status = 1 << 11
	StatusTempAlert    Status = 1 << 10
	// Set after power up, soft reset or general call reset. ClearStatus
	// clears it.
	StatusResetDetected Status = 1 << 4
	// The last command was not understood.
	StatusCommandFailed Status = 1 << 1
	// Set if there was a CRC error on the last write command.
	StatusWriteCRCFailed Status = 1 << 0
)

var statusNames = []struct {
	s    Status
	name string
}{
	{StatusAlertPending, "AlertPending"},
	{StatusHeaterOn, "HeaterOn"},
	{StatusRHAlert, "RHAlert"},
	{StatusTempAlert, "TempAlert"},
	{StatusResetDetected, "ResetDetected"},
	{StatusCommandFailed, "CommandFailed"},
	{StatusWriteCRCFailed, "WriteCRCFailed"},
}

func (s Status) String() string {
	var names []string
	for _, n := range statusNames {
		if s&n.s != 0 {
			names = append(names, n.name)
		}
	}
	if len(names) == 0 {
		return "0"
	}
	return strings.Join(names, "|")
}
