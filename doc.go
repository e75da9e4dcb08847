// Copyright 2021 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// Package devices is a container for a Sensirion SHT85 driver that talks to
// the sensor over a bit-banged I²C bus.
//
// The bitbang package drives the two open-drain lines, the sht85 package
// implements the sensor command set on top of it, and cmd/sht85 is a small
// monitoring program.
package devices
