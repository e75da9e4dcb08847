// Copyright 2025 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package sht85

import (
	"fmt"

	"periph.io/x/conn/v3/physic"
)

// RawReading holds the two codes returned by a measurement.
type RawReading struct {
	Temperature uint16
	Humidity    uint16
}

// Reading is a converted measurement.
type Reading struct {
	// Temperature in °C.
	Temperature float64
	// Humidity in %RH.
	Humidity float64
	Raw      RawReading
}

// Reading converts r.
func (r RawReading) Reading() Reading {
	return Reading{Temperature: Celsius(r.Temperature), Humidity: RelativeHumidity(r.Humidity), Raw: r}
}

// Env returns r in periph units.
func (r Reading) Env() physic.Env {
	return physic.Env{
		Temperature: physic.ZeroCelsius + physic.Temperature(r.Temperature*float64(physic.Celsius)),
		Humidity:    physic.RelativeHumidity(r.Humidity * float64(physic.PercentRH)),
	}
}

func (r Reading) String() string {
	return fmt.Sprintf("%.2f°C %.2f%%RH", r.Temperature, r.Humidity)
}

// Celsius converts a raw temperature code.
func Celsius(raw uint16) float64 {
	// T = -45 + 175 * raw / (2^16-1)
	return 175*float64(raw)/countDivisor - 45
}

// RelativeHumidity converts a raw humidity code to %RH.
func RelativeHumidity(raw uint16) float64 {
	// RH = 100 * raw / (2^16-1)
	return 100 * float64(raw) / countDivisor
}
