// Copyright 2025 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package sht85_test

import (
	"fmt"
	"log"
	"time"

	"github.com/GermanBionicSystems/sht85-bitbang/bitbang"
	"github.com/GermanBionicSystems/sht85-bitbang/bitbang/bitbangtest"
	"github.com/GermanBionicSystems/sht85-bitbang/sht85"
	"github.com/GermanBionicSystems/sht85-bitbang/sht85/sht85test"
	"periph.io/x/conn/v3/gpio/gpioreg"
	"periph.io/x/host/v3"
)

// Example shows reading a SHT85 wired to two GPIO lines.
func Example() {
	if _, err := host.Init(); err != nil {
		log.Fatal(err)
	}
	scl := gpioreg.ByName("GPIO3")
	sda := gpioreg.ByName("GPIO2")
	if scl == nil || sda == nil {
		log.Fatal("pins not found")
	}
	bus, err := bitbang.New(scl, sda, nil)
	if err != nil {
		log.Fatal(err)
	}
	defer bus.Close()

	dev, err := sht85.New(bus, nil)
	if err != nil {
		log.Fatal(err)
	}
	if err := dev.Reset(); err != nil {
		log.Fatal(err)
	}
	r, err := dev.SingleShot(sht85.RepeatabilityHigh, 50*time.Millisecond)
	if err != nil {
		log.Fatal(err)
	}
	log.Println(r)
}

// ExampleMonitor runs periodic mode against a simulated sensor.
func ExampleMonitor() {
	sensor := sht85test.New(sht85.DefaultAddress, 0x12345678)
	wire := bitbangtest.NewWire(sensor)
	bus, err := bitbang.New(wire.SCL(), wire.SDA(), &bitbang.Opts{Delay: func(time.Duration) {}})
	if err != nil {
		log.Fatal(err)
	}
	dev, err := sht85.New(bus, nil)
	if err != nil {
		log.Fatal(err)
	}
	sn, err := dev.SerialNumber()
	if err != nil {
		log.Fatal(err)
	}
	fmt.Printf("serial 0x%08x\n", sn)

	m := sht85.NewMonitor(dev, sht85.PeriodicMode{Rate: sht85.RateHertz, Repeatability: sht85.RepeatabilityHigh})
	if err := m.Start(); err != nil {
		log.Fatal(err)
	}
	for i := range 4 {
		if i%2 == 0 {
			sensor.SetMeasurement(0x6666, 0x8000)
		}
		r, ok, err := m.Poll()
		if err != nil {
			log.Fatal(err)
		}
		if ok {
			fmt.Println(r)
		} else {
			fmt.Println("no new sample")
		}
	}
	// Output:
	// serial 0x12345678
	// 25.00°C 50.00%RH
	// no new sample
	// 25.00°C 50.00%RH
	// no new sample
}
