// Copyright 2025 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package bitbang_test

import (
	"log"

	"github.com/GermanBionicSystems/sht85-bitbang/bitbang"
	"periph.io/x/conn/v3/gpio/gpioreg"
	"periph.io/x/conn/v3/i2c"
	"periph.io/x/host/v3"
)

// Example uses the bit-banged bus as a regular periph i2c.Bus.
func Example() {
	if _, err := host.Init(); err != nil {
		log.Fatal(err)
	}
	bus, err := bitbang.New(gpioreg.ByName("GPIO3"), gpioreg.ByName("GPIO2"), nil)
	if err != nil {
		log.Fatal(err)
	}
	defer bus.Close()

	// Read the SHT85 status register.
	d := &i2c.Dev{Bus: bus, Addr: 0x44}
	r := make([]byte, 3)
	if err := d.Tx([]byte{0xf3, 0x2d}, r); err != nil {
		log.Fatal(err)
	}
	log.Printf("status 0x%02x%02x", r[0], r[1])
}
