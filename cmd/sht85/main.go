// Copyright 2025 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// sht85 reads a SHT85 sensor wired to two GPIO lines.
//
// It resets the sensor, prints its serial number and a single shot
// measurement, then runs periodic measurements until interrupted. A green LED
// is on while periodic mode runs and a blue LED is on while the humidity is
// above a threshold. On any bus failure the sensor is reset and periodic mode
// is restarted.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"math"
	"os"
	"os/signal"
	"time"

	"github.com/GermanBionicSystems/sht85-bitbang/bitbang"
	"github.com/GermanBionicSystems/sht85-bitbang/bitbang/bitbangtest"
	"github.com/GermanBionicSystems/sht85-bitbang/sht85"
	"github.com/GermanBionicSystems/sht85-bitbang/sht85/sht85test"
	"github.com/mattn/go-colorable"
	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpioreg"
	"periph.io/x/host/v3"
)

// simulatedSerial is reported by the simulated sensor.
const simulatedSerial = 0x0085cafe

func main() {
	if err := mainImpl(); err != nil {
		fmt.Fprintf(os.Stderr, "%s.\n", err)
		os.Exit(1)
	}
}

func mainImpl() error {
	cfgPath := flag.String("config", "", "YAML configuration file")
	once := flag.Bool("once", false, "stop after the single shot measurement")
	simulate := flag.Bool("simulate", false, "use a simulated sensor")
	verbose := flag.Bool("v", false, "verbose mode")
	flag.Parse()
	if flag.NArg() != 0 {
		return errors.New("unexpected argument, try -help")
	}

	cfg := DefaultConfig()
	if *cfgPath != "" {
		var err error
		if cfg, err = Load(*cfgPath); err != nil {
			return err
		}
	}
	if *simulate {
		cfg.Simulate = true
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	logger := log.New(os.Stderr, "", log.Lmicroseconds)
	if !*verbose {
		logger.SetOutput(io.Discard)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	bus, green, blue, err := open(ctx, &cfg)
	if err != nil {
		return err
	}
	defer bus.Close()
	dev, err := sht85.New(bus, &sht85.Opts{Addr: cfg.Address})
	if err != nil {
		return err
	}
	var w io.Writer
	if cfg.Indicator.Terminal {
		w = colorable.NewColorableStdout()
	}
	ind := newIndicator(green, blue, w)
	defer ind.Halt()
	return run(ctx, dev, &cfg, ind, *once, logger)
}

// open returns the bus and the optional LED pins.
func open(ctx context.Context, cfg *Config) (*bitbang.I2C, gpio.PinOut, gpio.PinOut, error) {
	pull, err := cfg.pull()
	if err != nil {
		return nil, nil, nil, err
	}
	if cfg.Simulate {
		s := sht85test.New(cfg.Address, simulatedSerial)
		mode, _ := cfg.Periodic.mode()
		go simulate(ctx, s, mode.Rate.Interval())
		wire := bitbangtest.NewWire(s)
		bus, err := bitbang.New(wire.SCL(), wire.SDA(), &bitbang.Opts{Pull: pull, Delay: func(time.Duration) {}})
		return bus, nil, nil, err
	}
	if _, err := host.Init(); err != nil {
		return nil, nil, nil, err
	}
	scl, err := pin(cfg.SCL)
	if err != nil {
		return nil, nil, nil, err
	}
	sda, err := pin(cfg.SDA)
	if err != nil {
		return nil, nil, nil, err
	}
	opts := bitbang.DefaultOpts
	opts.Pull = pull
	bus, err := bitbang.New(scl, sda, &opts)
	if err != nil {
		return nil, nil, nil, err
	}
	var leds [2]gpio.PinOut
	for i, name := range []string{cfg.Indicator.GreenPin, cfg.Indicator.BluePin} {
		if name == "" {
			continue
		}
		p, err := pin(name)
		if err != nil {
			bus.Close()
			return nil, nil, nil, err
		}
		leds[i] = p
	}
	return bus, leds[0], leds[1], nil
}

func pin(name string) (gpio.PinIO, error) {
	p := gpioreg.ByName(name)
	if p == nil {
		return nil, fmt.Errorf("no pin %q", name)
	}
	return p, nil
}

// simulate feeds the simulated sensor a slow oscillation that crosses 50%RH.
func simulate(ctx context.Context, s *sht85test.Sensor, interval time.Duration) {
	t := time.NewTicker(interval)
	defer t.Stop()
	for i := 0; ; i++ {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
		}
		phase := float64(i) / 20 * 2 * math.Pi
		temp := 23 + 2*math.Sin(phase)
		hum := 50 + 15*math.Cos(phase)
		s.SetMeasurement(uint16((temp+45)/175*65535), uint16(hum/100*65535))
	}
}

// run initializes the sensor then keeps it in periodic mode until ctx is
// done.
func run(ctx context.Context, dev *sht85.Dev, cfg *Config, ind *indicator, once bool, logger *log.Logger) error {
	if !wait(ctx, cfg.PowerUpDelay) {
		return nil
	}
	if err := dev.Reset(); err != nil {
		logger.Printf("%s: reset: %v", dev, err)
	}
	if serial, err := dev.SerialNumber(); err != nil {
		logger.Printf("%s: serial number: %v", dev, err)
	} else {
		fmt.Printf("serial number 0x%08x\n", serial)
	}
	rep, _ := parseRepeatability(cfg.SingleShot.Repeatability)
	r, err := dev.SingleShot(rep, cfg.SingleShot.Timeout)
	if err != nil {
		logger.Printf("%s: single shot: %v", dev, err)
	} else {
		fmt.Printf("single shot %s\n", r)
	}
	if once {
		if err != nil {
			return fmt.Errorf("single shot: %w", err)
		}
		return nil
	}

	mode, _ := cfg.Periodic.mode()
	m := sht85.NewMonitor(dev, mode)
	logger.Printf("%s: periodic %s, polling every %s", dev, mode, cfg.Periodic.PollInterval)
	for {
		delay := cfg.Periodic.PollInterval
		switch m.State() {
		case sht85.StateIdle:
			err := m.Start()
			if err != nil {
				logger.Printf("%s: start: %v", dev, err)
			}
			report(logger, ind.Green(err == nil))
		case sht85.StatePeriodic:
			r, ok, err := m.Poll()
			switch {
			case err != nil:
				logger.Printf("%s: fetch: %v", dev, err)
			case ok:
				fmt.Printf("%s\n", r)
				report(logger, ind.Blue(r.Humidity > cfg.Indicator.HumidityThreshold))
			}
		case sht85.StateFaulted:
			report(logger, ind.Green(false))
			if err := m.Recover(); err != nil {
				logger.Printf("%s: recover: %v", dev, err)
			}
			delay = cfg.Periodic.RecoveryDelay
		}
		if !wait(ctx, delay) {
			if m.State() == sht85.StatePeriodic {
				return dev.StopPeriodic()
			}
			return nil
		}
	}
}

func report(logger *log.Logger, err error) {
	if err != nil {
		logger.Printf("indicator: %v", err)
	}
}

// wait returns false if ctx is done before d elapsed.
func wait(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
