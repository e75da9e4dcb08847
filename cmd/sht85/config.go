// Copyright 2025 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package main

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/GermanBionicSystems/sht85-bitbang/sht85"
	"gopkg.in/yaml.v3"
	"periph.io/x/conn/v3/gpio"
)

// Config is the YAML configuration of the program.
type Config struct {
	// GPIO names as known to gpioreg, e.g. "GPIO3".
	SCL string `yaml:"scl"`
	SDA string `yaml:"sda"`
	// Pull applied to released lines: "up" or "float".
	Pull    string `yaml:"pull"`
	Address uint16 `yaml:"address"`
	// Simulate runs against a simulated sensor instead of GPIO lines.
	Simulate bool `yaml:"simulate"`

	PowerUpDelay time.Duration    `yaml:"power_up_delay"`
	SingleShot   SingleShotConfig `yaml:"single_shot"`
	Periodic     PeriodicConfig   `yaml:"periodic"`
	Indicator    IndicatorConfig  `yaml:"indicator"`
}

type SingleShotConfig struct {
	Repeatability string        `yaml:"repeatability"`
	Timeout       time.Duration `yaml:"timeout"`
}

type PeriodicConfig struct {
	Rate          string        `yaml:"rate"`
	Repeatability string        `yaml:"repeatability"`
	PollInterval  time.Duration `yaml:"poll_interval"`
	RecoveryDelay time.Duration `yaml:"recovery_delay"`
}

// IndicatorConfig selects where the two status LEDs are shown. Green is on
// while periodic mode runs; blue is on while humidity is above the threshold.
type IndicatorConfig struct {
	Terminal          bool    `yaml:"terminal"`
	GreenPin          string  `yaml:"green_pin"`
	BluePin           string  `yaml:"blue_pin"`
	HumidityThreshold float64 `yaml:"humidity_threshold"`
}

// DefaultConfig returns the configuration used when no file is given.
func DefaultConfig() Config {
	return Config{
		SCL:          "GPIO3",
		SDA:          "GPIO2",
		Pull:         "up",
		Address:      sht85.DefaultAddress,
		PowerUpDelay: 50 * time.Millisecond,
		SingleShot: SingleShotConfig{
			Repeatability: "high",
			Timeout:       sht85.DefaultTimeout,
		},
		Periodic: PeriodicConfig{
			Rate:          "1",
			Repeatability: "high",
			PollInterval:  100 * time.Millisecond,
			RecoveryDelay: 100 * time.Millisecond,
		},
		Indicator: IndicatorConfig{
			Terminal:          true,
			HumidityThreshold: 50,
		},
	}
}

// Load reads path over the defaults.
func Load(path string) (Config, error) {
	cfg := DefaultConfig()
	b, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return cfg, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// Validate checks cfg for values the driver would reject.
func (c *Config) Validate() error {
	var errs []error
	if !c.Simulate && (c.SCL == "" || c.SDA == "") {
		errs = append(errs, errors.New("scl and sda are required"))
	}
	if c.SCL != "" && c.SCL == c.SDA {
		errs = append(errs, errors.New("scl and sda must be different pins"))
	}
	if _, err := c.pull(); err != nil {
		errs = append(errs, err)
	}
	if c.Address == 0 || c.Address > 0x7f {
		errs = append(errs, fmt.Errorf("invalid address 0x%x", c.Address))
	}
	if rep, err := parseRepeatability(c.SingleShot.Repeatability); err != nil {
		errs = append(errs, fmt.Errorf("single_shot: %w", err))
	} else if d := rep.MeasureDuration(); c.SingleShot.Timeout < d {
		errs = append(errs, fmt.Errorf("single_shot: timeout %s is shorter than a %s repeatability measurement (%s)", c.SingleShot.Timeout, rep, d))
	}
	if c.SingleShot.Timeout < time.Millisecond {
		errs = append(errs, errors.New("single_shot: timeout must be at least 1ms"))
	}
	if _, err := c.Periodic.mode(); err != nil {
		errs = append(errs, fmt.Errorf("periodic: %w", err))
	}
	if c.Periodic.PollInterval <= 0 {
		errs = append(errs, errors.New("periodic: poll_interval must be positive"))
	}
	if c.Periodic.RecoveryDelay < 0 || c.PowerUpDelay < 0 {
		errs = append(errs, errors.New("delays can't be negative"))
	}
	if t := c.Indicator.HumidityThreshold; t < 0 || t > 100 {
		errs = append(errs, fmt.Errorf("indicator: humidity_threshold %g out of range", t))
	}
	return errors.Join(errs...)
}

func (c *Config) pull() (gpio.Pull, error) {
	switch strings.ToLower(c.Pull) {
	case "", "up":
		return gpio.PullUp, nil
	case "float", "none":
		return gpio.Float, nil
	default:
		return gpio.PullNoChange, fmt.Errorf("invalid pull %q", c.Pull)
	}
}

func (p *PeriodicConfig) mode() (sht85.PeriodicMode, error) {
	rep, err := parseRepeatability(p.Repeatability)
	if err != nil {
		return sht85.PeriodicMode{}, err
	}
	rate, err := parseRate(p.Rate)
	if err != nil {
		return sht85.PeriodicMode{}, err
	}
	return sht85.PeriodicMode{Rate: rate, Repeatability: rep}, nil
}

func parseRepeatability(s string) (sht85.Repeatability, error) {
	switch strings.ToLower(s) {
	case "low", "l":
		return sht85.RepeatabilityLow, nil
	case "medium", "m":
		return sht85.RepeatabilityMedium, nil
	case "high", "h":
		return sht85.RepeatabilityHigh, nil
	default:
		return 0, fmt.Errorf("invalid repeatability %q", s)
	}
}

// parseRate accepts measurements per second.
func parseRate(s string) (sht85.Rate, error) {
	switch strings.TrimSuffix(strings.ToLower(s), "hz") {
	case "0.5":
		return sht85.RateHalfHertz, nil
	case "1":
		return sht85.RateHertz, nil
	case "2":
		return sht85.RateTwoHertz, nil
	case "4":
		return sht85.RateFourHertz, nil
	case "10":
		return sht85.Rate10Hertz, nil
	default:
		return 0, fmt.Errorf("invalid rate %q, use 0.5, 1, 2, 4 or 10", s)
	}
}
