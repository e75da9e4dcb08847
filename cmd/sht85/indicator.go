// Copyright 2025 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package main

import (
	"bytes"
	"errors"
	"fmt"
	"image/color"
	"io"

	"github.com/maruel/ansi256"
	"periph.io/x/conn/v3/gpio"
)

var (
	greenOn  = color.NRGBA{0, 255, 0, 255}
	blueOn   = color.NRGBA{0, 0, 255, 255}
	ledOff   = color.NRGBA{32, 32, 32, 255}
	ledNames = [2]string{"green", "blue"}
)

// indicator shows the two status LEDs on GPIO outputs and/or as colored
// blocks on a terminal.
type indicator struct {
	pins    [2]gpio.PinOut
	w       io.Writer
	palette ansi256.Palette
	state   [2]bool
	buf     bytes.Buffer
}

// newIndicator returns an indicator that drives green and blue, both of which
// can be nil, and draws on w if it isn't nil.
func newIndicator(green, blue gpio.PinOut, w io.Writer) *indicator {
	return &indicator{pins: [2]gpio.PinOut{green, blue}, w: w, palette: *ansi256.Default}
}

// Green is on while periodic measurements run.
func (i *indicator) Green(on bool) error {
	return i.set(0, on)
}

// Blue is on while the humidity is above the threshold.
func (i *indicator) Blue(on bool) error {
	return i.set(1, on)
}

func (i *indicator) set(led int, on bool) error {
	i.state[led] = on
	var errs []error
	if p := i.pins[led]; p != nil {
		if err := p.Out(gpio.Level(on)); err != nil {
			errs = append(errs, fmt.Errorf("%s led: %w", ledNames[led], err))
		}
	}
	if err := i.refresh(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

func (i *indicator) refresh() error {
	if i.w == nil {
		return nil
	}
	i.buf.Reset()
	_, _ = i.buf.WriteString("\r\033[0m")
	for led, c := range [2]color.NRGBA{greenOn, blueOn} {
		if !i.state[led] {
			c = ledOff
		}
		_, _ = io.WriteString(&i.buf, i.palette.Block(c))
	}
	_, _ = i.buf.WriteString("\033[0m ")
	_, err := i.buf.WriteTo(i.w)
	return err
}

// Halt switches both LEDs off and resets the terminal colors.
func (i *indicator) Halt() error {
	err := errors.Join(i.Green(false), i.Blue(false))
	if i.w != nil {
		if _, werr := io.WriteString(i.w, "\n\033[0m"); werr != nil {
			err = errors.Join(err, werr)
		}
	}
	return err
}
