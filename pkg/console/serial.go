// Serial transport for the diagnostic console
//
// Copyright (C) 2026  blindctl authors
//
// This file may be distributed under the terms of the GNU GPLv3 license.

package console

import (
	"fmt"

	"go.bug.st/serial"

	"blindctl/pkg/config"
)

// SerialConfig holds the [console] section. The console only runs when
// the section is present, so the port option has no fallback.
type SerialConfig struct {
	Port string
	Baud int
}

// LoadSerialConfig reads the [console] section. A nil section means the
// console is not configured and the caller should skip it.
func LoadSerialConfig(sec *config.Section) (*SerialConfig, error) {
	if sec == nil {
		return nil, nil
	}
	sc := &SerialConfig{}
	var err error
	if sc.Port, err = sec.Get("port"); err != nil {
		return nil, err
	}
	minBaud := 1200
	if sc.Baud, err = sec.GetIntWithBounds("baud", &minBaud, nil, 115200); err != nil {
		return nil, err
	}
	return sc, nil
}

// OpenPort opens the configured serial port. The returned port is the
// console transport; closing it stops a running console.
func OpenPort(sc *SerialConfig) (serial.Port, error) {
	mode := &serial.Mode{BaudRate: sc.Baud}
	port, err := serial.Open(sc.Port, mode)
	if err != nil {
		return nil, fmt.Errorf("console: open %s: %w", sc.Port, err)
	}
	return port, nil
}
