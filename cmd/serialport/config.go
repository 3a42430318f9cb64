//
// Copyright 2014-2025 Cristian Maglie. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.
//

package main

import (
	"fmt"

	serial "github.com/abakum/go-serialport"
	"github.com/spf13/viper"
)

// portOptions turns the configured settings into port options. Settings
// left empty are read back from the device when it opens.
func portOptions(v *viper.Viper) ([]serial.Option, error) {
	var opts []serial.Option
	if rate := v.GetInt32("baud"); rate != 0 {
		opts = append(opts, serial.WithBaudRate(rate))
	}
	if bits := v.GetInt("databits"); bits != 0 {
		if bits < 5 || bits > 8 {
			return nil, fmt.Errorf("invalid data bits %d", bits)
		}
		opts = append(opts, serial.WithDataBits(serial.DataBits(bits)))
	}
	if s := v.GetString("parity"); s != "" {
		parity, err := serial.ParseParity(s)
		if err != nil {
			return nil, err
		}
		opts = append(opts, serial.WithParity(parity))
	}
	if s := v.GetString("stopbits"); s != "" {
		bits, err := serial.ParseStopBits(s)
		if err != nil {
			return nil, err
		}
		opts = append(opts, serial.WithStopBits(bits))
	}
	if s := v.GetString("flow"); s != "" {
		flow, err := serial.ParseFlowControl(s)
		if err != nil {
			return nil, err
		}
		opts = append(opts, serial.WithFlowControl(flow))
	}
	if s := v.GetString("policy"); s != "" {
		policy, err := serial.ParseDataErrorPolicy(s)
		if err != nil {
			return nil, err
		}
		opts = append(opts, serial.WithDataErrorPolicy(policy))
	}
	opts = append(opts, serial.WithRestoreOnClose(v.GetBool("restore")))
	return opts, nil
}

// openPort opens name with the configured settings.
func openPort(v *viper.Viper, name string, mode serial.OpenMode) (*serial.Port, error) {
	opts, err := portOptions(v)
	if err != nil {
		return nil, err
	}
	port := serial.NewPort(name, opts...)
	if err := port.Open(mode); err != nil {
		return nil, err
	}
	logger.Debug().Str("port", port.SystemLocation()).Msg("Port opened")
	return port, nil
}
