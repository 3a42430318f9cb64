//
// Copyright 2014-2025 Cristian Maglie. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.
//

package main

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"time"

	serial "github.com/abakum/go-serialport"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	cfgFile string
	logger  = zerolog.Nop()
)

var rootCmd = &cobra.Command{
	Use:   "serialport",
	Short: "List, inspect and drive serial ports",
	Long: `serialport is a command line front end for the go-serialport library.

Port settings can be given as flags, as SERIALPORT_* environment variables
(SERIALPORT_BAUD=115200, SERIALPORT_LOG_LEVEL=debug) or in a serialport.yaml
file found in the current directory or in the user config directory.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return initConfig(viper.GetViper())
	},
}

func init() {
	f := rootCmd.PersistentFlags()
	f.StringVar(&cfgFile, "config", "", "config file (default is ./serialport.yaml)")
	f.Int32P("baud", "b", 0, "baud rate, 0 keeps the rate of the device")
	f.Int("databits", 0, "data bits: 5, 6, 7 or 8")
	f.String("parity", "", "parity: none, odd, even, mark or space")
	f.String("stopbits", "", "stop bits: 1, 1.5 or 2")
	f.String("flow", "", "flow control: none, hardware or software")
	f.String("policy", "", "data error policy: skip, passzero, ignore or stop")
	f.Bool("restore", true, "restore the device settings on close")
	f.String("log-level", "info", "log level: trace, debug, info, warn or error")
	if err := viper.BindPFlags(f); err != nil {
		panic(err)
	}
}

// initConfig loads the optional config file and sets up logging.
func initConfig(v *viper.Viper) error {
	v.SetEnvPrefix("SERIALPORT")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.SetConfigName("serialport")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		if dir, err := os.UserConfigDir(); err == nil {
			v.AddConfigPath(filepath.Join(dir, "serialport"))
		}
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if cfgFile != "" || !errors.As(err, &notFound) {
			return err
		}
	}

	level, err := zerolog.ParseLevel(v.GetString("log-level"))
	if err != nil {
		return err
	}
	logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.TimeOnly}).
		Level(level).
		With().Timestamp().Logger()
	serial.SetLogger(logger)
	if f := v.ConfigFileUsed(); f != "" {
		logger.Debug().Str("file", f).Msg("Config loaded")
	}
	return nil
}
