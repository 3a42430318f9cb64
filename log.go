//
// Copyright 2014-2025 Cristian Maglie. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.
//

package serial

import (
	"github.com/rs/zerolog"
	"go.uber.org/atomic"
)

var packageLogger = atomic.NewPointer(loggerRef(zerolog.Nop()))

func loggerRef(l zerolog.Logger) *zerolog.Logger {
	return &l
}

// SetLogger sets the logger used by ports that were not given one with
// WithLogger. The package is silent by default.
func SetLogger(l zerolog.Logger) {
	packageLogger.Store(loggerRef(l))
}

func defaultLogger() zerolog.Logger {
	return *packageLogger.Load()
}
