// Copyright (c) 2024 The Flokicoin developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package headerfile

import "github.com/decred/slog"

// log is the package-level logger, wired up by UseLogger. It defaults to
// the disabled backend so the package is silent until a caller opts in,
// matching the convention used throughout this tree's cmd/headerstore.
var log = slog.Disabled

// UseLogger sets the package-wide logger used by this package. Call
// before starting any header file activity.
func UseLogger(logger slog.Logger) {
	log = logger
}

// DisableLog disables all library log output. Logging is disabled by
// default until UseLogger is called.
func DisableLog() {
	log = slog.Disabled
}
