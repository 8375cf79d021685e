// Copyright (c) 2024 The Flokicoin developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/decred/slog"
	"github.com/jrick/logrotate/rotator"

	"github.com/xayachi/headerchain/chainreg"
	"github.com/xayachi/headerchain/headerfile"
)

// logRotator rotates the daemon's log file once it crosses 10 MiB,
// keeping a bounded number of old versions, matching the teacher's
// jrick/logrotate dependency.
var logRotator *rotator.Rotator

// backendLog is the slog backend every subsystem logger is created from.
var backendLog = slog.NewBackend(logWriter{})

// subsystemLoggers maps each package's log var to the tag used in log
// output, so SetLogLevels can walk them uniformly.
var subsystemLoggers = map[string]slog.Logger{
	"CHRG": backendLog.Logger("CHRG"),
	"HDRF": backendLog.Logger("HDRF"),
}

func init() {
	chainreg.UseLogger(subsystemLoggers["CHRG"])
	headerfile.UseLogger(subsystemLoggers["HDRF"])
}

// logWriter implements io.Writer by writing to both standard output and
// the rotator, the same split the teacher's daemons use so operators
// watching the console still see output while a file trail is kept.
type logWriter struct{}

func (logWriter) Write(p []byte) (int, error) {
	os.Stdout.Write(p)
	if logRotator != nil {
		logRotator.Write(p)
	}
	return len(p), nil
}

// initLogRotator opens (creating if necessary) the rotating log file at
// logFile, must be called before any subsystem logs anything meaningful.
func initLogRotator(logFile string) error {
	if err := os.MkdirAll(filepath.Dir(logFile), 0755); err != nil {
		return fmt.Errorf("creating log directory: %w", err)
	}
	r, err := rotator.New(logFile, 10*1024, false, 3)
	if err != nil {
		return fmt.Errorf("creating log rotator: %w", err)
	}
	logRotator = r
	return nil
}

// setLogLevels sets every subsystem logger to the given level string.
func setLogLevels(levelStr string) error {
	level, ok := slog.LevelFromString(levelStr)
	if !ok {
		return fmt.Errorf("unknown log level %q", levelStr)
	}
	for _, logger := range subsystemLoggers {
		logger.SetLevel(level)
	}
	return nil
}
