// Copyright (c) 2024 The Flokicoin developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package main

import (
	"fmt"
	"os"
	"path/filepath"

	flags "github.com/jessevdk/go-flags"

	"github.com/xayachi/headerchain/chaincfg"
)

const (
	defaultLogLevel  = "info"
	defaultNet       = "mainnet"
	defaultLogFile   = "headerstore.log"
	defaultDirSuffix = ".headerstore"
)

// config defines the headerstore daemon's command-line and config-file
// options, in the teacher's jessevdk/go-flags idiom.
type config struct {
	HeadersDir string `long:"headersdir" description:"Directory holding blockchain_headers and forks/"`
	Net        string `long:"net" description:"Network to use {mainnet, testnet, regtest}"`
	LogDir     string `long:"logdir" description:"Directory to log output to"`
	LogLevel   string `long:"loglevel" description:"Logging level {trace, debug, info, warn, error, critical}"`
}

func defaultHomeDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return filepath.Join(home, defaultDirSuffix)
}

// loadConfig parses command-line flags over a set of sane defaults,
// resolves the requested network to its chaincfg.Params, and ensures the
// headers directory exists.
func loadConfig() (*config, *chaincfg.Params, error) {
	homeDir := defaultHomeDir()
	cfg := config{
		HeadersDir: filepath.Join(homeDir, "headers"),
		Net:        defaultNet,
		LogDir:     filepath.Join(homeDir, "logs"),
		LogLevel:   defaultLogLevel,
	}

	parser := flags.NewParser(&cfg, flags.Default)
	if _, err := parser.Parse(); err != nil {
		if flagsErr, ok := err.(*flags.Error); ok && flagsErr.Type == flags.ErrHelp {
			os.Exit(0)
		}
		return nil, nil, err
	}

	params, err := netParams(cfg.Net)
	if err != nil {
		return nil, nil, err
	}
	params.HeadersDir = cfg.HeadersDir

	if err := os.MkdirAll(cfg.HeadersDir, 0755); err != nil {
		return nil, nil, fmt.Errorf("creating headers directory %s: %w", cfg.HeadersDir, err)
	}
	if err := os.MkdirAll(cfg.LogDir, 0755); err != nil {
		return nil, nil, fmt.Errorf("creating log directory %s: %w", cfg.LogDir, err)
	}

	return &cfg, params, nil
}

func netParams(net string) (*chaincfg.Params, error) {
	switch net {
	case "mainnet":
		p := chaincfg.MainNetParams
		return &p, nil
	case "testnet":
		p := chaincfg.TestNetParams
		return &p, nil
	case "regtest":
		p := chaincfg.RegTestParams
		return &p, nil
	default:
		return nil, fmt.Errorf("unknown network %q", net)
	}
}
