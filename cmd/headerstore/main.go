// Copyright (c) 2024 The Flokicoin developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Command headerstore loads (or initializes) a merge-mined header chain
// store from a headers directory and reports the resulting best chain's
// height, exercising the full read_blockchains startup path (component
// E) as a standalone daemon would at boot.
package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/xayachi/headerchain/chainreg"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run() error {
	cfg, params, err := loadConfig()
	if err != nil {
		return err
	}

	if err := initLogRotator(filepath.Join(cfg.LogDir, defaultLogFile)); err != nil {
		return err
	}
	if err := setLogLevels(cfg.LogLevel); err != nil {
		return err
	}

	reg, err := chainreg.ReadBlockchains(params)
	if err != nil {
		return fmt.Errorf("reading blockchains from %s: %w", cfg.HeadersDir, err)
	}
	defer reg.Close()

	best := reg.GetBestChain()
	fmt.Printf("%s: best chain height %d, %d chains registered\n", params.Name, best.Height(), reg.Count())
	return nil
}
