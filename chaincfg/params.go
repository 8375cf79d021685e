// Copyright (c) 2014-2016 The btcsuite developers
// Copyright (c) 2024 The Flokicoin developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package chaincfg holds the read-only network parameters the header store
// is configured with: where to keep its files, the genesis hash, the
// testnet flag, and the trusted checkpoint list each chunk's headers are
// verified against. None of it is computed by this module; it is supplied
// by the embedding application the same way btcsuite-family nodes wire a
// chaincfg.Params into their blockchain package.
package chaincfg

import (
	"math/big"

	"github.com/xayachi/headerchain/chainhash"
	"github.com/xayachi/headerchain/powdata"
)

// BlocksPerCheckpoint is the width, in blocks, of one difficulty-chunk /
// checkpoint window.
const BlocksPerCheckpoint = 2016

// NumAlgoHeaders is how many recent same-algorithm headers a checkpoint
// records, enough lookback for the difficulty adapter to resolve a target
// without needing the file for blocks below the checkpoint.
const NumAlgoHeaders = 24

// AlgoHeader is one of the trailing same-algorithm headers recorded by a
// checkpoint, used as difficulty lookback below the checkpoint boundary.
type AlgoHeader struct {
	Height    int32
	Timestamp uint32
	Bits      uint32
}

// Checkpoint is trusted metadata for the last block of one 2016-block
// window: its hash, the cumulative chainwork through it, and the trailing
// per-algorithm headers needed to bootstrap difficulty lookback above it.
type Checkpoint struct {
	Hash        chainhash.Hash
	Chainwork   *big.Int
	AlgoHeaders map[powdata.Algo][]AlgoHeader
}

// Params is the read-only configuration a header store is instantiated
// with.
type Params struct {
	// Name identifies the network for logging ("mainnet", "testnet", ...).
	Name string

	// HeadersDir is the directory holding blockchain_headers and forks/.
	HeadersDir string

	// GenesisHash is the hash of the block at height 0.
	GenesisHash chainhash.Hash

	// TestNet relaxes PoW/AuxPoW verification to structural checks only,
	// per spec §4.D's verify_header and §9's open question: target and
	// AuxPoW validity are not enforced on testnet beyond this point.
	TestNet bool

	// AuxPowChainID is this chain's assigned slot in the shared
	// merge-mining tree, checked by every AuxPoW proof's chain-merkle
	// index.
	AuxPowChainID int32

	// Checkpoints is the trusted prefix, one entry per completed
	// 2016-block window, in ascending height order.
	Checkpoints []Checkpoint
}

// MaxCheckpoint returns the height of the last block covered by the
// checkpoint list, or -1 if there are none.
func (p *Params) MaxCheckpoint() int32 {
	if len(p.Checkpoints) == 0 {
		return -1
	}
	return int32(len(p.Checkpoints))*BlocksPerCheckpoint - 1
}

// CheckpointAt returns the checkpoint covering height h (i.e. the one
// whose window is h/BlocksPerCheckpoint), and whether it exists.
func (p *Params) CheckpointAt(h int32) (Checkpoint, bool) {
	idx := h / BlocksPerCheckpoint
	if h < 0 || int(idx) >= len(p.Checkpoints) {
		return Checkpoint{}, false
	}
	return p.Checkpoints[idx], true
}

// MainNetParams are Xaya/CHI mainnet parameters. The checkpoint list is
// intentionally empty here: operators supply the real, periodically
// refreshed checkpoint set from chain-specific configuration; this struct
// only fixes the genesis identity and merge-mining chain id.
var MainNetParams = Params{
	Name:          "mainnet",
	GenesisHash:   mustHash("e5062d76e5f50c42f493826ac9920b63a8def2626fd70a5cbc6a1e788635de1"),
	TestNet:       false,
	AuxPowChainID: 1829, // CHI's registered auxpow chain id
	Checkpoints:   nil,
}

// TestNetParams are Xaya/CHI testnet parameters.
var TestNetParams = Params{
	Name:          "testnet",
	GenesisHash:   mustHash("5195fc01d0e23d70d1f929f21ec55f47e1c6ea1e66fae98ee44cbbc994884b0"),
	TestNet:       true,
	AuxPowChainID: 1829,
	Checkpoints:   nil,
}

// RegTestParams are parameters for a local regression-test network: no
// checkpoints, no AuxPoW enforcement quirks beyond what TestNet already
// relaxes.
var RegTestParams = Params{
	Name:          "regtest",
	GenesisHash:   mustHash("6f750b36d22f1dc3d0a6e483af45301022646dfc3b3ba2187865f5a7d6d6e3f"),
	TestNet:       true,
	AuxPowChainID: 1829,
	Checkpoints:   nil,
}

func mustHash(s string) chainhash.Hash {
	h, err := chainhash.NewHashFromStr(s)
	if err != nil {
		panic(err)
	}
	return *h
}
