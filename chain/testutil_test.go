// Copyright (c) 2024 The Flokicoin developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package chain

import (
	"math/big"
	"strings"

	"github.com/xayachi/headerchain/chaincfg"
	"github.com/xayachi/headerchain/chainhash"
	"github.com/xayachi/headerchain/powdata"
)

// hex64 repeats pair 32 times to build a syntactically valid 64-hex-char
// hash string for tests that just need a distinct, stable identifier.
func hex64(pair string) string {
	return strings.Repeat(pair, 32)
}

func testPowData(bits uint32) powdata.PowData {
	return powdata.PowData{Algo: powdata.AlgoSHA256D, Bits: bits}
}

// fakeRegistry is a minimal chain.Registry for tests that don't exercise
// the real chainreg package, avoiding an import cycle (chainreg imports
// chain).
type fakeRegistry struct {
	count int
}

func (r *fakeRegistry) Reindex(oldParentID, oldChildID chainhash.Hash, promoted, demoted *Chain) {
}

func (r *fakeRegistry) Count() int {
	if r.count == 0 {
		return 1
	}
	return r.count
}

func testParams() *chaincfg.Params {
	return &chaincfg.Params{
		Name:          "testnet",
		GenesisHash:   mustTestHash(hex64("aa")),
		TestNet:       true,
		AuxPowChainID: 1,
	}
}

func mustTestHash(s string) chainhash.Hash {
	h, err := chainhash.NewHashFromStr(s)
	if err != nil {
		panic(err)
	}
	return *h
}

func mkHeader(height int32, prev chainhash.Hash, nonce uint32) *Header {
	return &Header{
		Version:   1,
		PrevBlock: prev,
		Height:    height,
		Nonce:     nonce,
		PowData:   testPowData(0x207fffff),
	}
}

func headerWork(h *Header) *big.Int {
	w, err := ChainworkOfHeader(h)
	if err != nil {
		panic(err)
	}
	return w
}
