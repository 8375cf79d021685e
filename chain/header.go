// Copyright (c) 2024 The Flokicoin developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package chain

import (
	"math/big"

	"github.com/xayachi/headerchain/chainhash"
	"github.com/xayachi/headerchain/powdata"
)

// Header is a pure Bitcoin-format block header plus the context this store
// always carries alongside it: the height it was connected at (never on
// the wire), its proof-of-work envelope, and — once known — its
// cumulative chainwork.
//
// Bits is consensus-mandated to be zero on this chain; the real
// difficulty lives in PowData.Bits.
type Header struct {
	Version    uint32
	PrevBlock  chainhash.Hash
	MerkleRoot chainhash.Hash
	Timestamp  uint32
	Bits       uint32
	Nonce      uint32

	Height int32

	PowData powdata.PowData

	// Chainwork is nil until VerifyChunk/SaveHeader computes it.
	Chainwork *big.Int
}
