// Copyright (c) 2024 The Flokicoin developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package chain

import (
	"math/big"

	"github.com/xayachi/headerchain/difficulty"
	"github.com/xayachi/headerchain/powdata"
)

// difficultyDataForBlock resolves the most recent header of the given
// algorithm at or before height h, consulting extra (headers earlier in
// the chunk currently being verified but not yet on disk) first, then
// this chain's file, then checkpoint metadata. Written iteratively
// (rather than recursively) since lookback depth is unbounded in
// principle, per spec §9's design note.
func difficultyDataForBlock(c *Chain, algo powdata.Algo, h int32, extra map[int32]*Header) (*difficulty.DataPoint, error) {
	for {
		if h < 0 {
			return nil, nil
		}

		var hdr *Header
		if e, ok := extra[h]; ok {
			hdr = e
		} else {
			rh, err := c.ReadHeader(h)
			if err != nil {
				return nil, err
			}
			hdr = rh
		}

		if hdr != nil {
			if hdr.PowData.Algo == algo {
				return &difficulty.DataPoint{Height: h, Timestamp: hdr.Timestamp, Bits: hdr.PowData.Bits}, nil
			}
			h--
			continue
		}

		// Absent above the checkpoint boundary can't happen legitimately.
		if h > c.params.MaxCheckpoint() {
			return nil, missingHeader(h)
		}

		cp, ok := c.params.CheckpointAt(h)
		if !ok {
			return nil, missingHeader(h)
		}
		algoHdrs := cp.AlgoHeaders[algo]
		for i := len(algoHdrs) - 1; i >= 0; i-- {
			if algoHdrs[i].Height <= h {
				return &difficulty.DataPoint{
					Height:    algoHdrs[i].Height,
					Timestamp: algoHdrs[i].Timestamp,
					Bits:      algoHdrs[i].Bits,
				}, nil
			}
		}
		return nil, missingHeader(h)
	}
}

// GetExpectedTarget returns the target h's proof of work must satisfy,
// delegating to the external difficulty engine (package difficulty) with
// a getter closed over this chain and the extra (in-flight) blocks of the
// chunk currently being verified. It returns 0 on testnet, matching spec
// §4.F and the documented open question in DESIGN.md.
func (c *Chain) GetExpectedTarget(h *Header, extra map[int32]*Header) (*big.Int, error) {
	if c.params.TestNet {
		return big.NewInt(0), nil
	}
	getter := func(algo powdata.Algo, height int32) (*difficulty.DataPoint, error) {
		return difficultyDataForBlock(c, algo, height, extra)
	}
	return difficulty.GetTarget(getter, h.PowData.Algo, h.Height)
}
