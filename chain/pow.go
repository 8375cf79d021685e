// Copyright (c) 2024 The Flokicoin developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package chain

import (
	"fmt"
	"math/big"

	"github.com/xayachi/headerchain/chainhash"
	"github.com/xayachi/headerchain/difficulty"
	"github.com/xayachi/headerchain/wire"
)

// oneLsh256 is 2**256, the modulus chainwork arithmetic is defined over.
var oneLsh256 = new(big.Int).Lsh(big.NewInt(1), 256)

// HashHeader computes the double-SHA256 identifier of a header's pure
// (80-byte) serialization. The returned Hash's String method applies the
// reversed-byte display convention; comparisons should use the Hash value
// directly.
func HashHeader(h *Header) chainhash.Hash {
	pure := wire.PureHeader{
		Version:    h.Version,
		PrevBlock:  h.PrevBlock,
		MerkleRoot: h.MerkleRoot,
		Timestamp:  h.Timestamp,
		Bits:       h.Bits,
		Nonce:      h.Nonce,
	}
	return chainhash.HashH(pure.Bytes())
}

// BitsToTarget decodes a compact difficulty encoding to its 256-bit
// target. It rejects exponents and mantissas outside the range this chain
// ever produces, matching spec §4.B.
func BitsToTarget(bits uint32) (*big.Int, error) {
	exp := bits >> 24
	mant := bits & 0x00ffffff

	if exp < 0x03 || exp > 0x20 {
		return nil, fmt.Errorf("%w: bits 0x%08x exponent out of range", ErrInvalidHeader, bits)
	}
	if mant < 0x8000 || mant > 0x7fffff {
		return nil, fmt.Errorf("%w: bits 0x%08x mantissa out of range", ErrInvalidHeader, bits)
	}

	target := new(big.Int).SetUint64(uint64(mant))
	target.Lsh(target, uint(8*(exp-3)))
	return target, nil
}

// TargetToBits encodes a 256-bit target to its canonical compact form,
// inverting BitsToTarget. If the target's top byte would set the sign
// bit of the 24-bit mantissa, the mantissa is shifted right by one byte
// and the exponent bumped, matching spec §4.B.
func TargetToBits(target *big.Int) uint32 {
	if target.Sign() <= 0 {
		return 0
	}
	b := target.Bytes()
	exp := uint32(len(b))

	var mant uint32
	switch {
	case exp <= 3:
		for _, v := range b {
			mant = mant<<8 | uint32(v)
		}
		mant <<= uint(8 * (3 - exp))
	default:
		mant = uint32(b[0])<<16 | uint32(b[1])<<8 | uint32(b[2])
	}

	if mant&0x00800000 != 0 {
		mant >>= 8
		exp++
	}
	return exp<<24 | mant
}

// ChainworkOfHeader returns the per-header work contributed by h, weighted
// by its algorithm's configured log2 weight so the two algorithms'
// aggregate hashrate stays balanced in cumulative chainwork.
func ChainworkOfHeader(h *Header) (*big.Int, error) {
	target, err := BitsToTarget(h.PowData.Bits)
	if err != nil {
		return nil, err
	}
	if target.Sign() == 0 {
		return nil, fmt.Errorf("%w: zero target", ErrInvalidHeader)
	}

	// work = floor((2**256 - target - 1) / (target + 1)) + 1
	work := new(big.Int).Sub(oneLsh256, target)
	work.Sub(work, big.NewInt(1))
	denom := new(big.Int).Add(target, big.NewInt(1))
	work.Div(work, denom)
	work.Add(work, big.NewInt(1))

	work.Lsh(work, difficulty.AlgoLog2Weight(h.PowData.Algo))
	return work, nil
}
