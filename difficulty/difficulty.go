// Copyright (c) 2024 The Flokicoin developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package difficulty is the external difficulty-retargeting engine the
// header store's adapter (chain.GetExpectedTarget) bridges to. Per the
// spec's scope, its internals are not part of this store; only the
// contract — GetTarget(getter, algo, height) and AlgoLog2Weight(algo) — is
// consumed. The implementation below is a minimal, real per-algorithm
// continuous retarget (grounded in the teacher's calcNextRequiredDifficulty
// shape: previous target scaled by actual-vs-target spacing, then clamped)
// so the module is runnable end to end; a production deployment would
// swap this package for the chain's actual consensus engine without
// touching anything in chain/ or chainreg/.
package difficulty

import (
	"fmt"
	"math/big"

	"github.com/xayachi/headerchain/powdata"
)

// TargetSpacingSeconds is the desired spacing, per algorithm, between
// blocks mined with that algorithm.
const TargetSpacingSeconds = 30

// minAdjustment/maxAdjustment bound how far a single retarget step may
// move the target, the same shape as the teacher's timespan clamp in
// calcNextRequiredDifficulty.
const (
	minAdjustment = 0.25
	maxAdjustment = 4.0
)

// DataPoint is the last known block of a given algorithm at or below some
// height: enough to anchor the next target computation.
type DataPoint struct {
	Height    int32
	Timestamp uint32
	Bits      uint32
}

// Getter resolves the most recent DataPoint for algo at or before height,
// consulting in-memory pending blocks ahead of the on-disk store. It
// returns (nil, nil) if no such block exists (e.g. before genesis), and a
// non-nil error only for a genuine lookup failure (a missing header that
// should exist).
type Getter func(algo powdata.Algo, height int32) (*DataPoint, error)

// PowLimitBits is the easiest allowed target, expressed in compact form:
// exponent 0x20 (32), mantissa 0x7fffff — the largest representable
// target short of the sign bit, used as the ceiling for both algorithms.
const PowLimitBits = 0x207fffff

// PowLimit is PowLimitBits decoded to its 256-bit target.
var PowLimit = bitsToTarget(PowLimitBits)

// AlgoLog2Weight returns the left-shift applied to an algorithm's raw
// per-header work before it is added to cumulative chainwork, balancing
// aggregate hashrate contributed by each algorithm. Both algorithms
// contribute equally in this reference engine.
func AlgoLog2Weight(algo powdata.Algo) uint {
	return 0
}

// GetTarget computes the expected target for a block of the given
// algorithm at the given height, using get to walk back through same-algo
// history.
func GetTarget(get Getter, algo powdata.Algo, height int32) (*big.Int, error) {
	if !algo.Valid() {
		return nil, fmt.Errorf("difficulty: unknown algorithm %s", algo)
	}
	if height <= 0 {
		return new(big.Int).Set(PowLimit), nil
	}

	prev, err := get(algo, height-1)
	if err != nil {
		return nil, err
	}
	if prev == nil {
		return new(big.Int).Set(PowLimit), nil
	}

	prevPrev, err := get(algo, prev.Height-1)
	if err != nil {
		return nil, err
	}
	if prevPrev == nil {
		return bitsToTarget(prev.Bits), nil
	}

	actualSpacing := int64(prev.Timestamp) - int64(prevPrev.Timestamp)
	target := bitsToTarget(prev.Bits)

	ratioNum, ratioDen := clampSpacingRatio(actualSpacing, TargetSpacingSeconds)
	target.Mul(target, big.NewInt(ratioNum))
	target.Div(target, big.NewInt(ratioDen))

	if target.Cmp(PowLimit) > 0 {
		target.Set(PowLimit)
	}
	if target.Sign() <= 0 {
		target.SetInt64(1)
	}
	return target, nil
}

// clampSpacingRatio returns a numerator/denominator pair approximating
// actual/target spacing, clamped to [minAdjustment, maxAdjustment].
func clampSpacingRatio(actual, target int64) (num, den int64) {
	if actual < int64(float64(target)*minAdjustment) {
		actual = int64(float64(target) * minAdjustment)
	}
	if actual > int64(float64(target)*maxAdjustment) {
		actual = int64(float64(target) * maxAdjustment)
	}
	if actual <= 0 {
		actual = 1
	}
	return actual, target
}

// bitsToTarget is a private copy of the compact-float decode also found in
// chain/pow.go (component B). This package must not import chain (chain
// imports this package's Getter contract the other way around), so the
// ~10-line helper is duplicated rather than shared; see DESIGN.md.
func bitsToTarget(bits uint32) *big.Int {
	exp := bits >> 24
	mant := bits & 0x007fffff
	target := new(big.Int).SetUint64(uint64(mant))
	if exp <= 3 {
		target.Rsh(target, uint(8*(3-exp)))
	} else {
		target.Lsh(target, uint(8*(exp-3)))
	}
	return target
}
