// Copyright (c) 2024 The Flokicoin developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package difficulty

import (
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/xayachi/headerchain/powdata"
)

func TestGetTargetGenesisIsPowLimit(t *testing.T) {
	get := func(algo powdata.Algo, height int32) (*DataPoint, error) { return nil, nil }
	target, err := GetTarget(get, powdata.AlgoSHA256D, 0)
	require.NoError(t, err)
	require.Equal(t, 0, target.Cmp(PowLimit))
}

func TestGetTargetRejectsUnknownAlgo(t *testing.T) {
	get := func(algo powdata.Algo, height int32) (*DataPoint, error) { return nil, nil }
	_, err := GetTarget(get, powdata.Algo(99), 10)
	require.Error(t, err)
}

func TestGetTargetFasterThanTargetSpacingTightens(t *testing.T) {
	points := map[int32]*DataPoint{
		8: {Height: 8, Timestamp: 1000, Bits: PowLimitBits},
		9: {Height: 9, Timestamp: 1000 + TargetSpacingSeconds/2, Bits: PowLimitBits},
	}
	get := func(algo powdata.Algo, height int32) (*DataPoint, error) {
		return points[height], nil
	}
	target, err := GetTarget(get, powdata.AlgoSHA256D, 10)
	require.NoError(t, err)
	require.True(t, target.Cmp(PowLimit) < 0, "faster-than-target spacing must tighten (lower) the target")
}

func TestGetTargetNeverExceedsPowLimit(t *testing.T) {
	points := map[int32]*DataPoint{
		8: {Height: 8, Timestamp: 1000, Bits: PowLimitBits},
		9: {Height: 9, Timestamp: 1000 + TargetSpacingSeconds*100, Bits: PowLimitBits},
	}
	get := func(algo powdata.Algo, height int32) (*DataPoint, error) {
		return points[height], nil
	}
	target, err := GetTarget(get, powdata.AlgoSHA256D, 10)
	require.NoError(t, err)
	require.True(t, target.Cmp(PowLimit) <= 0)
}
