// Copyright (c) 2024 The Flokicoin developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package chain

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestBitsTargetRoundTrip(t *testing.T) {
	cases := []uint32{0x1d00ffff, 0x1b0404cb, 0x207fffff, 0x1c00800e}
	for _, bits := range cases {
		target, err := BitsToTarget(bits)
		require.NoError(t, err)
		require.Equal(t, bits, TargetToBits(target))
	}
}

func TestBitsToTargetRejectsOutOfRangeExponent(t *testing.T) {
	_, err := BitsToTarget(0x02123456)
	require.Error(t, err)

	_, err = BitsToTarget(0x21123456)
	require.Error(t, err)
}

func TestBitsToTargetRejectsOutOfRangeMantissa(t *testing.T) {
	_, err := BitsToTarget(0x1d000001)
	require.Error(t, err)
}

func TestChainworkOfHeaderHigherTargetIsLessWork(t *testing.T) {
	easy := &Header{PowData: testPowData(0x1d00ffff)}
	hard := &Header{PowData: testPowData(0x1b0404cb)}

	easyWork, err := ChainworkOfHeader(easy)
	require.NoError(t, err)
	hardWork, err := ChainworkOfHeader(hard)
	require.NoError(t, err)

	require.True(t, hardWork.Cmp(easyWork) > 0, "a lower (harder) target must contribute more chainwork")
}
