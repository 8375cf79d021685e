// Copyright (c) 2024 The Flokicoin developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package powdata

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/xayachi/headerchain/chainhash"
)

func TestSerializeBaseRoundTrip(t *testing.T) {
	p := PowData{Algo: AlgoNeoScrypt, Bits: 0x1d00ffff}

	var buf bytes.Buffer
	require.NoError(t, p.SerializeBase(&buf))
	require.Len(t, buf.Bytes(), BaseLen)

	var got PowData
	require.NoError(t, got.DeserializeBase(&buf))
	require.Equal(t, p.Algo, got.Algo)
	require.Equal(t, p.Bits, got.Bits)
	require.Nil(t, got.AuxPow)
}

func TestSerializeFullRequiresAuxPow(t *testing.T) {
	p := PowData{Algo: AlgoSHA256D, Bits: 0x1d00ffff}
	var buf bytes.Buffer
	require.Error(t, p.SerializeFull(&buf))
}

func TestAlgoString(t *testing.T) {
	require.Equal(t, "sha256d", AlgoSHA256D.String())
	require.Equal(t, "neoscrypt", AlgoNeoScrypt.String())
	require.True(t, AlgoSHA256D.Valid())
	require.False(t, Algo(5).Valid())
}

func TestVerifyWithoutAuxPowFails(t *testing.T) {
	p := PowData{Algo: AlgoSHA256D, Bits: 0x1d00ffff}
	err := p.Verify(chainhash.Hash{}, 1)
	require.Error(t, err)
}
