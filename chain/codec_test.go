// Copyright (c) 2024 The Flokicoin developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package chain

import (
	"bytes"
	"math/big"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/xayachi/headerchain/chainhash"
)

func TestSerializePureRoundTrip(t *testing.T) {
	h := mkHeader(100, mustTestHash(hex64("aa")), 42)
	h.MerkleRoot = mustTestHash(hex64("bb"))
	h.Timestamp = 1700000000
	h.Bits = 0

	data := SerializePure(h)
	require.Len(t, data, PureHeaderLen)

	got, err := DeserializePure(data, 100)
	require.NoError(t, err)
	require.Equal(t, h.Version, got.Version)
	require.Equal(t, h.PrevBlock, got.PrevBlock)
	require.Equal(t, h.MerkleRoot, got.MerkleRoot)
	require.Equal(t, h.Timestamp, got.Timestamp)
	require.Equal(t, h.Nonce, got.Nonce)
}

func TestSerializeDiskRoundTrip(t *testing.T) {
	h := mkHeader(5, chainhash.Hash{}, 7)
	h.PowData.Bits = 0x1d00ffff
	h.Chainwork = big.NewInt(123456789)

	disk, err := SerializeDisk(h)
	require.NoError(t, err)
	require.Len(t, disk, DiskHeaderLen)

	got, err := DeserializeDisk(disk, 5)
	require.NoError(t, err)
	require.Equal(t, h.PowData.Bits, got.PowData.Bits)
	require.Equal(t, 0, h.Chainwork.Cmp(got.Chainwork))
}

func TestSerializeDiskRejectsMissingChainwork(t *testing.T) {
	h := mkHeader(1, chainhash.Hash{}, 0)
	_, err := SerializeDisk(h)
	require.Error(t, err)
}

func TestDeserializeFullPicksBaseFormBelowCheckpoint(t *testing.T) {
	h := mkHeader(10, chainhash.Hash{}, 1)
	h.PowData.Bits = 0x1d00ffff

	var buf bytes.Buffer
	buf.Write(SerializePure(h))
	require.NoError(t, h.PowData.SerializeBase(&buf))

	got, consumed, err := DeserializeFull(buf.Bytes(), 10, 20, true, false)
	require.NoError(t, err)
	require.Equal(t, buf.Len(), consumed)
	require.Nil(t, got.PowData.AuxPow)
	require.Equal(t, h.PowData.Bits, got.PowData.Bits)
}
