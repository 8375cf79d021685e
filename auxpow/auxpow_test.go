// Copyright (c) 2024 The Flokicoin developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package auxpow

import (
	"bytes"
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/xayachi/headerchain/chainhash"
	"github.com/xayachi/headerchain/wire"
)

func TestMerkleBranchRootEmpty(t *testing.T) {
	var mb MerkleBranch
	leaf := chainhash.HashH([]byte("leaf"))
	require.True(t, mb.HasRoot(leaf, leaf))
}

func TestMerkleBranchRootWalksSides(t *testing.T) {
	leaf := chainhash.HashH([]byte("leaf"))
	sibling := chainhash.HashH([]byte("sibling"))

	mb := MerkleBranch{Hashes: []chainhash.Hash{sibling}, SideMask: 0}
	var buf [chainhash.HashSize * 2]byte
	copy(buf[:chainhash.HashSize], leaf[:])
	copy(buf[chainhash.HashSize:], sibling[:])
	wantLeft := chainhash.HashH(buf[:])
	require.True(t, mb.HasRoot(leaf, wantLeft))

	mb.SideMask = 1
	copy(buf[:chainhash.HashSize], sibling[:])
	copy(buf[chainhash.HashSize:], leaf[:])
	wantRight := chainhash.HashH(buf[:])
	require.True(t, mb.HasRoot(leaf, wantRight))
}

func TestMerkleBranchSerializeRoundTrip(t *testing.T) {
	mb := MerkleBranch{
		Hashes:   []chainhash.Hash{chainhash.HashH([]byte("a")), chainhash.HashH([]byte("b"))},
		SideMask: 2,
	}
	var buf bytes.Buffer
	require.NoError(t, mb.serialize(&buf))

	var got MerkleBranch
	require.NoError(t, got.deserialize(bytes.NewReader(buf.Bytes())))
	require.Equal(t, mb.Hashes, got.Hashes)
	require.Equal(t, mb.SideMask, got.SideMask)
}

func TestMerkleBranchDeserializeRejectsOversizedBranch(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, wire.WriteVarInt(&buf, MaxChainMerkleBranches+1))

	var mb MerkleBranch
	require.Error(t, mb.deserialize(bytes.NewReader(buf.Bytes())))
}

func TestExpectedChainMerkleIndexIsDeterministic(t *testing.T) {
	a := expectedChainMerkleIndex(7, 1, 3)
	b := expectedChainMerkleIndex(7, 1, 3)
	require.Equal(t, a, b)

	c := expectedChainMerkleIndex(7, 2, 3)
	require.True(t, a < 8)
	require.True(t, c < 8)
}

// buildValidProof constructs a minimal proof that Verify accepts: an empty
// chain merkle branch (so the header hash is its own chain root), an empty
// coinbase branch (so the coinbase hash is its own parent merkle root), and
// a parent header at the easiest target (0x207fffff, just under 2**255),
// whose nonce is ground until its hash clears that target.
func buildValidProof(t *testing.T, headerHash chainhash.Hash, chainID int32) Proof {
	t.Helper()

	revRoot := reversed(headerHash)

	script := make([]byte, 0, len(MergedMiningHeader)+chainhash.HashSize+8)
	script = append(script, MergedMiningHeader...)
	script = append(script, revRoot[:]...)
	var sizeAndNonce [8]byte
	binary.LittleEndian.PutUint32(sizeAndNonce[0:4], 1) // size = 1<<0
	binary.LittleEndian.PutUint32(sizeAndNonce[4:8], 0) // nonce = 0
	script = append(script, sizeAndNonce[:]...)

	coinbase := Coinbase{Raw: []byte("fake-coinbase-tx"), ScriptSig: script}

	wantIndex := expectedChainMerkleIndex(0, uint32(chainID), 0)
	require.Equal(t, uint32(0), wantIndex, "test assumes an empty chain branch needs slot 0")

	parent := wire.PureHeader{
		MerkleRoot: coinbase.TxHash(),
		Bits:       0x207fffff,
	}
	parentTarget, err := bitsToTarget(parent.Bits)
	require.NoError(t, err)
	for hashToBig(chainhash.HashH(parent.Bytes())).Cmp(parentTarget) > 0 {
		parent.Nonce++
	}

	return Proof{
		Coinbase:       coinbase,
		CoinbaseBranch: MerkleBranch{},
		ChainBranch:    MerkleBranch{},
		ParentHeader:   parent,
	}
}

func TestVerifyAcceptsValidProof(t *testing.T) {
	headerHash := chainhash.HashH([]byte("our-header"))
	p := buildValidProof(t, headerHash, 1)
	require.NoError(t, p.Verify(headerHash, 1))
}

func TestVerifyRejectsWrongChainID(t *testing.T) {
	headerHash := chainhash.HashH([]byte("our-header"))
	p := buildValidProof(t, headerHash, 1)

	// With an empty chain branch every chain id maps to slot 0, so give the
	// proof a one-level branch, where ids 1 and 2 get different slots.
	p.ChainBranch = MerkleBranch{
		Hashes:   []chainhash.Hash{chainhash.HashH([]byte("other-chain"))},
		SideMask: expectedChainMerkleIndex(0, 1, 1),
	}
	require.NotEqual(t, p.ChainBranch.SideMask, expectedChainMerkleIndex(0, 2, 1))
	revRoot := reversed(p.ChainBranch.Root(headerHash))
	script := append([]byte{}, MergedMiningHeader...)
	script = append(script, revRoot[:]...)
	var sizeAndNonce [8]byte
	binary.LittleEndian.PutUint32(sizeAndNonce[0:4], 2) // size = 1<<1
	script = append(script, sizeAndNonce[:]...)
	p.Coinbase.ScriptSig = script
	require.NoError(t, p.Verify(headerHash, 1))

	err := p.Verify(headerHash, 2)
	require.Error(t, err)
}

func TestVerifyRejectsMissingChainRootInCoinbase(t *testing.T) {
	headerHash := chainhash.HashH([]byte("our-header"))
	p := buildValidProof(t, headerHash, 1)
	p.Coinbase.ScriptSig = []byte("no commitment here at all")
	err := p.Verify(headerHash, 1)
	require.Error(t, err)
}

func TestVerifyRejectsOversizedCoinbase(t *testing.T) {
	headerHash := chainhash.HashH([]byte("our-header"))
	p := buildValidProof(t, headerHash, 1)
	p.Coinbase.Raw = make([]byte, MaxCoinbaseSize+1)
	err := p.Verify(headerHash, 1)
	require.Error(t, err)
}

func TestVerifyRejectsNonGenerateCoinbaseBranch(t *testing.T) {
	headerHash := chainhash.HashH([]byte("our-header"))
	p := buildValidProof(t, headerHash, 1)
	p.CoinbaseBranch.SideMask = 1
	err := p.Verify(headerHash, 1)
	require.Error(t, err)
}

func TestProofSerializeRoundTrip(t *testing.T) {
	headerHash := chainhash.HashH([]byte("our-header"))
	p := buildValidProof(t, headerHash, 1)

	var buf bytes.Buffer
	require.NoError(t, p.Serialize(&buf))

	var got Proof
	require.NoError(t, got.Deserialize(bytes.NewReader(buf.Bytes())))
	require.Equal(t, p.Coinbase.Raw, got.Coinbase.Raw)
	require.Equal(t, p.Coinbase.ScriptSig, got.Coinbase.ScriptSig)
	require.Equal(t, p.ParentHeader.Bits, got.ParentHeader.Bits)
	require.NoError(t, got.Verify(headerHash, 1))
}
