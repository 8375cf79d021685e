// Copyright (c) 2024 The Flokicoin developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package chain

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/xayachi/headerchain/chainhash"
)

func buildAndSaveBestChain(t *testing.T, n int) (*Chain, []*Header) {
	t.Helper()

	genesis := mkHeader(0, chainhash.Hash{}, 0)
	genesisHash := HashHeader(genesis)

	params := testParams()
	params.GenesisHash = genesisHash

	reg := &fakeRegistry{}
	c, err := NewBestChain(params, reg, t.TempDir())
	require.NoError(t, err)

	headers := make([]*Header, 0, n)
	prevHash := chainhash.Hash{}
	for h := int32(0); h < int32(n); h++ {
		hdr := mkHeader(h, prevHash, uint32(h))
		require.NoError(t, c.SaveHeader(hdr))
		headers = append(headers, hdr)
		prevHash = HashHeader(hdr)
	}
	return c, headers
}

func TestSaveHeaderAndReadBack(t *testing.T) {
	c, headers := buildAndSaveBestChain(t, 5)

	require.Equal(t, int32(4), c.Height())
	for i, want := range headers {
		got, err := c.ReadHeader(int32(i))
		require.NoError(t, err)
		require.Equal(t, HashHeader(want), HashHeader(got))

		gotHash, err := c.GetHash(int32(i))
		require.NoError(t, err)
		require.Equal(t, HashHeader(want), gotHash)
	}
}

func TestChainworkAccumulates(t *testing.T) {
	c, headers := buildAndSaveBestChain(t, 3)

	work0, err := c.GetChainwork(0)
	require.NoError(t, err)
	require.Equal(t, 0, work0.Cmp(headerWork(headers[0])))

	workTip, err := c.GetChainwork(c.Height())
	require.NoError(t, err)
	workPrev, err := c.GetChainwork(c.Height() - 1)
	require.NoError(t, err)
	delta := new(big.Int).Sub(workTip, workPrev)
	require.Equal(t, 0, delta.Cmp(headerWork(headers[len(headers)-1])))
}

func TestSaveHeaderRejectsNonAppendHeight(t *testing.T) {
	c, _ := buildAndSaveBestChain(t, 2)
	bad := mkHeader(10, chainhash.Hash{}, 0)
	require.Panics(t, func() {
		c.SaveHeader(bad)
	})
}

func TestCanConnectRejectsWrongPrevHash(t *testing.T) {
	c, _ := buildAndSaveBestChain(t, 2)
	bad := mkHeader(2, chainhash.Hash{0xff}, 9)
	require.False(t, c.CanConnect(bad, true, true))
}

func TestMissingHeaderBeyondTip(t *testing.T) {
	c, _ := buildAndSaveBestChain(t, 2)
	hdr, err := c.ReadHeader(50)
	require.NoError(t, err)
	require.Nil(t, hdr)

	_, err = c.GetHash(50)
	require.Error(t, err)
}

func TestForkAndSwapWithParentPromotesHigherWork(t *testing.T) {
	best, headers := buildAndSaveBestChain(t, 3)

	reg := &fakeRegistry{count: 2}
	forkPoint := int32(1)
	forkHeader := mkHeader(forkPoint, HashHeader(headers[0]), 999)

	fork, err := Fork(best, forkHeader, best.params, reg, t.TempDir())
	require.NoError(t, err)

	// Extend the fork three blocks past the best chain's current tip so its
	// cumulative chainwork overtakes it once saved.
	prev := HashHeader(forkHeader)
	var last *Header
	for h := forkPoint + 1; h <= 5; h++ {
		hdr := mkHeader(h, prev, uint32(h)*7)
		require.NoError(t, fork.SaveHeader(hdr))
		prev = HashHeader(hdr)
		last = hdr
	}

	forkWork, err := fork.Chainwork()
	require.NoError(t, err)
	bestWork, err := best.Chainwork()
	require.NoError(t, err)
	require.True(t, forkWork.Cmp(bestWork) > 0)

	require.NoError(t, fork.SwapWithParent())

	// fork is now the (shallow) best chain: forkpoint 0, no parent.
	require.Equal(t, int32(0), fork.Forkpoint())
	require.Nil(t, fork.Parent())
	require.Equal(t, last.Height, fork.Height())

	gotTip, err := fork.ReadHeader(last.Height)
	require.NoError(t, err)
	require.Equal(t, HashHeader(last), HashHeader(gotTip))

	// best is now demoted to a fork at the old fork's forkpoint.
	require.Equal(t, forkPoint, best.Forkpoint())
	require.Equal(t, fork, best.Parent())
}
