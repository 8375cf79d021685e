// Copyright (c) 2024 The Flokicoin developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package chainreg

import (
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/xayachi/headerchain/chain"
	"github.com/xayachi/headerchain/chaincfg"
	"github.com/xayachi/headerchain/chainhash"
	"github.com/xayachi/headerchain/powdata"
)

func mustHash(t *testing.T, s string) chainhash.Hash {
	t.Helper()
	h, err := chainhash.NewHashFromStr(s)
	require.NoError(t, err)
	return *h
}

func hex64(pair string) string {
	out := ""
	for i := 0; i < 32; i++ {
		out += pair
	}
	return out
}

// testParams configures the hash of mkHeader(0, chainhash.Hash{}, 0) as the
// genesis hash, so tests that save that header at height 0 can connect
// height-1 headers to it.
func testParams(t *testing.T, dir string) *chaincfg.Params {
	return &chaincfg.Params{
		Name:          "testnet",
		HeadersDir:    dir,
		GenesisHash:   chain.HashHeader(mkHeader(0, chainhash.Hash{}, 0)),
		TestNet:       true,
		AuxPowChainID: 1,
	}
}

func mkHeader(height int32, prev chainhash.Hash, nonce uint32) *chain.Header {
	return &chain.Header{
		Version:   1,
		PrevBlock: prev,
		Height:    height,
		Nonce:     nonce,
		PowData:   powdata.PowData{Algo: powdata.AlgoSHA256D, Bits: 0x207fffff},
	}
}

func TestReadBlockchainsCreatesEmptyBestChain(t *testing.T) {
	dir := t.TempDir()
	params := testParams(t, dir)

	reg, err := ReadBlockchains(params)
	require.NoError(t, err)
	defer reg.Close()

	best := reg.GetBestChain()
	require.NotNil(t, best)
	require.Equal(t, int32(0), best.Forkpoint())
	require.Equal(t, int32(-1), best.Height())
}

func TestReadBlockchainsScansValidForkFile(t *testing.T) {
	dir := t.TempDir()
	params := testParams(t, dir)

	reg, err := ReadBlockchains(params)
	require.NoError(t, err)

	best := reg.GetBestChain()
	prevHash := chainhash.Hash{}
	var headers []*chain.Header
	for h := int32(0); h < 3; h++ {
		hdr := mkHeader(h, prevHash, uint32(h))
		require.NoError(t, best.SaveHeader(hdr))
		headers = append(headers, hdr)
		prevHash = chain.HashHeader(hdr)
	}

	forkHeader := mkHeader(1, chain.HashHeader(headers[0]), 999)
	_, err = reg.Fork(best, forkHeader)
	require.NoError(t, err)
	forkHash := chain.HashHeader(forkHeader)

	require.NoError(t, reg.Close())

	// Reopen the registry fresh: the fork-scan step must rediscover the
	// fork file left on disk by the previous instance.
	reg2, err := ReadBlockchains(params)
	require.NoError(t, err)
	defer reg2.Close()

	found := reg2.GetChainsThatContainHeader(1, forkHash)
	require.Len(t, found, 1)
	require.Equal(t, int32(1), found[0].Forkpoint())
}

func TestCheckHeaderFindsSavedHeader(t *testing.T) {
	dir := t.TempDir()
	params := testParams(t, dir)
	reg, err := ReadBlockchains(params)
	require.NoError(t, err)
	defer reg.Close()

	best := reg.GetBestChain()
	genesis := mkHeader(0, chainhash.Hash{}, 1)
	require.NoError(t, best.SaveHeader(genesis))
	hdr := mkHeader(1, chain.HashHeader(genesis), 2)
	require.NoError(t, best.SaveHeader(hdr))

	require.True(t, reg.CheckHeader(hdr))

	other := mkHeader(1, chain.HashHeader(genesis), 3)
	require.False(t, reg.CheckHeader(other))
}

func TestCanConnectAcceptsExtensionOfBestChain(t *testing.T) {
	dir := t.TempDir()
	params := testParams(t, dir)
	reg, err := ReadBlockchains(params)
	require.NoError(t, err)
	defer reg.Close()

	best := reg.GetBestChain()
	genesis := mkHeader(0, chainhash.Hash{}, 0)
	require.NoError(t, best.SaveHeader(genesis))

	next := mkHeader(1, chain.HashHeader(genesis), 2)
	require.True(t, reg.CanConnect(next))

	bad := mkHeader(1, chainhash.Hash{0xff}, 2)
	require.False(t, reg.CanConnect(bad))
}

func TestGetDirectChildrenAndMaxChild(t *testing.T) {
	dir := t.TempDir()
	params := testParams(t, dir)
	reg, err := ReadBlockchains(params)
	require.NoError(t, err)
	defer reg.Close()

	best := reg.GetBestChain()
	prevHash := chainhash.Hash{}
	var headers []*chain.Header
	for h := int32(0); h < 4; h++ {
		hdr := mkHeader(h, prevHash, uint32(h))
		require.NoError(t, best.SaveHeader(hdr))
		headers = append(headers, hdr)
		prevHash = chain.HashHeader(hdr)
	}

	fork1Header := mkHeader(1, chain.HashHeader(headers[0]), 111)
	fork1, err := reg.Fork(best, fork1Header)
	require.NoError(t, err)

	fork2Header := mkHeader(2, chain.HashHeader(headers[1]), 222)
	fork2, err := reg.Fork(best, fork2Header)
	require.NoError(t, err)

	children := reg.GetDirectChildren(best)
	require.Len(t, children, 2)

	max := reg.GetMaxChild(best)
	require.NotNil(t, max)
	require.Equal(t, fork2.Forkpoint(), max.Forkpoint())
	_ = fork1
}
