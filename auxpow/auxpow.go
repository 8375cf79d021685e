// Copyright (c) 2014 Daniel Kraft
// Copyright (c) 2024 The Flokicoin developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package auxpow implements verification of merge-mining (AuxPoW) proofs:
// a header on this chain is mined as the coinbase of a block on some other
// (parent) chain, and the proof demonstrates that inclusion. The rest of
// the store treats a Proof as opaque beyond Verify; no mempool or script
// engine is needed because only the coinbase's signature script and
// merkle position are inspected, never executed.
package auxpow

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"math/big"

	"github.com/xayachi/headerchain/chainhash"
	"github.com/xayachi/headerchain/wire"
)

// MaxChainMerkleBranches bounds the chain merkle branch so a malicious
// proof can't force unbounded hashing.
const MaxChainMerkleBranches = 30

// MaxCoinbaseSize bounds the size of the serialized coinbase transaction
// accepted inside a proof.
const MaxCoinbaseSize = 100000

// MergedMiningHeader is the byte marker Namecoin-style merge mining places
// in the coinbase scriptSig immediately before the chain merkle root.
var MergedMiningHeader = []byte{0xfa, 0xbe, 'm', 'm'}

// MerkleBranch is a standard Merkle authentication path: the sibling
// hashes from a leaf up to some root, plus a bitmask selecting, at each
// level, whether the running hash is the left or right input.
type MerkleBranch struct {
	Hashes   []chainhash.Hash
	SideMask uint32
}

// Size returns the branch depth.
func (mb *MerkleBranch) Size() int { return len(mb.Hashes) }

// Root computes the Merkle root obtained by walking component up through
// the branch.
func (mb *MerkleBranch) Root(component chainhash.Hash) chainhash.Hash {
	h := component
	mask := mb.SideMask
	var buf [chainhash.HashSize * 2]byte
	for _, sibling := range mb.Hashes {
		if mask&1 != 0 {
			copy(buf[0:chainhash.HashSize], sibling[:])
			copy(buf[chainhash.HashSize:], h[:])
		} else {
			copy(buf[0:chainhash.HashSize], h[:])
			copy(buf[chainhash.HashSize:], sibling[:])
		}
		h = chainhash.HashH(buf[:])
		mask >>= 1
	}
	return h
}

// HasRoot reports whether walking component up through the branch yields
// root.
func (mb *MerkleBranch) HasRoot(component, root chainhash.Hash) bool {
	got := mb.Root(component)
	return got.IsEqual(&root)
}

func (mb *MerkleBranch) serialize(w *bytes.Buffer) error {
	if err := wire.WriteVarInt(w, uint64(len(mb.Hashes))); err != nil {
		return err
	}
	for i := range mb.Hashes {
		if _, err := w.Write(mb.Hashes[i][:]); err != nil {
			return err
		}
	}
	var side [4]byte
	binary.LittleEndian.PutUint32(side[:], mb.SideMask)
	_, err := w.Write(side[:])
	return err
}

func (mb *MerkleBranch) deserialize(r *bytes.Reader) error {
	n, err := wire.ReadVarInt(r)
	if err != nil {
		return err
	}
	if n > MaxChainMerkleBranches {
		return fmt.Errorf("auxpow: merkle branch too long: %d", n)
	}
	mb.Hashes = make([]chainhash.Hash, n)
	for i := range mb.Hashes {
		if _, err := r.Read(mb.Hashes[i][:]); err != nil {
			return err
		}
	}
	var side [4]byte
	if _, err := r.Read(side[:]); err != nil {
		return err
	}
	mb.SideMask = binary.LittleEndian.Uint32(side[:])
	return nil
}

// Coinbase is a minimal, opaque view of the parent chain's coinbase
// transaction: enough to locate the merge-mining tag and hash the
// transaction, without a transaction/script engine (non-goals for this
// store).
type Coinbase struct {
	// Raw is the full serialized transaction, used only to compute TxHash.
	Raw []byte
	// ScriptSig is the first input's signature script, where the
	// merge-mining commitment lives.
	ScriptSig []byte
}

// TxHash returns the double-SHA256 identifier of the raw transaction.
func (c *Coinbase) TxHash() chainhash.Hash {
	return chainhash.HashH(c.Raw)
}

func (c *Coinbase) serialize(w *bytes.Buffer) error {
	if err := wire.WriteVarInt(w, uint64(len(c.Raw))); err != nil {
		return err
	}
	if _, err := w.Write(c.Raw); err != nil {
		return err
	}
	if err := wire.WriteVarInt(w, uint64(len(c.ScriptSig))); err != nil {
		return err
	}
	_, err := w.Write(c.ScriptSig)
	return err
}

func (c *Coinbase) deserialize(r *bytes.Reader) error {
	n, err := wire.ReadVarInt(r)
	if err != nil {
		return err
	}
	if n > MaxCoinbaseSize {
		return fmt.Errorf("auxpow: coinbase too large: %d", n)
	}
	c.Raw = make([]byte, n)
	if _, err := r.Read(c.Raw); err != nil {
		return err
	}
	n, err = wire.ReadVarInt(r)
	if err != nil {
		return err
	}
	if n > MaxCoinbaseSize {
		return fmt.Errorf("auxpow: coinbase script too large: %d", n)
	}
	c.ScriptSig = make([]byte, n)
	_, err = r.Read(c.ScriptSig)
	return err
}

// Proof is a merge-mining proof: the parent chain's coinbase transaction,
// its Merkle path to the parent block's merkle root, the Merkle path of
// this chain's header hash into the (possibly multi-chain) merge-mining
// tree, and the parent block header itself.
type Proof struct {
	Coinbase       Coinbase
	CoinbaseBranch MerkleBranch
	ChainBranch    MerkleBranch
	ParentHeader   wire.PureHeader
}

// Serialize writes the proof in the on-the-wire (chunk) encoding used by
// the full header form.
func (p *Proof) Serialize(buf *bytes.Buffer) error {
	if err := p.Coinbase.serialize(buf); err != nil {
		return err
	}
	if err := p.CoinbaseBranch.serialize(buf); err != nil {
		return err
	}
	if err := p.ChainBranch.serialize(buf); err != nil {
		return err
	}
	return p.ParentHeader.Serialize(buf)
}

// Deserialize parses a proof previously written by Serialize.
func (p *Proof) Deserialize(r *bytes.Reader) error {
	if err := p.Coinbase.deserialize(r); err != nil {
		return err
	}
	if err := p.CoinbaseBranch.deserialize(r); err != nil {
		return err
	}
	if err := p.ChainBranch.deserialize(r); err != nil {
		return err
	}
	return p.ParentHeader.Deserialize(r)
}

// twoFiveSix is 2**256, used by the parent-header work sanity check.
var twoFiveSix = new(big.Int).Lsh(big.NewInt(1), 256)

// bitsToTarget is a private copy of the compact-float decode used by the
// chain package; kept local so this package never depends on chain (it is
// the dependency, not the dependent) or on the external difficulty engine.
func bitsToTarget(bits uint32) (*big.Int, error) {
	exp := bits >> 24
	mant := bits & 0x007fffff
	if bits&0x00800000 != 0 {
		return nil, fmt.Errorf("auxpow: negative target bit set")
	}
	if exp > 0x20 {
		return nil, fmt.Errorf("auxpow: target exponent %d out of range", exp)
	}
	target := new(big.Int).SetUint64(uint64(mant))
	if exp <= 3 {
		target.Rsh(target, uint(8*(3-exp)))
	} else {
		target.Lsh(target, uint(8*(exp-3)))
	}
	return target, nil
}

// Verify checks the proof against the header hash it claims to merge-mine
// and this chain's assigned merge-mining chain ID.
func (p *Proof) Verify(headerHash chainhash.Hash, chainID int32) error {
	if len(p.Coinbase.Raw) > MaxCoinbaseSize {
		return fmt.Errorf("auxpow: coinbase exceeds size limit")
	}
	if p.CoinbaseBranch.SideMask != 0 {
		return fmt.Errorf("auxpow: coinbase branch is not a generate")
	}
	if p.ChainBranch.Size() > MaxChainMerkleBranches {
		return fmt.Errorf("auxpow: chain merkle branch too long")
	}

	// The parent block's own proof of work must clear its declared target.
	parentHash := chainhash.HashH(p.ParentHeader.Bytes())
	parentTarget, err := bitsToTarget(p.ParentHeader.Bits)
	if err != nil {
		return fmt.Errorf("auxpow: parent header: %w", err)
	}
	if hashToBig(parentHash).Cmp(parentTarget) > 0 {
		return fmt.Errorf("auxpow: parent block does not satisfy its own target")
	}

	rootHash := p.ChainBranch.Root(headerHash)
	revRoot := reversed(rootHash)

	coinbaseHash := p.Coinbase.TxHash()
	if !p.CoinbaseBranch.HasRoot(coinbaseHash, p.ParentHeader.MerkleRoot) {
		return fmt.Errorf("auxpow: coinbase not included in parent block's merkle tree")
	}

	script := p.Coinbase.ScriptSig
	hashPos := bytes.Index(script, revRoot[:])
	if hashPos < 0 {
		return fmt.Errorf("auxpow: chain merkle root not found in coinbase")
	}

	headerPos := bytes.Index(script, MergedMiningHeader)
	if headerPos >= 0 {
		if bytes.Index(script[headerPos+1:], MergedMiningHeader) >= 0 {
			return fmt.Errorf("auxpow: multiple merge-mining headers in coinbase")
		}
		if headerPos+len(MergedMiningHeader) != hashPos {
			return fmt.Errorf("auxpow: merge-mining header not immediately before chain root")
		}
	} else if hashPos > 20 {
		return fmt.Errorf("auxpow: chain merkle root must start within first 20 bytes without a header tag")
	}

	paramsPos := hashPos + chainhash.HashSize
	if len(script)-paramsPos < 8 {
		return fmt.Errorf("auxpow: coinbase has no room for merge-mining params")
	}
	size := binary.LittleEndian.Uint32(script[paramsPos : paramsPos+4])
	if size != uint32(1)<<uint(p.ChainBranch.Size()) {
		return fmt.Errorf("auxpow: chain merkle branch size mismatch")
	}
	nonce := binary.LittleEndian.Uint32(script[paramsPos+4 : paramsPos+8])

	wantIndex := expectedChainMerkleIndex(nonce, uint32(chainID), uint32(p.ChainBranch.Size()))
	if p.ChainBranch.SideMask != wantIndex {
		return fmt.Errorf("auxpow: wrong chain merkle index: got %d want %d", p.ChainBranch.SideMask, wantIndex)
	}
	return nil
}

// expectedChainMerkleIndex derives the pseudo-random slot a chain with the
// given id must occupy in the shared merge-mining tree for a given nonce
// and tree height, matching the Namecoin/Xaya convention: deterministic
// per (size, nonce, chain id) so one proof can't be replayed for another
// chain sharing the same tree.
func expectedChainMerkleIndex(nonce, chainID, h uint32) uint32 {
	rand := nonce
	rand = rand*1103515245 + 12345
	rand += chainID
	rand = rand*1103515245 + 12345
	return rand % (uint32(1) << h)
}

func reversed(h chainhash.Hash) chainhash.Hash {
	var r chainhash.Hash
	for i, b := range h {
		r[chainhash.HashSize-1-i] = b
	}
	return r
}

func hashToBig(h chainhash.Hash) *big.Int {
	var reversedBuf [chainhash.HashSize]byte
	for i, b := range h {
		reversedBuf[chainhash.HashSize-1-i] = b
	}
	return new(big.Int).SetBytes(reversedBuf[:])
}
