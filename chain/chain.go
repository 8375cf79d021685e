// Copyright (c) 2024 The Flokicoin developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package chain

import (
	"fmt"
	"math/big"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/xayachi/headerchain/chaincfg"
	"github.com/xayachi/headerchain/chainhash"
	"github.com/xayachi/headerchain/headerfile"
)

// ForksDirName is the subdirectory forked chains' files live in.
const ForksDirName = "forks"

// BestChainFileName is the best chain's backing file name.
const BestChainFileName = "blockchain_headers"

// tipStaleAfter is how old the tip's timestamp may be before the chain is
// considered stale (spec §6's is_tip_stale).
const tipStaleAfter = 8 * time.Hour

// Chain is a fork-aware, file-backed span of the header chain: either the
// best chain (forkpoint 0, no parent) or a fork branching off some parent
// chain at a height above the last checkpoint.
//
// Locking: each Chain has its own mutex guarding its Go-level fields
// (forkpoint, forkpointHash, prevHash, parent) and serializing its own
// save/verify calls. The backing headerfile.File has its own internal
// lock for actual I/O. To avoid deadlock, code that must touch two chains
// at once (only SwapWithParent does) always locks the child before the
// parent, matching spec §5's "chain lock first, then registry lock"
// ordering generalized to "descendant before ancestor".
type Chain struct {
	mu sync.Mutex

	params *chaincfg.Params
	reg    Registry

	forkpoint     int32
	forkpointHash chainhash.Hash
	prevHash      chainhash.Hash
	hasPrev       bool

	parent *Chain

	file *headerfile.File
}

// NewBestChain opens (creating if necessary) the best chain's backing
// file under dir, preallocating the checkpointed prefix sparsely per
// spec invariant 5. It does not register the chain; the caller does.
func NewBestChain(params *chaincfg.Params, reg Registry, dir string) (*Chain, error) {
	path := filepath.Join(dir, BestChainFileName)
	f, err := headerfile.Open(path, DiskHeaderLen)
	if err != nil {
		return nil, err
	}
	c := &Chain{
		params:        params,
		reg:           reg,
		forkpoint:     0,
		forkpointHash: params.GenesisHash,
		file:          f,
	}
	length := int64(DiskHeaderLen) * chaincfg.BlocksPerCheckpoint * int64(len(params.Checkpoints))
	if length > 0 {
		if err := f.EnsurePreallocated(length); err != nil {
			return nil, err
		}
	}
	return c, nil
}

// Fork creates a new chain branching off parent at header's height. The
// caller-supplied parent is not required to be registry-resident (spec §9
// open question, kept intentional); Fork does verify parent.CanConnect
// itself so a caller can't fork with a header that wouldn't actually
// attach.
func Fork(parent *Chain, header *Header, params *chaincfg.Params, reg Registry, dir string) (*Chain, error) {
	if header.Height <= params.MaxCheckpoint() {
		panicInvariant("fork: forkpoint %d at or below max checkpoint %d", header.Height, params.MaxCheckpoint())
	}
	if !parent.CanConnect(header, false, false) {
		return nil, ruleErrorf(ErrVerificationCode, "fork: header at height %d does not connect to parent", header.Height)
	}

	firstHash := HashHeader(header)
	path := forkFilePath(dir, header.Height, header.PrevBlock, firstHash)
	f, err := headerfile.Open(path, DiskHeaderLen)
	if err != nil {
		return nil, err
	}

	c := &Chain{
		params:        params,
		reg:           reg,
		forkpoint:     header.Height,
		forkpointHash: firstHash,
		prevHash:      header.PrevBlock,
		hasPrev:       true,
		parent:        parent,
		file:          f,
	}

	work, err := parent.GetChainwork(header.Height - 1)
	if err != nil {
		return nil, err
	}
	headerWork, err := ChainworkOfHeader(header)
	if err != nil {
		return nil, err
	}
	header.Chainwork = new(big.Int).Add(work, headerWork)

	disk, err := SerializeDisk(header)
	if err != nil {
		return nil, err
	}
	if err := f.Write(disk, 0, true); err != nil {
		return nil, err
	}
	return c, nil
}

// OpenFork reopens a fork's existing backing file at path during startup
// scanning (spec §4.E step 3), deriving forkpointHash from the first
// record already on disk rather than writing one. The caller is
// responsible for verifying the result (first header hashes to the name
// embedded in the file name, and connects to parent) before registering
// it; OpenFork itself does not validate anything beyond "the file has a
// readable first record".
func OpenFork(parent *Chain, forkpoint int32, prevHash chainhash.Hash, path string, params *chaincfg.Params, reg Registry) (*Chain, error) {
	f, err := headerfile.Open(path, DiskHeaderLen)
	if err != nil {
		return nil, err
	}
	rec, err := f.ReadRecord(0)
	if err != nil {
		return nil, err
	}
	if rec == nil {
		return nil, missingHeader(forkpoint)
	}
	hdr, err := DeserializeDisk(rec, forkpoint)
	if err != nil {
		return nil, err
	}
	return &Chain{
		params:        params,
		reg:           reg,
		forkpoint:     forkpoint,
		forkpointHash: HashHeader(hdr),
		prevHash:      prevHash,
		hasPrev:       true,
		parent:        parent,
		file:          f,
	}, nil
}

// forkFilePath builds the fork2_<forkpoint>_<prevHash>_<firstHash> name,
// with leading zeros stripped from both hash components.
func forkFilePath(dir string, forkpoint int32, prevHash, firstHash chainhash.Hash) string {
	name := fmt.Sprintf("fork2_%d_%s_%s", forkpoint, stripLeadingZeros(prevHash.String()), stripLeadingZeros(firstHash.String()))
	return filepath.Join(dir, ForksDirName, name)
}

func stripLeadingZeros(s string) string {
	trimmed := strings.TrimLeft(s, "0")
	if trimmed == "" {
		return "0"
	}
	return trimmed
}

// ID returns the chain's identity: its forkpoint hash.
func (c *Chain) ID() chainhash.Hash {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.forkpointHash
}

// Forkpoint returns the height of the first header this chain owns.
func (c *Chain) Forkpoint() int32 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.forkpoint
}

// PrevHash returns the hash at forkpoint-1, and false for the best chain.
func (c *Chain) PrevHash() (chainhash.Hash, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.prevHash, c.hasPrev
}

// Parent returns the chain this one branches off, nil for the best chain.
func (c *Chain) Parent() *Chain {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.parent
}

// Path returns the chain's current backing file path. Never cache this
// across calls: a swap renames files under live Chain objects.
func (c *Chain) Path() string {
	return c.file.Path()
}

// Size returns the number of records in this chain's own file (not
// including anything delegated to a parent).
func (c *Chain) Size() int64 {
	return c.file.Size()
}

// Height returns the height of the last header this chain holds.
func (c *Chain) Height() int32 {
	c.mu.Lock()
	fp := c.forkpoint
	c.mu.Unlock()
	return fp + int32(c.file.Size()) - 1
}

// CheckHash reports whether this chain's header at height h hashes to
// want.
func (c *Chain) CheckHash(h int32, want chainhash.Hash) bool {
	got, err := c.GetHash(h)
	return err == nil && got.IsEqual(&want)
}

// ReadHeader reads the header at height h, returning (nil, nil) if it is
// out of this chain's range or absent from a sparse-preallocated slot.
// Heights below this chain's forkpoint are delegated to the parent.
func (c *Chain) ReadHeader(h int32) (*Header, error) {
	if h < 0 {
		return nil, nil
	}
	c.mu.Lock()
	fp := c.parent
	forkpoint := c.forkpoint
	c.mu.Unlock()

	if h < forkpoint {
		if fp == nil {
			return nil, nil
		}
		return fp.ReadHeader(h)
	}
	if h > c.Height() {
		return nil, nil
	}
	raw, err := c.file.ReadRecord(int64(h - forkpoint))
	if err != nil {
		return nil, err
	}
	if raw == nil {
		return nil, nil
	}
	return DeserializeDisk(raw, h)
}

// GetHash returns the hash of the header at height h. h == -1 yields the
// all-zero hash (the "previous hash" of genesis); h == 0 yields the
// configured genesis hash; checkpoint-boundary heights resolve from
// configuration without touching the file.
func (c *Chain) GetHash(h int32) (chainhash.Hash, error) {
	if h == -1 {
		return chainhash.Hash{}, nil
	}
	if h == 0 {
		return c.params.GenesisHash, nil
	}
	if h <= c.params.MaxCheckpoint() && (h+1)%chaincfg.BlocksPerCheckpoint == 0 {
		if cp, ok := c.params.CheckpointAt(h); ok {
			return cp.Hash, nil
		}
	}
	hdr, err := c.ReadHeader(h)
	if err != nil {
		return chainhash.Hash{}, err
	}
	if hdr == nil {
		return chainhash.Hash{}, missingHeader(h)
	}
	return HashHeader(hdr), nil
}

// GetChainwork returns the cumulative chainwork through height h.
func (c *Chain) GetChainwork(h int32) (*big.Int, error) {
	if h == -1 {
		return big.NewInt(0), nil
	}
	hdr, err := c.ReadHeader(h)
	if err != nil {
		return nil, err
	}
	if hdr != nil {
		if hdr.Chainwork == nil {
			return nil, fmt.Errorf("chain: stored header at height %d has no chainwork", h)
		}
		return hdr.Chainwork, nil
	}
	if h <= c.params.MaxCheckpoint() && (h+1)%chaincfg.BlocksPerCheckpoint == 0 {
		if cp, ok := c.params.CheckpointAt(h); ok {
			return cp.Chainwork, nil
		}
	}
	return nil, missingHeader(h)
}

// Chainwork returns the cumulative chainwork at this chain's tip.
func (c *Chain) Chainwork() (*big.Int, error) {
	return c.GetChainwork(c.Height())
}

// VerifyHeader checks h against the expected previous hash and target,
// per spec §4.D's verify_header: hash match (if expectedHash given),
// prev-hash linkage, the consensus-mandated zero pure bits, the target
// (skipped on testnet beyond this point), and AuxPoW once above the
// checkpoint boundary.
func (c *Chain) VerifyHeader(h *Header, prevHash chainhash.Hash, target *big.Int, expectedHash *chainhash.Hash, skipAuxPow bool) error {
	hash := HashHeader(h)
	if expectedHash != nil && !hash.IsEqual(expectedHash) {
		return ruleErrorf(ErrVerificationCode, "height %d: hash %s does not match expected %s", h.Height, hash, expectedHash)
	}
	if !h.PrevBlock.IsEqual(&prevHash) {
		return ruleErrorf(ErrVerificationCode, "height %d: prev block %s does not match expected %s", h.Height, h.PrevBlock, prevHash)
	}
	if h.Bits != 0 {
		return ruleErrorf(ErrVerificationCode, "height %d: non-zero bits 0x%08x in pure header", h.Height, h.Bits)
	}
	if c.params.TestNet {
		return nil
	}
	if TargetToBits(target) != h.PowData.Bits {
		return ruleErrorf(ErrVerificationCode, "height %d: bits 0x%08x does not match expected target", h.Height, h.PowData.Bits)
	}
	if h.Height <= c.params.MaxCheckpoint() {
		return nil
	}
	if skipAuxPow {
		return nil
	}
	if err := h.PowData.Verify(hash, c.params.AuxPowChainID); err != nil {
		return ruleErrorf(ErrVerificationCode, "height %d: auxpow: %v", h.Height, err)
	}
	return nil
}

// VerifyChunk verifies a run of 2016 consecutive full-form headers
// starting at index*2016 and returns their stripped (disk-form) bytes
// with cumulative chainwork filled in. extra_blocks (headers earlier in
// this same chunk, not yet on disk) are consulted first so later headers
// can use them as difficulty lookback.
func (c *Chain) VerifyChunk(index int32, data []byte) ([]byte, error) {
	startHeight := index * chaincfg.BlocksPerCheckpoint
	prevHash, err := c.GetHash(startHeight - 1)
	if err != nil {
		return nil, err
	}
	work, err := c.GetChainwork(startHeight - 1)
	if err != nil {
		return nil, err
	}

	earlier := make(map[int32]*Header)
	maxCheckpoint := c.params.MaxCheckpoint()
	haveCheckpoints := len(c.params.Checkpoints) > 0

	var out []byte
	offset := 0
	i := int32(0)
	for offset < len(data) {
		height := startHeight + i
		h, consumed, err := DeserializeFull(data[offset:], height, maxCheckpoint, haveCheckpoints, true)
		if err != nil {
			return nil, err
		}
		offset += consumed

		var expectedHash *chainhash.Hash
		eh, err := c.GetHash(height)
		if err == nil {
			expectedHash = &eh
		} else if _, ok := err.(*MissingHeaderError); !ok {
			return nil, err
		}

		target, err := c.GetExpectedTarget(h, earlier)
		if err != nil {
			return nil, err
		}
		if err := c.VerifyHeader(h, prevHash, target, expectedHash, false); err != nil {
			return nil, err
		}

		prevHash = HashHeader(h)
		headerWork, err := ChainworkOfHeader(h)
		if err != nil {
			return nil, err
		}
		work = new(big.Int).Add(work, headerWork)
		h.Chainwork = work

		disk, err := SerializeDisk(h)
		if err != nil {
			return nil, err
		}
		out = append(out, disk...)
		earlier[height] = h
		i++
	}
	return out, nil
}

// SaveChunk writes a chunk's stripped (disk-form) bytes, produced by
// VerifyChunk, to this chain's file, then reorgs if the write caused this
// chain to overtake its parent.
func (c *Chain) SaveChunk(index int32, data []byte) error {
	c.mu.Lock()
	forkpoint := c.forkpoint
	parent := c.parent
	c.mu.Unlock()

	if int(index) < len(c.params.Checkpoints) && parent != nil {
		return parent.SaveChunk(index, data)
	}

	deltaHeight := index*chaincfg.BlocksPerCheckpoint - forkpoint
	if deltaHeight < 0 {
		drop := int(-deltaHeight) * DiskHeaderLen
		if drop > len(data) {
			return ruleErrorf(ErrInvalidHeaderCode, "save chunk %d: straddles forkpoint by more than the chunk itself", index)
		}
		data = data[drop:]
		deltaHeight = 0
	}

	truncate := int(index) >= len(c.params.Checkpoints)
	if err := c.file.Write(data, int64(deltaHeight)*int64(DiskHeaderLen), truncate); err != nil {
		return err
	}
	return c.SwapWithParent()
}

// SaveHeader appends a single header, computing its cumulative chainwork
// from the current tip, then reorgs if necessary. h.Height must equal
// forkpoint + current size (append-only).
func (c *Chain) SaveHeader(h *Header) error {
	c.mu.Lock()
	forkpoint := c.forkpoint
	c.mu.Unlock()

	size := c.file.Size()
	if int64(h.Height-forkpoint) != size {
		panicInvariant("save_header: height %d does not extend chain at forkpoint %d, size %d", h.Height, forkpoint, size)
	}

	prevWork, err := c.GetChainwork(h.Height - 1)
	if err != nil {
		return err
	}
	headerWork, err := ChainworkOfHeader(h)
	if err != nil {
		return err
	}
	h.Chainwork = new(big.Int).Add(prevWork, headerWork)

	disk, err := SerializeDisk(h)
	if err != nil {
		return err
	}
	if err := c.file.Write(disk, size*int64(DiskHeaderLen), false); err != nil {
		return err
	}
	return c.SwapWithParent()
}

// CanConnect reports whether h can be appended to this chain, swallowing
// every internal failure into false per spec §9's exception-to-result
// conversion note.
func (c *Chain) CanConnect(h *Header, checkHeight bool, skipAuxPow bool) bool {
	if checkHeight && h.Height != c.Height()+1 {
		return false
	}
	if h.Height == 0 {
		hash := HashHeader(h)
		if !hash.IsEqual(&c.params.GenesisHash) {
			return false
		}
	}
	prevHash, err := c.GetHash(h.Height - 1)
	if err != nil {
		return false
	}
	if !h.PrevBlock.IsEqual(&prevHash) {
		return false
	}
	target, err := c.GetExpectedTarget(h, nil)
	if err != nil {
		return false
	}
	if err := c.VerifyHeader(h, prevHash, target, nil, skipAuxPow); err != nil {
		return false
	}
	return true
}

// HeaderAtTip reads the header at this chain's current height.
func (c *Chain) HeaderAtTip() (*Header, error) {
	return c.ReadHeader(c.Height())
}

// IsTipStale reports whether this chain has no tip, or its tip's
// timestamp is more than 8 hours old.
func (c *Chain) IsTipStale(now time.Time) bool {
	tip, err := c.HeaderAtTip()
	if err != nil || tip == nil {
		return true
	}
	return now.Sub(time.Unix(int64(tip.Timestamp), 0)) > tipStaleAfter
}

// GetName returns a short identifier for logging: forkpoint and id.
func (c *Chain) GetName() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return fmt.Sprintf("fork2_%d_%s", c.forkpoint, c.forkpointHash)
}

// GetMaxForkpoint returns the deepest forkpoint across this chain and its
// ancestors (always c.Forkpoint() itself, since forkpoints strictly
// increase with depth away from the best chain, but spelled out for
// parity with the Python Blockchain.get_max_forkpoint helper).
func (c *Chain) GetMaxForkpoint() int32 {
	return c.Forkpoint()
}

// GetParentHeights returns the forkpoint height of every ancestor, best
// chain last.
func (c *Chain) GetParentHeights() []int32 {
	var heights []int32
	for cur := c.Parent(); cur != nil; cur = cur.Parent() {
		heights = append(heights, cur.Forkpoint())
	}
	return heights
}

// GetBranchSize returns the number of headers this chain itself owns
// (excludes anything delegated to the parent).
func (c *Chain) GetBranchSize() int64 {
	return c.Size()
}

// Reparent updates this chain's parent pointer. Used by the registry
// after a swap, when a sibling's connection point now falls within the
// range the promoted chain owns instead of the demoted one.
func (c *Chain) Reparent(newParent *Chain) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.parent = newParent
}

// Reset discards every record in this chain's own file. Used by chainreg
// at startup when the best chain's stored tail is inconsistent with its
// checkpoints (spec §4.E step 2).
func (c *Chain) Reset() error {
	return c.file.Reset()
}

// GetHeightOfLastCommonBlockWithChain returns the highest height at which
// c and other share an ancestor, by walking up whichever of the two has
// the deeper forkpoint until both forkpoints agree.
func GetHeightOfLastCommonBlockWithChain(a, b *Chain) int32 {
	for a.Forkpoint() > b.Forkpoint() {
		a = a.Parent()
		if a == nil {
			return -1
		}
	}
	for b.Forkpoint() > a.Forkpoint() {
		b = b.Parent()
		if b == nil {
			return -1
		}
	}
	return a.Forkpoint() - 1
}
