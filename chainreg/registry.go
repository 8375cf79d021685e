// Copyright (c) 2024 The Flokicoin developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package chainreg implements the process-wide chain registry (component
// E): the forkpoint-hash → Chain mapping, startup reconstruction from a
// headers directory, and the read-side queries every other subsystem
// goes through instead of touching individual chains directly.
package chainreg

import (
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/xayachi/headerchain/chain"
	"github.com/xayachi/headerchain/chaincfg"
	"github.com/xayachi/headerchain/chainhash"
)

// Registry is the process-wide forkpoint-hash → Chain mapping. A single
// mutex plays the role of spec §5's reentrant registry lock: nothing in
// this package recurses into a method that re-acquires it, so a plain
// sync.Mutex suffices without needing Go's nonexistent reentrant variant.
type Registry struct {
	mu     sync.Mutex
	params *chaincfg.Params
	chains map[chainhash.Hash]*chain.Chain

	index *hashIndex
}

// forkCandidate is a parsed (not yet validated) forks/ directory entry.
type forkCandidate struct {
	forkpoint int32
	prevHash  chainhash.Hash
	firstHash chainhash.Hash
	path      string
}

// ReadBlockchains constructs the best chain, runs the checkpoint
// consistency check, then scans forks/ for valid fork files, per spec
// §4.E's read_blockchains.
func ReadBlockchains(params *chaincfg.Params) (*Registry, error) {
	r := &Registry{
		params: params,
		chains: make(map[chainhash.Hash]*chain.Chain),
	}

	best, err := chain.NewBestChain(params, r, params.HeadersDir)
	if err != nil {
		return nil, err
	}
	r.register(best)

	if err := r.checkBestChainConsistency(best); err != nil {
		return nil, err
	}

	if err := r.scanForks(best); err != nil {
		return nil, err
	}

	r.index = openHashIndex(params.HeadersDir)
	r.index.rebuild(r.snapshot())

	return r, nil
}

// checkBestChainConsistency implements spec §4.E step 2: if the best
// chain extends past the checkpointed prefix, the header immediately
// above the last checkpoint must exist and connect to it; otherwise the
// file's post-checkpoint tail is untrustworthy and gets discarded.
func (r *Registry) checkBestChainConsistency(best *chain.Chain) error {
	maxCheckpoint := r.params.MaxCheckpoint()
	if best.Height() <= maxCheckpoint {
		return nil
	}
	hdr, err := best.ReadHeader(maxCheckpoint + 1)
	if err != nil {
		return err
	}
	if hdr == nil || !best.CanConnect(hdr, false, true) {
		log.Warnf("chainreg: best chain inconsistent with checkpoints above height %d, resetting", maxCheckpoint)
		return best.Reset()
	}
	return nil
}

// scanForks finds every valid fork2_<forkpoint>_<prevHash>_<firstHash>
// file under forks/, in ascending forkpoint order so a fork can always
// find its (already registered) parent, and unlinks anything that
// doesn't parse or doesn't verify.
func (r *Registry) scanForks(best *chain.Chain) error {
	forksDir := filepath.Join(r.params.HeadersDir, chain.ForksDirName)
	entries, err := os.ReadDir(forksDir)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return err
	}

	var candidates []forkCandidate
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		cand, ok := parseForkFileName(forksDir, e.Name())
		if !ok {
			continue
		}
		candidates = append(candidates, cand)
	}
	sort.Slice(candidates, func(i, j int) bool { return candidates[i].forkpoint < candidates[j].forkpoint })

	for _, cand := range candidates {
		parent := r.findByCheckHash(cand.forkpoint-1, cand.prevHash)
		if parent == nil {
			log.Warnf("chainreg: fork file %s has no registered parent, removing", cand.path)
			os.Remove(cand.path)
			continue
		}
		c, err := chain.OpenFork(parent, cand.forkpoint, cand.prevHash, cand.path, r.params, r)
		if err != nil {
			log.Warnf("chainreg: fork file %s unreadable, removing: %v", cand.path, err)
			os.Remove(cand.path)
			continue
		}
		hdr, err := c.ReadHeader(cand.forkpoint)
		if err != nil || hdr == nil {
			log.Warnf("chainreg: fork file %s missing its own first header, removing", cand.path)
			os.Remove(cand.path)
			continue
		}
		gotHash := chain.HashHeader(hdr)
		if !gotHash.IsEqual(&cand.firstHash) {
			log.Warnf("chainreg: fork file %s first header hash mismatch, removing", cand.path)
			os.Remove(cand.path)
			continue
		}
		if !parent.CanConnect(hdr, false, false) {
			log.Warnf("chainreg: fork file %s does not connect to its parent, removing", cand.path)
			os.Remove(cand.path)
			continue
		}
		r.register(c)
	}
	return nil
}

// parseForkFileName parses a forks/ entry name into its components.
// Files with any other shape, or containing a ".", are rejected.
func parseForkFileName(dir, name string) (forkCandidate, bool) {
	if strings.Contains(name, ".") {
		return forkCandidate{}, false
	}
	parts := strings.Split(name, "_")
	if len(parts) != 4 || parts[0] != "fork2" {
		return forkCandidate{}, false
	}
	forkpoint64, err := strconv.ParseInt(parts[1], 10, 32)
	if err != nil {
		return forkCandidate{}, false
	}
	prevHash, err := chainhash.NewHashFromStr(leftPadHex(parts[2]))
	if err != nil {
		return forkCandidate{}, false
	}
	firstHash, err := chainhash.NewHashFromStr(leftPadHex(parts[3]))
	if err != nil {
		return forkCandidate{}, false
	}
	return forkCandidate{
		forkpoint: int32(forkpoint64),
		prevHash:  *prevHash,
		firstHash: *firstHash,
		path:      filepath.Join(dir, name),
	}, true
}

// leftPadHex restores the leading zeros forkFilePath strips from a hash's
// hex display before parsing it back with chainhash.NewHashFromStr.
func leftPadHex(s string) string {
	if len(s) >= 64 {
		return s
	}
	return strings.Repeat("0", 64-len(s)) + s
}

func (r *Registry) register(c *chain.Chain) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.chains[c.ID()] = c
}

// findByCheckHash returns a registered chain whose CheckHash(h, want) is
// true, or nil. Caller must not hold r.mu.
func (r *Registry) findByCheckHash(h int32, want chainhash.Hash) *chain.Chain {
	for _, c := range r.snapshot() {
		if c.CheckHash(h, want) {
			return c
		}
	}
	return nil
}

// snapshot copies the current chain set under the lock, per spec §5's
// "read-side queries snapshot under the lock before iterating".
func (r *Registry) snapshot() []*chain.Chain {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*chain.Chain, 0, len(r.chains))
	for _, c := range r.chains {
		out = append(out, c)
	}
	return out
}

// Count returns the number of chains currently registered, satisfying
// chain.Registry.
func (r *Registry) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.chains)
}

// Reindex satisfies chain.Registry: it runs once per swap, moving both
// map entries to the objects' new identities and reparenting any sibling
// whose connection point now falls within the promoted chain's range.
func (r *Registry) Reindex(oldParentID, oldChildID chainhash.Hash, promoted, demoted *chain.Chain) {
	r.mu.Lock()
	delete(r.chains, oldParentID)
	delete(r.chains, oldChildID)
	r.chains[promoted.ID()] = promoted
	r.chains[demoted.ID()] = demoted
	siblings := make([]*chain.Chain, 0, len(r.chains))
	for _, c := range r.chains {
		if c != promoted && c != demoted {
			siblings = append(siblings, c)
		}
	}
	r.mu.Unlock()

	for _, sib := range siblings {
		if sib.Parent() != demoted {
			continue
		}
		prevHash, ok := sib.PrevHash()
		if !ok {
			continue
		}
		if promoted.CheckHash(sib.Forkpoint()-1, prevHash) {
			sib.Reparent(promoted)
		}
	}
}

// CheckHeader reports whether h matches this store's record of its own
// height, consulting the hash index before falling back to a scan.
func (r *Registry) CheckHeader(h *chain.Header) bool {
	hash := chain.HashHeader(h)
	if e, ok := r.index.get(hash); ok {
		if c := r.byID(e.chainID); c != nil && c.CheckHash(h.Height, hash) {
			return true
		}
	}
	for _, c := range r.snapshot() {
		if c.CheckHash(h.Height, hash) {
			return true
		}
	}
	return false
}

// CanConnect reports whether h can be appended to any registered chain.
func (r *Registry) CanConnect(h *chain.Header) bool {
	for _, c := range r.snapshot() {
		if c.CanConnect(h, true, false) {
			return true
		}
	}
	return false
}

// GetChainsThatContainHeader returns every registered chain holding hash
// at height, sorted by chainwork descending.
func (r *Registry) GetChainsThatContainHeader(height int32, hash chainhash.Hash) []*chain.Chain {
	var out []*chain.Chain
	for _, c := range r.snapshot() {
		if c.CheckHash(height, hash) {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		wi, erri := out[i].Chainwork()
		wj, errj := out[j].Chainwork()
		if erri != nil || errj != nil {
			return false
		}
		return wi.Cmp(wj) > 0
	})
	return out
}

// Fork creates and registers a new chain branching off parent at
// header's height, delegating the actual verification/write to
// chain.Fork.
func (r *Registry) Fork(parent *chain.Chain, header *chain.Header) (*chain.Chain, error) {
	c, err := chain.Fork(parent, header, r.params, r, r.params.HeadersDir)
	if err != nil {
		return nil, err
	}
	r.register(c)
	return c, nil
}

// GetBestChain returns the chain with forkpoint 0.
func (r *Registry) GetBestChain() *chain.Chain {
	return r.byID(r.params.GenesisHash)
}

// GetDirectChildren returns every registered chain whose parent is c.
func (r *Registry) GetDirectChildren(c *chain.Chain) []*chain.Chain {
	var out []*chain.Chain
	for _, other := range r.snapshot() {
		if other.Parent() == c {
			out = append(out, other)
		}
	}
	return out
}

// GetMaxChild returns the direct child of c with the highest forkpoint,
// or nil if c has none.
func (r *Registry) GetMaxChild(c *chain.Chain) *chain.Chain {
	var max *chain.Chain
	for _, child := range r.GetDirectChildren(c) {
		if max == nil || child.Forkpoint() > max.Forkpoint() {
			max = child
		}
	}
	return max
}

func (r *Registry) byID(id chainhash.Hash) *chain.Chain {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.chains[id]
}

// Close releases the registry's resources (the hash index's leveldb
// handle). Individual chains' files are left open; callers that want a
// clean shutdown close those separately.
func (r *Registry) Close() error {
	return r.index.close()
}
