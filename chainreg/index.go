// Copyright (c) 2024 The Flokicoin developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package chainreg

import (
	"encoding/binary"
	"path/filepath"

	"github.com/syndtr/goleveldb/leveldb"

	"github.com/xayachi/headerchain/chain"
	"github.com/xayachi/headerchain/chainhash"
)

// hashIndex is a rebuildable, best-effort secondary index mapping a
// header hash to the id (forkpoint hash) of the chain that owns it and
// its height, backed by goleveldb. It exists so CheckHeader doesn't need a
// linear scan across every registered chain's own records as the registry
// grows past the "N is tiny" assumption in spec §4.E's design notes;
// GetChainsThatContainHeader does not consult it and always scans. It is never
// authoritative — a nil or failing index just falls back to the scan —
// and is rebuilt from the chains' own files every startup, never
// persisted as ground truth across runs.
type hashIndex struct {
	db *leveldb.DB
}

type indexEntry struct {
	chainID chainhash.Hash
	height  int32
}

func openHashIndex(dir string) *hashIndex {
	db, err := leveldb.OpenFile(filepath.Join(dir, "hashindex.ldb"), nil)
	if err != nil {
		log.Warnf("chainreg: hash index unavailable at %s, falling back to scans: %v", dir, err)
		return nil
	}
	return &hashIndex{db: db}
}

func (hi *hashIndex) put(hash, chainID chainhash.Hash, height int32) {
	if hi == nil {
		return
	}
	val := make([]byte, 36)
	copy(val, chainID[:])
	binary.BigEndian.PutUint32(val[32:], uint32(height))
	if err := hi.db.Put(hash[:], val, nil); err != nil {
		log.Debugf("chainreg: hash index put failed: %v", err)
	}
}

func (hi *hashIndex) get(hash chainhash.Hash) (indexEntry, bool) {
	if hi == nil {
		return indexEntry{}, false
	}
	val, err := hi.db.Get(hash[:], nil)
	if err != nil || len(val) != 36 {
		return indexEntry{}, false
	}
	var e indexEntry
	copy(e.chainID[:], val[:32])
	e.height = int32(binary.BigEndian.Uint32(val[32:]))
	return e, true
}

func (hi *hashIndex) close() error {
	if hi == nil {
		return nil
	}
	return hi.db.Close()
}

// rebuild walks every registered chain's own records (excluding anything
// delegated to a parent, which the parent itself will index) and
// populates the index. Best-effort: a read failure partway through just
// stops, leaving a partial index that still only ever serves as a hint.
func (hi *hashIndex) rebuild(chains []*chain.Chain) {
	if hi == nil {
		return
	}
	for _, c := range chains {
		id := c.ID()
		start := c.Forkpoint()
		end := start + int32(c.GetBranchSize()) - 1
		for h := start; h <= end; h++ {
			hdr, err := c.ReadHeader(h)
			if err != nil {
				log.Warnf("chainreg: hash index rebuild stopped for chain %s at height %d: %v", c.GetName(), h, err)
				break
			}
			if hdr == nil {
				continue
			}
			hi.put(chain.HashHeader(hdr), id, h)
		}
	}
}
