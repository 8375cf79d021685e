// Copyright (c) 2024 The Flokicoin developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package chain

import "github.com/xayachi/headerchain/chainhash"

// Registry is the subset of the process-wide chain registry (component E,
// package chainreg) that a Chain needs in order to keep the id -> Chain
// mapping consistent across a reorg. chain cannot import chainreg
// directly — chainreg holds a map of *Chain — so the dependency runs
// through this interface instead, the same inversion used for the
// external difficulty engine's Getter contract.
type Registry interface {
	// Reindex is called once per swap: oldParentID/oldChildID are the
	// forkpoint-hash identities the two objects were registered under
	// before they traded places. promoted now holds the shallower
	// (more senior) identity, demoted the deeper one — both already
	// updated by the time Reindex runs, so Reindex only needs to move
	// the map entries and reparent any sibling whose (forkpoint-1,
	// prevHash) now matches promoted instead of demoted.
	Reindex(oldParentID, oldChildID chainhash.Hash, promoted, demoted *Chain)

	// Count returns the number of chains currently registered. Used only
	// as the progress-guard bound on the swap loop.
	Count() int
}
