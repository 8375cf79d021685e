// Copyright (c) 2024 The Flokicoin developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package chain

import "path/filepath"

// SwapWithParent repeatedly promotes this chain past its parent while the
// parent's chainwork remains behind it, per spec §4.D. Bounded by the
// registry's chain count: a chain can climb past at most that many
// ancestors before something is structurally wrong.
func (c *Chain) SwapWithParent() error {
	bound := c.reg.Count()
	if bound < 1 {
		bound = 1
	}
	for i := 0; ; i++ {
		if i > bound {
			panicInvariant("swap_with_parent: exceeded %d iterations without converging", bound)
		}
		swapped, err := c.swapWithParentOnce()
		if err != nil {
			return err
		}
		if !swapped {
			return nil
		}
	}
}

// swapWithParentOnce trades places with the parent chain if this chain's
// cumulative chainwork now exceeds it. The object that ends up anchored at
// the shallower forkpoint takes over the file holding the combined data
// (already correctly named for that identity); the object demoted to the
// deeper forkpoint takes over the file holding just the superseded tail.
// The two objects' file handles trade places along with their identity
// fields, which is what keeps "blockchain_headers" always pointing at
// whichever object is the de facto best chain. The demoted object's file
// is then renamed, since its fork2_ name embeds the first header's hash
// and that header is now a different one; the promoted object's file is
// renamed only if its name does not already match its identity. The
// registry is reindexed after both chain locks are released, because
// reindexing reads the swapped chains through their own locking methods.
func (c *Chain) swapWithParentOnce() (bool, error) {
	parent := c.Parent()
	if parent == nil {
		return false, nil
	}

	childWork, err := c.Chainwork()
	if err != nil {
		return false, err
	}
	parentWork, err := parent.Chainwork()
	if err != nil {
		return false, err
	}
	if parentWork.Cmp(childWork) >= 0 {
		return false, nil
	}

	// Lock child before parent: never the reverse, anywhere in this
	// package, to avoid deadlocking against a concurrent swap one level
	// up or down the chain. reindex is deferred first so that it runs
	// after both unlocks below.
	var reindex func()
	defer func() {
		if reindex != nil {
			reindex()
		}
	}()
	c.mu.Lock()
	defer c.mu.Unlock()
	parent.mu.Lock()
	defer parent.mu.Unlock()

	oldSelfForkpoint := c.forkpoint
	oldSelfForkpointHash := c.forkpointHash
	oldSelfPrevHash := c.prevHash
	oldSelfHasPrev := c.hasPrev

	oldParentForkpoint := parent.forkpoint
	oldParentForkpointHash := parent.forkpointHash
	oldParentPrevHash := parent.prevHash
	oldParentHasPrev := parent.hasPrev
	oldParentParent := parent.parent

	childBytes, err := c.file.ReadAll()
	if err != nil {
		return false, err
	}

	parentHeight := oldParentForkpoint + int32(parent.file.Size()) - 1
	branchSize := int64(parentHeight - oldSelfForkpoint + 1)
	if branchSize < 0 {
		branchSize = 0
	}
	offsetDelta := int64(oldSelfForkpoint - oldParentForkpoint)
	parentTailBytes, err := parent.file.ReadRange(offsetDelta, branchSize)
	if err != nil {
		return false, err
	}

	// Splice this chain's own records into the parent's file: the parent
	// now holds the full, combined, higher-work history.
	if err := parent.file.Write(childBytes, offsetDelta*int64(DiskHeaderLen), true); err != nil {
		return false, err
	}
	// Overwrite this chain's own file with what used to be the parent's
	// tail beyond the common forkpoint: it now holds the demoted branch.
	if err := c.file.Write(parentTailBytes, 0, true); err != nil {
		return false, err
	}

	// Trade file handles along with identity: the object that ends up
	// anchored shallow (parent's old forkpoint) gets the file that now
	// holds the combined data; the object demoted to the old, deeper
	// forkpoint gets the file holding the superseded tail.
	c.file, parent.file = parent.file, c.file

	c.forkpoint = oldParentForkpoint
	c.forkpointHash = oldParentForkpointHash
	c.prevHash = oldParentPrevHash
	c.hasPrev = oldParentHasPrev
	c.parent = oldParentParent

	parent.forkpoint = oldSelfForkpoint
	parent.prevHash = oldSelfPrevHash
	parent.hasPrev = oldSelfHasPrev
	parent.parent = c

	// The demoted object's forkpoint_hash cannot simply be copied from
	// self's old value: its file now holds the parent's own historical
	// header at that height, not self's, so recompute it from what's
	// actually on disk at offset 0.
	rec, err := parent.file.ReadRecord(0)
	if err != nil {
		return false, err
	}
	if rec == nil {
		parent.forkpointHash = oldSelfForkpointHash
	} else {
		hdr, err := DeserializeDisk(rec, parent.forkpoint)
		if err != nil {
			return false, err
		}
		parent.forkpointHash = HashHeader(hdr)
	}

	// c's new forkpointHash is the old parent's forkpointHash; since c
	// took over parent's old file wholesale (unwritten below the common
	// forkpoint), it's already correct on disk, no recompute needed.

	if err := renameToCanonicalPath(c); err != nil {
		return false, err
	}
	if err := renameToCanonicalPath(parent); err != nil {
		return false, err
	}

	reindex = func() {
		c.reg.Reindex(oldParentForkpointHash, oldSelfForkpointHash, c, parent)
	}

	return true, nil
}

// renameToCanonicalPath renames c's backing file to the name its current
// (post-swap) identity implies, if it isn't already there.
func renameToCanonicalPath(c *Chain) error {
	dir := filepath.Dir(c.file.Path())
	var want string
	if c.forkpoint == 0 {
		want = filepath.Join(dir, BestChainFileName)
	} else {
		// dir is either the top-level headers dir (best chain case) or
		// .../forks; normalize to the top-level dir before rebuilding the
		// fork path.
		top := dir
		if filepath.Base(dir) == ForksDirName {
			top = filepath.Dir(dir)
		}
		want = forkFilePath(top, c.forkpoint, c.prevHash, c.forkpointHash)
	}
	if c.file.Path() == want {
		return nil
	}
	return c.file.Rename(want)
}
