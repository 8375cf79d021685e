// Copyright (c) 2024 The Flokicoin developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package powdata carries the per-header proof-of-work envelope that rides
// alongside a pure header on this chain: which of the two supported
// algorithms mined it, the real difficulty bits (the pure header's own
// Bits field is consensus-zero on this chain), and, above the last
// checkpoint, the AuxPoW proof that it was merge-mined.
package powdata

import (
	"bytes"
	"fmt"
	"io"

	"github.com/xayachi/headerchain/auxpow"
	"github.com/xayachi/headerchain/chainhash"
)

// Algo identifies a supported proof-of-work algorithm.
type Algo uint8

const (
	// AlgoSHA256D is double-SHA256, the original Bitcoin algorithm.
	AlgoSHA256D Algo = 0
	// AlgoNeoScrypt is the NeoScrypt memory-hard algorithm.
	AlgoNeoScrypt Algo = 1
)

// NumAlgos is the number of algorithms this chain retargets independently.
const NumAlgos = 2

func (a Algo) String() string {
	switch a {
	case AlgoSHA256D:
		return "sha256d"
	case AlgoNeoScrypt:
		return "neoscrypt"
	default:
		return fmt.Sprintf("algo(%d)", uint8(a))
	}
}

// Valid reports whether a is one of the recognized algorithms.
func (a Algo) Valid() bool {
	return a == AlgoSHA256D || a == AlgoNeoScrypt
}

// BaseLen is the size in bytes of the base (checkpoint-region) serialization:
// one byte of algo plus a 4-byte little-endian bits field.
const BaseLen = 5

// PowData is the proof-of-work envelope for one header. AuxPow is nil in
// base form (at or below the last checkpoint) and populated in full form
// (above it).
type PowData struct {
	Algo   Algo
	Bits   uint32
	AuxPow *auxpow.Proof
}

// SerializeBase writes the 5-byte base form: algo, then bits (LE).
func (p *PowData) SerializeBase(w io.Writer) error {
	var buf [BaseLen]byte
	buf[0] = byte(p.Algo)
	buf[1] = byte(p.Bits)
	buf[2] = byte(p.Bits >> 8)
	buf[3] = byte(p.Bits >> 16)
	buf[4] = byte(p.Bits >> 24)
	_, err := w.Write(buf[:])
	return err
}

// DeserializeBase reads the 5-byte base form written by SerializeBase.
func (p *PowData) DeserializeBase(r io.Reader) error {
	var buf [BaseLen]byte
	if _, err := io.ReadFull(r, buf[:]); err != nil {
		return err
	}
	p.Algo = Algo(buf[0])
	p.Bits = uint32(buf[1]) | uint32(buf[2])<<8 | uint32(buf[3])<<16 | uint32(buf[4])<<24
	p.AuxPow = nil
	return nil
}

// SerializeFull writes the base form followed by the AuxPoW proof. It is
// an error to call this with a nil AuxPow.
func (p *PowData) SerializeFull(buf *bytes.Buffer) error {
	if p.AuxPow == nil {
		return fmt.Errorf("powdata: full serialization requires an AuxPoW proof")
	}
	if err := p.SerializeBase(buf); err != nil {
		return err
	}
	return p.AuxPow.Serialize(buf)
}

// DeserializeFull reads the base form followed by an AuxPoW proof.
func (p *PowData) DeserializeFull(r *bytes.Reader) error {
	if err := p.DeserializeBase(r); err != nil {
		return err
	}
	p.AuxPow = &auxpow.Proof{}
	return p.AuxPow.Deserialize(r)
}

// Verify checks the AuxPoW proof (when present) against the header hash it
// claims to merge-mine. Headers at or below the last checkpoint carry no
// proof and are trusted by the checkpoint itself; callers must not invoke
// Verify for those.
func (p *PowData) Verify(headerHash chainhash.Hash, chainID int32) error {
	if p.AuxPow == nil {
		return fmt.Errorf("powdata: no AuxPoW proof to verify")
	}
	return p.AuxPow.Verify(headerHash, chainID)
}
