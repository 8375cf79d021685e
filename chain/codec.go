// Copyright (c) 2024 The Flokicoin developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package chain

import (
	"bytes"
	"math/big"

	"github.com/xayachi/headerchain/powdata"
	"github.com/xayachi/headerchain/wire"
)

// PureHeaderLen is the wire size of a pure header.
const PureHeaderLen = wire.PureHeaderLen

// DiskHeaderLen is the fixed size of one on-disk record: pure(80) +
// powdata base(5) + chainwork(32, big-endian).
const DiskHeaderLen = PureHeaderLen + powdata.BaseLen + 32

func (h *Header) toPure() wire.PureHeader {
	return wire.PureHeader{
		Version:    h.Version,
		PrevBlock:  h.PrevBlock,
		MerkleRoot: h.MerkleRoot,
		Timestamp:  h.Timestamp,
		Bits:       h.Bits,
		Nonce:      h.Nonce,
	}
}

func (h *Header) fromPure(p wire.PureHeader) {
	h.Version = p.Version
	h.PrevBlock = p.PrevBlock
	h.MerkleRoot = p.MerkleRoot
	h.Timestamp = p.Timestamp
	h.Bits = p.Bits
	h.Nonce = p.Nonce
}

// SerializePure returns the 80-byte wire encoding of h's pure fields.
func SerializePure(h *Header) []byte {
	p := h.toPure()
	return p.Bytes()
}

// DeserializePure parses an 80-byte pure header at the given height.
func DeserializePure(data []byte, height int32) (*Header, error) {
	if len(data) != PureHeaderLen {
		return nil, ruleErrorf(ErrInvalidHeaderCode, "pure header: want %d bytes, got %d", PureHeaderLen, len(data))
	}
	var p wire.PureHeader
	if err := p.Deserialize(bytes.NewReader(data)); err != nil {
		return nil, ruleErrorf(ErrInvalidHeaderCode, "pure header: %v", err)
	}
	h := &Header{Height: height}
	h.fromPure(p)
	return h, nil
}

// SerializeDisk returns the 117-byte fixed record for h: pure header,
// powdata base form, and 32-byte big-endian chainwork. h.Chainwork must
// be set.
func SerializeDisk(h *Header) ([]byte, error) {
	if h.Chainwork == nil {
		return nil, ruleErrorf(ErrInvalidHeaderCode, "disk header: chainwork not computed")
	}
	if h.Chainwork.Sign() < 0 || h.Chainwork.BitLen() > 256 {
		return nil, ruleErrorf(ErrInvalidHeaderCode, "disk header: chainwork out of range")
	}

	var buf bytes.Buffer
	buf.Write(SerializePure(h))
	if err := h.PowData.SerializeBase(&buf); err != nil {
		return nil, err
	}
	var work [32]byte
	h.Chainwork.FillBytes(work[:])
	buf.Write(work[:])
	return buf.Bytes(), nil
}

// DeserializeDisk parses a 117-byte fixed record at the given height.
func DeserializeDisk(data []byte, height int32) (*Header, error) {
	if len(data) != DiskHeaderLen {
		return nil, ruleErrorf(ErrInvalidHeaderCode, "disk header: want %d bytes, got %d", DiskHeaderLen, len(data))
	}
	h, err := DeserializePure(data[:PureHeaderLen], height)
	if err != nil {
		return nil, err
	}
	r := bytes.NewReader(data[PureHeaderLen : PureHeaderLen+powdata.BaseLen])
	if err := h.PowData.DeserializeBase(r); err != nil {
		return nil, ruleErrorf(ErrInvalidHeaderCode, "disk header powdata: %v", err)
	}
	h.Chainwork = new(big.Int).SetBytes(data[PureHeaderLen+powdata.BaseLen:])
	return h, nil
}

// DeserializeFull parses one header in the "full chunk" encoding:
// pure(80) followed by either the powdata base form (at or below
// maxCheckpoint, or height 0 with no checkpoints configured) or the full
// AuxPoW-bearing form. It returns the header and the number of bytes
// consumed from data. If expectTrailing is false, data must be fully
// consumed.
func DeserializeFull(data []byte, height int32, maxCheckpoint int32, haveCheckpoints bool, expectTrailing bool) (*Header, int, error) {
	if len(data) < PureHeaderLen {
		return nil, 0, ruleErrorf(ErrInvalidHeaderCode, "full header: too short for pure header")
	}
	h, err := DeserializePure(data[:PureHeaderLen], height)
	if err != nil {
		return nil, 0, err
	}

	useBase := (height == 0 && !haveCheckpoints) || height <= maxCheckpoint

	r := bytes.NewReader(data[PureHeaderLen:])
	if useBase {
		if r.Len() < powdata.BaseLen {
			return nil, 0, ruleErrorf(ErrInvalidHeaderCode, "full header: too short for powdata base")
		}
		if err := h.PowData.DeserializeBase(r); err != nil {
			return nil, 0, ruleErrorf(ErrInvalidHeaderCode, "full header powdata: %v", err)
		}
	} else {
		if err := h.PowData.DeserializeFull(r); err != nil {
			return nil, 0, ruleErrorf(ErrInvalidHeaderCode, "full header auxpow: %v", err)
		}
	}

	consumed := len(data) - r.Len()
	if !expectTrailing && r.Len() != 0 {
		return nil, 0, ruleErrorf(ErrInvalidHeaderCode, "full header: %d trailing bytes", r.Len())
	}
	return h, consumed, nil
}
