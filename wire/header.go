// Copyright (c) 2013-2016 The btcsuite developers
// Copyright (c) 2024 The Flokicoin developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package wire

import (
	"io"

	"github.com/xayachi/headerchain/chainhash"
)

// PureHeaderLen is the number of bytes a pure header occupies on the wire,
// exactly as in Bitcoin: version, two hashes, timestamp, bits and nonce.
const PureHeaderLen = 80

// PureHeader is the 80-byte Bitcoin-format block header, exclusive of any
// AuxPoW parent-chain proof. Consensus on this chain requires Bits to
// always be zero here; the real difficulty target lives in the PowData
// that accompanies the header off the wire.
type PureHeader struct {
	Version      uint32
	PrevBlock    chainhash.Hash
	MerkleRoot   chainhash.Hash
	Timestamp    uint32
	Bits         uint32
	Nonce        uint32
}

// Serialize writes the 80-byte wire encoding of the header to w.
func (h *PureHeader) Serialize(w io.Writer) error {
	if err := writeUint32(w, h.Version); err != nil {
		return err
	}
	if err := writeHash(w, &h.PrevBlock); err != nil {
		return err
	}
	if err := writeHash(w, &h.MerkleRoot); err != nil {
		return err
	}
	if err := writeUint32(w, h.Timestamp); err != nil {
		return err
	}
	if err := writeUint32(w, h.Bits); err != nil {
		return err
	}
	return writeUint32(w, h.Nonce)
}

// Deserialize reads the 80-byte wire encoding of the header from r.
func (h *PureHeader) Deserialize(r io.Reader) error {
	if err := readUint32(r, &h.Version); err != nil {
		return err
	}
	if err := readHash(r, &h.PrevBlock); err != nil {
		return err
	}
	if err := readHash(r, &h.MerkleRoot); err != nil {
		return err
	}
	if err := readUint32(r, &h.Timestamp); err != nil {
		return err
	}
	if err := readUint32(r, &h.Bits); err != nil {
		return err
	}
	return readUint32(r, &h.Nonce)
}

// Bytes returns the 80-byte serialized form of the header.
func (h *PureHeader) Bytes() []byte {
	var buf bufWriter
	_ = h.Serialize(&buf)
	return buf.b
}

// bufWriter is a tiny io.Writer over a growable byte slice, avoiding a
// bytes.Buffer import just for Write.
type bufWriter struct{ b []byte }

func (w *bufWriter) Write(p []byte) (int, error) {
	w.b = append(w.b, p...)
	return len(p), nil
}
