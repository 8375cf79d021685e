// Copyright (c) 2024 The Flokicoin developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package chain

import "fmt"

// ErrorCode identifies the kind of failure a RuleError carries, per spec
// §7's error taxonomy.
type ErrorCode int

const (
	// ErrInvalidHeaderCode is a structural parse failure: wrong length or
	// a codec-rejected field. Fatal for the header/chunk it occurred in.
	ErrInvalidHeaderCode ErrorCode = iota
	// ErrVerificationCode is a verify_header failure: prev-hash mismatch,
	// non-zero pure bits, target mismatch, bad AuxPoW, or hash mismatch.
	ErrVerificationCode
	// ErrMissingHeaderCode means the requested height isn't stored
	// anywhere consultable (file, memory, or checkpoint metadata).
	ErrMissingHeaderCode
	// ErrIOCode wraps a filesystem failure distinguishing "headers dir
	// removed" from "file missing inside an existing dir", both fatal.
	ErrIOCode
)

func (c ErrorCode) String() string {
	switch c {
	case ErrInvalidHeaderCode:
		return "invalid-header"
	case ErrVerificationCode:
		return "verification-failed"
	case ErrMissingHeaderCode:
		return "missing-header"
	case ErrIOCode:
		return "io-error"
	default:
		return "unknown"
	}
}

// RuleError is a returned (not panicked) header-store error: the caller is
// expected to reject the offending chunk/header and continue operating.
type RuleError struct {
	Code        ErrorCode
	Description string
}

func (e RuleError) Error() string {
	return e.Description
}

func ruleErrorf(code ErrorCode, format string, args ...interface{}) RuleError {
	return RuleError{Code: code, Description: fmt.Sprintf(format, args...)}
}

// ErrInvalidHeader is the sentinel other errors in this package wrap with
// %w so callers can match it with errors.Is.
var ErrInvalidHeader = RuleError{Code: ErrInvalidHeaderCode, Description: "invalid header"}

// MissingHeaderError reports that height H is not available from the
// file, in-memory pending blocks, or checkpoint metadata.
type MissingHeaderError struct {
	Height int32
}

func (e *MissingHeaderError) Error() string {
	return fmt.Sprintf("missing header at height %d", e.Height)
}

func missingHeader(h int32) error {
	return &MissingHeaderError{Height: h}
}

// InvariantViolation indicates the store's own bookkeeping is corrupt: the
// swap loop exceeded its bound, an append's height didn't match the file
// size, or a non-best chain's forkpoint fell at or below the checkpoint
// boundary. Per spec §7 these are panics, not returned errors — the store
// cannot make forward progress once one occurs.
type InvariantViolation struct {
	Description string
}

func (e InvariantViolation) Error() string {
	return "invariant violation: " + e.Description
}

func panicInvariant(format string, args ...interface{}) {
	panic(InvariantViolation{Description: fmt.Sprintf(format, args...)})
}
