/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

// Package kerror defines the error kinds shared by every store, ingestion and
// expansion operation in this module. Callers classify failures with errors.Is
// against these sentinels; call sites add detail with fmt.Errorf and %w.
package kerror

import "errors"

var (
	// ErrDecoding signals malformed input: an unparseable document or a key-set
	// history too short to answer the request.
	ErrDecoding = errors.New("decoding error")

	// ErrEncoding signals a serialization failure.
	ErrEncoding = errors.New("encoding error")

	// ErrOutOfOrder signals a ledger chain-linkage violation: an event whose
	// sequence number or prior digest does not match the current ledger tail,
	// or a transaction event with no anchoring seal in the controlling KEL.
	ErrOutOfOrder = errors.New("out of order event")

	// ErrValue signals a missing key, an out-of-range ledger index or a
	// content-address integrity mismatch.
	ErrValue = errors.New("value error")

	// ErrValidation signals a schema or structural validation failure.
	ErrValidation = errors.New("validation error")

	// ErrVerification signals a signature that does not verify.
	ErrVerification = errors.New("verification error")

	// ErrProgrammer signals a caller-side invariant violation. It is the only
	// kind that indicates a bug rather than bad external input.
	ErrProgrammer = errors.New("programmer error")
)
