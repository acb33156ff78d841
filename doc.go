/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

// Package keriacdc implements KERI key-event logs and ACDC authentic chained
// data containers with selective disclosure.
//
// Packages for end developer usage
//
// pkg/vault: The holder-facing facade. A vault incepts an identifier with an
// anchored credential registry, issues and revokes credentials, expands them
// for disclosure and absorbs bundles received from other holders.
//
// pkg/doc/sad: Self-addressed documents. Content addresses are computed over
// the canonical serialization with the address fields blanked, so any party
// can recompute and verify an address from the bytes alone.
//
// pkg/doc/acdc: Credential issuance, expansion and normalization. Blinded
// attributes travel as commitment addresses until their holder chooses to
// disclose the underlying value.
//
// pkg/ingest: The validation pipeline. Every message entering a store is
// checked against its ledger (sequence, prior reference, anchoring seal)
// before it is filed.
//
// Basic workflow
//
//	1) Create vaults for each party with vault.New.
//	2) Prime the issuer's schema cache and call Issue.
//	3) Fetch a disclosure bundle and Ingest it at the recipient.
//	4) The recipient re-discloses any subset it actually received.
package keriacdc
