/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

// Package tel constructs transaction events: the registry management
// inception and the per-credential issuance and revocation events that form
// transaction-event logs. Transaction events are not signed directly; they
// carry a seal-source couple pointing at the KEL interaction event that
// anchors them.
package tel

import (
	"encoding/base64"
	"fmt"

	"github.com/google/uuid"

	"github.com/hyperledger/keri-acdc-go/pkg/doc/event"
	"github.com/hyperledger/keri-acdc-go/pkg/doc/sad"
)

const (
	keriVersionDummy = "KERI10JSON000000_"

	// sealSourceCoupleGroup prefixes a single seal-source couple attachment.
	sealSourceCoupleGroup = "-GAB"

	sequencerCode = "0A"
)

// Nonce returns a fresh salty nonce in qb64 form.
func Nonce() string {
	id := uuid.New()
	return sequencerCode + base64.RawURLEncoding.EncodeToString(id[:])
}

// ManagementIncept builds the management inception event (vcp) for a new
// credential registry controlled by issuer. The returned registry identifier
// is the event's own address. The event is unanchored; the caller appends an
// AnchorAttachment once the anchoring interaction event exists.
func ManagementIncept(issuer string) (string, []byte, error) {
	doc := sad.Document{
		"v":  keriVersionDummy,
		"t":  event.IlkRegistryInception,
		"d":  "",
		"i":  "",
		"ii": issuer,
		"s":  "0",
		"c":  []string{},
		"bt": "0",
		"b":  []string{},
		"u":  Nonce(),
	}

	raw, registry, err := sad.Saidify(doc)
	if err != nil {
		return "", nil, err
	}

	return registry, raw, nil
}

// Issue builds the issuance event (iss) opening the status history of a
// credential in the given registry.
func Issue(registry, credentialSaid, timestamp string) (string, []byte, error) {
	doc := sad.Document{
		"v":  keriVersionDummy,
		"t":  event.IlkIssuance,
		"d":  "",
		"i":  credentialSaid,
		"s":  "0",
		"ri": registry,
		"dt": timestamp,
	}

	raw, said, err := sad.Saidify(doc)
	if err != nil {
		return "", nil, err
	}

	return said, raw, nil
}

// Revoke builds the revocation event (rev) closing the status history of a
// credential. prior is the address of the issuance event it follows.
func Revoke(registry, credentialSaid, prior, timestamp string) (string, []byte, error) {
	doc := sad.Document{
		"v":  keriVersionDummy,
		"t":  event.IlkRevocation,
		"d":  "",
		"i":  credentialSaid,
		"s":  "1",
		"p":  prior,
		"ri": registry,
		"dt": timestamp,
	}

	raw, said, err := sad.Saidify(doc)
	if err != nil {
		return "", nil, err
	}

	return said, raw, nil
}

// AnchorAttachment returns the seal-source couple referencing the KEL
// interaction event at sequence sn that anchors a transaction event.
func AnchorAttachment(sn uint64, interactionSaid string) string {
	return sealSourceCoupleGroup + sequencerCode + fmt.Sprintf("%022x", sn) + interactionSaid
}
