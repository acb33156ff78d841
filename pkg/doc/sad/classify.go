/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package sad

import (
	"fmt"
	"strings"

	"github.com/hyperledger/keri-acdc-go/pkg/kerror"
)

// Kind discriminates the message families that appear in a framed stream.
type Kind int

const (
	// KindKeyEvent is a key-event-log event (icp, rot, ixn and delegated forms).
	KindKeyEvent Kind = iota

	// KindTransactionEvent is a transaction-event-log event (vcp, vrt, iss,
	// rev and backed forms).
	KindTransactionEvent

	// KindCredential is an ACDC credential.
	KindCredential
)

const acdcProtocol = "ACDC"

var (
	keyEventIlks = map[string]bool{
		"icp": true, "rot": true, "ixn": true, "dip": true, "drt": true,
	}

	transactionEventIlks = map[string]bool{
		"vcp": true, "vrt": true, "iss": true, "rev": true, "bis": true, "brv": true,
	}
)

// Classify reads the message discriminant once and maps the document onto the
// exhaustive set of message kinds. Credentials are recognized by protocol,
// events by ilk.
func Classify(doc Document) (Kind, error) {
	if version, ok := doc["v"].(string); ok && strings.HasPrefix(version, acdcProtocol) {
		return KindCredential, nil
	}

	ilk, ok := doc["t"].(string)
	if !ok {
		return 0, fmt.Errorf("message carries no ilk: %w", kerror.ErrDecoding)
	}

	switch {
	case keyEventIlks[ilk]:
		return KindKeyEvent, nil
	case transactionEventIlks[ilk]:
		return KindTransactionEvent, nil
	default:
		return 0, fmt.Errorf("unknown ilk %q: %w", ilk, kerror.ErrDecoding)
	}
}
