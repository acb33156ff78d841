/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

// Package event provides typed views over parsed ledger events. Key events
// populate a key-event log (KEL), transaction events a transaction-event log
// (TEL); both share the same framing and addressing rules.
package event

import (
	"fmt"
	"strconv"

	"github.com/mitchellh/mapstructure"

	"github.com/hyperledger/keri-acdc-go/pkg/doc/sad"
	"github.com/hyperledger/keri-acdc-go/pkg/kerror"
)

// Ilks of the events this module produces.
const (
	IlkInception   = "icp"
	IlkRotation    = "rot"
	IlkInteraction = "ixn"

	IlkRegistryInception = "vcp"
	IlkIssuance          = "iss"
	IlkRevocation        = "rev"
)

// Seal anchors an external event into a KEL. Its digest field references the
// anchored event's address. Field order matches the canonical (alphabetical)
// serialization so seals marshal identically before and after a parse round
// trip.
type Seal struct {
	Said       string `mapstructure:"d" json:"d"`
	Identifier string `mapstructure:"i" json:"i"`
	Sequence   string `mapstructure:"s" json:"s"`
}

// Event is the decoded form of a KEL or TEL event document.
type Event struct {
	Version    string   `mapstructure:"v"`
	Ilk        string   `mapstructure:"t"`
	Said       string   `mapstructure:"d"`
	Identifier string   `mapstructure:"i"`
	Sequence   string   `mapstructure:"s"`
	Prior      string   `mapstructure:"p"`
	Keys       []string `mapstructure:"k"`
	Next       []string `mapstructure:"n"`
	RegistryID string   `mapstructure:"ri"`
	Issuer     string   `mapstructure:"ii"`
	Anchors    []Seal   `mapstructure:"a"`
}

// FromDocument decodes a parsed document into an event view.
func FromDocument(doc sad.Document) (*Event, error) {
	var evt Event

	if err := mapstructure.Decode(map[string]interface{}(doc), &evt); err != nil {
		return nil, fmt.Errorf("decode event: %v: %w", err, kerror.ErrDecoding)
	}

	if evt.Ilk == "" {
		return nil, fmt.Errorf("event carries no ilk: %w", kerror.ErrDecoding)
	}

	return &evt, nil
}

// FromRaw parses and decodes an event from its serialized form, ignoring any
// trailing attachment bytes.
func FromRaw(raw []byte) (*Event, error) {
	doc, _, err := sad.ParseFramed(raw)
	if err != nil {
		return nil, err
	}

	return FromDocument(doc)
}

// SequenceNumber parses the event's hex sequence field.
func (e *Event) SequenceNumber() (uint64, error) {
	sn, err := strconv.ParseUint(e.Sequence, 16, 64)
	if err != nil {
		return 0, fmt.Errorf("parse sequence %q: %w", e.Sequence, kerror.ErrDecoding)
	}

	return sn, nil
}

// IsEstablishment reports whether the event commits to a signing key set.
// Interaction events anchor data without touching keys and are not
// establishment events.
func (e *Event) IsEstablishment() bool {
	switch e.Ilk {
	case IlkInception, IlkRotation, "dip", "drt":
		return true
	default:
		return false
	}
}

// AnchorsSaid reports whether any seal carried by the event references said.
func (e *Event) AnchorsSaid(said string) bool {
	for _, seal := range e.Anchors {
		if seal.Said == said {
			return true
		}
	}

	return false
}
