/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

// Package kmi constructs and signs key-management events: inceptions,
// rotations and interactions. The store and ingestion layers treat its
// output as opaque framed messages; nothing outside this package needs the
// private halves of the key sets it mints.
package kmi

import (
	"crypto/ed25519"
	"crypto/rand"
	"encoding/base64"
	"fmt"

	"github.com/hyperledger/keri-acdc-go/pkg/doc/event"
	"github.com/hyperledger/keri-acdc-go/pkg/doc/sad"
	"github.com/hyperledger/keri-acdc-go/pkg/kerror"
)

const (
	publicCode    = "D"
	seedCode      = "A"
	signatureCode = "0B"

	// controllerSignatureGroup prefixes a single indexed controller signature.
	controllerSignatureGroup = "-AAB"

	keriVersionDummy = "KERI10JSON000000_"
)

// KeySet is one generation of signing key material for an identifier. The
// public half is committed into establishment events; the private half stays
// inside the holder's store.
type KeySet struct {
	Public  string `json:"public"`
	Private string `json:"private"`
}

// NewKeySet generates a fresh ed25519 key set.
func NewKeySet() (*KeySet, error) {
	public, private, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("generate key set: %v: %w", err, kerror.ErrEncoding)
	}

	return &KeySet{
		Public:  publicCode + base64.RawURLEncoding.EncodeToString(public),
		Private: seedCode + base64.RawURLEncoding.EncodeToString(private.Seed()),
	}, nil
}

// Commitment returns the next-key digest committed by an establishment event
// for this key set.
func (k *KeySet) Commitment() string {
	return sad.Digest([]byte(k.Public))
}

// Sign signs raw and returns the qb64 signature.
func (k *KeySet) Sign(raw []byte) (string, error) {
	seed, err := base64.RawURLEncoding.DecodeString(k.Private[1:])
	if err != nil {
		return "", fmt.Errorf("decode private key: %v: %w", err, kerror.ErrDecoding)
	}

	signature := ed25519.Sign(ed25519.NewKeyFromSeed(seed), raw)

	return signatureCode + base64.RawURLEncoding.EncodeToString(signature), nil
}

// SignatureAttachment returns the attachment group carrying a single indexed
// controller signature over raw.
func SignatureAttachment(keys *KeySet, raw []byte) (string, error) {
	signature, err := keys.Sign(raw)
	if err != nil {
		return "", err
	}

	return controllerSignatureGroup + signature, nil
}

// InceptionResult holds everything minted by Incept.
type InceptionResult struct {
	// AID is the new self-addressing identifier prefix.
	AID string

	// Current signs from sequence 0; Next is pre-committed for the first
	// rotation.
	Current *KeySet
	Next    *KeySet

	// Event is the framed inception message (serialized event plus
	// signature attachment).
	Event []byte
}

// Incept mints a new identifier: a current and next key set and a signed,
// self-addressing inception event committing to both.
func Incept() (*InceptionResult, error) {
	current, err := NewKeySet()
	if err != nil {
		return nil, err
	}

	next, err := NewKeySet()
	if err != nil {
		return nil, err
	}

	doc := sad.Document{
		"v":  keriVersionDummy,
		"t":  event.IlkInception,
		"d":  "",
		"i":  "",
		"s":  "0",
		"kt": "1",
		"k":  []string{current.Public},
		"nt": "1",
		"n":  []string{next.Commitment()},
		"bt": "0",
		"b":  []string{},
		"c":  []string{},
		"a":  []event.Seal{},
	}

	raw, said, err := sad.Saidify(doc)
	if err != nil {
		return nil, err
	}

	attachment, err := SignatureAttachment(current, raw)
	if err != nil {
		return nil, err
	}

	return &InceptionResult{
		AID:     said,
		Current: current,
		Next:    next,
		Event:   append(raw, attachment...),
	}, nil
}

// RotationResult holds everything minted by Rotate.
type RotationResult struct {
	// Said is the rotation event's address.
	Said string

	// Next is the freshly pre-committed key set. The key set previously
	// committed as next becomes current.
	Next *KeySet

	// Event is the framed rotation message.
	Event []byte
}

// Rotate builds a rotation event for pre at sequence sn. The previously
// committed next key set becomes the signing set and a fresh next commitment
// is made.
func Rotate(newCurrent *KeySet, pre, prior string, sn uint64) (*RotationResult, error) {
	next, err := NewKeySet()
	if err != nil {
		return nil, err
	}

	doc := sad.Document{
		"v":  keriVersionDummy,
		"t":  event.IlkRotation,
		"d":  "",
		"i":  pre,
		"s":  fmt.Sprintf("%x", sn),
		"p":  prior,
		"kt": "1",
		"k":  []string{newCurrent.Public},
		"nt": "1",
		"n":  []string{next.Commitment()},
		"bt": "0",
		"br": []string{},
		"ba": []string{},
		"a":  []event.Seal{},
	}

	raw, said, err := sad.Saidify(doc)
	if err != nil {
		return nil, err
	}

	attachment, err := SignatureAttachment(newCurrent, raw)
	if err != nil {
		return nil, err
	}

	return &RotationResult{
		Said:  said,
		Next:  next,
		Event: append(raw, attachment...),
	}, nil
}

// Interact builds an interaction event for pre at sequence sn anchoring the
// given seals, signed with the current key set.
func Interact(keys *KeySet, pre, prior string, sn uint64, seals []event.Seal) (string, []byte, error) {
	if seals == nil {
		seals = []event.Seal{}
	}

	doc := sad.Document{
		"v": keriVersionDummy,
		"t": event.IlkInteraction,
		"d": "",
		"i": pre,
		"s": fmt.Sprintf("%x", sn),
		"p": prior,
		"a": seals,
	}

	raw, said, err := sad.Saidify(doc)
	if err != nil {
		return "", nil, err
	}

	attachment, err := SignatureAttachment(keys, raw)
	if err != nil {
		return "", nil, err
	}

	return said, append(raw, attachment...), nil
}
