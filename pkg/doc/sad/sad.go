/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

// Package sad implements self-addressing documents: structured records that
// embed their own content address. The address is a blake2b-256 digest of the
// canonical serialization of the document with its address field(s) replaced
// by a fixed-width placeholder, encoded as 'E' followed by unpadded base64url.
package sad

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/tidwall/sjson"
	"golang.org/x/crypto/blake2b"

	"github.com/hyperledger/keri-acdc-go/pkg/kerror"
)

const (
	// SaidLength is the length of an encoded content address.
	SaidLength = 44

	// Dummy is the placeholder substituted for address fields while digesting.
	Dummy = "############################################"

	saidCode = "E"

	versionSize = 6
)

// Document is a parsed self-addressing document. Canonical serialization is
// encoding/json marshalling of the map, which orders fields alphabetically.
type Document map[string]interface{}

// Marshal returns the canonical serialization of doc.
func Marshal(doc Document) ([]byte, error) {
	raw, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("marshal document: %w", kerror.ErrEncoding)
	}

	return raw, nil
}

// Parse decodes a single document from raw.
func Parse(raw []byte) (Document, error) {
	doc, _, err := ParseFramed(raw)
	return doc, err
}

// ParseFramed decodes the first document found in buf and reports the number
// of raw bytes it occupies, so a caller holding a concatenated stream can
// locate the attachment suffix that follows the document.
func ParseFramed(buf []byte) (Document, int, error) {
	decoder := json.NewDecoder(bytes.NewReader(buf))

	var doc Document
	if err := decoder.Decode(&doc); err != nil {
		return nil, 0, fmt.Errorf("parse framed document: %v: %w", err, kerror.ErrDecoding)
	}

	return doc, int(decoder.InputOffset()), nil
}

// Digest computes the content address of data.
func Digest(data []byte) string {
	sum := blake2b.Sum256(data)
	return saidCode + base64.RawURLEncoding.EncodeToString(sum[:])
}

// IsSaid reports whether s has the shape of a content address.
func IsSaid(s string) bool {
	if len(s) != SaidLength || !strings.HasPrefix(s, saidCode) {
		return false
	}

	_, err := base64.RawURLEncoding.DecodeString(s[1:])

	return err == nil
}

// saidLabels returns the address fields of doc. Self-addressing identifier
// inceptions (key event icp, registry vcp) bind the identifier to the event
// digest, so both "d" and "i" are blanked while digesting. Schema documents
// carry their address at "$id".
func saidLabels(doc Document) []string {
	if _, ok := doc["$id"]; ok {
		return []string{"$id"}
	}

	if ilk, ok := doc["t"].(string); ok && (ilk == "icp" || ilk == "vcp") {
		return []string{"d", "i"}
	}

	return []string{"d"}
}

// Saidify computes the content address of doc, embeds it at the document's
// address field(s) and, when a version field is present, rewrites it with the
// canonical serialized size. It returns the canonical serialization and the
// address. The input map is updated in place.
func Saidify(doc Document) ([]byte, string, error) {
	labels := saidLabels(doc)

	for _, label := range labels {
		doc[label] = Dummy
	}

	if version, ok := doc["v"].(string); ok {
		if len(version) < 4 {
			return nil, "", fmt.Errorf("version string too short: %w", kerror.ErrDecoding)
		}

		// Fixed-width size field, so setting it does not change the size.
		doc["v"] = fmt.Sprintf("%s10JSON%0*x_", version[:4], versionSize, 0)

		sized, err := Marshal(doc)
		if err != nil {
			return nil, "", err
		}

		doc["v"] = fmt.Sprintf("%s10JSON%0*x_", version[:4], versionSize, len(sized))
	}

	raw, err := Marshal(doc)
	if err != nil {
		return nil, "", err
	}

	said := Digest(raw)

	for _, label := range labels {
		doc[label] = said

		raw, err = sjson.SetBytes(raw, escapePath(label), said)
		if err != nil {
			return nil, "", fmt.Errorf("embed said at %q: %v: %w", label, err, kerror.ErrEncoding)
		}
	}

	return raw, said, nil
}

// Compute recomputes the content address declared by doc without mutating it.
func Compute(doc Document) (string, error) {
	raw, err := Marshal(doc)
	if err != nil {
		return "", err
	}

	for _, label := range saidLabels(doc) {
		raw, err = sjson.SetBytes(raw, escapePath(label), Dummy)
		if err != nil {
			return "", fmt.Errorf("blank %q: %v: %w", label, err, kerror.ErrEncoding)
		}
	}

	return Digest(raw), nil
}

// Verify checks that the address declared by the document in raw matches the
// address recomputed over its blanked serialization.
func Verify(raw []byte) error {
	doc, err := Parse(raw)
	if err != nil {
		return err
	}

	declared, ok := doc[saidLabels(doc)[0]].(string)
	if !ok {
		return fmt.Errorf("document declares no address: %w", kerror.ErrValidation)
	}

	computed, err := Compute(doc)
	if err != nil {
		return err
	}

	if computed != declared {
		return fmt.Errorf("address mismatch: declared %s, computed %s: %w",
			declared, computed, kerror.ErrValidation)
	}

	return nil
}

// Said returns the address declared by doc.
func (d Document) Said() (string, error) {
	said, ok := d[saidLabels(d)[0]].(string)
	if !ok {
		return "", fmt.Errorf("document declares no address: %w", kerror.ErrDecoding)
	}

	return said, nil
}

// Copy returns a deep copy of the document.
func (d Document) Copy() (Document, error) {
	raw, err := Marshal(d)
	if err != nil {
		return nil, err
	}

	return Parse(raw)
}

// escapePath escapes gjson/sjson path metacharacters in a single field name.
func escapePath(label string) string {
	replacer := strings.NewReplacer(".", `\.`, "*", `\*`, "?", `\?`)
	return replacer.Replace(label)
}
