/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

// Package acdc builds credentials with blinded attributes and implements the
// selective-disclosure expansion over their attribute trees.
//
// A credential's disclosable sections (attributes, edges, rules) are
// addressed in most-compact form: the credential embeds only each section's
// content address, and the full section lives in the document store as its
// own self-addressing document. A blinded attribute inside a section is a
// {d, u, value} triple addressed the same way, so revealing the triple proves
// the value against the commitment already present in the section. The
// credential's top-level address therefore never changes with disclosure
// level.
package acdc

import (
	"fmt"
	"time"

	"github.com/hyperledger/keri-acdc-go/pkg/doc/sad"
	"github.com/hyperledger/keri-acdc-go/pkg/doc/schema"
	"github.com/hyperledger/keri-acdc-go/pkg/doc/tel"
	"github.com/hyperledger/keri-acdc-go/pkg/kerror"
)

const acdcVersionDummy = "ACDC10JSON000000_"

// IssueRequest carries everything needed to mint a credential.
type IssueRequest struct {
	// Issuer and Registry bind the credential to its controlling identifier
	// and status registry.
	Issuer   string
	Registry string

	// Schema is the content address of the credential schema.
	Schema string

	// Data holds public attributes, copied into the attribute section as-is.
	Data map[string]interface{}

	// Private holds attributes to blind into {d, u, value} triples. The
	// section embeds only each triple's address.
	Private map[string]interface{}

	// Recipient is the optional issuee, recorded in the attribute section.
	Recipient string

	// Blind adds a top-level salty nonce so the credential address itself
	// reveals nothing about its contents.
	Blind bool

	// Edges and Rules are optional provenance and use sections, compacted
	// and disclosed through the same mechanism as attributes.
	Edges map[string]interface{}
	Rules map[string]interface{}
}

// Issuance is a minted credential before signing: the canonical credential
// bytes plus the expanded section documents that back disclosure.
type Issuance struct {
	Said       string
	Credential []byte
	Sections   []sad.Document
}

// Issue mints a credential in most-compact form and validates it against its
// schema, resolved through the given cache.
func Issue(schemas *schema.Cache, req *IssueRequest) (*Issuance, error) {
	if req.Issuer == "" || req.Registry == "" || req.Schema == "" {
		return nil, fmt.Errorf("issuer, registry and schema are required: %w", kerror.ErrProgrammer)
	}

	var sections []sad.Document

	attributes := sad.Document{
		"d":  "",
		"u":  tel.Nonce(),
		"dt": time.Now().UTC().Format(time.RFC3339),
	}

	if req.Recipient != "" {
		attributes["i"] = req.Recipient
	}

	for name, value := range req.Data {
		attributes[name] = value
	}

	for name, value := range req.Private {
		triple := sad.Document{
			"d":     "",
			"u":     tel.Nonce(),
			"value": value,
		}

		_, tripleSaid, err := sad.Saidify(triple)
		if err != nil {
			return nil, err
		}

		sections = append(sections, triple)
		attributes[name] = tripleSaid
	}

	_, attributesSaid, err := sad.Saidify(attributes)
	if err != nil {
		return nil, err
	}

	sections = append(sections, attributes)

	credential := sad.Document{
		"v":  acdcVersionDummy,
		"d":  "",
		"i":  req.Issuer,
		"ri": req.Registry,
		"s":  req.Schema,
		"a":  attributesSaid,
	}

	if req.Blind {
		credential["u"] = tel.Nonce()
	}

	for label, section := range map[string]map[string]interface{}{
		"e": req.Edges,
		"r": req.Rules,
	} {
		if section == nil {
			continue
		}

		block := sad.Document{"d": "", "u": tel.Nonce()}
		for name, value := range section {
			block[name] = value
		}

		_, blockSaid, err := sad.Saidify(block)
		if err != nil {
			return nil, err
		}

		sections = append(sections, block)
		credential[label] = blockSaid
	}

	raw, said, err := sad.Saidify(credential)
	if err != nil {
		return nil, err
	}

	schemer, err := schemas.Resolve(req.Schema)
	if err != nil {
		return nil, err
	}

	if err := schemer.Validate(credential); err != nil {
		return nil, err
	}

	return &Issuance{Said: said, Credential: raw, Sections: sections}, nil
}

// Normalize verifies a received credential bottom-up and reduces it to
// most-compact form. Any expanded subsections it carried are returned in
// commitment form (children replaced by their addresses) so the caller can
// index them for later disclosure. Verification is recursive: every expanded
// subsection's recomputed address must match the address that replaces it,
// and the top-level address must match the most-compact serialization.
func Normalize(doc sad.Document) (sad.Document, []sad.Document, error) {
	compact, err := doc.Copy()
	if err != nil {
		return nil, nil, err
	}

	var sections []sad.Document

	for name, value := range compact {
		subsection, ok := addressedSubsection(value)
		if !ok {
			continue
		}

		said, harvested, err := compactSubsection(subsection)
		if err != nil {
			return nil, nil, fmt.Errorf("subsection %q: %w", name, err)
		}

		compact[name] = said
		sections = append(sections, harvested...)
	}

	computed, err := sad.Compute(compact)
	if err != nil {
		return nil, nil, err
	}

	declared, err := compact.Said()
	if err != nil {
		return nil, nil, err
	}

	if computed != declared {
		return nil, nil, fmt.Errorf("credential address mismatch: declared %s, computed %s: %w",
			declared, computed, kerror.ErrValidation)
	}

	return compact, sections, nil
}

// compactSubsection reduces one expanded subsection to its address, verifying
// it and every expanded child on the way. The harvested documents are in
// commitment form, ready for storage.
func compactSubsection(section sad.Document) (string, []sad.Document, error) {
	harvested := sad.Document{}

	var sections []sad.Document

	for name, value := range section {
		child, ok := addressedSubsection(value)
		if !ok {
			harvested[name] = value
			continue
		}

		said, nested, err := compactSubsection(child)
		if err != nil {
			return "", nil, fmt.Errorf("field %q: %w", name, err)
		}

		harvested[name] = said
		sections = append(sections, nested...)
	}

	computed, err := sad.Compute(harvested)
	if err != nil {
		return "", nil, err
	}

	declared, _ := section["d"].(string)
	if computed != declared {
		return "", nil, fmt.Errorf("subsection address mismatch: declared %s, computed %s: %w",
			declared, computed, kerror.ErrValidation)
	}

	return computed, append(sections, harvested), nil
}

// addressedSubsection reports whether value is an expanded self-addressing
// subsection: a JSON object declaring its own address.
func addressedSubsection(value interface{}) (sad.Document, bool) {
	object, ok := value.(map[string]interface{})
	if !ok {
		return nil, false
	}

	if _, ok := object["d"].(string); !ok {
		return nil, false
	}

	return sad.Document(object), true
}
