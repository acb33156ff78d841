/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

// Package schema validates credential documents against self-addressing
// JSON-Schema documents. Schemas are identified by the content address
// embedded at their "$id" field and resolved through an explicitly
// constructed, explicitly primed cache.
package schema

import (
	"fmt"

	"github.com/bluele/gcache"
	"github.com/xeipuuv/gojsonschema"

	"github.com/hyperledger/keri-acdc-go/pkg/doc/sad"
	"github.com/hyperledger/keri-acdc-go/pkg/kerror"
)

// DefaultCacheSize bounds the number of compiled schemas kept resident.
const DefaultCacheSize = 100

// Schemer holds one compiled, self-addressing schema.
type Schemer struct {
	said     string
	raw      []byte
	compiled *gojsonschema.Schema
}

// New parses, addresses and compiles a schema document. A schema with a blank
// "$id" is saidified first; a schema that already declares its address is
// verified against it.
func New(raw []byte) (*Schemer, error) {
	doc, err := sad.Parse(raw)
	if err != nil {
		return nil, err
	}

	id, ok := doc["$id"].(string)
	if !ok {
		return nil, fmt.Errorf("schema carries no $id: %w", kerror.ErrValidation)
	}

	var said string

	if id == "" {
		raw, said, err = sad.Saidify(doc)
		if err != nil {
			return nil, err
		}
	} else {
		if err = sad.Verify(raw); err != nil {
			return nil, err
		}

		said = id
	}

	compiled, err := gojsonschema.NewSchema(gojsonschema.NewBytesLoader(raw))
	if err != nil {
		return nil, fmt.Errorf("compile schema %s: %v: %w", said, err, kerror.ErrValidation)
	}

	return &Schemer{said: said, raw: raw, compiled: compiled}, nil
}

// Said returns the schema's content address.
func (s *Schemer) Said() string {
	return s.said
}

// Raw returns the schema's canonical serialization.
func (s *Schemer) Raw() []byte {
	return s.raw
}

// Validate checks a credential document against the schema.
func (s *Schemer) Validate(doc sad.Document) error {
	raw, err := sad.Marshal(doc)
	if err != nil {
		return err
	}

	result, err := s.compiled.Validate(gojsonschema.NewBytesLoader(raw))
	if err != nil {
		return fmt.Errorf("validate against schema %s: %v: %w", s.said, err, kerror.ErrValidation)
	}

	if !result.Valid() {
		return fmt.Errorf("document does not conform to schema %s: %v: %w",
			s.said, result.Errors(), kerror.ErrValidation)
	}

	return nil
}

// Cache is an explicitly constructed, explicitly primed schema cache. It
// replaces any notion of an ambient global: construct one, prime it with the
// schemas in play, hand it to whoever validates, and close it when done.
type Cache struct {
	cache gcache.Cache
}

// NewCache builds an empty schema cache holding up to size compiled schemas.
func NewCache(size int) *Cache {
	return &Cache{cache: gcache.New(size).LRU().Build()}
}

// Prime loads compiled schemas into the cache.
func (c *Cache) Prime(schemers ...*Schemer) error {
	for _, schemer := range schemers {
		if err := c.cache.Set(schemer.Said(), schemer); err != nil {
			return fmt.Errorf("prime schema %s: %v: %w", schemer.Said(), err, kerror.ErrEncoding)
		}
	}

	return nil
}

// Resolve returns the schema registered under said.
func (c *Cache) Resolve(said string) (*Schemer, error) {
	cached, err := c.cache.Get(said)
	if err != nil {
		return nil, fmt.Errorf("schema %s not primed: %w", said, kerror.ErrValue)
	}

	return cached.(*Schemer), nil
}

// Close releases every cached schema. The cache must not be used afterwards.
func (c *Cache) Close() {
	c.cache.Purge()
}
