/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package acdc

import (
	"fmt"

	"github.com/hyperledger/keri-acdc-go/pkg/doc/sad"
	"github.com/hyperledger/keri-acdc-go/pkg/kerror"
)

// Resolver resolves stored documents by their content address. The document
// store satisfies this.
type Resolver interface {
	SAD(said string) (sad.Document, error)
}

// Expand returns a copy of the credential with the requested attribute paths
// expanded from the resolver. Every section on the way to a requested leaf is
// spliced in; sibling blinded fields that were not requested stay bare
// addresses, revealing nothing beyond the commitment. Each fetched subsection
// is verified against the address it replaces before splicing.
//
// Expansion never changes the credential's top-level address, is idempotent
// for a fixed disclosure set, and reveals strictly more for a superset of
// paths.
func Expand(doc sad.Document, paths [][]string, resolver Resolver) (sad.Document, error) {
	expanded, err := doc.Copy()
	if err != nil {
		return nil, err
	}

	for _, path := range paths {
		if len(path) == 0 {
			return nil, fmt.Errorf("empty disclosure path: %w", kerror.ErrProgrammer)
		}

		if err := expandPath(expanded, path, resolver); err != nil {
			return nil, fmt.Errorf("disclose %v: %w", path, err)
		}
	}

	return expanded, nil
}

func expandPath(doc sad.Document, path []string, resolver Resolver) error {
	container := map[string]interface{}(doc)

	for depth, segment := range path {
		value, ok := container[segment]
		if !ok {
			return fmt.Errorf("no field %q: %w", segment, kerror.ErrValue)
		}

		last := depth == len(path)-1

		switch typed := value.(type) {
		case map[string]interface{}:
			// Already expanded; descend if the path continues.
			if last {
				return nil
			}

			container = typed

		case string:
			if !sad.IsSaid(typed) {
				// A plain string value; nothing to expand, nothing to
				// descend into.
				if last {
					return nil
				}

				return fmt.Errorf("field %q is not a subsection: %w", segment, kerror.ErrValue)
			}

			subsection, err := splice(container, segment, typed, resolver)
			if err != nil {
				return err
			}

			if last {
				return nil
			}

			container = subsection

		default:
			// A plain non-string leaf (number, bool, list).
			if last {
				return nil
			}

			return fmt.Errorf("field %q is not a subsection: %w", segment, kerror.ErrValue)
		}
	}

	return nil
}

// splice fetches the subsection stored under said and substitutes it for the
// bare address at container[segment], after checking that its recomputed
// address matches. An address mismatch is an integrity violation and always a
// hard failure.
func splice(container map[string]interface{}, segment, said string,
	resolver Resolver) (map[string]interface{}, error) {
	subsection, err := resolver.SAD(said)
	if err != nil {
		return nil, err
	}

	computed, err := sad.Compute(subsection)
	if err != nil {
		return nil, err
	}

	if computed != said {
		return nil, fmt.Errorf("subsection at %q recomputes to %s, expected %s: %w",
			segment, computed, said, kerror.ErrValue)
	}

	spliced := map[string]interface{}(subsection)
	container[segment] = spliced

	return spliced, nil
}
