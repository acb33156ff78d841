/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

// Command acdc-demo walks a credential through a three-party selective
// disclosure flow: an issuer mints a credential with two blinded attributes
// for an issuee, the issuee imports it with full provenance, then presents
// only one attribute to a disclosee.
package main

import (
	"fmt"
	"os"

	"github.com/tidwall/gjson"

	"github.com/hyperledger/keri-acdc-go/pkg/doc/schema"
	"github.com/hyperledger/keri-acdc-go/pkg/vault"
)

const demoSchema = `{
  "$id": "",
  "$schema": "http://json-schema.org/draft-07/schema#",
  "title": "Nested Partial Disclosure",
  "description": "A demonstration of nested partial disclosure",
  "credentialType": "Demonstration",
  "version": "1.0.0",
  "type": "object",
  "required": ["v", "d", "i", "s", "ri", "a"],
  "properties": {
    "v": {"description": "Credential version", "type": "string"},
    "d": {"description": "Credential SAID", "type": "string"},
    "u": {"description": "One time use nonce", "type": "string"},
    "i": {"description": "Issuer AID", "type": "string"},
    "ri": {"description": "Credential registry identifier", "type": "string"},
    "s": {"description": "Schema SAID", "type": "string"},
    "a": {
      "oneOf": [
        {"description": "Attributes section SAID", "type": "string"},
        {
          "description": "Attributes section",
          "type": "object",
          "required": ["d", "dt", "i", "u", "legalName", "age"],
          "properties": {
            "d": {"description": "Attributes SAID", "type": "string"},
            "dt": {"description": "Issuance timestamp", "type": "string", "format": "date-time"},
            "i": {"description": "Issuee AID", "type": "string"},
            "u": {"description": "Salty nonce", "type": "string"},
            "legalName": {
              "oneOf": [
                {"description": "Blinded legal name SAID", "type": "string"},
                {
                  "type": "object",
                  "required": ["d", "u", "value"],
                  "properties": {
                    "d": {"description": "SAID of disclosable data", "type": "string"},
                    "u": {"description": "Salty nonce", "type": "string"},
                    "value": {"description": "Unblinded legal name", "type": "string"}
                  },
                  "additionalProperties": false
                }
              ]
            },
            "age": {
              "oneOf": [
                {"description": "Blinded age SAID", "type": "string"},
                {
                  "type": "object",
                  "required": ["d", "u", "value"],
                  "properties": {
                    "d": {"description": "SAID of disclosable data", "type": "string"},
                    "u": {"description": "Salty nonce", "type": "string"},
                    "value": {"description": "Unblinded age", "type": "number"}
                  },
                  "additionalProperties": false
                }
              ]
            }
          },
          "additionalProperties": false
        }
      ]
    }
  },
  "additionalProperties": false
}`

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "acdc-demo: %s\n", err)
		os.Exit(1)
	}
}

func run() error {
	schemer, err := schema.New([]byte(demoSchema))
	if err != nil {
		return err
	}

	schemas := schema.NewCache(schema.DefaultCacheSize)
	defer schemas.Close()

	if err := schemas.Prime(schemer); err != nil {
		return err
	}

	fmt.Printf("constructed schema %s\n\n", schemer.Said())

	issuer, err := vault.New(&vault.Config{Schemas: schemas})
	if err != nil {
		return err
	}

	issuee, err := vault.New(&vault.Config{Schemas: schemas})
	if err != nil {
		return err
	}

	disclosee, err := vault.New(&vault.Config{Schemas: schemas})
	if err != nil {
		return err
	}

	fmt.Printf("incepted issuer    %s\n", issuer.AID())
	fmt.Printf("incepted issuee    %s\n", issuee.AID())
	fmt.Printf("incepted disclosee %s\n\n", disclosee.AID())

	said, err := issuer.Issue(&vault.IssueRequest{
		Schema:    schemer.Said(),
		Recipient: issuee.AID(),
		Blind:     true,
		Private: map[string]interface{}{
			"legalName": "Jason Colburne",
			"age":       43,
		},
	})
	if err != nil {
		return err
	}

	fmt.Printf("issued credential %s\n\n", said)

	issuance, err := issuer.Fetch(said, []string{"legalName", "age"}, true)
	if err != nil {
		return err
	}

	fmt.Printf("full issuance bundle:\n%s\n\n", issuance)

	if _, err := issuee.Ingest(issuance, nil); err != nil {
		return err
	}

	presentation, err := issuee.Fetch(said, []string{"legalName"}, true)
	if err != nil {
		return err
	}

	fmt.Printf("partial presentation bundle:\n%s\n\n", presentation)

	if _, err := disclosee.Ingest(presentation, nil); err != nil {
		return err
	}

	disclosed, err := disclosee.Fetch(said, []string{"legalName"}, false)
	if err != nil {
		return err
	}

	fmt.Printf("disclosee sees legalName %q and age commitment %s\n",
		gjson.GetBytes(disclosed, "a.legalName.value").String(),
		gjson.GetBytes(disclosed, "a.age").String())

	return nil
}
