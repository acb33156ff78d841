/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

// Package vault composes the document store, the ingestion pipeline and the
// credential expander behind one holder-facing facade: incept an identifier
// and registry, issue credentials, fetch them at a chosen disclosure level,
// and absorb bundles received from other holders.
package vault

import (
	"fmt"
	"strings"
	"time"

	"github.com/hyperledger/aries-framework-go/component/log"
	"github.com/hyperledger/aries-framework-go/component/storageutil/mem"
	spi "github.com/hyperledger/aries-framework-go/spi/storage"
	"github.com/tidwall/gjson"

	"github.com/hyperledger/keri-acdc-go/pkg/doc/acdc"
	"github.com/hyperledger/keri-acdc-go/pkg/doc/event"
	"github.com/hyperledger/keri-acdc-go/pkg/doc/sad"
	"github.com/hyperledger/keri-acdc-go/pkg/doc/schema"
	"github.com/hyperledger/keri-acdc-go/pkg/doc/tel"
	"github.com/hyperledger/keri-acdc-go/pkg/ingest"
	"github.com/hyperledger/keri-acdc-go/pkg/kerror"
	"github.com/hyperledger/keri-acdc-go/pkg/kmi"
	"github.com/hyperledger/keri-acdc-go/pkg/store/keri"
)

var logger = log.New("keri-acdc/vault")

// Config configures a vault. All fields are optional.
type Config struct {
	// Provider backs the vault's document store. Defaults to the in-memory
	// provider.
	Provider spi.Provider

	// Schemas resolves credential schemas at issuance. Defaults to an empty
	// cache; prime it before issuing.
	Schemas *schema.Cache
}

// IssueRequest selects what to put in a newly issued credential.
type IssueRequest struct {
	// Schema is the content address of the credential schema, which must be
	// primed in the vault's schema cache.
	Schema string

	// Data holds public attributes; Private holds attributes blinded into
	// disclosable commitments.
	Data    map[string]interface{}
	Private map[string]interface{}

	// Recipient is the optional issuee identifier.
	Recipient string

	// Blind salts the credential itself so its address reveals nothing.
	Blind bool

	// Edges and Rules are optional provenance and use sections.
	Edges map[string]interface{}
	Rules map[string]interface{}
}

// Vault is a single holder's session: one store, one identifier prefix, one
// credential registry.
type Vault struct {
	store    *keri.Store
	pipeline *ingest.Pipeline
	schemas  *schema.Cache
	prefix   string
	registry string
}

// New incepts a fresh identifier with a credential registry anchored into its
// KEL, and returns the vault controlling both.
func New(config *Config) (*Vault, error) {
	if config == nil {
		config = &Config{}
	}

	provider := config.Provider
	if provider == nil {
		provider = mem.NewProvider()
	}

	schemas := config.Schemas
	if schemas == nil {
		schemas = schema.NewCache(schema.DefaultCacheSize)
	}

	inception, err := kmi.Incept()
	if err != nil {
		return nil, err
	}

	registry, registryInception, err := tel.ManagementIncept(inception.AID)
	if err != nil {
		return nil, err
	}

	seal := event.Seal{Said: registry, Identifier: registry, Sequence: "0"}

	interactionSaid, interaction, err := kmi.Interact(
		inception.Current, inception.AID, inception.AID, 1, []event.Seal{seal})
	if err != nil {
		return nil, err
	}

	store, err := keri.New(provider, inception.AID)
	if err != nil {
		return nil, err
	}

	if err := store.InsertKeySet(inception.AID, inception.Current); err != nil {
		return nil, err
	}

	if err := store.InsertKeySet(inception.AID, inception.Next); err != nil {
		return nil, err
	}

	vault := &Vault{
		store:    store,
		pipeline: ingest.New(store),
		schemas:  schemas,
		prefix:   inception.AID,
		registry: registry,
	}

	registryInception = append(registryInception, tel.AnchorAttachment(1, interactionSaid)...)

	bundle := concat(inception.Event, interaction, registryInception)
	if _, err := vault.pipeline.Ingest(bundle, nil); err != nil {
		return nil, err
	}

	logger.Infof("incepted identifier %s with registry %s", inception.AID, registry)

	return vault, nil
}

// AID returns the vault's identifier prefix.
func (v *Vault) AID() string {
	return v.prefix
}

// Registry returns the vault's credential registry identifier.
func (v *Vault) Registry() string {
	return v.registry
}

// Store exposes the vault's document store.
func (v *Vault) Store() *keri.Store {
	return v.store
}

// Schemas exposes the vault's schema cache for priming.
func (v *Vault) Schemas() *schema.Cache {
	return v.schemas
}

// Issue mints a credential, opens its status history in the registry, anchors
// the issuance into the vault's KEL and files everything locally. Returns the
// new credential's address.
func (v *Vault) Issue(request *IssueRequest) (string, error) {
	issuance, err := acdc.Issue(v.schemas, &acdc.IssueRequest{
		Issuer:    v.prefix,
		Registry:  v.registry,
		Schema:    request.Schema,
		Data:      request.Data,
		Private:   request.Private,
		Recipient: request.Recipient,
		Blind:     request.Blind,
		Edges:     request.Edges,
		Rules:     request.Rules,
	})
	if err != nil {
		return "", err
	}

	timestamp := time.Now().UTC().Format(time.RFC3339)

	issuanceSaid, issuanceEvent, err := tel.Issue(v.registry, issuance.Said, timestamp)
	if err != nil {
		return "", err
	}

	seal := event.Seal{Said: issuanceSaid, Identifier: issuance.Said, Sequence: "0"}

	interactionSaid, interaction, sn, err := v.anchor(seal)
	if err != nil {
		return "", err
	}

	issuanceEvent = append(issuanceEvent, tel.AnchorAttachment(sn, interactionSaid)...)

	keys, err := v.store.CurrentKeySet(v.prefix)
	if err != nil {
		return "", err
	}

	attachment, err := kmi.SignatureAttachment(keys, issuance.Credential)
	if err != nil {
		return "", err
	}

	credential := append(append([]byte{}, issuance.Credential...), attachment...)

	bundle := concat(interaction, issuanceEvent, credential)
	if _, err := v.pipeline.Ingest(bundle, &ingest.Options{Issued: true}); err != nil {
		return "", err
	}

	for _, section := range issuance.Sections {
		raw, err := sad.Marshal(section)
		if err != nil {
			return "", err
		}

		if err := v.store.InsertSAD(raw); err != nil {
			return "", err
		}
	}

	logger.Infof("issued credential %s", issuance.Said)

	return issuance.Said, nil
}

// Revoke closes a credential's status history and anchors the revocation into
// the vault's KEL.
func (v *Vault) Revoke(credentialSaid string) error {
	latest, err := v.store.LatestTransactionEvent(credentialSaid)
	if err != nil {
		return err
	}

	tail, err := event.FromRaw(latest)
	if err != nil {
		return err
	}

	if tail.Ilk != event.IlkIssuance {
		return fmt.Errorf("credential %s is not in issued state: %w",
			credentialSaid, kerror.ErrValidation)
	}

	timestamp := time.Now().UTC().Format(time.RFC3339)

	revocationSaid, revocation, err := tel.Revoke(v.registry, credentialSaid, tail.Said, timestamp)
	if err != nil {
		return err
	}

	seal := event.Seal{Said: revocationSaid, Identifier: credentialSaid, Sequence: "1"}

	interactionSaid, interaction, sn, err := v.anchor(seal)
	if err != nil {
		return err
	}

	revocation = append(revocation, tel.AnchorAttachment(sn, interactionSaid)...)

	if _, err := v.pipeline.Ingest(concat(interaction, revocation), nil); err != nil {
		return err
	}

	logger.Infof("revoked credential %s", credentialSaid)

	return nil
}

// RotateKeys rotates the vault's signing keys: the pre-committed next key set
// becomes current and a fresh next commitment is appended.
func (v *Vault) RotateKeys() error {
	newCurrent, err := v.store.NextKeySet(v.prefix)
	if err != nil {
		return err
	}

	count, err := v.store.CountKeyEvents(v.prefix)
	if err != nil {
		return err
	}

	prior, err := v.store.LatestKeyEventSaid(v.prefix)
	if err != nil {
		return err
	}

	rotation, err := kmi.Rotate(newCurrent, v.prefix, prior, uint64(count))
	if err != nil {
		return err
	}

	if err := v.store.InsertKeySet(v.prefix, rotation.Next); err != nil {
		return err
	}

	if _, err := v.pipeline.Ingest(rotation.Event, nil); err != nil {
		return err
	}

	return nil
}

// Fetch loads a credential and expands it for disclosure. Each entry in
// disclose names an attribute, with dots for nested subsections
// ("address.city"); the top attribute block is always expanded so a verifier
// sees its declared field set. With provenance, the issuer's full KEL and the
// registry's and credential's full TELs are prepended so the recipient can
// verify the credential without further round trips.
func (v *Vault) Fetch(credentialSaid string, disclose []string, provenance bool) ([]byte, error) {
	framed, err := v.store.Credential(credentialSaid)
	if err != nil {
		return nil, err
	}

	doc, rawLength, err := sad.ParseFramed(framed)
	if err != nil {
		return nil, err
	}

	paths := [][]string{{"a"}}
	for _, field := range disclose {
		paths = append(paths, append([]string{"a"}, strings.Split(field, ".")...))
	}

	expanded, err := acdc.Expand(doc, paths, v.store)
	if err != nil {
		return nil, err
	}

	expandedRaw, err := sad.Marshal(expanded)
	if err != nil {
		return nil, err
	}

	var bundle []byte

	if provenance {
		raw := framed[:rawLength]
		issuer := gjson.GetBytes(raw, "i").String()
		registry := gjson.GetBytes(raw, "ri").String()

		kel, err := v.store.KEL(issuer)
		if err != nil {
			return nil, err
		}

		managementTel, err := v.store.TEL(registry)
		if err != nil {
			return nil, err
		}

		credentialTel, err := v.store.TEL(credentialSaid)
		if err != nil {
			return nil, err
		}

		for _, messages := range [][][]byte{kel, managementTel, credentialTel} {
			bundle = append(bundle, concat(messages...)...)
		}
	}

	bundle = append(bundle, expandedRaw...)
	bundle = append(bundle, framed[rawLength:]...)

	return bundle, nil
}

// Ingest absorbs an externally received bundle into the vault's store.
func (v *Vault) Ingest(bundle []byte, opts *ingest.Options) (*ingest.Result, error) {
	return v.pipeline.Ingest(bundle, opts)
}

// anchor builds and ingests-ready an interaction event carrying seal at the
// vault's KEL tail, returning its address, framed bytes and sequence number.
func (v *Vault) anchor(seal event.Seal) (string, []byte, uint64, error) {
	count, err := v.store.CountKeyEvents(v.prefix)
	if err != nil {
		return "", nil, 0, err
	}

	prior, err := v.store.LatestKeyEventSaid(v.prefix)
	if err != nil {
		return "", nil, 0, err
	}

	keys, err := v.store.CurrentKeySet(v.prefix)
	if err != nil {
		return "", nil, 0, err
	}

	sn := uint64(count)

	said, framed, err := kmi.Interact(keys, v.prefix, prior, sn, []event.Seal{seal})
	if err != nil {
		return "", nil, 0, err
	}

	return said, framed, sn, nil
}

func concat(messages ...[]byte) []byte {
	var joined []byte
	for _, message := range messages {
		joined = append(joined, message...)
	}

	return joined
}
