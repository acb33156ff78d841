/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

// Package keri implements the document store and the two ledgers layered on
// it: per-identifier key-event logs (KELs) and per-subject transaction-event
// logs (TELs). Documents are immutable once stored; ledgers only grow.
//
// A store instance is single-writer. Ledger insertion is a read-then-append
// sequence guarded by the store's own lock; reads of already-stored documents
// are safe to run concurrently.
package keri

import (
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/hyperledger/aries-framework-go/component/log"
	spi "github.com/hyperledger/aries-framework-go/spi/storage"

	"github.com/hyperledger/keri-acdc-go/pkg/doc/event"
	"github.com/hyperledger/keri-acdc-go/pkg/doc/sad"
	"github.com/hyperledger/keri-acdc-go/pkg/kerror"
	"github.com/hyperledger/keri-acdc-go/pkg/kmi"
)

var logger = log.New("keri-acdc/store")

const (
	documentStoreName   = "document"
	kelStoreName        = "kel"
	telStoreName        = "tel"
	keySetStoreName     = "keyset"
	credentialStoreName = "credential"
)

// Credential direction labels.
const (
	IssuedLabel   = "issued"
	ReceivedLabel = "received"
)

// documentRecord keeps a document and its detached attachment in one storage
// record, so insertion of the two halves is a single atomic put and a
// half-written document cannot be observed.
type documentRecord struct {
	SAD        []byte `json:"sad"`
	Attachment []byte `json:"attachment,omitempty"`
	Framed     bool   `json:"framed"`
}

// Store is a document store plus ledgers for one holder.
type Store struct {
	prefix string

	mu          sync.RWMutex
	documents   spi.Store
	kels        spi.Store
	tels        spi.Store
	keySets     spi.Store
	credentials spi.Store
}

// New opens a store for the holder identified by prefix on top of the given
// storage provider.
func New(provider spi.Provider, prefix string) (*Store, error) {
	store := &Store{prefix: prefix}

	for _, target := range []struct {
		name string
		into *spi.Store
	}{
		{documentStoreName, &store.documents},
		{kelStoreName, &store.kels},
		{telStoreName, &store.tels},
		{keySetStoreName, &store.keySets},
		{credentialStoreName, &store.credentials},
	} {
		opened, err := provider.OpenStore(target.name)
		if err != nil {
			return nil, fmt.Errorf("open %s store: %w", target.name, err)
		}

		*target.into = opened
	}

	return store, nil
}

// Prefix returns the identifier prefix of the store's holder.
func (s *Store) Prefix() string {
	return s.prefix
}

// InsertKeySet appends one generation of key material to an identifier's
// key-set history. No ordering validation is performed beyond the append.
func (s *Store) InsertKeySet(pre string, keys *kmi.KeySet) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	history, err := s.keySetHistory(pre)
	if err != nil {
		return err
	}

	history = append(history, keys)

	encoded, err := json.Marshal(history)
	if err != nil {
		return fmt.Errorf("marshal key-set history: %v: %w", err, kerror.ErrEncoding)
	}

	if err := s.keySets.Put(pre, encoded); err != nil {
		return fmt.Errorf("store key-set history for %s: %w", pre, err)
	}

	return nil
}

// CurrentKeySet returns the authoritative signing key set: the second-to-last
// appended generation.
func (s *Store) CurrentKeySet(pre string) (*kmi.KeySet, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	history, err := s.keySetHistory(pre)
	if err != nil {
		return nil, err
	}

	if len(history) < 2 {
		return nil, fmt.Errorf("key-set history for %s holds %d entries, need 2: %w",
			pre, len(history), kerror.ErrDecoding)
	}

	return history[len(history)-2], nil
}

// NextKeySet returns the pre-committed next key set: the last appended
// generation.
func (s *Store) NextKeySet(pre string) (*kmi.KeySet, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	history, err := s.keySetHistory(pre)
	if err != nil {
		return nil, err
	}

	if len(history) == 0 {
		return nil, fmt.Errorf("no key-set history for %s: %w", pre, kerror.ErrDecoding)
	}

	return history[len(history)-1], nil
}

func (s *Store) keySetHistory(pre string) ([]*kmi.KeySet, error) {
	encoded, err := s.keySets.Get(pre)
	if errors.Is(err, spi.ErrDataNotFound) {
		return nil, nil
	} else if err != nil {
		return nil, fmt.Errorf("load key-set history for %s: %w", pre, err)
	}

	var history []*kmi.KeySet
	if err := json.Unmarshal(encoded, &history); err != nil {
		return nil, fmt.Errorf("unmarshal key-set history: %v: %w", err, kerror.ErrDecoding)
	}

	return history, nil
}

// InsertSAD indexes a bare document (no attachment) by its declared address.
// The address is not recomputed here; integrity verification happens before
// insertion, at the ingestion or expansion boundary.
func (s *Store) InsertSAD(raw []byte) error {
	doc, err := sad.Parse(raw)
	if err != nil {
		return err
	}

	said, err := doc.Said()
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	// A framed insertion of the same document keeps its attachment half.
	existing, err := s.documentRecord(said)
	if err == nil && existing.Framed {
		existing.SAD = raw
		return s.putDocumentRecord(said, existing)
	}

	return s.putDocumentRecord(said, &documentRecord{SAD: raw})
}

// insertFramed splits a framed message into its document and attachment
// halves using the parser's reported raw length, and stores both in a single
// put. Returns the document's address.
func (s *Store) insertFramed(framed []byte) (string, error) {
	doc, rawLength, err := sad.ParseFramed(framed)
	if err != nil {
		return "", err
	}

	said, err := doc.Said()
	if err != nil {
		return "", err
	}

	record := &documentRecord{
		SAD:        framed[:rawLength],
		Attachment: framed[rawLength:],
		Framed:     true,
	}

	if err := s.putDocumentRecord(said, record); err != nil {
		return "", err
	}

	return said, nil
}

// InsertKeyEvent stores a framed key event and appends its address to the
// identifier's KEL.
func (s *Store) InsertKeyEvent(pre string, framed []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	said, err := s.insertFramed(framed)
	if err != nil {
		return err
	}

	return s.appendToLedger(s.kels, pre, said)
}

// InsertTransactionEvent stores a framed transaction event and appends its
// address to the subject's TEL.
func (s *Store) InsertTransactionEvent(subject string, framed []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	said, err := s.insertFramed(framed)
	if err != nil {
		return err
	}

	return s.appendToLedger(s.tels, subject, said)
}

// InsertCredential stores a framed credential and files its address under the
// issued or received direction label.
func (s *Store) InsertCredential(framed []byte, issued bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	said, err := s.insertFramed(framed)
	if err != nil {
		return err
	}

	label := ReceivedLabel
	if issued {
		label = IssuedLabel
	}

	return s.appendToLedger(s.credentials, label, said)
}

// Credentials lists the addresses filed under a direction label, in insertion
// order.
func (s *Store) Credentials(issued bool) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	label := ReceivedLabel
	if issued {
		label = IssuedLabel
	}

	return s.ledger(s.credentials, label)
}

// SAD returns the parsed document stored under said.
func (s *Store) SAD(said string) (sad.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	record, err := s.documentRecord(said)
	if err != nil {
		return nil, err
	}

	return sad.Parse(record.SAD)
}

// Framed returns the stored document bytes concatenated with the stored
// attachment bytes. A framed record missing either half cannot be produced by
// the atomic insertion path, so observing one is an invariant violation.
func (s *Store) Framed(said string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.framed(said)
}

func (s *Store) framed(said string) ([]byte, error) {
	record, err := s.documentRecord(said)
	if err != nil {
		return nil, err
	}

	if !record.Framed || len(record.SAD) == 0 {
		logger.Errorf("document %s is missing a stored half", said)

		return nil, fmt.Errorf("document %s has no attachment half: %w", said, kerror.ErrValue)
	}

	return append(append([]byte{}, record.SAD...), record.Attachment...), nil
}

// Credential returns the stored credential bytes with their attachment.
func (s *Store) Credential(said string) ([]byte, error) {
	return s.Framed(said)
}

// KeyEvent returns the framed key event of pre at the given sequence number.
func (s *Store) KeyEvent(pre string, sn uint64) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.ledgerEvent(s.kels, pre, sn)
}

// TransactionEvent returns the framed transaction event of subject at the
// given sequence number.
func (s *Store) TransactionEvent(subject string, sn uint64) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.ledgerEvent(s.tels, subject, sn)
}

func (s *Store) ledgerEvent(ledgerStore spi.Store, subject string, sn uint64) ([]byte, error) {
	saids, err := s.requireLedger(ledgerStore, subject)
	if err != nil {
		return nil, err
	}

	// One past the end is out of range.
	if sn >= uint64(len(saids)) {
		return nil, fmt.Errorf("sequence %d out of range for %s (%d events): %w",
			sn, subject, len(saids), kerror.ErrValue)
	}

	return s.framed(saids[sn])
}

// KEL returns every framed key event of pre, in sequence order.
func (s *Store) KEL(pre string) ([][]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.wholeLedger(s.kels, pre)
}

// TEL returns every framed transaction event of subject, in sequence order.
func (s *Store) TEL(subject string) ([][]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.wholeLedger(s.tels, subject)
}

func (s *Store) wholeLedger(ledgerStore spi.Store, subject string) ([][]byte, error) {
	saids, err := s.requireLedger(ledgerStore, subject)
	if err != nil {
		return nil, err
	}

	events := make([][]byte, 0, len(saids))

	for _, said := range saids {
		framed, err := s.framed(said)
		if err != nil {
			return nil, err
		}

		events = append(events, framed)
	}

	return events, nil
}

// LatestKeyEventSaid returns the address of the KEL tail of pre.
func (s *Store) LatestKeyEventSaid(pre string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	saids, err := s.requireLedger(s.kels, pre)
	if err != nil {
		return "", err
	}

	if len(saids) == 0 {
		return "", fmt.Errorf("empty KEL for %s: %w", pre, kerror.ErrValue)
	}

	return saids[len(saids)-1], nil
}

// LatestTransactionEvent returns the framed TEL tail of subject.
func (s *Store) LatestTransactionEvent(subject string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	saids, err := s.requireLedger(s.tels, subject)
	if err != nil {
		return nil, err
	}

	if len(saids) == 0 {
		return nil, fmt.Errorf("empty TEL for %s: %w", subject, kerror.ErrValue)
	}

	return s.framed(saids[len(saids)-1])
}

// LatestEstablishmentEvent returns the most recent establishment event of pre
// with the sequence number at which it was found.
func (s *Store) LatestEstablishmentEvent(pre string) ([]byte, uint64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	saids, err := s.requireLedger(s.kels, pre)
	if err != nil {
		return nil, 0, err
	}

	return s.latestEstablishmentAsOf(pre, uint64(len(saids)))
}

// LatestEstablishmentEventAsOf returns the most recent establishment event of
// pre at or before the given sequence bound. Interaction events never change
// keys, so verifying a signature made at sequence n means walking back to the
// establishment event in force at n.
func (s *Store) LatestEstablishmentEventAsOf(pre string, bound uint64) ([]byte, uint64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.latestEstablishmentAsOf(pre, bound)
}

func (s *Store) latestEstablishmentAsOf(pre string, bound uint64) ([]byte, uint64, error) {
	saids, err := s.requireLedger(s.kels, pre)
	if err != nil {
		return nil, 0, err
	}

	for index := len(saids) - 1; index >= 0; index-- {
		sn := uint64(index)
		if sn > bound {
			continue
		}

		framed, err := s.framed(saids[index])
		if err != nil {
			return nil, 0, err
		}

		evt, err := event.FromRaw(framed)
		if err != nil {
			return nil, 0, err
		}

		if evt.IsEstablishment() {
			return framed, sn, nil
		}
	}

	return nil, 0, fmt.Errorf("no establishment event for %s at or before %d: %w",
		pre, bound, kerror.ErrValue)
}

// LatestEstablishmentSaid returns only the address and sequence number of the
// most recent establishment event of pre.
func (s *Store) LatestEstablishmentSaid(pre string) (string, uint64, error) {
	framed, sn, err := s.LatestEstablishmentEvent(pre)
	if err != nil {
		return "", 0, err
	}

	return establishmentSaid(framed, sn)
}

// LatestEstablishmentSaidAsOf returns only the address and sequence number of
// the establishment event in force at the given bound.
func (s *Store) LatestEstablishmentSaidAsOf(pre string, bound uint64) (string, uint64, error) {
	framed, sn, err := s.LatestEstablishmentEventAsOf(pre, bound)
	if err != nil {
		return "", 0, err
	}

	return establishmentSaid(framed, sn)
}

func establishmentSaid(framed []byte, sn uint64) (string, uint64, error) {
	evt, err := event.FromRaw(framed)
	if err != nil {
		return "", 0, err
	}

	return evt.Said, sn, nil
}

// CountKeyEvents returns the KEL length of pre, zero for a never-seen
// identifier.
func (s *Store) CountKeyEvents(pre string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	saids, err := s.ledger(s.kels, pre)
	if err != nil {
		return 0, err
	}

	return len(saids), nil
}

// CountTransactionEvents returns the TEL length of subject, zero for a
// never-seen subject.
func (s *Store) CountTransactionEvents(subject string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	saids, err := s.ledger(s.tels, subject)
	if err != nil {
		return 0, err
	}

	return len(saids), nil
}

// CountEstablishmentEvents counts the establishment events in the KEL of pre.
// Unlike the raw counters, the identifier must already be provisioned: an
// unknown identifier is an error, not zero.
func (s *Store) CountEstablishmentEvents(pre string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	events, err := s.wholeLedger(s.kels, pre)
	if err != nil {
		return 0, err
	}

	count := 0

	for _, framed := range events {
		evt, err := event.FromRaw(framed)
		if err != nil {
			return 0, err
		}

		if evt.IsEstablishment() {
			count++
		}
	}

	return count, nil
}

func (s *Store) documentRecord(said string) (*documentRecord, error) {
	encoded, err := s.documents.Get(said)
	if errors.Is(err, spi.ErrDataNotFound) {
		return nil, fmt.Errorf("no document stored under %s: %w", said, kerror.ErrValue)
	} else if err != nil {
		return nil, fmt.Errorf("load document %s: %w", said, err)
	}

	record := &documentRecord{}
	if err := json.Unmarshal(encoded, record); err != nil {
		return nil, fmt.Errorf("unmarshal document record: %v: %w", err, kerror.ErrDecoding)
	}

	return record, nil
}

func (s *Store) putDocumentRecord(said string, record *documentRecord) error {
	encoded, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("marshal document record: %v: %w", err, kerror.ErrEncoding)
	}

	if err := s.documents.Put(said, encoded); err != nil {
		return fmt.Errorf("store document %s: %w", said, err)
	}

	return nil
}

// ledger loads an ordered address list, nil for a never-seen subject.
func (s *Store) ledger(ledgerStore spi.Store, subject string) ([]string, error) {
	encoded, err := ledgerStore.Get(subject)
	if errors.Is(err, spi.ErrDataNotFound) {
		return nil, nil
	} else if err != nil {
		return nil, fmt.Errorf("load ledger for %s: %w", subject, err)
	}

	var saids []string
	if err := json.Unmarshal(encoded, &saids); err != nil {
		return nil, fmt.Errorf("unmarshal ledger: %v: %w", err, kerror.ErrDecoding)
	}

	return saids, nil
}

// requireLedger loads an ordered address list and fails for a never-seen
// subject.
func (s *Store) requireLedger(ledgerStore spi.Store, subject string) ([]string, error) {
	encoded, err := ledgerStore.Get(subject)
	if errors.Is(err, spi.ErrDataNotFound) {
		return nil, fmt.Errorf("unknown subject %s: %w", subject, kerror.ErrValue)
	} else if err != nil {
		return nil, fmt.Errorf("load ledger for %s: %w", subject, err)
	}

	var saids []string
	if err := json.Unmarshal(encoded, &saids); err != nil {
		return nil, fmt.Errorf("unmarshal ledger: %v: %w", err, kerror.ErrDecoding)
	}

	return saids, nil
}

func (s *Store) appendToLedger(ledgerStore spi.Store, subject, said string) error {
	saids, err := s.ledger(ledgerStore, subject)
	if err != nil {
		return err
	}

	saids = append(saids, said)

	encoded, err := json.Marshal(saids)
	if err != nil {
		return fmt.Errorf("marshal ledger: %v: %w", err, kerror.ErrEncoding)
	}

	if err := ledgerStore.Put(subject, encoded); err != nil {
		return fmt.Errorf("store ledger for %s: %w", subject, err)
	}

	return nil
}
