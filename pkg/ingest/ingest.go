/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

// Package ingest implements the pipeline that absorbs a framed message
// stream: it locates each message and its trailing attachment, classifies the
// message by its discriminant, validates addresses and ledger chain linkage,
// and routes the message into the document store. Failures never mutate the
// ledger they would have extended.
package ingest

import (
	"bytes"
	"fmt"

	"github.com/hyperledger/aries-framework-go/component/log"

	"github.com/hyperledger/keri-acdc-go/pkg/doc/acdc"
	"github.com/hyperledger/keri-acdc-go/pkg/doc/event"
	"github.com/hyperledger/keri-acdc-go/pkg/doc/sad"
	"github.com/hyperledger/keri-acdc-go/pkg/kerror"
)

var logger = log.New("keri-acdc/ingest")

// Store is the slice of document-store behavior the pipeline routes into.
type Store interface {
	InsertKeyEvent(pre string, framed []byte) error
	InsertTransactionEvent(subject string, framed []byte) error
	InsertCredential(framed []byte, issued bool) error
	InsertSAD(raw []byte) error
	CountKeyEvents(pre string) (int, error)
	CountTransactionEvents(subject string) (int, error)
	LatestKeyEventSaid(pre string) (string, error)
	KEL(pre string) ([][]byte, error)
	TransactionEvent(subject string, sn uint64) ([]byte, error)
}

// Options selects the pipeline's failure and filing behavior.
type Options struct {
	// Partial skips a message that fails validation and continues with the
	// rest of the stream, instead of aborting the batch. Used when a received
	// disclosure intentionally omits referenced provenance documents.
	Partial bool

	// Issued files ingested credentials under the issued direction label
	// instead of received.
	Issued bool
}

// Result reports what a run of the pipeline did. In partial mode, Skipped
// holds one error per message that failed validation.
type Result struct {
	Ingested int
	Skipped  []error
}

// Pipeline validates and indexes framed message streams into one store.
type Pipeline struct {
	store Store
}

// New builds a pipeline over the given store.
func New(store Store) *Pipeline {
	return &Pipeline{store: store}
}

// Ingest walks the stream message by message. In strict mode the first
// failure aborts the batch; messages already applied are not rolled back.
func (p *Pipeline) Ingest(stream []byte, opts *Options) (*Result, error) {
	if opts == nil {
		opts = &Options{}
	}

	result := &Result{}
	index := 0

	for position := skipToMessage(stream, 0); position < len(stream); index++ {
		doc, rawLength, err := sad.ParseFramed(stream[position:])
		if err != nil {
			if !opts.Partial {
				return result, fmt.Errorf("message %d: %w", index, err)
			}

			logger.Debugf("skipping unparseable message %d: %s", index, err)
			result.Skipped = append(result.Skipped, fmt.Errorf("message %d: %w", index, err))
			position = skipToMessage(stream, position+1)

			continue
		}

		// The attachment runs to the next message boundary or end of stream.
		end := skipToMessage(stream, position+rawLength)
		framed := stream[position:end]

		if err := p.route(doc, framed[:rawLength], framed, opts); err != nil {
			if !opts.Partial {
				return result, fmt.Errorf("message %d: %w", index, err)
			}

			logger.Debugf("skipping message %d: %s", index, err)
			result.Skipped = append(result.Skipped, fmt.Errorf("message %d: %w", index, err))
		} else {
			result.Ingested++
		}

		position = end
	}

	return result, nil
}

// skipToMessage advances to the next message boundary at or after position.
// Attachments are qb64 text and cannot contain an opening brace.
func skipToMessage(stream []byte, position int) int {
	if position >= len(stream) {
		return len(stream)
	}

	offset := bytes.IndexByte(stream[position:], '{')
	if offset < 0 {
		return len(stream)
	}

	return position + offset
}

func (p *Pipeline) route(doc sad.Document, raw, framed []byte, opts *Options) error {
	kind, err := sad.Classify(doc)
	if err != nil {
		return err
	}

	switch kind {
	case sad.KindKeyEvent:
		return p.ingestKeyEvent(doc, raw, framed)
	case sad.KindTransactionEvent:
		return p.ingestTransactionEvent(doc, raw, framed)
	case sad.KindCredential:
		return p.ingestCredential(doc, framed[len(raw):], opts.Issued)
	default:
		return fmt.Errorf("unhandled message kind %d: %w", kind, kerror.ErrProgrammer)
	}
}

// validateChain checks that evt extends the ledger tail of its subject:
// sequence numbers are exactly 0,1,2,... and each event's prior reference is
// the address of the immediately preceding event.
func (p *Pipeline) validateChain(evt *event.Event, count int, tailSaid func() (string, error)) error {
	sn, err := evt.SequenceNumber()
	if err != nil {
		return err
	}

	if sn != uint64(count) {
		return fmt.Errorf("event %s at sequence %d, ledger tail at %d: %w",
			evt.Said, sn, count, kerror.ErrOutOfOrder)
	}

	if sn == 0 {
		return nil
	}

	tail, err := tailSaid()
	if err != nil {
		return err
	}

	if evt.Prior != tail {
		return fmt.Errorf("event %s prior %s does not match ledger tail %s: %w",
			evt.Said, evt.Prior, tail, kerror.ErrOutOfOrder)
	}

	return nil
}

func (p *Pipeline) ingestKeyEvent(doc sad.Document, raw, framed []byte) error {
	if err := sad.Verify(raw); err != nil {
		return err
	}

	evt, err := event.FromDocument(doc)
	if err != nil {
		return err
	}

	count, err := p.store.CountKeyEvents(evt.Identifier)
	if err != nil {
		return err
	}

	err = p.validateChain(evt, count, func() (string, error) {
		return p.store.LatestKeyEventSaid(evt.Identifier)
	})
	if err != nil {
		return err
	}

	logger.Debugf("ingesting key event %s sn %s for %s", evt.Ilk, evt.Sequence, evt.Identifier)

	return p.store.InsertKeyEvent(evt.Identifier, framed)
}

func (p *Pipeline) ingestTransactionEvent(doc sad.Document, raw, framed []byte) error {
	if err := sad.Verify(raw); err != nil {
		return err
	}

	evt, err := event.FromDocument(doc)
	if err != nil {
		return err
	}

	count, err := p.store.CountTransactionEvents(evt.Identifier)
	if err != nil {
		return err
	}

	err = p.validateChain(evt, count, func() (string, error) {
		latest, err := p.store.TransactionEvent(evt.Identifier, uint64(count-1))
		if err != nil {
			return "", err
		}

		tail, err := event.FromRaw(latest)
		if err != nil {
			return "", err
		}

		return tail.Said, nil
	})
	if err != nil {
		return err
	}

	if err := p.validateAnchor(evt); err != nil {
		return err
	}

	logger.Debugf("ingesting transaction event %s sn %s for %s", evt.Ilk, evt.Sequence, evt.Identifier)

	return p.store.InsertTransactionEvent(evt.Identifier, framed)
}

// validateAnchor requires the controlling KEL to already hold a seal
// referencing the transaction event. An unanchored transaction event is
// rejected outright: bundles must carry the anchoring interaction event
// before the transaction events it seals.
func (p *Pipeline) validateAnchor(evt *event.Event) error {
	issuer := evt.Issuer

	if issuer == "" {
		// Issuance and revocation events name their registry; the registry
		// inception names the issuer.
		if evt.RegistryID == "" {
			return fmt.Errorf("transaction event %s names no registry: %w",
				evt.Said, kerror.ErrDecoding)
		}

		inception, err := p.store.TransactionEvent(evt.RegistryID, 0)
		if err != nil {
			return fmt.Errorf("registry %s not ingested: %w", evt.RegistryID, kerror.ErrOutOfOrder)
		}

		registryEvent, err := event.FromRaw(inception)
		if err != nil {
			return err
		}

		issuer = registryEvent.Issuer
	}

	kel, err := p.store.KEL(issuer)
	if err != nil {
		return fmt.Errorf("no KEL for issuer %s: %w", issuer, kerror.ErrOutOfOrder)
	}

	for _, framed := range kel {
		kelEvent, err := event.FromRaw(framed)
		if err != nil {
			return err
		}

		if kelEvent.AnchorsSaid(evt.Said) {
			return nil
		}
	}

	return fmt.Errorf("transaction event %s is not anchored in KEL of %s: %w",
		evt.Said, issuer, kerror.ErrOutOfOrder)
}

func (p *Pipeline) ingestCredential(doc sad.Document, attachment []byte, issued bool) error {
	// A received credential may arrive expanded to any disclosure level.
	// Normalize verifies it bottom-up, reduces it to the compact form the
	// attachment signatures cover, and hands back the subsections to index
	// for later disclosure.
	compact, sections, err := acdc.Normalize(doc)
	if err != nil {
		return err
	}

	raw, err := sad.Marshal(compact)
	if err != nil {
		return err
	}

	for _, section := range sections {
		sectionRaw, err := sad.Marshal(section)
		if err != nil {
			return err
		}

		if err := p.store.InsertSAD(sectionRaw); err != nil {
			return err
		}
	}

	said, _ := compact.Said()
	logger.Debugf("ingesting credential %s", said)

	return p.store.InsertCredential(append(raw, attachment...), issued)
}
