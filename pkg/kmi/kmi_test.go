/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package kmi

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/hyperledger/keri-acdc-go/pkg/doc/event"
	"github.com/hyperledger/keri-acdc-go/pkg/doc/sad"
)

func TestIncept(t *testing.T) {
	inception, err := Incept()
	require.NoError(t, err)

	require.True(t, sad.IsSaid(inception.AID))
	require.NotEqual(t, inception.Current.Public, inception.Next.Public)

	doc, rawLength, err := sad.ParseFramed(inception.Event)
	require.NoError(t, err)
	require.NoError(t, sad.Verify(inception.Event[:rawLength]))

	evt, err := event.FromDocument(doc)
	require.NoError(t, err)
	require.Equal(t, event.IlkInception, evt.Ilk)
	require.Equal(t, inception.AID, evt.Identifier)
	require.Equal(t, inception.AID, evt.Said)
	require.Equal(t, "0", evt.Sequence)
	require.Equal(t, []string{inception.Current.Public}, evt.Keys)
	require.Equal(t, []string{inception.Next.Commitment()}, evt.Next)
	require.True(t, evt.IsEstablishment())

	attachment := string(inception.Event[rawLength:])
	require.True(t, strings.HasPrefix(attachment, controllerSignatureGroup+signatureCode))
}

func TestRotate(t *testing.T) {
	inception, err := Incept()
	require.NoError(t, err)

	rotation, err := Rotate(inception.Next, inception.AID, inception.AID, 1)
	require.NoError(t, err)

	doc, rawLength, err := sad.ParseFramed(rotation.Event)
	require.NoError(t, err)
	require.NoError(t, sad.Verify(rotation.Event[:rawLength]))

	evt, err := event.FromDocument(doc)
	require.NoError(t, err)
	require.Equal(t, event.IlkRotation, evt.Ilk)
	require.Equal(t, "1", evt.Sequence)
	require.Equal(t, inception.AID, evt.Prior)

	// The committed next keys become the signing keys.
	require.Equal(t, []string{inception.Next.Public}, evt.Keys)
	require.Equal(t, []string{rotation.Next.Commitment()}, evt.Next)
}

func TestInteract(t *testing.T) {
	inception, err := Incept()
	require.NoError(t, err)

	seal := event.Seal{Said: "Dsealed", Identifier: "Dregistry", Sequence: "0"}

	said, framed, err := Interact(inception.Current, inception.AID, inception.AID, 1, []event.Seal{seal})
	require.NoError(t, err)

	doc, rawLength, err := sad.ParseFramed(framed)
	require.NoError(t, err)
	require.NoError(t, sad.Verify(framed[:rawLength]))

	evt, err := event.FromDocument(doc)
	require.NoError(t, err)
	require.Equal(t, said, evt.Said)
	require.False(t, evt.IsEstablishment())
	require.True(t, evt.AnchorsSaid("Dsealed"))
}

func TestSign(t *testing.T) {
	keys, err := NewKeySet()
	require.NoError(t, err)

	signature, err := keys.Sign([]byte("payload"))
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(signature, signatureCode))

	again, err := keys.Sign([]byte("payload"))
	require.NoError(t, err)
	require.Equal(t, signature, again)
}
