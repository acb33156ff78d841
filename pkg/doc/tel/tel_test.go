/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package tel

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/hyperledger/keri-acdc-go/pkg/doc/event"
	"github.com/hyperledger/keri-acdc-go/pkg/doc/sad"
)

func TestManagementIncept(t *testing.T) {
	issuer := sad.Digest([]byte("issuer"))

	registry, raw, err := ManagementIncept(issuer)
	require.NoError(t, err)
	require.True(t, sad.IsSaid(registry))
	require.NoError(t, sad.Verify(raw))

	evt, err := event.FromRaw(raw)
	require.NoError(t, err)
	require.Equal(t, event.IlkRegistryInception, evt.Ilk)
	require.Equal(t, registry, evt.Identifier)
	require.Equal(t, issuer, evt.Issuer)
	require.Equal(t, "0", evt.Sequence)
}

func TestIssueAndRevoke(t *testing.T) {
	registry := sad.Digest([]byte("registry"))
	credential := sad.Digest([]byte("credential"))

	issuanceSaid, issuance, err := Issue(registry, credential, "2023-06-22T12:00:00Z")
	require.NoError(t, err)
	require.NoError(t, sad.Verify(issuance))

	issuanceEvent, err := event.FromRaw(issuance)
	require.NoError(t, err)
	require.Equal(t, event.IlkIssuance, issuanceEvent.Ilk)
	require.Equal(t, credential, issuanceEvent.Identifier)
	require.Equal(t, registry, issuanceEvent.RegistryID)
	require.Equal(t, "0", issuanceEvent.Sequence)

	_, revocation, err := Revoke(registry, credential, issuanceSaid, "2023-06-23T12:00:00Z")
	require.NoError(t, err)
	require.NoError(t, sad.Verify(revocation))

	revocationEvent, err := event.FromRaw(revocation)
	require.NoError(t, err)
	require.Equal(t, event.IlkRevocation, revocationEvent.Ilk)
	require.Equal(t, "1", revocationEvent.Sequence)
	require.Equal(t, issuanceSaid, revocationEvent.Prior)
}

func TestAnchorAttachment(t *testing.T) {
	interaction := sad.Digest([]byte("interaction"))

	attachment := AnchorAttachment(2, interaction)
	require.True(t, strings.HasPrefix(attachment, sealSourceCoupleGroup+sequencerCode))
	require.True(t, strings.HasSuffix(attachment, interaction))
	require.NotContains(t, attachment, "{")
}

func TestNonce(t *testing.T) {
	require.NotEqual(t, Nonce(), Nonce())
}
