/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package vault_test

import (
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"

	"github.com/hyperledger/keri-acdc-go/pkg/doc/event"
	"github.com/hyperledger/keri-acdc-go/pkg/doc/sad"
	"github.com/hyperledger/keri-acdc-go/pkg/doc/schema"
	"github.com/hyperledger/keri-acdc-go/pkg/kerror"
	"github.com/hyperledger/keri-acdc-go/pkg/vault"
)

const permissiveSchema = `{"$id": "", "type": "object"}`

func testSchemas(t *testing.T) (*schema.Cache, string) {
	t.Helper()

	schemer, err := schema.New([]byte(permissiveSchema))
	require.NoError(t, err)

	schemas := schema.NewCache(schema.DefaultCacheSize)
	t.Cleanup(schemas.Close)

	require.NoError(t, schemas.Prime(schemer))

	return schemas, schemer.Said()
}

func newVault(t *testing.T, schemas *schema.Cache) *vault.Vault {
	t.Helper()

	holder, err := vault.New(&vault.Config{Schemas: schemas})
	require.NoError(t, err)

	return holder
}

func TestNew(t *testing.T) {
	holder := newVault(t, nil)

	require.True(t, sad.IsSaid(holder.AID()))
	require.True(t, sad.IsSaid(holder.Registry()))

	// Inception plus the interaction anchoring the registry.
	count, err := holder.Store().CountKeyEvents(holder.AID())
	require.NoError(t, err)
	require.Equal(t, 2, count)

	count, err = holder.Store().CountTransactionEvents(holder.Registry())
	require.NoError(t, err)
	require.Equal(t, 1, count)
}

func TestThreePartyDisclosure(t *testing.T) {
	schemas, schemaSaid := testSchemas(t)

	issuer := newVault(t, schemas)
	issuee := newVault(t, schemas)
	disclosee := newVault(t, schemas)

	said, err := issuer.Issue(&vault.IssueRequest{
		Schema:    schemaSaid,
		Recipient: issuee.AID(),
		Blind:     true,
		Private: map[string]interface{}{
			"legalName": "Jane Doe",
			"age":       25,
		},
	})
	require.NoError(t, err)
	require.True(t, sad.IsSaid(said))

	issued, err := issuer.Store().Credentials(true)
	require.NoError(t, err)
	require.Equal(t, []string{said}, issued)

	// The issuer discloses everything to the issuee, with full provenance.
	full, err := issuer.Fetch(said, []string{"legalName", "age"}, true)
	require.NoError(t, err)

	result, err := issuee.Ingest(full, nil)
	require.NoError(t, err)
	// KEL (icp, two interactions), registry and credential status events,
	// and the credential itself.
	require.Equal(t, 6, result.Ingested)
	require.Empty(t, result.Skipped)

	received, err := issuee.Store().Credentials(false)
	require.NoError(t, err)
	require.Equal(t, []string{said}, received)

	// The issuee re-discloses only the legal name to the disclosee.
	partial, err := issuee.Fetch(said, []string{"legalName"}, true)
	require.NoError(t, err)

	result, err = disclosee.Ingest(partial, nil)
	require.NoError(t, err)
	require.Equal(t, 6, result.Ingested)

	view, err := disclosee.Fetch(said, []string{"legalName"}, false)
	require.NoError(t, err)

	t.Run("disclosed value is visible to the disclosee", func(t *testing.T) {
		require.Equal(t, "Jane Doe", gjson.GetBytes(view, "a.legalName.value").String())
	})

	t.Run("undisclosed attribute stays a commitment", func(t *testing.T) {
		age := gjson.GetBytes(view, "a.age")
		require.Equal(t, gjson.String, age.Type)
		require.True(t, sad.IsSaid(age.String()))

		// The disclosee cannot expand what was never disclosed to it.
		_, err := disclosee.Fetch(said, []string{"age"}, false)
		require.ErrorIs(t, err, kerror.ErrValue)
	})

	t.Run("the issuee still holds the full disclosure", func(t *testing.T) {
		own, err := issuee.Fetch(said, []string{"age"}, false)
		require.NoError(t, err)
		require.Equal(t, int64(25), gjson.GetBytes(own, "a.age.value").Int())
	})

	t.Run("credential address is identical for every party", func(t *testing.T) {
		require.Equal(t, said, gjson.GetBytes(view, "d").String())

		for _, holder := range []*vault.Vault{issuer, issuee, disclosee} {
			framed, err := holder.Store().Credential(said)
			require.NoError(t, err)
			require.Equal(t, said, gjson.GetBytes(framed, "d").String())

			// Every copy is filed in compact form.
			require.True(t, sad.IsSaid(gjson.GetBytes(framed, "a").String()))
		}
	})

	t.Run("provenance replicates the issuer's ledgers", func(t *testing.T) {
		for _, holder := range []*vault.Vault{issuee, disclosee} {
			count, err := holder.Store().CountKeyEvents(issuer.AID())
			require.NoError(t, err)
			require.Equal(t, 3, count)

			count, err = holder.Store().CountTransactionEvents(said)
			require.NoError(t, err)
			require.Equal(t, 1, count)
		}
	})
}

func TestRevoke(t *testing.T) {
	schemas, schemaSaid := testSchemas(t)

	issuer := newVault(t, schemas)

	said, err := issuer.Issue(&vault.IssueRequest{
		Schema: schemaSaid,
		Data:   map[string]interface{}{"status": "active"},
	})
	require.NoError(t, err)

	require.NoError(t, issuer.Revoke(said))

	latest, err := issuer.Store().LatestTransactionEvent(said)
	require.NoError(t, err)

	tail, err := event.FromRaw(latest)
	require.NoError(t, err)
	require.Equal(t, event.IlkRevocation, tail.Ilk)

	t.Run("error - revoking twice", func(t *testing.T) {
		require.ErrorIs(t, issuer.Revoke(said), kerror.ErrValidation)
	})

	t.Run("error - unknown credential", func(t *testing.T) {
		require.ErrorIs(t, issuer.Revoke(sad.Digest([]byte("unknown"))), kerror.ErrValue)
	})
}

func TestRotateKeys(t *testing.T) {
	schemas, schemaSaid := testSchemas(t)

	issuer := newVault(t, schemas)

	before, err := issuer.Store().CountKeyEvents(issuer.AID())
	require.NoError(t, err)

	require.NoError(t, issuer.RotateKeys())

	after, err := issuer.Store().CountKeyEvents(issuer.AID())
	require.NoError(t, err)
	require.Equal(t, before+1, after)

	establishments, err := issuer.Store().CountEstablishmentEvents(issuer.AID())
	require.NoError(t, err)
	require.Equal(t, 2, establishments)

	// Issuance keeps working under the rotated keys.
	_, err = issuer.Issue(&vault.IssueRequest{
		Schema: schemaSaid,
		Data:   map[string]interface{}{"status": "active"},
	})
	require.NoError(t, err)
}
