/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package event

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/hyperledger/keri-acdc-go/pkg/doc/sad"
	"github.com/hyperledger/keri-acdc-go/pkg/kerror"
)

func TestFromDocument(t *testing.T) {
	t.Run("success", func(t *testing.T) {
		doc := sad.Document{
			"v": "KERI10JSON0000a2_",
			"t": IlkInteraction,
			"d": "Devent",
			"i": "Didentifier",
			"s": "a",
			"p": "Dprior",
			"a": []interface{}{
				map[string]interface{}{"i": "Dregistry", "s": "0", "d": "Dsealed"},
			},
		}

		evt, err := FromDocument(doc)
		require.NoError(t, err)
		require.Equal(t, IlkInteraction, evt.Ilk)
		require.Equal(t, "Didentifier", evt.Identifier)
		require.Equal(t, "Dprior", evt.Prior)

		sn, err := evt.SequenceNumber()
		require.NoError(t, err)
		require.Equal(t, uint64(10), sn)

		require.True(t, evt.AnchorsSaid("Dsealed"))
		require.False(t, evt.AnchorsSaid("Dother"))
	})

	t.Run("error - missing ilk", func(t *testing.T) {
		_, err := FromDocument(sad.Document{"d": "Devent"})
		require.ErrorIs(t, err, kerror.ErrDecoding)
	})
}

func TestSequenceNumber(t *testing.T) {
	evt := &Event{Sequence: "not-hex"}

	_, err := evt.SequenceNumber()
	require.ErrorIs(t, err, kerror.ErrDecoding)
}

func TestIsEstablishment(t *testing.T) {
	tests := []struct {
		ilk           string
		establishment bool
	}{
		{IlkInception, true},
		{IlkRotation, true},
		{IlkInteraction, false},
		{IlkRegistryInception, false},
		{IlkIssuance, false},
	}

	for _, tc := range tests {
		t.Run(tc.ilk, func(t *testing.T) {
			evt := &Event{Ilk: tc.ilk}
			require.Equal(t, tc.establishment, evt.IsEstablishment())
		})
	}
}
