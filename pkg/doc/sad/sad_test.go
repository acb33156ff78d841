/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package sad

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/hyperledger/keri-acdc-go/pkg/kerror"
)

func TestSaidify(t *testing.T) {
	t.Run("success - embeds address and version size", func(t *testing.T) {
		doc := Document{
			"v": "KERI10JSON000000_",
			"t": "ixn",
			"d": "",
			"i": "EAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAA",
			"s": "1",
			"p": "EAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAA",
			"a": []string{},
		}

		raw, said, err := Saidify(doc)
		require.NoError(t, err)
		require.True(t, IsSaid(said))
		require.Equal(t, said, doc["d"])
		require.Contains(t, string(raw), said)
		require.Contains(t, string(raw), "KERI10JSON")
		require.NotContains(t, string(raw), "KERI10JSON000000_")
	})

	t.Run("success - inception binds identifier to address", func(t *testing.T) {
		doc := Document{
			"v": "KERI10JSON000000_",
			"t": "icp",
			"d": "",
			"i": "",
			"s": "0",
		}

		_, said, err := Saidify(doc)
		require.NoError(t, err)
		require.Equal(t, said, doc["d"])
		require.Equal(t, said, doc["i"])
	})

	t.Run("success - schema addressed at $id", func(t *testing.T) {
		doc := Document{
			"$id":  "",
			"type": "object",
		}

		raw, said, err := Saidify(doc)
		require.NoError(t, err)
		require.Equal(t, said, doc["$id"])
		require.NoError(t, Verify(raw))
	})
}

func TestVerify(t *testing.T) {
	t.Run("success - round trip", func(t *testing.T) {
		doc := Document{"v": "ACDC10JSON000000_", "d": "", "i": "issuer"}

		raw, _, err := Saidify(doc)
		require.NoError(t, err)
		require.NoError(t, Verify(raw))
	})

	t.Run("error - corrupted content", func(t *testing.T) {
		doc := Document{"v": "ACDC10JSON000000_", "d": "", "i": "issuer"}

		raw, _, err := Saidify(doc)
		require.NoError(t, err)

		corrupted := []byte(string(raw))
		corrupted[len(corrupted)-3]++

		err = Verify(corrupted)
		require.ErrorIs(t, err, kerror.ErrValidation)
	})
}

func TestParseFramed(t *testing.T) {
	t.Run("success - reports raw length before attachment", func(t *testing.T) {
		doc := Document{"d": "", "u": "nonce", "value": "data"}

		raw, _, err := Saidify(doc)
		require.NoError(t, err)

		framed := append([]byte(string(raw)), []byte("-AAB0Bsignature")...)

		parsed, rawLength, err := ParseFramed(framed)
		require.NoError(t, err)
		require.Equal(t, len(raw), rawLength)
		require.Equal(t, doc["d"], parsed["d"])
	})

	t.Run("error - not a document", func(t *testing.T) {
		_, _, err := ParseFramed([]byte("-AAB0Bsignature"))
		require.ErrorIs(t, err, kerror.ErrDecoding)
	})
}

func TestCompute(t *testing.T) {
	doc := Document{"d": "", "u": "nonce", "value": float64(43)}

	_, said, err := Saidify(doc)
	require.NoError(t, err)

	computed, err := Compute(doc)
	require.NoError(t, err)
	require.Equal(t, said, computed)
}

func TestIsSaid(t *testing.T) {
	require.True(t, IsSaid(Digest([]byte("data"))))
	require.False(t, IsSaid("Jason Colburne"))
	require.False(t, IsSaid("E-too-short"))
	require.False(t, IsSaid("XAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAA"))
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		doc  Document
		kind Kind
	}{
		{"key event inception", Document{"v": "KERI10JSON000068_", "t": "icp"}, KindKeyEvent},
		{"key event interaction", Document{"v": "KERI10JSON000068_", "t": "ixn"}, KindKeyEvent},
		{"transaction event registry", Document{"v": "KERI10JSON000068_", "t": "vcp"}, KindTransactionEvent},
		{"transaction event issuance", Document{"v": "KERI10JSON000068_", "t": "iss"}, KindTransactionEvent},
		{"credential", Document{"v": "ACDC10JSON000068_"}, KindCredential},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			kind, err := Classify(tc.doc)
			require.NoError(t, err)
			require.Equal(t, tc.kind, kind)
		})
	}

	t.Run("error - no discriminant", func(t *testing.T) {
		_, err := Classify(Document{"v": "KERI10JSON000068_"})
		require.ErrorIs(t, err, kerror.ErrDecoding)
	})

	t.Run("error - unknown ilk", func(t *testing.T) {
		_, err := Classify(Document{"t": "xxx"})
		require.ErrorIs(t, err, kerror.ErrDecoding)
	})
}
