// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rasul Khiriev

package models

import (
	"encoding/json"
	"sort"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCoalesce(t *testing.T) {
	tests := []struct {
		name       string
		existing   OperationKind
		incoming   OperationKind
		want       OperationKind
		wantCancel bool
	}{
		{name: "publish then update keeps publish", existing: OperationPublish, incoming: OperationUpdate, want: OperationPublish},
		{name: "publish then publish", existing: OperationPublish, incoming: OperationPublish, want: OperationPublish},
		{name: "publish then unpublish cancels", existing: OperationPublish, incoming: OperationUnpublish, wantCancel: true},
		{name: "unpublish then publish cancels", existing: OperationUnpublish, incoming: OperationPublish, wantCancel: true},
		{name: "unpublish then update keeps unpublish", existing: OperationUnpublish, incoming: OperationUpdate, want: OperationUnpublish},
		{name: "update then unpublish", existing: OperationUpdate, incoming: OperationUnpublish, want: OperationUnpublish},
		{name: "update then update", existing: OperationUpdate, incoming: OperationUpdate, want: OperationUpdate},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, cancel := Coalesce(tt.existing, tt.incoming)
			assert.Equal(t, tt.wantCancel, cancel)
			if !tt.wantCancel {
				assert.Equal(t, tt.want, got)
			}
		})
	}
}

func TestOperationStatus_Classes(t *testing.T) {
	assert.True(t, OperationPending.IsLive())
	assert.True(t, OperationInFlight.IsLive())
	assert.False(t, OperationHeld.IsLive())
	assert.False(t, OperationDone.IsLive())

	assert.True(t, OperationDone.IsTerminal())
	assert.True(t, OperationFailed.IsTerminal())
	assert.True(t, OperationCancelled.IsTerminal())
	assert.False(t, OperationHeld.IsTerminal())
}

func payloadKeys(t *testing.T, p Payload) []string {
	t.Helper()
	raw, err := p.Marshal()
	require.NoError(t, err)

	var m map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(raw, &m))

	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// TestPayload_KeySetIsStable checks that optional fields never drop out of
// the serialized payload.
func TestPayload_KeySetIsStable(t *testing.T) {
	desc := "a description"
	pub := "pub-1"
	now := time.Now().UTC()

	sparse := Payload{ContentID: "c1", Kind: KindGuide, Title: "t"}
	full := Payload{
		ContentID:   "c1",
		Kind:        KindGuide,
		Title:       "t",
		Description: &desc,
		Body:        PayloadBody{Format: BodyFormatMarkdown, Content: "# hi", Checksum: "abc"},
		Version:     2,
		UpdatedAt:   now,
		PublicID:    &pub,
		PublishedAt: &now,
	}

	assert.Equal(t, payloadKeys(t, sparse), payloadKeys(t, full))

	raw, err := sparse.Marshal()
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"description":null`)
	assert.Contains(t, string(raw), `"public_id":null`)
}

func TestDecodePayload(t *testing.T) {
	desc := "d"
	raw, err := Payload{ContentID: "c1", Kind: KindDeck, Title: "x", Description: &desc}.Marshal()
	require.NoError(t, err)

	p, err := DecodePayload(raw)
	require.NoError(t, err)
	assert.Equal(t, "c1", p.ContentID)
	require.NotNil(t, p.Description)
	assert.Equal(t, "d", *p.Description)

	_, err = DecodePayload(json.RawMessage(`{`))
	assert.Error(t, err)
}
