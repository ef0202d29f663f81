// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Loreweave Contributors

package world

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/loreweave/loreweave/pkg/errutil"
)

func TestGenerateSchema(t *testing.T) {
	data, err := GenerateSchema()
	require.NoError(t, err)

	var doc map[string]any
	require.NoError(t, json.Unmarshal(data, &doc))
	assert.Equal(t, SchemaID, doc["$id"])

	props, ok := doc["properties"].(map[string]any)
	require.True(t, ok)
	for _, key := range []string{"artifacts", "timeline_events", "factions", "notable_figures", "locations", "facts", "species"} {
		assert.Contains(t, props, key)
	}
}

func TestValidateCollections(t *testing.T) {
	u, _ := sampleUniverse()
	require.NoError(t, ValidateCollections(&u.Collections))
	require.NoError(t, ValidateCollections(&Collections{}))
}

func TestValidateDocument(t *testing.T) {
	id := ulid.Make().String()
	at := time.Date(2026, 1, 15, 9, 0, 0, 0, time.UTC).Format(time.RFC3339)

	tests := []struct {
		name    string
		doc     string
		wantErr string
	}{
		{
			name: "yaml document",
			doc: `
artifacts:
  - id: ` + id + `
    kind: artifact
    name: Dawn Sword
    description: Forged at first light.
    created_at: ` + at + `
    updated_at: ` + at + `
    artifact:
      type: weapon
      origin: Northwatch
`,
		},
		{
			name: "json document",
			doc:  `{"facts": []}`,
		},
		{
			name:    "empty document",
			doc:     "   \n",
			wantErr: "SCHEMA_INVALID_DOCUMENT",
		},
		{
			name:    "malformed yaml",
			doc:     "artifacts: [",
			wantErr: "SCHEMA_INVALID_DOCUMENT",
		},
		{
			name: "unknown artifact type",
			doc: `
artifacts:
  - id: ` + id + `
    kind: artifact
    name: Dawn Sword
    description: ""
    created_at: ` + at + `
    updated_at: ` + at + `
    artifact:
      type: spoon
`,
			wantErr: "SCHEMA_VALIDATION_FAILED",
		},
		{
			name: "malformed id",
			doc: `
facts:
  - id: not-a-ulid
    kind: fact
    name: Moons
    description: ""
    created_at: ` + at + `
    updated_at: ` + at + `
    fact:
      type: magic
`,
			wantErr: "SCHEMA_VALIDATION_FAILED",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateDocument([]byte(tt.doc))
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			errutil.AssertErrorCode(t, err, tt.wantErr)
		})
	}
}

func TestDecodeDocument(t *testing.T) {
	id := ulid.Make().String()
	at := time.Date(2026, 1, 15, 9, 0, 0, 0, time.UTC).Format(time.RFC3339)
	doc := `
timeline_events:
  - id: ` + id + `
    kind: timeline_event
    name: Anchor
    description: ""
    created_at: "` + at + `"
    updated_at: "` + at + `"
    timeline_event:
      type: other
      is_anchor: true
`

	c, err := DecodeDocument([]byte(doc))
	require.NoError(t, err)
	require.Len(t, c.TimelineEvents, 1)
	assert.Equal(t, id, c.TimelineEvents[0].ID.String())
	assert.True(t, c.TimelineEvents[0].IsAnchor())

	_, err = DecodeDocument([]byte("artifacts: ["))
	errutil.AssertErrorCode(t, err, "SCHEMA_INVALID_DOCUMENT")
}
