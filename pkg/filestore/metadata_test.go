package filestore

import (
	"testing"

	"gemini-rag-be/internal/entity"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseCustomMetadata(t *testing.T) {
	tests := []struct {
		name     string
		raw      string
		expected []entity.CustomMetadata
		wantErr  bool
	}{
		{
			name: "keeps input order",
			raw:  `{"book": "physics", "class": "10"}`,
			expected: []entity.CustomMetadata{
				{Key: "book", StringValue: "physics"},
				{Key: "class", StringValue: "10"},
			},
		},
		{
			name: "order is not alphabetical",
			raw:  `{"zeta": "1", "alpha": "2"}`,
			expected: []entity.CustomMetadata{
				{Key: "zeta", StringValue: "1"},
				{Key: "alpha", StringValue: "2"},
			},
		},
		{
			name: "stringifies scalars",
			raw:  `{"year": 2024, "draft": false, "ratio": 0.5, "none": null}`,
			expected: []entity.CustomMetadata{
				{Key: "year", StringValue: "2024"},
				{Key: "draft", StringValue: "false"},
				{Key: "ratio", StringValue: "0.5"},
				{Key: "none", StringValue: ""},
			},
		},
		{
			name: "duplicate key overwrites in place",
			raw:  `{"a": "1", "b": "2", "a": "3"}`,
			expected: []entity.CustomMetadata{
				{Key: "a", StringValue: "3"},
				{Key: "b", StringValue: "2"},
			},
		},
		{name: "empty input", raw: "  ", expected: []entity.CustomMetadata{}},
		{name: "invalid json", raw: `{"book": `, wantErr: true},
		{name: "not an object", raw: `["a"]`, wantErr: true},
		{name: "nested value", raw: `{"a": {"b": 1}}`, wantErr: true},
		{name: "trailing data", raw: `{"a": "1"} {}`, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseCustomMetadata(tt.raw)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrMalformedMetadata)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.expected, got)
		})
	}
}
