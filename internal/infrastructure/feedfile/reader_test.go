package feedfile

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRead_JSONL(t *testing.T) {
	input := strings.Join([]string{
		`{"SKU": "A-99!", "Fashion:material": "leather upper"}`,
		``,
		`not json`,
		`{"SKU": 123456789012345678, "price": null}`,
		`[1, 2]`,
	}, "\n")

	res, err := Read(strings.NewReader(input), FormatJSONL)
	require.NoError(t, err)
	require.Len(t, res.Rows, 2)
	assert.Equal(t, 2, res.Invalid)

	sku, ok := res.Rows[0].Value("SKU")
	assert.True(t, ok)
	assert.Equal(t, "A-99!", sku)

	big, _ := res.Rows[1].Value("SKU")
	assert.Equal(t, "123456789012345678", big)

	price, ok := res.Rows[1].Value("price")
	assert.True(t, ok)
	assert.Empty(t, price)
}

func TestRead_CSV(t *testing.T) {
	input := "\uFEFFProduct ID,keywords,colour\nGY1234-001,Upper: Mesh~Outsole: Rubber,black\nGY5678-002,\nshort\n"

	res, err := Read(strings.NewReader(input), FormatCSV)
	require.NoError(t, err)
	require.Len(t, res.Rows, 3)

	id, ok := res.Rows[0].Value("Product ID")
	assert.True(t, ok)
	assert.Equal(t, "GY1234-001", id)

	keywords, ok := res.Rows[1].Value("keywords")
	assert.True(t, ok)
	assert.Empty(t, keywords)

	_, ok = res.Rows[2].Value("colour")
	assert.False(t, ok)
}

func TestRead_EmptyCSV(t *testing.T) {
	res, err := Read(strings.NewReader(""), FormatCSV)
	require.NoError(t, err)
	assert.Empty(t, res.Rows)
}

func TestDetectFormat(t *testing.T) {
	tests := []struct {
		path    string
		want    Format
		wantErr bool
	}{
		{"feed.jsonl", FormatJSONL, false},
		{"feed.JL", FormatJSONL, false},
		{"feed.ndjson", FormatJSONL, false},
		{"/tmp/feed.csv", FormatCSV, false},
		{"feed.xml", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			got, err := DetectFormat(tt.path)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseFormat(t *testing.T) {
	f, err := ParseFormat("CSV")
	require.NoError(t, err)
	assert.Equal(t, FormatCSV, f)

	_, err = ParseFormat("xml")
	assert.Error(t, err)
}

func TestReadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "feed.jsonl")
	require.NoError(t, os.WriteFile(path, []byte(`{"a":"b"}`+"\n"), 0o600))

	res, err := ReadFile(path, "")
	require.NoError(t, err)
	assert.Len(t, res.Rows, 1)

	_, err = ReadFile(filepath.Join(t.TempDir(), "feed.txt"), "")
	assert.Error(t, err)
}
