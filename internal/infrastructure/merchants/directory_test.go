package merchants

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/feedcanon/backend/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleMerchants = `
merchants:
  - name: asos
    pid: SKU
  - name: jd_sports
    pid: product_id
  - name: nike
    skip_materials: true
`

func TestParse(t *testing.T) {
	dir, err := Parse(strings.NewReader(sampleMerchants))
	require.NoError(t, err)

	assert.Equal(t, []string{"asos", "jd_sports", "nike"}, dir.Names())
	assert.Equal(t, map[string]string{"asos": "SKU", "jd_sports": "product_id"}, dir.PIDColumns())

	nike, ok := dir.Lookup("nike")
	require.True(t, ok)
	assert.True(t, nike.SkipMaterials)
	assert.Empty(t, nike.PID)

	_, ok = dir.Lookup("Nike")
	assert.False(t, ok)
}

func TestParse_Errors(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{
			name:  "duplicate merchant",
			input: "merchants:\n  - name: asos\n  - name: asos\n",
		},
		{
			name:  "missing name",
			input: "merchants:\n  - pid: SKU\n",
		},
		{
			name:  "unknown field",
			input: "merchants:\n  - name: asos\n    column: SKU\n",
		},
		{
			name:  "not yaml",
			input: "merchants: [",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse(strings.NewReader(tt.input))
			assert.ErrorIs(t, err, domain.ErrConfiguration)
		})
	}
}

func TestParse_Empty(t *testing.T) {
	dir, err := Parse(strings.NewReader(""))
	require.NoError(t, err)
	assert.Empty(t, dir.Names())
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "merchants.yaml")
	require.NoError(t, os.WriteFile(path, []byte(sampleMerchants), 0o600))

	dir, err := LoadFile(path)
	require.NoError(t, err)
	assert.Len(t, dir.Names(), 3)

	_, err = LoadFile(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}
