package usecase

import (
	"errors"
	"testing"

	"github.com/feedcanon/backend/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func constVariant(value string) Variant[string] {
	return VariantFunc[string](func(domain.Row) (string, bool, error) {
		return value, true, nil
	})
}

func TestDispatcher_Resolve(t *testing.T) {
	variants := map[string]Variant[string]{
		"nike": constVariant("nike-rule"),
	}
	fallback := func(merchant string) (Variant[string], error) {
		if merchant == "unknown" {
			return nil, domain.ErrConfiguration
		}
		return constVariant("default:" + merchant), nil
	}

	d := NewDispatcher("test", variants, fallback)

	t.Run("exact match uses registered variant", func(t *testing.T) {
		got, ok, err := d.Dispatch("nike", domain.Row{})
		require.NoError(t, err)
		assert.True(t, ok)
		assert.Equal(t, "nike-rule", got)
	})

	t.Run("lookup is case sensitive", func(t *testing.T) {
		got, _, err := d.Dispatch("Nike", domain.Row{})
		require.NoError(t, err)
		assert.Equal(t, "default:Nike", got)
	})

	t.Run("fallback errors surface", func(t *testing.T) {
		_, _, err := d.Dispatch("unknown", domain.Row{})
		assert.ErrorIs(t, err, domain.ErrConfiguration)
	})

	t.Run("registry is copied", func(t *testing.T) {
		variants["late"] = constVariant("late")
		assert.False(t, d.Registered("late"))
		assert.Equal(t, []string{"nike"}, d.Names())
	})
}

func TestDispatcher_WithoutFallback(t *testing.T) {
	d := NewDispatcher[string]("material", map[string]Variant[string]{
		"b": constVariant("b"),
		"a": constVariant("a"),
	}, nil)

	_, err := d.Resolve("c")
	assert.ErrorIs(t, err, domain.ErrConfiguration)
	assert.Contains(t, err.Error(), `"c"`)

	assert.Equal(t, []string{"a", "b"}, d.Names())
}

func TestDispatcher_Validate(t *testing.T) {
	d := NewDispatcher[string]("material", map[string]Variant[string]{
		"a": constVariant("a"),
	}, nil)

	assert.NoError(t, d.Validate([]string{"a"}))

	err := d.Validate([]string{"a", "x", "y"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrConfiguration))
	assert.Contains(t, err.Error(), `"x"`)
	assert.Contains(t, err.Error(), `"y"`)
}
