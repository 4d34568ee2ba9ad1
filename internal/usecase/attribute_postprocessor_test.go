package usecase

import (
	"strings"
	"testing"

	"github.com/feedcanon/backend/internal/domain"
	"github.com/stretchr/testify/assert"
)

func TestNormalizeAttributes(t *testing.T) {
	tests := []struct {
		name  string
		input domain.Attributes
		want  domain.Attributes
	}{
		{
			name:  "nil stays nil",
			input: nil,
			want:  nil,
		},
		{
			name:  "empty becomes nil",
			input: domain.Attributes{},
			want:  nil,
		},
		{
			name:  "joins lists",
			input: domain.Attributes{"material": {"leather", "rubber"}},
			want:  domain.Attributes{"material": {"leather,rubber"}},
		},
		{
			name:  "strips digits and percent",
			input: domain.Attributes{"material": {"80% cotton 20% polyester"}},
			want:  domain.Attributes{"material": {"cotton polyester"}},
		},
		{
			name:  "collapses whitespace runs",
			input: domain.Attributes{"upper": {"synthetic \t  leather "}},
			want:  domain.Attributes{"upper": {"synthetic leather"}},
		},
		{
			name:  "keeps keys",
			input: domain.Attributes{"Upper & Lining": {"mesh"}},
			want:  domain.Attributes{"Upper & Lining": {"mesh"}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, NormalizeAttributes(tt.input))
		})
	}
}

func TestNormalizeAttributes_DoesNotMutateInput(t *testing.T) {
	input := domain.Attributes{"material": {"100% leather", " rubber"}}
	_ = NormalizeAttributes(input)

	assert.Equal(t, domain.Attributes{"material": {"100% leather", " rubber"}}, input)
}

func TestNormalizeAttributes_Idempotent(t *testing.T) {
	inputs := []domain.Attributes{
		{"material": {"  100% cotton ", "5 % elastane"}},
		{"upper": {"leather  1"}, "sole": {"rubber", "", "eva 2%"}},
		{"material": {"a 1 b 2 c"}},
		{"lining": {"\t\tmesh\n\nfoam"}},
	}

	for _, input := range inputs {
		once := NormalizeAttributes(input)
		assert.Equal(t, once, NormalizeAttributes(once))

		for _, values := range once {
			for _, v := range values {
				assert.False(t, strings.ContainsAny(v, "0123456789%"), "value %q keeps digits", v)
				assert.NotRegexp(t, `\s{2,}`, v)
			}
		}
	}
}

func TestAttributesFlatten(t *testing.T) {
	attrs := domain.Attributes{"material": {"leather", "rubber"}, "upper": {"mesh"}}

	assert.Equal(t, map[string]string{"material": "leather,rubber", "upper": "mesh"}, attrs.Flatten())
	assert.Nil(t, domain.Attributes(nil).Flatten())
}
