package usecase

import (
	"testing"

	"github.com/feedcanon/backend/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSplitLink(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want link
	}{
		{
			name: "keeps the path as written",
			raw:  "HTTPS://www.ellesse.co.uk/mens-(new)/a%2Fb/white?colour=white#top",
			want: link{scheme: "https", netloc: "www.ellesse.co.uk", path: "/mens-(new)/a%2Fb/white", query: "colour=white"},
		},
		{
			name: "invalid escapes are not an error",
			raw:  "https://x.com/size-100%zz?destinationUrl=a%zz",
			want: link{scheme: "https", netloc: "x.com", path: "/size-100%zz", query: "destinationUrl=a%zz"},
		},
		{
			name: "params of the last segment are dropped",
			raw:  "https://x.com/a;v=1/b;jsessionid=9",
			want: link{scheme: "https", netloc: "x.com", path: "/a;v=1/b"},
		},
		{
			name: "no scheme",
			raw:  "nolink",
			want: link{path: "nolink"},
		},
		{
			name: "leading whitespace and embedded newlines",
			raw:  "  https://x.com/a\n/b",
			want: link{scheme: "https", netloc: "x.com", path: "/a/b"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := splitLink(tt.raw)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestSplitLink_UnbalancedBracket(t *testing.T) {
	_, err := splitLink("https://[::1/x")
	assert.ErrorIs(t, err, domain.ErrMalformedInput)
}

func TestLink_String(t *testing.T) {
	assert.Equal(t, "https://x.com/a%2Fb/(c)", link{scheme: "https", netloc: "x.com", path: "/a%2Fb/(c)"}.String())
	assert.Equal(t, "https://x.com", link{scheme: "https", netloc: "x.com"}.String())
	assert.Equal(t, "https:///a", link{scheme: "https", path: "/a"}.String())
	assert.Equal(t, "a/b", link{path: "a/b"}.String())
}

func TestLink_QueryValue(t *testing.T) {
	l := link{query: "blank=&flag&destinationUrl=https%3A%2F%2Fx.com%2Fa+b%zz%2F&destinationUrl=second"}

	got, ok := l.queryValue("destinationUrl")
	assert.True(t, ok)
	assert.Equal(t, "https://x.com/a b%zz/", got)

	_, ok = l.queryValue("blank")
	assert.False(t, ok)
	_, ok = l.queryValue("flag")
	assert.False(t, ok)
	_, ok = l.queryValue("missing")
	assert.False(t, ok)
}

func TestUnquote(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"plain", "plain"},
		{"a%2Fb", "a/b"},
		{"100%zz", "100%zz"},
		{"%2Fproducts%2Fair-max%2Fsize-100%zz", "/products/air-max/size-100%zz"},
		{"trailing%2", "trailing%2"},
		{"caf%C3%A9", "café"},
		{"bad%FFbyte", "bad�byte"},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, unquote(tt.in))
		})
	}
}
