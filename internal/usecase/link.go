package usecase

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/feedcanon/backend/internal/domain"
)

// link is a URL split into its raw parts. Nothing is decoded or re-escaped,
// so identifiers built from a part match the bytes of the feed.
type link struct {
	scheme string
	netloc string
	path   string
	query  string
}

// schemes whose URLs carry a network location
var netlocSchemes = map[string]bool{
	"http": true, "https": true, "ftp": true, "sftp": true, "file": true, "ws": true, "wss": true,
}

// splitLink splits raw without validating escapes. The only rejected input
// is a bracketed host with a missing bracket.
func splitLink(raw string) (link, error) {
	raw = strings.TrimLeft(raw, "\x00\x01\x02\x03\x04\x05\x06\x07\x08\t\n\v\f\r\x0e\x0f\x10\x11\x12\x13\x14\x15\x16\x17\x18\x19\x1a\x1b\x1c\x1d\x1e\x1f ")
	raw = strings.NewReplacer("\t", "", "\r", "", "\n", "").Replace(raw)

	var l link
	rest := raw
	if i := strings.IndexByte(rest, ':'); i > 0 && isScheme(rest[:i]) {
		l.scheme = strings.ToLower(rest[:i])
		rest = rest[i+1:]
	}

	if strings.HasPrefix(rest, "//") {
		end := len(rest)
		if i := strings.IndexAny(rest[2:], "/?#"); i >= 0 {
			end = i + 2
		}
		l.netloc = rest[2:end]
		rest = rest[end:]
		if strings.Contains(l.netloc, "[") != strings.Contains(l.netloc, "]") {
			return link{}, fmt.Errorf("%w: invalid IPv6 host in %q", domain.ErrMalformedInput, raw)
		}
	}

	rest, _, _ = strings.Cut(rest, "#")
	rest, l.query, _ = strings.Cut(rest, "?")
	l.path = trimParams(rest)
	return l, nil
}

func isScheme(s string) bool {
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case 'a' <= c && c <= 'z', 'A' <= c && c <= 'Z':
		case i > 0 && ('0' <= c && c <= '9' || c == '+' || c == '-' || c == '.'):
		default:
			return false
		}
	}
	return true
}

// trimParams drops ";params" from the last path segment
func trimParams(path string) string {
	last := strings.LastIndex(path, "/") + 1
	if i := strings.IndexByte(path[last:], ';'); i >= 0 {
		return path[:last+i]
	}
	return path
}

// String joins scheme, host and path, leaving the path as written
func (l link) String() string {
	out := l.path
	if l.netloc != "" || (netlocSchemes[l.scheme] && !strings.HasPrefix(out, "//")) {
		if out != "" && !strings.HasPrefix(out, "/") {
			out = "/" + out
		}
		out = "//" + l.netloc + out
	}
	if l.scheme != "" {
		out = l.scheme + ":" + out
	}
	return out
}

// queryValue returns the first non-blank value of key. Pairs with bad
// escapes are decoded leniently rather than dropped.
func (l link) queryValue(key string) (string, bool) {
	for _, pair := range strings.Split(l.query, "&") {
		name, value, ok := strings.Cut(pair, "=")
		if !ok || value == "" {
			continue
		}
		if unquotePlus(name) == key {
			return unquotePlus(value), true
		}
	}
	return "", false
}

// unquote decodes every valid %XX escape and keeps invalid ones as written.
// Byte sequences that are not UTF-8 become U+FFFD.
func unquote(s string) string {
	if !strings.Contains(s, "%") {
		return s
	}
	buf := make([]byte, 0, len(s))
	for i := 0; i < len(s); i++ {
		if s[i] == '%' && i+2 < len(s) && isHex(s[i+1]) && isHex(s[i+2]) {
			buf = append(buf, unhex(s[i+1])<<4|unhex(s[i+2]))
			i += 2
			continue
		}
		buf = append(buf, s[i])
	}
	if utf8.Valid(buf) {
		return string(buf)
	}
	return strings.ToValidUTF8(string(buf), "\uFFFD")
}

func unquotePlus(s string) string {
	return unquote(strings.ReplaceAll(s, "+", " "))
}

func isHex(c byte) bool {
	return '0' <= c && c <= '9' || 'a' <= c && c <= 'f' || 'A' <= c && c <= 'F'
}

func unhex(c byte) byte {
	switch {
	case '0' <= c && c <= '9':
		return c - '0'
	case 'a' <= c && c <= 'f':
		return c - 'a' + 10
	default:
		return c - 'A' + 10
	}
}
