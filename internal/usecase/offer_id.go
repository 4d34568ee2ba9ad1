package usecase

import (
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/feedcanon/backend/internal/domain"
)

// FingerprintLength is the width of identifiers derived from URL content
const FingerprintLength = 25

// MakeOfferID builds the composite "{merchant}.{token}" identifier. The token
// keeps ASCII letters and digits only; the merchant is lower-cased with spaces
// replaced by underscores.
func MakeOfferID(token, merchant string) (string, error) {
	if merchant == "" {
		return "", fmt.Errorf("%w: empty merchant", domain.ErrInvalidInput)
	}
	if token == "" {
		return "", fmt.Errorf("%w: empty offer token for merchant %q", domain.ErrInvalidInput, merchant)
	}

	sanitized := sanitizeToken(token)
	if sanitized == "" {
		return "", fmt.Errorf("%w: offer token %q has no alphanumeric characters", domain.ErrInvalidInput, token)
	}

	return NormalizeMerchant(merchant) + "." + sanitized, nil
}

// NormalizeMerchant renders a merchant name as it appears in identifiers
func NormalizeMerchant(merchant string) string {
	return strings.ToLower(strings.ReplaceAll(merchant, " ", "_"))
}

func sanitizeToken(token string) string {
	var b strings.Builder
	b.Grow(len(token))
	for i := 0; i < len(token); i++ {
		c := token[i]
		if ('a' <= c && c <= 'z') || ('A' <= c && c <= 'Z') || ('0' <= c && c <= '9') {
			b.WriteByte(c)
		}
	}
	return b.String()
}

// Fingerprint returns the first FingerprintLength hex characters of the md5
// digest of text
func Fingerprint(text string) string {
	return FingerprintN(text, FingerprintLength)
}

// FingerprintN is Fingerprint with a caller-chosen width, capped at the full
// digest. Widen it when identifiers need stricter uniqueness.
func FingerprintN(text string, n int) string {
	sum := md5.Sum([]byte(text))
	digest := hex.EncodeToString(sum[:])
	if n <= 0 || n > len(digest) {
		return digest
	}
	return digest[:n]
}
