package usecase

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/feedcanon/backend/internal/domain"
)

// Feed columns carrying product links
const (
	deepLinkColumn  = "merchant_deep_link"
	linkColumn      = "link"
	upperLinkColumn = "LINK"
)

// destinationParam is the query parameter tracking redirects use to wrap the
// real product URL
const destinationParam = "destinationUrl"

var (
	// Product codes such as "p18029"
	productCodePattern = regexp.MustCompile(`p\d{4,}`)

	// Product codes written as a slug suffix, e.g. "-p123456"
	slugProductCodePattern = regexp.MustCompile(`-p\d{4,}`)
)

// TokenStrategy extracts the raw offer token from a row. found is false when
// the row carries nothing to build an identifier from.
type TokenStrategy interface {
	Token(row domain.Row) (token string, found bool, err error)
}

// ColumnValue uses a column's value as the token. It backs merchants without
// a bespoke rule.
type ColumnValue struct {
	Column string
}

// Token implements TokenStrategy
func (s ColumnValue) Token(row domain.Row) (string, bool, error) {
	v, err := row.Require(s.Column)
	if err != nil {
		return "", false, err
	}
	return v, true, nil
}

// HashURL fingerprints a link column, optionally canonicalizing it first
type HashURL struct {
	Column       string
	Canonicalize func(link string) (string, error)
}

// Token implements TokenStrategy
func (s HashURL) Token(row domain.Row) (string, bool, error) {
	link, err := requireNonEmpty(row, s.Column)
	if err != nil {
		return "", false, err
	}
	if s.Canonicalize != nil {
		if link, err = s.Canonicalize(link); err != nil {
			return "", false, err
		}
	}
	return Fingerprint(link), true, nil
}

// StripFromAmpersand drops everything from the first "&" on
func StripFromAmpersand(link string) (string, error) {
	before, _, _ := strings.Cut(link, "&")
	return before, nil
}

// TrimLastPathSegment reduces a link to scheme, host and its path without the
// final segment, discarding the query. The path keeps its original escaping.
func TrimLastPathSegment(raw string) (string, error) {
	l, err := splitLink(raw)
	if err != nil {
		return "", err
	}
	productLine := link{scheme: l.scheme, netloc: l.netloc, path: rsplit(l.path, "/", 1)[0]}
	return productLine.String(), nil
}

// PathSegment takes a positional segment of a link after splitting it on "/"
// from the right at most MaxSplit times
type PathSegment struct {
	Column   string
	Decode   bool
	MaxSplit int
	Index    int
}

// Token implements TokenStrategy
func (s PathSegment) Token(row domain.Row) (string, bool, error) {
	link, err := row.Require(s.Column)
	if err != nil {
		return "", false, err
	}
	if s.Decode {
		link = unquote(link)
	}
	seg, ok := pick(rsplit(link, "/", s.MaxSplit), s.Index)
	if !ok {
		return "", false, fmt.Errorf("%w: link %q has no segment %d", domain.ErrMalformedInput, link, s.Index)
	}
	return seg, true, nil
}

// NestedURLSegment reads the URL wrapped in a tracking link's query parameter
// and takes a positional path segment from it
type NestedURLSegment struct {
	Column string
	Param  string
	Index  int
	// Remove is deleted from the selected segment
	Remove string
	// Guarded rules treat a missing parameter as nothing to derive
	Guarded bool
}

// Token implements TokenStrategy
func (s NestedURLSegment) Token(row domain.Row) (string, bool, error) {
	raw, err := row.Require(s.Column)
	if err != nil {
		return "", false, err
	}
	l, err := splitLink(raw)
	if err != nil {
		return "", false, err
	}

	inner, ok := l.queryValue(s.Param)
	if !ok {
		if s.Guarded {
			return "", false, nil
		}
		return "", false, fmt.Errorf("%w: link has no %s parameter", domain.ErrMalformedInput, s.Param)
	}

	seg, ok := pick(strings.Split(inner, "/"), s.Index)
	if !ok {
		return "", false, fmt.Errorf("%w: %s %q has no segment %d", domain.ErrMalformedInput, s.Param, inner, s.Index)
	}
	if s.Remove != "" {
		seg = strings.ReplaceAll(seg, s.Remove, "")
	}
	return seg, true, nil
}

// DomainPattern takes the part of a link's path that follows a merchant
// domain, as found in affiliate links embedding the product URL in their path
type DomainPattern struct {
	Column string
	Anchor *regexp.Regexp
	// TrimLastSegment drops the variant suffix after the last "/"
	TrimLastSegment bool
	// Code, when set, isolates the first product code in the remainder
	Code *regexp.Regexp
	// PrefixColumn is joined in front of the token with "."
	PrefixColumn string
}

// AnchorAfter matches everything following prefix
func AnchorAfter(prefix string) *regexp.Regexp {
	return regexp.MustCompile(regexp.QuoteMeta(prefix) + `(.*)`)
}

// Token implements TokenStrategy
func (s DomainPattern) Token(row domain.Row) (string, bool, error) {
	raw, err := row.Require(s.Column)
	if err != nil {
		return "", false, err
	}
	l, err := splitLink(raw)
	if err != nil {
		return "", false, err
	}

	m := s.Anchor.FindStringSubmatch(l.path)
	if m == nil {
		return "", false, fmt.Errorf("%w: link path %q does not match %s", domain.ErrMalformedInput, l.path, s.Anchor)
	}
	token := m[1]
	if s.TrimLastSegment {
		token = rsplit(token, "/", 1)[0]
	}
	if s.Code != nil {
		code := s.Code.FindString(token)
		if code == "" {
			return "", false, fmt.Errorf("%w: no product code in %q", domain.ErrMalformedInput, token)
		}
		token = code
	}
	if s.PrefixColumn != "" {
		prefix, err := row.Require(s.PrefixColumn)
		if err != nil {
			return "", false, err
		}
		token = prefix + "." + token
	}
	return token, true, nil
}

// ColumnSplit splits a plain column on Sep and keeps the part at Index.
// Negative indexes count from the end.
type ColumnSplit struct {
	Column string
	Sep    string
	Index  int
}

// Token implements TokenStrategy
func (s ColumnSplit) Token(row domain.Row) (string, bool, error) {
	v, err := row.Require(s.Column)
	if err != nil {
		return "", false, err
	}
	part, ok := pick(strings.Split(v, s.Sep), s.Index)
	if !ok {
		return "", false, fmt.Errorf("%w: %q has no part %d", domain.ErrMalformedInput, v, s.Index)
	}
	return part, true, nil
}

// offerIDVariant turns a token strategy into an offer identifier rule
type offerIDVariant struct {
	merchant string
	strategy TokenStrategy
	// guarded rules report any failure as nothing to derive
	guarded bool
}

func (v offerIDVariant) Extract(row domain.Row) (string, bool, error) {
	token, found, err := v.strategy.Token(row)
	if err == nil && found {
		var id string
		if id, err = MakeOfferID(token, v.merchant); err == nil {
			return id, true, nil
		}
	}
	if err != nil && !v.guarded {
		return "", false, err
	}
	return "", false, nil
}

type identifierRule struct {
	strategy TokenStrategy
	guarded  bool
}

// identifierRules is the fixed set of merchants with bespoke identifier rules
var identifierRules = map[string]identifierRule{
	"nike":       {strategy: HashURL{Column: deepLinkColumn}},
	"very":       {strategy: HashURL{Column: deepLinkColumn}},
	"sevenstore": {strategy: HashURL{Column: deepLinkColumn}},
	"under_armour": {strategy: HashURL{
		Column:       deepLinkColumn,
		Canonicalize: StripFromAmpersand,
	}},
	"ellesse": {strategy: HashURL{
		Column:       deepLinkColumn,
		Canonicalize: TrimLastPathSegment,
	}},
	"choice": {strategy: PathSegment{
		Column:   deepLinkColumn,
		Decode:   true,
		MaxSplit: 2,
		Index:    1,
	}},
	"footpatrol": {strategy: NestedURLSegment{
		Column: deepLinkColumn,
		Param:  destinationParam,
		Index:  -2,
		Remove: "footpatrolcom",
	}},
	"size": {strategy: NestedURLSegment{
		Column:  deepLinkColumn,
		Param:   destinationParam,
		Index:   -2,
		Guarded: true,
	}},
	"reebok": {strategy: ColumnSplit{
		Column: "Product ID",
		Sep:    "-",
		Index:  0,
	}},
	"daniel_footwear": {strategy: DomainPattern{
		Column:          linkColumn,
		Anchor:          AnchorAfter("https://www.danielfootwear.com"),
		TrimLastSegment: true,
	}},
	"brother2brother": {strategy: DomainPattern{
		Column: upperLinkColumn,
		Anchor: AnchorAfter("https://www.brother2brother.co.uk/"),
		Code:   productCodePattern,
	}},
	"excell_sports": {strategy: DomainPattern{
		Column: upperLinkColumn,
		Anchor: AnchorAfter("https://www.excell-sports.com/"),
		Code:   slugProductCodePattern,
	}},
	"cho": {
		strategy: DomainPattern{
			Column:       upperLinkColumn,
			Anchor:       AnchorAfter("https://www.cho.co.uk/"),
			Code:         productCodePattern,
			PrefixColumn: "COLOR",
		},
		guarded: true,
	},
}

// IdentifierRules dispatches merchants to identifier rules. Merchants without
// a bespoke rule use their configured pid column.
type IdentifierRules struct {
	dispatcher *Dispatcher[string]
}

// NewIdentifierRules builds the rule set over the merchant pid columns
func NewIdentifierRules(pid map[string]string) *IdentifierRules {
	variants := make(map[string]Variant[string], len(identifierRules))
	for name, rule := range identifierRules {
		variants[name] = offerIDVariant{merchant: name, strategy: rule.strategy, guarded: rule.guarded}
	}

	columns := make(map[string]string, len(pid))
	for merchant, column := range pid {
		columns[merchant] = column
	}

	fallback := func(merchant string) (Variant[string], error) {
		column := columns[merchant]
		if column == "" {
			return nil, fmt.Errorf("%w: no pid column configured for merchant %q", domain.ErrConfiguration, merchant)
		}
		return offerIDVariant{merchant: merchant, strategy: ColumnValue{Column: column}}, nil
	}

	return &IdentifierRules{
		dispatcher: NewDispatcher("identifier", variants, fallback),
	}
}

// Engine resolves the identifier rule for merchant
func (r *IdentifierRules) Engine(merchant string) (*IdentifierEngine, error) {
	v, err := r.dispatcher.Resolve(merchant)
	if err != nil {
		return nil, err
	}
	return &IdentifierEngine{merchant: merchant, variant: v}, nil
}

// Validate checks that every merchant resolves to a rule
func (r *IdentifierRules) Validate(merchants []string) error {
	return r.dispatcher.Validate(merchants)
}

// Registered returns the merchants with bespoke identifier rules
func (r *IdentifierRules) Registered() []string {
	return r.dispatcher.Names()
}

// IdentifierEngine derives offer identifiers for one merchant's rows
type IdentifierEngine struct {
	merchant string
	variant  Variant[string]
}

// NewIdentifierEngine resolves the identifier rule for merchant
func NewIdentifierEngine(merchant string, pid map[string]string) (*IdentifierEngine, error) {
	return NewIdentifierRules(pid).Engine(merchant)
}

// Derive returns the offer identifier for row. ok is false when the rule
// found nothing to derive.
func (e *IdentifierEngine) Derive(row domain.Row) (offerID string, ok bool, err error) {
	return e.variant.Extract(row)
}

// Merchant returns the merchant the engine was resolved for
func (e *IdentifierEngine) Merchant() string {
	return e.merchant
}

func requireNonEmpty(row domain.Row, column string) (string, error) {
	v, err := row.Require(column)
	if err != nil {
		return "", err
	}
	if v == "" {
		return "", fmt.Errorf("%w: empty column %q", domain.ErrMalformedInput, column)
	}
	return v, nil
}

// rsplit splits s on sep from the right, at most n times
func rsplit(s, sep string, n int) []string {
	var tail []string
	for i := 0; i < n; i++ {
		idx := strings.LastIndex(s, sep)
		if idx < 0 {
			break
		}
		tail = append(tail, s[idx+len(sep):])
		s = s[:idx]
	}
	parts := make([]string, 0, len(tail)+1)
	parts = append(parts, s)
	for i := len(tail) - 1; i >= 0; i-- {
		parts = append(parts, tail[i])
	}
	return parts
}

// pick returns parts[i], counting from the end for negative i
func pick(parts []string, i int) (string, bool) {
	if i < 0 {
		i += len(parts)
	}
	if i < 0 || i >= len(parts) {
		return "", false
	}
	return parts[i], true
}
