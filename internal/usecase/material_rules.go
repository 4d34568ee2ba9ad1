package usecase

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/feedcanon/backend/internal/domain"
)

// Feed columns carrying material text
const (
	fashionMaterialColumn = "Fashion:material"
	materialColumn        = "material"
)

const defaultMaterialKey = "material"

var (
	// "Upper: leather." style pairs
	dottedPairPattern = regexp.MustCompile(`[A-Za-z]\w+: [^.]+\.`)

	// "Upper & Lining: leather" style pairs ending before the next capital
	capitalPairPattern = regexp.MustCompile(`[A-Z][ \w&]+: [^A-Z]+`)

	// Material labels in document order
	materialLabelPattern = regexp.MustCompile(`(?i)(Upper|Sole|Lining|Insole|Footbed|Outer): `)

	// Care instructions appended after the composition
	careTextPattern = regexp.MustCompile(`(?i)(Wipe|Spot|Pre-Treat|Pre treat|care).+$`)

	nonAlphaPattern  = regexp.MustCompile(`[^A-Za-z]+`)
	upperSolePattern = regexp.MustCompile(`(upper|sole)`)
	bucketSplitter   = regexp.MustCompile(`[,/.]`)
)

// SingleValue maps a whole column to the material attribute
type SingleValue struct {
	Column string
	// Lower trims and lower-cases the value
	Lower bool
}

// Extract implements Variant
func (s SingleValue) Extract(row domain.Row) (domain.Attributes, bool, error) {
	v, err := row.Require(s.Column)
	if err != nil || v == "" {
		return nil, false, err
	}
	if s.Lower {
		v = strings.ToLower(strings.TrimSpace(v))
	}
	return domain.Attributes{defaultMaterialKey: {v}}, true, nil
}

// DelimitedList splits a column into a material list
type DelimitedList struct {
	Column string
	Sep    string
	// Reject marks text in another shape; such rows yield nothing
	Reject string
}

// Extract implements Variant
func (s DelimitedList) Extract(row domain.Row) (domain.Attributes, bool, error) {
	v, err := row.Require(s.Column)
	if err != nil || v == "" {
		return nil, false, err
	}
	if s.Reject != "" && strings.Contains(v, s.Reject) {
		return nil, false, nil
	}
	return materialList(v, s.Sep), true, nil
}

// LabeledPairs collects "key: value" pairs found by Pattern
type LabeledPairs struct {
	Column  string
	Pattern *regexp.Regexp
	// TrimSuffix is removed from every match before splitting
	TrimSuffix string
}

// Extract implements Variant
func (s LabeledPairs) Extract(row domain.Row) (domain.Attributes, bool, error) {
	v, err := row.Require(s.Column)
	if err != nil || v == "" {
		return nil, false, err
	}

	attrs := domain.Attributes{}
	for _, match := range s.Pattern.FindAllString(v, -1) {
		match = strings.TrimSuffix(match, s.TrimSuffix)
		key, value, err := splitPair(strings.ToLower(strings.TrimSpace(match)))
		if err != nil {
			return nil, false, err
		}
		attrs.Set(key, value)
	}
	return attrs, len(attrs) > 0, nil
}

// LabeledSegments reads "Label: value" segments where each value runs until
// the next recognized label. Boilerplate, when set, is cut before labels are
// located so trailing care text never lands in a value.
type LabeledSegments struct {
	Column      string
	Labels      *regexp.Regexp
	Boilerplate *regexp.Regexp
}

// Extract implements Variant
func (s LabeledSegments) Extract(row domain.Row) (domain.Attributes, bool, error) {
	v, err := row.Require(s.Column)
	if err != nil || v == "" {
		return nil, false, err
	}
	if s.Boilerplate != nil {
		v = s.Boilerplate.ReplaceAllString(v, "")
	}

	attrs := domain.Attributes{}
	locs := s.Labels.FindAllStringIndex(v, -1)
	for i, loc := range locs {
		end := len(v)
		if i+1 < len(locs) {
			end = locs[i+1][0]
		}
		key := strings.TrimSuffix(strings.ToLower(strings.TrimSpace(v[loc[0]:loc[1]])), ":")
		value := nonAlphaPattern.ReplaceAllString(v[loc[1]:end], " ")
		attrs.Set(key, strings.ToLower(strings.TrimSpace(value)))
	}
	return attrs, len(attrs) > 0, nil
}

// PunctuationShapes branches on the punctuation present in free text:
// "key: value" pairs separated by "/", a "/" list, or a "," list. Text in any
// other shape yields nothing.
type PunctuationShapes struct {
	Column string
}

// Extract implements Variant
func (s PunctuationShapes) Extract(row domain.Row) (domain.Attributes, bool, error) {
	v, err := row.Require(s.Column)
	if err != nil || v == "" {
		return nil, false, err
	}

	hasColon := strings.Contains(v, ":")
	hasSlash := strings.Contains(v, "/")
	switch {
	case hasColon && hasSlash:
		attrs := domain.Attributes{}
		for _, segment := range strings.Split(v, "/") {
			key, value, err := splitPair(strings.TrimSpace(strings.ToLower(segment)))
			if err != nil {
				return nil, false, err
			}
			attrs.Set(key, value)
		}
		return attrs, true, nil
	case hasSlash:
		return materialList(v, "/"), true, nil
	case strings.Contains(v, ",") && !hasColon:
		return materialList(v, ","), true, nil
	}
	return nil, false, nil
}

// UpperSoleShapes reads "x upper / y sole" as a pair, any other "/" text as
// a list and everything else as a single material
type UpperSoleShapes struct {
	Column string
}

// Extract implements Variant
func (s UpperSoleShapes) Extract(row domain.Row) (domain.Attributes, bool, error) {
	v, err := row.Require(s.Column)
	if err != nil || v == "" {
		return nil, false, err
	}
	v = strings.ToLower(strings.TrimSpace(v))

	switch {
	case strings.Contains(v, "/") && strings.Contains(v, "upper") && strings.Contains(v, "sole"):
		parts := strings.Split(upperSolePattern.ReplaceAllString(v, ""), "/")
		if len(parts) != 2 {
			return nil, false, fmt.Errorf("%w: expected upper/sole pair in %q", domain.ErrMalformedInput, v)
		}
		attrs := domain.Attributes{}
		attrs.Set("upper", strings.TrimSpace(parts[0]))
		attrs.Set("sole", strings.TrimSpace(parts[1]))
		return attrs, true, nil
	case strings.Contains(v, "/"):
		return materialList(v, "/"), true, nil
	}
	return domain.Attributes{defaultMaterialKey: {v}}, true, nil
}

// FixedPair splits a column into exactly two parts, upper then sole, each
// stripped of its label
type FixedPair struct {
	Column     string
	Sep        string
	UpperLabel string
	SoleLabel  string
}

// Extract implements Variant
func (s FixedPair) Extract(row domain.Row) (domain.Attributes, bool, error) {
	v, err := row.Require(s.Column)
	if err != nil {
		return nil, false, err
	}
	v = strings.ToLower(strings.TrimSpace(v))
	if v == "" {
		return nil, false, nil
	}

	parts := strings.Split(v, s.Sep)
	if len(parts) != 2 {
		return nil, false, fmt.Errorf("%w: expected 2 parts split by %q in %q", domain.ErrMalformedInput, s.Sep, v)
	}
	attrs := domain.Attributes{}
	attrs.Set("upper", strings.TrimSpace(strings.ReplaceAll(parts[0], s.UpperLabel, "")))
	attrs.Set("sole", strings.TrimSpace(strings.ReplaceAll(parts[1], s.SoleLabel, "")))
	return attrs, true, nil
}

// BucketTokens splits text into tokens and files each under the first bucket
// keyword it contains, with the keyword removed. Other tokens go to the
// material bucket.
type BucketTokens struct {
	Column  string
	Buckets []string
}

// Extract implements Variant
func (s BucketTokens) Extract(row domain.Row) (domain.Attributes, bool, error) {
	v, err := row.Require(s.Column)
	if err != nil || v == "" {
		return nil, false, err
	}
	v = digitPercentPattern.ReplaceAllString(strings.ToLower(strings.TrimSpace(v)), "")
	v = strings.ReplaceAll(v, "& ", ",")

	attrs := domain.Attributes{}
	for _, token := range bucketSplitter.Split(v, -1) {
		key, value := defaultMaterialKey, token
		for _, bucket := range s.Buckets {
			if strings.Contains(token, bucket) {
				key = bucket
				value = strings.ReplaceAll(strings.ReplaceAll(token, bucket, ""), ":", "")
				break
			}
		}
		if value = strings.TrimSpace(value); value != "" {
			attrs.Add(key, value)
		}
	}
	return attrs, len(attrs) > 0, nil
}

func materialList(text, sep string) domain.Attributes {
	attrs := domain.Attributes{}
	for _, item := range strings.Split(strings.ToLower(strings.TrimSpace(text)), sep) {
		if item = strings.TrimSpace(item); item != "" {
			attrs.Add(defaultMaterialKey, item)
		}
	}
	return attrs
}

func splitPair(text string) (string, string, error) {
	parts := strings.Split(text, ": ")
	if len(parts) < 2 {
		return "", "", fmt.Errorf("%w: %q is not a labeled pair", domain.ErrMalformedInput, text)
	}
	return parts[0], parts[1], nil
}

// materialVariants is the fixed set of merchants with material rules. There
// is no default: material text cannot be read without knowing its shape.
var materialVariants = map[string]Variant[domain.Attributes]{
	"all_sole": LabeledPairs{
		Column:     fashionMaterialColumn,
		Pattern:    dottedPairPattern,
		TrimSuffix: ".",
	},
	"begg_shoes": SingleValue{Column: "Fabric", Lower: true},
	"blue_tomato": DelimitedList{
		Column: "custom_5",
		Sep:    ", ",
		Reject: ":",
	},
	"choice": LabeledSegments{
		Column:      fashionMaterialColumn,
		Labels:      materialLabelPattern,
		Boilerplate: careTextPattern,
	},
	"converse":        DelimitedList{Column: fashionMaterialColumn, Sep: ", "},
	"daniel_footwear": SingleValue{Column: materialColumn},
	"deichmann": LabeledPairs{
		Column:  "short_description",
		Pattern: capitalPairPattern,
	},
	"foot_locker": DelimitedList{Column: fashionMaterialColumn, Sep: "/"},
	"jd_sports": BucketTokens{
		Column:  fashionMaterialColumn,
		Buckets: []string{"upper", "sole", "lining"},
	},
	"secret_sales":  SingleValue{Column: "specifications", Lower: true},
	"size":          UpperSoleShapes{Column: fashionMaterialColumn},
	"stadium_goods": DelimitedList{Column: materialColumn, Sep: "/"},
	"standout":      PunctuationShapes{Column: fashionMaterialColumn},
	"under_armour": FixedPair{
		Column:     "keywords",
		Sep:        "~",
		UpperLabel: "upper:",
		SoleLabel:  "outsole:",
	},
}

// materialDispatcher is built once and only read afterwards
var materialDispatcher = NewDispatcher[domain.Attributes]("material", materialVariants, nil)

// MaterialEngine extracts normalized material attributes for one merchant's rows
type MaterialEngine struct {
	merchant string
	variant  Variant[domain.Attributes]
}

// NewMaterialEngine resolves the material rule for merchant. Merchants
// without one are a configuration error.
func NewMaterialEngine(merchant string) (*MaterialEngine, error) {
	v, err := materialDispatcher.Resolve(merchant)
	if err != nil {
		return nil, err
	}
	return &MaterialEngine{merchant: merchant, variant: v}, nil
}

// MaterialMerchants returns the merchants with material rules
func MaterialMerchants() []string {
	return materialDispatcher.Names()
}

// ValidateMaterialMerchants checks that every merchant has a material rule
func ValidateMaterialMerchants(merchants []string) error {
	return materialDispatcher.Validate(merchants)
}

// Extract returns the normalized attributes for row. ok is false when the
// row carries no material data.
func (e *MaterialEngine) Extract(row domain.Row) (domain.Attributes, bool, error) {
	raw, found, err := e.variant.Extract(row)
	if err != nil || !found {
		return nil, false, err
	}
	normalized := NormalizeAttributes(raw)
	return normalized, normalized != nil, nil
}

// Merchant returns the merchant the engine was resolved for
func (e *MaterialEngine) Merchant() string {
	return e.merchant
}
