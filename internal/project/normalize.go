package project

import (
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Normalizer applies dataset-specific cleanup to a payload row before it is
// written. The strategy is chosen per dataset descriptor, never inferred from
// the data itself.
type Normalizer interface {
	Normalize(row Row)
}

// NormalizerFor resolves a descriptor's normalize name. "" means none.
func NormalizerFor(name string) (Normalizer, error) {
	switch name {
	case "":
		return nil, nil
	case "user_contact":
		return userContact{}, nil
	default:
		return nil, fmt.Errorf("unknown normalizer %q", name)
	}
}

// userContact fixes two known upstream data-quality defects in user records:
//
//   - address values contain literal newlines, which break single-line
//     consumers of the output table;
//   - some job values arrive as "<general title>, <specialization>" and must
//     be reordered to "<specialization> <general title>" with sentence-style
//     capitalization.
//
// The address check doubles as a cheap guard: rows without an address field
// are left untouched at almost no cost.
type userContact struct{}

var lowerCaser = cases.Lower(language.English)

func (userContact) Normalize(row Row) {
	addr, ok := row["address"].(string)
	if !ok {
		return
	}
	row["address"] = strings.ReplaceAll(addr, "\n", " ")

	if job, ok := row["job"].(string); ok && strings.Contains(job, ",") {
		row["job"] = fixJobTitle(job)
	}
}

// fixJobTitle reorders "<general title>,<specialization>" to
// "<specialization> <general title>", trimming leading whitespace from the
// specialization, then capitalizes the result: first rune upper, remainder
// lower. Splits on the first comma only.
func fixJobTitle(job string) string {
	general, specialization, _ := strings.Cut(job, ",")
	specialization = strings.TrimLeftFunc(specialization, unicode.IsSpace)
	return capitalize(specialization + " " + general)
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	r, size := utf8.DecodeRuneInString(s)
	return string(unicode.ToUpper(r)) + lowerCaser.String(s[size:])
}
