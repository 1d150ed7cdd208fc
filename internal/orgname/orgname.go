// Package orgname turns free-text organization names into comparison keys
// and display names.
//
// Three forms are produced:
//
//   - Normalize: lower-cased, periods and commas removed, trailing
//     geographic qualifiers cut. Used for exact comparisons.
//   - Key: Normalize with stacked legal suffixes, trailing industry
//     descriptors and trailing punctuation removed. Used as the durable
//     company identity.
//   - Display: the human-facing name, title-cased.
//
// Every function is a fixed point on its own output.
package orgname

import (
	"strings"
	"unicode"
)

var legalSuffixes = map[string]struct{}{
	"inc":          {},
	"incorporated": {},
	"corp":         {},
	"corporation":  {},
	"co":           {},
	"company":      {},
	"llc":          {},
	"pllc":         {},
	"ltd":          {},
	"limited":      {},
	"lp":           {},
	"llp":          {},
	"plc":          {},
	"bv":           {},
	"nv":           {},
	"gmbh":         {},
	"ag":           {},
	"se":           {},
	"kg":           {},
	"kgaa":         {},
	"a/s":          {},
	"as":           {},
	"sa":           {},
	"sas":          {},
	"spa":          {},
	"srl":          {},
	"ab":           {},
	"pty":          {},
	"pte":          {},
}

var industryDescriptors = map[string]struct{}{
	"pharmaceuticals":    {},
	"pharmaceutical":     {},
	"pharma":             {},
	"therapeutics":       {},
	"biotherapeutics":    {},
	"biopharma":          {},
	"biopharmaceuticals": {},
	"biosciences":        {},
	"bioscience":         {},
	"biotech":            {},
	"biotechnology":      {},
	"sciences":           {},
	"science":            {},
	"health":             {},
	"healthcare":         {},
	"medical":            {},
	"laboratories":       {},
	"labs":               {},
	"technologies":       {},
	"group":              {},
	"holdings":           {},
}

// titleCasedSuffixes lose their capitals in display form even when short.
var titleCasedSuffixes = map[string]struct{}{
	"INC":  {},
	"CORP": {},
	"LTD":  {},
	"CO":   {},
}

// Normalize returns the exact-comparison form of raw.
func Normalize(raw string) string {
	cut := stripQualifiers(raw)
	cut = strings.ToLower(cut)
	cut = strings.NewReplacer(".", "", ",", "").Replace(cut)
	return strings.Join(strings.Fields(cut), " ")
}

// Key returns the comparison key of raw. The key is empty when raw holds
// nothing but legal suffixes and punctuation.
func Key(raw string) string {
	return strings.Join(reduce(strings.Fields(Normalize(raw))), " ")
}

// Keywords returns the core keywords of raw.
func Keywords(raw string) []string {
	return Tokens(Key(raw))
}

// Tokens splits text on every rune that is neither a letter nor a digit.
func Tokens(text string) []string {
	return strings.FieldsFunc(text, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}

// IsLegalSuffix reports whether word, ignoring case and periods, is a
// legal-entity suffix.
func IsLegalSuffix(word string) bool {
	_, ok := legalSuffixes[suffixForm(word)]
	return ok
}

// IsDescriptor reports whether word is an industry descriptor.
func IsDescriptor(word string) bool {
	_, ok := industryDescriptors[strings.ToLower(strings.TrimSpace(word))]
	return ok
}

func reduce(tokens []string) []string {
	for {
		if start := trailingGroupStart(tokens); start > 0 {
			tokens = tokens[:start]
			continue
		}
		tokens = trimTrailingPunctuation(tokens)
		if len(tokens) == 0 {
			return nil
		}

		last := tokens[len(tokens)-1]
		if IsLegalSuffix(last) {
			tokens = tokens[:len(tokens)-1]
			continue
		}
		// The last remaining word is the name, even when it is a descriptor.
		if len(tokens) > 1 && IsDescriptor(last) {
			tokens = tokens[:len(tokens)-1]
			continue
		}
		return tokens
	}
}

func trimTrailingPunctuation(tokens []string) []string {
	out := tokens
	for len(out) > 0 {
		last := out[len(out)-1]
		trimmed := strings.TrimRightFunc(last, isPunctuation)
		if trimmed == last {
			return out
		}
		if trimmed == "" {
			out = out[:len(out)-1]
			continue
		}
		next := make([]string, len(out))
		copy(next, out)
		next[len(next)-1] = trimmed
		return next
	}
	return out
}

// trailingGroupStart returns the index of the token opening a parenthesised
// group that ends the name, such as "(usa)" or "(uk) (holdings)", or -1.
func trailingGroupStart(tokens []string) int {
	if len(tokens) == 0 || !strings.HasSuffix(tokens[len(tokens)-1], ")") {
		return -1
	}
	for i := len(tokens) - 1; i >= 0; i-- {
		if strings.HasPrefix(tokens[i], "(") {
			return i
		}
	}
	return -1
}

func isPunctuation(r rune) bool {
	return !unicode.IsLetter(r) && !unicode.IsDigit(r)
}

// stripQualifiers cuts a trailing parenthesised qualifier and any
// comma-separated segments that trail the legal suffix, so
// "Merck & Co., Inc., Rahway, NJ, USA" becomes "Merck & Co., Inc.".
func stripQualifiers(raw string) string {
	raw = cutTrailingGroup(raw)
	segments := strings.Split(raw, ",")
	if len(segments) < 2 {
		return raw
	}

	anchor := -1
	for i, segment := range segments {
		words := strings.Fields(segment)
		if len(words) > 0 && IsLegalSuffix(words[len(words)-1]) {
			anchor = i
			break
		}
	}
	if anchor < 0 {
		return raw
	}

	end := anchor
	for end+1 < len(segments) && allLegalSuffixes(segments[end+1]) {
		end++
	}
	return strings.Join(segments[:end+1], ",")
}

// cutTrailingGroup removes balanced "(...)" groups that end raw, keeping
// raw whole when nothing would be left in front of them.
func cutTrailingGroup(raw string) string {
	for {
		trimmed := strings.TrimRightFunc(raw, unicode.IsSpace)
		if !strings.HasSuffix(trimmed, ")") {
			return raw
		}
		depth := 0
		open := -1
		for i := len(trimmed) - 1; i >= 0; i-- {
			switch trimmed[i] {
			case ')':
				depth++
			case '(':
				depth--
			}
			if depth == 0 {
				open = i
				break
			}
		}
		if open <= 0 {
			return raw
		}
		head := strings.TrimRight(trimmed[:open], " \t,")
		if strings.TrimSpace(head) == "" {
			return raw
		}
		raw = head
	}
}

func allLegalSuffixes(segment string) bool {
	words := strings.Fields(segment)
	if len(words) == 0 {
		return false
	}
	for _, word := range words {
		if !IsLegalSuffix(word) {
			return false
		}
	}
	return true
}

func suffixForm(word string) string {
	word = strings.ToLower(strings.TrimSpace(word))
	return strings.NewReplacer(".", "", ",", "").Replace(word)
}
