package orgname

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// Display returns the human-facing form of raw: trailing geographic
// qualifiers cut, then title-cased. Short all-caps tokens such as AG, NV or
// LLC are kept unless they are one of Inc, Corp, Ltd or Co.
func Display(raw string) string {
	cut := strings.Join(strings.Fields(stripQualifiers(raw)), " ")
	cut = strings.TrimRight(cut, ", ")

	words := strings.Fields(cut)
	for i, word := range words {
		words[i] = titleWord(word)
	}
	return strings.Join(words, " ")
}

func titleWord(word string) string {
	var b strings.Builder
	start := 0
	for i, r := range word {
		if r != '-' && r != '/' {
			continue
		}
		b.WriteString(titlePart(word[start:i]))
		b.WriteRune(r)
		start = i + utf8.RuneLen(r)
	}
	b.WriteString(titlePart(word[start:]))
	return b.String()
}

func titlePart(part string) string {
	letters := make([]rune, 0, len(part))
	for _, r := range part {
		if unicode.IsLetter(r) {
			letters = append(letters, r)
		}
	}
	if len(letters) == 0 {
		return part
	}

	if isAllUpper(letters) && len(letters) <= 3 {
		if _, ok := titleCasedSuffixes[string(letters)]; !ok {
			return part
		}
	}
	if hasInnerCapitals(letters) {
		return part
	}

	lowered := []rune(strings.ToLower(part))
	for i, r := range lowered {
		if unicode.IsLetter(r) {
			lowered[i] = unicode.ToUpper(r)
			break
		}
	}
	return string(lowered)
}

func isAllUpper(letters []rune) bool {
	for _, r := range letters {
		if !unicode.IsUpper(r) {
			return false
		}
	}
	return true
}

// hasInnerCapitals matches mixed-case brands like BioNTech or McKesson.
func hasInnerCapitals(letters []rune) bool {
	hasLower := false
	innerUpper := false
	for i, r := range letters {
		if unicode.IsLower(r) {
			hasLower = true
		}
		if i > 0 && unicode.IsUpper(r) {
			innerUpper = true
		}
	}
	return hasLower && innerUpper
}
