package model

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"
)

var labelSeparators = regexp.MustCompile(`[_\-\s\[\]]+`)

// DefaultLabeler derives a display label from a field name when the schema
// does not carry one. "firstname" becomes "Firstname", "reply_to" becomes
// "Reply To" and "zipCode" becomes "Zip Code".
func DefaultLabeler(name string) string {
	name = strings.TrimSpace(name)
	if name == "" {
		return ""
	}

	var words []string
	for _, chunk := range labelSeparators.Split(name, -1) {
		if chunk == "" {
			continue
		}
		for _, word := range splitCamel(chunk) {
			words = append(words, upperFirst(strings.ToLower(word)))
		}
	}
	return strings.Join(words, " ")
}

func splitCamel(input string) []string {
	var (
		out   []string
		start int
		prev  rune
	)
	for i, r := range input {
		if i > 0 && ((unicode.IsLower(prev) && unicode.IsUpper(r)) ||
			(unicode.IsLetter(prev) && unicode.IsDigit(r)) ||
			(unicode.IsDigit(prev) && unicode.IsLetter(r))) {
			out = append(out, input[start:i])
			start = i
		}
		prev = r
	}
	return append(out, input[start:])
}

func upperFirst(word string) string {
	r, size := utf8.DecodeRuneInString(word)
	if r == utf8.RuneError {
		return word
	}
	return string(unicode.ToUpper(r)) + word[size:]
}
