// Package prose reassembles readable text from whitespace-less stream
// tokens. Joining is a pure fold: replaying the same token sequence always
// produces the same text.
package prose

import (
	"unicode"
	"unicode/utf8"
)

// Join appends token to acc, inserting a single space when the boundary
// between them calls for one. Empty inputs concatenate as-is so the result
// never starts with a space.
func Join(acc, token string) string {
	if acc == "" || token == "" {
		return acc + token
	}
	prev, _ := utf8.DecodeLastRuneInString(acc)
	next, _ := utf8.DecodeRuneInString(token)
	if NeedsSpace(prev, next) {
		return acc + " " + token
	}
	return acc + token
}

// NeedsSpace reports whether a space belongs between two adjacent runes:
// the last rune of the accumulated text and the first rune of the incoming
// token.
func NeedsSpace(prev, next rune) bool {
	switch {
	case isAlnum(prev) && isAlnum(next):
		return true
	case isSentencePunct(prev) && (isAlnum(next) || isOpeningQuote(next)):
		return true
	case isClosing(prev) && isAlnum(next):
		return true
	}
	return false
}

func isAlnum(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsDigit(r)
}

func isSentencePunct(r rune) bool {
	switch r {
	case '.', '?', '!', ',', ':', ';':
		return true
	}
	return false
}

func isOpeningQuote(r rune) bool {
	switch r {
	case '"', '\'', '`':
		return true
	}
	return false
}

// isClosing covers closing brackets and closing quotes. The straight double
// quote is ambiguous: it closes when it ends the accumulated text and opens
// when it starts a token.
func isClosing(r rune) bool {
	switch r {
	case ')', ']', '}', '”', '’', '"':
		return true
	}
	return false
}
