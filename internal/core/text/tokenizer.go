// Package text turns raw chat lines into the word sequences the chain learns from.
package text

import (
	"strings"
)

// lineBreaks are deleted from every token. U+2028 is the unicode line separator.
var lineBreaks = strings.NewReplacer("\r", "", "\n", "", "\u2028", "")

// Sanitize removes carriage returns, line feeds and unicode line separators from word.
// Nothing is substituted in their place.
func Sanitize(word string) string {
	return lineBreaks.Replace(word)
}

// Tokenize trims surrounding whitespace from line, splits it on the single space
// character and sanitizes every token. Runs of spaces produce empty tokens; they
// are kept so that learning sees exactly the words the sender typed. Case is left
// untouched.
func Tokenize(line string) []string {
	words := strings.Split(strings.TrimSpace(line), " ")
	for i, w := range words {
		words[i] = Sanitize(w)
	}
	return words
}

// Fields splits a message on any run of whitespace. It is used to pick seed
// candidates for replies and does not sanitize.
func Fields(message string) []string {
	return strings.Fields(message)
}
