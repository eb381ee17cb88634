// Package moderation decides whether a message may be published.
package moderation

import (
	"strings"

	goahocorasick "github.com/anknown/ahocorasick"
)

// BannedWords are rejected anywhere in a message, whatever the letter case.
var BannedWords = []string{"elephant", "ice cream", "orange"}

// Filter matches messages against a fixed list of banned substrings.
// It is safe for concurrent use once built.
type Filter struct {
	matcher *goahocorasick.Machine
	empty   bool
}

var defaultFilter = mustNew(BannedWords)

// New builds an Aho-Corasick automaton over the lower-cased banned words.
// Blank entries are ignored.
func New(words []string) (*Filter, error) {
	patterns := make([][]rune, 0, len(words))
	for _, word := range words {
		if word == "" {
			continue
		}
		patterns = append(patterns, []rune(strings.ToLower(word)))
	}
	if len(patterns) == 0 {
		return &Filter{empty: true}, nil
	}

	m := new(goahocorasick.Machine)
	if err := m.Build(patterns); err != nil {
		return nil, err
	}
	return &Filter{matcher: m}, nil
}

func mustNew(words []string) *Filter {
	f, err := New(words)
	if err != nil {
		panic(err)
	}
	return f
}

// Default returns the process-wide filter built from BannedWords.
func Default() *Filter {
	return defaultFilter
}

// IsAcceptable reports whether message contains none of the banned words.
func (f *Filter) IsAcceptable(message string) bool {
	return len(f.Matches(message)) == 0
}

// Matches returns the banned words found in message, in order of appearance.
func (f *Filter) Matches(message string) []string {
	if f.empty || message == "" {
		return nil
	}
	terms := f.matcher.MultiPatternSearch([]rune(strings.ToLower(message)), false)
	if len(terms) == 0 {
		return nil
	}
	words := make([]string, 0, len(terms))
	for _, term := range terms {
		words = append(words, string(term.Word))
	}
	return words
}

// IsAcceptable checks message against the default banned words.
func IsAcceptable(message string) bool {
	return defaultFilter.IsAcceptable(message)
}
