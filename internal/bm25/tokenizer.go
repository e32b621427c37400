//-------------------------------------------------------------------------
//
// pgEdge RAG Chat
//
// Portions copyright (c) 2025 - 2026, pgEdge, Inc.
// This software is released under The PostgreSQL License
//
//-------------------------------------------------------------------------

package bm25

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// Tokenizer splits text into lowercase letter/digit runs and drops stop
// words and single-character tokens.
type Tokenizer struct {
	stopWords map[string]struct{}
}

var defaultStopWords = []string{
	"a", "an", "and", "are", "as", "at", "be", "by", "for", "from",
	"has", "he", "in", "is", "it", "its", "of", "on", "or", "that",
	"the", "to", "was", "were", "will", "with", "this", "but", "they",
	"have", "had", "what", "when", "where", "who", "which", "why", "how",
	"all", "each", "every", "both", "few", "more", "most", "other",
	"some", "such", "no", "not", "only", "same", "so", "than", "too",
	"very", "can", "just", "should", "now", "i", "you", "we", "me",
	"my", "your", "our", "their", "him", "her", "does", "do", "did",
}

// NewTokenizer creates a tokenizer with the built-in English stop words.
func NewTokenizer() *Tokenizer {
	return NewTokenizerWithStopWords(defaultStopWords)
}

// NewTokenizerWithStopWords creates a tokenizer with a custom stop list.
func NewTokenizerWithStopWords(words []string) *Tokenizer {
	set := make(map[string]struct{}, len(words))
	for _, w := range words {
		set[strings.ToLower(w)] = struct{}{}
	}
	return &Tokenizer{stopWords: set}
}

// Tokenize returns the tokens of text in order.
func (t *Tokenizer) Tokenize(text string) []string {
	fields := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})

	tokens := fields[:0]
	for _, f := range fields {
		if utf8.RuneCountInString(f) < 2 {
			continue
		}
		if _, stop := t.stopWords[f]; stop {
			continue
		}
		tokens = append(tokens, f)
	}
	return tokens
}

// Frequencies counts each token of text.
func (t *Tokenizer) Frequencies(text string) map[string]int {
	freqs := make(map[string]int)
	for _, tok := range t.Tokenize(text) {
		freqs[tok]++
	}
	return freqs
}
