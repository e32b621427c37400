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
	"reflect"
	"testing"
)

func TestTokenize(t *testing.T) {
	tok := NewTokenizer()

	tests := []struct {
		name string
		in   string
		want []string
	}{
		{"simple", "Arbitration clauses", []string{"arbitration", "clauses"}},
		{"stop words dropped", "What is the seat of the arbitration?", []string{"seat", "arbitration"}},
		{"punctuation splits", "article-7(2), model-law", []string{"article", "model", "law"}},
		{"single characters dropped", "a b c section 5 55", []string{"section", "55"}},
		{"unicode letters kept", "Übereinkommen über", []string{"übereinkommen", "über"}},
		{"empty", "", []string{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tok.Tokenize(tt.in)
			if len(got) == 0 && len(tt.want) == 0 {
				return
			}
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("Tokenize(%q) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}

func TestTokenizerWithStopWords(t *testing.T) {
	tok := NewTokenizerWithStopWords([]string{"Convention"})

	got := tok.Tokenize("the convention applies")
	want := []string{"the", "applies"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("got %v, want %v", got, want)
	}
}

func TestFrequencies(t *testing.T) {
	tok := NewTokenizer()

	freqs := tok.Frequencies("award award tribunal award")
	if freqs["award"] != 3 {
		t.Errorf("expected award=3, got %d", freqs["award"])
	}
	if freqs["tribunal"] != 1 {
		t.Errorf("expected tribunal=1, got %d", freqs["tribunal"])
	}
	if len(freqs) != 2 {
		t.Errorf("expected 2 distinct terms, got %d", len(freqs))
	}
}
