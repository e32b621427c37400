//-------------------------------------------------------------------------
//
// pgEdge RAG Chat
//
// Portions copyright (c) 2025 - 2026, pgEdge, Inc.
// This software is released under The PostgreSQL License
//
//-------------------------------------------------------------------------

// Package bm25 provides a local BM25 reranker. It scores the candidate
// passages of a single turn against the query without any network call.
package bm25

import "math"

// Default Okapi parameters.
const (
	DefaultK1 = 1.2  // term frequency saturation
	DefaultB  = 0.75 // document length normalization
)

// Params are the BM25 free parameters.
type Params struct {
	K1 float64
	B  float64
}

// DefaultParams returns the conventional K1/B pair.
func DefaultParams() Params {
	return Params{K1: DefaultK1, B: DefaultB}
}

// document is one tokenized candidate.
type document struct {
	length int
	terms  map[string]int
}

// corpus holds the statistics of the passages being reranked.
type corpus struct {
	docs     []document
	docFreqs map[string]int
	avgLen   float64
}

func newCorpus(tok *Tokenizer, texts []string) *corpus {
	c := &corpus{
		docs:     make([]document, len(texts)),
		docFreqs: make(map[string]int),
	}

	total := 0
	for i, text := range texts {
		terms := tok.Frequencies(text)
		n := 0
		for term, f := range terms {
			n += f
			c.docFreqs[term]++
		}
		c.docs[i] = document{length: n, terms: terms}
		total += n
	}
	if len(texts) > 0 {
		c.avgLen = float64(total) / float64(len(texts))
	}
	return c
}

// idf is the Lucene variant, log(1 + (N - df + 0.5) / (df + 0.5)), which
// stays non-negative for terms present in most documents.
func (c *corpus) idf(term string) float64 {
	df := float64(c.docFreqs[term])
	if df == 0 {
		return 0
	}
	n := float64(len(c.docs))
	return math.Log(1 + (n-df+0.5)/(df+0.5))
}

// score sums the BM25 contribution of each distinct query term.
func (c *corpus) score(p Params, query map[string]int, i int) float64 {
	doc := c.docs[i]
	if doc.length == 0 || c.avgLen == 0 {
		return 0
	}

	norm := 1 - p.B + p.B*float64(doc.length)/c.avgLen

	var total float64
	for term := range query {
		tf := float64(doc.terms[term])
		if tf == 0 {
			continue
		}
		total += c.idf(term) * tf * (p.K1 + 1) / (tf + p.K1*norm)
	}
	return total
}
