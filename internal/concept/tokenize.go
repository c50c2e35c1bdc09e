package concept

import (
	"strings"
	"unicode"

	"github.com/blevesearch/bleve/v2/analysis"
	"github.com/blevesearch/bleve/v2/analysis/lang/en"
	bleveunicode "github.com/blevesearch/bleve/v2/analysis/tokenizer/unicode"
	"github.com/jinzhu/inflection"
)

// supplementalStopwords are frequent in personal artifacts but carry no topic.
var supplementalStopwords = []string{
	"also", "just", "like", "get", "got", "one", "two", "new", "make", "made", "see",
	"know", "think", "want", "need", "going", "really", "thing", "things", "yes", "yeah",
	"okay", "ok", "hi", "hello", "thanks", "thank", "please", "regards", "best", "sent",
	"re", "fw", "fwd", "am", "pm", "today", "tomorrow", "yesterday", "let", "well", "good",
	"would", "could", "should", "will", "can", "may", "might", "must", "shall", "said",
	"say", "us", "via", "etc", "http", "https", "www", "com", "im", "ive", "dont", "wont",
	"cant", "isnt", "didnt", "doesnt", "thats", "theres", "youre",
}

// Stopwords is a set of lowercased words ignored during extraction.
type Stopwords map[string]bool

// DefaultStopwords returns bleve's English stop list plus supplementalStopwords and extra.
func DefaultStopwords(extra ...string) Stopwords {
	tm := analysis.NewTokenMap()
	// The embedded list always parses.
	_ = tm.LoadBytes(en.EnglishStopWords)
	sw := make(Stopwords, len(tm)+len(supplementalStopwords)+len(extra))
	for w := range tm {
		sw[w] = true
	}
	for _, w := range supplementalStopwords {
		sw[w] = true
	}
	for _, w := range extra {
		if w = strings.ToLower(strings.TrimSpace(w)); w != "" {
			sw[w] = true
		}
	}
	return sw
}

// Contains reports whether w is a stopword.
func (s Stopwords) Contains(w string) bool { return s[w] }

var tokenizer = bleveunicode.NewUnicodeTokenizer()

// Tokenize splits text into words on Unicode word boundaries and drops tokens
// that contain no letter.
func Tokenize(text string) []string {
	stream := tokenizer.Tokenize([]byte(text))
	out := make([]string, 0, len(stream))
	for _, tok := range stream {
		term := string(tok.Term)
		if tok.Type == analysis.Numeric || !hasLetter(term) {
			continue
		}
		out = append(out, term)
	}
	return out
}

// Normalize maps a word to its concept identity: lowercase, trimmed, possessive
// removed, singular.
func Normalize(word string) string {
	w := strings.ToLower(strings.TrimSpace(word))
	w = strings.TrimSuffix(w, "'s")
	w = strings.TrimSuffix(w, "’s")
	w = strings.Trim(w, "'’-_.")
	if w == "" {
		return ""
	}
	if s := inflection.Singular(w); s != "" {
		return s
	}
	return w
}

func hasLetter(s string) bool {
	for _, r := range s {
		if unicode.IsLetter(r) {
			return true
		}
	}
	return false
}
