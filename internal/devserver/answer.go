// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package devserver

import (
	"context"
	"sort"
	"strings"
	"unicode"

	"github.com/jeranaias/ragchat/internal/model"
	"github.com/jeranaias/ragchat/internal/util"
)

// NoAnswer is returned when no document matches the question.
const NoAnswer = "I do not have enough information to answer that question based on the provided documents."

// maxCitations bounds how many passages back one answer.
const maxCitations = 3

// passageLength caps the text quoted in a citation.
const passageLength = 300

// Reply is a generated answer, split into the increments that will be
// streamed, plus the citations backing it.
type Reply struct {
	Tokens    []string
	Citations []model.Citation
}

// Text joins the tokens into the full answer.
func (r Reply) Text() string {
	return strings.Join(r.Tokens, "")
}

// Answerer produces replies. history holds the messages sent before the
// question; docs holds every document with its content.
type Answerer interface {
	Answer(ctx context.Context, history []model.Message, question string, docs []model.Document) (Reply, error)
}

// AnswerFunc adapts a function to Answerer.
type AnswerFunc func(ctx context.Context, history []model.Message, question string, docs []model.Document) (Reply, error)

// Answer calls f.
func (f AnswerFunc) Answer(ctx context.Context, history []model.Message, question string, docs []model.Document) (Reply, error) {
	return f(ctx, history, question, docs)
}

// Tokenize splits text into word-sized increments that concatenate back to
// the original string.
func Tokenize(text string) []string {
	if text == "" {
		return nil
	}
	return strings.SplitAfter(text, " ")
}

// =============================================================================
// KEYWORD ANSWERER
// =============================================================================

// KeywordAnswerer quotes the passages of the documents that share the most
// keywords with the question.
type KeywordAnswerer struct{}

type scoredPassage struct {
	doc     model.Document
	passage string
	score   int
}

// Answer implements Answerer.
func (KeywordAnswerer) Answer(_ context.Context, _ []model.Message, question string, docs []model.Document) (Reply, error) {
	keywords := keywordsOf(question)
	if len(keywords) == 0 {
		return Reply{Tokens: Tokenize(NoAnswer)}, nil
	}

	var candidates []scoredPassage
	for _, doc := range docs {
		best := scoredPassage{doc: doc}
		for _, passage := range passagesOf(doc.Content) {
			words := keywordsOf(passage)
			score := 0
			for k := range keywords {
				if words[k] {
					score++
				}
			}
			if score > best.score {
				best.passage, best.score = passage, score
			}
		}
		if best.score > 0 {
			candidates = append(candidates, best)
		}
	}
	if len(candidates) == 0 {
		return Reply{Tokens: Tokenize(NoAnswer)}, nil
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].score > candidates[j].score
	})
	if len(candidates) > maxCitations {
		candidates = candidates[:maxCitations]
	}

	var answer strings.Builder
	citations := make([]model.Citation, 0, len(candidates))
	for i, c := range candidates {
		quote := util.TruncateRunes(c.passage, passageLength)
		if i > 0 {
			answer.WriteString(" ")
		}
		answer.WriteString("According to " + c.doc.Filename + ", " + quote)
		citations = append(citations, model.Citation{
			Source:   "docs/" + c.doc.Filename,
			Filename: c.doc.Filename,
			Content:  quote,
		})
	}
	return Reply{Tokens: Tokenize(answer.String()), Citations: citations}, nil
}

// keywordsOf returns the lowercased words of four letters or more.
func keywordsOf(text string) map[string]bool {
	words := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	out := make(map[string]bool, len(words))
	for _, w := range words {
		if len([]rune(w)) >= 4 {
			out[w] = true
		}
	}
	return out
}

// passagesOf splits text into sentences and paragraphs.
func passagesOf(text string) []string {
	var out []string
	for _, para := range strings.Split(text, "\n") {
		for _, sentence := range strings.SplitAfter(para, ". ") {
			if s := strings.TrimSpace(sentence); s != "" {
				out = append(out, s)
			}
		}
	}
	return out
}
