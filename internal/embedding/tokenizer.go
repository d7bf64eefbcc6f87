package embedding

import (
	"hash/fnv"

	"github.com/hyperjump/kotae/pkg/utils"
)

// BERT special token ids shared by the MiniLM family.
const (
	clsTokenID = 101
	sepTokenID = 102
	vocabSize  = 30000
)

// Tokenizer produces token IDs for BERT-style models (input_ids, attention_mask, token_type_ids).
type Tokenizer interface {
	Tokenize(text string, maxTokens int) (inputIDs, attentionMask, tokenTypeIDs []int64)
}

// SimpleTokenizer lowercases and splits words, mapping each to a hashed id.
// It lacks a real WordPiece vocabulary, so it suits models fine-tuned on the same scheme.
type SimpleTokenizer struct{}

// Tokenize produces [CLS] words... [SEP] padded to maxTokens (256 when <= 0).
func (t *SimpleTokenizer) Tokenize(text string, maxTokens int) (inputIDs, attentionMask, tokenTypeIDs []int64) {
	if maxTokens <= 0 {
		maxTokens = 256
	}
	inputIDs = make([]int64, maxTokens)
	attentionMask = make([]int64, maxTokens)
	tokenTypeIDs = make([]int64, maxTokens)

	inputIDs[0] = clsTokenID
	attentionMask[0] = 1
	pos := 1
	for _, word := range utils.Tokenize(text) {
		if pos >= maxTokens-1 {
			break
		}
		inputIDs[pos] = tokenID(word)
		attentionMask[pos] = 1
		pos++
	}
	if pos < maxTokens {
		inputIDs[pos] = sepTokenID
		attentionMask[pos] = 1
	}
	return inputIDs, attentionMask, tokenTypeIDs
}

// tokenID maps a word into the id range above the special tokens.
func tokenID(word string) int64 {
	h := fnv.New32a()
	_, _ = h.Write([]byte(word))
	return int64(h.Sum32()%vocabSize) + sepTokenID + 1
}
