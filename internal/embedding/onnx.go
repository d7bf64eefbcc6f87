//go:build cgo
// +build cgo

package embedding

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"sync"

	ort "github.com/yalue/onnxruntime_go"

	"github.com/hyperjump/kotae/pkg/utils"
)

var (
	ortInitOnce sync.Once
	ortInitErr  error
)

// ONNXEmbedder runs a sentence-transformer exported to ONNX and mean-pools its
// last hidden state over the attention mask. It requires CGO and the onnxruntime
// shared library.
type ONNXEmbedder struct {
	session    *ort.AdvancedSession
	modelID    string
	dimensions int
	maxTokens  int
	tokenizer  Tokenizer
	// Tensors are allocated once; Run reads inputs from and writes outputs into them.
	inputIDsTensor      *ort.Tensor[int64]
	attentionMaskTensor *ort.Tensor[int64]
	tokenTypeIDsTensor  *ort.Tensor[int64]
	outputTensor        *ort.Tensor[float32]
	mu                  sync.Mutex
}

// NewONNXEmbedder loads the model at modelPath. The model must take input_ids,
// attention_mask and token_type_ids and produce last_hidden_state of shape
// (1, maxTokens, dimensions).
func NewONNXEmbedder(modelPath string, dimensions, maxTokens int) (*ONNXEmbedder, error) {
	if dimensions <= 0 || maxTokens <= 1 {
		return nil, fmt.Errorf("onnx embedder: invalid dimensions %d or max tokens %d", dimensions, maxTokens)
	}
	ortInitOnce.Do(func() { ortInitErr = ort.InitializeEnvironment() })
	if ortInitErr != nil {
		return nil, fmt.Errorf("failed to initialize ONNX runtime: %w", ortInitErr)
	}

	e := &ONNXEmbedder{
		modelID:    "onnx:" + strings.TrimSuffix(filepath.Base(modelPath), filepath.Ext(modelPath)),
		dimensions: dimensions,
		maxTokens:  maxTokens,
		tokenizer:  &SimpleTokenizer{},
	}
	inputIDs, attentionMask, tokenTypeIDs := e.tokenizer.Tokenize("", maxTokens)
	inputShape := ort.NewShape(1, int64(maxTokens))

	var err error
	if e.inputIDsTensor, err = ort.NewTensor(inputShape, inputIDs); err != nil {
		return nil, fmt.Errorf("failed to create input_ids tensor: %w", err)
	}
	if e.attentionMaskTensor, err = ort.NewTensor(inputShape, attentionMask); err != nil {
		_ = e.Close()
		return nil, fmt.Errorf("failed to create attention_mask tensor: %w", err)
	}
	if e.tokenTypeIDsTensor, err = ort.NewTensor(inputShape, tokenTypeIDs); err != nil {
		_ = e.Close()
		return nil, fmt.Errorf("failed to create token_type_ids tensor: %w", err)
	}
	hidden := make([]float32, maxTokens*dimensions)
	if e.outputTensor, err = ort.NewTensor(ort.NewShape(1, int64(maxTokens), int64(dimensions)), hidden); err != nil {
		_ = e.Close()
		return nil, fmt.Errorf("failed to create output tensor: %w", err)
	}

	e.session, err = ort.NewAdvancedSession(
		modelPath,
		[]string{"input_ids", "attention_mask", "token_type_ids"},
		[]string{"last_hidden_state"},
		[]ort.ArbitraryTensor{e.inputIDsTensor, e.attentionMaskTensor, e.tokenTypeIDsTensor},
		[]ort.ArbitraryTensor{e.outputTensor},
		nil,
	)
	if err != nil {
		_ = e.Close()
		return nil, fmt.Errorf("failed to create ONNX session: %w", err)
	}
	return e, nil
}

// Embed runs inference for one text. Calls are serialized on the shared tensors.
func (e *ONNXEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if err := checkTexts(e.modelID, text); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, &EmbeddingError{Model: e.modelID, Err: err}
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	inputIDs, attentionMask, tokenTypeIDs := e.tokenizer.Tokenize(text, e.maxTokens)
	copy(e.inputIDsTensor.GetData(), inputIDs)
	copy(e.attentionMaskTensor.GetData(), attentionMask)
	copy(e.tokenTypeIDsTensor.GetData(), tokenTypeIDs)

	if err := e.session.Run(); err != nil {
		return nil, &EmbeddingError{Model: e.modelID, Err: fmt.Errorf("%w: inference: %w", ErrUnavailable, err)}
	}
	v := meanPool(e.outputTensor.GetData(), attentionMask, e.dimensions)
	utils.NormalizeL2(v)
	return v, nil
}

// EmbedBatch embeds each text in order.
func (e *ONNXEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if err := checkTexts(e.modelID, texts...); err != nil {
		return nil, err
	}
	out := make([][]float32, len(texts))
	for i, text := range texts {
		v, err := e.Embed(ctx, text)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

// Dimensions returns the embedding dimension.
func (e *ONNXEmbedder) Dimensions() int { return e.dimensions }

// ModelID returns "onnx:<model file stem>".
func (e *ONNXEmbedder) ModelID() string { return e.modelID }

// Close destroys the session and tensors.
func (e *ONNXEmbedder) Close() error {
	var err error
	if e.session != nil {
		err = e.session.Destroy()
		e.session = nil
	}
	for _, t := range []*ort.Tensor[int64]{e.inputIDsTensor, e.attentionMaskTensor, e.tokenTypeIDsTensor} {
		if t != nil {
			_ = t.Destroy()
		}
	}
	if e.outputTensor != nil {
		_ = e.outputTensor.Destroy()
	}
	e.inputIDsTensor, e.attentionMaskTensor, e.tokenTypeIDsTensor, e.outputTensor = nil, nil, nil, nil
	return err
}
