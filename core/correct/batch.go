package correct

import (
	"context"
	"strings"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	coreerrors "github.com/rshdesign/redliner/core/errors"
	"github.com/rshdesign/redliner/internal/logging"
)

// batchDelimiter separates items inside a single batched request.
const batchDelimiter = "|||"

const batchSystemPrompt = `You are an expert menu editor. You will receive multiple menu items separated by "|||".
Return the corrected items in the SAME ORDER, also separated by "|||".

RULES:
- PRESERVE EXISTING CAPITALIZATION - do not change dish names, section headers, or titles
- Fix only clear spelling errors: tartar→tartare, avacado→avocado, mozarella→mozzarella, parmesian→parmesan, Ceasar→Caesar, pre-fix→prix fixe
- DO NOT change ingredient separators - keep commas and hyphens as they are
- Dual prices: use " | " (space-bar-space), not "/"
- Enforce diacritics: jalapeño, crème brûlée, purée, soufflé, flambéed
- Add asterisk (*) for raw/undercooked items (tartare, carpaccio, raw fish, caviar, raw egg)
- If an item is correct, return it UNCHANGED
- Return ONLY the corrected items, no other text

Example:
Input: "Tuna Tartar Tostada, avocado mousse D,G|||The Spark – "El Primer Encuentro""
Output: "Tuna Tartare Tostada, avocado mousse * D,G|||The Spark – "El Primer Encuentro""
`

// BatchClient corrects many menu lines per API call.
type BatchClient struct {
	api   openai.Client
	model string
}

// NewBatch builds a BatchClient. Same key and model handling as New.
func NewBatch(apiKey, model string) (*BatchClient, error) {
	if apiKey == "" {
		return nil, coreerrors.Wrap(coreerrors.ErrMissingConfig, "OPENAI_API_KEY is not set")
	}
	if model == "" {
		model = DefaultModel
	}
	return &BatchClient{
		api:   openai.NewClient(option.WithAPIKey(apiKey)),
		model: model,
	}, nil
}

// CorrectBatch corrects texts in one call, preserving order. Any failure,
// including a response that does not split back into len(texts) items,
// yields the originals unchanged.
func (b *BatchClient) CorrectBatch(ctx context.Context, texts []string) []string {
	if len(texts) == 0 {
		return nil
	}

	resp, err := b.api.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model: openai.ChatModel(b.model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(batchSystemPrompt),
			openai.UserMessage(strings.Join(texts, batchDelimiter)),
		},
		Temperature: openai.Float(0.1),
		MaxTokens:   openai.Int(2000),
	})
	if err != nil {
		logging.CorrectionError("batch", err, "items", len(texts))
		return texts
	}
	if len(resp.Choices) == 0 {
		logging.CorrectionError("batch", coreerrors.NewCorrection("batch", "empty response", nil))
		return texts
	}

	corrected, ok := splitBatchResponse(resp.Choices[0].Message.Content, len(texts))
	if !ok {
		logging.Warn("batch response count mismatch, keeping originals",
			"want", len(texts), "got", len(corrected))
		return texts
	}
	return corrected
}

// splitBatchResponse splits a delimited reply and reports whether the
// item count matches what was sent.
func splitBatchResponse(resp string, want int) ([]string, bool) {
	parts := strings.Split(strings.TrimSpace(resp), batchDelimiter)
	return parts, len(parts) == want
}
