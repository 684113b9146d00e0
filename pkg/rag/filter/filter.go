package filter

import (
	"context"
	"encoding/json"

	"rag-agent-be/internal/pkg/logger"
	"rag-agent-be/pkg/llm"
	"rag-agent-be/pkg/rag/hybrid"
	"rag-agent-be/pkg/rag/prompt"
)

// attachedContentLimit bounds how much attached text is pasted into the
// relevance prompt.
const attachedContentLimit = 1000

// Filter asks an LLM which candidates actually help answer the question.
// It degrades, never blocks: a failed call or an empty/invalid selection
// falls back to the full unfiltered candidate set.
type Filter struct {
	provider llm.LLMProvider
	model    string
	logger   logger.ILogger
}

func NewFilter(provider llm.LLMProvider, model string, log logger.ILogger) *Filter {
	return &Filter{
		provider: provider,
		model:    model,
		logger:   log,
	}
}

type relevanceResponse struct {
	// float64 tolerates models answering [1.0, 3.0]
	HelpfulDocs []float64 `json:"helpful_docs"`
}

func (f *Filter) Filter(ctx context.Context, contextMessages []llm.Message, docs []hybrid.Document, attachedContent string) []hybrid.Document {
	if len(docs) == 0 {
		return docs
	}

	systemPrompt := prompt.RelevancePrompt(len(docs))
	if attachedContent != "" {
		systemPrompt += prompt.AttachedContentNotice(truncateRunes(attachedContent, attachedContentLimit))
	}
	systemPrompt += "\n\n" + prompt.FormatDocuments(docs)

	history := append([]llm.Message{{Role: "system", Content: systemPrompt}}, contextMessages...)

	opts := []llm.Option{llm.WithTemperature(0), llm.WithJSONMode()}
	if f.model != "" {
		opts = append(opts, llm.WithModel(f.model))
	}

	response, err := f.provider.Chat(ctx, history, opts...)
	if err != nil {
		f.logger.Warn("RelevanceFilter", "Filter call failed, keeping full candidate set", map[string]interface{}{
			"error": err.Error(),
		})
		return docs
	}

	var parsed relevanceResponse
	jsonContent := prompt.ExtractJSON(response)
	if jsonContent == "" {
		f.logger.Warn("RelevanceFilter", "No JSON in filter response, keeping full candidate set", nil)
		return docs
	}
	if err := json.Unmarshal([]byte(jsonContent), &parsed); err != nil {
		f.logger.Warn("RelevanceFilter", "Unparsable filter response, keeping full candidate set", map[string]interface{}{
			"error": err.Error(),
		})
		return docs
	}

	// Indices are 1-based; anything outside [1, len(docs)] is a formatting
	// error in the model output and is dropped, not fatal.
	selected := make([]hybrid.Document, 0, len(parsed.HelpfulDocs))
	seen := make(map[int]bool)
	for _, raw := range parsed.HelpfulDocs {
		idx := int(raw)
		if idx < 1 || idx > len(docs) || seen[idx] {
			continue
		}
		seen[idx] = true
		selected = append(selected, docs[idx-1])
	}

	if len(selected) == 0 {
		f.logger.Info("RelevanceFilter", "Filter selected nothing, keeping full candidate set", map[string]interface{}{
			"candidates": len(docs),
		})
		return docs
	}

	return selected
}

func truncateRunes(s string, limit int) string {
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return string(runes[:limit]) + "..."
}
