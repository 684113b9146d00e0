package expand

import (
	"context"
	"encoding/json"
	"strings"

	"rag-agent-be/internal/pkg/logger"
	"rag-agent-be/pkg/llm"
	"rag-agent-be/pkg/rag/prompt"
)

type Origin string

const (
	OriginVerbatim   Origin = "verbatim"
	OriginParaphrase Origin = "paraphrase"
	OriginEntity     Origin = "entity"
)

// Variant is one search query derived from the user's turn. Variants only
// live for the duration of that turn.
type Variant struct {
	Text   string
	Origin Origin
}

const maxVariants = 5

// Expander widens recall by turning one user message into several queries.
// The verbatim message is always the first variant; everything else is
// best-effort and an expansion failure degrades to verbatim only.
type Expander struct {
	provider llm.LLMProvider
	model    string
	logger   logger.ILogger
}

func NewExpander(provider llm.LLMProvider, model string, log logger.ILogger) *Expander {
	return &Expander{
		provider: provider,
		model:    model,
		logger:   log,
	}
}

type queriesResponse struct {
	MaximumFiveQueries []string `json:"maximum_five_queries"`
}

// Expand produces 1-5 variants for userMessage. brands seeds entity
// variants; attachedContent resolves deictic references in the message.
func (e *Expander) Expand(ctx context.Context, contextMessages []llm.Message, userMessage, attachedContent, brands string) []Variant {
	variants := []Variant{{Text: userMessage, Origin: OriginVerbatim}}

	systemPrompt := prompt.GenerateQueriesPrompt(brands)
	if attachedContent != "" {
		systemPrompt += prompt.AttachedContentNotice(attachedContent)
	}

	history := append([]llm.Message{{Role: "system", Content: systemPrompt}}, contextMessages...)
	history = append(history, llm.Message{Role: "user", Content: userMessage})

	opts := []llm.Option{llm.WithTemperature(1), llm.WithJSONMode()}
	if e.model != "" {
		opts = append(opts, llm.WithModel(e.model))
	}

	response, err := e.provider.Chat(ctx, history, opts...)
	if err != nil {
		e.logger.Warn("QueryExpander", "Expansion call failed, using verbatim query only", map[string]interface{}{
			"error": err.Error(),
		})
		return variants
	}

	var parsed queriesResponse
	if jsonContent := prompt.ExtractJSON(response); jsonContent != "" {
		if err := json.Unmarshal([]byte(jsonContent), &parsed); err != nil {
			e.logger.Warn("QueryExpander", "Unparsable expansion response, using verbatim query only", map[string]interface{}{
				"error": err.Error(),
			})
			return variants
		}
	}

	seen := map[string]bool{normalizeQuery(userMessage): true}
	for _, query := range parsed.MaximumFiveQueries {
		query = strings.TrimSpace(query)
		if query == "" || seen[normalizeQuery(query)] {
			continue
		}
		seen[normalizeQuery(query)] = true

		variants = append(variants, Variant{
			Text:   query,
			Origin: classifyOrigin(query, brands),
		})
		if len(variants) == maxVariants {
			break
		}
	}

	return variants
}

// classifyOrigin marks a generated query as entity-specific when it names a
// known brand, paraphrase otherwise.
func classifyOrigin(query, brands string) Origin {
	if brands == "" {
		return OriginParaphrase
	}
	lowered := strings.ToLower(query)
	for _, line := range strings.Split(brands, "\n") {
		name := strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(line), "-"))
		if i := strings.Index(name, ":"); i >= 0 {
			name = strings.TrimSpace(name[:i])
		}
		if name == "" {
			continue
		}
		if strings.Contains(lowered, strings.ToLower(name)) {
			return OriginEntity
		}
	}
	return OriginParaphrase
}

func normalizeQuery(query string) string {
	return strings.ToLower(strings.TrimSpace(query))
}
