package router

import (
	"context"
	"encoding/json"

	"rag-agent-be/internal/pkg/logger"
	"rag-agent-be/pkg/llm"
	"rag-agent-be/pkg/rag/prompt"
)

type Route string

const (
	RouteRetrievalRequired Route = "retrieval_required"
	RouteJustRespond       Route = "just_respond"
)

// Router classifies one turn as needing retrieval or not. Every failure
// mode (call error, unparsable output, unknown label) falls back to
// retrieval_required: skipping retrieval silently is the expensive mistake.
type Router struct {
	provider llm.LLMProvider
	model    string
	logger   logger.ILogger
}

func NewRouter(provider llm.LLMProvider, model string, log logger.ILogger) *Router {
	return &Router{
		provider: provider,
		model:    model,
		logger:   log,
	}
}

type routerResponse struct {
	Type string `json:"type"`
}

// Classify routes the latest user message given recent context.
func (r *Router) Classify(ctx context.Context, contextMessages []llm.Message) Route {
	history := append([]llm.Message{{Role: "system", Content: prompt.RouterSystemPrompt}}, contextMessages...)

	opts := []llm.Option{llm.WithTemperature(0), llm.WithJSONMode()}
	if r.model != "" {
		opts = append(opts, llm.WithModel(r.model))
	}

	response, err := r.provider.Chat(ctx, history, opts...)
	if err != nil {
		r.logger.Warn("QueryRouter", "Classification call failed, defaulting to retrieval", map[string]interface{}{
			"error": err.Error(),
		})
		return RouteRetrievalRequired
	}

	jsonContent := prompt.ExtractJSON(response)
	if jsonContent == "" {
		r.logger.Warn("QueryRouter", "No JSON in classification response, defaulting to retrieval", nil)
		return RouteRetrievalRequired
	}

	var parsed routerResponse
	if err := json.Unmarshal([]byte(jsonContent), &parsed); err != nil {
		r.logger.Warn("QueryRouter", "Unparsable classification response, defaulting to retrieval", map[string]interface{}{
			"error": err.Error(),
		})
		return RouteRetrievalRequired
	}

	if Route(parsed.Type) == RouteJustRespond {
		return RouteJustRespond
	}
	return RouteRetrievalRequired
}
