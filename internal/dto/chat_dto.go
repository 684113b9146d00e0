package dto

// SendChatRequest is the body of POST /chat/v1/:session/stream.
type SendChatRequest struct {
	Content       string `json:"content" validate:"required"`
	AttachmentIds []int  `json:"attachment_ids"`
}

// SourceDocument is one cited document in the terminal stream event.
type SourceDocument struct {
	SourceId string  `json:"source_id"`
	Title    string  `json:"title"`
	Url      string  `json:"url"`
	Score    float64 `json:"score"`
}

// Stream event payloads. Each SSE event carries exactly one of these,
// identified by the event name on the wire.

type StatusEventPayload struct {
	Message string `json:"message"`
}

type ChunkEventPayload struct {
	Content string `json:"content"`
}

type EndEventPayload struct {
	FullText        string           `json:"full_text"`
	SourceDocuments []SourceDocument `json:"source_documents"`
}

type StoppedEventPayload struct{}

type ErrorEventPayload struct {
	Message string `json:"message"`
}

// StopChatResponse acknowledges a stop request.
type StopChatResponse struct {
	Status string `json:"status"`
}
