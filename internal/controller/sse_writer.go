package controller

import (
	"bufio"
	"encoding/json"
	"fmt"

	"rag-agent-be/internal/dto"
	"rag-agent-be/pkg/rag/hybrid"
)

// sseWriter renders stream events onto a buffered SSE connection. Events
// carry incrementing ids so clients can detect gaps after reconnects.
// Each write flushes immediately; a flush error means the client is gone
// and propagates up to abort the turn.
type sseWriter struct {
	w       *bufio.Writer
	counter int
}

func newSSEWriter(w *bufio.Writer) *sseWriter {
	return &sseWriter{w: w}
}

func (s *sseWriter) writeEvent(event string, payload interface{}) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to encode %s event: %w", event, err)
	}

	s.counter++
	if _, err := fmt.Fprintf(s.w, "id: %d\nevent: %s\ndata: %s\n\n", s.counter, event, data); err != nil {
		return err
	}
	return s.w.Flush()
}

func (s *sseWriter) Status(message string) error {
	return s.writeEvent("status", dto.StatusEventPayload{Message: message})
}

func (s *sseWriter) Chunk(content string) error {
	return s.writeEvent("chunk", dto.ChunkEventPayload{Content: content})
}

func (s *sseWriter) End(fullText string, docs []hybrid.Document) error {
	sources := make([]dto.SourceDocument, 0, len(docs))
	for _, doc := range docs {
		sources = append(sources, dto.SourceDocument{
			SourceId: doc.SourceID,
			Title:    doc.Title,
			Url:      doc.URL,
			Score:    doc.CombinedScore,
		})
	}
	return s.writeEvent("end", dto.EndEventPayload{FullText: fullText, SourceDocuments: sources})
}

func (s *sseWriter) Stopped() error {
	return s.writeEvent("stopped", dto.StoppedEventPayload{})
}

func (s *sseWriter) Error(message string) error {
	return s.writeEvent("error", dto.ErrorEventPayload{Message: message})
}
