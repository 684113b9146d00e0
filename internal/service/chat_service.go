package service

import (
	"context"

	"rag-agent-be/internal/pkg/logger"
	"rag-agent-be/pkg/rag/state"
	"rag-agent-be/pkg/rag/stream"

	"github.com/google/uuid"
)

// IChatService defines the chat streaming service interface
type IChatService interface {
	// BeginTurn claims the session's generation guard. Returns
	// state.ErrAlreadyGenerating when another turn is in flight.
	BeginTurn(ctx context.Context, sessionId uuid.UUID) error

	// StreamTurn runs one full turn against the emitter. The guard
	// claimed by BeginTurn is released on every exit path.
	StreamTurn(ctx context.Context, input stream.TurnInput, emitter stream.Emitter)

	// Stop requests cooperative cancellation for the session.
	Stop(ctx context.Context, sessionId uuid.UUID) error
}

type chatService struct {
	orchestrator *stream.Orchestrator
	flags        *state.FlagStore
	logger       logger.ILogger
}

func NewChatService(orchestrator *stream.Orchestrator, flags *state.FlagStore, log logger.ILogger) IChatService {
	return &chatService{
		orchestrator: orchestrator,
		flags:        flags,
		logger:       log,
	}
}

func (s *chatService) BeginTurn(ctx context.Context, sessionId uuid.UUID) error {
	return s.flags.AcquireGuard(ctx, sessionId.String())
}

func (s *chatService) StreamTurn(ctx context.Context, input stream.TurnInput, emitter stream.Emitter) {
	s.orchestrator.Run(ctx, input, emitter)
}

// Stop sets the flag unconditionally. Setting it for an idle session is
// harmless; the next turn clears stale flags before it starts.
func (s *chatService) Stop(ctx context.Context, sessionId uuid.UUID) error {
	session := sessionId.String()
	if err := s.flags.SetStop(ctx, session); err != nil {
		return err
	}
	s.logger.Info("ChatService", "Stop signal sent", map[string]interface{}{
		"session": session,
	})
	return nil
}
