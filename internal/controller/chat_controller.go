package controller

import (
	"bufio"
	"context"
	"errors"
	"strings"

	"rag-agent-be/internal/dto"
	"rag-agent-be/internal/pkg/logger"
	"rag-agent-be/internal/pkg/serverutils"
	"rag-agent-be/internal/service"
	"rag-agent-be/pkg/rag/state"
	"rag-agent-be/pkg/rag/stream"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/valyala/fasthttp"
)

type IChatController interface {
	RegisterRoutes(r fiber.Router)
	Stream(ctx *fiber.Ctx) error
	Stop(ctx *fiber.Ctx) error
}

type chatController struct {
	chatService service.IChatService
	logger      logger.ILogger
}

func NewChatController(chatService service.IChatService, log logger.ILogger) IChatController {
	return &chatController{
		chatService: chatService,
		logger:      log,
	}
}

func (c *chatController) RegisterRoutes(r fiber.Router) {
	h := r.Group("/chat/v1")
	h.Post(":session/stream", c.Stream)
	h.Post(":session/stop", c.Stop)
}

// Stream handles POST /chat/v1/:session/stream. Validation and guard
// acquisition happen before the response switches to SSE so the client
// still gets proper status codes for bad input and busy sessions.
func (c *chatController) Stream(ctx *fiber.Ctx) error {
	sessionId, err := uuid.Parse(ctx.Params("session"))
	if err != nil {
		return serverutils.NewAppError(fiber.StatusBadRequest, "Invalid session id")
	}

	var req dto.SendChatRequest
	if err := ctx.BodyParser(&req); err != nil {
		return serverutils.NewAppError(fiber.StatusBadRequest, "Invalid request body")
	}
	if err := serverutils.ValidateRequest(req); err != nil {
		return err
	}
	if strings.TrimSpace(req.Content) == "" {
		return serverutils.NewAppError(fiber.StatusBadRequest, "Message content is required")
	}

	if err := c.chatService.BeginTurn(ctx.Context(), sessionId); err != nil {
		if errors.Is(err, state.ErrAlreadyGenerating) {
			return serverutils.NewAppError(fiber.StatusConflict, "A response is already being generated for this session")
		}
		return err
	}

	c.logger.Info("ChatController", "Starting stream", map[string]interface{}{
		"session":        sessionId.String(),
		"content_length": len(req.Content),
		"attachments":    len(req.AttachmentIds),
	})

	input := stream.TurnInput{
		SessionId:     sessionId,
		Content:       req.Content,
		AttachmentIds: req.AttachmentIds,
	}

	ctx.Set(fiber.HeaderContentType, "text/event-stream")
	ctx.Set(fiber.HeaderCacheControl, "no-cache")
	ctx.Set(fiber.HeaderConnection, "keep-alive")
	ctx.Set("X-Accel-Buffering", "no")

	// The fiber context is recycled once this handler returns, so the
	// turn runs on a detached context. The guard TTL bounds runaway
	// generations if the client disappears.
	ctx.Context().SetBodyStreamWriter(fasthttp.StreamWriter(func(w *bufio.Writer) {
		c.chatService.StreamTurn(context.Background(), input, newSSEWriter(w))
	}))

	return nil
}

// Stop handles POST /chat/v1/:session/stop. The flag is set whether or
// not a generation is running; an idle session ignores it.
func (c *chatController) Stop(ctx *fiber.Ctx) error {
	sessionId, err := uuid.Parse(ctx.Params("session"))
	if err != nil {
		return serverutils.NewAppError(fiber.StatusBadRequest, "Invalid session id")
	}

	if err := c.chatService.Stop(ctx.Context(), sessionId); err != nil {
		return err
	}

	return ctx.JSON(serverutils.SuccessResponse("Stop signal sent", dto.StopChatResponse{Status: "ok"}))
}
