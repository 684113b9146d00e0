package controller

import (
	"rag-agent-be/internal/pkg/serverutils"
	"rag-agent-be/pkg/rag/state"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"
)

type IHealthController interface {
	RegisterRoutes(r fiber.Router)
	Check(ctx *fiber.Ctx) error
}

type healthController struct {
	db    *gorm.DB
	flags *state.FlagStore
}

func NewHealthController(db *gorm.DB, flags *state.FlagStore) IHealthController {
	return &healthController{db: db, flags: flags}
}

func (c *healthController) RegisterRoutes(r fiber.Router) {
	r.Get("/health", c.Check)
}

func (c *healthController) Check(ctx *fiber.Ctx) error {
	status := fiber.Map{
		"database": "ok",
		"redis":    "ok",
	}
	healthy := true

	sqlDB, err := c.db.DB()
	if err != nil {
		status["database"] = err.Error()
		healthy = false
	} else if err := sqlDB.PingContext(ctx.Context()); err != nil {
		status["database"] = err.Error()
		healthy = false
	}

	if err := c.flags.Ping(ctx.Context()); err != nil {
		status["redis"] = err.Error()
		healthy = false
	}

	if !healthy {
		return ctx.Status(fiber.StatusServiceUnavailable).JSON(serverutils.ErrorResponse("Service degraded"))
	}
	return ctx.JSON(serverutils.SuccessResponse("Healthy", status))
}
