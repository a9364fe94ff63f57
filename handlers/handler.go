package handlers

import (
	"errors"
	"io"
	"log/slog"

	"heartbridge-api/auth"
	"heartbridge-api/middleware"
	"heartbridge-api/validation"
	"heartbridge-api/workflow"

	"github.com/gin-gonic/gin"
)

// Handler serves the HTTP API on top of the workflow engine and the account service.
type Handler struct {
	engine   *workflow.Engine
	accounts *auth.Service
	log      *slog.Logger
}

func New(engine *workflow.Engine, accounts *auth.Service, log *slog.Logger) *Handler {
	if log == nil {
		log = slog.Default()
	}
	return &Handler{engine: engine, accounts: accounts, log: log}
}

func (h *Handler) respondError(c *gin.Context, err error) {
	middleware.AbortWithError(c, err)
}

// bindJSON decodes the request body into dst. Field rules are enforced by the
// service layer, so only malformed JSON fails here.
func (h *Handler) bindJSON(c *gin.Context, dst any) bool {
	if err := c.ShouldBindJSON(dst); err != nil {
		h.respondError(c, validation.Translate(err))
		return false
	}
	return true
}

// bindOptionalJSON is bindJSON for endpoints whose body may be empty.
func (h *Handler) bindOptionalJSON(c *gin.Context, dst any) bool {
	if err := c.ShouldBindJSON(dst); err != nil && !errors.Is(err, io.EOF) {
		h.respondError(c, validation.Translate(err))
		return false
	}
	return true
}
