package handlers

import (
	"net/http"

	"heartbridge-api/middleware"

	"github.com/gin-gonic/gin"
)

// AssignRequest binds the volunteer to an approved request, approved → assigned
func (h *Handler) AssignRequest(c *gin.Context) {
	req, err := h.engine.Assign(c.Request.Context(), middleware.GetIdentity(c), c.Param("id"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	transitioned(c, "Request accepted successfully", req)
}

// StartRequest transitions assigned → in-progress
func (h *Handler) StartRequest(c *gin.Context) {
	req, err := h.engine.Start(c.Request.Context(), middleware.GetIdentity(c), c.Param("id"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	transitioned(c, "Request started", req)
}

// CompleteRequest transitions assigned or in-progress → completed
func (h *Handler) CompleteRequest(c *gin.Context) {
	req, err := h.engine.Complete(c.Request.Context(), middleware.GetIdentity(c), c.Param("id"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	transitioned(c, "Request completed successfully", req)
}

// Rankings returns the volunteer leaderboard
func (h *Handler) Rankings(c *gin.Context) {
	rankings, err := h.engine.Rankings(c.Request.Context(), middleware.GetIdentity(c))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"count": len(rankings), "rankings": rankings})
}
