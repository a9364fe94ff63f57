package handlers

import (
	"net/http"

	"heartbridge-api/models"
	"heartbridge-api/statemachine"

	"github.com/gin-gonic/gin"
)

func (h *Handler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "healthy",
		"service": "HeartBridge API",
		"version": "1.0.0",
	})
}

// GetStateMachineInfo returns the full state machine for informational purposes
func (h *Handler) GetStateMachineInfo(c *gin.Context) {
	var terminal []models.RequestStatus
	for _, s := range models.AllStatuses {
		if s.Terminal() {
			terminal = append(terminal, s)
		}
	}
	c.JSON(http.StatusOK, gin.H{
		"state_machine":   statemachine.GetAllTransitions(),
		"statuses":        models.AllStatuses,
		"terminal_states": terminal,
		"description":     "HeartBridge Assistance Request Lifecycle State Machine",
	})
}

// UserStats returns the number of active accounts per role (public)
func (h *Handler) UserStats(c *gin.Context) {
	counts, err := h.engine.UserStats(c.Request.Context())
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"users": counts})
}
