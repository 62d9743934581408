package handler

import (
	"errors"
	"net/http"

	"github.com/MincaAI/MVP-underwriting-sub000/internal/matching"
	"github.com/MincaAI/MVP-underwriting-sub000/internal/model"
	"github.com/MincaAI/MVP-underwriting-sub000/internal/repository"
	"github.com/MincaAI/MVP-underwriting-sub000/pkg/log"
	"github.com/gin-gonic/gin"
)

// MatchHandler serves the single-query codification API.
type MatchHandler struct {
	matcher *matching.Matcher
}

// NewMatchHandler creates a new MatchHandler instance.
func NewMatchHandler(matcher *matching.Matcher) *MatchHandler {
	return &MatchHandler{matcher: matcher}
}

// Match codifies one vehicle description against the active catalog version.
func (h *MatchHandler) Match(c *gin.Context) {
	var query model.VehicleQuery
	if err := c.ShouldBindJSON(&query); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body: " + err.Error()})
		return
	}

	result, err := h.matcher.Match(c.Request.Context(), query)
	if err != nil {
		log.Error("Match: failed", err)
		switch {
		case errors.Is(err, repository.ErrNoActiveVersion):
			c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
		case errors.Is(err, matching.ErrVersionNotActive):
			c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		}
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"code":    http.StatusOK,
		"message": "vehicle codified",
		"data":    result,
	})
}
