package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
	briefingdomain "github.com/mi42hq/mi42/internal/briefing/domain"
	systemlogdomain "github.com/mi42hq/mi42/internal/systemlog/domain"
)

func (s *Server) handleListSystemLogs(c *gin.Context) {
	query := systemlogdomain.Query{
		Level: systemlogdomain.Level(c.Query("level")),
		Type:  systemlogdomain.EntryType(c.Query("type")),
		Page:  pageFromQuery(c),
	}
	if raw := c.Query("userId"); raw != "" {
		id, err := parseID(raw)
		if err != nil {
			AbortWithError(c, newValidationError("userId", "invalid_request", "invalid user id"))
			return
		}
		query.UserID = id
	}

	entries, err := s.audit.List(c.Request.Context(), query)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"logs": entries})
}

type triggerBriefingRequest struct {
	Type string `json:"type"`
}

func (s *Server) handleTriggerBriefing(c *gin.Context) {
	var in triggerBriefingRequest
	if err := c.ShouldBindJSON(&in); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	briefingType := briefingdomain.BriefingType(in.Type)
	switch briefingType {
	case briefingdomain.TypeDaily, briefingdomain.TypeWeekly:
	default:
		AbortWithError(c, briefingdomain.ErrUnknownType)
		return
	}

	row, err := s.briefings.GenerateScheduled(c.Request.Context(), briefingType)
	if err != nil {
		// A failed generation already left a failed row behind; surface the
		// row so the caller sees both.
		if row != nil {
			c.JSON(http.StatusBadGateway, gin.H{"briefing": toAutomatedResponse(row)})
			return
		}
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"briefing": toAutomatedResponse(row)})
}
