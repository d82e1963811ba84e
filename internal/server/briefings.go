package server

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	authdomain "github.com/mi42hq/mi42/internal/auth/domain"
	briefingdomain "github.com/mi42hq/mi42/internal/briefing/domain"
)

type briefingResponse struct {
	ID          string    `json:"id"`
	AgentType   string    `json:"agentType"`
	Title       string    `json:"title"`
	Content     string    `json:"content"`
	CreditsUsed int64     `json:"creditsUsed"`
	CreatedAt   time.Time `json:"createdAt"`
}

func toBriefingResponse(b *briefingdomain.Briefing) briefingResponse {
	return briefingResponse{
		ID:          b.ID.String(),
		AgentType:   b.AgentType,
		Title:       b.Title,
		Content:     b.Content,
		CreditsUsed: b.CreditsUsed,
		CreatedAt:   b.CreatedAt,
	}
}

type automatedBriefingResponse struct {
	ID           string    `json:"id"`
	Type         string    `json:"type"`
	Status       string    `json:"status"`
	Title        string    `json:"title"`
	Content      string    `json:"content,omitempty"`
	Error        string    `json:"error,omitempty"`
	GeneratedAt  time.Time `json:"generatedAt"`
	ScheduledFor time.Time `json:"scheduledFor"`
}

func toAutomatedResponse(b *briefingdomain.AutomatedBriefing) automatedBriefingResponse {
	return automatedBriefingResponse{
		ID:           b.ID.String(),
		Type:         string(b.BriefingType),
		Status:       string(b.Status),
		Title:        b.Title,
		Content:      b.Content,
		Error:        b.Error,
		GeneratedAt:  b.GeneratedAt,
		ScheduledFor: b.ScheduledFor,
	}
}

func (s *Server) handleListBriefings(c *gin.Context) {
	user := CurrentUser(c)
	if user == nil {
		AbortWithError(c, authdomain.ErrInvalidSession)
		return
	}

	briefings, err := s.briefings.ListForUser(c.Request.Context(), user.ID, pageFromQuery(c))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	out := make([]briefingResponse, 0, len(briefings))
	for i := range briefings {
		out = append(out, toBriefingResponse(&briefings[i]))
	}
	c.JSON(http.StatusOK, gin.H{"briefings": out})
}

func (s *Server) handleGetBriefing(c *gin.Context) {
	user := CurrentUser(c)
	if user == nil {
		AbortWithError(c, authdomain.ErrInvalidSession)
		return
	}

	briefingID, err := parseID(c.Param("id"))
	if err != nil {
		AbortWithError(c, briefingdomain.ErrNotFound)
		return
	}

	briefing, err := s.briefings.GetForUser(c.Request.Context(), user.ID, briefingID)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"briefing": toBriefingResponse(briefing)})
}

func (s *Server) handleListAutomated(c *gin.Context) {
	briefingType := briefingdomain.BriefingType(c.Query("type"))
	switch briefingType {
	case "", briefingdomain.TypeDaily, briefingdomain.TypeWeekly:
	default:
		AbortWithError(c, briefingdomain.ErrUnknownType)
		return
	}

	rows, err := s.briefings.ListAutomated(c.Request.Context(), briefingType, pageFromQuery(c))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	out := make([]automatedBriefingResponse, 0, len(rows))
	for i := range rows {
		out = append(out, toAutomatedResponse(&rows[i]))
	}
	c.JSON(http.StatusOK, gin.H{"briefings": out})
}

func (s *Server) handleLatestAutomated(c *gin.Context) {
	briefingType := briefingdomain.BriefingType(c.DefaultQuery("type", string(briefingdomain.TypeDaily)))
	switch briefingType {
	case briefingdomain.TypeDaily, briefingdomain.TypeWeekly:
	default:
		AbortWithError(c, briefingdomain.ErrUnknownType)
		return
	}

	row, err := s.briefings.LatestAutomated(c.Request.Context(), briefingType)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"briefing": toAutomatedResponse(row)})
}
