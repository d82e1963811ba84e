package server

import (
	"net/http"
	"strconv"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	agentdomain "github.com/mi42hq/mi42/internal/agent/domain"
	authdomain "github.com/mi42hq/mi42/internal/auth/domain"
)

func (s *Server) handleListAgents(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"agents": s.agents.ListAgents(c.Request.Context())})
}

type executeRequest struct {
	AgentType string `json:"agentType"`
	Prompt    string `json:"prompt"`
}

type taskResponse struct {
	ID             string     `json:"id"`
	AgentType      string     `json:"agentType"`
	Status         string     `json:"status"`
	Prompt         string     `json:"prompt"`
	Error          string     `json:"error,omitempty"`
	CreditsCharged int64      `json:"creditsCharged"`
	BriefingID     *string    `json:"briefingId,omitempty"`
	CreatedAt      time.Time  `json:"createdAt"`
	CompletedAt    *time.Time `json:"completedAt,omitempty"`
}

func toTaskResponse(task *agentdomain.Task) taskResponse {
	resp := taskResponse{
		ID:             task.ID.String(),
		AgentType:      task.AgentType,
		Status:         string(task.Status),
		Prompt:         task.Prompt,
		Error:          task.Error,
		CreditsCharged: task.CreditsCharged,
		CreatedAt:      task.CreatedAt,
		CompletedAt:    task.CompletedAt,
	}
	if task.BriefingID != nil {
		id := task.BriefingID.String()
		resp.BriefingID = &id
	}
	return resp
}

func (s *Server) handleExecuteAgent(c *gin.Context) {
	user := CurrentUser(c)
	if user == nil {
		AbortWithError(c, authdomain.ErrInvalidSession)
		return
	}

	var in executeRequest
	if err := c.ShouldBindJSON(&in); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	task, err := s.agents.Execute(c.Request.Context(), user.ID, in.AgentType, in.Prompt)
	if err != nil {
		// A failed task still carries useful state (status, refund), but the
		// error response tells the client what went wrong.
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"task": toTaskResponse(task)})
}

func (s *Server) handleListTasks(c *gin.Context) {
	user := CurrentUser(c)
	if user == nil {
		AbortWithError(c, authdomain.ErrInvalidSession)
		return
	}

	tasks, err := s.agents.ListTasks(c.Request.Context(), user.ID, pageFromQuery(c))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	out := make([]taskResponse, 0, len(tasks))
	for i := range tasks {
		out = append(out, toTaskResponse(&tasks[i]))
	}
	c.JSON(http.StatusOK, gin.H{"tasks": out})
}

func (s *Server) handleGetTask(c *gin.Context) {
	user := CurrentUser(c)
	if user == nil {
		AbortWithError(c, authdomain.ErrInvalidSession)
		return
	}

	taskID, err := parseID(c.Param("id"))
	if err != nil {
		AbortWithError(c, agentdomain.ErrTaskNotFound)
		return
	}

	task, err := s.agents.GetTask(c.Request.Context(), user.ID, taskID)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"task": toTaskResponse(task)})
}

func parseID(raw string) (snowflake.ID, error) {
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, err
	}
	return snowflake.ID(id), nil
}
