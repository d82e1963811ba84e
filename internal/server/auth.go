package server

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	authdomain "github.com/mi42hq/mi42/internal/auth/domain"
	freemiumdomain "github.com/mi42hq/mi42/internal/freemium/domain"
	registrationdomain "github.com/mi42hq/mi42/internal/registration/domain"
	systemlogdomain "github.com/mi42hq/mi42/internal/systemlog/domain"
	userdomain "github.com/mi42hq/mi42/internal/user/domain"
)

type userResponse struct {
	ID            string     `json:"id"`
	Email         string     `json:"email"`
	Name          string     `json:"name"`
	CompanyName   string     `json:"companyName"`
	Role          string     `json:"role"`
	IsFreemium    bool       `json:"isFreemium"`
	EmailVerified bool       `json:"emailVerified"`
	CreatedAt     time.Time  `json:"createdAt"`
	LastSignedIn  *time.Time `json:"lastSignedIn,omitempty"`
}

func toUserResponse(u *userdomain.User) userResponse {
	return userResponse{
		ID:            u.ID.String(),
		Email:         u.Email,
		Name:          u.Name,
		CompanyName:   u.CompanyName,
		Role:          string(u.Role),
		IsFreemium:    u.IsFreemium,
		EmailVerified: u.EmailVerified,
		CreatedAt:     u.CreatedAt,
		LastSignedIn:  u.LastSignedIn,
	}
}

func (s *Server) handleRegister(c *gin.Context) {
	var in registrationdomain.Input
	if err := c.ShouldBindJSON(&in); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	user, err := s.registration.Register(c.Request.Context(), in)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"user": toUserResponse(user)})
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (s *Server) handleLogin(c *gin.Context) {
	var in loginRequest
	if err := c.ShouldBindJSON(&in); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	token, user, err := s.sessions.Login(c.Request.Context(), in.Email, in.Password)
	if err != nil {
		s.audit.Write(c.Request.Context(), systemlogdomain.LevelWarn, systemlogdomain.TypeAuth,
			"login failed", nil, map[string]any{"email": strings.ToLower(strings.TrimSpace(in.Email))})
		AbortWithError(c, err)
		return
	}

	s.audit.Write(c.Request.Context(), systemlogdomain.LevelInfo, systemlogdomain.TypeAuth,
		"login", &user.ID, nil)
	c.JSON(http.StatusOK, gin.H{
		"token": token,
		"user":  toUserResponse(user),
	})
}

func (s *Server) handleLogout(c *gin.Context) {
	if err := s.sessions.Logout(c.Request.Context(), bearerToken(c)); err != nil {
		AbortWithError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) handleMe(c *gin.Context) {
	user := CurrentUser(c)
	if user == nil {
		AbortWithError(c, authdomain.ErrInvalidSession)
		return
	}
	c.JSON(http.StatusOK, gin.H{"user": toUserResponse(user)})
}

func (s *Server) handleVerifyEmail(c *gin.Context) {
	token := c.Query("token")
	if token == "" {
		AbortWithError(c, newValidationError("token", "invalid_token", "token is required"))
		return
	}

	userID, err := s.verification.Verify(c.Request.Context(), token)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	s.audit.Write(c.Request.Context(), systemlogdomain.LevelInfo, systemlogdomain.TypeAuth,
		"email verified", &userID, nil)
	c.JSON(http.StatusOK, gin.H{"verified": true})
}

type resendVerificationRequest struct {
	Email string `json:"email"`
}

func (s *Server) handleResendVerification(c *gin.Context) {
	var in resendVerificationRequest
	if err := c.ShouldBindJSON(&in); err != nil || strings.TrimSpace(in.Email) == "" {
		AbortWithError(c, invalidRequestError())
		return
	}

	if err := s.verification.Resend(c.Request.Context(), in.Email); err != nil {
		AbortWithError(c, err)
		return
	}
	// Always accepted: the response never reveals whether the address exists.
	c.JSON(http.StatusAccepted, gin.H{"sent": true})
}

func (s *Server) handleCheckDomain(c *gin.Context) {
	email := c.Query("email")
	if email == "" {
		AbortWithError(c, newValidationError("email", "invalid_email", "email is required"))
		return
	}

	if domainName := freemiumdomain.ExtractDomain(email); domainName != "" {
		if err := s.freemium.ResetIfExpired(c.Request.Context(), domainName); err != nil {
			AbortWithError(c, err)
			return
		}
	}
	avail, err := s.freemium.CheckAvailability(c.Request.Context(), email)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	resp := gin.H{
		"available":  avail.Available,
		"domain":     avail.Domain,
		"usedSlots":  avail.UsedSlots,
		"limit":      avail.Limit,
		"resetDate":  avail.ResetDate,
		"isFreemail": avail.IsFreemail,
	}
	if !avail.Available {
		users, err := s.freemium.FreemiumUsers(c.Request.Context(), avail.Domain)
		if err != nil {
			AbortWithError(c, err)
			return
		}
		resp["users"] = users
	}
	c.JSON(http.StatusOK, resp)
}
