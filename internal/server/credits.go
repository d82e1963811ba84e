package server

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	authdomain "github.com/mi42hq/mi42/internal/auth/domain"
	"github.com/mi42hq/mi42/pkg/db/pagination"
)

func (s *Server) handleCreditBalance(c *gin.Context) {
	user := CurrentUser(c)
	if user == nil {
		AbortWithError(c, authdomain.ErrInvalidSession)
		return
	}

	balance, err := s.credits.Balance(c.Request.Context(), user.ID)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"balance": balance})
}

type transactionResponse struct {
	ID          string    `json:"id"`
	Type        string    `json:"type"`
	Amount      int64     `json:"amount"`
	Description string    `json:"description"`
	Reference   string    `json:"reference,omitempty"`
	CreatedAt   time.Time `json:"createdAt"`
}

func (s *Server) handleCreditTransactions(c *gin.Context) {
	user := CurrentUser(c)
	if user == nil {
		AbortWithError(c, authdomain.ErrInvalidSession)
		return
	}

	history, err := s.credits.History(c.Request.Context(), user.ID, pageFromQuery(c))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	out := make([]transactionResponse, 0, len(history))
	for _, tx := range history {
		out = append(out, transactionResponse{
			ID:          tx.ID.String(),
			Type:        string(tx.Type),
			Amount:      tx.Amount,
			Description: tx.Description,
			Reference:   tx.Reference,
			CreatedAt:   tx.CreatedAt,
		})
	}
	c.JSON(http.StatusOK, gin.H{"transactions": out})
}

func (s *Server) handleListPackages(c *gin.Context) {
	packages, err := s.packages.ListActive(c.Request.Context())
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"packages": packages})
}

type purchaseRequest struct {
	PackageID int64 `json:"packageId"`
}

func (s *Server) handlePurchasePackage(c *gin.Context) {
	user := CurrentUser(c)
	if user == nil {
		AbortWithError(c, authdomain.ErrInvalidSession)
		return
	}

	var in purchaseRequest
	if err := c.ShouldBindJSON(&in); err != nil || in.PackageID <= 0 {
		AbortWithError(c, invalidRequestError())
		return
	}

	purchase, err := s.packages.Purchase(c.Request.Context(), user.ID, in.PackageID)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	balance, err := s.credits.Balance(c.Request.Context(), user.ID)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"purchase": gin.H{
			"id":         purchase.ID.String(),
			"packageId":  purchase.PackageID,
			"credits":    purchase.Credits,
			"priceCents": purchase.PriceCents,
			"currency":   purchase.Currency,
			"createdAt":  purchase.CreatedAt,
		},
		"balance": balance,
	})
}

func pageFromQuery(c *gin.Context) pagination.Pagination {
	page := pagination.Pagination{}
	if raw := c.Query("limit"); raw != "" {
		if v, err := strconv.Atoi(raw); err == nil {
			page.Limit = v
		}
	}
	if raw := c.Query("offset"); raw != "" {
		if v, err := strconv.Atoi(raw); err == nil {
			page.Offset = v
		}
	}
	return page
}
