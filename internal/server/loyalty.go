package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	loyaltydomain "github.com/smallbiznis/tally/internal/loyalty/domain"
)

func (s *Server) EnrollLoyaltyAccount(c *gin.Context) {
	var req loyaltydomain.EnrollRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.loyaltySvc.EnrollAccount(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"data": resp})
}

func (s *Server) GetLoyaltyAccount(c *gin.Context) {
	customerID := strings.TrimSpace(c.Param("customer_id"))
	resp, err := s.loyaltySvc.GetAccount(c.Request.Context(), customerID)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) PreviewRedemption(c *gin.Context) {
	var req loyaltydomain.PreviewRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}
	req.CustomerID = strings.TrimSpace(c.Param("customer_id"))

	resp, err := s.loyaltySvc.PreviewRedemption(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) CreateLoyaltyRule(c *gin.Context) {
	var req loyaltydomain.CreateRuleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.loyaltySvc.CreateRule(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"data": resp})
}

func (s *Server) ListLoyaltyRules(c *gin.Context) {
	resp, err := s.loyaltySvc.ListRules(c.Request.Context())
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) ActivateLoyaltyRule(c *gin.Context) {
	id := strings.TrimSpace(c.Param("id"))
	resp, err := s.loyaltySvc.ActivateRule(c.Request.Context(), id)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}
