// Package verifygin mounts the verification operations on a gin router for
// hosts already built on gin.
package verifygin

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/CuriousLearner/phone-verify/core"
)

// Service wraps core.Service with gin route mounting.
type Service struct {
	svc *core.Service
}

func NewService(svc *core.Service) *Service {
	return &Service{svc: svc}
}

// RegisterRoutes mounts the verification endpoints on the provided router or
// group. Pass a prefixed group (e.g. r.Group("/api/v1")) to mount under a
// prefix.
func (s *Service) RegisterRoutes(r gin.IRouter) *Service {
	r.POST("/phone/register", s.handleRegisterPOST)
	r.POST("/phone/verify", s.handleVerifyPOST)
	return s
}

func (s *Service) handleRegisterPOST(c *gin.Context) {
	var req struct {
		PhoneNumber string `json:"phone_number" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}
	phone := strings.TrimSpace(req.PhoneNumber)
	if !reE164.MatchString(phone) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_phone_number"})
		return
	}

	sessionToken, err := s.svc.Register(c.Request.Context(), phone)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "registration_failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"session_token": sessionToken})
}

func (s *Service) handleVerifyPOST(c *gin.Context) {
	var req struct {
		PhoneNumber  string `json:"phone_number" binding:"required"`
		SecurityCode string `json:"security_code" binding:"required"`
		SessionToken string `json:"session_token" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}

	outcome, err := s.svc.Verify(c.Request.Context(), strings.TrimSpace(req.PhoneNumber), strings.TrimSpace(req.SecurityCode), strings.TrimSpace(req.SessionToken))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "verification_failed"})
		return
	}
	if !outcome.OK() {
		c.JSON(http.StatusBadRequest, gin.H{"error": outcome.Message()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": outcome.Message()})
}
