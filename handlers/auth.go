package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"threadline/services"
)

type registerRequest struct {
	Email           string `json:"email" binding:"required"`
	Username        string `json:"username"`
	Password        string `json:"password" binding:"required"`
	ConfirmPassword string `json:"confirm_password" binding:"required"`
}

type loginRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

type passwordResetRequest struct {
	Email string `json:"email" binding:"required"`
}

func (h *Handler) Register(c *gin.Context) {
	var req registerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Email, password and confirmation are required")
		return
	}

	user, err := h.svc.Auth.Register(c.Request.Context(), currentSession(c), services.RegisterInput{
		Email:           req.Email,
		Username:        req.Username,
		Password:        req.Password,
		ConfirmPassword: req.ConfirmPassword,
	})
	if err != nil {
		h.respondError(c, err, "Registration failed. Please try again.")
		return
	}
	c.JSON(http.StatusCreated, gin.H{"user": user})
}

func (h *Handler) Login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Email and password are required")
		return
	}

	user, err := h.svc.Auth.Login(c.Request.Context(), currentSession(c), req.Email, req.Password)
	if err != nil {
		h.respondError(c, err, "Login failed. Please check your credentials.")
		return
	}
	c.JSON(http.StatusOK, gin.H{"user": user})
}

// Logout signs the session out and forgets it entirely.
func (h *Handler) Logout(c *gin.Context) {
	sess := currentSession(c)
	h.svc.Auth.Logout(sess)
	if err := h.sessions.Destroy(c.Request.Context(), sess.ID); err != nil {
		h.log.Error("destroy session failed", zap.String("session_id", sess.ID), zap.Error(err))
	}
	c.JSON(http.StatusOK, gin.H{"message": "Logged out"})
}

func (h *Handler) Me(c *gin.Context) {
	user, err := h.svc.Auth.Me(c.Request.Context(), currentSession(c))
	if err != nil {
		h.respondError(c, err, "Could not verify your session")
		return
	}
	c.JSON(http.StatusOK, gin.H{"user": user})
}

func (h *Handler) RequestPasswordReset(c *gin.Context) {
	var req passwordResetRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Email is required")
		return
	}

	res, err := h.svc.Auth.RequestPasswordReset(c.Request.Context(), req.Email)
	if err != nil {
		h.respondError(c, err, "Failed to send reset email. Please try again.")
		return
	}
	c.JSON(http.StatusOK, res)
}
