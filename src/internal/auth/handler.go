package auth

import (
	"context"
	"errors"
	"net/http"
	"time"

	"quizhub-subscription-svc/src/internal/config"
	"quizhub-subscription-svc/src/internal/models"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

type Handler interface {
	Register(c *gin.Context)
	Login(c *gin.Context)
	Logout(c *gin.Context)
	ChangePassword(c *gin.Context)
}

type handler struct {
	config  *config.Configuration
	service Service
}

func NewHandler(cfg *config.Configuration, service Service) Handler {
	return &handler{
		config:  cfg,
		service: service,
	}
}

func (h *handler) Register(c *gin.Context) {
	ctx, cancel := h.requestContext(c)
	defer cancel()

	var req RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"error":   "Invalid registration payload",
		})
		return
	}

	result, err := h.service.Register(ctx, &req, c.Request.UserAgent(), c.ClientIP())
	if err != nil {
		if errors.Is(err, models.ErrEmailTaken) {
			c.JSON(http.StatusConflict, gin.H{
				"success": false,
				"error":   "Email already registered",
			})
			return
		}
		logrus.WithError(err).Error("Registration failed")
		c.JSON(http.StatusInternalServerError, gin.H{
			"success": false,
			"error":   "Registration failed",
		})
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"success": true,
		"token":   result.Token,
		"user":    result.User,
	})
}

func (h *handler) Login(c *gin.Context) {
	ctx, cancel := h.requestContext(c)
	defer cancel()

	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"error":   "Invalid login payload",
		})
		return
	}

	result, err := h.service.Login(ctx, &req, c.Request.UserAgent(), c.ClientIP())
	if err != nil {
		if errors.Is(err, models.ErrInvalidCredentials) {
			c.JSON(http.StatusUnauthorized, gin.H{
				"success": false,
				"error":   "Invalid email or password",
			})
			return
		}
		logrus.WithError(err).Error("Login failed")
		c.JSON(http.StatusInternalServerError, gin.H{
			"success": false,
			"error":   "Login failed",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"token":   result.Token,
		"user":    result.User,
	})
}

func (h *handler) Logout(c *gin.Context) {
	ctx, cancel := h.requestContext(c)
	defer cancel()

	userID := c.GetString("user_id")
	sessionID := c.GetString("session_id")

	if err := h.service.Logout(ctx, userID, sessionID); err != nil {
		logrus.WithError(err).Error("Logout failed")
		c.JSON(http.StatusInternalServerError, gin.H{
			"success": false,
			"error":   "Logout failed",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": "Logged out successfully",
	})
}

func (h *handler) ChangePassword(c *gin.Context) {
	ctx, cancel := h.requestContext(c)
	defer cancel()

	var req ChangePasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"error":   "Invalid password payload",
		})
		return
	}

	userID := c.GetString("user_id")

	if err := h.service.ChangePassword(ctx, userID, &req); err != nil {
		if errors.Is(err, models.ErrInvalidCredentials) {
			c.JSON(http.StatusUnauthorized, gin.H{
				"success": false,
				"error":   "Current password is incorrect",
			})
			return
		}
		logrus.WithError(err).Error("Password change failed")
		c.JSON(http.StatusInternalServerError, gin.H{
			"success": false,
			"error":   "Password change failed",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": "Password changed, please login again",
	})
}

func (h *handler) requestContext(c *gin.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(c.Request.Context(), time.Duration(h.config.App.Timeout)*time.Second)
}
