package subscription

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
	GetSubscription(c *gin.Context)
	ValidateAccessCode(c *gin.Context)
	ResendAccessCode(c *gin.Context)
	IssueAccessCode(c *gin.Context)
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

func (h *handler) GetSubscription(c *gin.Context) {
	ctx, cancel := h.requestContext(c)
	defer cancel()

	userID := c.GetString("user_id")

	entitlement, err := h.service.Entitlement(ctx, userID)
	if err != nil {
		logrus.WithError(err).Error("Failed to get subscription info")
		c.JSON(http.StatusInternalServerError, gin.H{
			"success": false,
			"error":   "Failed to retrieve subscription",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    entitlement,
	})
}

func (h *handler) ValidateAccessCode(c *gin.Context) {
	ctx, cancel := h.requestContext(c)
	defer cancel()

	var req ValidateCodeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"error":   "Access code is required",
		})
		return
	}

	userID := c.GetString("user_id")

	u, err := h.service.RedeemAccessCode(ctx, userID, req.Code)
	if err != nil {
		if errors.Is(err, models.ErrAccessCodeInvalid) {
			c.JSON(http.StatusBadRequest, gin.H{
				"success": false,
				"error":   "Access code invalid or expired",
			})
			return
		}
		logrus.WithError(err).Error("Access code redemption failed")
		c.JSON(http.StatusInternalServerError, gin.H{
			"success": false,
			"error":   "Failed to validate access code",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": "Premium access activated",
		"user":    u.ToProfile(),
	})
}

func (h *handler) ResendAccessCode(c *gin.Context) {
	ctx, cancel := h.requestContext(c)
	defer cancel()

	userID := c.GetString("user_id")

	if err := h.service.ResendAccessCode(ctx, userID); err != nil {
		if errors.Is(err, models.ErrAccessCodeInvalid) {
			c.JSON(http.StatusBadRequest, gin.H{
				"success": false,
				"error":   "No access code available to resend",
			})
			return
		}
		logrus.WithError(err).Error("Access code resend failed")
		c.JSON(http.StatusInternalServerError, gin.H{
			"success": false,
			"error":   "Failed to resend access code",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": "Access code sent",
	})
}

// IssueAccessCode creates and mails a one-time code on behalf of a user.
// Admin only; the regular purchase flow activates premium directly.
func (h *handler) IssueAccessCode(c *gin.Context) {
	ctx, cancel := h.requestContext(c)
	defer cancel()

	var req IssueCodeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"error":   "userId and durationInMonths are required",
		})
		return
	}

	ac, err := h.service.IssueAccessCode(ctx, req.UserID, req.DurationInMonths)
	if err != nil {
		if errors.Is(err, models.ErrUserNotFound) {
			c.JSON(http.StatusNotFound, gin.H{
				"success": false,
				"error":   "User not found",
			})
			return
		}
		logrus.WithError(err).Error("Access code issuance failed")
		c.JSON(http.StatusInternalServerError, gin.H{
			"success": false,
			"error":   "Failed to issue access code",
		})
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"success": true,
		"message": "Access code issued and mailed",
		"data": gin.H{
			"code":      ac.Code,
			"expiresAt": ac.ExpiresAt,
		},
	})
}

func (h *handler) requestContext(c *gin.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(c.Request.Context(), time.Duration(h.config.App.Timeout)*time.Second)
}
