package payment

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"quizhub-subscription-svc/src/internal/config"
	"quizhub-subscription-svc/src/internal/models"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

const signatureHeader = "X-Webhook-Signature"

type Handler interface {
	InitiatePayment(c *gin.Context)
	WebhookCallback(c *gin.Context)
}

type handler struct {
	config     *config.Configuration
	service    Service
	reconciler *Reconciler
}

func NewHandler(cfg *config.Configuration, service Service, reconciler *Reconciler) Handler {
	return &handler{
		config:     cfg,
		service:    service,
		reconciler: reconciler,
	}
}

func (h *handler) InitiatePayment(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), time.Duration(h.config.App.Timeout)*time.Second)
	defer cancel()

	var req InitiateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"error":   "planId and gateway are required",
		})
		return
	}

	userID := c.GetString("user_id")

	resp, err := h.service.Initiate(ctx, userID, &req)
	if err != nil {
		switch {
		case errors.Is(err, models.ErrUnknownPlan):
			c.JSON(http.StatusBadRequest, gin.H{
				"success": false,
				"error":   "Unknown subscription plan",
			})
		case errors.Is(err, models.ErrUnknownGateway):
			c.JSON(http.StatusBadRequest, gin.H{
				"success": false,
				"error":   "Unknown payment gateway",
			})
		case errors.Is(err, models.ErrGatewayUnavailable):
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"success": false,
				"error":   "Payment gateway unavailable, please retry",
			})
		default:
			logrus.WithError(err).Error("Payment initiation failed")
			c.JSON(http.StatusInternalServerError, gin.H{
				"success": false,
				"error":   "Payment initiation failed",
			})
		}
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    resp,
	})
}

// WebhookCallback verifies the HMAC signature over the raw body, queues the
// notification and acknowledges immediately. Processing happens out of band
// so duplicate, out-of-order or racing deliveries never block the gateway.
func (h *handler) WebhookCallback(c *gin.Context) {
	body, err := c.GetRawData()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"error":   "Unreadable body",
		})
		return
	}

	signature := c.GetHeader(signatureHeader)
	if !verifySignature(body, signature, h.config.Security.WebhookSecret) {
		logrus.WithField("remote", c.ClientIP()).Warn("Webhook signature verification failed")
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"error":   "Invalid signature",
		})
		return
	}

	var payload WebhookPayload
	if err := json.Unmarshal(body, &payload); err != nil || payload.TransactionID == "" {
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"error":   "Invalid payload",
		})
		return
	}

	h.reconciler.Enqueue(payload.TransactionID, normalizeStatus(payload.Status))

	logrus.WithFields(logrus.Fields{
		"transaction_id": payload.TransactionID,
		"status":         payload.Status,
	}).Info("Webhook accepted")

	c.JSON(http.StatusOK, gin.H{"success": true})
}

// verifySignature computes HMAC-SHA256 over the raw payload and compares it
// to the hex signature in constant time.
func verifySignature(body []byte, signature, secret string) bool {
	if signature == "" || secret == "" {
		return false
	}

	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	expected := mac.Sum(nil)

	received, err := hex.DecodeString(signature)
	if err != nil {
		return false
	}

	return hmac.Equal(expected, received)
}

// normalizeStatus maps loose gateway vocabulary onto transaction statuses.
func normalizeStatus(status string) string {
	switch status {
	case "completed", "success", "SUCCESS", "paid":
		return StatusCompleted
	case "cancelled", "canceled", "DECLINED":
		return StatusCancelled
	case "pending", "PENDING":
		return StatusPending
	default:
		return StatusFailed
	}
}
