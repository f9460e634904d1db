package user

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"quizhub-subscription-svc/src/internal/cache"
	"quizhub-subscription-svc/src/internal/config"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

type Handler interface {
	GetAllUsers(c *gin.Context)
	GetUserStats(c *gin.Context)
}

type handler struct {
	config       *config.Configuration
	service      Service
	cacheService cache.Service
}

func NewHandler(cfg *config.Configuration, service Service, cacheService cache.Service) Handler {
	return &handler{
		config:       cfg,
		service:      service,
		cacheService: cacheService,
	}
}

func (h *handler) GetAllUsers(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), time.Duration(h.config.App.Timeout)*time.Second)
	defer cancel()

	req := &GetAllUsersRequest{
		Page:    parseIntParam(c, "page", 1),
		Limit:   parseIntParam(c, "limit", 20),
		Premium: c.Query("premium"),
		Search:  c.Query("search"),
	}

	logrus.WithFields(logrus.Fields{
		"page":    req.Page,
		"limit":   req.Limit,
		"premium": req.Premium,
		"search":  req.Search,
	}).Info("GetAllUsers request received")

	userID, _ := c.Get("user_id")
	logrus.WithField("admin_user_id", userID).Debug("Admin user accessing GetAllUsers")

	response, err := h.service.GetAllUsers(ctx, req)
	if err != nil {
		logrus.WithError(err).Error("Failed to get all users")
		c.JSON(http.StatusInternalServerError, gin.H{
			"success": false,
			"error":   "Failed to retrieve users",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    response,
		"message": "Users retrieved successfully",
	})
}

func (h *handler) GetUserStats(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), time.Duration(h.config.App.Timeout)*time.Second)
	defer cancel()

	logrus.Info("GetUserStats request received")

	userStats, err := h.cacheService.GetUserStats(ctx)
	if err == nil && userStats != nil {
		logrus.Debug("User statistics retrieved from cache")
		c.JSON(http.StatusOK, gin.H{
			"success": true,
			"data":    userStats,
			"message": "User statistics retrieved successfully (from cache)",
		})
		return
	}

	stats, err := h.service.GetUserStats(ctx)
	if err != nil {
		logrus.WithError(err).Error("Failed to get user statistics")
		c.JSON(http.StatusInternalServerError, gin.H{
			"success": false,
			"error":   "Failed to retrieve user statistics",
		})
		return
	}

	h.cacheService.SaveUserStats(ctx, stats)

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    stats,
		"message": "User statistics retrieved successfully",
	})
}

func parseIntParam(c *gin.Context, param string, defaultValue int) int {
	value := c.Query(param)
	if value == "" {
		return defaultValue
	}

	parsed, err := strconv.Atoi(value)
	if err != nil {
		logrus.WithFields(logrus.Fields{
			"param": param,
			"value": value,
			"error": err,
		}).Warn("Invalid integer parameter, using default")

		return defaultValue
	}
	return parsed
}
