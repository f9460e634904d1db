package server

import (
	"time"

	"quizhub-subscription-svc/src/clients"
	"quizhub-subscription-svc/src/internal/dependency"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
)

func SetupRoutes(deps *dependency.Manager) {
	router := deps.Router
	router.Use(enableCORS)

	setupHealthEndpoint(deps)
	setupAuthRoutes(router, deps)
	setupSubscriptionRoutes(router, deps)
	setupPaymentRoutes(router, deps)
	setupAdminRoutes(router, deps)
}

func setupHealthEndpoint(deps *dependency.Manager) {
	router := deps.Router
	mongodb := deps.Mongodb
	redisClient := deps.Redis
	cfg := deps.Config

	router.GET("/health", func(c *gin.Context) {
		log.Info("Health check endpoint requested")

		mongoStatus := "ok"
		if err := mongodb.Client.Ping(c.Request.Context(), nil); err != nil {
			mongoStatus = "error: " + err.Error()
		}

		redisStatus := "ok"
		if err := redisClient.Client.Ping(c.Request.Context()).Err(); err != nil {
			redisStatus = "error: " + err.Error()
		}

		c.JSON(200, gin.H{
			"status":    "ok",
			"service":   cfg.App.Name,
			"version":   cfg.App.Version,
			"mongodb":   mongoStatus,
			"redis":     redisStatus,
			"timestamp": time.Now().UTC().Format("2006-01-02T15:04:05Z07:00"),
		})
	})

	router.GET("/health/detailed", func(c *gin.Context) {
		log.Info("Detailed health check endpoint requested")

		c.JSON(200, gin.H{
			"status":  "operational",
			"service": cfg.App.Name,
			"version": cfg.App.Version,
			"components": gin.H{
				"database": gin.H{
					"mongodb": getStatus(isMongoConnected(mongodb, c)),
					"redis":   getStatus(isRedisConnected(redisClient.Client, c)),
				},
				"services": gin.H{
					"auth":         "operational",
					"session":      "operational",
					"subscription": "operational",
					"payment":      "operational",
				},
			},
		})
	})
}

func setupAuthRoutes(router *gin.Engine, deps *dependency.Manager) {
	authMiddleware := deps.AuthMiddleware
	handler := deps.AuthHandler

	authGroup := router.Group("/api/v1/auth")
	{
		authGroup.POST("/register",
			setRouteName("register"),
			handler.Register)

		authGroup.POST("/login",
			setRouteName("login"),
			handler.Login)

		authGroup.POST("/logout",
			setRouteName("logout"),
			authMiddleware.RequireAuth(),
			handler.Logout)

		authGroup.POST("/change-password",
			setRouteName("changePassword"),
			authMiddleware.RequireAuth(),
			handler.ChangePassword)
	}
}

func setupSubscriptionRoutes(router *gin.Engine, deps *dependency.Manager) {
	authMiddleware := deps.AuthMiddleware
	handler := deps.SubscriptionHandler

	router.GET("/api/v1/subscription",
		setRouteName("getSubscription"),
		authMiddleware.RequireAuth(),
		handler.GetSubscription)

	codes := router.Group("/api/v1/access-code")
	{
		codes.POST("/validate",
			setRouteName("validateAccessCode"),
			authMiddleware.RequireAuth(),
			handler.ValidateAccessCode)

		codes.POST("/resend",
			setRouteName("resendAccessCode"),
			authMiddleware.RequireAuth(),
			handler.ResendAccessCode)
	}
}

func setupPaymentRoutes(router *gin.Engine, deps *dependency.Manager) {
	authMiddleware := deps.AuthMiddleware
	handler := deps.PaymentHandler

	router.POST("/api/v1/payment/initiate",
		setRouteName("initiatePayment"),
		authMiddleware.RequireAuth(),
		handler.InitiatePayment)

	// Gateway callbacks carry their own HMAC signature instead of a token.
	router.POST("/api/v1/webhook/callback",
		setRouteName("webhookCallback"),
		handler.WebhookCallback)
}

func setupAdminRoutes(router *gin.Engine, deps *dependency.Manager) {
	authMiddleware := deps.AuthMiddleware
	handler := deps.UserHandler
	subscriptionHandler := deps.SubscriptionHandler

	admin := router.Group("/api/v1/admin")
	{
		admin.GET("/users",
			setRouteName("getUsersList"),
			authMiddleware.RequireAuth(),
			authMiddleware.RequireAdminRights(),
			handler.GetAllUsers)

		admin.GET("/users/stats",
			setRouteName("getUsersStats"),
			authMiddleware.RequireAuth(),
			authMiddleware.RequireAdminRights(),
			handler.GetUserStats)

		admin.POST("/access-code",
			setRouteName("issueAccessCode"),
			authMiddleware.RequireAuth(),
			authMiddleware.RequireAdminRights(),
			subscriptionHandler.IssueAccessCode)
	}
}

func setRouteName(name string) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set("route_name", name)
		c.Next()
	}
}

func isMongoConnected(mongodb *clients.MongoDB, c *gin.Context) bool {
	if err := mongodb.Client.Ping(c.Request.Context(), nil); err != nil {
		return false
	}
	return true
}

func isRedisConnected(redisClient *redis.Client, c *gin.Context) bool {
	if err := redisClient.Ping(c.Request.Context()).Err(); err != nil {
		return false
	}
	return true
}

func enableCORS(c *gin.Context) {
	c.Header("Access-Control-Allow-Origin", "*")
	c.Header("Access-Control-Allow-Methods", "GET, POST, PUT, PATCH, DELETE, OPTIONS")
	c.Header("Access-Control-Allow-Headers", "Content-Type, Authorization")

	if c.Request.Method == "OPTIONS" {
		c.AbortWithStatus(204)
		return
	}

	c.Next()
}

func getStatus(b bool) string {
	if b {
		return "connected"
	}
	return "disconnected"
}
