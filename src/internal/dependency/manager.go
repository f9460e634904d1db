package dependency

import (
	"quizhub-subscription-svc/src/clients"
	"quizhub-subscription-svc/src/internal/auth"
	"quizhub-subscription-svc/src/internal/cache"
	"quizhub-subscription-svc/src/internal/config"
	"quizhub-subscription-svc/src/internal/mailer"
	"quizhub-subscription-svc/src/internal/middleware"
	"quizhub-subscription-svc/src/internal/payment"
	"quizhub-subscription-svc/src/internal/session"
	"quizhub-subscription-svc/src/internal/subscription"
	"quizhub-subscription-svc/src/internal/sweeper"
	"quizhub-subscription-svc/src/internal/user"

	"github.com/gin-gonic/gin"
)

type Manager struct {
	Router              *gin.Engine
	Config              *config.Configuration
	Mongodb             *clients.MongoDB
	Redis               *clients.RedisClient
	RabbitMQ            *clients.RabbitMQ
	CacheService        cache.Service
	Mailer              mailer.Publisher
	UserRepository      user.Repository
	UserService         user.Service
	UserHandler         user.Handler
	SessionService      session.Service
	TokenManager        *auth.TokenManager
	AuthService         auth.Service
	AuthHandler         auth.Handler
	SubscriptionService subscription.Service
	SubscriptionHandler subscription.Handler
	PaymentService      payment.Service
	PaymentHandler      payment.Handler
	Reconciler          *payment.Reconciler
	Sweeper             *sweeper.Sweeper
	AuthMiddleware      *middleware.AuthMiddleware
}

func NewDependencyManager(router *gin.Engine,
	mongodb *clients.MongoDB,
	redisClient *clients.RedisClient,
	rabbitMQ *clients.RabbitMQ,
	cfg *config.Configuration) *Manager {

	cacheService := cache.NewCacheService(redisClient.Client, cfg)
	mail := mailer.NewPublisher(rabbitMQ.Channel, cfg)

	userRepo := user.NewUserRepository(mongodb, cfg.Database.UserCollection)
	sessionRepo := session.NewSessionRepository(mongodb, cfg.Database.SessionCollection)
	txnRepo := payment.NewTransactionRepository(mongodb, cfg.Database.TransactionCollection)
	codeRepo := subscription.NewAccessCodeRepository(mongodb, cfg.Database.AccessCodeCollection)

	sessionService := session.NewSessionService(sessionRepo, cfg)
	tokenManager := auth.NewTokenManager(cfg)

	authService := auth.NewAuthService(userRepo, sessionService, tokenManager, cacheService, mail, cfg)
	authHandler := auth.NewHandler(cfg, authService)

	subscriptionService := subscription.NewService(userRepo, codeRepo, mail, cfg)
	subscriptionHandler := subscription.NewHandler(cfg, subscriptionService)

	gateways := payment.NewGatewayResolver(
		clients.NewPayDunyaClient(&cfg.Payment.PayDunya),
		clients.NewKkiaPayClient(&cfg.Payment.KkiaPay),
	)
	paymentService := payment.NewPaymentService(txnRepo, gateways, cfg)
	reconciler := payment.NewReconciler(txnRepo, subscriptionService, gateways, cfg)
	paymentHandler := payment.NewHandler(cfg, paymentService, reconciler)

	userService := user.NewUserService(userRepo, cfg)
	userHandler := user.NewHandler(cfg, userService, cacheService)

	expirySweeper := sweeper.New(userRepo, txnRepo, mail, cfg)

	authMiddleware := middleware.NewAuthMiddleware(tokenManager, userRepo, sessionService, cacheService)

	return &Manager{
		Router:              router,
		Config:              cfg,
		Mongodb:             mongodb,
		Redis:               redisClient,
		RabbitMQ:            rabbitMQ,
		CacheService:        cacheService,
		Mailer:              mail,
		UserRepository:      userRepo,
		UserService:         userService,
		UserHandler:         userHandler,
		SessionService:      sessionService,
		TokenManager:        tokenManager,
		AuthService:         authService,
		AuthHandler:         authHandler,
		SubscriptionService: subscriptionService,
		SubscriptionHandler: subscriptionHandler,
		PaymentService:      paymentService,
		PaymentHandler:      paymentHandler,
		Reconciler:          reconciler,
		Sweeper:             expirySweeper,
		AuthMiddleware:      authMiddleware,
	}
}
