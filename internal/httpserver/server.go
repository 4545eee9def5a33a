package httpserver

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/Dave-Sleek/promptshare-economy/pkg/economy"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Run boots the economy HTTP API and blocks until ctx is cancelled or the
// server fails.
func Run(ctx context.Context, cfg Config, service *economy.Service, logger *zap.Logger) error {
	router := NewRouter(cfg, service, logger)

	server := &http.Server{
		Addr:    cfg.ListenAddr,
		Handler: router,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("economy api listening", zap.String("addr", cfg.ListenAddr))
		errCh <- server.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if shutdownErr := server.Shutdown(shutdownCtx); shutdownErr != nil {
			logger.Warn("server shutdown error", zap.Error(shutdownErr))
		}
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}

// NewRouter builds the gin engine with all economy routes wired.
func NewRouter(cfg Config, service *economy.Service, logger *zap.Logger) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.AllowedOrigins,
		AllowMethods:     []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:     []string{"Content-Type", "Origin", "Accept", "Authorization"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	router.GET("/healthz", func(ctx *gin.Context) {
		ctx.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	handler := &httpHandler{
		logger:  logger,
		service: service,
		cfg:     cfg,
	}

	api := router.Group("/api")
	api.Use(authMiddleware([]byte(cfg.TokenSigningKey), cfg.TokenIssuer))

	api.POST("/wallet", handler.handleCreateWallet)
	api.GET("/wallet", handler.handleWallet)
	api.GET("/wallet/history", handler.handleHistory)
	api.POST("/gifts", handler.handleSendGift)
	api.POST("/unlocks", handler.handleUnlock)
	api.POST("/daily-bonus", handler.handleDailyBonus)

	internal := router.Group("/internal")
	internal.Use(webhookMiddleware(cfg.WebhookSecret))

	internal.POST("/accruals", handler.handleAccrual)
	internal.POST("/payments", handler.handlePaymentWebhook)

	return router
}

type httpHandler struct {
	logger  *zap.Logger
	service *economy.Service
	cfg     Config
}
