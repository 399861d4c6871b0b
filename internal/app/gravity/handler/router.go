package handler

import (
	"net/http"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"gravity/pkg/logger"
	"gravity/pkg/metrics"
)

// SetupRoutes настраивает все маршруты приложения с использованием Gin
func SetupRoutes(
	authHandler *AuthHandler,
	bookHandler *BookHandler,
	reviewHandler *ReviewHandler,
	wsHandler *WSHandler,
	authMiddleware *AuthMiddleware,
	allowedOrigins []string,
) *gin.Engine {
	router := gin.New()

	// Recovery middleware для обработки panic
	router.Use(gin.Recovery())

	// JSON logging middleware для HTTP-запросов
	router.Use(logger.GinLoggerMiddleware())

	// Prometheus metrics middleware
	router.Use(metrics.GinPrometheusMiddleware("gravity"))

	// CORS настройки
	router.Use(cors.New(cors.Config{
		AllowOrigins:     allowedOrigins,
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Accept", "Authorization", "Content-Type", "X-CSRF-Token"},
		ExposeHeaders:    []string{"Link"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	// Health check endpoint
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":  "ok",
			"service": "gravity",
		})
	})

	// Prometheus metrics endpoint
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// Websocket-эндпоинт для realtime-событий
	router.GET("/ws", wsHandler.Serve)

	api := router.Group("/api/v1")
	{
		// Публичные эндпоинты (без аутентификации)
		auth := api.Group("/auth")
		{
			auth.POST("/register", authHandler.Register)
			auth.POST("/login", authHandler.Login)

			protected := auth.Group("")
			protected.Use(authMiddleware.Authenticate())
			{
				protected.GET("/me", authHandler.GetMe)
			}
		}

		books := api.Group("/books")
		{
			books.GET("", bookHandler.ListBooks)
			books.GET("/:book_id", bookHandler.GetBook)
			books.GET("/:book_id/reviews", reviewHandler.GetReviewsByBook)

			// Защищенные эндпоинты (требуют аутентификации)
			protected := books.Group("")
			protected.Use(authMiddleware.Authenticate())
			{
				protected.POST("", bookHandler.CreateBook)
				protected.POST("/:book_id/reviews", reviewHandler.CreateReview)
				protected.POST("/:book_id/reading-list", bookHandler.AddToReadingList)
				protected.DELETE("/:book_id/reading-list", bookHandler.RemoveFromReadingList)
			}
		}

		reviews := api.Group("/reviews")
		reviews.Use(authMiddleware.Authenticate())
		{
			reviews.POST("/:review_id/reviewTexts/:review_text_id/replies", reviewHandler.AddReply)
			reviews.DELETE("/:review_id", reviewHandler.DeleteReview)
		}
	}

	return router
}
