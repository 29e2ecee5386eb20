package api

import (
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/pokedan/cardwatch/backend/internal/api/handlers"
	"github.com/pokedan/cardwatch/backend/internal/collection"
	"github.com/pokedan/cardwatch/backend/internal/config"
)

// SetupRouter builds the HTTP surface: snapshot endpoints, health, metrics.
func SetupRouter(cfg config.ServerConfig, service *collection.Service) *gin.Engine {
	router := gin.Default()

	corsConfig := cors.DefaultConfig()
	if len(cfg.CORSOrigins) > 0 {
		corsConfig.AllowOrigins = cfg.CORSOrigins
	} else {
		corsConfig.AllowOrigins = []string{"http://localhost:5173", "http://localhost:3000"}
	}
	corsConfig.AllowMethods = []string{"GET", "POST", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Type", "Accept"}
	corsConfig.AllowCredentials = false
	router.Use(cors.New(corsConfig))

	collectionHandler := handlers.NewCollectionHandler(service)

	api := router.Group("/api")
	{
		col := api.Group("/collection")
		{
			col.GET("", collectionHandler.GetCollection)
			col.POST("/refresh", collectionHandler.RefreshCollection)
			col.GET("/history", collectionHandler.GetHistory)
		}
	}

	// Health check
	router.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})

	// Prometheus scrape endpoint
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	return router
}
