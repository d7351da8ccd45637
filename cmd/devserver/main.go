// Command devserver runs a local stub of the analysis backend so the
// client can be developed and tested without the production service.
package main

import (
	"log"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/tea-analyzer/client/api/handlers"
	"github.com/tea-analyzer/client/internal/hub"
)

func main() {
	port := getEnv("PORT", "8080")
	maxSessions := getEnvInt("MAX_SESSIONS_PER_USER", 10)
	rateMax := getEnvInt("RATE_MAX_PER_MINUTE", 0)

	registry := hub.NewRegistry()
	defer registry.Close()

	connectionHandler := handlers.NewConnectionHandler(registry, handlers.ConnectionHandlerConfig{
		MaxSessionsPerUser: maxSessions,
		RateWindow:         time.Minute,
		RateMax:            rateMax,
	})
	streamHandler := handlers.NewStreamHandler(registry)
	metadataHandler := handlers.NewMetadataHandler()

	r := gin.Default()
	r.Use(corsMiddleware())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{
			"status": "ok",
		})
	})

	connectionHandler.RegisterRoutes(r)
	streamHandler.RegisterRoutes(r)
	metadataHandler.RegisterRoutes(r)

	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh
		log.Println("Shutting down devserver...")
		registry.Close()
		os.Exit(0)
	}()

	log.Printf("Starting devserver on port %s", port)
	if err := r.Run(":" + port); err != nil {
		log.Fatalf("Failed to start devserver: %v", err)
	}
}

// getEnv returns the value of an environment variable or a default value.
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return defaultValue
}

// corsMiddleware returns a CORS middleware for development.
func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Accept, Cache-Control")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS, GET")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}

		c.Next()
	}
}
