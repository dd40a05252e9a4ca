package main

import (
	"context"
	"database/sql"
	"log"
	"net/http"
	"time"

	"rental-chat/config"
	"rental-chat/engine"
	"rental-chat/handlers"
	"rental-chat/services"
	"rental-chat/workflows"

	"github.com/dbos-inc/dbos-transact-golang/dbos"
	"github.com/gin-gonic/gin"
	_ "github.com/lib/pq"
)

func main() {
	cfg, err := config.LoadRuntime()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	assistant, err := config.LoadAssistant(cfg.AssistantFile)
	if err != nil {
		log.Fatalf("Failed to load assistant profile: %v", err)
	}

	// Connect to PostgreSQL for reservation records
	db, err := sql.Open("postgres", cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()

	if err := db.Ping(); err != nil {
		log.Fatalf("Failed to ping database: %v", err)
	}
	log.Println("Connected to PostgreSQL database")

	// NLU gateway, configured once for the whole process
	nlu := services.NewDialogflowService(
		cfg.DialogflowProjectID,
		cfg.DialogflowClientMail,
		cfg.DialogflowPrivateKey,
		cfg.LanguageCode,
	)

	reservationWorkflows := workflows.NewReservationWorkflows(db)

	// Initialize DBOS context for durable workflows
	dbosCtx, err := dbos.NewDBOSContext(context.Background(), dbos.Config{
		DatabaseURL: cfg.DatabaseURL,
		AppName:     "rental-chat",
	})
	if err != nil {
		log.Fatalf("Failed to initialize DBOS: %v", err)
	}

	// Register workflows with DBOS (MUST be before Launch)
	dbos.RegisterWorkflow(dbosCtx, reservationWorkflows.RecordReservationWorkflow)
	dbos.RegisterWorkflow(dbosCtx, reservationWorkflows.RecordReturnWorkflow)

	if err := dbos.Launch(dbosCtx); err != nil {
		log.Fatalf("Failed to launch DBOS: %v", err)
	}
	defer dbos.Shutdown(dbosCtx, 5*time.Second)
	log.Println("DBOS initialized - durable workflows enabled")

	action := workflows.NewDurableActionHandler(dbosCtx, reservationWorkflows)

	sessions := handlers.NewSessionManager(assistant,
		func(sessionID string) engine.Gateway { return nlu.Session(sessionID) },
		action)
	chatHandler := handlers.NewChatHandler(sessions)

	// Setup Gin router
	router := gin.Default()

	// Enable CORS for local development
	router.Use(func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Content-Type, Authorization")
		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	})

	// API routes
	api := router.Group("/api")
	{
		api.POST("/sessions", chatHandler.CreateSession)
		api.DELETE("/sessions/:id", chatHandler.DeleteSession)

		api.GET("/sessions/:id/messages", chatHandler.GetMessages)
		api.POST("/sessions/:id/messages", chatHandler.SendMessage)
		api.POST("/sessions/:id/selections", chatHandler.Select)
		api.GET("/sessions/:id/stream", chatHandler.StreamMessages)
	}

	// Health check
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "healthy", "dbos": "enabled"})
	})

	log.Printf("Starting server on port %s", cfg.Port)
	if err := router.Run(":" + cfg.Port); err != nil {
		log.Fatalf("Failed to start server: %v", err)
	}
}
