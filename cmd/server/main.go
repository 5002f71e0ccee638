// cmd/server/main.go - Prosignum Signature Collection Server
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"prosignum/internal/config"
	"prosignum/internal/database"
	"prosignum/internal/handlers"
	"prosignum/internal/middleware"
	"prosignum/internal/services"
	"prosignum/pkg/auth"
	"prosignum/pkg/validator"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
)

var startTime = time.Now()

func main() {
	if err := godotenv.Load(); err != nil {
		logrus.Info("No .env file found, using environment variables")
	}

	cfg := config.Load()

	if cfg.Env == "production" {
		logrus.SetFormatter(&logrus.JSONFormatter{})
		gin.SetMode(gin.ReleaseMode)
	} else {
		logrus.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}

	db, err := database.NewMongoDB(cfg)
	if err != nil {
		logrus.WithError(err).Fatal("Failed to connect to MongoDB")
	}
	defer db.Close()

	indexCtx, indexCancel := context.WithTimeout(context.Background(), 30*time.Second)
	if err := db.CreateIndexes(indexCtx); err != nil {
		indexCancel()
		logrus.WithError(err).Fatal("Failed to create indexes")
	}
	indexCancel()

	validator.Init()

	jwtManager := auth.NewJWTManager(cfg.JWTSecret, time.Duration(cfg.JWTExpiration)*time.Hour)

	userCollection := db.Database.Collection("users")
	profileCollection := db.Database.Collection("eid_profiles")
	participantCollection := db.Database.Collection("participants")
	verificationCollection := db.Database.Collection("eid_verifications")
	initiativeCollection := db.Database.Collection("initiatives")
	signatureCollection := db.Database.Collection("signatures")
	municipalityCollection := db.Database.Collection("municipalities")
	assignmentCollection := db.Database.Collection("reviewer_assignments")

	verifierService := services.NewVerifierService(cfg.VerifierAPIURL)
	identityService := services.NewIdentityService(userCollection, profileCollection, participantCollection)

	hub := handlers.NewHub()
	go hub.Run()
	defer hub.Shutdown()

	authHandler := handlers.NewAuthHandler(cfg, verificationCollection, userCollection, profileCollection, verifierService, identityService, jwtManager)
	initiativeHandler := handlers.NewInitiativeHandler(initiativeCollection, signatureCollection, participantCollection, municipalityCollection)
	signatureHandler := handlers.NewSignatureHandler(signatureCollection, initiativeCollection, participantCollection, profileCollection, municipalityCollection, hub)
	reviewHandler := handlers.NewReviewHandler(signatureCollection, assignmentCollection, municipalityCollection, userCollection, initiativeCollection, hub)
	municipalityHandler := handlers.NewMunicipalityHandler(municipalityCollection)
	liveHandler := handlers.NewLiveHandler(hub, initiativeCollection)

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.RequestID())
	router.Use(middleware.Logger())
	router.Use(middleware.SecurityHeaders())

	router.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.AllowedOrigins,
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization", "X-Request-ID"},
		ExposeHeaders:    []string{"X-Request-ID"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	if cfg.RateLimitEnabled {
		limiter := middleware.NewRateLimiter(cfg.RateLimitRequests, time.Duration(cfg.RateLimitWindow)*time.Second)
		router.Use(limiter.Middleware())
	}

	registerStatic(router)

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":         "ok",
			"uptime_seconds": int(time.Since(startTime).Seconds()),
			"ws_connections": hub.ConnectionCount(),
		})
	})
	router.GET("/ready", func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := db.Client.Ping(ctx, nil); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "database unavailable"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	})
	router.GET("/live", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "alive"})
	})

	api := router.Group("/api/v1")
	{
		// Public routes
		api.POST("/auth/login", authHandler.Login)
		api.GET("/auth/eid/login", authHandler.EIDLogin)
		api.GET("/auth/eid/status/:id", authHandler.EIDStatus)

		api.GET("/initiatives", middleware.OptionalAuth(jwtManager), initiativeHandler.GetInitiatives)
		api.GET("/initiatives/:id", middleware.OptionalAuth(jwtManager), initiativeHandler.GetInitiative)
		api.GET("/initiatives/:id/stats", initiativeHandler.GetInitiativeStats)

		api.GET("/municipalities", municipalityHandler.GetMunicipalities)
		api.GET("/municipalities/:id", municipalityHandler.GetMunicipality)

		// Authenticated routes
		protected := api.Group("/")
		protected.Use(middleware.AuthMiddleware(jwtManager))
		{
			protected.POST("/auth/logout", authHandler.Logout)
			protected.GET("/users/me", authHandler.GetMe)
			protected.GET("/users/me/signatures", signatureHandler.GetMySignatures)
			protected.POST("/initiatives/:id/sign", signatureHandler.SignInitiative)
		}

		// Review routes for municipal reviewers and admins
		review := api.Group("/review")
		review.Use(middleware.AuthMiddleware(jwtManager))
		review.Use(middleware.RequireAnyRole("REVIEWER", "ADMIN"))
		{
			review.GET("/signatures", reviewHandler.ListSignatures)
			review.POST("/signatures/accept", reviewHandler.AcceptSignatures)
			review.POST("/signatures/reject", reviewHandler.RejectSignatures)
		}

		// Admin routes
		admin := api.Group("/admin")
		admin.Use(middleware.AuthMiddleware(jwtManager))
		admin.Use(middleware.RequireRole("ADMIN"))
		{
			admin.POST("/initiatives", initiativeHandler.CreateInitiative)
			admin.PUT("/initiatives/:id", initiativeHandler.UpdateInitiative)
			admin.POST("/initiatives/:id/publish", initiativeHandler.PublishInitiative)
			admin.POST("/initiatives/:id/close", initiativeHandler.CloseInitiative)
			admin.POST("/initiatives/:id/archive", initiativeHandler.ArchiveInitiative)
			admin.DELETE("/initiatives/:id", initiativeHandler.DeleteInitiative)

			admin.POST("/users", authHandler.CreateStaff)

			admin.GET("/reviewers", reviewHandler.ListReviewerAssignments)
			admin.PUT("/reviewers/:user_id", reviewHandler.AssignReviewer)
			admin.DELETE("/reviewers/:user_id", reviewHandler.DeleteReviewerAssignment)
		}
	}

	// Live initiative progress feed
	router.GET("/ws/initiatives/:id", liveHandler.HandleInitiativeFeed)

	router.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Route not found"})
	})
	router.NoMethod(func(c *gin.Context) {
		c.JSON(http.StatusMethodNotAllowed, gin.H{"error": "Method not allowed"})
	})

	srv := &http.Server{
		Addr:         cfg.Host + ":" + cfg.Port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logrus.WithFields(logrus.Fields{
			"address": srv.Addr,
			"env":     cfg.Env,
		}).Info("Server starting")

		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logrus.WithError(err).Fatal("Server failed")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logrus.Info("Shutting down server")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logrus.WithError(err).Error("Forced shutdown")
	}

	logrus.Info("Server stopped")
}

// registerStatic serves the informational pages (imprint, privacy, help).
func registerStatic(router *gin.Engine) {
	router.Static("/public", "./public")
}
