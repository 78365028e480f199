package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/mediakit/picserve/internal/middleware"
	"github.com/mediakit/picserve/internal/rest"
	"github.com/mediakit/picserve/media/application"
	"github.com/mediakit/picserve/media/codec"
	"github.com/mediakit/picserve/media/persistence"
	"github.com/mediakit/picserve/shared/db/sqlite"
)

const (
	defaultPort     = 8080
	shutdownTimeout = 5 * time.Second
)

func main() {
	// .env is optional; real deployments set the environment directly
	_ = godotenv.Load()

	if level, err := zerolog.ParseLevel(os.Getenv("LOG_LEVEL")); err == nil && level != zerolog.NoLevel {
		zerolog.SetGlobalLevel(level)
	}

	database := sqlite.NewSQLiteDB(sqlite.NewSQLiteConfig())
	if err := database.Connect(); err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to database")
	}
	defer database.Close()

	imagesDir := os.Getenv("IMAGES_DIR")
	if imagesDir == "" {
		imagesDir = "./images"
	}
	baseURL := os.Getenv("IMAGES_BASE_URL")
	if baseURL == "" {
		baseURL = "/images/"
	}

	pictureRepo := persistence.NewPictureRepository(database.DB())
	settingRepo := persistence.NewSettingRepository(database.DB())
	settings := application.NewSettingService(settingRepo)

	pictureService := application.NewPictureService(pictureRepo, settings, codec.NewWebP(), application.Config{
		ImagesDir: imagesDir,
		BaseURL:   baseURL,
	})

	service := gin.New()
	service.Use(middleware.LoggingMiddleware())
	service.Use(gin.CustomRecovery(middleware.HandlePanics()))
	service.Static("/images", imagesDir)

	rest.NewPictureHandler(pictureService).RegisterRoutes(service)
	rest.NewConfigHandler(pictureService, settings).RegisterRoutes(service)

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", defaultPort),
		Handler: service,
	}

	go func() {
		log.Info().Msg("Starting server on port :" + fmt.Sprint(defaultPort))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("Failed to start server")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt)
	<-quit

	log.Info().Msg("Shutting down server...")
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Fatal().Err(err).Msg("Failed to shutdown server")
	}

	log.Info().Msg("Server stopped")
}
