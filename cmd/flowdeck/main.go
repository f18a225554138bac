// Copyright (c) 2025, the flowdeck contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/flowdeck/flowdeck/internal/api/middleware"
	"github.com/flowdeck/flowdeck/internal/api/routes"
	"github.com/flowdeck/flowdeck/internal/commands"
	"github.com/flowdeck/flowdeck/internal/config"
	"github.com/flowdeck/flowdeck/internal/database"
	"github.com/flowdeck/flowdeck/internal/logger"
	"github.com/flowdeck/flowdeck/internal/services/n8n"
)

var (
	version = "dev"
	commit  = ""
	date    = ""
)

func init() {
	logger.Init()
}

func main() {
	if len(os.Args) > 1 && os.Args[1] == "run" {
		commands.SetVersionInfo(version, commit, date)
		if err := commands.Execute(os.Args[2:]); err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
		return
	}

	startServer()
}

func startServer() {
	log.Info().
		Str("version", version).
		Str("commit", commit).
		Str("build_date", date).
		Msg("Starting flowdeck")

	configPath := flag.String("config", "config.toml", "path to config file")
	var dbPath string
	flag.StringVar(&dbPath, "db", "", "path to database file")
	listenAddr := flag.String("listen", ":8080", "address to listen on")
	flag.Parse()

	// If dbPath wasn't set via flag, use config directory
	if dbPath == "" {
		configDir := filepath.Dir(*configPath)
		dbPath = filepath.Join(configDir, "data", "flowdeck.db")
	}

	var cfg *config.Config
	var err error

	if config.HasRequiredEnvVars() {
		cfg = &config.Config{}
		if err := config.LoadEnvOverrides(cfg); err != nil {
			log.Fatal().Err(err).Msg("Failed to load environment variables")
		}
	} else {
		cfg, err = config.LoadConfig(*configPath)
		if err != nil {
			cfg = &config.Config{
				Server: config.ServerConfig{
					ListenAddr: *listenAddr,
				},
				Database: config.DatabaseConfig{
					Path: dbPath,
				},
			}
			log.Warn().Err(err).Msg("Failed to load configuration file, using defaults")
		}
	}
	if cfg.Server.ListenAddr == "" {
		cfg.Server.ListenAddr = *listenAddr
	}
	if cfg.Database.Path == "" {
		cfg.Database.Path = dbPath
	}

	db, err := database.InitDB(cfg.Database.Path)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize database")
	}
	defer db.Close()

	var proberOpts []n8n.Option
	if cfg.N8N.HealthPath != "" {
		proberOpts = append(proberOpts, n8n.WithHealthPath(cfg.N8N.HealthPath))
	}
	if cfg.N8N.TimeoutSeconds > 0 {
		proberOpts = append(proberOpts, n8n.WithTimeout(time.Duration(cfg.N8N.TimeoutSeconds)*time.Second))
	}
	prober := n8n.NewClient(proberOpts...)

	if os.Getenv("GIN_MODE") == "debug" {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(middleware.Logger())
	r.Use(gin.Recovery())

	if gin.Mode() == gin.DebugMode {
		err = r.SetTrustedProxies(nil)
	} else {
		err = r.SetTrustedProxies([]string{"127.0.0.1", "::1"})
	}
	if err != nil {
		log.Error().Err(err).Msg("Failed to set trusted proxies")
	}

	r.Use(middleware.SetupCORS())

	cacheStore := routes.SetupRoutes(r, db, prober)
	defer func() {
		if err := cacheStore.Close(); err != nil {
			log.Error().Err(err).Msg("Failed to close cache")
		}
	}()

	srv := &http.Server{
		Addr:         cfg.Server.ListenAddr,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info().
			Str("address", cfg.Server.ListenAddr).
			Str("mode", gin.Mode()).
			Str("database", cfg.Database.Path).
			Msg("Starting server")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Failed to start server")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info().Msg("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Fatal().Err(err).Msg("Server forced to shutdown")
	}

	log.Info().Msg("Server exiting")
}
