package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/pipetrail/pipetrail/internal/config"
	"github.com/pipetrail/pipetrail/internal/db"
	"github.com/pipetrail/pipetrail/internal/graph"
	"github.com/pipetrail/pipetrail/internal/handlers"
	"github.com/pipetrail/pipetrail/internal/logger"
	"github.com/pipetrail/pipetrail/internal/story"
)

func main() {
	cfg, err := config.Load(os.Getenv("PIPETRAIL_CONFIG"))
	if err != nil {
		fmt.Fprintf(os.Stderr, "loading configuration: %v\n", err)
		os.Exit(1)
	}
	logger.Init(cfg.LogLevel)

	driver, err := db.InitNeo4j(cfg.Neo4j)
	if err != nil {
		logger.Errorf("Neo4j connection failed: %v", err)
		os.Exit(1)
	}
	store := graph.NewNeo4jStore(driver, cfg.Neo4j.Database, cfg.Neo4j.Timeout)
	redisClient := db.InitRedis(cfg.Redis)

	manager, err := story.NewManager(store, cfg.StoryVariants)
	if err != nil {
		logger.Errorf("story manager setup failed: %v", err)
		os.Exit(1)
	}

	api := handlers.NewAPI(store, manager, cfg, redisClient)
	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Port),
		Handler: handlers.NewRouter(api),
	}

	go func() {
		logger.Infof("listening on %s", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Errorf("server stopped: %v", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Infof("shutting down")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Warnf("shutdown: %v", err)
	}
	db.CloseNeo4j(driver)
	if redisClient != nil {
		if err := redisClient.Close(); err != nil {
			logger.Warnf("closing Redis client: %v", err)
		}
	}
}
