package app

import (
	"context"
	"fmt"
	"log"
	"strconv"
	"time"

	"github.com/AglarEdain/raspberryday/internal/api"
	"github.com/AglarEdain/raspberryday/internal/config"
	"github.com/AglarEdain/raspberryday/internal/database"
	"github.com/AglarEdain/raspberryday/internal/services"
)

type Application struct {
	cfg    *config.Config
	repo   *database.Repository
	queue  *services.QueueService
	relay  *services.CommandRelay
	hub    *api.ViewerHub
	server *api.Server

	stopCleanup chan struct{}
}

func NewApplication(cfg *config.Config) (*Application, error) {
	repo, err := database.NewRepository(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	queue := services.NewQueueService(repo, repo)
	hub := api.NewViewerHub()
	relay := services.NewCommandRelay(queue, hub)
	server := api.NewServer(queue, relay, hub)

	return &Application{
		cfg:         cfg,
		repo:        repo,
		queue:       queue,
		relay:       relay,
		hub:         hub,
		server:      server,
		stopCleanup: make(chan struct{}),
	}, nil
}

func (a *Application) Start() error {
	go a.runCleanup()

	return a.server.Start(":" + strconv.Itoa(a.cfg.HTTPPort))
}

// runCleanup periodically removes displayed entries older than the
// configured retention.
func (a *Application) runCleanup() {
	interval := time.Duration(a.cfg.CleanupIntervalMinutes) * time.Minute
	retention := time.Duration(a.cfg.QueueRetentionHours) * time.Hour

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-a.stopCleanup:
			return
		case <-ticker.C:
			deleted, err := a.queue.Cleanup(context.Background(), retention)
			if err != nil {
				log.Printf("Queue cleanup failed: %v", err)
				continue
			}
			if deleted > 0 {
				log.Printf("Queue cleanup removed %d displayed entries", deleted)
			}
		}
	}
}

func (a *Application) Stop(ctx context.Context) error {
	log.Println("Shutting down server...")
	close(a.stopCleanup)
	a.relay.Shutdown()
	a.hub.Shutdown()
	return a.repo.Close()
}
