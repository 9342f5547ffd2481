package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"

	"github.com/adi-index/adi/internal/config"
	"github.com/adi-index/adi/internal/indexer"
)

// defaultWorkspace is the id the server registers its project under.
const defaultWorkspace = "default"

func main() {
	_ = godotenv.Load()

	if err := run(); err != nil {
		log.Fatalf("❌ %v", err)
	}
}

func run() error {
	ctx := context.Background()

	root, err := resolveRoot()
	if err != nil {
		return err
	}
	log.Printf("Project path: %s", root)

	cfgManager, err := config.NewManager()
	if err != nil {
		return fmt.Errorf("failed to create config manager: %w", err)
	}
	cfg, err := cfgManager.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	manager, err := indexer.NewManager(ctx, indexer.ManagerConfig{
		Embedder:          buildEmbedder(cfg),
		CatalogPath:       catalogPath(root),
		EnableFileWatcher: cfg.AutoWatch || os.Getenv("ADI_WATCH") == "1",
	})
	if err != nil {
		return fmt.Errorf("failed to create index manager: %w", err)
	}
	defer manager.Stop()

	if err := manager.AddWorkspace(ctx, defaultWorkspace, root); err != nil {
		return fmt.Errorf("failed to register workspace: %w", err)
	}

	// Kick off the first build in the background; queries serve the
	// warm-started snapshot (or NoIndex) until it publishes.
	if _, err := manager.StartBuild(ctx, defaultWorkspace); err != nil {
		log.Printf("⚠️  Initial build failed to start: %v", err)
	}

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	registerRoutes(router, manager)

	port := os.Getenv("PORT")
	if port == "" {
		port = "3000"
	}

	errCh := make(chan error, 1)
	go func() {
		log.Printf("Listening on http://0.0.0.0:%s", port)
		errCh <- router.Run("0.0.0.0:" + port)
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return err
	case sig := <-sigCh:
		log.Printf("🛑 Received %v, shutting down", sig)
		return nil
	}
}

// resolveRoot takes the project path from argv[1] or the current dir.
func resolveRoot() (string, error) {
	root := ""
	if len(os.Args) > 1 {
		root = os.Args[1]
	} else {
		cwd, err := os.Getwd()
		if err != nil {
			return "", fmt.Errorf("failed to get current directory: %w", err)
		}
		root = cwd
	}

	absRoot, err := filepath.Abs(root)
	if err != nil {
		return "", fmt.Errorf("failed to resolve project path: %w", err)
	}
	return absRoot, nil
}

// catalogPath keeps the snapshot catalog inside the workspace dot-dir.
func catalogPath(root string) string {
	if p := os.Getenv("ADI_DB"); p != "" {
		return p
	}
	dir := filepath.Join(root, ".adi")
	if err := os.MkdirAll(dir, 0755); err != nil {
		log.Printf("⚠️  Failed to create %s: %v (catalog disabled)", dir, err)
		return ""
	}
	return filepath.Join(dir, "catalog.db")
}

// buildEmbedder picks the scoring model from user config.
func buildEmbedder(cfg *config.Config) indexer.Embedder {
	if cfg.EmbeddingProvider == "openai" && cfg.EmbeddingKey != "" {
		log.Printf("📚 Using OpenAI embeddings (%s)", cfg.EmbeddingModel)
		return indexer.NewOpenAIEmbedder(cfg.EmbeddingKey, cfg.BaseURL, cfg.EmbeddingModel, 0)
	}
	return indexer.NewHashingEmbedder(256)
}
