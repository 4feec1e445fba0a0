package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	_ "github.com/lib/pq"

	_ "github.com/flowtask/taskd/docs"
	"github.com/flowtask/taskd/internal/config"
	"github.com/flowtask/taskd/internal/handlers"
	"github.com/flowtask/taskd/internal/repositories"
	"github.com/flowtask/taskd/internal/routes"
	"github.com/flowtask/taskd/internal/services"
	"github.com/flowtask/taskd/internal/tasksync"
	"github.com/flowtask/taskd/internal/telemetry"
)

// OpenDB opens and pings the PostgreSQL database.
func OpenDB(ctx context.Context, dsn string) (*sql.DB, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return db, nil
}

// Migrate applies the embedded schema.
func Migrate(ctx context.Context, cfg *config.Config) error {
	db, err := OpenDB(ctx, cfg.Database.DSN)
	if err != nil {
		return err
	}
	defer db.Close()
	if err := repositories.Migrate(ctx, db); err != nil {
		return err
	}
	log.Printf("[migrate] schema applied")
	return nil
}

// Run serves the HTTP API, and the sync worker when enabled, until ctx is
// cancelled.
func Run(ctx context.Context, cfg *config.Config) error {
	if err := cfg.Validate(); err != nil {
		return err
	}

	shutdownTracing, err := telemetry.Init(cfg.Tracing.Enabled, cfg.Tracing.ServiceName)
	if err != nil {
		return err
	}
	defer func() {
		if err := shutdownTracing(context.Background()); err != nil {
			log.Printf("[app][warn] tracing shutdown: %v", err)
		}
	}()

	// === DB ===
	db, err := OpenDB(ctx, cfg.Database.DSN)
	if err != nil {
		return err
	}
	defer func() {
		if err := db.Close(); err != nil {
			log.Printf("[app][warn] close db: %v", err)
		}
	}()

	// === Repos ===
	taskRepo := repositories.NewTaskRepository(db)
	mappingRepo := repositories.NewMappingRepository(db)
	changeRepo := repositories.NewChangeRepository(db)
	transactor := repositories.NewTransactor(db)

	// === Services ===
	tracker := services.NewChangeTracker(changeRepo)
	taskService := services.NewTaskService(taskRepo, mappingRepo, transactor, tracker)

	// === Handlers ===
	taskHandler := handlers.NewTaskHandler(taskService)

	// === Gin ===
	router := gin.New()
	router.Use(gin.Logger())
	router.Use(gin.Recovery())
	router.Use(corsMiddleware())
	routes.SetupRoutes(router, cfg.Tracing.ServiceName, []byte(cfg.Auth.JWTSecret), taskHandler)

	// === Sync ===
	if cfg.Sync.Enabled {
		var providers []tasksync.Provider
		if cfg.Google.ClientID != "" {
			providers = append(providers, tasksync.NewGoogleTasks(cfg.Google.ClientID, cfg.Google.ClientSecret, cfg.Google.RefreshTokens))
		}
		worker := tasksync.NewWorker(changeRepo, mappingRepo, taskRepo, providers, tasksync.Options{
			Interval:    cfg.Sync.Interval,
			BatchSize:   cfg.Sync.BatchSize,
			Concurrency: cfg.Sync.Concurrency,
			RateLimit:   cfg.Sync.RateLimit,
		})
		go worker.Run(ctx)
	}

	// === Run ===
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		log.Printf("[app] listening on %s", srv.Addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	log.Printf("[app] shutting down")
	return srv.Shutdown(shutdownCtx)
}

func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Origin, Content-Type, Authorization")
		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}
