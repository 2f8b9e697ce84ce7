// cmd/server/main.go
package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	_ "flamenco-core/docs"
	"flamenco-core/internal/config"
	"flamenco-core/internal/permission"
	"flamenco-core/internal/repository"
	"flamenco-core/internal/repository/badgerdb"
	"flamenco-core/internal/repository/postgresql"
	"flamenco-core/internal/service"
	httptransport "flamenco-core/internal/transport/http"
	"flamenco-core/internal/worker"
)

// @title Flamenco Core API
// @version 1.0
// @description Jobs, tasks and render managers of a render farm.
// @BasePath /
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
func main() {
	configPath := flag.String("config", os.Getenv("CONFIG_FILE"), "path to YAML config")
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("config: %v", err)
	}

	store, err := openStore(ctx, cfg)
	if err != nil {
		log.Fatalf("store: %v", err)
	}
	defer store.Close()

	// Redis
	rdb := redis.NewClient(&redis.Options{Addr: cfg.Redis.Addr})
	if err := rdb.Ping(ctx).Err(); err != nil {
		log.Fatalf("redis: %v", err)
	}
	defer rdb.Close()

	// DI
	queue := service.NewRedisTaskQueue(rdb, cfg.Redis.QueueKey, cfg.Redis.ProcessingKey)
	recomputeQueue := service.NewRedisRecomputeQueue(rdb, cfg.Redis.RecomputeKey)
	hooks := service.NewHooks()
	hooks.OnJobCreated(service.EnqueueCreatedTasks(queue))
	service.NewEventPublisher(rdb, cfg.Redis.EventsStream).Register(hooks)

	gate := permission.NewGate(permission.Roles{
		Admin:     cfg.Roles.Admin,
		ViewItems: cfg.Roles.ViewItems,
		ViewLogs:  cfg.Roles.ViewLogs,
	})
	aggregator := service.NewAggregator(store, cfg.FailurePolicy, hooks, cfg.AggregatorMaxRetries).WithRetryQueue(recomputeQueue)
	managers := service.NewManagerService(store, store, gate, service.NewCoordinator(store), hooks)
	tasks := service.NewTaskService(store, store, managers, gate, aggregator, hooks, queue)
	jobs := service.NewJobService(store, store, managers, tasks, gate, service.FrameCompiler{}, aggregator, hooks)

	go worker.NewPool(recomputeQueue, worker.NewProcessor(aggregator), cfg.RecomputeWorkers).Run(ctx)

	// Reaper: returns tasks and recomputes whose claimer died between pop and ack.
	go func() {
		ticker := time.NewTicker(30 * time.Second)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				n, err := queue.RequeueStale(ctx, 100)
				if err != nil {
					log.Printf("[reaper] requeue error: %v", err)
					continue
				}
				if n > 0 {
					log.Printf("[reaper] requeued %d tasks from processing", n)
				}
				n, err = recomputeQueue.RequeueStale(ctx, 100)
				if err != nil {
					log.Printf("[reaper] requeue recompute error: %v", err)
					continue
				}
				if n > 0 {
					log.Printf("[reaper] requeued %d job recomputes", n)
				}
			}
		}
	}()

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           httptransport.Routes(httptransport.NewHandler(jobs, tasks, managers), []byte(cfg.JWTSecret)),
		ReadHeaderTimeout: 10 * time.Second,
	}

	log.Printf("[server] config http_addr=%s store=%s postgres_dsn=%s badger_dir=%s redis_addr=%s queue_key=%s processing_key=%s events_stream=%s",
		cfg.HTTPAddr, cfg.Store, config.RedactDSN(cfg.PostgresDSN), cfg.BadgerDir,
		cfg.Redis.Addr, cfg.Redis.QueueKey, cfg.Redis.ProcessingKey, cfg.Redis.EventsStream,
	)

	go func() {
		log.Printf("[server] listening on %s", cfg.HTTPAddr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("[server] http: %v", err)
		}
	}()

	<-ctx.Done()
	log.Println("[server] shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("[server] forced shutdown: %v", err)
	}

	log.Println("server stopped")
}

func openStore(ctx context.Context, cfg config.Config) (repository.Store, error) {
	switch cfg.Store {
	case config.StoreBadger:
		return badgerdb.Open(cfg.BadgerDir)
	default:
		pool, err := postgresql.NewPool(ctx, cfg.PostgresDSN)
		if err != nil {
			return nil, err
		}
		return postgresql.NewStore(pool), nil
	}
}
