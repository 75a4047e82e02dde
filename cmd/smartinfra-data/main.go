package main

import (
	"context"
	"database/sql"
	"os"
	"os/signal"
	"syscall"
	"time"

	"smartinfra-data/internal/config"
	"smartinfra-data/internal/database"
	httpapi "smartinfra-data/internal/http"
	"smartinfra-data/internal/logger"
	"smartinfra-data/internal/mqtt"
	"smartinfra-data/internal/repository"
	"smartinfra-data/internal/service"
	"smartinfra-data/internal/store"
	"smartinfra-data/internal/stream"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
)

func main() {
	cfg := config.Load()

	log, err := logger.NewLogger(cfg.Log.Level, cfg.Log.Format, "smartinfra-data")
	if err != nil {
		panic(err)
	}
	defer log.Sync()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Redis：缓存 + 工单事件流。连不上时退化为内存缓存 + 空发布器。
	var kv store.KV
	var publisher stream.Publisher
	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	if err := redisClient.Ping(ctx).Err(); err != nil {
		log.Warn("redis unavailable, using in-memory cache and nop publisher", zap.Error(err))
		kv = store.NewMemoryKV()
		publisher = stream.NopPublisher{}
		_ = redisClient.Close()
		redisClient = nil
	} else {
		kv = store.NewRedisKV(redisClient)
		publisher = stream.NewRedisPublisher(redisClient, cfg.Ticket.EventStream, log)
	}

	// 存储：Postgres 可用时用 DB repo，否则退回内存 repo（联调用）
	var db *sql.DB
	var usersRepo repository.UsersRepository
	var reportsRepo repository.ReportsRepository
	var detectionsRepo repository.DetectionsRepository
	var potholesRepo repository.PotholesRepository
	var ticketsRepo repository.TicketsRepository
	var workersRepo repository.WorkersRepository
	var proofsRepo repository.WorkProofsRepository

	if cfg.DBEnabled {
		if d, err := database.NewPostgresDB(&cfg.Database); err == nil {
			db = d
			log.Info("DB enabled for smartinfra-data")
		} else {
			log.Warn("DB enabled but connection failed, falling back to memory repositories", zap.Error(err))
		}
	}
	if db != nil {
		usersRepo = repository.NewPostgresUsersRepository(db)
		reportsRepo = repository.NewPostgresReportsRepository(db)
		detectionsRepo = repository.NewPostgresDetectionsRepository(db)
		potholesRepo = repository.NewPostgresPotholesRepository(db)
		ticketsRepo = repository.NewPostgresTicketsRepository(db)
		workersRepo = repository.NewPostgresWorkersRepository(db)
		proofsRepo = repository.NewPostgresWorkProofsRepository(db)
	} else {
		memWorkers := repository.NewMemoryWorkersRepository()
		memProofs := repository.NewMemoryWorkProofsRepository()
		usersRepo = repository.NewMemoryUsersRepository()
		reportsRepo = repository.NewMemoryReportsRepository()
		detectionsRepo = repository.NewMemoryDetectionsRepository()
		potholesRepo = repository.NewMemoryPotholesRepository()
		ticketsRepo = repository.NewMemoryTicketsRepository(memWorkers, memProofs)
		workersRepo = memWorkers
		proofsRepo = memProofs
	}

	// 服务装配
	userService := service.NewUserService(usersRepo, log)
	reportService := service.NewReportService(reportsRepo, log)
	priorityService := service.NewPriorityService(potholesRepo, detectionsRepo, &cfg.Priority, log)
	roadInfoService := service.NewRoadInfoService(potholesRepo, priorityService, kv, &cfg.Overpass, log)
	detectionService := service.NewDetectionService(detectionsRepo, reportsRepo, potholesRepo, &cfg.Priority, log)
	ticketService := service.NewTicketService(ticketsRepo, potholesRepo, publisher, log)
	proofService := service.NewWorkProofService(proofsRepo, ticketsRepo, ticketService, log)
	workerService := service.NewWorkerService(workersRepo, ticketsRepo, log)

	// 路由
	router := httpapi.NewRouter(log)
	router.RegisterRoutes(&httpapi.Handlers{
		Users:      httpapi.NewUserHandler(userService, log),
		Reports:    httpapi.NewReportHandler(reportService, log),
		Detections: httpapi.NewDetectionHandler(detectionService, log),
		Media:      httpapi.NewMediaDetectionsHandler(detectionService, log),
		Potholes:   httpapi.NewPotholeHandler(potholesRepo, priorityService, roadInfoService, log),
		Tickets:    httpapi.NewTicketHandler(ticketService, proofService, httpapi.NewTicketExporter(ticketService, log), log),
		Proofs:     httpapi.NewProofHandler(proofService, log),
		Workers:    httpapi.NewWorkerHandler(workerService, ticketService, log),
	})

	// MQTT 检测接入（可选）
	var mqttClient *mqtt.Client
	if cfg.MQTT.Enabled {
		c, err := mqtt.NewClient(&cfg.MQTT, log)
		if err != nil {
			log.Warn("MQTT enabled but connection failed, detections intake is HTTP only", zap.Error(err))
		} else {
			mqttClient = c
			broker := mqtt.NewDetectionBroker(detectionService, log)
			if err := mqttClient.Subscribe(cfg.MQTT.Topic, cfg.MQTT.QoS, broker.HandleMessage); err != nil {
				log.Error("MQTT subscribe failed", zap.String("topic", cfg.MQTT.Topic), zap.Error(err))
			} else {
				log.Info("MQTT detection intake subscribed", zap.String("topic", cfg.MQTT.Topic))
			}
		}
	}

	srv := service.NewServer(cfg.HTTP.Addr, router, log)

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-sigCh:
		cancel()
	case err := <-errCh:
		log.Error("HTTP server exited", zap.Error(err))
		cancel()
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	_ = srv.Stop(shutdownCtx)
	if mqttClient != nil {
		mqttClient.Disconnect()
	}
	if redisClient != nil {
		_ = redisClient.Close()
	}
	if db != nil {
		_ = db.Close()
	}
}
