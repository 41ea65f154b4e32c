package main

import (
	"context"
	"log"
	"os"
	"time"

	"studymate/internal/api"
	"studymate/internal/attendance"
	"studymate/internal/auth"
	"studymate/internal/chatbot"
	"studymate/internal/config"
	"studymate/internal/ingest"
	"studymate/internal/redis"
	"studymate/internal/search"
	"studymate/internal/storage"
	"studymate/internal/worker"

	"github.com/gin-gonic/gin"
)

func main() {
	cfgPath := os.Getenv("STUDYMATE_CONFIG")
	cfg, err := config.Load(cfgPath)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	dbType := os.Getenv("STUDYMATE_DB")
	if dbType == "" {
		dbType = "sqlite3"
	}
	log.Printf("dbType: %s\n", dbType)
	db, err := storage.Open(dbType, cfg)
	if err != nil {
		log.Fatalf("open database: %v", err)
	}
	defer db.Close()
	if err := storage.Migrate(db, dbType); err != nil {
		log.Fatalf("migrate database: %v", err)
	}

	rdb, err := redis.NewClient(cfg)
	if err != nil {
		log.Fatalf("create redis client: %v", err)
	}
	if rdb != nil {
		defer rdb.Close()
	}

	pool := worker.NewPool(
		cfg.BasicConfig.MinWorkers,
		cfg.BasicConfig.MaxWorkers,
		cfg.BasicConfig.QueueSize,
		time.Duration(cfg.BasicConfig.WorkerIdleTimeout)*time.Minute,
	)

	authService := auth.NewService(db, rdb, 24*time.Hour)
	ingestService := ingest.NewService(db, pool)
	attendanceService := attendance.NewService(db)
	engine := search.NewEngine(search.RulesFromConfig(cfg.Chatbot.CategoryRules))

	provider, err := chatbot.NewProvider(cfg)
	if err != nil {
		// A broken provider config degrades to deterministic replies
		// instead of refusing to start.
		log.Printf("init model provider: %v; continuing without a model", err)
		provider = chatbot.Unavailable{}
	}
	sessions := chatbot.NewRegistry(cfg.Chatbot.SessionCapacity)
	janitorCtx, janitorCancel := context.WithCancel(context.Background())
	defer janitorCancel()
	sessions.StartJanitor(janitorCtx, 10*time.Minute, time.Duration(cfg.Chatbot.SessionIdleTTL)*time.Minute)

	chatbotService := chatbot.NewService(provider, sessions, engine, ingestService, attendanceService)

	fileBase := cfg.BasicConfig.FileBaseDir
	if fileBase == "" {
		fileBase = "./data/uploads"
	}
	handlers := api.NewHandler(authService, ingestService, chatbotService, attendanceService, fileBase)

	router := gin.Default()
	handlers.RegisterRoutes(router)

	addr := cfg.BasicConfig.ServerAddress
	if addr == "" {
		addr = ":8090"
	}

	if err := router.Run(addr); err != nil {
		log.Fatalf("server stopped: %v", err)
	}
}
