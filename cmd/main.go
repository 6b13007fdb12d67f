package main

import (
	"log"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/zenkaedev/Zenkae-sub000/config"
	"github.com/zenkaedev/Zenkae-sub000/internal/consumer"
	"github.com/zenkaedev/Zenkae-sub000/internal/handlers"
	"github.com/zenkaedev/Zenkae-sub000/internal/repositories"
	"github.com/zenkaedev/Zenkae-sub000/internal/routers"
	"github.com/zenkaedev/Zenkae-sub000/internal/services"
	"github.com/zenkaedev/Zenkae-sub000/internal/storage"
	"github.com/zenkaedev/Zenkae-sub000/internal/utils"
	"github.com/zenkaedev/Zenkae-sub000/middleware/jwt"
	logger "github.com/zenkaedev/Zenkae-sub000/middleware/log"
	"github.com/zenkaedev/Zenkae-sub000/pkg/mq"
	"github.com/zenkaedev/Zenkae-sub000/pkg/ratelimit"
	pkgutils "github.com/zenkaedev/Zenkae-sub000/pkg/utils"
	"github.com/zenkaedev/Zenkae-sub000/pkg/ws"
)

func main() {
	cfg, err := config.LoadConfig("./config.toml")
	if err != nil {
		log.Fatalf("配置初始化失败: %v", err)
	}

	// 初始化日志
	zlog, err := logger.NewLogger(&cfg.Logging)
	if err != nil {
		log.Fatalf("日志初始化失败: %v", err)
	}
	defer zlog.Close()

	// 初始化 Worker Pool，用于归档落库等异步任务
	pool := utils.NewWorkerPool(cfg.WorkerPool.Size, cfg.WorkerPool.QueueSize)
	pool.Start()
	defer pool.Stop()

	// 初始化 Redis（Party 实时文档库，必需）
	redisClient, err := storage.InitRedis(cfg.Redis.Host, cfg.Redis.Port, cfg.Redis.Password, cfg.Redis.DB, cfg.Redis.PoolSize, cfg.Redis.MinIdleConns)
	if err != nil {
		log.Fatalf("redis 初始化失败: %v", err)
	}

	// 初始化 PostgreSQL（归档库，可降级）
	var archiveRepo *repositories.ArchiveRepository
	dsn := storage.BuildDSN(cfg.Postgres.Host, cfg.Postgres.Port, cfg.Postgres.User, cfg.Postgres.Password, cfg.Postgres.DBName)
	postgres, err := storage.InitPostgres(dsn, cfg.Postgres.MaxIdleConns, cfg.Postgres.MaxOpenConns)
	if err != nil {
		log.Printf("postgres 初始化失败: %v。历史归档不可用，系统以降级模式运行。", err)
	} else {
		archiveRepo = repositories.NewArchiveRepository(postgres)
	}

	// 初始化仓储层
	partyRepo := repositories.NewPartyRepository(redisClient)
	totemRepo := repositories.NewTotemRepository(redisClient)

	// 初始化一致性哈希环（用户通知按环路由到网关节点）
	ring := pkgutils.NewHashRing(128)
	for node, weight := range cfg.Gateway.Nodes {
		ring.Add(node, weight)
	}

	// 初始化 WebSocket Hub（快照广播 + 用户通知）
	hub := ws.NewHub(redisClient, ring, cfg.Gateway.NodeID)
	go hub.Run()

	// 初始化 Kafka Producer（可降级：仅本地日志，不发通知事件）
	var notifier services.Notifier
	kafkaProducer, err := mq.NewKafkaProducer(cfg.Kafka.Brokers, cfg.Kafka.Topic)
	if err != nil {
		log.Printf("Kafka 生产者初始化失败: %v。通知事件不可用，系统以降级模式运行。", err)
	} else {
		defer kafkaProducer.Close()
		notifier = kafkaProducer
	}

	// 初始化服务层（槽位分配引擎）
	partyService := services.NewPartyService(partyRepo, totemRepo, archiveRepo, notifier, hub, pool, zlog.Logger)

	// 初始化 Kafka Consumer（把 Party 事件转成用户私信提醒）
	if kafkaProducer != nil {
		eventConsumer := consumer.NewPartyEventConsumer(archiveRepo, hub)
		consumer.StartConsumer(cfg.Kafka.Brokers, cfg.Kafka.GroupID, cfg.Kafka.Topic, eventConsumer)
	}

	// 网关服务令牌与限流
	tokenManager := jwt.NewTokenManager(cfg.JWT.Secret, cfg.JWT.ExpireHours, cfg.JWT.RefreshHours)
	limiter := ratelimit.NewTokenBucketLimiter(redisClient, zlog.Logger, cfg.RateLimit.Fallback)

	partyHandler := handlers.NewPartyHandler(partyService, limiter, cfg.RateLimit.JoinPerMinute)

	// 配置并创建 Gin 引擎
	gin.SetMode(cfg.Server.Mode)

	r := gin.Default()

	routers.SetupRoutes(r, tokenManager, partyHandler, hub)

	// 启动服务器
	log.Printf("正在启动服务器，监听端口 :%d\n", cfg.Server.Port)
	if err := r.Run(":" + strconv.FormatInt(int64(cfg.Server.Port), 10)); err != nil {
		log.Fatalf("启动服务器失败: %v", err)
	}
}
