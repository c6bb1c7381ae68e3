package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	redisDriver "github.com/redis/go-redis/v9"

	"github.com/sbuss/voteswap/internal/config"
	"github.com/sbuss/voteswap/internal/handlers/apiserver"
	appKafka "github.com/sbuss/voteswap/internal/kafka"
	appRedis "github.com/sbuss/voteswap/internal/redis"
	"github.com/sbuss/voteswap/internal/services"
	"github.com/sbuss/voteswap/internal/storage"
)

func main() {
	// 1. 加载配置
	cfg, err := config.LoadConfig("")
	if err != nil {
		log.Fatalf("无法加载配置: %v", err)
	}
	log.Println("API 服务器配置加载成功。")

	// 2. 初始化数据库连接
	db, err := storage.InitDB(cfg.Database)
	if err != nil {
		log.Fatalf("无法初始化数据库: %v", err)
	}
	log.Println("API 服务器数据库连接成功。")

	// (可选) 表结构迁移
	if err := storage.AutoMigrateTables(db); err != nil {
		log.Printf("警告：API 服务器数据库表迁移可能失败: %v", err)
	} else {
		log.Println("API 服务器数据库表迁移成功 (如果执行)。")
	}

	// 3. 初始化 Redis Client (年鉴缓存)
	redisClient := redisDriver.NewClient(&redisDriver.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	_, err = redisClient.Ping(context.Background()).Result()
	if err != nil {
		log.Fatalf("无法连接到 Redis: %v", err)
	}
	log.Println("成功连接到 Redis")

	// 4. 初始化 Repositories
	profileRepo := storage.NewGormProfileRepository(db)
	friendshipRepo := storage.NewGormFriendshipRepository(db)
	proposalRepo := storage.NewGormProposalRepository(db)
	stateRepo := appRedis.NewCachedStateRepository(
		redisClient,
		storage.NewGormStateRepository(db),
		cfg.Match.AlmanacCacheTTL,
	)

	// 5. 初始化 Kafka Producer
	kfkProducer, err := appKafka.NewConfluentKafkaProducer(cfg.Kafka)
	if err != nil {
		log.Fatalf("无法创建 Kafka 生产者: %v", err)
	}
	defer kfkProducer.Close()
	log.Println("Kafka 生产者初始化成功 (API Server)。")

	// 6. 初始化 Services
	almanacService := services.NewAlmanacService(stateRepo)
	profileService := services.NewProfileService(profileRepo, friendshipRepo, almanacService)
	matchService := services.NewMatchService(profileRepo, friendshipRepo, proposalRepo, almanacService)
	pairingService := services.NewPairingService(profileRepo, proposalRepo, kfkProducer, cfg.Kafka)

	// 7. 初始化 Handlers
	profileHandler := apiserver.NewProfileHandler(profileService)
	matchHandler := apiserver.NewMatchHandler(matchService)
	proposalHandler := apiserver.NewProposalHandler(pairingService)
	almanacHandler := apiserver.NewAlmanacHandler(almanacService)

	// 8. 设置 HTTP 路由
	r := mux.NewRouter()

	// 8.1 API 子路由
	apiRouter := r.PathPrefix("/api/v1").Subrouter()

	// 档案路由
	apiRouter.HandleFunc("/profiles", profileHandler.CreateProfileHandler).Methods(http.MethodPost)
	apiRouter.HandleFunc("/profiles/{profileID:[0-9]+}", profileHandler.GetProfileHandler).Methods(http.MethodGet)
	apiRouter.HandleFunc("/profiles/{profileID:[0-9]+}", profileHandler.UpdateProfileHandler).Methods(http.MethodPut)
	apiRouter.HandleFunc("/profiles/{profileID:[0-9]+}/friends", profileHandler.ListFriendsHandler).Methods(http.MethodGet)
	apiRouter.HandleFunc("/profiles/{profileID:[0-9]+}/friends", profileHandler.AddFriendHandler).Methods(http.MethodPost)

	// 匹配路由
	apiRouter.HandleFunc("/profiles/{profileID:[0-9]+}/matches", matchHandler.GetMatchesHandler).Methods(http.MethodGet)

	// 换票提议路由
	proposalRouter := apiRouter.PathPrefix("/proposals").Subrouter()
	proposalRouter.HandleFunc("", proposalHandler.ProposeSwapHandler).Methods(http.MethodPost)
	proposalRouter.HandleFunc("/{proposalID:[0-9]+}/confirm", proposalHandler.ConfirmProposalHandler).Methods(http.MethodPost)
	proposalRouter.HandleFunc("/{proposalID:[0-9]+}/reject", proposalHandler.RejectProposalHandler).Methods(http.MethodPost)
	apiRouter.HandleFunc("/profiles/{profileID:[0-9]+}/proposals", proposalHandler.ListProposalsHandler).Methods(http.MethodGet)

	// 8.2 公开路由 (选情年鉴只读查询)
	r.HandleFunc("/states/swing", almanacHandler.ListSwingStatesHandler).Methods(http.MethodGet)
	r.HandleFunc("/states/safe", almanacHandler.ListSafeStatesHandler).Methods(http.MethodGet)
	r.HandleFunc("/states/{name}", almanacHandler.GetStateHandler).Methods(http.MethodGet)

	// 9. 初始化并启动 Kafka 消费者 (用于处理换票提议事件)
	proposalConsumer, err := appKafka.NewConfluentKafkaConsumer(cfg.Kafka)
	if err != nil {
		log.Fatalf("无法创建换票提议 Kafka 消费者: %v", err)
	}
	defer proposalConsumer.Close()

	consumerCtx, cancelConsumers := context.WithCancel(context.Background())
	defer cancelConsumers()

	go func() {
		topics := []string{cfg.Kafka.ProposalsTopic}
		log.Printf("Kafka 换票提议消费者启动，监听 topic: %s, GroupID: %s", cfg.Kafka.ProposalsTopic, cfg.Kafka.ConsumerGroup)
		err := proposalConsumer.Consume(consumerCtx, topics, cfg.Kafka.ConsumerGroup, pairingService.ProcessProposalEvent)
		if err != nil && !errors.Is(err, context.Canceled) {
			log.Printf("Kafka 换票提议消费者错误: %v", err)
		}
		log.Println("Kafka 换票提议消费者 goroutine 已停止。")
	}()

	// 10. 启动 HTTP 服务器并实现优雅关闭
	serverAddr := fmt.Sprintf("%s:%s", cfg.APIServer.Host, cfg.APIServer.Port)

	// 定义 CORS 选项，从配置中读取
	allowedOrigins := handlers.AllowedOrigins(cfg.APIServer.CORS.AllowedOrigins)
	allowedMethods := handlers.AllowedMethods(cfg.APIServer.CORS.AllowedMethods)
	allowedHeaders := handlers.AllowedHeaders(cfg.APIServer.CORS.AllowedHeaders)
	exposedHeaders := handlers.ExposedHeaders(cfg.APIServer.CORS.ExposedHeaders)
	maxAge := handlers.MaxAge(cfg.APIServer.CORS.MaxAge)

	corsOptions := []handlers.CORSOption{
		allowedOrigins,
		allowedMethods,
		allowedHeaders,
		exposedHeaders,
		maxAge,
	}
	if cfg.APIServer.CORS.AllowCredentials {
		corsOptions = append(corsOptions, handlers.AllowCredentials())
	}

	// 将主路由器 r 包装在 CORS 中间件中
	corsHandler := handlers.CORS(corsOptions...)(r)

	srv := &http.Server{
		Addr:         serverAddr,
		Handler:      corsHandler,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  time.Second * 60,
	}

	go func() {
		log.Printf("API 服务器启动于 %s", serverAddr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("API 服务器启动失败: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("收到关闭信号，正在关闭 API 服务器...")

	cancelConsumers() // Signal Kafka consumer to stop
	log.Println("正在等待 Kafka 消费者停止...")

	ctxShutdown, cancelShutdown := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancelShutdown()

	if err := srv.Shutdown(ctxShutdown); err != nil {
		log.Fatalf("API 服务器强制关闭: %v", err)
	}

	log.Println("API 服务器已成功关闭")
}
