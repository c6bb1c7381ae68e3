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

	"github.com/sbuss/voteswap/internal/config"
	"github.com/sbuss/voteswap/internal/handlers/notifyserver"
	appKafka "github.com/sbuss/voteswap/internal/kafka"
	kafkaHandlers "github.com/sbuss/voteswap/internal/kafka/handlers"
	"github.com/sbuss/voteswap/internal/websocket"
)

func main() {
	// 1. 加载配置
	cfg, err := config.LoadConfig("")
	if err != nil {
		log.Fatalf("无法加载配置: %v", err)
	}
	log.Println("通知服务器配置加载成功。")

	// 2. 初始化 WebSocket Hub
	hub := websocket.NewHub()
	go hub.Run() // 在 goroutine 中运行 Hub
	log.Println("WebSocket Hub 已启动。")

	// 3. 初始化 WebSocket Handler
	wsHandler := notifyserver.NewWebSocketHandler(hub, cfg)

	// 4. 初始化 Kafka 消费者 (用于接收待推送的通知)
	notificationConsumer, err := appKafka.NewConfluentKafkaConsumer(cfg.Kafka)
	if err != nil {
		log.Fatalf("无法创建通知 Kafka 消费者: %v", err)
	}
	defer notificationConsumer.Close()

	consumerLogic := kafkaHandlers.NewNotificationConsumerLogic(hub)

	// 为 Kafka 消费者创建可以取消的上下文
	consumerCtx, cancelConsumers := context.WithCancel(context.Background())
	defer cancelConsumers()

	// 4.1 启动通知消费者 Goroutine
	// 每个通知服务器实例使用独立的消费者组可以让所有实例都收到全部通知；
	// 当前部署单实例，共用 NotifyConsumerGroup 即可。
	go func() {
		topics := []string{cfg.Kafka.NotificationsTopic}
		log.Printf("Kafka 通知消费者启动，监听 topic: %s, GroupID: %s", cfg.Kafka.NotificationsTopic, cfg.Kafka.NotifyConsumerGroup)
		if err := notificationConsumer.Consume(consumerCtx, topics, cfg.Kafka.NotifyConsumerGroup, consumerLogic.HandleNotification); err != nil && !errors.Is(err, context.Canceled) {
			log.Printf("Kafka 通知消费者错误: %v", err)
		}
		log.Println("Kafka 通知消费者 goroutine 已停止。")
	}()

	// 5. 配置 HTTP 服务器路由
	mux := http.NewServeMux()
	mux.HandleFunc(cfg.Server.WebSocketPath, wsHandler.ServeWS)

	// 6. 启动 HTTP 服务器
	serverAddr := fmt.Sprintf("%s:%s", cfg.Server.Host, cfg.Server.Port)
	httpServer := &http.Server{
		Addr:           serverAddr,
		Handler:        mux,
		ReadTimeout:    cfg.Server.ReadTimeout,
		WriteTimeout:   cfg.Server.WriteTimeout,
		MaxHeaderBytes: cfg.Server.MaxHeaderBytes,
	}

	go func() {
		log.Printf("通知服务器启动于 %s, WebSocket 路径: %s", serverAddr, cfg.Server.WebSocketPath)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("通知服务器启动失败: %v", err)
		}
	}()

	// 优雅关闭
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("通知服务器准备关闭...")

	cancelConsumers() // 通知 Kafka 消费者停止
	log.Println("正在等待 Kafka 消费者停止...")

	ctxShutdown, cancelShutdown := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancelShutdown()

	if err := httpServer.Shutdown(ctxShutdown); err != nil {
		log.Fatalf("通知服务器关闭失败: %v", err)
	}
	log.Println("通知服务器已优雅关闭。")
}
