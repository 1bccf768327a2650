package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	confluentKafka "github.com/confluentinc/confluent-kafka-go/v2/kafka"
	redisDriver "github.com/redis/go-redis/v9"

	"lingua-go/internal/config"
	"lingua-go/internal/handlers/chatserver"
	appKafka "lingua-go/internal/kafka"
	appRedis "lingua-go/internal/redis"
	"lingua-go/internal/relay"
	"lingua-go/internal/storage"
)

func main() {
	// 1. 加载配置
	cfg, err := config.LoadConfig("")
	if err != nil {
		log.Fatalf("无法加载配置: %v", err)
	}
	log.Println("Chat 服务器配置加载成功。")

	// 2. 初始化数据库连接 (连接时恢复房间订阅需要)
	db, err := storage.InitDB(cfg.Database)
	if err != nil {
		log.Fatalf("无法初始化数据库: %v", err)
	}
	log.Println("Chat 服务器数据库连接成功。")

	roomRepo := storage.NewGormChatRoomRepository(db)

	// 3. 初始化 Redis Client 与 Token 黑名单 (升级连接时校验令牌)
	redisClient := redisDriver.NewClient(&redisDriver.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	if _, err = redisClient.Ping(context.Background()).Result(); err != nil {
		log.Fatalf("无法连接到 Redis: %v", err)
	}
	log.Println("成功连接到 Redis")

	tokenBlacklist := appRedis.NewRedisTokenBlacklist(redisClient)

	// 4. 初始化中继 Hub
	hub := relay.NewHub()
	log.Println("Relay Hub 已初始化。")

	// 5. 初始化 WebSocket Handler
	wsHandler := chatserver.NewWebSocketHandler(hub, roomRepo, tokenBlacklist, cfg)

	// 6. 初始化 Kafka 消费者 (API 服务器持久化的房间消息)
	roomEventsConsumer, err := appKafka.NewConfluentKafkaConsumer(cfg.Kafka)
	if err != nil {
		log.Fatalf("无法创建房间事件 Kafka 消费者: %v", err)
	}
	defer roomEventsConsumer.Close()

	consumerCtx, cancelConsumers := context.WithCancel(context.Background())
	defer cancelConsumers()

	go func() {
		log.Printf("Kafka 房间事件消费者启动，监听 topic: %s, GroupID: %s", cfg.Kafka.RoomEventsTopic, cfg.Kafka.RelayConsumerGroup)
		topics := []string{cfg.Kafka.RoomEventsTopic}
		err := roomEventsConsumer.Consume(consumerCtx, topics, cfg.Kafka.RelayConsumerGroup,
			func(ctx context.Context, kafkaMsg *confluentKafka.Message) error {
				var event relay.RoomEvent
				if err := json.Unmarshal(kafkaMsg.Value, &event); err != nil {
					log.Printf("错误: 无法从 Kafka 反序列化房间事件: %v, 原始值: %s", err, string(kafkaMsg.Value))
					return nil // 坏消息不阻塞消费
				}
				hub.DeliverRoomEvent(&event)
				return nil
			})
		if err != nil && !errors.Is(err, context.Canceled) {
			log.Printf("Kafka 房间事件消费者错误: %v", err)
		}
		log.Println("Kafka 房间事件消费者 goroutine 已停止。")
	}()

	// 7. 配置 HTTP 服务器路由
	serveMux := http.NewServeMux()
	serveMux.HandleFunc(cfg.Server.WebSocketPath, wsHandler.ServeWS)

	// 8. 启动 HTTP 服务器
	serverAddr := fmt.Sprintf("%s:%s", cfg.Server.Host, cfg.Server.Port)
	httpServer := &http.Server{
		Addr:           serverAddr,
		Handler:        serveMux,
		ReadTimeout:    cfg.Server.ReadTimeout,
		WriteTimeout:   cfg.Server.WriteTimeout,
		MaxHeaderBytes: cfg.Server.MaxHeaderBytes,
	}

	go func() {
		log.Printf("Chat HTTP 服务器启动于 %s, WebSocket 路径: %s", serverAddr, cfg.Server.WebSocketPath)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("Chat 服务器启动失败: %v", err)
		}
	}()

	// 优雅关闭
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("Chat 服务器准备关闭...")

	cancelConsumers() // 通知 Kafka 消费者停止

	ctxShutdown, cancelShutdown := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancelShutdown()

	if err := httpServer.Shutdown(ctxShutdown); err != nil {
		log.Fatalf("Chat 服务器关闭失败: %v", err)
	}
	log.Println("Chat 服务器已优雅关闭。")
}
