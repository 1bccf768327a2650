package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	redisDriver "github.com/redis/go-redis/v9"

	"lingua-go/internal/auth"
	"lingua-go/internal/config"
	"lingua-go/internal/handlers/apiserver"
	appKafka "lingua-go/internal/kafka"
	"lingua-go/internal/middleware"
	appRedis "lingua-go/internal/redis"
	"lingua-go/internal/services"
	"lingua-go/internal/storage"
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

	if err := storage.AutoMigrateTables(db); err != nil {
		log.Printf("警告：API 服务器数据库表迁移可能失败: %v", err)
	}

	// 3. 初始化 Redis Client 与 Token 黑名单
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

	// 4. 初始化 Repositories
	userRepo := storage.NewGormUserRepository(db)
	friendReqRepo := storage.NewGormFriendRequestRepository(db)
	friendshipRepo := storage.NewGormFriendshipRepository(db)
	postRepo := storage.NewGormPostRepository(db)
	roomRepo := storage.NewGormChatRoomRepository(db)

	// 5. 初始化 Kafka Producer
	kfkProducer, err := appKafka.NewConfluentKafkaProducer(cfg.Kafka)
	if err != nil {
		log.Fatalf("无法创建 Kafka 生产者: %v", err)
	}
	defer kfkProducer.Close()
	log.Println("Kafka 生产者初始化成功 (API Server)。")

	// 6. 初始化 Services
	googleVerifier := auth.NewGoogleVerifier(cfg.Google)
	authService := services.NewAuthService(userRepo, tokenBlacklist, googleVerifier, cfg)
	userService := services.NewUserService(userRepo, friendshipRepo)
	friendService := services.NewFriendService(db, userRepo, friendReqRepo, friendshipRepo, kfkProducer, cfg.Kafka)
	postService := services.NewPostService(postRepo, userRepo)
	roomService := services.NewChatRoomService(db, roomRepo, kfkProducer, cfg.Kafka, cfg.ChatRoom)

	// 6.1 初始化本地文件存储
	storageBaseURL := "/uploads"
	storageService, err := storage.NewLocalStorageService(cfg.Storage, storageBaseURL)
	if err != nil {
		log.Fatalf("无法初始化本地存储服务: %v", err)
	}
	log.Println("本地存储服务初始化成功。")

	// 7. 初始化 Handlers
	authHandler := apiserver.NewAuthHandler(authService, cfg.Auth)
	userHandler := apiserver.NewUserHandler(userService)
	friendHandler := apiserver.NewFriendHandler(friendService)
	postHandler := apiserver.NewPostHandler(postService)
	roomHandler := apiserver.NewChatRoomHandler(roomService)
	uploadHandler := apiserver.NewUploadHandler(storageService, cfg.Storage)

	// 8. 设置 HTTP 路由
	r := mux.NewRouter()

	// 8.1 认证路由 (公开)
	authRouter := r.PathPrefix("/api/v1/auth").Subrouter()
	authRouter.HandleFunc("/signup", authHandler.Signup).Methods(http.MethodPost)
	authRouter.HandleFunc("/login", authHandler.Login).Methods(http.MethodPost)
	authRouter.HandleFunc("/google", authHandler.GoogleLogin).Methods(http.MethodPost)

	authMW := middleware.AuthMiddleware(cfg.Auth, tokenBlacklist, userRepo)

	// 8.2 API 子路由 (需要认证)
	apiRouter := r.PathPrefix("/api/v1").Subrouter()
	apiRouter.Use(authMW)

	// 登出需要认证才能取得 JTI
	apiRouter.HandleFunc("/auth/logout", authHandler.Logout).Methods(http.MethodPost)

	// 用户路由
	apiRouter.HandleFunc("/users/me", userHandler.GetMe).Methods(http.MethodGet)
	apiRouter.HandleFunc("/users/me", userHandler.UpdateMe).Methods(http.MethodPut)
	apiRouter.HandleFunc("/users/recommended", userHandler.GetRecommended).Methods(http.MethodGet)
	apiRouter.HandleFunc("/users/{userID:[0-9]+}", userHandler.GetUser).Methods(http.MethodGet)

	// 好友请求路由
	friendRequestRouter := apiRouter.PathPrefix("/friend-requests").Subrouter()
	friendRequestRouter.HandleFunc("", friendHandler.SendFriendRequest).Methods(http.MethodPost)
	friendRequestRouter.HandleFunc("/incoming", friendHandler.ListIncomingRequests).Methods(http.MethodGet)
	friendRequestRouter.HandleFunc("/outgoing", friendHandler.ListOutgoingRequests).Methods(http.MethodGet)
	friendRequestRouter.HandleFunc("/{requestID:[0-9]+}/accept", friendHandler.AcceptFriendRequest).Methods(http.MethodPost)
	apiRouter.HandleFunc("/friends", friendHandler.ListFriends).Methods(http.MethodGet)

	// 动态路由
	apiRouter.HandleFunc("/posts", postHandler.ListPosts).Methods(http.MethodGet)
	apiRouter.HandleFunc("/posts", postHandler.CreatePost).Methods(http.MethodPost)
	apiRouter.HandleFunc("/posts/{postID:[0-9]+}/comments", postHandler.AddComment).Methods(http.MethodPost)
	apiRouter.HandleFunc("/posts/{postID:[0-9]+}/like", postHandler.ToggleLike).Methods(http.MethodPost)

	// 聊天室路由
	roomRouter := apiRouter.PathPrefix("/chat/rooms").Subrouter()
	roomRouter.HandleFunc("", roomHandler.CreateRoom).Methods(http.MethodPost)
	roomRouter.HandleFunc("", roomHandler.ListRooms).Methods(http.MethodGet)
	roomRouter.HandleFunc("/{roomID}", roomHandler.GetRoom).Methods(http.MethodGet)
	roomRouter.HandleFunc("/{roomID}/join", roomHandler.JoinRoom).Methods(http.MethodPost)
	roomRouter.HandleFunc("/{roomID}/leave", roomHandler.LeaveRoom).Methods(http.MethodPost)
	roomRouter.HandleFunc("/{roomID}/participants", roomHandler.GetParticipants).Methods(http.MethodGet)
	roomRouter.HandleFunc("/{roomID}/participants/{userID:[0-9]+}", roomHandler.RemoveParticipant).Methods(http.MethodDelete)
	roomRouter.HandleFunc("/{roomID}/messages", roomHandler.GetMessages).Methods(http.MethodGet)
	roomRouter.HandleFunc("/{roomID}/messages", roomHandler.SendMessage).Methods(http.MethodPost)

	// 文件上传路由
	apiRouter.HandleFunc("/upload", uploadHandler.UploadFile).Methods(http.MethodPost)

	// 8.3 静态文件服务路由 - 用于访问上传的文件
	staticPath := strings.TrimSuffix(storageBaseURL, "/") + "/"
	localDir := http.Dir(cfg.Storage.LocalPath)
	r.PathPrefix(staticPath).Handler(http.StripPrefix(staticPath, http.FileServer(localDir)))
	log.Printf("提供静态文件服务于 %s -> %s", staticPath, cfg.Storage.LocalPath)

	// 9. 初始化并启动 Kafka 消费者 (好友请求入库)
	friendReqConsumer, err := appKafka.NewConfluentKafkaConsumer(cfg.Kafka)
	if err != nil {
		log.Fatalf("无法创建好友请求 Kafka 消费者: %v", err)
	}
	defer friendReqConsumer.Close()

	consumerCtx, cancelConsumers := context.WithCancel(context.Background())
	defer cancelConsumers()

	go func() {
		topics := []string{cfg.Kafka.FriendRequestTopic}
		log.Printf("Kafka 好友请求消费者启动，监听 topic: %s, GroupID: %s", cfg.Kafka.FriendRequestTopic, cfg.Kafka.ConsumerGroup)
		err := friendReqConsumer.Consume(consumerCtx, topics, cfg.Kafka.ConsumerGroup, friendService.ProcessFriendRequest)
		if err != nil && !errors.Is(err, context.Canceled) {
			log.Printf("Kafka 好友请求消费者错误: %v", err)
		}
		log.Println("Kafka 好友请求消费者 goroutine 已停止。")
	}()

	// 10. 启动 HTTP 服务器并实现优雅关闭
	serverAddr := fmt.Sprintf("%s:%s", cfg.APIServer.Host, cfg.APIServer.Port)

	corsOptions := []handlers.CORSOption{
		handlers.AllowedOrigins(cfg.APIServer.CORS.AllowedOrigins),
		handlers.AllowedMethods(cfg.APIServer.CORS.AllowedMethods),
		handlers.AllowedHeaders(cfg.APIServer.CORS.AllowedHeaders),
		handlers.ExposedHeaders(cfg.APIServer.CORS.ExposedHeaders),
		handlers.MaxAge(cfg.APIServer.CORS.MaxAge),
	}
	if cfg.APIServer.CORS.AllowCredentials {
		corsOptions = append(corsOptions, handlers.AllowCredentials())
	}
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

	ctxShutdown, cancelShutdown := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancelShutdown()

	if err := srv.Shutdown(ctxShutdown); err != nil {
		log.Fatalf("API 服务器强制关闭: %v", err)
	}

	log.Println("API 服务器已成功关闭")
}
