package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"telechat/infrastructure/broker"
	"telechat/infrastructure/cache"
	"telechat/infrastructure/db"
	"telechat/infrastructure/ws"
	httpDelivery "telechat/internal/delivery/http"
	wsDelivery "telechat/internal/delivery/websocket"
	"telechat/internal/metrics"
	"telechat/internal/repository"
	"telechat/internal/usecase"
	"telechat/pkg/jwt"
	"telechat/pkg/snowflake"
)

func main() {
	log, err := zap.NewProduction()
	if err != nil {
		panic(err)
	}
	defer log.Sync()

	if err := godotenv.Load(); err != nil {
		log.Info("no .env file, using environment")
	}

	ctx := context.Background()

	mongoUri := os.Getenv("MONGODB_URI")
	mongoDbName := os.Getenv("MONGODB_DATABASE")
	mongoStore, err := db.NewMongoStore(ctx, mongoUri, mongoDbName)
	if err != nil {
		log.Fatal("mongodb connect failed", zap.Error(err))
	}
	log.Info("connected to mongodb", zap.String("database", mongoDbName))

	gen, err := newGenerator(log)
	if err != nil {
		log.Fatal("id generator init failed", zap.Error(err))
	}

	userRepo := repository.NewUserRepository(mongoStore.DB)
	sessionRepo := repository.NewSessionRepository(mongoStore.DB)
	messageRepo := repository.NewMessageRepository(mongoStore.DB)
	friendRepo := repository.NewFriendshipRepository(mongoStore.DB)
	refreshRepo := repository.NewRefreshTokenRepository(mongoStore.DB)

	for _, ensure := range []func(context.Context) error{
		userRepo.EnsureIndexes,
		sessionRepo.EnsureIndexes,
		messageRepo.EnsureIndexes,
	} {
		if err := ensure(ctx); err != nil {
			log.Fatal("index creation failed", zap.Error(err))
		}
	}

	jwtSecret := os.Getenv("JWT_SECRET")
	if jwtSecret == "" {
		jwtSecret = "change-this-in-production"
		log.Warn("using default JWT secret; set JWT_SECRET")
	}
	tokens := jwt.NewManager(jwtSecret, 15*time.Minute, 30*24*time.Hour)

	hub := ws.NewHub(log)
	go hub.Run()

	// Redis backs the unread counters, presence flags, token whitelist
	// and the cross-instance message channel. Without it everything
	// degrades to single-instance in-memory state.
	var store cache.Store
	var msgBroker broker.Broker
	redisAddr := os.Getenv("REDIS_ADDR")
	if redisAddr != "" {
		redisStore, err := cache.NewRedisStore(ctx, redisAddr, os.Getenv("REDIS_PASSWORD"), 0)
		if err != nil {
			log.Fatal("redis connect failed", zap.Error(err))
		}
		store = redisStore

		serverId := os.Getenv("SERVER_ID")
		if serverId == "" {
			serverId = "server-1"
		}
		redisBroker := broker.NewRedisBroker(redisStore.Client(), hub, serverId, log)
		go redisBroker.Run(ctx)
		msgBroker = redisBroker
		log.Info("using redis", zap.String("addr", redisAddr), zap.String("serverId", serverId))
	} else {
		store = cache.NewMemStore(time.Minute)
		msgBroker = broker.NewLocalBroker(hub, log)
		log.Info("using in-memory cache and local broker (single instance)")
	}

	unreadUc := usecase.NewUnreadUsecase(store, sessionRepo, messageRepo, log)
	sessionUc := usecase.NewSessionUsecase(sessionRepo, unreadUc, gen, log)
	presenceUc := usecase.NewPresenceUsecase(store, userRepo, friendRepo, msgBroker, log)
	deliveryUc := usecase.NewDeliveryUsecase(gen, sessionUc, sessionRepo, messageRepo, userRepo, unreadUc, msgBroker, hub, log)
	authUc := usecase.NewAuthUsecase(userRepo, refreshRepo, tokens, store, gen, log)

	metrics.Register()

	websocketH := wsDelivery.NewWebsocketHandler(hub, authUc, deliveryUc, presenceUc, log)
	hub.SetOnUnregister(websocketH.HandleDisconnect)

	httpH := httpDelivery.NewHttpHandler(sessionUc, deliveryUc, unreadUc, presenceUc, userRepo, log)
	authH := httpDelivery.NewAuthHandler(authUc, log)
	authMiddleware := httpDelivery.NewAuthMiddleware(authUc)

	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(middleware.Recoverer)
	httpDelivery.MapHttpRoutes(router, httpH, websocketH, authH, authMiddleware)

	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}
	server := &http.Server{Addr: ":" + port, Handler: router}

	go func() {
		log.Info("http server listening", zap.String("port", port))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("http server failed", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("shutdown error", zap.Error(err))
	}
	if err := mongoStore.Close(shutdownCtx); err != nil {
		log.Error("mongodb close error", zap.Error(err))
	}
	if err := store.Close(); err != nil {
		log.Error("cache close error", zap.Error(err))
	}
}

// newGenerator builds the id generator, preferring an explicit
// WORKER_ID over the MAC-derived fallback so clustered deployments can
// pin distinct ids.
func newGenerator(log *zap.Logger) (*snowflake.Generator, error) {
	var workerId int64
	if raw := os.Getenv("WORKER_ID"); raw != "" {
		parsed, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return nil, err
		}
		workerId = parsed
	} else {
		workerId = snowflake.DeriveWorkerId()
		log.Info("derived worker id", zap.Int64("workerId", workerId))
	}
	return snowflake.New(workerId)
}
