package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"food_order/internal/auth"
	"food_order/internal/cache"
	"food_order/internal/config"
	"food_order/internal/menu"
	"food_order/internal/middleware"
	"food_order/internal/notify"
	"food_order/internal/order"
	"food_order/internal/queue"
	"food_order/internal/realtime"
	"food_order/internal/router"
	"food_order/internal/store"
	"food_order/internal/storefront"
	rediskey "food_order/pkg/redis"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	rd "github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("load config", "error", err)
		os.Exit(1)
	}
	lvl, _ := cfg.SlogLevel()
	log := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: lvl})).
		With("service", "food-order")
	slog.SetDefault(log)

	if err := run(cfg, log); err != nil {
		log.Error("server exited", "error", err)
		os.Exit(1)
	}
}

func run(cfg config.AppConfig, log *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 1. 连接数据库，自动建表
	db, err := store.Open(cfg.DBDriver, cfg.DBDSN)
	if err != nil {
		return err
	}
	if err := store.Migrate(db); err != nil {
		return fmt.Errorf("db migrate: %w", err)
	}
	st := store.New(db)

	// 2. 缓存：配置了 Redis 用 Redis，否则进程内 LRU
	var (
		kv      cache.KV
		limiter gin.HandlerFunc
	)
	if cfg.RedisAddr != "" {
		rdb := rd.NewClient(&rd.Options{Addr: cfg.RedisAddr, DB: cfg.RedisDB})
		defer rdb.Close()
		if err := rdb.Ping(ctx).Err(); err != nil {
			return fmt.Errorf("redis ping: %w", err)
		}
		kv = rediskey.NewKV(rdb)
		limiter = middleware.OrderRateLimit(rdb, cfg.OrderRateLimit, cfg.OrderRateWindow, log)
	} else {
		mem, err := cache.NewMemory(4096)
		if err != nil {
			return err
		}
		kv = mem
		log.Info("REDIS_ADDR not set, using in-memory cache without rate limiting")
	}

	// 3. 实时推送：本地 Hub，多实例时经 Kafka 转发
	hub := realtime.NewHub(64)
	var pub realtime.Publisher = hub

	g, gctx := errgroup.WithContext(ctx)

	if len(cfg.KafkaBrokers) > 0 {
		producer := queue.NewProducer(cfg.KafkaBrokers, cfg.KafkaEventTopic)
		defer producer.Close()

		instance := uuid.NewString()
		pub = realtime.NewKafkaPublisher(producer, hub, instance)

		consumer := queue.NewConsumer(cfg.KafkaBrokers, cfg.KafkaEventTopic,
			cfg.KafkaGroupPrefix+"-"+instance, realtime.Relay(hub), log)
		g.Go(func() error {
			defer consumer.Close()
			return consumer.Run(gctx)
		})
		log.Info("realtime relay enabled", "topic", cfg.KafkaEventTopic, "instance", instance)
	}

	// 4. 通知队列
	line := notify.NewLineChannel(cfg.LineAPIBase, cfg.LineChannelToken)
	nq := notify.NewQueue(line, log, notify.Options{
		MaxRetries:  cfg.NotifyMaxRetries,
		Pause:       cfg.NotifyPause,
		SendTimeout: cfg.NotifyTimeout,
	})
	defer nq.Close()

	// 5. 业务服务
	front := storefront.New(st, kv, pub, nq, log, cfg.Location())
	engineOpts := order.DefaultOptions()
	engineOpts.CacheTTL = cfg.OrderCacheTTL
	engineOpts.Location = cfg.Location()
	engine := order.NewEngine(st, cache.NewOrders(kv), front, pub, nq, log, engineOpts)
	menuSvc := menu.New(st, kv, pub, nq, log)
	authSvc := auth.NewService(st, []byte(cfg.JWTSecret), cfg.JWTTTL)

	if cfg.AdminPassword != "" {
		if err := authSvc.Seed(ctx, cfg.AdminUsername, cfg.AdminPassword); err != nil {
			return fmt.Errorf("seed admin: %w", err)
		}
	}

	r := gin.Default()
	router.Setup(r, router.Deps{
		Engine:       engine,
		Menu:         menuSvc,
		Storefront:   front,
		Auth:         authSvc,
		Followers:    st,
		Hub:          hub,
		Queue:        nq,
		OrderLimiter: limiter,
		LineSecret:   cfg.LineChannelSecret,
		Log:          log,
	})

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
		// 关闭时取消请求 ctx，SSE 长连接随之退出
		BaseContext: func(net.Listener) context.Context { return gctx },
	}
	g.Go(func() error {
		log.Info("http listening", "addr", cfg.HTTPAddr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	return g.Wait()
}
