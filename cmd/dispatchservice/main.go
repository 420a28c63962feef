package main

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/nats-io/nats.go"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"google.golang.org/grpc"

	"github.com/example/ridedispatch/internal/config"
	"github.com/example/ridedispatch/internal/dispatch/engine"
	"github.com/example/ridedispatch/internal/dispatch/handler"
	"github.com/example/ridedispatch/internal/dispatch/queue"
	"github.com/example/ridedispatch/internal/dispatch/registry"
	ratelimitmw "github.com/example/ridedispatch/internal/http/middleware"
	"github.com/example/ridedispatch/internal/location"
	"github.com/example/ridedispatch/pkg/events"
	"github.com/example/ridedispatch/pkg/observability"
)

type appConfig struct {
	HTTPAddr        string
	GRPCAddr        string
	RedisAddr       string
	NATSURL         string
	WorldFile       string
	MaxRadiusKM     float64
	AverageSpeedKMH float64
	PollInterval    time.Duration
	JWTSecret       string
	RateReadRPS     float64
	RateReadBurst   float64
	RateWriteRPS    float64
	RateWriteBurst  float64
	Debug           bool
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg := loadConfig()

	logger := observability.SetupLogger("dispatch-service", cfg.Debug)
	defer logger.Sync() //nolint:errcheck

	shutdown, err := observability.SetupTracer(ctx, "dispatch-service")
	if err != nil {
		logger.Warn("tracer setup failed", zap.Error(err))
	} else {
		defer shutdown(context.Background())
	}

	world, err := loadWorld(cfg)
	if err != nil {
		logger.Fatal("world load", zap.Error(err))
	}

	var redisClient *redis.Client
	if cfg.RedisAddr != "" {
		redisClient = redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		if err := redisClient.Ping(ctx).Err(); err != nil {
			logger.Fatal("redis ping", zap.Error(err))
		}
		defer redisClient.Close()
	}

	var natsConn *nats.Conn
	if cfg.NATSURL != "" {
		if conn, err := nats.Connect(cfg.NATSURL, nats.Name("dispatchservice")); err == nil {
			natsConn = conn
			defer conn.Drain()
		} else {
			logger.Warn("nats connection failed", zap.Error(err))
		}
	}

	var reservations registry.ReservationStore
	var requestQueue queue.Queue
	if redisClient != nil {
		reservations = registry.NewRedisReservationStore(redisClient, "")
		requestQueue = queue.NewRedis(redisClient, "", "")
	} else {
		reservations = registry.NewMemoryReservationStore()
		requestQueue = queue.NewMemory()
	}

	reg := registry.New(reservations, registry.Config{MaxRadiusKm: cfg.MaxRadiusKM}, logger.Named("registry"))
	publisher := events.NewPublisher(natsConn, "")
	notifier := events.NewNotifier(natsConn, "", logger.Named("notifier"))

	eng := engine.New(requestQueue, reg, world.Graph, world.Locator, publisher, notifier, nil, logger.Named("engine"), engine.Config{
		AverageSpeedKmh: cfg.AverageSpeedKMH,
	})

	dispatchHTTP := handler.NewHTTP(reg, requestQueue, eng, publisher, nil, cfg.JWTSecret)
	if cfg.JWTSecret == "" {
		logger.Warn("JWT_SECRET empty, authentication disabled")
	}

	r := chi.NewRouter()
	if limiter := buildRateLimiter(redisClient, cfg); limiter != nil {
		r.Use(limiter.Middleware)
	}
	r.Mount("/", dispatchHTTP.Router())
	r.Mount("/observability", observability.MetricsRouter())

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
	}

	grpcServer := grpc.NewServer()
	location.RegisterPositionServer(grpcServer, location.NewServer(reg, logger.Named("location")))
	go func() {
		lis, err := net.Listen("tcp", cfg.GRPCAddr)
		if err != nil {
			logger.Fatal("grpc listen", zap.Error(err))
		}
		logger.Info("position stream listening", zap.String("addr", cfg.GRPCAddr))
		if err := grpcServer.Serve(lis); err != nil {
			logger.Error("grpc server stopped", zap.Error(err))
		}
	}()

	go runDispatchLoop(ctx, eng, logger.Named("loop"), cfg.PollInterval)

	go func() {
		logger.Info("dispatch service listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("http server", zap.Error(err))
		}
	}()

	<-ctx.Done()
	grpcServer.GracefulStop()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = srv.Shutdown(shutdownCtx)
}

// runDispatchLoop drains the request queue on a fixed interval until the
// context is canceled.
func runDispatchLoop(ctx context.Context, eng *engine.Engine, logger *zap.Logger, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			assigned, err := eng.ProcessAll(ctx)
			if err != nil && !errors.Is(err, context.Canceled) {
				logger.Error("dispatch pass failed", zap.Error(err))
				continue
			}
			if assigned > 0 {
				logger.Info("dispatch pass", zap.Int("assigned", assigned))
			}
		}
	}
}

func buildRateLimiter(redisClient *redis.Client, cfg appConfig) *ratelimitmw.RateLimiter {
	if redisClient == nil {
		return nil
	}
	return ratelimitmw.NewRateLimiter(redisClient,
		ratelimitmw.RateConfig{Rate: cfg.RateReadRPS, Burst: cfg.RateReadBurst},
		ratelimitmw.RateConfig{Rate: cfg.RateWriteRPS, Burst: cfg.RateWriteBurst},
	)
}

func loadWorld(cfg appConfig) (*config.World, error) {
	if cfg.WorldFile == "" {
		return config.DefaultWorld(), nil
	}
	return config.LoadWorld(cfg.WorldFile)
}

func loadConfig() appConfig {
	return appConfig{
		HTTPAddr:        getenv("HTTP_ADDR", ":8080"),
		GRPCAddr:        getenv("GRPC_ADDR", ":9090"),
		RedisAddr:       os.Getenv("REDIS_ADDR"),
		NATSURL:         os.Getenv("NATS_URL"),
		WorldFile:       os.Getenv("WORLD_FILE"),
		MaxRadiusKM:     parseFloatEnv("MAX_RADIUS_KM", 0),
		AverageSpeedKMH: parseFloatEnv("AVERAGE_SPEED_KMH", 30),
		PollInterval:    time.Duration(parseIntEnv("DISPATCH_POLL_MS", 500)) * time.Millisecond,
		JWTSecret:       os.Getenv("JWT_SECRET"),
		RateReadRPS:     parseFloatEnv("RATE_READ_RPS", 50),
		RateReadBurst:   parseFloatEnv("RATE_READ_BURST", 100),
		RateWriteRPS:    parseFloatEnv("RATE_WRITE_RPS", 10),
		RateWriteBurst:  parseFloatEnv("RATE_WRITE_BURST", 20),
		Debug:           os.Getenv("DEBUG") != "",
	}
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func parseIntEnv(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			return parsed
		}
	}
	return fallback
}

func parseFloatEnv(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if parsed, err := strconv.ParseFloat(v, 64); err == nil {
			return parsed
		}
	}
	return fallback
}
