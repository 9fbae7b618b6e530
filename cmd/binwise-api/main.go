// README: Entry point; loads config, wires stores, services and the realtime bus, serves HTTP.
package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"golang.org/x/sync/errgroup"

	"github.com/nourseensaeed7/BinWise-Recycle/internal/ai"
	"github.com/nourseensaeed7/BinWise-Recycle/internal/config"
	httptransport "github.com/nourseensaeed7/BinWise-Recycle/internal/http"
	"github.com/nourseensaeed7/BinWise-Recycle/internal/infra"
	"github.com/nourseensaeed7/BinWise-Recycle/internal/logger"
	"github.com/nourseensaeed7/BinWise-Recycle/internal/metrics"
	"github.com/nourseensaeed7/BinWise-Recycle/internal/modules/agent"
	"github.com/nourseensaeed7/BinWise-Recycle/internal/modules/aiusage"
	"github.com/nourseensaeed7/BinWise-Recycle/internal/modules/assignment"
	"github.com/nourseensaeed7/BinWise-Recycle/internal/modules/pickup"
	"github.com/nourseensaeed7/BinWise-Recycle/internal/realtime"
)

type stores struct {
	pickups pickup.Repository
	agents  agent.Directory
	quota   aiusage.Quota
	close   func()
}

func main() {
	logg := logger.New(logger.Options{ServiceName: "binwise-api"})
	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment", nil)
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}
	logg = logger.New(logger.Options{
		ServiceName: "binwise-api",
		Level:       logger.ParseLevel(cfg.Log.Level),
		Format:      cfg.Log.Format,
	})
	gin.SetMode(gin.ReleaseMode)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logg); err != nil {
		logg.Error(ctx, "api server stopped unexpectedly", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg config.Config, logg *logger.Logger) error {
	verifier, err := newVerifier(ctx, cfg, logg)
	if err != nil {
		return err
	}

	st, err := openStores(ctx, cfg, logg)
	if err != nil {
		return err
	}
	defer st.close()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	hub := realtime.NewHub(logg, metrics.NewBusMetrics(reg))
	defer hub.CloseAll()

	var (
		bus   pickup.Publisher = hub
		relay *realtime.RedisRelay
	)
	if cfg.Redis.RelayEnabled {
		rdb, err := infra.NewRedis(ctx, cfg.Redis.Addr)
		if err != nil {
			return err
		}
		defer rdb.Close()
		relay = realtime.NewRedisRelay(rdb, cfg.Redis.Channel, hub, logg)
		bus = relay
	}

	pickups := pickup.NewService(st.pickups, bus, pickup.Options{
		StoreTimeout:   cfg.Lifecycle.StoreTimeout,
		PublishTimeout: cfg.Lifecycle.PublishTimeout,
		Logger:         logg,
		Metrics:        metrics.NewLifecycleMetrics(reg),
	})

	var detector ai.MaterialDetector
	if cfg.AI.GeminiKey != "" {
		gemini, err := ai.NewGeminiDetector(ctx, cfg.AI.GeminiKey, cfg.AI.Model)
		if err != nil {
			return err
		}
		defer gemini.Close()
		detector = gemini
	} else {
		logg.Warn(ctx, "GEMINI_API_KEY not set; material detection disabled", nil)
	}

	router := httptransport.NewRouter(httptransport.Deps{
		Pickups:    pickups,
		Assignment: assignment.NewCoordinator(st.agents, pickups, cfg.Lifecycle.StoreTimeout),
		Agents:     st.agents,
		AI:         aiusage.NewService(st.quota, detector, aiusage.Options{Logger: logg}),
		Realtime: realtime.NewHandler(hub, realtime.HandlerConfig{
			SendBuffer:     cfg.Realtime.SendBuffer,
			PingPeriod:     cfg.Realtime.PingPeriod,
			WriteWait:      cfg.Realtime.WriteWait,
			AllowedOrigins: cfg.HTTP.AllowedOrigins,
		}, logg),
		Verifier:     verifier,
		Gatherer:     reg,
		Logger:       logg,
		StoreTimeout: cfg.Lifecycle.StoreTimeout,
	})

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return httptransport.NewServer(cfg.HTTP.Addr, router, logg).Run(gctx)
	})
	if relay != nil {
		g.Go(func() error {
			err := relay.Run(gctx)
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		})
	}
	g.Go(func() error {
		<-gctx.Done()
		// Hijacked websocket connections are not drained by http.Server.Shutdown.
		hub.CloseAll()
		return nil
	})

	logg.Info(logg.WithFields(ctx, map[string]any{
		"addr":   cfg.HTTP.Addr,
		"driver": cfg.DB.Driver,
		"relay":  cfg.Redis.RelayEnabled,
	}), "starting api server")
	return g.Wait()
}

func newVerifier(ctx context.Context, cfg config.Config, logg *logger.Logger) (infra.TokenVerifier, error) {
	if cfg.Firebase.DevAuth {
		logg.Warn(ctx, "dev auth enabled; bearer tokens are trusted as uid|role", nil)
		return infra.DevVerifier{}, nil
	}
	if cfg.Firebase.ProjectID == "" {
		return nil, errors.New("BINWISE_FIREBASE_PROJECT_ID is required unless BINWISE_DEV_AUTH is set")
	}
	return infra.NewFirebaseVerifier(ctx, cfg.Firebase.ProjectID, cfg.Firebase.CredentialsFile)
}

func openStores(ctx context.Context, cfg config.Config, logg *logger.Logger) (*stores, error) {
	seeded := func() (*agent.MemoryDirectory, error) {
		seed, err := agent.ParseSeed(cfg.DB.AgentSeed)
		if err != nil {
			return nil, err
		}
		return agent.NewMemoryDirectory(seed...), nil
	}

	switch strings.ToLower(cfg.DB.Driver) {
	case config.DriverPostgres:
		pool, err := infra.NewDB(ctx, cfg.DB.DSN)
		if err != nil {
			return nil, err
		}
		agents := agent.NewStore(pool)
		seed, err := agent.ParseSeed(cfg.DB.AgentSeed)
		if err != nil {
			pool.Close()
			return nil, err
		}
		if err := agents.Seed(ctx, seed); err != nil {
			pool.Close()
			return nil, err
		}
		if len(seed) > 0 {
			logg.Info(logg.WithField(ctx, "agents", len(seed)), "delivery agents seeded")
		}
		return &stores{
			pickups: pickup.NewStore(pool),
			agents:  agents,
			quota:   aiusage.NewStore(pool, cfg.AI.MonthlyQuota),
			close:   pool.Close,
		}, nil

	case config.DriverSQLite:
		db, err := infra.NewSQLite(cfg.DB.SQLitePath)
		if err != nil {
			return nil, err
		}
		repo := pickup.NewGormStore(db)
		if err := repo.Migrate(ctx); err != nil {
			return nil, err
		}
		agents, err := seeded()
		if err != nil {
			return nil, err
		}
		sqlDB, err := db.DB()
		if err != nil {
			return nil, err
		}
		logg.Info(logg.WithField(ctx, "path", cfg.DB.SQLitePath), "sqlite store ready")
		return &stores{
			pickups: repo,
			agents:  agents,
			quota:   aiusage.NewMemoryQuota(cfg.AI.MonthlyQuota),
			close:   func() { _ = sqlDB.Close() },
		}, nil

	default:
		agents, err := seeded()
		if err != nil {
			return nil, err
		}
		logg.Warn(ctx, "memory driver: state is lost on restart", nil)
		return &stores{
			pickups: pickup.NewMemoryStore(),
			agents:  agents,
			quota:   aiusage.NewMemoryQuota(cfg.AI.MonthlyQuota),
			close:   func() {},
		}, nil
	}
}
