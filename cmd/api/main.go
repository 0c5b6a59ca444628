package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/PewPewSlowMo/SmartCallCenter/internal/audit"
	"github.com/PewPewSlowMo/SmartCallCenter/internal/auth"
	"github.com/PewPewSlowMo/SmartCallCenter/internal/callflow"
	"github.com/PewPewSlowMo/SmartCallCenter/internal/calls"
	"github.com/PewPewSlowMo/SmartCallCenter/internal/config"
	"github.com/PewPewSlowMo/SmartCallCenter/internal/httpapi"
	"github.com/PewPewSlowMo/SmartCallCenter/internal/notify"
	"github.com/PewPewSlowMo/SmartCallCenter/internal/operators"
	"github.com/PewPewSlowMo/SmartCallCenter/internal/pbx"
	"github.com/PewPewSlowMo/SmartCallCenter/internal/reporting"
	"github.com/PewPewSlowMo/SmartCallCenter/internal/routing"
	"github.com/PewPewSlowMo/SmartCallCenter/pkg/logger"
	"github.com/PewPewSlowMo/SmartCallCenter/pkg/utils"
)

const idleSweepInterval = time.Minute

func main() {
	// Root context that cancels on shutdown
	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("config load failed", "err", err)
		os.Exit(1)
	}

	log := logger.New(cfg.App.Env)
	slog.SetDefault(log)

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	authManager, err := auth.NewManager(cfg.Auth)
	if err != nil {
		log.Error("auth init failed", "err", err)
		os.Exit(1)
	}

	db, err := utils.OpenPostgres(rootCtx, "pgx", cfg.PostgresDSN(), utils.PostgresPoolConfig{})
	if err != nil {
		log.Error("postgres init failed", "err", err)
		os.Exit(1)
	}
	defer db.Close()

	rdb, err := utils.OpenRedis(rootCtx, utils.RedisConfig{Addr: cfg.RedisAddr()})
	if err != nil {
		log.Error("redis init failed", "err", err)
		os.Exit(1)
	}
	defer rdb.Close()

	callStore := calls.NewPostgresStore(db)
	directory := operators.NewDirectory(operators.NewRedisSlots(rdb, 0))

	switchClient := pbx.NewClient(pbx.ClientConfig{
		BaseURL:  cfg.ControlURL(),
		Username: cfg.Switch.Username,
		Password: cfg.Switch.Password,
		AppName:  cfg.Switch.AppName,
		Timeout:  cfg.Switch.CommandTimeout,
	})

	router := routing.NewEngine(routingConfig(cfg.Flow), directory)

	hub := notify.NewHub(log)
	go hub.Run(rootCtx)

	flow := callflow.NewEngine(
		callflow.Config{IdleTimeout: cfg.Flow.SessionIdleTimeout},
		callStore, router, directory, switchClient, hub, log,
	)
	go flow.RunIdleSweeper(rootCtx, idleSweepInterval)

	syncOperatorStates(rootCtx, switchClient, directory, log)

	listenerCfg := pbx.ListenerConfig{
		EventsURL: cfg.EventsURL(),
		Username:  cfg.Switch.Username,
		Password:  cfg.Switch.Password,
		AppName:   cfg.Switch.AppName,
	}
	go runEventStream(rootCtx, listenerCfg, flow, cfg.Flow.ReconnectDelay, log)

	// Gin router
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(logger.Middleware(log))

	registerRoutes(r, httpapi.Handlers{
		Auth:      authManager,
		Calls:     callStore,
		Flow:      flow,
		Directory: directory,
		Switch:    switchClient,
		Reports:   reporting.NewService(callStore),
		Audit:     audit.NewService(audit.NewMemoryRepo()),
	}, hub, auth.RequireAccessToken(authManager))

	srv := &http.Server{
		Addr:              cfg.HTTPAddr(),
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		log.Info("api listening", "addr", srv.Addr, "env", cfg.App.Env)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("http server failed", "err", err)
			stop()
		}
	}()

	<-rootCtx.Done()
	log.Info("shutdown initiated")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("http shutdown failed", "err", err)
	}

	_ = logger.ShutdownFlush(shutdownCtx, 2*time.Second)
}

func routingConfig(flow config.FlowConfig) routing.Config {
	cfg := routing.DefaultTables()
	cfg.BusinessStartHour = flow.BusinessStartHour
	cfg.BusinessEndHour = flow.BusinessEndHour
	if flow.DefaultQueue != "" {
		cfg.DefaultQueue = flow.DefaultQueue
	}
	if flow.FallbackQueue != "" {
		cfg.FallbackQueue = flow.FallbackQueue
	}
	return cfg
}

// runEventStream keeps one event subscription alive, reconnecting with a
// fixed delay. Events lost across a reconnect are covered by the idle sweep.
func runEventStream(ctx context.Context, cfg pbx.ListenerConfig, flow *callflow.Engine, delay time.Duration, log *slog.Logger) {
	if delay <= 0 {
		delay = 5 * time.Second
	}
	for {
		listener := pbx.NewListener(cfg, flow, log)
		err := listener.Run(ctx)
		if ctx.Err() != nil {
			return
		}
		log.Error("event stream lost, reconnecting", "err", err, "delay", delay)

		select {
		case <-ctx.Done():
			return
		case <-time.After(delay):
		}
	}
}

// syncOperatorStates seeds directory statuses from the switch's device
// states so availability is right before the first event arrives.
func syncOperatorStates(ctx context.Context, client *pbx.Client, directory *operators.Directory, log *slog.Logger) {
	states, err := client.DeviceStates(ctx)
	if err != nil {
		log.Warn("device state sync failed", "err", err)
		return
	}
	for _, st := range states {
		ext := st.Name
		if i := len("PJSIP/"); len(ext) > i && ext[:i] == "PJSIP/" {
			ext = ext[i:]
		}
		if op, ok := directory.OperatorByExtension(ext); ok {
			directory.SetStatus(op.ID, operators.DeviceStateToStatus(st.State))
		}
	}
}
