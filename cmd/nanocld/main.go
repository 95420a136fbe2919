// Command nanocld is the daemon binary: it owns the store, the container
// engine adapter, and every long-lived background task, and exposes the
// domain API surface over HTTP. Its boot sequence follows the teacher's
// appserver entrypoint (flag overrides over env-sourced config, open DB,
// migrate, build stores, construct the application, attach the HTTP
// service, start, wait for a signal, shut down).
package main

import (
	"context"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/next-hat/nanocl-sub000/infrastructure/config"
	coreerrors "github.com/next-hat/nanocl-sub000/infrastructure/errors"
	"github.com/next-hat/nanocl-sub000/infrastructure/lifecycle"
	"github.com/next-hat/nanocl-sub000/infrastructure/logging"
	"github.com/next-hat/nanocl-sub000/infrastructure/metrics"
	"github.com/next-hat/nanocl-sub000/infrastructure/middleware"
	"github.com/next-hat/nanocl-sub000/internal/daemon"
	"github.com/next-hat/nanocl-sub000/internal/engine/dockerengine"
	"github.com/next-hat/nanocl-sub000/internal/eventbus"
	"github.com/next-hat/nanocl-sub000/internal/instance"
	"github.com/next-hat/nanocl-sub000/internal/model"
	"github.com/next-hat/nanocl-sub000/internal/objstatus"
	"github.com/next-hat/nanocl-sub000/internal/platform/database"
	"github.com/next-hat/nanocl-sub000/internal/procsync"
	"github.com/next-hat/nanocl-sub000/internal/scheduler"
	"github.com/next-hat/nanocl-sub000/internal/statefile"
	"github.com/next-hat/nanocl-sub000/internal/store"
	"github.com/next-hat/nanocl-sub000/internal/store/memory"
	"github.com/next-hat/nanocl-sub000/internal/store/postgres"
)

func main() {
	httpAddr := flag.String("addr", "", "HTTP listen address (overrides NANOCL_HTTP_ADDR)")
	dsn := flag.String("dsn", "", "PostgreSQL DSN (overrides NANOCL_POSTGRES_DSN; empty disables persistence and uses the in-memory store)")
	inMemory := flag.Bool("memory", false, "force the in-memory store even if a DSN is configured")
	flag.Parse()

	cfg, err := config.LoadDaemonConfig()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	if *httpAddr != "" {
		cfg.HTTPAddr = *httpAddr
	}
	if *dsn != "" {
		cfg.PostgresDSN = *dsn
	}

	logger := logging.New("nanocld", cfg.LogLevel, cfg.LogFormat)
	rootCtx := context.Background()

	var st store.Store
	if *inMemory || cfg.PostgresDSN == "" {
		st = memory.New()
		logger.WithFields(map[string]interface{}{}).Info("using in-memory store")
	} else {
		db, err := database.Open(rootCtx, cfg.PostgresDSN)
		if err != nil {
			logger.Fatal(rootCtx, "connect to postgres", err)
		}
		if err := postgres.Migrate(db); err != nil {
			logger.Fatal(rootCtx, "apply migrations", err)
		}
		st = postgres.New(db)
	}

	eng, err := dockerengine.New()
	if err != nil {
		logger.Fatal(rootCtx, "connect to container engine", err)
	}

	bus := eventbus.New()
	status := objstatus.New(st, bus)
	sched := scheduler.New(logger)
	node := model.Node{Key: cfg.Hostname, AdvertiseAddr: cfg.AdvertiseAddr}
	manager := instance.New(st, eng, status, sched, node, logger)
	apply := statefile.New(st, manager, bus, logger)
	sync := procsync.New(st, eng, node.Key, logger)

	if err := ensureNamespace(rootCtx, st, model.SystemNamespace); err != nil {
		logger.Fatal(rootCtx, "ensure system namespace", err)
	}
	if err := ensureNamespace(rootCtx, st, model.GlobalNamespace); err != nil {
		logger.Fatal(rootCtx, "ensure global namespace", err)
	}
	if err := os.MkdirAll(filepath.Join(cfg.StateDir, "vms", "images"), 0o755); err != nil {
		logger.Fatal(rootCtx, "ensure vm images directory", err)
	}
	if _, err := st.UpsertNode(rootCtx, node); err != nil {
		logger.Fatal(rootCtx, "register node", err)
	}
	if err := sync.Sweep(rootCtx); err != nil {
		logger.WithFields(map[string]interface{}{}).WithError(err).Warn("initial process sweep reported errors")
	}

	metricsReg := metrics.New("nanocl")
	srv := daemon.NewServer(daemon.Deps{
		Store:   st,
		Manager: manager,
		Bus:     bus,
		Apply:   apply,
		Log:     logger,
		Metrics: metricsReg,
		CORS: &middleware.CORSConfig{
			AllowedOrigins: []string{"*"},
			AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
			AllowedHeaders: []string{"Content-Type", "Authorization"},
		},
	})

	httpServer := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           srv.Router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	mgr := lifecycle.New(logger)
	mgr.Register(lifecycle.NewRunLoop("procsync", sync.Run, func(err error) {
		if err != nil {
			logger.Error(rootCtx, "process synchronizer exited", err, nil)
		}
	}))
	mgr.Register(lifecycle.NewCron("scheduler", sched))
	mgr.Register(lifecycle.NewHTTPServer("http", httpServer, func(err error) {
		logger.Error(rootCtx, "http server exited", err, nil)
	}))

	if err := mgr.Start(rootCtx); err != nil {
		logger.Fatal(rootCtx, "boot sequence failed", err)
	}
	logger.WithFields(map[string]interface{}{"addr": cfg.HTTPAddr}).Info("nanocld listening")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	mgr.Stop(shutdownCtx)
}

// ensureNamespace creates name if it doesn't already exist, tolerating the
// Conflict a concurrent boot or a prior run would produce.
func ensureNamespace(ctx context.Context, st store.Store, name string) error {
	_, err := st.CreateNamespace(ctx, name)
	if err == nil {
		return nil
	}
	if ce := coreerrors.As(err); ce != nil && ce.Kind == coreerrors.Conflict {
		return nil
	}
	return err
}
