package main

import (
	"context"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"fgoplanner.app/internal/config"
	"fgoplanner.app/internal/gamedata"
	"fgoplanner.app/internal/metrics"
	"fgoplanner.app/internal/persistence/accountdb"
	"fgoplanner.app/internal/persistence/statslog"
	"fgoplanner.app/internal/planner"
	"fgoplanner.app/internal/transport/httpapi"
	"fgoplanner.app/internal/transport/ws"
)

func main() {
	var (
		configPath = flag.String("config", "./configs/planner.yaml", "path to planner.yaml (defaults apply if missing)")
		addr       = flag.String("addr", "", "http listen address (overrides server.addr)")
		catalogDir = flag.String("catalogs", "", "game data directory (overrides catalog_dir)")
		dataDir    = flag.String("data", "", "runtime data directory (overrides data_dir)")
		disableDB  = flag.Bool("disable_db", false, "disable the account store and run index")
	)
	flag.Parse()

	logger := log.New(os.Stdout, "[server] ", log.LstdFlags|log.Lmicroseconds)

	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Fatalf("load config: %v", err)
	}
	if s := strings.TrimSpace(*addr); s != "" {
		cfg.Server.Addr = s
	}
	if s := strings.TrimSpace(*catalogDir); s != "" {
		cfg.CatalogDir = s
	}
	if s := strings.TrimSpace(*dataDir); s != "" {
		cfg.DataDir = s
	}

	if cfg.ValidateCatalogs {
		if err := gamedata.Validate(cfg.CatalogDir); err != nil {
			logger.Fatalf("validate catalogs: %v", err)
		}
	}
	cats, err := gamedata.Load(cfg.CatalogDir)
	if err != nil {
		logger.Fatalf("load catalogs: %v", err)
	}
	logger.Printf("catalogs loaded: items=%d servants=%d soundtracks=%d", len(cats.Items.ByID), len(cats.Servants.ByID), len(cats.Soundtracks.List))

	m := metrics.New()
	opts := []planner.Option{
		planner.WithLogger(log.New(os.Stdout, "[planner] ", log.LstdFlags|log.Lmicroseconds)),
		planner.WithMetrics(m),
		planner.WithItemOrder(cfg.RowOrder()),
	}

	runLog := statslog.NewRunLogger(cfg.DataDir)
	defer runLog.Close()
	opts = append(opts, planner.WithArchive(runLog))

	var store planner.AccountStore
	if !*disableDB {
		db, err := accountdb.OpenSQLite(filepath.Join(cfg.DataDir, "planner.sqlite"))
		if err != nil {
			logger.Fatalf("open account db: %v", err)
		}
		defer db.Close()
		if drift, err := db.CatalogDrift(context.Background(), cats); err != nil {
			logger.Printf("check catalog digests: %v", err)
		} else if len(drift) > 0 {
			logger.Printf("catalogs changed since last start: %s (earlier runs used the old data)", strings.Join(drift, ","))
		}
		if err := db.UpsertCatalogs(cats); err != nil {
			logger.Printf("record catalogs: %v", err)
		}
		store = db
		opts = append(opts, planner.WithRecorder(db))
	} else {
		logger.Printf("account store disabled (-disable_db); only POST /v1/stats is served")
	}

	svc := planner.NewService(cats, store, opts...)
	filter := cfg.DefaultFilter.Stats()

	api := httpapi.NewServer(svc, httpapi.Config{
		DefaultFilter:  filter,
		RateLimitRPS:   cfg.Server.RateLimitRPS,
		RateLimitBurst: cfg.Server.RateLimitBurst,
	}, logger)
	if cfg.Server.EnableMetrics {
		api.EnableMetrics(m)
	}
	api.SetWSHandler(ws.NewServer(svc, filter, logger).Handler())

	ctx, cancel := signalContext()
	defer cancel()

	srv := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           api.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		ctx2, cancel2 := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel2()
		_ = srv.Shutdown(ctx2)
	}()

	logger.Printf("listening on %s", cfg.Server.Addr)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Fatalf("ListenAndServe: %v", err)
	}
}

func signalContext() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())
	ch := make(chan os.Signal, 2)
	signal.Notify(ch, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-ch
		cancel()
	}()
	return ctx, cancel
}
