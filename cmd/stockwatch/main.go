package main

import (
	"context"
	"database/sql"
	"flag"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"syscall"
	"time"

	goredis "github.com/go-redis/redis/v8"
	"github.com/joho/godotenv"

	"stockwatch/config"
	"stockwatch/internal/archiver"
	"stockwatch/internal/bus"
	"stockwatch/internal/cache"
	"stockwatch/internal/datasource"
	"stockwatch/internal/logger"
	"stockwatch/internal/metrics"
	"stockwatch/internal/model"
	"stockwatch/internal/monitor"
	"stockwatch/internal/server"
	redisstore "stockwatch/internal/store/redis"
	"stockwatch/internal/store/sqlite"
)

func main() {
	log.SetFlags(log.LstdFlags | log.Lmicroseconds | log.Lshortfile)

	configPath := flag.String("config", "stockwatch.yaml", "path to YAML config")
	flag.Parse()

	_ = godotenv.Load()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("[stockwatch] config: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("[stockwatch] config: %v", err)
	}

	if cfg.Log.File != "" {
		logger.InitWithFile("stockwatch", parseLevel(cfg.Log.Level), cfg.Log.File)
	} else {
		logger.Init("stockwatch", parseLevel(cfg.Log.Level))
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	prom := metrics.NewMetrics()
	health := metrics.NewHealthStatus()
	health.SetTrackedTickers(len(cfg.Tickers))
	metricsSrv := metrics.NewServer(cfg.HTTP.MetricsAddr, health)
	metricsSrv.Start()

	// ---- Archive writer (optional, also backs the archive source) ----
	var sqlWriter *sqlite.Writer
	if cfg.Archive.Enabled {
		os.MkdirAll(filepath.Dir(cfg.Archive.SQLitePath), 0o755)
		sqlWriter, err = sqlite.New(sqlite.WriterConfig{DBPath: cfg.Archive.SQLitePath})
		if err != nil {
			log.Fatalf("[stockwatch] sqlite init failed: %v", err)
		}
		defer sqlWriter.Close()
		health.SetSQLiteEnabled(true)
		log.Printf("[stockwatch] sqlite archive ready at %s", cfg.Archive.SQLitePath)
	}

	source := buildSource(cfg)
	log.Printf("[stockwatch] bar source: %s", source.Name())

	// ---- Cache + monitor ----
	snapCache := cache.New(cfg.Tickers)
	mon := monitor.New(monitor.Config{
		Source:          source,
		Cache:           snapCache,
		Params:          cfg.Params(),
		Interval:        model.Interval(cfg.Interval),
		LookbackDays:    cfg.Refresh.LookbackDays,
		RefreshEvery:    cfg.Refresh.Every,
		FetchTimeout:    cfg.Refresh.FetchTimeout,
		GateMarketHours: cfg.Refresh.MarketHours,
		Prom:            prom,
		Health:          health,
	})

	// ---- Fan out refreshed entries to WebSocket hub and Redis ----
	fanout := bus.New(256)
	fanout.OnDrop = func(subscriberIdx int) {
		prom.FanoutDrops.WithLabelValues(strconv.Itoa(subscriberIdx)).Inc()
	}

	hubCh := fanout.Subscribe()
	var redisCh <-chan cache.Entry
	if cfg.Redis.Enabled {
		redisCh = fanout.Subscribe()
	}
	go fanout.Run(ctx, mon.Updates())

	hub := server.NewHub()
	hub.OnClientCount = func(n int) { prom.WSClients.Set(float64(n)) }
	go hub.Run(ctx, hubCh)

	// ---- Redis snapshot publisher (optional) ----
	var redisPub *redisstore.Publisher
	if cfg.Redis.Enabled {
		health.SetRedisEnabled(true)
		redisPub, err = redisstore.NewPublisher(redisstore.PublisherConfig{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
			TTL:      cfg.Redis.TTL,
		})
		if err != nil {
			log.Printf("[stockwatch] WARNING: redis init failed: %v (continuing without redis)", err)
			go func() {
				for range redisCh {
				}
			}()
		} else {
			redisPub.OnPublishError = func() { prom.PublishErrors.Inc() }
			redisPub.Breaker().OnStateChange = func(from, to redisstore.State) {
				prom.BreakerState.Set(float64(to))
				if to == redisstore.StateOpen {
					prom.BreakerTrips.Inc()
				}
			}
			defer redisPub.Close()
			go redisPub.Run(ctx, redisCh)
			log.Printf("[stockwatch] redis publisher ready at %s", cfg.Redis.Addr)
		}
	}

	// ---- Periodic liveness checks ----
	var rdb *goredis.Client
	if redisPub != nil {
		rdb = redisPub.Client()
	}
	var archiveDB *sql.DB
	if sqlWriter != nil {
		archiveDB = sqlWriter.DB()
	}
	health.StartLivenessChecker(ctx, rdb, archiveDB, 10*time.Second)

	// ---- Nightly bar archiver (optional) ----
	if cfg.Archive.Enabled {
		arc, err := archiver.New(archiver.Config{
			Source:       source,
			Writer:       sqlWriter,
			Tickers:      cfg.Tickers,
			Schedule:     cfg.Archive.Cron,
			LookbackDays: cfg.Archive.LookbackDays,
			Prom:         prom,
		})
		if err != nil {
			log.Fatalf("[stockwatch] archiver init failed: %v", err)
		}
		arc.Start()
		defer arc.Stop()
	}

	// ---- HTTP API + WebSocket ----
	apiSrv := server.New(cfg.HTTP.Addr, mon, hub, cfg.Tickers, cfg.Params())
	apiSrv.Start()

	go mon.Run(ctx)

	log.Println("[stockwatch] ╔══════════════════════════════════════════════════════════╗")
	log.Println("[stockwatch] ║  Stock Indicator Monitor                                 ║")
	log.Printf("[stockwatch] ║  Tickers:  %-45v ║", cfg.Tickers)
	log.Printf("[stockwatch] ║  Interval: %-10s Refresh: %-24s ║", cfg.Interval, cfg.Refresh.Every)
	log.Printf("[stockwatch] ║  API: %-15s Metrics: %-26s ║", cfg.HTTP.Addr, cfg.HTTP.MetricsAddr)
	log.Println("[stockwatch] ╚══════════════════════════════════════════════════════════╝")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh
	log.Println("[stockwatch] shutdown signal received")

	cancel()
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	apiSrv.Stop(shutdownCtx)
	metricsSrv.Stop(shutdownCtx)
	log.Println("[stockwatch] bye")
}

// buildSource constructs the configured bar provider. Config.Validate has
// already checked kind-specific requirements.
func buildSource(cfg *config.Config) model.DataSource {
	switch cfg.Source.Kind {
	case "mock":
		return datasource.NewMock()
	case "archive":
		reader, err := sqlite.NewReader(cfg.Archive.SQLitePath)
		if err != nil {
			log.Fatalf("[stockwatch] archive reader: %v", err)
		}
		return datasource.NewArchive(reader)
	case "smartapi":
		return datasource.NewSmartAPI(datasource.SmartAPIConfig{
			APIKey:     cfg.SmartAPI.APIKey,
			ClientCode: cfg.SmartAPI.ClientCode,
			Password:   cfg.SmartAPI.Password,
			TOTPSecret: cfg.SmartAPI.TOTPSecret,
		})
	default:
		var opts []datasource.YahooOption
		if cfg.Source.YahooURL != "" {
			opts = append(opts, datasource.WithYahooBaseURL(cfg.Source.YahooURL))
		}
		return datasource.NewYahoo(cfg.Source.Proxy, opts...)
	}
}

func parseLevel(s string) slog.Level {
	switch s {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
