package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	"rentscout/api"
	"rentscout/config"
	"rentscout/fetcher"
	"rentscout/httputil"
	"rentscout/logging"
	"rentscout/models"
	"rentscout/scheduler"
	"rentscout/search"
	"rentscout/services"
	"rentscout/storage"
	"rentscout/workers"
)

var (
	searchNow = flag.Bool("search", false, "Run one search, print the results as JSON and exit")
	serveOnly = flag.Bool("serve", false, "Serve the HTTP API without the scheduler")
	runSaved  = flag.String("run", "", "Run one saved search by id and exit")
	runAllNow = flag.Bool("run-all", false, "Run every enabled saved search once and exit")

	query    = flag.String("q", "", "Free-text query")
	types    = flag.String("types", "", "Comma-separated property type labels, e.g. \"Flats,Villa\"")
	bedrooms = flag.String("bedrooms", "", "Bedroom filter: 1-4, 5+ or empty for any")
	minPrice = flag.Float64("min-price", 0, "Minimum monthly rent")
	maxPrice = flag.Float64("max-price", 0, "Maximum monthly rent (0 uses the profile limit)")
	minArea  = flag.Float64("min-area", 0, "Minimum area in sqft")
	maxArea  = flag.Float64("max-area", 0, "Maximum area in sqft (0 uses the profile limit)")
	showAll  = flag.Bool("all", false, "With -search, ignore filters and list every property")
)

func main() {
	flag.Parse()
	os.Exit(run())
}

// run wires and starts the selected mode. It returns the process exit code
// so deferred cleanup has finished before main exits.
func run() int {
	cfg, err := config.Load()
	if err != nil {
		logrus.Errorf("Failed to load config: %v", err)
		return 1
	}

	logger, logFile, err := logging.Setup(cfg.LogFile, cfg.LogLevel)
	if err != nil {
		logger.Warnf("Could not set up file logging: %v", err)
	} else {
		defer logFile.Close()
	}

	logger.Info("Starting rentscout...")
	logger.Infof("Backend: %s (admin=%t)", cfg.API.BaseURL, cfg.API.Admin)
	logger.Infof("Loaded %d property types, %d saved searches", len(cfg.Profile.Types), len(cfg.Profile.SavedSearches))

	httpClient, err := httputil.NewClient(cfg.API, cfg.Proxy)
	if err != nil {
		logger.Errorf("Invalid proxy configuration: %v", err)
		return 1
	}
	if cfg.Proxy.URL != "" {
		logger.Infof("Proxy: %s", maskConnectionString(cfg.Proxy.URL))
	}

	client := fetcher.NewClient(fetcher.ClientConfig{
		BaseURL: cfg.API.BaseURL,
		Admin:   cfg.API.Admin,
		Token:   cfg.API.Token,
	}, httpClient, logger)

	orchestrator := search.New(client, search.Options{
		Labels:   cfg.Profile.Types,
		Bounds:   cfg.Profile.Bounds(),
		PageSize: cfg.Search.PageSize,
		MaxPages: cfg.Search.MaxPages,
		Timeout:  cfg.Search.Timeout,
		Logger:   logger,
	})

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if *searchNow {
		return runOnce(ctx, orchestrator, cfg, logger)
	}

	if *serveOnly {
		serve(ctx, cfg, orchestrator, client, logger)
		return 0
	}

	sqliteStore, err := storage.NewSQLiteStore(cfg.DBPath)
	if err != nil {
		logger.Errorf("Failed to open SQLite: %v", err)
		return 1
	}
	defer sqliteStore.Close()
	logger.Infof("SQLite database: %s", cfg.DBPath)

	if err := sqliteStore.SyncSavedSearches(cfg.Profile.SavedSearches); err != nil {
		logger.Errorf("Failed to sync saved searches: %v", err)
		return 1
	}

	var seen services.SeenStore
	var pgStore *storage.PostgresStore
	if cfg.DatabaseURL != "" {
		pgStore, err = storage.NewPostgresStore(ctx, cfg.DatabaseURL)
		if err != nil {
			logger.Errorf("Failed to connect to Postgres: %v", err)
			return 1
		}
		defer pgStore.Close()
		seen = pgStore
		logger.Infof("Connected to Postgres: %s", maskConnectionString(cfg.DatabaseURL))
	} else {
		logger.Info("DATABASE_URL not set, every result is reported as new")
	}

	watch := services.NewWatchService(orchestrator, sqliteStore, seen, cfg.S3.Enabled(), logger)

	if *runSaved != "" {
		res, err := watch.RunByID(ctx, *runSaved)
		if err != nil {
			logger.Errorf("Saved search failed: %v", err)
			return 1
		}
		logger.Infof("%s: %d found, %d new", *runSaved, res.Run.ResultsFound, res.Run.ResultsNew)
		printJSON(models.Records(res.NewRecords))
		return 0
	}

	// Daemon mode
	sched := scheduler.New(cfg.Scheduler, watch, sqliteStore, logger)
	if pgStore != nil {
		sched.SetPruner(pgStore)
	}

	if *runAllNow {
		if err := sched.TriggerNow(ctx); err != nil {
			logger.Errorf("Run failed: %v", err)
			return 1
		}
		return 0
	}

	if cfg.S3.Enabled() {
		uploader, err := storage.NewS3Uploader(ctx, storage.S3Config{
			Bucket:          cfg.S3.Bucket,
			Region:          cfg.S3.Region,
			Endpoint:        cfg.S3.Endpoint,
			Prefix:          cfg.S3.Prefix,
			AccessKeyID:     cfg.S3.AccessKeyID,
			SecretAccessKey: cfg.S3.SecretAccessKey,
		})
		if err != nil {
			logger.Errorf("Failed to set up S3: %v", err)
			return 1
		}
		exportWorker := workers.NewExportWorker(sqliteStore, uploader, logger)
		sched.SetExportWorker(exportWorker)
		go exportWorker.Run(ctx, 20, 2*time.Minute)
		logger.Infof("Export worker started (bucket %s)", cfg.S3.Bucket)
	} else {
		logger.Info("S3 not configured, exports disabled")
	}

	if err := sched.Start(ctx); err != nil {
		logger.Errorf("Failed to start scheduler: %v", err)
		return 1
	}

	go serve(ctx, cfg, orchestrator, client, logger, api.WithHistory(sqliteStore), api.WithWatch(watch))

	logger.Info("Daemon running. Press Ctrl+C to stop.")
	<-ctx.Done()

	logger.Info("Shutting down...")
	sched.Stop()
	logger.Info("Goodbye!")
	return 0
}

func runOnce(ctx context.Context, orchestrator *search.Orchestrator, cfg *config.Config, logger *logrus.Logger) int {
	criteria := criteriaFromFlags(cfg.Profile)
	exitCode := 0

	listener := search.ListenerFuncs{
		Searching: func(searching bool) {
			if searching {
				logger.Info("Searching...")
			}
		},
		Error: func(msg string) {
			if msg != "" {
				logger.Error(msg)
				exitCode = 1
			}
		},
		Results: func(records []models.PropertyRecord) {
			logger.Infof("%d properties", len(records))
			printJSON(models.Records(records))
		},
	}

	if *showAll {
		orchestrator.Reset(ctx, listener)
	} else {
		orchestrator.Search(ctx, criteria, listener)
	}
	return exitCode
}

func criteriaFromFlags(profile *config.Profile) models.FilterCriteria {
	c := models.FilterCriteria{
		Query:    *query,
		Bedrooms: models.BedroomFilter(strings.TrimSpace(*bedrooms)),
		Price:    profile.PriceRange,
		Area:     profile.AreaRange,
	}
	for _, t := range strings.Split(*types, ",") {
		if t = strings.TrimSpace(t); t != "" {
			c.Types = append(c.Types, t)
		}
	}
	if *minPrice > 0 {
		c.Price.Min = *minPrice
	}
	if *maxPrice > 0 {
		c.Price.Max = *maxPrice
	}
	if *minArea > 0 {
		c.Area.Min = *minArea
	}
	if *maxArea > 0 {
		c.Area.Max = *maxArea
	}
	return c
}

func serve(ctx context.Context, cfg *config.Config, searcher api.Searcher, lister api.Lister, logger *logrus.Logger, opts ...api.RouterOption) {
	srv := api.NewServer(cfg.Server.Addr, api.NewRouter(searcher, lister, cfg.Server.CORSOrigins, logger, opts...), logger)

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Stop(shutdownCtx); err != nil {
			logger.WithError(err).Warn("HTTP server shutdown")
		}
	}()

	if err := srv.Start(); err != nil {
		logger.Fatalf("HTTP server: %v", err)
	}
}

func printJSON(v any) {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		fmt.Fprintf(os.Stderr, "encode: %v\n", err)
	}
}

// maskConnectionString masks the password in a URL-style connection string
func maskConnectionString(connStr string) string {
	start := strings.Index(connStr, "://")
	if start < 0 {
		return connStr
	}
	start += 3

	at := strings.Index(connStr[start:], "@")
	if at < 0 {
		return connStr
	}
	at += start

	colon := strings.Index(connStr[start:at], ":")
	if colon < 0 {
		return connStr
	}
	return connStr[:start+colon+1] + "****" + connStr[at:]
}
