package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"pixel-mural/mural"
	"pixel-mural/mural/application"
	"pixel-mural/mural/domain"
	"pixel-mural/mural/infra"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
)

func main() {
	cfg, err := readConfig()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}

	geo := domain.Geometry{Width: cfg.canvasWidth, Height: cfg.canvasHeight, TileSize: cfg.tileSize}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	var (
		tiles   domain.TileStore
		windows domain.WindowLimiter
		fanout  domain.Fanout
		stats   domain.StatsStore
	)

	if cfg.redisAddr != "" {
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.redisAddr,
			Password: cfg.redisPassword,
			DB:       cfg.redisDB,
		})
		defer func() { _ = rdb.Close() }()

		pingCtx, pingCancel := context.WithTimeout(ctx, 2*time.Second)
		_, err := rdb.Ping(pingCtx).Result()
		pingCancel()
		if err != nil {
			log.Fatalf("redis ping error: %v", err)
		}

		tiles = infra.NewRedisTileStore(rdb, geo)
		windows = infra.NewRedisWindowStore(rdb)
		fanout = infra.NewRedisFanout(rdb)
		if cfg.statsEnabled {
			stats = infra.NewRedisStatsStore(rdb, infra.WithStatsTrackKeys(cfg.statsTrackKeys))
		}
	} else {
		// sem Redis: instância única, tudo em memória
		tiles = infra.NewMemoryTileStore(geo)
		mw := infra.NewMemoryWindowStore()
		mw.StartJanitor(ctx)
		windows = mw
		fanout = infra.NewMemoryFanout()
		if cfg.statsEnabled {
			stats = infra.NewMemoryStatsStore(infra.WithTrackKeys(cfg.statsTrackKeys))
		}
	}

	adm := application.Admission{
		Limiter: windows,
		Stats:   stats,
		Pixel:   application.Policy{Limit: cfg.pixelRateLimit, Window: cfg.pixelRateWindow},
		Image:   application.Policy{Limit: cfg.imageRateLimit, Window: cfg.imageRateWindow},
	}

	svc := &application.Service{Geo: geo, Tiles: tiles, Admission: adm, Fanout: fanout}

	placerOpts := []application.PlacerOption{
		application.WithDrainRate(cfg.placeBatch, cfg.placeTick),
		application.WithProgressEvery(cfg.placeProgressEvery),
		application.WithMaxPixels(cfg.placeMaxPixels),
	}
	if cfg.placeMaxJobs > 0 {
		placerOpts = append(placerOpts,
			application.WithJobPool(infra.NewChanPool(cfg.placeMaxJobs), 100*time.Millisecond))
	}
	placer := application.NewPlacer(geo, tiles, fanout, adm, placerOpts...)

	uploads := application.NewUploads(
		application.WithUploadIdleTTL(cfg.uploadIdleTTL),
		application.WithUploadMaxChunks(cfg.uploadMaxChunks),
	)
	uploads.StartJanitor(ctx)

	msgRates := infra.NewMsgRateStore(cfg.msgRPS, cfg.msgBurst)
	msgRates.StartJanitor(ctx)

	if cfg.databaseURL != "" {
		pool, err := pgxpool.New(ctx, cfg.databaseURL)
		if err != nil {
			log.Fatalf("postgres connect error: %v", err)
		}
		defer pool.Close()

		snap := infra.NewPGSnapshotStore(pool)
		schemaCtx, schemaCancel := context.WithTimeout(ctx, 5*time.Second)
		err = snap.EnsureSchema(schemaCtx)
		schemaCancel()
		if err != nil {
			log.Fatalf("postgres schema error: %v", err)
		}

		go application.Snapshotter{Tiles: tiles, Store: snap, Every: cfg.snapshotEvery}.Run(ctx)
	}

	ws := mural.NewServer(mural.Options{
		Service:            svc,
		Placer:             placer,
		Uploads:            uploads,
		MsgRates:           msgRates,
		KeyHeader:          cfg.keyHeader,
		TrustXForwardedFor: cfg.trustXFF,
	})
	if err := ws.Run(ctx); err != nil {
		log.Fatalf("fanout subscribe error: %v", err)
	}

	srv := &http.Server{
		Addr:              cfg.listenAddr,
		Handler:           ws.Router(),
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       90 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	log.Printf("muralserver listening on %s canvas=%dx%d tile=%d", cfg.listenAddr, geo.Width, geo.Height, geo.TileSize)
	log.Printf("backend: redis=%q postgres=%v snapshotEvery=%s", cfg.redisAddr, cfg.databaseURL != "", cfg.snapshotEvery)
	log.Printf("rate: pixel=%d/%s image=%d/%s msgRPS=%.1f burst=%d trustXFF=%v", cfg.pixelRateLimit, cfg.pixelRateWindow, cfg.imageRateLimit, cfg.imageRateWindow, cfg.msgRPS, cfg.msgBurst, cfg.trustXFF)
	log.Printf("placement: batch=%d tick=%s progressEvery=%d maxJobs=%d maxPixels=%d uploadIdleTTL=%s uploadMaxChunks=%d", cfg.placeBatch, cfg.placeTick, cfg.placeProgressEvery, cfg.placeMaxJobs, cfg.placeMaxPixels, cfg.uploadIdleTTL, cfg.uploadMaxChunks)

	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatalf("server error: %v", err)
	}
}

type config struct {
	listenAddr string
	keyHeader  string
	trustXFF   bool

	canvasWidth  int
	canvasHeight int
	tileSize     int

	redisAddr     string
	redisPassword string
	redisDB       int

	databaseURL   string
	snapshotEvery time.Duration

	pixelRateLimit  int
	pixelRateWindow time.Duration
	imageRateLimit  int
	imageRateWindow time.Duration
	uploadIdleTTL   time.Duration
	uploadMaxChunks int

	placeBatch         int
	placeTick          time.Duration
	placeProgressEvery int
	placeMaxJobs       int
	placeMaxPixels     int

	msgRPS   float64
	msgBurst int

	statsEnabled   bool
	statsTrackKeys bool
}

func readConfig() (config, error) {
	cfg := config{}
	cfg.listenAddr = getenvDefault("LISTEN_ADDR", ":8080")
	cfg.keyHeader = os.Getenv("KEY_HEADER")
	cfg.trustXFF = getenvBoolDefault("TRUST_XFF", false)

	cfg.canvasWidth = getenvIntDefault("CANVAS_WIDTH", 4000)
	cfg.canvasHeight = getenvIntDefault("CANVAS_HEIGHT", 4000)
	cfg.tileSize = getenvIntDefault("TILE_SIZE", 256)

	cfg.redisAddr = getenvDefault("REDIS_ADDR", "")
	cfg.redisPassword = os.Getenv("REDIS_PASSWORD")
	cfg.redisDB = getenvIntDefault("REDIS_DB", 0)

	cfg.databaseURL = os.Getenv("DATABASE_URL")
	cfg.snapshotEvery = getenvDurationDefault("SNAPSHOT_EVERY", 60*time.Second)

	cfg.pixelRateLimit = getenvIntDefault("PIXEL_RATE_LIMIT", 10)
	cfg.pixelRateWindow = getenvDurationDefault("PIXEL_RATE_WINDOW", 1*time.Second)
	cfg.imageRateLimit = getenvIntDefault("IMAGE_RATE_LIMIT", 10)
	cfg.imageRateWindow = getenvDurationDefault("IMAGE_RATE_WINDOW", 60*time.Second)
	cfg.uploadIdleTTL = getenvDurationDefault("UPLOAD_IDLE_TTL", 2*time.Minute)
	cfg.uploadMaxChunks = getenvIntDefault("UPLOAD_MAX_CHUNKS", 1024)

	cfg.placeBatch = getenvIntDefault("PLACE_BATCH", 50)
	cfg.placeTick = getenvDurationDefault("PLACE_TICK", 50*time.Millisecond)
	cfg.placeProgressEvery = getenvIntDefault("PLACE_PROGRESS_EVERY", 500)
	cfg.placeMaxJobs = getenvIntDefault("PLACE_MAX_JOBS", 100)
	cfg.placeMaxPixels = getenvIntDefault("PLACE_MAX_PIXELS", 250000)

	cfg.msgRPS = getenvFloatDefault("MSG_RPS", 50)
	cfg.msgBurst = getenvIntDefault("MSG_BURST", 100)

	cfg.statsEnabled = getenvBoolDefault("STATS_ENABLED", false)
	cfg.statsTrackKeys = getenvBoolDefault("STATS_TRACK_KEYS", false)

	if cfg.canvasWidth <= 0 || cfg.canvasHeight <= 0 {
		return config{}, errors.New("CANVAS_WIDTH and CANVAS_HEIGHT must be > 0")
	}
	if cfg.tileSize <= 0 {
		return config{}, errors.New("TILE_SIZE must be > 0")
	}
	if cfg.pixelRateLimit <= 0 || cfg.imageRateLimit <= 0 {
		return config{}, errors.New("rate limits must be > 0")
	}
	if cfg.placeBatch <= 0 || cfg.placeTick <= 0 {
		return config{}, errors.New("PLACE_BATCH and PLACE_TICK must be > 0")
	}
	if cfg.statsEnabled && cfg.redisAddr == "" {
		log.Printf("stats: no redis configured, using in-memory counters")
	}
	return cfg, nil
}

func getenvDefault(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func getenvIntDefault(k string, def int) int {
	v := os.Getenv(k)
	if v == "" {
		return def
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return i
}

func getenvFloatDefault(k string, def float64) float64 {
	v := os.Getenv(k)
	if v == "" {
		return def
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return def
	}
	return f
}

func getenvBoolDefault(k string, def bool) bool {
	v := os.Getenv(k)
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(strings.TrimSpace(v))
	if err != nil {
		return def
	}
	return b
}

func getenvDurationDefault(k string, def time.Duration) time.Duration {
	v := os.Getenv(k)
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return def
	}
	return d
}
