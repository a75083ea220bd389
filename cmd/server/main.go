package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"coffeetime/internal/atproto"
	"coffeetime/internal/backup"
	"coffeetime/internal/handlers"
	"coffeetime/internal/journal"
	"coffeetime/internal/middleware"
	"coffeetime/internal/routing"
	"coffeetime/internal/settings"
	"coffeetime/internal/storage"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const (
	defaultPort         = "18910"
	defaultDataDir      = "./data"
	defaultSyncInterval = 5 * time.Minute
	shutdownTimeout     = 10 * time.Second
)

func main() {
	setupLogger()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	dataDir := getenv("COFFEETIME_DATA_DIR", defaultDataDir)
	prefsFile := settings.Load(dataDir)

	handle, err := storage.Open(ctx, storage.Preferences{
		InMemory:      envBool("COFFEETIME_IN_MEMORY"),
		DataDir:       dataDir,
		AppID:         os.Getenv("COFFEETIME_APP_ID"),
		SyncEnabled:   envBool("COFFEETIME_SYNC"),
		FreshLocation: prefsFile.FreshLocation(),
	}, log.Logger)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open any storage backend")
	}
	defer handle.Close()

	if handle.Kind == storage.KindFreshLocal && handle.Location != prefsFile.FreshLocation() {
		if err := prefsFile.SetFreshLocation(handle.Location); err != nil {
			log.Warn().Err(err).Msg("Failed to remember fresh store location, next start will create another")
		}
	}
	if !handle.Durable() {
		log.Warn().Msg("Journal is held in memory only, changes will be lost on exit")
	}

	manager := journal.NewManager(ctx, handle.Store, log.Logger)

	port := getenv("PORT", defaultPort)
	oauthManager := atproto.NewOAuthManager(atproto.OAuthConfig{
		ClientID:    os.Getenv("OAUTH_CLIENT_ID"),
		RedirectURI: getenv("OAUTH_REDIRECT_URI", "http://127.0.0.1:"+port+"/oauth/callback"),
	})

	h := handlers.NewHandler(manager)
	h.SetConfig(handlers.Config{SecureCookies: envBool("SECURE_COOKIES")})
	h.SetOAuthManager(oauthManager)
	h.SetSettings(prefsFile)
	h.SetStorage(handle)

	if handle.Syncer != nil {
		handle.Syncer.OnChange(manager.StoreChanged)
		stopSync := handle.Syncer.Start(envDuration("COFFEETIME_SYNC_INTERVAL", defaultSyncInterval))
		defer stopSync()
		h.SetSyncer(handle.Syncer)
	}

	target, err := backup.OpenTarget(ctx, dataDir)
	if err != nil {
		log.Warn().Err(err).Msg("Backups disabled")
	} else {
		h.SetBackupService(backup.NewService(target, manager, log.Logger))
	}

	rateLimits := middleware.NewDefaultRateLimitConfig()
	stopCleanup := rateLimits.StartCleanup(5 * time.Minute)
	defer stopCleanup()

	srv := &http.Server{
		Addr: "0.0.0.0:" + port,
		Handler: routing.SetupRouter(routing.Config{
			Handlers:     h,
			OAuthManager: oauthManager,
			RateLimits:   rateLimits,
			Logger:       log.Logger,
		}),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("Server shutdown failed")
		}
	}()

	log.Info().
		Str("address", srv.Addr).
		Str("storage", string(handle.Kind)).
		Str("location", handle.Location).
		Msg("Starting CoffeeTime server")
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatal().Err(err).Msg("Server failed")
	}
	log.Info().Msg("Server stopped")
}

// setupLogger configures the global logger from LOG_LEVEL and LOG_FORMAT.
func setupLogger() {
	zerolog.TimeFieldFormat = time.RFC3339
	level, err := zerolog.ParseLevel(strings.ToLower(os.Getenv("LOG_LEVEL")))
	if err != nil || level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	if os.Getenv("LOG_FORMAT") == "json" {
		log.Logger = zerolog.New(os.Stderr).With().Timestamp().Logger()
		return
	}
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen})
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envBool(key string) bool {
	switch strings.ToLower(os.Getenv(key)) {
	case "1", "true", "yes", "on":
		return true
	}
	return false
}

func envDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil || d <= 0 {
		log.Warn().Str("key", key).Str("value", v).Msg("Invalid duration, using default")
		return fallback
	}
	return d
}
