package main

import (
	"context"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill-redisstream/pkg/redisstream"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/taalim-io/gatekeeper/adapters/events"
	"github.com/taalim-io/gatekeeper/adapters/store"
	"github.com/taalim-io/gatekeeper/adapters/tokenizer"
	"github.com/taalim-io/gatekeeper/config"
	"github.com/taalim-io/gatekeeper/ports"
	"github.com/taalim-io/gatekeeper/service"
	transport "github.com/taalim-io/gatekeeper/transport/http"
)

func main() {
	configPath := flag.String("config", "", "path to config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}

	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = zerolog.InfoLevel
	}
	logger := zerolog.New(os.Stderr).Level(level).With().Timestamp().Logger()
	log.Logger = logger

	// Generate a new ECDSA key pair (you would normally load this from
	// somewhere secure)
	privateKey, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to generate signing key")
	}

	opts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to parse redis URL")
	}
	redisClient := redis.NewClient(opts)

	publisher, err := redisstream.NewPublisher(
		redisstream.PublisherConfig{Client: redisClient},
		watermill.NewStdLogger(false, false),
	)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to create redis publisher")
	}

	clock := ports.SystemClock{}

	challengeStore := store.NewMemoryChallengeStore(clock, cfg.Captcha.TTL)
	challengeStore.StartSweeper(cfg.Captcha.SweepInterval)
	defer challengeStore.Stop()

	captchaService := service.NewCaptchaService(challengeStore, clock)
	captchaService.SetLimits(cfg.Captcha.TTL, cfg.Captcha.MaxAttempts)

	authService := service.NewAuthService(
		tokenizer.NewJWTTokenizer(privateKey),
		store.NewRedisStore(redisClient),
		store.NewRedisUserStore(redisClient),
		events.NewWatermillPublisher(publisher),
	)
	authService.SetTokenTTLs(cfg.AccessTTL(), cfg.RefreshTTL())

	router := transport.SetupRouter(authService, captchaService, logger)

	server := &http.Server{
		Addr:    cfg.ListenAddr,
		Handler: router,
	}

	go func() {
		logger.Info().Str("addr", cfg.ListenAddr).Msg("starting server")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("server failed")
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	<-ctx.Done()

	logger.Info().Msg("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("shutdown failed")
	}
}
