package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/skylith/reoffer/internal/config"
	"github.com/skylith/reoffer/internal/db"
	"github.com/skylith/reoffer/internal/events"
	"github.com/skylith/reoffer/internal/finder"
	relayhttp "github.com/skylith/reoffer/internal/http"
	"github.com/skylith/reoffer/internal/http/api/ops"
	"github.com/skylith/reoffer/internal/http/api/public"
	"github.com/skylith/reoffer/internal/notify"
	"github.com/skylith/reoffer/internal/offer"
	"github.com/skylith/reoffer/internal/scoring"
	"github.com/skylith/reoffer/internal/security"
	log "github.com/sirupsen/logrus"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Migrate opens the database and runs migrations.
func Migrate(_ context.Context, configPath string) error {
	cfg, errLoad := config.Load(configPath)
	if errLoad != nil {
		return errLoad
	}
	conn, errOpen := db.Open(cfg.Database.DSN)
	if errOpen != nil {
		return errOpen
	}
	return db.Migrate(conn)
}

// RunServer boots the offer service: config, logging, storage, signer, and
// the public and ops HTTP surfaces, then serves until the context ends.
func RunServer(ctx context.Context, configPath string) error {
	cfg, errLoad := config.Load(configPath)
	if errLoad != nil {
		return errLoad
	}
	setupLogging(cfg.Logging)

	conn, errOpen := db.Open(cfg.Database.DSN)
	if errOpen != nil {
		return errOpen
	}
	if errMigrate := db.Migrate(conn); errMigrate != nil {
		return errMigrate
	}

	signer, errSigner := security.NewSigner(cfg.Offer.SigningSecret)
	if errSigner != nil {
		return errSigner
	}

	notifier, errNotify := notify.New(cfg.Notify)
	if errNotify != nil {
		return errNotify
	}

	var redisClient *redis.Client
	if cfg.Redis.Addr != "" {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
		if errPing := redisClient.Ping(pingCtx).Err(); errPing != nil {
			log.WithError(errPing).Warn("redis unreachable, rate limiting degraded to fail-open")
		}
		cancel()
	}

	store := offer.NewGormStore(conn)
	audit := events.NewRecorder(conn)
	guard := offer.NewGuard(signer)
	machine := offer.NewMachine(store, audit)
	issuer := offer.NewIssuer(store, signer, audit, cfg.Offer.TTL(), cfg.Offer.LinkBaseURL)

	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()
	engine.Use(gin.Recovery())

	limiter := relayhttp.RateLimitMiddleware(redisClient, cfg.RateLimit)
	public.RegisterPublicRoutes(engine, store, guard, machine, limiter)
	ops.RegisterOpsRoutes(engine, cfg.Ops, store, issuer, finder.NewStaticFinder(), notifier, audit)

	server := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.WithField("addr", cfg.Server.Addr).Info("offer service listening")
		errCh <- server.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if errShutdown := server.Shutdown(shutdownCtx); errShutdown != nil {
			return fmt.Errorf("shutdown: %w", errShutdown)
		}
		return nil
	case errServe := <-errCh:
		if errors.Is(errServe, http.ErrServerClosed) {
			return nil
		}
		return errServe
	}
}

// Seed issues demo offers for a disrupted flight through the same pipeline
// the ops API uses, and prints the resulting links.
func Seed(ctx context.Context, configPath, flightNo string) error {
	cfg, errLoad := config.Load(configPath)
	if errLoad != nil {
		return errLoad
	}
	setupLogging(cfg.Logging)

	conn, errOpen := db.Open(cfg.Database.DSN)
	if errOpen != nil {
		return errOpen
	}
	if errMigrate := db.Migrate(conn); errMigrate != nil {
		return errMigrate
	}

	signer, errSigner := security.NewSigner(cfg.Offer.SigningSecret)
	if errSigner != nil {
		return errSigner
	}
	notifier, errNotify := notify.New(cfg.Notify)
	if errNotify != nil {
		return errNotify
	}

	store := offer.NewGormStore(conn)
	audit := events.NewRecorder(conn)
	issuer := offer.NewIssuer(store, signer, audit, cfg.Offer.TTL(), cfg.Offer.LinkBaseURL)

	bookings, errFind := finder.NewStaticFinder().ImpactedBookings(ctx, flightNo)
	if errFind != nil {
		return errFind
	}

	for _, booking := range bookings {
		issued, errCreate := issuer.CreateOffer(ctx, booking.SubjectID, booking.BookingRef, scoring.Rank(booking.Options))
		if errCreate != nil {
			return fmt.Errorf("seed %s: %w", booking.BookingRef, errCreate)
		}
		if _, errSend := notifier.Send(ctx, notify.Message{
			To:      booking.Email,
			Subject: "Your rebooking options are ready",
			Link:    issued.Link,
			OfferID: issued.Offer.OfferID,
		}); errSend != nil {
			log.WithError(errSend).WithField("offer_id", issued.Offer.OfferID).Warn("seed notification failed")
		}
		fmt.Printf("%s\t%s\t%s\n", booking.BookingRef, issued.Offer.OfferID, issued.Link)
	}
	return nil
}

// setupLogging configures logrus level and optional rotating file output.
func setupLogging(cfg config.LoggingConfig) {
	level, errParse := log.ParseLevel(cfg.Level)
	if errParse != nil {
		level = log.InfoLevel
	}
	log.SetLevel(level)

	if cfg.File == "" {
		return
	}
	rotator := &lumberjack.Logger{
		Filename:   cfg.File,
		MaxSize:    cfg.MaxSizeMB,
		MaxBackups: cfg.MaxBackups,
		MaxAge:     cfg.MaxAgeDays,
		Compress:   true,
	}
	log.SetOutput(io.MultiWriter(os.Stderr, rotator))
}
