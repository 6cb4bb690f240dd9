package main // Entry point package

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"                   // Echo web framework
	echomw "github.com/labstack/echo/v4/middleware" // Echo's bundled middleware
	"github.com/rs/zerolog/log"

	"github.com/iliyamo/ticket-gate/internal/config"
	"github.com/iliyamo/ticket-gate/internal/database"
	"github.com/iliyamo/ticket-gate/internal/encoder"
	"github.com/iliyamo/ticket-gate/internal/handler"
	"github.com/iliyamo/ticket-gate/internal/logging"
	"github.com/iliyamo/ticket-gate/internal/middleware"
	"github.com/iliyamo/ticket-gate/internal/queue"
	"github.com/iliyamo/ticket-gate/internal/repository"
	"github.com/iliyamo/ticket-gate/internal/router"
	"github.com/iliyamo/ticket-gate/internal/service"
)

// stores is the storage backend picked by STORE_BACKEND.
type stores struct {
	tickets service.TicketStore
	seq     service.Sequencer
	users   service.UserStore
	events  service.EventStore
	// mark and issued restore the Redis counter at startup.
	mark   repository.HighWater
	issued repository.IssuedNumbers
	close  func()
}

func main() {
	cfg := config.Load() // Load environment config
	logging.Setup(cfg.LogLevel, cfg.LogFormat)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	st := openStores(ctx, cfg)
	defer st.close()

	rdb := config.NewRedisClient(config.LoadRedisConfig())
	if rdb != nil {
		defer rdb.Close()
	}

	if cfg.SequenceBackend == config.SequenceRedis {
		if rdb == nil {
			log.Fatal().Msg("SEQUENCE_BACKEND=redis but redis is unreachable")
		}
		rs := repository.NewRedisSequence(rdb, "seq", st.mark)
		v, err := rs.Restore(ctx, repository.TicketSequenceKey, st.issued)
		if err != nil {
			log.Fatal().Err(err).Msg("seed redis ticket sequence")
		}
		log.Info().Uint64("value", v).Msg("redis ticket sequence ready")
		st.seq = rs
	}

	var pub queue.Publisher = queue.Noop{}
	if cfg.EventsEnabled {
		pub = queue.NewAMQPPublisher(cfg.AMQPURL)
		consumer := queue.NewAuditConsumer(cfg.AMQPURL, cfg.EventsLogDir)
		go func() {
			if err := consumer.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				log.Error().Err(err).Msg("audit consumer stopped")
			}
		}()
	}

	enc := encoder.NewQR(cfg.QRSize, cfg.QRLevel)
	accounts := service.NewAccounts(st.users, service.AccountsConfig{
		JWTSecret:      cfg.JWTSecret,
		AccessTokenTTL: cfg.AccessTTLMin,
		BcryptCost:     cfg.BcryptCost,
	})
	registry := service.NewRegistry(st.tickets, st.seq, enc, pub, service.RegistryConfig{
		NumberWidth: cfg.TicketNumberWidth,
		MaxAttempts: cfg.SequenceMaxAttempts,
	})
	checkin := service.NewCheckIn(st.tickets, enc, pub, cfg.CheckinMaxAttempts)
	exporter := service.NewExporter(st.tickets, enc)
	events := service.NewEvents(st.events)

	e := echo.New() // Create Echo instance
	e.HideBanner = true
	e.HidePort = true
	e.Use(echomw.Recover())
	e.Use(echomw.RequestLoggerWithConfig(echomw.RequestLoggerConfig{
		LogMethod:  true,
		LogURI:     true,
		LogStatus:  true,
		LogLatency: true,
		LogError:   true,
		LogValuesFunc: func(c echo.Context, v echomw.RequestLoggerValues) error {
			ev := log.Info()
			if v.Status >= http.StatusInternalServerError {
				ev = log.Error().Err(v.Error)
			}
			ev.Str("method", v.Method).Str("uri", v.URI).Int("status", v.Status).Dur("latency", v.Latency).Msg("request")
			return nil
		},
	}))

	router.RegisterRoutes(e, router.Handlers{
		Auth:    handler.NewAuthHandler(accounts),
		Users:   handler.NewUserHandler(accounts),
		Tickets: handler.NewTicketHandler(registry, exporter),
		Scan:    handler.NewScanHandler(checkin),
		Events:  handler.NewEventHandler(events),
	}, accounts, middleware.NewTokenBucket(config.LoadRateLimitConfig(), rdb))

	addr := ":" + cfg.Port // Address string with port
	go func() {
		log.Info().Str("addr", addr).Str("env", cfg.Env).Str("store", cfg.StoreBackend).
			Str("sequence", cfg.SequenceBackend).Bool("events", cfg.EventsEnabled).Msg("listening")
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("server error")
		}
	}()

	// Graceful shutdown on SIGINT / SIGTERM
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down server")
	cancel()
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("forced shutdown")
	}
	log.Info().Msg("server exited")
}

func openStores(ctx context.Context, cfg config.Config) stores {
	if cfg.StoreBackend == config.BackendMemory {
		log.Warn().Msg("using in-memory store: data is lost on restart and must not be shared between processes")
		tickets := repository.NewMemTicketRepo()
		return stores{
			tickets: tickets,
			seq:     tickets,
			users:   repository.NewMemUserRepo(),
			events:  repository.NewMemEventRepo(),
			mark:    tickets,
			issued:  tickets,
			close:   func() {},
		}
	}

	db, err := database.Open(cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName)
	if err != nil {
		log.Fatal().Err(err).Msg("db connect")
	}
	if cfg.DBAutoMigrate {
		if err := database.Migrate(ctx, db); err != nil {
			log.Fatal().Err(err).Msg("db migrate")
		}
	}
	tickets := repository.NewTicketRepo(db)
	seq := repository.NewSequenceRepo(db)
	return stores{
		tickets: tickets,
		seq:     seq,
		users:   repository.NewUserRepo(db),
		events:  repository.NewEventRepo(db),
		mark:    seq,
		issued:  tickets,
		close:   func() { _ = db.Close() },
	}
}
