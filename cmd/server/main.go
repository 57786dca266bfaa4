package main

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"veranda/internal/audit"
	auditoutbox "veranda/internal/audit/outbox"
	auditstore "veranda/internal/audit/store"
	"veranda/internal/contact"
	contacthandler "veranda/internal/contact/handler"
	httpapi "veranda/internal/http"
	identitystore "veranda/internal/identity/store"
	listingstore "veranda/internal/listing/store"
	"veranda/internal/notify"
	"veranda/internal/platform/config"
	"veranda/internal/platform/httpserver"
	"veranda/internal/platform/logger"
	"veranda/internal/platform/metrics"
	"veranda/internal/platform/postgres"
	"veranda/internal/platform/redis"
	requeststore "veranda/internal/verification/store"
	"veranda/internal/workflow"
	workflowhandler "veranda/internal/workflow/handler"
	"veranda/internal/workflow/uow"
	"veranda/migrations"
)

// main wires collaborators and owns the process lifecycle. Postgres, Redis
// and Kafka are all optional: without them the service runs on in-memory
// stores, which is what local development and the test suite use.
func main() {
	cfg := config.FromEnv()
	log := logger.New()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := postgres.Open(cfg.Postgres)
	if err != nil {
		log.Error("postgres connection failed", "error", err)
		os.Exit(1)
	}
	if db != nil {
		defer db.Close()
		if err := migrations.Apply(ctx, db); err != nil {
			log.Error("schema migration failed", "error", err)
			os.Exit(1)
		}
	}

	cache, err := buildContactCache(cfg)
	if err != nil {
		log.Error("redis connection failed", "error", err)
		os.Exit(1)
	}

	stores, unit := buildStores(db)
	auditStore := buildAuditStore(db)
	publisher := audit.NewPublisher(auditStore)

	dispatcher := notify.NewDispatcher(notify.NewLogNotifier(log), 64, log)

	service := workflow.NewService(stores, unit, publisher,
		workflow.WithLogger(log),
		workflow.WithNotifier(dispatcher),
		workflow.WithMetrics(metrics.New()),
	)

	tokens := contact.NewEmailTokenService(cfg.Contact.EmailTokenSigningKey, cfg.Contact.EmailTokenTTL, cache)
	otps := contact.NewOTPService(cache, cfg.Contact.OTPTTL, cfg.Contact.OTPMaxAttempts)
	contacts := contact.NewService(tokens, otps, service,
		contact.WithLogger(log),
		contact.WithAuditPublisher(publisher),
	)

	router := httpapi.NewRouter(
		workflowhandler.New(service, publisher, log),
		contacthandler.New(contacts, contact.LogSender{Logger: log}, log),
	)
	srv := httpserver.New(cfg.Addr, router)

	group, ctx := errgroup.WithContext(ctx)

	group.Go(func() error {
		log.Info("server listening", "addr", cfg.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	group.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	group.Go(func() error {
		if err := dispatcher.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
		return nil
	})

	// The outbox relay needs both a durable outbox table and brokers to drain
	// it to; without either, audit entries stay queryable in the store.
	if db != nil && len(cfg.Kafka.Brokers) > 0 {
		relay, err := auditoutbox.New(db, cfg.Kafka.Brokers, cfg.Kafka.AuditTopic,
			auditoutbox.WithLogger(log),
		)
		if err != nil {
			log.Error("kafka client failed", "error", err)
			os.Exit(1)
		}
		defer relay.Close()
		if err := relay.EnsureTopic(ctx, 3, 1); err != nil {
			log.Error("audit topic setup failed", "error", err)
			os.Exit(1)
		}
		group.Go(func() error {
			if err := relay.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				return err
			}
			return nil
		})
	}

	if err := group.Wait(); err != nil {
		log.Error("server exited", "error", err)
		os.Exit(1)
	}
	log.Info("server stopped")
}

// buildStores selects Postgres-backed stores with transactional units of work
// when a database is configured, and in-memory stores guarded by sharded
// mutexes otherwise.
func buildStores(db *sql.DB) (workflow.Stores, uow.UnitOfWork) {
	if db != nil {
		return workflow.Stores{
			Identities: identitystore.NewPostgres(db),
			Listings:   listingstore.NewPostgresListings(db),
			Photos:     listingstore.NewPostgresPhotos(db),
			Documents:  listingstore.NewPostgresDocuments(db),
			Requests:   requeststore.NewPostgres(db),
		}, uow.NewPostgres(db)
	}
	return workflow.Stores{
		Identities: identitystore.NewInMemory(),
		Listings:   listingstore.NewInMemoryListings(),
		Photos:     listingstore.NewInMemoryPhotos(),
		Documents:  listingstore.NewInMemoryDocuments(),
		Requests:   requeststore.NewInMemory(),
	}, uow.NewSharded()
}

func buildAuditStore(db *sql.DB) audit.Store {
	if db != nil {
		return auditstore.NewPostgres(db)
	}
	return auditstore.NewInMemory()
}

func buildContactCache(cfg config.Config) (contact.Cache, error) {
	client, err := redis.New(cfg.Redis)
	if err != nil {
		return nil, err
	}
	if client == nil {
		return contact.NewMemoryCache(), nil
	}
	return contact.NewRedisCache(client), nil
}
