package main

import (
	"context"
	"database/sql"
	"net/http"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/draly94/SW/internal/access"
	"github.com/draly94/SW/internal/api/router"
	"github.com/draly94/SW/internal/appointments"
	"github.com/draly94/SW/internal/branches"
	"github.com/draly94/SW/internal/compliance"
	appconfig "github.com/draly94/SW/internal/config"
	"github.com/draly94/SW/internal/events"
	"github.com/draly94/SW/internal/inventory"
	"github.com/draly94/SW/internal/notify"
	"github.com/draly94/SW/internal/observability/metrics"
	"github.com/draly94/SW/internal/overview"
	"github.com/draly94/SW/internal/patients"
	"github.com/draly94/SW/internal/profiles"
	"github.com/draly94/SW/internal/push"
	"github.com/draly94/SW/internal/session"
	"github.com/draly94/SW/internal/staff"
	"github.com/draly94/SW/pkg/logging"
)

// connectPostgresPool opens the pgx pool, or returns nil when the URL is
// empty or the database is unreachable.
func connectPostgresPool(ctx context.Context, databaseURL string, logger *logging.Logger) *pgxpool.Pool {
	if databaseURL == "" {
		return nil
	}
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		logger.Error("failed to connect to postgres", "error", err)
		return nil
	}
	if err := pool.Ping(ctx); err != nil {
		logger.Error("postgres ping failed", "error", err)
		pool.Close()
		return nil
	}
	return pool
}

// setupMetrics builds the registry served at /metrics.
func setupMetrics() (http.Handler, *metrics.ClinicMetrics) {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.NewClinicMetrics(reg)
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{}), m
}

// app groups the wired HTTP surface and background deliverer.
type app struct {
	handler   http.Handler
	deliverer *events.Deliverer
}

func buildApp(cfg *appconfig.Config, pool *pgxpool.Pool, sqlDB *sql.DB, redisClient *redis.Client, sender notify.EmailSender, logger *logging.Logger) *app {
	metricsHandler, clinicMetrics := setupMetrics()

	memberships := access.NewStore(pool)
	branchStore := branches.NewStore(pool)
	configs := branches.NewConfigService(branchStore, branches.NewConfigCache(redisClient, cfg.ConfigCacheTTL), logger)
	audit := compliance.NewAuditService(sqlDB)
	profileStore := profiles.NewStore(pool)

	appointmentService := appointments.NewService(appointments.NewStore(pool), branchStore, clinicMetrics, logger)
	patientService := patients.NewService(patients.NewStore(pool), audit, logger)
	staffService := staff.NewService(staff.NewStore(pool, logger), memberships, branchStore, audit, logger)
	inventoryService := inventory.NewService(inventory.NewStore(pool), configs, logger)
	loader := session.NewLoader(staffService, branchStore, memberships, clinicMetrics, cfg.AppDataMaxAttempts, logger)

	outbox := events.NewRouter(logger)
	processed := events.NewProcessedStore(pool)
	outbox.Register(events.TypeInvitationEmail, processed.Once(events.TypeInvitationEmail, notify.NewInvitationMailer(sender, cfg.PublicAppURL, logger)))
	deliverer := events.NewDeliverer(events.NewOutboxStore(pool), outbox, logger).
		WithInterval(cfg.OutboxInterval).
		WithMetrics(clinicMetrics)

	handler := router.New(&router.Config{
		Logger:             logger,
		MetricsHandler:     metricsHandler,
		CORSAllowedOrigins: cfg.CORSAllowedOrigins,
		RateLimitRPS:       cfg.RateLimitRPS,
		RateLimitBurst:     cfg.RateLimitBurst,
		DB:                 pool,
		AuthJWTSecret:      cfg.AuthJWTSecret,
		AuthJWTIssuer:      cfg.AuthJWTIssuer,
		AuthJWKSURL:        cfg.AuthJWKSURL,
		Memberships:        memberships,
		Session:            session.NewHandler(loader, logger),
		Profiles:           profiles.NewHandler(profileStore, logger),
		Push:               push.NewHandler(push.NewStore(pool), logger),
		Overview:           overview.NewStatsHandler(overview.NewStatsRepository(pool), profileStore, logger),
		Branches:           branches.NewHandler(branchStore, configs, logger),
		Appointments:       appointments.NewHandler(appointmentService, logger),
		Patients:           patients.NewHandler(patientService, logger),
		Staff:              staff.NewHandler(staffService, logger),
		Inventory:          inventory.NewHandler(inventoryService, logger),
		Audit:              compliance.NewHandler(audit, logger),
	})
	return &app{handler: handler, deliverer: deliverer}
}
