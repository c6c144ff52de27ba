package router

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/draly94/SW/internal/access"
	"github.com/draly94/SW/internal/appointments"
	"github.com/draly94/SW/internal/branches"
	"github.com/draly94/SW/internal/compliance"
	httpmiddleware "github.com/draly94/SW/internal/http/middleware"
	"github.com/draly94/SW/internal/http/httpjson"
	"github.com/draly94/SW/internal/inventory"
	"github.com/draly94/SW/internal/overview"
	"github.com/draly94/SW/internal/patients"
	"github.com/draly94/SW/internal/profiles"
	"github.com/draly94/SW/internal/push"
	"github.com/draly94/SW/internal/session"
	"github.com/draly94/SW/internal/staff"
	"github.com/draly94/SW/pkg/logging"
)

// Pinger reports database health; *pgxpool.Pool satisfies it.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Config holds router configuration
type Config struct {
	Logger             *logging.Logger
	MetricsHandler     http.Handler
	CORSAllowedOrigins []string
	RateLimitRPS       float64
	RateLimitBurst     int
	DB                 Pinger

	// Identity token verification (HS256 secret and/or RS256 JWKS)
	AuthJWTSecret string
	AuthJWTIssuer string
	AuthJWKSURL   string

	Memberships access.MembershipGetter

	Session      *session.Handler
	Profiles     *profiles.Handler
	Push         *push.Handler
	Overview     *overview.StatsHandler
	Branches     *branches.Handler
	Appointments *appointments.Handler
	Patients     *patients.Handler
	Staff        *staff.Handler
	Inventory    *inventory.Handler
	Audit        *compliance.Handler
}

// New creates a new Chi router with all routes configured
func New(cfg *Config) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Compress(5))
	if len(cfg.CORSAllowedOrigins) > 0 {
		r.Use(httpmiddleware.CORS(cfg.CORSAllowedOrigins))
	}
	if cfg.Logger != nil {
		r.Use(httpmiddleware.RequestLogger(cfg.Logger))
	}

	r.Group(func(public chi.Router) {
		public.Get("/health", healthHandler(cfg.DB))
		if cfg.MetricsHandler != nil {
			public.Handle("/metrics", cfg.MetricsHandler)
		}
	})

	r.Route("/api", func(api chi.Router) {
		if cfg.RateLimitRPS > 0 {
			api.Use(httpmiddleware.RateLimit(cfg.RateLimitRPS, cfg.RateLimitBurst))
		}
		api.Use(httpmiddleware.Identity(cfg.AuthJWTSecret, cfg.AuthJWKSURL, cfg.AuthJWTIssuer))

		api.Route("/me", func(me chi.Router) {
			if cfg.Session != nil {
				me.Get("/app-data", cfg.Session.AppData)
			}
			if cfg.Profiles != nil {
				me.Get("/profile", cfg.Profiles.Get)
				me.Put("/profile", cfg.Profiles.Update)
			}
			if cfg.Push != nil {
				me.Post("/push-subscriptions", cfg.Push.Subscribe)
				me.Delete("/push-subscriptions", cfg.Push.Unsubscribe)
			}
		})

		if cfg.Memberships == nil {
			return
		}
		api.Route("/branches/{branchID}", func(branch chi.Router) {
			branch.Use(branchScope)
			branch.Use(access.RequireMember(cfg.Memberships, cfg.Logger))

			branch.Get("/permissions", access.Current)
			if cfg.Overview != nil {
				branch.Get("/overview", cfg.Overview.GetStats)
			}
			if cfg.Branches != nil {
				branch.Get("/clinics", cfg.Branches.Clinics)
				branch.Get("/settings/{kind}", cfg.Branches.GetConfig)
				branch.With(access.Require(access.Staff, access.Update)).Put("/settings/{kind}", cfg.Branches.SaveConfig)
			}
			if cfg.Appointments != nil {
				branch.With(access.Require(access.Appointments, access.Read)).Get("/schedule", cfg.Appointments.Schedule)
				branch.With(access.Require(access.Appointments, access.Create)).Post("/appointments", cfg.Appointments.Create)
				branch.With(pathIDs, access.Require(access.Appointments, access.Update)).Put("/appointments/{appointmentID}", cfg.Appointments.Update)
			}
			if cfg.Patients != nil {
				branch.Route("/patients", func(r chi.Router) {
					r.With(access.Require(access.Patients, access.Read)).Get("/", cfg.Patients.List)
					r.With(access.Require(access.Patients, access.Create)).Post("/", cfg.Patients.Create)
					r.With(pathIDs, access.Require(access.Patients, access.Read)).Get("/{patientID}", cfg.Patients.Get)
					r.With(pathIDs, access.Require(access.Patients, access.Update)).Put("/{patientID}", cfg.Patients.Update)
					if cfg.Appointments != nil {
						r.With(pathIDs, access.Require(access.Appointments, access.Read)).Get("/{patientID}/appointments", cfg.Appointments.ForPatient)
					}
				})
			}
			if cfg.Staff != nil {
				branch.With(access.Require(access.Appointments, access.Read)).Get("/providers", cfg.Staff.Providers)
				branch.Route("/staff", func(r chi.Router) {
					r.With(access.Require(access.Staff, access.Read)).Get("/", cfg.Staff.List)
					r.With(access.Require(access.Staff, access.Create)).Post("/invitations", cfg.Staff.Invite)
					r.With(access.Require(access.Staff, access.Create)).Post("/invitations/resend", cfg.Staff.Resend)
					r.With(pathIDs, access.Require(access.Staff, access.Read)).Get("/{userID}/permissions", cfg.Staff.Permissions)
					r.With(pathIDs, access.Require(access.Staff, access.Update)).Put("/{userID}/permissions", cfg.Staff.SetPermission)
				})
			}
			if cfg.Inventory != nil {
				branch.Route("/inventory", func(r chi.Router) {
					r.With(access.Require(access.Inventory, access.Read)).Get("/", cfg.Inventory.List)
					r.With(access.Require(access.Inventory, access.Create)).Post("/", cfg.Inventory.Create)
					r.With(pathIDs, access.Require(access.Inventory, access.Update)).Put("/{itemID}/stock", cfg.Inventory.SetStock)
				})
			}
			if cfg.Audit != nil {
				branch.With(access.Require(access.Staff, access.Read)).Get("/audit", cfg.Audit.List)
			}
		})
	})

	return r
}

func healthHandler(db Pinger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if db != nil {
			ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
			defer cancel()
			if err := db.Ping(ctx); err != nil {
				httpjson.Write(w, http.StatusServiceUnavailable, map[string]string{"status": "degraded", "database": "unreachable"})
				return
			}
		}
		httpjson.Write(w, http.StatusOK, map[string]string{"status": "ok"})
	}
}
