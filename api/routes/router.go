package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/angelmondragon/certtrack-backend/api/controllers"
	"github.com/angelmondragon/certtrack-backend/api/middleware"
	"github.com/angelmondragon/certtrack-backend/internal/auth"
	"github.com/angelmondragon/certtrack-backend/internal/certconfig"
	"github.com/angelmondragon/certtrack-backend/internal/certificates"
	"github.com/angelmondragon/certtrack-backend/internal/editrequests"
	"github.com/angelmondragon/certtrack-backend/internal/export"
	"github.com/angelmondragon/certtrack-backend/internal/licensees"
	"github.com/angelmondragon/certtrack-backend/internal/preview"
	"github.com/angelmondragon/certtrack-backend/internal/receipts"
	"github.com/angelmondragon/certtrack-backend/internal/registration"
	"github.com/angelmondragon/certtrack-backend/pkg/auth/session"
	"github.com/angelmondragon/certtrack-backend/pkg/config"
	"github.com/angelmondragon/certtrack-backend/pkg/db"
	"github.com/angelmondragon/certtrack-backend/pkg/logger"
	"github.com/angelmondragon/certtrack-backend/pkg/metrics"
	"github.com/angelmondragon/certtrack-backend/pkg/redis"
)

// Services bundles everything the router wires into handlers.
type Services struct {
	Auth         auth.Service
	Certificates certificates.Service
	Registration registration.Service
	EditRequests editrequests.Service
	Licensees    licensees.Service
	Receipts     receipts.Service
	Config       certconfig.Service
	Lookups      certconfig.LookupsService
	Export       export.Service
	Preview      preview.Service
}

func NewRouter(
	cfg *config.Config,
	logg *logger.Logger,
	dbP db.Pinger,
	redisP redis.Pinger,
	sessions session.AccessSessionChecker,
	httpMetrics *metrics.HTTPMetrics,
	gatherer prometheus.Gatherer,
	svcs Services,
) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
	)
	if httpMetrics != nil {
		r.Use(middleware.Metrics(httpMetrics))
	}

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, dbP, redisP))
	})
	if gatherer != nil {
		r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	}

	authMW := middleware.Auth(cfg.JWT, sessions, svcs.Auth, logg)

	r.Route("/api/v1/auth", func(r chi.Router) {
		r.Post("/login", controllers.AuthLogin(svcs.Auth, logg))
		r.Post("/refresh", controllers.AuthRefresh(svcs.Auth, logg))
		r.With(authMW).Post("/logout", controllers.AuthLogout(svcs.Auth, logg))
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(authMW)

		r.Route("/certificates", func(r chi.Router) {
			r.Get("/", controllers.CertificateSearch(svcs.Certificates, logg))
			r.Get("/export", controllers.CertificateExport(svcs.Export, logg))
			r.Route("/{number}", func(r chi.Router) {
				r.Get("/", controllers.CertificateGet(svcs.Certificates, logg))
				r.Post("/issue", controllers.CertificateIssue(svcs.Certificates, logg))
				r.Post("/preview", controllers.CertificatePreview(svcs.Certificates, svcs.Preview, logg))
				r.Post("/status", controllers.CertificateStatusUpdate(svcs.Certificates, logg))
				r.Post("/void", controllers.CertificateVoid(svcs.Certificates, logg))
				r.Post("/edit", controllers.EditRequestSubmit(svcs.EditRequests, logg))
			})
		})

		r.Route("/edit-requests/{id}", func(r chi.Router) {
			r.Get("/", controllers.EditRequestGet(svcs.EditRequests, logg))
			r.Get("/certificate", controllers.EditRequestAsOf(svcs.EditRequests, logg))
			r.Post("/review", controllers.EditRequestReview(svcs.EditRequests, logg))
		})

		r.Route("/licensees/{id}", func(r chi.Router) {
			r.Get("/", controllers.LicenseeGet(svcs.Licensees, logg))
			r.Get("/contacts", controllers.LicenseeContacts(svcs.Licensees, logg))
			r.Post("/addresses", controllers.LicenseeAddressCreate(svcs.Licensees, logg))
			r.Put("/addresses/{addressID}", controllers.LicenseeAddressUpdate(svcs.Licensees, logg))
			r.Delete("/addresses/{addressID}", controllers.LicenseeAddressDelete(svcs.Licensees, logg))
		})

		r.Get("/config", controllers.ConfigGet(svcs.Config, svcs.Lookups, logg))
	})

	r.Route("/api/admin/v1", func(r chi.Router) {
		r.Use(authMW)
		r.Use(middleware.RequireAdmin(logg))

		r.Post("/certificates/register", controllers.CertificateRegister(svcs.Registration, logg))
		r.Get("/certificates/next-number", controllers.CertificateNextNumber(svcs.Certificates, logg))
		r.Get("/receipts/{id}", controllers.ReceiptGet(svcs.Receipts, logg))
		r.Put("/config", controllers.ConfigUpdate(svcs.Config, logg))
		r.Route("/lookups/{kind}", func(r chi.Router) {
			r.Post("/", controllers.LookupCreate(svcs.Lookups, logg))
			r.Delete("/{id}", controllers.LookupDelete(svcs.Lookups, logg))
		})
	})

	return r
}
