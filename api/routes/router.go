package routes

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/angelmondragon/sitestock-backend/api/controllers"
	catalogcontrollers "github.com/angelmondragon/sitestock-backend/api/controllers/catalog"
	inventorycontrollers "github.com/angelmondragon/sitestock-backend/api/controllers/inventory"
	requestcontrollers "github.com/angelmondragon/sitestock-backend/api/controllers/materialrequests"
	projectcontrollers "github.com/angelmondragon/sitestock-backend/api/controllers/projects"
	transactioncontrollers "github.com/angelmondragon/sitestock-backend/api/controllers/transactions"
	"github.com/angelmondragon/sitestock-backend/api/middleware"
	"github.com/angelmondragon/sitestock-backend/internal/catalog"
	"github.com/angelmondragon/sitestock-backend/internal/inventory"
	"github.com/angelmondragon/sitestock-backend/internal/issuance"
	"github.com/angelmondragon/sitestock-backend/internal/materialrequests"
	"github.com/angelmondragon/sitestock-backend/internal/notifications"
	"github.com/angelmondragon/sitestock-backend/internal/rollup"
	"github.com/angelmondragon/sitestock-backend/internal/transactions"
	"github.com/angelmondragon/sitestock-backend/pkg/config"
	"github.com/angelmondragon/sitestock-backend/pkg/enums"
	"github.com/angelmondragon/sitestock-backend/pkg/logger"
	"github.com/angelmondragon/sitestock-backend/pkg/metrics"
)

type pinger interface {
	Ping(ctx context.Context) error
}

// Services groups the domain services the API exposes.
type Services struct {
	Catalog       catalog.Service
	Requests      materialrequests.Service
	Issuance      issuance.Service
	Inventory     inventory.Service
	Transactions  transactions.Service
	Rollup        rollup.Service
	Notifications notifications.Service
}

// Infra carries the shared clients. Gatherer defaults to the prometheus
// default registry.
type Infra struct {
	DB          pinger
	Redis       pinger
	Idempotency middleware.ResponseStore
	Gatherer    prometheus.Gatherer
	HTTPMetrics *metrics.HTTPMetrics
}

func NewRouter(cfg *config.Config, logg *logger.Logger, infra Infra, svc Services) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.RequestID(logg),
		middleware.Recoverer(logg),
		middleware.Logging(logg, infra.HTTPMetrics),
		middleware.CORS(cfg.App.CORSOrigins),
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, infra.DB, infra.Redis))
	})

	gatherer := infra.Gatherer
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	r.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))

	approvers := middleware.RequireRole(logg, enums.UserRoleAdmin, enums.UserRoleProjectManager)
	storekeepers := middleware.RequireRole(logg, enums.UserRoleAdmin, enums.UserRoleStorekeeper)
	admins := middleware.RequireRole(logg, enums.UserRoleAdmin)

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, logg))
		r.Use(middleware.Idempotency(infra.Idempotency, logg))

		r.Route("/material-requests", func(r chi.Router) {
			r.Post("/", requestcontrollers.Create(svc.Requests, logg))
			r.Get("/", requestcontrollers.List(svc.Requests, logg))
			r.Route("/{requestId}", func(r chi.Router) {
				r.Get("/", requestcontrollers.Get(svc.Requests, logg))
				r.Patch("/", requestcontrollers.Update(svc.Requests, logg))
				r.Delete("/", requestcontrollers.Delete(svc.Requests, logg))
				r.With(approvers).Post("/approve", requestcontrollers.Approve(svc.Requests, logg))
				r.With(approvers).Post("/reject", requestcontrollers.Reject(svc.Requests, logg))
				r.With(storekeepers).Post("/issue", requestcontrollers.Issue(svc.Issuance, logg))
			})
		})

		r.With(storekeepers).Post("/material-returns", transactioncontrollers.CreateReturn(svc.Issuance, logg))
		r.Get("/material-transactions", transactioncontrollers.List(svc.Transactions, logg))

		r.Route("/inventory/{warehouseId}", func(r chi.Router) {
			r.Get("/", inventorycontrollers.List(svc.Inventory, logg))
			r.Get("/low-stock", inventorycontrollers.LowStock(svc.Inventory, logg))
			r.Get("/materials/{materialId}", inventorycontrollers.Get(svc.Inventory, logg))
			r.With(storekeepers).Put("/materials/{materialId}", inventorycontrollers.SetQuantity(svc.Inventory, logg))
			r.With(storekeepers).Post("/materials/{materialId}/adjust", inventorycontrollers.Adjust(svc.Inventory, logg))
		})

		r.Route("/materials", func(r chi.Router) {
			r.Get("/", catalogcontrollers.ListMaterials(svc.Catalog, logg))
			r.Get("/{materialId}", catalogcontrollers.GetMaterial(svc.Catalog, logg))
			r.With(admins).Post("/", catalogcontrollers.CreateMaterial(svc.Catalog, logg))
		})

		r.Route("/projects", func(r chi.Router) {
			r.With(admins).Post("/", catalogcontrollers.CreateProject(svc.Catalog, logg))
			r.Route("/{projectId}", func(r chi.Router) {
				r.Get("/", catalogcontrollers.GetProject(svc.Catalog, logg))
				r.Get("/materials", projectcontrollers.ListMaterials(svc.Catalog, svc.Rollup, logg))
				r.Get("/materials/reconcile", projectcontrollers.Reconcile(svc.Catalog, svc.Rollup, logg))
				r.With(approvers).Put("/materials/{materialId}/plan", projectcontrollers.Plan(svc.Catalog, svc.Rollup, logg))
			})
		})

		r.With(admins).Post("/warehouses", catalogcontrollers.CreateWarehouse(svc.Catalog, logg))

		r.Route("/notifications", func(r chi.Router) {
			r.Get("/", controllers.ListNotifications(svc.Notifications, logg))
			r.Post("/read-all", controllers.MarkAllNotificationsRead(svc.Notifications, logg))
			r.Post("/{notificationId}/read", controllers.MarkNotificationRead(svc.Notifications, logg))
		})
	})

	return r
}
