package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/bazaarhq/bazaar-backend/api/controllers"
	deliverycontrollers "github.com/bazaarhq/bazaar-backend/api/controllers/delivery"
	ordercontrollers "github.com/bazaarhq/bazaar-backend/api/controllers/orders"
	payoutcontrollers "github.com/bazaarhq/bazaar-backend/api/controllers/payouts"
	"github.com/bazaarhq/bazaar-backend/api/middleware"
	"github.com/bazaarhq/bazaar-backend/internal/auth"
	"github.com/bazaarhq/bazaar-backend/internal/notifications"
	"github.com/bazaarhq/bazaar-backend/pkg/config"
	"github.com/bazaarhq/bazaar-backend/pkg/db"
	"github.com/bazaarhq/bazaar-backend/pkg/enums"
	"github.com/bazaarhq/bazaar-backend/pkg/logger"
	"github.com/bazaarhq/bazaar-backend/pkg/redis"
)

const (
	roleAdmin    = enums.ActorRoleAdmin
	roleShop     = enums.ActorRoleShop
	roleCompany  = enums.ActorRoleCompany
	roleDriver   = enums.ActorRoleDriver
	roleCustomer = enums.ActorRoleCustomer
)

// Services groups the domain services mounted by NewRouter.
type Services struct {
	Auth          auth.Service
	Orders        ordercontrollers.Service
	Delivery      deliverycontrollers.Service
	Payouts       payoutcontrollers.Service
	Notifications notifications.Service
}

func NewRouter(
	cfg *config.Config,
	logg *logger.Logger,
	dbP db.Pinger,
	redisClient *redis.Client,
	svc Services,
) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.CORS(cfg.App.CORSOrigins...),
	)

	// A nil *redis.Client must not leak into the interfaces below as a typed nil.
	var (
		idempotencyStore redis.IdempotencyStore
		rateStore        middleware.RateLimitStore
		checks           []controllers.ReadinessCheck
	)
	if dbP != nil {
		checks = append(checks, controllers.ReadinessCheck{Name: "database", Check: dbP.Ping})
	}
	if redisClient != nil {
		idempotencyStore = redisClient
		rateStore = redisClient
		checks = append(checks, controllers.ReadinessCheck{Name: "redis", Check: redisClient.Ping})
	}

	limits := cfg.AuthRateLimit
	loginLimiter := middleware.RateLimit(middleware.RateLimitRule{
		Name:       "login",
		Window:     limits.LoginWindow,
		PerIP:      limits.LoginIPLimit,
		PerAccount: limits.LoginEmailLimit,
	}, rateStore, logg)
	registerLimiter := middleware.RateLimit(middleware.RateLimitRule{
		Name:   "register",
		Window: limits.RegisterWindow,
		PerIP:  limits.RegisterIPLimit,
	}, rateStore, logg)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, checks...))
	})
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		r.With(loginLimiter).Post("/auth/login", controllers.AuthLogin(svc.Auth, logg))

		// Public surface: anonymous checkout, tracking and digital downloads.
		r.Group(func(r chi.Router) {
			r.Use(middleware.OptionalAuth(cfg.JWT, logg))
			r.Use(middleware.Idempotency(idempotencyStore, logg))
			r.Post("/orders", ordercontrollers.Create(svc.Orders, logg))
			r.Get("/orders/track/{trackingCode}", ordercontrollers.Track(svc.Orders, logg))
			r.Get("/orders/details/{detailId}/digitals/download", ordercontrollers.DownloadDigital(svc.Orders, logg))
			r.With(registerLimiter).Post("/delivery/companies/register", deliverycontrollers.RegisterCompany(svc.Delivery, logg))
		})

		r.Group(func(r chi.Router) {
			r.Use(middleware.Auth(cfg.JWT, logg))
			r.Use(middleware.Idempotency(idempotencyStore, logg))

			// Orders and delivery share path prefixes with the public group, so
			// they stay flat instead of mounting sub-routers.
			r.Get("/orders", ordercontrollers.List(svc.Orders, logg))
			r.Get("/orders/{orderId}", ordercontrollers.Detail(svc.Orders, logg))
			r.Get("/orders/{orderId}/logs", ordercontrollers.Logs(svc.Orders, logg))
			r.With(middleware.RequireRole(logg, roleAdmin, roleShop)).
				Put("/orders/details/{detailId}/status", ordercontrollers.UpdateStatus(svc.Orders, logg))
			r.With(middleware.RequireRole(logg, roleAdmin, roleCustomer)).
				Post("/orders/details/{detailId}/refund", ordercontrollers.RequestRefund(svc.Orders, logg))

			r.With(middleware.RequireRole(logg, roleAdmin)).
				Post("/delivery/companies", deliverycontrollers.CreateCompany(svc.Delivery, logg))
			r.Group(func(r chi.Router) {
				r.Use(middleware.RequireRole(logg, roleAdmin, roleCompany))
				r.Get("/delivery/companies/{companyId}", deliverycontrollers.GetCompany(svc.Delivery, logg))
				r.Put("/delivery/companies/{companyId}", deliverycontrollers.UpdateCompany(svc.Delivery, logg))
				r.Get("/delivery/companies/{companyId}/zones", deliverycontrollers.ListZones(svc.Delivery, logg))
				r.Post("/delivery/companies/{companyId}/zones", deliverycontrollers.CreateZone(svc.Delivery, logg))
				r.Put("/delivery/zones/{zoneId}", deliverycontrollers.UpdateZone(svc.Delivery, logg))
				r.Post("/delivery/drivers", deliverycontrollers.CreateDriver(svc.Delivery, logg))
				r.Put("/delivery/drivers/{driverId}", deliverycontrollers.UpdateDriver(svc.Delivery, logg))
			})
			r.With(middleware.RequireRole(logg, roleDriver)).
				Post("/delivery/drivers/{driverId}/position", deliverycontrollers.UpdatePosition(svc.Delivery, logg))
			r.Group(func(r chi.Router) {
				r.Use(middleware.RequireRole(logg, roleAdmin, roleCompany, roleDriver))
				r.Post("/delivery/orders/assign", deliverycontrollers.AssignDriverMultiple(svc.Delivery, logg))
				r.Post("/delivery/orders/{detailId}/assign", deliverycontrollers.AssignDriver(svc.Delivery, logg))
				r.Put("/delivery/orders/{detailId}/status", deliverycontrollers.ChangeStatus(svc.Delivery, logg))
			})

			r.Route("/payouts", func(r chi.Router) {
				r.Use(middleware.RequireRole(logg, roleAdmin, roleShop, roleCompany))
				r.Get("/balance", payoutcontrollers.Balance(svc.Payouts, logg))
				r.Get("/requests", payoutcontrollers.ListRequests(svc.Payouts, logg))
				r.Get("/requests/{requestId}", payoutcontrollers.GetRequest(svc.Payouts, logg))
				r.Get("/requests/{requestId}/items", payoutcontrollers.RequestItems(svc.Payouts, logg))
				r.Get("/accounts", payoutcontrollers.ListAccounts(svc.Payouts, logg))
				r.Group(func(r chi.Router) {
					r.Use(middleware.RequireRole(logg, roleShop, roleCompany))
					r.Post("/requests", payoutcontrollers.SendRequest(svc.Payouts, logg))
					r.Post("/accounts", payoutcontrollers.CreateAccount(svc.Payouts, logg))
				})
			})

			r.Route("/notifications", func(r chi.Router) {
				r.Get("/", controllers.ListNotifications(svc.Notifications, logg))
				r.Post("/{notificationId}/read", controllers.MarkNotificationRead(svc.Notifications, logg))
				r.Post("/read-all", controllers.MarkAllNotificationsRead(svc.Notifications, logg))
			})

			r.Route("/admin", func(r chi.Router) {
				r.Use(middleware.RequireRole(logg, roleAdmin))
				r.Post("/orders/{orderId}/paid", ordercontrollers.MarkPaid(svc.Orders, logg))
				r.Get("/orders/stats", ordercontrollers.SaleStats(svc.Orders, logg))
				r.Post("/payouts/{requestId}/approve", payoutcontrollers.Approve(svc.Payouts, logg))
				r.Post("/payouts/{requestId}/reject", payoutcontrollers.Reject(svc.Payouts, logg))
				r.Get("/payouts/stats", payoutcontrollers.Stats(svc.Payouts, logg))
			})
		})
	})

	return r
}
