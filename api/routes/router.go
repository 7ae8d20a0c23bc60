package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/daviskamau/learnhub-backend/api/controllers"
	webhookcontrollers "github.com/daviskamau/learnhub-backend/api/controllers/webhooks"
	"github.com/daviskamau/learnhub-backend/api/middleware"
	checkoutsvc "github.com/daviskamau/learnhub-backend/internal/checkout"
	"github.com/daviskamau/learnhub-backend/internal/courses"
	enrollsvc "github.com/daviskamau/learnhub-backend/internal/enrollments"
	"github.com/daviskamau/learnhub-backend/internal/gateway"
	"github.com/daviskamau/learnhub-backend/internal/purchases"
	referralsvc "github.com/daviskamau/learnhub-backend/internal/referrals"
	"github.com/daviskamau/learnhub-backend/internal/webhooks"
	"github.com/daviskamau/learnhub-backend/pkg/config"
	"github.com/daviskamau/learnhub-backend/pkg/db"
	"github.com/daviskamau/learnhub-backend/pkg/logger"
	"github.com/daviskamau/learnhub-backend/pkg/metrics"
	"github.com/daviskamau/learnhub-backend/pkg/redis"
)

type RouterParams struct {
	Config   *config.Config
	Logger   *logger.Logger
	DB       db.Pinger
	Redis    *redis.Client
	Registry *prometheus.Registry

	PaystackAdapter *gateway.PaystackAdapter
	StripeAdapter   *gateway.StripeAdapter
	Reconciler      webhookcontrollers.Reconciler
	PaystackGuard   *webhooks.IdempotencyGuard
	StripeGuard     *webhooks.IdempotencyGuard
	WebhookMetrics  *metrics.WebhookMetrics

	CourseRepo        courses.Repository
	PurchaseRepo      purchases.Repository
	EnrollmentService *enrollsvc.Service
	ReferralService   *referralsvc.Service
	CheckoutService   *checkoutsvc.Service
}

func NewRouter(p RouterParams) http.Handler {
	cfg := p.Config
	logg := p.Logger

	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.CORS(),
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, p.DB, p.Redis, logg))
	})

	if p.Registry != nil {
		r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(p.Registry, promhttp.HandlerOpts{}))
	}

	r.Route("/api/v1/webhooks", func(r chi.Router) {
		r.Post("/paystack", webhookcontrollers.PaystackWebhook(p.PaystackAdapter, p.Reconciler, p.PaystackGuard, p.WebhookMetrics, logg))
		r.Post("/stripe", webhookcontrollers.StripeWebhook(p.StripeAdapter, p.Reconciler, p.StripeGuard, p.WebhookMetrics, logg))
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/courses", controllers.ListCourses(p.CourseRepo, logg))
		r.Get("/courses/{courseId}", controllers.GetCourse(p.CourseRepo, logg))

		r.Group(func(r chi.Router) {
			r.Use(middleware.Auth(cfg.JWT, logg))

			r.Post("/checkout", controllers.CreateCheckoutSession(p.CheckoutService, logg))
			r.Get("/checkout/verify/{reference}", controllers.VerifyCheckout(p.CheckoutService, logg))

			r.Get("/enrollments", controllers.ListMyEnrollments(p.EnrollmentService, logg))
			r.Post("/enrollments/{courseId}/lessons/{lessonId}/complete", controllers.CompleteLesson(p.EnrollmentService, logg))

			r.Get("/purchases", controllers.ListMyPurchases(p.PurchaseRepo, logg))
			r.Get("/referrals", controllers.ReferralSummary(p.ReferralService, logg))
		})
	})

	return r
}
