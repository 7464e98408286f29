package ginserver

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	gin "github.com/gin-gonic/gin"

	"rentalcore/internal/infra/config"
	"rentalcore/internal/infra/obs"
)

type Handlers struct {
	Catalog        CatalogHTTP
	Rentals        RentalHTTP
	Payments       PaymentHTTP
	AuthMiddleware gin.HandlerFunc
}

func NewServer(cfg config.Config, obsMW obs.Middleware, health obs.HealthHandlers, h Handlers) *http.Server {
	return &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           NewRouter(cfg, obsMW, health, h),
		ReadHeaderTimeout: 10 * time.Second,
	}
}

func NewRouter(cfg config.Config, obsMW obs.Middleware, health obs.HealthHandlers, h Handlers) *gin.Engine {
	mode := configureGinMode(cfg.Env)
	if obsMW.Logger != nil {
		obsMW.Logger.Info("gin initialized", "mode", mode)
	}

	router := gin.New()
	router.MaxMultipartMemory = 32 << 20
	router.Use(gin.Recovery())
	router.Use(obsMW.RequestID())
	router.Use(obsMW.LoggerMiddleware())
	router.Use(cors.New(corsConfig(cfg.CORS)))
	if h.AuthMiddleware != nil {
		router.Use(h.AuthMiddleware)
	}

	newAPIDocs(openAPIDocument, swaggerPage).register(router)

	router.GET("/livez", health.Livez)
	router.GET("/readyz", health.Readyz)

	api := router.Group("/api/v1")
	if h.Catalog != nil {
		api.GET("/products/:id/availability", h.Catalog.Availability)
		api.POST("/quotes", h.Catalog.Quote)
	}
	if h.Rentals != nil {
		api.POST("/rentals", h.Rentals.Create)
		rentals := api.Group("/rentals/:id")
		rentals.GET("", h.Rentals.Get)
		rentals.PUT("/approve", h.Rentals.Approve)
		rentals.PUT("/reject", h.Rentals.Reject)
		rentals.PUT("/cancel", h.Rentals.Cancel)
		rentals.PUT("/activate", h.Rentals.Activate)
		rentals.PUT("/initiate-return", h.Rentals.InitiateReturn)
		rentals.PUT("/return", h.Rentals.ConfirmReturn)
		rentals.POST("/dispute", h.Rentals.OpenDispute)
		rentals.PUT("/resolve-dispute", h.Rentals.ResolveDispute)
		rentals.PUT("/refund", h.Rentals.RecordRefund)
	}
	if h.Payments != nil {
		api.PUT("/rentals/:id/payment-proof", h.Payments.SubmitProof)
		api.PUT("/rentals/:id/verify-payment", h.Payments.Verify)
		api.POST("/rentals/:id/mark-slip-invalid", h.Payments.MarkSlipInvalid)
		api.GET("/rentals/:id/reconciliation", h.Payments.Reconciliation)
		api.GET("/owners/:id/payout-methods", h.Payments.PayoutMethods)
	}

	return router
}

func corsConfig(cfg config.CORSConfig) cors.Config {
	out := cors.Config{
		AllowOrigins: cfg.AllowOrigins,
		AllowMethods: []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders: []string{"Origin", "Content-Type", "Accept", "Authorization", "Idempotency-Key"},
		ExposeHeaders: []string{
			"Content-Length",
			"Content-Type",
			"X-Request-ID",
		},
		MaxAge: 12 * time.Hour,
	}
	if len(out.AllowOrigins) == 0 || (len(out.AllowOrigins) == 1 && out.AllowOrigins[0] == "*") {
		out.AllowOrigins = nil
		out.AllowAllOrigins = true
	}
	return out
}

func configureGinMode(env string) string {
	switch strings.ToLower(strings.TrimSpace(env)) {
	case "debug":
		gin.SetMode(gin.DebugMode)
		return gin.DebugMode
	case "test", "testing":
		gin.SetMode(gin.TestMode)
		return gin.TestMode
	default:
		gin.SetMode(gin.ReleaseMode)
		return gin.ReleaseMode
	}
}
