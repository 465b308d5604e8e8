package main

import (
	"context"
	"crypto/subtle"
	"errors"
	"net/http"
	"net/http/pprof"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/extra/redisotel/v9"
	redis "github.com/redis/go-redis/v9"

	"github.com/milsabores/backend-pasteleria/internal/auth"
	"github.com/milsabores/backend-pasteleria/internal/cart"
	"github.com/milsabores/backend-pasteleria/internal/catalog"
	"github.com/milsabores/backend-pasteleria/internal/checkout"
	"github.com/milsabores/backend-pasteleria/internal/common"
	"github.com/milsabores/backend-pasteleria/internal/config"
	"github.com/milsabores/backend-pasteleria/internal/events"
	"github.com/milsabores/backend-pasteleria/internal/health"
	"github.com/milsabores/backend-pasteleria/internal/history"
	"github.com/milsabores/backend-pasteleria/internal/obs"
	"github.com/milsabores/backend-pasteleria/internal/order"
	"github.com/milsabores/backend-pasteleria/internal/pricing"
	"github.com/milsabores/backend-pasteleria/internal/ratelimit"
	"github.com/milsabores/backend-pasteleria/internal/security"
	"github.com/milsabores/backend-pasteleria/internal/store"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	logger := obs.NewLogger(cfg.LogFormat, cfg.LogLevel).With().Str("env", cfg.AppEnv).Logger()

	obs.MustRegisterDomainMetrics(cfg.MetricsNamespace, nil)

	tracingEnabled := cfg.TracingEnabled
	if tracingEnabled {
		shutdown, err := obs.InitTracer(context.Background(), obs.TracingConfig{
			ServiceName:   "pasteleria-api",
			Endpoint:      cfg.TracingEndpoint,
			SamplingRatio: cfg.TracingSampling,
			Environment:   cfg.AppEnv,
		})
		if err != nil {
			logger.Error().Err(err).Msg("initialise tracing")
			tracingEnabled = false
		} else {
			defer func() {
				ctx := context.Background()
				if err := shutdown(ctx); err != nil {
					logger.Error().Err(err).Msg("shutdown tracer")
				}
			}()
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	redisOpts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("parse redis url")
	}
	redisClient := redis.NewClient(redisOpts)
	if err := redisotel.InstrumentTracing(redisClient); err != nil {
		logger.Error().Err(err).Msg("instrument redis tracing")
	}
	if err := redisotel.InstrumentMetrics(redisClient); err != nil {
		logger.Error().Err(err).Msg("instrument redis metrics")
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Error().Err(err).Msg("close redis")
		}
	}()
	if err := redisClient.Ping(ctx).Err(); err != nil {
		logger.Fatal().Err(err).Msg("ping redis")
	}

	st := store.New(redisClient)

	rules := pricing.DefaultRules()
	if cfg.CouponCode != "" {
		rules.CouponCode = pricing.NormalizeCoupon(cfg.CouponCode)
	}
	if cfg.CouponRateBps > 0 {
		rules.CouponRateBps = cfg.CouponRateBps
	}
	if cfg.SeniorRateBps > 0 {
		rules.SeniorRateBps = cfg.SeniorRateBps
	}
	if cfg.SeniorMinAge > 0 {
		rules.SeniorMinAge = cfg.SeniorMinAge
	}

	catalogService, err := catalog.NewService(catalog.ServiceConfig{
		Cache: catalog.NewCache(redisClient, cfg.CatalogCacheTTL),
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("initialise catalog service")
	}
	catalogHandler := &catalog.Handler{Service: catalogService}

	authService, err := auth.NewService(auth.Config{
		Store:           st,
		Secret:          cfg.JWTSecret,
		AccessTokenTTL:  cfg.AccessTokenTTL,
		RefreshTokenTTL: cfg.RefreshTokenTTL,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("initialise auth service")
	}

	bus := &events.Bus{
		Store: st,
		Notifiers: []events.Notifier{
			events.LogNotifier{Logger: logger},
			events.EmailNotifier{Sender: common.NopEmailSender{}},
		},
	}

	authHandler := &auth.Handler{
		Service:           authService,
		Bus:               bus,
		AccessCookieName:  "ms_access",
		RefreshCookieName: "ms_refresh",
		CookieDomain:      cfg.CookieDomain,
		CookieSecure:      cfg.CookieSecure,
		CookieSameSite:    cfg.CookieSameSite,
	}
	authMiddleware := auth.Middleware{Service: authService, AccessCookie: "ms_access"}

	cartSvc := &cart.Service{
		Store:   st,
		Catalog: catalogService,
		Rules:   rules,
		Events:  bus,
		TTL:     cfg.CartTTL,
	}
	cartHandler := &cart.Handler{Service: cartSvc}

	checkoutSvc := &checkout.Service{
		Store:           st,
		CartSvc:         cartSvc,
		Events:          bus,
		OrderNumberBase: cfg.OrderNumberBase,
	}
	checkoutHandler := &checkout.Handler{Svc: checkoutSvc}

	orderHandler := &order.Handler{Store: st}
	historyHandler := &history.Handler{Store: st, Catalog: catalogService}

	idem := common.Idem{R: redisClient, TTL: 24 * time.Hour}
	authLimiter := ratelimit.Handler{
		Limiter: ratelimit.Limiter{Client: redisClient, Prefix: "ms:rl:"},
		Config: ratelimit.Config{
			Key:    func(r *http.Request) string { return "auth:" + common.ClientIP(r) },
			Window: cfg.AuthRateWindow,
			Max:    cfg.AuthRateMax,
		},
		OnError: func(err error) { logger.Error().Err(err).Msg("rate limiter") },
	}

	httpMetrics := obs.NewHTTPMetrics(cfg.MetricsNamespace, obs.ParseBucketsCSV(cfg.MetricsBuckets), nil)

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(obs.RoutePatternMiddleware)
	if tracingEnabled {
		r.Use(obs.TracingMiddleware)
	}
	r.Use(obs.HTTPObs{Metrics: httpMetrics}.Middleware)
	r.Use(obs.RequestLogger{Logger: logger}.Middleware)
	r.Use(security.Headers{Enable: true, EnableHSTS: cfg.AppEnv == "production"}.Middleware)
	r.Use(security.BodyLimit{Max: cfg.MaxBodyBytes}.Middleware)
	if cfg.CSRFEnabled {
		r.Use(security.CSRF{}.Middleware)
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   allowedOrigins(cfg),
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete, http.MethodOptions},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "Idempotency-Key", "X-CSRF-Token", cart.CartIDHeader},
		ExposedHeaders:   []string{"Link", "X-Total-Count"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Handle("/metrics", promhttp.Handler())
	if pprofUser := strings.TrimSpace(os.Getenv("SECURE_PPROF_BASIC_AUTH_USER")); pprofUser != "" {
		r.Mount("/debug/pprof", protectPprof(newPprofMux(), pprofUser, os.Getenv("SECURE_PPROF_BASIC_AUTH_PASS")))
	}

	healthHandler := health.Handler{
		Checker: health.RedisChecker{Ping: func(ctx context.Context) error {
			return redisClient.Ping(ctx).Err()
		}},
	}
	r.Get("/health/live", healthHandler.Live)
	r.Get("/health/ready", healthHandler.Ready)

	r.Route("/api/v1", func(v chi.Router) {
		v.Get("/categories", catalogHandler.Categories)
		v.Get("/products", catalogHandler.Products)
		v.Get("/products/{code}", catalogHandler.ProductDetail)

		v.Route("/auth", func(a chi.Router) {
			a.Use(authLimiter.Middleware)
			a.Post("/register", authHandler.Register)
			a.Post("/login", authHandler.Login)
			a.Post("/refresh", authHandler.Refresh)
			a.Post("/logout", authHandler.Logout)

			a.Group(func(protected chi.Router) {
				protected.Use(authMiddleware.RequireAuth)
				protected.Get("/me", authHandler.Me)
				protected.Put("/me", authHandler.UpdateProfile)
			})
		})

		v.Route("/cart", func(c chi.Router) {
			c.Use(authMiddleware.Authenticate)
			c.Get("/", cartHandler.Get)
			c.Delete("/", cartHandler.Clear)
			c.Group(func(g chi.Router) {
				g.Use(idem.Middleware)
				g.Post("/items", cartHandler.AddItem)
				g.Put("/items/{code}", cartHandler.UpdateItem)
				g.Delete("/items/{code}", cartHandler.RemoveItem)
				g.Post("/coupon", cartHandler.ApplyCoupon)
				g.Delete("/coupon", cartHandler.RemoveCoupon)
			})
		})

		v.With(idem.Middleware, authMiddleware.RequireAuth).Post("/checkout", checkoutHandler.Checkout)

		v.Group(func(authR chi.Router) {
			authR.Use(authMiddleware.RequireAuth)
			authR.Get("/orders", orderHandler.List)
			authR.Get("/orders/{orderId}", orderHandler.Get)
			authR.Get("/users/me/purchase-summary", historyHandler.PurchaseSummary)
			authR.Get("/users/me/recommendations", historyHandler.Recommendations)
		})
	})

	srv := &http.Server{
		Addr:    cfg.HTTPAddr(),
		Handler: r,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info().Str("addr", srv.Addr).Msg("server starting")
		errCh <- srv.ListenAndServe()
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal().Err(err).Msg("server exited unexpectedly")
		}
	case sig := <-stop:
		logger.Info().Str("signal", sig.String()).Msg("shutting down")
		health.SetReady(false)
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer shutdownCancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error().Err(err).Msg("graceful shutdown")
		}
	}
}

func allowedOrigins(cfg *config.Config) []string {
	if len(cfg.CORSAllowedOrigins) == 0 {
		return []string{"*"}
	}
	return cfg.CORSAllowedOrigins
}

func newPprofMux() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/", pprof.Index)
	mux.HandleFunc("/cmdline", pprof.Cmdline)
	mux.HandleFunc("/profile", pprof.Profile)
	mux.HandleFunc("/symbol", pprof.Symbol)
	mux.HandleFunc("/trace", pprof.Trace)
	mux.Handle("/allocs", pprof.Handler("allocs"))
	mux.Handle("/goroutine", pprof.Handler("goroutine"))
	mux.Handle("/heap", pprof.Handler("heap"))
	return mux
}

func protectPprof(handler http.Handler, user, pass string) http.Handler {
	user = strings.TrimSpace(user)
	pass = strings.TrimSpace(pass)
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		u, p, ok := r.BasicAuth()
		if !ok || subtle.ConstantTimeCompare([]byte(u), []byte(user)) != 1 || subtle.ConstantTimeCompare([]byte(p), []byte(pass)) != 1 {
			w.Header().Set("WWW-Authenticate", "Basic realm=restricted")
			http.Error(w, "unauthorised", http.StatusUnauthorized)
			return
		}
		handler.ServeHTTP(w, r)
	})
}
