package http

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/Brandon-Online01/w-f-sub001/internal/api"
	"github.com/Brandon-Online01/w-f-sub001/internal/auth"
	"github.com/Brandon-Online01/w-f-sub001/internal/config"
	"github.com/Brandon-Online01/w-f-sub001/internal/guard"
	"github.com/Brandon-Online01/w-f-sub001/internal/highlights"
	httpmiddleware "github.com/Brandon-Online01/w-f-sub001/internal/http/middleware"
	"github.com/Brandon-Online01/w-f-sub001/internal/query"
	"github.com/Brandon-Online01/w-f-sub001/internal/session"
)

// Deps reúne os componentes montados pelo main.
type Deps struct {
	Config    *config.Config
	Redis     *redis.Client
	Sessions  *session.Store
	Cookies   *session.CookieCodec
	Validator *auth.Validator
	Guard     *guard.Guard
	API       *api.Client
	Queries   *query.Cache
	Relay     *highlights.Relay
}

type Handler struct {
	cfg           *config.Config
	redis         *redis.Client
	sessions      *sessionStore
	cookies       *session.CookieCodec
	validator     *auth.Validator
	guard         *guard.Guard
	api           *api.Client
	queries       *query.Cache
	relay         *highlights.Relay
	upgrader      websocket.Upgrader
	signInLimiter *httpmiddleware.RateLimiter
	apiLimiter    *httpmiddleware.RateLimiter
}

// NewRouter devolve roteador configurado.
func NewRouter(deps Deps) (http.Handler, error) {
	if deps.Config == nil || deps.Sessions == nil || deps.Cookies == nil || deps.API == nil {
		return nil, errors.New("http: dependências incompletas")
	}
	cfg := deps.Config

	validator := deps.Validator
	if validator == nil {
		validator = auth.NewValidator()
	}
	g := deps.Guard
	if g == nil {
		g = guard.New(guard.Config{}, validator)
	}
	queries := deps.Queries
	if queries == nil {
		queries = query.New(query.Options{Interval: cfg.PollInterval, FetchTimeout: cfg.Upstream.Timeout})
	}

	checkOrigin := httpmiddleware.SameOriginOr(httpmiddleware.OriginMatcher(cfg.AllowOrigins))
	relay := deps.Relay
	if relay == nil {
		endpoint, err := highlights.EndpointURL(cfg.Upstream.SocketURL)
		if err != nil {
			return nil, err
		}
		relay = highlights.NewRelay(highlights.RelayOptions{
			Stream: highlights.Options{
				Endpoint:         endpoint,
				HandshakeTimeout: cfg.Upstream.Stream.HandshakeTimeout,
				Reconnect:        cfg.Upstream.Stream.Reconnect,
				MaxRetries:       cfg.Upstream.Stream.MaxRetries,
			},
			CheckOrigin: checkOrigin,
		})
	}

	apiLimiter := httpmiddleware.NewRateLimiter("sessao", cfg.RateLimitAPI.RequestsPerSecond, cfg.RateLimitAPI.Burst)
	h := &Handler{
		cfg:       cfg,
		redis:     deps.Redis,
		sessions:  &sessionStore{Store: deps.Sessions, queries: queries, limiter: apiLimiter},
		cookies:   deps.Cookies,
		validator: validator,
		guard:     g,
		api:       deps.API,
		queries:   queries,
		relay:     relay,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			CheckOrigin:     checkOrigin,
		},
		signInLimiter: httpmiddleware.NewRateLimiter("ip", cfg.RateLimitSignIn.RequestsPerSecond, cfg.RateLimitSignIn.Burst),
		apiLimiter:    apiLimiter,
	}

	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(httpmiddleware.Logging)
	r.Use(httpmiddleware.Recover)
	r.Use(httpmiddleware.CORS(cfg.AllowOrigins))

	r.Get("/health", h.Health)
	r.Get("/ready", h.Ready)
	r.Handle("/metrics", promhttp.Handler())

	r.Group(func(app chi.Router) {
		app.Use(httpmiddleware.Session(h.cookies, h.sessions))

		app.Group(func(pages chi.Router) {
			pages.Use(g.Middleware(h.sessions, cfg.GuardMinLoading))

			pages.Get(g.SignInPath(), h.SignInPage)
			pages.Get("/", h.Home)
			pages.Get("/dashboard", h.AppPage)
			pages.Get("/inventory", h.AppPage)
			pages.Get("/inventory/{kind}", h.AppPage)
			pages.Get("/staff", h.AppPage)
			pages.Get("/reports", h.AppPage)
		})

		app.Route("/auth", func(authRouter chi.Router) {
			authRouter.With(httpmiddleware.IPRateLimit(h.signInLimiter)).Post("/sign-in", h.SignIn)
			authRouter.Post("/sign-out", h.SignOut)
		})

		app.Get("/api/session", h.GetSession)
		app.Get("/api/session/guard", h.GuardDecision)

		app.Group(func(private chi.Router) {
			private.Use(httpmiddleware.RequireSession(h.sessions, h.validator))
			private.Use(httpmiddleware.SessionRateLimit(h.apiLimiter))

			private.Put("/api/factory", h.SelectFactory)
			private.Get("/api/factories", h.ListFactories)
			private.Get("/ws/highlights", h.HighlightsSocket)

			private.Group(func(scoped chi.Router) {
				scoped.Use(httpmiddleware.FactoryScope(h.sessions))

				scoped.Get("/api/dashboard/{resource}", h.DashboardWidget)
				scoped.Get("/api/inventory/{kind}", h.Inventory)
				scoped.Get("/ws/dashboard/{resource}", h.DashboardSocket)
			})
		})
	})

	return r, nil
}

// Health responde status simples.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// Ready valida Redis e a API da fábrica.
func (h *Handler) Ready(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	var redisErr error
	if h.redis != nil {
		redisErr = h.redis.Ping(ctx).Err()
	}
	apiErr := h.api.Ping(ctx)

	if redisErr != nil || apiErr != nil {
		WriteError(w, http.StatusServiceUnavailable, "INTERNAL", "dependências indisponíveis", map[string]any{
			"redis": errorString(redisErr),
			"api":   errorString(apiErr),
		})
		return
	}

	WriteJSON(w, http.StatusOK, map[string]bool{"ready": true})
}

func errorString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
