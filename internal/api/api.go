// Package api exposes the engine over REST.
package api

import (
	"context"
	"crypto/subtle"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/didip/tollbooth/v8"
	"github.com/didip/tollbooth/v8/limiter"
	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"
	"github.com/go-playground/validator/v10"
	"github.com/lukman83/dealscout/internal/logging"
	"github.com/lukman83/dealscout/internal/models"
	"github.com/lukman83/dealscout/internal/store"
	"github.com/rs/cors"
)

// Runner executes one shop request.
type Runner interface {
	Run(ctx context.Context, req models.ScrapeRequest, save bool) (*models.RunResult, error)
}

type Options struct {
	// APIKey, when set, guards /api and /mcp with a bearer token.
	APIKey      string
	CORSOrigins []string
	// ShopPerMin caps /api/shop calls per client per minute.
	ShopPerMin float64
	RunTimeout time.Duration
	DefaultCap models.Cents
	// MCP is mounted at /mcp when non-nil.
	MCP http.Handler
}

type handler struct {
	runner   Runner
	store    store.Writer
	opts     Options
	log      *slog.Logger
	validate *validator.Validate
	now      func() time.Time
}

// NewRouter wires every route. store may be nil, in which case /api/save and
// /api/budget answer 503.
func NewRouter(log *slog.Logger, runner Runner, writer store.Writer, opts Options) http.Handler {
	return newHandler(log, runner, writer, opts).routes()
}

func newHandler(log *slog.Logger, runner Runner, writer store.Writer, opts Options) *handler {
	if log == nil {
		log = logging.Discard()
	}
	return &handler{
		runner:   runner,
		store:    writer,
		opts:     opts,
		log:      log,
		validate: validator.New(validator.WithRequiredStructEnabled()),
		now:      time.Now,
	}
}

func (h *handler) routes() http.Handler {
	opts := h.opts
	log := h.log
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger(log))
	r.Use(middleware.Recoverer)
	r.Use(cors.New(cors.Options{
		AllowedOrigins: opts.CORSOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Authorization", "Content-Type"},
	}).Handler)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		render.JSON(w, r, map[string]string{"status": "ok"})
	})

	r.Route("/api", func(r chi.Router) {
		r.Use(bearerAuth(opts.APIKey))
		r.With(shopLimit(opts.ShopPerMin)).Post("/shop", h.shop)
		r.Post("/save", h.save)
		r.Get("/budget", h.budget)
	})

	if opts.MCP != nil {
		r.With(bearerAuth(opts.APIKey)).Handle("/mcp", opts.MCP)
	}
	return r
}

type errorResponse struct {
	Error  string   `json:"error"`
	Fields []string `json:"fields,omitempty"`
}

func fail(w http.ResponseWriter, r *http.Request, status int, msg string) {
	render.Status(r, status)
	render.JSON(w, r, errorResponse{Error: msg})
}

func invalid(w http.ResponseWriter, r *http.Request, err error) {
	resp := errorResponse{Error: "invalid request"}
	if verrs, ok := err.(validator.ValidationErrors); ok {
		for _, fe := range verrs {
			resp.Fields = append(resp.Fields, fe.Namespace()+" failed "+fe.Tag())
		}
	}
	render.Status(r, http.StatusBadRequest)
	render.JSON(w, r, resp)
}

func bearerAuth(apiKey string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if apiKey == "" {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			auth := r.Header.Get("Authorization")
			if auth == "" {
				w.Header().Set("WWW-Authenticate", `Bearer realm="dealscout"`)
				fail(w, r, http.StatusUnauthorized, "missing Authorization header")
				return
			}
			token, found := strings.CutPrefix(auth, "Bearer ")
			if !found || subtle.ConstantTimeCompare([]byte(token), []byte(apiKey)) != 1 {
				w.Header().Set("WWW-Authenticate", `Bearer realm="dealscout", error="invalid_token"`)
				fail(w, r, http.StatusUnauthorized, "invalid token")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// shopLimit throttles the expensive route per client address.
func shopLimit(perMin float64) func(http.Handler) http.Handler {
	if perMin <= 0 {
		return func(next http.Handler) http.Handler { return next }
	}
	lmt := tollbooth.NewLimiter(perMin/60, nil)
	lmt.SetBurst(max(1, int(perMin/6)))
	// RealIP has already rewritten RemoteAddr from the proxy headers.
	lmt.SetIPLookup(limiter.IPLookup{Name: "RemoteAddr"})
	lmt.SetMessageContentType("application/json; charset=utf-8")
	lmt.SetMessage(`{"error":"too many shop requests, slow down"}`)
	return func(next http.Handler) http.Handler {
		return tollbooth.LimitHandler(lmt, next)
	}
}

func requestLogger(log *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			next.ServeHTTP(ww, r)
			log.Info("request",
				slog.String("method", r.Method),
				slog.String("path", r.URL.Path),
				slog.Int("status", ww.Status()),
				slog.Int("bytes", ww.BytesWritten()),
				slog.String("request_id", middleware.GetReqID(r.Context())),
				slog.Duration("took", time.Since(start)),
			)
		})
	}
}
