package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/xiaoyue/companion/internal/handler/chat"
	middlewarePkg "github.com/xiaoyue/companion/internal/middleware"
	"github.com/xiaoyue/companion/internal/service/companion"
	"github.com/xiaoyue/companion/pkg/utils"
)

// NewRouter wires HTTP routes to core services.
func NewRouter(companionSvc *companion.Service, registry *prometheus.Registry, log zerolog.Logger) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middlewarePkg.CORS)

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		utils.RespondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	if registry != nil {
		r.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
	}

	chatHandler := chat.New(companionSvc)
	wsHandler := chat.NewWebSocketHandler(companionSvc, log)

	r.Route("/api", func(api chi.Router) {
		chatHandler.RegisterRoutes(api)
		wsHandler.RegisterWebSocketRoutes(api)
	})

	return r
}
