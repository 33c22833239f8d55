package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/cors"
	"go.uber.org/zap"

	"github.com/DoyleJ11/hoverwars-server/internal/hub"
	"github.com/DoyleJ11/hoverwars-server/internal/ws"
)

type Deps struct {
	Hub            *hub.Hub
	Logger         *zap.Logger
	AllowedOrigins []string
	Client         ClientConfig
}

func SetupRoutes(d Deps) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	// Public routes
	r.Get("/healthz", Healthz)
	r.Get("/config", Config(d.Client))
	r.Get("/rooms", ListRooms(d.Hub, d.Logger))
	r.Get("/rooms/{hostID}", GetRoom(d.Hub, d.Logger))
	r.Get("/ws", ws.Handler(d.Hub, d.Logger, d.AllowedOrigins))

	c := cors.New(cors.Options{
		AllowedOrigins: d.AllowedOrigins,
		AllowedMethods: []string{http.MethodGet},
	})
	return c.Handler(r)
}
