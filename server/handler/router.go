package handler

import (
	"net/http"

	"mechanicapp/server/room"

	"github.com/gorilla/mux"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/zap"
)

// NewRouter mounts the relay's routes. socketPath is where clients dial.
func NewRouter(rooms *room.Manager, authn Authenticator, socketPath string, cfg Config, log *zap.Logger) http.Handler {
	if log == nil {
		log = zap.NewNop()
	}
	if socketPath == "" {
		socketPath = "/ws"
	}
	cfg.defaults()
	r := mux.NewRouter()
	r.HandleFunc("/health", HandleHealth(rooms)).Methods(http.MethodGet)
	r.Handle("/metrics", cfg.Metrics.Handler()).Methods(http.MethodGet)
	r.HandleFunc(socketPath, HandleWebSocket(rooms, authn, cfg, log.Named("ws")))
	r.HandleFunc("/bookings/{id}/events/{event}", HandleQuoteEvent(rooms, authn, cfg.Metrics, log.Named("events"))).Methods(http.MethodPost)
	return otelhttp.NewHandler(r, "relay")
}
