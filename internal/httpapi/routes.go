package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/mwhitten/bomb-arena-backend/internal/session"
	"github.com/mwhitten/bomb-arena-backend/internal/ws"
)

// SetupRoutes builds the router: the websocket endpoint, a health
// check, and static delivery of the client bundle.
func SetupRoutes(s *session.Session, webRoot string, log *zap.Logger) http.Handler {
	r := chi.NewRouter()

	r.Get("/healthz", Healthz)
	r.Get("/ws", ws.Handler(s, log))
	if webRoot != "" {
		r.Handle("/*", http.FileServer(http.Dir(webRoot)))
	}
	return r
}
