package www

import (
	"encoding/json"
	"net/http"

	"printedge/engine"
	"printedge/messaging"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// Handlers holds dependencies for HTTP handlers.
type Handlers struct {
	engine   *engine.SyncEngine
	msg      *messaging.Client
	sessions *sessionStore
	eventHub *EventHub
	version  string
}

// NewRouter creates the chi router and returns it along with a stop
// function for the SSE hub.
func NewRouter(eng *engine.SyncEngine, msg *messaging.Client, version string) (http.Handler, func()) {
	h := &Handlers{
		engine:   eng,
		msg:      msg,
		sessions: newSessionStore(eng.AppConfig().Web.SessionSecret),
		eventHub: NewEventHub(),
		version:  version,
	}

	h.eventHub.Start()
	h.eventHub.SetupEngineListeners(eng)

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(middleware.Compress(5))

	// SSE (no auth, status screens on the restaurant floor)
	r.Get("/events", h.eventHub.HandleSSE)

	// Login/logout and first-run setup
	r.Post("/login", h.handleLogin)
	r.Post("/logout", h.handleLogout)
	r.Post("/api/setup", h.apiSetup)

	r.Route("/api", func(r chi.Router) {
		// Public API (status screens and counter staff)
		r.Get("/status", h.apiStatus)
		r.Get("/logs", h.apiLogs)
		r.Post("/test-print", h.apiTestPrint)
		r.Post("/reprint/{orderID}", h.apiReprint)

		// Admin API (settings mutations)
		r.Group(func(r chi.Router) {
			r.Use(h.adminMiddleware)

			r.Put("/config/backend", h.apiUpdateBackend)
			r.Put("/config/printer", h.apiUpdatePrinter)
			r.Put("/config/messaging", h.apiUpdateMessaging)
			r.Post("/config/password", h.apiChangePassword)
		})
	})

	return r, func() {
		h.eventHub.Stop()
	}
}

func (h *Handlers) adminMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		username, ok := h.sessions.getUser(r)
		if !ok || username == "" {
			writeError(w, http.StatusUnauthorized, "login required")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
