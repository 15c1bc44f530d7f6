package www

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"
	"time"

	"printedge/backend"
	"printedge/config"
	"printedge/engine"
	"printedge/printing"

	"github.com/go-chi/chi/v5"
)

type statusResponse struct {
	Agent        string        `json:"agent"`
	Version      string        `json:"version"`
	RestaurantID string        `json:"restaurant_id"`
	Sink         string        `json:"sink"`
	Messaging    bool          `json:"messaging_connected"`
	Engine       engine.Status `json:"engine"`
	OutboxDepth  int64         `json:"outbox_depth"`
	LastPrinted  *time.Time    `json:"last_printed_at"`
}

func (h *Handlers) apiStatus(w http.ResponseWriter, r *http.Request) {
	resp := statusResponse{
		Agent:        "printedge",
		Version:      h.version,
		RestaurantID: h.engine.AppConfig().Backend.RestaurantID,
		Sink:         h.engine.Sink().Name(),
		Engine:       h.engine.Snapshot(),
	}
	if h.msg != nil {
		resp.Messaging = h.msg.IsConnected()
	}
	if db := h.engine.DB(); db != nil {
		if n, err := db.PendingOutboxCount(); err == nil {
			resp.OutboxDepth = n
		}
		if t, err := db.LastPrintedAt(); err == nil {
			resp.LastPrinted = t
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *Handlers) apiLogs(w http.ResponseWriter, r *http.Request) {
	db := h.engine.DB()
	if db == nil {
		writeError(w, http.StatusServiceUnavailable, "no local journal")
		return
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	logs, err := db.ListRecentPrintLogs(limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, logs)
}

func (h *Handlers) apiTestPrint(w http.ResponseWriter, r *http.Request) {
	if err := h.engine.TestPrint(); err != nil {
		writeError(w, http.StatusBadGateway, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handlers) apiReprint(w http.ResponseWriter, r *http.Request) {
	orderID := chi.URLParam(r, "orderID")
	ctx, cancel := context.WithTimeout(r.Context(), 30*time.Second)
	defer cancel()
	if err := h.engine.Reprint(ctx, orderID); err != nil {
		writeError(w, http.StatusBadGateway, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok", "order_id": orderID})
}

type credentials struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// apiSetup creates the first admin user. Refused once one exists.
func (h *Handlers) apiSetup(w http.ResponseWriter, r *http.Request) {
	db := h.engine.DB()
	if db == nil {
		writeError(w, http.StatusServiceUnavailable, "no local database")
		return
	}
	exists, err := db.AdminUserExists()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if exists {
		writeError(w, http.StatusConflict, "setup already completed")
		return
	}

	var creds credentials
	if err := json.NewDecoder(r.Body).Decode(&creds); err != nil || creds.Username == "" || len(creds.Password) < 8 {
		writeError(w, http.StatusBadRequest, "username and password (min 8 chars) required")
		return
	}
	hash, err := hashPassword(creds.Password)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if _, err := db.CreateAdminUser(creds.Username, hash); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	h.sessions.setUser(w, r, creds.Username)
	writeJSON(w, http.StatusCreated, map[string]string{"status": "ok"})
}

func (h *Handlers) handleLogin(w http.ResponseWriter, r *http.Request) {
	db := h.engine.DB()
	if db == nil {
		writeError(w, http.StatusServiceUnavailable, "no local database")
		return
	}
	var creds credentials
	if err := json.NewDecoder(r.Body).Decode(&creds); err != nil {
		writeError(w, http.StatusBadRequest, "invalid body")
		return
	}
	user, err := db.GetAdminUser(creds.Username)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			writeError(w, http.StatusUnauthorized, "invalid credentials")
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if !checkPassword(creds.Password, user.PasswordHash) {
		writeError(w, http.StatusUnauthorized, "invalid credentials")
		return
	}
	h.sessions.setUser(w, r, user.Username)
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handlers) handleLogout(w http.ResponseWriter, r *http.Request) {
	h.sessions.clear(w, r)
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handlers) apiChangePassword(w http.ResponseWriter, r *http.Request) {
	db := h.engine.DB()
	if db == nil {
		writeError(w, http.StatusServiceUnavailable, "no local database")
		return
	}
	username, _ := h.sessions.getUser(r)
	var body struct {
		Current string `json:"current"`
		New     string `json:"new"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || len(body.New) < 8 {
		writeError(w, http.StatusBadRequest, "new password must have at least 8 chars")
		return
	}
	user, err := db.GetAdminUser(username)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if !checkPassword(body.Current, user.PasswordHash) {
		writeError(w, http.StatusUnauthorized, "current password incorrect")
		return
	}
	hash, err := hashPassword(body.New)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if err := db.UpdateAdminPassword(username, hash); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// apiUpdateBackend changes the remote store settings and rebuilds the
// engine's order source, so the next poll cycle uses them without a
// restart.
func (h *Handlers) apiUpdateBackend(w http.ResponseWriter, r *http.Request) {
	var body struct {
		BaseURL      *string `json:"base_url"`
		APIKey       *string `json:"api_key"`
		RestaurantID *string `json:"restaurant_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid body")
		return
	}

	cfg := h.engine.AppConfig()
	cfg.Lock()
	if body.BaseURL != nil {
		cfg.Backend.BaseURL = *body.BaseURL
	}
	if body.APIKey != nil {
		cfg.Backend.APIKey = *body.APIKey
	}
	if body.RestaurantID != nil {
		cfg.Backend.RestaurantID = *body.RestaurantID
	}
	cfg.Unlock()

	if err := cfg.Validate(); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	h.engine.SetSource(backend.NewClient(&cfg.Backend))
	log.Printf("backend client rebuilt for restaurant %s", cfg.Backend.RestaurantID)
	h.saveConfig(w, cfg)
}

// apiUpdatePrinter swaps the print sink live.
func (h *Handlers) apiUpdatePrinter(w http.ResponseWriter, r *http.Request) {
	var body config.PrinterConfig
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid body")
		return
	}

	sink, err := printing.New(&body)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	cfg := h.engine.AppConfig()
	cfg.Lock()
	cfg.Printer = body
	cfg.Unlock()

	h.engine.SetSink(sink)
	log.Printf("printer sink switched to %s", sink.Name())
	h.saveConfig(w, cfg)
}

// apiUpdateMessaging saves broker settings; these take effect on
// restart since the client owns live connections.
func (h *Handlers) apiUpdateMessaging(w http.ResponseWriter, r *http.Request) {
	var body config.MessagingConfig
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid body")
		return
	}

	cfg := h.engine.AppConfig()
	cfg.Lock()
	cfg.Messaging = body
	cfg.Unlock()

	if err := cfg.Validate(); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	h.saveConfig(w, cfg)
}

func (h *Handlers) saveConfig(w http.ResponseWriter, cfg *config.Config) {
	if err := cfg.Save(h.engine.ConfigPath()); err != nil {
		writeError(w, http.StatusInternalServerError, "save config: "+err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
