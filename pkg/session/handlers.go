package session

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/gorilla/mux"

	"github.com/platinummonkey/warden/pkg/accounts"
	"github.com/platinummonkey/warden/pkg/credentials"
)

// Handlers provides the login/logout HTTP surface
type Handlers struct {
	service   *Service
	directory *accounts.Directory
	manager   *accounts.Manager
	hasher    *credentials.Hasher
}

// NewHandlers creates new session handlers
func NewHandlers(service *Service, directory *accounts.Directory, manager *accounts.Manager, hasher *credentials.Hasher) *Handlers {
	return &Handlers{
		service:   service,
		directory: directory,
		manager:   manager,
		hasher:    hasher,
	}
}

func (h *Handlers) countLogin(outcome string) {
	h.service.metrics.AccountOperationsTotal.WithLabelValues("login", outcome).Inc()
}

// RegisterRoutes registers session routes
func (h *Handlers) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/sessions", h.login).Methods("POST")
	router.HandleFunc("/sessions", h.logout).Methods("DELETE")
	router.HandleFunc("/sessions/me", h.whoami).Methods("GET")
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// login handles POST /sessions
func (h *Handlers) login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	account, err := h.directory.FindByEmail(r.Context(), req.Email)
	if err != nil {
		http.Error(w, "login failed", http.StatusInternalServerError)
		return
	}
	// Identical response for unknown account and bad password
	if account == nil || !h.hasher.Verify(req.Password, account.CredentialHash) {
		h.countLogin("rejected")
		http.Error(w, "invalid credentials", http.StatusUnauthorized)
		return
	}
	if account.Status != accounts.StatusActive {
		h.countLogin("rejected")
		http.Error(w, "account is not active", http.StatusForbidden)
		return
	}

	if err := h.manager.RecordLogin(r.Context(), account.Email); err != nil {
		http.Error(w, "login failed", http.StatusInternalServerError)
		return
	}

	token, err := h.service.Issue(r.Context(), account.ID, account.Email, account.Roles)
	if err != nil {
		http.Error(w, "login failed", http.StatusInternalServerError)
		return
	}

	h.countLogin("success")
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(map[string]string{"token": token})
}

// logout handles DELETE /sessions
func (h *Handlers) logout(w http.ResponseWriter, r *http.Request) {
	token := bearerToken(r)
	if token == "" {
		http.Error(w, "missing bearer token", http.StatusUnauthorized)
		return
	}

	if err := h.service.Invalidate(r.Context(), token); err != nil {
		http.Error(w, "logout failed", http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// whoami handles GET /sessions/me
func (h *Handlers) whoami(w http.ResponseWriter, r *http.Request) {
	token := bearerToken(r)
	if token == "" {
		http.Error(w, "missing bearer token", http.StatusUnauthorized)
		return
	}

	identity, err := h.service.Identity(r.Context(), token)
	if err != nil {
		http.Error(w, "invalid session", http.StatusUnauthorized)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"userId":  identity.UserID,
		"email":   identity.Email,
		"roles":   identity.Roles,
		"expires": identity.Expires,
	})
}

func bearerToken(r *http.Request) string {
	auth := r.Header.Get("Authorization")
	if !strings.HasPrefix(auth, "Bearer ") {
		return ""
	}
	return strings.TrimSpace(strings.TrimPrefix(auth, "Bearer "))
}
