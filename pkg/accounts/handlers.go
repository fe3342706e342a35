package accounts

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"github.com/platinummonkey/warden/pkg/faults"
)

// Handlers provides the read-only HTTP surface over accounts
type Handlers struct {
	manager *Manager
}

// NewHandlers creates new account handlers
func NewHandlers(manager *Manager) *Handlers {
	return &Handlers{
		manager: manager,
	}
}

// RegisterRoutes registers account routes. The router is expected to be
// mounted under the /accounts prefix.
func (h *Handlers) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/{id}/info", h.getInfo).Methods("GET")
}

// getInfo handles GET /accounts/{id}/info
func (h *Handlers) getInfo(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	id, err := strconv.ParseInt(vars["id"], 10, 64)
	if err != nil {
		http.Error(w, "invalid account ID", http.StatusBadRequest)
		return
	}

	info, err := h.manager.Info(r.Context(), id)
	if err != nil {
		if faults.IsKind(err, faults.KindNotFound) {
			http.Error(w, err.Error(), http.StatusNotFound)
			return
		}
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(info)
}
