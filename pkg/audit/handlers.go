package audit

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"github.com/gorilla/mux"

	"github.com/platinummonkey/warden/pkg/faults"
)

// Handlers provides the read-only HTTP surface over the audit log
type Handlers struct {
	engine *Engine
}

// NewHandlers creates new audit handlers
func NewHandlers(engine *Engine) *Handlers {
	return &Handlers{
		engine: engine,
	}
}

// RegisterRoutes registers audit log routes. The router is expected to be
// mounted under the /audit prefix.
func (h *Handlers) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/logs", h.listLogs).Methods("GET")
	router.HandleFunc("/export", h.exportLogs).Methods("GET")
}

// listLogs handles GET /audit/logs
func (h *Handlers) listLogs(w http.ResponseWriter, r *http.Request) {
	filter, err := parseFilter(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	page, pageSize := parsePagination(r)

	entries, err := h.engine.Query(r.Context(), filter, page, pageSize)
	if err != nil {
		if faults.IsKind(err, faults.KindInvalidFilterCombination) {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"logs":     entries,
		"count":    len(entries),
		"page":     page,
		"pageSize": pageSize,
	})
}

// exportLogs handles GET /audit/export
func (h *Handlers) exportLogs(w http.ResponseWriter, r *http.Request) {
	filter, err := parseFilter(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	page, pageSize := parsePagination(r)

	format := ExportFormat(r.URL.Query().Get("format"))
	if format == "" {
		format = ExportFormatJSON
	}

	data, err := h.engine.Export(r.Context(), filter, page, pageSize, format)
	if err != nil {
		if faults.IsKind(err, faults.KindInvalidFilterCombination) {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	switch format {
	case ExportFormatCSV:
		w.Header().Set("Content-Type", "text/csv")
		w.Header().Set("Content-Disposition", "attachment; filename=audit-logs.csv")
	case ExportFormatNDJSON:
		w.Header().Set("Content-Type", "application/x-ndjson")
		w.Header().Set("Content-Disposition", "attachment; filename=audit-logs.ndjson")
	default:
		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("Content-Disposition", "attachment; filename=audit-logs.json")
	}

	w.Write(data)
}

// parseFilter builds the single-predicate filter from query parameters. The
// engine enforces mutual exclusion; this only translates the raw values.
func parseFilter(r *http.Request) (Filter, error) {
	query := r.URL.Query()
	filter := Filter{}

	if statusStr := query.Get("status"); statusStr != "" {
		status := TriageStatus(strings.ToUpper(strings.TrimSpace(statusStr)))
		filter.Status = &status
	}

	if userIDStr := query.Get("user_id"); userIDStr != "" {
		userID, err := strconv.ParseInt(userIDStr, 10, 64)
		if err != nil {
			return Filter{}, faults.Newf(faults.KindValidation, "invalid user_id %q", userIDStr)
		}
		filter.UserID = &userID
	}

	if ip := query.Get("ip_address"); ip != "" {
		filter.IPAddress = &ip
	}

	return filter, nil
}

// parsePagination parses 1-based page and pageSize from query parameters
func parsePagination(r *http.Request) (page, pageSize int) {
	query := r.URL.Query()

	page = 1
	if pageStr := query.Get("page"); pageStr != "" {
		if p, err := strconv.Atoi(pageStr); err == nil && p > 0 {
			page = p
		}
	}

	pageSize = DefaultPageSize
	if sizeStr := query.Get("page_size"); sizeStr != "" {
		if s, err := strconv.Atoi(sizeStr); err == nil && s > 0 {
			pageSize = s
		}
	}

	return page, pageSize
}
