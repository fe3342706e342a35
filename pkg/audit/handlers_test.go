package audit

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHandlers_ListLogs(t *testing.T) {
	engine, mock, cleanup := newTestEngine(t)
	defer cleanup()

	router := mux.NewRouter()
	NewHandlers(engine).RegisterRoutes(router.PathPrefix("/audit").Subrouter())

	now := time.Now().UTC()
	mock.ExpectQuery("SELECT (.+) FROM logs WHERE status").
		WithArgs("UNREADED", 50, 0).
		WillReturnRows(entryRows().
			AddRow(int64(4), "account-manager", "user deleted: kay@example.com", now, 4,
				nil, "10.0.0.3", "", "", "", "UNREADED"))

	req := httptest.NewRequest("GET", "/audit/logs?status=UNREADED", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Logs  []*Entry `json:"logs"`
		Count int      `json:"count"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Equal(t, 1, body.Count)
	assert.Equal(t, int64(4), body.Logs[0].ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestHandlers_ListLogs_StatusCaseInsensitive(t *testing.T) {
	engine, mock, cleanup := newTestEngine(t)
	defer cleanup()

	router := mux.NewRouter()
	NewHandlers(engine).RegisterRoutes(router.PathPrefix("/audit").Subrouter())

	now := time.Now().UTC()
	mock.ExpectQuery("SELECT (.+) FROM logs WHERE status").
		WithArgs("UNREADED", 50, 0).
		WillReturnRows(entryRows().
			AddRow(int64(9), "account-manager", "user password reset: kay@example.com", now, 3,
				nil, "10.0.0.3", "", "", "", "UNREADED"))

	req := httptest.NewRequest("GET", "/audit/logs?status=unreaded", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Logs  []*Entry `json:"logs"`
		Count int      `json:"count"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Equal(t, 1, body.Count)
	assert.Equal(t, int64(9), body.Logs[0].ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestHandlers_ListLogs_NoFilter(t *testing.T) {
	engine, mock, cleanup := newTestEngine(t)
	defer cleanup()

	router := mux.NewRouter()
	NewHandlers(engine).RegisterRoutes(router.PathPrefix("/audit").Subrouter())

	req := httptest.NewRequest("GET", "/audit/logs", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestHandlers_ListLogs_ConflictingFilters(t *testing.T) {
	engine, mock, cleanup := newTestEngine(t)
	defer cleanup()

	router := mux.NewRouter()
	NewHandlers(engine).RegisterRoutes(router.PathPrefix("/audit").Subrouter())

	req := httptest.NewRequest("GET", "/audit/logs?status=UNREADED&user_id=3", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestHandlers_ListLogs_BadUserID(t *testing.T) {
	engine, mock, cleanup := newTestEngine(t)
	defer cleanup()

	router := mux.NewRouter()
	NewHandlers(engine).RegisterRoutes(router.PathPrefix("/audit").Subrouter())

	req := httptest.NewRequest("GET", "/audit/logs?user_id=abc", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestHandlers_Export_CSV(t *testing.T) {
	engine, mock, cleanup := newTestEngine(t)
	defer cleanup()

	router := mux.NewRouter()
	NewHandlers(engine).RegisterRoutes(router.PathPrefix("/audit").Subrouter())

	mock.ExpectQuery("SELECT (.+) FROM logs WHERE ip_address").
		WithArgs("10.0.0.9", 50, 0).
		WillReturnRows(entryRows())

	req := httptest.NewRequest("GET", "/audit/export?ip_address=10.0.0.9&format=csv", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/csv", rec.Header().Get("Content-Type"))
	assert.NoError(t, mock.ExpectationsWereMet())
}
