package session

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/platinummonkey/warden/pkg/accounts"
	"github.com/platinummonkey/warden/pkg/credentials"
	"github.com/platinummonkey/warden/pkg/observability"
)

type handlerFixture struct {
	router  *mux.Router
	mock    sqlmock.Sqlmock
	service *Service
	hasher  *credentials.Hasher
}

type noopRecorder struct{}

func (noopRecorder) RecordBestEffort(ctx context.Context, name, message string, level int, userID *int64) {
}

func newHandlerFixture(t *testing.T) *handlerFixture {
	t.Helper()

	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	mock.ExpectExec("CREATE TABLE IF NOT EXISTS accounts").WillReturnResult(sqlmock.NewResult(0, 0))
	store, err := accounts.NewStore(db)
	require.NoError(t, err)

	directory := accounts.NewDirectory(store)
	hasher := credentials.NewHasherWithCost(4)
	manager := accounts.NewManager(store, directory, hasher, noopRecorder{})

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	service, err := NewService([]byte("test-secret"), "warden", time.Hour, client,
		observability.NewMetrics(prometheus.NewRegistry()))
	require.NoError(t, err)

	router := mux.NewRouter()
	NewHandlers(service, directory, manager, hasher).RegisterRoutes(router)

	return &handlerFixture{router: router, mock: mock, service: service, hasher: hasher}
}

func (f *handlerFixture) accountRow(t *testing.T, password string, status accounts.Status) *sqlmock.Rows {
	t.Helper()

	hash, err := f.hasher.Hash(password)
	require.NoError(t, err)

	now := time.Now().UTC()
	return sqlmock.NewRows([]string{
		"id", "email", "first_name", "last_name", "credential_hash", "roles",
		"registered_at", "last_login_at", "ip_address", "user_agent", "status",
	}).AddRow(int64(7), "ada@example.com", "Ada", "Lovelace", hash, "{ROLE_USER}",
		now, now, "10.0.0.1", "test-agent", string(status))
}

func loginBody(email, password string) *strings.Reader {
	payload, _ := json.Marshal(map[string]string{"email": email, "password": password})
	return strings.NewReader(string(payload))
}

func TestLogin_Success(t *testing.T) {
	f := newHandlerFixture(t)

	// Handler lookup, then the manager's own lookup before the touch.
	f.mock.ExpectQuery("SELECT (.+) FROM accounts WHERE email").
		WillReturnRows(f.accountRow(t, "s3cret-pw", accounts.StatusActive))
	f.mock.ExpectQuery("SELECT (.+) FROM accounts WHERE email").
		WillReturnRows(f.accountRow(t, "s3cret-pw", accounts.StatusActive))
	f.mock.ExpectExec("UPDATE accounts SET last_login_at").
		WillReturnResult(sqlmock.NewResult(0, 1))

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/sessions", loginBody("ada@example.com", "s3cret-pw"))

	f.router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusCreated, rec.Code)

	var resp map[string]string
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	require.NotEmpty(t, resp["token"])

	identity, err := f.service.Identity(context.Background(), resp["token"])
	require.NoError(t, err)
	assert.Equal(t, int64(7), identity.UserID)
	assert.Equal(t, "ada@example.com", identity.Email)
	assert.NoError(t, f.mock.ExpectationsWereMet())
}

func TestLogin_UnknownEmail(t *testing.T) {
	f := newHandlerFixture(t)

	f.mock.ExpectQuery("SELECT (.+) FROM accounts WHERE email").
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/sessions", loginBody("ghost@example.com", "whatever"))

	f.router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestLogin_WrongPassword(t *testing.T) {
	f := newHandlerFixture(t)

	f.mock.ExpectQuery("SELECT (.+) FROM accounts WHERE email").
		WillReturnRows(f.accountRow(t, "right-pw", accounts.StatusActive))

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/sessions", loginBody("ada@example.com", "wrong-pw"))

	f.router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestLogin_ResponseIdenticalForUnknownAndWrongPassword(t *testing.T) {
	f := newHandlerFixture(t)

	f.mock.ExpectQuery("SELECT (.+) FROM accounts WHERE email").
		WillReturnRows(sqlmock.NewRows([]string{"id"}))
	recUnknown := httptest.NewRecorder()
	f.router.ServeHTTP(recUnknown, httptest.NewRequest(http.MethodPost, "/sessions", loginBody("ghost@example.com", "pw")))

	f.mock.ExpectQuery("SELECT (.+) FROM accounts WHERE email").
		WillReturnRows(f.accountRow(t, "right-pw", accounts.StatusActive))
	recWrong := httptest.NewRecorder()
	f.router.ServeHTTP(recWrong, httptest.NewRequest(http.MethodPost, "/sessions", loginBody("ada@example.com", "wrong")))

	assert.Equal(t, recUnknown.Code, recWrong.Code)
	assert.Equal(t, recUnknown.Body.String(), recWrong.Body.String())
}

func TestLogin_InactiveAccount(t *testing.T) {
	f := newHandlerFixture(t)

	f.mock.ExpectQuery("SELECT (.+) FROM accounts WHERE email").
		WillReturnRows(f.accountRow(t, "s3cret-pw", accounts.StatusBanned))

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/sessions", loginBody("ada@example.com", "s3cret-pw"))

	f.router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestLogin_BadBody(t *testing.T) {
	f := newHandlerFixture(t)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/sessions", strings.NewReader("{not json"))

	f.router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestLogoutAndWhoami(t *testing.T) {
	f := newHandlerFixture(t)

	token, err := f.service.Issue(context.Background(), 7, "ada@example.com", []string{"ROLE_USER"})
	require.NoError(t, err)

	t.Run("whoami with valid token", func(t *testing.T) {
		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/sessions/me", nil)
		req.Header.Set("Authorization", "Bearer "+token)

		f.router.ServeHTTP(rec, req)

		require.Equal(t, http.StatusOK, rec.Code)
		var resp map[string]interface{}
		require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
		assert.Equal(t, "ada@example.com", resp["email"])
	})

	t.Run("logout revokes the token", func(t *testing.T) {
		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodDelete, "/sessions", nil)
		req.Header.Set("Authorization", "Bearer "+token)

		f.router.ServeHTTP(rec, req)
		require.Equal(t, http.StatusNoContent, rec.Code)

		rec = httptest.NewRecorder()
		req = httptest.NewRequest(http.MethodGet, "/sessions/me", nil)
		req.Header.Set("Authorization", "Bearer "+token)

		f.router.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("whoami without token", func(t *testing.T) {
		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/sessions/me", nil)

		f.router.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("logout with garbage token succeeds", func(t *testing.T) {
		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodDelete, "/sessions", nil)
		req.Header.Set("Authorization", "Bearer not-a-token")

		f.router.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusNoContent, rec.Code)
	})
}
