package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"

	"bookstore/internal/middleware"
	"bookstore/internal/model"
	"bookstore/internal/service"
	"bookstore/internal/testutil"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

const strongPassword = "TestPassword123!"

func init() {
	gin.SetMode(gin.TestMode)
}

type stubPinger struct{ err error }

func (p stubPinger) Ping(context.Context) error { return p.err }

type apiFixture struct {
	t      *testing.T
	router *gin.Engine
	store  *testutil.Store
}

func newAPI(t *testing.T, db Pinger) *apiFixture {
	t.Helper()
	return newAPIWith(t, db, zap.NewNop(), middleware.NewIPRateLimiter(1000, 1000), nil)
}

func newAPIWith(t *testing.T, db Pinger, log *zap.Logger, limiter *middleware.IPRateLimiter, trustedProxies []string) *apiFixture {
	t.Helper()
	store := testutil.NewStore()
	repos := store.Repositories()

	router, err := NewRouter(RouterDeps{
		Log:            log,
		AllowedOrigins: []string{"http://localhost:3000"},
		TrustedProxies: trustedProxies,
		Limiter:        limiter,
		DB:             db,
		Auth:           service.NewAuthService(repos.Users, store, testutil.NewJWTUtil(t), log),
		Books:          service.NewBookService(repos.Books, store, log),
		Users:          service.NewUserService(repos.Users, store, log),
	})
	require.NoError(t, err)
	return &apiFixture{t: t, router: router, store: store}
}

func (f *apiFixture) do(method, path, token string, body any) *httptest.ResponseRecorder {
	f.t.Helper()
	var reader *bytes.Reader
	switch b := body.(type) {
	case nil:
		reader = bytes.NewReader(nil)
	case string:
		reader = bytes.NewReader([]byte(b))
	default:
		raw, err := json.Marshal(b)
		require.NoError(f.t, err)
		reader = bytes.NewReader(raw)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)
	return w
}

func (f *apiFixture) login(email, password string) string {
	f.t.Helper()
	w := f.do(http.MethodPost, "/login", "", gin.H{"email": email, "password": password})
	require.Equal(f.t, http.StatusOK, w.Code, w.Body.String())
	var token model.Token
	require.NoError(f.t, json.Unmarshal(w.Body.Bytes(), &token))
	return token.AccessToken
}

func (f *apiFixture) seedAndLogin(email, role string) (*model.User, string) {
	f.t.Helper()
	user := f.store.SeedUser(f.t, email, strongPassword, role, true)
	return user, f.login(email, strongPassword)
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &v), w.Body.String())
	return v
}

func assertError(t *testing.T, w *httptest.ResponseRecorder, status int, errorType string) middleware.ErrorBody {
	t.Helper()
	require.Equal(t, status, w.Code, w.Body.String())
	body := decode[middleware.ErrorBody](t, w)
	assert.Equal(t, errorType, body.ErrorType)
	assert.NotEmpty(t, body.Detail)
	return body
}

func bookBody(isbn string) gin.H {
	return gin.H{
		"title":          "The Go Programming Language",
		"author":         "Alan Donovan",
		"isbn":           isbn,
		"published_date": "2015-10-26",
		"description":    "Classic",
	}
}

func TestScenario_RegisterLoginCreateGet(t *testing.T) {
	f := newAPI(t, stubPinger{})

	w := f.do(http.MethodPost, "/register", "", gin.H{
		"email":    "New.Reader@Example.com",
		"password": strongPassword,
		"role":     "admin",
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	assert.NotContains(t, w.Body.String(), "hashed_password")
	assert.NotContains(t, w.Body.String(), "password")
	registered := decode[model.User](t, w)
	assert.Equal(t, "new.reader@example.com", registered.Email)
	assert.Equal(t, model.RoleUser, registered.Role)
	assert.True(t, registered.IsActive)

	token := f.login("new.reader@example.com", strongPassword)

	w = f.do(http.MethodGet, "/me", token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, registered.ID, decode[model.User](t, w).ID)

	w = f.do(http.MethodPost, "/books", token, bookBody("978-0-13-419044-0"))
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	created := decode[model.Book](t, w)
	assert.Equal(t, "9780134190440", created.ISBN)
	require.NotNil(t, created.CreatedBy)
	assert.Equal(t, registered.ID, *created.CreatedBy)

	w = f.do(http.MethodGet, "/books/"+itoa(created.ID), "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	got := decode[model.Book](t, w)
	assert.Equal(t, created.ISBN, got.ISBN)
	assert.Equal(t, "2015-10-26", got.PublishedDate.String())
	assert.Contains(t, w.Body.String(), `"published_date":"2015-10-26"`)

	w = f.do(http.MethodGet, "/books", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decode[[]model.Book](t, w), 1)
}

func TestRegister_Errors(t *testing.T) {
	f := newAPI(t, stubPinger{})

	w := f.do(http.MethodPost, "/register", "", gin.H{"email": "reader@example.com", "password": "weakpass"})
	body := assertError(t, w, http.StatusUnprocessableEntity, "validation_failed")
	assert.Contains(t, body.Detail, "uppercase")

	w = f.do(http.MethodPost, "/register", "", gin.H{"email": "not-an-email", "password": strongPassword})
	assertError(t, w, http.StatusUnprocessableEntity, "validation_failed")

	w = f.do(http.MethodPost, "/register", "", `{"email": "reader@example.com",`)
	assertError(t, w, http.StatusBadRequest, "bad_request")

	w = f.do(http.MethodPost, "/register", "", gin.H{"email": "reader@example.com", "password": strongPassword})
	require.Equal(t, http.StatusCreated, w.Code)
	w = f.do(http.MethodPost, "/register", "", gin.H{"email": "READER@example.com", "password": strongPassword})
	body = assertError(t, w, http.StatusConflict, "duplicate_email")
	assert.Equal(t, "This email is already registered", body.Detail)
}

func TestLogin_Errors(t *testing.T) {
	f := newAPI(t, stubPinger{})
	f.store.SeedUser(t, "reader@example.com", strongPassword, model.RoleUser, true)
	f.store.SeedUser(t, "gone@example.com", strongPassword, model.RoleUser, false)

	w := f.do(http.MethodPost, "/login", "", gin.H{"email": "reader@example.com", "password": "Wrong123!"})
	body := assertError(t, w, http.StatusUnauthorized, "invalid_credentials")
	assert.Equal(t, "Incorrect email or password", body.Detail)
	assert.Equal(t, "Bearer", w.Header().Get("WWW-Authenticate"))

	w = f.do(http.MethodPost, "/login", "", gin.H{"email": "gone@example.com", "password": strongPassword})
	assertError(t, w, http.StatusForbidden, "forbidden")
}

func TestBooks_CreateErrors(t *testing.T) {
	f := newAPI(t, stubPinger{})
	_, token := f.seedAndLogin("owner@example.com", model.RoleUser)

	w := f.do(http.MethodPost, "/books", "", bookBody("0306406152"))
	assertError(t, w, http.StatusUnauthorized, "unauthenticated")

	w = f.do(http.MethodPost, "/books", token, bookBody("12345"))
	body := assertError(t, w, http.StatusUnprocessableEntity, "validation_failed")
	assert.Contains(t, body.Detail, "ISBN")

	bad := bookBody("0306406152")
	bad["published_date"] = "26/10/2015"
	w = f.do(http.MethodPost, "/books", token, bad)
	assertError(t, w, http.StatusUnprocessableEntity, "validation_failed")

	missing := bookBody("0306406152")
	delete(missing, "title")
	w = f.do(http.MethodPost, "/books", token, missing)
	body = assertError(t, w, http.StatusUnprocessableEntity, "validation_failed")
	assert.Contains(t, body.Detail, "title is required")

	w = f.do(http.MethodPost, "/books", token, bookBody("9780123456789"))
	require.Equal(t, http.StatusCreated, w.Code)
	w = f.do(http.MethodPost, "/books", token, bookBody("978-0-12-345678-9"))
	body = assertError(t, w, http.StatusConflict, "duplicate_isbn")
	assert.Equal(t, "A book with this ISBN already exists", body.Detail)
}

func TestBooks_UpdateAndDeleteAuthorization(t *testing.T) {
	f := newAPI(t, stubPinger{})
	_, ownerToken := f.seedAndLogin("owner@example.com", model.RoleUser)
	_, otherToken := f.seedAndLogin("other@example.com", model.RoleUser)
	_, adminToken := f.seedAndLogin("admin@example.com", model.RoleAdmin)

	w := f.do(http.MethodPost, "/books", ownerToken, bookBody("0306406152"))
	require.Equal(t, http.StatusCreated, w.Code)
	path := "/books/" + itoa(decode[model.Book](t, w).ID)

	w = f.do(http.MethodPut, path, otherToken, gin.H{"title": "Mine now"})
	assertError(t, w, http.StatusForbidden, "forbidden")

	w = f.do(http.MethodPut, path, ownerToken, gin.H{"title": "Second Edition"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "Second Edition", decode[model.Book](t, w).Title)

	w = f.do(http.MethodPut, path, adminToken, gin.H{"isbn": "0-8044-2957-X"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "080442957X", decode[model.Book](t, w).ISBN)

	w = f.do(http.MethodDelete, path, ownerToken, nil)
	assertError(t, w, http.StatusForbidden, "forbidden")

	w = f.do(http.MethodDelete, path, adminToken, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "Book deleted successfully", decode[map[string]string](t, w)["message"])

	w = f.do(http.MethodGet, path, "", nil)
	assertError(t, w, http.StatusNotFound, "not_found")
}

func TestBooks_UpdateClearsDescriptionWithNull(t *testing.T) {
	f := newAPI(t, stubPinger{})
	_, token := f.seedAndLogin("owner@example.com", model.RoleUser)

	w := f.do(http.MethodPost, "/books", token, bookBody("0306406152"))
	require.Equal(t, http.StatusCreated, w.Code)
	path := "/books/" + itoa(decode[model.Book](t, w).ID)

	w = f.do(http.MethodPut, path, token, `{"title": "Retitled"}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	kept := decode[model.Book](t, w)
	require.NotNil(t, kept.Description)
	assert.Equal(t, "Classic", *kept.Description)

	w = f.do(http.MethodPut, path, token, `{"description": null}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Nil(t, decode[model.Book](t, w).Description)
	assert.Contains(t, w.Body.String(), `"description":null`)

	w = f.do(http.MethodGet, path, "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Nil(t, decode[model.Book](t, w).Description)
}

func TestBooks_ParamsAndPaging(t *testing.T) {
	f := newAPI(t, stubPinger{})

	w := f.do(http.MethodGet, "/books/abc", "", nil)
	assertError(t, w, http.StatusBadRequest, "bad_request")

	w = f.do(http.MethodGet, "/books?skip=-1", "", nil)
	assertError(t, w, http.StatusUnprocessableEntity, "validation_failed")

	w = f.do(http.MethodGet, "/books?limit=5000", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "[]", strings.TrimSpace(w.Body.String()))
}

func TestUsers_AdminOnly(t *testing.T) {
	f := newAPI(t, stubPinger{})
	admin, adminToken := f.seedAndLogin("admin@example.com", model.RoleAdmin)
	reader, readerToken := f.seedAndLogin("reader@example.com", model.RoleUser)

	w := f.do(http.MethodGet, "/users", readerToken, nil)
	assertError(t, w, http.StatusForbidden, "forbidden")

	w = f.do(http.MethodGet, "/users?limit=1", adminToken, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decode[[]model.User](t, w), 1)

	w = f.do(http.MethodGet, "/users/"+itoa(reader.ID), adminToken, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "reader@example.com", decode[model.User](t, w).Email)

	w = f.do(http.MethodPatch, "/users/"+itoa(reader.ID)+"/role", adminToken, gin.H{"role": "superuser"})
	assertError(t, w, http.StatusUnprocessableEntity, "validation_failed")

	w = f.do(http.MethodPatch, "/users/"+itoa(admin.ID)+"/role", adminToken, gin.H{"role": "user"})
	body := assertError(t, w, http.StatusBadRequest, "last_admin_protected")
	assert.Contains(t, body.Detail, "last admin")

	w = f.do(http.MethodPatch, "/users/"+itoa(reader.ID)+"/role", adminToken, gin.H{"role": "admin"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, model.RoleAdmin, decode[model.User](t, w).Role)

	w = f.do(http.MethodPatch, "/users/"+itoa(admin.ID)+"/role", adminToken, gin.H{"role": "user"})
	require.Equal(t, http.StatusOK, w.Code)
}

func TestMe_Update(t *testing.T) {
	f := newAPI(t, stubPinger{})
	_, token := f.seedAndLogin("reader@example.com", model.RoleUser)

	w := f.do(http.MethodPut, "/me", token, gin.H{"email": "new@example.com"})
	body := assertError(t, w, http.StatusBadRequest, "invalid_current_password")
	assert.Equal(t, "Incorrect or missing current password", body.Detail)

	w = f.do(http.MethodPut, "/me", token, gin.H{"email": "New@Example.com", "current_password": strongPassword})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "new@example.com", decode[model.User](t, w).Email)

	// The old token names the old email and is no longer accepted.
	w = f.do(http.MethodGet, "/me", token, nil)
	assertError(t, w, http.StatusUnauthorized, "invalid_credentials")
}

// loginFrom posts a login from remoteAddr claiming to forward for forwardedFor
func (f *apiFixture) loginFrom(remoteAddr, forwardedFor string) int {
	f.t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/login",
		strings.NewReader(`{"email": "nobody@example.com", "password": "Wrong123!"}`))
	req.Header.Set("Content-Type", "application/json")
	req.RemoteAddr = remoteAddr
	req.Header.Set("X-Forwarded-For", forwardedFor)
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)
	return w.Code
}

func TestLogin_RateLimitIgnoresForwardedForFromUntrustedPeer(t *testing.T) {
	f := newAPIWith(t, stubPinger{}, zap.NewNop(), middleware.NewIPRateLimiter(0.001, 2), nil)

	limited := 0
	for i := 0; i < 20; i++ {
		if f.loginFrom("203.0.113.9:4711", "10.0.0."+strconv.Itoa(i)) == http.StatusTooManyRequests {
			limited++
		}
	}
	assert.Equal(t, 18, limited)
}

func TestLogin_RateLimitUsesForwardedForFromTrustedProxy(t *testing.T) {
	f := newAPIWith(t, stubPinger{}, zap.NewNop(), middleware.NewIPRateLimiter(0.001, 2), []string{"203.0.113.9"})

	for i := 0; i < 20; i++ {
		assert.NotEqual(t, http.StatusTooManyRequests, f.loginFrom("203.0.113.9:4711", "10.0.0."+strconv.Itoa(i)))
	}

	assert.NotEqual(t, http.StatusTooManyRequests, f.loginFrom("203.0.113.9:4711", "198.51.100.7"))
	assert.NotEqual(t, http.StatusTooManyRequests, f.loginFrom("203.0.113.9:4711", "198.51.100.7"))
	assert.Equal(t, http.StatusTooManyRequests, f.loginFrom("203.0.113.9:4711", "198.51.100.7"))
}

func TestNewRouter_RejectsInvalidTrustedProxy(t *testing.T) {
	_, err := NewRouter(RouterDeps{
		Log:            zap.NewNop(),
		TrustedProxies: []string{"not-an-ip"},
		Limiter:        middleware.NewIPRateLimiter(1, 1),
		DB:             stubPinger{},
	})
	assert.Error(t, err)
}

func TestHealthAndReady(t *testing.T) {
	f := newAPI(t, stubPinger{})
	w := f.do(http.MethodGet, "/health", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, map[string]string{"status": "healthy", "service": "bookstore-api"}, decode[map[string]string](t, w))

	w = f.do(http.MethodGet, "/ready", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)

	down := newAPI(t, stubPinger{err: errors.New("dial tcp: connection refused")})
	w = down.do(http.MethodGet, "/ready", "", nil)
	body := assertError(t, w, http.StatusServiceUnavailable, "service_unavailable")
	assert.NotContains(t, body.Detail, "connection refused")
}

func TestStorageFailure_LoggedOnceAtErrorLevel(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	f := newAPIWith(t, stubPinger{}, zap.New(core), middleware.NewIPRateLimiter(1000, 1000), nil)
	f.store.FailWith = errors.New("connection reset by peer")

	w := f.do(http.MethodGet, "/books", "", nil)
	body := assertError(t, w, http.StatusInternalServerError, "internal_storage_error")
	assert.NotContains(t, body.Detail, "connection reset")

	errorEntries := logs.FilterLevelExact(zapcore.ErrorLevel).All()
	require.Len(t, errorEntries, 1)
	assert.Equal(t, "request failed", errorEntries[0].Message)
	assert.Equal(t, "/books", errorEntries[0].ContextMap()["path"])
}

func TestUnknownRoute(t *testing.T) {
	f := newAPI(t, stubPinger{})
	assertError(t, f.do(http.MethodGet, "/nope", "", nil), http.StatusNotFound, "not_found")
}

func itoa(id int64) string {
	return strconv.FormatInt(id, 10)
}
