package handler

import (
	"net/http"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/go-sql-driver/mysql"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"

	"github.com/iliyamo/book-store/internal/config"
	"github.com/iliyamo/book-store/internal/model"
	"github.com/iliyamo/book-store/internal/repository"
	"github.com/iliyamo/book-store/internal/utils"
)

const testSecret = "handler-test-secret"

var userCols = []string{"id", "email", "password_hash", "role", "is_active", "created_at", "updated_at"}

func newAuthEnv(t *testing.T) (*echo.Echo, sqlmock.Sqlmock) {
	t.Helper()
	db, mock := newMock(t)
	cfg := config.Config{JWTSecret: testSecret, AccessTTLMin: 15, RefreshTTLDays: 7, BcryptCost: 4}
	h := NewAuthHandler(cfg, repository.NewUserRepo(db), repository.NewTokenRepo(db), quiet())
	e := newEcho()
	e.POST("/v1/auth/register", h.Register)
	e.POST("/v1/auth/login", h.Login)
	e.POST("/v1/auth/refresh", h.Refresh)
	e.POST("/v1/auth/logout", h.Logout)
	e.GET("/v1/me", h.Me, as(5, model.RoleCustomer))
	return e, mock
}

func TestRegister(t *testing.T) {
	e, mock := newAuthEnv(t)
	mock.ExpectExec("INSERT INTO users").
		WithArgs("ann@example.com", sqlmock.AnyArg(), model.RoleCustomer).
		WillReturnResult(sqlmock.NewResult(5, 1))
	mock.ExpectExec("INSERT INTO refresh_tokens").
		WithArgs(5, sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))

	rec := serve(e, http.MethodPost, "/v1/auth/register", `{"email":"Ann@Example.com","password":"longenough"}`, nil)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	body := rec.Body.String()
	assert.Equal(t, "ann@example.com", gjson.Get(body, "user.email").String())
	assert.Equal(t, model.RoleCustomer, gjson.Get(body, "user.role").String())

	claims, err := utils.ParseAccessToken(testSecret, gjson.Get(body, "access.token").String())
	require.NoError(t, err)
	assert.Equal(t, "5", claims.Subject)
	assert.Equal(t, model.RoleCustomer, claims.Role)
	assert.NotEmpty(t, gjson.Get(body, "refresh.token").String())
}

func TestRegisterRejects(t *testing.T) {
	e, mock := newAuthEnv(t)

	rec := serve(e, http.MethodPost, "/v1/auth/register", `{"email":"nope","password":"short"}`, nil)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "email", gjson.Get(rec.Body.String(), "fields.email").String())
	assert.Equal(t, "min=8", gjson.Get(rec.Body.String(), "fields.password").String())

	mock.ExpectExec("INSERT INTO users").
		WillReturnError(&mysql.MySQLError{Number: 1062, Message: "Duplicate entry"})
	rec = serve(e, http.MethodPost, "/v1/auth/register", `{"email":"ann@example.com","password":"longenough"}`, nil)
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestLogin(t *testing.T) {
	hash, err := utils.HashPassword("longenough", 4)
	require.NoError(t, err)
	now := time.Now()

	t.Run("ok", func(t *testing.T) {
		e, mock := newAuthEnv(t)
		mock.ExpectQuery("FROM users WHERE email=").WithArgs("root@example.com").
			WillReturnRows(sqlmock.NewRows(userCols).AddRow(1, "root@example.com", hash, model.RoleAdmin, true, now, now))
		mock.ExpectExec("INSERT INTO refresh_tokens").WillReturnResult(sqlmock.NewResult(1, 1))

		rec := serve(e, http.MethodPost, "/v1/auth/login", `{"email":"root@example.com","password":"longenough"}`, nil)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		assert.Equal(t, model.RoleAdmin, gjson.Get(rec.Body.String(), "user.role").String())
	})
	t.Run("wrong password", func(t *testing.T) {
		e, mock := newAuthEnv(t)
		mock.ExpectQuery("FROM users WHERE email=").
			WillReturnRows(sqlmock.NewRows(userCols).AddRow(1, "root@example.com", hash, model.RoleAdmin, true, now, now))

		rec := serve(e, http.MethodPost, "/v1/auth/login", `{"email":"root@example.com","password":"guess"}`, nil)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})
	t.Run("disabled", func(t *testing.T) {
		e, mock := newAuthEnv(t)
		mock.ExpectQuery("FROM users WHERE email=").
			WillReturnRows(sqlmock.NewRows(userCols).AddRow(2, "off@example.com", hash, model.RoleCustomer, false, now, now))

		rec := serve(e, http.MethodPost, "/v1/auth/login", `{"email":"off@example.com","password":"longenough"}`, nil)
		assert.Equal(t, http.StatusForbidden, rec.Code)
	})
}

func TestRefreshRotates(t *testing.T) {
	e, mock := newAuthEnv(t)
	now := time.Now()
	raw := "raw-refresh"
	hash := utils.HashRefreshRaw(raw)

	mock.ExpectQuery("FROM refresh_tokens").WithArgs(hash).
		WillReturnRows(sqlmock.NewRows([]string{"user_id", "expires_at", "revoked_at"}).AddRow(5, now.Add(time.Hour), nil))
	mock.ExpectExec("UPDATE refresh_tokens SET revoked_at").WithArgs(hash).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery("FROM users WHERE id").WithArgs(5).
		WillReturnRows(sqlmock.NewRows(userCols).AddRow(5, "ann@example.com", "x", model.RoleCustomer, true, now, now))
	mock.ExpectExec("INSERT INTO refresh_tokens").WillReturnResult(sqlmock.NewResult(2, 1))

	rec := serve(e, http.MethodPost, "/v1/auth/refresh", `{"refresh_token":"raw-refresh"}`, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.NotEqual(t, raw, gjson.Get(rec.Body.String(), "refresh.token").String())

	rec = serve(e, http.MethodPost, "/v1/auth/refresh", `{}`, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestLogoutAllSessions(t *testing.T) {
	e, mock := newAuthEnv(t)
	tok, err := utils.NewAccessToken(testSecret, 5, model.RoleCustomer, 5)
	require.NoError(t, err)
	mock.ExpectExec("UPDATE refresh_tokens SET revoked_at").WithArgs(5).WillReturnResult(sqlmock.NewResult(0, 2))

	rec := serve(e, http.MethodPost, "/v1/auth/logout", "", map[string]string{"Authorization": "Bearer " + tok.Token})
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = serve(e, http.MethodPost, "/v1/auth/logout", "", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestMe(t *testing.T) {
	e, mock := newAuthEnv(t)
	now := time.Now()
	mock.ExpectQuery("FROM users WHERE id").WithArgs(5).
		WillReturnRows(sqlmock.NewRows(userCols).AddRow(5, "ann@example.com", "secret-hash", model.RoleCustomer, true, now, now))

	rec := serve(e, http.MethodGet, "/v1/me", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ann@example.com", gjson.Get(rec.Body.String(), "email").String())
	assert.False(t, gjson.Get(rec.Body.String(), "password_hash").Exists())
}
