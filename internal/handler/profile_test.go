package handler

import (
	"database/sql"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"

	"github.com/iliyamo/book-store/internal/model"
	"github.com/iliyamo/book-store/internal/repository"
)

func TestProfileGetEmptyWhenNeverSaved(t *testing.T) {
	db, mock := newMock(t)
	h := &ProfileHandler{Profiles: repository.NewProfileRepo(db), Log: quiet()}
	e := newEcho()
	e.GET("/v1/me/profile", h.Get, as(3, model.RoleCustomer))

	mock.ExpectQuery("FROM profiles WHERE user_id = \\?").WithArgs(3).WillReturnError(sql.ErrNoRows)

	rec := serve(e, http.MethodGet, "/v1/me/profile", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, int64(3), gjson.Get(rec.Body.String(), "user_id").Int())
	assert.Empty(t, gjson.Get(rec.Body.String(), "city").String())
}

func TestProfilePutTrimsAndReloads(t *testing.T) {
	db, mock := newMock(t)
	h := &ProfileHandler{Profiles: repository.NewProfileRepo(db), Log: quiet()}
	e := newEcho()
	e.PUT("/v1/me/profile", h.Put, as(3, model.RoleCustomer))

	mock.ExpectExec("INSERT INTO profiles").
		WithArgs(3, "Ada Reader", "", "1 Library Lane", "Leiden", "2311", "NL").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery("FROM profiles WHERE user_id = \\?").WithArgs(3).
		WillReturnRows(sqlmock.NewRows(profileCols).
			AddRow(3, "Ada Reader", "", "1 Library Lane", "Leiden", "2311", "NL", time.Now()))

	body := `{"full_name":"  Ada Reader ","address_line":"1 Library Lane","city":"Leiden","postal_code":"2311","country":"NL"}`
	rec := serve(e, http.MethodPut, "/v1/me/profile", body, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "Ada Reader", gjson.Get(rec.Body.String(), "full_name").String())
}

func TestProfilePutRejectsLongFields(t *testing.T) {
	db, _ := newMock(t)
	h := &ProfileHandler{Profiles: repository.NewProfileRepo(db), Log: quiet()}
	e := newEcho()
	e.PUT("/v1/me/profile", h.Put, as(3, model.RoleCustomer))

	rec := serve(e, http.MethodPut, "/v1/me/profile", `{"phone":"`+strings.Repeat("9", 40)+`"}`, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "max=32", gjson.Get(rec.Body.String(), "fields.phone").String())
}
