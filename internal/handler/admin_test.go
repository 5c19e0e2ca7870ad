package handler

import (
	"bytes"
	"context"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/go-sql-driver/mysql"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"

	"github.com/iliyamo/book-store/internal/audit"
	"github.com/iliyamo/book-store/internal/metrics"
	"github.com/iliyamo/book-store/internal/model"
	"github.com/iliyamo/book-store/internal/repository"
	"github.com/iliyamo/book-store/internal/storage"
)

type adminEnv struct {
	e      *echo.Echo
	mock   sqlmock.Sqlmock
	audit  *recordingAudit
	pub    *recordingPublisher
	covers *storage.CoverStore
	purges atomic.Int32
}

func newAdminEnv(t *testing.T) *adminEnv {
	t.Helper()
	db, mock := newMock(t)
	covers, err := storage.NewCoverStore(t.TempDir(), "/covers", 1<<10)
	require.NoError(t, err)
	env := &adminEnv{mock: mock, audit: &recordingAudit{}, pub: &recordingPublisher{}, covers: covers}

	books := repository.NewBookRepo(db)
	authors := repository.NewAuthorRepo(db)
	cat := &AdminCatalogHandler{
		Authors: authors, Books: books, Covers: covers, Audit: env.audit, Log: quiet(),
		Purge: func(context.Context) error { env.purges.Add(1); return nil },
	}
	ord := &AdminOrderHandler{
		Orders: repository.NewOrderRepo(db), Books: books, Authors: authors, Users: repository.NewUserRepo(db),
		Publisher: env.pub, Audit: env.audit, Metrics: metrics.New(false), LowStockLevel: 3, Log: quiet(),
	}

	e := newEcho()
	g := e.Group("/v1/admin", as(1, model.RoleAdmin))
	g.POST("/authors", cat.CreateAuthor)
	g.PATCH("/authors/:id", cat.UpdateAuthor)
	g.DELETE("/authors/:id", cat.DeleteAuthor)
	g.POST("/books", cat.CreateBook)
	g.PATCH("/books/:id/stock", cat.AdjustStock)
	g.POST("/books/:id/cover", cat.UploadCover)
	g.GET("/orders", ord.List)
	g.PATCH("/orders/:id/status", ord.UpdateStatus)
	g.GET("/audit", ord.AuditLog)
	env.e = e
	return env
}

var authorCols = []string{"id", "name", "slug", "bio", "photo_url", "created_at", "updated_at"}

func TestCreateAuthor(t *testing.T) {
	env := newAdminEnv(t)
	now := time.Now()
	env.mock.ExpectExec("INSERT INTO authors").
		WithArgs("Gabriel García Márquez", "gabriel-garcia-marquez", sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(4, 1))
	env.mock.ExpectQuery("FROM authors WHERE id = \\?").WithArgs(4).
		WillReturnRows(sqlmock.NewRows(authorCols).AddRow(4, "Gabriel García Márquez", "gabriel-garcia-marquez", nil, nil, now, now))

	rec := serve(env.e, http.MethodPost, "/v1/admin/authors", `{"name":"  Gabriel García Márquez "}`, nil)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.Equal(t, "gabriel-garcia-marquez", gjson.Get(rec.Body.String(), "slug").String())

	entries := env.audit.all()
	require.Len(t, entries, 1)
	assert.Equal(t, uint64(1), entries[0].ActorID)
	assert.Equal(t, "author", entries[0].Entity)
	assert.Equal(t, "create", entries[0].Action)
	assert.Equal(t, int32(1), env.purges.Load())
}

func TestCreateAuthorRejects(t *testing.T) {
	env := newAdminEnv(t)

	rec := serve(env.e, http.MethodPost, "/v1/admin/authors", `{"bio":"x"}`, nil)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "required", gjson.Get(rec.Body.String(), "fields.name").String())

	rec = serve(env.e, http.MethodPost, "/v1/admin/authors", `{"name":"A","photo_url":"not a url"}`, nil)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "url", gjson.Get(rec.Body.String(), "fields.photo_url").String())

	env.mock.ExpectExec("INSERT INTO authors").
		WillReturnError(&mysql.MySQLError{Number: 1062, Message: "Duplicate entry"})
	rec = serve(env.e, http.MethodPost, "/v1/admin/authors", `{"name":"Zadie Smith"}`, nil)
	require.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "zadie-smith", gjson.Get(rec.Body.String(), "slug").String())
	assert.Zero(t, env.purges.Load())
}

func TestDeleteAuthorWithBooks(t *testing.T) {
	env := newAdminEnv(t)
	env.mock.ExpectQuery("SELECT COUNT\\(\\*\\) FROM books WHERE author_id").WithArgs(3).
		WillReturnRows(sqlmock.NewRows([]string{"n"}).AddRow(2))

	rec := serve(env.e, http.MethodDelete, "/v1/admin/authors/3", "", nil)
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Empty(t, env.audit.all())
}

func TestCreateBook(t *testing.T) {
	t.Run("missing fields", func(t *testing.T) {
		env := newAdminEnv(t)
		rec := serve(env.e, http.MethodPost, "/v1/admin/books", `{"title":"Tehanu"}`, nil)
		require.Equal(t, http.StatusBadRequest, rec.Code)
		fields := gjson.Get(rec.Body.String(), "fields").Map()
		assert.Contains(t, fields, "isbn")
		assert.Contains(t, fields, "price_cents")
		assert.NotContains(t, fields, "title")
	})
	t.Run("bad isbn", func(t *testing.T) {
		env := newAdminEnv(t)
		rec := serve(env.e, http.MethodPost, "/v1/admin/books",
			`{"isbn":"978-0-00-000000-1","title":"T","author_id":1,"genre":"x","price_cents":100}`, nil)
		require.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Equal(t, "isbn", gjson.Get(rec.Body.String(), "fields.isbn").String())
	})
	t.Run("unknown author", func(t *testing.T) {
		env := newAdminEnv(t)
		env.mock.ExpectExec("INSERT INTO books").
			WillReturnError(&mysql.MySQLError{Number: 1452, Message: "foreign key"})
		rec := serve(env.e, http.MethodPost, "/v1/admin/books",
			`{"isbn":"978-0-441-47812-5","title":"T","author_id":99,"genre":"x","price_cents":100}`, nil)
		require.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Equal(t, "unknown author", gjson.Get(rec.Body.String(), "error").String())
	})
	t.Run("created", func(t *testing.T) {
		env := newAdminEnv(t)
		env.mock.ExpectExec("INSERT INTO books").
			WithArgs("9780441478125", "The Left Hand of Darkness", 1, "science fiction", nil, 1699, 4, nil, nil).
			WillReturnResult(sqlmock.NewResult(11, 1))
		env.mock.ExpectQuery("WHERE b.id = \\?").WithArgs(11).WillReturnRows(bookRows([3]any{11, 1699, 4}))
		rec := serve(env.e, http.MethodPost, "/v1/admin/books",
			`{"isbn":"978-0-441-47812-5","title":"The Left Hand of Darkness","author_id":1,"genre":" Science Fiction ","price_cents":1699,"stock":4}`, nil)
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
		assert.Equal(t, int64(11), gjson.Get(rec.Body.String(), "id").Int())
		assert.Equal(t, int32(1), env.purges.Load())
	})
}

func TestAdjustStock(t *testing.T) {
	t.Run("below zero", func(t *testing.T) {
		env := newAdminEnv(t)
		env.mock.ExpectBegin()
		env.mock.ExpectQuery("SELECT stock FROM books").WithArgs(4).WillReturnRows(sqlmock.NewRows([]string{"stock"}).AddRow(1))
		env.mock.ExpectRollback()

		rec := serve(env.e, http.MethodPatch, "/v1/admin/books/4/stock", `{"delta":-3}`, nil)
		require.Equal(t, http.StatusConflict, rec.Code)
		assert.Equal(t, int64(1), gjson.Get(rec.Body.String(), "stock").Int())
	})
	t.Run("restock", func(t *testing.T) {
		env := newAdminEnv(t)
		env.mock.ExpectBegin()
		env.mock.ExpectQuery("SELECT stock FROM books").WithArgs(4).WillReturnRows(sqlmock.NewRows([]string{"stock"}).AddRow(1))
		env.mock.ExpectExec("UPDATE books SET stock = \\?").WithArgs(int64(11), 4).WillReturnResult(sqlmock.NewResult(0, 1))
		env.mock.ExpectCommit()

		rec := serve(env.e, http.MethodPatch, "/v1/admin/books/4/stock", `{"delta":10}`, nil)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, int64(11), gjson.Get(rec.Body.String(), "stock").Int())
		require.Len(t, env.audit.all(), 1)
		assert.Equal(t, "stock", env.audit.all()[0].Action)
	})
	t.Run("zero delta", func(t *testing.T) {
		env := newAdminEnv(t)
		rec := serve(env.e, http.MethodPatch, "/v1/admin/books/4/stock", `{"delta":0}`, nil)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

// 1x1 transparent PNG
var tinyPNG = []byte{
	0x89, 0x50, 0x4e, 0x47, 0x0d, 0x0a, 0x1a, 0x0a, 0x00, 0x00, 0x00, 0x0d, 0x49, 0x48, 0x44, 0x52,
	0x00, 0x00, 0x00, 0x01, 0x00, 0x00, 0x00, 0x01, 0x08, 0x06, 0x00, 0x00, 0x00, 0x1f, 0x15, 0xc4,
	0x89, 0x00, 0x00, 0x00, 0x0a, 0x49, 0x44, 0x41, 0x54, 0x78, 0x9c, 0x63, 0x00, 0x01, 0x00, 0x00,
	0x05, 0x00, 0x01, 0x0d, 0x0a, 0x2d, 0xb4, 0x00, 0x00, 0x00, 0x00, 0x49, 0x45, 0x4e, 0x44, 0xae,
	0x42, 0x60, 0x82,
}

func upload(e *echo.Echo, target string, content []byte) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	part, _ := w.CreateFormFile("file", "cover.png")
	_, _ = part.Write(content)
	_ = w.Close()
	req := httptest.NewRequest(http.MethodPost, target, &buf)
	req.Header.Set(echo.HeaderContentType, w.FormDataContentType())
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func TestUploadCover(t *testing.T) {
	env := newAdminEnv(t)
	env.mock.ExpectQuery("WHERE b.id = \\?").WithArgs(4).WillReturnRows(bookRows([3]any{4, 900, 1}))
	env.mock.ExpectExec("UPDATE books SET cover_url = \\?").WithArgs(sqlmock.AnyArg(), 4).WillReturnResult(sqlmock.NewResult(0, 1))

	rec := upload(env.e, "/v1/admin/books/4/cover", tinyPNG)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	url := gjson.Get(rec.Body.String(), "cover_url").String()
	assert.True(t, strings.HasPrefix(url, "/covers/4-"))
	assert.True(t, strings.HasSuffix(url, ".png"))
	_, err := os.Stat(filepath.Join(env.covers.Dir, strings.TrimPrefix(url, "/covers/")))
	assert.NoError(t, err)

	env.mock.ExpectQuery("WHERE b.id = \\?").WithArgs(4).WillReturnRows(bookRows([3]any{4, 900, 1}))
	rec = upload(env.e, "/v1/admin/books/4/cover", []byte("plain text, not an image"))
	assert.Equal(t, http.StatusUnsupportedMediaType, rec.Code)

	rec = upload(env.e, "/v1/admin/books/4/cover", bytes.Repeat([]byte{0xff}, 2<<10))
	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
}

func TestAdminUpdateStatus(t *testing.T) {
	cols := []string{"user_id", "status"}

	t.Run("invalid move", func(t *testing.T) {
		env := newAdminEnv(t)
		env.mock.ExpectBegin()
		env.mock.ExpectQuery("FROM orders WHERE id").WithArgs(8).WillReturnRows(sqlmock.NewRows(cols).AddRow(7, model.OrderDelivered))
		env.mock.ExpectRollback()

		rec := serve(env.e, http.MethodPatch, "/v1/admin/orders/8/status", `{"status":"cancelled"}`, nil)
		require.Equal(t, http.StatusConflict, rec.Code)
		assert.Equal(t, model.OrderDelivered, gjson.Get(rec.Body.String(), "from").String())
		assert.Equal(t, model.OrderCancelled, gjson.Get(rec.Body.String(), "to").String())
	})
	t.Run("unknown status", func(t *testing.T) {
		env := newAdminEnv(t)
		rec := serve(env.e, http.MethodPatch, "/v1/admin/orders/8/status", `{"status":"LOST"}`, nil)
		require.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Contains(t, gjson.Get(rec.Body.String(), "fields.status").String(), "oneof")
	})
	t.Run("ship", func(t *testing.T) {
		env := newAdminEnv(t)
		now := time.Now()
		env.mock.ExpectBegin()
		env.mock.ExpectQuery("FROM orders WHERE id").WithArgs(8).WillReturnRows(sqlmock.NewRows(cols).AddRow(7, model.OrderProcessing))
		env.mock.ExpectExec("UPDATE orders SET status").WithArgs(model.OrderShipped, 8).WillReturnResult(sqlmock.NewResult(0, 1))
		env.mock.ExpectCommit()
		env.mock.ExpectQuery("FROM orders o WHERE o.id = \\?").WithArgs(8).
			WillReturnRows(sqlmock.NewRows(orderCols).
				AddRow(8, "n-8", 7, model.OrderShipped, 1000, "Ann", "1 Road", "Town", "123", "NL", "", now, now, 1))
		env.mock.ExpectQuery("FROM order_items oi").WithArgs(8).
			WillReturnRows(sqlmock.NewRows([]string{"id", "order_id", "book_id", "title", "quantity", "unit_price_cents"}).
				AddRow(1, 8, 2, "Dune", 1, 1000))

		rec := serve(env.e, http.MethodPatch, "/v1/admin/orders/8/status", `{"status":"SHIPPED"}`, nil)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		assert.Equal(t, model.OrderShipped, gjson.Get(rec.Body.String(), "status").String())
		assert.Equal(t, "Dune", gjson.Get(rec.Body.String(), "items.0.title").String())

		require.Eventually(t, func() bool { return len(env.pub.changedEvents()) == 1 }, time.Second, 10*time.Millisecond)
		ev := env.pub.changedEvents()[0]
		assert.Equal(t, uint64(7), ev.UserID)
		assert.Equal(t, uint64(1), ev.ActorID)
		assert.Equal(t, model.OrderProcessing, ev.From)
	})
}

func TestAdminListOrdersRejectsStatus(t *testing.T) {
	env := newAdminEnv(t)
	rec := serve(env.e, http.MethodGet, "/v1/admin/orders?status=lost", "", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, int64(5), gjson.Get(rec.Body.String(), "allowed.#").Int())
}

func TestAuditLogListsRecent(t *testing.T) {
	env := newAdminEnv(t)
	for i := 0; i < 3; i++ {
		require.NoError(t, env.audit.Log(context.Background(), audit.Entry{Entity: "book", EntityID: uint64(i + 1), Action: "update"}))
	}
	rec := serve(env.e, http.MethodGet, "/v1/admin/audit?limit=2", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, int64(2), gjson.Get(rec.Body.String(), "items.#").Int())
}

func TestAuditLogCapsLimit(t *testing.T) {
	env := newAdminEnv(t)
	for i := 0; i < 300; i++ {
		require.NoError(t, env.audit.Log(context.Background(), audit.Entry{Entity: "book", EntityID: uint64(i + 1), Action: "update"}))
	}
	for target, want := range map[string]int64{
		"/v1/admin/audit?limit=300": 200,
		"/v1/admin/audit?limit=0":   50,
		"/v1/admin/audit":           50,
		"/v1/admin/audit?limit=x":   50,
		"/v1/admin/audit?limit=200": 200,
	} {
		rec := serve(env.e, http.MethodGet, target, "", nil)
		require.Equal(t, http.StatusOK, rec.Code, target)
		assert.Equal(t, want, gjson.Get(rec.Body.String(), "items.#").Int(), target)
	}
}
