package http

import (
	"context"
	"database/sql"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"

	"memo-service/internal/repository/sqlite"
	"memo-service/internal/service"
	"memo-service/internal/session"
)

const testCookieName = "memo_session"

type testServer struct {
	t        *testing.T
	router   *gin.Engine
	db       *sql.DB
	sessions *session.Manager
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db, err := sqlite.Open(filepath.Join(t.TempDir(), "memo.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	_, err = sqlite.Migrate(context.Background(), db)
	require.NoError(t, err)

	logger := logrus.New()
	logger.SetOutput(io.Discard)

	users := service.NewUserService(sqlite.NewUserRepository(db), logger)
	memos := service.NewMemoService(sqlite.NewMemoRepository(db))
	sessions := session.NewManager(session.NewMemoryStore(), session.Config{TTL: time.Hour, Logger: logger})

	handler := NewHandler(users, memos, sessions, db, CookieConfig{Name: testCookieName}, logger)
	router := gin.New()
	handler.RegisterRoutes(router)

	return &testServer{t: t, router: router, db: db, sessions: sessions}
}

func (ts *testServer) do(method, path string, body io.Reader, contentType string, cookie *http.Cookie) *httptest.ResponseRecorder {
	ts.t.Helper()
	req := httptest.NewRequest(method, path, body)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if cookie != nil {
		req.AddCookie(cookie)
	}
	rec := httptest.NewRecorder()
	ts.router.ServeHTTP(rec, req)
	return rec
}

func (ts *testServer) doJSON(method, path string, payload any, cookie *http.Cookie) *httptest.ResponseRecorder {
	ts.t.Helper()
	var body io.Reader
	if payload != nil {
		raw, err := json.Marshal(payload)
		require.NoError(ts.t, err)
		body = strings.NewReader(string(raw))
	}
	return ts.do(method, path, body, "application/json", cookie)
}

func (ts *testServer) doForm(path string, values url.Values, cookie *http.Cookie) *httptest.ResponseRecorder {
	ts.t.Helper()
	return ts.do(http.MethodPost, path, strings.NewReader(values.Encode()), "application/x-www-form-urlencoded", cookie)
}

func (ts *testServer) signup(username, email, password string) {
	ts.t.Helper()
	rec := ts.doJSON(http.MethodPost, "/signup", map[string]string{
		"username": username,
		"email":    email,
		"password": password,
	}, nil)
	require.Equal(ts.t, http.StatusCreated, rec.Code, rec.Body.String())
}

func (ts *testServer) login(username, password string) *http.Cookie {
	ts.t.Helper()
	rec := ts.doForm("/login", url.Values{"username": {username}, "password": {password}}, nil)
	require.Equal(ts.t, http.StatusOK, rec.Code, rec.Body.String())
	cookie := sessionCookie(rec)
	require.NotNil(ts.t, cookie, "login must set the session cookie")
	return cookie
}

func (ts *testServer) signupAndLogin(username string) *http.Cookie {
	ts.t.Helper()
	ts.signup(username, username+"@x.com", "pw-"+username)
	return ts.login(username, "pw-"+username)
}

func (ts *testServer) createMemo(cookie *http.Cookie, title, content string) int64 {
	ts.t.Helper()
	rec := ts.doJSON(http.MethodPost, "/memos/create", map[string]string{"title": title, "content": content}, cookie)
	require.Equal(ts.t, http.StatusCreated, rec.Code, rec.Body.String())
	var resp MessageResponse
	decode(ts.t, rec, &resp)
	return resp.ID
}

func (ts *testServer) listMemos(cookie *http.Cookie) []MemoResponse {
	ts.t.Helper()
	rec := ts.do(http.MethodGet, "/memos", nil, "", cookie)
	require.Equal(ts.t, http.StatusOK, rec.Code, rec.Body.String())
	var memos []MemoResponse
	decode(ts.t, rec, &memos)
	return memos
}

func sessionCookie(rec *httptest.ResponseRecorder) *http.Cookie {
	for _, c := range rec.Result().Cookies() {
		if c.Name == testCookieName {
			return c
		}
	}
	return nil
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, v any) {
	t.Helper()
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), v), rec.Body.String())
}

func errorReason(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var resp ErrorResponse
	decode(t, rec, &resp)
	return resp.Error
}

func decodeBody(resp *http.Response, v any) error {
	return json.NewDecoder(resp.Body).Decode(v)
}
