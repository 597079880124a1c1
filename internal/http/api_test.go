package http_test

import (
	"context"
	"errors"
	"fmt"
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

	"threpsi/internal/domain"
	apphttp "threpsi/internal/http"
	"threpsi/internal/repository/sqlite"
	"threpsi/internal/service"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type testServer struct {
	*httptest.Server
	client    *http.Client
	countRows func(t *testing.T, table string) int
}

func quietLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

func newRouter(t *testing.T, h *apphttp.Handler) *gin.Engine {
	t.Helper()
	router, err := apphttp.NewRouter(nil)
	if err != nil {
		t.Fatalf("NewRouter: %v", err)
	}
	h.RegisterRoutes(router)
	return router
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	ctx := context.Background()

	db, err := sqlite.Open(filepath.Join(t.TempDir(), "threpsi.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	userRepo := sqlite.NewUserRepository(db)
	apptRepo := sqlite.NewAppointmentRepository(db)
	if err := userRepo.Init(ctx); err != nil {
		t.Fatalf("init users: %v", err)
	}
	if err := apptRepo.Init(ctx); err != nil {
		t.Fatalf("init appointments: %v", err)
	}

	h := apphttp.NewHandler(
		service.NewUserService(userRepo),
		service.NewAppointmentService(apptRepo),
		service.NewMedicineLookup(""),
		nil,
		quietLogger(),
	)

	srv := httptest.NewServer(newRouter(t, h))
	t.Cleanup(srv.Close)

	return &testServer{
		Server: srv,
		client: &http.Client{
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				return http.ErrUseLastResponse // don't follow redirects automatically
			},
		},
		countRows: func(t *testing.T, table string) int {
			t.Helper()
			var n int
			if err := db.QueryRow("SELECT COUNT(*) FROM " + table).Scan(&n); err != nil {
				t.Fatalf("count %s: %v", table, err)
			}
			return n
		},
	}
}

func (s *testServer) post(t *testing.T, path string, form url.Values) (*http.Response, string) {
	t.Helper()
	resp, err := s.client.PostForm(s.URL+path, form)
	if err != nil {
		t.Fatalf("POST %s: %v", path, err)
	}
	return resp, readBody(t, resp)
}

func (s *testServer) get(t *testing.T, path string) (*http.Response, string) {
	t.Helper()
	resp, err := s.client.Get(s.URL + path)
	if err != nil {
		t.Fatalf("GET %s: %v", path, err)
	}
	return resp, readBody(t, resp)
}

func readBody(t *testing.T, resp *http.Response) string {
	t.Helper()
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	return string(body)
}

func registerForm(username, email, password string) url.Values {
	return url.Values{"username": {username}, "email": {email}, "password": {password}}
}

func TestPagesRender(t *testing.T) {
	srv := newTestServer(t)

	tests := []struct {
		path string
		want string
	}{
		{"/", `action="/login"`},
		{"/register", `action="/register"`},
		{"/dashboard", `href="/doctor"`},
		{"/doctor", `action="/submit_appointment"`},
		{"/appointments", "No appointments booked yet."},
		{"/medicine-price", `action="/medicine-price"`},
		{"/static/style.css", ".card"},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			resp, body := srv.get(t, tt.path)
			if resp.StatusCode != http.StatusOK {
				t.Fatalf("expected 200, got %d", resp.StatusCode)
			}
			if !strings.Contains(body, tt.want) {
				t.Fatalf("expected body to contain %q, got:\n%s", tt.want, body)
			}
		})
	}
}

func TestHealthz(t *testing.T) {
	srv := newTestServer(t)

	resp, body := srv.get(t, "/healthz")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	if !strings.Contains(body, `"status":"ok"`) {
		t.Fatalf("unexpected body %s", body)
	}
	if resp.Header.Get("X-Request-ID") == "" {
		t.Fatal("expected X-Request-ID header")
	}
}

func TestRegisterThenLoginRedirectsToDashboard(t *testing.T) {
	srv := newTestServer(t)

	resp, body := srv.post(t, "/register", registerForm("alice", "alice@x.com", "secret"))
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("register: expected 200, got %d", resp.StatusCode)
	}
	if !strings.Contains(body, "Registration successful") || !strings.Contains(body, `href="/"`) {
		t.Fatalf("register: unexpected body %s", body)
	}

	resp, _ = srv.post(t, "/login", url.Values{"username": {"alice"}, "password": {"secret"}})
	if resp.StatusCode != http.StatusFound {
		t.Fatalf("login: expected 302, got %d", resp.StatusCode)
	}
	if loc := resp.Header.Get("Location"); loc != "/dashboard" {
		t.Fatalf("login: expected redirect to /dashboard, got %q", loc)
	}
	if len(resp.Cookies()) != 0 {
		t.Fatal("login must not establish a session cookie")
	}
}

func TestRegisterDuplicateUsername(t *testing.T) {
	srv := newTestServer(t)

	srv.post(t, "/register", registerForm("alice", "alice@x.com", "secret"))

	resp, body := srv.post(t, "/register", registerForm("alice", "different@x.com", "secret"))
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	if !strings.Contains(body, "Username already exists") || !strings.Contains(body, `href="/register"`) {
		t.Fatalf("unexpected body %s", body)
	}
	if n := srv.countRows(t, "users"); n != 1 {
		t.Fatalf("expected 1 user, got %d", n)
	}
}

func TestRegisterDuplicateEmail(t *testing.T) {
	srv := newTestServer(t)

	srv.post(t, "/register", registerForm("alice", "alice@x.com", "secret"))

	_, body := srv.post(t, "/register", registerForm("bob", "alice@x.com", "secret"))
	if !strings.Contains(body, "Email already registered") {
		t.Fatalf("unexpected body %s", body)
	}
	if n := srv.countRows(t, "users"); n != 1 {
		t.Fatalf("expected 1 user, got %d", n)
	}
}

func TestLoginUnknownUser(t *testing.T) {
	srv := newTestServer(t)

	resp, body := srv.post(t, "/login", url.Values{"username": {"ghost"}, "password": {"secret"}})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	if resp.Header.Get("Location") != "" {
		t.Fatal("expected no redirect")
	}
	if !strings.Contains(body, "Invalid credentials") || !strings.Contains(body, `href="/"`) {
		t.Fatalf("unexpected body %s", body)
	}
}

func TestSubmitAppointmentAppearsInListing(t *testing.T) {
	srv := newTestServer(t)

	before := time.Now().UTC()
	resp, body := srv.post(t, "/submit_appointment", url.Values{
		"name":       {"Bob"},
		"email":      {"bob@x.com"},
		"department": {"Cardiology"},
		"date":       {"2024-01-01"},
		"time":       {"10:00"},
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("submit: expected 200, got %d", resp.StatusCode)
	}
	if !strings.Contains(body, "Appointment Booked Successfully") || !strings.Contains(body, `href="/dashboard"`) {
		t.Fatalf("submit: unexpected body %s", body)
	}

	resp, body = srv.get(t, "/appointments")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("list: expected 200, got %d", resp.StatusCode)
	}
	for _, want := range []string{"Bob", "bob@x.com", "Cardiology", "2024-01-01", "10:00"} {
		if !strings.Contains(body, want) {
			t.Fatalf("list: expected %q in body:\n%s", want, body)
		}
	}

	// booked-at is stamped in UTC; the request may straddle midnight
	start := before.Format("2006-01-02")
	end := time.Now().UTC().Format("2006-01-02")
	if !strings.Contains(body, "<td>"+start+" ") && !strings.Contains(body, "<td>"+end+" ") {
		t.Fatalf("list: expected booked-at date %s in body:\n%s", end, body)
	}
}

func TestAppointmentsListedNewestFirst(t *testing.T) {
	srv := newTestServer(t)

	for _, name := range []string{"First Patient", "Second Patient"} {
		srv.post(t, "/submit_appointment", url.Values{
			"name": {name}, "email": {"p@x.com"}, "department": {"ENT"}, "date": {"d"}, "time": {"t"},
		})
	}

	_, body := srv.get(t, "/appointments")
	first := strings.Index(body, "First Patient")
	second := strings.Index(body, "Second Patient")
	if first < 0 || second < 0 {
		t.Fatalf("expected both appointments in body:\n%s", body)
	}
	if second > first {
		t.Fatal("expected the most recent appointment to be listed first")
	}
}

func TestMissingFormFieldsRejected(t *testing.T) {
	srv := newTestServer(t)

	tests := []struct {
		path string
		form url.Values
	}{
		{"/login", url.Values{"username": {"alice"}}},
		{"/login", url.Values{"username": {"alice"}, "password": {""}}},
		{"/register", url.Values{"username": {"alice"}, "password": {"secret"}}},
		{"/submit_appointment", url.Values{
			"name": {"Bob"}, "email": {"bob@x.com"}, "date": {"2024-01-01"}, "time": {"10:00"},
		}},
		{"/medicine-price", url.Values{"brand": {"Crocin"}}},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			resp, body := srv.post(t, tt.path, tt.form)
			if resp.StatusCode != http.StatusBadRequest {
				t.Fatalf("expected 400, got %d", resp.StatusCode)
			}
			if body != "Invalid or missing form data." {
				t.Fatalf("unexpected body %q", body)
			}
		})
	}

	if n := srv.countRows(t, "appointments"); n != 0 {
		t.Fatalf("expected no appointments inserted, got %d", n)
	}
	if n := srv.countRows(t, "users"); n != 0 {
		t.Fatalf("expected no users inserted, got %d", n)
	}
}

func TestMedicinePriceLinks(t *testing.T) {
	srv := newTestServer(t)

	resp, body := srv.post(t, "/medicine-price", url.Values{
		"brand":   {"Dolo 650"},
		"generic": {"<b>Paracetamol</b>"},
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	if !strings.Contains(body, `href="https://www.1mg.com/search/all?name=Dolo%20650"`) {
		t.Fatalf("missing brand link in body:\n%s", body)
	}
	if !strings.Contains(body, "https://www.1mg.com/search/all?name=%3Cb%3EParacetamol%3C%2Fb%3E") {
		t.Fatalf("missing generic link in body:\n%s", body)
	}
	if strings.Contains(body, "<b>Paracetamol</b>") {
		t.Fatal("expected generic name to be HTML-escaped")
	}
}

// failingAppointments simulates an unreachable store.
type failingAppointments struct{}

func (failingAppointments) Book(ctx context.Context, appt domain.Appointment) (*domain.Appointment, error) {
	return nil, errors.New("database is locked")
}

func (failingAppointments) List(ctx context.Context) ([]domain.Appointment, error) {
	return nil, errors.New("database is locked")
}

type failingUsers struct{}

func (failingUsers) Register(ctx context.Context, username, email, password string) (*domain.User, error) {
	return nil, errors.New("disk I/O error")
}

func (failingUsers) Authenticate(ctx context.Context, username, password string) error {
	return errors.New("disk I/O error")
}

func TestStorageFaultsReturnServerError(t *testing.T) {
	h := apphttp.NewHandler(failingUsers{}, failingAppointments{}, service.NewMedicineLookup(""), nil, quietLogger())
	router := newRouter(t, h)

	tests := []struct {
		name string
		req  func() *http.Request
	}{
		{"login", func() *http.Request {
			return formRequest("/login", url.Values{"username": {"a"}, "password": {"b"}})
		}},
		{"register", func() *http.Request {
			return formRequest("/register", registerForm("a", "a@x.com", "b"))
		}},
		{"submit appointment", func() *http.Request {
			return formRequest("/submit_appointment", url.Values{
				"name": {"n"}, "email": {"e"}, "department": {"d"}, "date": {"d"}, "time": {"t"},
			})
		}},
		{"list appointments", func() *http.Request {
			return httptest.NewRequest(http.MethodGet, "/appointments", nil)
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			router.ServeHTTP(w, tt.req())
			if w.Code != http.StatusInternalServerError {
				t.Fatalf("expected 500, got %d", w.Code)
			}
		})
	}
}

func TestRateLimitedLogin(t *testing.T) {
	h := apphttp.NewHandler(failingUsers{}, failingAppointments{}, service.NewMedicineLookup(""),
		apphttp.NewRateLimiter(0.001, 1), quietLogger())
	router := newRouter(t, h)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, formRequest("/login", url.Values{"username": {"a"}}))
	if w.Code != http.StatusBadRequest {
		t.Fatalf("first request: expected 400, got %d", w.Code)
	}

	w = httptest.NewRecorder()
	router.ServeHTTP(w, formRequest("/login", url.Values{"username": {"a"}}))
	if w.Code != http.StatusTooManyRequests {
		t.Fatalf("second request: expected 429, got %d", w.Code)
	}
}

func TestRateLimitIgnoresSpoofedForwardedFor(t *testing.T) {
	h := apphttp.NewHandler(failingUsers{}, failingAppointments{}, service.NewMedicineLookup(""),
		apphttp.NewRateLimiter(0.001, 1), quietLogger())
	router := newRouter(t, h)

	codes := make([]int, 5)
	for i := range codes {
		req := formRequest("/login", url.Values{"username": {"a"}})
		req.RemoteAddr = "192.0.2.10:4321"
		req.Header.Set("X-Forwarded-For", fmt.Sprintf("10.0.0.%d", i))
		req.Header.Set("X-Real-IP", fmt.Sprintf("10.0.1.%d", i))

		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
		codes[i] = w.Code
	}

	if codes[0] != http.StatusBadRequest {
		t.Fatalf("first request: expected 400, got %d", codes[0])
	}
	for i, code := range codes[1:] {
		if code != http.StatusTooManyRequests {
			t.Fatalf("request %d: expected 429, got %d (codes %v)", i+2, code, codes)
		}
	}
}

func TestRateLimitHonorsTrustedProxy(t *testing.T) {
	h := apphttp.NewHandler(failingUsers{}, failingAppointments{}, service.NewMedicineLookup(""),
		apphttp.NewRateLimiter(0.001, 1), quietLogger())
	router, err := apphttp.NewRouter([]string{"192.0.2.10"})
	if err != nil {
		t.Fatalf("NewRouter: %v", err)
	}
	h.RegisterRoutes(router)

	for i := 0; i < 3; i++ {
		req := formRequest("/login", url.Values{"username": {"a"}})
		req.RemoteAddr = "192.0.2.10:4321"
		req.Header.Set("X-Forwarded-For", fmt.Sprintf("203.0.113.%d", i))

		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
		if w.Code != http.StatusBadRequest {
			t.Fatalf("client %d behind trusted proxy: expected 400, got %d", i, w.Code)
		}
	}
}

func TestNewRouterRejectsInvalidProxy(t *testing.T) {
	if _, err := apphttp.NewRouter([]string{"not-an-ip"}); err == nil {
		t.Fatal("expected error for invalid trusted proxy")
	}
}

func formRequest(path string, form url.Values) *http.Request {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return req
}
