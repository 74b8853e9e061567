package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/sessions"
	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"

	"github.com/geodonis/geodonis-web/internal/api/handler"
	"github.com/geodonis/geodonis-web/internal/core/auth"
	"github.com/geodonis/geodonis-web/internal/core/domain"
	"github.com/geodonis/geodonis-web/internal/core/ports"
	"github.com/geodonis/geodonis-web/internal/infrastructure/http/handlers"
	"github.com/geodonis/geodonis-web/web"
)

// tokenAuth resolves a handful of fixed access and refresh tokens.
type tokenAuth struct{}

var (
	member = &domain.User{ID: 1, Username: "ada", Email: "ada@example.com", Status: domain.StatusActive}
	admin  = &domain.User{ID: 2, Username: "root", Email: "root@example.com", Status: domain.StatusActive, IsSuperUser: true}
)

func (tokenAuth) Login(context.Context, string, string) (*ports.LoginResult, error) {
	return nil, domain.ErrInvalidCredentials
}

func (tokenAuth) Refresh(_ context.Context, raw string) (*ports.RefreshResult, error) {
	if raw != "refresh-good" {
		return nil, domain.ErrTokenExpired
	}
	return &ports.RefreshResult{
		User:   member,
		Access: &domain.IssuedToken{Raw: "member", CSRF: "csrf-member", ExpiresAt: time.Now().Add(15 * time.Minute)},
	}, nil
}

func (tokenAuth) Reissue(context.Context, int64) (*ports.RefreshResult, error) {
	return nil, domain.ErrUserNotFound
}

func (tokenAuth) Authenticate(_ context.Context, raw string) (*domain.User, *domain.TokenClaims, error) {
	claims := func(u *domain.User) *domain.TokenClaims {
		return &domain.TokenClaims{UserID: u.ID, Type: domain.TokenAccess, IsSuperUser: u.IsSuperUser, CSRF: "csrf-" + raw, ExpiresAt: time.Now().Add(time.Hour)}
	}
	switch raw {
	case "member":
		return member, claims(member), nil
	case "admin":
		return admin, claims(admin), nil
	case "expired":
		return nil, nil, domain.ErrTokenExpired
	}
	return nil, nil, domain.ErrTokenInvalid
}

type noUsers struct{ ports.UserService }

type emptyUploads struct{ ports.UploadService }

func (emptyUploads) List(context.Context, string, bool) ([]domain.FileInfo, error) {
	return nil, nil
}

type denyAll struct{}

func (denyAll) Allow(context.Context, string, int, time.Duration) (bool, error) { return false, nil }

func newTestRouter(t *testing.T, mutate ...func(*Deps)) *echo.Echo {
	t.Helper()
	reg := prometheus.NewRegistry()
	d := Deps{
		AuthService:   tokenAuth{},
		UserService:   noUsers{},
		UploadService: emptyUploads{},
		Checks: map[string]handlers.Pinger{
			"mongodb": handlers.PingFunc(func(context.Context) error { return nil }),
		},
		Renderer:     handler.NewRenderer(web.Templates(), false),
		Static:       web.Static(),
		SessionStore: sessions.NewCookieStore([]byte("0123456789abcdef0123456789abcdef")),
		Registerer:   reg,
		Gatherer:     reg,
		Log:          zerolog.Nop(),
	}
	for _, m := range mutate {
		m(&d)
	}
	return NewRouter(d)
}

func do(e *echo.Echo, req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func decodeEnvelope(t *testing.T, rec *httptest.ResponseRecorder) errorResponse {
	t.Helper()
	var body errorResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("invalid json %q: %v", rec.Body.String(), err)
	}
	return body
}

func TestRouter_BrowserExpiredSessionRefreshesAndReturns(t *testing.T) {
	e := newTestRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/edit_account", nil)
	req.AddCookie(&http.Cookie{Name: auth.AccessCookie, Value: "expired"})
	rec := do(e, req)
	if rec.Code != http.StatusFound {
		t.Fatalf("step 1 status = %d, want 302", rec.Code)
	}
	retry := rec.Header().Get(echo.HeaderLocation)
	if retry != "/api/auth/refresh/retry?next=%2Fedit_account" {
		t.Fatalf("step 1 Location = %q", retry)
	}

	req = httptest.NewRequest(http.MethodGet, retry, nil)
	req.AddCookie(&http.Cookie{Name: auth.RefreshCookie, Value: "refresh-good"})
	rec = do(e, req)
	if rec.Code != http.StatusFound || rec.Header().Get(echo.HeaderLocation) != "/edit_account" {
		t.Fatalf("step 2 status %d Location %q", rec.Code, rec.Header().Get(echo.HeaderLocation))
	}
	var access *http.Cookie
	for _, ck := range rec.Result().Cookies() {
		if ck.Name == auth.AccessCookie {
			access = ck
		}
	}
	if access == nil || access.Value != "member" {
		t.Fatalf("step 2 access cookie = %+v", access)
	}

	req = httptest.NewRequest(http.MethodGet, "/edit_account", nil)
	req.AddCookie(access)
	rec = do(e, req)
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), "Edit Account") {
		t.Fatalf("step 3 status %d body %q", rec.Code, rec.Body.String())
	}
}

func TestRouter_BrowserExpiredRefreshGoesToLogin(t *testing.T) {
	e := newTestRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/api/auth/refresh/retry?next=%2Fedit_account", nil)
	req.AddCookie(&http.Cookie{Name: auth.RefreshCookie, Value: "refresh-stale"})
	rec := do(e, req)
	if rec.Code != http.StatusFound || rec.Header().Get(echo.HeaderLocation) != "/login?next=%2Fedit_account" {
		t.Fatalf("status %d Location %q", rec.Code, rec.Header().Get(echo.HeaderLocation))
	}
}

func TestRouter_APIRejectionsNeverRedirect(t *testing.T) {
	e := newTestRouter(t)

	tests := []struct {
		name       string
		bearer     string
		wantStatus int
		wantMsg    string
	}{
		{"expired", "expired", http.StatusUnauthorized, domain.MsgExpiredToken},
		{"invalid", "forged", http.StatusUnprocessableEntity, domain.MsgInvalidToken},
		{"missing", "", http.StatusUnauthorized, domain.MsgMissingToken},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/api/uploads/venue_gps_trace", nil)
			if tt.bearer != "" {
				req.Header.Set(echo.HeaderAuthorization, "Bearer "+tt.bearer)
			}
			rec := do(e, req)
			if rec.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d", rec.Code, tt.wantStatus)
			}
			if loc := rec.Header().Get(echo.HeaderLocation); loc != "" {
				t.Fatalf("unexpected redirect to %q", loc)
			}
			if body := decodeEnvelope(t, rec); body.Success || body.Message != tt.wantMsg {
				t.Fatalf("body = %+v", body)
			}
		})
	}

	req := httptest.NewRequest(http.MethodGet, "/api/uploads/venue_gps_trace", nil)
	req.Header.Set(echo.HeaderAuthorization, "Bearer member")
	if rec := do(e, req); rec.Code != http.StatusOK {
		t.Fatalf("authorized list status = %d", rec.Code)
	}
}

func TestRouter_AdminGate(t *testing.T) {
	e := newTestRouter(t)

	req := httptest.NewRequest(http.MethodPost, "/api/admin/reset-tokens/prune", nil)
	req.Header.Set(echo.HeaderAuthorization, "Bearer member")
	rec := do(e, req)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("api status = %d, want 403", rec.Code)
	}
	if body := decodeEnvelope(t, rec); body.Message != domain.MsgAdminRequired {
		t.Fatalf("api body = %+v", body)
	}

	req = httptest.NewRequest(http.MethodGet, "/create_user", nil)
	req.AddCookie(&http.Cookie{Name: auth.AccessCookie, Value: "member"})
	rec = do(e, req)
	if rec.Code != http.StatusForbidden || !strings.Contains(rec.Body.String(), domain.MsgAdminRequired) {
		t.Fatalf("browser status %d body %q", rec.Code, rec.Body.String())
	}

	req = httptest.NewRequest(http.MethodGet, "/create_user", nil)
	req.AddCookie(&http.Cookie{Name: auth.AccessCookie, Value: "admin"})
	if rec := do(e, req); rec.Code != http.StatusOK {
		t.Fatalf("admin status = %d", rec.Code)
	}
}

func TestRouter_CookiePostNeedsCSRF(t *testing.T) {
	e := newTestRouter(t)

	req := httptest.NewRequest(http.MethodPatch, "/api/account", strings.NewReader(`{"email":"new@example.com"}`))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	req.AddCookie(&http.Cookie{Name: auth.AccessCookie, Value: "member"})
	rec := do(e, req)
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("status without csrf = %d, want 422", rec.Code)
	}

	req = httptest.NewRequest(http.MethodDelete, "/api/uploads/venue_gps_trace/a.gpx", nil)
	req.AddCookie(&http.Cookie{Name: auth.AccessCookie, Value: "admin"})
	rec = do(e, req)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("admin route without csrf = %d, want 401", rec.Code)
	}
}

func TestRouter_RateLimitedLogin(t *testing.T) {
	e := newTestRouter(t, func(d *Deps) {
		d.Limiter = denyAll{}
		d.LoginRateLimit = 5
		d.LoginRateWindow = time.Minute
	})

	req := httptest.NewRequest(http.MethodPost, "/api/auth/login", strings.NewReader(`{"email":"ada@example.com","password":"x"}`))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := do(e, req)
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("status = %d, want 429", rec.Code)
	}
	if rec.Header().Get("Retry-After") == "" {
		t.Fatalf("Retry-After missing")
	}
}

func TestRouter_OperationalEndpoints(t *testing.T) {
	e := newTestRouter(t)

	if rec := do(e, httptest.NewRequest(http.MethodGet, "/health", nil)); rec.Code != http.StatusOK {
		t.Fatalf("/health = %d", rec.Code)
	}
	if rec := do(e, httptest.NewRequest(http.MethodGet, "/health/ready", nil)); rec.Code != http.StatusOK {
		t.Fatalf("/health/ready = %d", rec.Code)
	}

	do(e, httptest.NewRequest(http.MethodGet, "/api/auth/session-valid", nil))
	rec := do(e, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), "geodonis_http_requests_total") {
		t.Fatalf("/metrics = %d %q", rec.Code, rec.Body.String())
	}

	rec = do(e, httptest.NewRequest(http.MethodGet, "/api/does-not-exist", nil))
	if rec.Code != http.StatusNotFound {
		t.Fatalf("unknown api route = %d", rec.Code)
	}
	if body := decodeEnvelope(t, rec); body.Success {
		t.Fatalf("body = %+v", body)
	}

	if rec := do(e, httptest.NewRequest(http.MethodGet, "/swagger/index.html", nil)); rec.Code != http.StatusNotFound {
		t.Fatalf("swagger served while disabled: %d", rec.Code)
	}
}
