package api

import (
	"context"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/crypto/bcrypt"

	"github.com/geodonis/geodonis-web/internal/core/domain"
	"github.com/geodonis/geodonis-web/internal/core/service"
)

// memUsers is a single-account ports.UserRepository.
type memUsers struct{ user *domain.User }

func (m memUsers) FindByID(_ context.Context, id int64) (*domain.User, error) {
	if id == m.user.ID {
		clone := *m.user
		return &clone, nil
	}
	return nil, domain.ErrUserNotFound
}

func (m memUsers) FindByEmail(_ context.Context, email string) (*domain.User, error) {
	if email == m.user.Email {
		clone := *m.user
		return &clone, nil
	}
	return nil, domain.ErrUserNotFound
}

func (m memUsers) FindByUsername(context.Context, string) (*domain.User, error) {
	return nil, domain.ErrUserNotFound
}

func (m memUsers) Create(context.Context, *domain.User) (*domain.User, error) {
	return nil, domain.ErrUserExists
}

func (m memUsers) Update(context.Context, *domain.User) error { return nil }

// shiftedClock is real time plus an adjustable offset.
type shiftedClock struct {
	mu     sync.Mutex
	offset time.Duration
}

func (c *shiftedClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return time.Now().Add(c.offset)
}

func (c *shiftedClock) set(d time.Duration) {
	c.mu.Lock()
	c.offset = d
	c.mu.Unlock()
}

// A browser holding cookies in a real jar must keep sending an expired access
// token, get bounced through refresh-and-retry, and land back on its page.
func TestRouter_BrowserCookieJarSurvivesAccessExpiry(t *testing.T) {
	hash, err := bcrypt.GenerateFromPassword([]byte("correct horse"), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	users := memUsers{user: &domain.User{ID: 5, Username: "ada", Email: "ada@example.com", PasswordHash: string(hash), Status: domain.StatusActive}}

	// Tokens are minted an hour in the past, so an Expires attribute taken
	// from the token would already be stale in the jar.
	clock := &shiftedClock{offset: -time.Hour}
	issuer := service.NewTokenIssuer("test-secret", 15*time.Minute, 720*time.Hour).WithClock(clock.Now)
	authService, err := service.NewAuthService(users, issuer, zerolog.Nop())
	if err != nil {
		t.Fatalf("NewAuthService: %v", err)
	}

	srv := httptest.NewServer(newTestRouter(t, func(d *Deps) { d.AuthService = authService }))
	defer srv.Close()

	jar, err := cookiejar.New(nil)
	if err != nil {
		t.Fatalf("cookiejar: %v", err)
	}
	var hops []string
	client := &http.Client{
		Jar: jar,
		CheckRedirect: func(req *http.Request, _ []*http.Request) error {
			hops = append(hops, req.URL.RequestURI())
			return nil
		},
	}

	resp, err := client.Post(srv.URL+"/api/auth/login", "application/json",
		strings.NewReader(`{"email":"ada@example.com","password":"correct horse"}`))
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("login status = %d", resp.StatusCode)
	}

	resp, err = client.Get(srv.URL + "/edit_account")
	if err != nil {
		t.Fatalf("fresh visit: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK || len(hops) != 0 {
		t.Fatalf("fresh visit status %d via %v", resp.StatusCode, hops)
	}

	// Move past the access expiry; the refresh token is still valid.
	clock.set(0)

	resp, err = client.Get(srv.URL + "/edit_account")
	if err != nil {
		t.Fatalf("expired visit: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expired visit ended with %d via %v", resp.StatusCode, hops)
	}
	want := []string{"/api/auth/refresh/retry?next=%2Fedit_account", "/edit_account"}
	if len(hops) != len(want) || hops[0] != want[0] || hops[1] != want[1] {
		t.Fatalf("redirects = %v, want %v", hops, want)
	}
}
