package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/crypto/bcrypt"

	"github.com/geodonis/geodonis-web/internal/core/domain"
)

type stubUserRepo struct {
	users   map[int64]*domain.User
	nextID  int64
	findErr error
}

func newStubUserRepo() *stubUserRepo {
	return &stubUserRepo{users: make(map[int64]*domain.User)}
}

func cloneUser(u *domain.User) *domain.User {
	if u == nil {
		return nil
	}
	clone := *u
	return &clone
}

func (r *stubUserRepo) add(u *domain.User) *domain.User {
	r.nextID++
	u.ID = r.nextID
	if u.Status == "" {
		u.Status = domain.StatusActive
	}
	r.users[u.ID] = cloneUser(u)
	return u
}

func (r *stubUserRepo) FindByID(_ context.Context, id int64) (*domain.User, error) {
	if r.findErr != nil {
		return nil, r.findErr
	}
	if u, ok := r.users[id]; ok {
		return cloneUser(u), nil
	}
	return nil, domain.ErrUserNotFound
}

func (r *stubUserRepo) FindByEmail(_ context.Context, email string) (*domain.User, error) {
	if r.findErr != nil {
		return nil, r.findErr
	}
	for _, u := range r.users {
		if u.Email == email {
			return cloneUser(u), nil
		}
	}
	return nil, domain.ErrUserNotFound
}

func (r *stubUserRepo) FindByUsername(_ context.Context, username string) (*domain.User, error) {
	for _, u := range r.users {
		if u.Username == username {
			return cloneUser(u), nil
		}
	}
	return nil, domain.ErrUserNotFound
}

func (r *stubUserRepo) Create(_ context.Context, user *domain.User) (*domain.User, error) {
	for _, u := range r.users {
		if u.Email == user.Email || u.Username == user.Username {
			return nil, domain.ErrUserExists
		}
	}
	return cloneUser(r.add(cloneUser(user))), nil
}

func (r *stubUserRepo) Update(_ context.Context, user *domain.User) error {
	if _, ok := r.users[user.ID]; !ok {
		return domain.ErrUserNotFound
	}
	for _, u := range r.users {
		if u.ID != user.ID && u.Email == user.Email {
			return domain.ErrUserExists
		}
	}
	r.users[user.ID] = cloneUser(user)
	return nil
}

func mustHash(t *testing.T, password string) string {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	return string(hash)
}

func newTestAuthService(t *testing.T, repo *stubUserRepo, clock *fakeClock) *AuthService {
	t.Helper()
	svc, err := NewAuthService(repo, newTestIssuer(clock), zerolog.Nop())
	if err != nil {
		t.Fatalf("NewAuthService: %v", err)
	}
	return svc
}

func TestAuthService_Login_Success(t *testing.T) {
	repo := newStubUserRepo()
	repo.add(&domain.User{Email: "carol@example.com", Username: "carol", PasswordHash: mustHash(t, "s3cret-pass"), IsSuperUser: true})
	clock := &fakeClock{t: time.Now()}
	svc := newTestAuthService(t, repo, clock)

	res, err := svc.Login(context.Background(), "Carol@Example.com ", "s3cret-pass")
	if err != nil {
		t.Fatalf("login failed: %v", err)
	}
	if res.User.Username != "carol" {
		t.Fatalf("unexpected user: %+v", res.User)
	}

	issuer := newTestIssuer(clock)
	access, err := issuer.Validate(res.Access.Raw, domain.TokenAccess)
	if err != nil {
		t.Fatalf("access token invalid: %v", err)
	}
	if !access.Fresh || !access.IsSuperUser {
		t.Fatalf("expected fresh admin access token, got %+v", access)
	}
	if _, err := issuer.Validate(res.Refresh.Raw, domain.TokenRefresh); err != nil {
		t.Fatalf("refresh token invalid: %v", err)
	}
}

func TestAuthService_Login_FailuresAreIndistinguishable(t *testing.T) {
	repo := newStubUserRepo()
	repo.add(&domain.User{Email: "dave@example.com", Username: "dave", PasswordHash: mustHash(t, "goodpass1")})
	repo.add(&domain.User{Email: "new@example.com", Username: "new", PasswordHash: domain.UnusablePasswordHash})
	repo.add(&domain.User{Email: "gone@example.com", Username: "gone", PasswordHash: mustHash(t, "goodpass1"), Status: domain.StatusSuspended})
	svc := newTestAuthService(t, repo, &fakeClock{t: time.Now()})

	cases := []struct {
		name     string
		email    string
		password string
	}{
		{"wrong password", "dave@example.com", "badpass11"},
		{"unknown email", "ghost@example.com", "goodpass1"},
		{"placeholder hash", "new@example.com", domain.UnusablePasswordHash},
		{"suspended", "gone@example.com", "goodpass1"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			res, err := svc.Login(context.Background(), tc.email, tc.password)
			if err != domain.ErrInvalidCredentials {
				t.Fatalf("expected ErrInvalidCredentials, got %v", err)
			}
			if res != nil {
				t.Fatalf("expected no result, got %+v", res)
			}
		})
	}
}

func TestAuthService_Login_StoreFailure(t *testing.T) {
	repo := newStubUserRepo()
	repo.findErr = errors.New("connection reset")
	svc := newTestAuthService(t, repo, &fakeClock{t: time.Now()})

	_, err := svc.Login(context.Background(), "a@example.com", "whatever1")
	if err == nil || errors.Is(err, domain.ErrInvalidCredentials) {
		t.Fatalf("expected wrapped store error, got %v", err)
	}
}

func TestAuthService_Refresh_RederivesAdminClaim(t *testing.T) {
	repo := newStubUserRepo()
	admin := repo.add(&domain.User{Email: "root@example.com", Username: "root", PasswordHash: mustHash(t, "rootpass1"), IsSuperUser: true})
	clock := &fakeClock{t: time.Now()}
	svc := newTestAuthService(t, repo, clock)

	login, err := svc.Login(context.Background(), "root@example.com", "rootpass1")
	if err != nil {
		t.Fatalf("login failed: %v", err)
	}

	// Demote after login.
	repo.users[admin.ID].IsSuperUser = false
	clock.Advance(20 * time.Minute)

	res, err := svc.Refresh(context.Background(), login.Refresh.Raw)
	if err != nil {
		t.Fatalf("refresh failed: %v", err)
	}
	claims, err := newTestIssuer(clock).Validate(res.Access.Raw, domain.TokenAccess)
	if err != nil {
		t.Fatalf("new access token invalid: %v", err)
	}
	if claims.IsSuperUser {
		t.Fatalf("refreshed token kept a revoked admin claim")
	}
	if claims.Fresh {
		t.Fatalf("refreshed token must not be fresh")
	}
}

func TestAuthService_Refresh_RejectsAccessTokenAndExpiry(t *testing.T) {
	repo := newStubUserRepo()
	repo.add(&domain.User{Email: "eve@example.com", Username: "eve", PasswordHash: mustHash(t, "evepass12")})
	clock := &fakeClock{t: time.Now()}
	svc := newTestAuthService(t, repo, clock)

	login, _ := svc.Login(context.Background(), "eve@example.com", "evepass12")
	if _, err := svc.Refresh(context.Background(), login.Access.Raw); err != domain.ErrTokenInvalid {
		t.Fatalf("expected ErrTokenInvalid for access token, got %v", err)
	}

	clock.Advance(31 * 24 * time.Hour)
	if _, err := svc.Refresh(context.Background(), login.Refresh.Raw); err != domain.ErrTokenExpired {
		t.Fatalf("expected ErrTokenExpired, got %v", err)
	}
}

func TestAuthService_Authenticate(t *testing.T) {
	repo := newStubUserRepo()
	u := repo.add(&domain.User{Email: "fay@example.com", Username: "fay", PasswordHash: mustHash(t, "faypass12")})
	clock := &fakeClock{t: time.Now()}
	svc := newTestAuthService(t, repo, clock)

	login, _ := svc.Login(context.Background(), "fay@example.com", "faypass12")
	user, claims, err := svc.Authenticate(context.Background(), login.Access.Raw)
	if err != nil {
		t.Fatalf("authenticate: %v", err)
	}
	if user.ID != u.ID || claims.UserID != u.ID {
		t.Fatalf("unexpected identity: %+v %+v", user, claims)
	}

	repo.users[u.ID].Status = domain.StatusDeleted
	if _, _, err := svc.Authenticate(context.Background(), login.Access.Raw); err != domain.ErrTokenInvalid {
		t.Fatalf("expected ErrTokenInvalid for deleted user, got %v", err)
	}

	delete(repo.users, u.ID)
	if _, _, err := svc.Authenticate(context.Background(), login.Access.Raw); err != domain.ErrTokenInvalid {
		t.Fatalf("expected ErrTokenInvalid for missing user, got %v", err)
	}
}
