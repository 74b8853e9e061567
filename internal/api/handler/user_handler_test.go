package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/geodonis/geodonis-web/internal/core/auth"
	"github.com/geodonis/geodonis-web/internal/core/domain"
	"github.com/geodonis/geodonis-web/internal/core/ports"
)

type stubUserService struct {
	createFn   func(ctx context.Context, baseURL, email, username string) (*domain.User, *domain.ResetLink, error)
	initiateFn func(ctx context.Context, baseURL, email string) (*domain.ResetLink, error)
	checkFn    func(ctx context.Context, token string) (*domain.PasswordResetToken, error)
	completeFn func(ctx context.Context, token, password string) error
	editFn     func(ctx context.Context, in ports.EditAccountInput) (*domain.User, error)
	pruneFn    func(ctx context.Context) (int64, error)
}

func (s *stubUserService) CreateUser(ctx context.Context, baseURL, email, username string) (*domain.User, *domain.ResetLink, error) {
	return s.createFn(ctx, baseURL, email, username)
}

func (s *stubUserService) CreateSuperUser(ctx context.Context, baseURL, email, username string) (*domain.User, *domain.ResetLink, error) {
	return s.createFn(ctx, baseURL, email, username)
}

func (s *stubUserService) InitiateReset(ctx context.Context, baseURL, email string) (*domain.ResetLink, error) {
	return s.initiateFn(ctx, baseURL, email)
}

func (s *stubUserService) CheckResetToken(ctx context.Context, token string) (*domain.PasswordResetToken, error) {
	return s.checkFn(ctx, token)
}

func (s *stubUserService) CompleteReset(ctx context.Context, token, password string) error {
	return s.completeFn(ctx, token, password)
}

func (s *stubUserService) EditAccount(ctx context.Context, in ports.EditAccountInput) (*domain.User, error) {
	return s.editFn(ctx, in)
}

func (s *stubUserService) PruneResetTokens(ctx context.Context) (int64, error) {
	return s.pruneFn(ctx)
}

func TestUserHandler_Create(t *testing.T) {
	user := &domain.User{ID: 12, Username: "grace", Email: "grace@example.com", Status: domain.StatusActive}

	t.Run("success uses request origin", func(t *testing.T) {
		stub := &stubUserService{
			createFn: func(_ context.Context, baseURL, email, username string) (*domain.User, *domain.ResetLink, error) {
				if baseURL != "http://example.com" {
					t.Fatalf("baseURL = %q", baseURL)
				}
				if email != "grace@example.com" || username != "grace" {
					t.Fatalf("unexpected args: %s %s", email, username)
				}
				return user, &domain.ResetLink{URL: baseURL + "/reset_password/tok", Token: "tok"}, nil
			},
		}
		h := NewUserHandler(stub, "", zerolog.Nop())
		rec := httptest.NewRecorder()
		c := newEcho().NewContext(jsonRequest(http.MethodPost, "/api/users", `{"email":"grace@example.com","username":"grace"}`), rec)

		if err := h.Create(c); err != nil {
			t.Fatalf("Create: %v", err)
		}
		if rec.Code != http.StatusCreated {
			t.Fatalf("status = %d, want 201", rec.Code)
		}
		var resp map[string]any
		if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
			t.Fatalf("invalid json: %v", err)
		}
		link, _ := resp["reset_link"].(map[string]any)
		if link["url"] != "http://example.com/reset_password/tok" {
			t.Fatalf("reset_link = %+v", resp["reset_link"])
		}
		if _, leaked := link["token"]; leaked {
			t.Fatalf("raw token serialized: %+v", link)
		}
	})

	t.Run("public base url override", func(t *testing.T) {
		stub := &stubUserService{
			createFn: func(_ context.Context, baseURL, _, _ string) (*domain.User, *domain.ResetLink, error) {
				if baseURL != "https://geodonis.example" {
					t.Fatalf("baseURL = %q", baseURL)
				}
				return user, &domain.ResetLink{URL: baseURL + "/reset_password/tok"}, nil
			},
		}
		h := NewUserHandler(stub, "https://geodonis.example/", zerolog.Nop())
		c := newEcho().NewContext(jsonRequest(http.MethodPost, "/api/users", `{"email":"grace@example.com","username":"grace"}`), httptest.NewRecorder())
		if err := h.Create(c); err != nil {
			t.Fatalf("Create: %v", err)
		}
	})

	t.Run("link failure keeps the user", func(t *testing.T) {
		stub := &stubUserService{
			createFn: func(context.Context, string, string, string) (*domain.User, *domain.ResetLink, error) {
				return user, nil, domain.ErrResetLinkFailed
			},
		}
		h := NewUserHandler(stub, "", zerolog.Nop())
		rec := httptest.NewRecorder()
		c := newEcho().NewContext(jsonRequest(http.MethodPost, "/api/users", `{"email":"grace@example.com","username":"grace"}`), rec)

		if err := h.Create(c); err != nil {
			t.Fatalf("Create: %v", err)
		}
		if rec.Code != http.StatusInternalServerError {
			t.Fatalf("status = %d, want 500", rec.Code)
		}
		var resp createUserResponse
		if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
			t.Fatalf("invalid json: %v", err)
		}
		if resp.Success || resp.User == nil || resp.User.ID != 12 || resp.ResetLink != nil {
			t.Fatalf("unexpected body: %+v", resp)
		}
	})

	t.Run("conflict is passed through", func(t *testing.T) {
		stub := &stubUserService{
			createFn: func(context.Context, string, string, string) (*domain.User, *domain.ResetLink, error) {
				return nil, nil, &domain.FieldConflictError{Field: "email"}
			},
		}
		h := NewUserHandler(stub, "", zerolog.Nop())
		c := newEcho().NewContext(jsonRequest(http.MethodPost, "/api/users", `{"email":"grace@example.com","username":"grace"}`), httptest.NewRecorder())
		var conflict *domain.FieldConflictError
		if err := h.Create(c); !errors.As(err, &conflict) || conflict.Field != "email" {
			t.Fatalf("err = %v, want email conflict", err)
		}
	})

	t.Run("missing username", func(t *testing.T) {
		h := NewUserHandler(&stubUserService{}, "", zerolog.Nop())
		c := newEcho().NewContext(jsonRequest(http.MethodPost, "/api/users", `{"email":"grace@example.com"}`), httptest.NewRecorder())
		var ce *domain.ClientError
		if err := h.Create(c); !errors.As(err, &ce) || ce.Msg != "Username is required." {
			t.Fatalf("err = %v", err)
		}
	})
}

func TestUserHandler_InitiateReset_SameShapeForUnknownEmail(t *testing.T) {
	stub := &stubUserService{
		initiateFn: func(_ context.Context, baseURL, email string) (*domain.ResetLink, error) {
			if email == "known@example.com" {
				return &domain.ResetLink{URL: baseURL + "/reset_password/abc"}, nil
			}
			return nil, nil
		},
	}
	h := NewUserHandler(stub, "", zerolog.Nop())

	for _, email := range []string{"known@example.com", "unknown@example.com"} {
		rec := httptest.NewRecorder()
		c := newEcho().NewContext(jsonRequest(http.MethodPost, "/api/users/reset", `{"email":"`+email+`"}`), rec)
		if err := h.InitiateReset(c); err != nil {
			t.Fatalf("%s: %v", email, err)
		}
		if rec.Code != http.StatusOK {
			t.Fatalf("%s: status = %d", email, rec.Code)
		}
		var resp resetLinkResponse
		if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
			t.Fatalf("invalid json: %v", err)
		}
		if !resp.Success || resp.Message != "If the account exists a reset link was generated." {
			t.Fatalf("%s: %+v", email, resp)
		}
	}
}

func TestUserHandler_CompleteReset(t *testing.T) {
	var gotToken, gotPassword string
	stub := &stubUserService{
		completeFn: func(_ context.Context, token, password string) error {
			if token == "used" {
				return domain.ErrResetTokenInvalid
			}
			gotToken, gotPassword = token, password
			return nil
		},
	}
	h := NewUserHandler(stub, "", zerolog.Nop())
	e := newEcho()

	call := func(token, body string) (*httptest.ResponseRecorder, error) {
		rec := httptest.NewRecorder()
		c := e.NewContext(jsonRequest(http.MethodPost, "/api/users/reset/"+token, body), rec)
		c.SetParamNames("token")
		c.SetParamValues(token)
		return rec, h.CompleteReset(c)
	}

	rec, err := call("fresh", `{"password":"longenough","password2":"longenough"}`)
	if err != nil {
		t.Fatalf("CompleteReset: %v", err)
	}
	if rec.Code != http.StatusOK || gotToken != "fresh" || gotPassword != "longenough" {
		t.Fatalf("status %d token %q password %q", rec.Code, gotToken, gotPassword)
	}

	if _, err := call("used", `{"password":"longenough","password2":"longenough"}`); !errors.Is(err, domain.ErrResetTokenInvalid) {
		t.Fatalf("err = %v, want ErrResetTokenInvalid", err)
	}

	var ce *domain.ClientError
	if _, err := call("fresh", `{"password":"longenough","password2":"different"}`); !errors.As(err, &ce) || ce.Msg != "Passwords must match." {
		t.Fatalf("mismatch err = %v", err)
	}
	if _, err := call("fresh", `{"password":"short","password2":"short"}`); !errors.As(err, &ce) || ce.Msg != "Password must be at least 8 characters long." {
		t.Fatalf("short err = %v", err)
	}
}

func TestUserHandler_EditAccount_UsesCallerID(t *testing.T) {
	caller := &domain.User{ID: 44, Email: "old@example.com"}
	stub := &stubUserService{
		editFn: func(_ context.Context, in ports.EditAccountInput) (*domain.User, error) {
			if in.UserID != caller.ID || in.Email != "new@example.com" || in.Password != "" {
				t.Fatalf("unexpected input: %+v", in)
			}
			return &domain.User{ID: in.UserID, Email: in.Email}, nil
		},
	}
	h := NewUserHandler(stub, "", zerolog.Nop())

	req := withIdentity(jsonRequest(http.MethodPatch, "/api/account", `{"email":"new@example.com"}`), caller, false, auth.TransportHeader, time.Now().Add(time.Hour))
	rec := httptest.NewRecorder()
	if err := h.EditAccount(newEcho().NewContext(req, rec)); err != nil {
		t.Fatalf("EditAccount: %v", err)
	}
	var resp accountResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("invalid json: %v", err)
	}
	if resp.User.Email != "new@example.com" {
		t.Fatalf("user = %+v", resp.User)
	}

	anon := newEcho().NewContext(jsonRequest(http.MethodPatch, "/api/account", `{}`), httptest.NewRecorder())
	if err := h.EditAccount(anon); !errors.Is(err, domain.ErrUnauthorized) {
		t.Fatalf("anonymous err = %v", err)
	}
}

func TestUserHandler_PruneResetTokens(t *testing.T) {
	h := NewUserHandler(&stubUserService{
		pruneFn: func(context.Context) (int64, error) { return 3, nil },
	}, "", zerolog.Nop())

	rec := httptest.NewRecorder()
	if err := h.PruneResetTokens(newEcho().NewContext(httptest.NewRequest(http.MethodPost, "/api/admin/reset-tokens/prune", nil), rec)); err != nil {
		t.Fatalf("PruneResetTokens: %v", err)
	}
	var resp pruneResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("invalid json: %v", err)
	}
	if resp.Deleted != 3 {
		t.Fatalf("deleted = %d", resp.Deleted)
	}
}
