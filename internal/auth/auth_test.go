package auth

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"devflow/internal/apperr"
	"devflow/internal/models"
	"devflow/internal/storage/sqlstore"
)

const (
	testSecret        = "access-secret-that-is-at-least-32-chars"
	testRefreshSecret = "refresh-secret-that-is-at-least-32-chars"
)

func newIssuer(t *testing.T, now func() time.Time) *Issuer {
	t.Helper()
	iss, err := NewIssuer(TokenConfig{Secret: testSecret, RefreshSecret: testRefreshSecret, AccessTTL: time.Hour, RefreshTTL: 24 * time.Hour, Now: now})
	if err != nil {
		t.Fatalf("new issuer: %v", err)
	}
	return iss
}

func newService(t *testing.T) *Service {
	t.Helper()
	store, err := sqlstore.Open(sqlstore.DriverSQLite, filepath.Join(t.TempDir(), "auth.db"), sqlstore.Options{}, nil)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return NewService(store, newIssuer(t, nil), nil)
}

func TestPasswordHashing(t *testing.T) {
	hash, err := HashPassword("correct horse")
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	if ok, err := CheckPassword(hash, "correct horse"); err != nil || !ok {
		t.Fatalf("check correct = %v, %v", ok, err)
	}
	if ok, err := CheckPassword(hash, "wrong"); err != nil || ok {
		t.Fatalf("check wrong = %v, %v", ok, err)
	}
}

func TestTokenTypesAreNotInterchangeable(t *testing.T) {
	iss := newIssuer(t, nil)
	pair, err := iss.Issue(models.User{ID: "u1", Email: "a@example.com", Role: models.RoleTeamLead})
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	claims, err := iss.ParseAccess(pair.Token)
	if err != nil {
		t.Fatalf("parse access: %v", err)
	}
	if claims.Subject != "u1" || claims.Role != models.RoleTeamLead || claims.ID == "" || claims.Issuer != "devflow" {
		t.Fatalf("claims = %+v", claims)
	}
	if _, err := iss.ParseAccess(pair.RefreshToken); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("refresh accepted as access: %v", err)
	}
	if _, err := iss.ParseRefresh(pair.Token); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("access accepted as refresh: %v", err)
	}
	if _, err := iss.ParseAccess(pair.Token + "x"); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("tampered token accepted: %v", err)
	}
}

func TestTokenExpiry(t *testing.T) {
	now := time.Now()
	iss := newIssuer(t, func() time.Time { return now })
	pair, err := iss.Issue(models.User{ID: "u1", Role: models.RoleDeveloper})
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	now = now.Add(2 * time.Hour)
	if _, err := iss.ParseAccess(pair.Token); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expired access accepted: %v", err)
	}
	if _, err := iss.ParseRefresh(pair.RefreshToken); err != nil {
		t.Fatalf("refresh should still be valid: %v", err)
	}
}

func TestNewIssuerRejectsSharedSecret(t *testing.T) {
	if _, err := NewIssuer(TokenConfig{Secret: testSecret, RefreshSecret: testSecret}); err == nil {
		t.Fatal("expected error for identical secrets")
	}
	if _, err := NewIssuer(TokenConfig{Secret: testSecret}); err == nil {
		t.Fatal("expected error for missing refresh secret")
	}
}

func TestSignupForcesDeveloperAndRejectsDuplicates(t *testing.T) {
	svc := newService(t)
	ctx := context.Background()

	session, err := svc.Signup(ctx, SignupInput{Email: " New@Example.com ", Password: "password1", Name: "New"})
	if err != nil {
		t.Fatalf("signup: %v", err)
	}
	if session.User.Role != models.RoleDeveloper || session.User.Email != "new@example.com" {
		t.Fatalf("user = %+v", session.User)
	}
	if session.Token == "" || session.RefreshToken == "" {
		t.Fatal("missing tokens")
	}

	_, err = svc.Signup(ctx, SignupInput{Email: "new@example.com", Password: "password2", Name: "Again"})
	if !errors.Is(err, apperr.ErrConflict) {
		t.Fatalf("duplicate signup: %v", err)
	}
}

func TestSignupValidation(t *testing.T) {
	svc := newService(t)
	_, err := svc.Signup(context.Background(), SignupInput{Email: "not-an-email", Password: "short", Name: ""})
	var appErr *apperr.Error
	if !errors.As(err, &appErr) || appErr.Code != apperr.CodeValidation {
		t.Fatalf("err = %v", err)
	}
	for _, field := range []string{"email", "password", "name"} {
		if len(appErr.Details[field]) == 0 {
			t.Errorf("missing details for %s: %+v", field, appErr.Details)
		}
	}
}

func TestLoginRefreshAndMe(t *testing.T) {
	svc := newService(t)
	ctx := context.Background()
	signed, err := svc.Signup(ctx, SignupInput{Email: "dev@example.com", Password: "password1", Name: "Dev"})
	if err != nil {
		t.Fatalf("signup: %v", err)
	}

	for _, tc := range []struct{ email, password string }{
		{"dev@example.com", "wrong-password"},
		{"nobody@example.com", "password1"},
	} {
		_, err := svc.Login(ctx, tc.email, tc.password)
		var appErr *apperr.Error
		if !errors.As(err, &appErr) || appErr.Code != apperr.CodeInvalidCredentials || appErr.Status != 401 {
			t.Fatalf("login(%s) = %v", tc.email, err)
		}
	}

	session, err := svc.Login(ctx, "DEV@example.com", "password1")
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	actor, err := svc.Authenticate(session.Token)
	if err != nil || actor.ID != signed.User.ID || actor.Role != models.RoleDeveloper {
		t.Fatalf("authenticate = %+v, %v", actor, err)
	}
	if _, err := svc.Authenticate(session.RefreshToken); !errors.Is(err, apperr.ErrUnauthorized) {
		t.Fatalf("refresh token used as access: %v", err)
	}

	refreshed, err := svc.Refresh(ctx, session.RefreshToken)
	if err != nil || refreshed.Token == "" {
		t.Fatalf("refresh = %+v, %v", refreshed, err)
	}
	if _, err := svc.Refresh(ctx, "garbage"); !errors.Is(err, apperr.ErrUnauthorized) {
		t.Fatalf("garbage refresh: %v", err)
	}

	me, err := svc.Me(ctx, signed.User.ID)
	if err != nil || me.Email != "dev@example.com" {
		t.Fatalf("me = %+v, %v", me, err)
	}
	if strings.Contains(me.PasswordHash, "password1") {
		t.Fatal("password stored in clear")
	}
}
