package auth

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"studymate/internal/config"
	"studymate/internal/storage"
)

func openTestDB(t *testing.T) *sql.DB {
	t.Helper()
	cfg := &config.Config{
		Databases: map[string]config.DatabaseConfig{
			"sqlite3": {
				DSN: ":memory:",
			},
		},
	}
	db, err := storage.Open("sqlite3", cfg)
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := storage.Migrate(db, "sqlite3"); err != nil {
		t.Fatalf("migrate db: %v", err)
	}
	return db
}

func TestRegisterAndLogin(t *testing.T) {
	db := openTestDB(t)
	defer db.Close()
	svc := NewService(db, nil, time.Hour)
	ctx := context.Background()

	user, err := svc.Register(ctx, "student", "secret")
	if err != nil {
		t.Fatalf("Register error: %v", err)
	}
	if user.ID <= 0 || user.Username != "student" {
		t.Fatalf("unexpected user: %+v", user)
	}

	if _, err := svc.Register(ctx, "student", "other"); err == nil {
		t.Fatalf("expected duplicate username error")
	}

	got, err := svc.Login(ctx, "student", "secret")
	if err != nil || got.ID != user.ID {
		t.Fatalf("Login failed: user=%+v err=%v", got, err)
	}
	if _, err := svc.Login(ctx, "student", "wrong"); err == nil {
		t.Fatalf("expected error for wrong password")
	}
	if _, err := svc.Login(ctx, "nobody", "secret"); err == nil {
		t.Fatalf("expected error for unknown user")
	}
}

func TestIssueValidateRevokeToken(t *testing.T) {
	db := openTestDB(t)
	defer db.Close()
	svc := NewService(db, nil, time.Hour)
	ctx := context.Background()

	user, err := svc.Register(ctx, "student", "secret")
	if err != nil {
		t.Fatalf("Register error: %v", err)
	}
	token, err := svc.IssueToken(ctx, user.ID)
	if err != nil || token == "" {
		t.Fatalf("IssueToken failed: token=%q err=%v", token, err)
	}
	userID, err := svc.ValidateToken(ctx, token)
	if err != nil || userID != user.ID {
		t.Fatalf("ValidateToken failed: id=%d err=%v", userID, err)
	}
	if err := svc.RevokeToken(ctx, token); err != nil {
		t.Fatalf("RevokeToken error: %v", err)
	}
	if _, err := svc.ValidateToken(ctx, token); err == nil {
		t.Fatalf("expected error after revoke")
	}
}

func TestValidateExpiredToken(t *testing.T) {
	db := openTestDB(t)
	defer db.Close()
	svc := NewService(db, nil, 10*time.Millisecond)
	ctx := context.Background()

	user, err := svc.Register(ctx, "student", "secret")
	if err != nil {
		t.Fatalf("Register error: %v", err)
	}
	token, err := svc.IssueToken(ctx, user.ID)
	if err != nil {
		t.Fatalf("IssueToken error: %v", err)
	}
	time.Sleep(20 * time.Millisecond)
	if _, err := svc.ValidateToken(ctx, token); err == nil {
		t.Fatalf("expected expiration error")
	}
	// expired token is purged
	var count int
	if err := db.QueryRow(`SELECT COUNT(*) FROM user_tokens WHERE token = ?`, token).Scan(&count); err != nil {
		t.Fatalf("query tokens: %v", err)
	}
	if count != 0 {
		t.Fatalf("expired token not purged")
	}
}
