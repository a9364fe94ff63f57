// Package storetest opens throwaway in-memory databases for tests.
package storetest

import (
	"context"
	"testing"

	"heartbridge-api/config"
	"heartbridge-api/models"
	"heartbridge-api/store"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// New returns a GormStore on a fresh in-memory sqlite database, closed at test cleanup.
func New(t testing.TB) (*store.GormStore, *gorm.DB) {
	t.Helper()
	dsn := "file:" + uuid.NewString() + "?mode=memory&cache=shared"
	db, err := config.OpenDB(config.DatabaseConfig{Driver: "sqlite", DSN: dsn, LogLevel: "silent"})
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	t.Cleanup(func() {
		if err := config.CloseDB(db); err != nil {
			t.Errorf("close test db: %v", err)
		}
	})
	return store.New(db), db
}

// SeedUser inserts an active user with the given role.
func SeedUser(t testing.TB, s store.AccountStore, name string, role models.UserRole) *models.User {
	t.Helper()
	u := &models.User{
		Name:         name,
		Email:        uuid.NewString()[:8] + "@heartbridge.test",
		PasswordHash: "x",
		Role:         role,
		Phone:        "5551234567",
		Location:     "Springfield",
		Age:          70,
	}
	if err := s.CreateUser(context.Background(), u); err != nil {
		t.Fatalf("seed user %s: %v", name, err)
	}
	return u
}
