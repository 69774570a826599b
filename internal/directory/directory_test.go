package directory

import (
	"context"
	"path/filepath"
	"testing"
)

func TestNormalizePhone(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"+1 (555) 123-4567", "+15551234567"},
		{"555.123.4567", "5551234567"},
		{"+15551234567", "+15551234567"},
		{"", ""},
	}
	for _, tt := range tests {
		if got := NormalizePhone(tt.in); got != tt.want {
			t.Errorf("NormalizePhone(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestNormalizeIdentifier(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"email case folds", "Ada@Example.COM", "ada@example.com"},
		{"username case folds", "  AdaL  ", "adal"},
		{"phone strips formatting", "(555) 123-4567", "5551234567"},
		{"short digit runs are not phones", "ab12", "ab12"},
		{"empty", "", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := NormalizeIdentifier(tt.in); got != tt.want {
				t.Errorf("NormalizeIdentifier(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

var ada = Identity{
	Name:      "Ada Lovelace",
	Username:  "ada",
	Phone:     "+1 (555) 123-4567",
	BossPhone: "+1 (555) 999-0000",
	Email:     "Ada@Example.com",
	BossEmail: "boss-ada@example.com",
}

func TestIdentityMatching(t *testing.T) {
	if !ada.Matches("+15551234567") {
		t.Error("personal phone should match")
	}
	if !ada.Matches("ada@example.com") {
		t.Error("personal email should match")
	}
	if !ada.Matches("+15559990000") {
		t.Error("boss phone should match")
	}
	if ada.Matches("+15550000000") {
		t.Error("unrelated phone should not match")
	}

	if ada.IsBossAlias("+15551234567") {
		t.Error("personal phone is not a boss alias")
	}
	if !ada.IsBossAlias("+15559990000") {
		t.Error("boss phone is a boss alias")
	}
	if !ada.IsBossAlias("boss-ada@example.com") {
		t.Error("boss email is a boss alias")
	}
}

func TestMemoryStoreLookup(t *testing.T) {
	store := NewMemoryStore([]Identity{ada})
	ctx := context.Background()

	t.Run("hit via formatted phone", func(t *testing.T) {
		got, err := store.Lookup(ctx, "+1 (555) 123-4567")
		if err != nil {
			t.Fatalf("Lookup: %v", err)
		}
		if got == nil || got.Username != "ada" {
			t.Fatalf("got %+v", got)
		}
	})

	t.Run("hit via boss email", func(t *testing.T) {
		got, err := store.Lookup(ctx, "Boss-Ada@Example.com")
		if err != nil {
			t.Fatalf("Lookup: %v", err)
		}
		if got == nil || got.Email != "ada@example.com" {
			t.Fatalf("got %+v", got)
		}
	})

	t.Run("miss is nil nil", func(t *testing.T) {
		got, err := store.Lookup(ctx, "nobody@example.com")
		if err != nil || got != nil {
			t.Fatalf("got %+v, %v", got, err)
		}
	})

	t.Run("empty identifier", func(t *testing.T) {
		got, err := store.Lookup(ctx, "   ")
		if err != nil || got != nil {
			t.Fatalf("got %+v, %v", got, err)
		}
	})
}

func TestSQLiteStore(t *testing.T) {
	store, err := NewSQLiteStore(filepath.Join(t.TempDir(), "directory.db"))
	if err != nil {
		t.Fatalf("NewSQLiteStore: %v", err)
	}
	defer store.Close()

	ctx := context.Background()
	if err := store.Upsert(ctx, ada); err != nil {
		t.Fatalf("Upsert: %v", err)
	}

	got, err := store.Lookup(ctx, "ADA")
	if err != nil {
		t.Fatalf("Lookup: %v", err)
	}
	if got == nil || got.Phone != "+15551234567" {
		t.Fatalf("got %+v", got)
	}

	// Upsert replaces by username.
	changed := ada
	changed.Phone = "+1 (555) 222-3333"
	if err := store.Upsert(ctx, changed); err != nil {
		t.Fatalf("Upsert replace: %v", err)
	}
	got, err = store.Lookup(ctx, "+15552223333")
	if err != nil || got == nil {
		t.Fatalf("lookup after replace: %+v, %v", got, err)
	}

	miss, err := store.Lookup(ctx, "ghost")
	if err != nil || miss != nil {
		t.Fatalf("miss: %+v, %v", miss, err)
	}
}

func TestOpenBackendSelection(t *testing.T) {
	if _, err := Open(Options{Backend: "memory"}); err != nil {
		t.Errorf("memory: %v", err)
	}
	if _, err := Open(Options{}); err != nil {
		t.Errorf("default: %v", err)
	}
	if _, err := Open(Options{Backend: "sqlite"}); err == nil {
		t.Error("sqlite without path should error")
	}
	if _, err := Open(Options{Backend: "postgres"}); err == nil {
		t.Error("postgres without DSN should error")
	}
	if _, err := Open(Options{Backend: "etcd"}); err == nil {
		t.Error("unknown backend should error")
	}
}
