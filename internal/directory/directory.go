// Package directory is the user/account lookup consumed by the authorization
// gate. The spine only needs one narrow operation — "which account does this
// identifier belong to" — but the process has to run standalone, so the
// package ships three backends: config-seeded memory, sqlite, and Postgres.
package directory

import (
	"context"
	"strings"
)

// Identity is one account record. Each account has a personal phone/email
// pair and an optional boss-facing alias pair; both pairs route to the same
// principal.
type Identity struct {
	Name      string `json:"name"`
	Username  string `json:"username"`
	Phone     string `json:"phone"`
	BossPhone string `json:"boss_phone"`
	Email     string `json:"email"`
	BossEmail string `json:"boss_email"`

	// BossContext is set by the resolver when the lookup matched the boss
	// alias rather than the personal identifier. Not persisted.
	BossContext bool `json:"-"`
}

// Store looks up accounts by a normalized identifier (username, phone, or
// email, personal or boss alias). A miss is (nil, nil), not an error.
type Store interface {
	Lookup(ctx context.Context, identifier string) (*Identity, error)
	Close() error
}

// NormalizeIdentifier canonicalizes an identifier before lookup: phone-like
// values are stripped to digits (keeping a leading +), everything else is
// case-folded and trimmed.
func NormalizeIdentifier(id string) string {
	id = strings.TrimSpace(id)
	if id == "" {
		return ""
	}
	if looksLikePhone(id) {
		return NormalizePhone(id)
	}
	return strings.ToLower(id)
}

// NormalizePhone strips formatting from a phone number: "+1 (555) 123-4567"
// becomes "+15551234567".
func NormalizePhone(phone string) string {
	var b strings.Builder
	for i, r := range phone {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		} else if r == '+' && i == 0 {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// looksLikePhone reports whether the identifier is mostly dial characters
// and carries no letters or @.
func looksLikePhone(id string) bool {
	digits := 0
	for _, r := range id {
		switch {
		case r >= '0' && r <= '9':
			digits++
		case r == '+' || r == '-' || r == '(' || r == ')' || r == ' ' || r == '.':
		default:
			return false
		}
	}
	return digits >= 7
}

// Normalized returns a copy of id with all lookup fields canonicalized.
// Backends store records in this form so lookups are a plain equality match.
func (id Identity) Normalized() Identity {
	id.Username = strings.ToLower(strings.TrimSpace(id.Username))
	id.Email = strings.ToLower(strings.TrimSpace(id.Email))
	id.BossEmail = strings.ToLower(strings.TrimSpace(id.BossEmail))
	id.Phone = NormalizePhone(id.Phone)
	id.BossPhone = NormalizePhone(id.BossPhone)
	return id
}

// Matches reports whether a normalized identifier belongs to this identity,
// via any personal or boss field.
func (id Identity) Matches(norm string) bool {
	if norm == "" {
		return false
	}
	n := id.Normalized()
	return norm == n.Username || norm == n.Phone || norm == n.BossPhone ||
		norm == n.Email || norm == n.BossEmail
}

// IsBossAlias reports whether a normalized identifier matched through the
// boss-facing phone or email rather than the personal one.
func (id Identity) IsBossAlias(norm string) bool {
	n := id.Normalized()
	return norm != "" && (norm == n.BossPhone || norm == n.BossEmail)
}
