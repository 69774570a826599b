// Package identity resolves sender/recipient identifiers against the
// directory and enforces the per-channel authorization policy.
package identity

import (
	"context"
	"fmt"

	"github.com/nextlevelbuilder/switchboard/internal/directory"
	"github.com/nextlevelbuilder/switchboard/internal/message"
)

// RejectReason classifies an expected authorization rejection. These are
// policy outcomes, not errors; infrastructure failures are returned
// separately.
type RejectReason string

const (
	RejectNone             RejectReason = ""
	RejectUnknownSender    RejectReason = "unknown_sender"
	RejectUnknownRecipient RejectReason = "unknown_recipient"
	RejectAccountMismatch  RejectReason = "account_mismatch"
	RejectUnknownChannel   RejectReason = "unknown_channel"
	// RejectUnsupportedChannel marks channels the system knows about but
	// does not route yet, so callers can tell "come back later" apart from
	// a malformed channel value.
	RejectUnsupportedChannel RejectReason = "unsupported_channel"
)

// Resolver wraps the directory with identifier normalization and the
// boss-alias pairing rules.
type Resolver struct {
	dir directory.Store
}

// NewResolver builds a Resolver over the given directory.
func NewResolver(dir directory.Store) *Resolver {
	return &Resolver{dir: dir}
}

// FindUserByIdentifier normalizes an identifier and looks it up.
// BossContext is set on the result when the match came through the
// boss-facing alias. A miss is (nil, nil).
func (r *Resolver) FindUserByIdentifier(ctx context.Context, id string) (*directory.Identity, error) {
	norm := directory.NormalizeIdentifier(id)
	if norm == "" {
		return nil, nil
	}

	u, err := r.dir.Lookup(ctx, norm)
	if err != nil {
		return nil, fmt.Errorf("identity: lookup %q: %w", norm, err)
	}
	if u == nil {
		return nil, nil
	}
	u.BossContext = u.IsBossAlias(norm)
	return u, nil
}

// Authorize applies the channel-dependent policy to a normalized message.
//
// cli/api trust the upstream session boundary: any resolvable sender is
// authorized. sms/email require both sender and recipient to resolve AND to
// belong to the same underlying account, so one account's alias can never
// reach another account's boss number or address.
//
// The returned error is for directory failures only; every expected
// rejection comes back as a RejectReason with a nil identity.
func (r *Resolver) Authorize(ctx context.Context, msg message.UnifiedMessage) (*directory.Identity, RejectReason, error) {
	switch msg.Channel {
	case message.ChannelCLI, message.ChannelAPI:
		from, err := r.FindUserByIdentifier(ctx, msg.From)
		if err != nil {
			return nil, RejectNone, err
		}
		if from == nil {
			return nil, RejectUnknownSender, nil
		}
		return from, RejectNone, nil

	case message.ChannelSMS, message.ChannelEmail:
		from, err := r.FindUserByIdentifier(ctx, msg.From)
		if err != nil {
			return nil, RejectNone, err
		}
		if from == nil {
			return nil, RejectUnknownSender, nil
		}
		to, err := r.FindUserByIdentifier(ctx, msg.To)
		if err != nil {
			return nil, RejectNone, err
		}
		if to == nil {
			return nil, RejectUnknownRecipient, nil
		}
		// Same underlying account: the personal identity and its boss alias
		// share one email on the directory record.
		if from.Email != to.Email {
			return nil, RejectAccountMismatch, nil
		}
		return from, RejectNone, nil

	case message.ChannelVoice:
		return nil, RejectUnsupportedChannel, nil

	default:
		return nil, RejectUnknownChannel, nil
	}
}
