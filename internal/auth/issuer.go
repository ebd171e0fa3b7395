// Package auth hashes and verifies passwords and mints, validates, rotates
// and revokes the access/refresh token pair.
//
// Access tokens are stateless HS256 JWTs. Refresh tokens are opaque random
// strings whose SHA-256 digest is persisted, so they can be revoked; each
// refresh consumes the presented token and issues a new pair.
package auth

import (
	"context"
	"errors"
	"time"

	"github.com/iliyamo/tradeflow/internal/apperr"
	"github.com/iliyamo/tradeflow/internal/model"
	"github.com/iliyamo/tradeflow/internal/repository"
	"github.com/iliyamo/tradeflow/internal/utils"
)

// Options configures an Issuer.
type Options struct {
	Secret     string
	AccessTTL  time.Duration
	RefreshTTL time.Duration
	BcryptCost int
}

// TokenPair is what a successful login, register or refresh returns.
type TokenPair struct {
	AccessToken      string    `json:"access_token"`
	AccessExpiresAt  time.Time `json:"access_expires_at"`
	RefreshToken     string    `json:"refresh_token"`
	RefreshExpiresAt time.Time `json:"refresh_expires_at"`
}

// Claims is the verified content of an access token.
type Claims struct {
	UserID    string
	Role      model.PlatformRole
	IssuedAt  time.Time
	ExpiresAt time.Time
}

type Issuer struct {
	store *repository.Store
	opts  Options
	now   func() time.Time
}

func NewIssuer(store *repository.Store, opts Options) *Issuer {
	if opts.AccessTTL <= 0 {
		opts.AccessTTL = time.Hour
	}
	if opts.RefreshTTL <= 0 {
		opts.RefreshTTL = 30 * 24 * time.Hour
	}
	return &Issuer{store: store, opts: opts, now: func() time.Time { return time.Now().UTC() }}
}

// HashPassword returns a salted bcrypt hash of plain.
func (i *Issuer) HashPassword(plain string) (string, error) {
	const op = "auth.hash_password"
	h, err := utils.HashPassword(plain, i.opts.BcryptCost)
	if errors.Is(err, utils.ErrPasswordTooLong) {
		return "", apperr.InvalidState(op, "password exceeds 72 bytes")
	}
	if err != nil {
		return "", apperr.Infrastructure(op, err)
	}
	return h, nil
}

// VerifyPassword reports whether plain matches hash.
func (i *Issuer) VerifyPassword(plain, hash string) bool {
	return utils.VerifyPassword(hash, plain)
}

// IssueTokenPair signs an access token for u and persists a new refresh
// token through tx. Pass the root store when no transaction is open.
func (i *Issuer) IssueTokenPair(ctx context.Context, tx *repository.Store, u *model.User) (TokenPair, error) {
	const op = "auth.issue"
	if tx == nil {
		tx = i.store
	}
	at, err := utils.NewAccessToken(i.opts.Secret, u.ID, string(u.Role), i.opts.AccessTTL)
	if err != nil {
		return TokenPair{}, apperr.Infrastructure(op, err)
	}
	rt, err := utils.NewRefreshToken(i.opts.RefreshTTL)
	if err != nil {
		return TokenPair{}, apperr.Infrastructure(op, err)
	}
	if err := tx.Tokens.StoreRefresh(ctx, u.ID, utils.HashRefreshRaw(rt.Raw), rt.Exp); err != nil {
		return TokenPair{}, apperr.Infrastructure(op, err)
	}
	return TokenPair{
		AccessToken:      at.Token,
		AccessExpiresAt:  at.Exp,
		RefreshToken:     rt.Raw,
		RefreshExpiresAt: rt.Exp,
	}, nil
}

// RotateRefreshToken consumes the presented refresh token and issues a new
// pair in the same transaction. Unknown, revoked and expired tokens fail
// with InvalidToken; of two concurrent rotations of one token exactly one
// succeeds.
func (i *Issuer) RotateRefreshToken(ctx context.Context, raw string) (TokenPair, *model.User, error) {
	const op = "auth.rotate"
	if raw == "" {
		return TokenPair{}, nil, apperr.InvalidToken(op)
	}
	hash := utils.HashRefreshRaw(raw)

	var (
		pair TokenPair
		user *model.User
	)
	err := i.store.Transaction(ctx, func(tx *repository.Store) error {
		// The conditional revoke comes first so the row lock is taken before
		// anything else is read.
		if err := tx.Tokens.Consume(ctx, hash, i.now()); err != nil {
			if errors.Is(err, repository.ErrConflict) {
				return apperr.InvalidToken(op)
			}
			return apperr.Infrastructure(op, err)
		}
		row, err := tx.Tokens.GetByHash(ctx, hash)
		if err != nil {
			return apperr.Infrastructure(op, err)
		}
		user, err = tx.Users.GetByID(ctx, row.UserID)
		if errors.Is(err, repository.ErrNotFound) {
			return apperr.InvalidToken(op)
		}
		if err != nil {
			return apperr.Infrastructure(op, err)
		}
		pair, err = i.IssueTokenPair(ctx, tx, user)
		return err
	})
	if err != nil {
		return TokenPair{}, nil, asAppErr(op, err)
	}
	return pair, user, nil
}

// Revoke marks the refresh token revoked. Unknown and already revoked
// tokens are not an error.
func (i *Issuer) Revoke(ctx context.Context, raw string) error {
	if raw == "" {
		return nil
	}
	if err := i.store.Tokens.RevokeByHash(ctx, utils.HashRefreshRaw(raw)); err != nil {
		return apperr.Infrastructure("auth.revoke", err)
	}
	return nil
}

// RevokeAll revokes every live refresh token of userID through tx.
func (i *Issuer) RevokeAll(ctx context.Context, tx *repository.Store, userID string) error {
	if tx == nil {
		tx = i.store
	}
	if err := tx.Tokens.RevokeAllForUser(ctx, userID); err != nil {
		return apperr.Infrastructure("auth.revoke_all", err)
	}
	return nil
}

// ValidateAccessToken checks signature and expiry only. The store is not
// consulted, so an access token stays valid until it expires even after
// its refresh token is revoked.
func (i *Issuer) ValidateAccessToken(raw string) (Claims, error) {
	c, err := utils.ParseAccessToken(i.opts.Secret, raw)
	if err != nil {
		return Claims{}, apperr.InvalidToken("auth.validate")
	}
	out := Claims{UserID: c.Subject, Role: model.PlatformRole(c.Role)}
	if c.IssuedAt != nil {
		out.IssuedAt = c.IssuedAt.Time
	}
	if c.ExpiresAt != nil {
		out.ExpiresAt = c.ExpiresAt.Time
	}
	return out, nil
}

// asAppErr keeps typed errors and classifies the rest, such as a failed
// commit or a cancelled context, as infrastructure failures.
func asAppErr(op string, err error) error {
	var ae *apperr.Error
	if errors.As(err, &ae) {
		return ae
	}
	return apperr.Infrastructure(op, err)
}
