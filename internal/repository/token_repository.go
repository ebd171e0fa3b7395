package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/iliyamo/tradeflow/internal/model"
)

// TokenRepo persists/validates refresh tokens (single 'token_hash' column).
// Rows are never deleted so revocations stay auditable.
type TokenRepo struct{ db *gorm.DB }

func NewTokenRepo(db *gorm.DB) *TokenRepo { return &TokenRepo{db: db} }

// StoreRefresh inserts a refresh token hash row.
func (r *TokenRepo) StoreRefresh(ctx context.Context, userID, tokenHash string, exp time.Time) error {
	row := &model.RefreshToken{
		ID:        uuid.NewString(),
		UserID:    userID,
		TokenHash: tokenHash,
		ExpiresAt: exp,
	}
	return translate("store refresh token", r.db.WithContext(ctx).Create(row).Error)
}

// GetByHash returns the token row, revoked or not.
func (r *TokenRepo) GetByHash(ctx context.Context, tokenHash string) (*model.RefreshToken, error) {
	var t model.RefreshToken
	if err := r.db.WithContext(ctx).First(&t, "token_hash = ?", tokenHash).Error; err != nil {
		return nil, translate("get refresh token", err)
	}
	return &t, nil
}

// Consume revokes the token only if it is still unrevoked and unexpired at
// now. Exactly one of several concurrent callers gets nil; the others get
// ErrConflict, including a loser aborted by the store's serialization check.
func (r *TokenRepo) Consume(ctx context.Context, tokenHash string, now time.Time) error {
	res := r.db.WithContext(ctx).Model(&model.RefreshToken{}).
		Where("token_hash = ? AND revoked = ? AND expires_at > ?", tokenHash, false, now).
		Updates(map[string]any{"revoked": true, "revoked_at": now, "updated_at": now})
	if res.Error != nil {
		if isSerializationFailure(res.Error) {
			return ErrConflict
		}
		return translate("consume refresh token", res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrConflict
	}
	return nil
}

// RevokeByHash marks a token as revoked. Unknown or already revoked tokens
// are left alone.
func (r *TokenRepo) RevokeByHash(ctx context.Context, tokenHash string) error {
	now := time.Now().UTC()
	err := r.db.WithContext(ctx).Model(&model.RefreshToken{}).
		Where("token_hash = ? AND revoked = ?", tokenHash, false).
		Updates(map[string]any{"revoked": true, "revoked_at": now, "updated_at": now}).Error
	return translate("revoke refresh token", err)
}

// RevokeAllForUser revokes all user's active tokens.
func (r *TokenRepo) RevokeAllForUser(ctx context.Context, userID string) error {
	now := time.Now().UTC()
	err := r.db.WithContext(ctx).Model(&model.RefreshToken{}).
		Where("user_id = ? AND revoked = ?", userID, false).
		Updates(map[string]any{"revoked": true, "revoked_at": now, "updated_at": now}).Error
	return translate("revoke user refresh tokens", err)
}
