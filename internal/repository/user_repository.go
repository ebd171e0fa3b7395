package repository

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/iliyamo/tradeflow/internal/model"
)

type UserRepo struct{ db *gorm.DB }

func NewUserRepo(db *gorm.DB) *UserRepo { return &UserRepo{db: db} }

// NormalizeEmail trims and lower-cases an address before storage or lookup.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// Create inserts u, assigning its ID. ErrDuplicate signals a taken email.
func (r *UserRepo) Create(ctx context.Context, u *model.User) error {
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	u.Email = NormalizeEmail(u.Email)
	return translate("create user", r.db.WithContext(ctx).Create(u).Error)
}

// GetByID fetches a user by id.
func (r *UserRepo) GetByID(ctx context.Context, id string) (*model.User, error) {
	var u model.User
	if err := r.db.WithContext(ctx).First(&u, "id = ?", id).Error; err != nil {
		return nil, translate("get user", err)
	}
	return &u, nil
}

// GetByEmail fetches a user by normalized email.
func (r *UserRepo) GetByEmail(ctx context.Context, email string) (*model.User, error) {
	var u model.User
	if err := r.db.WithContext(ctx).First(&u, "email = ?", NormalizeEmail(email)).Error; err != nil {
		return nil, translate("get user by email", err)
	}
	return &u, nil
}

// List returns every user ordered by email.
func (r *UserRepo) List(ctx context.Context) ([]model.User, error) {
	var users []model.User
	err := r.db.WithContext(ctx).Order("email asc").Find(&users).Error
	return users, translate("list users", err)
}

// UserChanges is the allow-list of profile columns that may be rewritten.
// Nil fields are left untouched.
type UserChanges struct {
	FirstName      *string
	LastName       *string
	Specialization *string
	PasswordHash   *string
}

// Update applies changes to the user with the given id.
func (r *UserRepo) Update(ctx context.Context, id string, c UserChanges) error {
	cols := map[string]any{"updated_at": time.Now().UTC()}
	if c.FirstName != nil {
		cols["first_name"] = *c.FirstName
	}
	if c.LastName != nil {
		cols["last_name"] = *c.LastName
	}
	if c.Specialization != nil {
		cols["specialization"] = *c.Specialization
	}
	if c.PasswordHash != nil {
		cols["password_hash"] = *c.PasswordHash
	}
	res := r.db.WithContext(ctx).Model(&model.User{}).Where("id = ?", id).Updates(cols)
	if res.Error != nil {
		return translate("update user", res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// Delete hard-deletes a user row.
func (r *UserRepo) Delete(ctx context.Context, id string) error {
	res := r.db.WithContext(ctx).Delete(&model.User{}, "id = ?", id)
	if res.Error != nil {
		return translate("delete user", res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}
