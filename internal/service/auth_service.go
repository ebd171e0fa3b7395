package service

import (
	"context"
	"errors"

	"github.com/iliyamo/tradeflow/internal/apperr"
	"github.com/iliyamo/tradeflow/internal/auth"
	"github.com/iliyamo/tradeflow/internal/model"
	"github.com/iliyamo/tradeflow/internal/repository"
)

// AuthService runs registration, login and the refresh token flows on top
// of the Issuer.
type AuthService struct {
	base
	issuer *auth.Issuer
}

func NewAuthService(store *repository.Store, issuer *auth.Issuer, opts Options) *AuthService {
	return &AuthService{base: newBase(store, nil, opts), issuer: issuer}
}

type RegisterInput struct {
	Email          string
	Password       string
	FirstName      string
	LastName       string
	Role           model.PlatformRole // defaults to tradesperson
	Specialization *string
}

// Register creates the user and its first refresh token in one
// transaction.
func (s *AuthService) Register(ctx context.Context, in RegisterInput) (*model.User, auth.TokenPair, error) {
	const op = "auth.register"
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	role := in.Role
	if role == "" {
		role = model.PlatformRoleTradesperson
	}
	if !role.Valid() {
		return nil, auth.TokenPair{}, s.fail(op, apperr.InvalidState(op, "unknown role "+string(role)))
	}
	hash, err := s.issuer.HashPassword(in.Password)
	if err != nil {
		return nil, auth.TokenPair{}, s.fail(op, err)
	}

	u := &model.User{
		Email:          in.Email,
		PasswordHash:   hash,
		FirstName:      in.FirstName,
		LastName:       in.LastName,
		Role:           role,
		Specialization: in.Specialization,
	}
	var pair auth.TokenPair
	err = s.store.Transaction(ctx, func(tx *repository.Store) error {
		if err := tx.Users.Create(ctx, u); err != nil {
			if errors.Is(err, repository.ErrDuplicate) {
				return apperr.AlreadyExists(op, "email already registered")
			}
			return storeErr(op, "user", err)
		}
		var err error
		pair, err = s.issuer.IssueTokenPair(ctx, tx, u)
		return err
	})
	if err != nil {
		return nil, auth.TokenPair{}, s.fail(op, err)
	}
	s.log.Info("user registered", "user_id", u.ID, "role", string(u.Role))
	return u, pair, nil
}

// Login checks the credentials and issues a pair. Unknown email and wrong
// password fail identically with InvalidCredentials.
func (s *AuthService) Login(ctx context.Context, email, password string) (*model.User, auth.TokenPair, error) {
	const op = "auth.login"
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	u, err := s.store.Users.GetByEmail(ctx, email)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, auth.TokenPair{}, s.fail(op, apperr.InvalidCredentials(op))
	}
	if err != nil {
		return nil, auth.TokenPair{}, s.fail(op, storeErr(op, "user", err))
	}
	if !s.issuer.VerifyPassword(password, u.PasswordHash) {
		return nil, auth.TokenPair{}, s.fail(op, apperr.InvalidCredentials(op), "user_id", u.ID)
	}

	pair, err := s.issuer.IssueTokenPair(ctx, nil, u)
	if err != nil {
		return nil, auth.TokenPair{}, s.fail(op, err)
	}
	return u, pair, nil
}

// Refresh rotates the presented refresh token.
func (s *AuthService) Refresh(ctx context.Context, refreshToken string) (*model.User, auth.TokenPair, error) {
	const op = "auth.refresh"
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	pair, u, err := s.issuer.RotateRefreshToken(ctx, refreshToken)
	if err != nil {
		return nil, auth.TokenPair{}, s.fail(op, err)
	}
	return u, pair, nil
}

// Logout revokes one refresh token. Unknown tokens are ignored.
func (s *AuthService) Logout(ctx context.Context, refreshToken string) error {
	const op = "auth.logout"
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	if err := s.issuer.Revoke(ctx, refreshToken); err != nil {
		return s.fail(op, err)
	}
	return nil
}

// LogoutAll revokes every live refresh token of the actor.
func (s *AuthService) LogoutAll(ctx context.Context, actor Actor) error {
	const op = "auth.logout_all"
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	if err := s.issuer.RevokeAll(ctx, nil, actor.ID); err != nil {
		return s.fail(op, err, "actor_id", actor.ID)
	}
	return nil
}

// Me returns the actor's own profile.
func (s *AuthService) Me(ctx context.Context, actor Actor) (*model.User, error) {
	const op = "auth.me"
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	u, err := s.store.Users.GetByID(ctx, actor.ID)
	if err != nil {
		return nil, s.fail(op, storeErr(op, "user", err), "actor_id", actor.ID)
	}
	return u, nil
}

// Authenticate validates an access token and returns its actor.
func (s *AuthService) Authenticate(accessToken string) (Actor, error) {
	c, err := s.issuer.ValidateAccessToken(accessToken)
	if err != nil {
		return Actor{}, err
	}
	return Actor{ID: c.UserID, Role: c.Role}, nil
}
