package service

import (
	"context"

	"github.com/iliyamo/tradeflow/internal/apperr"
	"github.com/iliyamo/tradeflow/internal/auth"
	"github.com/iliyamo/tradeflow/internal/authz"
	"github.com/iliyamo/tradeflow/internal/model"
	"github.com/iliyamo/tradeflow/internal/repository"
)

// UserService is the user directory.
type UserService struct {
	base
	issuer *auth.Issuer
}

func NewUserService(store *repository.Store, issuer *auth.Issuer, engine *authz.Engine, opts Options) *UserService {
	return &UserService{base: newBase(store, engine, opts), issuer: issuer}
}

// UserPatch is the allow-list of profile fields. Email, role, rating and
// completed job count are never patchable.
type UserPatch struct {
	FirstName      *string
	LastName       *string
	Specialization *string
	Password       *string
}

func (s *UserService) ListUsers(ctx context.Context, actor Actor) ([]model.User, error) {
	const op = "user.list"
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	users, err := s.store.Users.List(ctx)
	if err != nil {
		return nil, s.fail(op, storeErr(op, "user", err), "actor_id", actor.ID)
	}
	return users, nil
}

func (s *UserService) GetUser(ctx context.Context, actor Actor, id string) (*model.User, error) {
	const op = "user.read"
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	u, err := s.store.Users.GetByID(ctx, id)
	if err != nil {
		return nil, s.fail(op, storeErr(op, "user", err), "user_id", id, "actor_id", actor.ID)
	}
	return u, nil
}

// UpdateUser lets users edit their own profile and project managers edit
// anyone's. A new password is re-hashed.
func (s *UserService) UpdateUser(ctx context.Context, actor Actor, id string, patch UserPatch) (*model.User, error) {
	const op = "user.update"
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	d := authz.Decide(authz.ActionUpdateUser, authz.Facts{ActorID: actor.ID, ActorPlatform: actor.Role, SubjectUserID: id})
	if !d.Allowed {
		return nil, s.fail(op, apperr.Unauthorized(op, d.Reason), "user_id", id, "actor_id", actor.ID)
	}

	changes := repository.UserChanges{
		FirstName:      patch.FirstName,
		LastName:       patch.LastName,
		Specialization: patch.Specialization,
	}
	if patch.Password != nil {
		hash, err := s.issuer.HashPassword(*patch.Password)
		if err != nil {
			return nil, s.fail(op, err)
		}
		changes.PasswordHash = &hash
	}

	var u *model.User
	err := s.store.Transaction(ctx, func(tx *repository.Store) error {
		if err := tx.Users.Update(ctx, id, changes); err != nil {
			return storeErr(op, "user", err)
		}
		var err error
		u, err = tx.Users.GetByID(ctx, id)
		return storeErr(op, "user", err)
	})
	if err != nil {
		return nil, s.fail(op, err, "user_id", id, "actor_id", actor.ID)
	}
	return u, nil
}

// DeleteUser removes a user account. It refuses while the user manages a
// job, since every job keeps exactly one active manager. Otherwise the
// user's participations are deactivated, their task assignments cleared
// and their refresh tokens revoked before the row is deleted.
func (s *UserService) DeleteUser(ctx context.Context, actor Actor, id string) error {
	const op = "user.delete"
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	d := authz.Decide(authz.ActionDeleteUser, authz.Facts{ActorID: actor.ID, ActorPlatform: actor.Role, SubjectUserID: id})
	if !d.Allowed {
		return s.fail(op, apperr.Unauthorized(op, d.Reason), "user_id", id, "actor_id", actor.ID)
	}

	err := s.store.Transaction(ctx, func(tx *repository.Store) error {
		if _, err := tx.Users.GetByID(ctx, id); err != nil {
			return storeErr(op, "user", err)
		}
		managed, err := tx.Participants.CountActiveWithRole(ctx, id, model.RoleManager)
		if err != nil {
			return storeErr(op, "participant", err)
		}
		if managed > 0 {
			return apperr.InvalidState(op, "user still manages a job")
		}
		if err := tx.Participants.DeactivateAllForUser(ctx, id); err != nil {
			return storeErr(op, "participant", err)
		}
		if err := tx.Tasks.ClearAssignee(ctx, id); err != nil {
			return storeErr(op, "task", err)
		}
		if err := s.issuer.RevokeAll(ctx, tx, id); err != nil {
			return err
		}
		return storeErr(op, "user", tx.Users.Delete(ctx, id))
	})
	if err != nil {
		return s.fail(op, err, "user_id", id, "actor_id", actor.ID)
	}
	s.log.Info("user deleted", "user_id", id, "actor_id", actor.ID)
	return nil
}
