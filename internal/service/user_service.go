package service

import (
	"context"
	"errors"

	"bookstore/internal/apperr"
	"bookstore/internal/model"
	"bookstore/internal/repository"

	"go.uber.org/zap"
)

// UserService defines admin operations on accounts
type UserService interface {
	ChangeRole(ctx context.Context, admin *model.User, targetID int64, role string) (*model.User, error)
	ListUsers(ctx context.Context, admin *model.User, page model.Page) ([]*model.User, error)
	GetUser(ctx context.Context, admin *model.User, id int64) (*model.User, error)
	CreateAdmin(ctx context.Context, email, password string) (*model.User, error)
}

type userService struct {
	users repository.UserRepository
	tx    repository.Transactor
	log   *zap.Logger
}

// NewUserService creates a new UserService
func NewUserService(users repository.UserRepository, tx repository.Transactor, log *zap.Logger) UserService {
	return &userService{users: users, tx: tx, log: log}
}

// ChangeRole promotes or demotes a user. Demoting the last active admin is
// refused. Admin rows are locked before the target so concurrent demotions
// serialize, and the target is re-read under its lock before the write.
func (s *userService) ChangeRole(ctx context.Context, admin *model.User, targetID int64, role string) (*model.User, error) {
	if err := RequireAdmin(admin); err != nil {
		return nil, err
	}
	if role != model.RoleUser && role != model.RoleAdmin {
		return nil, ErrInvalidRole
	}

	var updated *model.User
	err := s.tx.WithinTx(ctx, func(repos repository.Repositories) error {
		activeAdmins := 0
		if role == model.RoleUser {
			var err error
			if activeAdmins, err = repos.Users.LockActiveAdmins(ctx); err != nil {
				return err
			}
		}

		user, err := repos.Users.FindByIDForUpdate(ctx, targetID)
		if err != nil {
			return err
		}
		if user == nil {
			return userNotFound(targetID)
		}

		if role == model.RoleUser && user.IsAdmin() && user.IsActive && activeAdmins <= 1 {
			return ErrLastAdminDemotion
		}

		user.Role = role
		if err := repos.Users.Update(ctx, user); err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return userNotFound(targetID)
			}
			return err
		}
		updated = user
		return nil
	})
	if err != nil {
		err = apperr.Translate(err)
		s.log.Debug("failed to change role", zap.Int64("target_id", targetID), zap.Error(err))
		return nil, err
	}

	s.log.Info("user role changed",
		zap.Int64("target_id", targetID),
		zap.String("role", role),
		zap.Int64("admin_id", admin.ID),
	)
	return updated, nil
}

// ListUsers returns one page of users. Admin only.
func (s *userService) ListUsers(ctx context.Context, admin *model.User, page model.Page) ([]*model.User, error) {
	if err := RequireAdmin(admin); err != nil {
		return nil, err
	}
	users, err := s.users.List(ctx, page.Normalize())
	if err != nil {
		return nil, apperr.Translate(err)
	}
	return users, nil
}

// GetUser returns a single user. Admin only.
func (s *userService) GetUser(ctx context.Context, admin *model.User, id int64) (*model.User, error) {
	if err := RequireAdmin(admin); err != nil {
		return nil, err
	}
	user, err := s.users.FindByID(ctx, id)
	if err != nil {
		return nil, apperr.Translate(err)
	}
	if user == nil {
		return nil, userNotFound(id)
	}
	return user, nil
}

// CreateAdmin bootstraps an admin account from the command line
func (s *userService) CreateAdmin(ctx context.Context, email, password string) (*model.User, error) {
	user, err := createAccount(ctx, s.users, email, password, model.RoleAdmin)
	if err != nil {
		return nil, err
	}
	s.log.Info("admin account created", zap.Int64("user_id", user.ID))
	return user, nil
}
