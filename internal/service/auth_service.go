package service

import (
	"context"
	"strings"

	"bookstore/internal/apperr"
	"bookstore/internal/model"
	"bookstore/internal/repository"
	"bookstore/internal/utils"
	"bookstore/internal/validate"

	"go.uber.org/zap"
)

// AuthService provides authentication related services
type AuthService interface {
	Register(ctx context.Context, email, password string) (*model.User, error)
	Login(ctx context.Context, email, password string) (*model.Token, error)
	Authenticate(ctx context.Context, token string) (*model.User, error)
	UpdateProfile(ctx context.Context, requester *model.User, req model.UpdateProfileRequest) (*model.User, error)
}

type authService struct {
	users   repository.UserRepository
	tx      repository.Transactor
	jwtUtil *utils.JWTUtil
	log     *zap.Logger
}

// NewAuthService creates a new AuthService
func NewAuthService(users repository.UserRepository, tx repository.Transactor, jwtUtil *utils.JWTUtil, log *zap.Logger) AuthService {
	return &authService{
		users:   users,
		tx:      tx,
		jwtUtil: jwtUtil,
		log:     log,
	}
}

// Register creates a new account. The role is always "user".
func (s *authService) Register(ctx context.Context, email, password string) (*model.User, error) {
	user, err := createAccount(ctx, s.users, email, password, model.RoleUser)
	if err != nil {
		return nil, err
	}
	s.log.Info("user registered", zap.Int64("user_id", user.ID))
	return user, nil
}

// Login authenticates a user and returns a bearer token
func (s *authService) Login(ctx context.Context, email, password string) (*model.Token, error) {
	user, err := s.users.FindByEmail(ctx, validate.NormalizeEmail(email))
	if err != nil {
		return nil, apperr.Translate(err)
	}
	if user == nil || !utils.CheckPasswordHash(password, user.HashedPassword) {
		return nil, ErrInvalidCredentials
	}
	if !user.IsActive {
		return nil, ErrAccountInactive
	}

	token, err := s.jwtUtil.GenerateToken(user.Email, user.ID, user.Role)
	if err != nil {
		return nil, apperr.Wrap(apperr.Internal, "Failed to login", err)
	}
	return &model.Token{AccessToken: token, TokenType: "bearer"}, nil
}

// Authenticate resolves a bearer token to an active user
func (s *authService) Authenticate(ctx context.Context, token string) (*model.User, error) {
	if token == "" {
		return nil, ErrNotAuthenticated
	}

	claims, err := s.jwtUtil.ValidateToken(token)
	if err != nil {
		return nil, apperr.Wrap(ErrCouldNotValidate.Kind, ErrCouldNotValidate.Message, err)
	}

	user, err := s.users.FindByID(ctx, claims.UserID)
	if err != nil {
		return nil, apperr.Translate(err)
	}
	if user == nil {
		return nil, ErrUserNotFound
	}
	// Tokens issued before an email change are no longer honoured.
	if !strings.EqualFold(user.Email, claims.Subject) {
		return nil, ErrCouldNotValidate
	}
	if !user.IsActive {
		return nil, ErrInactiveUser
	}
	return user, nil
}

// UpdateProfile applies a partial update to the requester's own account
func (s *authService) UpdateProfile(ctx context.Context, requester *model.User, req model.UpdateProfileRequest) (*model.User, error) {
	if requester == nil {
		return nil, ErrNotAuthenticated
	}

	var updated *model.User
	deactivating := req.IsActive != nil && !*req.IsActive
	err := s.tx.WithinTx(ctx, func(repos repository.Repositories) error {
		// Admin rows first, then our own row, the same order ChangeRole uses.
		activeAdmins := 0
		if deactivating {
			var err error
			if activeAdmins, err = repos.Users.LockActiveAdmins(ctx); err != nil {
				return err
			}
		}

		current, err := repos.Users.FindByIDForUpdate(ctx, requester.ID)
		if err != nil {
			return err
		}
		if current == nil {
			return ErrUserNotFound
		}

		next := *current

		var newEmail string
		emailChanged := false
		if req.Email != nil {
			newEmail = validate.NormalizeEmail(*req.Email)
			if !validate.IsEmail(newEmail) {
				return ErrInvalidEmail
			}
			emailChanged = newEmail != current.Email
		}

		if emailChanged || req.Password != nil {
			if req.CurrentPassword == nil || !utils.CheckPasswordHash(*req.CurrentPassword, current.HashedPassword) {
				return ErrInvalidCurrentPassword
			}
		}

		if emailChanged {
			other, err := repos.Users.FindByEmail(ctx, newEmail)
			if err != nil {
				return err
			}
			if other != nil && other.ID != current.ID {
				return ErrEmailTaken
			}
			next.Email = newEmail
		}

		if req.Password != nil {
			if err := validate.ValidatePasswordStrength(*req.Password); err != nil {
				return validate.PasswordError(err)
			}
			hashed, err := utils.HashPassword(*req.Password)
			if err != nil {
				return apperr.Wrap(apperr.Internal, "Failed to update profile", err)
			}
			next.HashedPassword = hashed
		}

		if req.IsActive != nil {
			if deactivating && current.IsActive && current.IsAdmin() && activeAdmins <= 1 {
				return ErrLastAdminDeactivation
			}
			next.IsActive = *req.IsActive
		}

		if err := repos.Users.Update(ctx, &next); err != nil {
			return err
		}
		updated = &next
		return nil
	})
	if err != nil {
		err = apperr.Translate(err)
		s.log.Debug("failed to update profile", zap.Int64("user_id", requester.ID), zap.Error(err))
		return nil, err
	}

	if updated.Email != requester.Email {
		s.log.Info("user changed email", zap.Int64("user_id", updated.ID))
	}
	return updated, nil
}
