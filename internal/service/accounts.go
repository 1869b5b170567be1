package service

import (
	"context"
	"fmt"

	"bookstore/internal/apperr"
	"bookstore/internal/model"
	"bookstore/internal/repository"
	"bookstore/internal/utils"
	"bookstore/internal/validate"
)

// createAccount validates credentials and stores a new active user with the
// given role. Returned errors are already translated.
func createAccount(ctx context.Context, users repository.UserRepository, email, password, role string) (*model.User, error) {
	email = validate.NormalizeEmail(email)
	if !validate.IsEmail(email) {
		return nil, ErrInvalidEmail
	}
	if err := validate.ValidatePasswordStrength(password); err != nil {
		return nil, validate.PasswordError(err)
	}

	existing, err := users.FindByEmail(ctx, email)
	if err != nil {
		return nil, apperr.Translate(fmt.Errorf("failed to check existing user: %w", err))
	}
	if existing != nil {
		return nil, ErrEmailTaken
	}

	hashedPassword, err := utils.HashPassword(password)
	if err != nil {
		return nil, apperr.Wrap(apperr.Internal, "Failed to register user", err)
	}

	user := &model.User{
		Email:          email,
		HashedPassword: hashedPassword,
		IsActive:       true,
		Role:           role,
	}
	// A concurrent registration can still win between the check and the
	// insert; the unique index turns that into DuplicateEmail.
	if err := users.Create(ctx, user); err != nil {
		return nil, apperr.Translate(err)
	}
	return user, nil
}
