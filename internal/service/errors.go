package service

import (
	"fmt"

	"bookstore/internal/apperr"
	"bookstore/internal/model"
)

var (
	ErrNotAuthenticated       = apperr.New(apperr.Unauthenticated, "Not authenticated")
	ErrCouldNotValidate       = apperr.New(apperr.InvalidCredentials, "Could not validate credentials")
	ErrUserNotFound           = apperr.New(apperr.Unauthenticated, "User not found")
	ErrInactiveUser           = apperr.New(apperr.Forbidden, "Inactive user")
	ErrNotAdmin               = apperr.New(apperr.Forbidden, "Not enough permissions. Admin role required.")
	ErrInvalidCredentials     = apperr.New(apperr.InvalidCredentials, "Incorrect email or password")
	ErrAccountInactive        = apperr.New(apperr.Forbidden, "User account is inactive")
	ErrInvalidEmail           = apperr.New(apperr.ValidationFailed, "Invalid email address")
	ErrEmailTaken             = apperr.New(apperr.DuplicateEmail, "This email is already registered")
	ErrInvalidCurrentPassword = apperr.New(apperr.InvalidCurrentPassword, "Incorrect or missing current password")
	ErrLastAdminDemotion      = apperr.New(apperr.LastAdminProtected, "Cannot demote the last admin user. Promote another user to admin first.")
	ErrLastAdminDeactivation  = apperr.New(apperr.LastAdminProtected, "Cannot deactivate the last admin user. Promote another user to admin first.")
	ErrInvalidRole            = apperr.New(apperr.ValidationFailed, "Role must be 'user' or 'admin'")

	ErrDuplicateISBN  = apperr.New(apperr.DuplicateIsbn, "A book with this ISBN already exists")
	ErrNotBookOwner   = apperr.New(apperr.Forbidden, "You can only update your own books")
	ErrMissingDate    = apperr.New(apperr.ValidationFailed, "Published date is required")
	ErrEmptyTitle     = apperr.New(apperr.ValidationFailed, "Title must be between 1 and 255 characters")
	ErrEmptyAuthor    = apperr.New(apperr.ValidationFailed, "Author must be between 1 and 255 characters")
	ErrBookReferenced = apperr.New(apperr.ReferencedResource, "Cannot delete book because it is referenced by other records")
)

func bookNotFound(id int64) *apperr.Error {
	return apperr.New(apperr.NotFound, fmt.Sprintf("Book with id %d not found", id))
}

func userNotFound(id int64) *apperr.Error {
	return apperr.New(apperr.NotFound, fmt.Sprintf("User with ID %d not found", id))
}

// RequireAdmin fails unless user is an authenticated admin
func RequireAdmin(user *model.User) error {
	if user == nil {
		return ErrNotAuthenticated
	}
	if !user.IsAdmin() {
		return ErrNotAdmin
	}
	return nil
}
