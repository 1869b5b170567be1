package apperr

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5/pgconn"
)

// ConstraintClass is the kind of integrity constraint a storage write violated
type ConstraintClass int

const (
	ConstraintGeneric ConstraintClass = iota
	ConstraintUnique
	ConstraintForeignKey
	ConstraintNotNull
	ConstraintCheck
)

// Violation is a storage-level integrity failure: the raw engine message,
// what kind of constraint was hit and, when the engine reports it, the
// constraint's name.
type Violation struct {
	Class      ConstraintClass
	Message    string
	Constraint string
}

// Unique constraints declared by the schema migrations
const (
	BookISBNConstraint  = "books_isbn_key"
	UserEmailConstraint = "users_email_key"
)

var notNullColumnRX = regexp.MustCompile(`column "([^"]+)"`)

// TranslateViolation maps an integrity violation to a caller-facing error.
// The raw message is never part of the result's Message.
func TranslateViolation(v Violation) *Error {
	raw := errors.New(v.Message)
	msg := strings.ToLower(v.Message)

	switch v.Class {
	case ConstraintUnique:
		if v.Constraint != "" {
			return duplicateOf(v.Constraint, raw)
		}
		switch {
		case strings.Contains(msg, "isbn"):
			return Wrap(DuplicateIsbn, "A book with this ISBN already exists", raw)
		case strings.Contains(msg, "email"):
			return Wrap(DuplicateEmail, "This email is already registered", raw)
		default:
			return Wrap(DuplicateResource, "This resource already exists", raw)
		}
	case ConstraintForeignKey:
		if strings.Contains(msg, "still referenced") || strings.Contains(msg, "on delete") {
			return Wrap(ReferencedResource, "Cannot delete this resource because it is referenced by other records", raw)
		}
		return Wrap(InvalidReference, "Referenced resource does not exist", raw)
	case ConstraintNotNull:
		if m := notNullColumnRX.FindStringSubmatch(v.Message); m != nil {
			return Wrap(MissingRequiredField, fmt.Sprintf("Required field '%s' is missing", m[1]), raw)
		}
		return Wrap(MissingRequiredField, "Required field is missing", raw)
	case ConstraintCheck:
		return Wrap(ValidationFailed, "Data validation failed: value does not meet required criteria", raw)
	default:
		return Wrap(IntegrityViolation, "Database integrity constraint violated", raw)
	}
}

// duplicateOf names the duplicate by the unique constraint that was hit.
// Matching on the message instead would misread an address such as
// "isbn.fan@example.com" in the detail.
func duplicateOf(constraint string, raw error) *Error {
	switch constraint {
	case BookISBNConstraint:
		return Wrap(DuplicateIsbn, "A book with this ISBN already exists", raw)
	case UserEmailConstraint:
		return Wrap(DuplicateEmail, "This email is already registered", raw)
	}
	return Wrap(DuplicateResource, "This resource already exists", raw)
}

// Translate converts an error returned by the storage layer into an *Error.
// Errors that are already translated are returned unchanged.
func Translate(err error) error {
	if err == nil {
		return nil
	}
	var appErr *Error
	if errors.As(err, &appErr) {
		return err
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return translatePgError(pgErr, err)
	}

	if isUnavailable(err) {
		return Wrap(ServiceUnavailable, "Database service temporarily unavailable. Please try again later.", err)
	}
	return Wrap(InternalStorageError, "An unexpected database error occurred. Please try again or contact support.", err)
}

func translatePgError(pgErr *pgconn.PgError, cause error) error {
	code := pgErr.Code
	switch {
	case pgerrcode.IsIntegrityConstraintViolation(code):
		v := Violation{Class: classify(code), Message: rawMessage(pgErr), Constraint: pgErr.ConstraintName}
		translated := TranslateViolation(v)
		translated.Err = cause
		return translated
	case pgerrcode.IsDataException(code):
		if code == pgerrcode.StringDataRightTruncationDataException {
			return Wrap(ValidationFailed, "One or more field values exceed maximum length", cause)
		}
		return Wrap(ValidationFailed, "Invalid data format or value", cause)
	case pgerrcode.IsConnectionException(code),
		pgerrcode.IsInsufficientResources(code),
		pgerrcode.IsOperatorIntervention(code):
		return Wrap(ServiceUnavailable, "Database service temporarily unavailable. Please try again later.", cause)
	}
	return Wrap(InternalStorageError, "An unexpected database error occurred. Please try again or contact support.", cause)
}

func classify(code string) ConstraintClass {
	switch code {
	case pgerrcode.UniqueViolation:
		return ConstraintUnique
	case pgerrcode.ForeignKeyViolation, pgerrcode.RestrictViolation:
		return ConstraintForeignKey
	case pgerrcode.NotNullViolation:
		return ConstraintNotNull
	case pgerrcode.CheckViolation:
		return ConstraintCheck
	}
	return ConstraintGeneric
}

// rawMessage joins everything PostgreSQL tells us about the failure. The
// detail carries the "still referenced" hint that the message alone lacks,
// and the constraint name keeps the logged cause specific.
func rawMessage(pgErr *pgconn.PgError) string {
	parts := []string{pgErr.Message}
	if pgErr.Detail != "" {
		parts = append(parts, pgErr.Detail)
	}
	if pgErr.ConstraintName != "" {
		parts = append(parts, "constraint "+pgErr.ConstraintName)
	}
	return strings.Join(parts, " ")
}

func isUnavailable(err error) bool {
	var connErr *pgconn.ConnectError
	if errors.As(err, &connErr) {
		return true
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	return pgconn.Timeout(err) || pgconn.SafeToRetry(err)
}
