package repository

import (
	"context"
	"errors"
	"fmt"

	"bookstore/internal/model"

	"github.com/jackc/pgx/v5"
)

// UserRepository defines operations for user data
type UserRepository interface {
	Create(ctx context.Context, user *model.User) error
	FindByEmail(ctx context.Context, email string) (*model.User, error)
	FindByID(ctx context.Context, id int64) (*model.User, error)
	FindByIDForUpdate(ctx context.Context, id int64) (*model.User, error)
	List(ctx context.Context, page model.Page) ([]*model.User, error)
	Update(ctx context.Context, user *model.User) error
	LockActiveAdmins(ctx context.Context) (int, error)
}

type userRepository struct {
	db DBTX
}

// NewUserRepository creates a new UserRepository
func NewUserRepository(db DBTX) UserRepository {
	return &userRepository{db: db}
}

const userColumns = `id, email, hashed_password, is_active, role, created_at`

func scanUser(row pgx.Row) (*model.User, error) {
	user := &model.User{}
	err := row.Scan(&user.ID, &user.Email, &user.HashedPassword, &user.IsActive, &user.Role, &user.CreatedAt)
	if err != nil {
		return nil, err
	}
	return user, nil
}

// Create inserts a new user and fills in its id and creation time
func (r *userRepository) Create(ctx context.Context, user *model.User) error {
	sql := `INSERT INTO users (email, hashed_password, is_active, role)
            VALUES ($1, $2, $3, $4) RETURNING id, created_at`
	err := r.db.QueryRow(ctx, sql, user.Email, user.HashedPassword, user.IsActive, user.Role).
		Scan(&user.ID, &user.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create user: %w", err)
	}
	return nil
}

// FindByEmail retrieves a user by email, ignoring case
func (r *userRepository) FindByEmail(ctx context.Context, email string) (*model.User, error) {
	sql := `SELECT ` + userColumns + ` FROM users WHERE lower(email) = lower($1)`
	user, err := scanUser(r.db.QueryRow(ctx, sql, email))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to find user by email: %w", err)
	}
	return user, nil
}

// FindByID retrieves a user by their ID
func (r *userRepository) FindByID(ctx context.Context, id int64) (*model.User, error) {
	sql := `SELECT ` + userColumns + ` FROM users WHERE id = $1`
	user, err := scanUser(r.db.QueryRow(ctx, sql, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to find user by ID: %w", err)
	}
	return user, nil
}

// FindByIDForUpdate retrieves a user and locks the row until the surrounding
// transaction ends, so a read-modify-write cannot lose a concurrent change.
func (r *userRepository) FindByIDForUpdate(ctx context.Context, id int64) (*model.User, error) {
	sql := `SELECT ` + userColumns + ` FROM users WHERE id = $1 FOR UPDATE`
	user, err := scanUser(r.db.QueryRow(ctx, sql, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to lock user: %w", err)
	}
	return user, nil
}

// List returns users ordered by id
func (r *userRepository) List(ctx context.Context, page model.Page) ([]*model.User, error) {
	page = page.Normalize()
	sql := `SELECT ` + userColumns + ` FROM users ORDER BY id LIMIT $1 OFFSET $2`
	rows, err := r.db.Query(ctx, sql, page.Limit, page.Skip)
	if err != nil {
		return nil, fmt.Errorf("failed to query users: %w", err)
	}
	defer rows.Close()

	users := make([]*model.User, 0)
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan user row: %w", err)
		}
		users = append(users, user)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating user rows: %w", err)
	}
	return users, nil
}

// Update writes every mutable column of the user
func (r *userRepository) Update(ctx context.Context, user *model.User) error {
	sql := `UPDATE users SET email = $1, hashed_password = $2, is_active = $3, role = $4
            WHERE id = $5`
	cmdTag, err := r.db.Exec(ctx, sql, user.Email, user.HashedPassword, user.IsActive, user.Role, user.ID)
	if err != nil {
		return fmt.Errorf("failed to update user: %w", err)
	}
	if cmdTag.RowsAffected() == 0 {
		return fmt.Errorf("user %d: %w", user.ID, ErrNotFound)
	}
	return nil
}

// LockActiveAdmins locks every admin row, in id order, until the surrounding
// transaction ends and returns how many of them are active. Outside a
// transaction the locks are released immediately.
func (r *userRepository) LockActiveAdmins(ctx context.Context) (int, error) {
	sql := `SELECT id, is_active FROM users WHERE role = $1 ORDER BY id FOR UPDATE`
	rows, err := r.db.Query(ctx, sql, model.RoleAdmin)
	if err != nil {
		return 0, fmt.Errorf("failed to lock admin rows: %w", err)
	}
	defer rows.Close()

	active := 0
	for rows.Next() {
		var id int64
		var isActive bool
		if err := rows.Scan(&id, &isActive); err != nil {
			return 0, fmt.Errorf("failed to scan admin row: %w", err)
		}
		if isActive {
			active++
		}
	}
	if err := rows.Err(); err != nil {
		return 0, fmt.Errorf("error iterating admin rows: %w", err)
	}
	return active, nil
}
