// Package testutil provides an in-memory store and token helpers for tests
// of the service and handler layers.
package testutil

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"testing"

	"bookstore/internal/apperr"
	"bookstore/internal/model"
	"bookstore/internal/repository"
	"bookstore/internal/utils"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/require"
)

// Store keeps users and books in memory and enforces the same unique and
// foreign key constraints as the PostgreSQL schema, failing with real
// *pgconn.PgError values.
type Store struct {
	mu         sync.Mutex
	txMu       sync.Mutex
	users      map[int64]*model.User
	books      map[int64]*model.Book
	nextUserID int64
	nextBookID int64

	// BeforeBookInsert, when set, runs at the start of every book insert.
	// Tests use it to slip a conflicting row in after a service pre-check.
	BeforeBookInsert func()
	// FailWith, when set, is returned by every repository call
	FailWith error
}

// NewStore returns an empty store
func NewStore() *Store {
	return &Store{
		users: make(map[int64]*model.User),
		books: make(map[int64]*model.Book),
	}
}

// Repositories returns repositories bound to the store
func (s *Store) Repositories() repository.Repositories {
	return repository.Repositories{Users: &userRepo{s}, Books: &bookRepo{s}}
}

// WithinTx runs fn with exclusive access and restores the previous state if
// fn fails.
func (s *Store) WithinTx(_ context.Context, fn func(repository.Repositories) error) error {
	s.txMu.Lock()
	defer s.txMu.Unlock()

	s.mu.Lock()
	users, books := cloneUsers(s.users), cloneBooks(s.books)
	nextUser, nextBook := s.nextUserID, s.nextBookID
	s.mu.Unlock()

	if err := fn(s.Repositories()); err != nil {
		s.mu.Lock()
		s.users, s.books = users, books
		s.nextUserID, s.nextBookID = nextUser, nextBook
		s.mu.Unlock()
		return err
	}
	return nil
}

// SeedUser stores a user with a hashed password and returns a copy
func (s *Store) SeedUser(t *testing.T, email, password, role string, active bool) *model.User {
	t.Helper()
	hash, err := utils.HashPassword(password)
	require.NoError(t, err)

	user := &model.User{Email: email, HashedPassword: hash, IsActive: active, Role: role}
	require.NoError(t, s.Repositories().Users.Create(context.Background(), user))
	return user
}

// SeedBook stores a book as is and returns a copy
func (s *Store) SeedBook(t *testing.T, book model.Book) *model.Book {
	t.Helper()
	require.NoError(t, s.insertBook(&book))
	return &book
}

// User returns a copy of the stored user, or nil
func (s *Store) User(id int64) *model.User {
	s.mu.Lock()
	defer s.mu.Unlock()
	if u, ok := s.users[id]; ok {
		c := *u
		return &c
	}
	return nil
}

// Book returns a copy of the stored book, or nil
func (s *Store) Book(id int64) *model.Book {
	s.mu.Lock()
	defer s.mu.Unlock()
	if b, ok := s.books[id]; ok {
		c := *b
		return &c
	}
	return nil
}

// BookCount returns the number of stored books
func (s *Store) BookCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.books)
}

func uniqueViolation(constraint string) *pgconn.PgError {
	return &pgconn.PgError{
		Severity:       "ERROR",
		Code:           pgerrcode.UniqueViolation,
		Message:        fmt.Sprintf("duplicate key value violates unique constraint %q", constraint),
		ConstraintName: constraint,
	}
}

func foreignKeyViolation(constraint string) *pgconn.PgError {
	return &pgconn.PgError{
		Severity:       "ERROR",
		Code:           pgerrcode.ForeignKeyViolation,
		Message:        fmt.Sprintf("insert or update on table \"books\" violates foreign key constraint %q", constraint),
		ConstraintName: constraint,
	}
}

func (s *Store) emailTaken(email string, exceptID int64) bool {
	for id, u := range s.users {
		if id != exceptID && strings.EqualFold(u.Email, email) {
			return true
		}
	}
	return false
}

func (s *Store) isbnTaken(isbn string, exceptID int64) bool {
	for id, b := range s.books {
		if id != exceptID && b.ISBN == isbn {
			return true
		}
	}
	return false
}

func (s *Store) insertBook(book *model.Book) error {
	if s.BeforeBookInsert != nil {
		s.BeforeBookInsert()
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.FailWith != nil {
		return s.FailWith
	}
	if s.isbnTaken(book.ISBN, 0) {
		return fmt.Errorf("failed to create book: %w", uniqueViolation(apperr.BookISBNConstraint))
	}
	if book.CreatedBy != nil {
		if _, ok := s.users[*book.CreatedBy]; !ok {
			return fmt.Errorf("failed to create book: %w", foreignKeyViolation("books_created_by_fkey"))
		}
	}
	s.nextBookID++
	book.ID = s.nextBookID
	c := *book
	s.books[book.ID] = &c
	return nil
}

func cloneUsers(in map[int64]*model.User) map[int64]*model.User {
	out := make(map[int64]*model.User, len(in))
	for id, u := range in {
		c := *u
		out[id] = &c
	}
	return out
}

func cloneBooks(in map[int64]*model.Book) map[int64]*model.Book {
	out := make(map[int64]*model.Book, len(in))
	for id, b := range in {
		c := *b
		out[id] = &c
	}
	return out
}

func page[T any](items []T, p model.Page) []T {
	p = p.Normalize()
	if p.Skip >= len(items) {
		return []T{}
	}
	end := p.Skip + p.Limit
	if end > len(items) {
		end = len(items)
	}
	return items[p.Skip:end]
}

type userRepo struct{ s *Store }

func (r *userRepo) Create(_ context.Context, user *model.User) error {
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.FailWith != nil {
		return s.FailWith
	}
	if s.emailTaken(user.Email, 0) {
		return fmt.Errorf("failed to create user: %w", uniqueViolation(apperr.UserEmailConstraint))
	}
	s.nextUserID++
	user.ID = s.nextUserID
	c := *user
	s.users[user.ID] = &c
	return nil
}

func (r *userRepo) FindByEmail(_ context.Context, email string) (*model.User, error) {
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.FailWith != nil {
		return nil, s.FailWith
	}
	for _, u := range s.users {
		if strings.EqualFold(u.Email, email) {
			c := *u
			return &c, nil
		}
	}
	return nil, nil
}

func (r *userRepo) FindByID(_ context.Context, id int64) (*model.User, error) {
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.FailWith != nil {
		return nil, s.FailWith
	}
	if u, ok := s.users[id]; ok {
		c := *u
		return &c, nil
	}
	return nil, nil
}

// FindByIDForUpdate is FindByID; transactions here already run one at a time
func (r *userRepo) FindByIDForUpdate(ctx context.Context, id int64) (*model.User, error) {
	return r.FindByID(ctx, id)
}

func (r *userRepo) List(_ context.Context, p model.Page) ([]*model.User, error) {
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.FailWith != nil {
		return nil, s.FailWith
	}
	users := make([]*model.User, 0, len(s.users))
	for _, u := range s.users {
		c := *u
		users = append(users, &c)
	}
	sort.Slice(users, func(i, j int) bool { return users[i].ID < users[j].ID })
	return page(users, p), nil
}

func (r *userRepo) Update(_ context.Context, user *model.User) error {
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.FailWith != nil {
		return s.FailWith
	}
	if _, ok := s.users[user.ID]; !ok {
		return fmt.Errorf("user %d: %w", user.ID, repository.ErrNotFound)
	}
	if s.emailTaken(user.Email, user.ID) {
		return fmt.Errorf("failed to update user: %w", uniqueViolation(apperr.UserEmailConstraint))
	}
	c := *user
	s.users[user.ID] = &c
	return nil
}

func (r *userRepo) LockActiveAdmins(_ context.Context) (int, error) {
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.FailWith != nil {
		return 0, s.FailWith
	}
	count := 0
	for _, u := range s.users {
		if u.Role == model.RoleAdmin && u.IsActive {
			count++
		}
	}
	return count, nil
}

type bookRepo struct{ s *Store }

func (r *bookRepo) Create(_ context.Context, book *model.Book) error {
	return r.s.insertBook(book)
}

func (r *bookRepo) FindByID(_ context.Context, id int64) (*model.Book, error) {
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.FailWith != nil {
		return nil, s.FailWith
	}
	if b, ok := s.books[id]; ok {
		c := *b
		return &c, nil
	}
	return nil, nil
}

func (r *bookRepo) FindByIDForUpdate(ctx context.Context, id int64) (*model.Book, error) {
	return r.FindByID(ctx, id)
}

func (r *bookRepo) FindByISBN(_ context.Context, isbn string) (*model.Book, error) {
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.FailWith != nil {
		return nil, s.FailWith
	}
	for _, b := range s.books {
		if b.ISBN == isbn {
			c := *b
			return &c, nil
		}
	}
	return nil, nil
}

func (r *bookRepo) List(_ context.Context, p model.Page) ([]*model.Book, error) {
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.FailWith != nil {
		return nil, s.FailWith
	}
	books := make([]*model.Book, 0, len(s.books))
	for _, b := range s.books {
		c := *b
		books = append(books, &c)
	}
	sort.Slice(books, func(i, j int) bool { return books[i].ID < books[j].ID })
	return page(books, p), nil
}

func (r *bookRepo) Update(_ context.Context, book *model.Book) error {
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.FailWith != nil {
		return s.FailWith
	}
	existing, ok := s.books[book.ID]
	if !ok {
		return fmt.Errorf("book %d: %w", book.ID, repository.ErrNotFound)
	}
	if s.isbnTaken(book.ISBN, book.ID) {
		return fmt.Errorf("failed to update book: %w", uniqueViolation(apperr.BookISBNConstraint))
	}
	c := *book
	c.CreatedBy = existing.CreatedBy
	s.books[book.ID] = &c
	return nil
}

func (r *bookRepo) Delete(_ context.Context, id int64) error {
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.FailWith != nil {
		return s.FailWith
	}
	if _, ok := s.books[id]; !ok {
		return fmt.Errorf("book %d: %w", id, repository.ErrNotFound)
	}
	delete(s.books, id)
	return nil
}
