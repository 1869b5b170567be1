package repository

import (
	"context"
	"errors"
	"fmt"

	"bookstore/internal/model"

	"github.com/jackc/pgx/v5"
)

// BookRepository defines operations for book data
type BookRepository interface {
	Create(ctx context.Context, book *model.Book) error
	FindByID(ctx context.Context, id int64) (*model.Book, error)
	FindByIDForUpdate(ctx context.Context, id int64) (*model.Book, error)
	FindByISBN(ctx context.Context, isbn string) (*model.Book, error)
	List(ctx context.Context, page model.Page) ([]*model.Book, error)
	Update(ctx context.Context, book *model.Book) error
	Delete(ctx context.Context, id int64) error
}

type bookRepository struct {
	db DBTX
}

// NewBookRepository creates a new BookRepository
func NewBookRepository(db DBTX) BookRepository {
	return &bookRepository{db: db}
}

const bookColumns = `id, title, author, isbn, published_date, description, created_by`

func scanBook(row pgx.Row) (*model.Book, error) {
	book := &model.Book{}
	err := row.Scan(&book.ID, &book.Title, &book.Author, &book.ISBN,
		&book.PublishedDate.Time, &book.Description, &book.CreatedBy)
	if err != nil {
		return nil, err
	}
	return book, nil
}

// Create inserts a new book and sets its ID
func (r *bookRepository) Create(ctx context.Context, book *model.Book) error {
	sql := `INSERT INTO books (title, author, isbn, published_date, description, created_by)
            VALUES ($1, $2, $3, $4, $5, $6) RETURNING id`
	err := r.db.QueryRow(ctx, sql, book.Title, book.Author, book.ISBN,
		book.PublishedDate.Time, book.Description, book.CreatedBy).Scan(&book.ID)
	if err != nil {
		return fmt.Errorf("failed to create book: %w", err)
	}
	return nil
}

// FindByID retrieves a book by its ID
func (r *bookRepository) FindByID(ctx context.Context, id int64) (*model.Book, error) {
	sql := `SELECT ` + bookColumns + ` FROM books WHERE id = $1`
	book, err := scanBook(r.db.QueryRow(ctx, sql, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to find book by ID: %w", err)
	}
	return book, nil
}

// FindByIDForUpdate retrieves a book and locks its row for the rest of the
// transaction
func (r *bookRepository) FindByIDForUpdate(ctx context.Context, id int64) (*model.Book, error) {
	sql := `SELECT ` + bookColumns + ` FROM books WHERE id = $1 FOR UPDATE`
	book, err := scanBook(r.db.QueryRow(ctx, sql, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to lock book: %w", err)
	}
	return book, nil
}

// FindByISBN retrieves a book by its normalized ISBN
func (r *bookRepository) FindByISBN(ctx context.Context, isbn string) (*model.Book, error) {
	sql := `SELECT ` + bookColumns + ` FROM books WHERE isbn = $1`
	book, err := scanBook(r.db.QueryRow(ctx, sql, isbn))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to find book by ISBN: %w", err)
	}
	return book, nil
}

// List returns books ordered by id
func (r *bookRepository) List(ctx context.Context, page model.Page) ([]*model.Book, error) {
	page = page.Normalize()
	sql := `SELECT ` + bookColumns + ` FROM books ORDER BY id LIMIT $1 OFFSET $2`
	rows, err := r.db.Query(ctx, sql, page.Limit, page.Skip)
	if err != nil {
		return nil, fmt.Errorf("failed to query books: %w", err)
	}
	defer rows.Close()

	books := make([]*model.Book, 0)
	for rows.Next() {
		book, err := scanBook(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan book row: %w", err)
		}
		books = append(books, book)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating book rows: %w", err)
	}
	return books, nil
}

// Update writes every mutable column of the book
func (r *bookRepository) Update(ctx context.Context, book *model.Book) error {
	sql := `UPDATE books SET title = $1, author = $2, isbn = $3, published_date = $4, description = $5
            WHERE id = $6`
	cmdTag, err := r.db.Exec(ctx, sql, book.Title, book.Author, book.ISBN,
		book.PublishedDate.Time, book.Description, book.ID)
	if err != nil {
		return fmt.Errorf("failed to update book: %w", err)
	}
	if cmdTag.RowsAffected() == 0 {
		return fmt.Errorf("book %d: %w", book.ID, ErrNotFound)
	}
	return nil
}

// Delete removes a book
func (r *bookRepository) Delete(ctx context.Context, id int64) error {
	cmdTag, err := r.db.Exec(ctx, `DELETE FROM books WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete book: %w", err)
	}
	if cmdTag.RowsAffected() == 0 {
		return fmt.Errorf("book %d: %w", id, ErrNotFound)
	}
	return nil
}
