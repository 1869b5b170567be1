package service

import (
	"context"
	"errors"
	"strings"
	"unicode/utf8"

	"bookstore/internal/apperr"
	"bookstore/internal/model"
	"bookstore/internal/repository"
	"bookstore/internal/validate"

	"go.uber.org/zap"
)

const maxTextLength = 255

// BookService defines book catalogue operations
type BookService interface {
	CreateBook(ctx context.Context, req model.CreateBookRequest, requester *model.User) (*model.Book, error)
	UpdateBook(ctx context.Context, id int64, req model.UpdateBookRequest, requester *model.User) (*model.Book, error)
	DeleteBook(ctx context.Context, id int64, requester *model.User) error
	ListBooks(ctx context.Context, page model.Page) ([]*model.Book, error)
	GetBook(ctx context.Context, id int64) (*model.Book, error)
}

type bookService struct {
	books repository.BookRepository
	tx    repository.Transactor
	log   *zap.Logger
}

// NewBookService creates a new BookService
func NewBookService(books repository.BookRepository, tx repository.Transactor, log *zap.Logger) BookService {
	return &bookService{books: books, tx: tx, log: log}
}

func validText(s string) bool {
	n := utf8.RuneCountInString(strings.TrimSpace(s))
	return n >= 1 && utf8.RuneCountInString(s) <= maxTextLength
}

// CreateBook stores a new book owned by the requester
func (s *bookService) CreateBook(ctx context.Context, req model.CreateBookRequest, requester *model.User) (*model.Book, error) {
	if requester == nil {
		return nil, ErrNotAuthenticated
	}
	if !validText(req.Title) {
		return nil, ErrEmptyTitle
	}
	if !validText(req.Author) {
		return nil, ErrEmptyAuthor
	}
	if req.PublishedDate == nil {
		return nil, ErrMissingDate
	}
	isbn, err := validate.NormalizeISBN(req.ISBN)
	if err != nil {
		return nil, err
	}

	ownerID := requester.ID
	book := &model.Book{
		Title:         req.Title,
		Author:        req.Author,
		ISBN:          isbn,
		PublishedDate: *req.PublishedDate,
		Description:   req.Description,
		CreatedBy:     &ownerID,
	}

	err = s.tx.WithinTx(ctx, func(repos repository.Repositories) error {
		existing, err := repos.Books.FindByISBN(ctx, isbn)
		if err != nil {
			return err
		}
		if existing != nil {
			return ErrDuplicateISBN
		}
		return repos.Books.Create(ctx, book)
	})
	if err != nil {
		return nil, s.fail("failed to create book", err, zap.String("isbn", isbn), zap.Int64("user_id", requester.ID))
	}

	s.log.Info("book created",
		zap.Int64("book_id", book.ID),
		zap.String("isbn", book.ISBN),
		zap.Int64("user_id", requester.ID),
	)
	return book, nil
}

// UpdateBook applies a partial update. Only the owner or an admin may update.
func (s *bookService) UpdateBook(ctx context.Context, id int64, req model.UpdateBookRequest, requester *model.User) (*model.Book, error) {
	if requester == nil {
		return nil, ErrNotAuthenticated
	}

	var updated *model.Book
	err := s.tx.WithinTx(ctx, func(repos repository.Repositories) error {
		book, err := repos.Books.FindByIDForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if book == nil {
			return bookNotFound(id)
		}
		if !requester.IsAdmin() && !book.IsOwnedBy(requester) {
			return ErrNotBookOwner
		}

		if req.Title != nil {
			if !validText(*req.Title) {
				return ErrEmptyTitle
			}
			book.Title = *req.Title
		}
		if req.Author != nil {
			if !validText(*req.Author) {
				return ErrEmptyAuthor
			}
			book.Author = *req.Author
		}
		if req.PublishedDate != nil {
			book.PublishedDate = *req.PublishedDate
		}
		if req.Description.Set {
			book.Description = req.Description.Value
		}
		if req.ISBN != nil {
			isbn, err := validate.NormalizeISBN(*req.ISBN)
			if err != nil {
				return err
			}
			if isbn != book.ISBN {
				other, err := repos.Books.FindByISBN(ctx, isbn)
				if err != nil {
					return err
				}
				if other != nil && other.ID != book.ID {
					return ErrDuplicateISBN
				}
				book.ISBN = isbn
			}
		}

		if err := repos.Books.Update(ctx, book); err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return bookNotFound(id)
			}
			return err
		}
		updated = book
		return nil
	})
	if err != nil {
		return nil, s.fail("failed to update book", err, zap.Int64("book_id", id), zap.Int64("user_id", requester.ID))
	}

	s.log.Info("book updated", zap.Int64("book_id", id), zap.Int64("user_id", requester.ID))
	return updated, nil
}

// DeleteBook removes a book. Admin only.
func (s *bookService) DeleteBook(ctx context.Context, id int64, requester *model.User) error {
	if err := RequireAdmin(requester); err != nil {
		return err
	}

	err := s.tx.WithinTx(ctx, func(repos repository.Repositories) error {
		book, err := repos.Books.FindByID(ctx, id)
		if err != nil {
			return err
		}
		if book == nil {
			return bookNotFound(id)
		}
		if err := repos.Books.Delete(ctx, id); err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return bookNotFound(id)
			}
			return err
		}
		return nil
	})
	if err != nil {
		err = apperr.Translate(err)
		if apperr.KindOf(err) == apperr.ReferencedResource {
			err = apperr.Wrap(ErrBookReferenced.Kind, ErrBookReferenced.Message, err)
		}
		return s.fail("failed to delete book", err, zap.Int64("book_id", id), zap.Int64("user_id", requester.ID))
	}

	s.log.Info("book deleted", zap.Int64("book_id", id), zap.Int64("user_id", requester.ID))
	return nil
}

// ListBooks returns one page of books. Public.
func (s *bookService) ListBooks(ctx context.Context, page model.Page) ([]*model.Book, error) {
	books, err := s.books.List(ctx, page.Normalize())
	if err != nil {
		return nil, s.fail("failed to list books", err)
	}
	return books, nil
}

// GetBook returns a single book. Public.
func (s *bookService) GetBook(ctx context.Context, id int64) (*model.Book, error) {
	book, err := s.books.FindByID(ctx, id)
	if err != nil {
		return nil, s.fail("failed to get book", err, zap.Int64("book_id", id))
	}
	if book == nil {
		return nil, bookNotFound(id)
	}
	return book, nil
}

// fail translates err. The error-level entry for a failed request is written
// once by the HTTP layer; here it is only traced.
func (s *bookService) fail(msg string, err error, fields ...zap.Field) error {
	err = apperr.Translate(err)
	s.log.Debug(msg, append(fields, zap.Error(err))...)
	return err
}
