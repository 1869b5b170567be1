package model

import (
	"bytes"
	"fmt"
	"time"
)

const dateLayout = "2006-01-02"

// Date is a calendar day serialized as YYYY-MM-DD
type Date struct {
	time.Time
}

// NewDate builds a Date at midnight UTC
func NewDate(year int, month time.Month, day int) Date {
	return Date{Time: time.Date(year, month, day, 0, 0, 0, 0, time.UTC)}
}

func (d Date) MarshalJSON() ([]byte, error) {
	return []byte(`"` + d.Time.Format(dateLayout) + `"`), nil
}

func (d *Date) UnmarshalJSON(data []byte) error {
	if bytes.Equal(data, []byte("null")) {
		return nil
	}
	if len(data) < 2 || data[0] != '"' || data[len(data)-1] != '"' {
		return fmt.Errorf("published_date must be a string in YYYY-MM-DD format")
	}
	t, err := time.Parse(dateLayout, string(data[1:len(data)-1]))
	if err != nil {
		return fmt.Errorf("published_date must be in YYYY-MM-DD format")
	}
	d.Time = t
	return nil
}

func (d Date) String() string {
	return d.Time.Format(dateLayout)
}

// Book represents a catalogue entry
type Book struct {
	ID            int64   `json:"id"`
	Title         string  `json:"title"`
	Author        string  `json:"author"`
	ISBN          string  `json:"isbn"` // Normalized: digits only, optional trailing X for ISBN-10
	PublishedDate Date    `json:"published_date"`
	Description   *string `json:"description"`
	CreatedBy     *int64  `json:"created_by"` // Nullable for books that predate ownership
}

// IsOwnedBy reports whether the user created the book
func (b *Book) IsOwnedBy(u *User) bool {
	return b.CreatedBy != nil && u != nil && *b.CreatedBy == u.ID
}

// CreateBookRequest is the body of POST /books
type CreateBookRequest struct {
	Title         string  `json:"title" binding:"required,min=1,max=255"`
	Author        string  `json:"author" binding:"required,min=1,max=255"`
	ISBN          string  `json:"isbn" binding:"required,isbn"`
	PublishedDate *Date   `json:"published_date" binding:"required"`
	Description   *string `json:"description"`
}

// UpdateBookRequest is the body of PUT /books/:id; only fields present in the
// body are applied. Description may be cleared with an explicit null.
type UpdateBookRequest struct {
	Title         *string          `json:"title,omitempty" binding:"omitempty,min=1,max=255"`
	Author        *string          `json:"author,omitempty" binding:"omitempty,min=1,max=255"`
	ISBN          *string          `json:"isbn,omitempty" binding:"omitempty,isbn"`
	PublishedDate *Date            `json:"published_date,omitempty"`
	Description   Optional[string] `json:"description"`
}
