package repository

import (
	"context"
	"strings"
	"time"

	"quad/internal/models"

	"gorm.io/gorm"
)

// BookFilter narrows library searches. Zero values match everything.
type BookFilter struct {
	Query     string
	Course    string
	Available *bool
	OwnerID   uint
	Limit     int
	Offset    int
}

// BookRepository defines persistence operations for the shared library.
type BookRepository interface {
	Create(ctx context.Context, book *models.Book) error
	GetByID(ctx context.Context, id uint) (*models.Book, error)
	Search(ctx context.Context, f BookFilter) ([]models.Book, int64, error)
	Update(ctx context.Context, book *models.Book) error
	SetCover(ctx context.Context, bookID uint, hash string) error
	Delete(ctx context.Context, id uint) error
	Borrow(ctx context.Context, loan *models.BookLoan) error
	OpenLoan(ctx context.Context, bookID uint) (*models.BookLoan, error)
	Return(ctx context.Context, loan *models.BookLoan) error
	LoansByBorrower(ctx context.Context, borrowerID uint, openOnly bool) ([]models.BookLoan, error)
}

type bookRepository struct {
	db *gorm.DB
}

// NewBookRepository creates a new book repository
func NewBookRepository(db *gorm.DB) BookRepository {
	return &bookRepository{db: db}
}

func (r *bookRepository) Create(ctx context.Context, book *models.Book) error {
	return translateError(r.db.WithContext(ctx).Omit("Owner").Create(book).Error, "Book", book.Title)
}

func (r *bookRepository) GetByID(ctx context.Context, id uint) (*models.Book, error) {
	var book models.Book
	if err := r.db.WithContext(ctx).Preload("Owner").First(&book, id).Error; err != nil {
		return nil, translateError(err, "Book", id)
	}
	return &book, nil
}

func (r *bookRepository) Search(ctx context.Context, f BookFilter) ([]models.Book, int64, error) {
	limit, offset := clampPage(f.Limit, f.Offset, 20)

	filter := func(q *gorm.DB) *gorm.DB {
		if term := strings.ToLower(strings.TrimSpace(f.Query)); term != "" {
			pattern := "%" + term + "%"
			q = q.Where("LOWER(title) LIKE ? OR LOWER(author) LIKE ? OR isbn = ? OR LOWER(course_code) LIKE ?",
				pattern, pattern, strings.ReplaceAll(term, "-", ""), pattern)
		}
		if f.Course != "" {
			q = q.Where("LOWER(course_code) = ?", strings.ToLower(f.Course))
		}
		if f.Available != nil {
			q = q.Where("available = ?", *f.Available)
		}
		if f.OwnerID != 0 {
			q = q.Where("owner_id = ?", f.OwnerID)
		}
		return q
	}

	var total int64
	if err := r.db.WithContext(ctx).Model(&models.Book{}).Scopes(filter).Count(&total).Error; err != nil {
		return nil, 0, models.NewInternalError(err)
	}

	var books []models.Book
	if err := r.db.WithContext(ctx).
		Scopes(filter).
		Preload("Owner").
		Order("title asc").
		Order("id asc").
		Limit(limit).
		Offset(offset).
		Find(&books).Error; err != nil {
		return nil, 0, models.NewInternalError(err)
	}
	return books, total, nil
}

func (r *bookRepository) Update(ctx context.Context, book *models.Book) error {
	if err := r.db.WithContext(ctx).
		Model(book).
		Select("title", "author", "isbn", "course_code", "description", "condition").
		Updates(book).Error; err != nil {
		return translateError(err, "Book", book.ID)
	}
	return nil
}

func (r *bookRepository) SetCover(ctx context.Context, bookID uint, hash string) error {
	if err := r.db.WithContext(ctx).
		Model(&models.Book{}).
		Where("id = ?", bookID).
		Update("cover_hash", hash).Error; err != nil {
		return models.NewInternalError(err)
	}
	return nil
}

func (r *bookRepository) Delete(ctx context.Context, id uint) error {
	if err := r.db.WithContext(ctx).Delete(&models.Book{}, id).Error; err != nil {
		return models.NewInternalError(err)
	}
	return nil
}

// Borrow flips the book to unavailable and records the loan in one
// transaction. A book that is already out yields a conflict.
func (r *bookRepository) Borrow(ctx context.Context, loan *models.BookLoan) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&models.Book{}).
			Where("id = ? AND available = ?", loan.BookID, true).
			Update("available", false)
		if res.Error != nil {
			return models.NewInternalError(res.Error)
		}
		if res.RowsAffected == 0 {
			return models.NewConflictError("book is not available")
		}
		if err := tx.Omit("Book", "Borrower").Create(loan).Error; err != nil {
			return models.NewInternalError(err)
		}
		return nil
	})
	return err
}

// OpenLoan returns the unreturned loan for a book, or nil.
func (r *bookRepository) OpenLoan(ctx context.Context, bookID uint) (*models.BookLoan, error) {
	var loans []models.BookLoan
	if err := r.db.WithContext(ctx).
		Where("book_id = ? AND returned_at IS NULL", bookID).
		Limit(1).
		Find(&loans).Error; err != nil {
		return nil, models.NewInternalError(err)
	}
	if len(loans) == 0 {
		return nil, nil
	}
	return &loans[0], nil
}

func (r *bookRepository) Return(ctx context.Context, loan *models.BookLoan) error {
	now := time.Now()
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&models.BookLoan{}).
			Where("id = ? AND returned_at IS NULL", loan.ID).
			Update("returned_at", now).Error; err != nil {
			return err
		}
		return tx.Model(&models.Book{}).
			Where("id = ?", loan.BookID).
			Update("available", true).Error
	})
	if err != nil {
		return models.NewInternalError(err)
	}
	loan.ReturnedAt = &now
	return nil
}

func (r *bookRepository) LoansByBorrower(ctx context.Context, borrowerID uint, openOnly bool) ([]models.BookLoan, error) {
	q := r.db.WithContext(ctx).Where("borrower_id = ?", borrowerID)
	if openOnly {
		q = q.Where("returned_at IS NULL")
	}
	var loans []models.BookLoan
	if err := q.Preload("Book").
		Order("due_at asc").
		Find(&loans).Error; err != nil {
		return nil, models.NewInternalError(err)
	}
	return loans, nil
}
