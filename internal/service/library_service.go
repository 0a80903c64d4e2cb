package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"quad/internal/models"
	"quad/internal/repository"
	"quad/internal/validation"
)

const (
	maxBookTitleLen       = 255
	maxBookAuthorLen      = 255
	maxBookDescriptionLen = 5000
	maxCourseCodeLen      = 32
	bookTarget            = "book"
)

// LibraryService runs the shared book library and its loans.
type LibraryService struct {
	bookRepo      repository.BookRepository
	userRepo      repository.UserRepository
	notifications *NotificationService
	covers        *CoverStore
	now           func() time.Time
}

// BookInput carries the editable fields of a book.
type BookInput struct {
	Title       string
	Author      string
	ISBN        string
	CourseCode  string
	Description string
	Condition   string
}

// BookPage is one page of a book search.
type BookPage struct {
	Books []models.Book  `json:"books"`
	Total int64          `json:"total"`
	Page  PageParameters `json:"page"`
}

func NewLibraryService(
	bookRepo repository.BookRepository,
	userRepo repository.UserRepository,
	notifications *NotificationService,
	covers *CoverStore,
) *LibraryService {
	return &LibraryService{
		bookRepo:      bookRepo,
		userRepo:      userRepo,
		notifications: notifications,
		covers:        covers,
		now:           time.Now,
	}
}

func (s *LibraryService) Search(ctx context.Context, f repository.BookFilter) (*BookPage, error) {
	books, total, err := s.bookRepo.Search(ctx, f)
	if err != nil {
		return nil, err
	}
	return &BookPage{Books: books, Total: total, Page: PageParameters{Limit: f.Limit, Offset: f.Offset}}, nil
}

func (s *LibraryService) GetBook(ctx context.Context, id uint) (*models.Book, error) {
	return s.bookRepo.GetByID(ctx, id)
}

// CreateBook validates in and adds the book under ownerID.
func (s *LibraryService) CreateBook(ctx context.Context, ownerID uint, in BookInput) (*models.Book, error) {
	book := &models.Book{OwnerID: ownerID, Available: true}
	if err := applyBookInput(book, in); err != nil {
		return nil, err
	}
	if err := s.bookRepo.Create(ctx, book); err != nil {
		return nil, err
	}
	return s.bookRepo.GetByID(ctx, book.ID)
}

// UpdateBook replaces the editable fields; owner or admin only.
func (s *LibraryService) UpdateBook(ctx context.Context, userID, bookID uint, in BookInput) (*models.Book, error) {
	book, err := s.ownedBook(ctx, userID, bookID, "You can only edit your own books")
	if err != nil {
		return nil, err
	}
	if err := applyBookInput(book, in); err != nil {
		return nil, err
	}
	if err := s.bookRepo.Update(ctx, book); err != nil {
		return nil, err
	}
	return book, nil
}

// DeleteBook removes a book that is not on loan; owner or admin only.
func (s *LibraryService) DeleteBook(ctx context.Context, userID, bookID uint) error {
	book, err := s.ownedBook(ctx, userID, bookID, "You can only delete your own books")
	if err != nil {
		return err
	}
	loan, err := s.bookRepo.OpenLoan(ctx, bookID)
	if err != nil {
		return err
	}
	if loan != nil {
		return models.NewConflictError("Book is currently on loan")
	}
	if err := s.bookRepo.Delete(ctx, bookID); err != nil {
		return err
	}
	if s.covers != nil && book.CoverHash != "" {
		s.covers.Remove(book.CoverHash)
	}
	return nil
}

// Borrow lends the book to userID for LoanPeriod and notifies the owner.
func (s *LibraryService) Borrow(ctx context.Context, userID, bookID uint) (*models.BookLoan, error) {
	book, err := s.bookRepo.GetByID(ctx, bookID)
	if err != nil {
		return nil, err
	}
	if book.OwnerID == userID {
		return nil, models.NewValidationError("You cannot borrow your own book")
	}
	if !book.Available {
		return nil, models.NewConflictError("Book is not available")
	}

	loan := &models.BookLoan{
		BookID:     bookID,
		BorrowerID: userID,
		DueAt:      s.now().Add(models.LoanPeriod).UTC(),
	}
	if err := s.bookRepo.Borrow(ctx, loan); err != nil {
		return nil, err
	}
	book.Available = false
	loan.Book = book

	borrower, _ := s.userRepo.GetByID(ctx, userID)
	s.notifications.notifyQuietly(ctx, &models.Notification{
		RecipientID: book.OwnerID,
		ActorID:     actorPtr(userID),
		Type:        models.NotificationLoan,
		TargetType:  bookTarget,
		TargetID:    bookID,
		Message:     fmt.Sprintf("%s borrowed %q", displayName(borrower), book.Title),
	})
	return loan, nil
}

// Return closes the open loan; allowed for the borrower or the owner.
func (s *LibraryService) Return(ctx context.Context, userID, bookID uint) (*models.BookLoan, error) {
	book, err := s.bookRepo.GetByID(ctx, bookID)
	if err != nil {
		return nil, err
	}
	loan, err := s.bookRepo.OpenLoan(ctx, bookID)
	if err != nil {
		return nil, err
	}
	if loan == nil {
		return nil, models.NewConflictError("Book is not on loan")
	}
	if loan.BorrowerID != userID && book.OwnerID != userID {
		return nil, models.NewForbiddenError("Only the borrower or owner can return this book")
	}
	if err := s.bookRepo.Return(ctx, loan); err != nil {
		return nil, err
	}
	book.Available = true
	loan.Book = book

	if userID != book.OwnerID {
		s.notifications.notifyQuietly(ctx, &models.Notification{
			RecipientID: book.OwnerID,
			ActorID:     actorPtr(userID),
			Type:        models.NotificationLoan,
			TargetType:  bookTarget,
			TargetID:    bookID,
			Message:     fmt.Sprintf("%q was returned", book.Title),
		})
	}
	return loan, nil
}

// MyLoans lists loans taken by userID.
func (s *LibraryService) MyLoans(ctx context.Context, userID uint, openOnly bool) ([]models.BookLoan, error) {
	return s.bookRepo.LoansByBorrower(ctx, userID, openOnly)
}

// UploadCover stores a new cover image and records its hash on the book.
func (s *LibraryService) UploadCover(ctx context.Context, userID, bookID uint, content []byte) (*models.Book, error) {
	book, err := s.ownedBook(ctx, userID, bookID, "You can only change covers of your own books")
	if err != nil {
		return nil, err
	}
	hash, err := s.covers.Store(bookID, content)
	if err != nil {
		return nil, err
	}
	if err := s.bookRepo.SetCover(ctx, bookID, hash); err != nil {
		s.covers.Remove(hash)
		return nil, err
	}
	if book.CoverHash != "" && book.CoverHash != hash {
		s.covers.Remove(book.CoverHash)
	}
	book.CoverHash = hash
	return book, nil
}

// CoverPath resolves a stored cover rendition on disk.
func (s *LibraryService) CoverPath(hash, format string) (string, error) {
	return s.covers.Resolve(hash, format)
}

func (s *LibraryService) ownedBook(ctx context.Context, userID, bookID uint, msg string) (*models.Book, error) {
	book, err := s.bookRepo.GetByID(ctx, bookID)
	if err != nil {
		return nil, err
	}
	if book.OwnerID == userID {
		return book, nil
	}
	admin, err := isAdmin(ctx, s.userRepo, userID)
	if err != nil {
		return nil, err
	}
	if !admin {
		return nil, models.NewForbiddenError(msg)
	}
	return book, nil
}

func applyBookInput(book *models.Book, in BookInput) error {
	title, err := validation.ValidateLength("title", in.Title, 1, maxBookTitleLen)
	if err != nil {
		return models.NewValidationError(err.Error())
	}
	author, err := validation.ValidateLength("author", in.Author, 1, maxBookAuthorLen)
	if err != nil {
		return models.NewValidationError(err.Error())
	}
	description, err := validation.ValidateLength("description", in.Description, 0, maxBookDescriptionLen)
	if err != nil {
		return models.NewValidationError(err.Error())
	}
	course, err := validation.ValidateLength("course code", strings.ToUpper(in.CourseCode), 0, maxCourseCodeLen)
	if err != nil {
		return models.NewValidationError(err.Error())
	}

	isbn := ""
	if strings.TrimSpace(in.ISBN) != "" {
		if isbn, err = validation.ValidateISBN(in.ISBN); err != nil {
			return models.NewValidationError(err.Error())
		}
	}

	condition := models.BookConditionGood
	if in.Condition != "" {
		condition = models.BookCondition(strings.ToLower(in.Condition))
		switch condition {
		case models.BookConditionNew, models.BookConditionGood, models.BookConditionFair, models.BookConditionPoor:
		default:
			return models.NewValidationError("condition must be one of new, good, fair, poor")
		}
	}

	book.Title = title
	book.Author = author
	book.ISBN = isbn
	book.CourseCode = course
	book.Description = description
	book.Condition = condition
	return nil
}
