package models

import (
	"time"

	"gorm.io/gorm"
)

// BookCondition describes the physical state of a shared book.
type BookCondition string

const (
	BookConditionNew  BookCondition = "new"
	BookConditionGood BookCondition = "good"
	BookConditionFair BookCondition = "fair"
	BookConditionPoor BookCondition = "poor"
)

// LoanPeriod is how long a borrowed book may be kept.
const LoanPeriod = 14 * 24 * time.Hour

// Book is an entry in the shared library.
type Book struct {
	ID          uint           `gorm:"primaryKey" json:"id"`
	OwnerID     uint           `gorm:"not null;index" json:"owner_id"`
	Owner       User           `gorm:"foreignKey:OwnerID" json:"owner"`
	Title       string         `gorm:"not null;index" json:"title"`
	Author      string         `gorm:"not null" json:"author"`
	ISBN        string         `gorm:"size:13;index" json:"isbn,omitempty"`
	CourseCode  string         `gorm:"size:32;index" json:"course_code,omitempty"`
	Description string         `gorm:"type:text" json:"description,omitempty"`
	Condition   BookCondition  `gorm:"type:varchar(10);default:'good'" json:"condition"`
	CoverHash   string         `gorm:"size:64" json:"cover_hash,omitempty"`
	Available   bool           `gorm:"default:true;index" json:"available"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
	DeletedAt   gorm.DeletedAt `gorm:"index" json:"-"`
}

// BookLoan records one borrowing of a book.
type BookLoan struct {
	ID         uint       `gorm:"primaryKey" json:"id"`
	BookID     uint       `gorm:"not null;index" json:"book_id"`
	Book       *Book      `gorm:"foreignKey:BookID" json:"book,omitempty"`
	BorrowerID uint       `gorm:"not null;index" json:"borrower_id"`
	Borrower   User       `gorm:"foreignKey:BorrowerID" json:"borrower"`
	DueAt      time.Time  `json:"due_at"`
	ReturnedAt *time.Time `json:"returned_at,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
}

// Open reports whether the loan has not been returned yet.
func (l *BookLoan) Open() bool {
	return l.ReturnedAt == nil
}
