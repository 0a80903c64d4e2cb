package server

import (
	"io"
	"strconv"
	"strings"

	"quad/internal/models"
	"quad/internal/repository"
	"quad/internal/service"

	"github.com/gofiber/fiber/v2"
)

type bookRequest struct {
	Title       string `json:"title"`
	Author      string `json:"author"`
	ISBN        string `json:"isbn"`
	CourseCode  string `json:"course_code"`
	Description string `json:"description"`
	Condition   string `json:"condition"`
}

func (r bookRequest) input() service.BookInput {
	return service.BookInput{
		Title:       r.Title,
		Author:      r.Author,
		ISBN:        r.ISBN,
		CourseCode:  r.CourseCode,
		Description: r.Description,
		Condition:   r.Condition,
	}
}

// GetBooks handles GET /api/library/books
// @Summary Search the library
// @Tags library
// @Produce json
// @Param q query string false "Matches title, author or ISBN"
// @Param course query string false "Course code"
// @Param available query bool false "Availability filter"
// @Param owner query int false "Owner ID"
// @Param limit query int false "Page size"
// @Param offset query int false "Offset"
// @Success 200 {object} service.BookPage
// @Router /library/books [get]
func (s *Server) GetBooks(c *fiber.Ctx) error {
	page := parsePagination(c, defaultPageSize)
	filter := repository.BookFilter{
		Query:   strings.TrimSpace(c.Query("q")),
		Course:  strings.TrimSpace(c.Query("course")),
		OwnerID: uint(c.QueryInt("owner", 0)),
		Limit:   page.Limit,
		Offset:  page.Offset,
	}
	if raw := c.Query("available"); raw != "" {
		v, err := strconv.ParseBool(raw)
		if err != nil {
			return models.RespondWithError(c, fiber.StatusBadRequest,
				models.NewValidationError("available must be true or false"))
		}
		filter.Available = &v
	}

	result, err := s.library.Search(c.UserContext(), filter)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(result)
}

// GetBook handles GET /api/library/books/:id
func (s *Server) GetBook(c *fiber.Ctx) error {
	id, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}
	book, err := s.library.GetBook(c.UserContext(), id)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(book)
}

// CreateBook handles POST /api/library/books
// @Summary Add a book to the library
// @Description ISBN, when given, must be a valid ISBN-10 or ISBN-13
// @Tags library
// @Security BearerAuth
// @Accept json
// @Produce json
// @Param request body bookRequest true "Book"
// @Success 201 {object} models.Book
// @Failure 400 {object} models.ErrorResponse
// @Router /library/books [post]
func (s *Server) CreateBook(c *fiber.Ctx) error {
	var req bookRequest
	if err := bindJSON(c, &req); err != nil {
		return nil
	}
	book, err := s.library.CreateBook(c.UserContext(), currentUserID(c), req.input())
	if err != nil {
		return respondError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(book)
}

// UpdateBook handles PUT /api/library/books/:id
func (s *Server) UpdateBook(c *fiber.Ctx) error {
	id, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}
	var req bookRequest
	if err := bindJSON(c, &req); err != nil {
		return nil
	}
	book, err := s.library.UpdateBook(c.UserContext(), currentUserID(c), id, req.input())
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(book)
}

// DeleteBook handles DELETE /api/library/books/:id
func (s *Server) DeleteBook(c *fiber.Ctx) error {
	id, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}
	if err := s.library.DeleteBook(c.UserContext(), currentUserID(c), id); err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{"message": "Book deleted"})
}

// BorrowBook handles POST /api/library/books/:id/borrow
// @Summary Borrow a book
// @Tags library
// @Security BearerAuth
// @Param id path int true "Book ID"
// @Success 201 {object} models.BookLoan
// @Failure 409 {object} models.ErrorResponse "Book is not available"
// @Router /library/books/{id}/borrow [post]
func (s *Server) BorrowBook(c *fiber.Ctx) error {
	id, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}
	loan, err := s.library.Borrow(c.UserContext(), currentUserID(c), id)
	if err != nil {
		return respondError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(loan)
}

// ReturnBook handles POST /api/library/books/:id/return
func (s *Server) ReturnBook(c *fiber.Ctx) error {
	id, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}
	loan, err := s.library.Return(c.UserContext(), currentUserID(c), id)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(loan)
}

// GetMyLoans handles GET /api/library/loans/me?open=true
func (s *Server) GetMyLoans(c *fiber.Ctx) error {
	loans, err := s.library.MyLoans(c.UserContext(), currentUserID(c), c.QueryBool("open", false))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(loans)
}

// UploadCover handles POST /api/library/books/:id/cover (multipart field "cover")
// @Summary Upload a book cover
// @Description Accepts jpeg, png, gif or webp. Stored as JPEG and WebP renditions.
// @Tags library
// @Security BearerAuth
// @Accept multipart/form-data
// @Param id path int true "Book ID"
// @Param cover formData file true "Cover image"
// @Success 200 {object} models.Book
// @Router /library/books/{id}/cover [post]
func (s *Server) UploadCover(c *fiber.Ctx) error {
	id, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}

	file, err := c.FormFile("cover")
	if err != nil {
		return models.RespondWithError(c, fiber.StatusBadRequest, models.NewValidationError("No file uploaded"))
	}
	if file.Size > s.covers.MaxUploadSizeBytes() {
		return respondError(c, models.NewTooLargeError("Cover image is too large"))
	}

	src, err := file.Open()
	if err != nil {
		return models.RespondWithError(c, fiber.StatusBadRequest, models.NewValidationError("Unable to read uploaded file"))
	}
	defer func() { _ = src.Close() }()

	content, err := io.ReadAll(src)
	if err != nil {
		return models.RespondWithError(c, fiber.StatusBadRequest, models.NewValidationError("Unable to read uploaded file"))
	}

	book, err := s.library.UploadCover(c.UserContext(), currentUserID(c), id, content)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(book)
}

// GetCover handles GET /api/library/covers/:hash?format=webp
func (s *Server) GetCover(c *fiber.Ctx) error {
	hash := strings.ToLower(strings.TrimSpace(c.Params("hash")))
	format := c.Query("format", service.CoverFormatJPEG)

	path, err := s.library.CoverPath(hash, format)
	if err != nil {
		return respondError(c, err)
	}
	c.Set(fiber.HeaderCacheControl, "public, max-age=31536000, immutable")
	return c.SendFile(path)
}
