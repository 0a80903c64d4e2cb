package service

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"os"
	"path/filepath"
	"testing"
	"time"

	"quad/internal/config"
	"quad/internal/models"
	"quad/internal/repository"
	"quad/internal/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLibraryService_CreateBookValidation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	ada := testutil.CreateUser(t, f.db, "ada")

	tests := []struct {
		name string
		in   BookInput
	}{
		{"missing title", BookInput{Author: "Knuth"}},
		{"missing author", BookInput{Title: "TAOCP"}},
		{"bad isbn checksum", BookInput{Title: "TAOCP", Author: "Knuth", ISBN: "978-0-201-89683-2"}},
		{"unknown condition", BookInput{Title: "TAOCP", Author: "Knuth", Condition: "mint"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.library.CreateBook(ctx, ada.ID, tt.in)
			requireCode(t, err, models.CodeValidation)
		})
	}

	book, err := f.library.CreateBook(ctx, ada.ID, BookInput{
		Title:      "The Art of Computer Programming",
		Author:     "Donald Knuth",
		ISBN:       "978-0-201-89683-1",
		CourseCode: "cs101",
	})
	require.NoError(t, err)
	assert.Equal(t, "9780201896831", book.ISBN)
	assert.Equal(t, "CS101", book.CourseCode)
	assert.Equal(t, models.BookConditionGood, book.Condition)
	assert.True(t, book.Available)
	assert.Equal(t, "ada", book.Owner.Username)
}

func TestLibraryService_LoanLifecycle(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	owner := testutil.CreateUser(t, f.db, "owner")
	reader := testutil.CreateUser(t, f.db, "reader")
	other := testutil.CreateUser(t, f.db, "other")

	fixed := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	f.library.now = func() time.Time { return fixed }

	book, err := f.library.CreateBook(ctx, owner.ID, BookInput{Title: "Calculus", Author: "Spivak"})
	require.NoError(t, err)

	_, err = f.library.Borrow(ctx, owner.ID, book.ID)
	requireCode(t, err, models.CodeValidation)

	loan, err := f.library.Borrow(ctx, reader.ID, book.ID)
	require.NoError(t, err)
	assert.True(t, loan.DueAt.Equal(fixed.Add(models.LoanPeriod)))
	assert.False(t, loan.Book.Available)

	_, err = f.library.Borrow(ctx, other.ID, book.ID)
	requireCode(t, err, models.CodeConflict)

	list, err := f.notifications.List(ctx, owner.ID, true, 10, 0)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, models.NotificationLoan, list[0].Type)

	err = f.library.DeleteBook(ctx, owner.ID, book.ID)
	requireCode(t, err, models.CodeConflict)

	_, err = f.library.Return(ctx, other.ID, book.ID)
	requireCode(t, err, models.CodeForbidden)

	loans, err := f.library.MyLoans(ctx, reader.ID, true)
	require.NoError(t, err)
	require.Len(t, loans, 1)

	returned, err := f.library.Return(ctx, reader.ID, book.ID)
	require.NoError(t, err)
	assert.NotNil(t, returned.ReturnedAt)

	_, err = f.library.Return(ctx, reader.ID, book.ID)
	requireCode(t, err, models.CodeConflict)

	available := true
	page, err := f.library.Search(ctx, repository.BookFilter{Query: "calc", Available: &available})
	require.NoError(t, err)
	require.Len(t, page.Books, 1)
	assert.Equal(t, int64(1), page.Total)

	require.NoError(t, f.library.DeleteBook(ctx, owner.ID, book.ID))
}

func TestLibraryService_UpdatePermissions(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	owner := testutil.CreateUser(t, f.db, "owner")
	stranger := testutil.CreateUser(t, f.db, "stranger")
	admin := testutil.CreateUser(t, f.db, "root")
	makeAdmin(t, f.db, admin.ID)

	book, err := f.library.CreateBook(ctx, owner.ID, BookInput{Title: "Linear Algebra", Author: "Axler"})
	require.NoError(t, err)

	_, err = f.library.UpdateBook(ctx, stranger.ID, book.ID, BookInput{Title: "Mine now", Author: "Axler"})
	requireCode(t, err, models.CodeForbidden)

	updated, err := f.library.UpdateBook(ctx, admin.ID, book.ID, BookInput{Title: "Linear Algebra Done Right", Author: "Axler", Condition: "fair"})
	require.NoError(t, err)
	assert.Equal(t, models.BookConditionFair, updated.Condition)
}

func testImage(t *testing.T, w, h int, encode func(*bytes.Buffer, image.Image) error) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{R: uint8(x), G: uint8(y), B: 120, A: 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, encode(&buf, img))
	return buf.Bytes()
}

func TestCoverStore_StoreResizesAndWritesBothFormats(t *testing.T) {
	dir := t.TempDir()
	store := NewCoverStore(&config.Config{CoverUploadDir: dir})

	content := testImage(t, 1200, 1200, func(b *bytes.Buffer, img image.Image) error { return png.Encode(b, img) })
	hash, err := store.Store(7, content)
	require.NoError(t, err)
	assert.Len(t, hash, 64)
	assert.Equal(t, coverHash(7, content), hash)
	assert.NotEqual(t, coverHash(8, content), hash, "hash is bound to the book")

	jpgPath, err := store.Resolve(hash, CoverFormatJPEG)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, hash+".jpg"), jpgPath)
	webpPath, err := store.Resolve(hash, CoverFormatWebP)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, hash+".webp"), webpPath)

	f, err := os.Open(jpgPath)
	require.NoError(t, err)
	defer f.Close()
	cfg, err := jpeg.DecodeConfig(f)
	require.NoError(t, err)
	assert.Equal(t, 600, cfg.Width)
	assert.Equal(t, 600, cfg.Height)

	store.Remove(hash)
	_, err = store.Resolve(hash, CoverFormatJPEG)
	requireCode(t, err, models.CodeNotFound)
}

func TestCoverStore_Rejects(t *testing.T) {
	store := NewCoverStore(&config.Config{CoverUploadDir: t.TempDir(), CoverMaxUploadSizeMB: 1})

	_, err := store.Store(1, nil)
	requireCode(t, err, models.CodeValidation)

	_, err = store.Store(1, []byte("plain text, not an image"))
	requireCode(t, err, models.CodeValidation)

	_, err = store.Store(1, make([]byte, 2*1024*1024))
	requireCode(t, err, models.CodeValidation)

	_, err = store.Resolve("../../etc/passwd", CoverFormatJPEG)
	requireCode(t, err, models.CodeValidation)
}

func TestLibraryService_UploadCover(t *testing.T) {
	f := newFixture(t)
	f.library.covers = NewCoverStore(&config.Config{CoverUploadDir: t.TempDir()})
	ctx := context.Background()
	owner := testutil.CreateUser(t, f.db, "owner")
	stranger := testutil.CreateUser(t, f.db, "stranger")

	book, err := f.library.CreateBook(ctx, owner.ID, BookInput{Title: "Topology", Author: "Munkres"})
	require.NoError(t, err)

	content := testImage(t, 300, 450, func(b *bytes.Buffer, img image.Image) error {
		return jpeg.Encode(b, img, &jpeg.Options{Quality: 90})
	})

	_, err = f.library.UploadCover(ctx, stranger.ID, book.ID, content)
	requireCode(t, err, models.CodeForbidden)

	updated, err := f.library.UploadCover(ctx, owner.ID, book.ID, content)
	require.NoError(t, err)
	require.NotEmpty(t, updated.CoverHash)

	stored, err := f.library.GetBook(ctx, book.ID)
	require.NoError(t, err)
	assert.Equal(t, updated.CoverHash, stored.CoverHash)

	_, err = f.library.CoverPath(updated.CoverHash, "webp")
	require.NoError(t, err)
}
