package service

import (
	"bytes"
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	_ "image/gif" // Register GIF decoder
	"image/jpeg"
	_ "image/png" // Register PNG decoder
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"quad/internal/config"
	"quad/internal/models"

	"github.com/chai2010/webp"
	xdraw "golang.org/x/image/draw"
	_ "golang.org/x/image/webp" // Register WebP decoder
)

const (
	DefaultCoverUploadDir       = "/tmp/quad/uploads/covers"
	DefaultCoverMaxUploadSizeMB = 5
	CoverMaxWidth               = 600
	CoverMaxHeight              = 900
	CoverJPEGQuality            = 82
	CoverWebPQuality            = 70
)

// Cover formats served from disk.
const (
	CoverFormatJPEG = "jpg"
	CoverFormatWebP = "webp"
)

// CoverStore normalizes uploaded book covers and stores them on disk.
type CoverStore struct {
	uploadDir          string
	maxUploadSizeBytes int64
}

// NewCoverStore returns a CoverStore configured from cfg; nil cfg uses defaults.
func NewCoverStore(cfg *config.Config) *CoverStore {
	uploadDir := DefaultCoverUploadDir
	maxUploadSizeMB := DefaultCoverMaxUploadSizeMB
	if cfg != nil {
		if cfg.CoverUploadDir != "" {
			uploadDir = cfg.CoverUploadDir
		}
		if cfg.CoverMaxUploadSizeMB > 0 {
			maxUploadSizeMB = cfg.CoverMaxUploadSizeMB
		}
	}
	return &CoverStore{
		uploadDir:          uploadDir,
		maxUploadSizeBytes: int64(maxUploadSizeMB) * 1024 * 1024,
	}
}

// MaxUploadSizeBytes is the largest accepted upload.
func (s *CoverStore) MaxUploadSizeBytes() int64 {
	return s.maxUploadSizeBytes
}

// Store decodes content, resizes it to fit the cover box and writes a WebP and
// a JPEG rendition. It returns the content hash naming both files.
func (s *CoverStore) Store(bookID uint, content []byte) (string, error) {
	if len(content) == 0 {
		return "", models.NewValidationError("No file uploaded")
	}
	if int64(len(content)) > s.maxUploadSizeBytes {
		return "", models.NewTooLargeError(fmt.Sprintf("File too large (max %dMB)", s.maxUploadSizeBytes/(1024*1024)))
	}
	if !isAllowedImageMIME(http.DetectContentType(content)) {
		return "", models.NewValidationError("Invalid image type")
	}

	decoded, _, err := image.Decode(bytes.NewReader(content))
	if err != nil {
		return "", models.NewValidationError("Invalid image file")
	}
	cover := resizeToFit(decoded, CoverMaxWidth, CoverMaxHeight)

	jpg, err := encodeJPEG(cover, CoverJPEGQuality)
	if err != nil {
		return "", models.NewInternalError(err)
	}
	wp, err := encodeWebP(cover, CoverWebPQuality)
	if err != nil {
		return "", models.NewInternalError(err)
	}

	hash := coverHash(bookID, content)
	jpgPath := s.path(hash, CoverFormatJPEG)
	webpPath := s.path(hash, CoverFormatWebP)
	if err := writeBytesToFile(jpgPath, jpg); err != nil {
		return "", models.NewInternalError(err)
	}
	if err := writeBytesToFile(webpPath, wp); err != nil {
		_ = os.Remove(jpgPath)
		return "", models.NewInternalError(err)
	}
	return hash, nil
}

// Resolve returns the on-disk path for a stored cover rendition.
func (s *CoverStore) Resolve(hash, format string) (string, error) {
	if !isValidCoverHash(hash) {
		return "", models.NewValidationError("Invalid cover hash")
	}
	if format != CoverFormatWebP {
		format = CoverFormatJPEG
	}
	p := s.path(hash, format)
	if _, err := os.Stat(p); err != nil {
		if os.IsNotExist(err) {
			return "", models.NewNotFoundError("Cover", hash)
		}
		return "", models.NewInternalError(err)
	}
	return p, nil
}

// Remove deletes both renditions of a cover.
func (s *CoverStore) Remove(hash string) {
	if !isValidCoverHash(hash) {
		return
	}
	_ = os.Remove(s.path(hash, CoverFormatJPEG))
	_ = os.Remove(s.path(hash, CoverFormatWebP))
}

func (s *CoverStore) path(hash, format string) string {
	return filepath.Join(s.uploadDir, hash+"."+format)
}

func coverHash(bookID uint, content []byte) string {
	h := sha256.New()
	var id [8]byte
	binary.BigEndian.PutUint64(id[:], uint64(bookID))
	h.Write(id[:])
	h.Write(content)
	return hex.EncodeToString(h.Sum(nil))
}

// isValidCoverHash accepts lowercase sha256 hex only, which keeps paths inside the upload dir.
func isValidCoverHash(hash string) bool {
	if len(hash) != sha256.Size*2 {
		return false
	}
	for _, c := range hash {
		if (c < '0' || c > '9') && (c < 'a' || c > 'f') {
			return false
		}
	}
	return true
}

func resizeToFit(src image.Image, maxWidth, maxHeight int) image.Image {
	bounds := src.Bounds()
	w, h := bounds.Dx(), bounds.Dy()
	if w <= 0 || h <= 0 {
		return src
	}

	scale := 1.0
	if w > maxWidth || h > maxHeight {
		scale = float64(maxWidth) / float64(w)
		if s := float64(maxHeight) / float64(h); s < scale {
			scale = s
		}
	}
	newW := max(int(float64(w)*scale), 1)
	newH := max(int(float64(h)*scale), 1)

	// Transparent sources are flattened onto white so the JPEG stays readable.
	dst := image.NewRGBA(image.Rect(0, 0, newW, newH))
	draw.Draw(dst, dst.Bounds(), image.NewUniform(color.White), image.Point{}, draw.Src)
	xdraw.CatmullRom.Scale(dst, dst.Bounds(), src, bounds, xdraw.Over, nil)
	return dst
}

func encodeJPEG(img image.Image, quality int) ([]byte, error) {
	buf := bytes.NewBuffer(nil)
	if err := jpeg.Encode(buf, img, &jpeg.Options{Quality: quality}); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func encodeWebP(img image.Image, quality int) ([]byte, error) {
	buf := bytes.NewBuffer(nil)
	if err := webp.Encode(buf, img, &webp.Options{Quality: float32(quality)}); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func isAllowedImageMIME(contentType string) bool {
	mediaType := strings.ToLower(strings.TrimSpace(strings.SplitN(contentType, ";", 2)[0]))
	switch mediaType {
	case "image/jpeg", "image/png", "image/gif", "image/webp":
		return true
	default:
		return false
	}
}

func writeBytesToFile(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o600)
}
