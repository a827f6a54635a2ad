// Package intake validates user-selected plate photos before they enter a
// session.
package intake

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/menta2k/plate-roaster/pkg/handle"
	"github.com/menta2k/plate-roaster/pkg/processing"
	"github.com/menta2k/plate-roaster/pkg/types"
)

// UnsupportedTypeMessage is shown when a file of the wrong type is picked
const UnsupportedTypeMessage = "Please upload a JPG, PNG, or HEIC image."

var (
	// ErrUnsupportedType is returned for files outside the accepted MIME types.
	ErrUnsupportedType = errors.New("intake: unsupported image type")
	// ErrEmpty is returned for zero-length files.
	ErrEmpty = errors.New("intake: empty file")
	// ErrTooLarge is returned for files above the size limit.
	ErrTooLarge = errors.New("intake: file too large")
)

// Config holds intake limits
type Config struct {
	AcceptedTypes []string
	MinImageSize  int
	MaxBytes      int64
}

// DefaultConfig accepts JPEG, PNG, HEIC/HEIF and WebP up to 25 MiB
func DefaultConfig() Config {
	return Config{
		AcceptedTypes: []string{"image/jpeg", "image/png", "image/heic", "image/heif", "image/webp"},
		MinImageSize:  32,
		MaxBytes:      25 << 20,
	}
}

// Intake turns selected files into plate photos with a preview handle
type Intake struct {
	config    Config
	processor *processing.Processor
	handles   *handle.Store
}

// New creates an intake with default limits
func New(processor *processing.Processor, handles *handle.Store) *Intake {
	return NewWithConfig(DefaultConfig(), processor, handles)
}

// NewWithConfig creates an intake with custom limits
func NewWithConfig(config Config, processor *processing.Processor, handles *handle.Store) *Intake {
	return &Intake{config: config, processor: processor, handles: handles}
}

// DetectType sniffs the MIME type of data, using the file name only when
// the content is not recognized.
func DetectType(name string, data []byte) string {
	if processing.IsHEIF(data) {
		if strings.EqualFold(filepath.Ext(name), ".heif") {
			return "image/heif"
		}
		return "image/heic"
	}

	sniffed := http.DetectContentType(data)
	if strings.HasPrefix(sniffed, "image/") {
		return sniffed
	}

	if byExt := mime.TypeByExtension(strings.ToLower(filepath.Ext(name))); byExt != "" {
		if mt, _, err := mime.ParseMediaType(byExt); err == nil {
			return mt
		}
	}
	return sniffed
}

// Accepts reports whether mimeType is one of the accepted types
func (in *Intake) Accepts(mimeType string) bool {
	for _, t := range in.config.AcceptedTypes {
		if strings.EqualFold(t, mimeType) {
			return true
		}
	}
	return false
}

// FromFile reads and validates a photo from disk
func (in *Intake) FromFile(ctx context.Context, path string) (types.Photo, error) {
	f, err := os.Open(path)
	if err != nil {
		return types.Photo{}, fmt.Errorf("failed to open image file: %w", err)
	}
	defer f.Close()
	return in.FromReader(ctx, filepath.Base(path), f)
}

// FromReader reads and validates a photo, refusing input above MaxBytes
func (in *Intake) FromReader(ctx context.Context, name string, r io.Reader) (types.Photo, error) {
	if in.config.MaxBytes > 0 {
		r = io.LimitReader(r, in.config.MaxBytes+1)
	}
	var buf bytes.Buffer
	if _, err := buf.ReadFrom(r); err != nil {
		return types.Photo{}, fmt.Errorf("failed to read image: %w", err)
	}
	return in.FromBytes(ctx, name, buf.Bytes())
}

// FromBytes validates data and registers a preview handle for it. The
// original bytes are kept; compression happens right before upload.
func (in *Intake) FromBytes(ctx context.Context, name string, data []byte) (types.Photo, error) {
	if err := ctx.Err(); err != nil {
		return types.Photo{}, err
	}
	if len(data) == 0 {
		return types.Photo{}, ErrEmpty
	}
	if in.config.MaxBytes > 0 && int64(len(data)) > in.config.MaxBytes {
		return types.Photo{}, fmt.Errorf("%w: %d bytes (maximum: %d)", ErrTooLarge, len(data), in.config.MaxBytes)
	}

	mimeType := DetectType(name, data)
	if !in.Accepts(mimeType) {
		return types.Photo{}, fmt.Errorf("%w: %s", ErrUnsupportedType, mimeType)
	}

	img, err := in.processor.Decode(data)
	if err != nil {
		return types.Photo{}, err
	}

	b := img.Bounds()
	if b.Dx() < in.config.MinImageSize || b.Dy() < in.config.MinImageSize {
		return types.Photo{}, fmt.Errorf("image too small: %dx%d (minimum: %d)",
			b.Dx(), b.Dy(), in.config.MinImageSize)
	}

	photo := types.Photo{
		Name:     name,
		MimeType: mimeType,
		Data:     data,
		Width:    b.Dx(),
		Height:   b.Dy(),
	}
	if in.handles != nil {
		photo.Handle = in.handles.Create(data, mimeType)
	}
	return photo, nil
}

// UserMessage maps an intake or decode failure to the text shown to the user
func UserMessage(err error) string {
	switch {
	case errors.Is(err, ErrUnsupportedType):
		return UnsupportedTypeMessage
	case errors.Is(err, processing.ErrUnsupportedFormat):
		return sentence(processing.ErrUnsupportedFormat.Error())
	case errors.Is(err, processing.ErrDecode):
		return sentence(processing.ErrDecode.Error())
	case errors.Is(err, ErrTooLarge):
		return "This photo is too large, please pick a smaller one."
	}
	return "Could not use this photo, please try another one."
}

func sentence(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:] + "."
}
