package processing

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/png"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/chai2010/webp"
	"github.com/disintegration/imaging"
	"github.com/gen2brain/heic"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"

	"github.com/menta2k/plate-roaster/pkg/geometry"
	"github.com/menta2k/plate-roaster/pkg/types"
)

var (
	// ErrDecode is returned when the source bytes are not a readable image.
	ErrDecode = errors.New("could not read this photo, please try a different image")
	// ErrUnsupportedFormat is returned for HEIF containers the decoder cannot read.
	ErrUnsupportedFormat = errors.New("this photo format is not supported, please export it as JPEG or PNG")
	// ErrEncode is returned when re-encoding produces no data.
	ErrEncode = errors.New("failed to encode image")
)

// MimeJPEG is the output format of every compressed or captured image
const MimeJPEG = "image/jpeg"

// Config holds the compression stage parameters
type Config struct {
	MaxDimension int
	Quality      int
}

// Processor handles image processing operations
type Processor struct {
	config Config
	client *http.Client
}

// NewProcessor creates a processor that bounds photos to 1000px at quality 70
func NewProcessor() *Processor {
	return NewProcessorWithConfig(Config{MaxDimension: 1000, Quality: 70})
}

// NewProcessorWithConfig creates a processor with custom compression settings
func NewProcessorWithConfig(config Config) *Processor {
	return &Processor{
		config: config,
		client: &http.Client{Timeout: 30 * time.Second},
	}
}

// Compress decodes an arbitrary photo, bounds its longest edge and re-encodes
// it as JPEG. It never upscales and never returns an empty result.
func (p *Processor) Compress(ctx context.Context, data []byte, name string) (types.Photo, error) {
	if err := ctx.Err(); err != nil {
		return types.Photo{}, err
	}

	img, err := p.Decode(data)
	if err != nil {
		return types.Photo{}, err
	}

	img = p.Downscale(img)

	if err := ctx.Err(); err != nil {
		return types.Photo{}, err
	}

	out, err := EncodeJPEG(img, p.config.Quality)
	if err != nil {
		return types.Photo{}, err
	}

	b := img.Bounds()
	return types.Photo{
		Name:     name,
		MimeType: MimeJPEG,
		Data:     out,
		Width:    b.Dx(),
		Height:   b.Dy(),
	}, nil
}

// Downscale bounds the longest edge of img to the configured maximum
func (p *Processor) Downscale(img image.Image) image.Image {
	b := img.Bounds()
	w, h := geometry.Downscale(b.Dx(), b.Dy(), p.config.MaxDimension)
	if w == b.Dx() && h == b.Dy() {
		return img
	}
	return imaging.Resize(img, w, h, imaging.Lanczos)
}

// Decode reads any registered image format, applying EXIF orientation for
// camera photos, with explicit WebP and HEIC fallbacks.
func (p *Processor) Decode(data []byte) (image.Image, error) {
	if len(data) == 0 {
		return nil, ErrDecode
	}

	if img, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true)); err == nil {
		return img, nil
	}

	if img, err := webp.Decode(bytes.NewReader(data)); err == nil {
		return img, nil
	}

	if IsHEIF(data) {
		if img, err := heic.Decode(bytes.NewReader(data)); err == nil {
			return img, nil
		}
		return nil, ErrUnsupportedFormat
	}
	return nil, ErrDecode
}

// IsHEIF sniffs the ISO-BMFF brand used by HEIC/HEIF camera photos
func IsHEIF(data []byte) bool {
	if len(data) < 12 || string(data[4:8]) != "ftyp" {
		return false
	}
	switch string(data[8:12]) {
	case "heic", "heix", "hevc", "hevx", "mif1", "msf1", "heif":
		return true
	}
	return false
}

// EncodeJPEG encodes img at the given quality and rejects empty output
func EncodeJPEG(img image.Image, quality int) ([]byte, error) {
	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.JPEG, imaging.JPEGQuality(quality)); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrEncode, err)
	}
	if buf.Len() == 0 {
		return nil, ErrEncode
	}
	return buf.Bytes(), nil
}

// LoadImageFromURL downloads and decodes an image from a URL
func (p *Processor) LoadImageFromURL(ctx context.Context, imageURL string) (image.Image, error) {
	parsedURL, err := url.Parse(imageURL)
	if err != nil {
		return nil, fmt.Errorf("invalid URL: %v", err)
	}
	if parsedURL.Scheme != "http" && parsedURL.Scheme != "https" {
		return nil, fmt.Errorf("unsupported URL scheme: %s (only http and https are supported)", parsedURL.Scheme)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, imageURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %v", err)
	}
	req.Header.Set("User-Agent", "Plate-Roaster/1.0")

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to download image: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("failed to download image: HTTP %d %s", resp.StatusCode, resp.Status)
	}

	contentType := resp.Header.Get("Content-Type")
	if !strings.HasPrefix(contentType, "image/") {
		return nil, fmt.Errorf("URL does not point to an image (Content-Type: %s)", contentType)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read image data: %v", err)
	}

	return p.Decode(data)
}

// LoadImage loads an image from a file path
func (p *Processor) LoadImage(path string) (image.Image, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	img, err := p.Decode(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return img, nil
}

// LoadImageSmart loads an image from either a file path or URL
func (p *Processor) LoadImageSmart(ctx context.Context, source string) (image.Image, error) {
	if strings.HasPrefix(source, "http://") || strings.HasPrefix(source, "https://") {
		return p.LoadImageFromURL(ctx, source)
	}
	return p.LoadImage(source)
}

// SaveImage saves an image to a file with the specified format and quality
func (p *Processor) SaveImage(img image.Image, path, format string, quality int) error {
	switch strings.ToLower(format) {
	case "webp":
		f, err := os.Create(path)
		if err != nil {
			return err
		}
		defer f.Close()
		return webp.Encode(f, img, &webp.Options{Quality: float32(quality)})
	case "png":
		f, err := os.Create(path)
		if err != nil {
			return err
		}
		defer f.Close()
		enc := png.Encoder{CompressionLevel: png.BestCompression}
		return enc.Encode(f, img)
	default: // jpg/jpeg
		return imaging.Save(img, path, imaging.JPEGQuality(quality))
	}
}
