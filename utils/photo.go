package utils

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/jpeg"
	"image/png"
	"io"

	"github.com/nfnt/resize"
)

const (
	MaxPhotoSize      = 5 * 1024 * 1024
	compressThreshold = 1 * 1024 * 1024
	compressWidth     = 1600
	previewSize       = 300
	// maxPhotoPixels bounds the decoded size, which the byte limit does not.
	maxPhotoPixels = 40_000_000
)

var (
	ErrPhotoTooLarge   = errors.New("image exceeds the 5MB or 40 megapixel limit")
	ErrUnsupportedType = errors.New("only jpeg and png images are allowed")
)

type PreparedPhoto struct {
	Data        []byte
	ContentType string
	Preview     []byte
}

func decodePhoto(data []byte, contentType string) (image.Image, error) {
	var decodeConfig func(io.Reader) (image.Config, error)
	var decode func(io.Reader) (image.Image, error)
	switch contentType {
	case "image/png":
		decodeConfig, decode = png.DecodeConfig, png.Decode
	case "image/jpeg", "image/jpg":
		decodeConfig, decode = jpeg.DecodeConfig, jpeg.Decode
	default:
		return nil, ErrUnsupportedType
	}

	cfg, err := decodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	if int64(cfg.Width)*int64(cfg.Height) > maxPhotoPixels {
		return nil, ErrPhotoTooLarge
	}
	return decode(bytes.NewReader(data))
}

// PreparePhoto checks an uploaded image, shrinks it to JPEG when it is over
// 1MB and renders a preview thumbnail.
func PreparePhoto(data []byte, contentType string) (*PreparedPhoto, error) {
	if len(data) > MaxPhotoSize {
		return nil, ErrPhotoTooLarge
	}
	img, err := decodePhoto(data, contentType)
	if err != nil {
		if errors.Is(err, ErrUnsupportedType) || errors.Is(err, ErrPhotoTooLarge) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to decode image: %w", err)
	}

	out := &PreparedPhoto{Data: data, ContentType: contentType}
	if contentType == "image/jpg" {
		out.ContentType = "image/jpeg"
	}

	if len(data) > compressThreshold {
		var buf bytes.Buffer
		compressed := resize.Resize(compressWidth, 0, img, resize.Lanczos3)
		if err := jpeg.Encode(&buf, compressed, &jpeg.Options{Quality: 80}); err != nil {
			return nil, fmt.Errorf("failed to save compressed image: %w", err)
		}
		out.Data = buf.Bytes()
		out.ContentType = "image/jpeg"
	}

	var preview bytes.Buffer
	thumb := resize.Thumbnail(previewSize, previewSize, img, resize.Lanczos3)
	if err := jpeg.Encode(&preview, thumb, &jpeg.Options{Quality: 75}); err != nil {
		return nil, fmt.Errorf("failed to create preview: %w", err)
	}
	out.Preview = preview.Bytes()

	return out, nil
}
