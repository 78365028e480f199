// Package codec adapts raster decoding, resizing and WebP encoding for the
// picture service.
package codec

import (
	"bytes"
	"fmt"
	"image"

	// registered source formats for image.Decode
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"

	"github.com/chai2010/webp"
	"github.com/disintegration/imaging"

	"github.com/mediakit/picserve/media/domain"
)

var _ domain.ImageCodec = (*WebP)(nil)

// DefaultQuality is the encode quality used when none is configured.
const DefaultQuality = 30

// WebP implements domain.ImageCodec with WebP as the target format.
type WebP struct{}

// NewWebP creates a WebP codec.
func NewWebP() *WebP {
	return &WebP{}
}

// Decode parses image bytes into a raster and reports the source format name
// (e.g. "jpeg", "png", "webp").
func (c *WebP) Decode(data []byte) (image.Image, string, error) {
	img, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, "", fmt.Errorf("%w: %v", domain.ErrUnreadableImage, err)
	}

	return img, format, nil
}

// Encode serializes the raster as lossy WebP at the given quality. Qualities
// outside [1,100] fall back to DefaultQuality.
func (c *WebP) Encode(img image.Image, quality int) ([]byte, error) {
	if quality < 1 || quality > 100 {
		quality = DefaultQuality
	}

	var buf bytes.Buffer
	if err := webp.Encode(&buf, img, &webp.Options{Quality: float32(quality)}); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrEncodeFailure, err)
	}

	return buf.Bytes(), nil
}

// Resize scales the raster to the exact target size using Lanczos resampling.
func (c *WebP) Resize(img image.Image, size domain.Size) image.Image {
	return imaging.Resize(img, size.Width, size.Height, imaging.Lanczos)
}
