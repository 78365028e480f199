package domain

import "image"

// Size is a width/height pair in pixels.
type Size struct {
	Width  int
	Height int
}

// ResizeMode selects which dimension a target size constrains.
type ResizeMode int

const (
	// ResizeLongestSide scales the image so its longer side equals the
	// target size.
	ResizeLongestSide ResizeMode = iota
	// ResizeWidth fixes the width and scales the height.
	ResizeWidth
	// ResizeHeight fixes the height and scales the width.
	ResizeHeight
)

// ImageCodec decodes source bytes into a raster and encodes rasters into the
// target delivery format (WebP).
type ImageCodec interface {
	// Decode returns the raster and the detected source format name.
	// Malformed input yields an error wrapping ErrUnreadableImage.
	Decode(data []byte) (image.Image, string, error)

	// Encode writes the raster as WebP at the given quality (1-100).
	Encode(img image.Image, quality int) ([]byte, error)

	// Resize scales the raster to the exact given size.
	Resize(img image.Image, size Size) image.Image
}
