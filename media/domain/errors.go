package domain

import "errors"

var (
	// ErrPictureNotFound is returned when an operation references a picture
	// id that does not exist.
	ErrPictureNotFound = errors.New("picture not found")

	// ErrUnreadableImage is returned when image bytes cannot be decoded.
	ErrUnreadableImage = errors.New("unreadable image data")

	// ErrUnsupportedResizeMode is returned for an unknown resize mode.
	ErrUnsupportedResizeMode = errors.New("unsupported resize mode")

	// ErrEncodeFailure is returned when encoding a valid in-memory raster
	// fails. It is fatal to the calling operation and never retried.
	ErrEncodeFailure = errors.New("image encode failure")

	// ErrUnsupportedFileType is returned when an uploaded file's extension
	// is not on the accept list.
	ErrUnsupportedFileType = errors.New("unsupported image file type")
)
