package domain

import "strings"

// MimeTypeWebP is the delivery format for all processed images.
const MimeTypeWebP = "image/webp"

// FileExtensionFromMimeType maps a mime type to the file extension used for
// canonical files and derivatives, normalizing a few legacy subtypes.
func FileExtensionFromMimeType(mimeType string) string {
	if mimeType == "" {
		return ""
	}

	parts := strings.Split(mimeType, "/")
	last := parts[len(parts)-1]
	switch last {
	case "pjpeg":
		last = "jpg"
	case "x-png":
		last = "png"
	case "x-icon":
		last = "ico"
	}

	return last
}
