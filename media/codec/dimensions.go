package codec

import (
	"math"

	"github.com/mediakit/picserve/media/domain"
)

// CalculateDimensions computes an output size for a resize while keeping the
// original aspect ratio. targetSize constrains the dimension selected by mode.
//
// Any dimension that comes out below 1 is clamped to 1 before rounding so a
// degenerate raster never renders a blank background.
func CalculateDimensions(original domain.Size, targetSize int, mode domain.ResizeMode) (domain.Size, error) {
	var width, height float64

	switch mode {
	case domain.ResizeLongestSide:
		if original.Height > original.Width {
			// portrait
			width = float64(original.Width) * (float64(targetSize) / float64(original.Height))
			height = float64(targetSize)
		} else {
			// landscape or square
			width = float64(targetSize)
			height = float64(original.Height) * (float64(targetSize) / float64(original.Width))
		}
	case domain.ResizeWidth:
		width = float64(targetSize)
		height = float64(original.Height) * (float64(targetSize) / float64(original.Width))
	case domain.ResizeHeight:
		width = float64(original.Width) * (float64(targetSize) / float64(original.Height))
		height = float64(targetSize)
	default:
		return domain.Size{}, domain.ErrUnsupportedResizeMode
	}

	if width < 1 {
		width = 1
	}
	if height < 1 {
		height = 1
	}

	return domain.Size{
		Width:  int(math.Round(width)),
		Height: int(math.Round(height)),
	}, nil
}
