package media

import (
	"bytes"
	"fmt"
	"image/jpeg"

	"github.com/nfnt/resize"
)

// ThumbnailSize bounds the longer edge of stored thumbnails.
const ThumbnailSize = 320

// Thumbnail scales data to fit a ThumbnailSize square and encodes it as JPEG.
func Thumbnail(data []byte) ([]byte, error) {
	img, _, err := decode(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRenderFailed, err)
	}

	thumb := resize.Thumbnail(ThumbnailSize, ThumbnailSize, img, resize.Lanczos3)

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, thumb, &jpeg.Options{Quality: 80}); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRenderFailed, err)
	}
	return buf.Bytes(), nil
}
