package frame

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"image"
	"image/jpeg"
)

const (
	// DefaultQuality matches the analyzer's default capture quality.
	DefaultQuality = 0.6

	minQuality = 0.1
	maxQuality = 0.95
)

// ClampQuality bounds a JPEG quality factor to the supported range.
func ClampQuality(q float64) float64 {
	if q < minQuality {
		return minQuality
	}
	if q > maxQuality {
		return maxQuality
	}
	return q
}

// EncodeJPEG encodes an image as JPEG at the given quality (0.1-0.95,
// default 0.6 when zero) and returns the raw base64 payload with no
// data-URL prefix, ready for Channel.SendFrame.
func EncodeJPEG(img image.Image, quality float64) (string, error) {
	if quality == 0 {
		quality = DefaultQuality
	}
	quality = ClampQuality(quality)

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: int(quality * 100)}); err != nil {
		return "", fmt.Errorf("failed to encode frame: %w", err)
	}
	return base64.StdEncoding.EncodeToString(buf.Bytes()), nil
}
