package render

import (
	"bytes"
	"fmt"
	"image"
	"image/draw"
	_ "image/gif" // register decoder
	"image/jpeg"
	_ "image/png" // register decoder

	_ "golang.org/x/image/webp" // register decoder
)

// JPEGQuality is used when re-encoding images.
const JPEGQuality = 90

// NormalizeImage decodes a JPEG, PNG, GIF or WebP image and re-encodes it
// as an opaque RGB JPEG. It returns the encoded bytes and the pixel size.
func NormalizeImage(data []byte) ([]byte, image.Point, error) {
	src, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, image.Point{}, fmt.Errorf("decode image: %w", err)
	}
	bounds := src.Bounds()
	rgba := image.NewRGBA(image.Rect(0, 0, bounds.Dx(), bounds.Dy()))
	draw.Draw(rgba, rgba.Bounds(), image.White, image.Point{}, draw.Src)
	draw.Draw(rgba, rgba.Bounds(), src, bounds.Min, draw.Over)

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, rgba, &jpeg.Options{Quality: JPEGQuality}); err != nil {
		return nil, image.Point{}, fmt.Errorf("encode jpeg: %w", err)
	}
	return buf.Bytes(), bounds.Size(), nil
}
