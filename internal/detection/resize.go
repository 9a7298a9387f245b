package detection

import (
	"bytes"
	"image"
	"image/jpeg"

	"golang.org/x/image/draw"
)

const (
	// resizeMaxDimension bounds the largest side of a stored frame.
	// Camera uploads can be full sensor resolution; the classifier and
	// the dashboard both want something small.
	resizeMaxDimension = 320

	// resizeJPEGQuality is the re-encode quality for processed frames.
	resizeJPEGQuality = 85
)

// ResizeIfNeeded scales an image down so its largest dimension is at
// most resizeMaxDimension, preserving aspect ratio, and re-encodes it
// as JPEG. Images already within bounds are re-encoded without
// scaling. Undecodable input is returned unchanged: downstream stages
// handle bad frames in their own way.
func ResizeIfNeeded(imageBytes []byte) []byte {
	img, _, err := image.Decode(bytes.NewReader(imageBytes))
	if err != nil {
		return imageBytes
	}

	bounds := img.Bounds()
	width, height := bounds.Dx(), bounds.Dy()
	if width == 0 || height == 0 {
		return imageBytes
	}

	largest := width
	if height > largest {
		largest = height
	}

	out := img
	if largest > resizeMaxDimension {
		scale := float64(resizeMaxDimension) / float64(largest)
		newWidth := int(float64(width) * scale)
		newHeight := int(float64(height) * scale)
		scaled := image.NewRGBA(image.Rect(0, 0, newWidth, newHeight))
		draw.ApproxBiLinear.Scale(scaled, scaled.Bounds(), img, bounds, draw.Over, nil)
		out = scaled
	}

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, out, &jpeg.Options{Quality: resizeJPEGQuality}); err != nil {
		return imageBytes
	}
	return buf.Bytes()
}
