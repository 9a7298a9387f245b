package detection

import (
	"bytes"
	"image"
	_ "image/jpeg" // JPEG decoder for camera frames
	"sync/atomic"
)

// fullBrightness is reported for every frame while the gate is disabled.
const fullBrightness = 255.0

// Measure returns the mean brightness of an image, 0 (black) to 255
// (white). Undecodable image bytes measure 0, matching the behaviour of
// a dead camera frame.
func Measure(imageBytes []byte) float64 {
	img, _, err := image.Decode(bytes.NewReader(imageBytes))
	if err != nil {
		return 0
	}

	bounds := img.Bounds()
	pixels := bounds.Dx() * bounds.Dy()
	if pixels == 0 {
		return 0
	}

	var sum float64
	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			r, g, b, _ := img.At(x, y).RGBA()
			// ITU-R BT.601 luma, scaled from 16-bit channels to 0-255.
			luma := 0.299*float64(r) + 0.587*float64(g) + 0.114*float64(b)
			sum += luma / 257.0
		}
	}

	return sum / float64(pixels)
}

// Gate is the toggleable brightness gate applied before classification.
//
// When disabled, every frame reports full brightness and is never
// considered dark. The enabled flag is atomic: the dashboard toggles it
// while detection requests read it concurrently.
type Gate struct {
	threshold float64
	enabled   atomic.Bool
}

// NewGate creates a gate with the given darkness threshold (0-255).
func NewGate(threshold float64, enabled bool) *Gate {
	g := &Gate{threshold: threshold}
	g.enabled.Store(enabled)
	return g
}

// Check measures a frame and reports (brightness, tooDark).
// A disabled gate reports (255.0, false) without measuring.
func (g *Gate) Check(imageBytes []byte) (float64, bool) {
	if !g.Enabled() {
		return fullBrightness, false
	}

	brightness := Measure(imageBytes)
	return brightness, brightness < g.threshold
}

// Enabled reports whether the gate is active.
func (g *Gate) Enabled() bool {
	return g.enabled.Load()
}

// SetEnabled toggles the gate at runtime.
func (g *Gate) SetEnabled(enabled bool) {
	g.enabled.Store(enabled)
}

// Threshold returns the configured darkness threshold.
func (g *Gate) Threshold() float64 {
	return g.threshold
}
