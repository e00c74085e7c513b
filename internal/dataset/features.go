package dataset

import (
	"bytes"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"math"

	"github.com/pkg/errors"
)

// FeatureGrid is the side length of the intensity grid sampled from each
// image. Feature vectors have FeatureSize entries in [0, 1].
const FeatureGrid = 16
const FeatureSize = FeatureGrid * FeatureGrid

// ExtractFeatures decodes raw image bytes and samples a FeatureGrid x
// FeatureGrid grayscale intensity grid.
func ExtractFeatures(raw []byte) ([]float64, error) {
	img, _, err := image.Decode(bytes.NewReader(raw))
	if err != nil {
		return nil, errors.Wrap(err, "decode image")
	}
	bounds := img.Bounds()
	width := bounds.Dx()
	height := bounds.Dy()
	if width == 0 || height == 0 {
		return nil, errors.New("empty image")
	}
	features := make([]float64, FeatureSize)
	stepX := float64(width) / float64(FeatureGrid)
	stepY := float64(height) / float64(FeatureGrid)
	for gy := 0; gy < FeatureGrid; gy++ {
		for gx := 0; gx < FeatureGrid; gx++ {
			px := bounds.Min.X + int(math.Min(float64(width-1), float64(gx)*stepX))
			py := bounds.Min.Y + int(math.Min(float64(height-1), float64(gy)*stepY))
			r, g, b, _ := img.At(px, py).RGBA()
			intensity := (float64(r) + float64(g) + float64(b)) / (3 * 65535.0)
			features[gy*FeatureGrid+gx] = intensity
		}
	}
	return features, nil
}
