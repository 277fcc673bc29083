package model

import (
	"image"

	"github.com/nfnt/resize"
)

const channels = 3

// Preprocess converts img to the planar RGB float32 layout the model expects:
// resized to ImageSize x ImageSize, scaled to [0,1], then normalised with the
// metadata mean/std when present.
func Preprocess(img image.Image, meta *Metadata) []float32 {
	size := uint(meta.ImageSize)
	resized := resize.Resize(size, size, img, resize.Lanczos3)

	bounds := resized.Bounds()
	width, height := bounds.Dx(), bounds.Dy()
	plane := width * height

	data := make([]float32, channels*plane)
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			r, g, b, _ := resized.At(bounds.Min.X+x, bounds.Min.Y+y).RGBA()

			i := y*width + x
			data[i] = float32(r) / 65535.0
			data[plane+i] = float32(g) / 65535.0
			data[2*plane+i] = float32(b) / 65535.0
		}
	}

	if len(meta.Mean) == channels {
		for c := 0; c < channels; c++ {
			mean, std := meta.Mean[c], meta.Std[c]
			for i := c * plane; i < (c+1)*plane; i++ {
				data[i] = (data[i] - mean) / std
			}
		}
	}

	return data
}
