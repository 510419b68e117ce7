package provider

import (
	"bytes"
	"image"
	"image/jpeg"
	_ "image/png" // decoder registration
	"math"

	"github.com/rotisserie/eris"
	"golang.org/x/image/draw"
	_ "golang.org/x/image/webp" // decoder registration
)

// ImageOptions bounds the images sent to vision models.
type ImageOptions struct {
	// MaxDimension is the maximum width or height in pixels. Default: 2048.
	MaxDimension int `yaml:"max_dimension" mapstructure:"max_dimension"`
	// MaxTotalBytes is the maximum combined encoded size. Default: 4.5 MB.
	MaxTotalBytes int `yaml:"max_total_bytes" mapstructure:"max_total_bytes"`
}

// DefaultImageOptions returns the default limits.
func DefaultImageOptions() ImageOptions {
	return ImageOptions{MaxDimension: 2048, MaxTotalBytes: 4_500_000}
}

var jpegQualities = []int{85, 75, 65, 50, 40}

const minDimension = 128

// PrepareImages downscales images to MaxDimension and re-encodes them as JPEG
// with stepped-down quality until the combined size fits MaxTotalBytes.
// Images already within both limits are returned unchanged.
func PrepareImages(images []Image, opts ImageOptions) ([]Image, error) {
	if len(images) == 0 {
		return nil, nil
	}
	def := DefaultImageOptions()
	if opts.MaxDimension <= 0 {
		opts.MaxDimension = def.MaxDimension
	}
	if opts.MaxTotalBytes <= 0 {
		opts.MaxTotalBytes = def.MaxTotalBytes
	}

	decoded := make([]image.Image, len(images))
	oversized := false
	for i, img := range images {
		m, _, err := image.Decode(bytes.NewReader(img.Data))
		if err != nil {
			return nil, eris.Wrapf(err, "provider: decode image %d (%s)", i, img.MediaType)
		}
		decoded[i] = m
		b := m.Bounds()
		if b.Dx() > opts.MaxDimension || b.Dy() > opts.MaxDimension {
			oversized = true
		}
	}
	if !oversized && totalSize(images) <= opts.MaxTotalBytes {
		return images, nil
	}

	for i, m := range decoded {
		decoded[i] = fit(m, opts.MaxDimension)
	}

	for {
		for _, q := range jpegQualities {
			out, err := encodeAll(decoded, q)
			if err != nil {
				return nil, err
			}
			if totalSize(out) <= opts.MaxTotalBytes {
				return out, nil
			}
		}
		// Quality alone was not enough; shrink and retry.
		next := largestSide(decoded) * 3 / 4
		if next < minDimension {
			return nil, eris.Errorf("provider: images exceed %d bytes at minimum quality", opts.MaxTotalBytes)
		}
		for i, m := range decoded {
			decoded[i] = fit(m, next)
		}
	}
}

func largestSide(ms []image.Image) int {
	n := 0
	for _, m := range ms {
		b := m.Bounds()
		n = max(n, b.Dx(), b.Dy())
	}
	return n
}

// fit scales m so neither side exceeds maxDim, preserving aspect ratio.
func fit(m image.Image, maxDim int) image.Image {
	b := m.Bounds()
	w, h := b.Dx(), b.Dy()
	if w <= maxDim && h <= maxDim {
		return m
	}
	scale := math.Min(float64(maxDim)/float64(w), float64(maxDim)/float64(h))
	nw := max(1, int(math.Round(float64(w)*scale)))
	nh := max(1, int(math.Round(float64(h)*scale)))
	dst := image.NewRGBA(image.Rect(0, 0, nw, nh))
	draw.CatmullRom.Scale(dst, dst.Bounds(), m, b, draw.Over, nil)
	return dst
}

func encodeAll(ms []image.Image, quality int) ([]Image, error) {
	out := make([]Image, len(ms))
	for i, m := range ms {
		var buf bytes.Buffer
		if err := jpeg.Encode(&buf, m, &jpeg.Options{Quality: quality}); err != nil {
			return nil, eris.Wrapf(err, "provider: encode image %d", i)
		}
		out[i] = Image{MediaType: "image/jpeg", Data: buf.Bytes()}
	}
	return out, nil
}

func totalSize(images []Image) int {
	n := 0
	for _, img := range images {
		n += len(img.Data)
	}
	return n
}
