package extract

import (
	"bytes"
	"fmt"
	"image"
	"image/color"

	"github.com/disintegration/imaging"
)

const maxImageSide = 2000

// preprocessImage prepares an image for OCR: fit within maxImageSide on both
// axes, stretch contrast, sharpen. The result is PNG encoded.
func preprocessImage(data []byte) ([]byte, error) {
	img, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
	if err != nil {
		return nil, fmt.Errorf("decode image: %w", err)
	}

	out := imaging.Fit(img, maxImageSide, maxImageSide, imaging.Lanczos)
	out = stretchContrast(out)
	out = imaging.Sharpen(out, 1.0)

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, out, imaging.PNG); err != nil {
		return nil, fmt.Errorf("encode image: %w", err)
	}
	return buf.Bytes(), nil
}

// stretchContrast maps the 1st..99th luminance percentile onto the full range.
func stretchContrast(img *image.NRGBA) *image.NRGBA {
	var hist [256]int
	total := 0
	for i := 0; i+3 < len(img.Pix); i += 4 {
		hist[luma(img.Pix[i], img.Pix[i+1], img.Pix[i+2])]++
		total++
	}
	if total == 0 {
		return img
	}

	lo, hi := percentile(hist[:], total, 0.01), percentile(hist[:], total, 0.99)
	if hi <= lo || (lo == 0 && hi == 255) {
		return img
	}

	scale := 255.0 / float64(hi-lo)
	stretch := func(v uint8) uint8 {
		x := (float64(v) - float64(lo)) * scale
		switch {
		case x < 0:
			return 0
		case x > 255:
			return 255
		}
		return uint8(x + 0.5)
	}
	return imaging.AdjustFunc(img, func(c color.NRGBA) color.NRGBA {
		return color.NRGBA{R: stretch(c.R), G: stretch(c.G), B: stretch(c.B), A: c.A}
	})
}

func luma(r, g, b uint8) uint8 {
	return uint8((299*int(r) + 587*int(g) + 114*int(b)) / 1000)
}

func percentile(hist []int, total int, p float64) int {
	target := int(float64(total) * p)
	seen := 0
	for v, n := range hist {
		seen += n
		if seen > target {
			return v
		}
	}
	return len(hist) - 1
}
