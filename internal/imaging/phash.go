package imaging

import (
	"fmt"
	"image"
	"math"
	"sort"

	"golang.org/x/image/draw"
)

// Perceptual-hash geometry: the image is reduced to dctSize x dctSize
// grayscale, DCT'd, and the top-left hashSize x hashSize low-frequency block
// is thresholded against its median into a 64-bit hash.
const (
	hashSize = 8
	dctSize  = 32
)

// Fingerprint computes the DCT perceptual hash of an image as a 16-character
// hexadecimal string. Visually similar images produce fingerprints differing
// in few bits; unrelated images differ in many.
func Fingerprint(img image.Image) string {
	gray := image.NewGray(image.Rect(0, 0, dctSize, dctSize))
	draw.CatmullRom.Scale(gray, gray.Bounds(), img, img.Bounds(), draw.Src, nil)

	var pixels [dctSize][dctSize]float64
	for y := 0; y < dctSize; y++ {
		for x := 0; x < dctSize; x++ {
			pixels[y][x] = float64(gray.GrayAt(x, y).Y)
		}
	}

	coeffs := dct2d(pixels)

	// Low-frequency block, thresholded against its median. The DC term
	// tracks overall brightness, not structure, and is excluded from the
	// median.
	block := make([]float64, 0, hashSize*hashSize)
	for y := 0; y < hashSize; y++ {
		for x := 0; x < hashSize; x++ {
			block = append(block, coeffs[y][x])
		}
	}
	med := median(block[1:])

	var hash uint64
	for i, c := range block {
		if c > med {
			hash |= 1 << (63 - i)
		}
	}
	return fmt.Sprintf("%016x", hash)
}

// dct2d applies a separable type-II discrete cosine transform, rows first.
func dct2d(pixels [dctSize][dctSize]float64) [dctSize][dctSize]float64 {
	var rows [dctSize][dctSize]float64
	for y := 0; y < dctSize; y++ {
		rows[y] = dct1d(pixels[y])
	}

	var out [dctSize][dctSize]float64
	for x := 0; x < dctSize; x++ {
		var col [dctSize]float64
		for y := 0; y < dctSize; y++ {
			col[y] = rows[y][x]
		}
		col = dct1d(col)
		for y := 0; y < dctSize; y++ {
			out[y][x] = col[y]
		}
	}
	return out
}

func dct1d(in [dctSize]float64) [dctSize]float64 {
	var out [dctSize]float64
	for k := 0; k < dctSize; k++ {
		var sum float64
		for n := 0; n < dctSize; n++ {
			sum += in[n] * math.Cos(math.Pi*float64(k)*(2*float64(n)+1)/(2*dctSize))
		}
		scale := math.Sqrt(2.0 / dctSize)
		if k == 0 {
			scale = math.Sqrt(1.0 / dctSize)
		}
		out[k] = sum * scale
	}
	return out
}

func median(values []float64) float64 {
	sorted := make([]float64, len(values))
	copy(sorted, values)
	sort.Float64s(sorted)
	n := len(sorted)
	if n%2 == 1 {
		return sorted[n/2]
	}
	return (sorted[n/2-1] + sorted[n/2]) / 2
}
