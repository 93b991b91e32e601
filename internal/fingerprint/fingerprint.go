// Package fingerprint computes perceptual page hashes and compares
// them by Hamming distance.
package fingerprint

import (
	"fmt"
	"image"
	"math/bits"
	"sort"

	"github.com/corona10/goimagehash"
	xdraw "golang.org/x/image/draw"

	"github.com/local/scancleaner/internal/page"
)

// Algorithm selects the perceptual hash family.
type Algorithm string

const (
	AverageHash    Algorithm = "average_hash"
	PerceptionHash Algorithm = "phash"
	DifferenceHash Algorithm = "dhash"
	WaveletHash    Algorithm = "whash"
)

// Parse maps a config string to an Algorithm.
func Parse(s string) (Algorithm, error) {
	switch Algorithm(s) {
	case AverageHash, PerceptionHash, DifferenceHash, WaveletHash:
		return Algorithm(s), nil
	}
	return "", fmt.Errorf("unknown hash algorithm %q", s)
}

// Fingerprint is the perceptual hash of one page. NBits is always
// size*size for the configured hash size.
type Fingerprint struct {
	PageIndex int
	Bits      []uint64
	NBits     int
}

// Compute hashes a page image with the given algorithm at size x size
// bits. An unusable image fails with *page.InvalidImageError.
func Compute(pageIndex int, img image.Image, algo Algorithm, size int) (Fingerprint, error) {
	if img == nil {
		return Fingerprint{}, &page.InvalidImageError{PageIndex: pageIndex, Reason: "nil image"}
	}
	b := img.Bounds()
	if b.Dx() <= 0 || b.Dy() <= 0 {
		return Fingerprint{}, &page.InvalidImageError{PageIndex: pageIndex, Reason: "zero-sized image"}
	}

	var (
		h   *goimagehash.ExtImageHash
		err error
	)
	switch algo {
	case AverageHash:
		h, err = goimagehash.ExtAverageHash(img, size, size)
	case PerceptionHash:
		h, err = goimagehash.ExtPerceptionHash(img, size, size)
	case DifferenceHash:
		h, err = goimagehash.ExtDifferenceHash(img, size, size)
	case WaveletHash:
		return waveletHash(pageIndex, img, size)
	default:
		return Fingerprint{}, fmt.Errorf("unknown hash algorithm %q", algo)
	}
	if err != nil {
		return Fingerprint{}, fmt.Errorf("%s page %d: %w", algo, pageIndex, err)
	}

	return Fingerprint{PageIndex: pageIndex, Bits: h.GetHash(), NBits: h.Bits()}, nil
}

// Distance is the Hamming distance between two fingerprints. Hashes of
// different widths are never comparable.
func Distance(a, b Fingerprint) (int, error) {
	if a.NBits != b.NBits || len(a.Bits) != len(b.Bits) {
		return 0, fmt.Errorf("fingerprint width mismatch: %d vs %d bits", a.NBits, b.NBits)
	}
	d := 0
	for i := range a.Bits {
		d += bits.OnesCount64(a.Bits[i] ^ b.Bits[i])
	}
	return d, nil
}

// Similarity maps a Hamming distance to [0,1]: 1 - d/NBits.
func Similarity(d, nbits int) float64 {
	if nbits <= 0 {
		return 0
	}
	return 1 - float64(d)/float64(nbits)
}

// waveletHash is a Haar LL-band hash: shrink the grayscale image to a
// power-of-two grid, average 2x2 blocks down to size x size, then
// threshold each cell against the median. size must be a power of two
// (enforced by config validation).
func waveletHash(pageIndex int, img image.Image, size int) (Fingerprint, error) {
	if size <= 0 || size&(size-1) != 0 {
		return Fingerprint{}, fmt.Errorf("whash size %d is not a power of two", size)
	}

	// Decompose from an 8x oversampled grid so the LL band carries
	// real low-frequency structure rather than raw pixels.
	grid := size * 8
	gray := image.NewGray(image.Rect(0, 0, grid, grid))
	xdraw.BiLinear.Scale(gray, gray.Bounds(), img, img.Bounds(), xdraw.Src, nil)

	vals := make([]float64, grid*grid)
	for y := 0; y < grid; y++ {
		for x := 0; x < grid; x++ {
			vals[y*grid+x] = float64(gray.Pix[y*gray.Stride+x])
		}
	}
	for n := grid; n > size; n /= 2 {
		vals = haarLL(vals, n)
	}

	med := median(vals)
	fp := Fingerprint{
		PageIndex: pageIndex,
		Bits:      make([]uint64, (size*size+63)/64),
		NBits:     size * size,
	}
	for i, v := range vals {
		if v > med {
			fp.Bits[i/64] |= 1 << (uint(i) % 64)
		}
	}
	return fp, nil
}

// haarLL halves an n x n grid by averaging each 2x2 block (the LL band
// of one Haar decomposition level).
func haarLL(vals []float64, n int) []float64 {
	half := n / 2
	out := make([]float64, half*half)
	for y := 0; y < half; y++ {
		for x := 0; x < half; x++ {
			out[y*half+x] = (vals[2*y*n+2*x] + vals[2*y*n+2*x+1] +
				vals[(2*y+1)*n+2*x] + vals[(2*y+1)*n+2*x+1]) / 4
		}
	}
	return out
}

func median(vals []float64) float64 {
	s := append([]float64(nil), vals...)
	sort.Float64s(s)
	n := len(s)
	if n%2 == 1 {
		return s[n/2]
	}
	return (s[n/2-1] + s[n/2]) / 2
}
