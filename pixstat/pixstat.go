// Package pixstat computes quality metrics over grayscale pixel buffers.
//
// A buffer is a flat []float64 of length w*h in row-major order with
// intensities in [0,255]. All functions are pure, allocate at most one
// intermediate slice, and run in O(w*h). Degenerate inputs (empty buffers,
// empty rectangles) return 0 rather than NaN so callers never need to guard
// against division by zero.
package pixstat

import (
	"image"
	"math"
)

// ToGrayscale converts an interleaved RGBA byte buffer to a grayscale
// intensity buffer using the Rec. 601 luma weights. Output values are
// clamped to [0,255].
func ToGrayscale(rgba []uint8, w, h int) []float64 {
	n := w * h
	if len(rgba) < n*4 {
		n = len(rgba) / 4
	}
	g := make([]float64, n)
	for i := 0; i < n; i++ {
		r := float64(rgba[i*4])
		gr := float64(rgba[i*4+1])
		b := float64(rgba[i*4+2])
		v := 0.299*r + 0.587*gr + 0.114*b
		if v < 0 {
			v = 0
		} else if v > 255 {
			v = 255
		}
		g[i] = v
	}
	return g
}

// FromImage decodes any image.Image into a grayscale buffer plus dimensions.
func FromImage(img image.Image) ([]float64, int, int) {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	g := make([]float64, w*h)
	i := 0
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			r, gr, bl, _ := img.At(x, y).RGBA()
			// RGBA returns 16-bit channels; scale down to 0..255.
			v := 0.299*float64(r)/257 + 0.587*float64(gr)/257 + 0.114*float64(bl)/257
			if v > 255 {
				v = 255
			}
			g[i] = v
			i++
		}
	}
	return g, w, h
}

// Mean returns the arithmetic mean of the buffer, or 0 for empty input.
func Mean(g []float64) float64 {
	if len(g) == 0 {
		return 0
	}
	sum := 0.0
	for _, v := range g {
		sum += v
	}
	return sum / float64(len(g))
}

// StdDev returns the population standard deviation, or 0 for empty input.
func StdDev(g []float64) float64 {
	if len(g) == 0 {
		return 0
	}
	m := Mean(g)
	sum := 0.0
	for _, v := range g {
		d := v - m
		sum += d * d
	}
	return math.Sqrt(sum / float64(len(g)))
}

// LaplacianVariance convolves the 4-neighbour discrete Laplacian over
// interior pixels (a 1-pixel border is excluded) and returns the variance
// of the response. Higher values mean sharper edges. Returns 0 when the
// buffer has no interior.
func LaplacianVariance(g []float64, w, h int) float64 {
	if w < 3 || h < 3 || len(g) < w*h {
		return 0
	}
	n := (w - 2) * (h - 2)
	resp := make([]float64, 0, n)
	for y := 1; y < h-1; y++ {
		for x := 1; x < w-1; x++ {
			i := y*w + x
			v := 4*g[i] - g[i-1] - g[i+1] - g[i-w] - g[i+w]
			resp = append(resp, v)
		}
	}
	return variance(resp)
}

// MeanRect returns the mean intensity over the axis-aligned rectangle
// [x0,x1)×[y0,y1), clipped to the buffer bounds. Returns 0 for an empty
// rectangle; callers must guard degenerate regions on very small images.
func MeanRect(g []float64, w int, x0, y0, x1, y1 int) float64 {
	if w <= 0 {
		return 0
	}
	h := len(g) / w
	if x0 < 0 {
		x0 = 0
	}
	if y0 < 0 {
		y0 = 0
	}
	if x1 > w {
		x1 = w
	}
	if y1 > h {
		y1 = h
	}
	if x1 <= x0 || y1 <= y0 {
		return 0
	}
	sum := 0.0
	for y := y0; y < y1; y++ {
		for x := x0; x < x1; x++ {
			sum += g[y*w+x]
		}
	}
	return sum / float64((x1-x0)*(y1-y0))
}

// Histogram counts intensities into 256 bins. Values are truncated to the
// nearest bin and clamped to [0,255].
func Histogram(g []float64) [256]int {
	var hist [256]int
	for _, v := range g {
		i := int(v)
		if i < 0 {
			i = 0
		} else if i > 255 {
			i = 255
		}
		hist[i]++
	}
	return hist
}

// EmptyBins returns the number of zero-count bins among bins 1..254. The
// extremes are excluded because pure black and pure white are legitimately
// absent from many valid scans.
func EmptyBins(hist [256]int) int {
	empty := 0
	for i := 1; i <= 254; i++ {
		if hist[i] == 0 {
			empty++
		}
	}
	return empty
}

// BandingThreshold is the EmptyBins count above which a buffer is considered
// posterized from a low bit-depth re-export.
const BandingThreshold = 140

// HasBanding reports whether the histogram shows posterization banding.
func HasBanding(hist [256]int) bool {
	return EmptyBins(hist) > BandingThreshold
}

// GradientSums returns the total absolute horizontal and vertical
// differences over interior pixels.
func GradientSums(g []float64, w, h int) (gx, gy float64) {
	if w < 2 || h < 2 || len(g) < w*h {
		return 0, 0
	}
	for y := 1; y < h-1; y++ {
		for x := 1; x < w-1; x++ {
			i := y*w + x
			gx += math.Abs(g[i+1] - g[i-1])
			gy += math.Abs(g[i+w] - g[i-w])
		}
	}
	return gx, gy
}

// MotionRatio returns max(gx,gy)/max(1,min(gx,gy)). A strongly dominant
// axis suggests motion blur along it. The max(1, ...) guard keeps the
// ratio well-defined when both sums are zero (flat image → ratio ≤ 1).
func MotionRatio(gx, gy float64) float64 {
	hi, lo := gx, gy
	if lo > hi {
		hi, lo = lo, hi
	}
	if lo < 1 {
		lo = 1
	}
	return hi / lo
}

func variance(vs []float64) float64 {
	if len(vs) == 0 {
		return 0
	}
	m := 0.0
	for _, v := range vs {
		m += v
	}
	m /= float64(len(vs))
	sum := 0.0
	for _, v := range vs {
		d := v - m
		sum += d * d
	}
	return sum / float64(len(vs))
}
