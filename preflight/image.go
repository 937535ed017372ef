package preflight

import (
	"bytes"
	"context"
	"fmt"
	"image"

	// Decoders for the image families the router accepts.
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"

	"github.com/hazyhaar/preflight/pixstat"
)

// imageMetrics holds every pixel statistic the image weight tables score.
// The buffer itself is released as soon as the metrics are computed.
type imageMetrics struct {
	W, H            int
	Megapixels      float64
	Contrast        float64 // intensity stddev
	Sharpness       float64 // Laplacian variance
	UniformityDelta float64 // |center mean − edge ring mean|
	BackgroundNoise float64 // corner-region stddev
	EmptyBins       int
	Banding         bool
	MotionRatio     float64
}

// analyzeImage decodes the file and scores it against an image weight
// table. Shared by the scan, modality and lab-image families, which differ
// only in their tables.
func (e *Engine) analyzeImage(_ context.Context, d Descriptor, p ImagePolicy, family Family) (Result, error) {
	data, err := d.ReadAll(e.cfg.MaxFileSize)
	if err != nil {
		return Result{}, fmt.Errorf("read %s: %w", d.Name, err)
	}
	img, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return Result{}, fmt.Errorf("decode image %s: %w", d.Name, err)
	}

	g, w, h := pixstat.FromImage(img)
	m := computeImageMetrics(g, w, h)

	s := &scorer{}
	s.detail("format: %s", format)
	s.detail("dimensions: %dx%d (%.2f MP)", m.W, m.H, m.Megapixels)
	s.detail("sharpness (laplacian variance): %.1f", m.Sharpness)
	s.detail("contrast (stddev): %.1f", m.Contrast)
	s.detail("center-edge delta: %.1f", m.UniformityDelta)
	s.detail("background noise (stddev): %.1f", m.BackgroundNoise)
	s.detail("empty histogram bins: %d", m.EmptyBins)
	s.detail("motion ratio: %.2f", m.MotionRatio)

	scoreImage(p, m, s)
	return s.result(family, p.Thresholds), nil
}

// scoreImage applies an image weight table to computed metrics.
func scoreImage(p ImagePolicy, m imageMetrics, s *scorer) {
	p.Resolution.apply(m.Megapixels, s)
	p.Sharpness.apply(m.Sharpness, s)
	p.Contrast.apply(m.Contrast, s)
	p.UniformityDelta.apply(m.UniformityDelta, s)
	p.BackgroundNoise.apply(m.BackgroundNoise, s)

	if m.Banding {
		s.add(p.BandingPenalty)
		s.say(p.BandingAdvice)
	}
	if p.MotionRatioMax > 0 && m.MotionRatio >= p.MotionRatioMax {
		s.add(p.MotionPenalty)
		s.say(p.MotionAdvice)
	}
	s.add(p.CompletionBonus)
}

// computeImageMetrics runs the pixstat passes over one grayscale buffer.
func computeImageMetrics(g []float64, w, h int) imageMetrics {
	m := imageMetrics{
		W:          w,
		H:          h,
		Megapixels: float64(w*h) / 1e6,
		Contrast:   pixstat.StdDev(g),
		Sharpness:  pixstat.LaplacianVariance(g, w, h),
	}

	hist := pixstat.Histogram(g)
	m.EmptyBins = pixstat.EmptyBins(hist)
	m.Banding = pixstat.HasBanding(hist)

	gx, gy := pixstat.GradientSums(g, w, h)
	m.MotionRatio = pixstat.MotionRatio(gx, gy)

	// Regional checks need enough area to be meaningful; tiny images skip
	// them (delta and noise stay 0, which passes the checks).
	if w >= 16 && h >= 16 {
		center := pixstat.MeanRect(g, w, w/3, h/3, 2*w/3, 2*h/3)
		edge := edgeRingMean(g, w, h)
		m.UniformityDelta = abs(center - edge)
		m.BackgroundNoise = pixstat.StdDev(rectSlice(g, w, 0, 0, w/8, h/8))
	}
	return m
}

// edgeRingMean averages the four 10%-thick border strips.
func edgeRingMean(g []float64, w, h int) float64 {
	tw, th := w/10, h/10
	if tw < 1 {
		tw = 1
	}
	if th < 1 {
		th = 1
	}
	top := pixstat.MeanRect(g, w, 0, 0, w, th)
	bottom := pixstat.MeanRect(g, w, 0, h-th, w, h)
	left := pixstat.MeanRect(g, w, 0, 0, tw, h)
	right := pixstat.MeanRect(g, w, w-tw, 0, w, h)
	return (top + bottom + left + right) / 4
}

// rectSlice copies the rectangle [x0,x1)×[y0,y1) into a fresh buffer.
func rectSlice(g []float64, w, x0, y0, x1, y1 int) []float64 {
	out := make([]float64, 0, (x1-x0)*(y1-y0))
	for y := y0; y < y1; y++ {
		for x := x0; x < x1; x++ {
			out = append(out, g[y*w+x])
		}
	}
	return out
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
