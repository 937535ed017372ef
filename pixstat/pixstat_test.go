package pixstat

import (
	"math"
	"testing"
)

func flat(w, h int, v float64) []float64 {
	g := make([]float64, w*h)
	for i := range g {
		g[i] = v
	}
	return g
}

func TestStdDev_Empty(t *testing.T) {
	// WHAT: Empty buffer yields 0.
	// WHY: Degenerate input must never produce NaN or panic.
	if v := StdDev(nil); v != 0 {
		t.Errorf("stddev(empty) = %f, want 0", v)
	}
}

func TestStdDev_Flat(t *testing.T) {
	// WHAT: A constant buffer has zero deviation.
	// WHY: Baseline for the contrast metric.
	if v := StdDev(flat(10, 10, 128)); v != 0 {
		t.Errorf("stddev(flat) = %f, want 0", v)
	}
}

func TestStdDev_TwoLevel(t *testing.T) {
	// WHAT: A half-0 half-100 buffer has population stddev 50.
	// WHY: Validates the population (not sample) formula.
	g := make([]float64, 100)
	for i := 50; i < 100; i++ {
		g[i] = 100
	}
	if v := StdDev(g); math.Abs(v-50) > 1e-9 {
		t.Errorf("stddev = %f, want 50", v)
	}
}

func TestToGrayscale_LumaWeights(t *testing.T) {
	// WHAT: Pure red/green/blue pixels map to their luma weights.
	// WHY: The fixed Rec. 601 formula is part of the scoring contract.
	rgba := []uint8{
		255, 0, 0, 255,
		0, 255, 0, 255,
		0, 0, 255, 255,
	}
	g := ToGrayscale(rgba, 3, 1)
	want := []float64{0.299 * 255, 0.587 * 255, 0.114 * 255}
	for i, w := range want {
		if math.Abs(g[i]-w) > 1e-9 {
			t.Errorf("pixel %d = %f, want %f", i, g[i], w)
		}
	}
}

func TestLaplacianVariance_Flat(t *testing.T) {
	// WHAT: A flat buffer has zero Laplacian variance.
	// WHY: No edges means no sharpness response.
	if v := LaplacianVariance(flat(8, 8, 77), 8, 8); v != 0 {
		t.Errorf("laplacian variance = %f, want 0", v)
	}
}

func TestLaplacianVariance_Checkerboard(t *testing.T) {
	// WHAT: A pixel-scale checkerboard has a large Laplacian variance.
	// WHY: The sharpness metric must respond to high-frequency detail.
	w, h := 16, 16
	g := make([]float64, w*h)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			if (x+y)%2 == 0 {
				g[y*w+x] = 200
			} else {
				g[y*w+x] = 50
			}
		}
	}
	if v := LaplacianVariance(g, w, h); v < 1000 {
		t.Errorf("laplacian variance = %f, want >= 1000", v)
	}
}

func TestLaplacianVariance_TooSmall(t *testing.T) {
	// WHAT: Buffers without an interior return 0.
	// WHY: The 1-pixel border exclusion leaves nothing to convolve.
	if v := LaplacianVariance(flat(2, 2, 10), 2, 2); v != 0 {
		t.Errorf("laplacian variance = %f, want 0", v)
	}
}

func TestMeanRect(t *testing.T) {
	// WHAT: MeanRect averages only the requested rectangle and clips bounds.
	// WHY: Regional uniformity checks depend on exact rectangle semantics.
	w := 4
	g := make([]float64, w*4)
	for i := range g {
		g[i] = float64(i)
	}
	// Rows 0-1, cols 0-1: values 0,1,4,5 → mean 2.5.
	if v := MeanRect(g, w, 0, 0, 2, 2); math.Abs(v-2.5) > 1e-9 {
		t.Errorf("mean rect = %f, want 2.5", v)
	}
	// Out-of-range coordinates clip to the buffer.
	if v := MeanRect(g, w, -5, -5, 100, 100); math.Abs(v-7.5) > 1e-9 {
		t.Errorf("clipped mean = %f, want 7.5", v)
	}
}

func TestMeanRect_Empty(t *testing.T) {
	// WHAT: An empty rectangle yields 0.
	// WHY: Degenerate regions on tiny images must not divide by zero.
	g := flat(4, 4, 9)
	if v := MeanRect(g, 4, 2, 2, 2, 2); v != 0 {
		t.Errorf("empty rect mean = %f, want 0", v)
	}
}

func TestBanding_TwoLevels(t *testing.T) {
	// WHAT: A two-level buffer leaves nearly all interior bins empty.
	// WHY: Posterized re-exports occupy only a handful of bins.
	g := make([]float64, 256)
	for i := 128; i < 256; i++ {
		g[i] = 200
	}
	for i := 0; i < 128; i++ {
		g[i] = 60
	}
	hist := Histogram(g)
	if !HasBanding(hist) {
		t.Errorf("empty bins = %d, want > %d", EmptyBins(hist), BandingThreshold)
	}
}

func TestBanding_SmoothRamp(t *testing.T) {
	// WHAT: A buffer covering most intensities is not flagged.
	// WHY: Normal continuous-tone scans must pass the banding check.
	g := make([]float64, 512)
	for i := range g {
		g[i] = float64(i % 250)
	}
	hist := Histogram(g)
	if HasBanding(hist) {
		t.Errorf("empty bins = %d, want <= %d", EmptyBins(hist), BandingThreshold)
	}
}

func TestMotionRatio_ZeroGradients(t *testing.T) {
	// WHAT: gx=gy=0 yields a well-defined ratio of 0/1 = 0.
	// WHY: Flat images must not divide by zero nor report motion.
	if v := MotionRatio(0, 0); v != 0 {
		t.Errorf("motion ratio = %f, want 0", v)
	}
}

func TestMotionRatio_DominantAxis(t *testing.T) {
	// WHAT: The larger sum goes in the numerator regardless of axis.
	// WHY: Motion direction should not change the magnitude.
	if v := MotionRatio(300, 100); math.Abs(v-3) > 1e-9 {
		t.Errorf("ratio = %f, want 3", v)
	}
	if v := MotionRatio(100, 300); math.Abs(v-3) > 1e-9 {
		t.Errorf("ratio = %f, want 3", v)
	}
}

func TestGradientSums_FlatIsZero(t *testing.T) {
	// WHAT: No intensity change means zero gradient mass.
	// WHY: Anchors the motion metric at its floor.
	gx, gy := GradientSums(flat(8, 8, 33), 8, 8)
	if gx != 0 || gy != 0 {
		t.Errorf("gradients = (%f, %f), want (0, 0)", gx, gy)
	}
}
