package nonlinear_test

import (
	"context"
	"errors"
	"math"
	"math/rand"
	"sync"
	"testing"
	"time"

	"gonum.org/v1/gonum/mat"

	"github.com/nasa-jpl/wfc3ir/detector"
	"github.com/nasa-jpl/wfc3ir/nonlinear"
)

type fakeRecorder struct {
	mu       sync.Mutex
	frames   int
	pixels   int
	failures int
}

func (f *fakeRecorder) ObserveCorrection(pixels int, elapsed time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.frames++
	f.pixels += pixels
}

func (f *fakeRecorder) ObserveSolveFailure() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failures++
}

func randomFrame(rows, cols int, seed int64) *mat.Dense {
	rng := rand.New(rand.NewSource(seed))
	data := make([]float64, rows*cols)
	for i := range data {
		data[i] = rng.Float64() * 30000
	}
	return mat.NewDense(rows, cols, data)
}

// varyingCoeffs builds coefficient grids that differ pixel to pixel but stay monotonic
func varyingCoeffs(rows, cols int) nonlinear.CoeffSet {
	cs := nonlinear.ZeroCoeffs(rows, cols)
	for i := 0; i < rows; i++ {
		for j := 0; j < cols; j++ {
			s := 1 + 0.1*float64((i*cols+j)%7)
			cs.C1.Set(i, j, 0.01*s)
			cs.C2.Set(i, j, 2e-6*s)
			cs.C3.Set(i, j, -1e-11*s)
			cs.C4.Set(i, j, 1e-16*s)
		}
	}
	return cs
}

func TestCorrectIdentity(t *testing.T) {
	frame := randomFrame(17, 13, 1)
	c := nonlinear.Corrector{Workers: 4}
	out, err := c.Correct(context.Background(), frame, nonlinear.ZeroCoeffs(17, 13))
	if err != nil {
		t.Fatal(err)
	}
	if !mat.Equal(out, frame) {
		t.Errorf("expected zero coefficients to leave the frame unchanged")
	}
}

func TestCorrectInvertsForward(t *testing.T) {
	const rows, cols = 23, 19
	truth := randomFrame(rows, cols, 2)
	coeffs := varyingCoeffs(rows, cols)
	linear := mat.NewDense(rows, cols, nil)
	for i := 0; i < rows; i++ {
		for j := 0; j < cols; j++ {
			linear.Set(i, j, nonlinear.Forward(truth.At(i, j), coeffs.At(i, j)))
		}
	}
	rec := &fakeRecorder{}
	for _, workers := range []int{1, 3, 8, 64} {
		c := nonlinear.Corrector{Workers: workers, Metrics: rec}
		out, err := c.Correct(context.Background(), linear, coeffs)
		if err != nil {
			t.Fatalf("workers=%d: %v", workers, err)
		}
		if !mat.EqualApprox(out, truth, 1e-6) {
			t.Errorf("workers=%d: correction did not recover the input frame", workers)
		}
	}
	if rec.frames != 4 || rec.pixels != 4*rows*cols {
		t.Errorf("expected 4 frames of %d pixels recorded, got %d frames %d pixels", rows*cols, rec.frames, rec.pixels)
	}
}

func TestCorrectReportsPixel(t *testing.T) {
	frame := mat.NewDense(5, 6, nil)
	coeffs := nonlinear.ZeroCoeffs(5, 6)
	// x^4 + 1 = 0 at (2, 3)
	coeffs.C1.Set(2, 3, -1)
	coeffs.C4.Set(2, 3, 1)
	frame.Set(2, 3, -1)

	rec := &fakeRecorder{}
	c := nonlinear.Corrector{Workers: 2, Metrics: rec}
	_, err := c.Correct(context.Background(), frame, coeffs)
	var se *nonlinear.NonLinearitySolveError
	if !errors.As(err, &se) {
		t.Fatalf("expected NonLinearitySolveError got %v", err)
	}
	if se.Row != 2 || se.Col != 3 {
		t.Errorf("expected the failing pixel (2, 3), got (%d, %d)", se.Row, se.Col)
	}
	if rec.failures != 1 || rec.frames != 0 {
		t.Errorf("expected one failure and no frames recorded, got %d and %d", rec.failures, rec.frames)
	}
}

func TestCorrectShapeMismatch(t *testing.T) {
	c := nonlinear.Corrector{}
	_, err := c.Correct(context.Background(), mat.NewDense(4, 4, nil), nonlinear.ZeroCoeffs(4, 5))
	var sme *detector.ShapeMismatchError
	if !errors.As(err, &sme) {
		t.Errorf("expected ShapeMismatchError got %v", err)
	}
}

func TestCorrectInconsistentCoeffs(t *testing.T) {
	cs := nonlinear.ZeroCoeffs(4, 4)
	cs.C3 = mat.NewDense(3, 4, nil)
	c := nonlinear.Corrector{}
	_, err := c.Correct(context.Background(), mat.NewDense(4, 4, nil), cs)
	if err == nil {
		t.Errorf("expected an error for grids of differing shape")
	}
}

func TestCorrectCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	c := nonlinear.Corrector{Workers: 2}
	_, err := c.Correct(ctx, randomFrame(8, 8, 3), nonlinear.ZeroCoeffs(8, 8))
	if !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled got %v", err)
	}
}

func TestCorrectWithReferenceCrops(t *testing.T) {
	// the reference is larger than the frame; only its center applies
	ref := &nonlinear.Reference{CoeffSet: nonlinear.ZeroCoeffs(10, 10)}
	for i := 0; i < 10; i++ {
		for j := 0; j < 10; j++ {
			if i < 2 || i >= 8 || j < 2 || j >= 8 {
				ref.C1.Set(i, j, math.NaN())
			}
		}
	}
	frame := randomFrame(6, 6, 4)
	c := nonlinear.Corrector{Workers: 3}
	out, err := c.CorrectWithReference(context.Background(), frame, ref)
	if err != nil {
		t.Fatal(err)
	}
	if !mat.Equal(out, frame) {
		t.Errorf("expected only the zero center of the reference to be used")
	}
}
