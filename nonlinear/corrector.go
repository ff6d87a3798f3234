package nonlinear

import (
	"context"
	"errors"
	"runtime"
	"sync"
	"time"

	"gonum.org/v1/gonum/mat"

	"github.com/nasa-jpl/wfc3ir/detector"
	"github.com/nasa-jpl/wfc3ir/util"
)

// Recorder receives measurements of corrections, typically a *metrics.Collector
type Recorder interface {
	// ObserveCorrection records a completed frame of pixels that took elapsed
	ObserveCorrection(pixels int, elapsed time.Duration)

	// ObserveSolveFailure records a pixel with no acceptable root
	ObserveSolveFailure()
}

// Corrector applies the non-linearity to whole frames.  The zero value is
// usable and runs one worker per CPU with DefaultTolerance
type Corrector struct {
	// Workers is the number of goroutines rows are spread over.
	// values < 1 mean runtime.NumCPU()
	Workers int

	// Tolerance is passed to SolvePixel
	Tolerance float64

	// Metrics, if not nil, is informed of every frame and solve failure
	Metrics Recorder
}

func (c *Corrector) workers(rows int) int {
	n := c.Workers
	if n < 1 {
		n = runtime.NumCPU()
	}
	return util.ClampInt(n, 1, rows)
}

// CorrectWithReference crops the reference to the frame, then calls Correct
func (c *Corrector) CorrectWithReference(ctx context.Context, frame mat.Matrix, ref *Reference) (*mat.Dense, error) {
	r, cols := frame.Dims()
	coeffs, err := ref.Crop(r, cols)
	if err != nil {
		return nil, err
	}
	return c.Correct(ctx, frame, coeffs)
}

// Correct returns a new frame with SolvePixel applied to every pixel of frame.
//
// The rows are split into contiguous bands, one per worker.  ctx is checked
// before every row; on cancellation or on the first pixel that cannot be
// solved the remaining work is abandoned and the error returned.  Solve
// errors are *NonLinearitySolveError with Row and Col set.
func (c *Corrector) Correct(ctx context.Context, frame mat.Matrix, coeffs CoeffSet) (*mat.Dense, error) {
	if err := coeffs.Validate(); err != nil {
		return nil, err
	}
	rows, cols := frame.Dims()
	if err := detector.CheckShape(coeffs.C1, rows, cols); err != nil {
		return nil, err
	}

	start := time.Now()
	out := mat.NewDense(rows, cols, nil)
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var (
		wg       sync.WaitGroup
		once     sync.Once
		firstErr error
	)
	fail := func(err error) {
		once.Do(func() {
			firstErr = err
			cancel()
		})
	}

	n := c.workers(rows)
	band := (rows + n - 1) / n
	for w := 0; w < n; w++ {
		lo := w * band
		hi := util.ClampInt(lo+band, 0, rows)
		if lo >= hi {
			continue
		}
		wg.Add(1)
		go func(lo, hi int) {
			defer wg.Done()
			for i := lo; i < hi; i++ {
				if err := ctx.Err(); err != nil {
					fail(err)
					return
				}
				if err := c.correctRow(out, frame, coeffs, i, cols); err != nil {
					fail(err)
					return
				}
			}
		}(lo, hi)
	}
	wg.Wait()

	if firstErr != nil {
		var se *NonLinearitySolveError
		if c.Metrics != nil && errors.As(firstErr, &se) {
			c.Metrics.ObserveSolveFailure()
		}
		return nil, firstErr
	}
	if c.Metrics != nil {
		c.Metrics.ObserveCorrection(rows*cols, time.Since(start))
	}
	return out, nil
}

// correctRow solves every pixel of row i, writing only to that row of out
func (c *Corrector) correctRow(out *mat.Dense, frame mat.Matrix, coeffs CoeffSet, i, cols int) error {
	for j := 0; j < cols; j++ {
		v := frame.At(i, j)
		x, err := SolvePixel(v, coeffs.At(i, j), c.Tolerance)
		if err != nil {
			var se *NonLinearitySolveError
			if errors.As(err, &se) {
				se.Row, se.Col = i, j
			}
			return err
		}
		out.Set(i, j, x)
	}
	return nil
}
