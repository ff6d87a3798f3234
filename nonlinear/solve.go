/*Package nonlinear applies the WFC3 IR non-linearity to simulated frames.

The calibration reference stores, for every pixel, four coefficients of a
polynomial which maps the count a detector reports to the count an ideal
linear detector would have seen,

	linear = (1+c1)·x + c2·x² + c3·x³ + c4·x⁴

Simulations produce linear counts, so making a frame realistic means solving
this quartic for x at every pixel.  Each pixel is independent; Corrector
spreads whole frames over a pool of goroutines.
*/
package nonlinear

import (
	"fmt"
	"math"

	"github.com/nasa-jpl/wfc3ir/mathx"
)

// DefaultTolerance is the relative size of the imaginary part below which a root is taken as real
const DefaultTolerance = 1e-6

// Coeffs are the four non-linearity coefficients of one pixel
type Coeffs struct {
	C1, C2, C3, C4 float64
}

// NonLinearitySolveError is generated when the quartic for a pixel has no
// acceptably real root
type NonLinearitySolveError struct {
	// Row and Col locate the pixel; both are -1 for a lone SolvePixel call
	Row, Col int

	// Value is the linear count being inverted
	Value float64

	Coeffs Coeffs

	// Roots holds every root that was considered
	Roots []complex128
}

func (e *NonLinearitySolveError) Error() string {
	loc := ""
	if e.Row >= 0 && e.Col >= 0 {
		loc = fmt.Sprintf(" at pixel (%d, %d)", e.Row, e.Col)
	}
	return fmt.Sprintf("no real root inverting non-linearity%s for value %g with coefficients %+v, roots %v",
		loc, e.Value, e.Coeffs, e.Roots)
}

// polynomial returns the coefficients of the quartic, highest power first
func (c Coeffs) polynomial(v float64) []float64 {
	return []float64{c.C4, c.C3, c.C2, c.C1 + 1, -v}
}

// Forward evaluates the polynomial at x, returning the linear count for a
// reported count x.  SolvePixel is its inverse
func Forward(x float64, c Coeffs) float64 {
	return mathx.Polyval(c.polynomial(0), x)
}

// SolvePixel finds the reported count x for a linear count v, the root of
//
//	c4·x⁴ + c3·x³ + c2·x² + (c1+1)·x − v = 0
//
// closest to v.  Only roots whose imaginary part is within tol·max(1, |real|)
// of zero are candidates; if there are none a *NonLinearitySolveError is
// returned.  A non-positive tol selects DefaultTolerance.
func SolvePixel(v float64, c Coeffs, tol float64) (float64, error) {
	if tol <= 0 {
		tol = DefaultTolerance
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, &NonLinearitySolveError{Row: -1, Col: -1, Value: v, Coeffs: c}
	}
	roots := mathx.Roots(c.polynomial(v))

	best, bestDist := 0., math.Inf(1)
	found := false
	for _, z := range roots {
		re, im := real(z), imag(z)
		if math.Abs(im) > tol*math.Max(1, math.Abs(re)) {
			continue
		}
		d := (re - v) * (re - v)
		if d < bestDist {
			best, bestDist, found = re, d, true
		}
	}
	if !found {
		return 0, &NonLinearitySolveError{Row: -1, Col: -1, Value: v, Coeffs: c, Roots: roots}
	}
	return best, nil
}
