// Package mathx provides small numerical helpers: rounding, polynomial evaluation, and polynomial roots
package mathx

import (
	"math"
	"math/cmplx"

	"gonum.org/v1/gonum/mat"
)

// Round rounds a float to the nearest "unit" (0.1 for tenth, 0.01 for hundredth, and so on).
func Round(x, unit float64) float64 {
	return math.Round(x/unit) * unit
}

// Polyval evaluates the polynomial with coefficients p, highest power first, at x
func Polyval(p []float64, x float64) float64 {
	var y float64
	for _, c := range p {
		y = y*x + c
	}
	return y
}

// cpolyval evaluates p and its derivative at complex z
func cpolyval(p []float64, z complex128) (complex128, complex128) {
	var y, dy complex128
	for _, c := range p {
		dy = dy*z + y
		y = y*z + complex(c, 0)
	}
	return y, dy
}

// Roots computes the roots of the polynomial with coefficients p, highest power
// first, in the manner of numpy.roots: leading zeros are stripped, trailing
// zeros contribute roots at the origin, and the remaining roots are the
// eigenvalues of the companion matrix, refined with a few Newton steps.
//
// A polynomial of degree zero (or all zeros) has no roots and nil is returned.
func Roots(p []float64) []complex128 {
	lead := 0
	for lead < len(p) && p[lead] == 0 {
		lead++
	}
	p = p[lead:]
	trail := 0
	for trail < len(p) && p[len(p)-1-trail] == 0 {
		trail++
	}
	core := p[:len(p)-trail]
	if len(core) == 0 || (len(core) == 1 && trail == 0) {
		return nil
	}

	n := len(core) - 1
	out := make([]complex128, 0, n+trail)
	switch {
	case n == 1:
		out = append(out, complex(-core[1]/core[0], 0))
	case n > 1:
		comp := mat.NewDense(n, n, nil)
		for j := 0; j < n; j++ {
			comp.Set(0, j, -core[j+1]/core[0])
		}
		for i := 1; i < n; i++ {
			comp.Set(i, i-1, 1)
		}
		var eig mat.Eigen
		if ok := eig.Factorize(comp, mat.EigenNone); !ok {
			return nil
		}
		for _, z := range eig.Values(nil) {
			out = append(out, polish(core, z))
		}
	}
	for i := 0; i < trail; i++ {
		out = append(out, 0)
	}
	return out
}

// polish refines a root estimate with Newton's method, keeping an iterate only if it improves |p(z)|
func polish(p []float64, z complex128) complex128 {
	y, dy := cpolyval(p, z)
	for i := 0; i < 3; i++ {
		if y == 0 || dy == 0 {
			break
		}
		next := z - y/dy
		ny, ndy := cpolyval(p, next)
		if cmplx.Abs(ny) >= cmplx.Abs(y) {
			break
		}
		z, y, dy = next, ny, ndy
	}
	return z
}
