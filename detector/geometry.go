/*Package detector describes the WFC3 IR focal plane: its pixel geometry, the
physical constants needed by photometric conversions, the on-board buffer
limits, and a WFC3IR type which ties these to the readout mode timing table.

Pixel arrays are gonum *mat.Dense with rows as the first index.  The full
frame is 1024x1024; the outermost 5 pixels on every side are reference pixels
which are not light sensitive, leaving a 1014x1014 science region.
*/
package detector

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
)

const (
	// FullFrame is the side length of the full detector frame, in pixels
	FullFrame = 1024

	// Border is the width of the reference pixel border on each side
	Border = 5

	// LightSensitive is the side length of the light-sensitive region
	LightSensitive = FullFrame - 2*Border

	// PixelPitch is the pixel pitch in meters (18 microns)
	PixelPitch = 18e-6

	// ApertureDiameter is the diameter of the HST primary mirror in meters
	ApertureDiameter = 2.4

	// TelescopeArea is the collecting area of the telescope in square meters
	TelescopeArea = math.Pi * (ApertureDiameter / 2) * (ApertureDiameter / 2)
)

// ShapeMismatchError is generated when an array does not have the shape an operation requires
type ShapeMismatchError struct {
	Rows, Cols         int
	WantRows, WantCols int
}

func (e *ShapeMismatchError) Error() string {
	return fmt.Sprintf("array shape (%d, %d) does not match required shape (%d, %d)", e.Rows, e.Cols, e.WantRows, e.WantCols)
}

// CheckShape returns a ShapeMismatchError if a is not rows x cols
func CheckShape(a mat.Matrix, rows, cols int) error {
	r, c := a.Dims()
	if r != rows || c != cols {
		return &ShapeMismatchError{Rows: r, Cols: c, WantRows: rows, WantCols: cols}
	}
	return nil
}

// Allocate returns a zero-filled pixel array, the light sensitive region
// (1014x1014) if lightSensitive is true, else the full frame (1024x1024)
func Allocate(lightSensitive bool) *mat.Dense {
	if lightSensitive {
		return mat.NewDense(LightSensitive, LightSensitive, nil)
	}
	return mat.NewDense(FullFrame, FullFrame, nil)
}

// EmbedInFullFrame places a light sensitive array inside a zero-filled full
// frame, leaving the reference pixel border at zero
func EmbedInFullFrame(a mat.Matrix) (*mat.Dense, error) {
	if err := CheckShape(a, LightSensitive, LightSensitive); err != nil {
		return nil, err
	}
	full := Allocate(false)
	view := full.Slice(Border, FullFrame-Border, Border, FullFrame-Border).(*mat.Dense)
	view.Copy(a)
	return full, nil
}

// StripBorder is the inverse of EmbedInFullFrame, returning a copy of the light sensitive region
func StripBorder(full mat.Matrix) (*mat.Dense, error) {
	if err := CheckShape(full, FullFrame, FullFrame); err != nil {
		return nil, err
	}
	return CropCentral(full, LightSensitive, LightSensitive)
}

// CentralWindow computes the half-open window [start, end) of length m
// centered in an axis of length n.  start = n/2 - m/2 with integer division,
// so when exactly one of n and m is odd the window sits half a pixel toward
// the low index
func CentralWindow(n, m int) (start, end int) {
	start = n/2 - m/2
	return start, start + m
}

// CropCentral returns a copy of the central rows x cols region of a.
// The window on each axis follows CentralWindow
func CropCentral(a mat.Matrix, rows, cols int) (*mat.Dense, error) {
	r, c := a.Dims()
	if rows > r || cols > c || rows <= 0 || cols <= 0 {
		return nil, &ShapeMismatchError{Rows: r, Cols: c, WantRows: rows, WantCols: cols}
	}
	r0, r1 := CentralWindow(r, rows)
	c0, c1 := CentralWindow(c, cols)
	var src mat.Matrix
	if d, ok := a.(*mat.Dense); ok {
		src = d.Slice(r0, r1, c0, c1)
	} else {
		src = subMatrix{a, r0, c0, rows, cols}
	}
	return mat.DenseCopyOf(src), nil
}

// subMatrix is a read-only window onto any mat.Matrix
type subMatrix struct {
	m          mat.Matrix
	r0, c0     int
	rows, cols int
}

func (s subMatrix) Dims() (int, int) { return s.rows, s.cols }

func (s subMatrix) At(i, j int) float64 { return s.m.At(s.r0+i, s.c0+j) }

func (s subMatrix) T() mat.Matrix { return mat.Transpose{Matrix: s} }
